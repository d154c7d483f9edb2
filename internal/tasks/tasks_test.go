package tasks_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/supermarket-teller/internal/events"
	"github.com/noah-isme/supermarket-teller/internal/tasks"
)

func dec(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func newSavings(t *testing.T) (*miniredis.Miniredis, *tasks.Savings) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, &tasks.Savings{Client: client, Prefix: "test-savings", TTL: time.Hour}
}

func receiptEvent(t *testing.T, issued time.Time, discounts ...events.DiscountApplied) events.Event {
	t.Helper()
	payload := events.ReceiptIssued{ReceiptID: uuid.New(), IssuedAt: issued, Total: dec("10"), Items: 1, Discounts: discounts}
	bus := events.Bus{Now: func() time.Time { return issued }}
	ev, err := bus.Emit(context.Background(), events.TopicReceiptIssued, payload.ReceiptID, payload)
	require.NoError(t, err)
	return ev
}

type fakeEnqueuer struct {
	tasks []*asynq.Task
	err   error
}

func (f *fakeEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	f.tasks = append(f.tasks, task)
	return &asynq.TaskInfo{}, f.err
}

func TestTaskNotifierEnqueuesReceipts(t *testing.T) {
	enq := &fakeEnqueuer{}
	notifier := &tasks.TaskNotifier{Client: enq, Queue: "test"}
	ev := receiptEvent(t, time.Now())

	require.NoError(t, notifier.Notify(context.Background(), ev))
	require.NoError(t, notifier.Notify(context.Background(), events.Event{Topic: "other"}))
	require.Len(t, enq.tasks, 1)
	require.Equal(t, tasks.TypeReceiptIssued, enq.tasks[0].Type())

	var decoded events.Event
	require.NoError(t, json.Unmarshal(enq.tasks[0].Payload(), &decoded))
	require.Equal(t, ev.ID, decoded.ID)
}

func TestTaskNotifierErrors(t *testing.T) {
	ctx := context.Background()
	ev := receiptEvent(t, time.Now())

	conflict := &tasks.TaskNotifier{Client: &fakeEnqueuer{err: asynq.ErrTaskIDConflict}}
	require.NoError(t, conflict.Notify(ctx, ev))

	boom := errors.New("redis down")
	failing := &tasks.TaskNotifier{Client: &fakeEnqueuer{err: boom}}
	require.ErrorIs(t, failing.Notify(ctx, ev), boom)
}

func TestHandlerAggregatesSavings(t *testing.T) {
	_, savings := newSavings(t)
	h := &tasks.Handler{Savings: savings, Logger: zerolog.Nop()}
	mux := tasks.NewServeMux(h)
	ctx := context.Background()
	day := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	first := receiptEvent(t, day,
		events.DiscountApplied{Kind: "percentage", Amount: dec("0.60")},
		events.DiscountApplied{Kind: "quantity_for_amount", Amount: dec("3.00")},
	)
	second := receiptEvent(t, day.Add(5*time.Hour),
		events.DiscountApplied{Kind: "percentage", Amount: dec("3.13")},
	)
	other := receiptEvent(t, day.Add(48*time.Hour),
		events.DiscountApplied{Kind: "bundle", Amount: dec("2.82")},
	)
	for _, ev := range []events.Event{first, second, other, first} {
		task, err := tasks.NewReceiptIssuedTask(ev)
		require.NoError(t, err)
		require.NoError(t, mux.ProcessTask(ctx, task))
	}

	report, err := savings.Report(ctx, day)
	require.NoError(t, err)
	require.Equal(t, "2024-03-01", report.Date)
	require.Equal(t, int64(2), report.Receipts)
	require.Len(t, report.Kinds, 2)
	require.Equal(t, "percentage", report.Kinds[0].Kind)
	require.Equal(t, int64(2), report.Kinds[0].Discounts)
	require.True(t, report.Kinds[0].Amount.Equal(dec("3.73")))
	require.Equal(t, "quantity_for_amount", report.Kinds[1].Kind)
	require.True(t, report.Kinds[1].Amount.Equal(dec("3.00")))
	require.True(t, report.Total.Equal(dec("6.73")))
}

func TestHandlerRejectsMalformedPayload(t *testing.T) {
	_, savings := newSavings(t)
	h := &tasks.Handler{Savings: savings, Logger: zerolog.Nop()}
	err := h.ProcessTask(context.Background(), asynq.NewTask(tasks.TypeReceiptIssued, []byte("not json")))
	require.ErrorIs(t, err, asynq.SkipRetry)
}

func TestSavingsUnknownDay(t *testing.T) {
	_, savings := newSavings(t)
	report, err := savings.Report(context.Background(), time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Zero(t, report.Receipts)
	require.Empty(t, report.Kinds)
	require.True(t, report.Total.IsZero())
}

func TestSavingsRedisOutageReleasesMarker(t *testing.T) {
	mr, savings := newSavings(t)
	mr.Close()
	err := savings.Record(context.Background(), events.ReceiptIssued{ReceiptID: uuid.New(), IssuedAt: time.Now()})
	require.Error(t, err)
	require.NotErrorIs(t, err, tasks.ErrAlreadyRecorded)
}
