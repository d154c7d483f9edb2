package app

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/supermarket-teller/internal/cart"
	"github.com/noah-isme/supermarket-teller/internal/config"
	"github.com/noah-isme/supermarket-teller/internal/product"
	"github.com/noah-isme/supermarket-teller/internal/ratelimit"
	"github.com/noah-isme/supermarket-teller/internal/tasks"
)

type recordingEnqueuer struct {
	tasks []*asynq.Task
}

func (r *recordingEnqueuer) EnqueueContext(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	r.tasks = append(r.tasks, task)
	return &asynq.TaskInfo{}, nil
}

func baseConfig() *config.Config {
	return &config.Config{
		CatalogBackend:     config.CatalogMemory,
		CatalogFile:        "../catalog/testdata/catalog.json",
		OffersFile:         "../offer/testdata/offers.json",
		TellerConcurrency:  2,
		RateLimitBackend:   config.RateLimitSliding,
		RateLimitMax:       10,
		RateLimitWindow:    time.Minute,
		EventsStream:       "receipts",
		EventsStreamMaxLen: 100,
		TaskQueue:          tasks.DefaultQueue,
	}
}

func TestOpenMemoryWithoutRedis(t *testing.T) {
	ctx := context.Background()
	deps, err := Open(ctx, baseConfig(), zerolog.Nop(), Options{})
	require.NoError(t, err)
	t.Cleanup(deps.Close)

	require.Nil(t, deps.Redis)
	require.Nil(t, deps.DB)
	require.Empty(t, deps.Probes)

	price, err := deps.Catalog.UnitPrice(ctx, product.New("flour", product.Kilo))
	require.NoError(t, err)
	require.True(t, price.Equal(decimal.RequireFromString("2.50")))

	limiter, err := deps.NewLimiter()
	require.NoError(t, err)
	require.Nil(t, limiter)
	require.Nil(t, deps.Savings())
	require.Empty(t, deps.NewBus(nil).Notifiers)
}

func TestOpenRedisCatalog(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := baseConfig()
	cfg.CatalogBackend = config.CatalogRedis
	cfg.RedisURL = "redis://" + mr.Addr()
	cfg.TasksEnabled = true

	deps, err := Open(context.Background(), cfg, zerolog.Nop(), Options{RedisMetrics: true})
	require.NoError(t, err)
	t.Cleanup(deps.Close)

	require.NotNil(t, deps.Redis)
	require.Len(t, deps.Probes, 1)
	require.NoError(t, deps.Probes[0].Check(context.Background()))
	require.True(t, mr.Exists("catalog:prices"))
	require.False(t, mr.Exists("lock:catalog-seed"), "seed lease released")
	require.NotNil(t, deps.Savings())

	limiter, err := deps.NewLimiter()
	require.NoError(t, err)
	require.IsType(t, ratelimit.SlidingWindow{}, limiter)

	cfg.RateLimitBackend = config.RateLimitFixed
	limiter, err = deps.NewLimiter()
	require.NoError(t, err)
	require.IsType(t, &ratelimit.FixedWindow{}, limiter)
}

func TestTellerPublishesToStreamAndQueue(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := baseConfig()
	cfg.RedisURL = "redis://" + mr.Addr()

	deps, err := Open(context.Background(), cfg, zerolog.Nop(), Options{})
	require.NoError(t, err)
	t.Cleanup(deps.Close)

	enq := &recordingEnqueuer{}
	bus := deps.NewBus(enq)
	require.Len(t, bus.Notifiers, 2)

	tl, err := deps.NewTeller(bus)
	require.NoError(t, err)
	require.Len(t, tl.Offers(), 4)

	c := cart.New()
	require.NoError(t, c.AddItemQuantity(product.New("apples", product.Each), decimal.NewFromInt(3)))
	rec, err := tl.ChecksOutArticlesFrom(context.Background(), c)
	require.NoError(t, err)
	require.Equal(t, "5.37", rec.TotalPrice().StringFixed(2))

	entries, err := deps.Redis.XRange(context.Background(), "receipts", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Len(t, enq.tasks, 1)
	require.Equal(t, tasks.TypeReceiptIssued, enq.tasks[0].Type())
}

func TestOpenRejectsMissingCatalogFile(t *testing.T) {
	cfg := baseConfig()
	cfg.CatalogFile = "testdata/missing.json"
	_, err := Open(context.Background(), cfg, zerolog.Nop(), Options{})
	require.Error(t, err)
}
