// Package tasks moves issued receipts onto the asynq queue and aggregates
// them in the worker.
package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/noah-isme/supermarket-teller/internal/events"
)

// TypeReceiptIssued is the asynq task type carrying a receipt.issued event.
const TypeReceiptIssued = "receipt:issued"

// DefaultQueue is the asynq queue receipt tasks are enqueued on.
const DefaultQueue = "pricing"

// Enqueuer is the subset of *asynq.Client used to publish tasks.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// NewReceiptIssuedTask wraps the event in an asynq task.
func NewReceiptIssuedTask(ev events.Event) (*asynq.Task, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("encode event: %w", err)
	}
	return asynq.NewTask(TypeReceiptIssued, data), nil
}

// TaskNotifier enqueues receipt.issued events for the worker.
type TaskNotifier struct {
	Client   Enqueuer
	Queue    string
	MaxRetry int
}

// Notify implements events.Notifier. Other topics are ignored.
func (n *TaskNotifier) Notify(ctx context.Context, event events.Event) error {
	if n == nil || n.Client == nil || event.Topic != events.TopicReceiptIssued {
		return nil
	}
	task, err := NewReceiptIssuedTask(event)
	if err != nil {
		return err
	}
	queue := n.Queue
	if queue == "" {
		queue = DefaultQueue
	}
	opts := []asynq.Option{asynq.Queue(queue), asynq.TaskID(event.ID.String())}
	if n.MaxRetry > 0 {
		opts = append(opts, asynq.MaxRetry(n.MaxRetry))
	}
	if _, err := n.Client.EnqueueContext(ctx, task, opts...); err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) {
			return nil
		}
		return fmt.Errorf("enqueue %s: %w", TypeReceiptIssued, err)
	}
	return nil
}
