package events

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// DefaultStream is the Redis stream events are appended to.
const DefaultStream = "receipts"

// StreamNotifier appends events to a capped Redis stream.
type StreamNotifier struct {
	Client redis.Cmdable
	Stream string
	MaxLen int64
	// Topics limits which topics are published. Empty publishes every topic.
	Topics []string
}

// Notify implements Notifier.
func (n *StreamNotifier) Notify(ctx context.Context, event Event) error {
	if n == nil || n.Client == nil {
		return nil
	}
	if !n.wants(event.Topic) {
		return nil
	}
	stream := n.Stream
	if stream == "" {
		stream = DefaultStream
	}
	args := &redis.XAddArgs{
		Stream: stream,
		Values: map[string]any{
			"id":           event.ID.String(),
			"topic":        event.Topic,
			"aggregate_id": event.AggregateID.String(),
			"payload":      string(event.Payload),
			"occurred_at":  event.OccurredAt.UnixMilli(),
		},
	}
	if n.MaxLen > 0 {
		args.MaxLen = n.MaxLen
		args.Approx = true
	}
	if err := n.Client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("xadd %s: %w", stream, err)
	}
	return nil
}

func (n *StreamNotifier) wants(topic string) bool {
	if len(n.Topics) == 0 {
		return true
	}
	for _, t := range n.Topics {
		if t == topic {
			return true
		}
	}
	return false
}
