package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	limiter "github.com/ulule/limiter/v3"
	limiterredis "github.com/ulule/limiter/v3/drivers/store/redis"
)

// FixedWindow adapts a ulule limiter with a Redis store to Allower.
type FixedWindow struct {
	limiter *limiter.Limiter
}

// NewFixedWindow builds a fixed window limiter allowing max requests per window.
func NewFixedWindow(client *redis.Client, prefix string, window time.Duration, max int) (*FixedWindow, error) {
	if window <= 0 || max <= 0 {
		return nil, fmt.Errorf("ratelimit: invalid rate %d per %s", max, window)
	}
	store, err := limiterredis.NewStoreWithOptions(client, limiter.StoreOptions{Prefix: prefix})
	if err != nil {
		return nil, fmt.Errorf("ratelimit: redis store: %w", err)
	}
	rate := limiter.Rate{Period: window, Limit: int64(max)}
	return &FixedWindow{limiter: limiter.New(store, rate)}, nil
}

// Allow implements Allower.
func (f *FixedWindow) Allow(ctx context.Context, key string) (Decision, error) {
	lctx, err := f.limiter.Get(ctx, key)
	if err != nil {
		return Decision{Allowed: true}, fmt.Errorf("fixed window %s: %w", key, err)
	}
	return Decision{
		Allowed:   !lctx.Reached,
		Limit:     int(lctx.Limit),
		Remaining: int(lctx.Remaining),
		ResetAt:   time.Unix(lctx.Reset, 0),
	}, nil
}
