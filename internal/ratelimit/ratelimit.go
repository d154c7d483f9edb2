// Package ratelimit throttles checkout traffic per client.
package ratelimit

import (
	"context"
	"time"
)

// Decision is the outcome of one rate limit check.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Allower decides whether one more request for key fits the limit.
type Allower interface {
	Allow(ctx context.Context, key string) (Decision, error)
}
