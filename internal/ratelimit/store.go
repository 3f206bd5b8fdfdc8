package ratelimit

import (
	"context"
	"time"
)

// Counter is the state of one sliding-window counter.
type Counter struct {
	Count   int64
	ResetIn time.Duration
}

// CounterStore holds the shared window counters. Take must be atomic: the read,
// the limit check and the increment happen as one operation.
type CounterStore interface {
	// Take increments the counter for key unless it already reached limit.
	// The window starts on first use and resets once it elapses.
	Take(ctx context.Context, key string, limit int64, window time.Duration) (Counter, bool, error)
	// Get reads the counter without modifying it.
	Get(ctx context.Context, key string) (Counter, error)
}
