// Package ratelimit answers whether an account may perform an action on a platform
// inside the current window.
//
// CheckLimit reserves a slot: the counter is incremented when the check passes, not
// after the guarded call succeeds. A failed publish therefore still spends its slot,
// which keeps admission predictable under bursty load. Peek never increments and is
// what schedule-time (advisory) checks use, so a post is counted once, by the worker.
package ratelimit

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/maheshrc27/postflow/internal/apperr"
	"github.com/maheshrc27/postflow/internal/models"
)

type Limiter struct {
	store  CounterStore
	rules  Rules
	logger *zap.Logger
}

func NewLimiter(store CounterStore, rules Rules, logger *zap.Logger) *Limiter {
	if rules == nil {
		rules = DefaultRules
	}
	return &Limiter{store: store, rules: rules, logger: logger.Named("ratelimit")}
}

func counterKey(platform models.Platform, accountID int64, action Action) string {
	return fmt.Sprintf("ratelimit:%s:%d:%s", platform, accountID, action)
}

// CheckLimit admits one request or fails with a RateLimited error carrying the
// wait until the window resets.
func (l *Limiter) CheckLimit(ctx context.Context, platform models.Platform, accountID int64, action Action) error {
	rule, ok := l.rules.Lookup(platform, action)
	if !ok {
		return nil
	}

	counter, admitted, err := l.store.Take(ctx, counterKey(platform, accountID, action), rule.Limit, rule.Window)
	if err != nil {
		return err
	}
	if !admitted {
		l.logger.Info("rate limit reached",
			zap.String("platform", string(platform)),
			zap.Int64("account_id", accountID),
			zap.String("action", string(action)),
			zap.Duration("reset_in", counter.ResetIn))
		return apperr.RateLimited("ratelimit.CheckLimit", counter.ResetIn,
			"%s %s limit of %d per %s reached for account %d", platform, action, rule.Limit, rule.Window, accountID)
	}
	return nil
}

// Peek reports what CheckLimit would answer without consuming a slot.
func (l *Limiter) Peek(ctx context.Context, platform models.Platform, accountID int64, action Action) error {
	rule, ok := l.rules.Lookup(platform, action)
	if !ok {
		return nil
	}

	counter, err := l.store.Get(ctx, counterKey(platform, accountID, action))
	if err != nil {
		return err
	}
	if counter.Count >= rule.Limit {
		return apperr.RateLimited("ratelimit.Peek", counter.ResetIn,
			"%s %s limit of %d per %s reached for account %d, next slot in %s",
			platform, action, rule.Limit, rule.Window, accountID, counter.ResetIn)
	}
	return nil
}
