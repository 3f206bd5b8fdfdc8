package ratelimit

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/maheshrc27/postflow/internal/apperr"
	"github.com/maheshrc27/postflow/internal/models"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func testRules() Rules {
	return Rules{
		models.PlatformX: {
			ActionPublish: {Limit: 2, Window: 15 * time.Minute},
		},
	}
}

func TestCheckLimitAdmitsUntilLimit(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	limiter := NewLimiter(NewMemoryStore().WithClock(clock.Now), testRules(), zap.NewNop())
	ctx := context.Background()

	require.NoError(t, limiter.CheckLimit(ctx, models.PlatformX, 1, ActionPublish))
	clock.Advance(5 * time.Minute)
	require.NoError(t, limiter.CheckLimit(ctx, models.PlatformX, 1, ActionPublish))

	err := limiter.CheckLimit(ctx, models.PlatformX, 1, ActionPublish)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrRateLimited))
	assert.Equal(t, 10*time.Minute, apperr.RetryAfterOf(err))

	// other accounts have their own counter
	assert.NoError(t, limiter.CheckLimit(ctx, models.PlatformX, 2, ActionPublish))

	clock.Advance(10 * time.Minute)
	assert.NoError(t, limiter.CheckLimit(ctx, models.PlatformX, 1, ActionPublish))
}

func TestPeekDoesNotConsume(t *testing.T) {
	limiter := NewLimiter(NewMemoryStore(), testRules(), zap.NewNop())
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, limiter.Peek(ctx, models.PlatformX, 1, ActionPublish))
	}
	require.NoError(t, limiter.CheckLimit(ctx, models.PlatformX, 1, ActionPublish))
	require.NoError(t, limiter.CheckLimit(ctx, models.PlatformX, 1, ActionPublish))

	err := limiter.Peek(ctx, models.PlatformX, 1, ActionPublish)
	assert.True(t, errors.Is(err, apperr.ErrRateLimited))
	assert.Greater(t, apperr.RetryAfterOf(err), time.Duration(0))
}

func TestUnconfiguredActionIsUnlimited(t *testing.T) {
	limiter := NewLimiter(NewMemoryStore(), testRules(), zap.NewNop())
	for i := 0; i < 10; i++ {
		assert.NoError(t, limiter.CheckLimit(context.Background(), models.PlatformLinkedIn, 1, ActionRead))
	}
}

func TestCheckLimitIsAtomicUnderConcurrency(t *testing.T) {
	rules := Rules{models.PlatformInstagram: {ActionPublish: {Limit: 10, Window: time.Hour}}}
	limiter := NewLimiter(NewMemoryStore(), rules, zap.NewNop())

	var admitted int64
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if limiter.CheckLimit(context.Background(), models.PlatformInstagram, 9, ActionPublish) == nil {
				atomic.AddInt64(&admitted, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(10), admitted)
}

func TestDefaultRulesCoverEveryPlatform(t *testing.T) {
	for _, p := range models.Platforms {
		publish, ok := DefaultRules.Lookup(p, ActionPublish)
		require.True(t, ok, p)
		read, ok := DefaultRules.Lookup(p, ActionRead)
		require.True(t, ok, p)
		_, ok = DefaultRules.Lookup(p, ActionMediaUpload)
		require.True(t, ok, p)

		assert.LessOrEqual(t, publish.Limit, read.Limit, p)
	}
}
