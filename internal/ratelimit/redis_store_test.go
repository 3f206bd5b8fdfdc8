package ratelimit

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisStore(rdb), mr
}

func TestRedisStoreTakeAndGet(t *testing.T) {
	store, mr := newTestRedisStore(t)
	ctx := context.Background()

	got, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, Counter{}, got)

	for i := int64(1); i <= 2; i++ {
		c, ok, err := store.Take(ctx, "k", 2, time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, i, c.Count)
		assert.Equal(t, time.Minute, c.ResetIn)
	}

	mr.FastForward(20 * time.Second)
	c, ok, err := store.Take(ctx, "k", 2, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, int64(2), c.Count)
	assert.Equal(t, 40*time.Second, c.ResetIn)

	got, err = store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, Counter{Count: 2, ResetIn: 40 * time.Second}, got)

	mr.FastForward(40 * time.Second)
	got, err = store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Zero(t, got.Count)

	c, ok, err = store.Take(ctx, "k", 2, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(1), c.Count)
}

func TestRedisStoreTakeIsAtomic(t *testing.T) {
	store, _ := newTestRedisStore(t)
	ctx := context.Background()

	var admitted atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok, err := store.Take(ctx, "burst", 10, time.Minute)
			assert.NoError(t, err)
			if ok {
				admitted.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(10), admitted.Load())
	got, err := store.Get(ctx, "burst")
	require.NoError(t, err)
	assert.Equal(t, int64(10), got.Count)
}

func TestRedisStoreKeysAreIndependent(t *testing.T) {
	store, _ := newTestRedisStore(t)
	ctx := context.Background()

	_, ok, err := store.Take(ctx, "a", 1, time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = store.Take(ctx, "b", 1, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	_, ok, err = store.Take(ctx, "a", 1, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
}
