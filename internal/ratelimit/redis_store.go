package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// takeScript returns {admitted, count, pttl}.
var takeScript = redis.NewScript(`
local current = tonumber(redis.call('GET', KEYS[1]) or '0')
if current >= tonumber(ARGV[1]) then
	return {0, current, redis.call('PTTL', KEYS[1])}
end
current = redis.call('INCR', KEYS[1])
if current == 1 then
	redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
return {1, current, redis.call('PTTL', KEYS[1])}
`)

// RedisStore keeps counters in Redis so every scheduler and worker process shares them.
type RedisStore struct {
	rdb redis.UniversalClient
}

func NewRedisStore(rdb redis.UniversalClient) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func (s *RedisStore) Take(ctx context.Context, key string, limit int64, window time.Duration) (Counter, bool, error) {
	res, err := takeScript.Run(ctx, s.rdb, []string{key}, limit, window.Milliseconds()).Int64Slice()
	if err != nil {
		return Counter{}, false, fmt.Errorf("rate limit take %s: %w", key, err)
	}
	if len(res) != 3 {
		return Counter{}, false, fmt.Errorf("rate limit take %s: unexpected reply %v", key, res)
	}

	resetIn := time.Duration(res[2]) * time.Millisecond
	if res[2] < 0 {
		resetIn = window
	}
	return Counter{Count: res[1], ResetIn: resetIn}, res[0] == 1, nil
}

func (s *RedisStore) Get(ctx context.Context, key string) (Counter, error) {
	pipe := s.rdb.Pipeline()
	getCmd := pipe.Get(ctx, key)
	ttlCmd := pipe.PTTL(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return Counter{}, fmt.Errorf("rate limit get %s: %w", key, err)
	}

	count, err := getCmd.Int64()
	if errors.Is(err, redis.Nil) {
		return Counter{}, nil
	}
	if err != nil {
		return Counter{}, fmt.Errorf("rate limit get %s: %w", key, err)
	}

	ttl := ttlCmd.Val()
	if ttl < 0 {
		ttl = 0
	}
	return Counter{Count: count, ResetIn: ttl}, nil
}

var _ CounterStore = (*RedisStore)(nil)
