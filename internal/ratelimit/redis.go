package ratelimit

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// slidingWindowScript prunes, counts and conditionally records in one round
// trip so concurrent requests from the same client cannot both be admitted.
//
// KEYS[1] client key; ARGV: now_ms, window_ms, limit, member.
// Returns {allowed, remaining, retry_after_ms}.
var slidingWindowScript = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
local count = redis.call('ZCARD', key)
if count < limit then
  redis.call('ZADD', key, now, ARGV[4])
  redis.call('PEXPIRE', key, window)
  return {1, limit - count - 1, 0}
end

local retry = 0
local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
if oldest[2] then
  retry = tonumber(oldest[2]) + window - now
end
return {0, 0, retry}
`)

// RedisWindow runs the sliding-window algorithm against a shared Redis ZSET
// per client. Keys expire after one idle window, which bounds memory.
type RedisWindow struct {
	client redis.UniversalClient
	cfg    Config
	prefix string
	clock  func() time.Time
}

// NewRedisWindow builds a Redis-backed limiter. prefix namespaces keys.
func NewRedisWindow(client redis.UniversalClient, cfg Config, prefix string) *RedisWindow {
	if prefix == "" {
		prefix = "postsmith:ratelimit:"
	}
	return &RedisWindow{
		client: client,
		cfg:    cfg.withDefaults(),
		prefix: prefix,
		clock:  time.Now,
	}
}

// Limit returns the maximum number of requests per window.
func (r *RedisWindow) Limit() int { return r.cfg.MaxRequests }

// Window returns the trailing window length.
func (r *RedisWindow) Window() time.Duration { return r.cfg.Window }

// Allow implements Limiter.
func (r *RedisWindow) Allow(ctx context.Context, key string) (Decision, error) {
	now := r.clock().UnixMilli()
	res, err := slidingWindowScript.Run(ctx, r.client,
		[]string{r.prefix + key},
		now,
		r.cfg.Window.Milliseconds(),
		r.cfg.MaxRequests,
		fmt.Sprintf("%d-%s", now, uuid.NewString()),
	).Int64Slice()
	if err != nil {
		return Decision{}, fmt.Errorf("redis sliding window: %w", err)
	}
	if len(res) != 3 {
		return Decision{}, fmt.Errorf("redis sliding window: unexpected reply length %d", len(res))
	}

	return Decision{
		Allowed:    res[0] == 1,
		Limit:      r.cfg.MaxRequests,
		Remaining:  int(res[1]),
		RetryAfter: time.Duration(res[2]) * time.Millisecond,
	}, nil
}

// CheckHealth pings the backing Redis.
func (r *RedisWindow) CheckHealth(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Usage reports how many requests key has made inside the current window.
func (r *RedisWindow) Usage(ctx context.Context, key string) (int, error) {
	from := strconv.FormatInt(r.clock().Add(-r.cfg.Window).UnixMilli()+1, 10)
	n, err := r.client.ZCount(ctx, r.prefix+key, from, "+inf").Result()
	if err != nil {
		return 0, fmt.Errorf("redis usage: %w", err)
	}
	return int(n), nil
}

// Reset forgets every recorded request for key.
func (r *RedisWindow) Reset(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.prefix+key).Err(); err != nil {
		return fmt.Errorf("redis reset: %w", err)
	}
	return nil
}

// Keys lists the client keys that currently hold state.
func (r *RedisWindow) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	iter := r.client.Scan(ctx, 0, r.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, strings.TrimPrefix(iter.Val(), r.prefix))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan: %w", err)
	}
	sort.Strings(keys)
	return keys, nil
}
