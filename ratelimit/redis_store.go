// api/ratelimit/redis_store.go
package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// extendScript raises the stored deadline only when the new one is later,
// keeping the read-modify-write atomic across concurrent callers.
var extendScript = redis.NewScript(`
local current = tonumber(redis.call('GET', KEYS[1]) or '0')
local proposed = tonumber(ARGV[1])
if proposed > current then
  redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[2])
end
return 1
`)

// RedisStore shares backoff deadlines across processes, so a fleet of
// workers hitting the same provider operation backs off together.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore wraps an existing Redis client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) key(identifier string) string {
	return fmt.Sprintf("backoff:%s", identifier)
}

func (s *RedisStore) Deadline(ctx context.Context, identifier string) (time.Time, error) {
	val, err := s.client.Get(ctx, s.key(identifier)).Result()
	if err == redis.Nil {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to read backoff slot: %w", err)
	}
	nanos, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("corrupt backoff slot %q: %w", identifier, err)
	}
	return time.Unix(0, nanos), nil
}

func (s *RedisStore) Extend(ctx context.Context, identifier string, until time.Time) error {
	// Keep the key around a minute past the deadline so late readers still
	// observe it, then let it expire.
	ttl := time.Until(until) + time.Minute
	err := extendScript.Run(ctx, s.client, []string{s.key(identifier)},
		until.UnixNano(), ttl.Milliseconds()).Err()
	if err != nil {
		return fmt.Errorf("failed to extend backoff slot: %w", err)
	}
	return nil
}

var _ Store = (*RedisStore)(nil)
