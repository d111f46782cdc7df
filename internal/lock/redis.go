package lock

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

const (
	defaultLockPrefix = "clarity:lock:"
	defaultLockTTL    = 10 * time.Second
	defaultRetryEvery = 50 * time.Millisecond
	releaseTimeout    = 2 * time.Second
)

// releaseScript deletes the key only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker is a Locker shared across processes through Redis.
type RedisLocker struct {
	client     redis.UniversalClient
	prefix     string
	ttl        time.Duration
	retryEvery time.Duration
}

// NewRedisLocker creates a RedisLocker. Zero values select defaults.
func NewRedisLocker(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisLocker {
	if prefix == "" {
		prefix = defaultLockPrefix
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &RedisLocker{
		client:     client,
		prefix:     prefix,
		ttl:        ttl,
		retryEvery: defaultRetryEvery,
	}
}

// Lock polls SET NX until it wins or ctx is done. The lock expires after the TTL
// even if the holder never releases it.
func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	fullKey := l.prefix + key
	token := uuid.NewString()
	limiter := rate.NewLimiter(rate.Every(l.retryEvery), 1)

	for {
		if err := limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("failed to acquire lock %s: %w", key, err)
		}
		ok, err := l.client.SetNX(ctx, fullKey, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to acquire lock %s: %w", key, err)
		}
		if ok {
			return func() { l.release(fullKey, token) }, nil
		}
	}
}

func (l *RedisLocker) release(fullKey, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
	defer cancel()
	if err := releaseScript.Run(ctx, l.client, []string{fullKey}, token).Err(); err != nil {
		slog.Warn("failed to release redis lock", "key", fullKey, "error", err.Error())
	}
}
