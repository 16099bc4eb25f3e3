package reminders

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultLockKey is the Redis key guarding reminder sweeps.
const DefaultLockKey = "inkflow:reminders:sweep"

// releaseScript deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker is a single-key SET NX lease. The TTL bounds how long a
// crashed holder blocks other sweeps.
type RedisLocker struct {
	client *redis.Client
	key    string
	ttl    time.Duration
	token  string
}

// NewRedisLocker creates a locker. An empty key uses DefaultLockKey.
func NewRedisLocker(client *redis.Client, key string, ttl time.Duration) *RedisLocker {
	if key == "" {
		key = DefaultLockKey
	}
	return &RedisLocker{
		client: client,
		key:    key,
		ttl:    ttl,
		token:  uuid.NewString(),
	}
}

// TryLock acquires the lease if it is free.
func (l *RedisLocker) TryLock(ctx context.Context) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.key, l.token, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire %s: %w", l.key, err)
	}
	return ok, nil
}

// Unlock releases the lease if this locker still holds it.
func (l *RedisLocker) Unlock(ctx context.Context) error {
	if err := releaseScript.Run(ctx, l.client, []string{l.key}, l.token).Err(); err != nil && err != redis.Nil {
		return fmt.Errorf("release %s: %w", l.key, err)
	}
	return nil
}
