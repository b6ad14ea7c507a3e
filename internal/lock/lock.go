// Package lock provides short leases that serialize work on one key across
// API replicas.
package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"farmnook-dispatch/internal/apperr"
)

// Locker acquires a lease on key. The returned release func is safe to call
// once the work is done; a held lease yields an error wrapping apperr.ErrConflict.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

type redisClient interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

// releaseScript deletes the key only while it still holds our token.
const releaseScript = `if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`

// Redis is a Locker storing leases as keys with a TTL.
type Redis struct {
	client redisClient
	prefix string
	ttl    time.Duration
}

// NewRedis creates a Redis lease manager. Leases expire after ttl even if
// never released.
func NewRedis(client *redis.Client, prefix string, ttl time.Duration) *Redis {
	return newRedis(client, prefix, ttl)
}

func newRedis(client redisClient, prefix string, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Redis{client: client, prefix: prefix, ttl: ttl}
}

// Acquire takes the lease on key or fails with apperr.ErrConflict.
func (r *Redis) Acquire(ctx context.Context, key string) (func(), error) {
	full := r.prefix + key
	token := uuid.NewString()

	ok, err := r.client.SetNX(ctx, full, token, r.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire lease %q: %w", full, err)
	}
	if !ok {
		return nil, fmt.Errorf("lease %q is held: %w", full, apperr.ErrConflict)
	}

	return func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		_ = r.client.Eval(ctx, releaseScript, []string{full}, token).Err()
	}, nil
}

type nopLocker struct{}

// Nop returns a Locker that always succeeds.
func Nop() Locker { return nopLocker{} }

func (nopLocker) Acquire(context.Context, string) (func(), error) { return func() {}, nil }
