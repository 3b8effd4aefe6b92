package scheduling

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// releaseScript deletes the key only if it still holds our token, so an
// expired lock re-acquired by another instance is never released by us.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker is a Locker shared by every instance pointing at the same
// Redis. Locks expire after TTL so a crashed holder cannot wedge a day.
type RedisLocker struct {
	Client *redis.Client
	TTL    time.Duration
	Retry  time.Duration
	Prefix string
}

// NewRedisLocker returns a RedisLocker with sensible retry defaults.
func NewRedisLocker(client *redis.Client, ttl time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	return &RedisLocker{Client: client, TTL: ttl, Retry: 25 * time.Millisecond, Prefix: "clinic:lock:"}
}

// Lock polls SET NX until it wins or ctx is done. Redis errors are returned
// immediately; callers treat them as store failures.
func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	if l.Client == nil {
		return nil, errors.New("redis locker: nil client")
	}
	full := l.Prefix + key
	token := uuid.NewString()
	retry := l.Retry
	if retry <= 0 {
		retry = 25 * time.Millisecond
	}

	for {
		ok, err := l.Client.SetNX(ctx, full, token, l.TTL).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			break
		}
		t := time.NewTimer(retry)
		select {
		case <-ctx.Done():
			t.Stop()
			return nil, ctx.Err()
		case <-t.C:
		}
	}

	return l.unlocker(ctx, full, token), nil
}

// unlocker releases full once. The request context may already be cancelled
// by then, so the release runs on its own deadline. A failed release leaves
// the day blocked until the key expires, which is worth a warning.
func (l *RedisLocker) unlocker(ctx context.Context, full, token string) func() {
	lg := zerolog.Ctx(ctx)
	if lg.GetLevel() == zerolog.Disabled {
		lg = &log.Logger
	}
	var once sync.Once
	return func() {
		once.Do(func() {
			rctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			if err := releaseScript.Run(rctx, l.Client, []string{full}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
				lg.Warn().Err(err).Str("lock_key", full).Dur("expires_in", l.TTL).Msg("redis lock release failed")
			}
		})
	}
}
