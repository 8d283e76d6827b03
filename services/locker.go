package services

import (
	"context"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// SweepLocker hands out short-lived named locks so that only one process runs
// a given sweep at a time. ok=false means someone else holds it.
type SweepLocker interface {
	Acquire(ctx context.Context, name string, ttl time.Duration) (release func(), ok bool, err error)
}

// NopLocker always grants the lock (single-process deployments).
type NopLocker struct{}

func (NopLocker) Acquire(context.Context, string, time.Duration) (func(), bool, error) {
	return func() {}, true, nil
}

// releaseScript deletes the key only if it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type RedisLocker struct {
	rdb    *redis.Client
	owner  string
	prefix string
	log    *zap.Logger
}

func NewRedisLocker(rdb *redis.Client, log *zap.Logger) *RedisLocker {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return &RedisLocker{rdb: rdb, owner: host, prefix: "sweep:", log: log.Named("locker")}
}

func (l *RedisLocker) key(name string) string { return l.prefix + name }

func (l *RedisLocker) Acquire(ctx context.Context, name string, ttl time.Duration) (func(), bool, error) {
	token := l.owner + "/" + uuid.NewString()
	key := l.key(name)

	ok, err := l.rdb.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, false, eris.Wrapf(err, "acquire lock %s", key)
	}
	if !ok {
		return nil, false, nil
	}

	release := func() {
		// the caller's context may already be cancelled when the sweep ends
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(ctx, l.rdb, []string{key}, token).Err(); err != nil {
			l.log.Warn("failed to release sweep lock", zap.String("key", key), zap.Error(err))
		}
	}
	return release, true, nil
}
