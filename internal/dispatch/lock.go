package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ReleaseFunc gives up a held run lock.
type ReleaseFunc func(ctx context.Context) error

// RunLock keeps dispatcher runs from overlapping. Acquire returns
// ErrRunInProgress when another holder has the lock.
type RunLock interface {
	Acquire(ctx context.Context) (ReleaseFunc, error)
}

// LocalLock keeps runs inside one process from overlapping. It does not
// coordinate separate processes; use RedisLock for that.
type LocalLock struct {
	mu sync.Mutex
}

// NewLocalLock creates an unheld LocalLock.
func NewLocalLock() *LocalLock {
	return &LocalLock{}
}

// Acquire takes the lock without waiting, or returns ErrRunInProgress.
func (l *LocalLock) Acquire(context.Context) (ReleaseFunc, error) {
	if !l.mu.TryLock() {
		return nil, ErrRunInProgress
	}
	var once sync.Once
	return func(context.Context) error {
		once.Do(l.mu.Unlock)
		return nil
	}, nil
}

// releaseScript deletes the key only if it still holds our token, so a run
// that outlived its TTL cannot release a lock taken by the next run.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// redisClient is the subset of *redis.Client the lock needs.
type redisClient interface {
	redis.Scripter
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
}

// RedisLock is a single-instance Redis lock (SET NX PX plus a token-checked
// delete).
type RedisLock struct {
	client redisClient
	key    string
	ttl    time.Duration
}

// NewRedisLock creates a RedisLock on key that expires after ttl.
func NewRedisLock(client redisClient, key string, ttl time.Duration) *RedisLock {
	return &RedisLock{client: client, key: key, ttl: ttl}
}

// Acquire takes the lock or returns ErrRunInProgress.
func (l *RedisLock) Acquire(ctx context.Context) (ReleaseFunc, error) {
	token := uuid.New().String()

	ok, err := l.client.SetNX(ctx, l.key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire dispatch lock: %w", err)
	}
	if !ok {
		return nil, ErrRunInProgress
	}

	return func(ctx context.Context) error {
		if err := releaseScript.Run(ctx, l.client, []string{l.key}, token).Err(); err != nil {
			return fmt.Errorf("release dispatch lock: %w", err)
		}
		return nil
	}, nil
}
