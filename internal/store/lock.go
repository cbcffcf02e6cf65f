package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Locker serializes operations so that no record is mutated by two
// in-flight operations at once.
type Locker interface {
	// Lock blocks until the lock is held or ctx ends. The returned
	// function releases it and is safe to call more than once.
	Lock(ctx context.Context) (func(), error)
}

// LocalLocker serializes operations within one process.
type LocalLocker struct {
	mu sync.Mutex
}

func (l *LocalLocker) Lock(ctx context.Context) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l.mu.Lock()
	var once sync.Once
	return func() { once.Do(l.mu.Unlock) }, nil
}

// RedisLocker serializes operations across processes with SET NX and a
// token-checked unlock script.
type RedisLocker struct {
	rdb      *redis.Client
	key      string
	ttl      time.Duration
	retry    time.Duration
	unlockSc *redis.Script
}

// NewRedisLocker returns a lock on key with the given lease.
func NewRedisLocker(rdb *redis.Client, key string, ttl time.Duration) *RedisLocker {
	return &RedisLocker{
		rdb:      rdb,
		key:      "lock:" + key,
		ttl:      ttl,
		retry:    10 * time.Millisecond,
		unlockSc: redis.NewScript(unlockLua),
	}
}

func (l *RedisLocker) Lock(ctx context.Context) (func(), error) {
	token := uuid.New().String()
	for {
		ok, err := l.rdb.SetNX(ctx, l.key, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("redis: acquire lock %s: %w", l.key, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %v", ErrLockTimeout, ctx.Err())
		case <-time.After(l.retry):
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// Background context so release works after the caller's ctx ends.
			unlockCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = l.unlockSc.Run(unlockCtx, l.rdb, []string{l.key}, token).Err()
		})
	}, nil
}
