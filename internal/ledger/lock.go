package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/brewpos-backend/pkg/instance"
)

const (
	defaultLockTTL  = 30 * time.Second
	defaultLockPoll = 25 * time.Millisecond
)

// Locker serializes ledger writers. Lock blocks until the caller owns the
// lock or ctx ends; the returned func releases it.
type Locker interface {
	Lock(ctx context.Context) (func(context.Context) error, error)
}

// MutexLocker serializes writers inside one process.
type MutexLocker struct {
	ch chan struct{}
}

func NewMutexLocker() *MutexLocker {
	return &MutexLocker{ch: make(chan struct{}, 1)}
}

func (l *MutexLocker) Lock(ctx context.Context) (func(context.Context) error, error) {
	select {
	case l.ch <- struct{}{}:
		return func(context.Context) error {
			<-l.ch
			return nil
		}, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// redisStore defines the operations used by RedisLocker.
type redisStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
}

// RedisLocker serializes writers across processes using SETNX + TTL. The TTL
// bounds how long a crashed owner can block the ledger.
type RedisLocker struct {
	client redisStore
	key    string
	ttl    time.Duration
	poll   time.Duration
}

// NewRedisLocker constructs a Redis-backed locker.
func NewRedisLocker(client redisStore, key string, ttl, poll time.Duration) (*RedisLocker, error) {
	if client == nil {
		return nil, errors.New("redis client required for lock")
	}
	if key == "" {
		return nil, errors.New("lock key is required")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	if poll <= 0 {
		poll = defaultLockPoll
	}
	return &RedisLocker{client: client, key: key, ttl: ttl, poll: poll}, nil
}

func (l *RedisLocker) Lock(ctx context.Context) (func(context.Context) error, error) {
	owner := instance.GetID() + ":" + uuid.NewString()
	ticker := time.NewTicker(l.poll)
	defer ticker.Stop()

	for {
		ok, err := l.client.SetNX(ctx, l.key, owner, l.ttl)
		if err != nil {
			return nil, fmt.Errorf("setnx: %w", err)
		}
		if ok {
			return func(ctx context.Context) error { return l.release(ctx, owner) }, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// release frees the lock only if the owner value still matches.
func (l *RedisLocker) release(ctx context.Context, owner string) error {
	value, err := l.client.Get(ctx, l.key)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("read lock owner: %w", err)
	}
	if value != owner {
		return nil
	}
	if err := l.client.Del(ctx, l.key); err != nil {
		return fmt.Errorf("delete lock: %w", err)
	}
	return nil
}
