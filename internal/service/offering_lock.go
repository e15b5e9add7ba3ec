package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// OfferingLocker provides mutual exclusion per course offering. Calls for
// different courses never block each other.
type OfferingLocker interface {
	Lock(ctx context.Context, courseID uint) (unlock func(), err error)
}

type keyedMutex struct {
	mu    sync.Mutex
	locks map[uint]*offeringMutex
}

type offeringMutex struct {
	mu   sync.Mutex
	refs int
}

// NewLocalOfferingLocker returns an in-process locker keyed by course id.
func NewLocalOfferingLocker() OfferingLocker {
	return &keyedMutex{locks: make(map[uint]*offeringMutex)}
}

func (k *keyedMutex) Lock(ctx context.Context, courseID uint) (func(), error) {
	k.mu.Lock()
	entry, ok := k.locks[courseID]
	if !ok {
		entry = &offeringMutex{}
		k.locks[courseID] = entry
	}
	entry.refs++
	k.mu.Unlock()

	entry.mu.Lock()

	var once sync.Once
	return func() {
		once.Do(func() {
			entry.mu.Unlock()
			k.mu.Lock()
			entry.refs--
			if entry.refs == 0 {
				delete(k.locks, courseID)
			}
			k.mu.Unlock()
		})
	}, nil
}

const releaseLockScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`

type redisOfferingLocker struct {
	local   OfferingLocker
	client  *redis.Client
	prefix  string
	ttl     time.Duration
	retry   time.Duration
	release *redis.Script
}

// NewRedisOfferingLocker serialises offerings across API nodes with a Redis
// SET NX lock, after taking the in-process lock for the same course.
func NewRedisOfferingLocker(client *redis.Client, prefix string, ttl time.Duration) OfferingLocker {
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	if prefix == "" {
		prefix = "enrollment"
	}
	return &redisOfferingLocker{
		local:   NewLocalOfferingLocker(),
		client:  client,
		prefix:  prefix,
		ttl:     ttl,
		retry:   25 * time.Millisecond,
		release: redis.NewScript(releaseLockScript),
	}
}

func (l *redisOfferingLocker) Lock(ctx context.Context, courseID uint) (func(), error) {
	unlockLocal, err := l.local.Lock(ctx, courseID)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("%s:offering-lock:%d", l.prefix, courseID)
	token := uuid.NewString()
	deadline := time.Now().Add(l.ttl)

	for {
		acquired, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			unlockLocal()
			return nil, fmt.Errorf("acquire offering lock: %w", err)
		}
		if acquired {
			break
		}
		if time.Now().After(deadline) {
			unlockLocal()
			return nil, ErrLockUnavailable
		}

		select {
		case <-ctx.Done():
			unlockLocal()
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, ErrLockUnavailable
			}
			return nil, ctx.Err()
		case <-time.After(l.retry):
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			// The key may already have expired.
			_ = l.release.Run(context.Background(), l.client, []string{key}, token).Err()
			unlockLocal()
		})
	}, nil
}
