package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrLockNotAcquired is returned when the lock wait times out
var ErrLockNotAcquired = errors.New("redis lock not acquired")

// releaseScript deletes the key only when it still holds our token
var releaseScript = redis.NewScript(`
	if redis.call('GET', KEYS[1]) == ARGV[1] then
		return redis.call('DEL', KEYS[1])
	end
	return 0
`)

// Locker provides short-lived mutual exclusion across processes
type Locker struct {
	client *Client
	prefix string
	ttl    time.Duration
	retry  time.Duration
}

// NewLocker creates a locker. ttl bounds how long a crashed holder blocks others.
func NewLocker(client *Client, prefix string, ttl time.Duration) *Locker {
	return &Locker{
		client: client,
		prefix: prefix,
		ttl:    ttl,
		retry:  25 * time.Millisecond,
	}
}

// Enabled reports whether locks are enforced
func (l *Locker) Enabled() bool {
	return l.client != nil && l.client.Enabled()
}

// Acquire blocks until the lock is held or ctx is done.
// The returned release func is always safe to call.
func (l *Locker) Acquire(ctx context.Context, name string) (func(), error) {
	if !l.Enabled() {
		return func() {}, nil
	}

	key := fmt.Sprintf("%s:lock:%s", l.prefix, name)
	token := uuid.NewString()
	rdb := l.client.Redis()

	for {
		ok, err := rdb.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			return func() {}, fmt.Errorf("acquire lock %s: %w", name, err)
		}
		if ok {
			return func() {
				// detached: the caller's ctx may already be cancelled
				releaseCtx, cancel := context.WithTimeout(context.Background(), time.Second)
				defer cancel()
				_ = releaseScript.Run(releaseCtx, rdb, []string{key}, token).Err()
			}, nil
		}

		select {
		case <-ctx.Done():
			return func() {}, fmt.Errorf("%w: %s: %v", ErrLockNotAcquired, name, ctx.Err())
		case <-time.After(l.retry):
		}
	}
}
