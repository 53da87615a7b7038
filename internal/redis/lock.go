package redisclient

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
)

var (
	ErrLockNotAcquired = errors.New("booking lock not acquired")
	// ErrLockUnavailable means redis could not be asked for the lock at all.
	ErrLockUnavailable = errors.New("booking lock service unavailable")
)

// Locker guards booking critical sections. All keys are held for the whole of fn.
type Locker interface {
	WithLocks(ctx context.Context, keys []string, fn func(ctx context.Context) error) error
}

type redisLocker struct {
	client *redislock.Client
	ttl    time.Duration
	wait   time.Duration
}

// NewRedisLocker creates a locker backed by redislock. A held key is retried
// with linear backoff for up to wait before giving up.
func NewRedisLocker(client *redis.Client, ttl, wait time.Duration) Locker {
	return &redisLocker{
		client: redislock.New(client),
		ttl:    ttl,
		wait:   wait,
	}
}

func (l *redisLocker) WithLocks(ctx context.Context, keys []string, fn func(ctx context.Context) error) error {
	// Sorted, de-duplicated acquisition order keeps two bookings that share
	// keys from deadlocking on each other.
	ordered := uniqueSorted(keys)

	held := make([]*redislock.Lock, 0, len(ordered))
	defer func() {
		for i := len(held) - 1; i >= 0; i-- {
			// ctx may already be cancelled; release on a fresh one so the key
			// does not linger until its TTL.
			releaseCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			_ = held[i].Release(releaseCtx)
			cancel()
		}
	}()

	for _, key := range ordered {
		lock, err := l.obtain(ctx, key)
		if err != nil {
			return err
		}
		held = append(held, lock)
	}

	ctxWithTimeout, cancel := context.WithTimeout(ctx, l.ttl)
	defer cancel()

	return fn(ctxWithTimeout)
}

func (l *redisLocker) obtain(ctx context.Context, key string) (*redislock.Lock, error) {
	retry := redislock.NoRetry()
	if l.wait > 0 {
		backoff := 50 * time.Millisecond
		retry = redislock.LimitRetry(redislock.LinearBackoff(backoff), int(l.wait/backoff))
	}

	lock, err := l.client.Obtain(ctx, key, l.ttl, &redislock.Options{RetryStrategy: retry})
	switch {
	case err == nil:
		return lock, nil
	case errors.Is(err, redislock.ErrNotObtained):
		return nil, fmt.Errorf("%w: %s", ErrLockNotAcquired, key)
	case ctx.Err() != nil:
		return nil, fmt.Errorf("acquire booking lock %s: %w", key, ctx.Err())
	case errors.Is(err, context.DeadlineExceeded):
		// redislock's own ttl deadline expired while the key stayed held.
		return nil, fmt.Errorf("%w: %s", ErrLockNotAcquired, key)
	default:
		return nil, fmt.Errorf("%w: %s: %w", ErrLockUnavailable, key, err)
	}
}

func uniqueSorted(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
