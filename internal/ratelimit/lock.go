package ratelimit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
	subscriptiondomain "github.com/smallbiznis/pgbilling/internal/subscription/domain"
)

// Only the holder of the token may delete the key.
const lockReleaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

var (
	ErrEmptyLockKey   = errors.New("lock key is empty")
	ErrInvalidLockTTL = errors.New("lock ttl must be positive")
)

const (
	defaultLockAttempts   = 3
	defaultLockRetryDelay = 25 * time.Millisecond
)

// Locker is a single-instance Redis lease keyed by an opaque token. A busy key
// is retried a few times before TryLock reports contention.
type Locker struct {
	client     *redis.Client
	script     *redis.Script
	attempts   int
	retryDelay time.Duration
}

func NewLocker(client *redis.Client) *Locker {
	if client == nil {
		return nil
	}
	return &Locker{
		client:     client,
		script:     redis.NewScript(lockReleaseScript),
		attempts:   defaultLockAttempts,
		retryDelay: defaultLockRetryDelay,
	}
}

// NewMutationLocker adapts Locker for the subscription service. It returns a
// nil interface without Redis so the service falls back to the database
// transaction alone.
func NewMutationLocker(client *redis.Client) subscriptiondomain.MutationLocker {
	locker := NewLocker(client)
	if locker == nil {
		return nil
	}
	return locker
}

func (l *Locker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	if l == nil || l.client == nil {
		return "", false, ErrNotConfigured
	}
	if key == "" {
		return "", false, ErrEmptyLockKey
	}
	if ttl <= 0 {
		return "", false, ErrInvalidLockTTL
	}

	token := uuid.NewString()
	for attempt := 1; ; attempt++ {
		ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
		if err != nil {
			return "", false, err
		}
		if ok {
			return token, true, nil
		}
		if attempt >= l.attempts {
			return "", false, nil
		}
		select {
		case <-ctx.Done():
			return "", false, ctx.Err()
		case <-time.After(l.retryDelay):
		}
	}
}

func (l *Locker) Release(ctx context.Context, key, token string) error {
	if l == nil || l.client == nil || key == "" || token == "" {
		return nil
	}
	return l.script.Run(ctx, l.client, []string{key}, token).Err()
}
