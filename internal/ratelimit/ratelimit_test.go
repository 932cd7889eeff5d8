package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/smallbiznis/pgbilling/internal/config"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestQuoteLimiterDisabledAllows(t *testing.T) {
	limiter, err := NewQuoteLimiter(config.Config{RateLimit: config.RateLimitConfig{Enabled: true, QuoteRate: 1, QuoteBurst: 1}}, nil, zap.NewNop())
	require.NoError(t, err)
	require.Nil(t, limiter)
	require.False(t, limiter.Enabled())

	res, err := limiter.Allow(context.Background(), "77")
	require.NoError(t, err)
	require.True(t, res.Allowed)
}

func TestTokenBucketRejectsBadInput(t *testing.T) {
	var bucket *TokenBucket
	_, err := bucket.Allow(context.Background(), "k", 1, 1)
	require.ErrorIs(t, err, ErrNotConfigured)
}

func TestBucketTTL(t *testing.T) {
	require.Equal(t, 10*time.Second, bucketTTL(2, 10))
	require.Equal(t, time.Second, bucketTTL(100, 1))
}

func TestScriptValueConversion(t *testing.T) {
	require.Equal(t, int64(1), toInt64(int64(1)))
	require.Equal(t, int64(42), toInt64("42"))
	require.Equal(t, int64(0), toInt64(nil))
	require.InDelta(t, 3.5, toFloat64("3.5"), 1e-9)
	require.InDelta(t, 2.0, toFloat64(int64(2)), 1e-9)
}

func TestMutationLockerWithoutRedis(t *testing.T) {
	require.Nil(t, NewMutationLocker(nil))

	var locker *Locker
	_, ok, err := locker.TryLock(context.Background(), "k", time.Second)
	require.ErrorIs(t, err, ErrNotConfigured)
	require.False(t, ok)
	require.NoError(t, locker.Release(context.Background(), "k", "t"))
}
