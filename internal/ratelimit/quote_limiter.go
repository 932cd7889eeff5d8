package ratelimit

import (
	"context"
	"fmt"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/pgbilling/internal/config"
	"go.uber.org/zap"
)

const keyQuote = "pgbilling:ratelimit:quote:%s"

// QuoteLimiter throttles pricing quotes per organization. A nil limiter allows
// everything.
type QuoteLimiter struct {
	bucket *TokenBucket
	rate   float64
	burst  int
	log    *zap.Logger
}

// NewQuoteLimiter returns nil when limiting is disabled or Redis is absent.
func NewQuoteLimiter(cfg config.Config, client *redis.Client, log *zap.Logger) (*QuoteLimiter, error) {
	limitCfg := cfg.RateLimit
	if !limitCfg.Enabled || client == nil {
		return nil, nil
	}
	if limitCfg.QuoteRate <= 0 {
		return nil, ErrInvalidRate
	}
	if limitCfg.QuoteBurst <= 0 {
		return nil, ErrInvalidBurst
	}
	return &QuoteLimiter{
		bucket: NewTokenBucket(client),
		rate:   limitCfg.QuoteRate,
		burst:  limitCfg.QuoteBurst,
		log:    log.Named("ratelimit.quote"),
	}, nil
}

func (l *QuoteLimiter) Enabled() bool {
	return l != nil && l.bucket != nil
}

// Allow fails open on Redis errors.
func (l *QuoteLimiter) Allow(ctx context.Context, orgID string) (*Result, error) {
	if !l.Enabled() {
		return &Result{Allowed: true}, nil
	}
	key := fmt.Sprintf(keyQuote, strings.TrimSpace(orgID))
	res, err := l.bucket.Allow(ctx, key, l.rate, l.burst)
	if err != nil {
		l.log.Warn("quote rate limit check failed", zap.String("org_id", orgID), zap.Error(err))
		return &Result{Allowed: true, Limit: l.burst}, nil
	}
	return res, nil
}
