package ratelimit

import (
	"context"
	"errors"
	"math"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// The bucket state lives in one hash per key. Tokens are returned as a string
// so fractional refills survive the Lua to Redis integer conversion.
const tokenBucketScript = `
local rate = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])
local ttl = tonumber(ARGV[3])

local clock = redis.call("TIME")
local now = (clock[1] * 1000) + math.floor(clock[2] / 1000)

local state = redis.call("HMGET", KEYS[1], "tokens", "ts")
local tokens = tonumber(state[1]) or burst
local ts = tonumber(state[2]) or now

local elapsed = math.max(0, now - ts)
tokens = math.min(burst, tokens + (elapsed / 1000) * rate)

local allowed = 0
if tokens >= 1 then
  allowed = 1
  tokens = tokens - 1
end

redis.call("HSET", KEYS[1], "tokens", tokens, "ts", now)
redis.call("PEXPIRE", KEYS[1], ttl)

return {allowed, tostring(tokens), now}
`

var (
	ErrNotConfigured   = errors.New("rate limiter not configured")
	ErrEmptyKey        = errors.New("rate limiter key is empty")
	ErrInvalidRate     = errors.New("rate limiter rate must be positive")
	ErrInvalidBurst    = errors.New("rate limiter burst must be positive")
	ErrInvalidResponse = errors.New("invalid rate limit script response")
)

type TokenBucket struct {
	client *redis.Client
	script *redis.Script
}

// Result describes a single Allow decision.
type Result struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetTime  time.Time
	RetryAfter time.Duration
}

func NewTokenBucket(client *redis.Client) *TokenBucket {
	if client == nil {
		return nil
	}
	return &TokenBucket{
		client: client,
		script: redis.NewScript(tokenBucketScript),
	}
}

// Allow takes one token from the bucket at key, refilled at rate tokens per
// second up to burst.
func (t *TokenBucket) Allow(ctx context.Context, key string, rate float64, burst int) (*Result, error) {
	switch {
	case t == nil || t.client == nil:
		return &Result{}, ErrNotConfigured
	case key == "":
		return &Result{}, ErrEmptyKey
	case rate <= 0:
		return &Result{}, ErrInvalidRate
	case burst <= 0:
		return &Result{}, ErrInvalidBurst
	}

	ttl := bucketTTL(rate, burst)
	res, err := t.script.Run(ctx, t.client, []string{key}, rate, burst, ttl.Milliseconds()).Slice()
	if err != nil {
		return &Result{}, err
	}
	if len(res) < 3 {
		return &Result{}, ErrInvalidResponse
	}

	allowed := toInt64(res[0]) == 1
	tokens := toFloat64(res[1])
	ts := toInt64(res[2])

	var retryAfter time.Duration
	if !allowed {
		retryAfter = time.Duration((1 - tokens) / rate * float64(time.Second))
	}

	return &Result{
		Allowed:    allowed,
		Limit:      burst,
		Remaining:  int(math.Floor(tokens)),
		ResetTime:  time.UnixMilli(ts).Add(retryAfter),
		RetryAfter: retryAfter,
	}, nil
}

// bucketTTL keeps idle buckets around for twice their full refill time.
func bucketTTL(rate float64, burst int) time.Duration {
	seconds := math.Ceil(float64(burst) / rate * 2)
	if seconds < 1 {
		seconds = 1
	}
	return time.Duration(seconds) * time.Second
}

func toInt64(v interface{}) int64 {
	switch val := v.(type) {
	case int64:
		return val
	case string:
		parsed, _ := strconv.ParseInt(val, 10, 64)
		return parsed
	default:
		return 0
	}
}

func toFloat64(v interface{}) float64 {
	switch val := v.(type) {
	case string:
		parsed, _ := strconv.ParseFloat(val, 64)
		return parsed
	case int64:
		return float64(val)
	default:
		return 0
	}
}
