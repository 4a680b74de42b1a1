package middleware

import (
	"context"  // Redis calls
	"net/http" // HTTP status codes
	"strconv"  // Header values
	"time"     // Clock

	"github.com/gin-gonic/gin"     // Gin web framework
	"github.com/redis/go-redis/v9" // Redis client
	"github.com/sirupsen/logrus"   // Structured logging
)

// tokenBucket refills a bucket stored as a hash and takes one token atomically.
// KEYS[1] bucket; ARGV rate per second, burst, now in ms. Returns {allowed, remaining, retry_after_s}.
var tokenBucket = redis.NewScript(`
local rate = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local data = redis.call("HMGET", KEYS[1], "tokens", "ts")
local tokens = tonumber(data[1])
local ts = tonumber(data[2])
if tokens == nil then tokens = burst end
if ts == nil then ts = now end
local elapsed = math.max(0, now - ts) / 1000
tokens = math.min(burst, tokens + elapsed * rate)
local allowed = 0
local retry = 0
if tokens >= 1 then
  tokens = tokens - 1
  allowed = 1
else
  retry = math.ceil((1 - tokens) / rate)
end
redis.call("HSET", KEYS[1], "tokens", tostring(tokens), "ts", tostring(now))
redis.call("PEXPIRE", KEYS[1], math.ceil(burst / rate * 1000) + 1000)
return {allowed, math.floor(tokens), retry}
`)

// Limit is a bucket size and its refill rate
type Limit struct {
	PerMinute int // Sustained requests per minute
	Burst     int // Bucket capacity
}

// RateLimiter keeps token buckets in Redis so limits hold across instances
type RateLimiter struct {
	rdb redis.Scripter
	now func() time.Time
}

// NewRateLimiter creates a limiter
func NewRateLimiter(rdb redis.Scripter) *RateLimiter {
	return &RateLimiter{rdb: rdb, now: time.Now}
}

// Allow takes a token from bucket key
func (l *RateLimiter) Allow(ctx context.Context, key string, limit Limit) (allowed bool, remaining, retryAfter int, err error) {
	rate := float64(limit.PerMinute) / 60
	res, err := tokenBucket.Run(ctx, l.rdb, []string{key}, rate, limit.Burst, l.now().UnixMilli()).Int64Slice()
	if err != nil {
		return false, 0, 0, err
	}
	return res[0] == 1, int(res[1]), int(res[2]), nil
}

// RateLimit limits requests per client IP in the named bucket. Redis errors let the request through.
func RateLimit(limiter *RateLimiter, name string, limit Limit) gin.HandlerFunc {
	if limit.Burst <= 0 {
		limit.Burst = limit.PerMinute
	}
	return func(c *gin.Context) {
		if limit.PerMinute <= 0 {
			c.Next() // Disabled
			return
		}
		key := "ratelimit:" + name + ":" + c.ClientIP()
		allowed, remaining, retry, err := limiter.Allow(c.Request.Context(), key, limit)
		if err != nil {
			logrus.WithError(err).WithField("bucket", name).Warn("Rate limiter unavailable, allowing request")
			c.Next()
			return
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(limit.Burst))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		if !allowed {
			c.Header("Retry-After", strconv.Itoa(retry))
			logrus.WithFields(logrus.Fields{"bucket": name, "ip": c.ClientIP()}).Warn("Rate limit exceeded")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"message": "Too many requests"})
			return
		}
		c.Next()
	}
}
