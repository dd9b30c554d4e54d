package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"marvelalbum/utils"
)

const (
	maxLimiters   = 10000
	sweepInterval = time.Second
)

// RateLimiter keeps one token bucket per user, or per client IP for
// anonymous requests. Once maxLimiters keys are tracked, full buckets are
// dropped; keys that still do not fit share a single overflow bucket.
type RateLimiter struct {
	mu        sync.Mutex
	limiters  map[string]*rate.Limiter
	overflow  *rate.Limiter
	lastSweep time.Time
	rate      rate.Limit
	burst     int
}

func NewRateLimiter(requestsPerSecond float64, burst int) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		limiters: make(map[string]*rate.Limiter),
		overflow: rate.NewLimiter(rate.Limit(requestsPerSecond), burst),
		rate:     rate.Limit(requestsPerSecond),
		burst:    burst,
	}
}

func (rl *RateLimiter) limiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	if l, ok := rl.limiters[key]; ok {
		return l
	}
	if len(rl.limiters) >= maxLimiters {
		rl.sweep(time.Now())
	}
	if len(rl.limiters) >= maxLimiters {
		return rl.overflow
	}
	l := rate.NewLimiter(rl.rate, rl.burst)
	rl.limiters[key] = l
	return l
}

// sweep drops buckets that refilled completely; a fresh bucket behaves the
// same. Runs at most once per sweepInterval.
func (rl *RateLimiter) sweep(now time.Time) {
	if now.Sub(rl.lastSweep) < sweepInterval {
		return
	}
	rl.lastSweep = now
	for key, l := range rl.limiters {
		if l.TokensAt(now) >= float64(rl.burst) {
			delete(rl.limiters, key)
		}
	}
}

// Handler rejects requests over the limit with 429. A non-positive rate
// disables limiting.
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl.rate <= 0 {
			c.Next()
			return
		}

		key := "ip:" + c.ClientIP()
		if userID, ok := UserID(c); ok {
			key = "user:" + strconv.FormatUint(uint64(userID), 10)
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(rl.burst))
		if !rl.limiter(key).Allow() {
			utils.Log.WithFields(logrus.Fields{
				"key":    key,
				"path":   c.Request.URL.Path,
				"method": c.Request.Method,
			}).Warn("Rate limit exceeded")

			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests"})
			return
		}
		c.Next()
	}
}
