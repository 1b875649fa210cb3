package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"barnlabs/api/internal/httperr"
)

type visitor struct {
	count   int
	resetAt time.Time
}

// RateLimiter is a per-client sliding-window throttle. It is owned by the
// HTTP server instance and strictly instance-local: with multiple concurrent
// instances the effective per-client limit is approximate. A shared counter
// store would be required for exact cross-instance limits.
type RateLimiter struct {
	mu        sync.Mutex
	visitors  map[string]*visitor
	limit     int
	window    time.Duration
	lastSweep time.Time

	now func() time.Time
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		visitors: make(map[string]*visitor),
		limit:    limit,
		window:   window,
		now:      time.Now,
	}
}

// Allow records a request for clientID and reports whether it is within the
// window's ceiling. Entries whose window has elapsed are reset lazily on
// access and swept wholesale once per window.
func (rl *RateLimiter) Allow(clientID string) (ok bool, remaining int, resetAt time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	rl.sweepLocked(now)

	v, exists := rl.visitors[clientID]
	if !exists || !now.Before(v.resetAt) {
		v = &visitor{count: 0, resetAt: now.Add(rl.window)}
		rl.visitors[clientID] = v
	}

	if v.count >= rl.limit {
		return false, 0, v.resetAt
	}

	v.count++
	return true, rl.limit - v.count, v.resetAt
}

func (rl *RateLimiter) sweepLocked(now time.Time) {
	if now.Sub(rl.lastSweep) < rl.window {
		return
	}
	for id, v := range rl.visitors {
		if !now.Before(v.resetAt) {
			delete(rl.visitors, id)
		}
	}
	rl.lastSweep = now
}

func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ok, remaining, resetAt := rl.Allow(c.ClientIP())

		c.Writer.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.limit))
		c.Writer.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Writer.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))

		if !ok {
			retryAfter := int(resetAt.Sub(rl.now()).Seconds()) + 1
			c.Writer.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			httperr.Abort(c, http.StatusTooManyRequests, httperr.CodeRateLimited, "rate limit exceeded", gin.H{
				"retryAfterSeconds": retryAfter,
			})
			return
		}

		c.Next()
	}
}
