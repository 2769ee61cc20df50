// middleware/rate_limit.go
package middleware

import (
	"sync/atomic"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/puzpuzpuz/xsync/v3"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// DefaultLimiterIdle is how long a client IP may stay silent before its
// bucket is dropped.
const DefaultLimiterIdle = 10 * time.Minute

type visitor struct {
	lim      *rate.Limiter
	lastSeen atomic.Int64
}

// IPRateLimiter keeps one token bucket per client IP. Buckets idle longer
// than Idle are swept while serving requests, at most once per Idle.
type IPRateLimiter struct {
	PerSecond float64
	Burst     int
	Idle      time.Duration
	Now       func() time.Time

	visitors  *xsync.MapOf[string, *visitor]
	lastSweep atomic.Int64
}

func NewIPRateLimiter(perSecond float64, burst int) *IPRateLimiter {
	if burst < 1 {
		burst = 1
	}
	l := &IPRateLimiter{
		PerSecond: perSecond,
		Burst:     burst,
		Idle:      DefaultLimiterIdle,
		Now:       time.Now,
		visitors:  xsync.NewMapOf[string, *visitor](),
	}
	l.lastSweep.Store(l.Now().UnixNano())
	return l
}

// Allow reports whether ip may make another request now.
func (l *IPRateLimiter) Allow(ip string) bool {
	now := l.Now().UnixNano()
	v, _ := l.visitors.LoadOrCompute(ip, func() *visitor {
		return &visitor{lim: rate.NewLimiter(rate.Limit(l.PerSecond), l.Burst)}
	})
	v.lastSeen.Store(now)

	last := l.lastSweep.Load()
	if now-last > int64(l.Idle) && l.lastSweep.CompareAndSwap(last, now) {
		if n := l.Sweep(); n > 0 {
			zap.L().Debug("[RATE_LIMIT] idle buckets dropped", zap.Int("count", n), zap.Int("left", l.Size()))
		}
	}
	return v.lim.Allow()
}

// Sweep drops buckets idle longer than Idle and returns how many went.
func (l *IPRateLimiter) Sweep() int {
	cutoff := l.Now().Add(-l.Idle).UnixNano()
	n := 0
	l.visitors.Range(func(ip string, v *visitor) bool {
		if v.lastSeen.Load() < cutoff {
			l.visitors.Delete(ip)
			n++
		}
		return true
	})
	return n
}

// Size is the number of tracked client IPs.
func (l *IPRateLimiter) Size() int {
	return l.visitors.Size()
}

// Handler rejects throttled requests with 429.
func (l *IPRateLimiter) Handler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !l.Allow(c.IP()) {
			zap.L().Warn("🚦 [RATE_LIMIT] request throttled", zap.String("ip", c.IP()), zap.String("path", c.Path()))
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"ok":    false,
				"error": "rate_limited",
			})
		}
		return c.Next()
	}
}

// RateLimitMiddleware applies a token bucket per client IP. A non-positive
// rate disables limiting.
//
// Usage:
//
//	app.Post("/api/apply", middleware.RateLimitMiddleware(5, 20), handler)
func RateLimitMiddleware(perSecond float64, burst int) fiber.Handler {
	if perSecond <= 0 {
		return func(c *fiber.Ctx) error { return c.Next() }
	}
	return NewIPRateLimiter(perSecond, burst).Handler()
}
