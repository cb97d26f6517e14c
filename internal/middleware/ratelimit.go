package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/oscroos/bjugstad-utleie-webapp/pkg/logger"
	"golang.org/x/time/rate"
)

// ipLimiter tracks a token bucket per client IP
type ipLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimitMiddleware limits requests per client IP with a token bucket.
// Used on the auth endpoints to slow down enumeration of phone numbers
// through the login flow. Buckets idle for over ten minutes are dropped.
func RateLimitMiddleware(rps float64, burst int) echo.MiddlewareFunc {
	var (
		mu       sync.Mutex
		limiters = make(map[string]*ipLimiter)
	)

	prune := func(now time.Time) {
		for ip, l := range limiters {
			if now.Sub(l.lastSeen) > 10*time.Minute {
				delete(limiters, ip)
			}
		}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ip := c.RealIP()
			now := time.Now()

			mu.Lock()
			l, ok := limiters[ip]
			if !ok {
				prune(now)
				l = &ipLimiter{limiter: rate.NewLimiter(rate.Limit(rps), burst)}
				limiters[ip] = l
			}
			l.lastSeen = now
			allowed := l.limiter.Allow()
			mu.Unlock()

			if !allowed {
				logger.FromContext(c).Warn("Rate limit exceeded")
				return c.JSON(http.StatusTooManyRequests, echo.Map{
					"error":             "too_many_requests",
					"error_description": "too many requests, slow down",
				})
			}

			return next(c)
		}
	}
}
