package middleware

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/go-redis/redis_rate/v9"
	log "github.com/sirupsen/logrus"

	"github.com/tadeportfolio/portfolio/internal/telemetry/metrics"
	"github.com/tadeportfolio/portfolio/pkg"
)

type RequestRateLimiter interface {
	Allow(ctx context.Context, key string, limit redis_rate.Limit) (*redis_rate.Result, error)
}

// RateLimit limits requests per client ip, within the given router name.
// Forwarding headers only count when the request comes from one of trustedProxies.
func RateLimit(
	rateLimiter RequestRateLimiter,
	routerName string,
	allowedPerMin int,
	trustedProxies pkg.TrustedProxies,
	metricsManager *metrics.Manager,
) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientIP, err := pkg.ReadUserIP(r, trustedProxies)
			if err != nil {
				log.Debugf("rate limit [%s]: %s", routerName, err)
				clientIP = "unknown"
			}

			res, err := rateLimiter.Allow(
				r.Context(),
				routerName+"||"+clientIP,
				redis_rate.PerMinute(allowedPerMin),
			)
			if err != nil {
				log.Errorf("rate limit [%s]: %s", routerName, err)
				http.Error(w, "rate limit internal error", http.StatusInternalServerError)
				return
			}

			if res.Allowed > 0 {
				next.ServeHTTP(w, r)
				return
			}

			if metricsManager != nil {
				metricsManager.CounterRateLimitedRequests.Inc()
			}
			log.Warnf("rate limit [%s]: too many requests from %s", routerName, clientIP)
			http.Error(
				w,
				fmt.Sprintf("retry after %f seconds", res.RetryAfter.Seconds()),
				http.StatusTooManyRequests,
			)
		})
	}
}

const memoryLimiterPruneThreshold = 1024

type memoryWindow struct {
	start time.Time
	count int
}

var _ RequestRateLimiter = (*MemoryRateLimiter)(nil)

// MemoryRateLimiter is a fixed window limiter for running without redis.
// Counts are per process, so it only fits a single instance.
type MemoryRateLimiter struct {
	mutex   sync.Mutex
	windows map[string]*memoryWindow
	// Now can be replaced in tests
	Now func() time.Time
}

func NewMemoryRateLimiter() *MemoryRateLimiter {
	return &MemoryRateLimiter{
		windows: make(map[string]*memoryWindow),
		Now:     time.Now,
	}
}

func (l *MemoryRateLimiter) Allow(_ context.Context, key string, limit redis_rate.Limit) (*redis_rate.Result, error) {
	l.mutex.Lock()
	defer l.mutex.Unlock()

	now := l.Now()
	window, ok := l.windows[key]
	if !ok || now.Sub(window.start) >= limit.Period {
		if len(l.windows) >= memoryLimiterPruneThreshold {
			l.prune(now, limit.Period)
		}
		window = &memoryWindow{start: now}
		l.windows[key] = window
	}

	resetAfter := limit.Period - now.Sub(window.start)
	res := &redis_rate.Result{
		Limit:      limit,
		ResetAfter: resetAfter,
		RetryAfter: -1,
	}
	if window.count >= limit.Rate {
		res.RetryAfter = resetAfter
		return res, nil
	}

	window.count++
	res.Allowed = 1
	res.Remaining = limit.Rate - window.count
	return res, nil
}

// prune drops windows older than period, so keys of gone clients don't pile up
func (l *MemoryRateLimiter) prune(now time.Time, period time.Duration) {
	for key, window := range l.windows {
		if now.Sub(window.start) >= period {
			delete(l.windows, key)
		}
	}
}
