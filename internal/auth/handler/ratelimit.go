package handler

import (
	"math"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// RateLimiter bounds OTP API calls per client IP with a token bucket of max requests per window.
type RateLimiter struct {
	limit rate.Limit
	burst int
	idle  time.Duration
	nowF  func() time.Time

	mu              sync.Mutex
	limiters        map[string]*ipLimiter
	cleanupInterval time.Duration
	lastCleanup     time.Time
}

type ipLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter returns nil when maxRequests or window is not positive; a nil limiter allows everything.
func NewRateLimiter(maxRequests int, window time.Duration) *RateLimiter {
	if maxRequests <= 0 || window <= 0 {
		return nil
	}
	return &RateLimiter{
		limit:           rate.Limit(float64(maxRequests) / window.Seconds()),
		burst:           maxRequests,
		idle:            window,
		nowF:            time.Now,
		limiters:        make(map[string]*ipLimiter),
		cleanupInterval: 10 * time.Minute,
		lastCleanup:     time.Now(),
	}
}

// Reserve takes one token for key. When none is available it returns false and the wait until one is.
func (l *RateLimiter) Reserve(key string) (bool, time.Duration) {
	if l == nil {
		return true, 0
	}
	now := l.nowF()
	lim := l.get(key, now)
	res := lim.ReserveN(now, 1)
	if !res.OK() {
		return false, l.idle
	}
	if d := res.DelayFrom(now); d > 0 {
		res.CancelAt(now)
		return false, d
	}
	return true, 0
}

func (l *RateLimiter) get(key string, now time.Time) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastCleanup) > l.cleanupInterval {
		l.cleanup(now)
	}
	e, ok := l.limiters[key]
	if !ok {
		e = &ipLimiter{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[key] = e
	}
	e.lastSeen = now
	return e.limiter
}

// cleanup drops limiters idle for a full window; their buckets are full again by then.
func (l *RateLimiter) cleanup(now time.Time) {
	cutoff := now.Add(-l.idle)
	for key, e := range l.limiters {
		if e.lastSeen.Before(cutoff) {
			delete(l.limiters, key)
		}
	}
	l.lastCleanup = now
}

// rateLimit rejects requests over the per-IP budget with 429 and Retry-After.
func (h *Handler) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := h.proxies.ClientIP(r)
		ok, wait := h.limiter.Reserve(ip)
		if !ok {
			h.logger.Warn("auth rate limit exceeded", zap.String("client_ip", ip), zap.Duration("retry_after", wait))
			h.writeError(w, r, http.StatusTooManyRequests, errorResponse{
				Code:       CodeRateLimited,
				Message:    "Too many requests. Please try again later.",
				RetryAfter: int(math.Ceil(wait.Seconds())),
			}, nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}
