package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// KeyFunc extracts the rate limit key of a request. An empty key bypasses
// limiting.
type KeyFunc func(*http.Request) string

// RateLimiter keeps one token bucket per key.
type RateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*limiterEntry
	limit    rate.Limit
	burst    int
	idle     time.Duration
	now      func() time.Time
	onLimit  func()

	pruneEvery time.Duration
	lastPrune  time.Time
}

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter allows perMinute events per key with the given burst.
// Buckets unused for ten minutes are dropped.
func NewRateLimiter(perMinute, burst int) *RateLimiter {
	if perMinute <= 0 {
		perMinute = 30
	}
	if burst <= 0 {
		burst = 5
	}
	return &RateLimiter{
		limiters: make(map[string]*limiterEntry),
		limit:    rate.Every(time.Minute / time.Duration(perMinute)),
		burst:    burst,
		idle:     10 * time.Minute,
		now:      time.Now,

		pruneEvery: time.Minute,
	}
}

// OnLimit registers a function called for every rejected request.
func (l *RateLimiter) OnLimit(fn func()) {
	l.onLimit = fn
}

// Allow reports whether key may proceed now.
func (l *RateLimiter) Allow(key string) bool {
	l.mu.Lock()
	now := l.now()
	if now.Sub(l.lastPrune) >= l.pruneEvery {
		l.prune(now)
	}
	e, ok := l.limiters[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.limiters[key] = e
	}
	e.lastSeen = now
	l.mu.Unlock()

	return e.limiter.AllowN(now, 1)
}

// prune drops idle buckets. Callers hold l.mu.
func (l *RateLimiter) prune(now time.Time) {
	for k, e := range l.limiters {
		if now.Sub(e.lastSeen) > l.idle {
			delete(l.limiters, k)
		}
	}
	l.lastPrune = now
}

// Middleware rejects requests over the limit with 429.
func (l *RateLimiter) Middleware(key KeyFunc) func(http.Handler) http.Handler {
	interval := time.Duration(float64(time.Second) / float64(l.limit))
	retryAfter := strconv.Itoa(int(math.Ceil(interval.Seconds())))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			k := key(r)
			if k != "" && !l.Allow(k) {
				if l.onLimit != nil {
					l.onLimit()
				}
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", retryAfter)
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"error":"too many requests, slow down"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
