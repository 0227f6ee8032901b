package httphandler

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Per-route fixed-window limits, in requests per window.
const (
	searchRateLimit   = 30
	popularRateLimit  = 20
	favoriteRateLimit = 30
	adminRateLimit    = 60

	rateWindow = time.Minute

	// Bounds the number of (route, client) windows held in memory.
	rateLimiterSize = 4096
)

type rateWindowState struct {
	start time.Time
	count int
}

// rateLimiter is a fixed-window limiter keyed by (route, client IP). State
// lives in an expiring LRU so idle clients age out on their own.
type rateLimiter struct {
	mu      sync.Mutex
	windows *expirable.LRU[string, *rateWindowState]
	window  time.Duration
	now     func() time.Time
}

func newRateLimiter(window time.Duration) *rateLimiter {
	return &rateLimiter{
		windows: expirable.NewLRU[string, *rateWindowState](rateLimiterSize, nil, 2*window),
		window:  window,
		now:     time.Now,
	}
}

// allow consumes one request from the client's window. It returns whether the
// request may proceed, how many requests remain, and when the window resets.
func (l *rateLimiter) allow(key string, limit int) (bool, int, time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	state, ok := l.windows.Get(key)
	if !ok || now.Sub(state.start) >= l.window {
		state = &rateWindowState{start: now}
		l.windows.Add(key, state)
	}
	reset := state.start.Add(l.window)

	if state.count >= limit {
		return false, 0, reset
	}
	state.count++
	return true, limit - state.count, reset
}

// limit wraps a handler with a per-client fixed-window rate limit. The route
// name keeps each endpoint's budget independent.
func (l *rateLimiter) limit(route string, perWindow int, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		allowed, remaining, reset := l.allow(route+"|"+clientIP(r), perWindow)

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(perWindow))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))

		if !allowed {
			retryAfter := int(time.Until(reset).Seconds()) + 1
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next(w, r)
	}
}
