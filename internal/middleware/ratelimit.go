package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// windowLimiter counts requests per key in fixed windows. Expired windows are
// dropped once per period so idle kiosks do not accumulate.
type windowLimiter struct {
	limit int
	per   time.Duration

	mu        sync.Mutex
	windows   map[string]*window
	nextSweep time.Time
}

type window struct {
	used  int
	reset time.Time
}

func newWindowLimiter(limit int, per time.Duration) *windowLimiter {
	return &windowLimiter{limit: limit, per: per, windows: map[string]*window{}}
}

// take records one request for key and reports how many remain in the
// current window and when it resets.
func (l *windowLimiter) take(key string, now time.Time) (remaining int, reset time.Time, ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.After(l.nextSweep) {
		for k, w := range l.windows {
			if !now.Before(w.reset) {
				delete(l.windows, k)
			}
		}
		l.nextSweep = now.Add(l.per)
	}

	w, found := l.windows[key]
	if !found || !now.Before(w.reset) {
		w = &window{reset: now.Add(l.per)}
		l.windows[key] = w
	}
	if w.used >= l.limit {
		return 0, w.reset, false
	}
	w.used++
	return l.limit - w.used, w.reset, true
}

// RateLimit allows limit requests per client address in each period. A
// non-positive limit disables the check.
func RateLimit(limit int, per time.Duration) func(http.Handler) http.Handler {
	l := newWindowLimiter(limit, per)
	return func(next http.Handler) http.Handler {
		if limit <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			now := time.Now()
			remaining, reset, ok := l.take(remoteHost(r), now)
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			if !ok {
				retry := int(math.Ceil(reset.Sub(now).Seconds()))
				w.Header().Set("Retry-After", strconv.Itoa(max(retry, 1)))
				writeDetail(w, r, http.StatusTooManyRequests, "Too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
