package httpx

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aussiebroadwan/authcore/pkg/slogx"
	"golang.org/x/time/rate"
)

// RateLimit is a token bucket that refills Requests tokens every Window and
// holds at most Burst.
type RateLimit struct {
	Requests int
	Window   time.Duration
	Burst    int
}

func (l RateLimit) limit() rate.Limit {
	if l.Requests <= 0 || l.Window <= 0 {
		return 0
	}
	return rate.Limit(float64(l.Requests) / l.Window.Seconds())
}

// Limiter keeps one bucket per key. A bucket idle long enough to have
// refilled is dropped on the next sweep.
type Limiter struct {
	limit RateLimit

	mu        sync.Mutex
	buckets   map[string]*bucket
	idle      time.Duration
	lastSweep time.Time
}

type bucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

func NewLimiter(l RateLimit) *Limiter {
	idle := l.Window
	if r := l.limit(); r > 0 {
		idle = max(idle, time.Duration(float64(l.Burst)/float64(r)*float64(time.Second)))
	}
	return &Limiter{
		limit:     l,
		buckets:   make(map[string]*bucket),
		idle:      idle,
		lastSweep: time.Now(),
	}
}

func (l *Limiter) Limit() RateLimit { return l.limit }

// Allow takes a token from the bucket of key. When the bucket is empty it
// returns false and the wait until the next token.
func (l *Limiter) Allow(key string) (bool, time.Duration) {
	now := time.Now()

	l.mu.Lock()
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(l.limit.limit(), l.limit.Burst)}
		l.buckets[key] = b
	}
	b.lastSeen = now
	l.sweep(now)
	l.mu.Unlock()

	res := b.lim.ReserveN(now, 1)
	if !res.OK() {
		return false, l.limit.Window
	}
	if wait := res.DelayFrom(now); wait > 0 {
		res.CancelAt(now)
		return false, wait
	}
	return true, 0
}

// Len reports the number of live buckets.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// sweep must be called with mu held.
func (l *Limiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < l.idle {
		return
	}
	l.lastSweep = now
	for key, b := range l.buckets {
		if now.Sub(b.lastSeen) >= l.idle {
			delete(l.buckets, key)
		}
	}
}

// WriteRateLimited answers 429 with the limit that was hit and when to
// retry.
func WriteRateLimited(w http.ResponseWriter, l RateLimit, retryAfter time.Duration) {
	secs := max(int(math.Ceil(retryAfter.Seconds())), 1)
	w.Header().Set("Retry-After", strconv.Itoa(secs))
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(l.Requests))
	w.Header().Set("X-RateLimit-Window", l.Window.String())
	WriteJSON(w, http.StatusTooManyRequests, map[string]string{
		"error":             "rate_limit_exceeded",
		"error_description": "Too many requests. Please try again later.",
	})
}

// ClientIP returns the caller address. A proxy supplied X-Forwarded-For or
// X-Real-IP wins over the socket address.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// RateLimitKeyFunc picks the bucket a request is charged to.
type RateLimitKeyFunc func(*http.Request) string

// RateLimitMiddleware charges every request to the bucket key returns and
// answers 429 once it is empty.
func RateLimitMiddleware(l *Limiter, key RateLimitKeyFunc) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			k := key(r)
			if ok, wait := l.Allow(k); !ok {
				slogx.FromContext(r.Context()).Warn("rate limit exceeded",
					"key", k,
					"endpoint", r.URL.Path,
					"retry_after", wait.String(),
				)
				WriteRateLimited(w, l.Limit(), wait)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RateLimitByIP throttles each caller address.
func RateLimitByIP(l *Limiter) Middleware {
	return RateLimitMiddleware(l, func(r *http.Request) string { return "ip:" + ClientIP(r) })
}
