package middleware

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/civicfix/api/internal/model"
)

// RateLimiter is a fixed-window request counter. Each key gets Limit
// requests per Window; the window resets as a whole rather than refilling
// gradually.
type RateLimiter struct {
	mu      sync.Mutex
	windows map[string]*window
	limit   int
	window  time.Duration
	stopCh  chan struct{}
}

type window struct {
	count    int
	resetsAt time.Time
}

// RateLimitConfig holds rate limiter configuration. Zero values fall back to
// 120 requests per minute with a five minute cleanup sweep.
type RateLimitConfig struct {
	Limit   int
	Window  time.Duration
	Cleanup time.Duration
}

// NewRateLimiter creates a rate limiter and starts its cleanup sweep
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	if cfg.Limit == 0 {
		cfg.Limit = 120
	}
	if cfg.Window == 0 {
		cfg.Window = time.Minute
	}
	if cfg.Cleanup == 0 {
		cfg.Cleanup = 5 * time.Minute
	}

	rl := &RateLimiter{
		windows: make(map[string]*window),
		limit:   cfg.Limit,
		window:  cfg.Window,
		stopCh:  make(chan struct{}),
	}
	go rl.sweep(cfg.Cleanup)
	return rl
}

// Stop terminates the cleanup goroutine
func (rl *RateLimiter) Stop() {
	close(rl.stopCh)
}

func (rl *RateLimiter) sweep(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.mu.Lock()
			now := time.Now()
			for key, w := range rl.windows {
				if w.resetsAt.Before(now) {
					delete(rl.windows, key)
				}
			}
			rl.mu.Unlock()
		case <-rl.stopCh:
			return
		}
	}
}

// Allow records a request for key and reports whether it is within the limit
func (rl *RateLimiter) Allow(key string) (allowed bool, remaining int, resetsAt time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	w, ok := rl.windows[key]
	if !ok || w.resetsAt.Before(now) {
		w = &window{resetsAt: now.Add(rl.window)}
		rl.windows[key] = w
	}

	if w.count >= rl.limit {
		return false, 0, w.resetsAt
	}

	w.count++
	return true, rl.limit - w.count, w.resetsAt
}

// RateLimit limits requests per user when authenticated, per client IP
// otherwise.
func RateLimit(limiter *RateLimiter) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := GetUserID(r.Context())
			if key == "" {
				key = clientIP(r)
			}

			allowed, remaining, resetsAt := limiter.Allow(key)

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limiter.limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetsAt.Unix(), 10))

			if !allowed {
				retryAfter := int(time.Until(resetsAt).Seconds())
				if retryAfter < 1 {
					retryAfter = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				model.NewRateLimitError(retryAfter).WriteJSON(w)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// clientIP strips the port from RemoteAddr so one client maps to one bucket
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
