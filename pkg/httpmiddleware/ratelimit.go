package httpmiddleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RateLimitConfig configures the per-client request limiter.
type RateLimitConfig struct {
	// Limit is the maximum number of requests allowed per Window.
	Limit int

	// Window is the measurement interval. Defaults to one minute.
	Window time.Duration

	// KeyFunc extracts the client key from a request. Defaults to the client
	// IP (X-Forwarded-For, then X-Real-IP, then RemoteAddr).
	KeyFunc func(*http.Request) string
}

// clientWindow tracks one client's count in the current and previous window.
// The effective rate is a weighted blend of the two, which smooths the
// boundary between windows.
type clientWindow struct {
	prev     int
	curr     int
	windowAt time.Time
	seenAt   time.Time
}

type rateLimiter struct {
	mu      sync.Mutex
	clients map[string]*clientWindow
	limit   int
	window  time.Duration
	now     func() time.Time
}

func newRateLimiter(limit int, window time.Duration) *rateLimiter {
	return &rateLimiter{
		clients: make(map[string]*clientWindow),
		limit:   limit,
		window:  window,
		now:     time.Now,
	}
}

// allow reports whether the request identified by key may proceed, plus the
// remaining budget for rate-limit headers.
func (l *rateLimiter) allow(key string) (ok bool, remaining int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	c := l.clients[key]
	if c == nil {
		c = &clientWindow{windowAt: now}
		l.clients[key] = c
	}
	c.seenAt = now

	// Roll the window forward.
	if elapsed := now.Sub(c.windowAt); elapsed >= l.window {
		if elapsed >= 2*l.window {
			c.prev = 0
		} else {
			c.prev = c.curr
		}
		c.curr = 0
		c.windowAt = c.windowAt.Add(elapsed.Truncate(l.window))
	}

	frac := float64(now.Sub(c.windowAt)) / float64(l.window)
	weighted := float64(c.prev)*(1-frac) + float64(c.curr)

	if weighted >= float64(l.limit) {
		return false, 0
	}
	c.curr++
	remaining = l.limit - int(weighted) - 1
	if remaining < 0 {
		remaining = 0
	}
	return true, remaining
}

// sweep drops clients idle for more than two windows.
func (l *rateLimiter) sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := l.now().Add(-2 * l.window)
	for key, c := range l.clients {
		if c.seenAt.Before(cutoff) {
			delete(l.clients, key)
		}
	}
}

// RateLimit limits each client to cfg.Limit requests per cfg.Window using a
// sliding window counter. Rejected requests get a 429 with a Retry-After
// header. Idle client state is swept periodically.
func RateLimit(cfg RateLimitConfig) Middleware {
	if cfg.Window <= 0 {
		cfg.Window = time.Minute
	}
	keyFunc := cfg.KeyFunc
	if keyFunc == nil {
		keyFunc = clientIP
	}

	l := newRateLimiter(cfg.Limit, cfg.Window)
	go func() {
		t := time.NewTicker(cfg.Window)
		defer t.Stop()
		for range t.C {
			l.sweep()
		}
	}()

	limitHeader := strconv.Itoa(cfg.Limit)
	retryAfter := strconv.Itoa(int(cfg.Window.Seconds()))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ok, remaining := l.allow(keyFunc(r))
			w.Header().Set("X-RateLimit-Limit", limitHeader)
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			if !ok {
				w.Header().Set("Retry-After", retryAfter)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"code":429,"message":"rate limit exceeded"}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
