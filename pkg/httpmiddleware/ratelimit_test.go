package httpmiddleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiterAllow(t *testing.T) {
	l := newRateLimiter(3, time.Minute)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	now := base
	l.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		ok, _ := l.allow("a")
		require.True(t, ok, "request %d should pass", i)
	}
	ok, remaining := l.allow("a")
	assert.False(t, ok)
	assert.Zero(t, remaining)

	// Other clients are tracked independently.
	ok, _ = l.allow("b")
	assert.True(t, ok)

	// A full window later the previous count has no weight left.
	now = base.Add(2 * time.Minute)
	ok, _ = l.allow("a")
	assert.True(t, ok)
}

func TestRateLimiterSlidingBoundary(t *testing.T) {
	l := newRateLimiter(2, time.Minute)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	now := base
	l.now = func() time.Time { return now }

	ok, _ := l.allow("a")
	require.True(t, ok)
	ok, _ = l.allow("a")
	require.True(t, ok)

	// Just past the boundary the previous window still carries most of its
	// weight, so the client stays limited.
	now = base.Add(time.Minute + time.Second)
	ok, _ = l.allow("a")
	assert.False(t, ok)
}

func TestRateLimiterSweep(t *testing.T) {
	l := newRateLimiter(1, time.Minute)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	now := base
	l.now = func() time.Time { return now }

	l.allow("stale")
	now = base.Add(5 * time.Minute)
	l.allow("fresh")
	l.sweep()

	l.mu.Lock()
	defer l.mu.Unlock()
	assert.NotContains(t, l.clients, "stale")
	assert.Contains(t, l.clients, "fresh")
}

func TestRateLimitMiddleware(t *testing.T) {
	h := Wrap(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}), RateLimit(RateLimitConfig{Limit: 2, Window: time.Minute}))

	do := func() *httptest.ResponseRecorder {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r.RemoteAddr = "10.0.0.1:1234"
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		return w
	}

	assert.Equal(t, http.StatusOK, do().Code)
	assert.Equal(t, http.StatusOK, do().Code)

	w := do()
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.JSONEq(t, `{"code":429,"message":"rate limit exceeded"}`, w.Body.String())
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "192.0.2.7:4242"
	assert.Equal(t, "192.0.2.7", clientIP(r))

	r.Header.Set("X-Real-IP", "198.51.100.9")
	assert.Equal(t, "198.51.100.9", clientIP(r))

	r.Header.Set("X-Forwarded-For", " 203.0.113.4, 10.0.0.1")
	assert.Equal(t, "203.0.113.4", clientIP(r))
}
