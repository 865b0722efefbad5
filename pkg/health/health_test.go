package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func probe(h http.HandlerFunc) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	h(w, httptest.NewRequest(http.MethodGet, "/", nil))
	return w
}

func TestReadinessGate(t *testing.T) {
	h := New()

	w := probe(h.ReadyEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "not ready")

	h.SetReady(true)
	assert.Equal(t, http.StatusOK, probe(h.ReadyEndpoint).Code)

	h.SetReady(false)
	assert.Equal(t, http.StatusServiceUnavailable, probe(h.ReadyEndpoint).Code)
}

func TestFailingReadinessCheck(t *testing.T) {
	h := New()
	h.SetReady(true)

	broken := errors.New("connection refused")
	h.Register("postgres", Readiness, time.Second, func(context.Context) error {
		return broken
	})
	h.Register("goroutines", Liveness, time.Second, GoroutineCountCheck(1_000_000))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.Start(ctx, time.Minute)
	defer h.Stop()

	w := probe(h.ReadyEndpoint)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "connection refused")

	// A broken readiness dependency must not fail liveness.
	assert.Equal(t, http.StatusOK, probe(h.LiveEndpoint).Code)
}

func TestGoroutineCountCheck(t *testing.T) {
	assert.NoError(t, GoroutineCountCheck(1_000_000)(context.Background()))
	assert.Error(t, GoroutineCountCheck(0)(context.Background()))
}

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

func TestPingCheck(t *testing.T) {
	assert.NoError(t, PingCheck(fakePinger{})(context.Background()))

	err := PingCheck(fakePinger{err: errors.New("down")})(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "down")
}
