// Package health exposes liveness and readiness probe endpoints. Registered
// checks run on a shared background ticker; the probe handlers only read the
// last recorded result, so probing stays cheap and never blocks on a slow
// dependency.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// Check reports nil while the component it watches is healthy.
type Check func(ctx context.Context) error

// Kind routes a check to the liveness or readiness probe.
type Kind int

const (
	Liveness Kind = iota
	Readiness
)

type check struct {
	name    string
	kind    Kind
	timeout time.Duration
	fn      Check

	mu      sync.Mutex
	lastErr error
}

func (c *check) run(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	err := c.fn(ctx)

	c.mu.Lock()
	c.lastErr = err
	c.mu.Unlock()
}

func (c *check) err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Health owns the probe state. Register checks before Start; the service
// begins not-ready and must be flipped with SetReady once wiring completes.
type Health struct {
	ready  atomic.Bool
	checks []*check
	cancel context.CancelFunc
}

func New() *Health {
	return &Health{}
}

// Register adds a named check with a per-run timeout. Not safe to call after
// Start.
func (h *Health) Register(name string, kind Kind, timeout time.Duration, fn Check) {
	h.checks = append(h.checks, &check{name: name, kind: kind, timeout: timeout, fn: fn})
}

// Start runs every registered check once immediately, then on each interval
// tick until Stop or context cancellation.
func (h *Health) Start(ctx context.Context, interval time.Duration) {
	ctx, h.cancel = context.WithCancel(ctx)
	for _, c := range h.checks {
		c.run(ctx)
	}
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				for _, c := range h.checks {
					c.run(ctx)
				}
			}
		}
	}()
}

// Stop cancels the background runner. Safe to call more than once.
func (h *Health) Stop() {
	if h.cancel != nil {
		h.cancel()
	}
}

// SetReady flips the manual readiness gate. Flip it false before a graceful
// drain so load balancers stop routing new traffic.
func (h *Health) SetReady(ready bool) {
	h.ready.Store(ready)
}

type probeResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

// LiveEndpoint serves the /livez probe: 200 while every liveness check
// passes, 503 with the failing checks otherwise.
func (h *Health) LiveEndpoint(w http.ResponseWriter, _ *http.Request) {
	h.writeProbe(w, h.failures(Liveness))
}

// ReadyEndpoint serves the /readyz probe: 200 only when the service has been
// marked ready and every readiness check passes.
func (h *Health) ReadyEndpoint(w http.ResponseWriter, _ *http.Request) {
	failures := h.failures(Readiness)
	if !h.ready.Load() {
		failures["service"] = "not ready"
	}
	h.writeProbe(w, failures)
}

func (h *Health) failures(kind Kind) map[string]string {
	out := make(map[string]string)
	for _, c := range h.checks {
		if c.kind != kind {
			continue
		}
		if err := c.err(); err != nil {
			out[c.name] = err.Error()
		}
	}
	return out
}

func (h *Health) writeProbe(w http.ResponseWriter, failures map[string]string) {
	w.Header().Set("Content-Type", "application/json")
	resp := probeResponse{Status: "ok"}
	code := http.StatusOK
	if len(failures) > 0 {
		resp.Status = "unhealthy"
		resp.Checks = failures
		code = http.StatusServiceUnavailable
	}
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(resp)
}
