// Package health exposes liveness and readiness endpoints for the
// gateway. Liveness means the process serves requests; readiness
// additionally requires the most recent backend probe to have
// succeeded, since a gateway without its backend cannot compose orders.
package health

import (
	"context"
	"net/http"
	"sync"
	"time"
)

// ProbeFunc checks one dependency, returning nil when it is reachable.
type ProbeFunc func(ctx context.Context) error

// Service tracks readiness for the gateway.
type Service struct {
	probe   ProbeFunc
	timeout time.Duration

	mu      sync.Mutex
	ready   bool
	lastErr error
	cancel  context.CancelFunc
}

// New creates a health service with the given dependency probe. The
// service starts not ready; call SetReady once initialization is done.
func New(probe ProbeFunc, timeout time.Duration) *Service {
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &Service{probe: probe, timeout: timeout}
}

// Start probes the dependency at the given interval until Stop or
// context cancellation.
func (s *Service) Start(ctx context.Context, interval time.Duration) {
	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		s.runProbe(ctx)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.runProbe(ctx)
			}
		}
	}()
}

func (s *Service) runProbe(ctx context.Context) {
	if s.probe == nil {
		return
	}
	probeCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	err := s.probe(probeCtx)
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
}

// SetReady flips the manual readiness flag: true once initialization
// completes, false while draining during shutdown.
func (s *Service) SetReady(ready bool) {
	s.mu.Lock()
	s.ready = ready
	s.mu.Unlock()
}

// Stop halts background probing.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

// LiveEndpoint handles /livez: the process is alive.
func (s *Service) LiveEndpoint(w http.ResponseWriter, _ *http.Request) {
	writeStatus(w, http.StatusOK, `{"status":"ok"}`)
}

// ReadyEndpoint handles /readyz: ready iff marked ready and the last
// backend probe succeeded.
func (s *Service) ReadyEndpoint(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	ready, lastErr := s.ready, s.lastErr
	s.mu.Unlock()

	if !ready {
		writeStatus(w, http.StatusServiceUnavailable, `{"status":"not ready"}`)
		return
	}
	if lastErr != nil {
		writeStatus(w, http.StatusServiceUnavailable, `{"status":"backend unreachable"}`)
		return
	}
	writeStatus(w, http.StatusOK, `{"status":"ok"}`)
}

func writeStatus(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}
