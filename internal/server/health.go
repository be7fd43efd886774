// Package server exposes the worker's health probes and metrics over HTTP and
// coordinates an ordered shutdown.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// HealthStatus is the state reported for a dependency or the process.
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
	HealthStatusDegraded  HealthStatus = "degraded"
)

// HealthCheck is the outcome of one probe.
type HealthCheck struct {
	Name    string       `json:"name"`
	Status  HealthStatus `json:"status"`
	Message string       `json:"message,omitempty"`
}

// HealthResponse is the body of every probe endpoint.
type HealthResponse struct {
	Status    HealthStatus  `json:"status"`
	Timestamp time.Time     `json:"timestamp"`
	Version   string        `json:"version,omitempty"`
	Checks    []HealthCheck `json:"checks,omitempty"`
}

// HealthChecker probes one dependency.
type HealthChecker func(ctx context.Context) HealthCheck

// HealthServer serves /healthz, /readyz, /livez and optionally /metrics.
type HealthServer struct {
	mu      sync.RWMutex
	checks  map[string]HealthChecker
	version string
	ready   bool
	metrics http.Handler
	srv     *http.Server
}

// NewHealthServer creates a server. metrics may be nil.
func NewHealthServer(version string, metrics http.Handler) *HealthServer {
	return &HealthServer{
		checks:  make(map[string]HealthChecker),
		version: version,
		metrics: metrics,
	}
}

// RegisterCheck adds or replaces the probe for name.
func (s *HealthServer) RegisterCheck(name string, checker HealthChecker) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checks[name] = checker
}

// SetReady marks the worker as ready to take tasks.
func (s *HealthServer) SetReady(ready bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ready = ready
}

// Handler returns the probe mux.
func (s *HealthServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)
	mux.HandleFunc("/livez", s.handleLive)
	if s.metrics != nil {
		mux.Handle("/metrics", s.metrics)
	}
	return mux
}

// Start listens on addr and serves in the background. It returns once the
// listener is bound.
func (s *HealthServer) Start(addr string) (net.Addr, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	srv := &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	s.mu.Lock()
	s.srv = srv
	s.mu.Unlock()

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.SetReady(false)
		}
	}()
	return ln.Addr(), nil
}

// Shutdown stops a started server.
func (s *HealthServer) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	srv := s.srv
	s.ready = false
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// runChecks probes every registered dependency in parallel and returns the
// results sorted by name.
func (s *HealthServer) runChecks(ctx context.Context) []HealthCheck {
	s.mu.RLock()
	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	probes := make([]HealthChecker, len(names))
	for i, name := range names {
		probes[i] = s.checks[name]
	}
	s.mu.RUnlock()

	results := make([]HealthCheck, len(names))
	var g errgroup.Group
	for i := range probes {
		g.Go(func() error {
			results[i] = probes[i](ctx)
			results[i].Name = names[i]
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// overall folds check results: any unhealthy wins, then any degraded.
func overall(checks []HealthCheck) HealthStatus {
	status := HealthStatusHealthy
	for _, c := range checks {
		switch c.Status {
		case HealthStatusUnhealthy:
			return HealthStatusUnhealthy
		case HealthStatusDegraded:
			status = HealthStatusDegraded
		}
	}
	return status
}

func (s *HealthServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := s.runChecks(ctx)
	resp := s.response(overall(checks))
	resp.Checks = checks
	writeJSON(w, resp)
}

func (s *HealthServer) handleReady(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	ready := s.ready
	s.mu.RUnlock()

	if !ready {
		writeJSON(w, s.response(HealthStatusUnhealthy))
		return
	}
	writeJSON(w, s.response(HealthStatusHealthy))
}

func (s *HealthServer) handleLive(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, s.response(HealthStatusHealthy))
}

func (s *HealthServer) response(status HealthStatus) HealthResponse {
	return HealthResponse{Status: status, Timestamp: time.Now().UTC(), Version: s.version}
}

// writeJSON answers 503 for an unhealthy response and 200 otherwise.
func writeJSON(w http.ResponseWriter, resp HealthResponse) {
	code := http.StatusOK
	if resp.Status == HealthStatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(resp)
}

// RequiredCheck reports unhealthy when ping fails. Use it for dependencies
// the worker cannot run without, such as the Temporal frontend.
func RequiredCheck(ping func(ctx context.Context) error) HealthChecker {
	return func(ctx context.Context) HealthCheck {
		if err := ping(ctx); err != nil {
			return HealthCheck{Status: HealthStatusUnhealthy, Message: err.Error()}
		}
		return HealthCheck{Status: HealthStatusHealthy, Message: "OK"}
	}
}

// OptionalCheck reports degraded when ping fails. Graph, vector and history
// stores are optional: analyses still complete without them.
func OptionalCheck(ping func(ctx context.Context) error) HealthChecker {
	return func(ctx context.Context) HealthCheck {
		if err := ping(ctx); err != nil {
			return HealthCheck{Status: HealthStatusDegraded, Message: err.Error()}
		}
		return HealthCheck{Status: HealthStatusHealthy, Message: "OK"}
	}
}

// ProviderCheck reports which LLM provider classifies files, degraded when
// none is configured.
func ProviderCheck(name string) HealthChecker {
	return func(ctx context.Context) HealthCheck {
		if name == "" {
			return HealthCheck{Status: HealthStatusDegraded, Message: "no LLM provider, files fall back to the default category"}
		}
		return HealthCheck{Status: HealthStatusHealthy, Message: "LLM provider configured: " + name}
	}
}
