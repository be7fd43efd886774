package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"sync"
	"syscall"
	"time"
)

// Hook priorities. Lower runs first.
const (
	PriorityHTTP     = 10
	PriorityWorker   = 20
	PriorityTracing  = 80
	PriorityMetrics  = 85
	PriorityDatabase = 90
)

// ShutdownHook is a function called during shutdown.
type ShutdownHook struct {
	Name     string
	Priority int
	Fn       func(ctx context.Context) error
}

// ShutdownHandler runs registered hooks in priority order once.
type ShutdownHandler struct {
	mu      sync.Mutex
	hooks   []ShutdownHook
	timeout time.Duration
	logger  *slog.Logger
	once    sync.Once
	err     error
}

// NewShutdownHandler creates a handler. A zero timeout means 30s.
func NewShutdownHandler(timeout time.Duration, logger *slog.Logger) *ShutdownHandler {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ShutdownHandler{timeout: timeout, logger: logger}
}

// RegisterHook adds a shutdown hook. Hooks with equal priority run in
// registration order.
func (s *ShutdownHandler) RegisterHook(name string, priority int, fn func(ctx context.Context) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, ShutdownHook{Name: name, Priority: priority, Fn: fn})
	sort.SliceStable(s.hooks, func(i, j int) bool { return s.hooks[i].Priority < s.hooks[j].Priority })
}

// Shutdown runs every hook under one shared timeout. A failing hook does not
// stop the others; their errors are joined. Later calls return the first
// result.
func (s *ShutdownHandler) Shutdown() error {
	s.once.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()

		s.mu.Lock()
		hooks := make([]ShutdownHook, len(s.hooks))
		copy(hooks, s.hooks)
		s.mu.Unlock()

		var errs []error
		for _, hook := range hooks {
			if err := hook.Fn(ctx); err != nil {
				s.logger.Error("shutdown hook failed", "hook", hook.Name, "error", err)
				errs = append(errs, fmt.Errorf("%s: %w", hook.Name, err))
				continue
			}
			s.logger.Debug("shutdown hook done", "hook", hook.Name)
		}
		s.err = errors.Join(errs...)
	})
	return s.err
}

// WaitForSignal blocks until SIGINT or SIGTERM arrives or ctx ends, then
// runs Shutdown.
func (s *ShutdownHandler) WaitForSignal(ctx context.Context) error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	select {
	case sig := <-sigCh:
		s.logger.Info("shutting down", "signal", sig.String())
	case <-ctx.Done():
		s.logger.Info("shutting down", "reason", ctx.Err())
	}
	return s.Shutdown()
}
