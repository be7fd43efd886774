// Package dashboard serves analyses over HTTP: trigger a run, follow its
// stages over Server-Sent Events, and browse the stored history.
package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/efebarandurmaz/codechart/internal/discovery"
	"github.com/efebarandurmaz/codechart/internal/history"
	"github.com/efebarandurmaz/codechart/internal/pipeline"
	"github.com/efebarandurmaz/codechart/internal/vcs"
)

const maxRequestBody = 1 << 20

// HistoryStore is the part of history.Store the API reads.
type HistoryStore interface {
	List(ctx context.Context) ([]history.Summary, error)
	Get(ctx context.Context, id string) (*history.Record, error)
	Delete(ctx context.Context, id string) error
}

// Config holds server tuning.
type Config struct {
	// MaxConcurrent bounds analyses running at once. Extra requests queue.
	MaxConcurrent int
	// RunTimeout bounds one background analysis.
	RunTimeout time.Duration
	// KeepAlive is the SSE ping interval.
	KeepAlive time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{MaxConcurrent: 2, RunTimeout: 15 * time.Minute, KeepAlive: 30 * time.Second}
}

// Server is the analysis API.
type Server struct {
	cfg      Config
	pipeline *pipeline.Pipeline
	history  HistoryStore
	store    *Store
	hub      *Hub
	emitter  *Emitter
	sem      *semaphore.Weighted
	logger   *slog.Logger

	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	closing atomic.Bool
	now     func() time.Time
}

// NewServer creates a server running analyses with p. hist may be nil, in
// which case the history routes answer 503.
func NewServer(cfg Config, p *pipeline.Pipeline, hist HistoryStore, logger *slog.Logger) *Server {
	def := DefaultConfig()
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = def.MaxConcurrent
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = def.RunTimeout
	}
	if cfg.KeepAlive <= 0 {
		cfg.KeepAlive = def.KeepAlive
	}
	if logger == nil {
		logger = slog.Default()
	}
	store := NewStore()
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		cfg:      cfg,
		pipeline: p,
		history:  hist,
		store:    store,
		hub:      hub,
		emitter:  NewEmitter(store, hub),
		sem:      semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
		now:      time.Now,
	}
}

// Store exposes the run tracker.
func (s *Server) Store() *Store { return s.store }

// Handler returns the routed API with CORS and request logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/analyses", s.handleAnalyze)
	mux.HandleFunc("GET /api/analyses", s.handleListAnalyses)
	mux.HandleFunc("GET /api/analyses/{id}", s.handleGetAnalysis)
	mux.HandleFunc("DELETE /api/analyses/{id}", s.handleDeleteAnalysis)
	mux.HandleFunc("GET /api/analyses/{id}/diagrams/{kind}", s.handleDiagram)
	mux.HandleFunc("GET /api/runs", s.handleListRuns)
	mux.HandleFunc("GET /api/runs/{id}", s.handleGetRun)
	mux.HandleFunc("GET /api/stats", s.handleStats)
	mux.HandleFunc("GET /api/events", s.handleEvents)
	return corsMiddleware(loggingMiddleware(s.logger, mux))
}

// Drain stops accepting analyses and waits for running ones. When ctx ends
// first the remaining runs are cancelled.
func (s *Server) Drain(ctx context.Context) error {
	s.closing.Store(true)
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		s.cancel()
		return nil
	case <-ctx.Done():
		s.cancel()
		<-done
		return ctx.Err()
	}
}

// handleAnalyze handles POST /api/analyses. With ?wait=true the response is
// the full result; otherwise the run is queued and 202 returned.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if s.closing.Load() {
		respondError(w, http.StatusServiceUnavailable, "server is shutting down")
		return
	}
	var body AnalyzeRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody)).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	source := body.Target()
	if source == "" {
		respondError(w, http.StatusBadRequest, "repo is required")
		return
	}
	wait, _ := strconv.ParseBool(r.URL.Query().Get("wait"))

	// The slot is released by execute.
	if !s.sem.TryAcquire(1) {
		respondError(w, http.StatusTooManyRequests,
			fmt.Sprintf("%d analyses already running", s.cfg.MaxConcurrent))
		return
	}

	at := s.now().UTC()
	repoName := vcs.RepoName(source)
	id := history.NewID(repoName, at)
	req := pipeline.Request{Source: source, AnalyzedAt: at}
	run := s.emitter.RunQueued(id, source, repoName)

	if wait {
		res, err := s.execute(r.Context(), id, req)
		if err != nil {
			respondError(w, statusFor(err), err.Error())
			return
		}
		respondJSON(w, http.StatusOK, res)
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, cancel := context.WithTimeout(s.ctx, s.cfg.RunTimeout)
		defer cancel()
		s.execute(ctx, id, req)
	}()
	w.Header().Set("Location", "/api/runs/"+id)
	respondJSON(w, http.StatusAccepted, run)
}

// execute runs one analysis. The caller holds a semaphore slot.
func (s *Server) execute(ctx context.Context, id string, req pipeline.Request) (*pipeline.Result, error) {
	defer s.sem.Release(1)

	s.emitter.RunStarted(id)
	p := *s.pipeline
	p.Observer = s.emitter
	p.Progress = nil
	res, err := p.Run(ctx, req)
	if err != nil {
		s.logger.Warn("dashboard: analysis failed", "id", id, "source", req.Source, "error", err)
		s.emitter.RunFailed(id, err)
		return nil, err
	}
	s.emitter.RunCompleted(id, res)
	return res, nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, discovery.ErrRootNotFound):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleListAnalyses(w http.ResponseWriter, r *http.Request) {
	if !s.requireHistory(w) {
		return
	}
	sums, err := s.history.List(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if sums == nil {
		sums = []history.Summary{}
	}
	respondJSON(w, http.StatusOK, sums)
}

func (s *Server) handleGetAnalysis(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.record(w, r)
	if !ok {
		return
	}
	if len(rec.Result) > 0 {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write(rec.Result)
		return
	}
	respondJSON(w, http.StatusOK, rec)
}

func (s *Server) handleDeleteAnalysis(w http.ResponseWriter, r *http.Request) {
	if !s.requireHistory(w) {
		return
	}
	if err := s.history.Delete(r.Context(), r.PathValue("id")); err != nil {
		respondError(w, historyStatus(err), err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleDiagram serves one stored diagram as Mermaid text.
func (s *Server) handleDiagram(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.record(w, r)
	if !ok {
		return
	}
	kind := r.PathValue("kind")
	content, found := rec.Diagrams[kind]
	if !found {
		respondError(w, http.StatusNotFound, fmt.Sprintf("no %s diagram for %s", kind, rec.ID))
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, content)
}

func (s *Server) record(w http.ResponseWriter, r *http.Request) (*history.Record, bool) {
	if !s.requireHistory(w) {
		return nil, false
	}
	rec, err := s.history.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		respondError(w, historyStatus(err), err.Error())
		return nil, false
	}
	return rec, true
}

func (s *Server) requireHistory(w http.ResponseWriter) bool {
	if s.history == nil {
		respondError(w, http.StatusServiceUnavailable, "history is disabled")
		return false
	}
	return true
}

func historyStatus(err error) int {
	if errors.Is(err, history.ErrNotFound) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.store.ListRuns())
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, ok := s.store.GetRun(r.PathValue("id"))
	if !ok {
		respondError(w, http.StatusNotFound, "run not found")
		return
	}
	respondJSON(w, http.StatusOK, run)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.store.Stats())
}

// handleEvents streams run events. ?run=<id> limits the stream to one run.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	client := s.hub.Subscribe(r.URL.Query().Get("run"))
	defer s.hub.Unsubscribe(client)

	hello, _ := json.Marshal(&Event{Type: EventConnected, Timestamp: s.now(), RunID: client.RunID})
	fmt.Fprintf(w, "data: %s\n\n", hello)
	flusher.Flush()

	ticker := time.NewTicker(s.cfg.KeepAlive)
	defer ticker.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case <-s.ctx.Done():
			return
		case data, ok := <-client.Events():
			if !ok {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		case <-ticker.C:
			io.WriteString(w, ": ping\n\n")
			flusher.Flush()
		}
	}
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("dashboard: encode response", "error", err)
	}
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func loggingMiddleware(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logger.Debug("http request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}
