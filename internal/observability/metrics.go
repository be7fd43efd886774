package observability

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "codechart"

// AnalysisMetrics contains the Prometheus collectors for analysis runs. Each
// instance owns its registry so tests and parallel runs stay isolated.
type AnalysisMetrics struct {
	Registry *prometheus.Registry

	FilesTotal         *prometheus.CounterVec
	EdgesTotal         prometheus.Counter
	LLMRequestsTotal   *prometheus.CounterVec
	LLMRequestDuration *prometheus.HistogramVec
	LLMTokensTotal     *prometheus.CounterVec
	CacheLookupsTotal  *prometheus.CounterVec
	AgentRunDuration   *prometheus.HistogramVec
	AnalysesTotal      *prometheus.CounterVec
	ActiveWorkers      prometheus.Gauge
}

// NewAnalysisMetrics creates and registers the analysis collectors.
func NewAnalysisMetrics() *AnalysisMetrics {
	r := prometheus.NewRegistry()
	m := &AnalysisMetrics{
		Registry: r,

		FilesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "extract",
			Name:      "files_total",
			Help:      "Files processed by the extractor, by outcome",
		}, []string{"status"}),
		EdgesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "extract",
			Name:      "dependency_edges_total",
			Help:      "Resolved relative-import edges",
		}),
		LLMRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "requests_total",
			Help:      "LLM requests by provider, operation and status",
		}, []string{"provider", "operation", "status"}),
		LLMRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "request_duration_seconds",
			Help:      "LLM request latency",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"provider", "operation"}),
		LLMTokensTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "llm",
			Name:      "tokens_total",
			Help:      "Tokens by provider and direction",
		}, []string{"provider", "direction"}),
		CacheLookupsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "classify",
			Name:      "cache_lookups_total",
			Help:      "Classification cache lookups by result",
		}, []string{"result"}),
		AgentRunDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "agent",
			Name:      "run_duration_seconds",
			Help:      "Agent run duration",
			Buckets:   prometheus.DefBuckets,
		}, []string{"agent", "status"}),
		AnalysesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analyses_total",
			Help:      "Completed analysis runs by status",
		}, []string{"status"}),
		ActiveWorkers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_workers",
			Help:      "Extraction workers currently busy",
		}),
	}
	r.MustRegister(
		m.FilesTotal,
		m.EdgesTotal,
		m.LLMRequestsTotal,
		m.LLMRequestDuration,
		m.LLMTokensTotal,
		m.CacheLookupsTotal,
		m.AgentRunDuration,
		m.AnalysesTotal,
		m.ActiveWorkers,
	)
	return m
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *AnalysisMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// WriteTextfile dumps the registry in the node-exporter textfile format.
func (m *AnalysisMetrics) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.Registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}

// RecordFile records one extracted file.
func (m *AnalysisMetrics) RecordFile(degraded bool, edges int) {
	status := "ok"
	if degraded {
		status = "degraded"
	}
	m.FilesTotal.WithLabelValues(status).Inc()
	m.EdgesTotal.Add(float64(edges))
}

// RecordLLMRequest records an LLM request.
func (m *AnalysisMetrics) RecordLLMRequest(provider, operation string, duration time.Duration, inputTokens, outputTokens int, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.LLMRequestsTotal.WithLabelValues(provider, operation, status).Inc()
	m.LLMRequestDuration.WithLabelValues(provider, operation).Observe(duration.Seconds())
	m.LLMTokensTotal.WithLabelValues(provider, "input").Add(float64(inputTokens))
	m.LLMTokensTotal.WithLabelValues(provider, "output").Add(float64(outputTokens))
}

// RecordCacheLookup records a classification cache hit or miss.
func (m *AnalysisMetrics) RecordCacheLookup(hit bool) {
	if hit {
		m.CacheLookupsTotal.WithLabelValues("hit").Inc()
		return
	}
	m.CacheLookupsTotal.WithLabelValues("miss").Inc()
}

// RecordAgentRun records an agent execution.
func (m *AnalysisMetrics) RecordAgentRun(agent, status string, duration time.Duration) {
	m.AgentRunDuration.WithLabelValues(agent, status).Observe(duration.Seconds())
}

// RecordAnalysis records the outcome of a whole run.
func (m *AnalysisMetrics) RecordAnalysis(err error) {
	if err != nil {
		m.AnalysesTotal.WithLabelValues("failed").Inc()
		return
	}
	m.AnalysesTotal.WithLabelValues("completed").Inc()
}

var (
	globalMetrics *AnalysisMetrics
	metricsOnce   sync.Once
)

// Metrics returns the process-wide metrics instance.
func Metrics() *AnalysisMetrics {
	metricsOnce.Do(func() {
		globalMetrics = NewAnalysisMetrics()
	})
	return globalMetrics
}
