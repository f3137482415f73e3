package monitoring

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	RequestSize     *prometheus.HistogramVec
	ResponseSize    *prometheus.HistogramVec

	// Workspace metrics
	ActiveWorkspaces prometheus.Gauge
	WorkspacesTotal  prometheus.Counter

	// Preview metrics
	BoundariesBuilt  prometheus.Counter
	BoundariesFailed prometheus.Counter
	Messages         *prometheus.CounterVec
	MessagesDropped  *prometheus.CounterVec

	// WebSocket metrics
	WSConnections prometheus.Gauge
	WSMessages    *prometheus.CounterVec

	startTime time.Time

	// Snapshot for JSON API - track current values
	snapshot Snapshot
	mu       sync.RWMutex
}

// Snapshot holds current metric values for the JSON health endpoint
type Snapshot struct {
	TotalRequests     int64   `json:"total_requests"`
	TotalErrors       int64   `json:"total_errors"`
	ActiveWorkspaces  int64   `json:"active_workspaces"`
	ActiveConnections int64   `json:"active_connections"`
	AvgDurationMS     float64 `json:"avg_duration_ms"`
	UptimeSeconds     float64 `json:"uptime_seconds"`
}

// NewMetrics creates a metrics collector on its own registry, so several
// instances can coexist (tests, embedded servers).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	m := &Metrics{
		registry:  reg,
		startTime: time.Now(),

		// HTTP metrics
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "playground_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "playground_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		RequestSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "playground_http_request_size_bytes",
				Help:    "HTTP request size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000, 10000000},
			},
			[]string{"method", "path"},
		),
		ResponseSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "playground_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: []float64{100, 1000, 10000, 100000, 1000000, 10000000},
			},
			[]string{"method", "path"},
		),

		// Workspace metrics
		ActiveWorkspaces: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "playground_workspaces_active",
				Help: "Number of live workspaces",
			},
		),
		WorkspacesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "playground_workspaces_total",
				Help: "Total number of workspaces created",
			},
		),

		// Preview metrics
		BoundariesBuilt: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "playground_boundaries_built_total",
				Help: "Preview boundaries constructed",
			},
		),
		BoundariesFailed: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "playground_boundaries_failed_total",
				Help: "Preview boundaries that could not be constructed",
			},
		),
		Messages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "playground_boundary_messages_total",
				Help: "Boundary protocol messages by direction and type",
			},
			[]string{"direction", "type"},
		),
		MessagesDropped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "playground_boundary_messages_dropped_total",
				Help: "Boundary messages ignored by the host",
			},
			[]string{"reason"},
		),

		// WebSocket metrics
		WSConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "playground_ws_connections",
				Help: "Number of active WebSocket connections",
			},
		),
		WSMessages: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "playground_ws_messages_total",
				Help: "Total number of WebSocket messages",
			},
			[]string{"direction", "type"},
		),
	}

	factory.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "playground_uptime_seconds",
			Help: "Server uptime in seconds",
		},
		func() float64 { return time.Since(m.startTime).Seconds() },
	)

	return m
}

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration, reqSize, respSize int64) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	m.RequestSize.WithLabelValues(method, path).Observe(float64(reqSize))
	m.ResponseSize.WithLabelValues(method, path).Observe(float64(respSize))

	m.mu.Lock()
	m.snapshot.TotalRequests++
	m.snapshot.AvgDurationMS += (float64(duration.Microseconds())/1000 - m.snapshot.AvgDurationMS) / float64(m.snapshot.TotalRequests)
	if status != "" && (status[0] == '4' || status[0] == '5') {
		m.snapshot.TotalErrors++
	}
	m.mu.Unlock()
}

// RecordWSMessage records a WebSocket message
func (m *Metrics) RecordWSMessage(direction, msgType string) {
	m.WSMessages.WithLabelValues(direction, msgType).Inc()
}

// IncWSConnections increments WebSocket connections
func (m *Metrics) IncWSConnections() {
	m.WSConnections.Inc()
	m.mu.Lock()
	m.snapshot.ActiveConnections++
	m.mu.Unlock()
}

// DecWSConnections decrements WebSocket connections
func (m *Metrics) DecWSConnections() {
	m.WSConnections.Dec()
	m.mu.Lock()
	m.snapshot.ActiveConnections--
	m.mu.Unlock()
}

// WorkspacesActive sets the live workspace gauge.
func (m *Metrics) WorkspacesActive(n int) {
	m.ActiveWorkspaces.Set(float64(n))
	m.mu.Lock()
	if int64(n) > m.snapshot.ActiveWorkspaces {
		m.WorkspacesTotal.Add(float64(int64(n) - m.snapshot.ActiveWorkspaces))
	}
	m.snapshot.ActiveWorkspaces = int64(n)
	m.mu.Unlock()
}

// MessageReceived counts a boundary-to-host message.
func (m *Metrics) MessageReceived(typ string) {
	m.Messages.WithLabelValues("inbound", typ).Inc()
}

// MessageSent counts a host-to-boundary command.
func (m *Metrics) MessageSent(typ string) {
	m.Messages.WithLabelValues("outbound", typ).Inc()
}

// MessageDropped counts an ignored message.
func (m *Metrics) MessageDropped(reason string) {
	m.MessagesDropped.WithLabelValues(reason).Inc()
}

// BoundaryBuilt counts a constructed boundary.
func (m *Metrics) BoundaryBuilt() { m.BoundariesBuilt.Inc() }

// BoundaryFailed counts a construction failure.
func (m *Metrics) BoundaryFailed() { m.BoundariesFailed.Inc() }

// Snapshot returns current values for the JSON API.
func (m *Metrics) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := m.snapshot
	s.UptimeSeconds = time.Since(m.startTime).Seconds()
	return s
}
