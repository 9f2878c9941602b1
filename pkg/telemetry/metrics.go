package telemetry

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects Prometheus metrics for the deployer. A disabled instance
// is a safe no-op so callers never need nil checks.
type Metrics struct {
	config MetricsConfig

	componentsCompleted *prometheus.CounterVec
	componentDuration   *prometheus.HistogramVec
	tasksExecuted       *prometheus.CounterVec
	watchEvents         *prometheus.CounterVec
	httpRequests        *prometheus.CounterVec
	activeClusters      prometheus.Gauge
	pendingTasks        prometheus.Gauge

	registry *prometheus.Registry
	server   *http.Server
}

// NewMetrics creates a metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		return &Metrics{config: cfg}, nil
	}

	registry := prometheus.NewRegistry()
	namespace := cfg.Namespace

	m := &Metrics{
		config:   cfg,
		registry: registry,

		componentsCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "components_completed_total",
				Help:      "Components that reached a terminal state",
			},
			[]string{"kind", "status"},
		),
		componentDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "component_duration_seconds",
				Help:      "Time from first task execution to terminal state",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"kind", "status"},
		),
		tasksExecuted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "tasks_executed_total",
				Help:      "Tasks dispatched by the scheduler",
			},
			[]string{"kind", "mode"},
		),
		watchEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "watch_events_total",
				Help:      "Events received from cluster watch streams",
			},
			[]string{"cluster"},
		),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Requests issued against the Kubernetes API",
			},
			[]string{"method", "status"},
		),
		activeClusters: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_clusters",
				Help:      "Clusters currently executing",
			},
		),
		pendingTasks: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "pending_tasks",
				Help:      "Tasks not yet in a terminal state",
			},
		),
	}

	collectors := []prometheus.Collector{
		m.componentsCompleted,
		m.componentDuration,
		m.tasksExecuted,
		m.watchEvents,
		m.httpRequests,
		m.activeClusters,
		m.pendingTasks,
	}
	for _, c := range collectors {
		if err := registry.Register(c); err != nil {
			return nil, fmt.Errorf("telemetry: register collector: %w", err)
		}
	}

	return m, nil
}

// Serve starts the /metrics HTTP listener when an address is configured.
func (m *Metrics) Serve() error {
	if !m.config.Enabled || m.config.ListenAddress == "" {
		return nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))

	m.server = &http.Server{
		Addr:              m.config.ListenAddress,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		_ = m.server.ListenAndServe()
	}()

	return nil
}

// Close stops the metrics listener if one is running.
func (m *Metrics) Close() error {
	if m.server == nil {
		return nil
	}
	return m.server.Close()
}

// ComponentCompleted records a component reaching a terminal state.
func (m *Metrics) ComponentCompleted(kind, status string, elapsed time.Duration) {
	if m.componentsCompleted == nil {
		return
	}
	m.componentsCompleted.WithLabelValues(kind, status).Inc()
	m.componentDuration.WithLabelValues(kind, status).Observe(elapsed.Seconds())
}

// TaskExecuted records a task dispatch.
func (m *Metrics) TaskExecuted(kind, mode string) {
	if m.tasksExecuted == nil {
		return
	}
	m.tasksExecuted.WithLabelValues(kind, mode).Inc()
}

// WatchEvent records one event received from a cluster stream.
func (m *Metrics) WatchEvent(cluster string) {
	if m.watchEvents == nil {
		return
	}
	m.watchEvents.WithLabelValues(cluster).Inc()
}

// HTTPRequest records a Kubernetes API request outcome.
func (m *Metrics) HTTPRequest(method, status string) {
	if m.httpRequests == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, status).Inc()
}

// ClusterStarted increments the active cluster gauge.
func (m *Metrics) ClusterStarted() {
	if m.activeClusters == nil {
		return
	}
	m.activeClusters.Inc()
}

// ClusterFinished decrements the active cluster gauge.
func (m *Metrics) ClusterFinished() {
	if m.activeClusters == nil {
		return
	}
	m.activeClusters.Dec()
}

// SetPendingTasks records the number of non-terminal tasks.
func (m *Metrics) SetPendingTasks(n int) {
	if m.pendingTasks == nil {
		return
	}
	m.pendingTasks.Set(float64(n))
}
