package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors of the plugin pipeline. A nil
// *Metrics is valid; every recording method is then a no-op.
type Metrics struct {
	// Discovery metrics
	UnitsTotal        *prometheus.CounterVec
	EntriesSkipped    *prometheus.CounterVec
	TypesDiscovered   prometheus.Counter
	InstancesCreated  prometheus.Counter
	InstantiateErrors *prometheus.CounterVec
	LoadDuration      prometheus.Histogram
	PluggablesCurrent prometheus.Gauge

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers all metrics on registry
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		UnitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "capload_units_total",
				Help: "Plugin archives seen during discovery",
			},
			[]string{"status"},
		),
		EntriesSkipped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "capload_entries_skipped_total",
				Help: "Archive entries skipped while scanning for types",
			},
			[]string{"reason"},
		),
		TypesDiscovered: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "capload_types_discovered_total",
				Help: "Pluggable types discovered in archives",
			},
		),
		InstancesCreated: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "capload_instances_created_total",
				Help: "Plugin instances created",
			},
		),
		InstantiateErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "capload_instantiate_errors_total",
				Help: "Pluggable types that could not be instantiated",
			},
			[]string{"reason"},
		),
		LoadDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "capload_load_duration_seconds",
				Help:    "Duration of a full plugin load cycle",
				Buckets: []float64{.005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
		),
		PluggablesCurrent: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "capload_pluggables",
				Help: "Instances held by the registry after the last load",
			},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "capload_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "capload_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
	}

	registry.MustRegister(
		m.UnitsTotal,
		m.EntriesSkipped,
		m.TypesDiscovered,
		m.InstancesCreated,
		m.InstantiateErrors,
		m.LoadDuration,
		m.PluggablesCurrent,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
	)

	return m
}

// UnitSeen records an archive that was accepted or rejected by the filter
func (m *Metrics) UnitSeen(accepted bool) {
	if m == nil {
		return
	}
	status := "rejected"
	if accepted {
		status = "accepted"
	}
	m.UnitsTotal.WithLabelValues(status).Inc()
}

// EntrySkipped records an archive entry that did not yield a type
func (m *Metrics) EntrySkipped(reason string) {
	if m == nil {
		return
	}
	m.EntriesSkipped.WithLabelValues(reason).Inc()
}

// TypeDiscovered records a pluggable type
func (m *Metrics) TypeDiscovered() {
	if m == nil {
		return
	}
	m.TypesDiscovered.Inc()
}

// InstanceCreated records a successful instantiation
func (m *Metrics) InstanceCreated() {
	if m == nil {
		return
	}
	m.InstancesCreated.Inc()
}

// InstantiateFailed records a failed instantiation
func (m *Metrics) InstantiateFailed(reason string) {
	if m == nil {
		return
	}
	m.InstantiateErrors.WithLabelValues(reason).Inc()
}

// LoadFinished records the duration and outcome of a load cycle
func (m *Metrics) LoadFinished(d time.Duration, pluggables int) {
	if m == nil {
		return
	}
	m.LoadDuration.Observe(d.Seconds())
	m.PluggablesCurrent.Set(float64(pluggables))
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// HTTPMetricsMiddleware instruments HTTP requests. path labels are taken from
// the route template reported by pathFn so that IDs do not explode cardinality.
func HTTPMetricsMiddleware(metrics *Metrics, pathFn func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if metrics == nil {
				next.ServeHTTP(w, r)
				return
			}
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rw, r)

			path := r.URL.Path
			if pathFn != nil {
				path = pathFn(r)
			}
			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(rw.statusCode)).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
		})
	}
}

// MetricsHandler serves the registry in the Prometheus exposition format
func MetricsHandler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
