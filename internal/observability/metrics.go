package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus registry and the middleware's meters.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	Registry          *prometheus.Registry
	OperationDuration *prometheus.HistogramVec
	OperationTotal    *prometheus.CounterVec
	ErrorsTotal       *prometheus.CounterVec
	LinksOpen         prometheus.Gauge
	LinkEvents        *prometheus.CounterVec
	Recoveries        *prometheus.CounterVec
	MessagesTotal     *prometheus.CounterVec
	BytesProcessed    *prometheus.CounterVec
	Commands          *prometheus.CounterVec
	Endpoints         prometheus.Gauge
	DiscoveryEntries  prometheus.Gauge
	Announcements     *prometheus.CounterVec
}

// NewMetrics creates a custom Prometheus registry with the standard meters.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		Registry: reg,
		OperationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mw_operation_duration_seconds",
			Help:    "Duration of operations in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation", "status"}),
		OperationTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mw_operation_total",
			Help: "Total number of operations.",
		}, []string{"operation", "status"}),
		ErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mw_errors_total",
			Help: "Total number of errors.",
		}, []string{"operation", "type"}),
		LinksOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mw_links_open",
			Help: "Number of links currently open.",
		}),
		LinkEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mw_link_events_total",
			Help: "Link lifecycle events.",
		}, []string{"event"}),
		Recoveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mw_recoveries_total",
			Help: "Recovery attempts by persistence policy and outcome.",
		}, []string{"policy", "outcome"}),
		MessagesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mw_messages_total",
			Help: "Messages moved over links.",
		}, []string{"direction", "status"}),
		BytesProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mw_bytes_processed_total",
			Help: "Total payload bytes processed.",
		}, []string{"direction"}),
		Commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mw_commands_total",
			Help: "Forced commands by kind and result.",
		}, []string{"kind", "result"}),
		Endpoints: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mw_endpoints",
			Help: "Number of registered endpoints.",
		}),
		DiscoveryEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rdc_locations",
			Help: "Number of locations held by the discovery index.",
		}),
		Announcements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rdc_announcements_total",
			Help: "Index mutations by kind (announce, withdraw, expire, failed).",
		}, []string{"kind"}),
	}

	reg.MustRegister(
		m.OperationDuration, m.OperationTotal, m.ErrorsTotal,
		m.LinksOpen, m.LinkEvents, m.Recoveries,
		m.MessagesTotal, m.BytesProcessed,
		m.Commands, m.Endpoints, m.DiscoveryEntries, m.Announcements,
	)
	return m
}

// LinkEvent counts a link lifecycle event ("opened", "closed", "removed", "pruned").
func (m *Metrics) LinkEvent(event string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.LinkEvents.WithLabelValues(event).Add(float64(n))
}

// SetLinksOpen records the current number of open links.
func (m *Metrics) SetLinksOpen(n int) {
	if m == nil {
		return
	}
	m.LinksOpen.Set(float64(n))
}

// SetEndpoints records the current number of registered endpoints.
func (m *Metrics) SetEndpoints(n int) {
	if m == nil {
		return
	}
	m.Endpoints.Set(float64(n))
}

// SetDiscoveryEntries records the size of the discovery index.
func (m *Metrics) SetDiscoveryEntries(n int) {
	if m == nil {
		return
	}
	m.DiscoveryEntries.Set(float64(n))
}

// Recovery counts one recovery attempt.
func (m *Metrics) Recovery(policy, outcome string) {
	if m == nil {
		return
	}
	m.Recoveries.WithLabelValues(policy, outcome).Inc()
}

// Command counts one forced command.
func (m *Metrics) Command(kind, result string) {
	if m == nil {
		return
	}
	m.Commands.WithLabelValues(kind, result).Inc()
}

// IndexChange counts one discovery index mutation.
func (m *Metrics) IndexChange(kind string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.Announcements.WithLabelValues(kind).Add(float64(n))
}

// Message counts one message and its payload size.
func (m *Metrics) Message(direction, status string, size int) {
	if m == nil {
		return
	}
	m.MessagesTotal.WithLabelValues(direction, status).Inc()
	if status == "ok" && size > 0 {
		m.BytesProcessed.WithLabelValues(direction).Add(float64(size))
	}
}

// Error counts an error of the given type against an operation.
func (m *Metrics) Error(operation, kind string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(operation, kind).Inc()
}
