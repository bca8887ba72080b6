package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds all Prometheus metrics for the CRM BFF.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	gatewayDuration *prometheus.HistogramVec
	gatewayErrors   *prometheus.CounterVec
	storeRefreshes  *prometheus.CounterVec
	staleDiscarded  *prometheus.CounterVec
	cascadeFailures prometheus.Counter
	importRows      *prometheus.CounterVec
	sessionEvents   *prometheus.CounterVec
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		gatewayDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "crm_gateway_request_duration_seconds",
				Help:    "Duration of remote gateway calls by operation.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		gatewayErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crm_gateway_errors_total",
				Help: "Total errors from the remote data gateway.",
			},
			[]string{"operation"},
		),
		storeRefreshes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crm_store_refreshes_total",
				Help: "Total wholesale list refreshes by entity store.",
			},
			[]string{"store"},
		),
		staleDiscarded: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crm_store_stale_responses_total",
				Help: "List responses discarded because a newer request superseded them.",
			},
			[]string{"store"},
		),
		cascadeFailures: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "crm_followup_cascade_failures_total",
				Help: "Failures propagating a followup date onto the parent customer.",
			},
		),
		importRows: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crm_import_rows_total",
				Help: "Customer import rows by outcome.",
			},
			[]string{"outcome"},
		),
		sessionEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crm_session_events_total",
				Help: "Auth session transitions observed.",
			},
			[]string{"event"},
		),
	}
}

// RecordGatewayDuration records the duration of a gateway operation.
func (m *Metrics) RecordGatewayDuration(operation string, d time.Duration) {
	m.gatewayDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrGatewayError increments the gateway error counter.
func (m *Metrics) IncrGatewayError(operation string) {
	m.gatewayErrors.WithLabelValues(operation).Inc()
}

// IncrStoreRefresh counts a wholesale list replacement.
func (m *Metrics) IncrStoreRefresh(store string) {
	m.storeRefreshes.WithLabelValues(store).Inc()
}

// IncrStaleDiscarded counts a list response dropped by the sequence guard.
func (m *Metrics) IncrStaleDiscarded(store string) {
	m.staleDiscarded.WithLabelValues(store).Inc()
}

// IncrCascadeFailure counts a failed last_follow_date propagation.
func (m *Metrics) IncrCascadeFailure() {
	m.cascadeFailures.Inc()
}

// IncrImportRow counts one import row outcome ("success" or "failed").
func (m *Metrics) IncrImportRow(outcome string) {
	m.importRows.WithLabelValues(outcome).Inc()
}

// IncrSessionEvent counts an auth transition by event name.
func (m *Metrics) IncrSessionEvent(event string) {
	m.sessionEvents.WithLabelValues(event).Inc()
}

// ImportOutcomes returns the cumulative success/failed import counts.
// Used by the devops snapshot endpoint.
func (m *Metrics) ImportOutcomes() (success, failed float64) {
	return getCounterValue(m.importRows, "success"), getCounterValue(m.importRows, "failed")
}

// getCounterValue extracts the current float64 value from a CounterVec for a given label.
func getCounterValue(cv *prometheus.CounterVec, label string) float64 {
	counter := cv.WithLabelValues(label)
	m := &dto.Metric{}
	if err := counter.(prometheus.Metric).Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}
