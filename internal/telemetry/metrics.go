package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the service.
// A nil *Metrics records nothing.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	RemoteCalls     *prometheus.CounterVec
	RemoteDuration  *prometheus.HistogramVec
	SyncedOrders    *prometheus.CounterVec
	Purchases       *prometheus.CounterVec
}

// NewMetrics creates the metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shiplite_http_requests_total",
				Help: "Total number of HTTP requests by route, method, and status",
			},
			[]string{"route", "method", "status"},
		),
		RequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "shiplite_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds by route",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		RemoteCalls: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shiplite_remote_calls_total",
				Help: "Calls to the storefront and rate provider by system, operation, and outcome",
			},
			[]string{"system", "operation", "outcome"},
		),
		RemoteDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "shiplite_remote_call_duration_seconds",
				Help:    "Remote call duration in seconds by system and operation",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"system", "operation"},
		),
		SyncedOrders: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shiplite_synced_orders_total",
				Help: "Orders processed by sync per tenant and result",
			},
			[]string{"tenant", "result"},
		),
		Purchases: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shiplite_label_purchases_total",
				Help: "Label purchase attempts by the stage they ended in",
			},
			[]string{"stage"},
		),
	}
}

// RecordRequest records an inbound HTTP request.
func (m *Metrics) RecordRequest(route, method, status string, duration float64) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(route, method, status).Inc()
	m.RequestDuration.WithLabelValues(route).Observe(duration)
}

// RecordRemote records one call to an external system.
func (m *Metrics) RecordRemote(system, operation string, err error, duration float64) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.RemoteCalls.WithLabelValues(system, operation, outcome).Inc()
	m.RemoteDuration.WithLabelValues(system, operation).Observe(duration)
}

// RecordSync adds the outcome of one sync run.
func (m *Metrics) RecordSync(tenant string, imported, failed int) {
	if m == nil {
		return
	}
	m.SyncedOrders.WithLabelValues(tenant, "imported").Add(float64(imported))
	m.SyncedOrders.WithLabelValues(tenant, "failed").Add(float64(failed))
}

// RecordPurchase counts a purchase attempt ending in stage.
func (m *Metrics) RecordPurchase(stage string) {
	if m == nil {
		return
	}
	m.Purchases.WithLabelValues(stage).Inc()
}
