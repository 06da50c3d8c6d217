package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics stores Prometheus collectors used across the gateway.
type Metrics struct {
	BackendRequests    *prometheus.CounterVec
	BackendLatency     *prometheus.HistogramVec
	WorkflowSteps      *prometheus.CounterVec
	WorkflowResolved   *prometheus.CounterVec
	PaymentPolls       *prometheus.CounterVec
	PaymentInitiations *prometheus.CounterVec
	CatalogFetches     *prometheus.CounterVec
	ActiveSessions     prometheus.Gauge
}

var (
	regOnce         sync.Once
	metricsInstance *Metrics
)

// Registry builds and registers the metrics singleton with optional namespace.
func Registry(namespace string) *Metrics {
	regOnce.Do(func() {
		metricsInstance = &Metrics{
			BackendRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "backend_requests_total",
				Help:      "Total Buy&Sale backend requests by endpoint and status.",
			}, []string{"endpoint", "status"}),
			BackendLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "backend_request_duration_seconds",
				Help:      "Latency distribution for Buy&Sale backend requests.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"endpoint", "status"}),
			WorkflowSteps: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "workflow_steps_total",
				Help:      "Boost workflow step entries by flow and step.",
			}, []string{"flow", "step"}),
			WorkflowResolved: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "workflow_resolutions_total",
				Help:      "Boost workflow resolutions by flow and outcome.",
			}, []string{"flow", "resolution"}),
			PaymentPolls: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "payment_status_polls_total",
				Help:      "Payment status polls by observed status.",
			}, []string{"status"}),
			PaymentInitiations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "payment_initiations_total",
				Help:      "Payment initiation attempts by outcome.",
			}, []string{"outcome"}),
			CatalogFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "forfait_catalog_fetches_total",
				Help:      "Forfait catalog lookups by source.",
			}, []string{"source"}),
			ActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "boost_sessions_active",
				Help:      "Boost sessions currently held by the gateway.",
			}),
		}

		prometheus.MustRegister(
			metricsInstance.BackendRequests,
			metricsInstance.BackendLatency,
			metricsInstance.WorkflowSteps,
			metricsInstance.WorkflowResolved,
			metricsInstance.PaymentPolls,
			metricsInstance.PaymentInitiations,
			metricsInstance.CatalogFetches,
			metricsInstance.ActiveSessions,
		)
	})
	return metricsInstance
}
