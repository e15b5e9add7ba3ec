package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	apiRequestsTotal  *prometheus.CounterVec
	apiLatencySeconds *prometheus.HistogramVec
	apiErrorsTotal    *prometheus.CounterVec

	enrollmentDecisionsTotal  *prometheus.CounterVec
	waitlistPromotionsTotal   prometheus.Counter
	transferDispositionsTotal *prometheus.CounterVec
	offeringConflictsTotal    prometheus.Counter
	notificationsPublished    *prometheus.CounterVec
	sseClientsActive          prometheus.Gauge
)

// RegisterMetrics initialises the Prometheus collectors used by the enrollment API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		apiRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "enrollment_api_requests_total",
			Help: "Total number of enrollment API requests served.",
		}, []string{"method", "route", "status"})

		apiLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "enrollment_api_latency_seconds",
			Help:    "Latency distribution for enrollment API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		apiErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "enrollment_api_errors_total",
			Help: "Total number of error responses returned by enrollment endpoints.",
		}, []string{"method", "route", "status"})

		enrollmentDecisionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "enrollment_decisions_total",
			Help: "Enrollment requests by decision.",
		}, []string{"status"})

		waitlistPromotionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "waitlist_promotions_total",
			Help: "Students promoted from a waitlist into a released seat.",
		})

		transferDispositionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "transfer_dispositions_total",
			Help: "Transfer credit dispositions by status.",
		}, []string{"status"})

		offeringConflictsTotal = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "offering_conflicts_total",
			Help: "Optimistic version conflicts while persisting offering changes.",
		})

		notificationsPublished = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notifications_published_total",
			Help: "Notifications persisted and published, by type.",
		}, []string{"type"})

		sseClientsActive = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "notification_stream_clients",
			Help: "Currently connected notification stream clients.",
		})

		prometheus.MustRegister(
			apiRequestsTotal, apiLatencySeconds, apiErrorsTotal,
			enrollmentDecisionsTotal, waitlistPromotionsTotal, transferDispositionsTotal,
			offeringConflictsTotal, notificationsPublished, sseClientsActive,
		)
	})
}

// APIRequests exposes the request counter.
func APIRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return apiRequestsTotal
}

// APILatency exposes the request latency histogram.
func APILatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return apiLatencySeconds
}

// APIErrors exposes the counter for error responses.
func APIErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return apiErrorsTotal
}

// EnrollmentDecisions counts enrollment outcomes by status label.
func EnrollmentDecisions() *prometheus.CounterVec {
	RegisterMetrics()
	return enrollmentDecisionsTotal
}

func WaitlistPromotions() prometheus.Counter {
	RegisterMetrics()
	return waitlistPromotionsTotal
}

// TransferDispositions counts transfer dispositions by status label.
func TransferDispositions() *prometheus.CounterVec {
	RegisterMetrics()
	return transferDispositionsTotal
}

func OfferingConflicts() prometheus.Counter {
	RegisterMetrics()
	return offeringConflictsTotal
}

func NotificationsPublishedTotal() *prometheus.CounterVec {
	RegisterMetrics()
	return notificationsPublished
}

func SSEClientsActive() prometheus.Gauge {
	RegisterMetrics()
	return sseClientsActive
}
