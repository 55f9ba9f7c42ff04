package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "advisory_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "advisory_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Harvesting metrics
	ScansTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "advisory_harvest_scans_total",
			Help: "Total number of portfolio harvest scans",
		},
		[]string{"result"}, // success, error
	)

	ScanDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "advisory_harvest_scan_duration_seconds",
			Help:    "Portfolio scan duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.5, 1.0, 5.0, 15.0, 60.0},
		},
	)

	OpportunitiesIdentified = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "advisory_harvest_opportunities_total",
			Help: "Harvest opportunities created by scans",
		},
		[]string{"status"}, // IDENTIFIED, WASH_SALE_RISK
	)

	OpportunityTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "advisory_opportunity_transitions_total",
			Help: "Opportunity lifecycle transitions",
		},
		[]string{"to_status", "result"}, // result: success, refused
	)

	HarvestedSavings = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "advisory_harvested_tax_savings_usd_total",
			Help: "Estimated tax savings of executed harvests in USD",
		},
	)

	WashSaleViolations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "advisory_wash_sale_violations_total",
			Help: "Wash-sale violations detected by the monitor",
		},
	)

	WashSaleWindowsClosed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "advisory_wash_sale_windows_closed_total",
			Help: "Wash-sale windows resolved by the monitor",
		},
		[]string{"status"}, // CLEAR, VIOLATED
	)

	// External service metrics
	AdvisoryCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "advisory_replacement_suggestions_total",
			Help: "Calls to the replacement-suggestion service",
		},
		[]string{"provider", "result"}, // result: success, degraded
	)

	AdvisoryCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "advisory_replacement_suggestion_duration_seconds",
			Help:    "Replacement-suggestion call duration in seconds",
			Buckets: []float64{0.1, 0.5, 1.0, 2.0, 5.0, 10.0, 30.0},
		},
		[]string{"provider"},
	)

	// System metrics
	DatabaseQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "advisory_database_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
		},
		[]string{"operation", "table"},
	)
)

// ObserveDBQuery records the elapsed time of one repository query. Call
// with defer: the start argument is captured when the defer is evaluated.
func ObserveDBQuery(operation, table string, start time.Time) {
	DatabaseQueryDuration.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
}

// RecordScan records the outcome and duration of one portfolio scan.
func RecordScan(result string, seconds float64) {
	ScansTotal.WithLabelValues(result).Inc()
	ScanDuration.Observe(seconds)
}

// RecordTransition records a lifecycle transition attempt.
func RecordTransition(toStatus, result string) {
	OpportunityTransitions.WithLabelValues(toStatus, result).Inc()
}

// RecordAdvisoryCall records one replacement-suggestion call.
func RecordAdvisoryCall(provider, result string, seconds float64) {
	AdvisoryCallsTotal.WithLabelValues(provider, result).Inc()
	AdvisoryCallDuration.WithLabelValues(provider).Observe(seconds)
}
