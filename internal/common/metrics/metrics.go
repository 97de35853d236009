// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WizardStepTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wizard_step_transitions_total",
			Help: "Total number of wizard step entries",
		},
		[]string{"step"},
	)

	BackendRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backend_requests_total",
			Help: "Total number of requests sent to the marketplace backend",
		},
		[]string{"endpoint", "status"},
	)

	BackendRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "backend_request_duration_seconds",
			Help: "Duration of marketplace backend requests in seconds",
		},
		[]string{"endpoint"},
	)

	StatusPollTicks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wizard_status_poll_ticks_total",
			Help: "Request-status fetches issued by the application-form gate",
		},
		[]string{"outcome"},
	)

	StatusPollsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "wizard_status_polls_active",
			Help: "Number of application-form gates currently waiting",
		},
	)

	RankingLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wizard_ranking_lookups_total",
			Help: "Per-university rank lookups by outcome",
		},
		[]string{"outcome"},
	)

	StorageReadFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storage_read_fallbacks_total",
			Help: "Persisted reads treated as absent",
		},
		[]string{"reason"},
	)
)
