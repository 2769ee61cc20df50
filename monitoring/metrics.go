package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HttpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	ResponseTimeHistogram = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_response_time_seconds",
			Help:    "Histogram of response times",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// RelayOutcomes counts backend and gateway relay results by relay and code.
	RelayOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_outcomes_total",
			Help: "Relay results by relay and outcome code",
		},
		[]string{"relay", "outcome"},
	)

	// WebhookStates counts the terminal state of each IPN delivery.
	WebhookStates = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nowpayments_ipn_total",
			Help: "IPN deliveries by final state",
		},
		[]string{"state"},
	)

	AwardsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "referral_awards_total",
			Help: "Referral ledger evaluations by kind and result",
		},
		[]string{"kind", "result"},
	)

	AwardPoints = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "referral_award_points_total",
			Help: "EP granted by award kind",
		},
		[]string{"kind"},
	)
)
