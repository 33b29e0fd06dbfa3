package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		WebhookEventsTotal,
		StatusPollDuration,
		RateLimitedTotal,
	)
}

var (
	// result: reconciled|swallowed|ignored|missing_id|bad_signature
	WebhookEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_events_total",
			Help: "Processor webhook deliveries by handling result.",
		},
		[]string{"result"},
	)

	// status: pending|approved|rejected|error
	StatusPollDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pix_status_poll_duration_seconds",
			Help:    "Duration of /pix/status including the synchronous reconciliation.",
			Buckets: []float64{0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
		[]string{"status"},
	)

	RateLimitedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limited_total",
			Help: "Requests rejected by the per-client limiter, by route.",
		},
		[]string{"route"},
	)
)
