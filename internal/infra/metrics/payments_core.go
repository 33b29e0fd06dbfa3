package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		pixIntentsTotal,
		reconcileTotal,
		listingActivationsTotal,
		processorRequestDuration,
	)
}

// Reconciliation channels.
const (
	ChannelWebhook = "webhook"
	ChannelPoll    = "poll"
	ChannelSweep   = "sweep"
)

var (
	// result: created|config_error|upstream_error|rejected_input
	pixIntentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pix_intents_total",
			Help: "PIX payment intents requested, by result.",
		},
		[]string{"result"},
	)

	// outcome: activated|lost_race|already_active|guarded|not_approved|intent_not_found|listing_not_found|not_configured|upstream_error|store_error
	reconcileTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconcile_total",
			Help: "Reconciliation attempts by channel and outcome.",
		},
		[]string{"channel", "outcome"},
	)

	listingActivationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "listing_activations_total",
			Help: "Listings moved from pending to active, by the channel that won the write.",
		},
		[]string{"channel"},
	)

	processorRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "processor_request_duration_seconds",
			Help:    "Latency of payment processor calls.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"op", "result"},
	)
)

func IncPixIntent(result string) {
	pixIntentsTotal.WithLabelValues(norm(result)).Inc()
}

func IncReconcile(channel, outcome string) {
	reconcileTotal.WithLabelValues(norm(channel), norm(outcome)).Inc()
}

func IncActivation(channel string) {
	listingActivationsTotal.WithLabelValues(norm(channel)).Inc()
}

func ObserveProcessorCall(op string, ok bool, d time.Duration) {
	result := "ok"
	if !ok {
		result = "error"
	}
	processorRequestDuration.WithLabelValues(norm(op), result).Observe(d.Seconds())
}
