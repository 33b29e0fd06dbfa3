package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(sweepRunsTotal, sweepCandidates) }

var (
	sweepRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reconcile_sweep_runs_total",
			Help: "Reconciliation sweeper runs, labeled by status.",
		},
		[]string{"status"}, // ok|error|skipped
	)

	sweepCandidates = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "reconcile_sweep_candidates",
			Help: "Pending listings examined by the last sweeper run.",
		},
	)
)

func IncSweepRun(status string) {
	sweepRunsTotal.WithLabelValues(norm(status)).Inc()
}

func SetSweepCandidates(n int) {
	sweepCandidates.Set(float64(n))
}
