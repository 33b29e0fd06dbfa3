package metrics

import (
	"runtime"

	"github.com/prometheus/client_golang/prometheus"
)

func init() { register(buildInfo) }

var buildInfo = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "desapego_pix_build_info",
		Help: "Constant 1, labelled with the running build.",
	},
	[]string{"version", "commit", "go_version", "gateway"},
)

func SetBuildInfo(version, commit, gateway string) {
	buildInfo.WithLabelValues(version, commit, runtime.Version(), gateway).Set(1)
}
