package metrics

import (
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

func init() { register(dbPoolConns) }

var dbPoolConns = prometheus.NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "listing_db_pool_connections",
		Help: "Connections of the listing store pool by state.",
	},
	[]string{"state"}, // total|idle|in_use|max
)

// ObserveDBPool copies a pool snapshot into the gauges.
func ObserveDBPool(st *pgxpool.Stat) {
	if st == nil {
		return
	}
	dbPoolConns.WithLabelValues("total").Set(float64(st.TotalConns()))
	dbPoolConns.WithLabelValues("idle").Set(float64(st.IdleConns()))
	dbPoolConns.WithLabelValues("in_use").Set(float64(st.AcquiredConns()))
	dbPoolConns.WithLabelValues("max").Set(float64(st.MaxConns()))
}
