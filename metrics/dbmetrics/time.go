package dbmetrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var DatabaseRequestTime = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name: "policyrelay_database_request_time_seconds",
	Help: "The time spent in the audit database",
}, []string{"query"})

func StartDatabaseTimer(query string) *prometheus.Timer {
	return prometheus.NewTimer(DatabaseRequestTime.With(prometheus.Labels{
		"query": query,
	}))
}
