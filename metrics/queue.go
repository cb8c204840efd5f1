package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var QueueWaitTime = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name: "policyrelay_queue_wait_time_seconds",
	Help: "The time spent waiting for a queued run to produce a result",
}, []string{"waitedUntil"})

var SessionCacheRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "policyrelay_session_cache_requests",
	Help: "The total number of session lookups",
}, []string{"isHit"})

var AuditRecords = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "policyrelay_audit_records",
	Help: "The total number of audit records published",
}, []string{"status"})

func StartQueueTimer() *prometheus.Timer {
	return prometheus.NewTimer(QueueWaitTime.With(prometheus.Labels{
		"waitedUntil": "UNSET",
	}))
}

func RecordSessionCacheRequest(isHit bool) {
	SessionCacheRequests.With(prometheus.Labels{
		"isHit": strconv.FormatBool(isHit),
	}).Inc()
}

func RecordAuditRecord(isOk bool) {
	status := "ok"
	if !isOk {
		status = "error"
	}
	AuditRecords.With(prometheus.Labels{
		"status": status,
	}).Inc()
}
