package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type RunStatus string

const RunStatusFinal RunStatus = "final"
const RunStatusRefusal RunStatus = "refusal"
const RunStatusError RunStatus = "error"

var PipelineRuns = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "policyrelay_pipeline_runs",
	Help: "The total number of pipeline runs, by outcome",
}, []string{"status", "triggeringRole"})

var Verdicts = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "policyrelay_verdicts",
	Help: "The total number of classifier verdicts",
}, []string{"subject", "isUnsafe", "isRecognized"})

var VerdictCategories = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "policyrelay_verdict_categories",
	Help: "The total number of policy categories cited by unsafe verdicts",
}, []string{"subject", "code"})

var StageTime = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name: "policyrelay_stage_time_seconds",
	Help: "The time spent in each pipeline stage",
}, []string{"stage"})

var ModelCalls = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "policyrelay_model_calls",
	Help: "The total number of remote model invocations",
}, []string{"provider", "model", "status"})

var ModelCallTime = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name: "policyrelay_model_call_time_seconds",
	Help: "The time spent waiting on remote models, including retries",
}, []string{"provider", "model"})

// RecordPipelineRun - triggeringRole should be empty for anything but refusals.
func RecordPipelineRun(status RunStatus, triggeringRole string) {
	PipelineRuns.With(prometheus.Labels{
		"status":         string(status),
		"triggeringRole": triggeringRole,
	}).Inc()
}

func RecordVerdict(subject string, isUnsafe bool, isRecognized bool, codes []string) {
	Verdicts.With(prometheus.Labels{
		"subject":      subject,
		"isUnsafe":     strconv.FormatBool(isUnsafe),
		"isRecognized": strconv.FormatBool(isRecognized),
	}).Inc()
	for _, code := range codes {
		VerdictCategories.With(prometheus.Labels{
			"subject": subject,
			"code":    code,
		}).Inc()
	}
}

func StartStageTimer(stage string) *prometheus.Timer {
	return prometheus.NewTimer(StageTime.With(prometheus.Labels{
		"stage": stage,
	}))
}

func RecordModelCall(provider string, model string, isOk bool) {
	status := "ok"
	if !isOk {
		status = "error"
	}
	ModelCalls.With(prometheus.Labels{
		"provider": provider,
		"model":    model,
		"status":   status,
	}).Inc()
}

func StartModelCallTimer(provider string, model string) *prometheus.Timer {
	return prometheus.NewTimer(ModelCallTime.With(prometheus.Labels{
		"provider": provider,
		"model":    model,
	}))
}
