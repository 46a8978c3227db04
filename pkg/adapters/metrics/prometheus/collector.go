package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector implements MetricsCollector using Prometheus
type Collector struct {
	runsSubmitted prometheus.Counter
	runsCompleted *prometheus.CounterVec
	runDuration   *prometheus.HistogramVec

	stagesExecuted *prometheus.CounterVec
	stageDuration  *prometheus.HistogramVec

	llmCalls   *prometheus.CounterVec
	llmLatency *prometheus.HistogramVec

	revisionLoops *prometheus.CounterVec
	forcedAccepts *prometheus.CounterVec
}

// NewCollector creates a new Prometheus metrics collector
func NewCollector() *Collector {
	return &Collector{
		runsSubmitted: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "bizhen_runs_submitted_total",
				Help: "Total number of runs submitted",
			},
		),
		runsCompleted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bizhen_runs_completed_total",
				Help: "Total number of runs completed by outcome",
			},
			[]string{"outcome"},
		),
		runDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bizhen_run_duration_seconds",
				Help:    "Run duration in seconds",
				Buckets: []float64{5, 15, 30, 60, 120, 300, 600, 1200, 1800, 3600},
			},
			[]string{"outcome"},
		),
		stagesExecuted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bizhen_stages_executed_total",
				Help: "Total number of stage executions",
			},
			[]string{"branch", "stage"},
		),
		stageDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bizhen_stage_duration_seconds",
				Help:    "Stage execution duration in seconds",
				Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
			},
			[]string{"branch", "stage"},
		),
		llmCalls: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bizhen_llm_calls_total",
				Help: "Total number of LLM API calls",
			},
			[]string{"stage", "status"},
		),
		llmLatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bizhen_llm_latency_seconds",
				Help:    "LLM API call latency in seconds",
				Buckets: []float64{0.5, 1, 2, 5, 10, 20, 60, 120},
			},
			[]string{"stage"},
		),
		revisionLoops: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bizhen_revision_loops_total",
				Help: "Total number of revision loop iterations",
			},
			[]string{"branch"},
		),
		forcedAccepts: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bizhen_forced_accepts_total",
				Help: "Total number of drafts accepted at the revision ceiling",
			},
			[]string{"branch"},
		),
	}
}

// RecordRunSubmitted records a run submission
func (c *Collector) RecordRunSubmitted() {
	c.runsSubmitted.Inc()
}

// RecordRunCompleted records a run completion with its outcome
func (c *Collector) RecordRunCompleted(outcome string, duration time.Duration) {
	c.runsCompleted.WithLabelValues(outcome).Inc()
	c.runDuration.WithLabelValues(outcome).Observe(duration.Seconds())
}

// RecordStageExecuted records a stage execution
func (c *Collector) RecordStageExecuted(branch, stage string, duration time.Duration) {
	c.stagesExecuted.WithLabelValues(branch, stage).Inc()
	c.stageDuration.WithLabelValues(branch, stage).Observe(duration.Seconds())
}

// RecordLLMCall records an LLM API call
func (c *Collector) RecordLLMCall(stage string, duration time.Duration, failed bool) {
	status := "ok"
	if failed {
		status = "error"
	}
	c.llmCalls.WithLabelValues(stage, status).Inc()
	c.llmLatency.WithLabelValues(stage).Observe(duration.Seconds())
}

// RecordRevisionLoop records one revision loop iteration
func (c *Collector) RecordRevisionLoop(branch string) {
	c.revisionLoops.WithLabelValues(branch).Inc()
}

// RecordForcedAccept records a draft accepted at the revision ceiling
func (c *Collector) RecordForcedAccept(branch string) {
	c.forcedAccepts.WithLabelValues(branch).Inc()
}
