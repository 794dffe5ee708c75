package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Cron run outcomes.
const (
	CronSucceeded = "succeeded"
	CronFailed    = "failed"
)

// CronJobMetrics tracks scheduler cycles and per-job runs.
type CronJobMetrics struct {
	runs        *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	lastSuccess *prometheus.GaugeVec
	lockSkipped prometheus.Counter
}

// NewCronJobMetrics registers the scheduler metrics on reg. A nil registerer
// yields a no-op instance.
func NewCronJobMetrics(reg prometheus.Registerer) *CronJobMetrics {
	if reg == nil {
		return &CronJobMetrics{}
	}
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cron_job_runs_total",
		Help: "Scheduled job runs, by job and outcome.",
	}, []string{"job", "outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cron_job_duration_seconds",
		Help:    "Wall time of scheduled job runs.",
		Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
	}, []string{"job"})
	lastSuccess := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "cron_job_last_success_timestamp_seconds",
		Help: "Unix time of the last successful run of each job.",
	}, []string{"job"})
	lockSkipped := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cron_cycles_lock_skipped_total",
		Help: "Cycles skipped because another worker held the scheduler lock.",
	})
	reg.MustRegister(runs, duration, lastSuccess, lockSkipped)
	return &CronJobMetrics{
		runs:        runs,
		duration:    duration,
		lastSuccess: lastSuccess,
		lockSkipped: lockSkipped,
	}
}

// ObserveRun records one finished job run. finishedAt stamps the success gauge.
func (c *CronJobMetrics) ObserveRun(job string, took time.Duration, finishedAt time.Time, err error) {
	if c == nil || c.runs == nil {
		return
	}
	job = normalizeLabel(job)
	c.duration.WithLabelValues(job).Observe(took.Seconds())
	if err != nil {
		c.runs.WithLabelValues(job, CronFailed).Inc()
		return
	}
	c.runs.WithLabelValues(job, CronSucceeded).Inc()
	c.lastSuccess.WithLabelValues(job).Set(float64(finishedAt.Unix()))
}

func (c *CronJobMetrics) IncLockSkipped() {
	if c == nil || c.lockSkipped == nil {
		return
	}
	c.lockSkipped.Inc()
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
