package jobs

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors for background jobs.
type Metrics struct {
	runs       *prometheus.CounterVec
	failures   *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	mismatches *prometheus.CounterVec
	negatives  *prometheus.GaugeVec
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// NewMetrics registers the job metrics against registerer. A nil registerer
// uses the default Prometheus registerer.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	if registerer == nil {
		defaultOnce.Do(func() {
			defaultMetrics = buildMetrics(prometheus.DefaultRegisterer)
		})
		return defaultMetrics
	}
	return buildMetrics(registerer)
}

// Tracker instruments a single job run.
type Tracker struct {
	metrics *Metrics
	job     string
	start   time.Time
}

// Track starts a tracker for the given job type.
func (m *Metrics) Track(job string) *Tracker {
	return &Tracker{metrics: m, job: job, start: time.Now()}
}

// End records duration and outcome, returning err untouched.
func (t *Tracker) End(err error) error {
	if t == nil || t.metrics == nil || t.job == "" {
		return err
	}
	status := "success"
	if err != nil {
		status = "failure"
		t.metrics.failures.WithLabelValues(t.job).Inc()
	}
	t.metrics.runs.WithLabelValues(t.job, status).Inc()
	t.metrics.duration.WithLabelValues(t.job).Observe(time.Since(t.start).Seconds())
	return err
}

// AddMismatches counts reconciliation disagreements found for an agency.
func (m *Metrics) AddMismatches(agencyID string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.mismatches.WithLabelValues(agencyID).Add(float64(count))
}

// SetNegativeBalances reports how many overdrawn ledger rows an agency has.
func (m *Metrics) SetNegativeBalances(agencyID string, count int) {
	if m == nil {
		return
	}
	m.negatives.WithLabelValues(agencyID).Set(float64(count))
}

func buildMetrics(registerer prometheus.Registerer) *Metrics {
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lpgstock_jobs_total",
		Help: "Total job executions partitioned by job name and status.",
	}, []string{"job", "status"})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lpgstock_jobs_failures_total",
		Help: "Total failures observed for background jobs.",
	}, []string{"job"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "lpgstock_job_duration_seconds",
		Help:    "Duration in seconds of background job executions.",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})
	mismatches := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "lpgstock_reconcile_mismatches_total",
		Help: "Stock view disagreements found by reconciliation, per agency.",
	}, []string{"agency"})
	negatives := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "lpgstock_negative_balances",
		Help: "Ledger rows with a negative counter at the last reconciliation, per agency.",
	}, []string{"agency"})
	registerer.MustRegister(runs, failures, duration, mismatches, negatives)
	return &Metrics{
		runs:       runs,
		failures:   failures,
		duration:   duration,
		mismatches: mismatches,
		negatives:  negatives,
	}
}
