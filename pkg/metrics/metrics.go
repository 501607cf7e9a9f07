package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Job metrics
	JobsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "quartz_jobs_total",
			Help: "Total number of jobs by state",
		},
		[]string{"state"},
	)

	JobsScheduled = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "quartz_jobs_scheduled_total",
			Help: "Total number of jobs allocated resources and sent a run request",
		},
	)

	JobsSkipped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "quartz_jobs_skipped_total",
			Help: "Total number of jobs skipped in a scheduling pass due to a recoverable error",
		},
	)

	JobsReserved = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "quartz_jobs_reserved_total",
			Help: "Total number of jobs given a future reservation instead of running now",
		},
	)

	JobsCancelled = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "quartz_jobs_cancelled_total",
			Help: "Total number of jobs cancelled",
		},
	)

	// Scheduling loop metrics
	SchedulingPassLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "quartz_scheduling_pass_latency_seconds",
			Help:    "Time taken for one scheduling pass",
			Buckets: prometheus.DefBuckets,
		},
	)

	PendingQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "quartz_pending_queue_depth",
			Help: "Number of jobs currently pending scheduling",
		},
	)

	// Planner metrics
	ReservationsTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "quartz_reservations_total",
			Help: "Total number of active reservations, by resource path",
		},
		[]string{"resource_path"},
	)

	AvailTimeQueryDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "quartz_avail_time_query_duration_seconds",
			Help:    "Time taken to answer an avail_time_first/next query",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Raft metrics for the replicated job-table FSM (pkg/replication).
	RaftLeader = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "quartz_raft_is_leader",
			Help: "Whether this node is the Raft leader (1 = leader, 0 = follower)",
		},
	)

	RaftAppliedIndex = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "quartz_raft_applied_index",
			Help: "Last applied Raft log index",
		},
	)

	RaftApplyDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "quartz_raft_apply_duration_seconds",
			Help:    "Time taken to apply a Raft log entry",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(JobsTotal)
	prometheus.MustRegister(JobsScheduled)
	prometheus.MustRegister(JobsSkipped)
	prometheus.MustRegister(JobsReserved)
	prometheus.MustRegister(JobsCancelled)
	prometheus.MustRegister(SchedulingPassLatency)
	prometheus.MustRegister(PendingQueueDepth)
	prometheus.MustRegister(ReservationsTotal)
	prometheus.MustRegister(AvailTimeQueryDuration)
	prometheus.MustRegister(RaftLeader)
	prometheus.MustRegister(RaftAppliedIndex)
	prometheus.MustRegister(RaftApplyDuration)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
