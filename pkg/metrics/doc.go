/*
Package metrics provides Prometheus metrics collection and exposition for
quartz's scheduling core.

Metrics are grouped by concern:

  - Jobs: counts by state, scheduled/reserved/skipped/cancelled counters.
  - Scheduling loop: pass latency, pending queue depth.
  - Planner: reservation counts by resource path, avail_time query latency.
  - Raft: leader status, applied index, apply latency (the job-record
    replication layer, see pkg/replication).

# Usage

	import "github.com/quartzsched/quartz/pkg/metrics"

	metrics.JobsTotal.WithLabelValues("pending").Set(12)
	metrics.JobsScheduled.Inc()

	timer := metrics.NewTimer()
	// ... run one scheduling pass ...
	timer.ObserveDuration(metrics.SchedulingPassLatency)

A Collector polls a metrics.StatsSource (implemented by pkg/core.Core) every
15 seconds and keeps the gauges current:

	collector := metrics.NewCollector(core)
	collector.Start()
	defer collector.Stop()

HTTP handlers for scraping and health checks:

	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/health", metrics.HealthHandler())
	mux.HandleFunc("/ready", metrics.ReadyHandler())
	mux.HandleFunc("/live", metrics.LivenessHandler())
*/
package metrics
