package metrics

import "time"

// Stats is the snapshot a Collector polls from the core orchestrator: job
// counts by state and reservation counts by resource path.
type Stats struct {
	JobsByState        map[string]int
	PendingQueueDepth  int
	ReservationsByPath map[string]int
}

// StatsSource is implemented by pkg/core.Core.
type StatsSource interface {
	Stats() Stats
}

// Collector periodically polls a StatsSource and updates the package's
// Prometheus gauges.
type Collector struct {
	source StatsSource
	stopCh chan struct{}
}

// NewCollector creates a new metrics collector over source.
func NewCollector(source StatsSource) *Collector {
	return &Collector{source: source, stopCh: make(chan struct{})}
}

// Start begins collecting metrics every 15 seconds.
func (c *Collector) Start() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		c.collect()
		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	stats := c.source.Stats()

	for _, state := range []string{
		"null", "reserved", "submitted", "pending", "sched-req", "selected",
		"allocated", "run-request", "starting", "running", "complete",
		"cancelled", "reaped",
	} {
		JobsTotal.WithLabelValues(state).Set(float64(stats.JobsByState[state]))
	}

	PendingQueueDepth.Set(float64(stats.PendingQueueDepth))

	for path, count := range stats.ReservationsByPath {
		ReservationsTotal.WithLabelValues(path).Set(float64(count))
	}
}
