// Package prometheus implements a Prometheus collector over the cache
// tiers' cumulative Stats() snapshots, grounded on the teacher's
// promauto-based metric constructors (pkg/metrics/prometheus/cache.go) but
// adapted from per-call counters to a pull-style prometheus.Collector,
// since coordinator.Coordinator already exposes point-in-time stats rather than
// a hook for every read/write.
package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/agentvfs/core/pkg/cache/coordinator"
)

// CacheCollector reports L1 decision-cache hit/miss/invalidation counters
// and L2 namespace-view cache occupancy for every registered zone.
type CacheCollector struct {
	zones map[string]*coordinator.Coordinator

	l1Hits          *prometheus.Desc
	l1Misses        *prometheus.Desc
	l1Invalidations *prometheus.Desc
	l2Size          *prometheus.Desc
}

// NewCacheCollector builds a collector over zones, keyed by zone ID.
func NewCacheCollector(zones map[string]*coordinator.Coordinator) *CacheCollector {
	return &CacheCollector{
		zones: zones,
		l1Hits: prometheus.NewDesc("agentvfs_l1_cache_hits_total",
			"Cumulative L1 decision cache hits.", []string{"zone"}, nil),
		l1Misses: prometheus.NewDesc("agentvfs_l1_cache_misses_total",
			"Cumulative L1 decision cache misses.", []string{"zone"}, nil),
		l1Invalidations: prometheus.NewDesc("agentvfs_l1_cache_invalidations_total",
			"Cumulative L1 decision cache entries invalidated.", []string{"zone"}, nil),
		l2Size: prometheus.NewDesc("agentvfs_l2_cache_views",
			"Resident subject views in the L2 namespace cache.", []string{"zone"}, nil),
	}
}

// Describe implements prometheus.Collector.
func (c *CacheCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.l1Hits
	ch <- c.l1Misses
	ch <- c.l1Invalidations
	ch <- c.l2Size
}

// Collect implements prometheus.Collector.
func (c *CacheCollector) Collect(ch chan<- prometheus.Metric) {
	for zone, coord := range c.zones {
		stats := coord.L1Stats()
		ch <- prometheus.MustNewConstMetric(c.l1Hits, prometheus.CounterValue, float64(stats.Hits), zone)
		ch <- prometheus.MustNewConstMetric(c.l1Misses, prometheus.CounterValue, float64(stats.Misses), zone)
		ch <- prometheus.MustNewConstMetric(c.l1Invalidations, prometheus.CounterValue, float64(stats.Invalidations), zone)
		ch <- prometheus.MustNewConstMetric(c.l2Size, prometheus.GaugeValue, float64(coord.L2Size()), zone)
	}
}
