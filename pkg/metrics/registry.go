// Package metrics exposes a process-wide Prometheus registry gated by
// config.MetricsConfig.Enabled, grounded on the teacher's optional-metrics
// pattern (pkg/metrics/cache.go's IsEnabled/nil-is-zero-overhead
// convention) but adapted to a single registry rather than per-subsystem
// metric constructors, since this module's cache tiers expose cumulative
// Stats() snapshots rather than per-call hooks.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	mu       sync.Mutex
	enabled  bool
	registry *prometheus.Registry
)

// Init enables the registry. Must be called before GetRegistry/IsEnabled
// are consulted by collector construction.
func Init() *prometheus.Registry {
	mu.Lock()
	defer mu.Unlock()
	enabled = true
	registry = prometheus.NewRegistry()
	return registry
}

// IsEnabled reports whether Init has been called.
func IsEnabled() bool {
	mu.Lock()
	defer mu.Unlock()
	return enabled
}

// GetRegistry returns the process registry, or nil if metrics are disabled.
func GetRegistry() *prometheus.Registry {
	mu.Lock()
	defer mu.Unlock()
	return registry
}
