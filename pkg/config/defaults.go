package config

import (
	"strings"
	"time"

	"github.com/agentvfs/core/internal/bytesize"
)

// ApplyDefaults fills in sensible defaults for any unspecified fields after
// loading from file and environment. Zero values are replaced; explicit
// values are preserved.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyTelemetryDefaults(&cfg.Telemetry)
	applyMetricsDefaults(&cfg.Metrics)
	applyCacheDefaults(&cfg.Cache)
	applyReBACDefaults(&cfg.ReBAC)
	applyContentStoreDefaults(&cfg.ContentStore)

	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	if cfg.MetadataStore.Type == "" {
		cfg.MetadataStore.Type = "memory"
	}
	if cfg.BlobStore.Type == "" {
		cfg.BlobStore.Type = "memory"
	}
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyTelemetryDefaults(cfg *TelemetryConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "localhost:4317"
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 1.0
	}
	applyProfilingDefaults(&cfg.Profiling)
}

func applyProfilingDefaults(cfg *ProfilingConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "http://localhost:4040"
	}
	if len(cfg.ProfileTypes) == 0 {
		cfg.ProfileTypes = []string{"cpu", "alloc_objects", "alloc_space", "inuse_objects", "inuse_space", "goroutines"}
	}
}

func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Port == 0 {
		cfg.Port = 9090
	}
}

func applyCacheDefaults(cfg *CacheConfig) {
	if cfg.L1.Shards == 0 {
		cfg.L1.Shards = 16
	}
	if cfg.L1.MaxSize == 0 {
		cfg.L1.MaxSize = 64 * bytesize.MB
	}
	if cfg.L1.TTL == 0 {
		cfg.L1.TTL = 30 * time.Second
	}
	if cfg.L2.MaxEntries == 0 {
		cfg.L2.MaxEntries = 4096
	}
	if cfg.L2.TTL == 0 {
		cfg.L2.TTL = 2 * time.Minute
	}
	// L3 defaults to enabled; a false value is the zero value and is
	// replaced too.
	cfg.L3.Enabled = true
}

func applyReBACDefaults(cfg *ReBACConfig) {
	if cfg.MaxDepth == 0 {
		cfg.MaxDepth = 10
	}
	if cfg.MaxFanOut == 0 {
		cfg.MaxFanOut = 1000
	}
	if cfg.CheckTimeout == 0 {
		cfg.CheckTimeout = 200 * time.Millisecond
	}
	if cfg.DefaultConsistency == "" {
		cfg.DefaultConsistency = "BOUNDED"
	}
}

func applyContentStoreDefaults(cfg *ContentStoreConfig) {
	if cfg.GCGracePeriod == 0 {
		cfg.GCGracePeriod = 24 * time.Hour
	}
	if cfg.ReconcileSweepInterval == 0 {
		cfg.ReconcileSweepInterval = 5 * time.Minute
	}
}

// GetDefaultConfig returns a fully-defaulted configuration suitable for
// local development: in-memory metadata/blob stores, a single "default"
// zone, and a single root mount.
func GetDefaultConfig() *Config {
	cfg := &Config{
		MetadataStore: MetadataStoreConfig{Type: "memory"},
		BlobStore:     BlobStoreConfig{Type: "memory"},
		Mounts: []MountConfig{
			{Path: "/", Backend: "default"},
		},
		Zones: []ZoneConfig{
			{ID: "default", Name: "default"},
		},
	}
	ApplyDefaults(cfg)
	return cfg
}
