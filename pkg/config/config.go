// Package config loads and validates the agentvfs daemon configuration:
// ambient settings (logging, telemetry, metrics) plus the domain stack
// (metadata/blob backend selection, ReBAC graph bounds, cache sizing,
// garbage-collection cadence, and static mount/namespace definitions).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/agentvfs/core/internal/bytesize"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config is the agentvfs daemon configuration.
//
// Configuration sources, in order of precedence:
//  1. CLI flags (highest priority)
//  2. Environment variables (AGENTVFS_*)
//  3. Configuration file (YAML)
//  4. Default values (lowest priority)
type Config struct {
	// Logging controls log output behavior.
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Telemetry controls OpenTelemetry distributed tracing.
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry"`

	// ShutdownTimeout is the maximum time to wait for graceful shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0" yaml:"shutdown_timeout"`

	// Metrics contains Prometheus metrics server configuration.
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`

	// MetadataStore selects and configures the backend behind every
	// MetadataStore-shaped component (inode table, tuple store, version
	// chains, mount table).
	MetadataStore MetadataStoreConfig `mapstructure:"metadata_store" yaml:"metadata_store"`

	// BlobStore selects and configures the backend behind the content
	// store's chunk storage.
	BlobStore BlobStoreConfig `mapstructure:"blob_store" yaml:"blob_store"`

	// Cache configures the three-tier (L1/L2/L3) permission cache.
	Cache CacheConfig `mapstructure:"cache" yaml:"cache"`

	// ReBAC configures the userset-rewrite check engine's resource bounds.
	ReBAC ReBACConfig `mapstructure:"rebac" yaml:"rebac"`

	// ContentStore configures content-addressed storage behavior: hashing
	// mode, dedup, and reference-count reconciliation.
	ContentStore ContentStoreConfig `mapstructure:"content_store" yaml:"content_store"`

	// Mounts declares the static path-to-backend mount table.
	Mounts []MountConfig `mapstructure:"mounts" yaml:"mounts"`

	// Zones declares the tenant/zone namespace definitions available at
	// startup. Additional zones can be created at runtime via the admin API.
	Zones []ZoneConfig `mapstructure:"zones" yaml:"zones"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output.
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive).
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// Format specifies the log output format: text or json.
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output specifies where logs are written: stdout, stderr, or a file path.
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// TelemetryConfig controls OpenTelemetry distributed tracing. When enabled,
// trace data is exported via OTLP/gRPC to a collector (e.g. Jaeger, Tempo).
type TelemetryConfig struct {
	Enabled    bool             `mapstructure:"enabled" yaml:"enabled"`
	Endpoint   string           `mapstructure:"endpoint" yaml:"endpoint"`
	Insecure   bool             `mapstructure:"insecure" yaml:"insecure"`
	SampleRate float64          `mapstructure:"sample_rate" validate:"omitempty,gte=0,lte=1" yaml:"sample_rate"`
	Profiling  ProfilingConfig  `mapstructure:"profiling" yaml:"profiling"`
}

// ProfilingConfig controls Pyroscope continuous profiling.
type ProfilingConfig struct {
	Enabled      bool     `mapstructure:"enabled" yaml:"enabled"`
	Endpoint     string   `mapstructure:"endpoint" yaml:"endpoint"`
	ProfileTypes []string `mapstructure:"profile_types" yaml:"profile_types"`
}

// MetricsConfig configures the Prometheus metrics HTTP server.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	Port    int  `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port"`
}

// MetadataStoreConfig selects and configures the MetadataStore backend.
type MetadataStoreConfig struct {
	// Type selects the backend: memory, badger, postgres, sqlite.
	Type string `mapstructure:"type" validate:"required,oneof=memory badger postgres sqlite" yaml:"type"`

	Memory   map[string]any `mapstructure:"memory" yaml:"memory,omitempty"`
	Badger   map[string]any `mapstructure:"badger" yaml:"badger,omitempty"`
	Postgres map[string]any `mapstructure:"postgres" yaml:"postgres,omitempty"`
	SQLite   map[string]any `mapstructure:"sqlite" yaml:"sqlite,omitempty"`
}

// BlobStoreConfig selects and configures the BlobStore backend.
type BlobStoreConfig struct {
	// Type selects the backend: memory, fs, s3.
	Type string `mapstructure:"type" validate:"required,oneof=memory fs s3" yaml:"type"`

	Memory map[string]any  `mapstructure:"memory" yaml:"memory,omitempty"`
	FS     *BlobFSConfig   `mapstructure:"fs" yaml:"fs,omitempty"`
	S3     *BlobS3Config   `mapstructure:"s3" yaml:"s3,omitempty"`
}

// BlobFSConfig configures the filesystem-backed BlobStore.
type BlobFSConfig struct {
	BasePath  string `mapstructure:"base_path" yaml:"base_path"`
	CreateDir *bool  `mapstructure:"create_dir" yaml:"create_dir,omitempty"`
	DirMode   uint32 `mapstructure:"dir_mode" yaml:"dir_mode,omitempty"`
	FileMode  uint32 `mapstructure:"file_mode" yaml:"file_mode,omitempty"`
}

// BlobS3Config configures the S3-backed BlobStore.
type BlobS3Config struct {
	Bucket          string `mapstructure:"bucket" yaml:"bucket"`
	Region          string `mapstructure:"region" yaml:"region"`
	Endpoint        string `mapstructure:"endpoint" yaml:"endpoint,omitempty"`
	AccessKeyID     string `mapstructure:"access_key_id" yaml:"access_key_id,omitempty"`
	SecretAccessKey string `mapstructure:"secret_access_key" yaml:"secret_access_key,omitempty"`
	Prefix          string `mapstructure:"prefix" yaml:"prefix,omitempty"`
	MaxRetries      int    `mapstructure:"max_retries" yaml:"max_retries,omitempty"`
	ForcePathStyle  bool   `mapstructure:"force_path_style" yaml:"force_path_style,omitempty"`
}

// CacheConfig holds settings for the three-tier permission cache. server.New
// does not pass them to the tiers: l1, l2 and l3 are built with their
// package defaults.
type CacheConfig struct {
	// L1 configures the in-process decision-cache shards.
	L1 L1CacheConfig `mapstructure:"l1" yaml:"l1"`

	// L2 configures the namespace/mount-view cache.
	L2 L2CacheConfig `mapstructure:"l2" yaml:"l2"`

	// L3 holds the persistent namespace-view tier's switch. L3 always
	// rides on MetadataStore; there is no separate backend to select, and
	// Enabled is not read outside this package.
	L3 L3CacheConfig `mapstructure:"l3" yaml:"l3"`
}

// L1CacheConfig configures the sharded in-process decision cache.
type L1CacheConfig struct {
	Shards   int               `mapstructure:"shards" yaml:"shards,omitempty"`
	MaxSize  bytesize.ByteSize `mapstructure:"max_size" yaml:"max_size,omitempty"`
	TTL      time.Duration     `mapstructure:"ttl" yaml:"ttl,omitempty"`
}

// L2CacheConfig configures the namespace/mount-view cache.
type L2CacheConfig struct {
	MaxEntries int           `mapstructure:"max_entries" yaml:"max_entries,omitempty"`
	TTL        time.Duration `mapstructure:"ttl" yaml:"ttl,omitempty"`
}

// L3CacheConfig configures the persistent namespace-view tier.
type L3CacheConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

// ReBACConfig configures the userset-rewrite check engine's resource bounds.
type ReBACConfig struct {
	// MaxDepth bounds userset-rewrite recursion depth.
	MaxDepth int `mapstructure:"max_depth" validate:"omitempty,min=1" yaml:"max_depth,omitempty"`

	// MaxFanOut bounds the number of tuples expanded at any single level.
	MaxFanOut int `mapstructure:"max_fan_out" validate:"omitempty,min=1" yaml:"max_fan_out,omitempty"`

	// CheckTimeout bounds wall-clock time for a single Check call.
	CheckTimeout time.Duration `mapstructure:"check_timeout" yaml:"check_timeout,omitempty"`

	// DefaultConsistency is the consistency level used when a caller does
	// not specify one: EVENTUAL, BOUNDED, or STRONG.
	DefaultConsistency string `mapstructure:"default_consistency" validate:"omitempty,oneof=EVENTUAL BOUNDED STRONG" yaml:"default_consistency,omitempty"`
}

// ContentStoreConfig configures content-addressed storage behavior.
type ContentStoreConfig struct {
	// FastDedupe is the opt-in switch for smart-hash dedup (size+partial-hash
	// probe before a full content hash). The content store does not read
	// it: every write is hashed in full.
	FastDedupe bool `mapstructure:"fast_dedupe" yaml:"fast_dedupe"`

	// GCGracePeriod is a grace period for zero-refcount blobs. The content
	// store does not read it: Sweep uses content.GraceWindow (60 s) unless
	// its caller passes SweepOptions.GraceWindow.
	GCGracePeriod time.Duration `mapstructure:"gc_grace_period" yaml:"gc_grace_period,omitempty"`

	// ReconcileSweepInterval is a cadence for refcount reconciliation.
	// Nothing reads it: no background loop runs version.Store.Reconcile,
	// which runs only when called.
	ReconcileSweepInterval time.Duration `mapstructure:"reconcile_sweep_interval" yaml:"reconcile_sweep_interval,omitempty"`
}

// MountConfig declares one entry in the static path-to-backend mount table.
type MountConfig struct {
	// Path is the mount point within the unified path namespace.
	Path string `mapstructure:"path" validate:"required" yaml:"path"`

	// Backend identifies which configured MetadataStore/BlobStore pair
	// this mount routes to. "default" uses the top-level MetadataStore/
	// BlobStore configuration.
	Backend string `mapstructure:"backend" yaml:"backend,omitempty"`

	// ReadOnly marks the mount as rejecting all write operations.
	ReadOnly bool `mapstructure:"read_only" yaml:"read_only,omitempty"`
}

// ZoneConfig declares a tenant/zone present at startup.
type ZoneConfig struct {
	ID   string `mapstructure:"id" validate:"required" yaml:"id"`
	Name string `mapstructure:"name" yaml:"name,omitempty"`
}

// Load loads configuration from file, environment, and defaults.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	configFileFound, err := readConfigFile(v)
	if err != nil {
		return nil, err
	}

	if !configFileFound {
		cfg := GetDefaultConfig()
		return cfg, nil
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration with helpful error messages when the file is
// missing.
func MustLoad(configPath string) (*Config, error) {
	if configPath == "" {
		if !DefaultConfigExists() {
			return nil, fmt.Errorf("no configuration file found at default location: %s\n\n"+
				"Please initialize a configuration file first:\n"+
				"  agentvfsd init\n\n"+
				"Or specify a custom config file:\n"+
				"  agentvfsd <command> --config /path/to/config.yaml",
				GetDefaultConfigPath())
		}
		configPath = GetDefaultConfigPath()
	} else if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s\n\n"+
			"Please create the configuration file:\n"+
			"  agentvfsd init --config %s",
			configPath, configPath)
	}

	cfg, err := Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	return cfg, nil
}

// SaveConfig saves the configuration to the specified file path in YAML.
func SaveConfig(cfg *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// setupViper configures viper with environment variable and config file
// search settings.
func setupViper(v *viper.Viper, configPath string) {
	v.SetEnvPrefix("AGENTVFS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv only reaches keys viper already knows, so bind every
	// Config key; otherwise an AGENTVFS_* variable for a key the file
	// omits would never reach Unmarshal.
	var bindKeys func(t reflect.Type, prefix string)
	bindKeys = func(t reflect.Type, prefix string) {
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			key := prefix + f.Tag.Get("mapstructure")
			if f.Type.Kind() == reflect.Struct {
				bindKeys(f.Type, key+".")
				continue
			}
			_ = v.BindEnv(key)
		}
	}
	bindKeys(reflect.TypeOf(Config{}), "")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		configDir := getConfigDir()
		v.AddConfigPath(configDir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if it exists. Returns
// (fileFound, error).
func readConfigFile(v *viper.Viper) (bool, error) {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return false, nil
		}
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read config file: %w", err)
	}
	return true, nil
}

// configDecodeHooks returns a combined mapstructure decode hook for
// ByteSize and time.Duration fields.
func configDecodeHooks() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		byteSizeDecodeHook(),
		durationDecodeHook(),
	)
}

// byteSizeDecodeHook converts strings and integers to bytesize.ByteSize,
// enabling config files to use human-readable sizes like "1Gi" or "500Mi".
func byteSizeDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(bytesize.ByteSize(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return bytesize.ParseByteSize(v)
		case int:
			return bytesize.ByteSize(v), nil
		case int64:
			return bytesize.ByteSize(v), nil
		case uint64:
			return bytesize.ByteSize(v), nil
		case float64:
			return bytesize.ByteSize(v), nil
		default:
			return data, nil
		}
	}
}

// durationDecodeHook converts strings to time.Duration, enabling config
// files to use human-readable durations like "30s" or "5m".
func durationDecodeHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if to != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}

		switch v := data.(type) {
		case string:
			return time.ParseDuration(v)
		case int:
			return time.Duration(v), nil
		case int64:
			return time.Duration(v), nil
		case float64:
			return time.Duration(v), nil
		default:
			return data, nil
		}
	}
}

// getConfigDir returns the configuration directory: $XDG_CONFIG_HOME/agentvfs,
// ~/.config/agentvfs, or "." as a last resort.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "agentvfs")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "agentvfs")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// DefaultConfigExists reports whether a config file exists at the default
// location.
func DefaultConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// GetConfigDir returns the configuration directory path.
func GetConfigDir() string {
	return getConfigDir()
}
