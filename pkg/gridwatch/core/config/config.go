package config

// Package config provides structures and utilities for managing the
// gridwatch application configuration.

// EmbeddedConfig holds the content of the configuration file, typically
// passed from main.go via go:embed.
type EmbeddedConfig []byte

// RetryConfig holds the bounded-backoff settings used when a data file is
// mid-rewrite by a concurrent publisher. A fixed number of attempts with
// increasing delay, then the load surfaces as DataUnavailable.
type RetryConfig struct {
	MaxAttempts     int     `yaml:"max_attempts"`     // MaxAttempts is the maximum number of attempts, including the first.
	InitialInterval int     `yaml:"initial_interval"` // InitialInterval is the initial backoff interval in milliseconds.
	MaxInterval     int     `yaml:"max_interval"`     // MaxInterval caps the backoff interval in milliseconds.
	Factor          float64 `yaml:"factor"`           // Factor is the multiplier applied to the interval after each attempt.
	// RetryableExceptions lists registered error type names considered retryable
	// in addition to errors flagged retryable at the source.
	RetryableExceptions []string `yaml:"retryable_exceptions"`
}

// DataConfig holds settings for the data adapter layer.
type DataConfig struct {
	// StorageRef is the name of the storage connection holding the parquet files.
	StorageRef string `yaml:"storage_ref"`
	// BaseDir is the path prefix (or bucket subpath) under which datasets live.
	BaseDir string `yaml:"base_dir"`
	// AutoCoarseThresholdDays is the window length beyond which resolution
	// "auto" falls back from 5-minute to 30-minute data.
	AutoCoarseThresholdDays int `yaml:"auto_coarse_threshold_days"`
	// Retry configures bounded backoff for transient file-access failures.
	Retry RetryConfig `yaml:"retry"`
}

// CacheConfig holds settings for the result cache.
type CacheConfig struct {
	// Disabled turns the cache into a pure pass-through. This is not a
	// zero-ttl cache: no fingerprinting happens at all, so timings with the
	// cache off are comparable against timings with it on.
	Disabled bool `yaml:"disabled"`
	// TTLSeconds is the default entry time-to-live.
	TTLSeconds int `yaml:"ttl_seconds"`
	// LogStats enables periodic hit/miss logging and Prometheus counters.
	LogStats bool `yaml:"log_stats"`
}

// FeatureConfig holds backend-selection toggles. Backends are chosen here at
// construction time; nothing in gridwatch swaps implementations after startup.
type FeatureConfig struct {
	// UseQueryEngine selects the SQL-backed metadata source instead of the
	// static CSV snapshot.
	UseQueryEngine bool `yaml:"use_query_engine"`
	// UseSafeMode disables background prefetching; every chart computes
	// synchronously on request.
	UseSafeMode bool `yaml:"use_safe_mode"`
	// LazyViews defers prefetch of a dashboard slot until it is first requested.
	LazyViews bool `yaml:"lazy_views"`
}

// ServerConfig holds the HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"` // Port is the listen port for the dashboard API.
	// ShutdownTimeoutSeconds bounds graceful shutdown.
	ShutdownTimeoutSeconds int `yaml:"shutdown_timeout_seconds"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the logging level (e.g., "INFO", "DEBUG").
	Level string `yaml:"level"`
}

// SystemConfig holds system-wide settings.
type SystemConfig struct {
	// Timezone is the market timezone (e.g., "Australia/Brisbane"). Request
	// timestamps carrying a UTC offset are converted into it; settlement
	// dates themselves stay naive.
	Timezone string `yaml:"timezone"`
	// Logging is the logging configuration.
	Logging LoggingConfig `yaml:"logging"`
}

// GridwatchConfig holds all configuration under the "gridwatch" top-level key.
type GridwatchConfig struct {
	Server   ServerConfig  `yaml:"server"`
	Cache    CacheConfig   `yaml:"cache"`
	Data     DataConfig    `yaml:"data"`
	Features FeatureConfig `yaml:"features"`
	System   SystemConfig  `yaml:"system"`
	// AdaptorConfigs holds named database connection configurations.
	AdaptorConfigs map[string]interface{} `yaml:"database"`
	// StorageConfigs holds named storage connection configurations.
	StorageConfigs map[string]interface{} `yaml:"storage"`
}

// Config is the root structure for the entire application configuration.
type Config struct {
	// Gridwatch contains the top-level configuration for the application.
	Gridwatch GridwatchConfig `yaml:"gridwatch"`
	// EmbeddedConfig holds configuration loaded from an embedded source, not from YAML.
	EmbeddedConfig EmbeddedConfig `yaml:"-"`
}

// NewConfig returns a new Config populated with default values.
func NewConfig() *Config {
	return &Config{
		Gridwatch: GridwatchConfig{
			Server: ServerConfig{
				Port:                   8086,
				ShutdownTimeoutSeconds: 10,
			},
			Cache: CacheConfig{
				TTLSeconds: 300,
			},
			Data: DataConfig{
				StorageRef:              "local",
				BaseDir:                 "data",
				AutoCoarseThresholdDays: 30,
				Retry: RetryConfig{
					MaxAttempts:     4,
					InitialInterval: 250,
					MaxInterval:     5000,
					Factor:          2.0,
				},
			},
			System: SystemConfig{
				Timezone: "Australia/Brisbane",
				Logging:  LoggingConfig{Level: "INFO"},
			},
		},
	}
}
