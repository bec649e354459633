// Package config provides core configuration structures for gridwatch.
// This file defines the Fx providers for configuration-related components.
package config

import "go.uber.org/fx"

// NewLoggingConfigProvider extracts and provides *LoggingConfig from *Config,
// so components can depend on just the logging settings.
func NewLoggingConfigProvider(cfg *Config) *LoggingConfig {
	return &cfg.Gridwatch.System.Logging
}

// NewCacheConfigProvider extracts and provides *CacheConfig from *Config.
func NewCacheConfigProvider(cfg *Config) *CacheConfig {
	return &cfg.Gridwatch.Cache
}

// NewDataConfigProvider extracts and provides *DataConfig from *Config.
func NewDataConfigProvider(cfg *Config) *DataConfig {
	return &cfg.Gridwatch.Data
}

// Module provides configuration-related components to Fx.
var Module = fx.Options(
	fx.Provide(NewConfigProvider),
	fx.Provide(NewLoggingConfigProvider),
	fx.Provide(NewCacheConfigProvider),
	fx.Provide(NewDataConfigProvider),
)
