package config

import (
	"os"
	"reflect"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/tigerroll/gridwatch/pkg/gridwatch/support/util/exception"
	"github.com/tigerroll/gridwatch/pkg/gridwatch/support/util/logger"

	"go.uber.org/fx"
)

// Package config provides utilities for loading the application
// configuration from the embedded YAML file, a .env file, and environment
// variable overrides, in that order of precedence (later wins).

const moduleName = "config"

// ConfigParams defines the dependencies for NewConfigProvider.
type ConfigParams struct {
	fx.In
	EmbeddedConfig EmbeddedConfig
	EnvFilePath    string `name:"envFilePath" optional:"true"`
}

// loadConfig loads configuration from the embedded file and environment variables.
// Intended to be called once during application startup.
func loadConfig(envFilePath string, embeddedConfig EmbeddedConfig) (*Config, error) {
	if envFilePath != "" {
		if err := godotenv.Load(envFilePath); err != nil {
			logger.Warnf(".env file (%s) not found or could not be loaded: %v", envFilePath, err)
		}
	} else {
		if err := godotenv.Load(); err != nil {
			logger.Debugf(".env file not found or could not be loaded: %v", err)
		}
	}

	cfg := NewConfig()

	var yamlConfig Config
	if err := yaml.Unmarshal(embeddedConfig, &yamlConfig); err != nil {
		return nil, exception.NewGridError(moduleName, "failed to unmarshal embedded config", err, false)
	}
	mergeConfig(cfg, &yamlConfig)

	if err := loadStructFromEnv(reflect.ValueOf(cfg).Elem(), ""); err != nil {
		return nil, exception.NewGridError(moduleName, "failed to load config from environment variables", err, false)
	}
	return cfg, nil
}

// NewConfigProvider is an Fx provider that loads and provides *Config.
// It applies defaults, merges the embedded YAML, applies environment
// overrides, sets the global log level, and validates configured
// exception-type names.
func NewConfigProvider(params ConfigParams) (*Config, error) {
	cfg, err := loadConfig(params.EnvFilePath, params.EmbeddedConfig)
	if err != nil {
		return nil, err
	}

	logger.SetLogLevel(cfg.Gridwatch.System.Logging.Level)
	logger.Infof("Log level set to: %s", cfg.Gridwatch.System.Logging.Level)

	if err := validateExceptionClasses(cfg); err != nil {
		return nil, exception.NewGridError(moduleName, "failed to validate configured exception classes", err, false)
	}

	return cfg, nil
}

// LoadConfig loads configuration from the embedded file and environment
// variables. Exposed for callers outside the Fx graph (tests, tools).
func LoadConfig(envFilePath string, embeddedConfig EmbeddedConfig) (*Config, error) {
	return loadConfig(envFilePath, embeddedConfig)
}

// validateExceptionClasses checks that every error name referenced in retry
// configuration is registered in the exception registry, so typos fail at
// startup rather than silently never matching.
func validateExceptionClasses(cfg *Config) error {
	for _, name := range cfg.Gridwatch.Data.Retry.RetryableExceptions {
		if !exception.IsErrorTypeRegistered(name) {
			return exception.NewGridErrorf(moduleName, "retryable exception class '%s' is not registered", name)
		}
	}
	return nil
}

// mergeConfig performs a deep merge from sourceConfig into destConfig.
// Non-zero values in sourceConfig overwrite the corresponding defaults.
// Boolean toggles default to false, so zero-value merging is loss-free.
func mergeConfig(destConfig, sourceConfig *Config) {
	dest, source := &destConfig.Gridwatch, &sourceConfig.Gridwatch

	if source.Server.Port != 0 {
		dest.Server.Port = source.Server.Port
	}
	if source.Server.ShutdownTimeoutSeconds != 0 {
		dest.Server.ShutdownTimeoutSeconds = source.Server.ShutdownTimeoutSeconds
	}

	if source.Cache.Disabled {
		dest.Cache.Disabled = true
	}
	if source.Cache.TTLSeconds != 0 {
		dest.Cache.TTLSeconds = source.Cache.TTLSeconds
	}
	if source.Cache.LogStats {
		dest.Cache.LogStats = true
	}

	if source.Data.StorageRef != "" {
		dest.Data.StorageRef = source.Data.StorageRef
	}
	if source.Data.BaseDir != "" {
		dest.Data.BaseDir = source.Data.BaseDir
	}
	if source.Data.AutoCoarseThresholdDays != 0 {
		dest.Data.AutoCoarseThresholdDays = source.Data.AutoCoarseThresholdDays
	}
	mergeRetryConfig(&dest.Data.Retry, &source.Data.Retry)

	if source.Features.UseQueryEngine {
		dest.Features.UseQueryEngine = true
	}
	if source.Features.UseSafeMode {
		dest.Features.UseSafeMode = true
	}
	if source.Features.LazyViews {
		dest.Features.LazyViews = true
	}

	if source.System.Timezone != "" {
		dest.System.Timezone = source.System.Timezone
	}
	if source.System.Logging.Level != "" {
		dest.System.Logging.Level = source.System.Logging.Level
	}

	if source.AdaptorConfigs != nil {
		if dest.AdaptorConfigs == nil {
			dest.AdaptorConfigs = make(map[string]interface{})
		}
		for key, value := range source.AdaptorConfigs {
			dest.AdaptorConfigs[key] = value
		}
	}
	if source.StorageConfigs != nil {
		if dest.StorageConfigs == nil {
			dest.StorageConfigs = make(map[string]interface{})
		}
		for key, value := range source.StorageConfigs {
			dest.StorageConfigs[key] = value
		}
	}
}

// mergeRetryConfig merges source into dest, keeping defaults for zero fields.
func mergeRetryConfig(dest, source *RetryConfig) {
	if source.MaxAttempts != 0 {
		dest.MaxAttempts = source.MaxAttempts
	}
	if source.InitialInterval != 0 {
		dest.InitialInterval = source.InitialInterval
	}
	if source.MaxInterval != 0 {
		dest.MaxInterval = source.MaxInterval
	}
	if source.Factor != 0 {
		dest.Factor = source.Factor
	}
	if source.RetryableExceptions != nil {
		dest.RetryableExceptions = source.RetryableExceptions
	}
}

// loadStructFromEnv walks a struct and overrides fields from environment
// variables named after the yaml tag path, upper-cased and joined with
// underscores. Example: GRIDWATCH_SERVER_PORT overrides
// Config.Gridwatch.Server.Port.
func loadStructFromEnv(val reflect.Value, prefix string) error {
	typ := val.Type()
	for i := 0; i < typ.NumField(); i++ {
		field := val.Field(i)
		fieldType := typ.Field(i)
		yamlTag := fieldType.Tag.Get("yaml")
		if yamlTag == "" || yamlTag == "-" {
			continue
		}
		envVarName := strings.ToUpper(prefix + yamlTag)

		if field.Kind() == reflect.Struct {
			if err := loadStructFromEnv(field, envVarName+"_"); err != nil {
				return err
			}
			continue
		}
		// Named adaptor maps are YAML-only; env override stops at scalars and slices.
		if field.Kind() == reflect.Map {
			continue
		}

		envValue, exists := os.LookupEnv(envVarName)
		if !exists {
			continue
		}

		if err := setField(field, envValue); err != nil {
			return exception.NewGridErrorf(moduleName, "failed to set field '%s' from env var '%s'", fieldType.Name, envVarName, err)
		}
	}
	return nil
}

// setField parses an environment variable string into a struct field.
func setField(field reflect.Value, value string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Int, reflect.Int64:
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetInt(n)
	case reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)
	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)
	case reflect.Slice:
		if field.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(value, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			field.Set(reflect.ValueOf(parts))
		}
	}
	return nil
}
