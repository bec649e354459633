// Package config defines the configuration structure shared by the storage adapters.
package config

// StorageConfig holds the settings for one named storage connection, decoded
// from the `gridwatch.storage` map with mapstructure.
type StorageConfig struct {
	// Type selects the provider: "local" or "gcs".
	Type string `yaml:"type" mapstructure:"type"`
	// BaseDir is the root directory for the local provider.
	BaseDir string `yaml:"base_dir" mapstructure:"base_dir"`
	// Bucket is the bucket name for the gcs provider.
	Bucket string `yaml:"bucket" mapstructure:"bucket"`
	// Anonymous, for gcs, skips credential lookup and reads public objects.
	Anonymous bool `yaml:"anonymous" mapstructure:"anonymous"`
}
