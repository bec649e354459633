// Package metastore provides the unit-metadata reference table sources: a
// SQL-backed store used when the embedded query engine is enabled, and a
// static CSV snapshot used otherwise. Backend selection happens once, at
// construction time, from configuration.
package metastore

import "fmt"

// DatabaseConfig holds the settings for one named database connection,
// decoded from the `gridwatch.database` map with mapstructure.
type DatabaseConfig struct {
	// Type selects the driver: "sqlite", "mysql" or "postgres".
	Type string `yaml:"type" mapstructure:"type"`
	Host string `yaml:"host" mapstructure:"host"`
	Port int    `yaml:"port" mapstructure:"port"`
	// Database is the database name, or the file path for sqlite.
	Database string `yaml:"database" mapstructure:"database"`
	User     string `yaml:"user" mapstructure:"user"`
	Password string `yaml:"password" mapstructure:"password"`
	SSLMode  string `yaml:"sslmode" mapstructure:"sslmode"`
}

// DSN renders the driver-specific connection string.
func (c DatabaseConfig) DSN() (string, error) {
	switch c.Type {
	case "sqlite":
		if c.Database == "" {
			return "", fmt.Errorf("sqlite database path cannot be empty")
		}
		return c.Database, nil
	case "mysql":
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true", c.User, c.Password, c.Host, c.Port, c.Database), nil
	case "postgres":
		sslmode := c.SSLMode
		if sslmode == "" {
			sslmode = "disable"
		}
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s", c.Host, c.Port, c.User, c.Password, c.Database, sslmode), nil
	default:
		return "", fmt.Errorf("unknown database type '%s'", c.Type)
	}
}
