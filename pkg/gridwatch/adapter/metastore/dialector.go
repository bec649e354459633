package metastore

import (
	"fmt"
	"sync"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gorm_logger "gorm.io/gorm/logger"

	coreConfig "github.com/tigerroll/gridwatch/pkg/gridwatch/core/config"
	"github.com/tigerroll/gridwatch/pkg/gridwatch/support/util/logger"
)

// DialectorFactory builds a gorm.Dialector from a database configuration.
type DialectorFactory func(cfg DatabaseConfig) (gorm.Dialector, error)

var (
	dialectorMu       sync.RWMutex
	dialectorRegistry = map[string]DialectorFactory{}
)

// RegisterDialector registers a dialector factory for a database type.
// The built-in sqlite/mysql/postgres factories register in init; the
// registry exists so tests can install a sqlmock-backed dialector.
func RegisterDialector(dbType string, factory DialectorFactory) {
	dialectorMu.Lock()
	defer dialectorMu.Unlock()
	dialectorRegistry[dbType] = factory
}

func init() {
	RegisterDialector("sqlite", func(cfg DatabaseConfig) (gorm.Dialector, error) {
		dsn, err := cfg.DSN()
		if err != nil {
			return nil, err
		}
		return sqlite.Open(dsn), nil
	})
	RegisterDialector("mysql", func(cfg DatabaseConfig) (gorm.Dialector, error) {
		dsn, err := cfg.DSN()
		if err != nil {
			return nil, err
		}
		return mysql.Open(dsn), nil
	})
	RegisterDialector("postgres", func(cfg DatabaseConfig) (gorm.Dialector, error) {
		dsn, err := cfg.DSN()
		if err != nil {
			return nil, err
		}
		return postgres.Open(dsn), nil
	})
}

// newGormLogger maps the application log level onto gorm's logger.
func newGormLogger(level string) gorm_logger.Interface {
	var gormLevel gorm_logger.LogLevel
	switch level {
	case "ERROR":
		gormLevel = gorm_logger.Error
	case "WARN":
		gormLevel = gorm_logger.Warn
	case "DEBUG", "INFO":
		gormLevel = gorm_logger.Info
	default:
		gormLevel = gorm_logger.Silent
	}
	return gorm_logger.Default.LogMode(gormLevel)
}

// OpenDatabase opens the named connection from the `gridwatch.database`
// configuration map.
func OpenDatabase(cfg *coreConfig.Config, dbCfg DatabaseConfig) (*gorm.DB, error) {
	dialectorMu.RLock()
	factory, ok := dialectorRegistry[dbCfg.Type]
	dialectorMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no dialector registered for database type '%s'", dbCfg.Type)
	}
	dialector, err := factory(dbCfg)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: newGormLogger(cfg.Gridwatch.System.Logging.Level),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", dbCfg.Type, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetConnMaxLifetime(time.Hour)
	logger.Debugf("Opened %s metadata database.", dbCfg.Type)
	return db, nil
}
