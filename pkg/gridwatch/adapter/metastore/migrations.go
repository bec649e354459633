package metastore

import (
	"database/sql"
	"errors"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratemysql "github.com/golang-migrate/migrate/v4/database/mysql"
	migratepostgres "github.com/golang-migrate/migrate/v4/database/postgres"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/tigerroll/gridwatch/pkg/gridwatch/support/util/exception"
	"github.com/tigerroll/gridwatch/pkg/gridwatch/support/util/logger"
)

// RunMigrations applies the schema migrations for the metadata store from an
// embedded file system. A no-change run is not an error.
func RunMigrations(db *sql.DB, dbType string, migrationsFS fs.FS, dir string) error {
	sourceDriver, err := iofs.New(migrationsFS, dir)
	if err != nil {
		return exception.NewGridError(moduleName, "failed to open embedded migrations", err, false)
	}

	var dbDriver database.Driver
	switch dbType {
	case "sqlite":
		dbDriver, err = migratesqlite.WithInstance(db, &migratesqlite.Config{})
	case "mysql":
		dbDriver, err = migratemysql.WithInstance(db, &migratemysql.Config{})
	case "postgres":
		dbDriver, err = migratepostgres.WithInstance(db, &migratepostgres.Config{})
	default:
		return exception.NewGridErrorf(moduleName, "no migration driver for database type '%s'", dbType)
	}
	if err != nil {
		return exception.NewGridError(moduleName, "failed to initialize migration driver", err, false)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, dbType, dbDriver)
	if err != nil {
		return exception.NewGridError(moduleName, "failed to create migrator", err, false)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return exception.NewGridError(moduleName, "failed to apply metadata migrations", err, false)
	}
	logger.Infof("Metadata store migrations applied (%s).", dbType)
	return nil
}
