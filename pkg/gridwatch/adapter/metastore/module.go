package metastore

import (
	"io/fs"

	"github.com/mitchellh/mapstructure"
	"go.uber.org/fx"

	coreConfig "github.com/tigerroll/gridwatch/pkg/gridwatch/core/config"
	"github.com/tigerroll/gridwatch/pkg/gridwatch/core/port"
	"github.com/tigerroll/gridwatch/pkg/gridwatch/support/util/exception"
	"github.com/tigerroll/gridwatch/pkg/gridwatch/support/util/logger"
)

// metadataConnectionName is the key in the `gridwatch.database` map that
// holds the metadata store connection.
const metadataConnectionName = "metadata"

// SourceParams defines the dependencies for NewMetadataSource.
type SourceParams struct {
	fx.In
	Cfg *coreConfig.Config
	// SnapshotCSV is the embedded static reference table, used when the
	// query engine is disabled.
	SnapshotCSV []byte `name:"metadataSnapshotCSV"`
	// MigrationsFS holds the metadata store schema migrations.
	MigrationsFS fs.FS `name:"metadataMigrationsFS" optional:"true"`
}

// NewMetadataSource selects and constructs the MetadataSource backend.
// Selection is driven by configuration and happens exactly once, here;
// nothing downstream knows which backend is in play.
func NewMetadataSource(p SourceParams) (port.MetadataSource, error) {
	if !p.Cfg.Gridwatch.Features.UseQueryEngine {
		logger.Infof("Metadata source: static snapshot (query engine disabled).")
		return NewStaticMetadataSource(p.SnapshotCSV)
	}

	raw, ok := p.Cfg.Gridwatch.AdaptorConfigs[metadataConnectionName]
	if !ok {
		return nil, exception.NewGridErrorf(moduleName, "use_query_engine is set but database '%s' is not configured", metadataConnectionName)
	}
	var dbCfg DatabaseConfig
	if err := mapstructure.Decode(raw, &dbCfg); err != nil {
		return nil, exception.NewGridError(moduleName, "failed to decode metadata database config", err, false)
	}

	db, err := OpenDatabase(p.Cfg, dbCfg)
	if err != nil {
		return nil, exception.NewGridError(moduleName, "failed to open metadata database", err, false)
	}

	if p.MigrationsFS != nil {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, exception.NewGridError(moduleName, "failed to unwrap sql.DB for migrations", err, false)
		}
		if err := RunMigrations(sqlDB, dbCfg.Type, p.MigrationsFS, "migrations"); err != nil {
			return nil, err
		}
	}

	logger.Infof("Metadata source: %s query engine.", dbCfg.Type)
	return NewGormMetadataStore(db), nil
}

// Module provides the MetadataSource to Fx.
var Module = fx.Options(
	fx.Provide(NewMetadataSource),
)
