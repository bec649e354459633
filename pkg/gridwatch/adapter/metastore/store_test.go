package metastore_test

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gorm_logger "gorm.io/gorm/logger"

	metastore "github.com/tigerroll/gridwatch/pkg/gridwatch/adapter/metastore"
	coreConfig "github.com/tigerroll/gridwatch/pkg/gridwatch/core/config"
	model "github.com/tigerroll/gridwatch/pkg/gridwatch/core/domain/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*metastore.GormMetadataStore, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{
		Conn:                 sqlDB,
		PreferSimpleProtocol: true,
	}), &gorm.Config{Logger: gorm_logger.Default.LogMode(gorm_logger.Silent)})
	require.NoError(t, err)

	return metastore.NewGormMetadataStore(db), mock
}

func TestGormStoreNormalizesOnRead(t *testing.T) {
	store, mock := newMockStore(t)

	rows := sqlmock.NewRows([]string{"duid", "regionid", "fuel_type", "capacity_mw"}).
		AddRow("baysw1", "NSW1", "Coal", 660.0).
		AddRow("MACARTH1", "vic1", "Wind", 420.0)
	mock.ExpectQuery(`SELECT \* FROM "unit_metadata"`).WillReturnRows(rows)

	table, err := store.UnitMetadata(context.Background())
	require.NoError(t, err)
	require.Len(t, table, 2)

	m := table["BAYSW1"]
	assert.Equal(t, "nsw1", m.RegionID)
	assert.Equal(t, model.FuelCoal, m.FuelType)
	assert.InDelta(t, 660.0, m.CapacityMW, 1e-9)
	assert.Equal(t, model.FuelWind, table["MACARTH1"].FuelType)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStoreSkipsEmptyDUIDAndKeepsLastDuplicate(t *testing.T) {
	store, mock := newMockStore(t)

	rows := sqlmock.NewRows([]string{"duid", "regionid", "fuel_type", "capacity_mw"}).
		AddRow("", "NSW1", "Coal", 100.0).
		AddRow("torrb1", "SA1", "Gas", 800.0).
		AddRow("TORRB1", "SA1", "Gas", 1280.0)
	mock.ExpectQuery(`SELECT \* FROM "unit_metadata"`).WillReturnRows(rows)

	table, err := store.UnitMetadata(context.Background())
	require.NoError(t, err)
	require.Len(t, table, 1)
	assert.InDelta(t, 1280.0, table["TORRB1"].CapacityMW, 1e-9)
}

func TestGormStoreWrapsQueryErrors(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(`SELECT \* FROM "unit_metadata"`).WillReturnError(assert.AnError)

	_, err := store.UnitMetadata(context.Background())
	assert.ErrorIs(t, err, assert.AnError)
}

func TestDatabaseConfigDSN(t *testing.T) {
	sqlite := metastore.DatabaseConfig{Type: "sqlite", Database: "./meta.db"}
	dsn, err := sqlite.DSN()
	require.NoError(t, err)
	assert.Equal(t, "./meta.db", dsn)

	_, err = metastore.DatabaseConfig{Type: "sqlite"}.DSN()
	assert.Error(t, err)

	mysql := metastore.DatabaseConfig{Type: "mysql", Host: "db", Port: 3306, Database: "gridwatch", User: "gw", Password: "secret"}
	dsn, err = mysql.DSN()
	require.NoError(t, err)
	assert.Equal(t, "gw:secret@tcp(db:3306)/gridwatch?parseTime=true", dsn)

	pg := metastore.DatabaseConfig{Type: "postgres", Host: "db", Port: 5432, Database: "gridwatch", User: "gw", Password: "secret"}
	dsn, err = pg.DSN()
	require.NoError(t, err)
	assert.Contains(t, dsn, "sslmode=disable")

	_, err = metastore.DatabaseConfig{Type: "oracle"}.DSN()
	assert.Error(t, err)
}

func TestOpenDatabaseUsesRegisteredDialector(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	_ = mock

	metastore.RegisterDialector("sqlmock", func(cfg metastore.DatabaseConfig) (gorm.Dialector, error) {
		return postgres.New(postgres.Config{Conn: sqlDB, PreferSimpleProtocol: true}), nil
	})

	db, err := metastore.OpenDatabase(coreConfig.NewConfig(), metastore.DatabaseConfig{Type: "sqlmock"})
	require.NoError(t, err)
	assert.NotNil(t, db)

	_, err = metastore.OpenDatabase(coreConfig.NewConfig(), metastore.DatabaseConfig{Type: "missing"})
	assert.Error(t, err)
}
