package metastore_test

import (
	"context"
	"testing"

	metastore "github.com/tigerroll/gridwatch/pkg/gridwatch/adapter/metastore"
	model "github.com/tigerroll/gridwatch/pkg/gridwatch/core/domain/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticSourceParsesSnapshot(t *testing.T) {
	csv := []byte(`duid,regionid,fuel_type,capacity_mw
baysw1,NSW1,Coal,660
er01,nsw1,coal,720
MACARTH1,VIC1,Wind,420
`)
	src, err := metastore.NewStaticMetadataSource(csv)
	require.NoError(t, err)

	table, err := src.UnitMetadata(context.Background())
	require.NoError(t, err)
	require.Len(t, table, 3)

	// Identifiers and fuel labels are normalized once, on read
	m, ok := table["BAYSW1"]
	require.True(t, ok)
	assert.Equal(t, "nsw1", m.RegionID)
	assert.Equal(t, model.FuelCoal, m.FuelType)
	assert.InDelta(t, 660.0, m.CapacityMW, 1e-9)

	m, ok = table["MACARTH1"]
	require.True(t, ok)
	assert.Equal(t, model.FuelWind, m.FuelType)
}

func TestStaticSourceHeaderCasingAndAliases(t *testing.T) {
	csv := []byte(`DUID, Region, Fuel, Reg_Cap
GORDON,TAS1,Hydro,432
`)
	src, err := metastore.NewStaticMetadataSource(csv)
	require.NoError(t, err)

	table, err := src.UnitMetadata(context.Background())
	require.NoError(t, err)

	m, ok := table["GORDON"]
	require.True(t, ok)
	assert.Equal(t, "tas1", m.RegionID)
	assert.Equal(t, model.FuelHydro, m.FuelType)
	assert.InDelta(t, 432.0, m.CapacityMW, 1e-9)
}

func TestStaticSourceOptionalColumnsMissing(t *testing.T) {
	csv := []byte(`duid
HPRG1
`)
	src, err := metastore.NewStaticMetadataSource(csv)
	require.NoError(t, err)

	table, err := src.UnitMetadata(context.Background())
	require.NoError(t, err)

	m, ok := table["HPRG1"]
	require.True(t, ok)
	assert.Equal(t, model.FuelTypeUnknown, m.FuelType)
	assert.Empty(t, m.RegionID)
	assert.Zero(t, m.CapacityMW)
}

func TestStaticSourceSkipsEmptyDUIDAndKeepsLastDuplicate(t *testing.T) {
	csv := []byte(`duid,regionid,fuel_type,capacity_mw
,NSW1,Coal,100
torrb1,SA1,Gas,800
TORRB1,SA1,Gas,1280
`)
	src, err := metastore.NewStaticMetadataSource(csv)
	require.NoError(t, err)

	table, err := src.UnitMetadata(context.Background())
	require.NoError(t, err)
	require.Len(t, table, 1)
	assert.InDelta(t, 1280.0, table["TORRB1"].CapacityMW, 1e-9)
}

func TestStaticSourceRequiresDUIDColumn(t *testing.T) {
	_, err := metastore.NewStaticMetadataSource([]byte("regionid,fuel_type\nNSW1,Coal\n"))
	assert.Error(t, err)
}
