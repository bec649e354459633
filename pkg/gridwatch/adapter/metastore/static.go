package metastore

import (
	"bytes"
	"context"
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	model "github.com/tigerroll/gridwatch/pkg/gridwatch/core/domain/model"
	"github.com/tigerroll/gridwatch/pkg/gridwatch/core/port"
	"github.com/tigerroll/gridwatch/pkg/gridwatch/support/util/exception"
	"github.com/tigerroll/gridwatch/pkg/gridwatch/support/util/logger"
)

// StaticMetadataSource serves a reference table parsed once from an embedded
// CSV snapshot. It is the default MetadataSource when the query engine is
// disabled.
type StaticMetadataSource struct {
	table model.MetadataTable
}

var _ port.MetadataSource = (*StaticMetadataSource)(nil)

// NewStaticMetadataSource parses the CSV snapshot. Expected header columns
// (any casing): duid, regionid, fuel_type, capacity_mw. Header casing varies
// between snapshot vintages, so the lookup is case-insensitive.
func NewStaticMetadataSource(csvData []byte) (*StaticMetadataSource, error) {
	r := csv.NewReader(bytes.NewReader(csvData))
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return nil, exception.NewGridError(moduleName, "failed to read metadata CSV header", err, false)
	}
	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[strings.ToLower(strings.TrimSpace(name))] = i
	}
	col := func(names ...string) (int, bool) {
		for _, n := range names {
			if i, ok := idx[n]; ok {
				return i, true
			}
		}
		return 0, false
	}

	duidCol, ok := col("duid")
	if !ok {
		return nil, exception.NewGridErrorf(moduleName, "metadata CSV is missing a duid column")
	}
	regionCol, hasRegion := col("regionid", "region")
	fuelCol, hasFuel := col("fuel_type", "fuel")
	capCol, hasCap := col("capacity_mw", "reg_cap")

	table := make(model.MetadataTable)
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, exception.NewGridError(moduleName, "failed to parse metadata CSV", err, false)
		}
		duid := model.NormalizeDUID(rec[duidCol])
		if duid == "" {
			continue
		}
		m := model.UnitMetadata{DUID: duid, FuelType: model.FuelTypeUnknown}
		if hasRegion && regionCol < len(rec) {
			m.RegionID = model.NormalizeRegionID(rec[regionCol])
		}
		if hasFuel && fuelCol < len(rec) {
			m.FuelType = model.NormalizeFuelType(rec[fuelCol])
		}
		if hasCap && capCol < len(rec) {
			if v, err := strconv.ParseFloat(strings.TrimSpace(rec[capCol]), 64); err == nil {
				m.CapacityMW = v
			}
		}
		table[duid] = m
	}

	logger.Debugf("Loaded %d unit metadata rows from static snapshot.", len(table))
	return &StaticMetadataSource{table: table}, nil
}

// UnitMetadata implements port.MetadataSource. The snapshot is parsed once;
// copies are not made because the table is treated as immutable by contract.
func (s *StaticMetadataSource) UnitMetadata(ctx context.Context) (model.MetadataTable, error) {
	return s.table, nil
}
