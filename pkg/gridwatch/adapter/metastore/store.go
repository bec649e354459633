package metastore

import (
	"context"

	"gorm.io/gorm"

	model "github.com/tigerroll/gridwatch/pkg/gridwatch/core/domain/model"
	"github.com/tigerroll/gridwatch/pkg/gridwatch/core/port"
	"github.com/tigerroll/gridwatch/pkg/gridwatch/support/util/exception"
	"github.com/tigerroll/gridwatch/pkg/gridwatch/support/util/logger"
)

const moduleName = "metastore"

// unitMetadataEntity is the persisted shape of one reference-table row.
// Fuel types and region identifiers are stored as published; normalization
// happens on read, once, at this boundary.
type unitMetadataEntity struct {
	DUID       string  `gorm:"column:duid;primaryKey"`
	RegionID   string  `gorm:"column:regionid"`
	FuelType   string  `gorm:"column:fuel_type"`
	CapacityMW float64 `gorm:"column:capacity_mw"`
}

// TableName fixes the table name for GORM.
func (unitMetadataEntity) TableName() string {
	return "unit_metadata"
}

// GormMetadataStore is the SQL-backed MetadataSource, used when the embedded
// query engine is enabled.
type GormMetadataStore struct {
	db *gorm.DB
}

var _ port.MetadataSource = (*GormMetadataStore)(nil)

// NewGormMetadataStore creates a MetadataSource over an open gorm connection.
func NewGormMetadataStore(db *gorm.DB) *GormMetadataStore {
	return &GormMetadataStore{db: db}
}

// UnitMetadata implements port.MetadataSource. Every fuel type and region
// identifier is normalized here; duplicated DUIDs keep the last row read and
// log a resolution warning rather than failing the request.
func (s *GormMetadataStore) UnitMetadata(ctx context.Context) (model.MetadataTable, error) {
	var entities []unitMetadataEntity
	if err := s.db.WithContext(ctx).Find(&entities).Error; err != nil {
		return nil, exception.NewGridError(moduleName, "failed to load unit metadata", err, false)
	}

	table := make(model.MetadataTable, len(entities))
	for _, e := range entities {
		duid := model.NormalizeDUID(e.DUID)
		if duid == "" {
			logger.Warnf("Reference table row with empty DUID skipped.")
			continue
		}
		if _, dup := table[duid]; dup {
			logger.Warnf("Duplicate DUID '%s' in reference table; keeping last row.", duid)
		}
		table[duid] = model.UnitMetadata{
			DUID:       duid,
			RegionID:   model.NormalizeRegionID(e.RegionID),
			FuelType:   model.NormalizeFuelType(e.FuelType),
			CapacityMW: e.CapacityMW,
		}
	}
	logger.Debugf("Loaded %d unit metadata rows from SQL store.", len(table))
	return table, nil
}
