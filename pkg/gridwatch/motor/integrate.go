// Package motor implements the time-series aggregation motor: the
// integration join, dimensional aggregation with volume-weighted measures,
// smoothing, and the derived penetration metrics.
package motor

import (
	"time"

	model "github.com/tigerroll/gridwatch/pkg/gridwatch/core/domain/model"
	"github.com/tigerroll/gridwatch/pkg/gridwatch/support/util/logger"
)

const moduleName = "motor"

// priceKey joins the price series on (timestamp, region).
type priceKey struct {
	t      time.Time
	region string
}

// priceIndex builds the (timestamp, region) lookup for a price table.
// 30-minute rows are also indexed at each of their six 5-minute
// sub-intervals so mixed-resolution joins resolve without interpolation.
func priceIndex(prices *model.SeriesTable) map[priceKey]float64 {
	if prices == nil {
		return nil
	}
	idx := make(map[priceKey]float64, len(prices.Records))
	for _, p := range prices.Records {
		idx[priceKey{p.SettlementDate, p.RegionID}] = p.Value
		if p.Resolution == model.Resolution30Min {
			for off := 5 * time.Minute; off < 30*time.Minute; off += 5 * time.Minute {
				k := priceKey{p.SettlementDate.Add(-off), p.RegionID}
				if _, exists := idx[k]; !exists {
					idx[k] = p.Value
				}
			}
		}
	}
	return idx
}

// Integrate joins a generation table with the unit reference table and the
// price series into one frame.
//
// The join on DUID is strict but never destructive: a generation row whose
// unit has no metadata match is kept, tagged FuelTypeUnknown, and counted in
// UnresolvedCount; a resolution warning is logged per distinct unit. The
// output row count always equals the input row count.
func Integrate(requestID string, gen *model.SeriesTable, prices *model.SeriesTable, meta model.MetadataTable) *model.IntegratedFrame {
	frame := &model.IntegratedFrame{RequestID: requestID}
	if gen == nil {
		return frame
	}

	idx := priceIndex(prices)
	warned := make(map[string]struct{})
	frame.Rows = make([]model.IntegratedRow, 0, len(gen.Records))

	for _, rec := range gen.Records {
		row := model.IntegratedRow{
			SettlementDate: rec.SettlementDate,
			DUID:           rec.DUID,
			VolumeMW:       rec.Value,
			Resolution:     rec.Resolution,
		}

		if m, ok := meta[rec.DUID]; ok {
			row.RegionID = m.RegionID
			row.FuelType = m.FuelType
		} else {
			row.RegionID = rec.RegionID
			row.FuelType = model.FuelTypeUnknown
			row.Unresolved = true
			frame.UnresolvedCount++
			if _, seen := warned[rec.DUID]; !seen {
				warned[rec.DUID] = struct{}{}
				logger.Warnf("No metadata for unit '%s'; rows retained with fuel type '%s'.", rec.DUID, model.FuelTypeUnknown)
			}
		}

		if price, ok := idx[priceKey{rec.SettlementDate, row.RegionID}]; ok {
			row.PriceDollarsMWh = price
		} else {
			row.PriceMissing = true
		}

		frame.Rows = append(frame.Rows, row)
	}

	return frame
}

// FilterRegions drops frame rows whose resolved region is not in the
// requested set. Generation files carry no region column, so region scoping
// can only happen after the metadata join resolved one; rows whose region is
// still unknown cannot be attributed to a requested region and are dropped
// with the rest. No-op when regions is empty.
func FilterRegions(frame *model.IntegratedFrame, regions []string) {
	if len(regions) == 0 {
		return
	}
	keep := make(map[string]struct{}, len(regions))
	for _, r := range regions {
		keep[model.NormalizeRegionID(r)] = struct{}{}
	}

	rows := frame.Rows[:0]
	unresolved := 0
	for _, row := range frame.Rows {
		if _, ok := keep[row.RegionID]; !ok {
			continue
		}
		if row.Unresolved {
			unresolved++
		}
		rows = append(rows, row)
	}
	frame.Rows = rows
	frame.UnresolvedCount = unresolved
}

// AppendRooftop merges a region-level rooftop solar table into an integrated
// frame. Rooftop rows have no DUID; they join prices on their own region and
// are tagged with the rooftop fuel type directly.
func AppendRooftop(frame *model.IntegratedFrame, rooftop *model.SeriesTable, prices *model.SeriesTable) {
	if rooftop == nil {
		return
	}
	idx := priceIndex(prices)
	for _, rec := range rooftop.Records {
		row := model.IntegratedRow{
			SettlementDate: rec.SettlementDate,
			RegionID:       rec.RegionID,
			FuelType:       model.FuelRooftopSolar,
			VolumeMW:       rec.Value,
			Resolution:     rec.Resolution,
		}
		if price, ok := idx[priceKey{rec.SettlementDate, rec.RegionID}]; ok {
			row.PriceDollarsMWh = price
		} else {
			row.PriceMissing = true
		}
		frame.Rows = append(frame.Rows, row)
	}
}
