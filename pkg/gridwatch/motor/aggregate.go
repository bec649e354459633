package motor

import (
	"sort"
	"strings"
	"time"

	model "github.com/tigerroll/gridwatch/pkg/gridwatch/core/domain/model"
	"github.com/tigerroll/gridwatch/pkg/gridwatch/support/util/exception"
)

// AggregateOptions control grouping behavior.
type AggregateOptions struct {
	// BucketSize is the bucket length used by the "bucket" dimension.
	// Required when that dimension is requested.
	BucketSize time.Duration
	// Sorted requests lexicographic output order for display purposes.
	// The default is first-appearance order of each distinct combination.
	Sorted bool
}

// group accumulates the running measures for one dimension combination.
type group struct {
	values []string
	count  int
	// sumVolumeMWh is duration-aware: each row contributes MW × interval hours.
	sumVolumeMWh float64
	// Price measures only accumulate over rows that had a price match.
	pricedCount  int
	sumPrice     float64
	sumPriceVol  float64
	sumPricedVol float64
	revenue      float64
}

// Aggregate groups an integrated frame by the requested dimensions and
// computes count, duration-aware energy, simple mean price, volume-weighted
// average price and revenue per group.
//
// Grouping is stable: rows appear in first-appearance order of each distinct
// combination unless Sorted is set. Revenue takes each row's interval length
// from the row itself, so frames mixing 5-minute and 30-minute records sum
// correctly. A group whose total priced volume is zero reports its VWAP as
// undefined and substitutes the simple mean, explicitly flagged; it is never
// a division by zero and never a silent zero.
func Aggregate(frame *model.IntegratedFrame, dims []string, opts AggregateOptions) (*model.AggregationResult, error) {
	if len(dims) == 0 {
		return nil, exception.NewGridErrorf(moduleName, "at least one grouping dimension is required")
	}
	for _, d := range dims {
		switch d {
		case model.DimFuelType, model.DimRegionID, model.DimDUID:
		case model.DimBucket:
			if opts.BucketSize <= 0 {
				return nil, exception.NewGridErrorf(moduleName, "dimension 'bucket' requires a bucket size")
			}
		default:
			return nil, exception.NewGridErrorf(moduleName, "unknown grouping dimension '%s'", d)
		}
	}

	groups := make(map[string]*group)
	var order []*group

	for _, row := range frame.Rows {
		values := dimensionValues(row, dims, opts.BucketSize)
		key := strings.Join(values, "\x1f")
		g, ok := groups[key]
		if !ok {
			g = &group{values: values}
			groups[key] = g
			order = append(order, g)
		}

		hours := row.Resolution.Hours()
		g.count++
		g.sumVolumeMWh += row.VolumeMW * hours
		if !row.PriceMissing {
			g.pricedCount++
			g.sumPrice += row.PriceDollarsMWh
			g.sumPriceVol += row.PriceDollarsMWh * row.VolumeMW
			g.sumPricedVol += row.VolumeMW
			g.revenue += row.PriceDollarsMWh * row.VolumeMW * hours
		}
	}

	result := &model.AggregationResult{
		Dimensions: append([]string(nil), dims...),
		Rows:       make([]model.AggregationRow, 0, len(order)),
	}
	for _, g := range order {
		row := model.AggregationRow{
			DimensionValues:   g.values,
			Count:             g.count,
			PricedCount:       g.pricedCount,
			SumVolumeMWh:      g.sumVolumeMWh,
			SumPricedVolumeMW: g.sumPricedVol,
			RevenueDollars:    g.revenue,
		}
		if g.pricedCount > 0 {
			row.MeanPrice = g.sumPrice / float64(g.pricedCount)
		}
		if g.sumPricedVol != 0 {
			row.VWAP = g.sumPriceVol / g.sumPricedVol
		} else {
			row.VWAPUndefined = true
			row.VWAP = row.MeanPrice
		}
		result.Rows = append(result.Rows, row)
	}

	if opts.Sorted {
		sort.SliceStable(result.Rows, func(i, j int) bool {
			return strings.Join(result.Rows[i].DimensionValues, "\x1f") < strings.Join(result.Rows[j].DimensionValues, "\x1f")
		})
	}

	return result, nil
}

// dimensionValues extracts the grouping values for one row, in request order.
func dimensionValues(row model.IntegratedRow, dims []string, bucketSize time.Duration) []string {
	values := make([]string, len(dims))
	for i, d := range dims {
		switch d {
		case model.DimFuelType:
			values[i] = row.FuelType
		case model.DimRegionID:
			values[i] = row.RegionID
		case model.DimDUID:
			values[i] = row.DUID
		case model.DimBucket:
			values[i] = row.SettlementDate.Truncate(bucketSize).Format("2006-01-02 15:04")
		}
	}
	return values
}

// MergeResults re-groups two aggregation results computed over disjoint row
// sets, for callers that aggregate a window in partitions. Additive measures
// (count, energy, revenue) sum; mean and VWAP are recombined from the
// weighted components.
func MergeResults(a, b *model.AggregationResult) (*model.AggregationResult, error) {
	if len(a.Dimensions) != len(b.Dimensions) {
		return nil, exception.NewGridErrorf(moduleName, "cannot merge results with different dimensions")
	}
	for i := range a.Dimensions {
		if a.Dimensions[i] != b.Dimensions[i] {
			return nil, exception.NewGridErrorf(moduleName, "cannot merge results with different dimensions")
		}
	}

	out := &model.AggregationResult{Dimensions: append([]string(nil), a.Dimensions...)}
	index := make(map[string]int)
	for _, src := range []*model.AggregationResult{a, b} {
		for _, row := range src.Rows {
			key := row.Key()
			if i, ok := index[key]; ok {
				merged := &out.Rows[i]
				// Means are computed over priced rows only, so the recombination
				// weights by PricedCount; weighting by Count would skew groups
				// whose partitions hold different shares of unpriced rows.
				priced := merged.PricedCount + row.PricedCount
				if priced > 0 {
					merged.MeanPrice = (merged.MeanPrice*float64(merged.PricedCount) + row.MeanPrice*float64(row.PricedCount)) / float64(priced)
				}
				merged.PricedCount = priced
				merged.Count += row.Count
				merged.SumVolumeMWh += row.SumVolumeMWh
				merged.RevenueDollars += row.RevenueDollars
				// VWAP recombines over the priced-volume components, so the
				// merge matches a one-shot aggregation exactly.
				switch {
				case merged.VWAPUndefined && row.VWAPUndefined:
					merged.VWAP = merged.MeanPrice
				case merged.VWAPUndefined:
					merged.VWAP = row.VWAP
					merged.VWAPUndefined = false
				case row.VWAPUndefined:
					// keep merged as-is
				default:
					w1, w2 := merged.SumPricedVolumeMW, row.SumPricedVolumeMW
					if w1+w2 != 0 {
						merged.VWAP = (merged.VWAP*w1 + row.VWAP*w2) / (w1 + w2)
					}
				}
				merged.SumPricedVolumeMW += row.SumPricedVolumeMW
			} else {
				index[key] = len(out.Rows)
				out.Rows = append(out.Rows, row)
			}
		}
	}
	return out, nil
}
