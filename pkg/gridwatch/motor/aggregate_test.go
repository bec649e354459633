package motor_test

import (
	"math"
	"testing"
	"time"

	model "github.com/tigerroll/gridwatch/pkg/gridwatch/core/domain/model"
	"github.com/tigerroll/gridwatch/pkg/gridwatch/motor"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var frameBase = time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

// buildFrame creates a deterministic two-region, two-fuel frame spanning n
// five-minute intervals.
func buildFrame(n int) *model.IntegratedFrame {
	frame := &model.IntegratedFrame{RequestID: "test"}
	for i := 0; i < n; i++ {
		ts := frameBase.Add(time.Duration(i) * 5 * time.Minute)
		frame.Rows = append(frame.Rows,
			model.IntegratedRow{
				SettlementDate:  ts,
				RegionID:        "nsw1",
				DUID:            "BAYSW1",
				FuelType:        model.FuelCoal,
				PriceDollarsMWh: 50 + float64(i%7),
				VolumeMW:        600 + float64(i%11),
				Resolution:      model.Resolution5Min,
			},
			model.IntegratedRow{
				SettlementDate:  ts,
				RegionID:        "sa1",
				DUID:            "LKBONNY2",
				FuelType:        model.FuelWind,
				PriceDollarsMWh: 30 + float64(i%13),
				VolumeMW:        100 + float64(i%5),
				Resolution:      model.Resolution5Min,
			},
		)
	}
	return frame
}

func TestAggregateCompleteness(t *testing.T) {
	frame := buildFrame(48)
	result, err := motor.Aggregate(frame, []string{model.DimFuelType}, motor.AggregateOptions{})
	require.NoError(t, err)

	// Every frame row lands in exactly one group
	assert.Equal(t, frame.Len(), result.TotalCount())
	assert.Len(t, result.Rows, 2)
}

func TestAggregateStableGroupOrder(t *testing.T) {
	frame := buildFrame(4)
	result, err := motor.Aggregate(frame, []string{model.DimFuelType}, motor.AggregateOptions{})
	require.NoError(t, err)

	// First-appearance order: coal appears before wind in the frame
	require.Len(t, result.Rows, 2)
	assert.Equal(t, []string{model.FuelCoal}, result.Rows[0].DimensionValues)
	assert.Equal(t, []string{model.FuelWind}, result.Rows[1].DimensionValues)

	sorted, err := motor.Aggregate(frame, []string{model.DimRegionID}, motor.AggregateOptions{Sorted: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"nsw1"}, sorted.Rows[0].DimensionValues)
	assert.Equal(t, []string{"sa1"}, sorted.Rows[1].DimensionValues)
}

func TestAggregateRejectsBadDimensions(t *testing.T) {
	frame := buildFrame(1)

	_, err := motor.Aggregate(frame, nil, motor.AggregateOptions{})
	assert.Error(t, err)

	_, err = motor.Aggregate(frame, []string{"fuel"}, motor.AggregateOptions{})
	assert.Error(t, err)

	// The bucket dimension needs a bucket size
	_, err = motor.Aggregate(frame, []string{model.DimBucket}, motor.AggregateOptions{})
	assert.Error(t, err)
}

func TestAggregateVWAPBounded(t *testing.T) {
	frame := buildFrame(288)
	result, err := motor.Aggregate(frame, []string{model.DimRegionID}, motor.AggregateOptions{})
	require.NoError(t, err)

	for _, row := range result.Rows {
		require.False(t, row.VWAPUndefined)
	}

	// min price <= vwap <= max price per region
	for _, region := range []string{"nsw1", "sa1"} {
		minP, maxP := math.Inf(1), math.Inf(-1)
		for _, r := range frame.Rows {
			if r.RegionID != region {
				continue
			}
			minP = math.Min(minP, r.PriceDollarsMWh)
			maxP = math.Max(maxP, r.PriceDollarsMWh)
		}
		for _, row := range result.Rows {
			if row.DimensionValues[0] != region {
				continue
			}
			assert.GreaterOrEqual(t, row.VWAP, minP)
			assert.LessOrEqual(t, row.VWAP, maxP)
		}
	}
}

func TestAggregateZeroVolumeGroup(t *testing.T) {
	frame := &model.IntegratedFrame{Rows: []model.IntegratedRow{
		{SettlementDate: frameBase, RegionID: "tas1", FuelType: model.FuelHydro, PriceDollarsMWh: 40, VolumeMW: 0, Resolution: model.Resolution5Min},
		{SettlementDate: frameBase.Add(5 * time.Minute), RegionID: "tas1", FuelType: model.FuelHydro, PriceDollarsMWh: 60, VolumeMW: 0, Resolution: model.Resolution5Min},
	}}

	result, err := motor.Aggregate(frame, []string{model.DimFuelType}, motor.AggregateOptions{})
	require.NoError(t, err)
	require.Len(t, result.Rows, 1)

	row := result.Rows[0]
	assert.True(t, row.VWAPUndefined)
	// The flagged fallback is the simple mean, never a zero from a 0/0
	assert.InDelta(t, 50.0, row.VWAP, 1e-9)
	assert.InDelta(t, 50.0, row.MeanPrice, 1e-9)
	assert.Zero(t, row.RevenueDollars)
}

func TestAggregateMixedResolutionRevenue(t *testing.T) {
	// One 5-minute row and one 30-minute row at the same price and MW level.
	frame := &model.IntegratedFrame{Rows: []model.IntegratedRow{
		{SettlementDate: frameBase, RegionID: "qld1", FuelType: model.FuelSolar, PriceDollarsMWh: 100, VolumeMW: 120, Resolution: model.Resolution5Min},
		{SettlementDate: frameBase, RegionID: "qld1", FuelType: model.FuelRooftopSolar, PriceDollarsMWh: 100, VolumeMW: 120, Resolution: model.Resolution30Min},
	}}

	result, err := motor.Aggregate(frame, []string{model.DimFuelType}, motor.AggregateOptions{})
	require.NoError(t, err)
	require.Len(t, result.Rows, 2)

	byFuel := map[string]model.AggregationRow{}
	for _, row := range result.Rows {
		byFuel[row.DimensionValues[0]] = row
	}

	// 120 MW for 5 minutes is 10 MWh; for 30 minutes it is 60 MWh.
	assert.InDelta(t, 10.0, byFuel[model.FuelSolar].SumVolumeMWh, 1e-9)
	assert.InDelta(t, 60.0, byFuel[model.FuelRooftopSolar].SumVolumeMWh, 1e-9)
	assert.InDelta(t, 1000.0, byFuel[model.FuelSolar].RevenueDollars, 1e-9)
	assert.InDelta(t, 6000.0, byFuel[model.FuelRooftopSolar].RevenueDollars, 1e-9)
}

func TestAggregatePriceMissingRows(t *testing.T) {
	frame := &model.IntegratedFrame{Rows: []model.IntegratedRow{
		{SettlementDate: frameBase, RegionID: "vic1", FuelType: model.FuelGas, PriceDollarsMWh: 80, VolumeMW: 100, Resolution: model.Resolution5Min},
		{SettlementDate: frameBase.Add(5 * time.Minute), RegionID: "vic1", FuelType: model.FuelGas, PriceMissing: true, VolumeMW: 200, Resolution: model.Resolution5Min},
	}}

	result, err := motor.Aggregate(frame, []string{model.DimFuelType}, motor.AggregateOptions{})
	require.NoError(t, err)
	require.Len(t, result.Rows, 1)

	row := result.Rows[0]
	// Unpriced rows count and contribute energy but not price measures
	assert.Equal(t, 2, row.Count)
	assert.InDelta(t, 25.0, row.SumVolumeMWh, 1e-9)
	assert.InDelta(t, 80.0, row.MeanPrice, 1e-9)
	assert.InDelta(t, 80.0, row.VWAP, 1e-9)
	assert.InDelta(t, 80.0*100.0/12.0, row.RevenueDollars, 1e-9)
}

func TestAggregateBucketDimension(t *testing.T) {
	frame := buildFrame(12) // one hour of 5-minute rows
	result, err := motor.Aggregate(frame, []string{model.DimBucket}, motor.AggregateOptions{BucketSize: 30 * time.Minute})
	require.NoError(t, err)

	assert.Len(t, result.Rows, 2)
	assert.Equal(t, frame.Len(), result.TotalCount())
	assert.Equal(t, []string{"2024-01-15 00:00"}, result.Rows[0].DimensionValues)
	assert.Equal(t, []string{"2024-01-15 00:30"}, result.Rows[1].DimensionValues)
}

func TestAggregateAdditivityAcrossDisjointWindows(t *testing.T) {
	whole := buildFrame(96)
	firstHalf := &model.IntegratedFrame{Rows: whole.Rows[:whole.Len()/2]}
	secondHalf := &model.IntegratedFrame{Rows: whole.Rows[whole.Len()/2:]}

	dims := []string{model.DimRegionID, model.DimFuelType}
	full, err := motor.Aggregate(whole, dims, motor.AggregateOptions{})
	require.NoError(t, err)
	partA, err := motor.Aggregate(firstHalf, dims, motor.AggregateOptions{})
	require.NoError(t, err)
	partB, err := motor.Aggregate(secondHalf, dims, motor.AggregateOptions{})
	require.NoError(t, err)

	merged, err := motor.MergeResults(partA, partB)
	require.NoError(t, err)

	fullByKey := map[string]model.AggregationRow{}
	for _, row := range full.Rows {
		fullByKey[row.Key()] = row
	}
	require.Len(t, merged.Rows, len(full.Rows))

	for _, row := range merged.Rows {
		want, ok := fullByKey[row.Key()]
		require.True(t, ok, "group %q missing from full aggregation", row.Key())
		assert.Equal(t, want.Count, row.Count)
		assert.InDelta(t, want.SumVolumeMWh, row.SumVolumeMWh, 1e-6)
		assert.InDelta(t, want.RevenueDollars, row.RevenueDollars, 1e-6)
		assert.InDelta(t, want.MeanPrice, row.MeanPrice, 1e-6)
	}
}

func TestMergeResultsWithUnpricedRows(t *testing.T) {
	// The mean is taken over priced rows only, so merging partitions holding
	// different shares of unpriced rows must still match the one-shot result.
	rows := []model.IntegratedRow{
		{SettlementDate: frameBase, RegionID: "vic1", FuelType: model.FuelGas, PriceDollarsMWh: 100, VolumeMW: 100, Resolution: model.Resolution5Min},
		{SettlementDate: frameBase.Add(5 * time.Minute), RegionID: "vic1", FuelType: model.FuelGas, PriceMissing: true, VolumeMW: 300, Resolution: model.Resolution5Min},
		{SettlementDate: frameBase.Add(10 * time.Minute), RegionID: "vic1", FuelType: model.FuelGas, PriceDollarsMWh: 200, VolumeMW: 200, Resolution: model.Resolution5Min},
	}
	whole := &model.IntegratedFrame{Rows: rows}
	firstPart := &model.IntegratedFrame{Rows: rows[:2]}
	secondPart := &model.IntegratedFrame{Rows: rows[2:]}

	dims := []string{model.DimFuelType}
	full, err := motor.Aggregate(whole, dims, motor.AggregateOptions{})
	require.NoError(t, err)
	partA, err := motor.Aggregate(firstPart, dims, motor.AggregateOptions{})
	require.NoError(t, err)
	partB, err := motor.Aggregate(secondPart, dims, motor.AggregateOptions{})
	require.NoError(t, err)

	merged, err := motor.MergeResults(partA, partB)
	require.NoError(t, err)
	require.Len(t, merged.Rows, 1)

	got := merged.Rows[0]
	want := full.Rows[0]
	assert.Equal(t, 3, got.Count)
	assert.Equal(t, 2, got.PricedCount)
	// (100 + 200) / 2, not a count-weighted 133.33
	assert.InDelta(t, 150.0, got.MeanPrice, 1e-9)
	assert.InDelta(t, want.MeanPrice, got.MeanPrice, 1e-9)
	// (100*100 + 200*200) / (100 + 200)
	assert.InDelta(t, want.VWAP, got.VWAP, 1e-9)
	assert.InDelta(t, want.SumVolumeMWh, got.SumVolumeMWh, 1e-9)
	assert.InDelta(t, want.RevenueDollars, got.RevenueDollars, 1e-9)
}

func TestMergeResultsRejectsMismatchedDimensions(t *testing.T) {
	frame := buildFrame(4)
	a, err := motor.Aggregate(frame, []string{model.DimFuelType}, motor.AggregateOptions{})
	require.NoError(t, err)
	b, err := motor.Aggregate(frame, []string{model.DimRegionID}, motor.AggregateOptions{})
	require.NoError(t, err)

	_, err = motor.MergeResults(a, b)
	assert.Error(t, err)
}
