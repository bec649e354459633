// Package model defines the core domain models for gridwatch: time-series
// records, unit metadata, integrated frames and aggregation results.
package model

import (
	"fmt"
	"time"
)

// Resolution identifies the settlement interval a record was observed at.
// The market publishes dispatch data at 5-minute resolution and a number of
// derived series (rooftop solar in particular) at 30-minute resolution.
type Resolution int

const (
	// Resolution5Min is the 5-minute dispatch interval.
	Resolution5Min Resolution = iota
	// Resolution30Min is the 30-minute settlement interval.
	Resolution30Min
)

// ResolutionAuto is the sentinel string accepted by queries that leaves
// resolution selection to the data adapter.
const ResolutionAuto = "auto"

// Duration returns the length of one settlement interval at this resolution.
func (r Resolution) Duration() time.Duration {
	if r == Resolution30Min {
		return 30 * time.Minute
	}
	return 5 * time.Minute
}

// Hours returns the interval length as a fraction of an hour. This is the
// factor that converts MW readings to MWh and therefore to revenue; getting
// it wrong for mixed-resolution inputs silently corrupts every downstream
// number, so revenue computations must always take it from the record, never
// from the query.
func (r Resolution) Hours() float64 {
	return r.Duration().Hours()
}

// String implements fmt.Stringer.
func (r Resolution) String() string {
	if r == Resolution30Min {
		return "30min"
	}
	return "5min"
}

// ParseResolution maps a configuration string to a Resolution.
// "auto" is handled by the caller and is not a valid input here.
func ParseResolution(s string) (Resolution, error) {
	switch s {
	case "5min", "5":
		return Resolution5Min, nil
	case "30min", "30":
		return Resolution30Min, nil
	default:
		return Resolution5Min, fmt.Errorf("unknown resolution %q", s)
	}
}

// TimeSeriesRecord is one row of a market time series: a generation reading
// for a unit, or a spot price for a region, at one settlement interval.
// SettlementDate is timezone-naive local market time, as published.
type TimeSeriesRecord struct {
	// SettlementDate is the end-of-interval timestamp at the native resolution.
	SettlementDate time.Time
	// RegionID is the market region (e.g. "nsw1").
	RegionID string
	// DUID is the dispatchable unit identifier. Empty for region-level series
	// such as spot prices and rooftop solar estimates.
	DUID string
	// Value is the measured quantity: MW for generation series, $/MWh for prices.
	Value float64
	// FuelType is resolved by the integration join, not stored at source.
	FuelType string
	// Resolution is the settlement interval this record was observed at.
	Resolution Resolution
}

// SeriesKind names the dataset a query targets.
type SeriesKind string

const (
	// SeriesGeneration is unit-level generation (SCADA) data.
	SeriesGeneration SeriesKind = "generation"
	// SeriesPrice is the regional reference price series.
	SeriesPrice SeriesKind = "price"
	// SeriesRooftop is the region-level rooftop solar estimate series.
	SeriesRooftop SeriesKind = "rooftop"
)

// SeriesTable is the result of one adapter load: the records that exist for
// the requested window, plus the true bounds of what was actually returned.
// ActualWindow may be narrower than the requested window when the source only
// partially covers it; callers that care must compare the two.
type SeriesTable struct {
	Kind       SeriesKind
	Records    []TimeSeriesRecord
	Resolution Resolution
	// ActualWindow is the half-open window genuinely covered by Records.
	ActualWindow Window
	// Truncated is set when ActualWindow is narrower than the requested window.
	Truncated bool
}
