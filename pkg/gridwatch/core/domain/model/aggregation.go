package model

// Canonical dimension names accepted by the aggregation motor. The source
// tables use several spellings of the same concept ("Fuel" vs "fuel_type",
// "REGIONID" vs "region"); inside gridwatch there is exactly one.
const (
	DimFuelType = "fuel_type"
	DimRegionID = "regionid"
	DimDUID     = "duid"
	DimBucket   = "bucket"
)

// AggregationRow is one output row of the motor: the values of the grouping
// dimensions plus the derived measures for that group.
type AggregationRow struct {
	// DimensionValues holds one value per requested dimension, in request order.
	DimensionValues []string
	// Count is the number of frame rows that fell into this group.
	Count int
	// PricedCount is the number of those rows that carried a price. Mean and
	// VWAP are computed over priced rows only, so recombining partial results
	// must weight by this, not by Count.
	PricedCount int
	// SumVolumeMWh is the energy total for the group, interval-duration aware.
	SumVolumeMWh float64
	// SumPricedVolumeMW is the MW volume summed over priced rows, the VWAP
	// denominator. Carried so partial results recombine exactly.
	SumPricedVolumeMW float64
	// MeanPrice is the simple arithmetic mean of prices in the group.
	MeanPrice float64
	// VWAP is the volume-weighted average price, Σ(price·volume)/Σ(volume).
	// Only meaningful when VWAPUndefined is false.
	VWAP float64
	// VWAPUndefined is set when Σ(volume) for the group is zero. The VWAP
	// field then holds the simple mean as an explicitly flagged fallback.
	VWAPUndefined bool
	// RevenueDollars is Σ price·volume·interval_hours over the group.
	RevenueDollars float64
}

// Key returns the group's identity as a single joined string, usable as a map key.
func (r AggregationRow) Key() string {
	out := ""
	for i, v := range r.DimensionValues {
		if i > 0 {
			out += "\x1f"
		}
		out += v
	}
	return out
}

// AggregationResult is the full output of one Aggregate call.
// Invariant: the Count fields of Rows sum to the row count of the
// IntegratedFrame the result was computed from.
type AggregationResult struct {
	// Dimensions are the grouping dimensions, in the order requested.
	Dimensions []string
	// Rows appear in first-appearance order of each distinct dimension
	// combination, unless sorted output was requested.
	Rows []AggregationRow
}

// TotalCount sums the per-group counts, for the completeness invariant.
func (a *AggregationResult) TotalCount() int {
	total := 0
	for _, r := range a.Rows {
		total += r.Count
	}
	return total
}
