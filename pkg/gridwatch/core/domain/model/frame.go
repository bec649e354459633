package model

import "time"

// IntegratedRow is one row of the generation ⋈ metadata ⋈ price join.
type IntegratedRow struct {
	SettlementDate time.Time
	RegionID       string
	DUID           string
	// FuelType is the normalized fuel type, or FuelTypeUnknown when the DUID
	// had no metadata match. Never empty.
	FuelType string
	// Unresolved marks rows whose metadata lookup failed. The row is kept.
	Unresolved bool
	// PriceDollarsMWh is the regional reference price joined on (timestamp, region).
	PriceDollarsMWh float64
	// PriceMissing is set when no price record existed for the row's interval.
	// Such rows contribute volume but not revenue.
	PriceMissing bool
	// VolumeMW is the generation reading for the interval.
	VolumeMW float64
	// Resolution is carried per row because a frame may mix 5-minute
	// generation with 30-minute rooftop estimates.
	Resolution Resolution
}

// IntegratedFrame is the integrated table one analysis request operates on.
// A frame is owned exclusively by the request that built it and is never
// shared or mutated after integration.
type IntegratedFrame struct {
	// RequestID ties log lines and trace spans back to the originating request.
	RequestID string
	Rows      []IntegratedRow
	// UnresolvedCount is the number of rows tagged FuelTypeUnknown.
	UnresolvedCount int
}

// Len returns the number of rows in the frame.
func (f *IntegratedFrame) Len() int {
	return len(f.Rows)
}
