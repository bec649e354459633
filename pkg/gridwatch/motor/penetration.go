package motor

import (
	"sort"
	"time"

	model "github.com/tigerroll/gridwatch/pkg/gridwatch/core/domain/model"
	"github.com/tigerroll/gridwatch/pkg/gridwatch/support/util/exception"
)

// PenetrationPoint is the renewable share of total generation for one time bucket.
type PenetrationPoint struct {
	Bucket      time.Time
	TotalMWh    float64
	VREMWh      float64
	Share       float64
	// ShareUndefined is set when total energy in the bucket is zero.
	ShareUndefined bool
}

// Penetration computes the VRE share of total generation per time bucket.
// Buckets with zero total energy report an undefined share, not zero, so a
// data gap cannot be mistaken for a renewables drought.
func Penetration(frame *model.IntegratedFrame, bucketSize time.Duration) ([]PenetrationPoint, error) {
	if bucketSize <= 0 {
		return nil, exception.NewGridErrorf(moduleName, "bucket size must be positive")
	}

	type acc struct {
		total float64
		vre   float64
	}
	buckets := make(map[time.Time]*acc)
	for _, row := range frame.Rows {
		b := row.SettlementDate.Truncate(bucketSize)
		a, ok := buckets[b]
		if !ok {
			a = &acc{}
			buckets[b] = a
		}
		mwh := row.VolumeMW * row.Resolution.Hours()
		a.total += mwh
		if model.IsVRE(row.FuelType) {
			a.vre += mwh
		}
	}

	out := make([]PenetrationPoint, 0, len(buckets))
	for b, a := range buckets {
		p := PenetrationPoint{Bucket: b, TotalMWh: a.total, VREMWh: a.vre}
		if a.total != 0 {
			p.Share = a.vre / a.total
		} else {
			p.ShareUndefined = true
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Bucket.Before(out[j].Bucket) })
	return out, nil
}

// PriceBand is one configured band with its per-region interval counts.
type PriceBand struct {
	// Low is inclusive, High exclusive. The outermost bands are open-ended:
	// OpenLow/OpenHigh mark the missing bound, and the corresponding value is
	// meaningless. Flags rather than ±Inf so the band serializes as JSON.
	Low, High float64
	OpenLow   bool
	OpenHigh  bool
	// Counts maps region to the number of intervals whose price fell in the band.
	Counts map[string]int
}

// PriceBands counts, per region, how many settlement intervals fell into
// each band. edges must be ascending; n edges produce n+1 bands with
// open-ended outermost bounds.
func PriceBands(prices *model.SeriesTable, edges []float64) ([]PriceBand, error) {
	for i := 1; i < len(edges); i++ {
		if edges[i] <= edges[i-1] {
			return nil, exception.NewGridErrorf(moduleName, "price band edges must be strictly ascending")
		}
	}

	bands := make([]PriceBand, len(edges)+1)
	for i := range bands {
		bands[i].Counts = make(map[string]int)
		if i > 0 {
			bands[i].Low = edges[i-1]
		} else {
			bands[i].OpenLow = true
		}
		if i < len(edges) {
			bands[i].High = edges[i]
		} else {
			bands[i].OpenHigh = true
		}
	}

	for _, rec := range prices.Records {
		i := sort.SearchFloat64s(edges, rec.Value)
		// SearchFloat64s returns the first edge >= price; a price equal to an
		// edge belongs to the band above it (Low inclusive).
		if i < len(edges) && rec.Value == edges[i] {
			i++
		}
		bands[i].Counts[rec.RegionID]++
	}
	return bands, nil
}
