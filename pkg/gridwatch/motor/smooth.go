package motor

import (
	model "github.com/tigerroll/gridwatch/pkg/gridwatch/core/domain/model"
	"github.com/tigerroll/gridwatch/pkg/gridwatch/support/util/exception"
)

// SmoothMethod selects the smoothing algorithm.
type SmoothMethod string

const (
	// SmoothExponential is span-based exponential weighting.
	SmoothExponential SmoothMethod = "exponential"
	// SmoothCentered is a symmetric moving average around each point.
	SmoothCentered SmoothMethod = "centered"
)

// Sample is one smoothed point. Points without enough history (or, for the
// centered method, enough surrounding points) are returned with Valid false
// rather than a fabricated zero.
type Sample struct {
	Value float64
	Valid bool
}

// Smooth applies trend smoothing to a series for display.
//
// window is the span: for the exponential method it sets the decay factor
// alpha = 2/(window+1); for the centered method it is the width of the
// symmetric window. minPeriods is the number of observations required before
// a point is defined; when zero it defaults to window/2 (rounded down, min 1).
// Edges are never wrapped and missing history is never treated as zero.
func Smooth(series []float64, method SmoothMethod, window int, minPeriods int) ([]Sample, error) {
	if window < 1 {
		return nil, exception.NewGridErrorf(moduleName, "smoothing window must be at least 1, got %d", window)
	}
	if minPeriods <= 0 {
		minPeriods = window / 2
		if minPeriods < 1 {
			minPeriods = 1
		}
	}

	switch method {
	case SmoothExponential:
		return smoothExponential(series, window, minPeriods), nil
	case SmoothCentered:
		return smoothCentered(series, window, minPeriods), nil
	default:
		return nil, exception.NewGridErrorf(moduleName, "unknown smoothing method '%s'", string(method))
	}
}

// smoothExponential computes an exponentially weighted mean with
// span-implied alpha. The weighted mean uses the finite-history correction
// (dividing by the sum of weights actually applied), so early defined points
// are unbiased rather than pulled toward the first observation.
func smoothExponential(series []float64, window, minPeriods int) []Sample {
	out := make([]Sample, len(series))
	alpha := 2.0 / (float64(window) + 1.0)

	var num, den float64
	for i, v := range series {
		if i == 0 {
			num, den = v, 1
		} else {
			num = v + (1-alpha)*num
			den = 1 + (1-alpha)*den
		}
		if i+1 >= minPeriods {
			out[i] = Sample{Value: num / den, Valid: true}
		}
	}
	return out
}

// smoothCentered computes a symmetric moving average. For each point the
// window extends window/2 to either side, clipped at the series bounds; a
// point is defined only when at least minPeriods observations fall inside.
func smoothCentered(series []float64, window, minPeriods int) []Sample {
	out := make([]Sample, len(series))
	half := window / 2

	for i := range series {
		lo := i - half
		if lo < 0 {
			lo = 0
		}
		hi := i + (window - 1 - half)
		if hi > len(series)-1 {
			hi = len(series) - 1
		}
		n := hi - lo + 1
		if n < minPeriods {
			continue
		}
		sum := 0.0
		for j := lo; j <= hi; j++ {
			sum += series[j]
		}
		out[i] = Sample{Value: sum / float64(n), Valid: true}
	}
	return out
}

// SmoothSeries is a convenience wrapper that smooths the Value column of a
// series table in timestamp order.
func SmoothSeries(table *model.SeriesTable, method SmoothMethod, window, minPeriods int) ([]Sample, error) {
	values := make([]float64, len(table.Records))
	for i, r := range table.Records {
		values[i] = r.Value
	}
	return Smooth(values, method, window, minPeriods)
}
