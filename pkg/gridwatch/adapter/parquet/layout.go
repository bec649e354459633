package parquet

import (
	"fmt"
	"path"
	"sort"
	"strings"
	"time"

	model "github.com/tigerroll/gridwatch/pkg/gridwatch/core/domain/model"
)

// Dataset layout: <base_dir>/<kind>/<resolution>/<YYYYMM>.parquet, one
// object per calendar month. Rooftop data only exists at 30-minute
// resolution; generation and price are archived at both.

// datasetPrefix returns the object prefix for a dataset at a resolution.
func datasetPrefix(baseDir string, kind model.SeriesKind, res model.Resolution) string {
	return path.Join(baseDir, string(kind), res.String()) + "/"
}

// monthObject returns the object name for one month of a dataset.
func monthObject(baseDir string, kind model.SeriesKind, res model.Resolution, month time.Time) string {
	return path.Join(baseDir, string(kind), res.String(), month.Format("200601")+".parquet")
}

// parseMonthObject extracts the month from an object name produced by
// monthObject. The boolean result is false for names that do not follow the
// layout (stray files are ignored, not fatal).
func parseMonthObject(objectName string) (time.Time, bool) {
	base := path.Base(objectName)
	if !strings.HasSuffix(base, ".parquet") {
		return time.Time{}, false
	}
	stem := strings.TrimSuffix(base, ".parquet")
	t, err := time.Parse("200601", stem)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// monthsCovering returns the first day of every calendar month the window
// touches, in ascending order.
func monthsCovering(w model.Window) []time.Time {
	var out []time.Time
	m := time.Date(w.Start.Year(), w.Start.Month(), 1, 0, 0, 0, 0, time.UTC)
	for m.Before(w.End) {
		out = append(out, m)
		m = m.AddDate(0, 1, 0)
	}
	return out
}

// windowOfMonths returns the half-open window covered by a sorted, non-empty
// set of month starts: from the first month's start to the instant after the
// last month ends.
func windowOfMonths(months []time.Time) (model.Window, error) {
	if len(months) == 0 {
		return model.Window{}, fmt.Errorf("no months available")
	}
	sorted := append([]time.Time(nil), months...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })
	return model.Window{
		Start: sorted[0],
		End:   sorted[len(sorted)-1].AddDate(0, 1, 0),
	}, nil
}
