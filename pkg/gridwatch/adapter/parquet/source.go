// Package parquet implements the port.SeriesSource interface over monthly
// parquet archives held in a storage connection. It is the data adapter of
// the pipeline: column names and value casing are normalized here, window
// semantics are enforced here, and transient file-access failures are
// retried here with bounded backoff.
package parquet

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"sort"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/xitongsys/parquet-go-source/buffer"
	"github.com/xitongsys/parquet-go/reader"

	storageAdapter "github.com/tigerroll/gridwatch/pkg/gridwatch/adapter/storage"
	coreConfig "github.com/tigerroll/gridwatch/pkg/gridwatch/core/config"
	"github.com/tigerroll/gridwatch/pkg/gridwatch/core/metrics"
	"github.com/tigerroll/gridwatch/pkg/gridwatch/core/port"
	model "github.com/tigerroll/gridwatch/pkg/gridwatch/core/domain/model"
	"github.com/tigerroll/gridwatch/pkg/gridwatch/support/util/exception"
	"github.com/tigerroll/gridwatch/pkg/gridwatch/support/util/logger"
)

const moduleName = "adapter.parquet"

// concurrent parquet column readers per file.
const readerParallelism = 2

// SeriesSource reads monthly parquet archives through a storage connection.
type SeriesSource struct {
	cfg      *coreConfig.DataConfig
	retry    coreConfig.RetryConfig
	resolver *storageAdapter.ConnectionResolver
	recorder metrics.MetricRecorder
	// sleep is swapped out by tests to avoid real backoff delays.
	sleep func(time.Duration)
}

var _ port.SeriesSource = (*SeriesSource)(nil)

// NewSeriesSource creates a parquet-backed SeriesSource.
func NewSeriesSource(cfg *coreConfig.DataConfig, resolver *storageAdapter.ConnectionResolver, recorder metrics.MetricRecorder) *SeriesSource {
	return &SeriesSource{
		cfg:      cfg,
		retry:    cfg.Retry,
		resolver: resolver,
		recorder: recorder,
		sleep:    time.Sleep,
	}
}

// chooseResolution applies the resolution-selection rule. Explicit values
// are honored; "auto" prefers 5-minute data unless the window exceeds the
// coarse-fallback threshold, in which case 30-minute data is used
// transparently. Rooftop estimates only exist at 30-minute resolution.
func (s *SeriesSource) chooseResolution(q port.SeriesQuery) (model.Resolution, error) {
	if q.Kind == model.SeriesRooftop {
		return model.Resolution30Min, nil
	}
	if q.Resolution != "" && q.Resolution != model.ResolutionAuto {
		return model.ParseResolution(q.Resolution)
	}
	threshold := time.Duration(s.cfg.AutoCoarseThresholdDays) * 24 * time.Hour
	if threshold > 0 && q.Window.Duration() > threshold {
		logger.Debugf("Window %s exceeds %d-day threshold; falling back to 30-minute data.", q.Window, s.cfg.AutoCoarseThresholdDays)
		return model.Resolution30Min, nil
	}
	return model.Resolution5Min, nil
}

// Load implements port.SeriesSource.
func (s *SeriesSource) Load(ctx context.Context, q port.SeriesQuery) (*model.SeriesTable, error) {
	started := time.Now()
	table, err := s.load(ctx, q)
	if s.recorder != nil {
		s.recorder.RecordLoad(ctx, string(q.Kind), time.Since(started).Seconds(), err)
	}
	return table, err
}

func (s *SeriesSource) load(ctx context.Context, q port.SeriesQuery) (*model.SeriesTable, error) {
	res, err := s.chooseResolution(q)
	if err != nil {
		return nil, exception.NewGridError(moduleName, "invalid resolution in query", err, false)
	}

	conn, err := s.resolver.Resolve(s.cfg.StorageRef)
	if err != nil {
		return nil, exception.NewGridError(moduleName, "failed to resolve storage connection", err, false)
	}

	available, err := s.availableWindow(ctx, conn, q.Kind, res)
	if err != nil {
		// An auto query that picked 5-minute data falls back to the coarse
		// dataset when the fine one holds no archives at all. An explicit
		// resolution never falls back.
		if autoResolution(q) && res == model.Resolution5Min && errors.Is(err, exception.ErrDataUnavailable) {
			logger.Debugf("No 5-minute archives for '%s'; falling back to 30-minute data.", q.Kind)
			res = model.Resolution30Min
			available, err = s.availableWindow(ctx, conn, q.Kind, res)
		}
		if err != nil {
			return nil, err
		}
	}

	effective, ok := q.Window.Intersect(available)
	if !ok {
		// Zero overlap is an error, never an empty result: an empty chart
		// drawn from a silently empty table is indistinguishable from a
		// legitimate all-zero period.
		return nil, exception.NewGridError(moduleName,
			"requested window "+q.Window.String()+" has no overlap with available range "+available.String(),
			exception.ErrDataUnavailable, false)
	}

	regions := regionSet(q.Regions)
	var records []model.TimeSeriesRecord
	var loadErrs error
	loaded := 0
	for _, month := range monthsCovering(effective) {
		object := monthObject(s.cfg.BaseDir, q.Kind, res, month)
		monthRecords, err := s.loadMonthWithRetry(ctx, conn, q.Kind, res, object)
		if err != nil {
			if errors.Is(err, exception.ErrDataUnavailable) {
				// A month inside the available range may still be missing
				// (gap months are tolerated, not fatal).
				logger.Debugf("Month object '%s' missing inside available range; skipping.", object)
				continue
			}
			loadErrs = multierror.Append(loadErrs, err)
			continue
		}
		loaded++
		for _, r := range monthRecords {
			if !effective.Contains(r.SettlementDate) {
				continue
			}
			if regions != nil && r.RegionID != "" {
				if _, ok := regions[r.RegionID]; !ok {
					continue
				}
			}
			records = append(records, r)
		}
	}

	if loaded == 0 && loadErrs != nil {
		// Every month failed: surface the combined failure as unavailability.
		return nil, exception.NewGridError(moduleName, "all month loads failed for window "+effective.String(),
			multierror.Append(loadErrs, exception.ErrDataUnavailable), false)
	}
	if loadErrs != nil {
		logger.Warnf("Partial load for %s %s: %v", q.Kind, effective, loadErrs)
	}

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].SettlementDate.Before(records[j].SettlementDate)
	})

	return &model.SeriesTable{
		Kind:         q.Kind,
		Records:      records,
		Resolution:   res,
		ActualWindow: effective,
		Truncated:    !effective.Start.Equal(q.Window.Start) || !effective.End.Equal(q.Window.End),
	}, nil
}

// autoResolution reports whether the query left resolution selection to the
// source.
func autoResolution(q port.SeriesQuery) bool {
	return q.Resolution == "" || q.Resolution == model.ResolutionAuto
}

// AvailableWindow implements port.SeriesSource. Like an auto Load, it reads
// the 30-minute dataset when no 5-minute archives exist.
func (s *SeriesSource) AvailableWindow(ctx context.Context, kind model.SeriesKind) (model.Window, error) {
	res := model.Resolution5Min
	if kind == model.SeriesRooftop {
		res = model.Resolution30Min
	}
	conn, err := s.resolver.Resolve(s.cfg.StorageRef)
	if err != nil {
		return model.Window{}, exception.NewGridError(moduleName, "failed to resolve storage connection", err, false)
	}
	w, err := s.availableWindow(ctx, conn, kind, res)
	if err != nil && res == model.Resolution5Min && errors.Is(err, exception.ErrDataUnavailable) {
		return s.availableWindow(ctx, conn, kind, model.Resolution30Min)
	}
	return w, err
}

// availableWindow lists the month objects of a dataset and derives the
// half-open window they cover.
func (s *SeriesSource) availableWindow(ctx context.Context, conn storageAdapter.StorageConnection, kind model.SeriesKind, res model.Resolution) (model.Window, error) {
	var months []time.Time
	prefix := datasetPrefix(s.cfg.BaseDir, kind, res)
	err := conn.ListObjects(ctx, prefix, func(objectName string) error {
		if m, ok := parseMonthObject(objectName); ok {
			months = append(months, m)
		}
		return nil
	})
	if err != nil {
		return model.Window{}, exception.NewGridError(moduleName, "failed to list dataset objects", err, true)
	}
	if len(months) == 0 {
		return model.Window{}, exception.NewGridError(moduleName,
			"dataset '"+string(kind)+"' has no "+res.String()+" archives", exception.ErrDataUnavailable, false)
	}
	w, err := windowOfMonths(months)
	if err != nil {
		return model.Window{}, exception.NewGridError(moduleName, "failed to derive available window", err, false)
	}
	return w, nil
}

// loadMonthWithRetry downloads and decodes one month object, retrying
// transient failures with increasing delay. Concurrent archive rewrites show
// up as read/decode errors mid-file; a bounded retry with backoff rides them
// out, after which the month surfaces as unavailable.
func (s *SeriesSource) loadMonthWithRetry(ctx context.Context, conn storageAdapter.StorageConnection, kind model.SeriesKind, res model.Resolution, object string) ([]model.TimeSeriesRecord, error) {
	maxAttempts := s.retry.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	interval := time.Duration(s.retry.InitialInterval) * time.Millisecond
	maxInterval := time.Duration(s.retry.MaxInterval) * time.Millisecond

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		records, err := s.loadMonth(ctx, conn, kind, res, object)
		if err == nil {
			return records, nil
		}
		lastErr = err
		if !s.shouldRetry(err) || attempt == maxAttempts {
			break
		}
		logger.Warnf("Load of '%s' failed (attempt %d/%d), retrying in %s: %v", object, attempt, maxAttempts, interval, err)
		if s.recorder != nil {
			s.recorder.RecordRetry(ctx, string(kind))
		}
		s.sleep(interval)
		if s.retry.Factor > 1 {
			interval = time.Duration(float64(interval) * s.retry.Factor)
		}
		if maxInterval > 0 && interval > maxInterval {
			interval = maxInterval
		}
	}
	return nil, lastErr
}

// shouldRetry applies the retry policy: errors flagged retryable at the
// source, plus any error types named in configuration.
func (s *SeriesSource) shouldRetry(err error) bool {
	if exception.IsRetryable(err) {
		return true
	}
	for _, name := range s.retry.RetryableExceptions {
		if exception.IsErrorOfType(err, name) {
			return true
		}
	}
	return false
}

// loadMonth downloads one month object and decodes it into canonical records.
func (s *SeriesSource) loadMonth(ctx context.Context, conn storageAdapter.StorageConnection, kind model.SeriesKind, res model.Resolution, object string) ([]model.TimeSeriesRecord, error) {
	rc, err := conn.Download(ctx, object)
	if err != nil {
		// Missing objects are a data gap; everything else is a transient
		// access failure worth retrying.
		if isNotFound(err) {
			return nil, exception.NewGridError(moduleName, "month object '"+object+"' not found", exception.ErrDataUnavailable, false)
		}
		return nil, exception.NewGridError(moduleName, "failed to open month object '"+object+"'", err, true)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, exception.NewGridError(moduleName, "failed to read month object '"+object+"'", err, true)
	}

	return decodeMonth(data, kind, res)
}

// decodeMonth parses one month's parquet bytes into canonical records.
func decodeMonth(data []byte, kind model.SeriesKind, res model.Resolution) ([]model.TimeSeriesRecord, error) {
	fr := buffer.NewBufferFileFromBytes(data)
	defer fr.Close()

	switch kind {
	case model.SeriesGeneration:
		pr, err := reader.NewParquetReader(fr, new(generationRow), readerParallelism)
		if err != nil {
			return nil, exception.NewGridError(moduleName, "failed to open generation parquet", err, true)
		}
		defer pr.ReadStop()
		rows := make([]generationRow, pr.GetNumRows())
		if err := pr.Read(&rows); err != nil {
			return nil, exception.NewGridError(moduleName, "failed to decode generation parquet", err, true)
		}
		return generationRecords(rows, res), nil
	case model.SeriesPrice:
		pr, err := reader.NewParquetReader(fr, new(priceRow), readerParallelism)
		if err != nil {
			return nil, exception.NewGridError(moduleName, "failed to open price parquet", err, true)
		}
		defer pr.ReadStop()
		rows := make([]priceRow, pr.GetNumRows())
		if err := pr.Read(&rows); err != nil {
			return nil, exception.NewGridError(moduleName, "failed to decode price parquet", err, true)
		}
		return priceRecords(rows, res), nil
	case model.SeriesRooftop:
		pr, err := reader.NewParquetReader(fr, new(rooftopRow), readerParallelism)
		if err != nil {
			return nil, exception.NewGridError(moduleName, "failed to open rooftop parquet", err, true)
		}
		defer pr.ReadStop()
		rows := make([]rooftopRow, pr.GetNumRows())
		if err := pr.Read(&rows); err != nil {
			return nil, exception.NewGridError(moduleName, "failed to decode rooftop parquet", err, true)
		}
		return rooftopRecords(rows, res), nil
	default:
		return nil, exception.NewGridErrorf(moduleName, "unknown series kind '%s'", string(kind))
	}
}

// regionSet builds a normalized lookup set, or nil when no filter applies.
func regionSet(regions []string) map[string]struct{} {
	if len(regions) == 0 {
		return nil
	}
	out := make(map[string]struct{}, len(regions))
	for _, r := range regions {
		out[model.NormalizeRegionID(r)] = struct{}{}
	}
	return out
}

// isNotFound reports whether an error from a storage connection denotes a
// missing object rather than an access failure. Both adapters wrap their
// not-found conditions as fs.ErrNotExist.
func isNotFound(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
