// Package port defines the interfaces between the gridwatch analysis core
// and its adapters: series sources, metadata sources and the result cache.
package port

import (
	"context"
	"time"

	model "github.com/tigerroll/gridwatch/pkg/gridwatch/core/domain/model"
)

// SeriesQuery describes one adapter load: which dataset, which window, which
// regions, and at what resolution.
type SeriesQuery struct {
	Kind    model.SeriesKind
	Window  model.Window
	Regions []string
	// Resolution is "5min", "30min" or model.ResolutionAuto. With auto the
	// adapter prefers the finer source unless the window exceeds its
	// configured coarse-fallback threshold.
	Resolution string
}

// SeriesSource loads time-series tables from a backing store.
//
// Load returns exception.ErrDataUnavailable (wrapped) when the requested
// window has zero overlap with the data held by the source. Partial overlap
// is not an error: the returned table carries the true bounds in
// ActualWindow and is marked Truncated.
type SeriesSource interface {
	// Load returns the records for the query. The returned table covers the
	// intersection of the requested window with the available range.
	Load(ctx context.Context, q SeriesQuery) (*model.SeriesTable, error)
	// AvailableWindow reports the half-open window the source currently holds
	// for a dataset.
	AvailableWindow(ctx context.Context, kind model.SeriesKind) (model.Window, error)
}

// MetadataSource loads the DUID reference table. Implementations normalize
// fuel types and region identifiers before returning; callers never see raw
// casing.
type MetadataSource interface {
	// UnitMetadata returns a snapshot of the reference table. The snapshot is
	// immutable for the duration of the request that loaded it.
	UnitMetadata(ctx context.Context) (model.MetadataTable, error)
}

// Cache memoizes expensive computations keyed by a deterministic fingerprint
// of the call. See the cache package for the concrete registry.
type Cache interface {
	// Do returns the cached value for key if one is live, otherwise runs
	// compute, stores its result with the given ttl, and returns it. At most
	// one compute runs concurrently per fingerprint; other callers wait and
	// share the result.
	Do(ctx context.Context, key string, ttl time.Duration, compute func(ctx context.Context) (interface{}, error)) (interface{}, error)
	// Invalidate evicts a single entry regardless of its remaining ttl.
	Invalidate(key string)
	// Clear evicts every entry.
	Clear()
	// Enabled reports whether the cache is active. A disabled cache makes Do
	// a pure pass-through with no fingerprinting overhead.
	Enabled() bool
}
