// Package cache provides the result cache for expensive aggregation and
// chart-construction calls: a process-wide registry of fingerprint-keyed
// entries with per-entry time-to-live, manual invalidation, and
// per-fingerprint in-flight deduplication.
//
// The registry is an explicit object constructed at startup and injected
// where needed. There is deliberately no package-level instance: ambient
// cache state shared across logically independent contexts is the bug class
// this design exists to rule out.
package cache

import (
	"context"
	"sync"
	"time"

	"github.com/tigerroll/gridwatch/pkg/gridwatch/core/metrics"
	"github.com/tigerroll/gridwatch/pkg/gridwatch/core/port"
	"github.com/tigerroll/gridwatch/pkg/gridwatch/support/util/exception"
	"github.com/tigerroll/gridwatch/pkg/gridwatch/support/util/logger"
)

const moduleName = "cache"

// entry holds one computed result and its expiry instant.
type entry struct {
	value     interface{}
	expiresAt time.Time
}

// call tracks one in-flight computation so concurrent callers with the same
// fingerprint wait for it instead of recomputing.
type call struct {
	done  chan struct{}
	value interface{}
	err   error
}

// Options configure a Registry.
type Options struct {
	// Disabled makes Do a pure pass-through: compute is invoked directly
	// with no fingerprint lookup, no locking and no storage. This is
	// intentionally not a zero-ttl cache, so timings with the cache off
	// measure the computation alone.
	Disabled bool
	// Clock supplies the current time; tests inject a fake.
	Clock func() time.Time
	// Recorder receives hit/miss/eviction metrics. Nil disables recording.
	Recorder metrics.MetricRecorder
	// LogStats enables periodic hit/miss logging.
	LogStats bool
}

// Registry is the process-wide cache. It implements port.Cache.
type Registry struct {
	mu       sync.Mutex
	entries  map[string]*entry
	inflight map[string]*call

	disabled bool
	clock    func() time.Time
	recorder metrics.MetricRecorder
	logStats bool

	hits   uint64
	misses uint64
}

var _ port.Cache = (*Registry)(nil)

// New creates a Registry.
func New(opts Options) *Registry {
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Registry{
		entries:  make(map[string]*entry),
		inflight: make(map[string]*call),
		disabled: opts.Disabled,
		clock:    clock,
		recorder: opts.Recorder,
		logStats: opts.LogStats,
	}
}

// Enabled implements port.Cache.
func (r *Registry) Enabled() bool {
	return !r.disabled
}

// Do implements port.Cache. Within ttl of a stored result, callers receive
// the identical value without compute running again; entry replacement after
// expiry is atomic under the registry lock, so no caller ever observes a
// half-updated entry. At most one compute runs per fingerprint at a time;
// concurrent callers share its outcome.
func (r *Registry) Do(ctx context.Context, key string, ttl time.Duration, compute func(ctx context.Context) (interface{}, error)) (interface{}, error) {
	if r.disabled {
		return compute(ctx)
	}

	r.mu.Lock()
	now := r.clock()
	if e, ok := r.entries[key]; ok {
		if now.Before(e.expiresAt) {
			r.hits++
			r.mu.Unlock()
			if r.recorder != nil {
				r.recorder.RecordCacheHit(ctx, shortKey(key))
			}
			return e.value, nil
		}
		// Expired: drop it now so a concurrent Invalidate cannot resurrect it.
		delete(r.entries, key)
		if r.recorder != nil {
			r.recorder.RecordCacheEviction(ctx, "expired")
		}
	}

	if c, ok := r.inflight[key]; ok {
		r.mu.Unlock()
		select {
		case <-c.done:
			return c.value, c.err
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	c := &call{done: make(chan struct{})}
	r.inflight[key] = c
	r.misses++
	r.mu.Unlock()
	if r.recorder != nil {
		r.recorder.RecordCacheMiss(ctx, shortKey(key))
	}

	// The in-flight entry must be released and c.done closed even when
	// compute panics; otherwise every later Do for this fingerprint blocks
	// on a call that will never publish.
	completed := false
	defer func() {
		if !completed {
			c.err = exception.NewGridErrorf(moduleName, "computation aborted before producing a result")
		}
		r.mu.Lock()
		delete(r.inflight, key)
		if completed && c.err == nil {
			r.entries[key] = &entry{value: c.value, expiresAt: r.clock().Add(ttl)}
		}
		r.mu.Unlock()
		close(c.done)
	}()

	c.value, c.err = compute(ctx)
	completed = true
	return c.value, c.err
}

// shortKey abbreviates a fingerprint for metric labels to keep cardinality
// readable in dashboards.
func shortKey(key string) string {
	if len(key) > 8 {
		return key[:8]
	}
	return key
}

// Invalidate implements port.Cache: evicts one entry regardless of its
// remaining ttl, for the case where a window's data has since been extended.
func (r *Registry) Invalidate(key string) {
	r.mu.Lock()
	_, existed := r.entries[key]
	delete(r.entries, key)
	r.mu.Unlock()
	if existed && r.recorder != nil {
		r.recorder.RecordCacheEviction(context.Background(), "manual")
	}
}

// Clear implements port.Cache: evicts every entry.
func (r *Registry) Clear() {
	r.mu.Lock()
	n := len(r.entries)
	r.entries = make(map[string]*entry)
	r.mu.Unlock()
	if n > 0 && r.recorder != nil {
		r.recorder.RecordCacheEviction(context.Background(), "clear")
	}
	logger.Debugf("Cache cleared (%d entries evicted).", n)
}

// Stats returns the running hit/miss counters.
func (r *Registry) Stats() (hits, misses uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.hits, r.misses
}

// StartStatsLogger logs hit/miss counters every interval until ctx is done.
// No-op unless stats logging was enabled.
func (r *Registry) StartStatsLogger(ctx context.Context, interval time.Duration) {
	if !r.logStats || r.disabled {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				hits, misses := r.Stats()
				total := hits + misses
				if total == 0 {
					continue
				}
				logger.Infof("Cache stats: %d hits, %d misses (%.1f%% hit rate).", hits, misses, 100*float64(hits)/float64(total))
			}
		}
	}()
}
