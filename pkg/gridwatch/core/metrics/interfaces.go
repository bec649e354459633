// Package metrics defines the observability interfaces used across gridwatch.
// Concrete implementations live in infrastructure/metrics.
package metrics

import "context"

// MetricRecorder records pipeline and cache metrics. Implementations must be
// safe for concurrent use.
type MetricRecorder interface {
	// RecordLoad records one adapter load with its duration in seconds.
	RecordLoad(ctx context.Context, kind string, seconds float64, err error)
	// RecordRetry records one retry attempt against a data source.
	RecordRetry(ctx context.Context, kind string)
	// RecordCacheHit records a cache hit for a call site.
	RecordCacheHit(ctx context.Context, site string)
	// RecordCacheMiss records a cache miss for a call site.
	RecordCacheMiss(ctx context.Context, site string)
	// RecordCacheEviction records an eviction (ttl expiry or manual).
	RecordCacheEviction(ctx context.Context, reason string)
	// RecordRequest records one analysis request with its duration in seconds.
	RecordRequest(ctx context.Context, operation string, seconds float64, err error)
}

// Tracer starts spans around the stages of an analysis request.
type Tracer interface {
	// StartSpan starts a span named name and returns the derived context plus
	// a function that ends the span.
	StartSpan(ctx context.Context, name string, attributes map[string]string) (context.Context, func())
	// RecordError records an error on the current span.
	RecordError(ctx context.Context, module string, err error)
}
