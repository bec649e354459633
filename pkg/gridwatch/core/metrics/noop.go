package metrics

import "context"

// NoopRecorder is a MetricRecorder that discards everything. Used when
// metrics are disabled and as the default in tests.
type NoopRecorder struct{}

func (NoopRecorder) RecordLoad(ctx context.Context, kind string, seconds float64, err error) {}
func (NoopRecorder) RecordRetry(ctx context.Context, kind string)                            {}
func (NoopRecorder) RecordCacheHit(ctx context.Context, site string)                         {}
func (NoopRecorder) RecordCacheMiss(ctx context.Context, site string)                        {}
func (NoopRecorder) RecordCacheEviction(ctx context.Context, reason string)                  {}
func (NoopRecorder) RecordRequest(ctx context.Context, operation string, seconds float64, err error) {
}

// NoopTracer is a Tracer that produces no spans.
type NoopTracer struct{}

func (NoopTracer) StartSpan(ctx context.Context, name string, attributes map[string]string) (context.Context, func()) {
	return ctx, func() {}
}

func (NoopTracer) RecordError(ctx context.Context, module string, err error) {}

var (
	_ MetricRecorder = NoopRecorder{}
	_ Tracer         = NoopTracer{}
)
