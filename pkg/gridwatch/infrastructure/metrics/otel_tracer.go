package metrics

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	metrics "github.com/tigerroll/gridwatch/pkg/gridwatch/core/metrics"
	logger "github.com/tigerroll/gridwatch/pkg/gridwatch/support/util/logger"
)

// OpenTelemetryTracer is an implementation of metrics.Tracer using OpenTelemetry.
type OpenTelemetryTracer struct {
	tracer trace.Tracer
}

// NewOpenTelemetryTracer creates a tracer against the globally installed
// tracer provider. Module installs the provider before anything traces.
func NewOpenTelemetryTracer() *OpenTelemetryTracer {
	return &OpenTelemetryTracer{
		tracer: otel.Tracer("github.com/tigerroll/gridwatch"),
	}
}

// StartSpan starts a span and returns the derived context plus its end function.
func (t *OpenTelemetryTracer) StartSpan(ctx context.Context, name string, attributes map[string]string) (context.Context, func()) {
	attrs := make([]attribute.KeyValue, 0, len(attributes))
	for k, v := range attributes {
		attrs = append(attrs, attribute.String(k, v))
	}
	ctx, span := t.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
	logger.Debugf("Tracer: span '%s' started.", name)
	return ctx, func() { span.End() }
}

// RecordError records an error on the span carried by ctx.
func (t *OpenTelemetryTracer) RecordError(ctx context.Context, module string, err error) {
	span := trace.SpanFromContext(ctx)
	span.RecordError(err, trace.WithAttributes(attribute.String("module", module)))
	span.SetStatus(codes.Error, err.Error())
}

var _ metrics.Tracer = (*OpenTelemetryTracer)(nil)
