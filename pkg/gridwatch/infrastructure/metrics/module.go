package metrics

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.uber.org/fx"

	metrics "github.com/tigerroll/gridwatch/pkg/gridwatch/core/metrics"
	logger "github.com/tigerroll/gridwatch/pkg/gridwatch/support/util/logger"
)

// setupTracerProvider installs an OTLP/HTTP trace pipeline as the global
// tracer provider. The exporter endpoint comes from the standard
// OTEL_EXPORTER_OTLP_ENDPOINT environment variable; without a collector the
// batch exporter drops spans without affecting request handling.
func setupTracerProvider(lc fx.Lifecycle) error {
	exporter, err := otlptracehttp.New(context.Background())
	if err != nil {
		return err
	}

	res, err := sdkresource.Merge(
		sdkresource.Default(),
		sdkresource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName("gridwatch"),
		),
	)
	if err != nil {
		return err
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			if err := tp.Shutdown(ctx); err != nil {
				logger.Warnf("Failed to shut down tracer provider: %v", err)
			}
			return nil
		},
	})
	return nil
}

// Module is an Fx module that provides PrometheusRecorder and OpenTelemetryTracer.
var Module = fx.Options(
	// The concrete recorder is provided directly so the HTTP server can mount
	// its registry under /metrics; everything else depends on the interface.
	fx.Provide(NewPrometheusRecorder),
	fx.Provide(func(r *PrometheusRecorder) metrics.MetricRecorder { return r }),
	fx.Provide(fx.Annotate(
		NewOpenTelemetryTracer,
		fx.As(new(metrics.Tracer)),
	)),
	fx.Invoke(setupTracerProvider),
)
