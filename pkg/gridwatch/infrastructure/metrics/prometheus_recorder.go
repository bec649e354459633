package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	metrics "github.com/tigerroll/gridwatch/pkg/gridwatch/core/metrics"
	logger "github.com/tigerroll/gridwatch/pkg/gridwatch/support/util/logger"
)

// PrometheusRecorder is a Prometheus implementation of the metrics.MetricRecorder interface.
type PrometheusRecorder struct {
	registry *prometheus.Registry

	// Pipeline metrics
	loadDurationSeconds    *prometheus.HistogramVec
	retryCounter           *prometheus.CounterVec
	requestDurationSeconds *prometheus.HistogramVec

	// Cache metrics
	cacheHitCounter      *prometheus.CounterVec
	cacheMissCounter     *prometheus.CounterVec
	cacheEvictionCounter *prometheus.CounterVec
}

// NewPrometheusRecorder creates a new instance of PrometheusRecorder.
func NewPrometheusRecorder() *PrometheusRecorder {
	registry := prometheus.NewRegistry()

	// Register Go standard metrics and process/OS metrics.
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &PrometheusRecorder{
		registry: registry,
		loadDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gridwatch_load_duration_seconds",
			Help:    "Duration of series loads from the data store.",
			Buckets: prometheus.DefBuckets,
		}, []string{"kind", "status"}),
		retryCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gridwatch_load_retry_total",
			Help: "Total retry attempts against the data store.",
		}, []string{"kind"}),
		requestDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gridwatch_request_duration_seconds",
			Help:    "Duration of analysis requests.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation", "status"}),
		cacheHitCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gridwatch_cache_hit_total",
			Help: "Total cache hits by call site.",
		}, []string{"site"}),
		cacheMissCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gridwatch_cache_miss_total",
			Help: "Total cache misses by call site.",
		}, []string{"site"}),
		cacheEvictionCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gridwatch_cache_eviction_total",
			Help: "Total cache evictions by reason.",
		}, []string{"reason"}),
	}

	// Register all metrics with the registry.
	registry.MustRegister(r.loadDurationSeconds)
	registry.MustRegister(r.retryCounter)
	registry.MustRegister(r.requestDurationSeconds)
	registry.MustRegister(r.cacheHitCounter)
	registry.MustRegister(r.cacheMissCounter)
	registry.MustRegister(r.cacheEvictionCounter)

	return r
}

// GetRegistry returns the Prometheus registry, for exposure via promhttp.
func (r *PrometheusRecorder) GetRegistry() *prometheus.Registry {
	return r.registry
}

// RecordLoad records one adapter load with its duration.
func (r *PrometheusRecorder) RecordLoad(ctx context.Context, kind string, seconds float64, err error) {
	r.loadDurationSeconds.WithLabelValues(kind, statusLabel(err)).Observe(seconds)
	logger.Debugf("Metrics: load of '%s' took %.3fs.", kind, seconds)
}

// RecordRetry records one retry attempt against a data source.
func (r *PrometheusRecorder) RecordRetry(ctx context.Context, kind string) {
	r.retryCounter.WithLabelValues(kind).Inc()
}

// RecordCacheHit records a cache hit.
func (r *PrometheusRecorder) RecordCacheHit(ctx context.Context, site string) {
	r.cacheHitCounter.WithLabelValues(site).Inc()
}

// RecordCacheMiss records a cache miss.
func (r *PrometheusRecorder) RecordCacheMiss(ctx context.Context, site string) {
	r.cacheMissCounter.WithLabelValues(site).Inc()
}

// RecordCacheEviction records an eviction.
func (r *PrometheusRecorder) RecordCacheEviction(ctx context.Context, reason string) {
	r.cacheEvictionCounter.WithLabelValues(reason).Inc()
}

// RecordRequest records one analysis request with its duration.
func (r *PrometheusRecorder) RecordRequest(ctx context.Context, operation string, seconds float64, err error) {
	r.requestDurationSeconds.WithLabelValues(operation, statusLabel(err)).Observe(seconds)
	logger.Debugf("Metrics: request '%s' took %.3fs.", operation, seconds)
}

func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

var _ metrics.MetricRecorder = (*PrometheusRecorder)(nil)
