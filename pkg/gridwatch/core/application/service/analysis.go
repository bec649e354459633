// Package service implements the analysis use cases behind the dashboard
// API: loading series through the data adapter, joining them with unit
// metadata, and running the aggregation motor, all memoized through the
// result cache.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"

	"github.com/tigerroll/gridwatch/pkg/gridwatch/cache"
	"github.com/tigerroll/gridwatch/pkg/gridwatch/core/config"
	model "github.com/tigerroll/gridwatch/pkg/gridwatch/core/domain/model"
	metrics "github.com/tigerroll/gridwatch/pkg/gridwatch/core/metrics"
	"github.com/tigerroll/gridwatch/pkg/gridwatch/core/port"
	"github.com/tigerroll/gridwatch/pkg/gridwatch/motor"
	"github.com/tigerroll/gridwatch/pkg/gridwatch/support/util/exception"
	logger "github.com/tigerroll/gridwatch/pkg/gridwatch/support/util/logger"
)

const moduleName = "analysis"

// AggregateRequest describes one aggregation call.
type AggregateRequest struct {
	Window     model.Window
	Regions    []string
	Resolution string
	Dimensions []string
	// BucketSize applies when Dimensions contains "bucket".
	BucketSize time.Duration
	Sorted     bool
	// IncludeRooftop merges the rooftop PV series into the frame before
	// aggregating.
	IncludeRooftop bool
}

// AggregateResponse carries the aggregation result with window provenance.
type AggregateResponse struct {
	RequestID       string                  `json:"request_id"`
	Result          *model.AggregationResult `json:"result"`
	ActualWindow    model.Window            `json:"actual_window"`
	Truncated       bool                    `json:"truncated"`
	UnresolvedCount int                     `json:"unresolved_count"`
}

// PenetrationRequest describes one renewable-penetration call.
type PenetrationRequest struct {
	Window         model.Window
	Regions        []string
	Resolution     string
	BucketSize     time.Duration
	IncludeRooftop bool
}

// PenetrationResponse carries per-bucket VRE shares.
type PenetrationResponse struct {
	RequestID    string                   `json:"request_id"`
	Points       []motor.PenetrationPoint `json:"points"`
	ActualWindow model.Window             `json:"actual_window"`
	Truncated    bool                     `json:"truncated"`
}

// PricesRequest describes one price-series call with optional smoothing and
// band counting.
type PricesRequest struct {
	Window     model.Window
	Regions    []string
	Resolution string
	// SmoothMethod enables trend smoothing when non-empty.
	SmoothMethod motor.SmoothMethod
	SmoothWindow int
	MinPeriods   int
	// BandEdges enables per-region price-band counts when non-empty.
	BandEdges []float64
}

// PricesResponse carries the price series plus any derived views.
type PricesResponse struct {
	RequestID    string                   `json:"request_id"`
	Records      []model.TimeSeriesRecord `json:"records"`
	Smoothed     []motor.Sample           `json:"smoothed,omitempty"`
	Bands        []motor.PriceBand        `json:"bands,omitempty"`
	ActualWindow model.Window             `json:"actual_window"`
	Truncated    bool                     `json:"truncated"`
}

// AnalysisService runs the load, integrate and aggregate pipeline. Every
// public method is memoized through the injected cache; all per-call state
// lives in the request and response values, never on the service itself.
type AnalysisService struct {
	series   port.SeriesSource
	meta     port.MetadataSource
	cache    port.Cache
	ttl      time.Duration
	recorder metrics.MetricRecorder
	tracer   metrics.Tracer
}

// NewAnalysisService wires the pipeline.
func NewAnalysisService(
	series port.SeriesSource,
	meta port.MetadataSource,
	c port.Cache,
	cacheCfg *config.CacheConfig,
	recorder metrics.MetricRecorder,
	tracer metrics.Tracer,
) *AnalysisService {
	return &AnalysisService{
		series:   series,
		meta:     meta,
		cache:    c,
		ttl:      time.Duration(cacheCfg.TTLSeconds) * time.Second,
		recorder: recorder,
		tracer:   tracer,
	}
}

// Aggregate loads the window, integrates generation with prices and unit
// metadata, and groups by the requested dimensions.
func (s *AnalysisService) Aggregate(ctx context.Context, req AggregateRequest) (*AggregateResponse, error) {
	requestID := uuid.NewString()
	start := time.Now()
	ctx, end := s.tracer.StartSpan(ctx, "analysis.aggregate", map[string]string{"request_id": requestID})
	defer end()

	key := cache.Fingerprint("AnalysisService.Aggregate", nil, map[string]interface{}{
		"window_start": req.Window.Start,
		"window_end":   req.Window.End,
		"regions":      req.Regions,
		"resolution":   req.Resolution,
		"dimensions":   req.Dimensions,
		"bucket":       req.BucketSize.String(),
		"sorted":       req.Sorted,
		"rooftop":      req.IncludeRooftop,
	})

	v, err := s.cache.Do(ctx, key, s.ttl, func(ctx context.Context) (interface{}, error) {
		frame, gen, err := s.loadFrame(ctx, requestID, req.Window, req.Regions, req.Resolution, req.IncludeRooftop)
		if err != nil {
			return nil, err
		}
		result, err := motor.Aggregate(frame, req.Dimensions, motor.AggregateOptions{
			BucketSize: req.BucketSize,
			Sorted:     req.Sorted,
		})
		if err != nil {
			return nil, err
		}
		return &AggregateResponse{
			RequestID:       requestID,
			Result:          result,
			ActualWindow:    gen.ActualWindow,
			Truncated:       gen.Truncated,
			UnresolvedCount: frame.UnresolvedCount,
		}, nil
	})
	s.recorder.RecordRequest(ctx, "aggregate", time.Since(start).Seconds(), err)
	if err != nil {
		s.tracer.RecordError(ctx, moduleName, err)
		return nil, err
	}
	return v.(*AggregateResponse), nil
}

// Penetration computes per-bucket renewable shares for the window.
func (s *AnalysisService) Penetration(ctx context.Context, req PenetrationRequest) (*PenetrationResponse, error) {
	requestID := uuid.NewString()
	start := time.Now()
	ctx, end := s.tracer.StartSpan(ctx, "analysis.penetration", map[string]string{"request_id": requestID})
	defer end()

	key := cache.Fingerprint("AnalysisService.Penetration", nil, map[string]interface{}{
		"window_start": req.Window.Start,
		"window_end":   req.Window.End,
		"regions":      req.Regions,
		"resolution":   req.Resolution,
		"bucket":       req.BucketSize.String(),
		"rooftop":      req.IncludeRooftop,
	})

	v, err := s.cache.Do(ctx, key, s.ttl, func(ctx context.Context) (interface{}, error) {
		frame, gen, err := s.loadFrame(ctx, requestID, req.Window, req.Regions, req.Resolution, req.IncludeRooftop)
		if err != nil {
			return nil, err
		}
		points, err := motor.Penetration(frame, req.BucketSize)
		if err != nil {
			return nil, err
		}
		return &PenetrationResponse{
			RequestID:    requestID,
			Points:       points,
			ActualWindow: gen.ActualWindow,
			Truncated:    gen.Truncated,
		}, nil
	})
	s.recorder.RecordRequest(ctx, "penetration", time.Since(start).Seconds(), err)
	if err != nil {
		s.tracer.RecordError(ctx, moduleName, err)
		return nil, err
	}
	return v.(*PenetrationResponse), nil
}

// Prices loads the price series for the window, with optional smoothing and
// band counts.
func (s *AnalysisService) Prices(ctx context.Context, req PricesRequest) (*PricesResponse, error) {
	requestID := uuid.NewString()
	start := time.Now()
	ctx, end := s.tracer.StartSpan(ctx, "analysis.prices", map[string]string{"request_id": requestID})
	defer end()

	key := cache.Fingerprint("AnalysisService.Prices", nil, map[string]interface{}{
		"window_start":  req.Window.Start,
		"window_end":    req.Window.End,
		"regions":       req.Regions,
		"resolution":    req.Resolution,
		"smooth_method": string(req.SmoothMethod),
		"smooth_window": req.SmoothWindow,
		"min_periods":   req.MinPeriods,
		"band_edges":    req.BandEdges,
	})

	v, err := s.cache.Do(ctx, key, s.ttl, func(ctx context.Context) (interface{}, error) {
		prices, err := s.series.Load(ctx, port.SeriesQuery{
			Kind:       model.SeriesPrice,
			Window:     req.Window,
			Regions:    req.Regions,
			Resolution: req.Resolution,
		})
		if err != nil {
			return nil, err
		}
		resp := &PricesResponse{
			RequestID:    requestID,
			Records:      prices.Records,
			ActualWindow: prices.ActualWindow,
			Truncated:    prices.Truncated,
		}
		if req.SmoothMethod != "" {
			resp.Smoothed, err = motor.SmoothSeries(prices, req.SmoothMethod, req.SmoothWindow, req.MinPeriods)
			if err != nil {
				return nil, err
			}
		}
		if len(req.BandEdges) > 0 {
			resp.Bands, err = motor.PriceBands(prices, req.BandEdges)
			if err != nil {
				return nil, err
			}
		}
		return resp, nil
	})
	s.recorder.RecordRequest(ctx, "prices", time.Since(start).Seconds(), err)
	if err != nil {
		s.tracer.RecordError(ctx, moduleName, err)
		return nil, err
	}
	return v.(*PricesResponse), nil
}

// InvalidateAll clears the result cache, for when the backing archives have
// been republished.
func (s *AnalysisService) InvalidateAll() {
	s.cache.Clear()
}

// loadFrame loads generation (and optionally rooftop) plus prices and unit
// metadata, then runs the integration join. A price load that finds no data
// degrades to price-missing rows instead of failing the frame; generation
// and price both failing surfaces the combined error.
func (s *AnalysisService) loadFrame(
	ctx context.Context,
	requestID string,
	window model.Window,
	regions []string,
	resolution string,
	includeRooftop bool,
) (*model.IntegratedFrame, *model.SeriesTable, error) {
	gen, genErr := s.series.Load(ctx, port.SeriesQuery{
		Kind:       model.SeriesGeneration,
		Window:     window,
		Regions:    regions,
		Resolution: resolution,
	})
	prices, priceErr := s.series.Load(ctx, port.SeriesQuery{
		Kind:       model.SeriesPrice,
		Window:     window,
		Regions:    regions,
		Resolution: resolution,
	})
	if genErr != nil {
		if priceErr != nil {
			return nil, nil, multierror.Append(genErr, priceErr)
		}
		return nil, nil, genErr
	}
	if priceErr != nil {
		if !errors.Is(priceErr, exception.ErrDataUnavailable) {
			return nil, nil, priceErr
		}
		logger.Warnf("Price data unavailable for window %s; rows will carry no price.", window.String())
		prices = &model.SeriesTable{Kind: model.SeriesPrice}
	}

	meta, err := s.meta.UnitMetadata(ctx)
	if err != nil {
		return nil, nil, err
	}

	frame := motor.Integrate(requestID, gen, prices, meta)
	// Generation rows carry no region until the join resolves one, so the
	// region scope is applied to the integrated frame, not at the adapter.
	motor.FilterRegions(frame, regions)
	if includeRooftop {
		rooftop, err := s.series.Load(ctx, port.SeriesQuery{
			Kind:       model.SeriesRooftop,
			Window:     window,
			Regions:    regions,
			Resolution: model.ResolutionAuto,
		})
		switch {
		case err == nil:
			motor.AppendRooftop(frame, rooftop, prices)
		case errors.Is(err, exception.ErrDataUnavailable):
			logger.Warnf("Rooftop data unavailable for window %s; continuing without it.", window.String())
		default:
			return nil, nil, err
		}
	}
	return frame, gen, nil
}
