package service_test

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tigerroll/gridwatch/pkg/gridwatch/cache"
	"github.com/tigerroll/gridwatch/pkg/gridwatch/core/application/service"
	"github.com/tigerroll/gridwatch/pkg/gridwatch/core/config"
	model "github.com/tigerroll/gridwatch/pkg/gridwatch/core/domain/model"
	"github.com/tigerroll/gridwatch/pkg/gridwatch/core/port"
	inframetrics "github.com/tigerroll/gridwatch/pkg/gridwatch/infrastructure/metrics"
	"github.com/tigerroll/gridwatch/pkg/gridwatch/support/util/exception"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var serviceWindowStart = time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

// stubSeries controls availability per dataset kind.
type stubSeries struct {
	genUnavailable   bool
	priceUnavailable bool
	// duids are the units emitted per interval; defaults to ER01 alone.
	duids []string
	loads int64
}

var _ port.SeriesSource = (*stubSeries)(nil)

func (s *stubSeries) Load(ctx context.Context, q port.SeriesQuery) (*model.SeriesTable, error) {
	atomic.AddInt64(&s.loads, 1)
	switch q.Kind {
	case model.SeriesGeneration:
		if s.genUnavailable {
			return nil, fmt.Errorf("no generation archives: %w", exception.ErrDataUnavailable)
		}
	case model.SeriesPrice:
		if s.priceUnavailable {
			return nil, fmt.Errorf("no price archives: %w", exception.ErrDataUnavailable)
		}
	case model.SeriesRooftop:
		return nil, fmt.Errorf("no rooftop archives: %w", exception.ErrDataUnavailable)
	}

	table := &model.SeriesTable{
		Kind:       q.Kind,
		Resolution: model.Resolution5Min,
		ActualWindow: model.Window{
			Start: serviceWindowStart,
			End:   serviceWindowStart.Add(time.Hour),
		},
	}
	duids := s.duids
	if len(duids) == 0 {
		duids = []string{"ER01"}
	}
	for i := 0; i < 12; i++ {
		ts := serviceWindowStart.Add(time.Duration(i) * 5 * time.Minute)
		if q.Kind == model.SeriesGeneration {
			for _, duid := range duids {
				table.Records = append(table.Records, model.TimeSeriesRecord{
					SettlementDate: ts,
					DUID:           duid,
					Value:          720,
					Resolution:     model.Resolution5Min,
				})
			}
			continue
		}
		table.Records = append(table.Records, model.TimeSeriesRecord{
			SettlementDate: ts,
			RegionID:       "nsw1",
			Value:          85,
			Resolution:     model.Resolution5Min,
		})
	}
	return table, nil
}

func (s *stubSeries) AvailableWindow(ctx context.Context, kind model.SeriesKind) (model.Window, error) {
	return model.Window{Start: serviceWindowStart, End: serviceWindowStart.Add(24 * time.Hour)}, nil
}

type stubMeta struct{}

func (stubMeta) UnitMetadata(ctx context.Context) (model.MetadataTable, error) {
	return model.MetadataTable{
		"ER01":   {DUID: "ER01", RegionID: "nsw1", FuelType: model.FuelCoal},
		"TORRB1": {DUID: "TORRB1", RegionID: "sa1", FuelType: model.FuelGas},
	}, nil
}

func newService(series *stubSeries) *service.AnalysisService {
	cfg := config.NewConfig()
	return service.NewAnalysisService(
		series,
		stubMeta{},
		cache.New(cache.Options{}),
		&cfg.Gridwatch.Cache,
		inframetrics.NewPrometheusRecorder(),
		inframetrics.NewOpenTelemetryTracer(),
	)
}

func aggregateRequest() service.AggregateRequest {
	return service.AggregateRequest{
		Window:     model.Window{Start: serviceWindowStart, End: serviceWindowStart.Add(time.Hour)},
		Resolution: model.ResolutionAuto,
		Dimensions: []string{model.DimFuelType},
		BucketSize: 30 * time.Minute,
	}
}

func TestAggregateDegradesWhenPricesUnavailable(t *testing.T) {
	svc := newService(&stubSeries{priceUnavailable: true})

	resp, err := svc.Aggregate(context.Background(), aggregateRequest())
	require.NoError(t, err)
	require.NotNil(t, resp.Result)

	// The frame still aggregates; revenue columns just carry nothing.
	// Twelve 5-minute intervals at 720 MW is one hour at 720 MW.
	require.Len(t, resp.Result.Rows, 1)
	assert.InDelta(t, 720.0, resp.Result.Rows[0].SumVolumeMWh, 1e-9)
}

func TestAggregateFailsWhenBothSeriesUnavailable(t *testing.T) {
	svc := newService(&stubSeries{genUnavailable: true, priceUnavailable: true})

	_, err := svc.Aggregate(context.Background(), aggregateRequest())
	require.Error(t, err)
	assert.ErrorIs(t, err, exception.ErrDataUnavailable)
}

func TestAggregateRooftopUnavailableIsTolerated(t *testing.T) {
	svc := newService(&stubSeries{})
	req := aggregateRequest()
	req.IncludeRooftop = true

	resp, err := svc.Aggregate(context.Background(), req)
	require.NoError(t, err)
	assert.NotNil(t, resp.Result)
}

func TestAggregateHonorsRegionScope(t *testing.T) {
	// Generation archives carry no region; scoping must survive the metadata
	// join rather than silently returning every region.
	svc := newService(&stubSeries{duids: []string{"ER01", "TORRB1"}})

	req := aggregateRequest()
	req.Regions = []string{"nsw1"}
	req.Dimensions = []string{model.DimRegionID}

	resp, err := svc.Aggregate(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, resp.Result.Rows, 1)
	assert.Equal(t, []string{"nsw1"}, resp.Result.Rows[0].DimensionValues)
	assert.Equal(t, 12, resp.Result.Rows[0].Count)
}

func TestIdenticalRequestsAreMemoized(t *testing.T) {
	series := &stubSeries{}
	svc := newService(series)

	r1, err := svc.Aggregate(context.Background(), aggregateRequest())
	require.NoError(t, err)
	loadsAfterFirst := atomic.LoadInt64(&series.loads)

	r2, err := svc.Aggregate(context.Background(), aggregateRequest())
	require.NoError(t, err)

	// Second call is served from the cache, adapter untouched
	assert.Equal(t, loadsAfterFirst, atomic.LoadInt64(&series.loads))
	assert.Equal(t, r1.RequestID, r2.RequestID)
}

func TestInvalidateAllForcesRecompute(t *testing.T) {
	series := &stubSeries{}
	svc := newService(series)

	r1, err := svc.Aggregate(context.Background(), aggregateRequest())
	require.NoError(t, err)

	svc.InvalidateAll()
	r2, err := svc.Aggregate(context.Background(), aggregateRequest())
	require.NoError(t, err)
	assert.NotEqual(t, r1.RequestID, r2.RequestID)
}

func TestPricesBandsAndSmoothing(t *testing.T) {
	svc := newService(&stubSeries{})

	resp, err := svc.Prices(context.Background(), service.PricesRequest{
		Window:       model.Window{Start: serviceWindowStart, End: serviceWindowStart.Add(time.Hour)},
		Resolution:   model.ResolutionAuto,
		SmoothMethod: "exponential",
		SmoothWindow: 4,
		BandEdges:    []float64{0, 100, 300},
	})
	require.NoError(t, err)
	assert.Len(t, resp.Records, 12)
	assert.Len(t, resp.Smoothed, 12)
	require.Len(t, resp.Bands, 4)
	// All twelve $85 prices land in [0, 100)
	assert.Equal(t, 12, resp.Bands[1].Counts["nsw1"])
}
