// Package server exposes the analysis pipeline as the dashboard HTTP API,
// with background prefetching of the default dashboard views.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tigerroll/gridwatch/pkg/gridwatch/core/application/service"
	"github.com/tigerroll/gridwatch/pkg/gridwatch/core/config"
	model "github.com/tigerroll/gridwatch/pkg/gridwatch/core/domain/model"
	"github.com/tigerroll/gridwatch/pkg/gridwatch/core/port"
	inframetrics "github.com/tigerroll/gridwatch/pkg/gridwatch/infrastructure/metrics"
	"github.com/tigerroll/gridwatch/pkg/gridwatch/motor"
	logger "github.com/tigerroll/gridwatch/pkg/gridwatch/support/util/logger"
)

const moduleName = "server"

// Server is the dashboard HTTP server.
type Server struct {
	svc     *service.AnalysisService
	series  port.SeriesSource
	slots   *PrefetchSlots
	cfg     *config.ServerConfig
	router  *mux.Router
	httpSrv *http.Server
	started time.Time
	// marketTZ is the configured market timezone, used to convert
	// offset-carrying request timestamps to naive market time.
	marketTZ *time.Location
	// baseCtx outlives any single request; background prefetches run on it.
	baseCtx context.Context
	cancel  context.CancelFunc
}

// NewServer builds the router and registers the default dashboard slots.
func NewServer(
	cfg *config.Config,
	svc *service.AnalysisService,
	series port.SeriesSource,
	recorder *inframetrics.PrometheusRecorder,
) *Server {
	baseCtx, cancel := context.WithCancel(context.Background())
	marketTZ, err := time.LoadLocation(cfg.Gridwatch.System.Timezone)
	if err != nil {
		logger.Warnf("Unknown timezone '%s'; falling back to UTC.", cfg.Gridwatch.System.Timezone)
		marketTZ = time.UTC
	}
	s := &Server{
		svc:    svc,
		series: series,
		slots: NewPrefetchSlots(
			cfg.Gridwatch.Features.UseSafeMode,
			cfg.Gridwatch.Features.LazyViews,
		),
		cfg:      &cfg.Gridwatch.Server,
		router:   mux.NewRouter(),
		started:  time.Now(),
		marketTZ: marketTZ,
		baseCtx:  baseCtx,
		cancel:   cancel,
	}

	s.registerDefaultSlots()

	s.router.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)
	s.router.Handle("/metrics", promhttp.HandlerFor(recorder.GetRegistry(), promhttp.HandlerOpts{})).Methods(http.MethodGet)

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/aggregate", s.handleAggregate).Methods(http.MethodGet)
	api.HandleFunc("/penetration", s.handlePenetration).Methods(http.MethodGet)
	api.HandleFunc("/prices", s.handlePrices).Methods(http.MethodGet)
	api.HandleFunc("/dashboard/{view}", s.handleDashboard).Methods(http.MethodGet)
	api.HandleFunc("/cache/clear", s.handleCacheClear).Methods(http.MethodPost)

	s.router.Use(loggingMiddleware)

	return s
}

// muxVar reads one path variable.
func muxVar(r *http.Request, name string) string {
	return mux.Vars(r)[name]
}

// loggingMiddleware logs each request with its duration.
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		logger.Debugf("HTTP %s %s completed in %v.", r.Method, r.URL.Path, time.Since(start))
	})
}

// registerDefaultSlots wires the dashboard's standing views. Each slot
// computes over the most recent day of available data at refresh time, so a
// republished archive moves the window forward on the next refresh.
func (s *Server) registerDefaultSlots() {
	s.slots.Register("overview", func(ctx context.Context) (interface{}, error) {
		window, err := s.recentWindow(ctx, 24*time.Hour)
		if err != nil {
			return nil, err
		}
		return s.svc.Aggregate(ctx, service.AggregateRequest{
			Window:         window,
			Resolution:     model.ResolutionAuto,
			Dimensions:     []string{model.DimFuelType},
			BucketSize:     30 * time.Minute,
			IncludeRooftop: true,
		})
	})
	s.slots.Register("penetration", func(ctx context.Context) (interface{}, error) {
		window, err := s.recentWindow(ctx, 24*time.Hour)
		if err != nil {
			return nil, err
		}
		return s.svc.Penetration(ctx, service.PenetrationRequest{
			Window:         window,
			Resolution:     model.ResolutionAuto,
			BucketSize:     30 * time.Minute,
			IncludeRooftop: true,
		})
	})
	s.slots.Register("prices", func(ctx context.Context) (interface{}, error) {
		window, err := s.recentWindow(ctx, 24*time.Hour)
		if err != nil {
			return nil, err
		}
		return s.svc.Prices(ctx, service.PricesRequest{
			Window:       window,
			Resolution:   model.ResolutionAuto,
			SmoothMethod: motor.SmoothExponential,
			SmoothWindow: 12,
		})
	})
}

// recentWindow returns the trailing span of the generation archive.
func (s *Server) recentWindow(ctx context.Context, span time.Duration) (model.Window, error) {
	available, err := s.series.AvailableWindow(ctx, model.SeriesGeneration)
	if err != nil {
		return model.Window{}, err
	}
	start := available.End.Add(-span)
	if start.Before(available.Start) {
		start = available.Start
	}
	return model.NewWindow(start, available.End)
}

// Handler exposes the router, for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start begins listening and kicks off the initial slot prefetches.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	s.httpSrv = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.slots.Start(s.baseCtx)

	logger.Infof("Dashboard server listening on %s.", addr)
	go func() {
		if err := s.httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Errorf("HTTP server terminated: %v", err)
		}
	}()
	return nil
}

// Stop shuts the server down gracefully within the configured timeout.
func (s *Server) Stop(ctx context.Context) error {
	s.cancel()
	if s.httpSrv == nil {
		return nil
	}
	timeout := time.Duration(s.cfg.ShutdownTimeoutSeconds) * time.Second
	shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	logger.Infof("Shutting down dashboard server (timeout %v).", timeout)
	return s.httpSrv.Shutdown(shutdownCtx)
}
