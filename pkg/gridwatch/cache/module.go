package cache

import (
	"context"
	"time"

	"go.uber.org/fx"

	"github.com/tigerroll/gridwatch/pkg/gridwatch/core/config"
	"github.com/tigerroll/gridwatch/pkg/gridwatch/core/metrics"
	"github.com/tigerroll/gridwatch/pkg/gridwatch/core/port"
)

// NewRegistry builds the cache registry from configuration.
func NewRegistry(cfg *config.CacheConfig, recorder metrics.MetricRecorder) *Registry {
	return New(Options{
		Disabled: cfg.Disabled,
		Recorder: recorder,
		LogStats: cfg.LogStats,
	})
}

// Module provides the cache registry as the port.Cache implementation and
// starts its stats logger with the application lifecycle.
var Module = fx.Options(
	fx.Provide(fx.Annotate(
		NewRegistry,
		fx.As(new(port.Cache)),
	)),
	fx.Invoke(func(lc fx.Lifecycle, c port.Cache) {
		r, ok := c.(*Registry)
		if !ok {
			return
		}
		ctx, cancel := context.WithCancel(context.Background())
		lc.Append(fx.Hook{
			OnStart: func(context.Context) error {
				r.StartStatsLogger(ctx, time.Minute)
				return nil
			},
			OnStop: func(context.Context) error {
				cancel()
				return nil
			},
		})
	}),
)
