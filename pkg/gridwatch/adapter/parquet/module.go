// Package parquet provides the Fx module for the parquet series source.
package parquet

import (
	"go.uber.org/fx"

	"github.com/tigerroll/gridwatch/pkg/gridwatch/core/port"
)

// Module provides the parquet SeriesSource as the port.SeriesSource implementation.
var Module = fx.Options(
	fx.Provide(fx.Annotate(
		NewSeriesSource,
		fx.As(new(port.SeriesSource)),
	)),
)
