package server

import (
	"context"

	"go.uber.org/fx"
)

// Module provides the dashboard server and ties it to the application lifecycle.
var Module = fx.Options(
	fx.Provide(NewServer),
	fx.Invoke(func(lc fx.Lifecycle, s *Server) {
		lc.Append(fx.Hook{
			OnStart: func(context.Context) error { return s.Start() },
			OnStop:  func(ctx context.Context) error { return s.Stop(ctx) },
		})
	}),
)
