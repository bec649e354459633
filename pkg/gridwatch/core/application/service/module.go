package service

import "go.uber.org/fx"

// Module provides the analysis service to Fx.
var Module = fx.Options(
	fx.Provide(NewAnalysisService),
)
