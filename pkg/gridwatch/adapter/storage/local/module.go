// Package local provides the Fx module for the local storage adapter.
package local

import (
	"go.uber.org/fx"

	storageAdapter "github.com/tigerroll/gridwatch/pkg/gridwatch/adapter/storage"
)

// Module is the Fx module for the local storage adapter.
var Module = fx.Options(
	fx.Provide(fx.Annotate(
		NewLocalProvider,
		fx.As(new(storageAdapter.StorageProvider)),
		fx.ResultTags(`group:"storage_providers"`),
	)),
)
