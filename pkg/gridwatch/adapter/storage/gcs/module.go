// Package gcs provides the Fx module for the GCS storage adapter.
package gcs

import (
	"go.uber.org/fx"

	storageAdapter "github.com/tigerroll/gridwatch/pkg/gridwatch/adapter/storage"
)

// Module is the Fx module for the GCS storage adapter.
var Module = fx.Options(
	fx.Provide(fx.Annotate(
		NewGCSProvider,
		fx.As(new(storageAdapter.StorageProvider)),
		fx.ResultTags(`group:"storage_providers"`),
	)),
)
