// Package app assembles the gridwatch application graph.
package app

import (
	"context"
	"embed"
	"io/fs"

	"go.uber.org/fx"

	"github.com/tigerroll/gridwatch/pkg/gridwatch/adapter/metastore"
	"github.com/tigerroll/gridwatch/pkg/gridwatch/adapter/parquet"
	"github.com/tigerroll/gridwatch/pkg/gridwatch/adapter/storage"
	storagegcs "github.com/tigerroll/gridwatch/pkg/gridwatch/adapter/storage/gcs"
	storagelocal "github.com/tigerroll/gridwatch/pkg/gridwatch/adapter/storage/local"
	"github.com/tigerroll/gridwatch/pkg/gridwatch/cache"
	"github.com/tigerroll/gridwatch/pkg/gridwatch/core/application/service"
	"github.com/tigerroll/gridwatch/pkg/gridwatch/core/config"
	inframetrics "github.com/tigerroll/gridwatch/pkg/gridwatch/infrastructure/metrics"
	"github.com/tigerroll/gridwatch/pkg/gridwatch/server"
	"github.com/tigerroll/gridwatch/pkg/gridwatch/support/util/logger"
)

// RunApplication sets up and runs the dashboard application using uber-fx.
// It blocks until the application receives a shutdown signal or appCtx is
// cancelled.
func RunApplication(appCtx context.Context, envFilePath string, embeddedConfig config.EmbeddedConfig, metadataSnapshotCSV []byte, resourcesFS embed.FS) {
	app := fx.New(
		fx.Supply(
			embeddedConfig,
			fx.Annotate(envFilePath, fx.ResultTags(`name:"envFilePath"`)),
			fx.Annotate(metadataSnapshotCSV, fx.ResultTags(`name:"metadataSnapshotCSV"`)),
		),
		fx.Provide(fx.Annotate(
			func() (fs.FS, error) {
				// The embedded tree is rooted at resources/; the metastore reads
				// its migrations from the migrations/ directory below that.
				return fs.Sub(resourcesFS, "resources")
			},
			fx.ResultTags(`name:"metadataMigrationsFS"`),
		)),
		logger.Module,
		config.Module,
		inframetrics.Module,

		storagelocal.Module,
		storagegcs.Module,
		storage.Module,
		parquet.Module,
		metastore.Module,

		cache.Module,
		service.Module,
		server.Module,
	)

	go func() {
		<-appCtx.Done()
		logger.Infof("Application context cancelled; stopping.")
		if err := app.Stop(context.Background()); err != nil {
			logger.Errorf("Failed to stop application: %v", err)
		}
	}()

	app.Run()

	if app.Err() != nil {
		logger.Fatalf("Application run failed: %v", app.Err())
	}
}
