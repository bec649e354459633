package main

import (
	"context"
	"embed"
	"os"
	"os/signal"
	"syscall"

	_ "embed"
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"

	"github.com/tigerroll/gridwatch/pkg/gridwatch/app"
	"github.com/tigerroll/gridwatch/pkg/gridwatch/support/util/logger"
)

// embeddedConfig embeds the content of the application's YAML configuration file.
// This file is used to load configuration at application startup.
//
//go:embed resources/application.yaml
var embeddedConfig []byte

// metadataSnapshotCSV embeds the static unit reference table used when the
// query engine is disabled.
//
//go:embed resources/unit_metadata.csv
var metadataSnapshotCSV []byte

// resourcesFS bundles the metadata-store migration scripts into the binary.
//
//go:embed all:resources/migrations
var resourcesFS embed.FS

// main is the entry point of the application. It manages startup, signal
// handling and execution of the Fx container.
func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Signal handling for graceful shutdown (e.g., Ctrl+C)
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		logger.Warnf("Received signal '%v'. Shutting down...", sig)
		cancel()
	}()

	// Get the path to the .env file from environment variables. Use ".env" as default if not set.
	envFilePath := os.Getenv("ENV_FILE_PATH")
	if envFilePath == "" {
		envFilePath = ".env"
	}

	app.RunApplication(ctx, envFilePath, embeddedConfig, metadataSnapshotCSV, resourcesFS)
	os.Exit(0)
}
