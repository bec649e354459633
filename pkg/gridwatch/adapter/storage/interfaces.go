// Package storage defines the common interfaces for the storage adapters
// that hold the market data files. The parquet series source reads through
// these interfaces so local directories and object stores are interchangeable.
package storage

import (
	"context"
	"io"
)

// StorageConnection represents one named data storage connection.
type StorageConnection interface {
	// Close releases any resources held by the connection.
	Close() error
	// Type returns the provider type (e.g., "local", "gcs").
	Type() string
	// Name returns the configured name of this connection.
	Name() string
	// Download opens the named object for reading. The returned ReadCloser
	// must be closed by the caller.
	Download(ctx context.Context, objectName string) (io.ReadCloser, error)
	// ListObjects calls fn for each object whose name starts with prefix.
	// Returning an error from fn stops the listing.
	ListObjects(ctx context.Context, prefix string, fn func(objectName string) error) error
}

// StorageProvider constructs and caches connections of one provider type.
type StorageProvider interface {
	// GetConnection retrieves the StorageConnection with the specified name,
	// creating it on first use.
	GetConnection(name string) (StorageConnection, error)
	// CloseAll closes all connections managed by this provider.
	CloseAll() error
	// Type returns the provider type handled by this provider.
	Type() string
}
