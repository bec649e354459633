// Package gcs provides a Google Cloud Storage implementation of the storage
// adapter interfaces. Historical market data archives are published as
// parquet objects in a public bucket, so anonymous access is supported.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"sync"

	gstorage "cloud.google.com/go/storage"
	"github.com/mitchellh/mapstructure"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	storageAdapter "github.com/tigerroll/gridwatch/pkg/gridwatch/adapter/storage"
	storageConfig "github.com/tigerroll/gridwatch/pkg/gridwatch/adapter/storage/config"
	coreConfig "github.com/tigerroll/gridwatch/pkg/gridwatch/core/config"
	"github.com/tigerroll/gridwatch/pkg/gridwatch/support/util/logger"
)

const (
	// ProviderType defines the type identifier for this GCS storage provider.
	ProviderType = "gcs"
)

// gcsAdapter implements storage.StorageConnection over one GCS bucket.
type gcsAdapter struct {
	cfg    storageConfig.StorageConfig
	name   string
	client *gstorage.Client
}

var _ storageAdapter.StorageConnection = (*gcsAdapter)(nil)

// NewGCSAdapter creates a connection to the configured bucket.
func NewGCSAdapter(ctx context.Context, cfg storageConfig.StorageConfig, name string) (storageAdapter.StorageConnection, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("gcs storage adapter '%s': bucket must be specified in configuration", name)
	}

	var opts []option.ClientOption
	if cfg.Anonymous {
		opts = append(opts, option.WithoutAuthentication())
	}
	client, err := gstorage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gcs storage adapter '%s': failed to create client: %w", name, err)
	}

	return &gcsAdapter{
		cfg:    cfg,
		name:   name,
		client: client,
	}, nil
}

// Close releases the underlying client.
func (a *gcsAdapter) Close() error {
	logger.Debugf("GCS storage adapter '%s' closed.", a.name)
	return a.client.Close()
}

// Type returns the type of the adapter, which is "gcs".
func (a *gcsAdapter) Type() string {
	return ProviderType
}

// Name returns the name of this connection.
func (a *gcsAdapter) Name() string {
	return a.name
}

// Download opens the named object for reading. A missing object is reported
// as fs.ErrNotExist so callers can distinguish data gaps from access failures.
func (a *gcsAdapter) Download(ctx context.Context, objectName string) (io.ReadCloser, error) {
	r, err := a.client.Bucket(a.cfg.Bucket).Object(objectName).NewReader(ctx)
	if err != nil {
		if errors.Is(err, gstorage.ErrObjectNotExist) {
			return nil, fmt.Errorf("gcs storage adapter '%s': object '%s': %w", a.name, objectName, fs.ErrNotExist)
		}
		return nil, fmt.Errorf("gcs storage adapter '%s': failed to open '%s': %w", a.name, objectName, err)
	}
	return r, nil
}

// ListObjects calls fn for each object under prefix in the bucket.
func (a *gcsAdapter) ListObjects(ctx context.Context, prefix string, fn func(objectName string) error) error {
	it := a.client.Bucket(a.cfg.Bucket).Objects(ctx, &gstorage.Query{Prefix: prefix})
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			return nil
		}
		if err != nil {
			return fmt.Errorf("gcs storage adapter '%s': listing failed: %w", a.name, err)
		}
		if err := fn(attrs.Name); err != nil {
			return err
		}
	}
}

// gcsProvider caches gcsAdapter connections by name.
type gcsProvider struct {
	cfg   *coreConfig.Config
	mu    sync.Mutex
	conns map[string]storageAdapter.StorageConnection
}

// NewGCSProvider creates a StorageProvider for GCS bucket connections.
func NewGCSProvider(cfg *coreConfig.Config) storageAdapter.StorageProvider {
	return &gcsProvider{
		cfg:   cfg,
		conns: make(map[string]storageAdapter.StorageConnection),
	}
}

// Type returns the provider type identifier.
func (p *gcsProvider) Type() string {
	return ProviderType
}

// GetConnection returns the named connection, creating it from configuration
// on first use.
func (p *gcsProvider) GetConnection(name string) (storageAdapter.StorageConnection, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if conn, ok := p.conns[name]; ok {
		return conn, nil
	}

	raw, ok := p.cfg.Gridwatch.StorageConfigs[name]
	if !ok {
		return nil, fmt.Errorf("storage connection '%s' is not configured", name)
	}
	var sc storageConfig.StorageConfig
	if err := mapstructure.Decode(raw, &sc); err != nil {
		return nil, fmt.Errorf("failed to decode storage config for '%s': %w", name, err)
	}
	if sc.Type != ProviderType {
		return nil, fmt.Errorf("storage connection '%s' has type '%s', not '%s'", name, sc.Type, ProviderType)
	}

	conn, err := NewGCSAdapter(context.Background(), sc, name)
	if err != nil {
		return nil, err
	}
	p.conns[name] = conn
	return conn, nil
}

// CloseAll closes all cached connections.
func (p *gcsProvider) CloseAll() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for name, conn := range p.conns {
		if err := conn.Close(); err != nil {
			logger.Warnf("Failed to close GCS storage connection '%s': %v", name, err)
		}
	}
	p.conns = make(map[string]storageAdapter.StorageConnection)
	return nil
}
