// Package local provides a local file system implementation of the storage
// adapter interfaces.
package local

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/mitchellh/mapstructure"

	storageAdapter "github.com/tigerroll/gridwatch/pkg/gridwatch/adapter/storage"
	storageConfig "github.com/tigerroll/gridwatch/pkg/gridwatch/adapter/storage/config"
	coreConfig "github.com/tigerroll/gridwatch/pkg/gridwatch/core/config"
	"github.com/tigerroll/gridwatch/pkg/gridwatch/support/util/logger"
)

const (
	// ProviderType defines the type identifier for this local storage provider.
	ProviderType = "local"
)

// localAdapter implements storage.StorageConnection over a directory tree.
type localAdapter struct {
	cfg  storageConfig.StorageConfig
	name string
}

// Verify that localAdapter implements the storage.StorageConnection interface.
var _ storageAdapter.StorageConnection = (*localAdapter)(nil)

// NewLocalAdapter creates a new localAdapter instance.
// It validates the BaseDir configuration and attempts to create it if it doesn't exist.
func NewLocalAdapter(cfg storageConfig.StorageConfig, name string) (storageAdapter.StorageConnection, error) {
	if cfg.BaseDir == "" {
		return nil, fmt.Errorf("local storage adapter '%s': base_dir must be specified in configuration", name)
	}
	info, err := os.Stat(cfg.BaseDir)
	if err != nil {
		if os.IsNotExist(err) {
			if err := os.MkdirAll(cfg.BaseDir, 0755); err != nil {
				return nil, fmt.Errorf("local storage adapter '%s': failed to create base_dir '%s': %w", name, cfg.BaseDir, err)
			}
		} else {
			return nil, fmt.Errorf("local storage adapter '%s': failed to stat base_dir '%s': %w", name, cfg.BaseDir, err)
		}
	} else if !info.IsDir() {
		return nil, fmt.Errorf("local storage adapter '%s': base_dir '%s' is not a directory", name, cfg.BaseDir)
	}

	return &localAdapter{
		cfg:  cfg,
		name: name,
	}, nil
}

// Close does nothing for the local file system adapter as it holds no special resources.
func (a *localAdapter) Close() error {
	logger.Debugf("Local storage adapter '%s' closed.", a.name)
	return nil
}

// Type returns the type of the adapter, which is "local".
func (a *localAdapter) Type() string {
	return ProviderType
}

// Name returns the name of this connection.
func (a *localAdapter) Name() string {
	return a.name
}

// Download opens the file at objectName relative to BaseDir.
func (a *localAdapter) Download(ctx context.Context, objectName string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := filepath.Join(a.cfg.BaseDir, filepath.FromSlash(objectName))
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("local storage adapter '%s': failed to open '%s': %w", a.name, objectName, err)
	}
	return f, nil
}

// ListObjects walks BaseDir and calls fn for every regular file whose
// slash-separated relative path starts with prefix.
func (a *localAdapter) ListObjects(ctx context.Context, prefix string, fn func(objectName string) error) error {
	return filepath.WalkDir(a.cfg.BaseDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(a.cfg.BaseDir, path)
		if err != nil {
			return err
		}
		objectName := filepath.ToSlash(rel)
		if !strings.HasPrefix(objectName, prefix) {
			return nil
		}
		return fn(objectName)
	})
}

// localProvider caches localAdapter connections by name.
type localProvider struct {
	cfg   *coreConfig.Config
	mu    sync.Mutex
	conns map[string]storageAdapter.StorageConnection
}

// NewLocalProvider creates a StorageProvider for local directory connections.
func NewLocalProvider(cfg *coreConfig.Config) storageAdapter.StorageProvider {
	return &localProvider{
		cfg:   cfg,
		conns: make(map[string]storageAdapter.StorageConnection),
	}
}

// Type returns the provider type identifier.
func (p *localProvider) Type() string {
	return ProviderType
}

// GetConnection returns the named connection, creating it from configuration
// on first use.
func (p *localProvider) GetConnection(name string) (storageAdapter.StorageConnection, error) {
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

	conn, err := NewLocalAdapter(sc, name)
	if err != nil {
		return nil, err
	}
	p.conns[name] = conn
	return conn, nil
}

// CloseAll closes all cached connections.
func (p *localProvider) CloseAll() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for name, conn := range p.conns {
		if err := conn.Close(); err != nil {
			logger.Warnf("Failed to close local storage connection '%s': %v", name, err)
		}
	}
	p.conns = make(map[string]storageAdapter.StorageConnection)
	return nil
}
