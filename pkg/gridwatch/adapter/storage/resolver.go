package storage

import (
	"fmt"

	"github.com/mitchellh/mapstructure"

	storageConfig "github.com/tigerroll/gridwatch/pkg/gridwatch/adapter/storage/config"
)

// NamedConfigs is the raw `gridwatch.storage` map from the application
// configuration, keyed by connection name.
type NamedConfigs map[string]interface{}

// ConnectionResolver resolves a connection name to a StorageConnection by
// looking up the configured provider type and delegating to the matching
// provider. Providers register through the `group:"storage_providers"` Fx
// group.
type ConnectionResolver struct {
	providers map[string]StorageProvider
	configs   NamedConfigs
}

// NewConnectionResolver builds a resolver over the collected providers.
func NewConnectionResolver(providers []StorageProvider, configs NamedConfigs) *ConnectionResolver {
	byType := make(map[string]StorageProvider, len(providers))
	for _, p := range providers {
		byType[p.Type()] = p
	}
	return &ConnectionResolver{providers: byType, configs: configs}
}

// Resolve returns the StorageConnection for the given configured name.
func (r *ConnectionResolver) Resolve(name string) (StorageConnection, error) {
	raw, ok := r.configs[name]
	if !ok {
		return nil, fmt.Errorf("storage connection '%s' is not configured", name)
	}
	var sc storageConfig.StorageConfig
	if err := mapstructure.Decode(raw, &sc); err != nil {
		return nil, fmt.Errorf("failed to decode storage config for '%s': %w", name, err)
	}
	provider, ok := r.providers[sc.Type]
	if !ok {
		return nil, fmt.Errorf("no storage provider registered for type '%s' (connection '%s')", sc.Type, name)
	}
	return provider.GetConnection(name)
}

// CloseAll closes every provider's connections.
func (r *ConnectionResolver) CloseAll() error {
	var firstErr error
	for _, p := range r.providers {
		if err := p.CloseAll(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
