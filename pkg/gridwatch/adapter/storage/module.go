// Package storage provides the Fx wiring for the storage connection resolver.
package storage

import (
	"go.uber.org/fx"

	coreConfig "github.com/tigerroll/gridwatch/pkg/gridwatch/core/config"
)

// ResolverParams collects every registered storage provider.
type ResolverParams struct {
	fx.In
	Providers []StorageProvider `group:"storage_providers"`
	Cfg       *coreConfig.Config
}

// NewResolver builds the ConnectionResolver from the provider group and the
// named storage configurations.
func NewResolver(p ResolverParams) *ConnectionResolver {
	return NewConnectionResolver(p.Providers, NamedConfigs(p.Cfg.Gridwatch.StorageConfigs))
}

// Module provides the ConnectionResolver to Fx.
var Module = fx.Options(
	fx.Provide(NewResolver),
)
