// Package stratify provides a minimal public API for running migrations
// programmatically, for services that migrate their own schema at startup
// instead of shelling out to the CLI.
//
// The exported surface is deliberately small: configuration, the adapter
// handle, and the migrator. Everything else stays internal.
package stratify

import (
	"context"

	"github.com/stratify-db/stratify/internal/adapter"
	"github.com/stratify-db/stratify/internal/config"
	"github.com/stratify-db/stratify/internal/migrate"
	"github.com/stratify-db/stratify/internal/source"
)

// Core types for embedding the migrator.
type (
	Config   = config.Config
	Database = config.Database
	Migrator = migrate.Migrator
	Status   = migrate.Status
	Adapter  = adapter.Adapter
	// Execer is the capability migration operations receive.
	Execer = adapter.Execer
	// Op is one direction of a registered Go migration unit.
	Op = source.Op
	// Registry holds compiled-in Go migration units.
	Registry = source.Registry
)

// NewRegistry returns an empty registry for compiled-in Go units.
func NewRegistry() *Registry {
	return source.NewRegistry()
}

// LoadConfig reads and validates configuration from path, or from
// stratify.yaml discovered upward from the working directory when path is
// empty.
func LoadConfig(path string) (*Config, error) {
	return config.Load(path)
}

// Open connects to the configured backing store and returns a Migrator
// over the configured migrations directory, optionally merged with
// compiled-in registries. The caller owns the returned Adapter and must
// Close it when done.
func Open(ctx context.Context, cfg *Config, registries ...*Registry) (*Migrator, Adapter, error) {
	store, err := cfg.Store()
	if err != nil {
		return nil, nil, err
	}
	a, err := adapter.Open(ctx, adapter.ConnConfig{
		Kind:     store.Type,
		Host:     store.Host,
		Port:     store.Port,
		User:     store.User,
		Password: store.Password,
		Database: store.Name,
	})
	if err != nil {
		return nil, nil, err
	}
	dir, err := source.NewDirSource(cfg.MigrationsDir)
	if err != nil {
		_ = a.Close()
		return nil, nil, err
	}
	src := source.Source(dir)
	if len(registries) > 0 {
		multi := source.Multi{dir}
		for _, r := range registries {
			multi = append(multi, r)
		}
		src = multi
	}
	m, err := migrate.New(a, src, cfg.TableName)
	if err != nil {
		_ = a.Close()
		return nil, nil, err
	}
	return m, a, nil
}
