// Package state persists the per-handle marker: the canonical URL of the
// last post successfully delivered for that handle.
//
// Stores do no locking. Two overlapping runs for the same handle can both
// read the old marker and both deliver; callers must serialize runs per
// handle.
package state

import (
	"context"
	"fmt"

	"github.com/use-agent/postwatch/config"
)

// Store holds one marker per handle.
type Store interface {
	// Get returns the marker for handle. A handle that was never written
	// yields found == false and no error.
	Get(ctx context.Context, handle string) (marker string, found bool, err error)

	// Put replaces the marker for handle in a single step; readers see
	// either the old or the new value, never a partial one.
	Put(ctx context.Context, handle, marker string) error

	// Delete removes the marker so the next run behaves like a first run.
	Delete(ctx context.Context, handle string) error

	Close() error
}

// Open returns the store selected by cfg.Backend.
func Open(ctx context.Context, cfg config.StateConfig) (Store, error) {
	switch cfg.Backend {
	case config.StateFile, "":
		return NewFileStore(cfg.Dir), nil
	case config.StateSQLite:
		return OpenSQLite(ctx, cfg.SQLitePath)
	case config.StatePostgres:
		return OpenPostgres(ctx, cfg.PostgresDSN)
	default:
		return nil, fmt.Errorf("state: unknown backend %q", cfg.Backend)
	}
}
