// Package lineage provides the public entry point for the lineage
// genealogical record store. It exposes the engine constructor while
// keeping the SQLite implementation internal.
//
// Example:
//
//	store, err := lineage.Open(types.Config{
//	    Backend: types.BackendSQLite,
//	    DataDir: ".lineage-db",
//	}, types.DefaultRegistry(), lineage.Options{})
//	if err != nil { ... }
//	defer store.Close()
package lineage

import (
	"log/slog"

	"github.com/rootsmith/lineage/internal/sqlite"
	"github.com/rootsmith/lineage/pkg/types"
)

// Version is the release version of the lineage module.
const Version = "0.3.0"

// Options tunes a store beyond its Config.
type Options struct {
	// Logger receives migration progress and warnings. Defaults to
	// slog.Default().
	Logger *slog.Logger
}

// Open opens (creating if necessary) the store described by cfg, with
// the given schema registry. The registry is a plain value; separate
// stores never share registry state.
func Open(cfg types.Config, reg types.Registry, opts Options) (types.Store, error) {
	return sqlite.Open(cfg, reg, sqlite.Options{Logger: opts.Logger})
}
