// Package sqlite implements the lineage storage engine on SQLite: a
// document store with projected scalar columns, a reference table for
// backlink queries, a single-writer transaction manager, and an
// incremental schema migrator. Documents are the source of truth; the
// projected columns exist only for filtering and sorting.
package sqlite

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/rootsmith/lineage/internal/fieldpath"
	"github.com/rootsmith/lineage/internal/undo"
	"github.com/rootsmith/lineage/pkg/types"
)

// Database file names inside the data directory.
const (
	dbFileName   = "lineage.db"
	undoFileName = "undo.db"
)

// Options tunes an Engine beyond its Config.
type Options struct {
	// Logger receives migration progress and partial-failure warnings.
	// Defaults to slog.Default().
	Logger *slog.Logger
}

// Engine implements types.Store on a SQLite database plus a bbolt undo
// log. The schema registry is injected at open; separate engines share no
// state.
type Engine struct {
	mu   sync.RWMutex
	open bool
	db   *sql.DB
	undo *undo.Log
	reg  types.Registry
	log  *slog.Logger

	// writerMu is the single-writer gate. Held from Begin until the
	// transaction commits or aborts; Begin blocks while another
	// transaction is accumulating.
	writerMu sync.Mutex

	paths *fieldpath.Table

	handlerMu sync.RWMutex
	handlers  []types.ChangeHandler
}

var _ types.Store = (*Engine)(nil)

// Open opens (creating if necessary) the database in cfg.DataDir, runs
// the schema migrator against the given registry, and opens the undo log.
func Open(cfg types.Config, reg types.Registry, opts Options) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	dataDir := cfg.DataDir
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data dir: %w", err)
	}

	db, err := sql.Open("sqlite", filepath.Join(dataDir, dbFileName))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrBackendUnavailable, err)
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA busy_timeout = 10000;",
		"PRAGMA synchronous = NORMAL;",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%w: %v", types.ErrBackendUnavailable, err)
		}
	}

	e := &Engine{
		db:    db,
		reg:   reg,
		log:   logger,
		paths: fieldpath.NewTable(),
	}

	if err := e.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating schema: %w", err)
	}

	ulog, err := undo.Open(filepath.Join(dataDir, undoFileName))
	if err != nil {
		db.Close()
		return nil, err
	}
	e.undo = ulog
	e.open = true
	return e, nil
}

// Close releases the database and the undo log. Idempotent.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.open {
		return nil
	}
	e.open = false

	var firstErr error
	if err := e.undo.Close(); err != nil {
		firstErr = fmt.Errorf("closing undo log: %w", err)
	}
	if err := e.db.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("closing database: %w", err)
	}
	return firstErr
}

// checkOpen returns ErrClosed once Close has run.
func (e *Engine) checkOpen() error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if !e.open {
		return types.ErrClosed
	}
	return nil
}

// schema resolves a kind against the registry.
func (e *Engine) schema(kind string) (types.KindSchema, error) {
	ks, ok := e.reg.Schema(kind)
	if !ok {
		return types.KindSchema{}, fmt.Errorf("%w: %q", types.ErrUnknownKind, kind)
	}
	return ks, nil
}

// UndoLog exposes the undo log for the host's undo/redo feature.
func (e *Engine) UndoLog() *undo.Log {
	return e.undo
}

// OnChange subscribes fn to committed-change notifications. Handlers run
// synchronously on the committing goroutine, after the backend COMMIT.
func (e *Engine) OnChange(fn types.ChangeHandler) {
	e.handlerMu.Lock()
	defer e.handlerMu.Unlock()
	e.handlers = append(e.handlers, fn)
}

func (e *Engine) notify(kind string, op types.Operation, handles []string) {
	e.handlerMu.RLock()
	handlers := e.handlers
	e.handlerMu.RUnlock()
	for _, fn := range handlers {
		fn(kind, op, handles)
	}
}
