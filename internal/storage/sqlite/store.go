// Package sqlite manages the embedded SQL database backing one working copy:
// connection setup, the statement catalogue, transactions, and the schema
// migration ladder.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	sqlite3 "github.com/ncruces/go-sqlite3"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"github.com/tetratelabs/wazero"
)

// setupWASMCache configures WASM compilation caching so the SQLite module is
// compiled once per machine instead of once per process. Falls back to an
// in-memory cache when the user cache directory is unavailable.
func setupWASMCache() {
	var cache wazero.CompilationCache
	if userCache, err := os.UserCacheDir(); err == nil {
		dir := filepath.Join(userCache, "svnwc", "wasm")
		if c, err := wazero.NewCompilationCacheWithDir(dir); err == nil {
			cache = c
		}
	}
	if cache == nil {
		cache = wazero.NewCompilationCache()
	}
	sqlite3.RuntimeConfig = wazero.NewRuntimeConfig().WithCompilationCache(cache)
}

func init() {
	setupWASMCache()
}

// Store is an open handle on one working copy database.
type Store struct {
	db     *sql.DB
	dbPath string

	mu    sync.Mutex
	stmts map[StmtID]*sql.Stmt

	closed atomic.Bool
}

// OpenOptions control how a database is opened.
type OpenOptions struct {
	// BusyTimeoutMS is the SQLite busy handler timeout. Zero means 30000.
	BusyTimeoutMS int
	// CreateDir creates the parent directory of the database file.
	CreateDir bool
}

// Open opens (or creates) the database at path. The caller is responsible
// for schema verification and migrations; Open only establishes the
// connection and its pragmas.
func Open(ctx context.Context, path string, opts OpenOptions) (*Store, error) {
	busy := opts.BusyTimeoutMS
	if busy == 0 {
		busy = 30000
	}

	// In-memory databases are isolated per connection by default; shared
	// cache plus a single pooled connection makes them behave like a file.
	var connStr string
	isInMemory := path == ":memory:" || strings.Contains(path, "mode=memory")
	if path == ":memory:" {
		connStr = fmt.Sprintf("file:wcdb?mode=memory&cache=shared&_pragma=journal_mode(DELETE)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(%d)&_txlock=immediate", busy)
	} else if strings.HasPrefix(path, "file:") {
		connStr = path
		if !strings.Contains(path, "_pragma=foreign_keys") {
			connStr += fmt.Sprintf("&_pragma=foreign_keys(ON)&_pragma=busy_timeout(%d)&_txlock=immediate", busy)
		}
	} else {
		if opts.CreateDir {
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
		connStr = fmt.Sprintf("file:%s?_pragma=foreign_keys(ON)&_pragma=busy_timeout(%d)&_txlock=immediate", path, busy)
	}

	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if isInMemory {
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	} else {
		// The engine is single-threaded; one writer plus an idle reader
		// is plenty.
		db.SetMaxOpenConns(2)
		db.SetMaxIdleConns(2)
		db.SetConnMaxLifetime(0)
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	absPath := path
	if path != ":memory:" && !strings.HasPrefix(path, "file:") {
		if absPath, err = filepath.Abs(path); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to resolve database path: %w", err)
		}
	}

	return &Store{
		db:     db,
		dbPath: absPath,
		stmts:  make(map[StmtID]*sql.Stmt),
	}, nil
}

// DB exposes the underlying connection pool. Callers must not close it or
// change its pragmas; the Store owns the connection lifecycle.
func (s *Store) DB() *sql.DB { return s.db }

// Path returns the database file path.
func (s *Store) Path() string { return s.dbPath }

// IsClosed reports whether Close has been called.
func (s *Store) IsClosed() bool { return s.closed.Load() }

// Close checkpoints the WAL and closes the connection pool. Prepared
// statements from the catalogue are finalized first.
func (s *Store) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	s.mu.Lock()
	for id, stmt := range s.stmts {
		_ = stmt.Close()
		delete(s.stmts, id)
	}
	s.mu.Unlock()
	// Without the checkpoint, writes may be stranded in the -wal file
	// between CLI invocations.
	_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return s.db.Close()
}

// Prepared returns the cached prepared statement for id, preparing it on
// first use.
func (s *Store) Prepared(ctx context.Context, id StmtID) (*sql.Stmt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if stmt, ok := s.stmts[id]; ok {
		return stmt, nil
	}
	text, ok := statements[id]
	if !ok {
		return nil, fmt.Errorf("no statement registered for id %d", id)
	}
	stmt, err := s.db.PrepareContext(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare statement %d: %w", id, err)
	}
	s.stmts[id] = stmt
	return stmt, nil
}

// SchemaVersion reads the database's schema version from user_version.
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	var version int
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return version, nil
}

// WithTx runs fn inside a write transaction. The transaction is committed
// when fn returns nil and rolled back otherwise.
func (s *Store) WithTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	committed = true
	return nil
}
