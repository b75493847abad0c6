package wc

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/wshe1978/subversion/internal/debug"
	"github.com/wshe1978/subversion/internal/storage/sqlite"
)

// Options configure an engine instance at open time. The engine reads no
// environment itself; everything arrives here.
type Options struct {
	// AutoUpgrade permits forward schema migration on open. Without it a
	// database below the current version fails with ErrUnsupportedFormat.
	AutoUpgrade bool

	// EnforceEmptyWQ makes opening a wcroot with pending work-queue items
	// fail with ErrCleanupRequired.
	EnforceEmptyWQ bool

	// BusyTimeoutMS is passed through to the SQL engine. Zero means the
	// store default.
	BusyTimeoutMS int
}

// DB is one engine instance. It is not safe for concurrent use across
// goroutines; callers that need parallelism open separate instances.
// Inter-process concurrency is mediated by SQLite's file locking plus the
// wc_lock table.
type DB struct {
	opts Options

	// wcRoots maps root absolute path to its open database handle.
	wcRoots map[string]*wcRoot

	// dirCache maps directory absolute paths to their handles. Entries are
	// never evicted within a session.
	dirCache map[string]*dirHandle
}

// wcRoot owns the database handle for one working copy root.
type wcRoot struct {
	absPath string
	id      int64
	format  int
	store   *sqlite.Store
}

// dirHandle is the cached resolution of one directory: which wcroot owns it.
// Handles form a graph with parent back-pointers toward the root.
type dirHandle struct {
	absPath string
	root    *wcRoot
	parent  *dirHandle

	// locked mirrors whether this engine instance holds a wc_lock row for
	// the directory.
	locked bool
}

// Open creates an engine instance. No databases are opened until a path is
// first resolved.
func Open(opts Options) *DB {
	return &DB{
		opts:     opts,
		wcRoots:  make(map[string]*wcRoot),
		dirCache: make(map[string]*dirHandle),
	}
}

// Close releases every open wcroot database. The engine must not be used
// afterwards.
func (db *DB) Close() error {
	var firstErr error
	for path, root := range db.wcRoots {
		if err := root.store.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing wcroot %s: %w", path, err)
		}
		delete(db.wcRoots, path)
	}
	db.dirCache = make(map[string]*dirHandle)
	return firstErr
}

// GetWCRoot returns the working copy root that owns localAbsPath.
func (db *DB) GetWCRoot(ctx context.Context, localAbsPath string) (string, error) {
	h, _, err := db.parseLocalAbsPath(ctx, localAbsPath)
	if err != nil {
		return "", err
	}
	return h.root.absPath, nil
}

// IsWCRoot reports whether localAbsPath is itself a working copy root.
func (db *DB) IsWCRoot(ctx context.Context, localAbsPath string) (bool, error) {
	_, relpath, err := db.parseLocalAbsPath(ctx, localAbsPath)
	if err != nil {
		return false, err
	}
	return relpath == "", nil
}

// navigateToParent returns the handle for the parent directory of h,
// resolving it if it is not already cached.
func (db *DB) navigateToParent(ctx context.Context, h *dirHandle) (*dirHandle, error) {
	if h.parent != nil {
		return h.parent, nil
	}
	parentAbs := filepath.Dir(h.absPath)
	if parentAbs == h.absPath {
		return nil, fmt.Errorf("%s has no parent: %w", h.absPath, ErrNotWorkingCopy)
	}
	parent, _, err := db.parseLocalAbsPath(ctx, parentAbs)
	if err != nil {
		return nil, err
	}
	h.parent = parent
	return parent, nil
}

// flushEntries invalidates any caches attached to the directory handle after
// a successful write transaction. Legacy callers keep a snapshot cache
// outside the engine; all we track here is the handle itself.
func (db *DB) flushEntries(h *dirHandle) {
	debug.Logf("wc: flushed cached state for %s\n", h.absPath)
}
