package wc

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/wshe1978/subversion/internal/debug"
	"github.com/wshe1978/subversion/internal/storage/sqlite"
)

// parseLocalAbsPath maps an absolute filesystem path to the directory handle
// owning it and the path relative to that handle's wcroot. The climb is
// staged: probe the filesystem, walk up until a database (or a cached
// ancestor) is found, then back-fill cache entries for every directory
// passed on the way.
func (db *DB) parseLocalAbsPath(ctx context.Context, localAbsPath string) (*dirHandle, string, error) {
	if !filepath.IsAbs(localAbsPath) {
		return nil, "", fmt.Errorf("path %q is not absolute: %w", localAbsPath, ErrNotWorkingCopy)
	}
	localAbsPath = filepath.Clean(localAbsPath)

	// Fast path: the directory itself is already resolved.
	if h, ok := db.dirCache[localAbsPath]; ok {
		rel, err := rootRelPath(h.root, localAbsPath)
		if err != nil {
			return nil, "", err
		}
		return h, rel, nil
	}

	// If the path is not a directory on disk (a file, a symlink, or not
	// present at all), resolution happens at its parent.
	dirAbsPath := localAbsPath
	if fi, err := os.Lstat(localAbsPath); err != nil || !fi.IsDir() {
		dirAbsPath = filepath.Dir(localAbsPath)
		if h, ok := db.dirCache[dirAbsPath]; ok {
			rel, err := rootRelPath(h.root, localAbsPath)
			if err != nil {
				return nil, "", err
			}
			return h, rel, nil
		}
	}

	// Climb toward the filesystem root looking for an administrative
	// database or an already-resolved ancestor.
	var climbed []string
	probe := dirAbsPath
	var root *wcRoot
	for {
		if h, ok := db.dirCache[probe]; ok {
			root = h.root
			break
		}

		found, err := db.probeDir(ctx, probe)
		if err != nil {
			return nil, "", err
		}
		if found != nil {
			root = found
			break
		}

		parent := filepath.Dir(probe)
		if parent == probe {
			return nil, "", fmt.Errorf("%q: %w", localAbsPath, ErrNotWorkingCopy)
		}
		climbed = append(climbed, probe)
		probe = parent
	}

	// Populate handles for every directory between the discovery point and
	// the original target, all sharing the found wcroot.
	for _, dir := range climbed {
		db.cacheHandle(dir, root)
	}
	h := db.cacheHandle(dirAbsPath, root)

	rel, err := rootRelPath(root, localAbsPath)
	if err != nil {
		return nil, "", err
	}
	return h, rel, nil
}

// probeDir checks one candidate directory for an administrative area.
// Returns (nil, nil) when the climb should continue upward.
func (db *DB) probeDir(ctx context.Context, dirAbsPath string) (*wcRoot, error) {
	if root, ok := db.wcRoots[dirAbsPath]; ok {
		return root, nil
	}

	if _, err := os.Stat(dbPath(dirAbsPath)); err == nil {
		return db.openWCRoot(ctx, dirAbsPath)
	}

	// No database. A per-directory "entries" working copy is recognized so
	// the error names the real problem instead of "not a working copy".
	if hasLegacyMarkers(dirAbsPath) {
		return nil, fmt.Errorf("%q is in an old working copy format that must be upgraded: %w",
			dirAbsPath, ErrUnsupportedFormat)
	}
	return nil, nil
}

// hasLegacyMarkers reports whether the admin dir carries the pre-upgrade
// per-directory format files.
func hasLegacyMarkers(dirAbsPath string) bool {
	if _, err := os.Stat(adminPath(dirAbsPath, legacyEntriesName)); err == nil {
		return true
	}
	if _, err := os.Stat(adminPath(dirAbsPath, legacyFormatName)); err == nil {
		return true
	}
	return false
}

func (db *DB) cacheHandle(dirAbsPath string, root *wcRoot) *dirHandle {
	if h, ok := db.dirCache[dirAbsPath]; ok {
		return h
	}
	h := &dirHandle{absPath: dirAbsPath, root: root}
	if parent, ok := db.dirCache[filepath.Dir(dirAbsPath)]; ok && parent != h {
		h.parent = parent
	}
	db.dirCache[dirAbsPath] = h
	return h
}

// rootRelPath computes the path of localAbsPath relative to the wcroot.
// The root itself maps to "".
func rootRelPath(root *wcRoot, localAbsPath string) (string, error) {
	rel, err := filepath.Rel(root.absPath, localAbsPath)
	if err != nil {
		return "", fmt.Errorf("%q is not under wcroot %q: %w", localAbsPath, root.absPath, ErrNotWorkingCopy)
	}
	if rel == "." {
		return "", nil
	}
	return filepath.ToSlash(rel), nil
}

// openWCRoot opens the database at dirAbsPath and verifies it is usable:
// version window, optional auto-upgrade, optional empty-work-queue check.
func (db *DB) openWCRoot(ctx context.Context, dirAbsPath string) (*wcRoot, error) {
	store, err := sqlite.Open(ctx, dbPath(dirAbsPath), sqlite.OpenOptions{
		BusyTimeoutMS: db.opts.BusyTimeoutMS,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDBError, err)
	}

	root, err := db.finishOpen(ctx, store, dirAbsPath)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return root, nil
}

// finishOpen runs the post-connection checks and registers the wcroot.
func (db *DB) finishOpen(ctx context.Context, store *sqlite.Store, dirAbsPath string) (*wcRoot, error) {
	version, err := store.SchemaVersion(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDBError, err)
	}

	switch {
	case version < sqlite.MinimumVersion:
		return nil, fmt.Errorf("working copy format %d of %q is too old to be recognized: %w",
			version, dirAbsPath, ErrUnsupportedFormat)
	case version > sqlite.CurrentVersion:
		return nil, fmt.Errorf("working copy format %d of %q is newer than this client supports (max %d): %w",
			version, dirAbsPath, sqlite.CurrentVersion, ErrUnsupportedFormat)
	case version < sqlite.CurrentVersion && version < 12:
		return nil, fmt.Errorf("working copy format %d of %q requires a one-time upgrade by an older client: %w",
			version, dirAbsPath, ErrUnsupportedFormat)
	case version < sqlite.CurrentVersion && !db.opts.AutoUpgrade:
		return nil, fmt.Errorf("working copy format %d of %q needs upgrading to %d: %w",
			version, dirAbsPath, sqlite.CurrentVersion, ErrUnsupportedFormat)
	case version < sqlite.CurrentVersion:
		debug.Logf("wc: upgrading %s from format %d to %d\n", dirAbsPath, version, sqlite.CurrentVersion)
		if err := store.RunMigrations(ctx); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDBError, err)
		}
	}

	var wcID int64
	err = store.DB().QueryRowContext(ctx, sqlite.Text(sqlite.StmtSelectWCRoot), nil).Scan(&wcID)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("database of %q has no wcroot row: %w", dirAbsPath, ErrCorrupt)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDBError, err)
	}

	if db.opts.EnforceEmptyWQ {
		var pending int
		if err := store.DB().QueryRowContext(ctx, sqlite.Text(sqlite.StmtCountWorkItems)).Scan(&pending); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrDBError, err)
		}
		if pending > 0 {
			return nil, fmt.Errorf("%d pending work items in %q: %w", pending, dirAbsPath, ErrCleanupRequired)
		}
	}

	root := &wcRoot{
		absPath: dirAbsPath,
		id:      wcID,
		format:  sqlite.CurrentVersion,
		store:   store,
	}
	db.wcRoots[dirAbsPath] = root
	db.cacheHandle(dirAbsPath, root)
	return root, nil
}
