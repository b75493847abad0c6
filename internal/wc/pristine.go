package wc

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/wshe1978/subversion/internal/debug"
	"github.com/wshe1978/subversion/internal/storage/sqlite"
	"github.com/wshe1978/subversion/internal/types"
)

// The pristine store holds every historical file text the working copy
// needs, deduplicated under its SHA-1 digest. Files are sharded into
// two-hex-digit subdirectories to bound directory fan-out.

// pristinePath returns the on-disk location for a checksum under root.
func pristinePath(root *wcRoot, checksum types.Checksum) string {
	return adminPath(root.absPath, pristineDirName, checksum.Hex[:2], checksum.Hex)
}

// checkPristineKind rejects digests of the wrong kind before they reach the
// database.
func checkPristineKind(checksum types.Checksum) error {
	if checksum.IsZero() {
		return fmt.Errorf("no checksum given: %w", ErrBadChecksumKind)
	}
	if checksum.Kind != types.ChecksumSHA1 {
		return fmt.Errorf("pristine store is keyed by sha1, got %q: %w", checksum.Kind, ErrBadChecksumKind)
	}
	return nil
}

// PristineTempDir returns the staging directory whose files can be renamed
// into the pristine store atomically, creating it if needed.
func (db *DB) PristineTempDir(ctx context.Context, wriAbsPath string) (string, error) {
	h, _, err := db.parseLocalAbsPath(ctx, wriAbsPath)
	if err != nil {
		return "", err
	}
	dir := adminPath(h.root.absPath, tempDirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating tempdir: %w", err)
	}
	return dir, nil
}

// PristineInstall moves a staged tempfile into the pristine store under its
// checksum and records it. The rename lands before the row insert: a crash
// in between leaves an orphaned file for garbage collection rather than a
// row pointing at nothing.
func (db *DB) PristineInstall(ctx context.Context, tempAbsPath string, checksum, md5 types.Checksum) error {
	if err := checkPristineKind(checksum); err != nil {
		return err
	}
	h, _, err := db.parseLocalAbsPath(ctx, filepath.Dir(tempAbsPath))
	if err != nil {
		return err
	}

	fi, err := os.Stat(tempAbsPath)
	if err != nil {
		return fmt.Errorf("staged pristine file: %w", err)
	}
	size := fi.Size()

	finalPath := pristinePath(h.root, checksum)
	if err := os.MkdirAll(filepath.Dir(finalPath), 0o755); err != nil {
		return fmt.Errorf("creating pristine shard: %w", err)
	}

	// fsync the staged bytes so the rename publishes durable content.
	f, err := os.Open(tempAbsPath)
	if err != nil {
		return fmt.Errorf("staged pristine file: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("syncing staged pristine file: %w", err)
	}
	_ = f.Close()

	if err := os.Rename(tempAbsPath, finalPath); err != nil {
		return fmt.Errorf("installing pristine %s: %w", checksum, err)
	}

	var md5Col sql.NullString
	if !md5.IsZero() {
		md5Col = sql.NullString{String: md5.String(), Valid: true}
	}
	err = h.root.store.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, sqlite.Text(sqlite.StmtInsertPristine),
			checksum.String(), md5Col, size)
		if err != nil {
			return fmt.Errorf("recording pristine %s: %w", checksum, err)
		}
		return nil
	})
	return err
}

// PristineRead opens the stored text for a checksum. The caller owns the
// returned stream. Size is the byte count recorded at install time.
func (db *DB) PristineRead(ctx context.Context, wriAbsPath string, checksum types.Checksum) (io.ReadCloser, int64, error) {
	if err := checkPristineKind(checksum); err != nil {
		return nil, 0, err
	}
	h, _, err := db.parseLocalAbsPath(ctx, wriAbsPath)
	if err != nil {
		return nil, 0, err
	}

	var size, refcount int64
	err = h.root.store.DB().QueryRowContext(ctx, sqlite.Text(sqlite.StmtSelectPristine), checksum.String()).
		Scan(&size, &refcount)
	if err == sql.ErrNoRows {
		return nil, 0, fmt.Errorf("pristine %s: %w", checksum, ErrChecksumUnknown)
	}
	if err != nil {
		return nil, 0, fmt.Errorf("looking up pristine %s: %w", checksum, err)
	}

	f, err := os.Open(pristinePath(h.root, checksum))
	if err != nil {
		// Row present, file missing: surface as-is so the caller can
		// decide whether to trigger a repair.
		return nil, 0, fmt.Errorf("pristine %s: %w", checksum, err)
	}
	return f, size, nil
}

// PristineCheck reports whether a pristine entry exists (row and file).
func (db *DB) PristineCheck(ctx context.Context, wriAbsPath string, checksum types.Checksum) (bool, error) {
	if err := checkPristineKind(checksum); err != nil {
		return false, err
	}
	h, _, err := db.parseLocalAbsPath(ctx, wriAbsPath)
	if err != nil {
		return false, err
	}

	var size, refcount int64
	err = h.root.store.DB().QueryRowContext(ctx, sqlite.Text(sqlite.StmtSelectPristine), checksum.String()).
		Scan(&size, &refcount)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("looking up pristine %s: %w", checksum, err)
	}
	if _, err := os.Stat(pristinePath(h.root, checksum)); err != nil {
		return false, nil
	}
	return true, nil
}

// PristineRepair would re-fetch a text whose row exists but whose file is
// missing. Fetching is owned by the network layer, so this revision only
// verifies and reports.
func (db *DB) PristineRepair(ctx context.Context, wriAbsPath string, checksum types.Checksum) error {
	ok, err := db.PristineCheck(ctx, wriAbsPath, checksum)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	return fmt.Errorf("pristine_repair of %s: %w", checksum, ErrNotImplemented)
}

// PristineCleanup removes unreferenced pristine rows and their files. Files
// that have no row (left by a crash between rename and row insert) are not
// removed.
func (db *DB) PristineCleanup(ctx context.Context, wriAbsPath string) error {
	h, _, err := db.parseLocalAbsPath(ctx, wriAbsPath)
	if err != nil {
		return err
	}

	var victims []string
	err = h.root.store.WithTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, sqlite.Text(sqlite.StmtSelectUnreferencedPristines))
		if err != nil {
			return fmt.Errorf("listing unreferenced pristines: %w", err)
		}
		defer rows.Close()
		for rows.Next() {
			var checksum string
			if err := rows.Scan(&checksum); err != nil {
				return err
			}
			victims = append(victims, checksum)
		}
		if err := rows.Err(); err != nil {
			return err
		}
		for _, checksum := range victims {
			if _, err := tx.ExecContext(ctx, sqlite.Text(sqlite.StmtDeletePristine), checksum); err != nil {
				return fmt.Errorf("dropping pristine row %s: %w", checksum, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, raw := range victims {
		checksum, err := types.ParseChecksum(raw)
		if err != nil {
			continue
		}
		if err := os.Remove(pristinePath(h.root, checksum)); err != nil && !os.IsNotExist(err) {
			debug.Logf("wc: could not remove pristine file %s: %v\n", raw, err)
		}
	}
	return nil
}
