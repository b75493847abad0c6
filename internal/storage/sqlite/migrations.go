package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

// A migration lifts a database from version-1 to version. Each one must be
// idempotent: column probes guard the ALTERs so a crashed run can be
// replayed.
type migration struct {
	version int
	name    string
	fn      func(db *sql.DB) error
}

var migrationsList = []migration{
	{13, "node_moves", migrateNodeMoves},
	{14, "pristine_refcount", migratePristineRefcount},
	{15, "dav_cache", migrateDAVCache},
}

// CreateSchema initializes an empty database with the baseline DDL and runs
// the full ladder, leaving it at CurrentVersion.
func (s *Store) CreateSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", baselineVersion)); err != nil {
		return fmt.Errorf("failed to stamp schema version: %w", err)
	}
	return s.RunMigrations(ctx)
}

// RunMigrations applies every migration above the on-disk version, in order,
// under an exclusive lock so concurrent openers cannot race on
// check-then-alter operations. The caller has already verified the version
// window; a database at CurrentVersion is a no-op.
func (s *Store) RunMigrations(ctx context.Context) error {
	version, err := s.SchemaVersion(ctx)
	if err != nil {
		return err
	}
	if version >= CurrentVersion {
		return nil
	}

	if _, err := s.db.ExecContext(ctx, "BEGIN EXCLUSIVE"); err != nil {
		return fmt.Errorf("failed to acquire exclusive lock for migrations: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_, _ = s.db.Exec("ROLLBACK")
		}
	}()

	// Re-read under the lock: another process may have migrated between
	// our check and the BEGIN EXCLUSIVE.
	if err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("failed to re-read schema version: %w", err)
	}

	for _, m := range migrationsList {
		if m.version <= version {
			continue
		}
		if err := m.fn(s.db); err != nil {
			return fmt.Errorf("migration %s (format %d) failed: %w", m.name, m.version, err)
		}
		if _, err := s.db.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", m.version)); err != nil {
			return fmt.Errorf("failed to stamp format %d: %w", m.version, err)
		}
	}

	if _, err := s.db.Exec("COMMIT"); err != nil {
		return fmt.Errorf("failed to commit migrations: %w", err)
	}
	committed = true
	return nil
}

// hasColumn probes pragma_table_info for a column's existence.
func hasColumn(db *sql.DB, table, column string) (bool, error) {
	var name string
	err := db.QueryRow(fmt.Sprintf(`
		SELECT name FROM pragma_table_info('%s') WHERE name = ?`, table), column).Scan(&name)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to probe %s.%s: %w", table, column, err)
	}
	return true, nil
}

// Format 13: record move tracking. base_node.moved_to names where a
// locally moved BASE subtree went; working_node.moved_here distinguishes a
// moved-here copy from a plain copy.
func migrateNodeMoves(db *sql.DB) error {
	ok, err := hasColumn(db, "base_node", "moved_to")
	if err != nil {
		return err
	}
	if !ok {
		if _, err := db.Exec(`ALTER TABLE base_node ADD COLUMN moved_to TEXT`); err != nil {
			return fmt.Errorf("failed to add base_node.moved_to: %w", err)
		}
	}
	ok, err = hasColumn(db, "working_node", "moved_here")
	if err != nil {
		return err
	}
	if !ok {
		if _, err := db.Exec(`ALTER TABLE working_node ADD COLUMN moved_here INTEGER NOT NULL DEFAULT 0`); err != nil {
			return fmt.Errorf("failed to add working_node.moved_here: %w", err)
		}
	}
	return nil
}

// Format 14: pristine reference counting, plus the changelist index the
// changelist filters rely on.
func migratePristineRefcount(db *sql.DB) error {
	ok, err := hasColumn(db, "pristine", "refcount")
	if err != nil {
		return err
	}
	if !ok {
		if _, err := db.Exec(`ALTER TABLE pristine ADD COLUMN refcount INTEGER NOT NULL DEFAULT 0`); err != nil {
			return fmt.Errorf("failed to add pristine.refcount: %w", err)
		}
		// Every checksum referenced by a node row counts as one reference.
		if _, err := db.Exec(`
			UPDATE pristine SET refcount =
			    (SELECT COUNT(*) FROM base_node WHERE base_node.checksum = pristine.checksum)
			  + (SELECT COUNT(*) FROM working_node WHERE working_node.checksum = pristine.checksum)`); err != nil {
			return fmt.Errorf("failed to backfill pristine refcounts: %w", err)
		}
	}
	if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS i_actual_changelist ON actual_node (wc_id, changelist)`); err != nil {
		return fmt.Errorf("failed to create changelist index: %w", err)
	}
	return nil
}

// Format 15: per-node DAV property cache for the remote-access layer.
func migrateDAVCache(db *sql.DB) error {
	ok, err := hasColumn(db, "base_node", "dav_cache")
	if err != nil {
		return err
	}
	if !ok {
		if _, err := db.Exec(`ALTER TABLE base_node ADD COLUMN dav_cache BLOB`); err != nil {
			return fmt.Errorf("failed to add base_node.dav_cache: %w", err)
		}
	}
	return nil
}
