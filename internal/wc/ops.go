package wc

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/wshe1978/subversion/internal/skel"
	"github.com/wshe1978/subversion/internal/storage/sqlite"
)

// upsertActualColumn applies an UPDATE statement of shape
// "SET <col> = ? WHERE wc_id = ? AND local_relpath = ?", creating the ACTUAL
// row first when it does not exist yet.
func upsertActualColumn(ctx context.Context, tx *sql.Tx, wcID int64, relpath string,
	update sqlite.StmtID, value interface{}) error {

	res, err := tx.ExecContext(ctx, sqlite.Text(update), value, wcID, relpath)
	if err != nil {
		return fmt.Errorf("updating actual node %q: %w", relpath, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	if _, err := tx.ExecContext(ctx, sqlite.Text(sqlite.StmtInsertActualEmpty),
		wcID, relpath, parentRelPathOf(relpath)); err != nil {
		return fmt.Errorf("creating actual node %q: %w", relpath, err)
	}
	if _, err := tx.ExecContext(ctx, sqlite.Text(update), value, wcID, relpath); err != nil {
		return fmt.Errorf("updating actual node %q: %w", relpath, err)
	}
	return nil
}

// maybePruneActual deletes the ACTUAL row when every tracked field has
// become null.
func maybePruneActual(ctx context.Context, tx *sql.Tx, wcID int64, relpath string) error {
	a, err := fetchActual(ctx, tx, wcID, relpath)
	if err != nil {
		return err
	}
	if a == nil || !a.isTrivial() {
		return nil
	}
	if _, err := tx.ExecContext(ctx, sqlite.Text(sqlite.StmtDeleteActualNode), wcID, relpath); err != nil {
		return fmt.Errorf("pruning actual node %q: %w", relpath, err)
	}
	return nil
}

// requireNodeExists verifies a BASE or WORKING row backs the path, so that
// ACTUAL rows are never created for unversioned paths.
func requireNodeExists(ctx context.Context, q querier, wcID int64, relpath, localAbsPath string) error {
	b, err := fetchBase(ctx, q, wcID, relpath)
	if err != nil {
		return err
	}
	if b != nil {
		return nil
	}
	w, err := fetchWorking(ctx, q, wcID, relpath)
	if err != nil {
		return err
	}
	if w == nil {
		return fmt.Errorf("%q: %w", localAbsPath, ErrPathNotFound)
	}
	return nil
}

// OpSetProps replaces the ACTUAL (locally modified) properties of a node.
// Passing nil clears the override so reads fall back to the pristine
// properties; the row survives while any other ACTUAL field is live.
func (db *DB) OpSetProps(ctx context.Context, localAbsPath string, props map[string]string) error {
	h, relpath, err := db.parseLocalAbsPath(ctx, localAbsPath)
	if err != nil {
		return err
	}
	err = h.root.store.WithTx(ctx, func(tx *sql.Tx) error {
		if err := requireNodeExists(ctx, tx, h.root.id, relpath, localAbsPath); err != nil {
			return err
		}
		var blob []byte
		if props != nil {
			blob = skel.UnparseProps(props)
		}
		if err := upsertActualColumn(ctx, tx, h.root.id, relpath, sqlite.StmtUpdateActualProps, blob); err != nil {
			return err
		}
		if props == nil {
			return maybePruneActual(ctx, tx, h.root.id, relpath)
		}
		return nil
	})
	if err != nil {
		return err
	}
	db.flushEntries(h)
	return nil
}

// OpSetChangelist assigns a node to a changelist, or removes it with an
// empty name. A row left with nothing but nulls is reclaimed.
func (db *DB) OpSetChangelist(ctx context.Context, localAbsPath, changelist string) error {
	h, relpath, err := db.parseLocalAbsPath(ctx, localAbsPath)
	if err != nil {
		return err
	}
	err = h.root.store.WithTx(ctx, func(tx *sql.Tx) error {
		if err := requireNodeExists(ctx, tx, h.root.id, relpath, localAbsPath); err != nil {
			return err
		}
		if err := upsertActualColumn(ctx, tx, h.root.id, relpath,
			sqlite.StmtUpdateActualChangelist, nullString(changelist)); err != nil {
			return err
		}
		if changelist == "" {
			return maybePruneActual(ctx, tx, h.root.id, relpath)
		}
		return nil
	})
	if err != nil {
		return err
	}
	db.flushEntries(h)
	return nil
}

// OpMarkResolved clears conflict state on a node. Text and property
// conflicts are cleared by separate statements; a crash between them leaves
// a valid, partially-resolved state and a rerun converges.
func (db *DB) OpMarkResolved(ctx context.Context, localAbsPath string, resolvedText, resolvedProps, resolvedTree bool) error {
	h, relpath, err := db.parseLocalAbsPath(ctx, localAbsPath)
	if err != nil {
		return err
	}

	if resolvedText {
		err := h.root.store.WithTx(ctx, func(tx *sql.Tx) error {
			_, err := tx.ExecContext(ctx, sqlite.Text(sqlite.StmtClearActualTextConflicts), h.root.id, relpath)
			return err
		})
		if err != nil {
			return fmt.Errorf("resolving text conflict on %q: %w", localAbsPath, err)
		}
	}
	if resolvedProps {
		err := h.root.store.WithTx(ctx, func(tx *sql.Tx) error {
			_, err := tx.ExecContext(ctx, sqlite.Text(sqlite.StmtClearActualPropConflicts), h.root.id, relpath)
			return err
		})
		if err != nil {
			return fmt.Errorf("resolving property conflict on %q: %w", localAbsPath, err)
		}
	}
	if resolvedTree {
		if err := db.OpSetTreeConflict(ctx, localAbsPath, nil); err != nil {
			return err
		}
	}

	err = h.root.store.WithTx(ctx, func(tx *sql.Tx) error {
		return maybePruneActual(ctx, tx, h.root.id, relpath)
	})
	if err != nil {
		return err
	}
	db.flushEntries(h)
	return nil
}

// Operations reserved by this engine revision. They fail fast with a
// distinguished error instead of guessing at semantics.

// OpCopy is reserved.
func (db *DB) OpCopy(ctx context.Context, srcAbsPath, dstAbsPath string) error {
	return fmt.Errorf("op_copy: %w", ErrNotImplemented)
}

// OpAddDirectory is reserved.
func (db *DB) OpAddDirectory(ctx context.Context, localAbsPath string) error {
	return fmt.Errorf("op_add_directory: %w", ErrNotImplemented)
}

// OpAddFile is reserved.
func (db *DB) OpAddFile(ctx context.Context, localAbsPath string) error {
	return fmt.Errorf("op_add_file: %w", ErrNotImplemented)
}

// OpAddSymlink is reserved.
func (db *DB) OpAddSymlink(ctx context.Context, localAbsPath, target string) error {
	return fmt.Errorf("op_add_symlink: %w", ErrNotImplemented)
}

// OpDelete is reserved.
func (db *DB) OpDelete(ctx context.Context, localAbsPath string) error {
	return fmt.Errorf("op_delete: %w", ErrNotImplemented)
}

// OpRevert is reserved.
func (db *DB) OpRevert(ctx context.Context, localAbsPath string) error {
	return fmt.Errorf("op_revert: %w", ErrNotImplemented)
}

// OpMove is reserved.
func (db *DB) OpMove(ctx context.Context, srcAbsPath, dstAbsPath string) error {
	return fmt.Errorf("op_move: %w", ErrNotImplemented)
}
