package wc

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/wshe1978/subversion/internal/storage/sqlite"
)

// GlobalRelocate repoints a working copy at a repository that moved: every
// BASE row, WORKING copyfrom reference, and lock row following the old
// repository id is switched to a row interned for the new root URL, and the
// DAV caches that embedded the old URL are dropped. The UUID must not
// change; relocation is a rename, not a switch of repository.
func (db *DB) GlobalRelocate(ctx context.Context, localAbsPath, newReposRootURL string) error {
	h, relpath, err := db.parseLocalAbsPath(ctx, localAbsPath)
	if err != nil {
		return err
	}
	err = h.root.store.WithTx(ctx, func(tx *sql.Tx) error {
		oldReposID, _, err := scanUpwardsForRepos(ctx, tx, h.root.id, relpath)
		if err != nil {
			return err
		}
		oldRootURL, uuid, err := fetchReposInfo(ctx, tx, oldReposID)
		if err != nil {
			return err
		}
		if oldRootURL == newReposRootURL {
			return nil
		}

		newReposID, err := createReposID(ctx, tx, newReposRootURL, uuid)
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, sqlite.Text(sqlite.StmtUpdateBaseReposRelocate),
			newReposID, h.root.id, oldReposID); err != nil {
			return fmt.Errorf("relocating base nodes: %w", err)
		}
		if _, err := tx.ExecContext(ctx, sqlite.Text(sqlite.StmtUpdateWorkingCopyfromRelocate),
			newReposID, h.root.id, oldReposID); err != nil {
			return fmt.Errorf("relocating working copyfrom references: %w", err)
		}
		if _, err := tx.ExecContext(ctx, sqlite.Text(sqlite.StmtUpdateLockReposRelocate),
			newReposID, oldReposID); err != nil {
			return fmt.Errorf("relocating lock rows: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	db.flushEntries(h)
	return nil
}
