package wc

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/wshe1978/subversion/internal/storage/sqlite"
)

// fetchLock reads the repository lock for (reposID, reposRelPath); nil when
// none is held.
func fetchLock(ctx context.Context, q querier, reposID int64, reposRelPath string) (*Lock, error) {
	row := q.QueryRowContext(ctx, sqlite.Text(sqlite.StmtSelectLock), reposID, reposRelPath)
	var l Lock
	var owner, comment sql.NullString
	var date sql.NullInt64
	err := row.Scan(&l.Token, &owner, &comment, &date)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading lock for %q: %w", reposRelPath, err)
	}
	l.Owner, l.Comment, l.Date = owner.String, comment.String, date.Int64
	return &l, nil
}

// LockAdd records a repository lock token for the BASE node at localAbsPath.
func (db *DB) LockAdd(ctx context.Context, localAbsPath string, lock *Lock) error {
	h, relpath, err := db.parseLocalAbsPath(ctx, localAbsPath)
	if err != nil {
		return err
	}
	err = h.root.store.WithTx(ctx, func(tx *sql.Tx) error {
		reposID, reposRelPath, err := scanUpwardsForRepos(ctx, tx, h.root.id, relpath)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, sqlite.Text(sqlite.StmtInsertLock),
			reposID, reposRelPath, lock.Token,
			nullString(lock.Owner), nullString(lock.Comment),
			nullInt64(lock.Date, lock.Date != 0))
		if err != nil {
			return fmt.Errorf("recording lock on %q: %w", relpath, err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	db.flushEntries(h)
	return nil
}

// LockRemove drops the recorded repository lock for the BASE node at
// localAbsPath, if any.
func (db *DB) LockRemove(ctx context.Context, localAbsPath string) error {
	h, relpath, err := db.parseLocalAbsPath(ctx, localAbsPath)
	if err != nil {
		return err
	}
	err = h.root.store.WithTx(ctx, func(tx *sql.Tx) error {
		reposID, reposRelPath, err := scanUpwardsForRepos(ctx, tx, h.root.id, relpath)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, sqlite.Text(sqlite.StmtDeleteLock), reposID, reposRelPath); err != nil {
			return fmt.Errorf("removing lock on %q: %w", relpath, err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	db.flushEntries(h)
	return nil
}

// WCLockSet takes the advisory working-copy lock on a directory. A second
// take of the same lock, by this or any other process, fails with ErrLocked.
func (db *DB) WCLockSet(ctx context.Context, localAbsPath string) error {
	h, relpath, err := db.parseLocalAbsPath(ctx, localAbsPath)
	if err != nil {
		return err
	}
	_, err = h.root.store.DB().ExecContext(ctx, sqlite.Text(sqlite.StmtInsertWCLock), h.root.id, relpath)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("%q: %w", localAbsPath, ErrLocked)
		}
		return fmt.Errorf("locking %q: %w", localAbsPath, err)
	}
	h.locked = true
	return nil
}

// WCLocked reports whether the advisory lock row for a directory exists.
func (db *DB) WCLocked(ctx context.Context, localAbsPath string) (bool, error) {
	h, relpath, err := db.parseLocalAbsPath(ctx, localAbsPath)
	if err != nil {
		return false, err
	}
	var one int
	err = h.root.store.DB().QueryRowContext(ctx, sqlite.Text(sqlite.StmtSelectWCLock), h.root.id, relpath).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking lock on %q: %w", localAbsPath, err)
	}
	return true, nil
}

// WCLockRemove releases the advisory lock and clears the handle's in-memory
// locked flag. Removing a lock that is not held is not an error.
func (db *DB) WCLockRemove(ctx context.Context, localAbsPath string) error {
	h, relpath, err := db.parseLocalAbsPath(ctx, localAbsPath)
	if err != nil {
		return err
	}
	if _, err := h.root.store.DB().ExecContext(ctx, sqlite.Text(sqlite.StmtDeleteWCLock), h.root.id, relpath); err != nil {
		return fmt.Errorf("unlocking %q: %w", localAbsPath, err)
	}
	h.locked = false
	return nil
}
