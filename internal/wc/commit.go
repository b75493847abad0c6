package wc

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/wshe1978/subversion/internal/storage/sqlite"
	"github.com/wshe1978/subversion/internal/types"
)

// GlobalCommit turns one node's pending state into the new BASE after the
// repository accepted it at commit.NewRevision. The WORKING row is
// consumed; the ACTUAL row is deleted, or reduced to its changelist when
// commit.KeepChangelist is set.
func (db *DB) GlobalCommit(ctx context.Context, localAbsPath string, commit *Commit) error {
	h, relpath, err := db.parseLocalAbsPath(ctx, localAbsPath)
	if err != nil {
		return err
	}

	err = h.root.store.WithTx(ctx, func(tx *sql.Tx) error {
		b, err := fetchBase(ctx, tx, h.root.id, relpath)
		if err != nil {
			return err
		}
		w, err := fetchWorking(ctx, tx, h.root.id, relpath)
		if err != nil {
			return err
		}
		a, err := fetchActual(ctx, tx, h.root.id, relpath)
		if err != nil {
			return err
		}
		if b == nil && w == nil {
			return fmt.Errorf("%q: %w", localAbsPath, ErrPathNotFound)
		}

		// The committed kind and depth come from WORKING when the commit
		// carries a local change of those, else from BASE.
		var kind types.NodeKind
		var depth, target sql.NullString
		switch {
		case w != nil:
			kind = types.NodeKind(w.kind)
			depth, target = w.depth, w.symlinkTarget
		default:
			kind = types.NodeKind(b.kind)
			depth, target = b.depth, b.symlinkTarget
		}
		if kind == types.KindSubdir {
			kind = types.KindDir
		}

		// A commit cannot move the node to another repository: BASE's
		// coordinates are reused when present, otherwise they derive from
		// the parent chain.
		var reposID int64
		var reposRelPath string
		if b != nil && b.reposID.Valid {
			reposID, reposRelPath = b.reposID.Int64, b.reposRelPath.String
		} else {
			anchor := relPathDir(relpath)
			id, anchorRelPath, err := scanUpwardsForRepos(ctx, tx, h.root.id, anchor)
			if err != nil {
				return err
			}
			reposID = id
			reposRelPath = relPathJoin(anchorRelPath, relPathBase(relpath))
		}

		// Effective properties follow ACTUAL over WORKING over BASE. The
		// stored blob is carried verbatim; no deserialize/reserialize churn.
		var props []byte
		switch {
		case a != nil && a.properties != nil:
			props = a.properties
		case w != nil && w.properties != nil:
			props = w.properties
		case b != nil:
			props = b.properties
		}

		// Checksum and size: the newly committed text when given, else
		// whatever the surviving layer recorded.
		checksum := commit.NewChecksum
		translatedSize := sql.NullInt64{}
		if checksum.IsZero() {
			switch {
			case w != nil && w.checksum.Valid:
				c, err := types.ParseChecksum(w.checksum.String)
				if err != nil {
					return fmt.Errorf("working checksum of %q: %v: %w", relpath, err, ErrCorrupt)
				}
				checksum, translatedSize = c, w.translatedSize
			case b != nil && b.checksum.Valid:
				c, err := types.ParseChecksum(b.checksum.String)
				if err != nil {
					return fmt.Errorf("base checksum of %q: %v: %w", relpath, err, ErrCorrupt)
				}
				checksum, translatedSize = c, b.translatedSize
			}
		} else {
			// A fresh text must already be installed in the pristine
			// store; its recorded size becomes the translated size.
			var size int64
			var refcount int64
			err := tx.QueryRowContext(ctx, sqlite.Text(sqlite.StmtSelectPristine), checksum.String()).
				Scan(&size, &refcount)
			if err == sql.ErrNoRows {
				return fmt.Errorf("committed text %s of %q: %w", checksum, localAbsPath, ErrChecksumUnknown)
			}
			if err != nil {
				return fmt.Errorf("looking up pristine %s: %w", checksum, err)
			}
			translatedSize = sql.NullInt64{Int64: size, Valid: true}
		}

		var checksumCol sql.NullString
		if !checksum.IsZero() {
			checksumCol = sql.NullString{String: checksum.String(), Valid: true}
		}

		// Reference accounting: the new text gains a reference; a replaced
		// BASE text loses one.
		if !checksum.IsZero() && (b == nil || !b.checksum.Valid || b.checksum.String != checksum.String()) {
			if _, err := tx.ExecContext(ctx, sqlite.Text(sqlite.StmtIncrementPristineRefcount), checksum.String()); err != nil {
				return fmt.Errorf("adjusting pristine refcount: %w", err)
			}
			if b != nil && b.checksum.Valid {
				if _, err := tx.ExecContext(ctx, sqlite.Text(sqlite.StmtDecrementPristineRefcount), b.checksum.String); err != nil {
					return fmt.Errorf("adjusting pristine refcount: %w", err)
				}
			}
		}

		_, err = tx.ExecContext(ctx, sqlite.Text(sqlite.StmtInsertBaseNode),
			h.root.id, relpath,
			reposID, reposRelPath, parentRelPathOf(relpath),
			string(types.PresenceNormal), string(kind), commit.NewRevision,
			checksumCol, translatedSize,
			commit.NewRevision, commit.ChangedDate, nullString(commit.ChangedAuthor),
			depth, target, nil, props, davCacheBlob(commit.NewDAVCache), nil,
		)
		if err != nil {
			return fmt.Errorf("writing committed base node %q: %w", relpath, err)
		}

		// Materialize any expected children delivered with the commit.
		for _, child := range commit.NewChildren {
			childRel := relPathJoin(relpath, child)
			_, err := tx.ExecContext(ctx, sqlite.Text(sqlite.StmtInsertBaseNode),
				h.root.id, childRel,
				reposID, relPathJoin(reposRelPath, child), parentRelPathOf(childRel),
				string(types.PresenceIncomplete), string(types.KindUnknown), commit.NewRevision,
				nil, nil, nil, nil, nil, nil, nil, nil, nil, nil, nil,
			)
			if err != nil {
				return fmt.Errorf("inserting incomplete child %q: %w", childRel, err)
			}
		}

		if w != nil {
			if _, err := tx.ExecContext(ctx, sqlite.Text(sqlite.StmtDeleteWorkingNode), h.root.id, relpath); err != nil {
				return fmt.Errorf("consuming working node %q: %w", relpath, err)
			}
		}

		if a != nil {
			if commit.KeepChangelist && a.changelist.Valid {
				if _, err := tx.ExecContext(ctx, sqlite.Text(sqlite.StmtResetActualToChangelist), h.root.id, relpath); err != nil {
					return fmt.Errorf("reducing actual node %q: %w", relpath, err)
				}
			} else {
				if _, err := tx.ExecContext(ctx, sqlite.Text(sqlite.StmtDeleteActualNode), h.root.id, relpath); err != nil {
					return fmt.Errorf("deleting actual node %q: %w", relpath, err)
				}
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	db.flushEntries(h)
	return nil
}
