package wc

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/wshe1978/subversion/internal/types"
)

// ScanAddition climbs the WORKING layer from an added node to its operation
// root: the ancestor whose row actually carries the add/copy/move. The
// starting node must be a live added node.
func (db *DB) ScanAddition(ctx context.Context, localAbsPath string) (*AdditionInfo, error) {
	h, relpath, err := db.parseLocalAbsPath(ctx, localAbsPath)
	if err != nil {
		return nil, err
	}

	var add *AdditionInfo
	err = h.root.store.WithTx(ctx, func(tx *sql.Tx) error {
		w, err := fetchWorking(ctx, tx, h.root.id, relpath)
		if err != nil {
			return err
		}
		if w == nil {
			return fmt.Errorf("%q: %w", localAbsPath, ErrPathNotFound)
		}
		if types.Presence(w.presence) != types.PresenceNormal {
			return fmt.Errorf("%q is not an added node (presence %q): %w",
				localAbsPath, w.presence, ErrUnexpectedStatus)
		}

		// Walk up while WORKING rows continue, watching for copyfrom.
		current := relpath
		for {
			if w.copyfromReposID.Valid {
				// This ancestor is the operation root of a copy or move.
				add = &AdditionInfo{
					Status:               types.StatusCopied,
					OpRootAbsPath:        filepath.Join(h.root.absPath, filepath.FromSlash(current)),
					OriginalReposRelPath: w.copyfromRelPath.String,
					OriginalRevision:     w.copyfromRev.Int64,
				}
				if w.movedHere {
					add.Status = types.StatusMovedHere
				}
				rootURL, uuid, err := fetchReposInfo(ctx, tx, w.copyfromReposID.Int64)
				if err != nil {
					return err
				}
				add.OriginalRootURL, add.OriginalUUID = rootURL, uuid
				return db.fillAdditionRepos(ctx, tx, h, add, current, relpath)
			}
			if current == "" {
				break
			}
			parent := relPathDir(current)
			pw, err := fetchWorking(ctx, tx, h.root.id, parent)
			if err != nil {
				return err
			}
			if pw == nil {
				break
			}
			current, w = parent, pw
		}

		// Plain addition: current is the operation root; repository
		// coordinates come from the BASE layer above it.
		add = &AdditionInfo{
			Status:        types.StatusAdded,
			OpRootAbsPath: filepath.Join(h.root.absPath, filepath.FromSlash(current)),
		}
		return db.fillAdditionRepos(ctx, tx, h, add, current, relpath)
	})
	if err != nil {
		return nil, err
	}
	return add, nil
}

// fillAdditionRepos computes the node's future repository coordinates from
// its position in the tree: the BASE ancestor above the operation root plus
// the path segments below it.
func (db *DB) fillAdditionRepos(ctx context.Context, tx *sql.Tx, h *dirHandle,
	add *AdditionInfo, opRootRelPath, relpath string) error {

	anchor := relPathDir(opRootRelPath)
	reposID, anchorRelPath, err := scanUpwardsForRepos(ctx, tx, h.root.id, anchor)
	if err != nil {
		return err
	}
	tail := relpath
	if anchor != "" {
		tail = strings.TrimPrefix(relpath, anchor+"/")
	}
	add.ReposRelPath = relPathJoin(anchorRelPath, tail)

	rootURL, uuid, err := fetchReposInfo(ctx, tx, reposID)
	if err != nil {
		return err
	}
	add.ReposRootURL, add.ReposUUID = rootURL, uuid
	return nil
}

// ScanDeletion climbs the WORKING layer from a deleted node, reporting the
// roots of the delete: where the BASE shadow starts, where the working
// delete starts, and whether the subtree was moved away or replaced.
func (db *DB) ScanDeletion(ctx context.Context, localAbsPath string) (*DeletionInfo, error) {
	h, relpath, err := db.parseLocalAbsPath(ctx, localAbsPath)
	if err != nil {
		return nil, err
	}

	del := &DeletionInfo{}
	err = h.root.store.WithTx(ctx, func(tx *sql.Tx) error {
		w, err := fetchWorking(ctx, tx, h.root.id, relpath)
		if err != nil {
			return err
		}
		if w == nil {
			return fmt.Errorf("%q: %w", localAbsPath, ErrPathNotFound)
		}
		switch types.Presence(w.presence) {
		case types.PresenceNotPresent, types.PresenceBaseDeleted:
		default:
			return fmt.Errorf("%q is not a deleted node (presence %q): %w",
				localAbsPath, w.presence, ErrUnexpectedStatus)
		}

		current := relpath
		for {
			b, err := fetchBase(ctx, tx, h.root.id, current)
			if err != nil {
				return err
			}
			if b != nil {
				if b.movedTo.Valid {
					// The moved-away row is definitionally the base-del root.
					del.MovedToAbsPath = filepath.Join(h.root.absPath, filepath.FromSlash(b.movedTo.String))
					del.BaseDelAbsPath = filepath.Join(h.root.absPath, filepath.FromSlash(current))
					return nil
				}
				// Topmost BASE shadow seen so far on the climb.
				del.BaseDelAbsPath = filepath.Join(h.root.absPath, filepath.FromSlash(current))
			}
			del.WorkDelAbsPath = filepath.Join(h.root.absPath, filepath.FromSlash(current))

			if current == "" {
				return nil
			}
			parent := relPathDir(current)
			pw, err := fetchWorking(ctx, tx, h.root.id, parent)
			if err != nil {
				return err
			}
			if pw == nil {
				return nil
			}
			if types.Presence(pw.presence) == types.PresenceNormal {
				// The parent is a live (added or replacing) node, so the
				// delete is rooted here. A replacement over BASE marks the
				// deleted BASE tree as replaced.
				pb, err := fetchBase(ctx, tx, h.root.id, parent)
				if err != nil {
					return err
				}
				if pb != nil {
					del.BaseReplaced = true
				}
				return nil
			}
			current = parent
		}
	})
	if err != nil {
		return nil, err
	}
	return del, nil
}
