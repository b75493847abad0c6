package wc

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/wshe1978/subversion/internal/skel"
	"github.com/wshe1978/subversion/internal/storage/sqlite"
	"github.com/wshe1978/subversion/internal/types"
)

// ReadInfo joins the BASE, WORKING, and ACTUAL layers for one path and
// computes its effective status. This is the central arbitration point: the
// precedence rule lives in effectiveStatus and nowhere else.
func (db *DB) ReadInfo(ctx context.Context, localAbsPath string) (*Info, error) {
	h, relpath, err := db.parseLocalAbsPath(ctx, localAbsPath)
	if err != nil {
		return nil, err
	}

	var info *Info
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
			if a != nil {
				return fmt.Errorf("actual-only node %q: %w", localAbsPath, ErrCorrupt)
			}
			return fmt.Errorf("%q: %w", localAbsPath, ErrPathNotFound)
		}

		info, err = effectiveStatus(b, w, a)
		if err != nil {
			return fmt.Errorf("node %q: %v: %w", relpath, err, ErrCorrupt)
		}

		// Repository coordinates resolve lazily from the BASE layer. A
		// WORKING node leaves them unset so the caller can scan_addition
		// for the operation root instead.
		if w == nil && b.reposID.Valid {
			rootURL, uuid, err := fetchReposInfo(ctx, tx, b.reposID.Int64)
			if err != nil {
				return err
			}
			info.ReposRootURL, info.ReposUUID = rootURL, uuid
			info.ReposRelPath = b.reposRelPath.String
		}

		// A node is also conflicted when its parent's tree-conflict data
		// names it as a victim.
		if !info.Conflicted && relpath != "" {
			conflicts, err := fetchTreeConflictMap(ctx, tx, h.root.id, relPathDir(relpath))
			if err != nil {
				return err
			}
			if _, hit := conflicts[relPathBase(relpath)]; hit {
				info.Conflicted = true
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return info, nil
}

// effectiveStatus computes the arbitrated view of one node from its three
// layer rows, any of which may be nil (though not all). Pure: no database
// access.
func effectiveStatus(b *baseRow, w *workingRow, a *actualRow) (*Info, error) {
	info := &Info{
		Revision:    types.RevisionInvalid,
		ChangedRev:  types.RevisionInvalid,
		HaveBase:    b != nil,
		HaveWorking: w != nil,
	}

	switch {
	case w != nil:
		// WORKING wins. Its presence maps onto the add/delete family.
		kind := types.NodeKind(w.kind)
		legacySubdir := kind == types.KindSubdir
		if legacySubdir {
			kind = types.KindDir
		}
		info.Kind = kind
		switch types.Presence(w.presence) {
		case types.PresenceNormal:
			info.Status = types.StatusAdded
			if legacySubdir {
				info.Status = types.StatusObstructedAdd
			}
		case types.PresenceNotPresent, types.PresenceBaseDeleted:
			info.Status = types.StatusDeleted
			if legacySubdir {
				info.Status = types.StatusObstructedDelete
			}
		case types.PresenceIncomplete:
			info.Status = types.StatusIncomplete
		case types.PresenceExcluded:
			info.Status = types.StatusExcluded
		default:
			return nil, fmt.Errorf("working presence %q is not valid", w.presence)
		}
		info.ChangedRev = w.changedRev.Int64
		if !w.changedRev.Valid {
			info.ChangedRev = types.RevisionInvalid
		}
		info.ChangedDate = w.changedDate.Int64
		info.ChangedAuthor = w.changedAuthor.String
		info.Depth = types.Depth(w.depth.String)
		info.Target = w.symlinkTarget.String
		info.TranslatedSize = w.translatedSize.Int64
		if w.checksum.Valid {
			c, err := types.ParseChecksum(w.checksum.String)
			if err != nil {
				return nil, err
			}
			info.Checksum = c
		}
		if w.copyfromRelPath.Valid {
			info.OriginalReposRelPath = w.copyfromRelPath.String
			info.OriginalRevision = w.copyfromRev.Int64
		}

	case b != nil:
		info.Status, info.Kind = baseStatus(b)
		info.Revision = b.revision.Int64
		if !b.revision.Valid {
			info.Revision = types.RevisionInvalid
		}
		info.ChangedRev = b.changedRev.Int64
		if !b.changedRev.Valid {
			info.ChangedRev = types.RevisionInvalid
		}
		info.ChangedDate = b.changedDate.Int64
		info.ChangedAuthor = b.changedAuthor.String
		info.Depth = types.Depth(b.depth.String)
		info.Target = b.symlinkTarget.String
		info.TranslatedSize = b.translatedSize.Int64
		if b.checksum.Valid {
			c, err := types.ParseChecksum(b.checksum.String)
			if err != nil {
				return nil, err
			}
			info.Checksum = c
		}
	}

	if a != nil {
		info.Changelist = a.changelist.String
		info.Conflicted = a.hasTextOrPropConflict()
	}
	return info, nil
}

// ReadProps returns the effective properties: the ACTUAL override when one
// exists, else the pristine properties.
func (db *DB) ReadProps(ctx context.Context, localAbsPath string) (map[string]string, error) {
	h, relpath, err := db.parseLocalAbsPath(ctx, localAbsPath)
	if err != nil {
		return nil, err
	}
	a, err := fetchActual(ctx, h.root.store.DB(), h.root.id, relpath)
	if err != nil {
		return nil, err
	}
	if a != nil && a.properties != nil {
		props, err := skel.ParseProps(a.properties)
		if err != nil {
			return nil, fmt.Errorf("actual properties of %q: %v: %w", relpath, err, ErrCorrupt)
		}
		return props, nil
	}
	return db.ReadPristineProps(ctx, localAbsPath)
}

// ReadPristineProps returns the unmodified properties: WORKING's when a
// working row exists, else BASE's.
func (db *DB) ReadPristineProps(ctx context.Context, localAbsPath string) (map[string]string, error) {
	h, relpath, err := db.parseLocalAbsPath(ctx, localAbsPath)
	if err != nil {
		return nil, err
	}
	q := h.root.store.DB()

	w, err := fetchWorking(ctx, q, h.root.id, relpath)
	if err != nil {
		return nil, err
	}
	if w != nil {
		props, err := skel.ParseProps(w.properties)
		if err != nil {
			return nil, fmt.Errorf("working properties of %q: %v: %w", relpath, err, ErrCorrupt)
		}
		return props, nil
	}

	b, err := fetchBase(ctx, q, h.root.id, relpath)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, fmt.Errorf("%q: %w", localAbsPath, ErrPathNotFound)
	}
	props, err := skel.ParseProps(b.properties)
	if err != nil {
		return nil, fmt.Errorf("base properties of %q: %v: %w", relpath, err, ErrCorrupt)
	}
	return props, nil
}

// ReadChildren returns the merged basenames of a directory's BASE and
// WORKING children.
func (db *DB) ReadChildren(ctx context.Context, localAbsPath string) ([]string, error) {
	h, relpath, err := db.parseLocalAbsPath(ctx, localAbsPath)
	if err != nil {
		return nil, err
	}
	q := h.root.store.DB()

	base, err := selectChildren(ctx, q, sqlite.StmtSelectBaseChildren, h.root.id, relpath)
	if err != nil {
		return nil, err
	}
	working, err := selectChildren(ctx, q, sqlite.StmtSelectWorkingChildren, h.root.id, relpath)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(base)+len(working))
	var children []string
	for _, lists := range [][]string{base, working} {
		for _, name := range lists {
			if !seen[name] {
				seen[name] = true
				children = append(children, name)
			}
		}
	}
	sort.Strings(children)
	return children, nil
}

// ReadKind returns the effective node kind. With allowMissing, an
// unversioned path reports KindUnknown instead of failing.
func (db *DB) ReadKind(ctx context.Context, localAbsPath string, allowMissing bool) (types.NodeKind, error) {
	info, err := db.ReadInfo(ctx, localAbsPath)
	if err != nil {
		if allowMissing && isNotFound(err) {
			return types.KindUnknown, nil
		}
		return types.KindUnknown, err
	}
	return info.Kind, nil
}

// NodeExists reports whether any BASE or WORKING row backs the path.
func (db *DB) NodeExists(ctx context.Context, localAbsPath string) (bool, error) {
	_, err := db.ReadInfo(ctx, localAbsPath)
	if err == nil {
		return true, nil
	}
	if isNotFound(err) {
		return false, nil
	}
	return false, err
}
