package wc

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/wshe1978/subversion/internal/skel"
	"github.com/wshe1978/subversion/internal/storage/sqlite"
	"github.com/wshe1978/subversion/internal/types"
)

// nullString converts "" to NULL.
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullInt64(n int64, valid bool) sql.NullInt64 {
	if !valid {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: n, Valid: true}
}

// davCacheBlob serializes the opaque DAV property bag; nil stays NULL.
func davCacheBlob(cache map[string]string) []byte {
	if cache == nil {
		return nil
	}
	return skel.UnparseProps(cache)
}

// insertBaseRow writes one base_node row inside tx. presence/kind are the
// stored tokens; node supplies everything else.
func insertBaseRow(ctx context.Context, tx *sql.Tx, wcID int64, relpath string,
	kind types.NodeKind, presence types.Presence, reposID int64, node *BaseNode) error {

	var props []byte
	if node.Props != nil {
		props = skel.UnparseProps(node.Props)
	}

	var checksum sql.NullString
	if !node.Checksum.IsZero() {
		checksum = sql.NullString{String: node.Checksum.String(), Valid: true}
	}

	_, err := tx.ExecContext(ctx, sqlite.Text(sqlite.StmtInsertBaseNode),
		wcID, relpath,
		reposID, node.ReposRelPath, parentRelPathOf(relpath),
		string(presence), string(kind), node.Revision,
		checksum, nullInt64(node.TranslatedSize, kind == types.KindFile),
		nullInt64(node.ChangedRev, types.IsValidRevision(node.ChangedRev)),
		node.ChangedDate, nullString(node.ChangedAuthor),
		nullString(string(node.Depth)), nullString(node.Target),
		nil, props, davCacheBlob(node.DAVCache), nil,
	)
	if err != nil {
		return fmt.Errorf("inserting base node %q: %w", relpath, err)
	}
	return nil
}

// baseAdd resolves the path, interns the repository, and runs fn(tx) with
// the shared insert plumbing bound.
func (db *DB) baseAdd(ctx context.Context, localAbsPath string, node *BaseNode,
	kind types.NodeKind, presence types.Presence) error {

	h, relpath, err := db.parseLocalAbsPath(ctx, localAbsPath)
	if err != nil {
		return err
	}
	err = h.root.store.WithTx(ctx, func(tx *sql.Tx) error {
		reposID, err := createReposID(ctx, tx, node.ReposRootURL, node.ReposUUID)
		if err != nil {
			return err
		}
		if err := insertBaseRow(ctx, tx, h.root.id, relpath, kind, presence, reposID, node); err != nil {
			return err
		}
		// Materialize the expected-children set before content arrives.
		for _, child := range node.Children {
			childRel := relPathJoin(relpath, child)
			_, err := tx.ExecContext(ctx, sqlite.Text(sqlite.StmtInsertBaseNode),
				h.root.id, childRel,
				reposID, relPathJoin(node.ReposRelPath, child), parentRelPathOf(childRel),
				string(types.PresenceIncomplete), string(types.KindUnknown), node.Revision,
				nil, nil, nil, nil, nil, nil, nil, nil, nil, nil, nil,
			)
			if err != nil {
				return fmt.Errorf("inserting incomplete child %q: %w", childRel, err)
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

// BaseAddDirectory installs a BASE directory row, with incomplete
// placeholder rows for each named child.
func (db *DB) BaseAddDirectory(ctx context.Context, localAbsPath string, node *BaseNode) error {
	return db.baseAdd(ctx, localAbsPath, node, types.KindDir, types.PresenceNormal)
}

// BaseAddFile installs a BASE file row.
func (db *DB) BaseAddFile(ctx context.Context, localAbsPath string, node *BaseNode) error {
	if !node.Checksum.IsZero() && node.Checksum.Kind != types.ChecksumSHA1 {
		return fmt.Errorf("file %q: checksum kind %q: %w", localAbsPath, node.Checksum.Kind, ErrBadChecksumKind)
	}
	return db.baseAdd(ctx, localAbsPath, node, types.KindFile, types.PresenceNormal)
}

// BaseAddSymlink installs a BASE symlink row.
func (db *DB) BaseAddSymlink(ctx context.Context, localAbsPath string, node *BaseNode) error {
	return db.baseAdd(ctx, localAbsPath, node, types.KindSymlink, types.PresenceNormal)
}

// BaseAddAbsentNode records a node the server reports but will not deliver:
// presence absent (authorization), excluded (sparse checkout), or
// not-present (tombstone).
func (db *DB) BaseAddAbsentNode(ctx context.Context, localAbsPath string, node *BaseNode,
	kind types.NodeKind, presence types.Presence) error {

	switch presence {
	case types.PresenceAbsent, types.PresenceExcluded, types.PresenceNotPresent:
	default:
		return fmt.Errorf("presence %q is not an absent-class presence: %w", presence, ErrUnexpectedStatus)
	}
	return db.baseAdd(ctx, localAbsPath, node, kind, presence)
}

// BaseRemove deletes one BASE row.
func (db *DB) BaseRemove(ctx context.Context, localAbsPath string) error {
	h, relpath, err := db.parseLocalAbsPath(ctx, localAbsPath)
	if err != nil {
		return err
	}
	err = h.root.store.WithTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, sqlite.Text(sqlite.StmtDeleteBaseNode), h.root.id, relpath)
		if err != nil {
			return fmt.Errorf("removing base node %q: %w", relpath, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("%q: %w", localAbsPath, ErrPathNotFound)
		}
		return nil
	})
	if err != nil {
		return err
	}
	db.flushEntries(h)
	return nil
}

// BaseGetInfo reads the BASE layer for one node, joined with any repository
// lock held on it.
func (db *DB) BaseGetInfo(ctx context.Context, localAbsPath string) (*BaseInfo, error) {
	h, relpath, err := db.parseLocalAbsPath(ctx, localAbsPath)
	if err != nil {
		return nil, err
	}
	q := h.root.store.DB()

	b, err := fetchBase(ctx, q, h.root.id, relpath)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, fmt.Errorf("%q: %w", localAbsPath, ErrPathNotFound)
	}

	info := &BaseInfo{
		Revision:       b.revision.Int64,
		ChangedRev:     b.changedRev.Int64,
		ChangedDate:    b.changedDate.Int64,
		ChangedAuthor:  b.changedAuthor.String,
		Depth:          types.Depth(b.depth.String),
		Target:         b.symlinkTarget.String,
		TranslatedSize: b.translatedSize.Int64,
	}
	info.Status, info.Kind = baseStatus(b)

	if b.checksum.Valid {
		c, err := types.ParseChecksum(b.checksum.String)
		if err != nil {
			return nil, fmt.Errorf("base node %q: %v: %w", relpath, err, ErrCorrupt)
		}
		info.Checksum = c
	}

	if b.reposID.Valid {
		rootURL, uuid, err := fetchReposInfo(ctx, q, b.reposID.Int64)
		if err != nil {
			return nil, err
		}
		info.ReposRootURL, info.ReposUUID = rootURL, uuid
		info.ReposRelPath = b.reposRelPath.String

		lock, err := fetchLock(ctx, q, b.reposID.Int64, b.reposRelPath.String)
		if err != nil {
			return nil, err
		}
		info.Lock = lock
	}

	return info, nil
}

// baseStatus folds a BASE row's stored tokens to the effective status the
// BASE layer alone would report. The legacy subdir kind is normalized to
// dir with an obstructed status.
func baseStatus(b *baseRow) (types.Status, types.NodeKind) {
	kind := types.NodeKind(b.kind)
	presence := types.Presence(b.presence)
	if kind == types.KindSubdir {
		kind = types.KindDir
		if presence == types.PresenceNormal {
			return types.StatusObstructed, kind
		}
	}
	return types.Status(presence), kind
}

// BaseGetProps returns the BASE properties of a node.
func (db *DB) BaseGetProps(ctx context.Context, localAbsPath string) (map[string]string, error) {
	h, relpath, err := db.parseLocalAbsPath(ctx, localAbsPath)
	if err != nil {
		return nil, err
	}
	b, err := fetchBase(ctx, h.root.store.DB(), h.root.id, relpath)
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

// BaseGetChildren returns the basenames of a directory's BASE children.
func (db *DB) BaseGetChildren(ctx context.Context, localAbsPath string) ([]string, error) {
	h, relpath, err := db.parseLocalAbsPath(ctx, localAbsPath)
	if err != nil {
		return nil, err
	}
	return selectChildren(ctx, h.root.store.DB(), sqlite.StmtSelectBaseChildren, h.root.id, relpath)
}

// BaseGetDAVCache returns the opaque DAV property bag of a BASE node; nil
// when none is cached.
func (db *DB) BaseGetDAVCache(ctx context.Context, localAbsPath string) (map[string]string, error) {
	h, relpath, err := db.parseLocalAbsPath(ctx, localAbsPath)
	if err != nil {
		return nil, err
	}
	b, err := fetchBase(ctx, h.root.store.DB(), h.root.id, relpath)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, fmt.Errorf("%q: %w", localAbsPath, ErrPathNotFound)
	}
	if b.davCache == nil {
		return nil, nil
	}
	cache, err := skel.ParseProps(b.davCache)
	if err != nil {
		return nil, fmt.Errorf("dav cache of %q: %v: %w", relpath, err, ErrCorrupt)
	}
	return cache, nil
}

// BaseSetDAVCache replaces the DAV property bag of a BASE node.
func (db *DB) BaseSetDAVCache(ctx context.Context, localAbsPath string, cache map[string]string) error {
	h, relpath, err := db.parseLocalAbsPath(ctx, localAbsPath)
	if err != nil {
		return err
	}
	err = h.root.store.WithTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, sqlite.Text(sqlite.StmtUpdateBaseDAVCache),
			davCacheBlob(cache), h.root.id, relpath)
		if err != nil {
			return fmt.Errorf("updating dav cache of %q: %w", relpath, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("%q: %w", localAbsPath, ErrPathNotFound)
		}
		return nil
	})
	if err != nil {
		return err
	}
	db.flushEntries(h)
	return nil
}

// selectChildren runs one of the children statements and collects basenames.
func selectChildren(ctx context.Context, q querier, stmt sqlite.StmtID, wcID int64, relpath string) ([]string, error) {
	rows, err := q.QueryContext(ctx, sqlite.Text(stmt), wcID, relpath)
	if err != nil {
		return nil, fmt.Errorf("listing children of %q: %w", relpath, err)
	}
	defer rows.Close()

	var children []string
	for rows.Next() {
		var childRelPath string
		if err := rows.Scan(&childRelPath); err != nil {
			return nil, fmt.Errorf("listing children of %q: %w", relpath, err)
		}
		children = append(children, relPathBase(childRelPath))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing children of %q: %w", relpath, err)
	}
	return children, nil
}
