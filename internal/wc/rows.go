package wc

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/wshe1978/subversion/internal/storage/sqlite"
)

// querier is satisfied by *sql.DB and *sql.Tx so row readers work both
// inside and outside a transaction.
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// baseRow mirrors one base_node row. Nullable columns keep their sql.Null
// wrappers; property blobs are nil when NULL.
type baseRow struct {
	reposID        sql.NullInt64
	reposRelPath   sql.NullString
	parentRelPath  sql.NullString
	presence       string
	kind           string
	revision       sql.NullInt64
	checksum       sql.NullString
	translatedSize sql.NullInt64
	changedRev     sql.NullInt64
	changedDate    sql.NullInt64
	changedAuthor  sql.NullString
	depth          sql.NullString
	symlinkTarget  sql.NullString
	lastModTime    sql.NullInt64
	properties     []byte
	davCache       []byte
	movedTo        sql.NullString
}

// workingRow mirrors one working_node row.
type workingRow struct {
	parentRelPath   sql.NullString
	presence        string
	kind            string
	checksum        sql.NullString
	translatedSize  sql.NullInt64
	changedRev      sql.NullInt64
	changedDate     sql.NullInt64
	changedAuthor   sql.NullString
	depth           sql.NullString
	symlinkTarget   sql.NullString
	copyfromReposID sql.NullInt64
	copyfromRelPath sql.NullString
	copyfromRev     sql.NullInt64
	movedHere       bool
	lastModTime     sql.NullInt64
	properties      []byte
}

// actualRow mirrors one actual_node row.
type actualRow struct {
	parentRelPath    sql.NullString
	properties       []byte
	conflictOld      sql.NullString
	conflictNew      sql.NullString
	conflictWorking  sql.NullString
	propReject       sql.NullString
	changelist       sql.NullString
	treeConflictData sql.NullString
}

// hasTextOrPropConflict reports whether any conflict marker column is set.
func (a *actualRow) hasTextOrPropConflict() bool {
	return a.conflictOld.Valid || a.conflictNew.Valid ||
		a.conflictWorking.Valid || a.propReject.Valid
}

// isTrivial reports whether every tracked field is null, meaning the row
// can be reclaimed.
func (a *actualRow) isTrivial() bool {
	return a.properties == nil && !a.hasTextOrPropConflict() &&
		!a.changelist.Valid && !a.treeConflictData.Valid
}

// fetchBase reads the base_node row for (wcID, relpath); nil if absent.
func fetchBase(ctx context.Context, q querier, wcID int64, relpath string) (*baseRow, error) {
	row := q.QueryRowContext(ctx, sqlite.Text(sqlite.StmtSelectBaseNode), wcID, relpath)
	var b baseRow
	err := row.Scan(
		&b.reposID, &b.reposRelPath, &b.parentRelPath, &b.presence, &b.kind,
		&b.revision, &b.checksum, &b.translatedSize, &b.changedRev,
		&b.changedDate, &b.changedAuthor, &b.depth, &b.symlinkTarget,
		&b.lastModTime, &b.properties, &b.davCache, &b.movedTo,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading base node %q: %w", relpath, err)
	}
	return &b, nil
}

// fetchWorking reads the working_node row for (wcID, relpath); nil if absent.
func fetchWorking(ctx context.Context, q querier, wcID int64, relpath string) (*workingRow, error) {
	row := q.QueryRowContext(ctx, sqlite.Text(sqlite.StmtSelectWorkingNode), wcID, relpath)
	var w workingRow
	var movedHere int
	err := row.Scan(
		&w.parentRelPath, &w.presence, &w.kind, &w.checksum,
		&w.translatedSize, &w.changedRev, &w.changedDate, &w.changedAuthor,
		&w.depth, &w.symlinkTarget, &w.copyfromReposID, &w.copyfromRelPath,
		&w.copyfromRev, &movedHere, &w.lastModTime, &w.properties,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading working node %q: %w", relpath, err)
	}
	w.movedHere = movedHere != 0
	return &w, nil
}

// fetchActual reads the actual_node row for (wcID, relpath); nil if absent.
func fetchActual(ctx context.Context, q querier, wcID int64, relpath string) (*actualRow, error) {
	row := q.QueryRowContext(ctx, sqlite.Text(sqlite.StmtSelectActualNode), wcID, relpath)
	var a actualRow
	err := row.Scan(
		&a.parentRelPath, &a.properties, &a.conflictOld, &a.conflictNew,
		&a.conflictWorking, &a.propReject, &a.changelist, &a.treeConflictData,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading actual node %q: %w", relpath, err)
	}
	return &a, nil
}

// parentRelPathOf computes the parent_relpath column value for a relpath.
// The root's parent is NULL.
func parentRelPathOf(relpath string) sql.NullString {
	if relpath == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: relPathDir(relpath), Valid: true}
}

// relPathDir is filepath.Dir for slash-separated relpaths, with "" for
// top-level entries.
func relPathDir(relpath string) string {
	for i := len(relpath) - 1; i >= 0; i-- {
		if relpath[i] == '/' {
			return relpath[:i]
		}
	}
	return ""
}

// relPathBase returns the final component of a relpath.
func relPathBase(relpath string) string {
	for i := len(relpath) - 1; i >= 0; i-- {
		if relpath[i] == '/' {
			return relpath[i+1:]
		}
	}
	return relpath
}

// relPathJoin joins two slash-separated relpaths, either possibly empty.
func relPathJoin(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	default:
		return a + "/" + b
	}
}
