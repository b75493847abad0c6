package wc

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/wshe1978/subversion/internal/storage/sqlite"
	"github.com/wshe1978/subversion/internal/types"
)

// InitArgs describe the working copy being created by checkout.
type InitArgs struct {
	ReposRelPath string
	ReposRootURL string
	ReposUUID    string
	InitialRev   int64
	Depth        types.Depth
}

// Init creates the administrative area for a fresh working copy at
// localAbsPath: the directory skeleton, the database at the current schema
// version, the wcroot row, and the root BASE row. A root checked out at a
// real revision starts incomplete until the update editor populates it;
// revision zero (an empty repository) and depth-empty checkouts start
// normal.
func (db *DB) Init(ctx context.Context, localAbsPath string, args *InitArgs) error {
	if !filepath.IsAbs(localAbsPath) {
		return fmt.Errorf("path %q is not absolute: %w", localAbsPath, ErrNotWorkingCopy)
	}
	localAbsPath = filepath.Clean(localAbsPath)

	if _, err := os.Stat(dbPath(localAbsPath)); err == nil {
		return fmt.Errorf("%q is already a working copy: %w", localAbsPath, ErrUnexpectedStatus)
	}

	for _, dir := range []string{
		adminPath(localAbsPath),
		adminPath(localAbsPath, pristineDirName),
		adminPath(localAbsPath, tempDirName),
	} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating administrative area: %w", err)
		}
	}

	store, err := sqlite.Open(ctx, dbPath(localAbsPath), sqlite.OpenOptions{
		BusyTimeoutMS: db.opts.BusyTimeoutMS,
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDBError, err)
	}
	if err := store.CreateSchema(ctx); err != nil {
		_ = store.Close()
		return fmt.Errorf("%w: %v", ErrDBError, err)
	}

	depth := args.Depth
	if depth == "" {
		depth = types.DepthInfinity
	}
	presence := types.PresenceNormal
	if args.InitialRev > 0 && depth != types.DepthEmpty {
		presence = types.PresenceIncomplete
	}

	var wcID int64
	err = store.WithTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, sqlite.Text(sqlite.StmtInsertWCRoot), nil)
		if err != nil {
			return fmt.Errorf("creating wcroot row: %w", err)
		}
		if wcID, err = res.LastInsertId(); err != nil {
			return err
		}

		reposID, err := createReposID(ctx, tx, args.ReposRootURL, args.ReposUUID)
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, sqlite.Text(sqlite.StmtInsertBaseNode),
			wcID, "",
			reposID, args.ReposRelPath, nil,
			string(presence), string(types.KindDir), args.InitialRev,
			nil, nil, nil, nil, nil, string(depth), nil, nil, nil, nil, nil,
		)
		if err != nil {
			return fmt.Errorf("creating root base node: %w", err)
		}
		return nil
	})
	if err != nil {
		_ = store.Close()
		return err
	}

	root := &wcRoot{
		absPath: localAbsPath,
		id:      wcID,
		format:  sqlite.CurrentVersion,
		store:   store,
	}
	db.wcRoots[localAbsPath] = root
	db.cacheHandle(localAbsPath, root)
	return nil
}
