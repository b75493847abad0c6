package wc

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/wshe1978/subversion/internal/storage/sqlite"
)

func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "constraint failed: UNIQUE")
}

// createReposID interns (rootURL, uuid) and returns its surrogate key,
// reusing an existing row when the URL is already known. Two writers may
// race on the insert; the UNIQUE index keeps the table consistent and the
// loser retries its select once.
func createReposID(ctx context.Context, q querier, rootURL, uuid string) (int64, error) {
	for attempt := 0; ; attempt++ {
		var id int64
		var haveUUID string
		err := q.QueryRowContext(ctx, sqlite.Text(sqlite.StmtSelectRepositoryByRoot), rootURL).
			Scan(&id, &haveUUID)
		if err == nil {
			return id, nil
		}
		if err != sql.ErrNoRows {
			return 0, fmt.Errorf("looking up repository %q: %w", rootURL, err)
		}

		res, err := q.ExecContext(ctx, sqlite.Text(sqlite.StmtInsertRepository), rootURL, uuid)
		if err != nil {
			if isUniqueConstraintError(err) && attempt == 0 {
				continue
			}
			return 0, fmt.Errorf("interning repository %q: %w", rootURL, err)
		}
		id, err = res.LastInsertId()
		if err != nil {
			return 0, fmt.Errorf("interning repository %q: %w", rootURL, err)
		}
		return id, nil
	}
}

// fetchReposInfo resolves a repos_id to (rootURL, uuid). A missing row for
// a referenced id is corruption, not absence.
func fetchReposInfo(ctx context.Context, q querier, reposID int64) (string, string, error) {
	var rootURL, uuid string
	err := q.QueryRowContext(ctx, sqlite.Text(sqlite.StmtSelectRepositoryByID), reposID).
		Scan(&rootURL, &uuid)
	if err == sql.ErrNoRows {
		return "", "", fmt.Errorf("no repository row for id %d: %w", reposID, ErrCorrupt)
	}
	if err != nil {
		return "", "", fmt.Errorf("reading repository %d: %w", reposID, err)
	}
	return rootURL, uuid, nil
}

// scanUpwardsForRepos finds the repository coordinates of a BASE node whose
// own row omits them, by walking toward the wcroot and re-joining the
// stripped path segments onto the nearest ancestor's repos_relpath.
func scanUpwardsForRepos(ctx context.Context, q querier, wcID int64, relpath string) (int64, string, error) {
	current := relpath
	var suffix string
	for {
		b, err := fetchBase(ctx, q, wcID, current)
		if err != nil {
			return 0, "", err
		}
		if b == nil {
			return 0, "", fmt.Errorf("base node %q missing while scanning for repository info: %w",
				current, ErrCorrupt)
		}
		if b.reposID.Valid {
			if !b.reposRelPath.Valid {
				return 0, "", fmt.Errorf("base node %q has repos_id but no repos_relpath: %w",
					current, ErrCorrupt)
			}
			return b.reposID.Int64, relPathJoin(b.reposRelPath.String, suffix), nil
		}
		if current == "" {
			return 0, "", fmt.Errorf("reached wcroot without finding repository info for %q: %w",
				relpath, ErrCorrupt)
		}
		suffix = relPathJoin(relPathBase(current), suffix)
		current = relPathDir(current)
	}
}
