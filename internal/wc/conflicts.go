package wc

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strconv"

	"github.com/wshe1978/subversion/internal/skel"
	"github.com/wshe1978/subversion/internal/storage/sqlite"
	"github.com/wshe1978/subversion/internal/types"
)

// Tree-conflict data is stored on the victim's parent directory row as a
// skeleton list of descriptors:
//
//	((conflict VICTIM KIND OPERATION ACTION REASON LEFT RIGHT) ...)
//
// where LEFT/RIGHT are (version ROOT_URL PEG_REV REPOS_RELPATH KIND) or the
// empty list when that side is unknown.

func conflictVersionToSkel(v *types.ConflictVersion) *skel.Skel {
	if v == nil {
		return skel.MakeList()
	}
	return skel.MakeList(
		skel.MakeAtom("version"),
		skel.MakeAtom(v.RootURL),
		skel.MakeAtom(strconv.FormatInt(v.PegRevision, 10)),
		skel.MakeAtom(v.ReposRelPath),
		skel.MakeAtom(string(v.Kind)),
	)
}

func conflictVersionFromSkel(s *skel.Skel) (*types.ConflictVersion, error) {
	if s == nil || s.IsAtom {
		return nil, fmt.Errorf("%w: conflict version is not a list", skel.ErrMalformed)
	}
	if len(s.List) == 0 {
		return nil, nil
	}
	if len(s.List) != 5 || !s.List[0].MatchesAtom("version") {
		return nil, fmt.Errorf("%w: malformed conflict version", skel.ErrMalformed)
	}
	peg, err := strconv.ParseInt(s.List[2].AtomString(), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: bad peg revision: %v", skel.ErrMalformed, err)
	}
	kind, err := types.ParseNodeKind(s.List[4].AtomString())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", skel.ErrMalformed, err)
	}
	return &types.ConflictVersion{
		RootURL:      s.List[1].AtomString(),
		PegRevision:  peg,
		ReposRelPath: s.List[3].AtomString(),
		Kind:         kind,
	}, nil
}

// writeTreeConflicts serializes a basename-keyed conflict map. Basenames are
// emitted in sorted order for stable output.
func writeTreeConflicts(conflicts map[string]*types.TreeConflict) string {
	names := make([]string, 0, len(conflicts))
	for name := range conflicts {
		names = append(names, name)
	}
	sort.Strings(names)

	top := skel.MakeList()
	for _, name := range names {
		tc := conflicts[name]
		top.List = append(top.List, skel.MakeList(
			skel.MakeAtom("conflict"),
			skel.MakeAtom(tc.VictimBasename),
			skel.MakeAtom(string(tc.Kind)),
			skel.MakeAtom(string(tc.Operation)),
			skel.MakeAtom(string(tc.Action)),
			skel.MakeAtom(string(tc.Reason)),
			conflictVersionToSkel(tc.SrcLeft),
			conflictVersionToSkel(tc.SrcRight),
		))
	}
	return string(skel.Unparse(top))
}

// readTreeConflicts deserializes tree-conflict data into a basename-keyed
// map. Empty input yields an empty map.
func readTreeConflicts(data string) (map[string]*types.TreeConflict, error) {
	conflicts := make(map[string]*types.TreeConflict)
	if data == "" {
		return conflicts, nil
	}
	top, err := skel.Parse([]byte(data))
	if err != nil {
		return nil, err
	}
	if top.IsAtom {
		return nil, fmt.Errorf("%w: conflict data is not a list", skel.ErrMalformed)
	}
	for _, entry := range top.List {
		if entry.IsAtom || len(entry.List) != 8 || !entry.List[0].MatchesAtom("conflict") {
			return nil, fmt.Errorf("%w: malformed conflict descriptor", skel.ErrMalformed)
		}
		kind, err := types.ParseNodeKind(entry.List[2].AtomString())
		if err != nil {
			return nil, fmt.Errorf("%w: %v", skel.ErrMalformed, err)
		}
		left, err := conflictVersionFromSkel(entry.List[6])
		if err != nil {
			return nil, err
		}
		right, err := conflictVersionFromSkel(entry.List[7])
		if err != nil {
			return nil, err
		}
		tc := &types.TreeConflict{
			VictimBasename: entry.List[1].AtomString(),
			Kind:           kind,
			Operation:      types.ConflictOperation(entry.List[3].AtomString()),
			Action:         types.ConflictAction(entry.List[4].AtomString()),
			Reason:         types.ConflictReason(entry.List[5].AtomString()),
			SrcLeft:        left,
			SrcRight:       right,
		}
		if err := tc.Validate(); err != nil {
			return nil, fmt.Errorf("%w: %v", skel.ErrMalformed, err)
		}
		conflicts[tc.VictimBasename] = tc
	}
	return conflicts, nil
}

// fetchTreeConflictMap loads the conflict map stored on dirRelPath's ACTUAL
// row. An absent row or null column yields an empty map.
func fetchTreeConflictMap(ctx context.Context, q querier, wcID int64, dirRelPath string) (map[string]*types.TreeConflict, error) {
	a, err := fetchActual(ctx, q, wcID, dirRelPath)
	if err != nil {
		return nil, err
	}
	if a == nil || !a.treeConflictData.Valid {
		return map[string]*types.TreeConflict{}, nil
	}
	m, err := readTreeConflicts(a.treeConflictData.String)
	if err != nil {
		return nil, fmt.Errorf("tree conflict data of %q: %v: %w", dirRelPath, err, ErrCorrupt)
	}
	return m, nil
}

// OpSetTreeConflict records (or, with a nil conflict, removes) the tree
// conflict whose victim is localAbsPath. The descriptor lives on the parent
// directory's ACTUAL row, keyed by the victim's basename.
func (db *DB) OpSetTreeConflict(ctx context.Context, localAbsPath string, conflict *types.TreeConflict) error {
	h, relpath, err := db.parseLocalAbsPath(ctx, localAbsPath)
	if err != nil {
		return err
	}
	if relpath == "" {
		return fmt.Errorf("cannot record a tree conflict on the wcroot %q: %w", localAbsPath, ErrUnexpectedStatus)
	}
	if conflict != nil {
		if err := conflict.Validate(); err != nil {
			return err
		}
	}
	dirRelPath := relPathDir(relpath)
	basename := relPathBase(relpath)

	err = h.root.store.WithTx(ctx, func(tx *sql.Tx) error {
		conflicts, err := fetchTreeConflictMap(ctx, tx, h.root.id, dirRelPath)
		if err != nil {
			return err
		}
		if conflict == nil {
			if _, present := conflicts[basename]; !present {
				return nil // nothing to remove
			}
			delete(conflicts, basename)
		} else {
			c := *conflict
			c.VictimBasename = basename
			conflicts[basename] = &c
		}

		var data sql.NullString
		if len(conflicts) > 0 {
			data = sql.NullString{String: writeTreeConflicts(conflicts), Valid: true}
		}
		if err := upsertActualColumn(ctx, tx, h.root.id, dirRelPath,
			sqlite.StmtUpdateActualTreeConflict, data); err != nil {
			return err
		}
		if !data.Valid {
			return maybePruneActual(ctx, tx, h.root.id, dirRelPath)
		}
		return nil
	})
	if err != nil {
		return err
	}
	db.flushEntries(h)
	return nil
}

// OpReadTreeConflict returns the tree conflict recorded for localAbsPath,
// or nil when there is none.
func (db *DB) OpReadTreeConflict(ctx context.Context, localAbsPath string) (*types.TreeConflict, error) {
	h, relpath, err := db.parseLocalAbsPath(ctx, localAbsPath)
	if err != nil {
		return nil, err
	}
	if relpath == "" {
		return nil, nil // the wcroot has no parent to hold one
	}
	conflicts, err := fetchTreeConflictMap(ctx, h.root.store.DB(), h.root.id, relPathDir(relpath))
	if err != nil {
		return nil, err
	}
	return conflicts[relPathBase(relpath)], nil
}

// ReadConflictVictims lists the basenames carrying tree conflicts below the
// directory at localAbsPath.
func (db *DB) ReadConflictVictims(ctx context.Context, localAbsPath string) ([]string, error) {
	h, relpath, err := db.parseLocalAbsPath(ctx, localAbsPath)
	if err != nil {
		return nil, err
	}
	conflicts, err := fetchTreeConflictMap(ctx, h.root.store.DB(), h.root.id, relpath)
	if err != nil {
		return nil, err
	}
	victims := make([]string, 0, len(conflicts))
	for name := range conflicts {
		victims = append(victims, name)
	}
	sort.Strings(victims)
	return victims, nil
}
