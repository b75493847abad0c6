// Package wc implements the working-copy metadata engine: the administrative
// database that records, for every path under a checkout root, the BASE
// state delivered by the repository, the WORKING state of pending local
// changes, and the ACTUAL overlay of conflicts and changelists.
package wc

import "errors"

// Sentinel errors for every condition the engine surfaces. Callers match
// with errors.Is; messages wrapped around them carry the offending path.
var (
	// ErrNotWorkingCopy means the path is not inside any working copy.
	ErrNotWorkingCopy = errors.New("not a working copy")

	// ErrPathNotFound means the path is inside a working copy but has no row.
	ErrPathNotFound = errors.New("path not found")

	// ErrCorrupt means a cross-table invariant does not hold.
	ErrCorrupt = errors.New("working copy database is corrupt")

	// ErrUnsupportedFormat means the on-disk schema version is outside the
	// window this code can open.
	ErrUnsupportedFormat = errors.New("unsupported working copy format")

	// ErrMissing means an expected administrative file is absent.
	ErrMissing = errors.New("administrative data is missing")

	// ErrCleanupRequired means deferred work items are pending and must be
	// replayed before normal operation resumes.
	ErrCleanupRequired = errors.New("working copy needs cleanup")

	// ErrLocked means another process holds a working-copy lock.
	ErrLocked = errors.New("working copy is locked")

	// ErrBadChecksumKind means a checksum of the wrong digest kind was given.
	ErrBadChecksumKind = errors.New("unexpected checksum kind")

	// ErrChecksumUnknown means no pristine entry exists for the checksum.
	ErrChecksumUnknown = errors.New("pristine text not found")

	// ErrDBError wraps failures reported by the SQL engine.
	ErrDBError = errors.New("database error")

	// ErrUnexpectedStatus means an operation was applied to a node whose
	// current state does not admit it.
	ErrUnexpectedStatus = errors.New("path has an unexpected status")

	// ErrNotImplemented marks operations reserved by this engine revision.
	ErrNotImplemented = errors.New("operation not implemented by this engine revision")
)

// isNotFound matches the two "nothing there" conditions.
func isNotFound(err error) bool {
	return errors.Is(err, ErrPathNotFound) || errors.Is(err, ErrNotWorkingCopy)
}
