package wc

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/wshe1978/subversion/internal/debug"
	"github.com/wshe1978/subversion/internal/skel"
	"github.com/wshe1978/subversion/internal/storage/sqlite"
	"github.com/wshe1978/subversion/internal/types"
)

// WorkItem is one deferred filesystem operation, serialized as a skeleton
// list (op-name arg...). Items survive crashes and replay in insertion
// order.
type WorkItem struct {
	Op   string
	Args []string
}

// Shipped work-queue operations.
const (
	// WorkFileInstall copies a pristine text into the working tree:
	// args are (relpath, checksum).
	WorkFileInstall = "file-install"
	// WorkFileRemove deletes a file from the working tree: args (relpath).
	WorkFileRemove = "file-remove"
	// WorkTempRemove deletes a staging file: args (relpath under tmp).
	WorkTempRemove = "temp-remove"
)

func (w *WorkItem) serialize() []byte {
	list := skel.MakeList(skel.MakeAtom(w.Op))
	for _, arg := range w.Args {
		list.List = append(list.List, skel.MakeAtom(arg))
	}
	return skel.Unparse(list)
}

func parseWorkItem(data []byte) (*WorkItem, error) {
	s, err := skel.Parse(data)
	if err != nil {
		return nil, err
	}
	if s.IsAtom || len(s.List) == 0 || !s.List[0].IsAtom {
		return nil, fmt.Errorf("%w: work item is not an operation list", skel.ErrMalformed)
	}
	item := &WorkItem{Op: s.List[0].AtomString()}
	for _, arg := range s.List[1:] {
		if !arg.IsAtom {
			return nil, fmt.Errorf("%w: work item argument is not an atom", skel.ErrMalformed)
		}
		item.Args = append(item.Args, arg.AtomString())
	}
	return item, nil
}

// WQAdd appends a work item to the queue.
func (db *DB) WQAdd(ctx context.Context, wriAbsPath string, item *WorkItem) error {
	h, _, err := db.parseLocalAbsPath(ctx, wriAbsPath)
	if err != nil {
		return err
	}
	_, err = h.root.store.DB().ExecContext(ctx, sqlite.Text(sqlite.StmtInsertWorkItem), item.serialize())
	if err != nil {
		return fmt.Errorf("queueing work item %q: %w", item.Op, err)
	}
	return nil
}

// WQFetch returns the lowest-id pending item, or (0, nil) when the queue is
// empty.
func (db *DB) WQFetch(ctx context.Context, wriAbsPath string) (int64, *WorkItem, error) {
	h, _, err := db.parseLocalAbsPath(ctx, wriAbsPath)
	if err != nil {
		return 0, nil, err
	}
	var id int64
	var blob []byte
	err = h.root.store.DB().QueryRowContext(ctx, sqlite.Text(sqlite.StmtSelectWorkItem)).Scan(&id, &blob)
	if err == sql.ErrNoRows {
		return 0, nil, nil
	}
	if err != nil {
		return 0, nil, fmt.Errorf("fetching work item: %w", err)
	}
	item, err := parseWorkItem(blob)
	if err != nil {
		return 0, nil, fmt.Errorf("work item %d: %v: %w", id, err, ErrCorrupt)
	}
	return id, item, nil
}

// WQCompleted removes a finished item by id.
func (db *DB) WQCompleted(ctx context.Context, wriAbsPath string, id int64) error {
	h, _, err := db.parseLocalAbsPath(ctx, wriAbsPath)
	if err != nil {
		return err
	}
	if _, err := h.root.store.DB().ExecContext(ctx, sqlite.Text(sqlite.StmtDeleteWorkItem), id); err != nil {
		return fmt.Errorf("completing work item %d: %w", id, err)
	}
	return nil
}

// RunWorkQueue replays every pending item in order, deleting each one as it
// finishes. The engine must have been opened without EnforceEmptyWQ.
func (db *DB) RunWorkQueue(ctx context.Context, wriAbsPath string) error {
	for {
		id, item, err := db.WQFetch(ctx, wriAbsPath)
		if err != nil {
			return err
		}
		if item == nil {
			return nil
		}
		debug.Logf("wc: replaying work item %d (%s)\n", id, item.Op)
		if err := db.runWorkItem(ctx, wriAbsPath, item); err != nil {
			return fmt.Errorf("replaying work item %d (%s): %w", id, item.Op, err)
		}
		if err := db.WQCompleted(ctx, wriAbsPath, id); err != nil {
			return err
		}
	}
}

func (db *DB) runWorkItem(ctx context.Context, wriAbsPath string, item *WorkItem) error {
	h, _, err := db.parseLocalAbsPath(ctx, wriAbsPath)
	if err != nil {
		return err
	}
	switch item.Op {
	case WorkFileInstall:
		if len(item.Args) != 2 {
			return fmt.Errorf("file-install wants 2 args, have %d: %w", len(item.Args), ErrCorrupt)
		}
		checksum, err := types.ParseChecksum(item.Args[1])
		if err != nil {
			return fmt.Errorf("file-install: %v: %w", err, ErrCorrupt)
		}
		return installFile(h.root, item.Args[0], checksum)

	case WorkFileRemove:
		if len(item.Args) != 1 {
			return fmt.Errorf("file-remove wants 1 arg, have %d: %w", len(item.Args), ErrCorrupt)
		}
		target := filepath.Join(h.root.absPath, filepath.FromSlash(item.Args[0]))
		if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
			return err
		}
		return nil

	case WorkTempRemove:
		if len(item.Args) != 1 {
			return fmt.Errorf("temp-remove wants 1 arg, have %d: %w", len(item.Args), ErrCorrupt)
		}
		target := adminPath(h.root.absPath, tempDirName, item.Args[0])
		if err := os.Remove(target); err != nil && !os.IsNotExist(err) {
			return err
		}
		return nil

	default:
		// Unknown ops are fatal: skipping one could leave the tree in a
		// state later items do not expect.
		return fmt.Errorf("unknown work item operation %q: %w", item.Op, ErrCorrupt)
	}
}

// installFile copies the pristine text for checksum over the working file.
func installFile(root *wcRoot, relpath string, checksum types.Checksum) error {
	src, err := os.Open(pristinePath(root, checksum))
	if err != nil {
		return fmt.Errorf("pristine %s: %w", checksum, err)
	}
	defer src.Close()

	target := filepath.Join(root.absPath, filepath.FromSlash(relpath))
	tmp, err := os.CreateTemp(adminPath(root.absPath, tempDirName), "install-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := io.Copy(tmp, src); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, target)
}
