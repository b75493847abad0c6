package wc

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/wshe1978/subversion/internal/storage/sqlite"
	"github.com/wshe1978/subversion/internal/types"
)

const (
	testRootURL = "http://x/"
	testUUID    = "U"
	emptySHA1   = "sha1$da39a3ee5e6b4b0d3255bfef95601890afd80709"
)

// setupWC creates a fresh working copy checked out from trunk at revision 7
// and returns the engine plus the root path.
func setupWC(t *testing.T) (*DB, string) {
	t.Helper()
	root := t.TempDir()
	engine := Open(Options{})
	t.Cleanup(func() { _ = engine.Close() })

	err := engine.Init(context.Background(), root, &InitArgs{
		ReposRelPath: "trunk",
		ReposRootURL: testRootURL,
		ReposUUID:    testUUID,
		InitialRev:   7,
		Depth:        types.DepthInfinity,
	})
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	return engine, root
}

// addTestFile installs the canonical BASE file row used across scenarios.
func addTestFile(t *testing.T, engine *DB, root string) string {
	t.Helper()
	checksum, err := types.ParseChecksum(emptySHA1)
	if err != nil {
		t.Fatalf("ParseChecksum failed: %v", err)
	}
	path := filepath.Join(root, "a.txt")
	err = engine.BaseAddFile(context.Background(), path, &BaseNode{
		ReposRelPath:  "trunk/a.txt",
		ReposRootURL:  testRootURL,
		ReposUUID:     testUUID,
		Revision:      7,
		Props:         map[string]string{},
		ChangedRev:    7,
		ChangedDate:   0,
		ChangedAuthor: "bob",
		Checksum:      checksum,
	})
	if err != nil {
		t.Fatalf("BaseAddFile failed: %v", err)
	}
	return path
}

// openRaw opens a second connection to a working copy's database for test
// injections the public API does not perform.
func openRaw(t *testing.T, root string) *sqlite.Store {
	t.Helper()
	store, err := sqlite.Open(context.Background(), dbPath(root), sqlite.OpenOptions{})
	if err != nil {
		t.Fatalf("failed to open raw store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestCheckoutAndRead(t *testing.T) {
	engine, root := setupWC(t)
	path := addTestFile(t, engine, root)
	ctx := context.Background()

	info, err := engine.ReadInfo(ctx, path)
	if err != nil {
		t.Fatalf("ReadInfo failed: %v", err)
	}
	if info.Status != types.StatusNormal {
		t.Errorf("expected status normal, got %q", info.Status)
	}
	if info.Kind != types.KindFile {
		t.Errorf("expected kind file, got %q", info.Kind)
	}
	if info.Revision != 7 {
		t.Errorf("expected revision 7, got %d", info.Revision)
	}
	if info.ReposRootURL != testRootURL || info.ReposUUID != testUUID {
		t.Errorf("unexpected repository info: %q %q", info.ReposRootURL, info.ReposUUID)
	}
	if info.ChangedAuthor != "bob" {
		t.Errorf("expected author bob, got %q", info.ChangedAuthor)
	}
	if info.Conflicted {
		t.Error("fresh file should not be conflicted")
	}

	children, err := engine.ReadChildren(ctx, root)
	if err != nil {
		t.Fatalf("ReadChildren failed: %v", err)
	}
	if !reflect.DeepEqual(children, []string{"a.txt"}) {
		t.Errorf("expected [a.txt], got %v", children)
	}
}

func TestReadInfoNotFound(t *testing.T) {
	engine, root := setupWC(t)

	_, err := engine.ReadInfo(context.Background(), filepath.Join(root, "nope.txt"))
	if !errors.Is(err, ErrPathNotFound) {
		t.Errorf("expected ErrPathNotFound, got %v", err)
	}
}

func TestNotWorkingCopy(t *testing.T) {
	engine := Open(Options{})
	defer engine.Close()

	outside := t.TempDir()
	_, err := engine.ReadInfo(context.Background(), filepath.Join(outside, "f"))
	if !errors.Is(err, ErrNotWorkingCopy) {
		t.Errorf("expected ErrNotWorkingCopy, got %v", err)
	}
}

func TestRootInfo(t *testing.T) {
	engine, root := setupWC(t)
	ctx := context.Background()

	// A root checked out at a real revision awaits population.
	info, err := engine.ReadInfo(ctx, root)
	if err != nil {
		t.Fatalf("ReadInfo on root failed: %v", err)
	}
	if info.Status != types.StatusIncomplete {
		t.Errorf("expected incomplete root, got %q", info.Status)
	}
	if info.Kind != types.KindDir {
		t.Errorf("expected dir, got %q", info.Kind)
	}

	isRoot, err := engine.IsWCRoot(ctx, root)
	if err != nil || !isRoot {
		t.Errorf("IsWCRoot(root) = %v, %v", isRoot, err)
	}
}

func TestBaseAddDirectoryWithChildren(t *testing.T) {
	engine, root := setupWC(t)
	ctx := context.Background()

	dir := filepath.Join(root, "sub")
	err := engine.BaseAddDirectory(ctx, dir, &BaseNode{
		ReposRelPath:  "trunk/sub",
		ReposRootURL:  testRootURL,
		ReposUUID:     testUUID,
		Revision:      7,
		ChangedRev:    7,
		ChangedAuthor: "bob",
		Depth:         types.DepthInfinity,
		Children:      []string{"x", "y"},
	})
	if err != nil {
		t.Fatalf("BaseAddDirectory failed: %v", err)
	}

	children, err := engine.BaseGetChildren(ctx, dir)
	if err != nil {
		t.Fatalf("BaseGetChildren failed: %v", err)
	}
	if !reflect.DeepEqual(children, []string{"x", "y"}) {
		t.Errorf("expected [x y], got %v", children)
	}

	// Placeholders await content from the update editor.
	info, err := engine.ReadInfo(ctx, filepath.Join(dir, "x"))
	if err != nil {
		t.Fatalf("ReadInfo on placeholder failed: %v", err)
	}
	if info.Status != types.StatusIncomplete {
		t.Errorf("expected incomplete placeholder, got %q", info.Status)
	}
}

func TestBaseRemove(t *testing.T) {
	engine, root := setupWC(t)
	path := addTestFile(t, engine, root)
	ctx := context.Background()

	if err := engine.BaseRemove(ctx, path); err != nil {
		t.Fatalf("BaseRemove failed: %v", err)
	}
	if _, err := engine.ReadInfo(ctx, path); !errors.Is(err, ErrPathNotFound) {
		t.Errorf("expected ErrPathNotFound after removal, got %v", err)
	}
	if err := engine.BaseRemove(ctx, path); !errors.Is(err, ErrPathNotFound) {
		t.Errorf("double remove should report ErrPathNotFound, got %v", err)
	}
}

func TestBaseAddAbsentNode(t *testing.T) {
	engine, root := setupWC(t)
	ctx := context.Background()

	secret := filepath.Join(root, "secret")
	err := engine.BaseAddAbsentNode(ctx, secret, &BaseNode{
		ReposRelPath: "trunk/secret",
		ReposRootURL: testRootURL,
		ReposUUID:    testUUID,
		Revision:     7,
	}, types.KindFile, types.PresenceAbsent)
	if err != nil {
		t.Fatalf("BaseAddAbsentNode failed: %v", err)
	}

	info, err := engine.ReadInfo(ctx, secret)
	if err != nil {
		t.Fatalf("ReadInfo failed: %v", err)
	}
	if info.Status != types.StatusAbsent {
		t.Errorf("expected absent, got %q", info.Status)
	}

	// A live presence is not an absent-class presence.
	err = engine.BaseAddAbsentNode(ctx, secret, &BaseNode{
		ReposRelPath: "trunk/secret",
		ReposRootURL: testRootURL,
		ReposUUID:    testUUID,
	}, types.KindFile, types.PresenceNormal)
	if !errors.Is(err, ErrUnexpectedStatus) {
		t.Errorf("expected ErrUnexpectedStatus, got %v", err)
	}
}

func TestPropsOverrideAndResolve(t *testing.T) {
	engine, root := setupWC(t)
	path := addTestFile(t, engine, root)
	ctx := context.Background()

	want := map[string]string{"svn:eol-style": "native"}
	if err := engine.OpSetProps(ctx, path, want); err != nil {
		t.Fatalf("OpSetProps failed: %v", err)
	}

	props, err := engine.ReadProps(ctx, path)
	if err != nil {
		t.Fatalf("ReadProps failed: %v", err)
	}
	if !reflect.DeepEqual(props, want) {
		t.Errorf("expected %v, got %v", want, props)
	}

	pristine, err := engine.ReadPristineProps(ctx, path)
	if err != nil {
		t.Fatalf("ReadPristineProps failed: %v", err)
	}
	if len(pristine) != 0 {
		t.Errorf("expected empty pristine props, got %v", pristine)
	}

	if err := engine.OpMarkResolved(ctx, path, false, true, false); err != nil {
		t.Fatalf("OpMarkResolved failed: %v", err)
	}
	info, err := engine.ReadInfo(ctx, path)
	if err != nil {
		t.Fatalf("ReadInfo failed: %v", err)
	}
	if info.Conflicted {
		t.Error("node should not be conflicted after resolve")
	}

	// Resolution converges: a second identical call changes nothing.
	if err := engine.OpMarkResolved(ctx, path, true, true, false); err != nil {
		t.Fatalf("first full resolve failed: %v", err)
	}
	if err := engine.OpMarkResolved(ctx, path, true, true, false); err != nil {
		t.Fatalf("second full resolve failed: %v", err)
	}

	props, err = engine.ReadProps(ctx, path)
	if err != nil {
		t.Fatalf("ReadProps after resolve failed: %v", err)
	}
	if !reflect.DeepEqual(props, want) {
		t.Errorf("resolve should not touch the property override: %v", props)
	}
}

func TestOpSetPropsClearsOverride(t *testing.T) {
	engine, root := setupWC(t)
	path := addTestFile(t, engine, root)
	ctx := context.Background()

	if err := engine.OpSetProps(ctx, path, map[string]string{"k": "v"}); err != nil {
		t.Fatalf("OpSetProps failed: %v", err)
	}
	if err := engine.OpSetProps(ctx, path, nil); err != nil {
		t.Fatalf("clearing props failed: %v", err)
	}
	props, err := engine.ReadProps(ctx, path)
	if err != nil {
		t.Fatalf("ReadProps failed: %v", err)
	}
	if len(props) != 0 {
		t.Errorf("expected pristine (empty) props after clear, got %v", props)
	}
}

func TestOpSetPropsUnversioned(t *testing.T) {
	engine, root := setupWC(t)

	err := engine.OpSetProps(context.Background(), filepath.Join(root, "ghost"), map[string]string{"k": "v"})
	if !errors.Is(err, ErrPathNotFound) {
		t.Errorf("expected ErrPathNotFound, got %v", err)
	}
}

func TestOpSetChangelist(t *testing.T) {
	engine, root := setupWC(t)
	path := addTestFile(t, engine, root)
	ctx := context.Background()

	if err := engine.OpSetChangelist(ctx, path, "review"); err != nil {
		t.Fatalf("OpSetChangelist failed: %v", err)
	}
	info, err := engine.ReadInfo(ctx, path)
	if err != nil {
		t.Fatalf("ReadInfo failed: %v", err)
	}
	if info.Changelist != "review" {
		t.Errorf("expected changelist review, got %q", info.Changelist)
	}

	if err := engine.OpSetChangelist(ctx, path, ""); err != nil {
		t.Fatalf("clearing changelist failed: %v", err)
	}
	info, err = engine.ReadInfo(ctx, path)
	if err != nil {
		t.Fatalf("ReadInfo failed: %v", err)
	}
	if info.Changelist != "" {
		t.Errorf("expected no changelist, got %q", info.Changelist)
	}
}

func TestActualWithoutNodeIsCorrupt(t *testing.T) {
	engine, root := setupWC(t)
	ctx := context.Background()

	raw := openRaw(t, root)
	_, err := raw.DB().ExecContext(ctx, `
		INSERT INTO actual_node (wc_id, local_relpath, parent_relpath, changelist)
		VALUES (1, 'ghost', '', 'cl')`)
	if err != nil {
		t.Fatalf("injection failed: %v", err)
	}

	_, err = engine.ReadInfo(ctx, filepath.Join(root, "ghost"))
	if !errors.Is(err, ErrCorrupt) {
		t.Errorf("expected ErrCorrupt for actual-only node, got %v", err)
	}
}

func TestNotImplementedOperations(t *testing.T) {
	engine, root := setupWC(t)
	ctx := context.Background()
	path := filepath.Join(root, "x")

	for name, err := range map[string]error{
		"op_copy":          engine.OpCopy(ctx, path, path+"2"),
		"op_add_directory": engine.OpAddDirectory(ctx, path),
		"op_add_file":      engine.OpAddFile(ctx, path),
		"op_add_symlink":   engine.OpAddSymlink(ctx, path, "t"),
		"op_delete":        engine.OpDelete(ctx, path),
		"op_revert":        engine.OpRevert(ctx, path),
		"op_move":          engine.OpMove(ctx, path, path+"2"),
	} {
		if !errors.Is(err, ErrNotImplemented) {
			t.Errorf("%s: expected ErrNotImplemented, got %v", name, err)
		}
	}
}

func TestSchemaGuardNewer(t *testing.T) {
	engine, root := setupWC(t)
	_ = engine.Close()

	raw := openRaw(t, root)
	if _, err := raw.DB().Exec("PRAGMA user_version = 16"); err != nil {
		t.Fatalf("bumping version failed: %v", err)
	}
	_ = raw.Close()

	fresh := Open(Options{})
	defer fresh.Close()
	_, err := fresh.ReadInfo(context.Background(), filepath.Join(root, "a.txt"))
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("expected ErrUnsupportedFormat for newer schema, got %v", err)
	}
}

func TestSchemaGuardPreModern(t *testing.T) {
	engine, root := setupWC(t)
	_ = engine.Close()

	raw := openRaw(t, root)
	if _, err := raw.DB().Exec("PRAGMA user_version = 3"); err != nil {
		t.Fatalf("bumping version failed: %v", err)
	}
	_ = raw.Close()

	fresh := Open(Options{})
	defer fresh.Close()
	_, err := fresh.ReadInfo(context.Background(), filepath.Join(root, "a.txt"))
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("expected ErrUnsupportedFormat for pre-modern schema, got %v", err)
	}
}

func TestAutoUpgradeReopensOlderFormat(t *testing.T) {
	engine, root := setupWC(t)
	_ = engine.Close()

	raw := openRaw(t, root)
	if _, err := raw.DB().Exec("PRAGMA user_version = 12"); err != nil {
		t.Fatalf("re-stamping failed: %v", err)
	}
	_ = raw.Close()

	// Without auto-upgrade the open is refused.
	strict := Open(Options{})
	_, err := strict.ReadInfo(context.Background(), filepath.Join(root, "a.txt"))
	_ = strict.Close()
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat without auto-upgrade, got %v", err)
	}

	upgrading := Open(Options{AutoUpgrade: true})
	defer upgrading.Close()
	if _, err := upgrading.ReadInfo(context.Background(), root); err != nil {
		t.Fatalf("auto-upgrade open failed: %v", err)
	}
}
