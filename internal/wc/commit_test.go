package wc

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/wshe1978/subversion/internal/types"
)

// installPristineText stages content through the tempdir and installs it,
// returning its checksum.
func installPristineText(t *testing.T, engine *DB, root string, content []byte) types.Checksum {
	t.Helper()
	ctx := context.Background()

	tempDir, err := engine.PristineTempDir(ctx, root)
	if err != nil {
		t.Fatalf("PristineTempDir failed: %v", err)
	}
	tmp, err := os.CreateTemp(tempDir, "pristine-*")
	if err != nil {
		t.Fatalf("CreateTemp failed: %v", err)
	}
	if _, err := tmp.Write(content); err != nil {
		t.Fatalf("writing staged content failed: %v", err)
	}
	if err := tmp.Close(); err != nil {
		t.Fatalf("closing staged file failed: %v", err)
	}

	checksum, _, err := types.SHA1Checksum(bytes.NewReader(content))
	if err != nil {
		t.Fatalf("SHA1Checksum failed: %v", err)
	}
	if err := engine.PristineInstall(ctx, tmp.Name(), checksum, types.Checksum{}); err != nil {
		t.Fatalf("PristineInstall failed: %v", err)
	}
	return checksum
}

func TestGlobalCommit(t *testing.T) {
	engine, root := setupWC(t)
	path := addTestFile(t, engine, root)
	ctx := context.Background()

	content := []byte("hello world!")
	checksum := installPristineText(t, engine, root, content)

	props := map[string]string{"svn:eol-style": "native"}
	if err := engine.OpSetProps(ctx, path, props); err != nil {
		t.Fatalf("OpSetProps failed: %v", err)
	}

	err := engine.GlobalCommit(ctx, path, &Commit{
		NewRevision:   8,
		ChangedDate:   1234567890,
		ChangedAuthor: "carol",
		NewChecksum:   checksum,
	})
	if err != nil {
		t.Fatalf("GlobalCommit failed: %v", err)
	}

	base, err := engine.BaseGetInfo(ctx, path)
	if err != nil {
		t.Fatalf("BaseGetInfo failed: %v", err)
	}
	if base.Revision != 8 {
		t.Errorf("expected revision 8, got %d", base.Revision)
	}
	if base.ChangedAuthor != "carol" {
		t.Errorf("expected author carol, got %q", base.ChangedAuthor)
	}
	if base.Checksum.String() != checksum.String() {
		t.Errorf("expected checksum %s, got %s", checksum, base.Checksum)
	}
	if base.TranslatedSize != int64(len(content)) {
		t.Errorf("expected size %d, got %d", len(content), base.TranslatedSize)
	}

	info, err := engine.ReadInfo(ctx, path)
	if err != nil {
		t.Fatalf("ReadInfo failed: %v", err)
	}
	if info.HaveWorking {
		t.Error("working row should be consumed by commit")
	}
	if info.Status != types.StatusNormal {
		t.Errorf("expected normal after commit, got %q", info.Status)
	}

	// The property override was folded into BASE and the ACTUAL row
	// reclaimed.
	committed, err := engine.ReadProps(ctx, path)
	if err != nil {
		t.Fatalf("ReadProps failed: %v", err)
	}
	if !reflect.DeepEqual(committed, props) {
		t.Errorf("expected committed props %v, got %v", props, committed)
	}
	pristine, err := engine.ReadPristineProps(ctx, path)
	if err != nil {
		t.Fatalf("ReadPristineProps failed: %v", err)
	}
	if !reflect.DeepEqual(pristine, props) {
		t.Errorf("expected base props %v, got %v", props, pristine)
	}
}

func TestGlobalCommitKeepChangelist(t *testing.T) {
	engine, root := setupWC(t)
	path := addTestFile(t, engine, root)
	ctx := context.Background()

	if err := engine.OpSetChangelist(ctx, path, "review"); err != nil {
		t.Fatalf("OpSetChangelist failed: %v", err)
	}
	if err := engine.OpSetProps(ctx, path, map[string]string{"k": "v"}); err != nil {
		t.Fatalf("OpSetProps failed: %v", err)
	}

	err := engine.GlobalCommit(ctx, path, &Commit{
		NewRevision:    8,
		ChangedAuthor:  "carol",
		KeepChangelist: true,
	})
	if err != nil {
		t.Fatalf("GlobalCommit failed: %v", err)
	}

	info, err := engine.ReadInfo(ctx, path)
	if err != nil {
		t.Fatalf("ReadInfo failed: %v", err)
	}
	if info.Changelist != "review" {
		t.Errorf("changelist should survive commit, got %q", info.Changelist)
	}
	if info.Conflicted {
		t.Error("conflict markers should not survive commit")
	}
}

func TestGlobalCommitUnknownChecksum(t *testing.T) {
	engine, root := setupWC(t)
	path := addTestFile(t, engine, root)

	checksum, _, err := types.SHA1Checksum(bytes.NewReader([]byte("never installed")))
	if err != nil {
		t.Fatalf("SHA1Checksum failed: %v", err)
	}
	err = engine.GlobalCommit(context.Background(), path, &Commit{
		NewRevision: 8,
		NewChecksum: checksum,
	})
	if err == nil {
		t.Fatal("commit with uninstalled text should fail")
	}
}

func TestGlobalRelocate(t *testing.T) {
	engine, root := setupWC(t)
	path := addTestFile(t, engine, root)
	ctx := context.Background()

	if err := engine.GlobalRelocate(ctx, root, "https://x/"); err != nil {
		t.Fatalf("GlobalRelocate failed: %v", err)
	}

	base, err := engine.BaseGetInfo(ctx, path)
	if err != nil {
		t.Fatalf("BaseGetInfo failed: %v", err)
	}
	if base.ReposRootURL != "https://x/" {
		t.Errorf("expected relocated URL, got %q", base.ReposRootURL)
	}
	if base.ReposUUID != testUUID {
		t.Errorf("uuid must not change on relocate, got %q", base.ReposUUID)
	}
	if base.ReposRelPath != "trunk/a.txt" {
		t.Errorf("repos relpath must not change, got %q", base.ReposRelPath)
	}

	// Relocating to the current URL is a no-op, not an error.
	if err := engine.GlobalRelocate(ctx, root, "https://x/"); err != nil {
		t.Fatalf("idempotent relocate failed: %v", err)
	}
}

func TestGlobalCommitNoNode(t *testing.T) {
	engine, root := setupWC(t)

	err := engine.GlobalCommit(context.Background(), filepath.Join(root, "ghost"), &Commit{NewRevision: 8})
	if err == nil {
		t.Fatal("committing an unversioned path should fail")
	}
}
