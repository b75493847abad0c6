package wc

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/wshe1978/subversion/internal/types"
)

func TestPristineInstallAndRead(t *testing.T) {
	engine, root := setupWC(t)
	ctx := context.Background()

	content := []byte("pristine bytes\n")
	checksum := installPristineText(t, engine, root, content)

	r, size, err := engine.PristineRead(ctx, root, checksum)
	if err != nil {
		t.Fatalf("PristineRead failed: %v", err)
	}
	defer r.Close()

	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("reading pristine stream failed: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Errorf("pristine content mismatch: %q", got)
	}
	if size != int64(len(content)) {
		t.Errorf("recorded size %d, want %d", size, len(content))
	}

	ok, err := engine.PristineCheck(ctx, root, checksum)
	if err != nil || !ok {
		t.Errorf("PristineCheck = %v, %v", ok, err)
	}
}

func TestPristineReadUnknown(t *testing.T) {
	engine, root := setupWC(t)

	checksum, _, err := types.SHA1Checksum(bytes.NewReader([]byte("absent")))
	if err != nil {
		t.Fatalf("SHA1Checksum failed: %v", err)
	}
	_, _, err = engine.PristineRead(context.Background(), root, checksum)
	if !errors.Is(err, ErrChecksumUnknown) {
		t.Errorf("expected ErrChecksumUnknown, got %v", err)
	}
}

func TestPristineRejectsWrongKind(t *testing.T) {
	engine, root := setupWC(t)
	ctx := context.Background()

	md5sum, _, err := types.MD5Checksum(bytes.NewReader([]byte("x")))
	if err != nil {
		t.Fatalf("MD5Checksum failed: %v", err)
	}
	if _, _, err := engine.PristineRead(ctx, root, md5sum); !errors.Is(err, ErrBadChecksumKind) {
		t.Errorf("expected ErrBadChecksumKind for md5, got %v", err)
	}
	if _, _, err := engine.PristineRead(ctx, root, types.Checksum{}); !errors.Is(err, ErrBadChecksumKind) {
		t.Errorf("expected ErrBadChecksumKind for zero checksum, got %v", err)
	}
}

func TestPristineInstallIsIdempotent(t *testing.T) {
	engine, root := setupWC(t)

	content := []byte("same bytes")
	first := installPristineText(t, engine, root, content)
	second := installPristineText(t, engine, root, content)
	if first.String() != second.String() {
		t.Fatalf("checksums differ: %s vs %s", first, second)
	}
}

func TestPristineCleanupSweepsUnreferenced(t *testing.T) {
	engine, root := setupWC(t)
	ctx := context.Background()

	checksum := installPristineText(t, engine, root, []byte("orphan"))

	// Freshly installed texts carry no references yet, so cleanup takes
	// them.
	if err := engine.PristineCleanup(ctx, root); err != nil {
		t.Fatalf("PristineCleanup failed: %v", err)
	}
	ok, err := engine.PristineCheck(ctx, root, checksum)
	if err != nil {
		t.Fatalf("PristineCheck failed: %v", err)
	}
	if ok {
		t.Error("unreferenced pristine should have been swept")
	}
}

func TestPristineSurvivesCleanupWhenReferenced(t *testing.T) {
	engine, root := setupWC(t)
	path := addTestFile(t, engine, root)
	ctx := context.Background()

	content := []byte("kept bytes")
	checksum := installPristineText(t, engine, root, content)
	err := engine.GlobalCommit(ctx, path, &Commit{
		NewRevision: 8,
		NewChecksum: checksum,
	})
	if err != nil {
		t.Fatalf("GlobalCommit failed: %v", err)
	}

	if err := engine.PristineCleanup(ctx, root); err != nil {
		t.Fatalf("PristineCleanup failed: %v", err)
	}
	ok, err := engine.PristineCheck(ctx, root, checksum)
	if err != nil {
		t.Fatalf("PristineCheck failed: %v", err)
	}
	if !ok {
		t.Error("referenced pristine must survive cleanup")
	}
}
