package wc

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestWorkQueueOrder(t *testing.T) {
	engine, root := setupWC(t)
	ctx := context.Background()

	first := &WorkItem{Op: WorkFileRemove, Args: []string{"a"}}
	second := &WorkItem{Op: WorkFileRemove, Args: []string{"b"}}
	if err := engine.WQAdd(ctx, root, first); err != nil {
		t.Fatalf("WQAdd failed: %v", err)
	}
	if err := engine.WQAdd(ctx, root, second); err != nil {
		t.Fatalf("WQAdd failed: %v", err)
	}

	id, item, err := engine.WQFetch(ctx, root)
	if err != nil {
		t.Fatalf("WQFetch failed: %v", err)
	}
	if item == nil || !reflect.DeepEqual(item, first) {
		t.Fatalf("expected first item, got %+v", item)
	}

	// Fetch without completion returns the same item again.
	againID, again, err := engine.WQFetch(ctx, root)
	if err != nil {
		t.Fatalf("WQFetch failed: %v", err)
	}
	if againID != id || !reflect.DeepEqual(again, first) {
		t.Fatalf("fetch is not idempotent: %d %+v", againID, again)
	}

	if err := engine.WQCompleted(ctx, root, id); err != nil {
		t.Fatalf("WQCompleted failed: %v", err)
	}
	_, item, err = engine.WQFetch(ctx, root)
	if err != nil {
		t.Fatalf("WQFetch failed: %v", err)
	}
	if !reflect.DeepEqual(item, second) {
		t.Fatalf("expected second item, got %+v", item)
	}
}

func TestWorkQueueEmpty(t *testing.T) {
	engine, root := setupWC(t)

	id, item, err := engine.WQFetch(context.Background(), root)
	if err != nil {
		t.Fatalf("WQFetch failed: %v", err)
	}
	if id != 0 || item != nil {
		t.Errorf("expected empty queue, got %d %+v", id, item)
	}
}

func TestEnforceEmptyWQ(t *testing.T) {
	engine, root := setupWC(t)
	ctx := context.Background()

	if err := engine.WQAdd(ctx, root, &WorkItem{Op: WorkFileRemove, Args: []string{"x"}}); err != nil {
		t.Fatalf("WQAdd failed: %v", err)
	}
	_ = engine.Close()

	strict := Open(Options{EnforceEmptyWQ: true})
	defer strict.Close()
	_, err := strict.ReadInfo(ctx, root)
	if !errors.Is(err, ErrCleanupRequired) {
		t.Errorf("expected ErrCleanupRequired, got %v", err)
	}

	// Without enforcement the same working copy opens fine.
	relaxed := Open(Options{})
	defer relaxed.Close()
	if _, err := relaxed.ReadInfo(ctx, root); err != nil {
		t.Errorf("relaxed open failed: %v", err)
	}
}

func TestRunWorkQueueReplays(t *testing.T) {
	engine, root := setupWC(t)
	ctx := context.Background()

	// A leftover file the queue says to remove, and a pristine text the
	// queue says to install.
	stray := filepath.Join(root, "stray.tmp")
	if err := os.WriteFile(stray, []byte("x"), 0o644); err != nil {
		t.Fatalf("writing stray file failed: %v", err)
	}
	content := []byte("installed content")
	checksum := installPristineText(t, engine, root, content)

	items := []*WorkItem{
		{Op: WorkFileRemove, Args: []string{"stray.tmp"}},
		{Op: WorkFileInstall, Args: []string{"restored.txt", checksum.String()}},
	}
	for _, item := range items {
		if err := engine.WQAdd(ctx, root, item); err != nil {
			t.Fatalf("WQAdd failed: %v", err)
		}
	}

	if err := engine.RunWorkQueue(ctx, root); err != nil {
		t.Fatalf("RunWorkQueue failed: %v", err)
	}

	if _, err := os.Stat(stray); !os.IsNotExist(err) {
		t.Errorf("stray file should be removed, stat err = %v", err)
	}
	restored, err := os.ReadFile(filepath.Join(root, "restored.txt"))
	if err != nil {
		t.Fatalf("restored file missing: %v", err)
	}
	if string(restored) != string(content) {
		t.Errorf("restored content mismatch: %q", restored)
	}

	// Replay drained the queue.
	_, item, err := engine.WQFetch(ctx, root)
	if err != nil {
		t.Fatalf("WQFetch failed: %v", err)
	}
	if item != nil {
		t.Errorf("queue should be empty after replay, got %+v", item)
	}
}

func TestRunWorkQueueUnknownOp(t *testing.T) {
	engine, root := setupWC(t)
	ctx := context.Background()

	if err := engine.WQAdd(ctx, root, &WorkItem{Op: "defragment-floppy"}); err != nil {
		t.Fatalf("WQAdd failed: %v", err)
	}
	if err := engine.RunWorkQueue(ctx, root); !errors.Is(err, ErrCorrupt) {
		t.Errorf("expected ErrCorrupt for unknown op, got %v", err)
	}
}
