package wc

import (
	"context"
	"reflect"
	"testing"

	"github.com/wshe1978/subversion/internal/types"
)

func testConflict() *types.TreeConflict {
	return &types.TreeConflict{
		VictimBasename: "a.txt",
		Kind:           types.KindFile,
		Operation:      types.OperationUpdate,
		Action:         types.ActionDeleted,
		Reason:         types.ReasonEdited,
		SrcLeft: &types.ConflictVersion{
			RootURL:      testRootURL,
			PegRevision:  7,
			ReposRelPath: "trunk/a.txt",
			Kind:         types.KindFile,
		},
		SrcRight: &types.ConflictVersion{
			RootURL:      testRootURL,
			PegRevision:  8,
			ReposRelPath: "trunk/a.txt",
			Kind:         types.KindFile,
		},
	}
}

func TestTreeConflictSerializationRoundTrip(t *testing.T) {
	conflicts := map[string]*types.TreeConflict{
		"a.txt": testConflict(),
		"b dir": {
			VictimBasename: "b dir",
			Kind:           types.KindDir,
			Operation:      types.OperationMerge,
			Action:         types.ActionAdded,
			Reason:         types.ReasonObstructed,
		},
	}
	data := writeTreeConflicts(conflicts)
	back, err := readTreeConflicts(data)
	if err != nil {
		t.Fatalf("readTreeConflicts failed: %v", err)
	}
	if !reflect.DeepEqual(conflicts, back) {
		t.Errorf("round trip changed conflicts:\n%+v\nvs\n%+v", conflicts, back)
	}

	// Serialization is canonical: parse + rewrite reproduces the bytes.
	if rewritten := writeTreeConflicts(back); rewritten != data {
		t.Errorf("serialization is not stable:\n%q\nvs\n%q", data, rewritten)
	}
}

func TestTreeConflictMalformed(t *testing.T) {
	cases := []string{
		"5 atom",
		"((4 oops))",
		"((8 conflict 1 a 4 file 6 update 7 deleted 6 edited ()))",
		"((8 conflict 1 a 4 file 8 teleport 7 deleted 6 edited () ()))",
	}
	for _, input := range cases {
		if _, err := readTreeConflicts(input); err == nil {
			t.Errorf("readTreeConflicts(%q) should have failed", input)
		}
	}
}

func TestOpSetTreeConflict(t *testing.T) {
	engine, root := setupWC(t)
	path := addTestFile(t, engine, root)
	ctx := context.Background()

	want := testConflict()
	if err := engine.OpSetTreeConflict(ctx, path, want); err != nil {
		t.Fatalf("OpSetTreeConflict failed: %v", err)
	}

	got, err := engine.OpReadTreeConflict(ctx, path)
	if err != nil {
		t.Fatalf("OpReadTreeConflict failed: %v", err)
	}
	if !reflect.DeepEqual(want, got) {
		t.Errorf("conflict changed in storage:\n%+v\nvs\n%+v", want, got)
	}

	// The victim reports conflicted through read_info.
	info, err := engine.ReadInfo(ctx, path)
	if err != nil {
		t.Fatalf("ReadInfo failed: %v", err)
	}
	if !info.Conflicted {
		t.Error("tree conflict victim should report conflicted")
	}

	victims, err := engine.ReadConflictVictims(ctx, root)
	if err != nil {
		t.Fatalf("ReadConflictVictims failed: %v", err)
	}
	if !reflect.DeepEqual(victims, []string{"a.txt"}) {
		t.Errorf("expected [a.txt], got %v", victims)
	}
}

func TestOpSetTreeConflictRemove(t *testing.T) {
	engine, root := setupWC(t)
	path := addTestFile(t, engine, root)
	ctx := context.Background()

	if err := engine.OpSetTreeConflict(ctx, path, testConflict()); err != nil {
		t.Fatalf("OpSetTreeConflict failed: %v", err)
	}
	if err := engine.OpSetTreeConflict(ctx, path, nil); err != nil {
		t.Fatalf("removing tree conflict failed: %v", err)
	}

	got, err := engine.OpReadTreeConflict(ctx, path)
	if err != nil {
		t.Fatalf("OpReadTreeConflict failed: %v", err)
	}
	if got != nil {
		t.Errorf("expected no conflict after removal, got %+v", got)
	}

	// Removing a conflict that does not exist is a quiet no-op.
	if err := engine.OpSetTreeConflict(ctx, path, nil); err != nil {
		t.Fatalf("removing absent conflict failed: %v", err)
	}
}

func TestOpMarkResolvedTree(t *testing.T) {
	engine, root := setupWC(t)
	path := addTestFile(t, engine, root)
	ctx := context.Background()

	if err := engine.OpSetTreeConflict(ctx, path, testConflict()); err != nil {
		t.Fatalf("OpSetTreeConflict failed: %v", err)
	}
	if err := engine.OpMarkResolved(ctx, path, false, false, true); err != nil {
		t.Fatalf("OpMarkResolved failed: %v", err)
	}
	info, err := engine.ReadInfo(ctx, path)
	if err != nil {
		t.Fatalf("ReadInfo failed: %v", err)
	}
	if info.Conflicted {
		t.Error("tree conflict should be cleared by resolve")
	}
}

func TestTextConflictMarkersReportConflicted(t *testing.T) {
	engine, root := setupWC(t)
	path := addTestFile(t, engine, root)
	ctx := context.Background()

	raw := openRaw(t, root)
	_, err := raw.DB().Exec(`
		INSERT INTO actual_node
		    (wc_id, local_relpath, parent_relpath, conflict_old, conflict_new, conflict_working)
		VALUES (1, 'a.txt', '', 'a.txt.r7', 'a.txt.r8', 'a.txt.mine')`)
	if err != nil {
		t.Fatalf("injection failed: %v", err)
	}

	info, err := engine.ReadInfo(ctx, path)
	if err != nil {
		t.Fatalf("ReadInfo failed: %v", err)
	}
	if !info.Conflicted {
		t.Error("text conflict markers should report conflicted")
	}

	if err := engine.OpMarkResolved(ctx, path, true, false, false); err != nil {
		t.Fatalf("OpMarkResolved failed: %v", err)
	}
	info, err = engine.ReadInfo(ctx, path)
	if err != nil {
		t.Fatalf("ReadInfo failed: %v", err)
	}
	if info.Conflicted {
		t.Error("text conflict should be cleared by resolve")
	}
}

func TestTreeConflictOnWCRoot(t *testing.T) {
	engine, root := setupWC(t)

	err := engine.OpSetTreeConflict(context.Background(), root, testConflict())
	if err == nil {
		t.Error("recording a tree conflict on the wcroot should fail")
	}
	got, err := engine.OpReadTreeConflict(context.Background(), root)
	if err != nil || got != nil {
		t.Errorf("wcroot conflict read = %+v, %v", got, err)
	}
}
