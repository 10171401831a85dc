package timeline

import (
	"testing"

	"voxeledit.ai/internal/sim/encoding"
	"voxeledit.ai/internal/sim/geom"
	"voxeledit.ai/internal/sim/terrain/edit"
	"voxeledit.ai/internal/sim/terrain/store"
	"voxeledit.ai/internal/sim/voxel"
)

type rig struct {
	m     *store.ChunkMap
	ed    *edit.Editor
	tl    *EditTimeline
	sn    *SnapshottingEditor
	dirty *edit.DirtyChunks
}

func newRig(t *testing.T, maxHistory int) *rig {
	t.Helper()
	ix, err := store.NewIndexer(8)
	if err != nil {
		t.Fatalf("NewIndexer: %v", err)
	}
	// A tiny budget keeps most chunks compressed between frames.
	m := store.NewChunkMap(ix, encoding.RLECodec{}, store.CacheConfig{MaxDecompressedBytes: 1024})
	ed := edit.NewEditor(m, edit.NewEditBuffer(ix))
	tl := NewEditTimeline(maxHistory)
	return &rig{m: m, ed: ed, tl: tl, sn: NewSnapshottingEditor(ed, tl), dirty: edit.NewDirtyChunks()}
}

func (r *rig) frame(t *testing.T) {
	t.Helper()
	edit.Merge(r.m, r.ed.Buffer, r.dirty)
	if _, err := r.m.Compress(); err != nil {
		t.Fatalf("Compress: %v", err)
	}
}

var region = geom.ExtentFromMinAndShape(geom.P(-10, -10, -10), geom.Fill(30))

func (r *rig) state() []voxel.Voxel {
	out := make([]voxel.Voxel, 0, region.Volume())
	region.ForEach(func(p geom.Point3i) { out = append(out, r.m.GetVoxel(p, nil)) })
	return out
}

func sameState(a, b []voxel.Voxel) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func fill(typ voxel.TypeID, d float32) func(geom.Point3i, *voxel.Voxel) {
	return func(_ geom.Point3i, v *voxel.Voxel) { *v = voxel.New(typ, d) }
}

func TestUndoRedoIdentity(t *testing.T) {
	r := newRig(t, 0)
	r.ed.EditExtent(geom.ExtentFromMinAndShape(geom.P(0, 0, 0), geom.Fill(4)), fill(3, -1))
	r.frame(t)
	before := r.state()

	// One action spanning two frames and a chunk boundary.
	r.sn.EditExtentAndTouchNeighbors(geom.ExtentFromMinAndShape(geom.P(-3, 2, 2), geom.P(6, 2, 2)), fill(1, -0.5))
	r.frame(t)
	r.sn.EditExtentAndTouchNeighbors(geom.ExtentFromMinAndShape(geom.P(1, 1, 1), geom.Fill(9)), fill(2, -0.25))
	r.frame(t)
	id, ok := r.sn.FinishEdit()
	if !ok {
		t.Fatalf("FinishEdit recorded nothing")
	}
	after := r.state()
	if sameState(before, after) {
		t.Fatalf("edit had no effect")
	}

	undoID, ok := r.tl.Undo(r.ed)
	if !ok || undoID != id {
		t.Fatalf("undo = %v %v want %v", undoID, ok, id)
	}
	r.frame(t)
	if !sameState(before, r.state()) {
		t.Fatalf("undo did not restore the pre-edit state")
	}
	if r.tl.UndoLen() != 0 || r.tl.RedoLen() != 1 {
		t.Fatalf("stacks undo=%d redo=%d", r.tl.UndoLen(), r.tl.RedoLen())
	}

	redoID, ok := r.tl.Redo(r.ed)
	if !ok || redoID != id {
		t.Fatalf("redo = %v %v want %v", redoID, ok, id)
	}
	r.frame(t)
	if !sameState(after, r.state()) {
		t.Fatalf("redo did not restore the edited state")
	}
}

func TestMultipleUndoRedo(t *testing.T) {
	r := newRig(t, 0)
	states := [][]voxel.Voxel{r.state()}
	for i := 0; i < 3; i++ {
		e := geom.ExtentFromMinAndShape(geom.P(-4+4*i, 0, -2), geom.Fill(5))
		r.sn.EditExtentAndTouchNeighbors(e, fill(voxel.TypeID(i+1), -float32(i+1)/4))
		r.sn.FinishEdit()
		r.frame(t)
		states = append(states, r.state())
	}

	for i := 3; i > 0; i-- {
		if _, ok := r.tl.Undo(r.ed); !ok {
			t.Fatalf("undo %d failed", i)
		}
		r.frame(t)
		if !sameState(states[i-1], r.state()) {
			t.Fatalf("after undoing action %d state differs", i)
		}
	}
	if _, ok := r.tl.Undo(r.ed); ok {
		t.Fatalf("undo on empty stack should be a no-op")
	}

	for i := 1; i <= 2; i++ {
		if _, ok := r.tl.Redo(r.ed); !ok {
			t.Fatalf("redo %d failed", i)
		}
		r.frame(t)
		if !sameState(states[i], r.state()) {
			t.Fatalf("after redoing action %d state differs", i)
		}
	}

	// A new action discards the remaining redo entry.
	r.sn.EditExtentAndTouchNeighbors(geom.ExtentFromMinAndShape(geom.P(10, 10, 10), geom.Fill(1)), fill(4, -1))
	r.sn.FinishEdit()
	if r.tl.RedoLen() != 0 {
		t.Fatalf("redo history survived a new action")
	}
	if _, ok := r.tl.Redo(r.ed); ok {
		t.Fatalf("redo on empty stack should be a no-op")
	}
}

func TestUndoInSameFrameAsEdit(t *testing.T) {
	r := newRig(t, 0)
	before := r.state()
	r.sn.EditExtentAndTouchNeighbors(geom.ExtentFromMinAndShape(geom.P(2, 2, 2), geom.Fill(3)), fill(1, -1))
	// Undo before the edit is merged and before FinishEdit.
	if _, ok := r.tl.Undo(r.ed); !ok {
		t.Fatalf("undo of unfinished action failed")
	}
	r.frame(t)
	if !sameState(before, r.state()) {
		t.Fatalf("unmerged edit leaked through undo")
	}
	if _, ok := r.tl.Redo(r.ed); !ok {
		t.Fatalf("redo failed")
	}
	r.frame(t)
	if got := r.m.GetVoxel(geom.P(3, 3, 3), nil); got.Type != 1 {
		t.Fatalf("redo lost the edit: %+v", got)
	}
}

func TestEditAfterUndoDiscardsRedo(t *testing.T) {
	r := newRig(t, 0)
	r.sn.EditExtentAndTouchNeighbors(geom.ExtentFromMinAndShape(geom.P(0, 0, 0), geom.Fill(2)), fill(1, -1))
	r.sn.FinishEdit()
	r.frame(t)
	if _, ok := r.tl.Undo(r.ed); !ok {
		t.Fatalf("undo failed")
	}
	r.frame(t)

	r.sn.EditExtentAndTouchNeighbors(geom.ExtentFromMinAndShape(geom.P(4, 4, 4), geom.Fill(1)), fill(1, -1))
	if _, ok := r.tl.Redo(r.ed); ok {
		t.Fatalf("redo survived a new edit")
	}
	if r.tl.UndoLen() != 1 || r.tl.RedoLen() != 0 {
		t.Fatalf("stacks undo=%d redo=%d", r.tl.UndoLen(), r.tl.RedoLen())
	}
}

func TestEmptyActionIsIgnoredAndHistoryIsCapped(t *testing.T) {
	r := newRig(t, 2)
	if _, ok := r.sn.FinishEdit(); ok {
		t.Fatalf("empty action recorded")
	}
	for i := 0; i < 5; i++ {
		r.sn.EditExtentAndTouchNeighbors(geom.ExtentFromMinAndShape(geom.P(i, 0, 0), geom.Fill(1)), fill(1, -1))
		r.sn.FinishEdit()
	}
	if r.tl.UndoLen() != 2 {
		t.Fatalf("undo len %d want 2", r.tl.UndoLen())
	}
	if r.tl.SizeBytes() != 2*8*8*8*voxel.SizeBytes {
		t.Fatalf("timeline holds %d bytes", r.tl.SizeBytes())
	}
}
