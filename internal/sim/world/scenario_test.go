package world

import (
	"context"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"voxeledit.ai/internal/sim/geom"
	"voxeledit.ai/internal/sim/terrain/brush"
	"voxeledit.ai/internal/sim/terrain/mesh"
	"voxeledit.ai/internal/sim/terrain/octree"
	"voxeledit.ai/internal/sim/terrain/store"
	"voxeledit.ai/internal/sim/terrain/timeline"
)

type recordSink struct {
	reports []FrameReport
	deltas  [][]mesh.MeshDelta
}

func (s *recordSink) WriteFrame(rep FrameReport, deltas []mesh.MeshDelta) error {
	s.reports = append(s.reports, rep)
	s.deltas = append(s.deltas, deltas)
	return nil
}

func newTestWorld(t *testing.T) (*World, *recordSink) {
	t.Helper()
	w, err := New(WorldConfig{
		ChunkEdge: 16,
		Codec:     "zstd",
		// Room for two decompressed chunks keeps most of the sphere compressed.
		Cache:   store.CacheConfig{MaxDecompressedBytes: 2 * 16 * 16 * 16 * 2},
		Workers: 4,
	}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	sink := &recordSink{}
	w.AddSink(sink)
	return w, sink
}

func step(t *testing.T, w *World) FrameReport {
	t.Helper()
	rep, err := w.StepOnce(context.Background())
	if err != nil {
		t.Fatalf("StepOnce: %v", err)
	}
	return rep
}

var sphereKeys = []store.ChunkKey{
	store.K(-1, -1, -1), store.K(0, -1, -1), store.K(-1, 0, -1), store.K(0, 0, -1),
	store.K(-1, -1, 0), store.K(0, -1, 0), store.K(-1, 0, 0), store.K(0, 0, 0),
}

func checkSphere(t *testing.T, w *World) {
	t.Helper()
	if w.Chunks().Len() != 8 {
		t.Fatalf("chunks = %v", w.Chunks().Keys())
	}
	for _, k := range sphereKeys {
		if _, ok := w.BVT().Get(k); !ok {
			t.Fatalf("no octree for %v", k)
		}
		if _, ok := w.Meshes().Get(k); !ok {
			t.Fatalf("no mesh for %v", k)
		}
	}
	imp, ok := w.RayCast(octree.NewRay(mgl32.Vec3{-30, 0.5, 0.5}, mgl32.Vec3{1, 0, 0}), 0)
	if !ok {
		t.Fatalf("ray missed the sphere")
	}
	if imp.Point != geom.P(-9, 0, 0) {
		t.Fatalf("impact point %v", imp.Point)
	}
	if d := imp.T - 21; d < -1.5 || d > 1.5 {
		t.Fatalf("impact t %v", imp.T)
	}
	if face, ok := imp.Face(); !ok || face != geom.NegX {
		t.Fatalf("impact face %v", face)
	}
}

func TestSphereScenario(t *testing.T) {
	w, sink := newTestWorld(t)

	if err := w.FillSphere(mgl32.Vec3{}, 10, 1); err != nil {
		t.Fatalf("FillSphere: %v", err)
	}
	if w.GetVoxel(geom.P(0, 0, 0)).Type != 0 {
		t.Fatalf("edit visible before the frame merged it")
	}
	id, ok := w.FinishEdit()
	if !ok {
		t.Fatalf("FinishEdit recorded nothing")
	}
	rep := step(t, w)
	if rep.Edited != 8 || rep.Octrees.Inserted != 8 || rep.MeshesUpserted != 8 {
		t.Fatalf("first frame report %+v", rep)
	}
	if rep.Compression.Compressed == 0 {
		t.Fatalf("budget should have forced compression: %+v", rep.Compression)
	}
	if len(rep.Actions) != 1 || rep.Actions[0].ID != id.String() || rep.Digest == "" {
		t.Fatalf("actions %+v digest %q", rep.Actions, rep.Digest)
	}
	checkSphere(t, w)
	sphereDigest := w.StateDigest()

	// An idle frame promotes what the passes decoded and changes nothing.
	rep = step(t, w)
	if rep.Flush.Promoted == 0 || rep.Dirty != 0 {
		t.Fatalf("idle frame report %+v", rep)
	}
	if w.StateDigest() != sphereDigest {
		t.Fatalf("idle frame changed the map")
	}

	// Carve the whole sphere away; the chunks end up empty and reclaimed.
	err := w.Edit(func(ed *timeline.SnapshottingEditor) error {
		for i := 0; i < 40; i++ {
			if err := brush.Terraform(ed, w.Palette(), brush.RemoveSolid, geom.P(0, 0, 0), 12, 0); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Edit: %v", err)
	}
	w.FinishEdit()
	rep = step(t, w)
	if rep.Octrees.Emptied < 8 || w.BVT().Len() != 0 || w.Meshes().Len() != 0 {
		t.Fatalf("carve frame report %+v bvt=%d meshes=%d", rep.Octrees, w.BVT().Len(), w.Meshes().Len())
	}
	if rep.MeshesRemoved != 8 {
		t.Fatalf("meshes removed %d", rep.MeshesRemoved)
	}
	rep = step(t, w)
	if len(rep.Reclaimed) != 8 || w.Chunks().Len() != 0 {
		t.Fatalf("reclaimed %v, %d chunks left", rep.Reclaimed, w.Chunks().Len())
	}
	if _, ok := w.RayCast(octree.NewRay(mgl32.Vec3{-30, 0.5, 0.5}, mgl32.Vec3{1, 0, 0}), 0); ok {
		t.Fatalf("ray hit a reclaimed chunk")
	}
	emptyDigest := w.StateDigest()
	step(t, w)

	// Undo brings the sphere back bit for bit.
	if _, ok := w.Undo(); !ok {
		t.Fatalf("undo failed")
	}
	step(t, w)
	checkSphere(t, w)
	if w.StateDigest() != sphereDigest {
		t.Fatalf("undo did not restore the sphere")
	}

	if _, ok := w.Redo(); !ok {
		t.Fatalf("redo failed")
	}
	step(t, w)
	step(t, w)
	if w.StateDigest() != emptyDigest || w.Chunks().Len() != 0 {
		t.Fatalf("redo did not carve the sphere again")
	}

	var upserts, removes int
	for _, ds := range sink.deltas {
		for _, d := range ds {
			switch d.Kind {
			case mesh.Upsert:
				upserts++
			case mesh.Remove:
				removes++
			}
		}
	}
	if upserts != 16 || removes != 16 {
		t.Fatalf("sink saw %d upserts and %d removes", upserts, removes)
	}
	if got := sink.reports[len(sink.reports)-1].Frame; got != w.Frame() {
		t.Fatalf("sink last frame %d world frame %d", got, w.Frame())
	}
}

func TestBoundaryEditRemeshesNeighbor(t *testing.T) {
	w, _ := newTestWorld(t)
	// Straddles the x=16 boundary between chunks (0,0,0) and (1,0,0).
	if err := w.FillSphere(mgl32.Vec3{16, 8, 8}, 4, 2); err != nil {
		t.Fatalf("FillSphere: %v", err)
	}
	w.FinishEdit()
	step(t, w)
	a, b := store.K(0, 0, 0), store.K(1, 0, 0)
	beforeA, okA := w.Meshes().Get(a)
	beforeB, okB := w.Meshes().Get(b)
	if !okA || !okB || w.Meshes().Len() != 2 {
		t.Fatalf("meshes %v", w.Meshes().Keys())
	}

	// Extrude a face up to x=15: only chunk (0,0,0) is written, but the
	// seam cells chunk (1,0,0) owns quads around read those voxels.
	quad := geom.ExtentFromMinAndShape(geom.P(13, 6, 6), geom.P(1, 4, 4))
	if _, err := w.DragFace(quad, geom.PosX, 15, 3); err != nil {
		t.Fatalf("DragFace: %v", err)
	}
	w.FinishEdit()
	rep := step(t, w)
	if rep.Edited != 1 {
		t.Fatalf("edited %d", rep.Edited)
	}
	afterA, _ := w.Meshes().Get(a)
	afterB, ok := w.Meshes().Get(b)
	if !ok || afterA.ID == beforeA.ID || afterB.ID == beforeB.ID {
		t.Fatalf("boundary edit did not remesh both chunks")
	}
}

func TestUndoReportsPendingFinish(t *testing.T) {
	w, _ := newTestWorld(t)
	if err := w.FillSphere(mgl32.Vec3{8, 8, 8}, 3, 1); err != nil {
		t.Fatalf("FillSphere: %v", err)
	}
	id, ok := w.Undo()
	if !ok {
		t.Fatalf("undo of a pending action failed")
	}
	rep := step(t, w)
	want := []ActionEvent{{Kind: ActionFinish, ID: id.String()}, {Kind: ActionUndo, ID: id.String()}}
	if len(rep.Actions) != len(want) || rep.Actions[0] != want[0] || rep.Actions[1] != want[1] {
		t.Fatalf("actions %+v, want %+v", rep.Actions, want)
	}
	if v := w.GetVoxel(geom.P(8, 8, 8)); v.Type != 0 {
		t.Fatalf("undo left %+v", v)
	}

	// Nothing is pending any more, so redo reports only itself.
	if _, ok := w.Redo(); !ok {
		t.Fatalf("redo failed")
	}
	rep = step(t, w)
	if len(rep.Actions) != 1 || rep.Actions[0] != (ActionEvent{Kind: ActionRedo, ID: id.String()}) {
		t.Fatalf("redo actions %+v", rep.Actions)
	}
}

func TestQueryReadsPromoteAtNextFrame(t *testing.T) {
	w, _ := newTestWorld(t)
	if err := w.FillSphere(mgl32.Vec3{}, 10, 1); err != nil {
		t.Fatalf("FillSphere: %v", err)
	}
	w.FinishEdit()
	step(t, w)
	step(t, w)

	var key store.ChunkKey
	found := false
	for _, k := range w.Chunks().Keys() {
		if repr, _ := w.Chunks().Representation(k); repr == store.Compressed {
			key, found = k, true
			break
		}
	}
	if !found {
		t.Fatalf("budget left nothing compressed")
	}
	p := w.Chunks().Indexer().ExtentForKey(key).Min
	first := w.GetVoxel(p)
	if again := w.GetVoxel(p); again != first {
		t.Fatalf("reads differ: %+v vs %+v", first, again)
	}
	if n := w.scratch.Get(0).Len(); n != 1 {
		t.Fatalf("scratch holds %d chunks", n)
	}
	if repr, _ := w.Chunks().Representation(key); repr != store.Compressed {
		t.Fatalf("query read promoted %v before the frame", key)
	}

	rep := step(t, w)
	if rep.Flush.Promoted != 1 || w.scratch.Get(0).Len() != 0 {
		t.Fatalf("flush %+v scratch=%d", rep.Flush, w.scratch.Get(0).Len())
	}
}
