package timeline

import (
	"voxeledit.ai/internal/sim/geom"
	"voxeledit.ai/internal/sim/terrain/edit"
	"voxeledit.ai/internal/sim/voxel"
)

// SnapshottingEditor is the editor handed to tools: every write is
// recorded in the timeline before it reaches the overlay.
type SnapshottingEditor struct {
	Editor   *edit.Editor
	Timeline *EditTimeline
}

func NewSnapshottingEditor(ed *edit.Editor, tl *EditTimeline) *SnapshottingEditor {
	return &SnapshottingEditor{Editor: ed, Timeline: tl}
}

func (s *SnapshottingEditor) EditExtentAndTouchNeighbors(e geom.Extent, fn func(p geom.Point3i, v *voxel.Voxel)) {
	s.Timeline.AddExtentToSnapshot(e, s.Editor)
	s.Editor.EditExtentAndTouchNeighbors(e, fn)
}

func (s *SnapshottingEditor) GetVoxel(p geom.Point3i) voxel.Voxel { return s.Editor.GetVoxel(p) }

// FinishEdit closes the current action.
func (s *SnapshottingEditor) FinishEdit() (ActionID, bool) {
	return s.Timeline.StoreCurrentSnapshot()
}
