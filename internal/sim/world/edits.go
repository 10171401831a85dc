package world

import (
	"github.com/go-gl/mathgl/mgl32"
	"go.uber.org/zap"

	"voxeledit.ai/internal/sim/geom"
	"voxeledit.ai/internal/sim/terrain/brush"
	"voxeledit.ai/internal/sim/terrain/timeline"
	"voxeledit.ai/internal/sim/voxel"
)

type ActionKind string

const (
	ActionFinish ActionKind = "finish"
	ActionUndo   ActionKind = "undo"
	ActionRedo   ActionKind = "redo"
)

// ActionEvent records a timeline change; it is reported with the next frame.
type ActionEvent struct {
	Kind ActionKind `json:"kind"`
	ID   string     `json:"id"`
}

// Edit runs fn in the tool phase. Writes land in the edit buffer and are
// snapshotted for undo; they become visible at the next frame's merge.
func (w *World) Edit(fn func(ed *timeline.SnapshottingEditor) error) error {
	return fn(w.snapEditor)
}

// FinishEdit closes the current action so it can be undone as one step.
func (w *World) FinishEdit() (timeline.ActionID, bool) {
	id, ok := w.snapEditor.FinishEdit()
	if ok {
		w.recordAction(ActionFinish, id)
	}
	return id, ok
}

// Undo reverts the newest action. A pending action is finished first and
// reported like an explicit FinishEdit.
func (w *World) Undo() (timeline.ActionID, bool) {
	w.FinishEdit()
	id, ok := w.timeline.Undo(w.editor)
	if ok {
		w.recordAction(ActionUndo, id)
	}
	return id, ok
}

// Redo reapplies the newest undone action. Finishing a pending action
// clears the redo stack, so Redo then reports false.
func (w *World) Redo() (timeline.ActionID, bool) {
	w.FinishEdit()
	id, ok := w.timeline.Redo(w.editor)
	if ok {
		w.recordAction(ActionRedo, id)
	}
	return id, ok
}

func (w *World) recordAction(kind ActionKind, id timeline.ActionID) {
	w.actions = append(w.actions, ActionEvent{Kind: kind, ID: id.String()})
	w.log.Debug("timeline action", zap.String("kind", string(kind)), zap.Stringer("action_id", id))
}

// Terraform applies the sphere brush as part of the current action.
func (w *World) Terraform(op brush.Operation, center geom.Point3i, radius int, typ voxel.TypeID) error {
	return brush.Terraform(w.snapEditor, w.palette, op, center, radius, typ)
}

// FillSphere unions an exact sphere into the current action.
func (w *World) FillSphere(center mgl32.Vec3, radius float32, typ voxel.TypeID) error {
	return brush.FillSphere(w.snapEditor, w.palette, center, radius, typ)
}

// DragFace extrudes or carves a selected face as part of the current action.
func (w *World) DragFace(quad geom.Extent, normal geom.SignedAxis, to int, typ voxel.TypeID) (geom.Extent, error) {
	return brush.DragFace(w.snapEditor, w.palette, quad, normal, to, typ)
}
