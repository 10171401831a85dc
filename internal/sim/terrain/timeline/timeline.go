// Package timeline records the pre-edit content of every chunk an action
// touches so the action can be undone and redone.
package timeline

import (
	"github.com/google/uuid"

	"voxeledit.ai/internal/sim/geom"
	"voxeledit.ai/internal/sim/terrain/edit"
	"voxeledit.ai/internal/sim/terrain/store"
)

// ActionID names one finished edit across undo and redo.
type ActionID = uuid.UUID

// Snapshot is the sparse content of the chunks one action touched.
type Snapshot struct {
	ID     ActionID
	Chunks map[store.ChunkKey]*store.Chunk
}

func newSnapshot() *Snapshot {
	return &Snapshot{Chunks: map[store.ChunkKey]*store.Chunk{}}
}

func (s *Snapshot) Keys() []store.ChunkKey {
	keys := make([]store.ChunkKey, 0, len(s.Chunks))
	for k := range s.Chunks {
		keys = append(keys, k)
	}
	store.SortKeys(keys)
	return keys
}

func (s *Snapshot) SizeBytes() int64 {
	var n int64
	for _, c := range s.Chunks {
		n += c.SizeBytes()
	}
	return n
}

// EditTimeline holds the snapshot being recorded plus the undo and redo
// stacks, newest last.
type EditTimeline struct {
	maxHistory int
	current    *Snapshot
	undo       []*Snapshot
	redo       []*Snapshot
}

// NewEditTimeline keeps at most maxHistory undo entries; 0 is unbounded.
func NewEditTimeline(maxHistory int) *EditTimeline {
	return &EditTimeline{maxHistory: maxHistory, current: newSnapshot()}
}

func (t *EditTimeline) UndoLen() int { return len(t.undo) }
func (t *EditTimeline) RedoLen() int { return len(t.redo) }

// Recording reports whether the current action has captured any chunk.
func (t *EditTimeline) Recording() bool { return len(t.current.Chunks) > 0 }

// SizeBytes is the memory held by every snapshot.
func (t *EditTimeline) SizeBytes() int64 {
	n := t.current.SizeBytes()
	for _, s := range t.undo {
		n += s.SizeBytes()
	}
	for _, s := range t.redo {
		n += s.SizeBytes()
	}
	return n
}

// AddExtentToSnapshot captures the content of every chunk intersecting e
// that the current action has not captured yet. Content is read without
// caching, pending overlay first.
func (t *EditTimeline) AddExtentToSnapshot(e geom.Extent, ed *edit.Editor) {
	for _, key := range ed.Buffer.Indexer().KeysForExtent(e) {
		if _, ok := t.current.Chunks[key]; ok {
			continue
		}
		t.current.Chunks[key] = ed.ReadChunkWithoutCaching(key)
	}
}

// StoreCurrentSnapshot finishes the current action. An action that touched
// nothing is dropped. Any redo history is discarded.
func (t *EditTimeline) StoreCurrentSnapshot() (ActionID, bool) {
	if !t.Recording() {
		return ActionID{}, false
	}
	s := t.current
	s.ID = uuid.New()
	t.current = newSnapshot()
	t.undo = append(t.undo, s)
	if t.maxHistory > 0 && len(t.undo) > t.maxHistory {
		drop := len(t.undo) - t.maxHistory
		clear(t.undo[:drop])
		t.undo = t.undo[drop:]
	}
	clear(t.redo)
	t.redo = t.redo[:0]
	return s.ID, true
}

// Undo restores the newest undo snapshot through ed. An unfinished action
// is finished first so it can itself be undone.
func (t *EditTimeline) Undo(ed *edit.Editor) (ActionID, bool) {
	t.StoreCurrentSnapshot()
	var id ActionID
	var ok bool
	t.undo, t.redo, id, ok = restore(t.undo, t.redo, ed)
	return id, ok
}

// Redo reapplies the newest undone action. An unfinished action is finished
// first, which discards the redo history.
func (t *EditTimeline) Redo(ed *edit.Editor) (ActionID, bool) {
	t.StoreCurrentSnapshot()
	var id ActionID
	var ok bool
	t.redo, t.undo, id, ok = restore(t.redo, t.undo, ed)
	return id, ok
}

// restore pops the newest snapshot of from, writes it through ed and pushes
// the content it replaced onto to.
func restore(from, to []*Snapshot, ed *edit.Editor) ([]*Snapshot, []*Snapshot, ActionID, bool) {
	if len(from) == 0 {
		return from, to, ActionID{}, false
	}
	s := from[len(from)-1]
	from[len(from)-1] = nil
	from = from[:len(from)-1]

	reverse := &Snapshot{ID: s.ID, Chunks: make(map[store.ChunkKey]*store.Chunk, len(s.Chunks))}
	for _, key := range s.Keys() {
		reverse.Chunks[key] = ed.ReadChunkWithoutCaching(key)
		ed.InsertChunkAndTouchNeighbors(key, s.Chunks[key].Clone())
	}
	return from, append(to, reverse), s.ID, true
}
