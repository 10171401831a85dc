package edit

import "voxeledit.ai/internal/sim/terrain/store"

// EmptyChunks queues chunks found to hold only empty-type voxels so their
// storage can be freed at the start of the next frame.
type EmptyChunks struct {
	pending store.KeySet
}

func NewEmptyChunks() *EmptyChunks { return &EmptyChunks{pending: store.KeySet{}} }

func (e *EmptyChunks) MarkForRemoval(key store.ChunkKey) { e.pending.Add(key) }

func (e *EmptyChunks) Pending() []store.ChunkKey { return e.pending.Sorted() }

func (e *EmptyChunks) Len() int { return len(e.pending) }

// Reclaim removes every queued chunk from m, except keys with overlay
// content pending in buf: those are merged later this frame and get
// re-examined by the index pass. onRemove, when non-nil, runs for each key
// actually removed. The queue is empty afterwards.
func (e *EmptyChunks) Reclaim(m *store.ChunkMap, buf *EditBuffer, onRemove func(store.ChunkKey)) []store.ChunkKey {
	var removed []store.ChunkKey
	for _, key := range e.pending.Sorted() {
		if buf != nil && buf.HasEdit(key) {
			continue
		}
		if !m.RemoveChunk(key) {
			continue
		}
		removed = append(removed, key)
		if onRemove != nil {
			onRemove(key)
		}
	}
	clear(e.pending)
	return removed
}
