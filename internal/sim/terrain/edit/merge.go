package edit

import "voxeledit.ai/internal/sim/terrain/store"

// DirtyChunks is rebuilt at every merge. Edited keys had content written;
// dirty keys are the edited ones plus touched neighbors.
type DirtyChunks struct {
	edited store.KeySet
	dirty  store.KeySet
}

func NewDirtyChunks() *DirtyChunks {
	return &DirtyChunks{edited: store.KeySet{}, dirty: store.KeySet{}}
}

func (d *DirtyChunks) Clear() {
	clear(d.edited)
	clear(d.dirty)
}

func (d *DirtyChunks) Edited() []store.ChunkKey { return d.edited.Sorted() }
func (d *DirtyChunks) Dirty() []store.ChunkKey  { return d.dirty.Sorted() }

func (d *DirtyChunks) IsEdited(k store.ChunkKey) bool { return d.edited.Has(k) }
func (d *DirtyChunks) IsDirty(k store.ChunkKey) bool  { return d.dirty.Has(k) }

func (d *DirtyChunks) NumEdited() int { return len(d.edited) }
func (d *DirtyChunks) NumDirty() int  { return len(d.dirty) }

// Merge writes every overlay chunk into m, repopulates dirty and empties the
// buffer. It returns the keys it wrote, which a later cache flush must not
// overwrite. Merge is the only writer of chunk content in a frame.
func Merge(m *store.ChunkMap, buf *EditBuffer, dirty *DirtyChunks) store.KeySet {
	dirty.Clear()
	fresh := make(store.KeySet, len(buf.edited))
	for _, key := range buf.EditedKeys() {
		m.WriteChunk(key, buf.edited[key])
		fresh.Add(key)
		dirty.edited.Add(key)
		dirty.dirty.Add(key)
	}
	for key := range buf.touched {
		dirty.dirty.Add(key)
	}
	buf.reset()
	return fresh
}
