// Package edit implements deferred writes to the chunk map: edits land in a
// private overlay during the tool phase and are merged at the frame's
// serialization point, producing the dirty-chunk sets the later passes use.
package edit

import (
	"voxeledit.ai/internal/sim/geom"
	"voxeledit.ai/internal/sim/terrain/store"
	"voxeledit.ai/internal/sim/voxel"
)

// EditBuffer is the overlay of chunks written since the last merge plus the
// neighbor keys that must be re-processed even though their content did not
// change.
type EditBuffer struct {
	indexer store.Indexer
	edited  map[store.ChunkKey]*store.Chunk
	touched store.KeySet
}

func NewEditBuffer(ix store.Indexer) *EditBuffer {
	return &EditBuffer{
		indexer: ix,
		edited:  map[store.ChunkKey]*store.Chunk{},
		touched: store.KeySet{},
	}
}

func (b *EditBuffer) Indexer() store.Indexer { return b.indexer }

func (b *EditBuffer) IsEmpty() bool { return len(b.edited) == 0 && len(b.touched) == 0 }

// HasEdit reports whether key has overlay content pending.
func (b *EditBuffer) HasEdit(key store.ChunkKey) bool {
	_, ok := b.edited[key]
	return ok
}

// Chunk returns the pending overlay chunk for key.
func (b *EditBuffer) Chunk(key store.ChunkKey) (*store.Chunk, bool) {
	c, ok := b.edited[key]
	return c, ok
}

func (b *EditBuffer) EditedKeys() []store.ChunkKey {
	keys := make([]store.ChunkKey, 0, len(b.edited))
	for k := range b.edited {
		keys = append(keys, k)
	}
	store.SortKeys(keys)
	return keys
}

func (b *EditBuffer) TouchedKeys() []store.ChunkKey { return b.touched.Sorted() }

// Touch marks key dirty for the next merge without editing it.
func (b *EditBuffer) Touch(key store.ChunkKey) { b.touched.Add(key) }

// TouchNeighbors marks the six face neighbors of key.
func (b *EditBuffer) TouchNeighbors(key store.ChunkKey) {
	for _, n := range key.FaceNeighbors() {
		b.touched.Add(n)
	}
}

// chunkForWrite returns the overlay chunk for key, seeding it from m on
// first touch. The seed never goes through a cache.
func (b *EditBuffer) chunkForWrite(m *store.ChunkMap, key store.ChunkKey) *store.Chunk {
	if c, ok := b.edited[key]; ok {
		return c
	}
	c := m.CopyChunkOrAmbient(key)
	b.edited[key] = c
	return c
}

func (b *EditBuffer) reset() {
	clear(b.edited)
	clear(b.touched)
}

// Editor is the write handle given to tools for one frame.
type Editor struct {
	Map    *store.ChunkMap
	Buffer *EditBuffer
	// Scratch keeps chunks GetVoxel decoded for the rest of the tool phase.
	// It must be flushed before the map is next written.
	Scratch store.ChunkCache
}

func NewEditor(m *store.ChunkMap, buf *EditBuffer) *Editor {
	return &Editor{Map: m, Buffer: buf}
}

// EditExtent calls fn for every point of e with a pointer into the overlay.
// Edits accumulate across calls until the next merge.
func (ed *Editor) EditExtent(e geom.Extent, fn func(p geom.Point3i, v *voxel.Voxel)) {
	for _, key := range ed.Buffer.indexer.KeysForExtent(e) {
		c := ed.Buffer.chunkForWrite(ed.Map, key)
		part := e.Intersection(c.Extent)
		part.ForEach(func(p geom.Point3i) {
			fn(p, &c.Voxels[c.Index(p)])
		})
	}
}

// EditExtentAndTouchNeighbors is EditExtent that also marks the face
// neighbors of every chunk intersecting e. Meshing reads a padded
// neighborhood, so a boundary change can alter a neighbor's surface.
func (ed *Editor) EditExtentAndTouchNeighbors(e geom.Extent, fn func(p geom.Point3i, v *voxel.Voxel)) {
	ed.EditExtent(e, fn)
	for _, key := range ed.Buffer.indexer.KeysForExtent(e) {
		ed.Buffer.TouchNeighbors(key)
	}
}

// InsertChunkAndTouchNeighbors replaces the overlay content of key with c.
func (ed *Editor) InsertChunkAndTouchNeighbors(key store.ChunkKey, c *store.Chunk) {
	ed.Buffer.edited[key] = c
	ed.Buffer.TouchNeighbors(key)
}

// ReadChunkWithoutCaching returns a private copy of the newest content of
// key: the overlay if edited this frame, otherwise the map, otherwise
// ambient.
func (ed *Editor) ReadChunkWithoutCaching(key store.ChunkKey) *store.Chunk {
	if c, ok := ed.Buffer.edited[key]; ok {
		return c.Clone()
	}
	return ed.Map.CopyChunkOrAmbient(key)
}

// GetVoxel reads through the overlay. Without a Scratch cache every read of
// a compressed chunk decodes the whole chunk.
func (ed *Editor) GetVoxel(p geom.Point3i) voxel.Voxel {
	key := ed.Buffer.indexer.KeyForPoint(p)
	if c, ok := ed.Buffer.edited[key]; ok {
		return c.Get(p)
	}
	return ed.Map.GetVoxel(p, ed.Scratch)
}
