package cache

import (
	"voxeledit.ai/internal/sim/geom"
	"voxeledit.ai/internal/sim/terrain/store"
	"voxeledit.ai/internal/sim/voxel"
)

// Reader reads the chunk map through one worker's cache.
type Reader struct {
	Map   *store.ChunkMap
	Local *LocalCache
}

func NewReader(m *store.ChunkMap, local *LocalCache) Reader {
	return Reader{Map: m, Local: local}
}

func (r Reader) cache() store.ChunkCache {
	if r.Local == nil {
		return nil
	}
	return r.Local
}

// GetChunk returns the stored chunk, or false when the key was never written.
func (r Reader) GetChunk(key store.ChunkKey) (*store.Chunk, bool) {
	return r.Map.GetChunk(key, r.cache())
}

// Chunk returns the stored chunk or a fresh ambient one. The result must be
// treated as read-only.
func (r Reader) Chunk(key store.ChunkKey) *store.Chunk {
	if c, ok := r.GetChunk(key); ok {
		return c
	}
	return store.NewAmbientChunk(r.Map.Indexer().ExtentForKey(key))
}

func (r Reader) GetVoxel(p geom.Point3i) voxel.Voxel {
	return r.Map.GetVoxel(p, r.cache())
}

// CopyExtent fills the part of dst overlapping e, chunk by chunk. Points in
// missing chunks read as voxel.Empty.
func (r Reader) CopyExtent(e geom.Extent, dst *store.Chunk) {
	e = e.Intersection(dst.Extent)
	for _, key := range r.Map.Indexer().KeysForExtent(e) {
		src, ok := r.GetChunk(key)
		part := e.Intersection(r.Map.Indexer().ExtentForKey(key))
		if !ok {
			part.ForEach(func(p geom.Point3i) { dst.Set(p, voxel.Empty) })
			continue
		}
		copyRows(src, dst, part)
	}
}

func copyRows(src, dst *store.Chunk, part geom.Extent) {
	if part.IsEmpty() {
		return
	}
	lub := part.Lub()
	w := part.Shape.X
	for z := part.Min.Z; z < lub.Z; z++ {
		for y := part.Min.Y; y < lub.Y; y++ {
			row := geom.Point3i{X: part.Min.X, Y: y, Z: z}
			si := src.Index(row)
			di := dst.Index(row)
			copy(dst.Voxels[di:di+w], src.Voxels[si:si+w])
		}
	}
}
