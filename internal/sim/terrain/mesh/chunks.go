package mesh

import (
	"voxeledit.ai/internal/sim/geom"
	"voxeledit.ai/internal/sim/tasks"
	"voxeledit.ai/internal/sim/terrain/cache"
	"voxeledit.ai/internal/sim/terrain/store"
	"voxeledit.ai/internal/sim/voxel"
)

// PaddedChunkExtent grows a chunk extent by one voxel on every side, the
// neighborhood SurfaceNets needs to stitch seams with adjacent chunks.
func PaddedChunkExtent(e geom.Extent) geom.Extent { return e.Padded(1) }

// Buffers are the per-worker surface nets scratch buffers.
type Buffers = tasks.Local[*SurfaceNetsBuffer]

func NewBuffers(workers int) *Buffers { return tasks.NewLocal(workers, NewSurfaceNetsBuffer) }

// KeyedMesh is one result of the parallel mesh pass. Mesh is nil when the
// chunk has no triangles.
type KeyedMesh struct {
	Key       store.ChunkKey
	Mesh      *PosNormMesh
	Materials []MaterialCounts
}

// MeshChunk extracts the surface owned by key.
func MeshChunk(r cache.Reader, pal voxel.Palette, key store.ChunkKey, buf *SurfaceNetsBuffer) KeyedMesh {
	padded := PaddedChunkExtent(r.Map.Indexer().ExtentForKey(key))
	chunk := store.NewAmbientChunk(padded)
	r.CopyExtent(padded, chunk)

	sdf := make([]float32, len(chunk.Voxels))
	for i, v := range chunk.Voxels {
		sdf[i] = v.Distance()
	}
	SurfaceNets(sdf, padded, buf)
	if buf.Mesh.IsEmpty() {
		return KeyedMesh{Key: key}
	}
	return KeyedMesh{
		Key:       key,
		Mesh:      buf.Mesh.Clone(),
		Materials: CountAdjacentMaterials(chunk.Voxels, padded, pal, buf.SurfaceStrides),
	}
}

// GenerateChunkMeshes meshes every key in parallel, reading through the
// per-worker caches.
func GenerateChunkMeshes(pool *tasks.Pool, locals *cache.Locals, bufs *Buffers, m *store.ChunkMap, pal voxel.Palette, keys []store.ChunkKey) []KeyedMesh {
	return tasks.Map(pool, len(keys), func(worker, i int) KeyedMesh {
		r := cache.NewReader(m, locals.Get(worker))
		return MeshChunk(r, pal, keys[i], bufs.Get(worker))
	})
}

// ChunkMesh is a mesh installed for one chunk. IDs are never reused.
type ChunkMesh struct {
	ID              uint64         `json:"id"`
	Key             store.ChunkKey `json:"key"`
	Mesh            *PosNormMesh   `json:"mesh"`
	MaterialWeights []uint32       `json:"material_weights"`
}

type DeltaKind uint8

const (
	Upsert DeltaKind = iota + 1
	Remove
)

func (k DeltaKind) String() string {
	switch k {
	case Upsert:
		return "upsert"
	case Remove:
		return "remove"
	default:
		return "unknown"
	}
}

// MeshDelta tells a renderer how the visible set changed. An Upsert with a
// non-zero ReplacedID must swap the old mesh out in the same step as the
// new one goes in.
type MeshDelta struct {
	Kind       DeltaKind      `json:"kind"`
	Key        store.ChunkKey `json:"key"`
	ID         uint64         `json:"id"`
	ReplacedID uint64         `json:"replaced_id,omitempty"`
	Mesh       *ChunkMesh     `json:"mesh,omitempty"`
}

// ChunkMeshes is the registry of installed chunk meshes. It has a single
// owner; all changes go through Apply.
type ChunkMeshes struct {
	entries map[store.ChunkKey]*ChunkMesh
	nextID  uint64
}

func NewChunkMeshes() *ChunkMeshes {
	return &ChunkMeshes{entries: map[store.ChunkKey]*ChunkMesh{}}
}

func (cm *ChunkMeshes) Len() int { return len(cm.entries) }

func (cm *ChunkMeshes) Get(key store.ChunkKey) (*ChunkMesh, bool) {
	m, ok := cm.entries[key]
	return m, ok
}

func (cm *ChunkMeshes) Keys() []store.ChunkKey {
	keys := make([]store.ChunkKey, 0, len(cm.entries))
	for k := range cm.entries {
		keys = append(keys, k)
	}
	store.SortKeys(keys)
	return keys
}

// Apply installs results in order. A non-nil mesh replaces any existing
// entry for its key; a nil mesh removes it.
func (cm *ChunkMeshes) Apply(results []KeyedMesh) []MeshDelta {
	var deltas []MeshDelta
	for _, res := range results {
		old, had := cm.entries[res.Key]
		if res.Mesh == nil {
			if had {
				delete(cm.entries, res.Key)
				deltas = append(deltas, MeshDelta{Kind: Remove, Key: res.Key, ID: old.ID})
			}
			continue
		}
		cm.nextID++
		weights := make([]uint32, len(res.Materials))
		for i, c := range res.Materials {
			weights[i] = PackMaterialWeights(c)
		}
		entry := &ChunkMesh{ID: cm.nextID, Key: res.Key, Mesh: res.Mesh, MaterialWeights: weights}
		cm.entries[res.Key] = entry
		d := MeshDelta{Kind: Upsert, Key: res.Key, ID: entry.ID, Mesh: entry}
		if had {
			d.ReplacedID = old.ID
		}
		deltas = append(deltas, d)
	}
	return deltas
}
