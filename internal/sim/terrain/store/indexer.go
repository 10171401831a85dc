package store

import (
	"errors"
	"fmt"

	"voxeledit.ai/internal/sim/geom"
)

var ErrChunkShape = errors.New("chunk shape must be a cubic power of two")

// Indexer maps between lattice points, chunk keys and chunk extents.
type Indexer struct {
	edge int
	log2 uint
}

func NewIndexer(edge int) (Indexer, error) {
	if !geom.IsPowerOfTwo(edge) {
		return Indexer{}, fmt.Errorf("%w: got %d", ErrChunkShape, edge)
	}
	return Indexer{edge: edge, log2: geom.Log2(edge)}, nil
}

func (ix Indexer) ChunkShape() geom.Point3i { return geom.Fill(ix.edge) }

// ChunkVolume is the number of voxels in one chunk.
func (ix Indexer) ChunkVolume() int { return ix.edge * ix.edge * ix.edge }

// KeyForPoint returns the key of the chunk containing p.
func (ix Indexer) KeyForPoint(p geom.Point3i) ChunkKey {
	return ChunkKey{X: p.X >> ix.log2, Y: p.Y >> ix.log2, Z: p.Z >> ix.log2}
}

// ExtentForKey returns the unique extent covered by key.
func (ix Indexer) ExtentForKey(k ChunkKey) geom.Extent {
	return geom.Extent{Min: k.Point().Scale(ix.edge), Shape: ix.ChunkShape()}
}

// KeysForExtent enumerates every key whose chunk intersects e, in sorted order.
func (ix Indexer) KeysForExtent(e geom.Extent) []ChunkKey {
	if e.IsEmpty() {
		return nil
	}
	lo := ix.KeyForPoint(e.Min)
	hi := ix.KeyForPoint(e.Max())
	keys := make([]ChunkKey, 0, (hi.X-lo.X+1)*(hi.Y-lo.Y+1)*(hi.Z-lo.Z+1))
	for z := lo.Z; z <= hi.Z; z++ {
		for y := lo.Y; y <= hi.Y; y++ {
			for x := lo.X; x <= hi.X; x++ {
				keys = append(keys, ChunkKey{X: x, Y: y, Z: z})
			}
		}
	}
	return keys
}
