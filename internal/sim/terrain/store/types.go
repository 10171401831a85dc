package store

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"sort"

	"voxeledit.ai/internal/sim/geom"
	"voxeledit.ai/internal/sim/voxel"
)

// ChunkKey is the chunk-space coordinate of a chunk.
type ChunkKey struct {
	X int `json:"x"`
	Y int `json:"y"`
	Z int `json:"z"`
}

func K(x, y, z int) ChunkKey { return ChunkKey{X: x, Y: y, Z: z} }

func (k ChunkKey) Point() geom.Point3i { return geom.Point3i{X: k.X, Y: k.Y, Z: k.Z} }

func (k ChunkKey) Add(d geom.Point3i) ChunkKey {
	return ChunkKey{X: k.X + d.X, Y: k.Y + d.Y, Z: k.Z + d.Z}
}

// FaceNeighbors returns the six keys sharing a face with k.
func (k ChunkKey) FaceNeighbors() [6]ChunkKey {
	var out [6]ChunkKey
	for i, a := range geom.FaceAxes {
		out[i] = k.Add(a.Vector())
	}
	return out
}

func (k ChunkKey) Less(o ChunkKey) bool { return k.Point().Less(o.Point()) }

func (k ChunkKey) String() string { return fmt.Sprintf("chunk(%d,%d,%d)", k.X, k.Y, k.Z) }

// SortKeys orders keys z-major, matching geom.Point3i.Less.
func SortKeys(keys []ChunkKey) {
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
}

// KeySet is an unordered set of chunk keys.
type KeySet map[ChunkKey]struct{}

func (s KeySet) Add(k ChunkKey) { s[k] = struct{}{} }

func (s KeySet) Has(k ChunkKey) bool {
	_, ok := s[k]
	return ok
}

// Sorted returns the members in deterministic order.
func (s KeySet) Sorted() []ChunkKey {
	keys := make([]ChunkKey, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	SortKeys(keys)
	return keys
}

// Chunk is a dense x-fastest array of voxels covering Extent.
type Chunk struct {
	Extent geom.Extent
	Voxels []voxel.Voxel
}

// NewAmbientChunk returns a chunk filled with voxel.Empty.
func NewAmbientChunk(extent geom.Extent) *Chunk {
	vs := make([]voxel.Voxel, extent.Volume())
	for i := range vs {
		vs[i] = voxel.Empty
	}
	return &Chunk{Extent: extent, Voxels: vs}
}

// Index returns the slot of world point p, which must lie in the extent.
func (c *Chunk) Index(p geom.Point3i) int { return c.Extent.Index(p) }

func (c *Chunk) Get(p geom.Point3i) voxel.Voxel { return c.Voxels[c.Index(p)] }

func (c *Chunk) Set(p geom.Point3i, v voxel.Voxel) { c.Voxels[c.Index(p)] = v }

func (c *Chunk) Clone() *Chunk {
	vs := make([]voxel.Voxel, len(c.Voxels))
	copy(vs, c.Voxels)
	return &Chunk{Extent: c.Extent, Voxels: vs}
}

// Equal reports exact voxel equality over identical extents.
func (c *Chunk) Equal(o *Chunk) bool {
	if c.Extent != o.Extent || len(c.Voxels) != len(o.Voxels) {
		return false
	}
	for i := range c.Voxels {
		if c.Voxels[i] != o.Voxels[i] {
			return false
		}
	}
	return true
}

// IsAmbient reports whether every voxel equals voxel.Empty.
func (c *Chunk) IsAmbient() bool {
	for _, v := range c.Voxels {
		if v != voxel.Empty {
			return false
		}
	}
	return true
}

func (c *Chunk) SizeBytes() int64 { return int64(len(c.Voxels)) * voxel.SizeBytes }

// Digest hashes the extent and voxel payload.
func (c *Chunk) Digest() [32]byte {
	h := sha256.New()
	var tmp [8]byte
	for _, v := range []int{c.Extent.Min.X, c.Extent.Min.Y, c.Extent.Min.Z, c.Extent.Shape.X, c.Extent.Shape.Y, c.Extent.Shape.Z} {
		binary.LittleEndian.PutUint64(tmp[:], uint64(int64(v)))
		h.Write(tmp[:])
	}
	buf := make([]byte, 0, len(c.Voxels)*voxel.SizeBytes)
	for _, v := range c.Voxels {
		buf = append(buf, byte(v.Type), byte(v.Dist))
	}
	h.Write(buf)
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}
