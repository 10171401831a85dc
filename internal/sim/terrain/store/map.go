package store

import (
	"errors"
	"fmt"
	"math"

	"github.com/hashicorp/golang-lru/v2/simplelru"

	"voxeledit.ai/internal/sim/encoding"
	"voxeledit.ai/internal/sim/geom"
	"voxeledit.ai/internal/sim/voxel"
)

// ErrCorruptChunk marks compressed data that no longer decodes. The map only
// ever holds blobs produced by its own codec, so this is unrecoverable.
var ErrCorruptChunk = errors.New("corrupt compressed chunk")

// Representation tags how a chunk is held at rest.
type Representation uint8

const (
	Decompressed Representation = iota + 1
	Compressed
)

func (r Representation) String() string {
	switch r {
	case Decompressed:
		return "decompressed"
	case Compressed:
		return "compressed"
	default:
		return "unknown"
	}
}

// storedChunk is either a live array or an opaque codec blob, never both.
type storedChunk struct {
	repr  Representation
	chunk *Chunk
	blob  []byte
}

// ChunkCache receives chunks decompressed on behalf of one reader.
type ChunkCache interface {
	Get(key ChunkKey) (*Chunk, bool)
	Put(key ChunkKey, c *Chunk)
}

type CacheConfig struct {
	// MaxDecompressedBytes is the budget for decompressed chunks. Zero or
	// negative disables compression.
	MaxDecompressedBytes int64
	// MaxCompressPerPass caps how many chunks one maintenance pass may
	// compress. Zero means no cap.
	MaxCompressPerPass int
}

// ChunkMap is the authoritative key -> chunk store with an LRU of
// decompressed chunks. Reads through GetChunk never mutate it; all writes
// happen at the frame's serialization point.
type ChunkMap struct {
	indexer Indexer
	codec   encoding.Codec
	cfg     CacheConfig

	chunks map[ChunkKey]*storedChunk
	// Ordered by write. Never evicts on its own; Compress walks the oldest
	// end against the byte budget.
	lru *simplelru.LRU[ChunkKey, struct{}]

	decompressedBytes int64
	compressedBytes   int64
}

func NewChunkMap(ix Indexer, codec encoding.Codec, cfg CacheConfig) *ChunkMap {
	lru, err := simplelru.NewLRU[ChunkKey, struct{}](math.MaxInt, nil)
	if err != nil {
		panic(err)
	}
	return &ChunkMap{
		indexer: ix,
		codec:   codec,
		cfg:     cfg,
		chunks:  map[ChunkKey]*storedChunk{},
		lru:     lru,
	}
}

func (m *ChunkMap) Indexer() Indexer      { return m.indexer }
func (m *ChunkMap) Codec() encoding.Codec { return m.codec }
func (m *ChunkMap) Config() CacheConfig   { return m.cfg }
func (m *ChunkMap) Len() int              { return len(m.chunks) }

// DecompressedLen is the number of chunks currently in the LRU.
func (m *ChunkMap) DecompressedLen() int { return m.lru.Len() }

func (m *ChunkMap) DecompressedBytes() int64 { return m.decompressedBytes }
func (m *ChunkMap) CompressedBytes() int64   { return m.compressedBytes }

func (m *ChunkMap) Has(key ChunkKey) bool {
	_, ok := m.chunks[key]
	return ok
}

// Representation reports how key is currently stored.
func (m *ChunkMap) Representation(key ChunkKey) (Representation, bool) {
	sc, ok := m.chunks[key]
	if !ok {
		return 0, false
	}
	return sc.repr, true
}

// Keys returns every stored key in sorted order.
func (m *ChunkMap) Keys() []ChunkKey {
	keys := make([]ChunkKey, 0, len(m.chunks))
	for k := range m.chunks {
		keys = append(keys, k)
	}
	SortKeys(keys)
	return keys
}

// GetChunk returns a read-only view of key. A compressed chunk is decoded
// into local (when non-nil) and the stored blob is left untouched.
// Decoding failure panics with ErrCorruptChunk.
func (m *ChunkMap) GetChunk(key ChunkKey, local ChunkCache) (*Chunk, bool) {
	sc, ok := m.chunks[key]
	if !ok {
		return nil, false
	}
	if sc.repr == Decompressed {
		return sc.chunk, true
	}
	if local != nil {
		if c, ok := local.Get(key); ok {
			return c, true
		}
	}
	c := m.mustDecompress(key, sc)
	if local != nil {
		local.Put(key, c)
	}
	return c, true
}

// GetVoxel reads one voxel; missing chunks read as voxel.Empty.
func (m *ChunkMap) GetVoxel(p geom.Point3i, local ChunkCache) voxel.Voxel {
	c, ok := m.GetChunk(m.indexer.KeyForPoint(p), local)
	if !ok {
		return voxel.Empty
	}
	return c.Get(p)
}

// CopyChunkWithoutCaching returns a private copy of key without inserting it
// into any cache or touching LRU order.
func (m *ChunkMap) CopyChunkWithoutCaching(key ChunkKey) (*Chunk, bool) {
	sc, ok := m.chunks[key]
	if !ok {
		return nil, false
	}
	if sc.repr == Decompressed {
		return sc.chunk.Clone(), true
	}
	return m.mustDecompress(key, sc), true
}

// CopyChunkOrAmbient is CopyChunkWithoutCaching with missing keys
// synthesized as ambient.
func (m *ChunkMap) CopyChunkOrAmbient(key ChunkKey) *Chunk {
	if c, ok := m.CopyChunkWithoutCaching(key); ok {
		return c
	}
	return NewAmbientChunk(m.indexer.ExtentForKey(key))
}

// WriteChunk inserts or replaces key in decompressed form and makes it the
// most recently used chunk.
func (m *ChunkMap) WriteChunk(key ChunkKey, c *Chunk) {
	if want := m.indexer.ExtentForKey(key); c.Extent != want || len(c.Voxels) != want.Volume() {
		panic(fmt.Sprintf("write %v: chunk extent %v does not match %v", key, c.Extent, want))
	}
	m.drop(key)
	m.chunks[key] = &storedChunk{repr: Decompressed, chunk: c}
	m.lru.Add(key, struct{}{})
	m.decompressedBytes += c.SizeBytes()
}

// PromoteCached replaces a compressed entry with an already decoded copy of
// the same data. Entries that are missing or already decompressed are left
// alone and false is returned.
func (m *ChunkMap) PromoteCached(key ChunkKey, c *Chunk) bool {
	sc, ok := m.chunks[key]
	if !ok || sc.repr != Compressed {
		return false
	}
	m.WriteChunk(key, c)
	return true
}

// RemoveChunk frees key in whichever form it is stored.
func (m *ChunkMap) RemoveChunk(key ChunkKey) bool {
	if _, ok := m.chunks[key]; !ok {
		return false
	}
	m.drop(key)
	return true
}

func (m *ChunkMap) drop(key ChunkKey) {
	sc, ok := m.chunks[key]
	if !ok {
		return
	}
	switch sc.repr {
	case Decompressed:
		m.decompressedBytes -= sc.chunk.SizeBytes()
		m.lru.Remove(key)
	case Compressed:
		m.compressedBytes -= int64(len(sc.blob))
	}
	delete(m.chunks, key)
}

func (m *ChunkMap) mustDecompress(key ChunkKey, sc *storedChunk) *Chunk {
	vs, err := m.codec.Decompress(sc.blob, m.indexer.ChunkVolume())
	if err != nil {
		panic(fmt.Errorf("%w: %v: %v", ErrCorruptChunk, key, err))
	}
	return &Chunk{Extent: m.indexer.ExtentForKey(key), Voxels: vs}
}

type CompressionStats struct {
	Compressed  int   `json:"compressed"`
	BytesBefore int64 `json:"bytes_before"`
	BytesAfter  int64 `json:"bytes_after"`
}

// Compress encodes least-recently-used chunks in place until the
// decompressed footprint fits the budget. A codec error stops the pass and
// leaves the failing chunk decompressed.
func (m *ChunkMap) Compress() (CompressionStats, error) {
	stats := CompressionStats{BytesBefore: m.decompressedBytes}

	budget := m.cfg.MaxDecompressedBytes
	if budget <= 0 {
		stats.BytesAfter = m.decompressedBytes
		return stats, nil
	}
	for m.decompressedBytes > budget && m.lru.Len() > 0 {
		if m.cfg.MaxCompressPerPass > 0 && stats.Compressed >= m.cfg.MaxCompressPerPass {
			break
		}
		key, _, _ := m.lru.GetOldest()
		sc := m.chunks[key]
		blob, err := m.codec.Compress(sc.chunk.Voxels)
		if err != nil {
			stats.BytesAfter = m.decompressedBytes
			return stats, fmt.Errorf("compress %v: %w", key, err)
		}
		m.drop(key)
		m.chunks[key] = &storedChunk{repr: Compressed, blob: blob}
		m.compressedBytes += int64(len(blob))
		stats.Compressed++
	}
	stats.BytesAfter = m.decompressedBytes
	return stats, nil
}
