package cache

import (
	"testing"

	"voxeledit.ai/internal/sim/encoding"
	"voxeledit.ai/internal/sim/geom"
	"voxeledit.ai/internal/sim/tasks"
	"voxeledit.ai/internal/sim/terrain/store"
	"voxeledit.ai/internal/sim/voxel"
)

func newMap(t *testing.T, budget int64) *store.ChunkMap {
	t.Helper()
	ix, err := store.NewIndexer(8)
	if err != nil {
		t.Fatalf("NewIndexer: %v", err)
	}
	return store.NewChunkMap(ix, encoding.RLECodec{}, store.CacheConfig{MaxDecompressedBytes: budget})
}

func solidChunk(m *store.ChunkMap, key store.ChunkKey, t voxel.TypeID) *store.Chunk {
	c := store.NewAmbientChunk(m.Indexer().ExtentForKey(key))
	for i := range c.Voxels {
		c.Voxels[i] = voxel.Voxel{Type: t, Dist: voxel.Distance(-int(t))}
	}
	return c
}

func TestParallelReadsDoNotMutateMap(t *testing.T) {
	m := newMap(t, 1)
	keys := []store.ChunkKey{store.K(0, 0, 0), store.K(1, 0, 0), store.K(0, 1, 0), store.K(0, 0, 1)}
	for i, k := range keys {
		m.WriteChunk(k, solidChunk(m, k, voxel.TypeID(i+1)))
	}
	if _, err := m.Compress(); err != nil {
		t.Fatalf("Compress: %v", err)
	}

	pool := tasks.NewPool(4)
	locals := NewLocals(pool.Workers())
	got := tasks.Map(pool, 64, func(worker, i int) voxel.TypeID {
		r := NewReader(m, locals.Get(worker))
		k := keys[i%len(keys)]
		return r.Chunk(k).Voxels[0].Type
	})
	for i, typ := range got {
		if want := voxel.TypeID(i%len(keys) + 1); typ != want {
			t.Fatalf("read %d: type %d want %d", i, typ, want)
		}
	}
	for _, k := range keys {
		if repr, _ := m.Representation(k); repr != store.Compressed {
			t.Fatalf("parallel read promoted %v", k)
		}
	}

	stats := Flush(m, store.KeySet{}, locals)
	if stats.Promoted != len(keys) {
		t.Fatalf("flush promoted %d, want %d (skipped %d)", stats.Promoted, len(keys), stats.Skipped)
	}
	for _, k := range keys {
		if repr, _ := m.Representation(k); repr != store.Decompressed {
			t.Fatalf("flush left %v compressed", k)
		}
	}
	locals.Each(func(_ int, c *LocalCache) {
		if c.Len() != 0 {
			t.Fatalf("local cache not emptied")
		}
	})
}

func TestFlushNeverClobbersFreshWrites(t *testing.T) {
	m := newMap(t, 1)
	k := store.K(0, 0, 0)
	m.WriteChunk(k, solidChunk(m, k, 1))
	if _, err := m.Compress(); err != nil {
		t.Fatalf("Compress: %v", err)
	}
	locals := NewLocals(1)
	stale := NewReader(m, locals.Get(0)).Chunk(k)
	if stale.Voxels[0].Type != 1 {
		t.Fatalf("unexpected read")
	}

	// A merge lands a newer version and maintenance compresses it again.
	m.WriteChunk(k, solidChunk(m, k, 2))
	if _, err := m.Compress(); err != nil {
		t.Fatalf("Compress: %v", err)
	}
	fresh := store.KeySet{}
	fresh.Add(k)

	stats := Flush(m, fresh, locals)
	if stats.Promoted != 0 || stats.Skipped != 1 {
		t.Fatalf("unexpected flush stats %+v", stats)
	}
	got, _ := m.CopyChunkWithoutCaching(k)
	if got.Voxels[0].Type != 2 {
		t.Fatalf("flush clobbered merged edit: type %d", got.Voxels[0].Type)
	}
}

func TestFlushSkipsRemovedAndDecompressed(t *testing.T) {
	m := newMap(t, 1)
	a, b := store.K(0, 0, 0), store.K(1, 0, 0)
	m.WriteChunk(a, solidChunk(m, a, 1))
	m.WriteChunk(b, solidChunk(m, b, 2))
	if _, err := m.Compress(); err != nil {
		t.Fatalf("Compress: %v", err)
	}
	locals := NewLocals(2)
	NewReader(m, locals.Get(0)).Chunk(a)
	NewReader(m, locals.Get(1)).Chunk(a)
	NewReader(m, locals.Get(1)).Chunk(b)
	m.RemoveChunk(b)

	stats := Flush(m, nil, locals)
	if stats.Promoted != 1 || stats.Skipped != 2 {
		t.Fatalf("unexpected flush stats %+v", stats)
	}
	if m.Has(b) {
		t.Fatalf("flush resurrected a removed chunk")
	}
}

func TestCopyExtentSpansChunks(t *testing.T) {
	m := newMap(t, 0)
	k := store.K(0, 0, 0)
	m.WriteChunk(k, solidChunk(m, k, 3))

	e := geom.ExtentFromMinAndShape(geom.P(-2, -2, -2), geom.Fill(12))
	dst := store.NewAmbientChunk(e)
	for i := range dst.Voxels {
		dst.Voxels[i] = voxel.Voxel{Type: 9, Dist: 0}
	}
	NewReader(m, NewLocalCache()).CopyExtent(e, dst)
	e.ForEach(func(p geom.Point3i) {
		v := dst.Get(p)
		inside := p.X >= 0 && p.X < 8 && p.Y >= 0 && p.Y < 8 && p.Z >= 0 && p.Z < 8
		if inside && v.Type != 3 {
			t.Fatalf("point %v: type %d want 3", p, v.Type)
		}
		if !inside && v != voxel.Empty {
			t.Fatalf("point %v: want ambient, got %+v", p, v)
		}
	})
}
