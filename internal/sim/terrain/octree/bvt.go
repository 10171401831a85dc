package octree

import (
	"sort"

	"voxeledit.ai/internal/sim/geom"
	"voxeledit.ai/internal/sim/tasks"
	"voxeledit.ai/internal/sim/terrain/cache"
	"voxeledit.ai/internal/sim/terrain/store"
	"voxeledit.ai/internal/sim/voxel"
)

// regionShift groups 8x8x8 chunks under one bounding box.
const regionShift = 3

type region struct {
	keys   store.KeySet
	bounds geom.Extent
}

// BVT is a two-level bounding volume tree over the per-chunk octrees.
// Only non-empty sets are stored.
type BVT struct {
	sets    map[store.ChunkKey]*OctreeSet
	regions map[store.ChunkKey]*region
}

func NewBVT() *BVT {
	return &BVT{
		sets:    map[store.ChunkKey]*OctreeSet{},
		regions: map[store.ChunkKey]*region{},
	}
}

func regionOf(k store.ChunkKey) store.ChunkKey {
	return store.K(k.X>>regionShift, k.Y>>regionShift, k.Z>>regionShift)
}

func (b *BVT) Len() int { return len(b.sets) }

func (b *BVT) Get(key store.ChunkKey) (*OctreeSet, bool) {
	s, ok := b.sets[key]
	return s, ok
}

func (b *BVT) Keys() []store.ChunkKey {
	keys := make([]store.ChunkKey, 0, len(b.sets))
	for k := range b.sets {
		keys = append(keys, k)
	}
	store.SortKeys(keys)
	return keys
}

// Insert replaces the set for key. An empty set removes the entry.
func (b *BVT) Insert(key store.ChunkKey, s *OctreeSet) {
	if s == nil || s.IsEmpty() {
		b.Remove(key)
		return
	}
	b.sets[key] = s
	rk := regionOf(key)
	r := b.regions[rk]
	if r == nil {
		r = &region{keys: store.KeySet{}}
		b.regions[rk] = r
	}
	r.keys.Add(key)
	b.refit(r)
}

func (b *BVT) Remove(key store.ChunkKey) bool {
	if _, ok := b.sets[key]; !ok {
		return false
	}
	delete(b.sets, key)
	rk := regionOf(key)
	r := b.regions[rk]
	delete(r.keys, key)
	if len(r.keys) == 0 {
		delete(b.regions, rk)
	} else {
		b.refit(r)
	}
	return true
}

func (b *BVT) refit(r *region) {
	var lo, hi geom.Point3i
	first := true
	for k := range r.keys {
		e := b.sets[k].Bounds()
		if first {
			lo, hi, first = e.Min, e.Max(), false
			continue
		}
		lo, hi = lo.Min(e.Min), hi.Max(e.Max())
	}
	r.bounds = geom.ExtentFromMinAndMax(lo, hi)
}

type keyedHit struct {
	key store.ChunkKey
	hit slabHit
}

func sortHits(hits []keyedHit) {
	sort.Slice(hits, func(i, j int) bool {
		ti, tj := hits[i].hit.entryT(), hits[j].hit.entryT()
		if ti != tj {
			return ti < tj
		}
		return hits[i].key.Less(hits[j].key)
	})
}

// RayCast returns the nearest occupied voxel along r. maxT <= 0 means
// unbounded. Regions and chunks are visited front to back and skipped once
// their entry lies beyond the best hit.
func (b *BVT) RayCast(r Ray, maxT float32) (Impact, bool) {
	regions := make([]keyedHit, 0, len(b.regions))
	for rk, reg := range b.regions {
		if h, ok := intersectExtent(r, reg.bounds); ok && inRange(h.entryT(), maxT) {
			regions = append(regions, keyedHit{key: rk, hit: h})
		}
	}
	sortHits(regions)

	var best *Impact
	for _, rh := range regions {
		if best != nil && rh.hit.entryT() > best.T {
			break
		}
		reg := b.regions[rh.key]
		chunks := make([]keyedHit, 0, len(reg.keys))
		for k := range reg.keys {
			if h, ok := intersectExtent(r, b.sets[k].Bounds()); ok && inRange(h.entryT(), maxT) {
				chunks = append(chunks, keyedHit{key: k, hit: h})
			}
		}
		sortHits(chunks)
		for _, ch := range chunks {
			if best != nil && ch.hit.entryT() > best.T {
				break
			}
			prev := best
			best = b.sets[ch.key].castSet(r, maxT, best)
			if best != prev {
				best.Chunk = ch.key
			}
		}
	}
	if best == nil {
		return Impact{}, false
	}
	return *best, true
}

// KeyedOctree is one result of the parallel index pass.
type KeyedOctree struct {
	Key store.ChunkKey
	Set *OctreeSet
}

// BuildOctrees rebuilds the sets for keys in parallel, reading through the
// per-worker caches. Missing chunks produce empty sets.
func BuildOctrees(pool *tasks.Pool, locals *cache.Locals, m *store.ChunkMap, pal voxel.Palette, keys []store.ChunkKey) []KeyedOctree {
	return tasks.Map(pool, len(keys), func(worker, i int) KeyedOctree {
		r := cache.NewReader(m, locals.Get(worker))
		return KeyedOctree{Key: keys[i], Set: Build(r.Chunk(keys[i]), pal)}
	})
}

// RemovalQueue receives chunks whose content turned out to be all empty.
type RemovalQueue interface {
	MarkForRemoval(key store.ChunkKey)
}

type ApplyStats struct {
	Inserted int `json:"inserted"`
	Removed  int `json:"removed"`
	Emptied  int `json:"emptied"`
}

// Apply installs index pass results. An empty set drops the key from the
// tree and queues the chunk for reclamation.
func Apply(b *BVT, results []KeyedOctree, empties RemovalQueue) ApplyStats {
	var stats ApplyStats
	for _, res := range results {
		if res.Set.IsEmpty() {
			if b.Remove(res.Key) {
				stats.Removed++
			}
			if empties != nil {
				empties.MarkForRemoval(res.Key)
			}
			stats.Emptied++
			continue
		}
		b.Insert(res.Key, res.Set)
		stats.Inserted++
	}
	return stats
}
