// Package cache holds the per-worker decompression caches that let parallel
// passes read compressed chunks without touching the shared map.
package cache

import (
	"voxeledit.ai/internal/sim/tasks"
	"voxeledit.ai/internal/sim/terrain/store"
)

// LocalCache is owned by exactly one worker.
type LocalCache struct {
	chunks map[store.ChunkKey]*store.Chunk
}

func NewLocalCache() *LocalCache {
	return &LocalCache{chunks: map[store.ChunkKey]*store.Chunk{}}
}

func (c *LocalCache) Get(key store.ChunkKey) (*store.Chunk, bool) {
	ch, ok := c.chunks[key]
	return ch, ok
}

func (c *LocalCache) Put(key store.ChunkKey, ch *store.Chunk) { c.chunks[key] = ch }

func (c *LocalCache) Len() int { return len(c.chunks) }

// Locals is the set of worker caches for one pass.
type Locals = tasks.Local[*LocalCache]

func NewLocals(workers int) *Locals {
	return tasks.NewLocal(workers, NewLocalCache)
}

type FlushStats struct {
	Promoted int `json:"promoted"`
	Skipped  int `json:"skipped"`
}

func (s *FlushStats) add(o FlushStats) {
	s.Promoted += o.Promoted
	s.Skipped += o.Skipped
}

// Flush moves every locally decoded chunk into the authoritative map and
// empties the local caches. A chunk is written back only while its key is
// still stored compressed and absent from fresh, the keys written by the
// last merge: merged data always wins over cached reads.
func Flush(m *store.ChunkMap, fresh store.KeySet, locals ...*Locals) FlushStats {
	var stats FlushStats
	for _, l := range locals {
		l.Each(func(_ int, c *LocalCache) {
			stats.add(flushOne(m, fresh, c))
		})
	}
	return stats
}

func flushOne(m *store.ChunkMap, fresh store.KeySet, c *LocalCache) FlushStats {
	var stats FlushStats
	keys := make([]store.ChunkKey, 0, len(c.chunks))
	for k := range c.chunks {
		keys = append(keys, k)
	}
	store.SortKeys(keys)
	for _, k := range keys {
		if fresh.Has(k) || !m.PromoteCached(k, c.chunks[k]) {
			stats.Skipped++
			continue
		}
		stats.Promoted++
	}
	clear(c.chunks)
	return stats
}
