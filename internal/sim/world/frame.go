package world

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"voxeledit.ai/internal/sim/terrain/cache"
	"voxeledit.ai/internal/sim/terrain/edit"
	"voxeledit.ai/internal/sim/terrain/mesh"
	"voxeledit.ai/internal/sim/terrain/octree"
	"voxeledit.ai/internal/sim/terrain/store"
)

// FrameSink consumes what each frame produced.
type FrameSink interface {
	WriteFrame(rep FrameReport, deltas []mesh.MeshDelta) error
}

type Durations struct {
	Flush    time.Duration `json:"flush"`
	Reclaim  time.Duration `json:"reclaim"`
	Merge    time.Duration `json:"merge"`
	Compress time.Duration `json:"compress"`
	Passes   time.Duration `json:"passes"`
	Total    time.Duration `json:"total"`
}

type FrameReport struct {
	Frame uint64 `json:"frame"`

	Flush     cache.FlushStats `json:"flush"`
	Reclaimed []store.ChunkKey `json:"reclaimed,omitempty"`

	Edited int `json:"edited"`
	Dirty  int `json:"dirty"`

	Compression       store.CompressionStats `json:"compression"`
	Chunks            int                    `json:"chunks"`
	DecompressedBytes int64                  `json:"decompressed_bytes"`
	CompressedBytes   int64                  `json:"compressed_bytes"`

	Octrees        octree.ApplyStats `json:"octrees"`
	MeshesUpserted int               `json:"meshes_upserted"`
	MeshesRemoved  int               `json:"meshes_removed"`

	Actions   []ActionEvent `json:"actions,omitempty"`
	Digest    string        `json:"digest,omitempty"`
	Durations Durations     `json:"durations"`
}

// StepOnce runs one frame: flush local caches, reclaim empty chunks, merge
// edits, compress, then rebuild octrees and meshes for dirty chunks in
// parallel and install the results. A compression failure aborts the frame
// before the passes run.
func (w *World) StepOnce(ctx context.Context) (FrameReport, error) {
	if err := ctx.Err(); err != nil {
		return FrameReport{}, err
	}
	start := time.Now()
	rep := FrameReport{Frame: w.frame.Add(1)}

	t := time.Now()
	// The locals were filled after the last merge, so nothing they hold is
	// older than the map.
	rep.Flush = cache.Flush(w.chunks, nil, w.octreeLocals, w.meshLocals, w.scratch)
	rep.Durations.Flush = time.Since(t)

	t = time.Now()
	rep.Reclaimed = w.empties.Reclaim(w.chunks, w.buffer, w.onReclaim)
	rep.Durations.Reclaim = time.Since(t)

	t = time.Now()
	edit.Merge(w.chunks, w.buffer, w.dirty)
	rep.Edited, rep.Dirty = w.dirty.NumEdited(), w.dirty.NumDirty()
	rep.Durations.Merge = time.Since(t)

	t = time.Now()
	cs, err := w.chunks.Compress()
	rep.Compression = cs
	rep.Durations.Compress = time.Since(t)
	if err != nil {
		w.log.Error("compression pass failed", zap.Uint64("frame", rep.Frame), zap.Error(err))
		return rep, fmt.Errorf("frame %d: %w", rep.Frame, err)
	}

	t = time.Now()
	keys := w.dirty.Dirty()
	var octs []octree.KeyedOctree
	var meshes []mesh.KeyedMesh
	if len(keys) > 0 {
		w.pool.Scope(2, func(_, i int) {
			switch i {
			case 0:
				octs = octree.BuildOctrees(w.pool, w.octreeLocals, w.chunks, w.palette, keys)
			case 1:
				meshes = mesh.GenerateChunkMeshes(w.pool, w.meshLocals, w.meshBuffers, w.chunks, w.palette, keys)
			}
		})
	}
	rep.Octrees = octree.Apply(w.bvt, octs, w.empties)
	deltas := w.meshes.Apply(meshes)
	for _, d := range deltas {
		switch d.Kind {
		case mesh.Upsert:
			rep.MeshesUpserted++
		case mesh.Remove:
			rep.MeshesRemoved++
		}
	}
	rep.Durations.Passes = time.Since(t)

	rep.Chunks = w.chunks.Len()
	rep.DecompressedBytes = w.chunks.DecompressedBytes()
	rep.CompressedBytes = w.chunks.CompressedBytes()
	rep.Actions, w.actions = w.actions, nil
	if len(rep.Actions) > 0 {
		rep.Digest = w.StateDigest()
	}
	rep.Durations.Total = time.Since(start)

	if rep.Dirty > 0 || len(rep.Reclaimed) > 0 {
		w.log.Debug("frame",
			zap.Uint64("frame", rep.Frame),
			zap.Int("edited", rep.Edited),
			zap.Int("dirty", rep.Dirty),
			zap.Int("reclaimed", len(rep.Reclaimed)),
			zap.Int("compressed", rep.Compression.Compressed),
			zap.Int("meshes_upserted", rep.MeshesUpserted),
			zap.Duration("total", rep.Durations.Total),
		)
	}
	for _, s := range w.sinks {
		if err := s.WriteFrame(rep, deltas); err != nil {
			w.log.Warn("frame sink failed", zap.Uint64("frame", rep.Frame), zap.Error(err))
		}
	}
	return rep, nil
}

// onReclaim keeps the index and meshes in step with storage: the chunk now
// reads as ambient, so it and its neighbors are re-processed at this
// frame's merge.
func (w *World) onReclaim(key store.ChunkKey) {
	w.bvt.Remove(key)
	w.buffer.Touch(key)
	w.buffer.TouchNeighbors(key)
}
