// Package world owns the voxel map and every structure derived from it,
// and advances them one frame at a time.
package world

import (
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"

	"voxeledit.ai/internal/logger"
	"voxeledit.ai/internal/sim/encoding"
	"voxeledit.ai/internal/sim/geom"
	"voxeledit.ai/internal/sim/tasks"
	"voxeledit.ai/internal/sim/terrain/cache"
	"voxeledit.ai/internal/sim/terrain/edit"
	"voxeledit.ai/internal/sim/terrain/mesh"
	"voxeledit.ai/internal/sim/terrain/octree"
	"voxeledit.ai/internal/sim/terrain/store"
	"voxeledit.ai/internal/sim/terrain/timeline"
	"voxeledit.ai/internal/sim/voxel"
)

// World is single-owner: every method except the request helpers must be
// called from the goroutine that runs frames.
type World struct {
	cfg     WorldConfig
	log     *zap.Logger
	palette voxel.Palette
	pool    *tasks.Pool

	chunks       *store.ChunkMap
	octreeLocals *cache.Locals
	meshLocals   *cache.Locals
	// Single-slot cache for tool-phase and query reads.
	scratch     *cache.Locals
	meshBuffers *mesh.Buffers

	buffer  *edit.EditBuffer
	editor  *edit.Editor
	dirty   *edit.DirtyChunks
	empties *edit.EmptyChunks

	bvt    *octree.BVT
	meshes *mesh.ChunkMeshes

	timeline   *timeline.EditTimeline
	snapEditor *timeline.SnapshottingEditor
	actions    []ActionEvent

	frame atomic.Uint64
	sinks []FrameSink

	queries chan request
	edits   chan request
	stop    chan struct{}
}

func New(cfg WorldConfig, log *zap.Logger) (*World, error) {
	cfg.applyDefaults()
	ix, err := store.NewIndexer(cfg.ChunkEdge)
	if err != nil {
		return nil, err
	}
	codec, err := encoding.NewCodec(cfg.Codec)
	if err != nil {
		return nil, err
	}
	pool := tasks.NewPool(cfg.Workers)
	m := store.NewChunkMap(ix, codec, cfg.Cache)
	buf := edit.NewEditBuffer(ix)
	ed := edit.NewEditor(m, buf)
	scratch := cache.NewLocals(1)
	ed.Scratch = scratch.Get(0)
	tl := timeline.NewEditTimeline(cfg.MaxUndoHistory)

	w := &World{
		cfg:          cfg,
		log:          logger.Component(log, "world"),
		palette:      cfg.Palette,
		pool:         pool,
		chunks:       m,
		octreeLocals: cache.NewLocals(pool.Workers()),
		meshLocals:   cache.NewLocals(pool.Workers()),
		scratch:      scratch,
		meshBuffers:  mesh.NewBuffers(pool.Workers()),
		buffer:       buf,
		editor:       ed,
		dirty:        edit.NewDirtyChunks(),
		empties:      edit.NewEmptyChunks(),
		bvt:          octree.NewBVT(),
		meshes:       mesh.NewChunkMeshes(),
		timeline:     tl,
		snapEditor:   timeline.NewSnapshottingEditor(ed, tl),
		queries:      make(chan request, 64),
		edits:        make(chan request, 256),
		stop:         make(chan struct{}),
	}
	w.log.Info("world created",
		zap.String("id", cfg.ID),
		zap.Int("chunk_edge", cfg.ChunkEdge),
		zap.String("codec", codec.Name()),
		zap.Int64("cache_budget_bytes", cfg.Cache.MaxDecompressedBytes),
		zap.Int("workers", pool.Workers()),
		zap.Int("palette_types", cfg.Palette.Len()),
	)
	return w, nil
}

// AddSink registers a consumer of frame reports. Sinks run on the frame
// goroutine in registration order.
func (w *World) AddSink(s FrameSink) { w.sinks = append(w.sinks, s) }

func (w *World) ID() string                       { return w.cfg.ID }
func (w *World) Config() WorldConfig              { return w.cfg }
func (w *World) FrameRateHz() int                 { return w.cfg.FrameRateHz }
func (w *World) Frame() uint64                    { return w.frame.Load() }
func (w *World) Palette() voxel.Palette           { return w.palette }
func (w *World) Chunks() *store.ChunkMap          { return w.chunks }
func (w *World) BVT() *octree.BVT                 { return w.bvt }
func (w *World) Meshes() *mesh.ChunkMeshes        { return w.meshes }
func (w *World) Timeline() *timeline.EditTimeline { return w.timeline }

// GetVoxel reads the committed map, ignoring unmerged edits. Chunks it
// decodes are shared with the editor's scratch cache and promoted at the
// next frame, so it belongs on the frame goroutine like any other query.
func (w *World) GetVoxel(p geom.Point3i) voxel.Voxel {
	return w.chunks.GetVoxel(p, w.scratch.Get(0))
}

// RayCast queries the spatial index as of the last frame.
func (w *World) RayCast(r octree.Ray, maxT float32) (octree.Impact, bool) {
	return w.bvt.RayCast(r, maxT)
}

func (w *World) String() string {
	return fmt.Sprintf("world(%s frame=%d chunks=%d)", w.cfg.ID, w.Frame(), w.chunks.Len())
}
