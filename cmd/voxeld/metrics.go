package main

import (
	"fmt"
	"io"
	"sync"

	"voxeledit.ai/internal/persistence/indexdb"
	"voxeledit.ai/internal/sim/terrain/mesh"
	"voxeledit.ai/internal/sim/world"
	"voxeledit.ai/internal/transport/observer"
)

// statsSink keeps the latest frame report and running totals for /metrics.
type statsSink struct {
	mu        sync.Mutex
	last      world.FrameReport
	reclaimed uint64
	upserted  uint64
	removed   uint64
	actions   uint64
}

func newStatsSink() *statsSink { return &statsSink{} }

func (s *statsSink) WriteFrame(rep world.FrameReport, _ []mesh.MeshDelta) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = rep
	s.reclaimed += uint64(len(rep.Reclaimed))
	s.upserted += uint64(rep.MeshesUpserted)
	s.removed += uint64(rep.MeshesRemoved)
	s.actions += uint64(len(rep.Actions))
	return nil
}

func (s *statsSink) Last() world.FrameReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

type totals struct {
	reclaimed, upserted, removed, actions uint64
}

func (s *statsSink) totals() totals {
	s.mu.Lock()
	defer s.mu.Unlock()
	return totals{s.reclaimed, s.upserted, s.removed, s.actions}
}

// writeMetrics renders the Prometheus text exposition format.
func writeMetrics(w io.Writer, worldID string, stats *statsSink, idx indexdb.Stats, obs *observer.Server) {
	last := stats.Last()
	tot := stats.totals()

	gauge := func(name, help string, v any) {
		fmt.Fprintf(w, "# HELP %s %s\n", name, help)
		fmt.Fprintf(w, "# TYPE %s gauge\n", name)
		fmt.Fprintf(w, "%s{world=%q} %v\n", name, worldID, v)
	}
	counter := func(name, help string, v uint64) {
		fmt.Fprintf(w, "# HELP %s %s\n", name, help)
		fmt.Fprintf(w, "# TYPE %s counter\n", name)
		fmt.Fprintf(w, "%s{world=%q} %d\n", name, worldID, v)
	}

	gauge("voxeledit_frame", "Last completed frame.", last.Frame)
	gauge("voxeledit_chunks", "Stored chunk count.", last.Chunks)
	gauge("voxeledit_decompressed_bytes", "Bytes held by decompressed chunks.", last.DecompressedBytes)
	gauge("voxeledit_compressed_bytes", "Bytes held by compressed chunks.", last.CompressedBytes)
	gauge("voxeledit_octrees_rebuilt", "Octrees inserted by the last frame.", last.Octrees.Inserted)
	gauge("voxeledit_frame_ms", "Last frame duration in milliseconds.", fmt.Sprintf("%.3f", float64(last.Durations.Total.Microseconds())/1000))

	counter("voxeledit_reclaimed_chunks_total", "Chunks reclaimed as empty.", tot.reclaimed)
	counter("voxeledit_mesh_upserts_total", "Chunk meshes installed.", tot.upserted)
	counter("voxeledit_mesh_removals_total", "Chunk meshes removed.", tot.removed)
	counter("voxeledit_timeline_actions_total", "Finish, undo and redo actions.", tot.actions)

	counter("voxeledit_index_dropped_total", "Frames the index dropped under load.", idx.DropFrameTotal)
	gauge("voxeledit_index_queue_depth", "Index writer backlog.", idx.QueueDepth)
	if obs != nil {
		gauge("voxeledit_observers", "Connected observers.", obs.Subscribers())
		counter("voxeledit_observers_dropped_total", "Observers disconnected for falling behind.", obs.Dropped())
	}
}
