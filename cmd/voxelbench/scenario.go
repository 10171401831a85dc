package main

import (
	"context"
	"fmt"
	"time"

	"github.com/go-gl/mathgl/mgl32"

	"voxeledit.ai/internal/sim/geom"
	"voxeledit.ai/internal/sim/terrain/brush"
	"voxeledit.ai/internal/sim/terrain/mesh"
	"voxeledit.ai/internal/sim/terrain/octree"
	"voxeledit.ai/internal/sim/voxel"
	"voxeledit.ai/internal/sim/world"
)

type scenario struct {
	Spheres int
	Radius  float32
	Spacing float32
	Type    voxel.TypeID
	Picks   int
}

type phaseStats struct {
	Name      string
	Frames    int
	Total     time.Duration
	Max       time.Duration
	Upserted  int
	Removed   int
	Reclaimed int
	Chunks    int
	Bytes     int64
}

func (p *phaseStats) add(rep world.FrameReport) {
	p.Frames++
	p.Total += rep.Durations.Total
	if rep.Durations.Total > p.Max {
		p.Max = rep.Durations.Total
	}
	p.Upserted += rep.MeshesUpserted
	p.Removed += rep.MeshesRemoved
	p.Reclaimed += len(rep.Reclaimed)
	p.Chunks = rep.Chunks
	p.Bytes = rep.DecompressedBytes + rep.CompressedBytes
}

func (p phaseStats) Avg() time.Duration {
	if p.Frames == 0 {
		return 0
	}
	return p.Total / time.Duration(p.Frames)
}

type benchReport struct {
	Phases []phaseStats
	Hits   int
	// Digests after each phase, keyed by phase name.
	Digests map[string]string
}

// center places sphere i on a horizontal grid four spheres wide.
func (s scenario) center(i int) mgl32.Vec3 {
	row := i / 4
	col := i % 4
	return mgl32.Vec3{float32(col) * s.Spacing, s.Radius + 1, float32(row) * s.Spacing}
}

// run sculpts spheres, carves their cores, undoes everything, redoes it,
// then casts pick rays. Each edit is its own action followed by a frame.
func (s scenario) run(ctx context.Context, w *world.World) (benchReport, error) {
	rep := benchReport{Digests: map[string]string{"initial": w.StateDigest()}}

	step := func(ps *phaseStats) error {
		fr, err := w.StepOnce(ctx)
		if err != nil {
			return err
		}
		ps.add(fr)
		return nil
	}
	phase := func(name string, n int, fn func(i int) error) error {
		ps := phaseStats{Name: name}
		for i := 0; i < n; i++ {
			if err := fn(i); err != nil {
				return fmt.Errorf("%s %d: %w", name, i, err)
			}
			if err := step(&ps); err != nil {
				return fmt.Errorf("%s %d: %w", name, i, err)
			}
		}
		// Let reclaim catch up with chunks emptied by the last frame.
		if err := step(&ps); err != nil {
			return fmt.Errorf("%s settle: %w", name, err)
		}
		rep.Phases = append(rep.Phases, ps)
		rep.Digests[name] = w.StateDigest()
		return nil
	}
	finish := func() error {
		if _, ok := w.FinishEdit(); !ok {
			return fmt.Errorf("edit produced no action")
		}
		return nil
	}

	if err := phase("sculpt", s.Spheres, func(i int) error {
		if err := w.FillSphere(s.center(i), s.Radius, s.Type); err != nil {
			return err
		}
		return finish()
	}); err != nil {
		return rep, err
	}
	if err := phase("carve", s.Spheres, func(i int) error {
		c := s.center(i)
		if err := w.Terraform(brush.RemoveSolid, geom.FloorPoint(c), int(s.Radius/2), s.Type); err != nil {
			return err
		}
		return finish()
	}); err != nil {
		return rep, err
	}
	actions := w.Timeline().UndoLen()
	if err := phase("undo", actions, func(int) error {
		if _, ok := w.Undo(); !ok {
			return fmt.Errorf("undo stack empty")
		}
		return nil
	}); err != nil {
		return rep, err
	}
	if err := phase("redo", actions, func(int) error {
		if _, ok := w.Redo(); !ok {
			return fmt.Errorf("redo stack empty")
		}
		return nil
	}); err != nil {
		return rep, err
	}

	ps := phaseStats{Name: "pick"}
	for i := 0; i < s.Picks; i++ {
		c := s.center(i % max(s.Spheres, 1))
		origin := c.Add(mgl32.Vec3{-4 * s.Radius, 0.5, 0.5})
		start := time.Now()
		if _, ok := w.RayCast(octree.NewRay(origin, mgl32.Vec3{1, 0, 0}), 0); ok {
			rep.Hits++
		}
		d := time.Since(start)
		ps.Frames++
		ps.Total += d
		if d > ps.Max {
			ps.Max = d
		}
	}
	rep.Phases = append(rep.Phases, ps)
	return rep, nil
}

// verify checks that undo restored the initial field and redo restored the
// sculpted one.
func (r benchReport) verify() error {
	if r.Digests["undo"] != r.Digests["initial"] {
		return fmt.Errorf("undo digest %s != initial %s", r.Digests["undo"], r.Digests["initial"])
	}
	if r.Digests["redo"] != r.Digests["carve"] {
		return fmt.Errorf("redo digest %s != carve %s", r.Digests["redo"], r.Digests["carve"])
	}
	return nil
}

// countingSink tracks the mesh ids a renderer would hold after each frame.
type countingSink struct {
	live map[uint64]bool
}

func (c *countingSink) WriteFrame(_ world.FrameReport, deltas []mesh.MeshDelta) error {
	for _, d := range deltas {
		if d.ReplacedID != 0 {
			delete(c.live, d.ReplacedID)
		}
		switch d.Kind {
		case mesh.Upsert:
			c.live[d.ID] = true
		case mesh.Remove:
			delete(c.live, d.ID)
		}
	}
	return nil
}
