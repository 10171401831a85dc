// Package octree indexes which voxels of each chunk are occupied and answers
// ray queries against the whole map.
package octree

import (
	"fmt"

	"voxeledit.ai/internal/sim/geom"
	"voxeledit.ai/internal/sim/terrain/store"
	"voxeledit.ai/internal/sim/voxel"
)

// node is nil when empty, a leaf when full, otherwise it has 8 children.
// Octant bit 0 selects +x, bit 1 +y, bit 2 +z.
type node struct {
	full     bool
	children *[8]*node
}

var fullLeaf = &node{full: true}

// OctreeSet is the occupancy set of one cubic chunk.
type OctreeSet struct {
	extent geom.Extent
	root   *node
	count  int
	bounds geom.Extent
}

// Build maps every voxel of c through the palette's emptiness flag and
// collapses uniform subtrees. c's extent must be a power-of-two cube.
func Build(c *store.Chunk, pal voxel.Palette) *OctreeSet {
	edge := c.Extent.Shape.X
	if c.Extent.Shape != geom.Fill(edge) || !geom.IsPowerOfTwo(edge) {
		panic(fmt.Sprintf("octree: extent %v is not a power-of-two cube", c.Extent))
	}
	s := &OctreeSet{extent: c.Extent}
	s.root = s.build(c, pal, c.Extent.Min, edge)
	s.bounds = s.tightBounds()
	return s
}

func (s *OctreeSet) build(c *store.Chunk, pal voxel.Palette, min geom.Point3i, edge int) *node {
	if edge == 1 {
		if pal.IsEmpty(c.Get(min)) {
			return nil
		}
		s.count++
		return fullLeaf
	}
	half := edge / 2
	var kids [8]*node
	nFull, nEmpty := 0, 0
	for oct := 0; oct < 8; oct++ {
		kids[oct] = s.build(c, pal, min.Add(octantOffset(oct, half)), half)
		switch {
		case kids[oct] == nil:
			nEmpty++
		case kids[oct].full:
			nFull++
		}
	}
	switch {
	case nEmpty == 8:
		return nil
	case nFull == 8:
		return fullLeaf
	}
	return &node{children: &kids}
}

func octantOffset(oct, half int) geom.Point3i {
	return geom.Point3i{X: (oct & 1) * half, Y: (oct >> 1 & 1) * half, Z: (oct >> 2 & 1) * half}
}

func (s *OctreeSet) Extent() geom.Extent { return s.extent }

// Bounds is the tight box around occupied voxels; empty when the set is.
func (s *OctreeSet) Bounds() geom.Extent { return s.bounds }

func (s *OctreeSet) IsEmpty() bool { return s.root == nil }

func (s *OctreeSet) IsFull() bool { return s.root != nil && s.root.full }

// Count is the number of occupied voxels.
func (s *OctreeSet) Count() int { return s.count }

func (s *OctreeSet) Contains(p geom.Point3i) bool {
	if !s.extent.Contains(p) {
		return false
	}
	n, min, edge := s.root, s.extent.Min, s.extent.Shape.X
	for n != nil && !n.full {
		half := edge / 2
		oct := 0
		if p.X >= min.X+half {
			oct |= 1
		}
		if p.Y >= min.Y+half {
			oct |= 2
		}
		if p.Z >= min.Z+half {
			oct |= 4
		}
		min = min.Add(octantOffset(oct, half))
		edge = half
		n = n.children[oct]
	}
	return n != nil
}

// VisitLeaves calls fn with the extent of every full node.
func (s *OctreeSet) VisitLeaves(fn func(e geom.Extent)) {
	visitLeaves(s.root, s.extent.Min, s.extent.Shape.X, fn)
}

func visitLeaves(n *node, min geom.Point3i, edge int, fn func(geom.Extent)) {
	if n == nil {
		return
	}
	if n.full {
		fn(geom.ExtentFromMinAndShape(min, geom.Fill(edge)))
		return
	}
	half := edge / 2
	for oct, kid := range n.children {
		visitLeaves(kid, min.Add(octantOffset(oct, half)), half, fn)
	}
}

func (s *OctreeSet) tightBounds() geom.Extent {
	var lo, hi geom.Point3i
	first := true
	s.VisitLeaves(func(e geom.Extent) {
		if first {
			lo, hi, first = e.Min, e.Max(), false
			return
		}
		lo, hi = lo.Min(e.Min), hi.Max(e.Max())
	})
	if first {
		return geom.Extent{}
	}
	return geom.ExtentFromMinAndMax(lo, hi)
}
