package octree

import (
	"math"
	"sort"

	"github.com/go-gl/mathgl/mgl32"

	"voxeledit.ai/internal/sim/geom"
	"voxeledit.ai/internal/sim/terrain/store"
)

// Ray is a half line. Dir need not be normalized; T is measured in units of
// Dir.
type Ray struct {
	Origin mgl32.Vec3
	Dir    mgl32.Vec3
}

func NewRay(origin, dir mgl32.Vec3) Ray { return Ray{Origin: origin, Dir: dir} }

func (r Ray) At(t float32) mgl32.Vec3 { return r.Origin.Add(r.Dir.Mul(t)) }

// Impact is the first occupied voxel hit by a ray.
type Impact struct {
	Point    geom.Point3i
	T        float32
	Position mgl32.Vec3
	// Normal points out of the entered face; zero when the ray starts
	// inside the voxel.
	Normal geom.Point3i
	Chunk  store.ChunkKey
}

// Face returns the entered face as a signed axis.
func (i Impact) Face() (geom.SignedAxis, bool) { return geom.SignedAxisFromVector(i.Normal) }

// slabHit is the parametric interval of a ray inside a box.
type slabHit struct {
	enter, exit float32
	axis        int
}

// intersectBox clips r against the closed box [lo, hi].
func intersectBox(r Ray, lo, hi mgl32.Vec3) (slabHit, bool) {
	h := slabHit{enter: float32(math.Inf(-1)), exit: float32(math.Inf(1)), axis: -1}
	for i := 0; i < 3; i++ {
		o, d := r.Origin[i], r.Dir[i]
		if d == 0 {
			if o < lo[i] || o > hi[i] {
				return h, false
			}
			continue
		}
		t0, t1 := (lo[i]-o)/d, (hi[i]-o)/d
		if t0 > t1 {
			t0, t1 = t1, t0
		}
		if t0 > h.enter {
			h.enter, h.axis = t0, i
		}
		if t1 < h.exit {
			h.exit = t1
		}
	}
	if h.exit < h.enter || h.exit < 0 {
		return h, false
	}
	return h, true
}

// intersectExtent treats every lattice point p as the unit cube [p, p+1].
func intersectExtent(r Ray, e geom.Extent) (slabHit, bool) {
	if e.IsEmpty() {
		return slabHit{}, false
	}
	return intersectBox(r, e.Min.Vec3(), e.Lub().Vec3())
}

func (h slabHit) entryT() float32 {
	if h.enter < 0 {
		return 0
	}
	return h.enter
}

func (h slabHit) normal(r Ray) geom.Point3i {
	if h.enter < 0 || h.axis < 0 {
		return geom.Point3i{}
	}
	s := -1
	if r.Dir[h.axis] < 0 {
		s = 1
	}
	return geom.Point3i{}.WithAxis(h.axis, s)
}

// better orders candidate hits by distance then by point, so equal-distance
// hits resolve the same way every time.
func better(t float32, p geom.Point3i, best *Impact) bool {
	if best == nil {
		return true
	}
	if t != best.T {
		return t < best.T
	}
	return p.Less(best.Point)
}

func inRange(t, maxT float32) bool { return maxT <= 0 || t <= maxT }

// castSet finds the nearest occupied voxel of s along r, improving on best.
func (s *OctreeSet) castSet(r Ray, maxT float32, best *Impact) *Impact {
	return castNode(r, maxT, s.root, s.extent.Min, s.extent.Shape.X, best)
}

type childHit struct {
	oct int
	min geom.Point3i
	hit slabHit
}

func castNode(r Ray, maxT float32, n *node, min geom.Point3i, edge int, best *Impact) *Impact {
	if n == nil {
		return best
	}
	e := geom.ExtentFromMinAndShape(min, geom.Fill(edge))
	h, ok := intersectExtent(r, e)
	if !ok || !inRange(h.entryT(), maxT) {
		return best
	}
	if best != nil && h.entryT() > best.T {
		return best
	}
	if n.full {
		if edge == 1 {
			if better(h.entryT(), min, best) {
				return &Impact{Point: min, T: h.entryT(), Position: r.At(h.entryT()), Normal: h.normal(r)}
			}
			return best
		}
		// Split uniform leaves so the reported point is a single voxel.
		var kids [8]*node
		for i := range kids {
			kids[i] = fullLeaf
		}
		n = &node{children: &kids}
	}
	half := edge / 2
	hits := make([]childHit, 0, 8)
	for oct, kid := range n.children {
		if kid == nil {
			continue
		}
		cmin := min.Add(octantOffset(oct, half))
		ch, ok := intersectExtent(r, geom.ExtentFromMinAndShape(cmin, geom.Fill(half)))
		if !ok {
			continue
		}
		hits = append(hits, childHit{oct: oct, min: cmin, hit: ch})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].hit.entryT() < hits[j].hit.entryT() })
	for _, c := range hits {
		if best != nil && c.hit.entryT() > best.T {
			break
		}
		best = castNode(r, maxT, n.children[c.oct], c.min, half, best)
	}
	return best
}
