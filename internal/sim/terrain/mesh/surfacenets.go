// Package mesh extracts smooth chunk surfaces from the distance field and
// keeps the registry of generated chunk meshes.
package mesh

import (
	"github.com/go-gl/mathgl/mgl32"

	"voxeledit.ai/internal/sim/geom"
)

// PosNormMesh is an indexed triangle list in world space.
type PosNormMesh struct {
	Positions []mgl32.Vec3 `json:"positions"`
	Normals   []mgl32.Vec3 `json:"normals"`
	Indices   []uint32     `json:"indices"`
}

func (m *PosNormMesh) IsEmpty() bool { return len(m.Indices) == 0 }

func (m *PosNormMesh) NumTriangles() int { return len(m.Indices) / 3 }

func (m *PosNormMesh) reset() {
	m.Positions = m.Positions[:0]
	m.Normals = m.Normals[:0]
	m.Indices = m.Indices[:0]
}

// Clone returns a copy that does not share backing arrays.
func (m *PosNormMesh) Clone() *PosNormMesh {
	return &PosNormMesh{
		Positions: append([]mgl32.Vec3(nil), m.Positions...),
		Normals:   append([]mgl32.Vec3(nil), m.Normals...),
		Indices:   append([]uint32(nil), m.Indices...),
	}
}

const noVertex = ^uint32(0)

// SurfaceNetsBuffer is reusable scratch and output for SurfaceNets. One
// buffer per worker.
type SurfaceNetsBuffer struct {
	Mesh PosNormMesh
	// SurfaceStrides holds, per vertex, the array index of the minimum
	// corner of the cell that produced it.
	SurfaceStrides []int

	cellVertex []uint32
}

func NewSurfaceNetsBuffer() *SurfaceNetsBuffer { return &SurfaceNetsBuffer{} }

func (b *SurfaceNetsBuffer) reset(volume int) {
	b.Mesh.reset()
	b.SurfaceStrides = b.SurfaceStrides[:0]
	if cap(b.cellVertex) < volume {
		b.cellVertex = make([]uint32, volume)
	}
	b.cellVertex = b.cellVertex[:volume]
	for i := range b.cellVertex {
		b.cellVertex[i] = noVertex
	}
}

// quadAxes lists, per edge axis, the two axes spanning the quad so that
// (u, v, axis) is right handed.
var quadAxes = [3][2]int{{1, 2}, {2, 0}, {0, 1}}

// SurfaceNets runs surface nets over sdf sampled on the lattice points of
// extent (x fastest). Negative values are inside. A vertex is placed in
// every cell whose corners change sign; a quad is emitted for every sign
// changing lattice edge whose lower endpoint lies in the interior of extent,
// that is extent without its one-voxel border. Adjacent chunks meshed with
// PaddedChunkExtent therefore tile without gaps or overlap.
func SurfaceNets(sdf []float32, extent geom.Extent, buf *SurfaceNetsBuffer) {
	buf.reset(len(sdf))
	shape := extent.Shape
	if shape.X < 2 || shape.Y < 2 || shape.Z < 2 {
		return
	}
	strides := [3]int{1, shape.X, shape.X * shape.Y}
	var corners [8]int
	for i, off := range geom.CubeCornerOffsets {
		corners[i] = off.X*strides[0] + off.Y*strides[1] + off.Z*strides[2]
	}

	for z := 0; z < shape.Z-1; z++ {
		for y := 0; y < shape.Y-1; y++ {
			for x := 0; x < shape.X-1; x++ {
				s := x + y*strides[1] + z*strides[2]
				cellMin := extent.Min.Add(geom.P(x, y, z))
				if pos, norm, ok := cellVertex(sdf, s, corners, cellMin); ok {
					buf.cellVertex[s] = uint32(len(buf.Mesh.Positions))
					buf.Mesh.Positions = append(buf.Mesh.Positions, pos)
					buf.Mesh.Normals = append(buf.Mesh.Normals, norm)
					buf.SurfaceStrides = append(buf.SurfaceStrides, s)
				}
			}
		}
	}

	for z := 1; z < shape.Z-1; z++ {
		for y := 1; y < shape.Y-1; y++ {
			for x := 1; x < shape.X-1; x++ {
				s := x + y*strides[1] + z*strides[2]
				d0 := sdf[s]
				for axis := 0; axis < 3; axis++ {
					d1 := sdf[s+strides[axis]]
					if (d0 < 0) == (d1 < 0) {
						continue
					}
					su, sv := strides[quadAxes[axis][0]], strides[quadAxes[axis][1]]
					a := buf.cellVertex[s-su-sv]
					b := buf.cellVertex[s-sv]
					c := buf.cellVertex[s]
					d := buf.cellVertex[s-su]
					if d0 < 0 {
						buf.emitQuad(a, b, c, d)
					} else {
						buf.emitQuad(d, c, b, a)
					}
				}
			}
		}
	}
}

// emitQuad splits the counter-clockwise quad a,b,c,d along its shorter
// diagonal.
func (b *SurfaceNetsBuffer) emitQuad(v0, v1, v2, v3 uint32) {
	p := b.Mesh.Positions
	if p[v0].Sub(p[v2]).LenSqr() <= p[v1].Sub(p[v3]).LenSqr() {
		b.Mesh.Indices = append(b.Mesh.Indices, v0, v1, v2, v0, v2, v3)
		return
	}
	b.Mesh.Indices = append(b.Mesh.Indices, v1, v2, v3, v1, v3, v0)
}

// cellEdges are the 12 edges of a cube as pairs of corner indices.
var cellEdges = [12][2]int{
	{0, 1}, {2, 3}, {4, 5}, {6, 7},
	{0, 2}, {1, 3}, {4, 6}, {5, 7},
	{0, 4}, {1, 5}, {2, 6}, {3, 7},
}

// cellVertex averages the zero crossings on the cell's edges. The normal is
// the trilinear gradient at the cell center.
func cellVertex(sdf []float32, s int, corners [8]int, cellMin geom.Point3i) (mgl32.Vec3, mgl32.Vec3, bool) {
	var d [8]float32
	neg := 0
	for i, off := range corners {
		d[i] = sdf[s+off]
		if d[i] < 0 {
			neg++
		}
	}
	if neg == 0 || neg == 8 {
		return mgl32.Vec3{}, mgl32.Vec3{}, false
	}

	var sum mgl32.Vec3
	n := 0
	for _, e := range cellEdges {
		da, db := d[e[0]], d[e[1]]
		if (da < 0) == (db < 0) {
			continue
		}
		t := da / (da - db)
		pa := geom.CubeCornerOffsets[e[0]].Vec3()
		pb := geom.CubeCornerOffsets[e[1]].Vec3()
		sum = sum.Add(pa.Add(pb.Sub(pa).Mul(t)))
		n++
	}
	pos := cellMin.Vec3().Add(sum.Mul(1 / float32(n)))

	grad := mgl32.Vec3{
		(d[1] - d[0]) + (d[3] - d[2]) + (d[5] - d[4]) + (d[7] - d[6]),
		(d[2] - d[0]) + (d[3] - d[1]) + (d[6] - d[4]) + (d[7] - d[5]),
		(d[4] - d[0]) + (d[5] - d[1]) + (d[6] - d[2]) + (d[7] - d[3]),
	}
	if l := grad.Len(); l > 0 {
		grad = grad.Mul(1 / l)
	}
	return pos, grad, true
}
