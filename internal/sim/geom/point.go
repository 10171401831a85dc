// Package geom holds the integer lattice types shared by the voxel store,
// the spatial index and the mesher.
package geom

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"
)

// Point3i is a point on the voxel lattice.
type Point3i struct {
	X int
	Y int
	Z int
}

func P(x, y, z int) Point3i { return Point3i{X: x, Y: y, Z: z} }

// Fill returns a point with every component set to v.
func Fill(v int) Point3i { return Point3i{X: v, Y: v, Z: v} }

func (p Point3i) Add(o Point3i) Point3i { return Point3i{p.X + o.X, p.Y + o.Y, p.Z + o.Z} }
func (p Point3i) Sub(o Point3i) Point3i { return Point3i{p.X - o.X, p.Y - o.Y, p.Z - o.Z} }
func (p Point3i) Mul(o Point3i) Point3i { return Point3i{p.X * o.X, p.Y * o.Y, p.Z * o.Z} }
func (p Point3i) Scale(s int) Point3i   { return Point3i{p.X * s, p.Y * s, p.Z * s} }

func (p Point3i) Min(o Point3i) Point3i {
	return Point3i{minInt(p.X, o.X), minInt(p.Y, o.Y), minInt(p.Z, o.Z)}
}

func (p Point3i) Max(o Point3i) Point3i {
	return Point3i{maxInt(p.X, o.X), maxInt(p.Y, o.Y), maxInt(p.Z, o.Z)}
}

// Axis returns component i (0=x, 1=y, 2=z).
func (p Point3i) Axis(i int) int {
	switch i {
	case 0:
		return p.X
	case 1:
		return p.Y
	default:
		return p.Z
	}
}

func (p Point3i) WithAxis(i, v int) Point3i {
	switch i {
	case 0:
		p.X = v
	case 1:
		p.Y = v
	default:
		p.Z = v
	}
	return p
}

func (p Point3i) Vec3() mgl32.Vec3 {
	return mgl32.Vec3{float32(p.X), float32(p.Y), float32(p.Z)}
}

func (p Point3i) ToArray() [3]int { return [3]int{p.X, p.Y, p.Z} }

func (p Point3i) String() string { return fmt.Sprintf("(%d,%d,%d)", p.X, p.Y, p.Z) }

// Less orders points z-major, then y, then x.
func (p Point3i) Less(o Point3i) bool {
	if p.Z != o.Z {
		return p.Z < o.Z
	}
	if p.Y != o.Y {
		return p.Y < o.Y
	}
	return p.X < o.X
}

// FloorPoint returns the lattice point whose unit voxel contains v.
func FloorPoint(v mgl32.Vec3) Point3i {
	return Point3i{
		X: int(math.Floor(float64(v[0]))),
		Y: int(math.Floor(float64(v[1]))),
		Z: int(math.Floor(float64(v[2]))),
	}
}

// CubeCornerOffsets are the 8 corners of a unit cube, x varying fastest.
var CubeCornerOffsets = [8]Point3i{
	{0, 0, 0}, {1, 0, 0}, {0, 1, 0}, {1, 1, 0},
	{0, 0, 1}, {1, 0, 1}, {0, 1, 1}, {1, 1, 1},
}
