package geom

import "fmt"

// Extent is an axis-aligned box of lattice points: [Min, Min+Shape).
type Extent struct {
	Min   Point3i
	Shape Point3i
}

func ExtentFromMinAndShape(min, shape Point3i) Extent {
	return Extent{Min: min, Shape: shape}
}

// ExtentFromMinAndMax builds the extent covering min..max inclusive.
func ExtentFromMinAndMax(min, max Point3i) Extent {
	return Extent{Min: min, Shape: max.Sub(min).Add(Fill(1))}
}

// CenteredCube covers every point within radius (chebyshev) of center.
func CenteredCube(center Point3i, radius int) Extent {
	return Extent{
		Min:   center.Sub(Fill(radius)),
		Shape: Fill(2*radius + 1),
	}
}

// Max returns the greatest point inside the extent.
func (e Extent) Max() Point3i { return e.Min.Add(e.Shape).Sub(Fill(1)) }

// Lub returns the least point strictly above the extent on every axis.
func (e Extent) Lub() Point3i { return e.Min.Add(e.Shape) }

func (e Extent) IsEmpty() bool {
	return e.Shape.X <= 0 || e.Shape.Y <= 0 || e.Shape.Z <= 0
}

func (e Extent) Volume() int {
	if e.IsEmpty() {
		return 0
	}
	return e.Shape.X * e.Shape.Y * e.Shape.Z
}

func (e Extent) Contains(p Point3i) bool {
	l := e.Lub()
	return p.X >= e.Min.X && p.Y >= e.Min.Y && p.Z >= e.Min.Z &&
		p.X < l.X && p.Y < l.Y && p.Z < l.Z
}

// Intersection returns the overlap of two extents; the result may be empty.
func (e Extent) Intersection(o Extent) Extent {
	min := e.Min.Max(o.Min)
	lub := e.Lub().Min(o.Lub())
	shape := lub.Sub(min).Max(Point3i{})
	return Extent{Min: min, Shape: shape}
}

func (e Extent) Intersects(o Extent) bool { return !e.Intersection(o).IsEmpty() }

// Padded grows the extent by n on every side.
func (e Extent) Padded(n int) Extent {
	return Extent{Min: e.Min.Sub(Fill(n)), Shape: e.Shape.Add(Fill(2 * n))}
}

func (e Extent) Translate(d Point3i) Extent {
	return Extent{Min: e.Min.Add(d), Shape: e.Shape}
}

// ForEach visits every point, x varying fastest.
func (e Extent) ForEach(fn func(p Point3i)) {
	if e.IsEmpty() {
		return
	}
	l := e.Lub()
	for z := e.Min.Z; z < l.Z; z++ {
		for y := e.Min.Y; y < l.Y; y++ {
			for x := e.Min.X; x < l.X; x++ {
				fn(Point3i{x, y, z})
			}
		}
	}
}

// Index returns the x-fastest linear index of p relative to the extent.
func (e Extent) Index(p Point3i) int {
	l := p.Sub(e.Min)
	return l.X + e.Shape.X*(l.Y+e.Shape.Y*l.Z)
}

// PointAt is the inverse of Index.
func (e Extent) PointAt(i int) Point3i {
	x := i % e.Shape.X
	i /= e.Shape.X
	y := i % e.Shape.Y
	z := i / e.Shape.Y
	return e.Min.Add(Point3i{x, y, z})
}

func (e Extent) String() string {
	return fmt.Sprintf("[%v..%v]", e.Min, e.Max())
}
