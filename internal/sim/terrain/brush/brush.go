// Package brush holds the edit tools that turn user intent into voxel
// writes. Type ids are validated here, at the tool boundary; the storage
// and meshing layers trust them.
package brush

import (
	"errors"
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl32"

	"voxeledit.ai/internal/sim/geom"
	"voxeledit.ai/internal/sim/voxel"
)

var ErrInvalidVoxelType = errors.New("voxel type not in palette")

// VoxelEditor is the write side tools need.
type VoxelEditor interface {
	EditExtentAndTouchNeighbors(e geom.Extent, fn func(p geom.Point3i, v *voxel.Voxel))
}

func ValidateType(pal voxel.Palette, t voxel.TypeID) error {
	if !pal.Contains(t) {
		return fmt.Errorf("%w: %d (palette has %d types)", ErrInvalidVoxelType, t, pal.Len())
	}
	return nil
}

type Operation uint8

const (
	MakeSolid Operation = iota + 1
	RemoveSolid
)

func (op Operation) String() string {
	switch op {
	case MakeSolid:
		return "make_solid"
	case RemoveSolid:
		return "remove_solid"
	default:
		return "unknown"
	}
}

// ParseOperation accepts the names String returns.
func ParseOperation(s string) (Operation, error) {
	switch s {
	case "make_solid":
		return MakeSolid, nil
	case "remove_solid":
		return RemoveSolid, nil
	}
	return 0, fmt.Errorf("unknown terraform operation %q", s)
}

// GrowthFactor is the quantized distance change at the brush center per
// application.
const GrowthFactor = 20

// Terraform nudges the distance field inside a sphere, strongest at the
// center. Voxels that become inside take typ when making solid; voxels
// that become outside turn empty when removing.
func Terraform(ed VoxelEditor, pal voxel.Palette, op Operation, center geom.Point3i, radius int, typ voxel.TypeID) error {
	if radius < 1 {
		return fmt.Errorf("terraform radius %d < 1", radius)
	}
	sign := 0
	switch op {
	case MakeSolid:
		if err := ValidateType(pal, typ); err != nil {
			return err
		}
		sign = -1
	case RemoveSolid:
		typ = voxel.EmptyType
		sign = 1
	default:
		return fmt.Errorf("unknown terraform operation %d", op)
	}
	fr := float32(radius)
	ed.EditExtentAndTouchNeighbors(geom.CenteredCube(center, radius), func(p geom.Point3i, v *voxel.Voxel) {
		r := p.Sub(center).Vec3().Len()
		delta := sign * int(math.Round(float64(max(0, GrowthFactor*(1-r/fr)))))
		d := int(v.Dist) + delta
		v.Dist = voxel.Distance(min(max(d, int(voxel.MinDistance)), int(voxel.MaxDistance)))
		switch {
		case delta < 0 && v.Dist < 0:
			v.Type = typ
		case delta > 0 && v.Dist >= 0:
			v.Type = voxel.EmptyType
		}
	})
	return nil
}

// FillSphere unions an exact sphere of typ into the field: each voxel keeps
// the smaller of its distance and the sphere's.
func FillSphere(ed VoxelEditor, pal voxel.Palette, center mgl32.Vec3, radius float32, typ voxel.TypeID) error {
	if err := ValidateType(pal, typ); err != nil {
		return err
	}
	if pal.Info(typ).IsEmpty {
		return fmt.Errorf("%w: fill with empty type %d", ErrInvalidVoxelType, typ)
	}
	lo := geom.FloorPoint(center.Sub(mgl32.Vec3{radius, radius, radius})).Sub(geom.Fill(2))
	hi := geom.FloorPoint(center.Add(mgl32.Vec3{radius, radius, radius})).Add(geom.Fill(2))
	ed.EditExtentAndTouchNeighbors(geom.ExtentFromMinAndMax(lo, hi), func(p geom.Point3i, v *voxel.Voxel) {
		d := voxel.EncodeDistance(p.Vec3().Sub(center).Len() - radius)
		if d >= v.Dist {
			return
		}
		v.Dist = d
		if d < 0 {
			v.Type = typ
		}
	})
	return nil
}

// DragFace moves a one-voxel-thick quad along its normal axis to
// coordinate to, filling the swept slab with typ when moving outward and
// clearing it when moving inward. It returns the moved quad.
func DragFace(ed VoxelEditor, pal voxel.Palette, quad geom.Extent, normal geom.SignedAxis, to int, typ voxel.TypeID) (geom.Extent, error) {
	axis := normal.Axis()
	if quad.Shape.Axis(axis) != 1 {
		return quad, fmt.Errorf("drag face: quad %v is not flat along %v", quad, normal)
	}
	from := quad.Min.Axis(axis)
	if to == from {
		return quad, nil
	}
	moved := quad
	moved.Min = moved.Min.WithAxis(axis, to)

	write := voxel.New(voxel.EmptyType, 1)
	if to*normal.Sign() > from*normal.Sign() {
		if err := ValidateType(pal, typ); err != nil {
			return quad, err
		}
		write = voxel.New(typ, -1)
	}
	fill := geom.ExtentFromMinAndMax(quad.Min.Min(moved.Min), quad.Max().Max(moved.Max()))
	ed.EditExtentAndTouchNeighbors(fill, func(_ geom.Point3i, v *voxel.Voxel) { *v = write })
	return moved, nil
}
