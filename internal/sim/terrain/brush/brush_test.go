package brush

import (
	"errors"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"voxeledit.ai/internal/sim/geom"
	"voxeledit.ai/internal/sim/voxel"
)

var pal = voxel.DefaultPalette()

// gridEditor is a dense in-memory VoxelEditor.
type gridEditor struct {
	voxels  map[geom.Point3i]voxel.Voxel
	extents []geom.Extent
}

func newGrid() *gridEditor { return &gridEditor{voxels: map[geom.Point3i]voxel.Voxel{}} }

func (g *gridEditor) get(p geom.Point3i) voxel.Voxel {
	if v, ok := g.voxels[p]; ok {
		return v
	}
	return voxel.Empty
}

func (g *gridEditor) EditExtentAndTouchNeighbors(e geom.Extent, fn func(geom.Point3i, *voxel.Voxel)) {
	g.extents = append(g.extents, e)
	e.ForEach(func(p geom.Point3i) {
		v := g.get(p)
		fn(p, &v)
		g.voxels[p] = v
	})
}

func TestValidateType(t *testing.T) {
	if err := ValidateType(pal, 4); err != nil {
		t.Fatalf("type 4: %v", err)
	}
	if err := ValidateType(pal, 5); !errors.Is(err, ErrInvalidVoxelType) {
		t.Fatalf("type 5: %v", err)
	}
	g := newGrid()
	if err := Terraform(g, pal, MakeSolid, geom.P(0, 0, 0), 3, 200); !errors.Is(err, ErrInvalidVoxelType) {
		t.Fatalf("terraform accepted bad type: %v", err)
	}
	if len(g.extents) != 0 {
		t.Fatalf("rejected edit still wrote")
	}
}

func TestTerraformMakeAndRemove(t *testing.T) {
	g := newGrid()
	center := geom.P(5, -3, 2)
	for i := 0; i < 10; i++ {
		if err := Terraform(g, pal, MakeSolid, center, 4, 2); err != nil {
			t.Fatalf("Terraform: %v", err)
		}
	}
	if g.extents[0] != geom.ExtentFromMinAndShape(geom.P(1, -7, -2), geom.Fill(9)) {
		t.Fatalf("brush extent %v", g.extents[0])
	}
	c := g.get(center)
	if c.Type != 2 || c.Dist >= 0 {
		t.Fatalf("center after make solid: %+v", c)
	}
	if edge := g.get(center.Add(geom.P(4, 0, 0))); edge != voxel.Empty {
		t.Fatalf("voxel at the radius changed: %+v", edge)
	}

	for i := 0; i < 20; i++ {
		if err := Terraform(g, pal, RemoveSolid, center, 4, 3); err != nil {
			t.Fatalf("Terraform: %v", err)
		}
	}
	c = g.get(center)
	if c.Type != voxel.EmptyType || c.Dist != voxel.MaxDistance {
		t.Fatalf("center after remove solid: %+v", c)
	}
}

func TestFillSphereIsUnion(t *testing.T) {
	g := newGrid()
	if err := FillSphere(g, pal, mgl32.Vec3{0, 0, 0}, 3, 1); err != nil {
		t.Fatalf("FillSphere: %v", err)
	}
	if err := FillSphere(g, pal, mgl32.Vec3{4, 0, 0}, 2, 3); err != nil {
		t.Fatalf("FillSphere: %v", err)
	}
	if v := g.get(geom.P(0, 0, 0)); v.Type != 1 || v.Dist != voxel.MinDistance {
		t.Fatalf("first center %+v", v)
	}
	if v := g.get(geom.P(4, 0, 0)); v.Type != 3 {
		t.Fatalf("second center %+v", v)
	}
	if v := g.get(geom.P(0, 5, 0)); v.Type != voxel.EmptyType || v.Distance() != 2 {
		t.Fatalf("outside point %+v", v)
	}
	if err := FillSphere(g, pal, mgl32.Vec3{}, 1, voxel.EmptyType); err == nil {
		t.Fatalf("fill with the empty type accepted")
	}
}

func TestDragFace(t *testing.T) {
	g := newGrid()
	quad := geom.ExtentFromMinAndShape(geom.P(0, 0, 3), geom.P(2, 2, 1))

	moved, err := DragFace(g, pal, quad, geom.PosZ, 5, 4)
	if err != nil {
		t.Fatalf("DragFace: %v", err)
	}
	if moved.Min != geom.P(0, 0, 5) {
		t.Fatalf("moved quad %v", moved)
	}
	for z := 3; z <= 5; z++ {
		if v := g.get(geom.P(1, 1, z)); v.Type != 4 || v.Dist >= 0 {
			t.Fatalf("z=%d not filled: %+v", z, v)
		}
	}

	back, err := DragFace(g, pal, moved, geom.PosZ, 4, 4)
	if err != nil {
		t.Fatalf("DragFace back: %v", err)
	}
	if back.Min.Z != 4 {
		t.Fatalf("back %v", back)
	}
	if v := g.get(geom.P(0, 0, 5)); v.Type != voxel.EmptyType || v.Dist <= 0 {
		t.Fatalf("inward drag did not clear: %+v", v)
	}

	if _, err := DragFace(g, pal, geom.ExtentFromMinAndShape(geom.P(0, 0, 0), geom.Fill(2)), geom.PosX, 3, 1); err == nil {
		t.Fatalf("thick quad accepted")
	}
}
