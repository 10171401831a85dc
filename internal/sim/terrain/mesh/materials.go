package mesh

import (
	"fmt"

	"voxeledit.ai/internal/sim/geom"
	"voxeledit.ai/internal/sim/voxel"
)

// MaterialCounts holds, per material layer, how many of a vertex's eight
// cell corners are made of that material.
type MaterialCounts [voxel.MaxMaterialLayers]uint8

// CountAdjacentMaterials inspects the 8 corners of each surface cell in
// voxels (laid out over extent) and counts the materials of non-empty
// corners. A non-empty type without a material breaks the palette
// invariant and panics.
func CountAdjacentMaterials(voxels []voxel.Voxel, extent geom.Extent, pal voxel.Palette, surfaceStrides []int) []MaterialCounts {
	var corners [8]int
	for i, off := range geom.CubeCornerOffsets {
		corners[i] = off.X + off.Y*extent.Shape.X + off.Z*extent.Shape.X*extent.Shape.Y
	}
	counts := make([]MaterialCounts, len(surfaceStrides))
	for i, s := range surfaceStrides {
		for _, off := range corners {
			info := pal.Info(voxels[s+off].Type)
			if info.IsEmpty {
				continue
			}
			if info.Material == voxel.NullMaterial || int(info.Material) >= voxel.MaxMaterialLayers {
				panic(fmt.Sprintf("mesh: type %d has no material layer", voxels[s+off].Type))
			}
			counts[i][info.Material]++
		}
	}
	return counts
}

// PackMaterialWeights packs the counts one byte per layer, layer 0 in the
// low byte.
func PackMaterialWeights(c MaterialCounts) uint32 {
	return uint32(c[0]) | uint32(c[1])<<8 | uint32(c[2])<<16 | uint32(c[3])<<24
}
