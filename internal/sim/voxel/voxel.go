// Package voxel defines the per-cell data stored in the chunk map and the
// palette of type metadata it indexes into.
package voxel

import "math"

// TypeID indexes into a Palette.
type TypeID uint8

// EmptyType is reserved for ambient space.
const EmptyType TypeID = 0

// Distance is a quantized signed distance to the isosurface. Negative is
// inside solid.
type Distance int8

// DistanceScale is the number of quantization steps per voxel unit.
const DistanceScale = 50.0

const (
	MaxDistance Distance = math.MaxInt8
	MinDistance Distance = math.MinInt8
)

// EncodeDistance quantizes d, clamping to the representable range.
func EncodeDistance(d float32) Distance {
	q := math.Round(float64(d) * DistanceScale)
	if q > float64(MaxDistance) {
		return MaxDistance
	}
	if q < float64(MinDistance) || math.IsNaN(q) {
		return MinDistance
	}
	return Distance(q)
}

// Decode is the inverse of EncodeDistance.
func (d Distance) Decode() float32 {
	return float32(d) / DistanceScale
}

// Step is the distance covered by one quantization step.
func Step() float32 { return 1 / DistanceScale }

// Voxel is the record stored at every lattice point.
type Voxel struct {
	Type TypeID
	Dist Distance
}

// Empty is the ambient voxel synthesized for missing chunks.
var Empty = Voxel{Type: EmptyType, Dist: MaxDistance}

func New(t TypeID, d float32) Voxel {
	return Voxel{Type: t, Dist: EncodeDistance(d)}
}

// Distance returns the decoded signed distance.
func (v Voxel) Distance() float32 { return v.Dist.Decode() }

// SizeBytes is the in-memory footprint of one voxel.
const SizeBytes = 2
