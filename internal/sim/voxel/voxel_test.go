package voxel

import (
	"errors"
	"math"
	"testing"
)

func TestEncodeDistanceMonotonic(t *testing.T) {
	prev := EncodeDistance(-3)
	for d := float32(-3); d <= 3; d += 0.0037 {
		q := EncodeDistance(d)
		if q < prev {
			t.Fatalf("encode not monotonic at %f: %d < %d", d, q, prev)
		}
		prev = q
	}
}

func TestDecodeWithinOneStep(t *testing.T) {
	lo := MinDistance.Decode()
	hi := MaxDistance.Decode()
	for d := lo; d <= hi; d += 0.0031 {
		got := EncodeDistance(d).Decode()
		if diff := math.Abs(float64(got - d)); diff > float64(Step()) {
			t.Fatalf("decode(encode(%f)) = %f, off by %f", d, got, diff)
		}
	}
}

func TestEncodeClampBoundary(t *testing.T) {
	if got := EncodeDistance(MaxDistance.Decode()); got != MaxDistance {
		t.Fatalf("max boundary: got %d", got)
	}
	if got := EncodeDistance(MinDistance.Decode()); got != MinDistance {
		t.Fatalf("min boundary: got %d", got)
	}
	if got := EncodeDistance(1e9); got != MaxDistance {
		t.Fatalf("expected clamp to max, got %d", got)
	}
	if got := EncodeDistance(-1e9); got != MinDistance {
		t.Fatalf("expected clamp to min, got %d", got)
	}
}

func TestEmptyVoxel(t *testing.T) {
	p := DefaultPalette()
	if !p.IsEmpty(Empty) {
		t.Fatalf("empty voxel must map to an empty type")
	}
	if Empty.Dist != MaxDistance {
		t.Fatalf("empty voxel distance = %d", Empty.Dist)
	}
}

func TestNewPaletteRejectsNonEmptyZero(t *testing.T) {
	_, err := NewPalette([]TypeInfo{{IsEmpty: false, Material: 0}})
	if !errors.Is(err, ErrInvalidPalette) {
		t.Fatalf("expected ErrInvalidPalette, got %v", err)
	}
}

func TestNewPaletteRejectsBadMaterial(t *testing.T) {
	_, err := NewPalette([]TypeInfo{
		{IsEmpty: true, Material: NullMaterial},
		{Material: MaxMaterialLayers},
	})
	if !errors.Is(err, ErrInvalidPalette) {
		t.Fatalf("expected ErrInvalidPalette, got %v", err)
	}
	_, err = NewPalette([]TypeInfo{
		{IsEmpty: true, Material: NullMaterial},
		{Material: NullMaterial},
	})
	if !errors.Is(err, ErrInvalidPalette) {
		t.Fatalf("expected ErrInvalidPalette for null material, got %v", err)
	}
}

func TestPaletteContains(t *testing.T) {
	p := DefaultPalette()
	if !p.Contains(4) || p.Contains(5) {
		t.Fatalf("unexpected Contains result for len %d", p.Len())
	}
}
