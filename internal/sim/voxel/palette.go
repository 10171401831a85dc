package voxel

import (
	"errors"
	"fmt"
)

var ErrInvalidPalette = errors.New("invalid palette")

// MaterialLayer selects a texture layer for blending. Only the first
// MaxMaterialLayers values are valid.
type MaterialLayer uint8

const (
	MaxMaterialLayers               = 4
	NullMaterial      MaterialLayer = 0xFF
)

// TypeInfo is the metadata shared by every voxel of one type.
type TypeInfo struct {
	IsEmpty  bool
	Material MaterialLayer
}

// Palette is the ordered table of TypeInfo indexed by TypeID.
type Palette struct {
	infos []TypeInfo
}

// NewPalette validates infos and returns a palette. Type 0 must be empty and
// every non-empty type must carry a material layer.
func NewPalette(infos []TypeInfo) (Palette, error) {
	if len(infos) == 0 {
		return Palette{}, fmt.Errorf("%w: no types", ErrInvalidPalette)
	}
	if len(infos) > 256 {
		return Palette{}, fmt.Errorf("%w: %d types exceeds 256", ErrInvalidPalette, len(infos))
	}
	if !infos[EmptyType].IsEmpty {
		return Palette{}, fmt.Errorf("%w: type 0 must be empty", ErrInvalidPalette)
	}
	for i, info := range infos {
		if info.IsEmpty {
			continue
		}
		if info.Material == NullMaterial || int(info.Material) >= MaxMaterialLayers {
			return Palette{}, fmt.Errorf("%w: type %d has material %d outside [0,%d)", ErrInvalidPalette, i, info.Material, MaxMaterialLayers)
		}
	}
	cp := make([]TypeInfo, len(infos))
	copy(cp, infos)
	return Palette{infos: cp}, nil
}

// MustPalette is NewPalette for static tables.
func MustPalette(infos ...TypeInfo) Palette {
	p, err := NewPalette(infos)
	if err != nil {
		panic(err)
	}
	return p
}

// DefaultPalette has one empty type and four solid types, one per layer.
func DefaultPalette() Palette {
	return MustPalette(
		TypeInfo{IsEmpty: true, Material: NullMaterial},
		TypeInfo{Material: 0},
		TypeInfo{Material: 1},
		TypeInfo{Material: 2},
		TypeInfo{Material: 3},
	)
}

func (p Palette) Len() int { return len(p.infos) }

// Contains reports whether t indexes a palette entry.
func (p Palette) Contains(t TypeID) bool { return int(t) < len(p.infos) }

// Info is plain indexing; callers validate type ids at the tool boundary.
func (p Palette) Info(t TypeID) TypeInfo { return p.infos[t] }

func (p Palette) IsEmpty(v Voxel) bool { return p.infos[v.Type].IsEmpty }

// Infos returns a copy of the table.
func (p Palette) Infos() []TypeInfo {
	out := make([]TypeInfo, len(p.infos))
	copy(out, p.infos)
	return out
}
