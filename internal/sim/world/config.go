package world

import (
	"voxeledit.ai/internal/sim/terrain/store"
	"voxeledit.ai/internal/sim/voxel"
)

type WorldConfig struct {
	ID string

	// ChunkEdge is the chunk edge length in voxels, a power of two.
	ChunkEdge int
	// Codec names the chunk compression codec ("rle" or "zstd").
	Codec string
	Cache store.CacheConfig

	// Workers sizes the frame task pool; <= 0 uses GOMAXPROCS.
	Workers     int
	FrameRateHz int

	// MaxUndoHistory caps the undo stack; 0 is unbounded.
	MaxUndoHistory int

	Palette voxel.Palette
}

func (c *WorldConfig) applyDefaults() {
	if c.ID == "" {
		c.ID = "voxeledit"
	}
	if c.ChunkEdge <= 0 {
		c.ChunkEdge = 16
	}
	if c.Codec == "" {
		c.Codec = "zstd"
	}
	if c.FrameRateHz <= 0 {
		c.FrameRateHz = 30
	}
	if c.Palette.Len() == 0 {
		c.Palette = voxel.DefaultPalette()
	}
}
