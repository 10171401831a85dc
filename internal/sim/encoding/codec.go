// Package encoding holds the lossless codecs used to compress chunks at rest.
package encoding

import (
	"fmt"
	"strings"

	"voxeledit.ai/internal/sim/voxel"
)

// Codec compresses the dense voxel array of one chunk. Implementations must
// be lossless and safe for concurrent use.
type Codec interface {
	Name() string
	Compress(voxels []voxel.Voxel) ([]byte, error)
	// Decompress decodes exactly n voxels or fails.
	Decompress(raw []byte, n int) ([]voxel.Voxel, error)
}

// NewCodec selects a codec by its configuration name.
func NewCodec(name string) (Codec, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "zstd":
		return NewZstdCodec()
	case "rle":
		return RLECodec{}, nil
	default:
		return nil, fmt.Errorf("unknown codec %q", name)
	}
}

// packVoxels lays voxels out as (type, distance) byte pairs.
func packVoxels(voxels []voxel.Voxel) []byte {
	out := make([]byte, len(voxels)*voxel.SizeBytes)
	for i, v := range voxels {
		out[2*i] = byte(v.Type)
		out[2*i+1] = byte(v.Dist)
	}
	return out
}

func unpackVoxels(raw []byte, n int) ([]voxel.Voxel, error) {
	if len(raw) != n*voxel.SizeBytes {
		return nil, fmt.Errorf("payload is %d bytes, want %d", len(raw), n*voxel.SizeBytes)
	}
	out := make([]voxel.Voxel, n)
	for i := range out {
		out[i] = voxel.Voxel{Type: voxel.TypeID(raw[2*i]), Dist: voxel.Distance(int8(raw[2*i+1]))}
	}
	return out, nil
}
