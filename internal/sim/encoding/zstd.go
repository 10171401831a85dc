package encoding

import (
	"fmt"

	"github.com/klauspost/compress/zstd"

	"voxeledit.ai/internal/sim/voxel"
)

// ZstdCodec compresses the packed voxel bytes with zstd. EncodeAll and
// DecodeAll are safe to call from many goroutines on shared coders.
type ZstdCodec struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

func NewZstdCodec() (*ZstdCodec, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest), zstd.WithEncoderConcurrency(1))
	if err != nil {
		return nil, err
	}
	dec, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(0))
	if err != nil {
		_ = enc.Close()
		return nil, err
	}
	return &ZstdCodec{enc: enc, dec: dec}, nil
}

func (c *ZstdCodec) Name() string { return "zstd" }

func (c *ZstdCodec) Compress(voxels []voxel.Voxel) ([]byte, error) {
	return c.enc.EncodeAll(packVoxels(voxels), nil), nil
}

func (c *ZstdCodec) Decompress(raw []byte, n int) ([]voxel.Voxel, error) {
	b, err := c.dec.DecodeAll(raw, make([]byte, 0, n*voxel.SizeBytes))
	if err != nil {
		return nil, fmt.Errorf("zstd: %w", err)
	}
	return unpackVoxels(b, n)
}

func (c *ZstdCodec) Close() {
	_ = c.enc.Close()
	c.dec.Close()
}
