package encoding

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"voxeledit.ai/internal/sim/voxel"
)

// RLECodec stores (type, distance, run_len) triples, the run length as a
// uvarint. Ambient-heavy chunks collapse to a few bytes.
type RLECodec struct{}

func (RLECodec) Name() string { return "rle" }

func (RLECodec) Compress(voxels []voxel.Voxel) ([]byte, error) {
	var buf bytes.Buffer
	var tmp [binary.MaxVarintLen64]byte

	i := 0
	for i < len(voxels) {
		v := voxels[i]
		run := 1
		for j := i + 1; j < len(voxels) && voxels[j] == v; j++ {
			run++
		}

		buf.WriteByte(byte(v.Type))
		buf.WriteByte(byte(v.Dist))
		n := binary.PutUvarint(tmp[:], uint64(run))
		buf.Write(tmp[:n])

		i += run
	}
	return buf.Bytes(), nil
}

func (RLECodec) Decompress(raw []byte, n int) ([]voxel.Voxel, error) {
	out := make([]voxel.Voxel, 0, n)
	for i := 0; i < len(raw); {
		if i+2 > len(raw) {
			return nil, fmt.Errorf("truncated run at %d", i)
		}
		v := voxel.Voxel{Type: voxel.TypeID(raw[i]), Dist: voxel.Distance(int8(raw[i+1]))}
		i += 2
		run, m := binary.Uvarint(raw[i:])
		if m <= 0 {
			return nil, fmt.Errorf("bad varint at %d", i)
		}
		i += m
		if run == 0 || uint64(len(out))+run > uint64(n) {
			return nil, fmt.Errorf("run of %d overflows %d voxels", run, n)
		}
		for k := uint64(0); k < run; k++ {
			out = append(out, v)
		}
	}
	if len(out) != n {
		return nil, fmt.Errorf("decoded %d voxels, want %d", len(out), n)
	}
	return out, nil
}
