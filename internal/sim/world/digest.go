package world

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
)

// StateDigest hashes the committed voxel content. Chunks that hold only
// ambient voxels hash the same as absent ones, so the digest does not
// depend on reclamation timing or compression state.
func (w *World) StateDigest() string {
	h := sha256.New()
	var tmp [8]byte
	for _, k := range w.chunks.Keys() {
		c, _ := w.chunks.CopyChunkWithoutCaching(k)
		if c.IsAmbient() {
			continue
		}
		for _, v := range []int{k.X, k.Y, k.Z} {
			binary.LittleEndian.PutUint64(tmp[:], uint64(int64(v)))
			h.Write(tmp[:])
		}
		d := c.Digest()
		h.Write(d[:])
	}
	return hex.EncodeToString(h.Sum(nil))
}
