package log

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"voxeledit.ai/internal/sim/terrain/mesh"
	"voxeledit.ai/internal/sim/terrain/store"
	"voxeledit.ai/internal/sim/world"
)

// JSONLZstdWriter appends one JSON document per line to hourly zstd files
// named <prefix>-YYYY-MM-DD-HH.jsonl.zst.
type JSONLZstdWriter struct {
	baseDir string
	prefix  string
	now     func() time.Time

	mu      sync.Mutex
	curHour string
	f       *os.File
	enc     *zstd.Encoder
	w       *bufio.Writer
}

func NewJSONLZstdWriter(baseDir, prefix string) *JSONLZstdWriter {
	return &JSONLZstdWriter{
		baseDir: baseDir,
		prefix:  prefix,
		now:     time.Now,
	}
}

// WithClock replaces the rotation clock. Call before the first Write.
func (w *JSONLZstdWriter) WithClock(now func() time.Time) *JSONLZstdWriter {
	w.now = now
	return w
}

func (w *JSONLZstdWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

func (w *JSONLZstdWriter) Write(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	hour := w.now().UTC().Format("2006-01-02-15")
	if hour != w.curHour {
		if err := w.rotateLocked(hour); err != nil {
			return err
		}
	}

	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := w.w.Write(b); err != nil {
		return err
	}
	if err := w.w.WriteByte('\n'); err != nil {
		return err
	}
	return w.w.Flush()
}

func (w *JSONLZstdWriter) rotateLocked(hour string) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	path := w.pathForHour(hour)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f = f
	w.enc = enc
	w.w = bufio.NewWriterSize(enc, 128*1024)
	w.curHour = hour
	return nil
}

func (w *JSONLZstdWriter) closeLocked() error {
	var err1 error
	if w.w != nil {
		_ = w.w.Flush()
	}
	if w.enc != nil {
		err1 = w.enc.Close()
		w.enc = nil
	}
	if w.f != nil {
		_ = w.f.Close()
		w.f = nil
	}
	w.w = nil
	w.curHour = ""
	return err1
}

func (w *JSONLZstdWriter) pathForHour(hour string) string {
	return filepath.Join(w.baseDir, fmt.Sprintf("%s-%s.jsonl.zst", w.prefix, hour))
}

// DeltaSummary is a mesh delta without its geometry.
type DeltaSummary struct {
	Kind       string         `json:"kind"`
	Key        store.ChunkKey `json:"key"`
	ID         uint64         `json:"id"`
	ReplacedID uint64         `json:"replaced_id,omitempty"`
	Vertices   int            `json:"vertices,omitempty"`
	Triangles  int            `json:"triangles,omitempty"`
}

type FrameEntry struct {
	world.FrameReport
	Deltas []DeltaSummary `json:"deltas,omitempty"`
}

func Summarize(deltas []mesh.MeshDelta) []DeltaSummary {
	if len(deltas) == 0 {
		return nil
	}
	out := make([]DeltaSummary, 0, len(deltas))
	for _, d := range deltas {
		s := DeltaSummary{Kind: d.Kind.String(), Key: d.Key, ID: d.ID, ReplacedID: d.ReplacedID}
		if d.Mesh != nil && d.Mesh.Mesh != nil {
			s.Vertices = len(d.Mesh.Mesh.Positions)
			s.Triangles = d.Mesh.Mesh.NumTriangles()
		}
		out = append(out, s)
	}
	return out
}

// FrameLogger writes one zstd JSONL entry per frame that did any work.
// Idle frames are skipped.
type FrameLogger struct{ w *JSONLZstdWriter }

// NewFrameLoggerWithWriter logs through w, for callers that choose the
// directory, prefix or clock.
func NewFrameLoggerWithWriter(w *JSONLZstdWriter) *FrameLogger { return &FrameLogger{w: w} }

func (l *FrameLogger) WriteFrame(rep world.FrameReport, deltas []mesh.MeshDelta) error {
	if Idle(rep) {
		return nil
	}
	return l.w.Write(FrameEntry{FrameReport: rep, Deltas: Summarize(deltas)})
}

func (l *FrameLogger) Close() error { return l.w.Close() }

// Idle reports whether a frame changed nothing worth recording.
func Idle(rep world.FrameReport) bool {
	return rep.Dirty == 0 &&
		len(rep.Reclaimed) == 0 &&
		len(rep.Actions) == 0 &&
		rep.Compression.Compressed == 0
}
