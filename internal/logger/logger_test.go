package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"debug": zapcore.DebugLevel,
		"warn":  zapcore.WarnLevel,
		"error": zapcore.ErrorLevel,
		"info":  zapcore.InfoLevel,
		"loud":  zapcore.InfoLevel,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q)=%v want %v", in, got, want)
		}
	}
}

func TestConsoleRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	l := New("warn", FileConfig{}, &buf)
	l.Info("hidden")
	Component(l, "store").Warn("shown", zap.Int("chunks", 3))
	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info logged at warn level: %q", out)
	}
	if !strings.Contains(out, "shown") || !strings.Contains(out, "chunks") {
		t.Fatalf("warn line missing: %q", out)
	}
}

func TestFileCoreWritesJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "voxeld.log")
	l := New("debug", DefaultFileConfig(path), nil)
	Component(l, "world").Debug("frame", zap.Uint64("frame", 7))
	_ = l.Sync()

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	var line map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(raw), &line); err != nil {
		t.Fatalf("log line is not JSON: %v: %q", err, raw)
	}
	if line["component"] != "world" || line["frame"] != float64(7) {
		t.Fatalf("unexpected fields %v", line)
	}
}
