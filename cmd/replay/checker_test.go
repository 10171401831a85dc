package main

import (
	"context"
	"strings"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	persistlog "voxeledit.ai/internal/persistence/log"
	"voxeledit.ai/internal/sim/world"
)

func entry(frame uint64, deltas ...persistlog.DeltaSummary) persistlog.FrameEntry {
	return persistlog.FrameEntry{FrameReport: world.FrameReport{Frame: frame}, Deltas: deltas}
}

func TestChecker_RejectsInconsistentLogs(t *testing.T) {
	up := func(id, replaced uint64) persistlog.DeltaSummary {
		return persistlog.DeltaSummary{Kind: "upsert", ID: id, ReplacedID: replaced}
	}
	rm := func(id uint64) persistlog.DeltaSummary { return persistlog.DeltaSummary{Kind: "remove", ID: id} }

	cases := []struct {
		name    string
		from    uint64
		entries []persistlog.FrameEntry
		wantErr string
	}{
		{"ok", 0, []persistlog.FrameEntry{entry(1, up(1, 0), up(2, 0)), entry(3, up(3, 1), rm(2))}, ""},
		{"order", 0, []persistlog.FrameEntry{entry(2), entry(2)}, "frame order"},
		{"unknown replace", 0, []persistlog.FrameEntry{entry(1, up(2, 1))}, "replaces unknown"},
		{"unknown remove", 0, []persistlog.FrameEntry{entry(1, rm(4))}, "removes unknown"},
		{"reuse", 0, []persistlog.FrameEntry{entry(1, up(1, 0)), entry(2, up(1, 0))}, "reused"},
		{"late start", 40, []persistlog.FrameEntry{entry(40, up(9, 3), rm(5))}, ""},
		{"idle first frames", 0, []persistlog.FrameEntry{entry(7, up(1, 0)), entry(9, up(2, 1))}, ""},
	}
	for _, tc := range cases {
		c := newChecker(tc.from, 0)
		var err error
		for _, e := range tc.entries {
			if err = c.check(e); err != nil {
				break
			}
		}
		if tc.wantErr == "" && err != nil {
			t.Fatalf("%s: unexpected error %v", tc.name, err)
		}
		if tc.wantErr != "" && (err == nil || !strings.Contains(err.Error(), tc.wantErr)) {
			t.Fatalf("%s: err=%v want %q", tc.name, err, tc.wantErr)
		}
	}
}

func TestChecker_ReplaysRealFrameLog(t *testing.T) {
	dir := t.TempDir()
	w, err := world.New(world.WorldConfig{ChunkEdge: 8, Codec: "rle", Workers: 2}, nil)
	if err != nil {
		t.Fatalf("world.New: %v", err)
	}
	fl := persistlog.NewFrameLoggerWithWriter(persistlog.NewJSONLZstdWriter(dir, "frames"))
	w.AddSink(fl)

	ctx := context.Background()
	step := func() {
		if _, err := w.StepOnce(ctx); err != nil {
			t.Fatalf("StepOnce: %v", err)
		}
	}
	if err := w.FillSphere(mgl32.Vec3{4, 4, 4}, 5, 1); err != nil {
		t.Fatalf("FillSphere: %v", err)
	}
	w.FinishEdit()
	step()
	w.Undo()
	step()
	step()
	if err := fl.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	files, err := persistlog.ListFiles(dir, "frames")
	if err != nil || len(files) != 1 {
		t.Fatalf("ListFiles=%v err=%v", files, err)
	}
	c := newChecker(0, 0)
	if err := persistlog.ReadFrames(files[0], c.check); err != nil {
		t.Fatalf("check: %v", err)
	}
	s := c.summary()
	if s.First != 1 || s.Actions != 2 || s.LiveMeshes != 0 || s.LastDigest == "" {
		t.Fatalf("summary: %+v", s)
	}
}
