package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"voxeledit.ai/internal/persistence/indexdb"
	"voxeledit.ai/internal/sim/terrain/store"
	"voxeledit.ai/internal/sim/world"
)

func TestWriteMetrics(t *testing.T) {
	s := newStatsSink()
	_ = s.WriteFrame(world.FrameReport{Frame: 1, MeshesUpserted: 3, Actions: []world.ActionEvent{{Kind: world.ActionFinish, ID: "a"}}}, nil)
	_ = s.WriteFrame(world.FrameReport{
		Frame:          2,
		Chunks:         9,
		MeshesUpserted: 1,
		MeshesRemoved:  2,
		Reclaimed:      []store.ChunkKey{store.K(0, 0, 0)},
		Durations:      world.Durations{Total: 1500 * time.Microsecond},
	}, nil)

	var buf bytes.Buffer
	writeMetrics(&buf, "w1", s, indexdb.Stats{DropFrameTotal: 4}, nil)
	out := buf.String()
	for _, want := range []string{
		`voxeledit_frame{world="w1"} 2`,
		`voxeledit_chunks{world="w1"} 9`,
		`voxeledit_frame_ms{world="w1"} 1.500`,
		`voxeledit_mesh_upserts_total{world="w1"} 4`,
		`voxeledit_mesh_removals_total{world="w1"} 2`,
		`voxeledit_reclaimed_chunks_total{world="w1"} 1`,
		`voxeledit_timeline_actions_total{world="w1"} 1`,
		`voxeledit_index_dropped_total{world="w1"} 4`,
		"# TYPE voxeledit_mesh_upserts_total counter",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("metrics missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "voxeledit_observers") {
		t.Fatalf("observer metrics without observer server")
	}
}

func TestIsLoopbackRemote(t *testing.T) {
	if !isLoopbackRemote("127.0.0.1:1") || isLoopbackRemote("8.8.8.8:53") {
		t.Fatalf("loopback check")
	}
}

func TestEnvBool(t *testing.T) {
	t.Setenv("VE_TEST_BOOL", "false")
	if envBool("VE_TEST_BOOL", true) {
		t.Fatalf("envBool ignored value")
	}
	t.Setenv("VE_TEST_BOOL", "nope")
	if !envBool("VE_TEST_BOOL", true) {
		t.Fatalf("envBool should fall back on parse error")
	}
}
