package catalogs

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"voxeledit.ai/internal/sim/voxel"
)

func TestLoadPalette(t *testing.T) {
	dir := t.TempDir()
	raw := `[{"id":"AIR","empty":true},{"id":"GRASS","material":1},{"id":"ROCK","material":0}]`
	if err := os.WriteFile(filepath.Join(dir, "palette.json"), []byte(raw), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	c, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Palette.Len() != 3 || len(c.Names) != 3 || c.Digest == "" {
		t.Fatalf("unexpected catalogs %+v", c)
	}
	id, ok := c.Lookup("ROCK")
	if !ok || id != 2 {
		t.Fatalf("ROCK = %d %v", id, ok)
	}
	if info := c.Palette.Info(1); info.IsEmpty || info.Material != 1 {
		t.Fatalf("GRASS info %+v", info)
	}
	if !c.Palette.Info(0).IsEmpty {
		t.Fatalf("AIR should be empty")
	}
}

func TestParseRejectsBadPalettes(t *testing.T) {
	cases := map[string]string{
		"not json":          `{`,
		"empty list":        `[]`,
		"first not empty":   `[{"id":"ROCK","material":0},{"id":"AIR","empty":true}]`,
		"solid no material": `[{"id":"AIR","empty":true},{"id":"ROCK"}]`,
		"material range":    `[{"id":"AIR","empty":true},{"id":"ROCK","material":4}]`,
		"unknown field":     `[{"id":"AIR","empty":true,"color":"blue"}]`,
		"bad id":            `[{"id":"air","empty":true}]`,
		"duplicate":         `[{"id":"AIR","empty":true},{"id":"AIR","empty":true}]`,
	}
	for name, raw := range cases {
		if _, err := Parse([]byte(raw)); !errors.Is(err, ErrInvalidPalette) {
			t.Fatalf("%s: err = %v", name, err)
		}
	}
}

func TestDefaultMatchesVoxelDefault(t *testing.T) {
	c := Default()
	want := voxel.DefaultPalette().Infos()
	got := c.Palette.Infos()
	if len(got) != len(want) {
		t.Fatalf("len %d want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("type %d: %+v want %+v", i, got[i], want[i])
		}
	}
}

func TestShippedPaletteLoads(t *testing.T) {
	c, err := Load(filepath.Join("..", "..", "..", "configs"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if id, ok := c.Lookup("CLAY"); !ok || id != 6 {
		t.Fatalf("CLAY=%d ok=%v", id, ok)
	}
	if !c.Palette.Info(0).IsEmpty {
		t.Fatalf("type 0 must be empty")
	}
}
