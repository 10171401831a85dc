// Package catalogs loads the voxel type palette from JSON.
package catalogs

import (
	"bytes"
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"voxeledit.ai/internal/sim/voxel"
)

//go:embed palette.schema.json
var paletteSchemaJSON string

var paletteSchema = jsonschema.MustCompileString("palette.schema.json", paletteSchemaJSON)

// ErrInvalidPalette is voxel.ErrInvalidPalette; every load failure caused
// by the file's content wraps it.
var ErrInvalidPalette = voxel.ErrInvalidPalette

type TypeDef struct {
	ID       string `json:"id"`
	Empty    bool   `json:"empty,omitempty"`
	Material *int   `json:"material,omitempty"`
}

type Catalogs struct {
	Palette voxel.Palette
	Names   []string
	Index   map[string]voxel.TypeID
	Digest  string
}

// Lookup resolves a type name.
func (c *Catalogs) Lookup(name string) (voxel.TypeID, bool) {
	t, ok := c.Index[name]
	return t, ok
}

// Load reads palette.json from configDir.
func Load(configDir string) (*Catalogs, error) {
	path := filepath.Join(configDir, "palette.json")
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c, err := Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Default is the built-in palette: AIR plus one solid type per layer.
func Default() *Catalogs {
	c, err := Parse([]byte(`[
		{"id":"AIR","empty":true},
		{"id":"STONE","material":0},
		{"id":"DIRT","material":1},
		{"id":"SAND","material":2},
		{"id":"SNOW","material":3}
	]`))
	if err != nil {
		panic(err)
	}
	return c
}

// Parse validates raw against the palette schema and the palette
// invariants. Type ids follow file order.
func Parse(raw []byte) (*Catalogs, error) {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPalette, err)
	}
	if err := paletteSchema.Validate(doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPalette, err)
	}
	var defs []TypeDef
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&defs); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPalette, err)
	}

	c := &Catalogs{Index: make(map[string]voxel.TypeID, len(defs))}
	infos := make([]voxel.TypeInfo, 0, len(defs))
	for i, d := range defs {
		if _, dup := c.Index[d.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate id %s", ErrInvalidPalette, d.ID)
		}
		info := voxel.TypeInfo{IsEmpty: d.Empty, Material: voxel.NullMaterial}
		if d.Material != nil {
			info.Material = voxel.MaterialLayer(*d.Material)
		}
		c.Index[d.ID] = voxel.TypeID(i)
		c.Names = append(c.Names, d.ID)
		infos = append(infos, info)
	}
	pal, err := voxel.NewPalette(infos)
	if err != nil {
		return nil, err
	}
	c.Palette = pal
	sum := sha256.Sum256(raw)
	c.Digest = hex.EncodeToString(sum[:])
	return c, nil
}
