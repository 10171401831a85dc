package tuning

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"voxeledit.ai/internal/sim/geom"
)

type Tuning struct {
	ChunkEdge           int    `yaml:"chunk_edge"`
	CacheBudgetBytes    int64  `yaml:"cache_budget_bytes"`
	MaxCompressPerFrame int    `yaml:"max_compress_per_frame"`
	Codec               string `yaml:"codec"`
	Workers             int    `yaml:"workers"`
	FrameRateHz         int    `yaml:"frame_rate_hz"`
	MaxUndoHistory      int    `yaml:"max_undo_history"`

	Log      Log      `yaml:"log"`
	Index    Index    `yaml:"index"`
	FrameLog FrameLog `yaml:"frame_log"`
	Observer Observer `yaml:"observer"`
}

type Log struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

type Index struct {
	Path    string `yaml:"path"`
	Disable bool   `yaml:"disable"`
}

type FrameLog struct {
	Dir     string `yaml:"dir"`
	Disable bool   `yaml:"disable"`
}

type Observer struct {
	Listen string `yaml:"listen"`
	// AllowRemote accepts observer connections from non-loopback peers.
	AllowRemote bool `yaml:"allow_remote"`
}

func Defaults() Tuning {
	return Tuning{
		ChunkEdge:        16,
		CacheBudgetBytes: 64 << 20,
		Codec:            "zstd",
		FrameRateHz:      30,
		MaxUndoHistory:   256,
		Log:              Log{Level: "info"},
		Index:            Index{Path: "data/index/voxeledit.sqlite"},
		FrameLog:         FrameLog{Dir: "data/frames"},
		Observer:         Observer{Listen: "127.0.0.1:8090"},
	}
}

// Load overlays the YAML file at path onto Defaults and validates it.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t Tuning) Validate() error {
	var errs []error
	if t.ChunkEdge <= 0 || !geom.IsPowerOfTwo(t.ChunkEdge) {
		errs = append(errs, fmt.Errorf("chunk_edge %d is not a power of two", t.ChunkEdge))
	}
	switch t.Codec {
	case "rle", "zstd":
	default:
		errs = append(errs, fmt.Errorf("unknown codec %q", t.Codec))
	}
	if t.FrameRateHz <= 0 {
		errs = append(errs, fmt.Errorf("frame_rate_hz %d must be positive", t.FrameRateHz))
	}
	if t.MaxCompressPerFrame < 0 {
		errs = append(errs, fmt.Errorf("max_compress_per_frame %d is negative", t.MaxCompressPerFrame))
	}
	if t.MaxUndoHistory < 0 {
		errs = append(errs, fmt.Errorf("max_undo_history %d is negative", t.MaxUndoHistory))
	}
	return errors.Join(errs...)
}
