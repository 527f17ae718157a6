package zarr

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/TuSKan/nwbchunk/backend"
	"github.com/TuSKan/nwbchunk/codec"
	"github.com/TuSKan/nwbchunk/dtype"
)

const (
	arrayMetaKey = ".zarray"
	groupMetaKey = ".zgroup"
	attrsKey     = ".zattrs"
)

// CompressorConfig represents the Zarr compressor metadata.
type CompressorConfig struct {
	ID           string `json:"id"`
	Level        *int   `json:"level,omitempty"`
	Acceleration int    `json:"acceleration,omitempty"`
	Cname        string `json:"cname,omitempty"`
	Clevel       int    `json:"clevel,omitempty"`
	Shuffle      int    `json:"shuffle,omitempty"`
}

// Metadata represents the Zarr V2 .zarray metadata.
type Metadata struct {
	ZarrFormat         int               `json:"zarr_format"`
	Shape              []int             `json:"shape"`
	Chunks             []int             `json:"chunks"`
	DType              string            `json:"dtype"`
	Compressor         *CompressorConfig `json:"compressor"`
	FillValue          interface{}       `json:"fill_value"`
	Order              string            `json:"order"`
	Filters            []json.RawMessage `json:"filters"`
	DimensionSeparator string            `json:"dimension_separator,omitempty"`
}

// GroupMetadata represents the Zarr V2 .zgroup metadata.
type GroupMetadata struct {
	ZarrFormat int `json:"zarr_format"`
}

// LoadMetadata reads and parses a .zarray document.
func LoadMetadata(reader io.Reader) (*Metadata, error) {
	var meta Metadata
	if err := json.NewDecoder(reader).Decode(&meta); err != nil {
		return nil, fmt.Errorf("failed to decode metadata: %w", err)
	}

	if meta.ZarrFormat != 2 {
		return nil, fmt.Errorf("unsupported zarr_format: %d, expected 2", meta.ZarrFormat)
	}
	if len(meta.Chunks) != len(meta.Shape) {
		return nil, fmt.Errorf("chunks rank %d does not match shape rank %d", len(meta.Chunks), len(meta.Shape))
	}
	if meta.Order != "" && meta.Order != "C" {
		return nil, fmt.Errorf("unsupported order: %s", meta.Order)
	}
	if len(meta.Filters) > 0 {
		return nil, fmt.Errorf("zarr filters are unsupported")
	}

	return &meta, nil
}

// separator returns the chunk key separator, "." unless the array
// declares otherwise.
func (m *Metadata) separator() string {
	if m.DimensionSeparator == "" {
		return "."
	}
	return m.DimensionSeparator
}

// newMetadata builds the .zarray document for a dataset spec.
func newMetadata(spec backend.DatasetSpec) (*Metadata, error) {
	compressor, err := compressorConfig(spec.Compression)
	if err != nil {
		return nil, err
	}
	return &Metadata{
		ZarrFormat:         2,
		Shape:              spec.Shape,
		Chunks:             spec.Chunks,
		DType:              spec.DType.String(),
		Compressor:         compressor,
		FillValue:          fillValue(spec.DType),
		Order:              "C",
		DimensionSeparator: ".",
	}, nil
}

func fillValue(d dtype.DType) any {
	switch d.Kind {
	case dtype.Bool:
		return false
	case dtype.Bytes:
		return nil
	default:
		return 0
	}
}

type compressorOptions struct {
	Level        int `mapstructure:"level"`
	Acceleration int `mapstructure:"acceleration"`
}

// compressorConfig maps a registry selection onto numcodecs metadata.
func compressorConfig(c backend.Compression) (*CompressorConfig, error) {
	var opts compressorOptions
	if err := backend.DecodeOptions(backend.KindZarr, c, &opts); err != nil {
		return nil, err
	}
	switch c.Method {
	case "none":
		return nil, nil
	case "zstd", "zlib", "gzip":
		level := opts.Level
		return &CompressorConfig{ID: c.Method, Level: &level}, nil
	case "lz4":
		return &CompressorConfig{ID: "lz4", Acceleration: opts.Acceleration}, nil
	}
	return nil, fmt.Errorf("unsupported compressor: %s", c.Method)
}

// newCodec instantiates the codec named by compressor metadata.
func newCodec(cfg *CompressorConfig) (codec.Codec, error) {
	if cfg == nil {
		return codec.None{}, nil
	}
	level := func(def int) int {
		if cfg.Level == nil {
			return def
		}
		return *cfg.Level
	}
	switch cfg.ID {
	case "zstd":
		return codec.NewZstd(max(level(3), 1))
	case "zlib":
		return codec.NewZlib(level(1))
	case "gzip":
		return codec.NewGzip(level(1))
	case "lz4":
		return codec.NewLZ4(max(cfg.Acceleration, 1))
	default:
		return nil, fmt.Errorf("unsupported compressor: %s", cfg.ID)
	}
}

// compression reports compressor metadata as a registry selection.
func compression(cfg *CompressorConfig) backend.Compression {
	if cfg == nil {
		return backend.Compression{Method: "none", Options: map[string]any{}}
	}
	opts := map[string]any{}
	if cfg.Level != nil {
		opts["level"] = *cfg.Level
	}
	if cfg.ID == "lz4" {
		opts["acceleration"] = max(cfg.Acceleration, 1)
	}
	return backend.Compression{Method: cfg.ID, Options: opts}
}
