package nwbchunk_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/TuSKan/nwbchunk"
	"github.com/TuSKan/nwbchunk/backend"
	"github.com/TuSKan/nwbchunk/config"
	"github.com/TuSKan/nwbchunk/dtype"
)

func builtEntry(t *testing.T, kind backend.Kind, shape []int) (*nwbchunk.BackendConfiguration, *nwbchunk.DatasetConfiguration) {
	t.Helper()
	g := singleDataset(t, lazy(shape, dtype.Float64))
	cfg, err := nwbchunk.BuildDefaultConfiguration(g, kind, config.Policy{TargetChunkBytes: 800})
	require.NoError(t, err)
	e, ok := cfg.Get("series/data")
	require.True(t, ok)
	return cfg, e
}

func requireConfigError(t *testing.T, err error, path, field string, axis int) *nwbchunk.ConfigurationError {
	t.Helper()
	var cerr *nwbchunk.ConfigurationError
	require.ErrorAs(t, err, &cerr)
	require.Equal(t, path, cerr.Path)
	require.Equal(t, field, cerr.Field)
	require.Equal(t, axis, cerr.Axis)
	require.Contains(t, err.Error(), path)
	return cerr
}

func TestValidateScenarioD(t *testing.T) {
	cfg, e := builtEntry(t, backend.KindHDF5, []int{1000, 20})
	require.Equal(t, []int{5, 20}, e.ChunkShape)
	require.NoError(t, cfg.Validate())

	e.BufferShape = []int{12, 20}
	err := nwbchunk.Validate(cfg)
	cerr := requireConfigError(t, err, "series/data", "buffer_shape", 0)
	require.Equal(t, 12, cerr.Actual)
	require.Contains(t, err.Error(), "axis 0")
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name  string
		edit  func(e *nwbchunk.DatasetConfiguration)
		field string
		axis  int
	}{
		{
			name:  "chunk rank",
			edit:  func(e *nwbchunk.DatasetConfiguration) { e.ChunkShape = []int{5} },
			field: "chunk_shape rank",
			axis:  -1,
		},
		{
			name:  "buffer rank",
			edit:  func(e *nwbchunk.DatasetConfiguration) { e.BufferShape = []int{5, 20, 1} },
			field: "buffer_shape rank",
			axis:  -1,
		},
		{
			name:  "zero chunk",
			edit:  func(e *nwbchunk.DatasetConfiguration) { e.ChunkShape = []int{5, 0} },
			field: "chunk_shape",
			axis:  1,
		},
		{
			name:  "buffer below chunk",
			edit:  func(e *nwbchunk.DatasetConfiguration) { e.BufferShape = []int{4, 20} },
			field: "buffer_shape",
			axis:  0,
		},
		{
			name: "buffer beyond full",
			edit: func(e *nwbchunk.DatasetConfiguration) {
				e.ChunkShape = []int{5, 10}
				e.BufferShape = []int{5, 30}
			},
			field: "buffer_shape",
			axis:  1,
		},
		{
			name:  "unavailable method",
			edit:  func(e *nwbchunk.DatasetConfiguration) { e.CompressionMethod = "zlib" },
			field: "compression_method",
			axis:  -1,
		},
		{
			name:  "unknown option",
			edit:  func(e *nwbchunk.DatasetConfiguration) { e.CompressionOptions = map[string]any{"speed": 1} },
			field: "compression_options",
			axis:  -1,
		},
		{
			name:  "option out of range",
			edit:  func(e *nwbchunk.DatasetConfiguration) { e.CompressionOptions = map[string]any{"level": 12} },
			field: "compression_options",
			axis:  -1,
		},
		{
			name:  "option type",
			edit:  func(e *nwbchunk.DatasetConfiguration) { e.CompressionOptions = map[string]any{"shuffle": "yes"} },
			field: "compression_options",
			axis:  -1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, e := builtEntry(t, backend.KindHDF5, []int{1000, 20})
			tt.edit(e)
			requireConfigError(t, cfg.Validate(), "series/data", tt.field, tt.axis)
		})
	}
}

func TestValidateUnavailableMethodPerKind(t *testing.T) {
	// zlib is a directory-store codec only.
	cfg, e := builtEntry(t, backend.KindZarr, []int{100})
	e.CompressionMethod = "zlib"
	e.CompressionOptions = map[string]any{"level": 5}
	require.NoError(t, cfg.Validate())

	cfg, e = builtEntry(t, backend.KindHDF5, []int{100})
	e.CompressionMethod = "zlib"
	err := cfg.Validate()
	requireConfigError(t, err, "series/data", "compression_method", -1)
	require.True(t, errors.Is(err, backend.ErrUnknownMethod))

	cfg, e = builtEntry(t, backend.KindZarr, []int{100})
	e.CompressionMethod = "blosc"
	require.ErrorIs(t, cfg.Validate(), backend.ErrUnknownMethod)
}

func TestValidateZeroExtent(t *testing.T) {
	cfg, e := builtEntry(t, backend.KindZarr, []int{0, 5})
	require.Equal(t, []int{1, 5}, e.BufferShape)
	require.NoError(t, cfg.Validate())

	e.BufferShape = []int{2, 5}
	requireConfigError(t, cfg.Validate(), "series/data", "buffer_shape", 0)
}

func TestValidateNil(t *testing.T) {
	var cerr *nwbchunk.ConfigurationError
	require.ErrorAs(t, nwbchunk.Validate(nil), &cerr)
}
