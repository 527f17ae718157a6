package nwbchunk_test

import (
	"context"
	"testing"

	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/TuSKan/nwbchunk"
	"github.com/TuSKan/nwbchunk/array"
	"github.com/TuSKan/nwbchunk/backend"
	"github.com/TuSKan/nwbchunk/config"
	"github.com/TuSKan/nwbchunk/docgraph"
	"github.com/TuSKan/nwbchunk/dtype"
)

func lazy(shape []int, dt dtype.DType) *array.Func {
	return array.NewFunc(shape, dt, func(context.Context, []int, []int, []byte) error { return nil })
}

func singleDataset(t *testing.T, value any) *docgraph.Graph {
	t.Helper()
	g := docgraph.New()
	_, err := g.AddTimeSeries(g.Root(), "series", "TimeSeries", value, nil)
	require.NoError(t, err)
	return g
}

func TestChunkShape(t *testing.T) {
	tests := []struct {
		name     string
		full     []int
		itemSize int
		target   int64
		want     []int
	}{
		{"fits", []int{3}, 8, 10_000_000, []int{3}},
		{"first axis shrinks", []int{1_000_000, 4}, 8, 10_000_000, []int{312_500, 4}},
		{"inner axes too large", []int{10, 1000, 1000}, 8, 1_000_000, []int{1, 125, 1000}},
		{"floor of one", []int{4, 2_000_000}, 8, 1_000_000, []int{1, 125_000}},
		{"zero extent", []int{0, 5}, 8, 10, []int{1, 5}},
		{"empty inner axis", []int{3, 0, 2}, 1, 1, []int{3, 1, 2}},
		{"empty wide array", []int{1000, 0}, 8, 100, []int{1000, 1}},
		{"scalar", []int{}, 8, 1, []int{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := nwbchunk.ChunkShape(tt.full, tt.itemSize, tt.target)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBufferShape(t *testing.T) {
	// 50 × 10 MB budget over (312500, 4) chunks: three chunks fit the
	// first axis before the array ends.
	buffer := nwbchunk.BufferShape([]int{1_000_000, 4}, []int{312_500, 4}, 8, 500_000_000)
	assert.Equal(t, []int{937_500, 4}, buffer)

	// A tight budget never drops below the chunk.
	buffer = nwbchunk.BufferShape([]int{100, 100}, []int{10, 10}, 8, 1)
	assert.Equal(t, []int{10, 10}, buffer)

	buffer = nwbchunk.BufferShape([]int{1000, 8}, []int{64, 8}, 8, 16384)
	assert.Equal(t, []int{256, 8}, buffer)
}

func TestBuildScenarioA(t *testing.T) {
	g := singleDataset(t, lazy([]int{1_000_000, 4}, dtype.Float64))

	cfg, err := nwbchunk.BuildDefaultConfiguration(g, backend.KindHDF5, config.DefaultPolicy())
	require.NoError(t, err)
	require.Equal(t, []string{"series/data"}, cfg.Paths())

	e, ok := cfg.Get("series/data")
	require.True(t, ok)
	require.Equal(t, []int{312_500, 4}, e.ChunkShape)
	require.LessOrEqual(t, e.ChunkShape[0]*4*8, 10_000_000)
	require.Equal(t, []int{937_500, 4}, e.BufferShape)
	require.Equal(t, "gzip", e.CompressionMethod)
	require.Equal(t, map[string]any{"level": 4}, e.CompressionOptions)
	require.Equal(t, dtype.Float64, e.Info().DType)
	require.NoError(t, cfg.Validate())
}

func TestBuildScenarioB(t *testing.T) {
	for _, dt := range []dtype.DType{dtype.Uint8, dtype.Int32, dtype.Float64} {
		g := singleDataset(t, lazy([]int{3}, dt))
		for _, target := range []int64{64, 10_000_000} {
			cfg, err := nwbchunk.BuildDefaultConfiguration(g, backend.KindZarr, config.Policy{TargetChunkBytes: target})
			require.NoError(t, err)
			e, _ := cfg.Get("series/data")
			require.Equal(t, []int{3}, e.ChunkShape, "dtype %s target %d", dt, target)
			require.Equal(t, []int{3}, e.BufferShape)
		}
	}
}

func TestBuildScenarioC(t *testing.T) {
	g := singleDataset(t, lazy([]int{0, 5}, dtype.Float64))

	cfg, err := nwbchunk.BuildDefaultConfiguration(g, backend.KindZarr, config.DefaultPolicy())
	require.NoError(t, err)
	e, _ := cfg.Get("series/data")
	require.Equal(t, []int{1, 5}, e.ChunkShape)
	require.Equal(t, []int{1, 5}, e.BufferShape)
	require.NoError(t, nwbchunk.Validate(cfg))
}

func TestBuildInvariants(t *testing.T) {
	shapes := [][]int{
		{1}, {7}, {1000}, {1_000_003}, {0},
		{1000, 8}, {17, 13}, {4096, 4096}, {3, 0, 2},
		{100, 37, 3}, {2, 3, 5, 7}, {1, 1_000_000},
	}
	targets := []int64{1, 100, 4096, 65_536, 10_000_000}
	for _, shape := range shapes {
		for _, target := range targets {
			for _, dt := range []dtype.DType{dtype.Uint8, dtype.Float32, dtype.Float64} {
				g := singleDataset(t, lazy(shape, dt))
				cfg, err := nwbchunk.BuildDefaultConfiguration(g, backend.KindHDF5, config.Policy{TargetChunkBytes: target})
				require.NoError(t, err)
				e, _ := cfg.Get("series/data")
				limit := make([]int, len(shape))
				for i, n := range shape {
					limit[i] = max(n, 1)
					require.GreaterOrEqual(t, e.ChunkShape[i], 1)
					require.LessOrEqual(t, e.ChunkShape[i], e.BufferShape[i], "shape %v target %d", shape, target)
					require.LessOrEqual(t, e.BufferShape[i], limit[i], "shape %v target %d", shape, target)
					require.Zero(t, e.BufferShape[i]%e.ChunkShape[i], "shape %v target %d", shape, target)
				}
				if array.ByteSize(shape, dt) <= target {
					require.Equal(t, limit, e.ChunkShape, "single chunk for %v %s", shape, dt)
				}
				require.NoError(t, cfg.Validate())
			}
		}
	}
}

func TestBuildCompressionPolicy(t *testing.T) {
	g := singleDataset(t, lazy([]int{10}, dtype.Float64))

	cfg, err := nwbchunk.BuildDefaultConfiguration(g, backend.KindZarr, config.DefaultPolicy())
	require.NoError(t, err)
	e, _ := cfg.Get("series/data")
	require.Equal(t, "zstd", e.CompressionMethod)
	require.Equal(t, map[string]any{"level": 3}, e.CompressionOptions)

	cfg, err = nwbchunk.BuildDefaultConfiguration(g, backend.KindZarr, config.Policy{
		DefaultCompressionMethod:  "LZ4",
		DefaultCompressionOptions: map[string]any{"acceleration": 4},
	})
	require.NoError(t, err)
	e, _ = cfg.Get("series/data")
	require.Equal(t, "lz4", e.CompressionMethod)
	require.Equal(t, map[string]any{"acceleration": 4}, e.CompressionOptions)

	_, err = nwbchunk.BuildDefaultConfiguration(g, backend.KindHDF5, config.Policy{DefaultCompressionMethod: "zlib"})
	var cerr *nwbchunk.ConfigurationError
	require.ErrorAs(t, err, &cerr)

	_, err = nwbchunk.BuildDefaultConfiguration(g, backend.Kind("netcdf"), config.DefaultPolicy())
	require.ErrorAs(t, err, &cerr)
}

func TestBuildInfoErrorAborts(t *testing.T) {
	g := docgraph.New()
	_, err := g.AddTimeSeries(g.Root(), "good", "TimeSeries", lazy([]int{10}, dtype.Float64), nil)
	require.NoError(t, err)
	_, err = g.AddTimeSeries(g.Root(), "ragged", "TimeSeries", [][]float64{{1, 2}, {3}}, nil)
	require.NoError(t, err)

	cfg, err := nwbchunk.BuildDefaultConfiguration(g, backend.KindHDF5, config.DefaultPolicy())
	require.Nil(t, cfg)
	var ierr *nwbchunk.DatasetInfoError
	require.ErrorAs(t, err, &ierr)
	require.Equal(t, "ragged/data", ierr.Path)
}

func TestBuildMinDatasetBytes(t *testing.T) {
	s := newSession(t)

	cfg, err := nwbchunk.BuildDefaultConfiguration(s.graph, backend.KindHDF5, smallPolicy())
	require.NoError(t, err)
	require.Equal(t, []string{
		"acquisition/ElectricalSeries/data",
		"acquisition/ElectricalSeries/timestamps",
		"processing/behavior/Position/data",
	}, cfg.Paths())
	require.Equal(t, int64(1000*8*8+1000*8+4*4), cfg.TotalBytes())

	e, _ := cfg.Get("acquisition/ElectricalSeries/data")
	require.Equal(t, []int{64, 8}, e.ChunkShape)
	require.Equal(t, []int{256, 8}, e.BufferShape)
	e, _ = cfg.Get("acquisition/ElectricalSeries/timestamps")
	require.Equal(t, []int{512}, e.ChunkShape)
	require.Equal(t, []int{512}, e.BufferShape)
}

func TestBuildFromTensor(t *testing.T) {
	tensor := tensors.FromFlatDataAndDimensions([]float32{0, 1, 2, 3, 4, 5}, 2, 3)
	g := singleDataset(t, tensor)

	cfg, err := nwbchunk.BuildDefaultConfiguration(g, backend.KindZarr, config.DefaultPolicy())
	require.NoError(t, err)
	e, ok := cfg.Get("series/data")
	require.True(t, ok)
	require.Equal(t, nwbchunk.DatasetInfo{Path: "series/data", Shape: []int{2, 3}, DType: dtype.Float32}, e.Info())
	require.Equal(t, []int{2, 3}, e.ChunkShape)
}

func TestConfigurationYAML(t *testing.T) {
	g := singleDataset(t, lazy([]int{1_000_000, 4}, dtype.Float64))
	cfg, err := nwbchunk.BuildDefaultConfiguration(g, backend.KindZarr, config.DefaultPolicy())
	require.NoError(t, err)

	out, err := yaml.Marshal(cfg)
	require.NoError(t, err)

	var doc struct {
		Backend  string `yaml:"backend"`
		Total    string `yaml:"total_size"`
		Datasets []struct {
			Path        string         `yaml:"path"`
			DType       string         `yaml:"dtype"`
			ChunkShape  []int          `yaml:"chunk_shape"`
			BufferShape []int          `yaml:"buffer_shape"`
			Compression string         `yaml:"compression"`
			Options     map[string]any `yaml:"compression_options"`
		} `yaml:"datasets"`
	}
	require.NoError(t, yaml.Unmarshal(out, &doc))
	require.Equal(t, "zarr", doc.Backend)
	require.Equal(t, "32 MB", doc.Total)
	require.Len(t, doc.Datasets, 1)
	require.Equal(t, "series/data", doc.Datasets[0].Path)
	require.Equal(t, "<f8", doc.Datasets[0].DType)
	require.Equal(t, []int{312_500, 4}, doc.Datasets[0].ChunkShape)
	require.Equal(t, "zstd", doc.Datasets[0].Compression)
	require.Equal(t, 3, doc.Datasets[0].Options["level"])
}

func TestNilGraph(t *testing.T) {
	_, err := nwbchunk.BuildDefaultConfiguration(nil, backend.KindHDF5, config.DefaultPolicy())
	var cerr *nwbchunk.ConfigurationError
	require.ErrorAs(t, err, &cerr)
}
