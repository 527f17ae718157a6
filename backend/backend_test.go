package backend

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsAreRegistered(t *testing.T) {
	for _, kind := range Kinds() {
		c := DefaultCompression(kind)
		m, err := Lookup(kind, c.Method)
		require.NoError(t, err, kind)
		require.NoError(t, m.CheckOptions(c.Options), kind)
	}
	assert.Equal(t, "gzip", DefaultCompression(KindHDF5).Method)
	assert.Equal(t, "zstd", DefaultCompression(KindZarr).Method)
}

func TestLookupUnavailable(t *testing.T) {
	_, err := Lookup(KindZarr, "szip")
	require.ErrorIs(t, err, ErrUnknownMethod)

	_, err = Lookup(Kind("netcdf"), "gzip")
	require.Error(t, err)
}

func TestCheckOptions(t *testing.T) {
	gzip, err := Lookup(KindHDF5, "gzip")
	require.NoError(t, err)

	require.NoError(t, gzip.CheckOptions(map[string]any{"level": 9, "shuffle": true}))
	require.NoError(t, gzip.CheckOptions(map[string]any{"level": float64(2)}))

	require.ErrorContains(t, gzip.CheckOptions(map[string]any{"level": 12}), "must be in [0, 9]")
	require.ErrorContains(t, gzip.CheckOptions(map[string]any{"level": 2.5}), "must be an integer")
	require.ErrorContains(t, gzip.CheckOptions(map[string]any{"shuffle": "yes"}), "must be bool")
	require.ErrorContains(t, gzip.CheckOptions(map[string]any{"blocksize": 4}), "not accepted")
}

func TestResolveMergesDefaults(t *testing.T) {
	zstd, err := Lookup(KindHDF5, "zstd")
	require.NoError(t, err)

	resolved, err := zstd.Resolve(map[string]any{"fletcher32": true})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"level": 3, "fletcher32": true}, resolved)

	var opts struct {
		Level      int  `mapstructure:"level"`
		Shuffle    bool `mapstructure:"shuffle"`
		Fletcher32 bool `mapstructure:"fletcher32"`
	}
	require.NoError(t, DecodeOptions(KindHDF5, Compression{Method: "zstd", Options: map[string]any{"level": int64(7)}}, &opts))
	assert.Equal(t, 7, opts.Level)
	assert.False(t, opts.Shuffle)
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("zarr")
	require.NoError(t, err)
	assert.Equal(t, KindZarr, k)

	_, err = ParseKind("nwb")
	require.Error(t, err)
}

func TestCheckAligned(t *testing.T) {
	shape, chunks := []int{10, 6}, []int{4, 3}

	require.NoError(t, CheckAligned(shape, chunks, []int{0, 0}, []int{8, 6}))
	// Trailing region ends at the boundary with a partial chunk.
	require.NoError(t, CheckAligned(shape, chunks, []int{8, 0}, []int{2, 6}))

	require.ErrorIs(t, CheckAligned(shape, chunks, []int{2, 0}, []int{4, 6}), ErrNotAligned)
	require.ErrorIs(t, CheckAligned(shape, chunks, []int{0, 0}, []int{5, 6}), ErrNotAligned)
}

func TestChunkSpan(t *testing.T) {
	lo, hi := ChunkSpan([]int{4, 3}, []int{4, 0}, []int{6, 6})
	assert.Equal(t, []int{1, 0}, lo)
	assert.Equal(t, []int{3, 2}, hi)
}

func TestPaths(t *testing.T) {
	assert.Equal(t, "acquisition/ts/data", CleanPath("/acquisition//ts/data/"))
	assert.Equal(t, "", CleanPath("/"))
	assert.Equal(t, "acquisition/ts", ParentPath("acquisition/ts/data"))
	assert.Equal(t, "", ParentPath("acquisition"))
	assert.Equal(t, 3, Depth("/a/b/c"))
	assert.Equal(t, "a/b", JoinPath("", "a", "", "b"))
}
