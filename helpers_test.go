package nwbchunk_test

import (
	"context"
	"encoding/binary"
	"math"
	"slices"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"gocloud.dev/blob/memblob"

	"github.com/TuSKan/nwbchunk/array"
	"github.com/TuSKan/nwbchunk/backend"
	"github.com/TuSKan/nwbchunk/config"
	"github.com/TuSKan/nwbchunk/docgraph"
	"github.com/TuSKan/nwbchunk/dtype"
	"github.com/TuSKan/nwbchunk/hdf5"
	"github.com/TuSKan/nwbchunk/zarr"
)

// ramp returns a float64 array whose elements hold their linear index.
func ramp(t *testing.T, shape ...int) *array.Memory {
	t.Helper()
	n := array.NumElements(shape)
	buf := make([]byte, 8*n)
	for i := range n {
		binary.LittleEndian.PutUint64(buf[i*8:], math.Float64bits(float64(i)))
	}
	m, err := array.NewMemory(shape, dtype.Float64, buf)
	require.NoError(t, err)
	return m
}

// recorder wraps a source and records the start of every region read.
type recorder struct {
	array.Source

	mu     sync.Mutex
	starts [][]int
}

func (r *recorder) GetRegion(ctx context.Context, start, count []int, dst []byte) error {
	r.mu.Lock()
	r.starts = append(r.starts, slices.Clone(start))
	r.mu.Unlock()
	return r.Source.GetRegion(ctx, start, count, dst)
}

func newZarrStore(t *testing.T) *zarr.Store {
	t.Helper()
	bucket := memblob.OpenBucket(nil)
	t.Cleanup(func() { bucket.Close() })
	s, err := zarr.NewStore(context.Background(), bucket)
	require.NoError(t, err)
	return s
}

func newHDF5Store(t *testing.T) *hdf5.Store {
	t.Helper()
	s, err := hdf5.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newStore(t *testing.T, kind backend.Kind) backend.Store {
	if kind == backend.KindZarr {
		return newZarrStore(t)
	}
	return newHDF5Store(t)
}

// smallPolicy keeps chunks at 4 KiB so that small fixtures span several
// chunks and buffer windows.
func smallPolicy() config.Policy {
	return config.Policy{
		TargetChunkBytes: 4096,
		BufferMultiplier: 4,
		MinDatasetBytes:  100,
	}
}

type session struct {
	graph      *docgraph.Graph
	series     docgraph.NodeID
	data       *array.Memory
	timestamps *array.Memory
}

// newSession builds a small recording session:
//
//	acquisition/ElectricalSeries/{data,timestamps,rate}
//	general/electrodes/x
//	processing/behavior/Position
func newSession(t *testing.T) *session {
	t.Helper()
	g := docgraph.New()
	require.NoError(t, g.SetAttr(g.Root(), "session_description", "test session"))

	acq, err := g.AddNode(g.Root(), "acquisition", "")
	require.NoError(t, err)
	data := ramp(t, 1000, 8)
	timestamps := ramp(t, 1000)
	series, err := g.AddTimeSeries(acq, "ElectricalSeries", "ElectricalSeries", data, timestamps)
	require.NoError(t, err)
	_, err = g.SetDataset(series, "rate", 30000.0)
	require.NoError(t, err)
	require.NoError(t, g.SetAttr(series, "unit", "volts"))

	general, err := g.AddNode(g.Root(), "general", "")
	require.NoError(t, err)
	electrodes, err := g.AddNode(general, "electrodes", "DynamicTable")
	require.NoError(t, err)
	_, err = g.SetDataset(electrodes, "x", []int32{1, 2, 3})
	require.NoError(t, err)

	processing, err := g.AddNode(g.Root(), "processing", "")
	require.NoError(t, err)
	behavior, err := g.AddNode(processing, "behavior", "ProcessingModule")
	require.NoError(t, err)
	_, err = g.AddTimeSeries(behavior, "Position", "SpatialSeries", [][]float32{{0, 1}, {2, 3}}, nil)
	require.NoError(t, err)

	return &session{graph: g, series: series, data: data, timestamps: timestamps}
}

func readAll(t *testing.T, src array.Source) []byte {
	t.Helper()
	shape := src.Shape()
	buf := make([]byte, array.ByteSize(shape, src.DType()))
	require.NoError(t, src.GetRegion(context.Background(), make([]int, len(shape)), shape, buf))
	return buf
}
