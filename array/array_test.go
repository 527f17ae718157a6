package array_test

import (
	"context"
	"encoding/binary"
	"math"
	"testing"

	"github.com/gomlx/gomlx/pkg/core/tensors"
	"github.com/stretchr/testify/require"

	"github.com/TuSKan/nwbchunk/array"
	"github.com/TuSKan/nwbchunk/dtype"
)

func float64s(b []byte) []float64 {
	out := make([]float64, len(b)/8)
	for i := range out {
		out[i] = math.Float64frombits(binary.LittleEndian.Uint64(b[i*8:]))
	}
	return out
}

func TestStrides(t *testing.T) {
	require.Equal(t, []int{20, 5, 1}, array.Strides([]int{3, 4, 5}))
	require.Equal(t, []int{}, array.Strides(nil))
}

func TestFromSlice(t *testing.T) {
	m, err := array.FromSlice([][]float64{{0, 1, 2}, {3, 4, 5}})
	require.NoError(t, err)
	require.Equal(t, []int{2, 3}, m.Shape())
	require.Equal(t, dtype.Float64, m.DType())
	require.Equal(t, []float64{0, 1, 2, 3, 4, 5}, float64s(m.Bytes()))

	m, err = array.FromSlice([]int16{1, -1})
	require.NoError(t, err)
	require.Equal(t, dtype.Int16, m.DType())
	require.Equal(t, []byte{1, 0, 0xff, 0xff}, m.Bytes())

	m, err = array.FromSlice([]string{"ab", "abcd"})
	require.NoError(t, err)
	require.Equal(t, dtype.FixedText(4), m.DType())
	require.Equal(t, []byte("ab\x00\x00abcd"), m.Bytes())

	_, err = array.FromSlice([][]float32{{1, 2}, {3}})
	require.ErrorContains(t, err, "ragged")

	_, err = array.FromSlice([]struct{}{{}})
	require.Error(t, err)

	_, err = array.FromSlice(nil)
	require.Error(t, err)
}

func TestMemoryGetRegion(t *testing.T) {
	ctx := context.Background()
	values := make([][]float64, 4)
	for i := range values {
		values[i] = []float64{float64(i * 3), float64(i*3 + 1), float64(i*3 + 2)}
	}
	m, err := array.FromSlice(values)
	require.NoError(t, err)

	dst := make([]byte, 2*2*8)
	require.NoError(t, m.GetRegion(ctx, []int{1, 1}, []int{2, 2}, dst))
	require.Equal(t, []float64{4, 5, 7, 8}, float64s(dst))

	require.ErrorIs(t, m.GetRegion(ctx, []int{3, 0}, []int{2, 3}, make([]byte, 48)), array.ErrRegion)
	require.ErrorIs(t, m.GetRegion(ctx, []int{0, 0}, []int{1, 1}, make([]byte, 3)), array.ErrRegion)
	require.ErrorIs(t, m.GetRegion(ctx, []int{0}, []int{1}, make([]byte, 8)), array.ErrRegion)
}

func TestInsertExtract(t *testing.T) {
	full := make([]byte, 4*4)
	block := []byte{1, 2, 3, 4}
	array.Insert(full, []int{4, 4}, []int{2, 1}, block, []int{2, 2}, 1)
	require.Equal(t, []byte{
		0, 0, 0, 0,
		0, 0, 0, 0,
		0, 1, 2, 0,
		0, 3, 4, 0,
	}, full)

	out := make([]byte, 4)
	array.Extract(out, full, []int{4, 4}, []int{2, 1}, []int{2, 2}, 1)
	require.Equal(t, block, out)
}

func TestForEachIndex(t *testing.T) {
	var seen [][]int
	err := array.ForEachIndex([]int{0, 1}, []int{2, 3}, func(idx []int) error {
		seen = append(seen, append([]int(nil), idx...))
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, [][]int{{0, 1}, {0, 2}, {1, 1}, {1, 2}}, seen)

	calls := 0
	require.NoError(t, array.ForEachIndex([]int{0, 0}, []int{0, 5}, func([]int) error { calls++; return nil }))
	require.Zero(t, calls)

	require.NoError(t, array.ForEachIndex(nil, nil, func([]int) error { calls++; return nil }))
	require.Equal(t, 1, calls)
}

func TestGridShape(t *testing.T) {
	tests := []struct {
		shape, tile, want []int
	}{
		{[]int{4, 4}, []int{2, 2}, []int{2, 2}},
		{[]int{5, 3}, []int{2, 3}, []int{3, 1}},
		{[]int{1000, 8}, []int{256, 8}, []int{4, 1}},
		{[]int{0, 3}, []int{1, 3}, []int{0, 1}},
		{[]int{}, []int{}, []int{}},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, array.GridShape(tt.shape, tt.tile), "shape %v tile %v", tt.shape, tt.tile)
	}
}

func TestZerosEmpty(t *testing.T) {
	z := array.Zeros([]int{0, 5}, dtype.Float32)
	require.Equal(t, []int{0, 5}, z.Shape())
	require.Empty(t, z.Bytes())
}

func TestFuncSource(t *testing.T) {
	calls := 0
	f := array.NewFunc([]int{10}, dtype.Uint8, func(_ context.Context, start, count []int, dst []byte) error {
		calls++
		for i := range dst {
			dst[i] = byte(start[0] + i)
		}
		return nil
	})
	dst := make([]byte, 3)
	require.NoError(t, f.GetRegion(context.Background(), []int{4}, []int{3}, dst))
	require.Equal(t, []byte{4, 5, 6}, dst)
	require.Error(t, f.GetRegion(context.Background(), []int{9}, []int{3}, dst))
	require.Equal(t, 1, calls)
}

func TestTensorRoundTrip(t *testing.T) {
	tensor := tensors.FromFlatDataAndDimensions([]float32{0, 1, 2, 3, 4, 5}, 3, 2)
	m, err := array.FromTensor(tensor)
	require.NoError(t, err)
	require.Equal(t, []int{3, 2}, m.Shape())
	require.Equal(t, dtype.Float32, m.DType())

	back, err := m.Tensor()
	require.NoError(t, err)
	require.Equal(t, []int{3, 2}, back.Shape().Dimensions)
	require.Equal(t, [][]float32{{0, 1}, {2, 3}, {4, 5}}, back.Value().([][]float32))
}
