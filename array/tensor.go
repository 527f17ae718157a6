package array

import (
	"encoding/binary"
	"fmt"
	"math"
	"slices"

	"github.com/gomlx/gomlx/pkg/core/tensors"

	"github.com/TuSKan/nwbchunk/dtype"
)

// FromTensor copies a gomlx tensor into a Memory source.
func FromTensor(t *tensors.Tensor) (*Memory, error) {
	dims := t.Shape().Dimensions
	m, err := FromSlice(t.Value())
	if err != nil {
		return nil, fmt.Errorf("failed to convert tensor: %w", err)
	}
	if NumElements(dims) == 0 {
		return &Memory{shape: slices.Clone(dims), dt: m.dt}, nil
	}
	if !slices.Equal(m.shape, dims) {
		return nil, fmt.Errorf("tensor value has shape %v, tensor reports %v", m.shape, dims)
	}
	return m, nil
}

// Tensor decodes the array into a gomlx tensor.
func (m *Memory) Tensor() (*tensors.Tensor, error) {
	n := NumElements(m.shape)
	le := binary.LittleEndian
	switch m.dt {
	case dtype.Float32:
		flat := make([]float32, n)
		for i := range flat {
			flat[i] = math.Float32frombits(le.Uint32(m.data[i*4:]))
		}
		return tensors.FromFlatDataAndDimensions(flat, m.shape...), nil
	case dtype.Float64:
		flat := make([]float64, n)
		for i := range flat {
			flat[i] = math.Float64frombits(le.Uint64(m.data[i*8:]))
		}
		return tensors.FromFlatDataAndDimensions(flat, m.shape...), nil
	case dtype.Int32:
		flat := make([]int32, n)
		for i := range flat {
			flat[i] = int32(le.Uint32(m.data[i*4:]))
		}
		return tensors.FromFlatDataAndDimensions(flat, m.shape...), nil
	case dtype.Int64:
		flat := make([]int64, n)
		for i := range flat {
			flat[i] = int64(le.Uint64(m.data[i*8:]))
		}
		return tensors.FromFlatDataAndDimensions(flat, m.shape...), nil
	case dtype.Int16:
		flat := make([]int16, n)
		for i := range flat {
			flat[i] = int16(le.Uint16(m.data[i*2:]))
		}
		return tensors.FromFlatDataAndDimensions(flat, m.shape...), nil
	case dtype.Uint8:
		flat := slices.Clone(m.data)
		return tensors.FromFlatDataAndDimensions(flat, m.shape...), nil
	default:
		return nil, fmt.Errorf("unsupported dtype for tensor: %s", m.dt)
	}
}
