package array

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"reflect"
	"slices"

	"github.com/TuSKan/nwbchunk/dtype"
)

// Memory is a Source backed by a C-order byte buffer.
type Memory struct {
	shape []int
	dt    dtype.DType
	data  []byte
}

// NewMemory wraps data, which must hold exactly the bytes of shape.
func NewMemory(shape []int, dt dtype.DType, data []byte) (*Memory, error) {
	if err := dt.Validate(); err != nil {
		return nil, err
	}
	for i, dim := range shape {
		if dim < 0 {
			return nil, fmt.Errorf("negative extent %d at dimension %d", dim, i)
		}
	}
	if want := ByteSize(shape, dt); int64(len(data)) != want {
		return nil, fmt.Errorf("data holds %d bytes, shape %v of %s needs %d", len(data), shape, dt, want)
	}
	return &Memory{shape: slices.Clone(shape), dt: dt, data: data}, nil
}

// Zeros allocates a zero-filled array.
func Zeros(shape []int, dt dtype.DType) *Memory {
	return &Memory{
		shape: slices.Clone(shape),
		dt:    dt,
		data:  make([]byte, ByteSize(shape, dt)),
	}
}

func (m *Memory) Shape() []int       { return slices.Clone(m.shape) }
func (m *Memory) DType() dtype.DType { return m.dt }

// Bytes returns the underlying buffer without copying.
func (m *Memory) Bytes() []byte { return m.data }

func (m *Memory) GetRegion(_ context.Context, start, count []int, dst []byte) error {
	if err := CheckRegion(m.shape, start, count); err != nil {
		return err
	}
	if err := CheckBuffer(count, m.dt, dst); err != nil {
		return err
	}
	Extract(dst, m.data, m.shape, start, count, m.dt.ItemSize())
	return nil
}

// FromSlice copies a Go value into a Memory array. v may be a scalar, a
// slice, or rectangular nested slices/arrays of numbers, bools or strings.
// Strings become fixed-width text as wide as the longest string.
func FromSlice(v any) (*Memory, error) {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		return nil, fmt.Errorf("nil value")
	}

	elemType := rv.Type()
	rank := 0
	for elemType.Kind() == reflect.Slice || elemType.Kind() == reflect.Array {
		elemType = elemType.Elem()
		rank++
	}

	// Shape from the first element of every level; empty levels hide
	// the extents below them.
	shape := make([]int, rank)
	cur := rv
	for i := 0; i < rank; i++ {
		shape[i] = cur.Len()
		if cur.Len() == 0 {
			break
		}
		cur = cur.Index(0)
	}

	var dt dtype.DType
	if elemType.Kind() == reflect.String {
		width := 1
		if err := walk(rv, shape, 0, func(e reflect.Value) error {
			width = max(width, e.Len())
			return nil
		}); err != nil {
			return nil, err
		}
		dt = dtype.FixedText(width)
	} else {
		var err error
		dt, err = dtype.FromKind(elemType.Kind())
		if err != nil {
			return nil, err
		}
	}

	itemSize := dt.ItemSize()
	data := make([]byte, 0, ByteSize(shape, dt))
	if err := walk(rv, shape, 0, func(e reflect.Value) error {
		data = appendElement(data, e, dt, itemSize)
		return nil
	}); err != nil {
		return nil, err
	}
	return &Memory{shape: shape, dt: dt, data: data}, nil
}

// walk visits leaf elements in C order and rejects ragged input.
func walk(v reflect.Value, shape []int, depth int, fn func(reflect.Value) error) error {
	if depth == len(shape) {
		return fn(v)
	}
	if v.Len() != shape[depth] {
		return fmt.Errorf("ragged input at dimension %d: length %d, expected %d", depth, v.Len(), shape[depth])
	}
	for i := 0; i < v.Len(); i++ {
		if err := walk(v.Index(i), shape, depth+1, fn); err != nil {
			return err
		}
	}
	return nil
}

func appendElement(buf []byte, v reflect.Value, dt dtype.DType, itemSize int) []byte {
	le := binary.LittleEndian
	switch dt.Kind {
	case dtype.Bool:
		if v.Bool() {
			return append(buf, 1)
		}
		return append(buf, 0)
	case dtype.Int:
		return appendUint(buf, uint64(v.Int()), itemSize)
	case dtype.Uint:
		return appendUint(buf, v.Uint(), itemSize)
	case dtype.Float:
		if itemSize == 4 {
			return le.AppendUint32(buf, math.Float32bits(float32(v.Float())))
		}
		return le.AppendUint64(buf, math.Float64bits(v.Float()))
	case dtype.Complex:
		c := v.Complex()
		if itemSize == 8 {
			buf = le.AppendUint32(buf, math.Float32bits(float32(real(c))))
			return le.AppendUint32(buf, math.Float32bits(float32(imag(c))))
		}
		buf = le.AppendUint64(buf, math.Float64bits(real(c)))
		return le.AppendUint64(buf, math.Float64bits(imag(c)))
	case dtype.Bytes:
		s := v.String()
		buf = append(buf, s...)
		for i := len(s); i < itemSize; i++ {
			buf = append(buf, 0)
		}
		return buf
	}
	return buf
}

func appendUint(buf []byte, u uint64, size int) []byte {
	for i := 0; i < size; i++ {
		buf = append(buf, byte(u>>(8*i)))
	}
	return buf
}

// Func is a Source whose regions are produced by a callback, for data
// generated or read lazily by a format reader.
type Func struct {
	shape []int
	dt    dtype.DType
	fn    func(ctx context.Context, start, count []int, dst []byte) error
}

// NewFunc returns a Source that delegates GetRegion to fn after bounds
// checking.
func NewFunc(shape []int, dt dtype.DType, fn func(ctx context.Context, start, count []int, dst []byte) error) *Func {
	return &Func{shape: slices.Clone(shape), dt: dt, fn: fn}
}

func (f *Func) Shape() []int       { return slices.Clone(f.shape) }
func (f *Func) DType() dtype.DType { return f.dt }

func (f *Func) GetRegion(ctx context.Context, start, count []int, dst []byte) error {
	if err := CheckRegion(f.shape, start, count); err != nil {
		return err
	}
	if err := CheckBuffer(count, f.dt, dst); err != nil {
		return err
	}
	return f.fn(ctx, start, count, dst)
}
