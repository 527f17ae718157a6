// Package array defines lazy source arrays and the C-order region
// arithmetic shared by the writers and the backends.
package array

import (
	"context"
	"errors"
	"fmt"

	"github.com/TuSKan/nwbchunk/dtype"
)

// ErrRegion is returned for regions that do not fit the array.
var ErrRegion = errors.New("invalid region")

// Source is an array that materializes sub-regions on demand.
//
// GetRegion fills dst, which must hold exactly NumElements(count) *
// itemsize bytes, with the C-order contents of the box starting at start
// with extent count.
type Source interface {
	Shape() []int
	DType() dtype.DType
	GetRegion(ctx context.Context, start, count []int, dst []byte) error
}

// Prober is implemented by sources that cannot report their dtype
// without reading data. ProbeDType should read as little as possible.
type Prober interface {
	ProbeDType(ctx context.Context) (dtype.DType, error)
}

// NumElements returns the product of shape. A rank-0 shape has one element.
func NumElements(shape []int) int {
	n := 1
	for _, dim := range shape {
		n *= dim
	}
	return n
}

// ByteSize returns the number of bytes a region of shape occupies.
func ByteSize(shape []int, d dtype.DType) int64 {
	return int64(NumElements(shape)) * int64(d.ItemSize())
}

// Strides computes the C-order element strides for a given shape.
func Strides(shape []int) []int {
	if len(shape) == 0 {
		return []int{}
	}
	s := make([]int, len(shape))
	stride := 1
	for i := len(shape) - 1; i >= 0; i-- {
		s[i] = stride
		stride *= shape[i]
	}
	return s
}

// CheckRegion verifies that start/count describe a box inside shape.
func CheckRegion(shape, start, count []int) error {
	if len(start) != len(shape) || len(count) != len(shape) {
		return fmt.Errorf("%w: start and count must match array dimensionality %d", ErrRegion, len(shape))
	}
	for i := range shape {
		if start[i] < 0 || count[i] < 0 || start[i]+count[i] > shape[i] {
			return fmt.Errorf("%w: out of bounds at dimension %d (start %d, count %d, extent %d)",
				ErrRegion, i, start[i], count[i], shape[i])
		}
	}
	return nil
}

// CheckBuffer verifies dst is exactly large enough for a region of count.
func CheckBuffer(count []int, d dtype.DType, dst []byte) error {
	if want := ByteSize(count, d); int64(len(dst)) != want {
		return fmt.Errorf("%w: buffer holds %d bytes, region needs %d", ErrRegion, len(dst), want)
	}
	return nil
}

// GridShape returns how many tiles of extent tile cover shape along each
// axis. A zero-length axis has no tiles; a rank-0 shape yields an empty
// grid, which ForEachIndex visits once.
func GridShape(shape, tile []int) []int {
	grid := make([]int, len(shape))
	for i, n := range shape {
		t := max(tile[i], 1)
		grid[i] = (n + t - 1) / t
	}
	return grid
}

// ForEachIndex iterates from start (inclusive) to end (exclusive) in each
// dimension, last dimension fastest. fn must not retain indices. Nothing
// is visited if any dimension is empty; a rank-0 grid is visited once.
func ForEachIndex(start, end []int, fn func(indices []int) error) error {
	if len(start) == 0 {
		return fn([]int{})
	}
	for i := range start {
		if start[i] >= end[i] {
			return nil
		}
	}
	indices := make([]int, len(start))
	copy(indices, start)

	for {
		if err := fn(indices); err != nil {
			return err
		}

		// Increment
		i := len(start) - 1
		for ; i >= 0; i-- {
			indices[i]++
			if indices[i] < end[i] {
				break
			}
			indices[i] = start[i] // Reset to start, not 0
		}
		if i < 0 {
			break
		}
	}
	return nil
}
