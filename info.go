package nwbchunk

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/gomlx/gomlx/pkg/core/tensors"

	"github.com/TuSKan/nwbchunk/array"
	"github.com/TuSKan/nwbchunk/docgraph"
	"github.com/TuSKan/nwbchunk/dtype"
)

// DatasetInfo holds the immutable facts about one dataset.
type DatasetInfo struct {
	Path  string
	Shape []int
	DType dtype.DType
}

// Rank returns the number of axes.
func (i DatasetInfo) Rank() int { return len(i.Shape) }

// Size returns the uncompressed size in bytes.
func (i DatasetInfo) Size() int64 { return array.ByteSize(i.Shape, i.DType) }

func (i DatasetInfo) equal(o DatasetInfo) bool {
	return i.DType == o.DType && slices.Equal(i.Shape, o.Shape)
}

// ExtractInfo determines the shape and dtype of the dataset at path.
func ExtractInfo(g *docgraph.Graph, path string) (DatasetInfo, error) {
	id, err := g.ResolveDataset(path)
	if err != nil {
		return DatasetInfo{}, &DatasetInfoError{Path: path, Err: err}
	}
	value, err := g.Dataset(id)
	if err != nil {
		return DatasetInfo{}, &DatasetInfoError{Path: path, Err: err}
	}
	_, info, err := resolveSource(context.Background(), path, value)
	return info, err
}

// probedSource overrides the dtype of a source that could only report it
// after a probe read.
type probedSource struct {
	array.Source
	dt dtype.DType
}

func (p probedSource) DType() dtype.DType { return p.dt }

var errNoDType = errors.New("source reports no dtype and cannot be probed")

// resolveSource turns a dataset value into a lazy source. Sources report
// shape and dtype directly; gomlx tensors and plain Go values are wrapped
// once with array.FromTensor and array.FromSlice.
func resolveSource(ctx context.Context, path string, value any) (array.Source, DatasetInfo, error) {
	fail := func(err error) (array.Source, DatasetInfo, error) {
		return nil, DatasetInfo{}, &DatasetInfoError{Path: path, Err: err}
	}

	var src array.Source
	switch v := value.(type) {
	case array.Source:
		src = v
	case *tensors.Tensor:
		m, err := array.FromTensor(v)
		if err != nil {
			return fail(err)
		}
		src = m
	case nil:
		return fail(errors.New("dataset has no value"))
	default:
		m, err := array.FromSlice(v)
		if err != nil {
			return fail(err)
		}
		src = m
	}

	shape := src.Shape()
	for axis, n := range shape {
		if n < 0 {
			return fail(fmt.Errorf("negative extent %d on axis %d", n, axis))
		}
	}

	dt := src.DType()
	if dt.IsZero() {
		p, ok := src.(array.Prober)
		if !ok {
			return fail(errNoDType)
		}
		var err error
		if dt, err = p.ProbeDType(ctx); err != nil {
			return fail(fmt.Errorf("dtype probe failed: %w", err))
		}
		src = probedSource{Source: src, dt: dt}
	}
	if err := dt.Validate(); err != nil {
		return fail(err)
	}
	return src, DatasetInfo{Path: path, Shape: slices.Clone(shape), DType: dt}, nil
}
