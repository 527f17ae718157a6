package zarr

import (
	"context"
	"io"

	"github.com/gomlx/gomlx/pkg/core/tensors"
)

// Batcher reads an array in batches along its first dimension.
type Batcher struct {
	arr          *Array
	CurrentIndex int
}

// NewBatcher starts a batch reader at row 0.
func NewBatcher(arr *Array) *Batcher {
	return &Batcher{arr: arr}
}

// NextBatch reads the next batch of size batchSize.
// Returns io.EOF if there is no more data.
func (b *Batcher) NextBatch(ctx context.Context, batchSize int) (*tensors.Tensor, error) {
	shape := b.arr.meta.Shape
	if len(shape) == 0 || b.CurrentIndex >= shape[0] {
		return nil, io.EOF
	}

	start := b.CurrentIndex
	end := min(start+max(batchSize, 1), shape[0])

	// Batch shape: [end-start, Shape[1], Shape[2]...]
	regionStart := make([]int, len(shape))
	regionStart[0] = start
	count := make([]int, len(shape))
	count[0] = end - start
	copy(count[1:], shape[1:])

	t, err := b.arr.Tensor(ctx, regionStart, count)
	if err != nil {
		return nil, err
	}
	b.CurrentIndex = end
	return t, nil
}
