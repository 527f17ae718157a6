package zarr

import (
	"context"
	"fmt"
	"io"
	"slices"

	"github.com/gomlx/gomlx/pkg/core/tensors"
	"gocloud.dev/blob"
	"gocloud.dev/gcerrors"

	"github.com/TuSKan/nwbchunk/array"
	"github.com/TuSKan/nwbchunk/backend"
	"github.com/TuSKan/nwbchunk/codec"
	"github.com/TuSKan/nwbchunk/dtype"
)

// Array is a Zarr v2 array inside a bucket. It is readable as a lazy
// source and writable chunk by chunk.
type Array struct {
	bucket *blob.Bucket
	path   string
	meta   *Metadata
	dt     dtype.DType
	codec  codec.Codec
	owned  bool

	// scratch holds one decoded chunk during writes.
	scratch []byte
}

var _ backend.Dataset = (*Array)(nil)

// OpenArray reads the .zarray document at path inside bucket.
func OpenArray(ctx context.Context, bucket *blob.Bucket, path string) (*Array, error) {
	key := objectKey(path, arrayMetaKey)
	reader, err := bucket.NewReader(ctx, key, nil)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return nil, fmt.Errorf("%w: array %q", backend.ErrNotFound, path)
		}
		return nil, fmt.Errorf("failed to open %s: %w", key, err)
	}
	defer reader.Close()

	meta, err := LoadMetadata(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to load metadata: %w", err)
	}
	return newArray(bucket, path, meta)
}

// OpenURL opens the array stored at the root of the bucket at url. The
// bucket is closed with the array.
func OpenURL(ctx context.Context, url string) (*Array, error) {
	bucket, err := blob.OpenBucket(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to open bucket: %w", err)
	}
	a, err := OpenArray(ctx, bucket, "")
	if err != nil {
		bucket.Close()
		return nil, err
	}
	a.owned = true
	return a, nil
}

func newArray(bucket *blob.Bucket, path string, meta *Metadata) (*Array, error) {
	dt, err := dtype.Parse(meta.DType)
	if err != nil {
		return nil, fmt.Errorf("invalid dtype: %w", err)
	}
	c, err := newCodec(meta.Compressor)
	if err != nil {
		return nil, err
	}
	return &Array{bucket: bucket, path: path, meta: meta, dt: dt, codec: c}, nil
}

func (a *Array) Path() string                     { return a.path }
func (a *Array) Shape() []int                     { return slices.Clone(a.meta.Shape) }
func (a *Array) Chunks() []int                    { return slices.Clone(a.meta.Chunks) }
func (a *Array) DType() dtype.DType               { return a.dt }
func (a *Array) Metadata() *Metadata              { return a.meta }
func (a *Array) Compression() backend.Compression { return compression(a.meta.Compressor) }

// Close closes the bucket if the array was opened with OpenURL.
func (a *Array) Close() error {
	if a.owned {
		return a.bucket.Close()
	}
	return nil
}

func (a *Array) chunkKey(coords []int) string {
	return objectKey(a.path, ChunkKey(coords, a.meta.separator()))
}

func (a *Array) chunkBytes() int {
	return array.NumElements(a.meta.Chunks) * a.dt.ItemSize()
}

// WriteRegion encodes and stores every chunk covered by a chunk-aligned
// region. Chunks that overhang the array edge are padded with zeros.
func (a *Array) WriteRegion(ctx context.Context, start, count []int, data []byte) error {
	if err := backend.CheckAligned(a.meta.Shape, a.meta.Chunks, start, count); err != nil {
		return err
	}
	if err := array.CheckBuffer(count, a.dt, data); err != nil {
		return err
	}
	if len(a.scratch) != a.chunkBytes() {
		a.scratch = make([]byte, a.chunkBytes())
	}

	rank := len(a.meta.Shape)
	itemSize := a.dt.ItemSize()
	srcStrides := array.Strides(count)
	chunkStrides := array.Strides(a.meta.Chunks)
	origin := make([]int, rank)
	srcOffset := make([]int, rank)
	copyShape := make([]int, rank)

	lo, hi := backend.ChunkSpan(a.meta.Chunks, start, count)
	return array.ForEachIndex(lo, hi, func(coords []int) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		edge := false
		for i := range coords {
			chunkStart := coords[i] * a.meta.Chunks[i]
			copyShape[i] = min(a.meta.Chunks[i], a.meta.Shape[i]-chunkStart)
			srcOffset[i] = chunkStart - start[i]
			edge = edge || copyShape[i] < a.meta.Chunks[i]
		}
		if edge {
			clear(a.scratch)
		}
		array.CopyND(a.scratch, chunkStrides, origin, data, srcStrides, srcOffset, copyShape, itemSize)

		encoded, err := a.codec.Encode(a.scratch)
		if err != nil {
			return fmt.Errorf("failed to encode chunk %v: %w", coords, err)
		}
		key := a.chunkKey(coords)
		if err := a.bucket.WriteAll(ctx, key, encoded, nil); err != nil {
			return fmt.Errorf("failed to write chunk %s: %w", key, err)
		}
		return nil
	})
}

// ReadChunk reads a single chunk from the Zarr array given its coordinates.
// A chunk that was never written reads as the zero fill value.
func (a *Array) ReadChunk(ctx context.Context, coords []int) ([]byte, error) {
	key := a.chunkKey(coords)

	reader, err := a.bucket.NewReader(ctx, key, nil)
	if err != nil {
		if gcerrors.Code(err) == gcerrors.NotFound {
			return make([]byte, a.chunkBytes()), nil
		}
		return nil, fmt.Errorf("failed to open chunk %s: %w", key, err)
	}
	defer reader.Close()

	chunkData, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read chunk %s: %w", key, err)
	}
	chunkData, err = a.codec.Decode(chunkData)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress chunk %s: %w", key, err)
	}
	if len(chunkData) != a.chunkBytes() {
		return nil, fmt.Errorf("chunk %s holds %d bytes, expected %d", key, len(chunkData), a.chunkBytes())
	}
	return chunkData, nil
}

// GetRegion implements array.Source.
func (a *Array) GetRegion(ctx context.Context, start, count []int, dst []byte) error {
	if err := array.CheckRegion(a.meta.Shape, start, count); err != nil {
		return err
	}
	if err := array.CheckBuffer(count, a.dt, dst); err != nil {
		return err
	}

	rank := len(a.meta.Shape)
	itemSize := a.dt.ItemSize()
	dstStrides := array.Strides(count)
	chunkStrides := array.Strides(a.meta.Chunks)
	copyShape := make([]int, rank)
	srcOffset := make([]int, rank)
	dstOffset := make([]int, rank)

	lo, hi := backend.ChunkSpan(a.meta.Chunks, start, count)
	return array.ForEachIndex(lo, hi, func(coords []int) error {
		chunkData, err := a.ReadChunk(ctx, coords)
		if err != nil {
			return err
		}
		for i := range coords {
			chunkStartGlobal := coords[i] * a.meta.Chunks[i]
			chunkEndGlobal := min(chunkStartGlobal+a.meta.Chunks[i], a.meta.Shape[i])

			intersectStart := max(chunkStartGlobal, start[i])
			intersectEnd := min(chunkEndGlobal, start[i]+count[i])

			copyShape[i] = intersectEnd - intersectStart
			srcOffset[i] = intersectStart - chunkStartGlobal
			dstOffset[i] = intersectStart - start[i]
		}
		array.CopyND(dst, dstStrides, dstOffset, chunkData, chunkStrides, srcOffset, copyShape, itemSize)
		return nil
	})
}

// ReadRegion reads an N-dimensional region of the Zarr array.
func (a *Array) ReadRegion(ctx context.Context, start, count []int) ([]byte, error) {
	out := make([]byte, array.ByteSize(count, a.dt))
	if err := a.GetRegion(ctx, start, count, out); err != nil {
		return nil, err
	}
	return out, nil
}

// ReadFull reads the entire Zarr array into a flat byte slice.
func (a *Array) ReadFull(ctx context.Context) ([]byte, error) {
	return a.ReadRegion(ctx, make([]int, len(a.meta.Shape)), a.meta.Shape)
}

// NumStoredChunks counts the chunk objects present in the bucket.
func (a *Array) NumStoredChunks(ctx context.Context) (int, error) {
	grid := array.GridShape(a.meta.Shape, a.meta.Chunks)
	n := 0
	err := array.ForEachIndex(make([]int, len(grid)), grid, func(coords []int) error {
		ok, err := a.bucket.Exists(ctx, a.chunkKey(coords))
		if err != nil {
			return err
		}
		if ok {
			n++
		}
		return nil
	})
	return n, err
}

// Tensor reads a region as a gomlx tensor.
func (a *Array) Tensor(ctx context.Context, start, count []int) (*tensors.Tensor, error) {
	data, err := a.ReadRegion(ctx, start, count)
	if err != nil {
		return nil, err
	}
	m, err := array.NewMemory(count, a.dt, data)
	if err != nil {
		return nil, err
	}
	return m.Tensor()
}
