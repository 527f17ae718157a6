package hdf5

import (
	"bytes"
	"context"
	"fmt"
	"slices"

	"github.com/dgraph-io/badger/v4"
	"github.com/zeebo/blake3"

	"github.com/TuSKan/nwbchunk/array"
	"github.com/TuSKan/nwbchunk/backend"
	"github.com/TuSKan/nwbchunk/codec"
	"github.com/TuSKan/nwbchunk/dtype"
)

// ErrChecksum is returned when a chunk fails digest or fletcher32 verification.
var ErrChecksum = codec.ErrChecksum

// chunkDomainKey keys the BLAKE3 chunk digests: ASCII, zero-padded.
var chunkDomainKey = [32]byte{
	'n', 'w', 'b', 'c', 'h', 'u', 'n', 'k', '.', 'h', 'd', 'f', '5', '.',
	'c', 'h', 'u', 'n', 'k',
}

// Dataset is a chunked dataset inside a Store.
type Dataset struct {
	store    *Store
	path     string
	rec      *datasetRecord
	dt       dtype.DType
	pipeline codec.Pipeline

	scratch []byte
}

var _ backend.Dataset = (*Dataset)(nil)

func newDataset(s *Store, path string, rec *datasetRecord) (*Dataset, error) {
	dt, err := dtype.Parse(rec.DType)
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", path, err)
	}
	pipeline, err := newPipeline(rec.Filters)
	if err != nil {
		return nil, fmt.Errorf("dataset %s: %w", path, err)
	}
	return &Dataset{store: s, path: path, rec: rec, dt: dt, pipeline: pipeline}, nil
}

func (d *Dataset) Path() string                     { return d.path }
func (d *Dataset) Shape() []int                     { return slices.Clone(d.rec.Shape) }
func (d *Dataset) Chunks() []int                    { return slices.Clone(d.rec.Chunks) }
func (d *Dataset) DType() dtype.DType               { return d.dt }
func (d *Dataset) Compression() backend.Compression { return compressionOf(d.rec.Filters) }

// Filters returns the stored filter pipeline in encode order.
func (d *Dataset) Filters() []FilterInfo { return slices.Clone(d.rec.Filters) }

func (d *Dataset) chunkBytes() int {
	return array.NumElements(d.rec.Chunks) * d.dt.ItemSize()
}

func digest(data []byte) []byte {
	h, err := blake3.NewKeyed(chunkDomainKey[:])
	if err != nil {
		panic("hdf5: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	h.Write(data)
	return h.Sum(nil)
}

// WriteRegion filters and stores every chunk covered by a chunk-aligned
// region in one write batch.
func (d *Dataset) WriteRegion(ctx context.Context, start, count []int, data []byte) error {
	if err := d.store.check(ctx); err != nil {
		return err
	}
	if err := backend.CheckAligned(d.rec.Shape, d.rec.Chunks, start, count); err != nil {
		return err
	}
	if err := array.CheckBuffer(count, d.dt, data); err != nil {
		return err
	}
	if len(d.scratch) != d.chunkBytes() {
		d.scratch = make([]byte, d.chunkBytes())
	}

	rank := len(d.rec.Shape)
	itemSize := d.dt.ItemSize()
	srcStrides := array.Strides(count)
	chunkStrides := array.Strides(d.rec.Chunks)
	origin := make([]int, rank)
	srcOffset := make([]int, rank)
	copyShape := make([]int, rank)

	wb := d.store.db.NewWriteBatch()
	defer wb.Cancel()

	lo, hi := backend.ChunkSpan(d.rec.Chunks, start, count)
	err := array.ForEachIndex(lo, hi, func(coords []int) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		edge := false
		for i := range coords {
			chunkStart := coords[i] * d.rec.Chunks[i]
			copyShape[i] = min(d.rec.Chunks[i], d.rec.Shape[i]-chunkStart)
			srcOffset[i] = chunkStart - start[i]
			edge = edge || copyShape[i] < d.rec.Chunks[i]
		}
		if edge {
			clear(d.scratch)
		}
		array.CopyND(d.scratch, chunkStrides, origin, data, srcStrides, srcOffset, copyShape, itemSize)

		encoded, err := d.pipeline.Encode(d.scratch)
		if err != nil {
			return fmt.Errorf("failed to filter chunk %v: %w", coords, err)
		}
		val, err := encMode.Marshal(chunkRecord{Digest: digest(d.scratch), Data: encoded})
		if err != nil {
			return fmt.Errorf("failed to encode chunk %v: %w", coords, err)
		}
		if err := wb.Set(keyChunk(d.path, coords), val); err != nil {
			return fmt.Errorf("failed to write chunk %v: %w", coords, err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("failed to flush chunks of %s: %w", d.path, err)
	}
	return nil
}

// ReadChunk returns the decoded chunk at coords. An unwritten chunk reads
// as zeros.
func (d *Dataset) ReadChunk(ctx context.Context, coords []int) ([]byte, error) {
	if err := d.store.check(ctx); err != nil {
		return nil, err
	}
	var rec chunkRecord
	found := true
	err := d.store.db.View(func(txn *badger.Txn) error {
		err := getRecord(txn, keyChunk(d.path, coords), &rec)
		if err == backend.ErrNotFound {
			found = false
			return nil
		}
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read chunk %v of %s: %w", coords, d.path, err)
	}
	if !found {
		return make([]byte, d.chunkBytes()), nil
	}

	data, err := d.pipeline.Decode(rec.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to unfilter chunk %v of %s: %w", coords, d.path, err)
	}
	if len(data) != d.chunkBytes() {
		return nil, fmt.Errorf("chunk %v of %s holds %d bytes, expected %d", coords, d.path, len(data), d.chunkBytes())
	}
	if !bytes.Equal(digest(data), rec.Digest) {
		return nil, fmt.Errorf("chunk %v of %s: %w", coords, d.path, ErrChecksum)
	}
	return data, nil
}

// GetRegion implements array.Source.
func (d *Dataset) GetRegion(ctx context.Context, start, count []int, dst []byte) error {
	if err := array.CheckRegion(d.rec.Shape, start, count); err != nil {
		return err
	}
	if err := array.CheckBuffer(count, d.dt, dst); err != nil {
		return err
	}

	rank := len(d.rec.Shape)
	itemSize := d.dt.ItemSize()
	dstStrides := array.Strides(count)
	chunkStrides := array.Strides(d.rec.Chunks)
	copyShape := make([]int, rank)
	srcOffset := make([]int, rank)
	dstOffset := make([]int, rank)

	lo, hi := backend.ChunkSpan(d.rec.Chunks, start, count)
	return array.ForEachIndex(lo, hi, func(coords []int) error {
		chunkData, err := d.ReadChunk(ctx, coords)
		if err != nil {
			return err
		}
		for i := range coords {
			chunkStart := coords[i] * d.rec.Chunks[i]
			chunkEnd := min(chunkStart+d.rec.Chunks[i], d.rec.Shape[i])
			lo := max(chunkStart, start[i])
			hi := min(chunkEnd, start[i]+count[i])
			copyShape[i] = hi - lo
			srcOffset[i] = lo - chunkStart
			dstOffset[i] = lo - start[i]
		}
		array.CopyND(dst, dstStrides, dstOffset, chunkData, chunkStrides, srcOffset, copyShape, itemSize)
		return nil
	})
}

// NumStoredChunks counts the chunks written so far.
func (d *Dataset) NumStoredChunks(ctx context.Context) (int, error) {
	if err := d.store.check(ctx); err != nil {
		return 0, err
	}
	n := 0
	err := d.store.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = keyChunkPrefix(d.path)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}
