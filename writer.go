package nwbchunk

import (
	"context"
	"log/slog"
	"slices"

	"github.com/dustin/go-humanize"

	"github.com/TuSKan/nwbchunk/array"
	"github.com/TuSKan/nwbchunk/backend"
)

// Writer copies lazy sources into backend datasets one buffer window at a
// time.
type Writer struct {
	// Logger receives per-dataset debug records. Nil discards.
	Logger *slog.Logger
}

// Write copies src into dst with the default writer.
func Write(ctx context.Context, dst backend.Dataset, entry *DatasetConfiguration, src array.Source) error {
	return Writer{}.Write(ctx, dst, entry, src)
}

// Write tiles the full shape with windows of entry.BufferShape in
// lexicographic order of their offsets, last axis fastest, shrinking
// trailing windows at the boundary. Each window is read from src into one
// reused buffer and written to dst at the same offset. A dataset with an
// empty axis performs no iterations.
//
// Any failure aborts the dataset with a *DatasetWriteError carrying the
// window offset. The destination is then incomplete and must be rewritten
// from offset zero.
func (w Writer) Write(ctx context.Context, dst backend.Dataset, entry *DatasetConfiguration, src array.Source) error {
	logger := w.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	info := entry.Info()
	path := info.Path
	if path == "" {
		path = dst.Path()
	}
	if !slices.Equal(src.Shape(), info.Shape) {
		return configError(path, "source shape", -1, info.Shape, src.Shape())
	}
	if src.DType() != info.DType {
		return configError(path, "source dtype", -1, info.DType, src.DType())
	}
	rank := info.Rank()
	if len(entry.BufferShape) != rank {
		return configError(path, "buffer_shape rank", -1, rank, len(entry.BufferShape))
	}

	windows := array.GridShape(info.Shape, entry.BufferShape)

	itemSize := info.DType.ItemSize()
	buf := make([]byte, array.NumElements(entry.BufferShape)*itemSize)
	start := make([]int, rank)
	count := make([]int, rank)
	n := 0

	logger.Debug("copying windows",
		"path", path,
		"shape", info.Shape,
		"buffer", entry.BufferShape,
		"buffer_size", humanize.Bytes(uint64(len(buf))),
	)

	err := array.ForEachIndex(make([]int, rank), windows, func(window []int) error {
		for i := range window {
			start[i] = window[i] * entry.BufferShape[i]
			count[i] = min(entry.BufferShape[i], info.Shape[i]-start[i])
		}
		fail := func(err error) error {
			return &DatasetWriteError{Path: path, Offset: slices.Clone(start), Err: err}
		}
		if err := ctx.Err(); err != nil {
			return fail(err)
		}

		region := buf[:array.NumElements(count)*itemSize]
		if err := src.GetRegion(ctx, start, count, region); err != nil {
			return fail(err)
		}
		if err := dst.WriteRegion(ctx, start, count, region); err != nil {
			return fail(err)
		}
		n++
		return nil
	})
	if err != nil {
		return err
	}

	logger.Debug("windows copied", "path", path, "windows", n)
	return nil
}
