package nwbchunk

import (
	"context"
	"fmt"
	"log/slog"
	"maps"

	"github.com/dustin/go-humanize"

	"github.com/TuSKan/nwbchunk/array"
	"github.com/TuSKan/nwbchunk/backend"
	"github.com/TuSKan/nwbchunk/config"
	"github.com/TuSKan/nwbchunk/docgraph"
)

// Builder computes default configurations.
type Builder struct {
	// Logger receives one debug record per computed entry. Nil discards.
	Logger *slog.Logger
}

// BuildDefaultConfiguration builds a configuration with the default
// builder.
func BuildDefaultConfiguration(g *docgraph.Graph, kind backend.Kind, policy config.Policy) (*BackendConfiguration, error) {
	return Builder{}.Build(g, kind, policy)
}

// Build inventories g and computes chunk shape, buffer shape and
// compression for every eligible dataset. Any dataset whose info cannot
// be determined fails the whole build.
func (b Builder) Build(g *docgraph.Graph, kind backend.Kind, policy config.Policy) (*BackendConfiguration, error) {
	logger := b.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	if _, err := backend.ParseKind(string(kind)); err != nil {
		return nil, configErrorf("", "backend", err)
	}
	config.ApplyPolicyDefaults(&policy)
	if err := config.ValidatePolicy(kind, policy); err != nil {
		return nil, configErrorf("", "policy", err)
	}
	compression, err := defaultCompression(kind, policy)
	if err != nil {
		return nil, err
	}

	w, err := walkGraph(context.Background(), g, policy.MinDatasetBytes)
	if err != nil {
		return nil, err
	}

	cfg := NewBackendConfiguration(kind)
	cfg.minBytes = policy.MinDatasetBytes
	bufferBytes := policy.BufferBytes()
	for _, d := range w.eligible() {
		itemSize := d.Info.DType.ItemSize()
		chunks := ChunkShape(d.Info.Shape, itemSize, policy.TargetChunkBytes)
		buffer := BufferShape(d.Info.Shape, chunks, itemSize, bufferBytes)
		cfg.Set(d.Path, NewDatasetConfiguration(d.Info, chunks, buffer, compression))

		logger.Debug("dataset configured",
			"path", d.Path,
			"shape", d.Info.Shape,
			"dtype", d.Info.DType.String(),
			"size", humanize.Bytes(uint64(d.Info.Size())),
			"chunks", chunks,
			"chunk_size", humanize.Bytes(uint64(array.ByteSize(chunks, d.Info.DType))),
			"buffer", buffer,
			"compression", compression.Method,
		)
	}
	return cfg, nil
}

// defaultCompression resolves the policy's compression against the
// registry. The backend default is always registered; a miss is a bug in
// the registry, reported as a configuration error.
func defaultCompression(kind backend.Kind, policy config.Policy) (backend.Compression, error) {
	c := backend.DefaultCompression(kind)
	if policy.DefaultCompressionMethod != "" {
		c = backend.Compression{Method: policy.DefaultCompressionMethod, Options: maps.Clone(policy.DefaultCompressionOptions)}
	}
	m, err := backend.Lookup(kind, c.Method)
	if err != nil {
		return backend.Compression{}, configErrorf("", "compression_method", err)
	}
	opts, err := m.Resolve(c.Options)
	if err != nil {
		return backend.Compression{}, configErrorf("", "compression_options", err)
	}
	return backend.Compression{Method: c.Method, Options: opts}, nil
}

func product(shape []int) int64 {
	n := int64(1)
	for _, d := range shape {
		n *= int64(d)
	}
	return n
}

func clampShape(shape []int) []int {
	out := make([]int, len(shape))
	for i, d := range shape {
		out[i] = max(d, 1)
	}
	return out
}

// ChunkShape computes a chunk shape within targetBytes. Zero-length axes
// are clamped to 1. A dataset that fits the budget, empty ones included,
// is a single chunk;
// otherwise axes are shrunk outermost first, each to the largest extent
// the remaining inner axes allow, until the budget is met.
func ChunkShape(full []int, itemSize int, targetBytes int64) []int {
	chunk := clampShape(full)
	if product(full)*int64(itemSize) <= targetBytes {
		return chunk
	}
	for i := range chunk {
		inner := product(chunk[i+1:]) * int64(itemSize)
		chunk[i] = int(min(max(targetBytes/inner, 1), int64(chunk[i])))
		if product(chunk)*int64(itemSize) <= targetBytes {
			break
		}
	}
	return chunk
}

// BufferShape grows the chunk shape, outermost axis first, to the largest
// whole-chunk multiple per axis that stays within the full shape and
// targetBytes. It never drops below the chunk shape.
func BufferShape(full, chunks []int, itemSize int, targetBytes int64) []int {
	limit := clampShape(full)
	buffer := append([]int(nil), chunks...)
	for i := range buffer {
		inner := int64(itemSize)
		for j, d := range buffer {
			if j != i {
				inner *= int64(d)
			}
		}
		fit := targetBytes / (inner * int64(chunks[i]))
		multiple := min(max(fit, 1), int64(limit[i]/chunks[i]))
		buffer[i] = int(max(multiple, 1)) * chunks[i]
	}
	return buffer
}

// String renders a short summary of a dataset configuration.
func (c *DatasetConfiguration) String() string {
	return fmt.Sprintf("%s %v %s: chunks %v, buffer %v, %s",
		c.info.Path, c.info.Shape, c.info.DType, c.ChunkShape, c.BufferShape, c.CompressionMethod)
}
