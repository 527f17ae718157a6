package nwbchunk

import (
	"context"
	"fmt"
	"log/slog"
	"maps"

	"github.com/dustin/go-humanize"

	"github.com/TuSKan/nwbchunk/backend"
	"github.com/TuSKan/nwbchunk/docgraph"
)

// BindOptions configures BindAndWrite.
type BindOptions struct {
	// Logger receives one record per group and dataset. Nil discards.
	Logger *slog.Logger
}

// BindAndWrite validates cfg against g, creates every reachable group in
// store, then creates and writes every dataset and installs the backend
// dataset in place of the original field value.
//
// Groups and datasets are processed shallowest first, then by path. The
// first failure stops the run; datasets already written stay in place.
// Datasets outside the configuration (scalars and arrays below the size
// floor) are stored as a single uncompressed chunk.
func BindAndWrite(ctx context.Context, g *docgraph.Graph, cfg *BackendConfiguration, store backend.Store, opts BindOptions) error {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	if err := Validate(cfg); err != nil {
		return err
	}
	if store.Kind() != cfg.Kind {
		return configError("", "backend", -1, cfg.Kind, store.Kind())
	}
	w, err := walkGraph(ctx, g, cfg.minBytes)
	if err != nil {
		return err
	}
	if err := checkCoverage(cfg, w); err != nil {
		return err
	}

	for _, n := range sortedNodes(w.Nodes) {
		node, err := g.Node(n.ID)
		if err != nil {
			return configErrorf(n.Path, "graph", err)
		}
		if err := store.CreateGroup(ctx, n.Path, groupAttrs(node)); err != nil {
			return &DatasetWriteError{Path: n.Path, Err: fmt.Errorf("failed to create group: %w", err)}
		}
		logger.Debug("group created", "path", n.Path, "neurodata_type", node.NeurodataType)
	}

	writer := Writer{Logger: logger}
	for _, d := range sortedDatasets(w.Datasets) {
		entry, ok := cfg.Get(d.Path)
		if !ok {
			entry = contiguous(d.Info)
		}
		if err := bindDataset(ctx, g, d, entry, store, writer, logger); err != nil {
			return err
		}
	}
	return nil
}

func bindDataset(ctx context.Context, g *docgraph.Graph, d datasetEntry, entry *DatasetConfiguration,
	store backend.Store, writer Writer, logger *slog.Logger) error {
	value, err := g.Dataset(d.Dataset)
	if err != nil {
		return configErrorf(d.Path, "graph", err)
	}
	src, _, err := resolveSource(ctx, d.Path, value)
	if err != nil {
		return err
	}

	logger.Info("writing dataset",
		"path", d.Path,
		"shape", d.Info.Shape,
		"dtype", d.Info.DType.String(),
		"size", humanize.Bytes(uint64(d.Info.Size())),
		"chunks", entry.ChunkShape,
		"compression", entry.CompressionMethod,
	)

	ds, err := store.CreateDataset(ctx, d.Path, backend.DatasetSpec{
		Shape:       d.Info.Shape,
		Chunks:      entry.ChunkShape,
		DType:       d.Info.DType,
		Compression: entry.Compression(),
	})
	if err != nil {
		return &DatasetWriteError{Path: d.Path, Err: err}
	}
	if err := writer.Write(ctx, ds, entry, src); err != nil {
		return err
	}
	if err := g.ReplaceDataset(d.Dataset, ds); err != nil {
		return configErrorf(d.Path, "graph", err)
	}

	logger.Info("dataset written", "path", d.Path)
	return nil
}

// contiguous is the configuration of a dataset stored without chunked
// layout: one chunk covering the whole array, no compression.
func contiguous(info DatasetInfo) *DatasetConfiguration {
	shape := clampShape(info.Shape)
	return NewDatasetConfiguration(info, shape, shape, backend.Compression{Method: "none"})
}

func groupAttrs(n docgraph.Node) map[string]any {
	attrs := maps.Clone(n.Attrs)
	if attrs == nil {
		attrs = map[string]any{}
	}
	if n.NeurodataType != "" {
		attrs["neurodata_type"] = n.NeurodataType
		attrs["namespace"] = n.Namespace
	}
	attrs["object_id"] = n.ObjectID
	return attrs
}
