package nwbchunk

import (
	"context"
	"errors"
	"slices"
	"strings"

	"github.com/TuSKan/nwbchunk/backend"
	"github.com/TuSKan/nwbchunk/config"
	"github.com/TuSKan/nwbchunk/docgraph"
)

type nodeEntry struct {
	Path string
	ID   docgraph.NodeID
}

type datasetEntry struct {
	Path    string
	Dataset docgraph.DatasetID
	Node    docgraph.NodeID
	Info    DatasetInfo
	// Eligible entries get a chunked-storage configuration.
	Eligible bool
}

type graphWalk struct {
	Nodes    []nodeEntry
	Datasets []datasetEntry
}

func (w *graphWalk) eligible() []datasetEntry {
	var out []datasetEntry
	for _, d := range w.Datasets {
		if d.Eligible {
			out = append(out, d)
		}
	}
	return out
}

var errNoGraph = errors.New("document graph has no root")

// Inventory returns the path of every dataset eligible for chunked
// storage under policy, in traversal order. These are exactly the paths
// BuildDefaultConfiguration configures.
func Inventory(g *docgraph.Graph, policy config.Policy) ([]string, error) {
	w, err := walkGraph(context.Background(), g, policy.MinDatasetBytes)
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, d := range w.eligible() {
		paths = append(paths, d.Path)
	}
	return paths, nil
}

// walkGraph visits the graph depth-first in field insertion order. Nodes
// and datasets are deduplicated by handle, so aliases keep the first path
// reached and cycles terminate.
func walkGraph(ctx context.Context, g *docgraph.Graph, minBytes int64) (*graphWalk, error) {
	if g == nil || g.NumNodes() == 0 {
		return nil, configErrorf("", "graph", errNoGraph)
	}

	w := &graphWalk{}
	seenNodes := map[docgraph.NodeID]bool{}
	seenDatasets := map[docgraph.DatasetID]bool{}

	var visit func(id docgraph.NodeID, path string) error
	visit = func(id docgraph.NodeID, path string) error {
		seenNodes[id] = true
		w.Nodes = append(w.Nodes, nodeEntry{Path: path, ID: id})

		n, err := g.Node(id)
		if err != nil {
			return configErrorf(path, "graph", err)
		}
		fields, err := g.Fields(id)
		if err != nil {
			return configErrorf(path, "graph", err)
		}
		for _, f := range fields {
			fieldPath := backend.JoinPath(path, f.Name)
			if !f.IsDataset {
				if seenNodes[f.Child] {
					continue
				}
				if err := visit(f.Child, fieldPath); err != nil {
					return err
				}
				continue
			}

			if seenDatasets[f.Dataset] {
				continue
			}
			seenDatasets[f.Dataset] = true
			value, err := g.Dataset(f.Dataset)
			if err != nil {
				return configErrorf(fieldPath, "graph", err)
			}
			_, info, err := resolveSource(ctx, fieldPath, value)
			if err != nil {
				return err
			}
			w.Datasets = append(w.Datasets, datasetEntry{
				Path:     fieldPath,
				Dataset:  f.Dataset,
				Node:     id,
				Info:     info,
				Eligible: eligible(n, f.Name, info, minBytes),
			})
		}
		return nil
	}

	if err := visit(g.Root(), ""); err != nil {
		return nil, err
	}
	return w, nil
}

// eligible reports whether a dataset field qualifies for chunked storage.
// Time-series data and timestamps always qualify; other arrays must reach
// the size floor. Scalars never qualify.
func eligible(n docgraph.Node, field string, info DatasetInfo, minBytes int64) bool {
	if info.Rank() == 0 {
		return false
	}
	if n.TimeSeries && (field == "data" || field == "timestamps") {
		return true
	}
	return minBytes <= 0 || info.Size() >= minBytes
}

// byDepth orders paths shallowest first, then lexically.
func byDepth(a, b string) int {
	if da, db := backend.Depth(a), backend.Depth(b); da != db {
		return da - db
	}
	return strings.Compare(a, b)
}

func sortedNodes(nodes []nodeEntry) []nodeEntry {
	out := slices.Clone(nodes)
	slices.SortStableFunc(out, func(a, b nodeEntry) int { return byDepth(a.Path, b.Path) })
	return out
}

func sortedDatasets(datasets []datasetEntry) []datasetEntry {
	out := slices.Clone(datasets)
	slices.SortStableFunc(out, func(a, b datasetEntry) int { return byDepth(a.Path, b.Path) })
	return out
}
