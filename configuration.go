package nwbchunk

import (
	"maps"
	"slices"

	"github.com/dustin/go-humanize"

	"github.com/TuSKan/nwbchunk/backend"
)

// DatasetConfiguration holds the editable storage settings of one
// dataset. Shape and dtype are fixed by Info.
type DatasetConfiguration struct {
	ChunkShape         []int
	BufferShape        []int
	CompressionMethod  string
	CompressionOptions map[string]any

	info DatasetInfo
}

// Info returns the dataset facts the configuration was built for.
func (c *DatasetConfiguration) Info() DatasetInfo {
	info := c.info
	info.Shape = slices.Clone(info.Shape)
	return info
}

// Compression returns the compression selection.
func (c *DatasetConfiguration) Compression() backend.Compression {
	return backend.Compression{Method: c.CompressionMethod, Options: maps.Clone(c.CompressionOptions)}
}

// NewDatasetConfiguration returns a configuration for info with the given
// shapes and compression.
func NewDatasetConfiguration(info DatasetInfo, chunks, buffer []int, c backend.Compression) *DatasetConfiguration {
	return &DatasetConfiguration{
		ChunkShape:         slices.Clone(chunks),
		BufferShape:        slices.Clone(buffer),
		CompressionMethod:  c.Method,
		CompressionOptions: maps.Clone(c.Options),
		info:               info,
	}
}

// BackendConfiguration maps dataset paths to their configuration, in
// inventory order, for one backend kind.
type BackendConfiguration struct {
	Kind backend.Kind

	paths    []string
	entries  map[string]*DatasetConfiguration
	minBytes int64
}

// NewBackendConfiguration returns an empty configuration for kind.
func NewBackendConfiguration(kind backend.Kind) *BackendConfiguration {
	return &BackendConfiguration{Kind: kind, entries: map[string]*DatasetConfiguration{}}
}

// Set adds or replaces the entry for path.
func (c *BackendConfiguration) Set(path string, entry *DatasetConfiguration) {
	if _, ok := c.entries[path]; !ok {
		c.paths = append(c.paths, path)
	}
	entry.info.Path = path
	c.entries[path] = entry
}

// Paths returns the configured dataset paths in order.
func (c *BackendConfiguration) Paths() []string { return slices.Clone(c.paths) }

// Get returns the entry for path. Edits through the returned pointer are
// checked by Validate.
func (c *BackendConfiguration) Get(path string) (*DatasetConfiguration, bool) {
	e, ok := c.entries[path]
	return e, ok
}

// Len returns the number of entries.
func (c *BackendConfiguration) Len() int { return len(c.paths) }

// TotalBytes returns the uncompressed size of all configured datasets.
func (c *BackendConfiguration) TotalBytes() int64 {
	var total int64
	for _, e := range c.entries {
		total += e.info.Size()
	}
	return total
}

type planDataset struct {
	Path        string         `yaml:"path"`
	Shape       []int          `yaml:"shape,flow"`
	DType       string         `yaml:"dtype"`
	Size        string         `yaml:"size"`
	ChunkShape  []int          `yaml:"chunk_shape,flow"`
	BufferShape []int          `yaml:"buffer_shape,flow"`
	Compression string         `yaml:"compression"`
	Options     map[string]any `yaml:"compression_options,omitempty"`
}

type plan struct {
	Backend  string        `yaml:"backend"`
	Total    string        `yaml:"total_size"`
	Datasets []planDataset `yaml:"datasets"`
}

// MarshalYAML renders the configuration as an ordered plan.
func (c *BackendConfiguration) MarshalYAML() (any, error) {
	p := plan{Backend: string(c.Kind), Total: humanize.Bytes(uint64(c.TotalBytes()))}
	for _, path := range c.paths {
		e := c.entries[path]
		p.Datasets = append(p.Datasets, planDataset{
			Path:        path,
			Shape:       e.info.Shape,
			DType:       e.info.DType.String(),
			Size:        humanize.Bytes(uint64(e.info.Size())),
			ChunkShape:  e.ChunkShape,
			BufferShape: e.BufferShape,
			Compression: e.CompressionMethod,
			Options:     e.CompressionOptions,
		})
	}
	return p, nil
}
