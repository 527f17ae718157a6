// Package backend defines the capability surface shared by the two
// destination container kinds and the registry of compression methods
// each of them accepts.
package backend

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/TuSKan/nwbchunk/array"
	"github.com/TuSKan/nwbchunk/dtype"
)

// Kind names the structural family of a destination container.
type Kind string

const (
	// KindHDF5 is the chunked-group container: groups and chunked
	// datasets with a filter pipeline per dataset.
	KindHDF5 Kind = "hdf5"
	// KindZarr is the directory-of-chunk-files store with one codec per
	// array.
	KindZarr Kind = "zarr"
)

// Kinds lists the supported backend kinds.
func Kinds() []Kind { return []Kind{KindHDF5, KindZarr} }

// ParseKind validates a backend kind name.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if !slices.Contains(Kinds(), k) {
		return "", fmt.Errorf("unknown backend kind %q (expected one of %v)", s, Kinds())
	}
	return k, nil
}

// Common errors
var (
	ErrExists        = errors.New("object already exists")
	ErrNotFound      = errors.New("object not found")
	ErrParentMissing = errors.New("parent group does not exist")
	ErrNotAligned    = errors.New("region is not chunk-aligned")
	ErrUnknownMethod = errors.New("compression method not available")
	ErrClosed        = errors.New("store is closed")
)

// Compression selects a method from the registry and its options.
type Compression struct {
	Method  string         `mapstructure:"method" yaml:"method" json:"method"`
	Options map[string]any `mapstructure:"options" yaml:"options,omitempty" json:"options,omitempty"`
}

// DatasetSpec describes a dataset to create.
type DatasetSpec struct {
	Shape       []int
	Chunks      []int
	DType       dtype.DType
	Compression Compression
	Attrs       map[string]any
}

// Validate checks the structural fields of a spec.
func (s DatasetSpec) Validate() error {
	if err := s.DType.Validate(); err != nil {
		return fmt.Errorf("dtype: %w", err)
	}
	if len(s.Chunks) != len(s.Shape) {
		return fmt.Errorf("chunks rank %d does not match shape rank %d", len(s.Chunks), len(s.Shape))
	}
	for i := range s.Shape {
		if s.Shape[i] < 0 {
			return fmt.Errorf("negative extent %d at dimension %d", s.Shape[i], i)
		}
		if s.Chunks[i] < 1 {
			return fmt.Errorf("chunk extent %d at dimension %d must be positive", s.Chunks[i], i)
		}
	}
	return nil
}

// Store is a destination container. Stores are single-writer.
type Store interface {
	Kind() Kind

	// CreateGroup creates the group at path. The parent must exist; the
	// root group ("") always exists and only receives attributes.
	CreateGroup(ctx context.Context, path string, attrs map[string]any) error

	// CreateDataset creates an empty chunked dataset at path.
	CreateDataset(ctx context.Context, path string, spec DatasetSpec) (Dataset, error)

	// OpenDataset opens an existing dataset for reading and writing.
	OpenDataset(ctx context.Context, path string) (Dataset, error)

	Close() error
}

// Dataset is a backend-native chunked dataset. It is readable as a
// lazy source.
type Dataset interface {
	array.Source

	Path() string
	Chunks() []int
	Compression() Compression

	// WriteRegion stores a dense C-order region. start must lie on the
	// chunk grid and count must cover whole chunks except where the
	// region ends at the dataset boundary.
	WriteRegion(ctx context.Context, start, count []int, data []byte) error
}

// CheckAligned verifies that a write region satisfies the chunk-grid
// rule of Dataset.WriteRegion.
func CheckAligned(shape, chunks, start, count []int) error {
	if err := array.CheckRegion(shape, start, count); err != nil {
		return err
	}
	for i := range shape {
		if start[i]%chunks[i] != 0 {
			return fmt.Errorf("%w: start %d at dimension %d is not a multiple of chunk %d",
				ErrNotAligned, start[i], i, chunks[i])
		}
		end := start[i] + count[i]
		if end != shape[i] && count[i]%chunks[i] != 0 {
			return fmt.Errorf("%w: count %d at dimension %d splits a chunk of %d",
				ErrNotAligned, count[i], i, chunks[i])
		}
	}
	return nil
}

// ChunkSpan returns the inclusive-exclusive chunk coordinate range that a
// region overlaps.
func ChunkSpan(chunks, start, count []int) (lo, hi []int) {
	lo = make([]int, len(chunks))
	hi = make([]int, len(chunks))
	for i := range chunks {
		lo[i] = start[i] / chunks[i]
		hi[i] = lo[i]
		if count[i] > 0 {
			hi[i] = (start[i]+count[i]-1)/chunks[i] + 1
		}
	}
	return lo, hi
}
