// Package hdf5 implements the chunked-group backend: a hierarchy of groups
// and chunked datasets with an HDF5-style filter pipeline per dataset,
// persisted in a BadgerDB key-value store.
package hdf5

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"

	"github.com/TuSKan/nwbchunk/backend"
	"github.com/TuSKan/nwbchunk/dtype"
)

// Store is a chunked-group container. Stores are single-writer.
type Store struct {
	db     *badger.DB
	closed bool
}

var _ backend.Store = (*Store)(nil)

// Open opens (or creates) a container in dir.
func Open(dir string) (*Store, error) {
	return open(badger.DefaultOptions(dir))
}

// OpenInMemory opens a container that lives only as long as the Store.
func OpenInMemory() (*Store, error) {
	return open(badger.DefaultOptions("").WithInMemory(true))
}

func open(opts badger.Options) (*Store, error) {
	// Chunks are already compressed by the filter pipeline.
	opts = opts.WithLoggingLevel(badger.WARNING).WithCompression(options.None)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB at %s: %w", opts.Dir, err)
	}
	s := &Store{db: db}

	// The root group always exists.
	err = db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(keyGroup(""))
		if err == badger.ErrKeyNotFound {
			return putRecord(txn, keyGroup(""), groupRecord{})
		}
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize root group: %w", err)
	}
	return s, nil
}

func (s *Store) Kind() backend.Kind { return backend.KindHDF5 }

// CreateGroup creates the group at path. On the root it only merges attrs.
func (s *Store) CreateGroup(ctx context.Context, path string, attrs map[string]any) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	path = backend.CleanPath(path)
	return s.db.Update(func(txn *badger.Txn) error {
		if path == "" {
			var root groupRecord
			if err := getRecord(txn, keyGroup(""), &root); err != nil {
				return err
			}
			if root.Attrs == nil {
				root.Attrs = map[string]any{}
			}
			for k, v := range attrs {
				root.Attrs[k] = v
			}
			return putRecord(txn, keyGroup(""), root)
		}
		if err := checkCreate(txn, path); err != nil {
			return err
		}
		return putRecord(txn, keyGroup(path), groupRecord{Attrs: attrs})
	})
}

// CreateDataset records the dataset layout and filter pipeline. No chunk
// is allocated until written.
func (s *Store) CreateDataset(ctx context.Context, path string, spec backend.DatasetSpec) (backend.Dataset, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	path = backend.CleanPath(path)
	if path == "" {
		return nil, fmt.Errorf("%w: the root is a group", backend.ErrExists)
	}
	if err := spec.Validate(); err != nil {
		return nil, fmt.Errorf("invalid dataset %s: %w", path, err)
	}
	filters, err := buildFilters(spec.Compression, spec.DType.ItemSize())
	if err != nil {
		return nil, fmt.Errorf("invalid dataset %s: %w", path, err)
	}
	rec := datasetRecord{
		Shape:   slices.Clone(spec.Shape),
		Chunks:  slices.Clone(spec.Chunks),
		DType:   spec.DType.String(),
		Filters: filters,
		Attrs:   spec.Attrs,
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		if err := checkCreate(txn, path); err != nil {
			return err
		}
		return putRecord(txn, keyDataset(path), rec)
	})
	if err != nil {
		return nil, err
	}
	return newDataset(s, path, &rec)
}

// OpenDataset opens an existing dataset.
func (s *Store) OpenDataset(ctx context.Context, path string) (backend.Dataset, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	path = backend.CleanPath(path)
	var rec datasetRecord
	err := s.db.View(func(txn *badger.Txn) error {
		return getRecord(txn, keyDataset(path), &rec)
	})
	if err != nil {
		return nil, fmt.Errorf("dataset %q: %w", path, err)
	}
	return newDataset(s, path, &rec)
}

// Attrs returns the attributes stored on a group or dataset.
func (s *Store) Attrs(ctx context.Context, path string) (map[string]any, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	path = backend.CleanPath(path)
	var attrs map[string]any
	err := s.db.View(func(txn *badger.Txn) error {
		var g groupRecord
		err := getRecord(txn, keyGroup(path), &g)
		if err == nil {
			attrs = g.Attrs
			return nil
		}
		if !errors.Is(err, backend.ErrNotFound) {
			return err
		}
		var d datasetRecord
		if err := getRecord(txn, keyDataset(path), &d); err != nil {
			return err
		}
		attrs = d.Attrs
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("object %q: %w", path, err)
	}
	if attrs == nil {
		attrs = map[string]any{}
	}
	return attrs, nil
}

// Entry is one object in a container listing.
type Entry struct {
	Path    string
	IsGroup bool
	Shape   []int
	DType   dtype.DType
}

// List returns every group and dataset, ordered by path.
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	var entries []Entry
	err := s.db.View(func(txn *badger.Txn) error {
		for _, prefix := range []string{prefixGroup, prefixDataset} {
			opts := badger.DefaultIteratorOptions
			opts.Prefix = []byte(prefix)
			it := txn.NewIterator(opts)
			for it.Rewind(); it.Valid(); it.Next() {
				item := it.Item()
				path := strings.TrimPrefix(string(item.Key()), prefix)
				if prefix == prefixGroup {
					entries = append(entries, Entry{Path: path, IsGroup: true})
					continue
				}
				var rec datasetRecord
				err := item.Value(func(val []byte) error {
					return decMode.Unmarshal(val, &rec)
				})
				if err != nil {
					it.Close()
					return fmt.Errorf("failed to decode dataset %s: %w", path, err)
				}
				dt, err := dtype.Parse(rec.DType)
				if err != nil {
					it.Close()
					return fmt.Errorf("dataset %s: %w", path, err)
				}
				entries = append(entries, Entry{Path: path, Shape: rec.Shape, DType: dt})
			}
			it.Close()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.SortFunc(entries, func(a, b Entry) int { return strings.Compare(a.Path, b.Path) })
	return entries, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func (s *Store) check(ctx context.Context) error {
	if s.closed {
		return backend.ErrClosed
	}
	return ctx.Err()
}

func checkCreate(txn *badger.Txn, path string) error {
	parent := backend.ParentPath(path)
	if _, err := txn.Get(keyGroup(parent)); err != nil {
		if err == badger.ErrKeyNotFound {
			return fmt.Errorf("%w: %q (creating %q)", backend.ErrParentMissing, parent, path)
		}
		return err
	}
	for _, key := range [][]byte{keyGroup(path), keyDataset(path)} {
		_, err := txn.Get(key)
		if err == nil {
			return fmt.Errorf("%w: %q", backend.ErrExists, path)
		}
		if err != badger.ErrKeyNotFound {
			return err
		}
	}
	return nil
}

func putRecord(txn *badger.Txn, key []byte, v any) error {
	data, err := encMode.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	return txn.Set(key, data)
}

func getRecord(txn *badger.Txn, key []byte, v any) error {
	item, err := txn.Get(key)
	if err == badger.ErrKeyNotFound {
		return backend.ErrNotFound
	}
	if err != nil {
		return err
	}
	return item.Value(func(val []byte) error {
		return decMode.Unmarshal(val, v)
	})
}
