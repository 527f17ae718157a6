// Package zarr implements the directory-store backend: Zarr v2 groups and
// arrays laid out as keys in a gocloud blob bucket, one codec per array.
package zarr

import (
	"context"
	"encoding/json"
	"fmt"

	"gocloud.dev/blob"

	"github.com/TuSKan/nwbchunk/backend"
)

// Store is a Zarr v2 hierarchy rooted at a bucket prefix.
type Store struct {
	bucket *blob.Bucket
	owned  bool
	closed bool
}

var _ backend.Store = (*Store)(nil)

// Open opens the bucket at url (for example "mem://" or
// "file:///tmp/out.zarr?create_dir=true&metadata=skip") and makes sure the
// root group exists.
func Open(ctx context.Context, url string) (*Store, error) {
	bucket, err := blob.OpenBucket(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to open bucket: %w", err)
	}
	s, err := NewStore(ctx, bucket)
	if err != nil {
		bucket.Close()
		return nil, err
	}
	s.owned = true
	return s, nil
}

// NewStore wraps an open bucket. The caller keeps ownership of bucket.
func NewStore(ctx context.Context, bucket *blob.Bucket) (*Store, error) {
	s := &Store{bucket: bucket}
	ok, err := s.exists(ctx, groupMetaKey)
	if err != nil {
		return nil, err
	}
	if !ok {
		if err := s.writeJSON(ctx, groupMetaKey, GroupMetadata{ZarrFormat: 2}); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *Store) Kind() backend.Kind { return backend.KindZarr }

// Bucket exposes the underlying bucket.
func (s *Store) Bucket() *blob.Bucket { return s.bucket }

// CreateGroup writes .zgroup (and .zattrs when attrs is non-empty).
func (s *Store) CreateGroup(ctx context.Context, path string, attrs map[string]any) error {
	if s.closed {
		return backend.ErrClosed
	}
	path = backend.CleanPath(path)
	if path != "" {
		if err := s.checkCreate(ctx, path); err != nil {
			return err
		}
		if err := s.writeJSON(ctx, objectKey(path, groupMetaKey), GroupMetadata{ZarrFormat: 2}); err != nil {
			return err
		}
	}
	return s.writeAttrs(ctx, path, attrs)
}

// CreateDataset writes .zarray for spec and returns the empty array.
func (s *Store) CreateDataset(ctx context.Context, path string, spec backend.DatasetSpec) (backend.Dataset, error) {
	if s.closed {
		return nil, backend.ErrClosed
	}
	path = backend.CleanPath(path)
	if path == "" {
		return nil, fmt.Errorf("%w: the root is a group", backend.ErrExists)
	}
	if err := spec.Validate(); err != nil {
		return nil, fmt.Errorf("invalid dataset %s: %w", path, err)
	}
	if err := s.checkCreate(ctx, path); err != nil {
		return nil, err
	}
	meta, err := newMetadata(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid dataset %s: %w", path, err)
	}
	if err := s.writeJSON(ctx, objectKey(path, arrayMetaKey), meta); err != nil {
		return nil, err
	}
	if err := s.writeAttrs(ctx, path, spec.Attrs); err != nil {
		return nil, err
	}
	return newArray(s.bucket, path, meta)
}

// OpenDataset opens an existing array.
func (s *Store) OpenDataset(ctx context.Context, path string) (backend.Dataset, error) {
	if s.closed {
		return nil, backend.ErrClosed
	}
	return OpenArray(ctx, s.bucket, backend.CleanPath(path))
}

// Attrs reads the .zattrs of a node. A node without attributes yields an
// empty map.
func (s *Store) Attrs(ctx context.Context, path string) (map[string]any, error) {
	attrs := map[string]any{}
	key := objectKey(backend.CleanPath(path), attrsKey)
	ok, err := s.exists(ctx, key)
	if err != nil || !ok {
		return attrs, err
	}
	data, err := s.bucket.ReadAll(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	if err := json.Unmarshal(data, &attrs); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return attrs, nil
}

// IsGroup reports whether path holds a group.
func (s *Store) IsGroup(ctx context.Context, path string) (bool, error) {
	return s.exists(ctx, objectKey(backend.CleanPath(path), groupMetaKey))
}

// Close closes the bucket if the store opened it.
func (s *Store) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if s.owned {
		return s.bucket.Close()
	}
	return nil
}

func (s *Store) checkCreate(ctx context.Context, path string) error {
	parent := backend.ParentPath(path)
	ok, err := s.exists(ctx, objectKey(parent, groupMetaKey))
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %q (creating %q)", backend.ErrParentMissing, parent, path)
	}
	for _, name := range []string{groupMetaKey, arrayMetaKey} {
		ok, err := s.exists(ctx, objectKey(path, name))
		if err != nil {
			return err
		}
		if ok {
			return fmt.Errorf("%w: %q", backend.ErrExists, path)
		}
	}
	return nil
}

func (s *Store) exists(ctx context.Context, key string) (bool, error) {
	ok, err := s.bucket.Exists(ctx, key)
	if err != nil {
		return false, fmt.Errorf("failed to stat %s: %w", key, err)
	}
	return ok, nil
}

func (s *Store) writeAttrs(ctx context.Context, path string, attrs map[string]any) error {
	if len(attrs) == 0 {
		return nil
	}
	return s.writeJSON(ctx, objectKey(path, attrsKey), attrs)
}

func (s *Store) writeJSON(ctx context.Context, key string, v any) error {
	data, err := json.MarshalIndent(v, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	if err := s.bucket.WriteAll(ctx, key, data, nil); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}
