package nwbchunk

import (
	"errors"
	"fmt"

	"github.com/TuSKan/nwbchunk/backend"
)

// Validate checks every entry of cfg in order and returns the first
// violation as a *ConfigurationError.
func Validate(cfg *BackendConfiguration) error {
	if cfg == nil {
		return configErrorf("", "configuration", errors.New("configuration is nil"))
	}
	return cfg.Validate()
}

// Validate checks rank agreement, chunk <= buffer <= full, buffer as a
// whole multiple of chunk, and the compression method and options of
// every entry. Zero-length axes accept chunk and buffer extents of 1.
func (c *BackendConfiguration) Validate() error {
	if _, err := backend.ParseKind(string(c.Kind)); err != nil {
		return configErrorf("", "backend", err)
	}
	for _, path := range c.paths {
		if err := validateEntry(c.Kind, path, c.entries[path]); err != nil {
			return err
		}
	}
	return nil
}

// Validate checks a single entry against the rules of kind.
func (c *DatasetConfiguration) Validate(kind backend.Kind) error {
	return validateEntry(kind, c.info.Path, c)
}

func validateEntry(kind backend.Kind, path string, e *DatasetConfiguration) error {
	if e == nil {
		return configErrorf(path, "configuration", errors.New("entry is nil"))
	}
	full := e.info.Shape
	rank := len(full)
	if len(e.ChunkShape) != rank {
		return configError(path, "chunk_shape rank", -1, rank, len(e.ChunkShape))
	}
	if len(e.BufferShape) != rank {
		return configError(path, "buffer_shape rank", -1, rank, len(e.BufferShape))
	}
	for axis := 0; axis < rank; axis++ {
		chunk, buffer, limit := e.ChunkShape[axis], e.BufferShape[axis], max(full[axis], 1)
		switch {
		case chunk < 1:
			return configError(path, "chunk_shape", axis, ">= 1", chunk)
		case chunk > buffer:
			return configError(path, "buffer_shape", axis, fmt.Sprintf(">= chunk extent %d", chunk), buffer)
		case buffer > limit:
			return configError(path, "buffer_shape", axis, fmt.Sprintf("<= full extent %d", limit), buffer)
		case buffer%chunk != 0:
			return configError(path, "buffer_shape", axis, fmt.Sprintf("multiple of chunk extent %d", chunk), buffer)
		}
	}

	m, err := backend.Lookup(kind, e.CompressionMethod)
	if err != nil {
		return configErrorf(path, "compression_method", err)
	}
	if err := m.CheckOptions(e.CompressionOptions); err != nil {
		return configErrorf(path, "compression_options", err)
	}
	return nil
}

// checkCoverage verifies that cfg has exactly one entry per eligible
// dataset of the walk and that shapes and dtypes did not change since the
// configuration was built.
func checkCoverage(cfg *BackendConfiguration, w *graphWalk) error {
	seen := map[string]bool{}
	for _, d := range w.eligible() {
		seen[d.Path] = true
		e, ok := cfg.entries[d.Path]
		if !ok {
			return configError(d.Path, "coverage", -1, "a configuration entry", "none")
		}
		if e.info.DType != d.Info.DType {
			return configError(d.Path, "dtype", -1, e.info.DType, d.Info.DType)
		}
		if !e.info.equal(d.Info) {
			return configError(d.Path, "shape", -1, e.info.Shape, d.Info.Shape)
		}
	}
	for _, path := range cfg.paths {
		if !seen[path] {
			return configError(path, "coverage", -1, "an inventoried dataset", "orphan entry")
		}
	}
	return nil
}
