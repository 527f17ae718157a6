package nwbchunk

import (
	"fmt"
	"strings"
)

// ConfigurationError reports a structural problem in the document graph or
// an invalid configuration. It is always returned before any write.
type ConfigurationError struct {
	Path string
	// Axis is the offending axis, or -1 when not applicable.
	Axis     int
	Field    string
	Expected any
	Actual   any
	Err      error
}

func (e *ConfigurationError) Error() string {
	var b strings.Builder
	b.WriteString("invalid configuration")
	if e.Path != "" {
		fmt.Fprintf(&b, " for %q", e.Path)
	}
	if e.Field != "" {
		fmt.Fprintf(&b, ": %s", e.Field)
	}
	if e.Axis >= 0 {
		fmt.Fprintf(&b, " axis %d", e.Axis)
	}
	if e.Expected != nil || e.Actual != nil {
		fmt.Fprintf(&b, ": expected %v, got %v", e.Expected, e.Actual)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

func configError(path, field string, axis int, expected, actual any) *ConfigurationError {
	return &ConfigurationError{Path: path, Axis: axis, Field: field, Expected: expected, Actual: actual}
}

func configErrorf(path, field string, err error) *ConfigurationError {
	return &ConfigurationError{Path: path, Axis: -1, Field: field, Err: err}
}

// DatasetInfoError reports that the shape or dtype of a dataset could not
// be determined.
type DatasetInfoError struct {
	Path string
	Err  error
}

func (e *DatasetInfoError) Error() string {
	return fmt.Sprintf("cannot determine shape and dtype of %q: %v", e.Path, e.Err)
}

func (e *DatasetInfoError) Unwrap() error { return e.Err }

// DatasetWriteError reports an I/O failure while writing a dataset, or
// while creating the group or dataset at Path. Offset is the start of the
// failing buffer window, nil if no window was reached. The dataset must be
// rewritten from offset zero.
type DatasetWriteError struct {
	Path   string
	Offset []int
	Err    error
}

func (e *DatasetWriteError) Error() string {
	if e.Offset == nil {
		return fmt.Sprintf("write of %q failed: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("write of %q failed at offset %v: %v", e.Path, e.Offset, e.Err)
}

func (e *DatasetWriteError) Unwrap() error { return e.Err }
