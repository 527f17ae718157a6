package codec

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zlib"
)

// Zlib implements DEFLATE in a zlib wrapper. This is the stream format of
// the HDF5 deflate filter and of the Zarr "zlib" compressor.
type Zlib struct {
	level int
}

// NewZlib creates a zlib codec with a level in 0-9.
func NewZlib(level int) (*Zlib, error) {
	if err := checkLevel("zlib", level, 0, 9); err != nil {
		return nil, err
	}
	return &Zlib{level: level}, nil
}

func (f *Zlib) Name() string { return "zlib" }

// Level returns the configured compression level.
func (f *Zlib) Level() int { return f.level }

func (f *Zlib) Encode(src []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := zlib.NewWriterLevel(&buf, f.level)
	if err != nil {
		return nil, fmt.Errorf("zlib writer: %w", err)
	}
	if _, err := w.Write(src); err != nil {
		return nil, fmt.Errorf("zlib compress: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("zlib compress: %w", err)
	}
	return buf.Bytes(), nil
}

func (f *Zlib) Decode(src []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("zlib reader: %w", err)
	}
	defer r.Close()

	output, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("zlib decompress: %w", err)
	}
	return output, nil
}

// Gzip implements DEFLATE in a gzip wrapper (Zarr "gzip" compressor).
type Gzip struct {
	level int
}

// NewGzip creates a gzip codec with a level in 0-9.
func NewGzip(level int) (*Gzip, error) {
	if err := checkLevel("gzip", level, 0, 9); err != nil {
		return nil, err
	}
	return &Gzip{level: level}, nil
}

func (f *Gzip) Name() string { return "gzip" }

// Level returns the configured compression level.
func (f *Gzip) Level() int { return f.level }

func (f *Gzip) Encode(src []byte) ([]byte, error) {
	var buf bytes.Buffer
	w, err := gzip.NewWriterLevel(&buf, f.level)
	if err != nil {
		return nil, fmt.Errorf("gzip writer: %w", err)
	}
	if _, err := w.Write(src); err != nil {
		return nil, fmt.Errorf("gzip compress: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("gzip compress: %w", err)
	}
	return buf.Bytes(), nil
}

func (f *Gzip) Decode(src []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("gzip reader: %w", err)
	}
	defer r.Close()

	output, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("gzip decompress: %w", err)
	}
	return output, nil
}
