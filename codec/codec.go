// Package codec implements the byte-level transforms applied to chunks
// before they are stored: general-purpose compressors (zstd, zlib, gzip,
// lz4) and the pre/post filters of chunked-group pipelines (byte shuffle,
// Fletcher-32 checksum).
//
// Codecs are stateless with respect to chunks and safe for concurrent use.
package codec

import "fmt"

// Codec transforms one chunk at a time.
type Codec interface {
	// Name returns the identifier used in metadata ("zstd", "shuffle").
	Name() string

	// Encode transforms raw chunk bytes to their stored form.
	Encode(src []byte) ([]byte, error)

	// Decode reverses Encode.
	Decode(src []byte) ([]byte, error)
}

// None passes data through unchanged.
type None struct{}

func (None) Name() string                      { return "none" }
func (None) Encode(src []byte) ([]byte, error) { return src, nil }
func (None) Decode(src []byte) ([]byte, error) { return src, nil }

func checkLevel(name string, level, lo, hi int) error {
	if level < lo || level > hi {
		return fmt.Errorf("%s: level %d out of range [%d, %d]", name, level, lo, hi)
	}
	return nil
}
