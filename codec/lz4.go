package codec

import (
	"encoding/binary"
	"fmt"

	"github.com/pierrec/lz4/v4"
)

// LZ4 compresses chunks as a single LZ4 block prefixed with the
// uncompressed size as a little-endian uint32 (the numcodecs layout).
type LZ4 struct {
	acceleration int
}

// NewLZ4 creates an lz4 codec. acceleration is recorded in metadata for
// compatibility; the block compressor always runs at its fast setting.
func NewLZ4(acceleration int) (*LZ4, error) {
	if acceleration < 1 {
		return nil, fmt.Errorf("lz4: acceleration %d must be positive", acceleration)
	}
	return &LZ4{acceleration: acceleration}, nil
}

func (f *LZ4) Name() string { return "lz4" }

// Acceleration returns the configured acceleration.
func (f *LZ4) Acceleration() int { return f.acceleration }

func (f *LZ4) Encode(src []byte) ([]byte, error) {
	out := make([]byte, 4+lz4.CompressBlockBound(len(src)))
	binary.LittleEndian.PutUint32(out, uint32(len(src)))

	written, err := lz4.CompressBlock(src, out[4:], nil)
	if err != nil {
		return nil, fmt.Errorf("lz4 compress: %w", err)
	}
	// CompressBlock returns 0 for incompressible input; a literal-only
	// block is still a valid LZ4 block.
	if written == 0 {
		return appendLiteralBlock(out[:4], src), nil
	}
	return out[:4+written], nil
}

func (f *LZ4) Decode(src []byte) ([]byte, error) {
	if len(src) < 4 {
		return nil, fmt.Errorf("lz4 decompress: input too short for size header")
	}
	size := int(binary.LittleEndian.Uint32(src))
	out := make([]byte, size)
	if size == 0 {
		return out, nil
	}
	read, err := lz4.UncompressBlock(src[4:], out)
	if err != nil {
		return nil, fmt.Errorf("lz4 decompress: %w", err)
	}
	if read != size {
		return nil, fmt.Errorf("lz4 decompress: got %d bytes, expected %d", read, size)
	}
	return out, nil
}

// appendLiteralBlock encodes src as one LZ4 sequence with no match.
func appendLiteralBlock(dst, src []byte) []byte {
	n := len(src)
	if n < 15 {
		dst = append(dst, byte(n<<4))
	} else {
		dst = append(dst, 0xF0)
		rest := n - 15
		for rest >= 255 {
			dst = append(dst, 255)
			rest -= 255
		}
		dst = append(dst, byte(rest))
	}
	return append(dst, src...)
}
