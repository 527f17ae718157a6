package codec

import (
	"fmt"

	"github.com/klauspost/compress/zstd"
)

// zstdDecoder is shared; zstd.Decoder is safe for concurrent DecodeAll.
var zstdDecoder *zstd.Decoder

func init() {
	var err error
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("codec: zstd decoder initialization failed: " + err.Error())
	}
}

// Zstd compresses chunks as standard zstd frames.
type Zstd struct {
	level   int
	encoder *zstd.Encoder
}

// NewZstd creates a zstd codec. level uses the zstd command-line scale
// (1-22) and is mapped to the nearest encoder speed.
func NewZstd(level int) (*Zstd, error) {
	if err := checkLevel("zstd", level, 1, 22); err != nil {
		return nil, err
	}
	encoder, err := zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)),
		zstd.WithEncoderConcurrency(1),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	return &Zstd{level: level, encoder: encoder}, nil
}

func (z *Zstd) Name() string { return "zstd" }

// Level returns the configured compression level.
func (z *Zstd) Level() int { return z.level }

func (z *Zstd) Encode(src []byte) ([]byte, error) {
	return z.encoder.EncodeAll(src, nil), nil
}

func (z *Zstd) Decode(src []byte) ([]byte, error) {
	out, err := zstdDecoder.DecodeAll(src, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decompress: %w", err)
	}
	return out, nil
}
