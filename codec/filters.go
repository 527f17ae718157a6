package codec

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ErrChecksum is returned when a stored checksum does not match the data.
var ErrChecksum = errors.New("checksum mismatch")

// Shuffle implements the byte shuffle filter.
// Encoded data is organized as: [all byte 0s][all byte 1s]...[all byte N-1s],
// which groups bytes of similar significance before compression.
type Shuffle struct {
	elemSize int
}

// NewShuffle creates a shuffle filter for elements of elemSize bytes.
func NewShuffle(elemSize int) *Shuffle {
	if elemSize < 1 {
		elemSize = 1
	}
	return &Shuffle{elemSize: elemSize}
}

func (f *Shuffle) Name() string { return "shuffle" }

// ElementSize returns the element size the filter groups by.
func (f *Shuffle) ElementSize() int { return f.elemSize }

func (f *Shuffle) Encode(src []byte) ([]byte, error) {
	numElems := len(src) / f.elemSize
	if f.elemSize <= 1 || numElems == 0 {
		return src, nil
	}
	out := make([]byte, len(src))
	for i := 0; i < numElems; i++ {
		for j := 0; j < f.elemSize; j++ {
			out[j*numElems+i] = src[i*f.elemSize+j]
		}
	}
	// Trailing bytes that do not form a whole element stay in place.
	copy(out[numElems*f.elemSize:], src[numElems*f.elemSize:])
	return out, nil
}

func (f *Shuffle) Decode(src []byte) ([]byte, error) {
	numElems := len(src) / f.elemSize
	if f.elemSize <= 1 || numElems == 0 {
		return src, nil
	}
	out := make([]byte, len(src))
	for i := 0; i < numElems; i++ {
		for j := 0; j < f.elemSize; j++ {
			out[i*f.elemSize+j] = src[j*numElems+i]
		}
	}
	copy(out[numElems*f.elemSize:], src[numElems*f.elemSize:])
	return out, nil
}

// Fletcher32Filter appends a Fletcher-32 checksum on encode and verifies
// and strips it on decode.
type Fletcher32Filter struct{}

func (Fletcher32Filter) Name() string { return "fletcher32" }

func (Fletcher32Filter) Encode(src []byte) ([]byte, error) {
	out := make([]byte, len(src)+4)
	copy(out, src)
	binary.LittleEndian.PutUint32(out[len(src):], Fletcher32(src))
	return out, nil
}

func (Fletcher32Filter) Decode(src []byte) ([]byte, error) {
	if len(src) < 4 {
		return nil, fmt.Errorf("fletcher32: input too short for checksum")
	}
	data := src[:len(src)-4]
	stored := binary.LittleEndian.Uint32(src[len(src)-4:])
	if computed := Fletcher32(data); stored != computed {
		return nil, fmt.Errorf("fletcher32: %w (stored=0x%08x, computed=0x%08x)", ErrChecksum, stored, computed)
	}
	return data, nil
}

// Fletcher32 computes the Fletcher-32 checksum over little-endian 16-bit
// words. An odd trailing byte is padded with zero.
func Fletcher32(data []byte) uint32 {
	var sum1, sum2 uint32

	length := len(data)
	i := 0
	for ; i+1 < length; i += 2 {
		word := uint32(data[i]) | uint32(data[i+1])<<8
		sum1 = (sum1 + word) % 65535
		sum2 = (sum2 + sum1) % 65535
	}

	if i < length {
		word := uint32(data[i])
		sum1 = (sum1 + word) % 65535
		sum2 = (sum2 + sum1) % 65535
	}

	return (sum2 << 16) | sum1
}

// Pipeline applies codecs in order on encode and in reverse on decode.
type Pipeline []Codec

func (p Pipeline) Encode(src []byte) ([]byte, error) {
	data := src
	for _, c := range p {
		var err error
		data, err = c.Encode(data)
		if err != nil {
			return nil, fmt.Errorf("%s encode: %w", c.Name(), err)
		}
	}
	return data, nil
}

func (p Pipeline) Decode(src []byte) ([]byte, error) {
	data := src
	for i := len(p) - 1; i >= 0; i-- {
		var err error
		data, err = p[i].Decode(data)
		if err != nil {
			return nil, fmt.Errorf("%s decode: %w", p[i].Name(), err)
		}
	}
	return data, nil
}
