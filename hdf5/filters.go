package hdf5

import (
	"fmt"

	"github.com/TuSKan/nwbchunk/backend"
	"github.com/TuSKan/nwbchunk/codec"
)

// Registered HDF5 filter identifiers.
const (
	FilterDeflate    uint16 = 1
	FilterShuffle    uint16 = 2
	FilterFletcher32 uint16 = 3
	FilterLZ4        uint16 = 32004
	FilterZstd       uint16 = 32015
)

type filterOptions struct {
	Level      int  `mapstructure:"level"`
	Shuffle    bool `mapstructure:"shuffle"`
	Fletcher32 bool `mapstructure:"fletcher32"`
}

// buildFilters resolves a compression selection into the stored filter
// list: [shuffle] -> compressor -> [fletcher32].
func buildFilters(c backend.Compression, itemSize int) ([]FilterInfo, error) {
	var opts filterOptions
	if err := backend.DecodeOptions(backend.KindHDF5, c, &opts); err != nil {
		return nil, err
	}
	var filters []FilterInfo
	if opts.Shuffle {
		filters = append(filters, FilterInfo{ID: FilterShuffle, Name: "shuffle", ClientData: []uint32{uint32(itemSize)}})
	}
	switch c.Method {
	case "none":
	case "gzip":
		filters = append(filters, FilterInfo{ID: FilterDeflate, Name: "deflate", ClientData: []uint32{uint32(opts.Level)}})
	case "lz4":
		filters = append(filters, FilterInfo{ID: FilterLZ4, Name: "lz4"})
	case "zstd":
		filters = append(filters, FilterInfo{ID: FilterZstd, Name: "zstd", ClientData: []uint32{uint32(opts.Level)}})
	default:
		return nil, fmt.Errorf("%w: %q", backend.ErrUnknownMethod, c.Method)
	}
	if opts.Fletcher32 {
		filters = append(filters, FilterInfo{ID: FilterFletcher32, Name: "fletcher32"})
	}
	return filters, nil
}

func clientValue(f FilterInfo, def int) int {
	if len(f.ClientData) == 0 {
		return def
	}
	return int(f.ClientData[0])
}

// newPipeline instantiates the codecs of a stored filter list.
func newPipeline(filters []FilterInfo) (codec.Pipeline, error) {
	pipeline := make(codec.Pipeline, 0, len(filters))
	for _, f := range filters {
		var (
			c   codec.Codec
			err error
		)
		switch f.ID {
		case FilterShuffle:
			c = codec.NewShuffle(clientValue(f, 1))
		case FilterDeflate:
			c, err = codec.NewZlib(clientValue(f, 4))
		case FilterLZ4:
			c, err = codec.NewLZ4(1)
		case FilterZstd:
			c, err = codec.NewZstd(clientValue(f, 3))
		case FilterFletcher32:
			c = codec.Fletcher32Filter{}
		default:
			return nil, fmt.Errorf("unsupported filter %d (%s)", f.ID, f.Name)
		}
		if err != nil {
			return nil, fmt.Errorf("filter %s: %w", f.Name, err)
		}
		pipeline = append(pipeline, c)
	}
	return pipeline, nil
}

// compressionOf reports a stored filter list as a registry selection.
// Switches are listed only when enabled.
func compressionOf(filters []FilterInfo) backend.Compression {
	c := backend.Compression{Method: "none", Options: map[string]any{}}
	for _, f := range filters {
		switch f.ID {
		case FilterShuffle:
			c.Options["shuffle"] = true
		case FilterFletcher32:
			c.Options["fletcher32"] = true
		case FilterDeflate:
			c.Method = "gzip"
			c.Options["level"] = clientValue(f, 4)
		case FilterLZ4:
			c.Method = "lz4"
		case FilterZstd:
			c.Method = "zstd"
			c.Options["level"] = clientValue(f, 3)
		}
	}
	return c
}
