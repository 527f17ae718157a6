package hdf5

import (
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("hdf5: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("hdf5: CBOR decoder initialization failed: " + err.Error())
	}
}

type groupRecord struct {
	Attrs map[string]any `cbor:"attrs,omitempty"`
}

// FilterInfo is one stage of a dataset's filter pipeline, identified the
// way HDF5 identifies filters: a registered ID plus client data values.
type FilterInfo struct {
	ID         uint16   `cbor:"id"`
	Name       string   `cbor:"name"`
	ClientData []uint32 `cbor:"cd,omitempty"`
}

type datasetRecord struct {
	Shape   []int          `cbor:"shape"`
	Chunks  []int          `cbor:"chunks"`
	DType   string         `cbor:"dtype"`
	Filters []FilterInfo   `cbor:"filters,omitempty"`
	Attrs   map[string]any `cbor:"attrs,omitempty"`
}

type chunkRecord struct {
	// Digest is the keyed BLAKE3 hash of the decoded chunk.
	Digest []byte `cbor:"digest"`
	Data   []byte `cbor:"data"`
}
