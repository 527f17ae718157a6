package hdf5

import "encoding/binary"

// Key namespace
//
// Data Type      Prefix   Key Format                          Value
// ====================================================================
// Group          "g/"     g/<path>                            groupRecord (CBOR)
// Dataset        "d/"     d/<path>                            datasetRecord (CBOR)
// Chunk          "c/"     c/<path>\x00<coord>...              chunkRecord (CBOR)
//
// The root group has the empty path, so its key is "g/". Chunk coordinates
// are big-endian uint64s so a prefix scan over c/<path>\x00 visits chunks in
// C order. Paths never contain NUL.
const (
	prefixGroup   = "g/"
	prefixDataset = "d/"
	prefixChunk   = "c/"
)

func keyGroup(path string) []byte   { return []byte(prefixGroup + path) }
func keyDataset(path string) []byte { return []byte(prefixDataset + path) }

func keyChunkPrefix(path string) []byte {
	return append([]byte(prefixChunk+path), 0)
}

func keyChunk(path string, coords []int) []byte {
	key := keyChunkPrefix(path)
	for _, c := range coords {
		key = binary.BigEndian.AppendUint64(key, uint64(c))
	}
	return key
}
