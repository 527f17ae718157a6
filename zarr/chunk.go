package zarr

import (
	"strconv"
	"strings"
)

// ChunkKey generates the key for a chunk given its indices and a separator.
// Example: indices=[1, 4], separator="." -> "1.4"
// For 0D arrays (empty indices), it returns "0" per the Zarr spec.
func ChunkKey(indices []int, separator string) string {
	if len(indices) == 0 {
		return "0"
	}

	if len(indices) == 1 {
		return strconv.Itoa(indices[0])
	}

	var sb strings.Builder
	for i, idx := range indices {
		if i > 0 {
			sb.WriteString(separator)
		}
		sb.WriteString(strconv.Itoa(idx))
	}
	return sb.String()
}

// objectKey joins a node path and a key inside it.
func objectKey(path, name string) string {
	if path == "" {
		return name
	}
	return path + "/" + name
}
