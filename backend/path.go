package backend

import "strings"

// CleanPath normalizes a dataset or group path: no leading or trailing
// slash, no empty components. The root is "".
func CleanPath(path string) string {
	return strings.Join(SplitPath(path), "/")
}

// SplitPath splits a path into its components.
//
// Examples:
//   - "" -> []string{}
//   - "/acquisition/" -> []string{"acquisition"}
//   - "acquisition//ts/data" -> []string{"acquisition", "ts", "data"}
func SplitPath(path string) []string {
	parts := strings.Split(path, "/")
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ParentPath returns the path of the enclosing group.
func ParentPath(path string) string {
	parts := SplitPath(path)
	if len(parts) <= 1 {
		return ""
	}
	return strings.Join(parts[:len(parts)-1], "/")
}

// JoinPath joins path components, skipping empty ones.
func JoinPath(elem ...string) string {
	return CleanPath(strings.Join(elem, "/"))
}

// Depth returns the number of components of a path.
func Depth(path string) int {
	return len(SplitPath(path))
}
