package zarr

import "testing"

func TestChunkKey(t *testing.T) {
	tests := []struct {
		indices   []int
		separator string
		expected  string
	}{
		{[]int{1, 4}, ".", "1.4"},
		{[]int{0, 0, 0}, ".", "0.0.0"},
		{[]int{10}, ".", "10"},
		{[]int{1, 2}, "/", "1/2"}, // Test different separator
		{[]int{}, ".", "0"},
	}

	for _, tt := range tests {
		got := ChunkKey(tt.indices, tt.separator)
		if got != tt.expected {
			t.Errorf("ChunkKey(%v, %q) = %q, want %q", tt.indices, tt.separator, got, tt.expected)
		}
	}
}

func TestObjectKey(t *testing.T) {
	if got := objectKey("", ".zgroup"); got != ".zgroup" {
		t.Errorf("objectKey at root = %q", got)
	}
	if got := objectKey("acquisition/ts", "0.1"); got != "acquisition/ts/0.1" {
		t.Errorf("objectKey nested = %q", got)
	}
}
