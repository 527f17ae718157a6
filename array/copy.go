package array

// CopyND copies an n-dimensional box of copyShape elements from src to
// dst. Strides are in elements, offsets are per-dimension element
// coordinates inside each buffer.
func CopyND(
	dst []byte, dstStrides, dstOffset []int,
	src []byte, srcStrides, srcOffset []int,
	copyShape []int, itemSize int,
) {
	if len(copyShape) == 0 {
		// 0D scalar array: exactly one element
		copy(dst[:itemSize], src[:itemSize])
		return
	}
	for _, n := range copyShape {
		if n == 0 {
			return
		}
	}

	startSrcIdx := 0
	startDstIdx := 0
	for i := range copyShape {
		startSrcIdx += srcOffset[i] * srcStrides[i]
		startDstIdx += dstOffset[i] * dstStrides[i]
	}

	last := len(copyShape) - 1
	var iterate func(dim int, currentSrcIdx, currentDstIdx int)
	iterate = func(dim int, currentSrcIdx, currentDstIdx int) {
		// Bulk copy for the innermost contiguous dimension
		if dim == last {
			n := copyShape[dim]
			if srcStrides[dim] == 1 && dstStrides[dim] == 1 {
				byteLen := n * itemSize
				srcStart := currentSrcIdx * itemSize
				dstStart := currentDstIdx * itemSize
				copy(dst[dstStart:dstStart+byteLen], src[srcStart:srcStart+byteLen])
				return
			}
			for i := 0; i < n; i++ {
				srcStart := (currentSrcIdx + i*srcStrides[dim]) * itemSize
				dstStart := (currentDstIdx + i*dstStrides[dim]) * itemSize
				copy(dst[dstStart:dstStart+itemSize], src[srcStart:srcStart+itemSize])
			}
			return
		}

		for i := 0; i < copyShape[dim]; i++ {
			iterate(dim+1, currentSrcIdx+i*srcStrides[dim], currentDstIdx+i*dstStrides[dim])
		}
	}
	iterate(0, startSrcIdx, startDstIdx)
}

// Extract copies the region start/count of a C-order buffer of shape
// into dst, which is laid out densely with shape count.
func Extract(dst []byte, src []byte, shape, start, count []int, itemSize int) {
	CopyND(dst, Strides(count), make([]int, len(count)), src, Strides(shape), start, count, itemSize)
}

// Insert is the inverse of Extract: it writes a dense region into a
// C-order buffer of shape at start.
func Insert(dst []byte, shape, start []int, src []byte, count []int, itemSize int) {
	CopyND(dst, Strides(shape), start, src, Strides(count), make([]int, len(count)), count, itemSize)
}
