package imaging

import "unsafe"

// alignedBuffer returns a size-byte slice whose first element sits on an
// align-byte boundary, as O_DIRECT requires. The backing array is
// over-allocated by align bytes; the returned slice is reused for every chunk.
func alignedBuffer(size, align int) []byte {
	if align <= 1 {
		return make([]byte, size)
	}
	buf := make([]byte, size+align)
	off := alignOffset(buf, align)
	return buf[off : off+size : off+size]
}

func alignOffset(b []byte, align int) int {
	addr := uintptr(unsafe.Pointer(unsafe.SliceData(b)))
	rem := int(addr % uintptr(align))
	if rem == 0 {
		return 0
	}
	return align - rem
}

// isAligned reports whether b starts on an align-byte boundary.
func isAligned(b []byte, align int) bool {
	return align <= 1 || alignOffset(b, align) == 0
}

// roundUp rounds n up to the next multiple of block.
func roundUp(n, block int) int {
	if block <= 1 {
		return n
	}
	return (n + block - 1) / block * block
}

// padToBlock zero-fills buf[n:] up to the next block boundary and returns the
// padded length. buf must have room for it.
func padToBlock(buf []byte, n, block int) int {
	padded := roundUp(n, block)
	clear(buf[n:padded])
	return padded
}
