package dsp

import (
	"fmt"
	"math/bits"
	"sync"
	"unsafe"

	"github.com/cwbudde/algo-verse/status"
)

// Alignment is the byte alignment of the first element of every slice
// returned by AllocFloatArray.
const Alignment = 32

const (
	floatSize    = int(unsafe.Sizeof(float32(0)))
	maxPoolClass = 24
	alignPadding = Alignment / floatSize
)

var floatPools [maxPoolClass + 1]sync.Pool

func sizeClass(n int) int {
	return bits.Len(uint(n - 1))
}

// AllocFloatArray returns n zeroed float32 values whose first element is
// Alignment-aligned. The capacity is rounded up to a power of two so the
// buffer can be recycled by FreeFloatArray.
func AllocFloatArray(n int) ([]float32, error) {
	if n < 1 {
		return nil, fmt.Errorf("%w: cannot allocate %d floats", status.ErrMemory, n)
	}
	class := sizeClass(n)
	if class <= maxPoolClass {
		if p, ok := floatPools[class].Get().(*[]float32); ok {
			buf := (*p)[:n]
			clear(buf)
			return buf, nil
		}
	}
	size := 1 << class
	raw := make([]float32, size+alignPadding)
	off := 0
	for uintptr(unsafe.Pointer(&raw[off]))%Alignment != 0 {
		off++
	}
	return raw[off : off+n : off+size], nil
}

// FreeFloatArray hands buf back for reuse. Slices that did not come from
// AllocFloatArray are left to the garbage collector.
func FreeFloatArray(buf []float32) {
	c := cap(buf)
	if c == 0 || c&(c-1) != 0 {
		return
	}
	full := buf[:c]
	if uintptr(unsafe.Pointer(&full[0]))%Alignment != 0 {
		return
	}
	class := sizeClass(c)
	if class > maxPoolClass {
		return
	}
	floatPools[class].Put(&full)
}

// IsAligned reports whether the first element of buf is Alignment-aligned.
func IsAligned(buf []float32) bool {
	if cap(buf) == 0 {
		return false
	}
	return uintptr(unsafe.Pointer(&buf[:1][0]))%Alignment == 0
}
