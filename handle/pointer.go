package handle

import (
	"fmt"
	"unsafe"

	"github.com/cwbudde/algo-verse/status"
)

// OutgoingPointer records owner as the value keeping p alive until Free is
// called. An address is registered at most once; registering it again keeps
// the existing owner.
func (t *Table) OutgoingPointer(p unsafe.Pointer, owner any) unsafe.Pointer {
	if p == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.pointers[p]; !ok {
		t.pointers[p] = owner
	}
	return p
}

// OutgoingFloats hands out buf. Empty slices yield nil.
func (t *Table) OutgoingFloats(buf []float32) unsafe.Pointer {
	if len(buf) == 0 {
		return nil
	}
	return t.OutgoingPointer(unsafe.Pointer(&buf[0]), buf)
}

// OutgoingInts hands out buf. Empty slices yield nil.
func (t *Table) OutgoingInts(buf []int32) unsafe.Pointer {
	if len(buf) == 0 {
		return nil
	}
	return t.OutgoingPointer(unsafe.Pointer(&buf[0]), buf)
}

// OutgoingString hands out a NUL-terminated copy of s.
func (t *Table) OutgoingString(s string) unsafe.Pointer {
	buf := make([]byte, len(s)+1)
	copy(buf, s)
	return t.OutgoingPointer(unsafe.Pointer(&buf[0]), buf)
}

// ResolvePointer returns the owner registered for p.
func ResolvePointer[T any](t *Table, p unsafe.Pointer) (T, error) {
	var zero T
	t.mu.Lock()
	owner, ok := t.pointers[p]
	t.mu.Unlock()
	if !ok {
		return zero, fmt.Errorf("%w: %p", status.ErrInvalidPointer, p)
	}
	v, ok := owner.(T)
	if !ok {
		return zero, fmt.Errorf("%w: pointer %p owned by %T", status.ErrTypeMismatch, p, owner)
	}
	return v, nil
}

// Free releases a pointer previously handed out.
func (t *Table) Free(p unsafe.Pointer) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.pointers[p]; !ok {
		return fmt.Errorf("%w: %p", status.ErrInvalidPointer, p)
	}
	delete(t.pointers, p)
	return nil
}

// PointerCount returns the number of outstanding pointers.
func (t *Table) PointerCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pointers)
}
