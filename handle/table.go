// Package handle lets callers outside the engine hold opaque integer
// references to engine objects.
//
// A Table maps handles to objects that embed Base and raw addresses to the
// values that own them. One mutex serializes both maps; every operation under
// it is a constant-time map update, so the lock is never held across audio
// rendering.
package handle

import (
	"fmt"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/cwbudde/algo-verse/status"
)

// Kind tags the concrete category of an external object.
type Kind int

// Base is embedded by every object that can cross the handle boundary.
type Base struct {
	handle   int
	kind     Kind
	refcount atomic.Int32

	// guarded by the owning table's lock
	external    bool
	firstAccess bool
}

// Handle returns the handle assigned by Table.Bind, or 0 if unbound.
func (b *Base) Handle() int { return b.handle }

// Kind returns the tag given to Table.Bind.
func (b *Base) Kind() Kind { return b.kind }

func (b *Base) handleBase() *Base { return b }

// Object is implemented by any type embedding Base.
type Object interface {
	handleBase() *Base
}

// Releaser is implemented by objects that must tear down engine state when
// their last external reference goes away. Release runs without the table
// lock held.
type Releaser interface {
	Release()
}

// Table is the registry of external handles and pointers.
type Table struct {
	next atomic.Int64

	mu       sync.Mutex
	closed   bool
	handles  map[int]Object
	pointers map[unsafe.Pointer]any
}

// NewTable returns an empty table. Handles start at 1; 0 means "no object".
func NewTable() *Table {
	return &Table{
		handles:  make(map[int]Object),
		pointers: make(map[unsafe.Pointer]any),
	}
}

// Bind assigns a fresh handle and kind to b. It is called once from the
// object's constructor.
func (t *Table) Bind(b *Base, kind Kind) {
	b.handle = int(t.next.Add(1))
	b.kind = kind
	b.firstAccess = true
}

// Close drops every registered handle and pointer. Objects implementing
// Releaser are released.
func (t *Table) Close() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	t.closed = true
	dropped := make([]Object, 0, len(t.handles))
	for h, obj := range t.handles {
		obj.handleBase().external = false
		dropped = append(dropped, obj)
		delete(t.handles, h)
	}
	clear(t.pointers)
	t.mu.Unlock()

	for _, obj := range dropped {
		if r, ok := obj.(Releaser); ok {
			r.Release()
		}
	}
}

// Outgoing registers obj for external use and returns its handle. A nil
// object yields 0. Registering the same object again returns the same
// handle.
func (t *Table) Outgoing(obj Object) int {
	if obj == nil {
		return 0
	}
	b := obj.handleBase()
	if b.handle == 0 {
		t.Bind(b, b.kind)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if !b.external && !t.closed {
		b.external = true
		t.handles[b.handle] = obj
	}
	return b.handle
}

func (t *Table) lookup(h int) (Object, error) {
	obj, ok := t.handles[h]
	if !ok {
		return nil, fmt.Errorf("%w: %d", status.ErrInvalidHandle, h)
	}
	return obj, nil
}

// IncRef increments the external reference count of h.
func (t *Table) IncRef(h int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	obj, err := t.lookup(h)
	if err != nil {
		return err
	}
	obj.handleBase().refcount.Add(1)
	return nil
}

// DecRef decrements the external reference count of h. When the count
// reaches zero the handle is removed before the lock is released, so no
// other goroutine can resolve it afterwards. Decrementing a count that is
// already zero fails with status.ErrRange.
func (t *Table) DecRef(h int) error {
	t.mu.Lock()
	obj, err := t.lookup(h)
	if err != nil {
		t.mu.Unlock()
		return err
	}
	b := obj.handleBase()
	if b.refcount.Load() <= 0 {
		t.mu.Unlock()
		return fmt.Errorf("%w: handle %d has no references to release", status.ErrRange, h)
	}
	if b.refcount.Add(-1) > 0 {
		t.mu.Unlock()
		return nil
	}
	delete(t.handles, h)
	b.external = false
	t.mu.Unlock()

	if r, ok := obj.(Releaser); ok {
		r.Release()
	}
	return nil
}

// Detach removes obj from the table unless it still holds external
// references, and reports whether it is now unreferenced. An object handed
// out again without IncRef counts as unreferenced.
func (t *Table) Detach(obj Object) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	b := obj.handleBase()
	if !b.external {
		return true
	}
	if b.refcount.Load() > 0 {
		return false
	}
	delete(t.handles, b.handle)
	b.external = false
	return true
}

// RefCount reports the external reference count of h.
func (t *Table) RefCount(h int) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	obj, err := t.lookup(h)
	if err != nil {
		return 0, err
	}
	return int(obj.handleBase().refcount.Load()), nil
}

// KindOf reports the kind tag of h.
func (t *Table) KindOf(h int) (Kind, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	obj, err := t.lookup(h)
	if err != nil {
		return 0, err
	}
	return obj.handleBase().kind, nil
}

// FirstAccess reports whether h is being accessed externally for the first
// time and clears the flag.
func (t *Table) FirstAccess(h int) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	obj, err := t.lookup(h)
	if err != nil {
		return false, err
	}
	b := obj.handleBase()
	first := b.firstAccess
	b.firstAccess = false
	return first, nil
}

// Len returns the number of live handles.
func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.handles)
}

// Resolve looks h up and converts it to T. Handle 0 resolves to the zero T
// when allowNull is set.
func Resolve[T any](t *Table, h int, allowNull bool) (T, error) {
	var zero T
	if allowNull && h == 0 {
		return zero, nil
	}
	t.mu.Lock()
	obj, err := t.lookup(h)
	t.mu.Unlock()
	if err != nil {
		return zero, err
	}
	v, ok := obj.(T)
	if !ok {
		return zero, fmt.Errorf("%w: handle %d has unexpected type %T", status.ErrTypeMismatch, h, obj)
	}
	return v, nil
}
