// Package property provides the typed, range-checked values nodes expose to
// callers. Every successful write bumps a version so nodes can tell, once
// per block, whether a reconfiguration is due.
package property

import (
	"fmt"
	"math"
	"slices"
	"sort"

	"github.com/cwbudde/algo-verse/status"
)

// Type identifies the value held by a Property.
type Type int

const (
	Int Type = iota
	Float
	Double
	String
	FloatArray
	IntArray
)

func (t Type) String() string {
	switch t {
	case Int:
		return "int"
	case Float:
		return "float"
	case Double:
		return "double"
	case String:
		return "string"
	case FloatArray:
		return "float array"
	case IntArray:
		return "int array"
	default:
		return "unknown"
	}
}

// Property is a single named value. It is not safe for concurrent use; the
// owning simulation's lock serializes access.
type Property struct {
	name     string
	typ      Type
	readOnly bool
	version  uint64

	i  int
	f  float32
	d  float64
	s  string
	fa []float32
	ia []int32

	min, max       float64
	minLen, maxLen int

	defI  int
	defF  float32
	defD  float64
	defS  string
	defFA []float32
	defIA []int32
}

func newProperty(name string, typ Type, min, max float64) *Property {
	return &Property{name: name, typ: typ, min: min, max: max, version: 1}
}

// NewInt returns an int property limited to [min, max].
func NewInt(name string, def, min, max int) *Property {
	p := newProperty(name, Int, float64(min), float64(max))
	p.i, p.defI = def, def
	return p
}

// NewFloat returns a float property limited to [min, max].
func NewFloat(name string, def, min, max float32) *Property {
	p := newProperty(name, Float, float64(min), float64(max))
	p.f, p.defF = def, def
	return p
}

// NewDouble returns a double property limited to [min, max].
func NewDouble(name string, def, min, max float64) *Property {
	p := newProperty(name, Double, min, max)
	p.d, p.defD = def, def
	return p
}

// NewString returns an unconstrained string property.
func NewString(name, def string) *Property {
	p := newProperty(name, String, 0, 0)
	p.s, p.defS = def, def
	return p
}

// NewFloatArray returns a float array property whose length must stay in
// [minLen, maxLen]. Elements are unconstrained until SetRange is called.
func NewFloatArray(name string, def []float32, minLen, maxLen int) *Property {
	p := newProperty(name, FloatArray, math.Inf(-1), math.Inf(1))
	p.minLen, p.maxLen = minLen, maxLen
	p.defFA = slices.Clone(def)
	p.fa = slices.Clone(def)
	return p
}

// NewIntArray returns an int array property whose length must stay in
// [minLen, maxLen].
func NewIntArray(name string, def []int32, minLen, maxLen int) *Property {
	p := newProperty(name, IntArray, math.Inf(-1), math.Inf(1))
	p.minLen, p.maxLen = minLen, maxLen
	p.defIA = slices.Clone(def)
	p.ia = slices.Clone(def)
	return p
}

func (p *Property) Name() string   { return p.name }
func (p *Property) Type() Type     { return p.typ }
func (p *Property) ReadOnly() bool { return p.readOnly }

// MarkReadOnly rejects all further external writes.
func (p *Property) MarkReadOnly() { p.readOnly = true }

// Version increases on every successful write.
func (p *Property) Version() uint64 { return p.version }

// ModifiedSince reports whether the property was written after version v was
// observed.
func (p *Property) ModifiedSince(v uint64) bool { return p.version > v }

// Range returns the numeric limits applied to scalar values and array
// elements.
func (p *Property) Range() (min, max float64) { return p.min, p.max }

// SetRange changes the numeric limits. The current value is not re-checked.
func (p *Property) SetRange(min, max float64) { p.min, p.max = min, max }

// LengthRange returns the allowed array lengths.
func (p *Property) LengthRange() (min, max int) { return p.minLen, p.maxLen }

func (p *Property) check(t Type) error {
	if p.typ != t {
		return fmt.Errorf("%w: property %q is %v, not %v", status.ErrTypeMismatch, p.name, p.typ, t)
	}
	if p.readOnly {
		return fmt.Errorf("%w: %q", status.ErrReadOnly, p.name)
	}
	return nil
}

func (p *Property) inRange(v float64) error {
	if math.IsNaN(v) || v < p.min || v > p.max {
		return fmt.Errorf("%w: %q value %g outside [%g, %g]", status.ErrRange, p.name, v, p.min, p.max)
	}
	return nil
}

func (p *Property) lengthOK(n int) error {
	if n < p.minLen || n > p.maxLen {
		return fmt.Errorf("%w: %q length %d outside [%d, %d]", status.ErrRange, p.name, n, p.minLen, p.maxLen)
	}
	return nil
}

func (p *Property) Int() int          { return p.i }
func (p *Property) Float() float32    { return p.f }
func (p *Property) Double() float64   { return p.d }
func (p *Property) Str() string       { return p.s }
func (p *Property) Floats() []float32 { return p.fa }
func (p *Property) Ints() []int32     { return p.ia }

// ArrayLen returns the length of an array property, 0 otherwise.
func (p *Property) ArrayLen() int {
	switch p.typ {
	case FloatArray:
		return len(p.fa)
	case IntArray:
		return len(p.ia)
	default:
		return 0
	}
}

func (p *Property) SetInt(v int) error {
	if err := p.check(Int); err != nil {
		return err
	}
	if err := p.inRange(float64(v)); err != nil {
		return err
	}
	p.i = v
	p.version++
	return nil
}

func (p *Property) SetFloat(v float32) error {
	if err := p.check(Float); err != nil {
		return err
	}
	if err := p.inRange(float64(v)); err != nil {
		return err
	}
	p.f = v
	p.version++
	return nil
}

func (p *Property) SetDouble(v float64) error {
	if err := p.check(Double); err != nil {
		return err
	}
	if err := p.inRange(v); err != nil {
		return err
	}
	p.d = v
	p.version++
	return nil
}

func (p *Property) SetString(v string) error {
	if err := p.check(String); err != nil {
		return err
	}
	p.s = v
	p.version++
	return nil
}

// SetFloats replaces the array with a copy of v after validating its length
// and every element.
func (p *Property) SetFloats(v []float32) error {
	if err := p.check(FloatArray); err != nil {
		return err
	}
	if err := p.lengthOK(len(v)); err != nil {
		return err
	}
	for _, x := range v {
		if err := p.inRange(float64(x)); err != nil {
			return err
		}
	}
	p.fa = append(p.fa[:0], v...)
	p.version++
	return nil
}

// SetInts replaces the array with a copy of v.
func (p *Property) SetInts(v []int32) error {
	if err := p.check(IntArray); err != nil {
		return err
	}
	if err := p.lengthOK(len(v)); err != nil {
		return err
	}
	for _, x := range v {
		if err := p.inRange(float64(x)); err != nil {
			return err
		}
	}
	p.ia = append(p.ia[:0], v...)
	p.version++
	return nil
}

// Reset restores the default value. Read-only properties are left alone.
func (p *Property) Reset() error {
	if p.readOnly {
		return fmt.Errorf("%w: %q", status.ErrReadOnly, p.name)
	}
	p.i = p.defI
	p.f = p.defF
	p.d = p.defD
	p.s = p.defS
	p.fa = append(p.fa[:0], p.defFA...)
	p.ia = append(p.ia[:0], p.defIA...)
	p.version++
	return nil
}

// Set maps integer slots to the properties of one node.
type Set struct {
	props map[int]*Property
}

func NewSet() *Set {
	return &Set{props: make(map[int]*Property)}
}

// Add installs p at slot, replacing any previous property.
func (s *Set) Add(slot int, p *Property) {
	s.props[slot] = p
}

// Get returns the property at slot, or nil.
func (s *Set) Get(slot int) *Property {
	return s.props[slot]
}

// Lookup is Get with a status.ErrRange error for unknown slots.
func (s *Set) Lookup(slot int) (*Property, error) {
	p, ok := s.props[slot]
	if !ok {
		return nil, fmt.Errorf("%w: no property at slot %d", status.ErrRange, slot)
	}
	return p, nil
}

// Slots returns every slot in ascending order.
func (s *Set) Slots() []int {
	out := make([]int, 0, len(s.props))
	for k := range s.props {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}
