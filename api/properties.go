package api

import (
	"fmt"
	"unsafe"

	"github.com/cwbudde/algo-verse/graph"
	"github.com/cwbudde/algo-verse/property"
	"github.com/cwbudde/algo-verse/status"
)

// withProperty runs fn on the property at slot after checking its type.
func (l *Library) withProperty(node, slot int, typ property.Type, fn func(p *property.Property) error) error {
	return l.withNode(node, func(n *graph.Node) error {
		p, err := n.Property(slot)
		if err != nil {
			return err
		}
		if p.Type() != typ {
			return fmt.Errorf("%w: slot %d holds %v, not %v", status.ErrTypeMismatch, slot, p.Type(), typ)
		}
		return fn(p)
	})
}

func (l *Library) NodeGetPropertyType(node, slot int) (typ property.Type, err error) {
	err = l.withNode(node, func(n *graph.Node) error {
		p, err := n.Property(slot)
		if err != nil {
			return err
		}
		typ = p.Type()
		return nil
	})
	return typ, err
}

func (l *Library) NodeResetProperty(node, slot int) error {
	return l.withNode(node, func(n *graph.Node) error {
		p, err := n.Property(slot)
		if err != nil {
			return err
		}
		return p.Reset()
	})
}

func (l *Library) NodeSetIntProperty(node, slot, v int) error {
	return l.withProperty(node, slot, property.Int, func(p *property.Property) error { return p.SetInt(v) })
}

func (l *Library) NodeGetIntProperty(node, slot int) (v int, err error) {
	err = l.withProperty(node, slot, property.Int, func(p *property.Property) error {
		v = p.Int()
		return nil
	})
	return v, err
}

func (l *Library) NodeSetFloatProperty(node, slot int, v float32) error {
	return l.withProperty(node, slot, property.Float, func(p *property.Property) error { return p.SetFloat(v) })
}

func (l *Library) NodeGetFloatProperty(node, slot int) (v float32, err error) {
	err = l.withProperty(node, slot, property.Float, func(p *property.Property) error {
		v = p.Float()
		return nil
	})
	return v, err
}

func (l *Library) NodeSetDoubleProperty(node, slot int, v float64) error {
	return l.withProperty(node, slot, property.Double, func(p *property.Property) error { return p.SetDouble(v) })
}

func (l *Library) NodeGetDoubleProperty(node, slot int) (v float64, err error) {
	err = l.withProperty(node, slot, property.Double, func(p *property.Property) error {
		v = p.Double()
		return nil
	})
	return v, err
}

func (l *Library) NodeSetStringProperty(node, slot int, v string) error {
	return l.withProperty(node, slot, property.String, func(p *property.Property) error { return p.SetString(v) })
}

func (l *Library) NodeGetStringProperty(node, slot int) (v string, err error) {
	err = l.withProperty(node, slot, property.String, func(p *property.Property) error {
		v = p.Str()
		return nil
	})
	return v, err
}

// NodeReplaceFloatArrayProperty validates v completely before storing a copy.
func (l *Library) NodeReplaceFloatArrayProperty(node, slot int, v []float32) error {
	return l.withProperty(node, slot, property.FloatArray, func(p *property.Property) error { return p.SetFloats(v) })
}

// NodeGetFloatArrayProperty returns a copy of the array.
func (l *Library) NodeGetFloatArrayProperty(node, slot int) (v []float32, err error) {
	err = l.withProperty(node, slot, property.FloatArray, func(p *property.Property) error {
		v = append([]float32(nil), p.Floats()...)
		return nil
	})
	return v, err
}

func (l *Library) NodeReplaceIntArrayProperty(node, slot int, v []int32) error {
	return l.withProperty(node, slot, property.IntArray, func(p *property.Property) error { return p.SetInts(v) })
}

func (l *Library) NodeGetIntArrayProperty(node, slot int) (v []int32, err error) {
	err = l.withProperty(node, slot, property.IntArray, func(p *property.Property) error {
		v = append([]int32(nil), p.Ints()...)
		return nil
	})
	return v, err
}

func (l *Library) NodeGetIntPropertyRange(node, slot int) (lo, hi int, err error) {
	err = l.withProperty(node, slot, property.Int, func(p *property.Property) error {
		min, max := p.Range()
		lo, hi = int(min), int(max)
		return nil
	})
	return lo, hi, err
}

func (l *Library) NodeGetFloatPropertyRange(node, slot int) (lo, hi float32, err error) {
	err = l.withProperty(node, slot, property.Float, func(p *property.Property) error {
		min, max := p.Range()
		lo, hi = float32(min), float32(max)
		return nil
	})
	return lo, hi, err
}

func (l *Library) NodeGetDoublePropertyRange(node, slot int) (lo, hi float64, err error) {
	err = l.withProperty(node, slot, property.Double, func(p *property.Property) error {
		lo, hi = p.Range()
		return nil
	})
	return lo, hi, err
}

// NodeGetArrayPropertyLengthRange works for float and int arrays.
func (l *Library) NodeGetArrayPropertyLengthRange(node, slot int) (lo, hi int, err error) {
	err = l.withNode(node, func(n *graph.Node) error {
		p, err := n.Property(slot)
		if err != nil {
			return err
		}
		if t := p.Type(); t != property.FloatArray && t != property.IntArray {
			return fmt.Errorf("%w: slot %d holds %v", status.ErrTypeMismatch, slot, t)
		}
		lo, hi = p.LengthRange()
		return nil
	})
	return lo, hi, err
}

// NodeGetPropertyIndices lists the node's property slots in ascending order.
// The slice is handed out through the pointer table; release it with
// Free(unsafe.Pointer(&indices[0])).
func (l *Library) NodeGetPropertyIndices(node int) (indices []int32, err error) {
	err = l.withNode(node, func(n *graph.Node) error {
		slots := n.Properties().Slots()
		indices = make([]int32, len(slots))
		for i, s := range slots {
			indices[i] = int32(s)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	l.table.OutgoingInts(indices)
	return indices, nil
}

// NodeGetPropertyName returns a NUL-terminated copy of the property's name,
// to be read with String and released with Free.
func (l *Library) NodeGetPropertyName(node, slot int) (name unsafe.Pointer, err error) {
	var s string
	err = l.withNode(node, func(n *graph.Node) error {
		p, err := n.Property(slot)
		if err != nil {
			return err
		}
		s = p.Name()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return l.table.OutgoingString(s), nil
}
