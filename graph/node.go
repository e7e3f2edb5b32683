package graph

import (
	"fmt"

	"github.com/cwbudde/algo-verse/handle"
	"github.com/cwbudde/algo-verse/property"
	"github.com/cwbudde/algo-verse/status"
)

// Properties every node carries. Node types use non-negative slots.
const (
	PropSuspended = -1
	PropMul       = -2
	PropAdd       = -3
)

// Interface is implemented by every node type through an embedded *Node.
type Interface interface {
	handle.Object
	GraphNode() *Node
}

// Processor is implemented by node types that produce signal. Process reads
// Inputs and writes Outputs for BlockSize samples. Node types without it
// output silence.
type Processor interface {
	Process()
}

// StateResetter is implemented by node types with internal history.
type StateResetter interface {
	ResetState()
}

type connection struct {
	parent *Node
	output int
}

// Node is one unit of the render graph. Input slots refer to their parents
// without owning them; a dead, suspended or shrunk parent reads as silence.
type Node struct {
	handle.Base

	sim   *Simulation
	owner Interface
	props *property.Set
	seen  map[int]uint64

	inputs    []connection
	inputBufs [][]float32
	outputs   [][]float32

	blockSize  int
	processing bool
	dead       bool
	orphaned   bool
}

// NewNode allocates a node with the given slot counts. The caller finishes
// construction with Attach.
func NewNode(sim *Simulation, kind handle.Kind, inputs, outputs int) (*Node, error) {
	if inputs < 0 || outputs < 0 {
		return nil, fmt.Errorf("%w: %d inputs, %d outputs", status.ErrRange, inputs, outputs)
	}
	bufs, err := allocBuffers(outputs, sim.blockSize)
	if err != nil {
		return nil, err
	}
	n := &Node{
		sim:       sim,
		props:     property.NewSet(),
		seen:      make(map[int]uint64),
		inputs:    make([]connection, inputs),
		inputBufs: make([][]float32, inputs),
		outputs:   bufs,
	}
	n.props.Add(PropSuspended, property.NewInt("suspended", 0, 0, 1))
	n.props.Add(PropMul, property.NewFloat("mul", 1, -1e9, 1e9))
	n.props.Add(PropAdd, property.NewFloat("add", 0, -1e9, 1e9))
	sim.table.Bind(&n.Base, kind)
	return n, nil
}

// Attach registers owner, the node type embedding n, with the simulation.
func (n *Node) Attach(owner Interface) {
	n.owner = owner
	n.sim.associate(n)
}

func (n *Node) GraphNode() *Node { return n }

// Owner returns the node type wrapping n.
func (n *Node) Owner() Interface { return n.owner }

func (n *Node) Simulation() *Simulation { return n.sim }

// Properties returns the node's property set.
func (n *Node) Properties() *property.Set { return n.props }

// Property looks up one slot.
func (n *Node) Property(slot int) (*property.Property, error) {
	return n.props.Lookup(slot)
}

// PropertiesModified reports whether any of slots changed since the last call
// that named them, and marks them all as seen.
func (n *Node) PropertiesModified(slots ...int) bool {
	changed := false
	for _, slot := range slots {
		p := n.props.Get(slot)
		if p == nil {
			continue
		}
		if p.ModifiedSince(n.seen[slot]) {
			changed = true
		}
		n.seen[slot] = p.Version()
	}
	return changed
}

func (n *Node) InputCount() int  { return len(n.inputs) }
func (n *Node) OutputCount() int { return len(n.outputs) }

// BlockSize is the block size captured for the block being processed.
func (n *Node) BlockSize() int { return n.blockSize }

// Inputs returns the buffers resolved for the current block. They must not
// be written.
func (n *Node) Inputs() [][]float32 { return n.inputBufs }

// Outputs returns the node's output buffers.
func (n *Node) Outputs() [][]float32 { return n.outputs }

// Processing reports whether the node is inside a block.
func (n *Node) Processing() bool { return n.processing }

// Dead reports whether the node has been destroyed.
func (n *Node) Dead() bool { return n.dead }

func (n *Node) Suspended() bool {
	return n.props.Get(PropSuspended).Int() != 0
}

func (n *Node) Suspend()   { _ = n.props.Get(PropSuspended).SetInt(1) }
func (n *Node) Unsuspend() { _ = n.props.Get(PropSuspended).SetInt(0) }

// SetParent binds input slot input to output slot output of parent.
// Connections that would form a cycle between nodes are rejected.
func (n *Node) SetParent(input int, parent Interface, output int) error {
	if parent == nil {
		return n.ClearParent(input)
	}
	p := parent.GraphNode()
	if p.sim != n.sim {
		return fmt.Errorf("%w: nodes belong to different simulations", status.ErrRange)
	}
	if input < 0 || input >= len(n.inputs) {
		return fmt.Errorf("%w: input %d of %d", status.ErrRange, input, len(n.inputs))
	}
	if p.dead || n.dead {
		return fmt.Errorf("%w: connection to a destroyed node", status.ErrInvalidHandle)
	}
	if output < 0 || output >= len(p.outputs) {
		return fmt.Errorf("%w: output %d of %d", status.ErrRange, output, len(p.outputs))
	}
	if p == n || p.dependsOn(n) {
		return fmt.Errorf("%w: connecting node %d to node %d would create a cycle", status.ErrRange, p.Handle(), n.Handle())
	}
	n.inputs[input] = connection{parent: p, output: output}
	n.sim.orderDirty = true
	return nil
}

// ClearParent disconnects input slot input.
func (n *Node) ClearParent(input int) error {
	if input < 0 || input >= len(n.inputs) {
		return fmt.Errorf("%w: input %d of %d", status.ErrRange, input, len(n.inputs))
	}
	n.inputs[input] = connection{}
	n.sim.orderDirty = true
	return nil
}

// Parent returns the node bound to input slot input and its output index.
// An unbound slot yields nil and 0.
func (n *Node) Parent(input int) (Interface, int, error) {
	if input < 0 || input >= len(n.inputs) {
		return nil, 0, fmt.Errorf("%w: input %d of %d", status.ErrRange, input, len(n.inputs))
	}
	c := n.inputs[input]
	if c.parent == nil || c.parent.dead || c.output >= len(c.parent.outputs) {
		return nil, 0, nil
	}
	return c.parent.owner, c.output, nil
}

// dependsOn reports whether target feeds n, directly or through ancestors.
func (n *Node) dependsOn(target *Node) bool {
	visited := map[*Node]bool{}
	stack := []*Node{n}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[cur] {
			continue
		}
		visited[cur] = true
		for _, c := range cur.inputs {
			if c.parent == nil {
				continue
			}
			if c.parent == target {
				return true
			}
			stack = append(stack, c.parent)
		}
	}
	return false
}

// Resize changes the slot counts. Retained outputs keep their buffers; new
// ones start zeroed at the current block size; removed ones are freed.
// Connections to removed outputs fall back to silence in the children.
func (n *Node) Resize(inputs, outputs int) error {
	if inputs < 0 || outputs < 0 {
		return fmt.Errorf("%w: %d inputs, %d outputs", status.ErrRange, inputs, outputs)
	}
	if outputs > len(n.outputs) {
		extra, err := allocBuffers(outputs-len(n.outputs), n.sim.blockSize)
		if err != nil {
			return err
		}
		n.outputs = append(n.outputs, extra...)
	} else {
		freeBuffers(n.outputs[outputs:])
		n.outputs = n.outputs[:outputs]
	}
	if inputs > len(n.inputs) {
		n.inputs = append(n.inputs, make([]connection, inputs-len(n.inputs))...)
		n.inputBufs = append(n.inputBufs, make([][]float32, inputs-len(n.inputBufs))...)
	} else {
		clear(n.inputs[inputs:])
		clear(n.inputBufs[inputs:])
		n.inputs = n.inputs[:inputs]
		n.inputBufs = n.inputBufs[:inputs]
	}
	n.sim.orderDirty = true
	return nil
}

// Reset clears internal history of node types that keep any.
func (n *Node) Reset() {
	if r, ok := n.owner.(StateResetter); ok {
		r.ResetState()
	}
}

// Release destroys the node once its last external handle is gone. A node
// still selected as the simulation output is destroyed when it stops being
// the output.
func (n *Node) Release() {
	n.sim.mu.Lock()
	defer n.sim.mu.Unlock()
	if n.dead {
		return
	}
	if n.sim.output == n {
		n.orphaned = true
		return
	}
	n.destroy()
}

func (n *Node) destroy() {
	n.sim.dissociate(n)
	freeBuffers(n.outputs)
	n.outputs = nil
	clear(n.inputs)
	clear(n.inputBufs)
	n.dead = true
	n.sim.logger.Debug("node destroyed", "handle", n.Handle(), "kind", int(n.Kind()))
}

func (n *Node) willProcess() {
	n.processing = true
	n.blockSize = n.sim.blockSize
	for i, c := range n.inputs {
		p := c.parent
		switch {
		case p == nil:
			n.inputBufs[i] = n.sim.zero
		case p.dead || c.output >= len(p.outputs):
			n.inputs[i] = connection{}
			n.inputBufs[i] = n.sim.zero
		case p.Suspended():
			n.inputBufs[i] = n.sim.zero
		default:
			n.inputBufs[i] = p.outputs[c.output]
		}
	}
}

func (n *Node) process() {
	if p, ok := n.owner.(Processor); ok {
		p.Process()
	} else {
		for _, o := range n.outputs {
			clear(o[:n.blockSize])
		}
	}
	mul := n.props.Get(PropMul).Float()
	add := n.props.Get(PropAdd).Float()
	if mul == 1 && add == 0 {
		return
	}
	for _, o := range n.outputs {
		for i := range o[:n.blockSize] {
			o[i] = o[i]*mul + add
		}
	}
}

func (n *Node) didProcess() {
	n.processing = false
}
