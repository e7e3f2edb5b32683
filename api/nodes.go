package api

import (
	"github.com/cwbudde/algo-verse/graph"
	"github.com/cwbudde/algo-verse/handle"
	"github.com/cwbudde/algo-verse/nodes"
)

// createNode runs ctor with the simulation locked and hands out the result.
func (l *Library) createNode(simHandle int, ctor func(sim *graph.Simulation) (graph.Interface, error)) (int, error) {
	if err := l.checkOpen(); err != nil {
		return 0, err
	}
	sim, err := l.simulation(simHandle)
	if err != nil {
		return 0, err
	}
	sim.Lock()
	n, err := ctor(sim)
	sim.Unlock()
	if err != nil {
		return 0, err
	}
	return l.hand(n)
}

func (l *Library) CreateBiquadNode(sim, channels int) (int, error) {
	return l.createNode(sim, func(s *graph.Simulation) (graph.Interface, error) {
		return nodes.NewBiquad(s, channels)
	})
}

func (l *Library) CreateFeedbackDelayNetworkNode(sim int, maxDelay float32, channels int) (int, error) {
	return l.createNode(sim, func(s *graph.Simulation) (graph.Interface, error) {
		return nodes.NewFeedbackDelayNetwork(s, maxDelay, channels)
	})
}

func (l *Library) CreateSineNode(sim int) (int, error) {
	return l.createNode(sim, func(s *graph.Simulation) (graph.Interface, error) {
		return nodes.NewSine(s)
	})
}

func (l *Library) CreateGainNode(sim, channels int) (int, error) {
	return l.createNode(sim, func(s *graph.Simulation) (graph.Interface, error) {
		return nodes.NewGain(s, channels)
	})
}

func (l *Library) CreatePassthroughNode(sim, channels int) (int, error) {
	return l.createNode(sim, func(s *graph.Simulation) (graph.Interface, error) {
		return nodes.NewPassthrough(s, channels)
	})
}

func (l *Library) CreateConvolverNode(sim, channels int) (int, error) {
	return l.createNode(sim, func(s *graph.Simulation) (graph.Interface, error) {
		return nodes.NewConvolver(s, channels)
	})
}

// CreateCustomNode wraps fn, which runs on the render goroutine.
func (l *Library) CreateCustomNode(sim, inputs, outputs int, fn nodes.CustomFunc) (int, error) {
	return l.createNode(sim, func(s *graph.Simulation) (graph.Interface, error) {
		return nodes.NewCustom(s, inputs, outputs, fn)
	})
}

// NodeGetSimulation returns the handle of the simulation owning node.
func (l *Library) NodeGetSimulation(node int) (int, error) {
	n, err := l.node(node)
	if err != nil {
		return 0, err
	}
	return l.table.Outgoing(n.Simulation()), nil
}

// NodeSetParent binds input of node to output of parent. A parent of 0
// clears the slot.
func (l *Library) NodeSetParent(node, input, parent, output int) error {
	p, err := handle.Resolve[graph.Interface](l.table, parent, true)
	if err != nil {
		return err
	}
	return l.withNode(node, func(n *graph.Node) error {
		return n.SetParent(input, p, output)
	})
}

func (l *Library) NodeClearParent(node, input int) error {
	return l.withNode(node, func(n *graph.Node) error {
		return n.ClearParent(input)
	})
}

// NodeGetParent returns the handle and output index bound to input. An
// unbound slot yields (0, 0).
func (l *Library) NodeGetParent(node, input int) (parent, output int, err error) {
	var p graph.Interface
	err = l.withNode(node, func(n *graph.Node) error {
		var err error
		p, output, err = n.Parent(input)
		return err
	})
	if err != nil || p == nil {
		return 0, 0, err
	}
	return l.table.Outgoing(p), output, nil
}

func (l *Library) NodeGetInputCount(node int) (count int, err error) {
	err = l.withNode(node, func(n *graph.Node) error {
		count = n.InputCount()
		return nil
	})
	return count, err
}

func (l *Library) NodeGetOutputCount(node int) (count int, err error) {
	err = l.withNode(node, func(n *graph.Node) error {
		count = n.OutputCount()
		return nil
	})
	return count, err
}

func (l *Library) NodeSuspend(node int) error {
	return l.withNode(node, func(n *graph.Node) error {
		n.Suspend()
		return nil
	})
}

func (l *Library) NodeUnsuspend(node int) error {
	return l.withNode(node, func(n *graph.Node) error {
		n.Unsuspend()
		return nil
	})
}

// NodeReset clears the node's internal history.
func (l *Library) NodeReset(node int) error {
	return l.withNode(node, func(n *graph.Node) error {
		n.Reset()
		return nil
	})
}
