// Package nodes provides the node types that can be placed in a graph.
//
// Constructors add the node to the simulation, so callers must hold the
// simulation lock while rendering may run on another goroutine.
package nodes

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-verse/graph"
	"github.com/cwbudde/algo-verse/handle"
	"github.com/cwbudde/algo-verse/property"
	"github.com/cwbudde/algo-verse/status"
)

const (
	KindBiquad handle.Kind = graph.KindNode + 1 + iota
	KindFeedbackDelayNetwork
	KindSine
	KindGain
	KindPassthrough
	KindCustom
	KindConvolver
)

// KindName returns a short name for node and simulation kinds.
func KindName(k handle.Kind) string {
	switch k {
	case graph.KindSimulation:
		return "simulation"
	case graph.KindNode:
		return "node"
	case KindBiquad:
		return "biquad"
	case KindFeedbackDelayNetwork:
		return "feedback_delay_network"
	case KindSine:
		return "sine"
	case KindGain:
		return "gain"
	case KindPassthrough:
		return "passthrough"
	case KindCustom:
		return "custom"
	case KindConvolver:
		return "convolver"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

func checkChannels(channels int) error {
	if channels < 1 {
		return fmt.Errorf("%w: need at least one channel, got %d", status.ErrRange, channels)
	}
	return nil
}

// Sine property slots.
const (
	PropSineFrequency = iota
	PropSinePhase
)

// Sine is a single-output sine oscillator.
type Sine struct {
	*graph.Node
	phase float64
}

func NewSine(sim *graph.Simulation) (*Sine, error) {
	n, err := graph.NewNode(sim, KindSine, 0, 1)
	if err != nil {
		return nil, err
	}
	n.Properties().Add(PropSineFrequency, property.NewFloat("frequency", 440, 0, float32(math.Inf(1))))
	n.Properties().Add(PropSinePhase, property.NewFloat("phase", 0, 0, 1))
	s := &Sine{Node: n}
	n.Attach(s)
	return s, nil
}

func (s *Sine) Process() {
	props := s.Properties()
	if s.PropertiesModified(PropSinePhase) {
		s.phase = float64(props.Get(PropSinePhase).Float())
	}
	step := float64(props.Get(PropSineFrequency).Float()) / float64(s.Simulation().SampleRate())
	out := s.Outputs()[0][:s.BlockSize()]
	for i := range out {
		out[i] = float32(math.Sin(2 * math.Pi * s.phase))
		s.phase += step
		s.phase -= math.Floor(s.phase)
	}
}

func (s *Sine) ResetState() {
	s.phase = float64(s.Properties().Get(PropSinePhase).Float())
}

// Gain property slots.
const PropGain = 0

// Gain multiplies every channel by one scalar.
type Gain struct {
	*graph.Node
}

func NewGain(sim *graph.Simulation, channels int) (*Gain, error) {
	if err := checkChannels(channels); err != nil {
		return nil, err
	}
	n, err := graph.NewNode(sim, KindGain, channels, channels)
	if err != nil {
		return nil, err
	}
	n.Properties().Add(PropGain, property.NewFloat("gain", 1, float32(math.Inf(-1)), float32(math.Inf(1))))
	g := &Gain{Node: n}
	n.Attach(g)
	return g, nil
}

func (g *Gain) Process() {
	gain := g.Properties().Get(PropGain).Float()
	bs := g.BlockSize()
	for ch, in := range g.Inputs() {
		out := g.Outputs()[ch][:bs]
		for i, x := range in[:bs] {
			out[i] = x * gain
		}
	}
}

// Passthrough copies its inputs to its outputs.
type Passthrough struct {
	*graph.Node
}

func NewPassthrough(sim *graph.Simulation, channels int) (*Passthrough, error) {
	if err := checkChannels(channels); err != nil {
		return nil, err
	}
	n, err := graph.NewNode(sim, KindPassthrough, channels, channels)
	if err != nil {
		return nil, err
	}
	p := &Passthrough{Node: n}
	n.Attach(p)
	return p, nil
}

func (p *Passthrough) Process() {
	bs := p.BlockSize()
	for ch, in := range p.Inputs() {
		copy(p.Outputs()[ch][:bs], in[:bs])
	}
}

// CustomFunc fills outputs from inputs for blockSize samples.
type CustomFunc func(blockSize int, inputs, outputs [][]float32)

// Custom runs a caller-supplied function as its process step. Without one it
// outputs silence.
type Custom struct {
	*graph.Node
	fn CustomFunc
}

func NewCustom(sim *graph.Simulation, inputs, outputs int, fn CustomFunc) (*Custom, error) {
	n, err := graph.NewNode(sim, KindCustom, inputs, outputs)
	if err != nil {
		return nil, err
	}
	c := &Custom{Node: n, fn: fn}
	n.Attach(c)
	return c, nil
}

// SetCallback replaces the process function. nil silences the node.
func (c *Custom) SetCallback(fn CustomFunc) { c.fn = fn }

func (c *Custom) Process() {
	bs := c.BlockSize()
	if c.fn == nil {
		for _, o := range c.Outputs() {
			clear(o[:bs])
		}
		return
	}
	c.fn(bs, c.Inputs(), c.Outputs())
}
