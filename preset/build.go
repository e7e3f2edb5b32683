package preset

import (
	"fmt"
	"strings"

	"github.com/cwbudde/algo-verse/dsp"
	"github.com/cwbudde/algo-verse/graph"
	"github.com/cwbudde/algo-verse/internal/wavio"
	"github.com/cwbudde/algo-verse/irsynth"
	"github.com/cwbudde/algo-verse/nodes"
)

// Built is a simulation constructed from a Graph.
type Built struct {
	Simulation *graph.Simulation
	Nodes      map[string]graph.Interface
	Channels   int
}

// Build creates a simulation for g, adds its nodes, connects them and
// selects the output node. Connections and the output must name nodes of g.
func Build(g *Graph, opts ...graph.Option) (*Built, error) {
	if err := checkReferences(g); err != nil {
		return nil, err
	}
	sim, err := graph.New(float32(g.SampleRate), g.BlockSize, opts...)
	if err != nil {
		return nil, err
	}
	sim.Lock()
	defer sim.Unlock()

	b := &Built{Simulation: sim, Nodes: make(map[string]graph.Interface, len(g.Nodes)), Channels: g.Channels}
	names := sortedNames(g.Nodes)
	for _, name := range names {
		n, err := createNode(sim, g.Nodes[name])
		if err != nil {
			return nil, fmt.Errorf("nodes[%s]: %w", name, err)
		}
		b.Nodes[name] = n
	}
	for _, name := range names {
		child := b.Nodes[name].GraphNode()
		for i, c := range g.Nodes[name].Inputs {
			input := i
			if c.Input != nil {
				input = *c.Input
			}
			if err := child.SetParent(input, b.Nodes[c.Node], c.Output); err != nil {
				return nil, fmt.Errorf("nodes[%s].inputs[%d]: %w", name, i, err)
			}
		}
	}
	if g.Output != "" {
		if err := sim.SetOutput(b.Nodes[g.Output]); err != nil {
			return nil, err
		}
	}
	return b, nil
}

func channelsOf(n NodeSetting) int {
	if n.Channels != nil {
		return *n.Channels
	}
	return 1
}

func createNode(sim *graph.Simulation, s NodeSetting) (graph.Interface, error) {
	channels := channelsOf(s)
	var (
		n   graph.Interface
		err error
	)
	switch s.Type {
	case "sine":
		n, err = newSine(sim, s)
	case "gain":
		n, err = newGain(sim, s, channels)
	case "passthrough":
		n, err = nodes.NewPassthrough(sim, channels)
	case "impulse":
		n, err = newImpulse(sim, s, channels)
	case "biquad":
		n, err = newBiquad(sim, s, channels)
	case "feedback_delay_network":
		n, err = newFDN(sim, s, channels)
	case "convolver":
		n, err = newConvolver(sim, s, channels)
	default:
		err = fmt.Errorf("unknown node type %q", s.Type)
	}
	if err != nil {
		return nil, err
	}

	node := n.GraphNode()
	if s.Suspended != nil && *s.Suspended {
		node.Suspend()
	}
	if s.Mul != nil {
		if err := node.Properties().Get(graph.PropMul).SetFloat(*s.Mul); err != nil {
			return nil, err
		}
	}
	if s.Add != nil {
		if err := node.Properties().Get(graph.PropAdd).SetFloat(*s.Add); err != nil {
			return nil, err
		}
	}
	return n, nil
}

func setFloat(n *graph.Node, slot int, v *float32) error {
	if v == nil {
		return nil
	}
	p, err := n.Property(slot)
	if err != nil {
		return err
	}
	return p.SetFloat(*v)
}

func newSine(sim *graph.Simulation, s NodeSetting) (graph.Interface, error) {
	n, err := nodes.NewSine(sim)
	if err != nil {
		return nil, err
	}
	return n, setFloat(n.Node, nodes.PropSineFrequency, s.Frequency)
}

// newImpulse emits one sample on every channel at the first rendered frame
// and silence afterwards.
func newImpulse(sim *graph.Simulation, s NodeSetting, channels int) (graph.Interface, error) {
	amp := float32(1)
	if s.Gain != nil {
		amp = *s.Gain
	}
	fired := false
	n, err := nodes.NewCustom(sim, 0, channels, func(blockSize int, _, outputs [][]float32) {
		for _, o := range outputs {
			clear(o[:blockSize])
			if !fired {
				o[0] = amp
			}
		}
		fired = true
	})
	if err != nil {
		return nil, err
	}
	return n, nil
}

func newGain(sim *graph.Simulation, s NodeSetting, channels int) (graph.Interface, error) {
	n, err := nodes.NewGain(sim, channels)
	if err != nil {
		return nil, err
	}
	return n, setFloat(n.Node, nodes.PropGain, s.Gain)
}

func newBiquad(sim *graph.Simulation, s NodeSetting, channels int) (graph.Interface, error) {
	n, err := nodes.NewBiquad(sim, channels)
	if err != nil {
		return nil, err
	}
	if s.FilterType != "" {
		typ, err := dsp.ParseBiquadType(s.FilterType)
		if err != nil {
			return nil, err
		}
		if err := n.Properties().Get(nodes.PropBiquadFilterType).SetInt(int(typ)); err != nil {
			return nil, err
		}
	}
	for slot, v := range map[int]*float32{
		nodes.PropBiquadFrequency: s.Frequency,
		nodes.PropBiquadQ:         s.Q,
		nodes.PropBiquadDBGain:    s.DBGain,
	} {
		if err := setFloat(n.Node, slot, v); err != nil {
			return nil, err
		}
	}
	return n, nil
}

func feedbackMatrix(kind string, n int) ([]float32, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", "zero":
		return make([]float32, n*n), nil
	case "identity":
		return dsp.IdentityMatrix(n), nil
	case "hadamard":
		return dsp.HadamardMatrix(n)
	case "householder":
		return dsp.HouseholderMatrix(n), nil
	default:
		return nil, fmt.Errorf("unknown matrix kind %q", kind)
	}
}

func fdnFilterType(name string) (int32, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "disabled", "none":
		return nodes.FDNFilterDisabled, nil
	case "lowpass":
		return nodes.FDNFilterLowpass, nil
	case "highpass":
		return nodes.FDNFilterHighpass, nil
	default:
		return 0, fmt.Errorf("unknown filter type %q", name)
	}
}

func interpolation(name string) (dsp.Interpolation, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "linear":
		return dsp.InterpLinear, nil
	case "cubic":
		return dsp.InterpCubic, nil
	default:
		return 0, fmt.Errorf("unknown interpolation %q", name)
	}
}

func newFDN(sim *graph.Simulation, s NodeSetting, channels int) (graph.Interface, error) {
	n, err := nodes.NewFeedbackDelayNetwork(sim, *s.MaxDelay, channels)
	if err != nil {
		return nil, err
	}
	props := n.Properties()
	if len(s.Delays) > 0 {
		if err := props.Get(nodes.PropFDNDelays).SetFloats(s.Delays); err != nil {
			return nil, err
		}
	}

	matrix := append([]float32(nil), s.Matrix...)
	if len(matrix) == 0 {
		if matrix, err = feedbackMatrix(s.MatrixKind, channels); err != nil {
			return nil, err
		}
	}
	if s.RT60 != nil {
		gains, err := dsp.RT60Gains(props.Get(nodes.PropFDNDelays).Floats(), *s.RT60)
		if err != nil {
			return nil, err
		}
		if err := dsp.ScaleRows(matrix, gains); err != nil {
			return nil, err
		}
	}
	if err := props.Get(nodes.PropFDNMatrix).SetFloats(matrix); err != nil {
		return nil, err
	}

	if len(s.OutputGains) > 0 {
		if err := props.Get(nodes.PropFDNOutputGains).SetFloats(s.OutputGains); err != nil {
			return nil, err
		}
	}
	if len(s.FilterTypes) > 0 {
		types := make([]int32, len(s.FilterTypes))
		for i, name := range s.FilterTypes {
			if types[i], err = fdnFilterType(name); err != nil {
				return nil, err
			}
		}
		if err := props.Get(nodes.PropFDNFilterTypes).SetInts(types); err != nil {
			return nil, err
		}
	}
	if len(s.FilterFrequencies) > 0 {
		if err := props.Get(nodes.PropFDNFilterFrequencies).SetFloats(s.FilterFrequencies); err != nil {
			return nil, err
		}
	}
	interp, err := interpolation(s.Interpolation)
	if err != nil {
		return nil, err
	}
	if err := props.Get(nodes.PropFDNInterpolation).SetInt(int(interp)); err != nil {
		return nil, err
	}
	return n, nil
}

// RoomConfig maps a room setting onto the generator's configuration.
func RoomConfig(r *RoomSetting, sampleRate int) irsynth.RoomConfig {
	cfg := irsynth.DefaultRoomConfig()
	cfg.SampleRate = sampleRate
	if r == nil {
		return cfg
	}
	if r.RT60 != nil {
		cfg.LowRT60 = *r.RT60
		cfg.HighRT60 = *r.RT60 / 3
	}
	if r.HighRT60 != nil {
		cfg.HighRT60 = *r.HighRT60
	}
	if r.Crossover != nil {
		cfg.Crossover = *r.Crossover
	}
	if r.PreDelay != nil {
		cfg.PreDelayS = *r.PreDelay
	}
	if r.Early != nil {
		cfg.EarlyCount = *r.Early
	}
	if r.EarlyLevel != nil {
		cfg.EarlyLevel = *r.EarlyLevel
	}
	if r.LateLevel != nil {
		cfg.LateLevel = *r.LateLevel
	}
	if r.Duration != nil {
		cfg.DurationS = *r.Duration
	}
	if r.Seed != nil {
		cfg.Seed = *r.Seed
	}
	return cfg
}

func loadImpulseResponse(s NodeSetting, sampleRate int) ([]float32, error) {
	if s.Room != nil {
		ir, err := irsynth.GenerateRoom(RoomConfig(s.Room, sampleRate))
		if err != nil {
			return nil, fmt.Errorf("synthesize room: %w", err)
		}
		return ir, nil
	}
	ir, err := wavio.ReadMonoAt(s.IRWavPath, sampleRate)
	if err != nil {
		return nil, fmt.Errorf("load impulse response: %w", err)
	}
	return ir, nil
}

func newConvolver(sim *graph.Simulation, s NodeSetting, channels int) (graph.Interface, error) {
	ir, err := loadImpulseResponse(s, int(sim.SampleRate()))
	if err != nil {
		return nil, err
	}
	if len(ir) == 0 {
		return nil, fmt.Errorf("empty impulse response %s", s.IRWavPath)
	}
	if len(ir) > nodes.MaxImpulseResponseLength {
		ir = ir[:nodes.MaxImpulseResponseLength]
	}
	n, err := nodes.NewConvolver(sim, channels)
	if err != nil {
		return nil, err
	}
	if err := n.Properties().Get(nodes.PropConvolverImpulseResponse).SetFloats(ir); err != nil {
		return nil, err
	}
	return n, nil
}
