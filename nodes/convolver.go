package nodes

import (
	dspconv "github.com/cwbudde/algo-dsp/dsp/conv"

	"github.com/cwbudde/algo-verse/graph"
	"github.com/cwbudde/algo-verse/property"
)

// Convolver property slots.
const PropConvolverImpulseResponse = 0

// MaxImpulseResponseLength bounds the impulse response property.
const MaxImpulseResponseLength = 1 << 20

// Convolver applies one impulse response to every channel with streaming
// FFT overlap-add, one block in and one block out.
type Convolver struct {
	*graph.Node
	engines  []*dspconv.StreamingOverlapAddT[float32, complex64]
	builtFor int
}

func NewConvolver(sim *graph.Simulation, channels int) (*Convolver, error) {
	if err := checkChannels(channels); err != nil {
		return nil, err
	}
	n, err := graph.NewNode(sim, KindConvolver, channels, channels)
	if err != nil {
		return nil, err
	}
	n.Properties().Add(PropConvolverImpulseResponse,
		property.NewFloatArray("impulse_response", []float32{1}, 1, MaxImpulseResponseLength))
	c := &Convolver{Node: n, engines: make([]*dspconv.StreamingOverlapAddT[float32, complex64], channels)}
	n.Attach(c)
	return c, nil
}

// rebuild keeps the previous engines when the new response cannot be
// prepared.
func (c *Convolver) rebuild(ir []float32, blockSize int) {
	fresh := make([]*dspconv.StreamingOverlapAddT[float32, complex64], len(c.engines))
	for i := range fresh {
		e, err := dspconv.NewStreamingOverlapAdd32(ir, blockSize)
		if err != nil {
			c.Simulation().Logger().Warn("convolver rebuild failed", "handle", c.Handle(), "err", err)
			return
		}
		fresh[i] = e
	}
	c.engines = fresh
	c.builtFor = blockSize
}

func (c *Convolver) Process() {
	bs := c.BlockSize()
	modified := c.PropertiesModified(PropConvolverImpulseResponse)
	if modified || bs != c.builtFor {
		c.rebuild(c.Properties().Get(PropConvolverImpulseResponse).Floats(), bs)
	}
	inputs, outputs := c.Inputs(), c.Outputs()
	for ch, e := range c.engines {
		in, out := inputs[ch][:bs], outputs[ch][:bs]
		if e == nil || c.builtFor != bs {
			copy(out, in)
			continue
		}
		if err := e.ProcessBlockTo(out, in); err != nil {
			copy(out, in)
		}
	}
}

func (c *Convolver) ResetState() {
	for _, e := range c.engines {
		if e != nil {
			e.Reset()
		}
	}
}
