package nodes

import (
	"github.com/cwbudde/algo-verse/dsp"
	"github.com/cwbudde/algo-verse/graph"
	"github.com/cwbudde/algo-verse/property"
)

// Biquad property slots.
const (
	PropBiquadFilterType = iota
	PropBiquadFrequency
	PropBiquadQ
	PropBiquadDBGain
)

// Biquad filters every channel with the same cookbook section.
type Biquad struct {
	*graph.Node
	bank     *dsp.BiquadBank
	prevType dsp.BiquadType
}

func NewBiquad(sim *graph.Simulation, channels int) (*Biquad, error) {
	if err := checkChannels(channels); err != nil {
		return nil, err
	}
	bank, err := dsp.NewBiquadBank(channels, float64(sim.SampleRate()))
	if err != nil {
		return nil, err
	}
	n, err := graph.NewNode(sim, KindBiquad, channels, channels)
	if err != nil {
		return nil, err
	}
	props := n.Properties()
	props.Add(PropBiquadFilterType, property.NewInt("filter_type", int(dsp.BiquadLowpass), int(dsp.BiquadLowpass), int(dsp.BiquadDisabled)))
	props.Add(PropBiquadFrequency, property.NewFloat("frequency", 2000, 0, sim.SampleRate()/2))
	props.Add(PropBiquadQ, property.NewFloat("q", 0.5, 0.001, 1000))
	props.Add(PropBiquadDBGain, property.NewFloat("dbgain", 0, -100, 100))

	b := &Biquad{Node: n, bank: bank, prevType: dsp.BiquadLowpass}
	n.Attach(b)
	return b, nil
}

func (b *Biquad) reconfigure() {
	props := b.Properties()
	typ := dsp.BiquadType(props.Get(PropBiquadFilterType).Int())
	b.bank.Configure(
		typ,
		float64(props.Get(PropBiquadFrequency).Float()),
		float64(props.Get(PropBiquadDBGain).Float()),
		float64(props.Get(PropBiquadQ).Float()),
	)
	if typ != b.prevType {
		b.bank.Reset()
	}
	b.prevType = typ
}

func (b *Biquad) Process() {
	if b.PropertiesModified(PropBiquadFilterType, PropBiquadDBGain, PropBiquadFrequency, PropBiquadQ) {
		b.reconfigure()
	}
	b.bank.Process(b.BlockSize(), b.Inputs(), b.Outputs())
}

func (b *Biquad) ResetState() { b.bank.Reset() }
