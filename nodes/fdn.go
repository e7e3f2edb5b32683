package nodes

import (
	"math"

	"github.com/cwbudde/algo-verse/dsp"
	"github.com/cwbudde/algo-verse/graph"
	"github.com/cwbudde/algo-verse/property"
)

// FeedbackDelayNetwork property slots.
const (
	PropFDNMaxDelay = iota
	PropFDNDelays
	PropFDNMatrix
	PropFDNOutputGains
	PropFDNFilterTypes
	PropFDNFilterFrequencies
	PropFDNInterpolation
)

// Filter types for PropFDNFilterTypes.
const (
	FDNFilterDisabled = iota
	FDNFilterLowpass
	FDNFilterHighpass
)

// FeedbackDelayNetwork is a reverberator with one delay line per channel. The
// per-channel one-pole filters sit in the feedback path, so every pass
// through the network is shaped again.
type FeedbackDelayNetwork struct {
	*graph.Node
	network    *dsp.FeedbackDelayNetwork
	filters    []*dsp.OnePoleFilter
	gains      []float32
	lastOutput []float32
	nextInput  []float32
}

// NewFeedbackDelayNetwork returns a network of channels lines able to delay
// up to maxDelay seconds. The matrix starts at zero, so the node is a plain
// multichannel delay until it is configured.
func NewFeedbackDelayNetwork(sim *graph.Simulation, maxDelay float32, channels int) (*FeedbackDelayNetwork, error) {
	if err := checkChannels(channels); err != nil {
		return nil, err
	}
	sr := sim.SampleRate()
	network, err := dsp.NewFeedbackDelayNetwork(channels, maxDelay, sr)
	if err != nil {
		return nil, err
	}
	n, err := graph.NewNode(sim, KindFeedbackDelayNetwork, channels, channels)
	if err != nil {
		return nil, err
	}

	inf := float32(math.Inf(1))
	props := n.Properties()
	maxProp := property.NewFloat("max_delay", maxDelay, 0, inf)
	maxProp.MarkReadOnly()
	props.Add(PropFDNMaxDelay, maxProp)

	delays := property.NewFloatArray("delays", make([]float32, channels), channels, channels)
	delays.SetRange(0, float64(maxDelay))
	props.Add(PropFDNDelays, delays)

	props.Add(PropFDNMatrix, property.NewFloatArray("matrix", make([]float32, channels*channels), channels*channels, channels*channels))

	ones := make([]float32, channels)
	for i := range ones {
		ones[i] = 1
	}
	props.Add(PropFDNOutputGains, property.NewFloatArray("output_gains", ones, channels, channels))

	types := property.NewIntArray("filter_types", make([]int32, channels), channels, channels)
	types.SetRange(FDNFilterDisabled, FDNFilterHighpass)
	props.Add(PropFDNFilterTypes, types)

	freqs := property.NewFloatArray("filter_frequencies", make([]float32, channels), channels, channels)
	freqs.SetRange(0, float64(sr)/2)
	props.Add(PropFDNFilterFrequencies, freqs)

	props.Add(PropFDNInterpolation, property.NewInt("interpolation", int(dsp.InterpLinear), int(dsp.InterpLinear), int(dsp.InterpCubic)))

	f := &FeedbackDelayNetwork{
		Node:       n,
		network:    network,
		filters:    make([]*dsp.OnePoleFilter, channels),
		gains:      append([]float32(nil), ones...),
		lastOutput: make([]float32, channels),
		nextInput:  make([]float32, channels),
	}
	for i := range f.filters {
		f.filters[i] = dsp.NewOnePoleFilter(sr)
	}
	n.Attach(f)
	return f, nil
}

func (f *FeedbackDelayNetwork) configureFilters(types []int32, freqs []float32) {
	for i, flt := range f.filters {
		if types[i] == FDNFilterDisabled {
			flt.SetCoefficients(1, 0)
			continue
		}
		flt.SetPoleFromFrequency(freqs[i], types[i] == FDNFilterHighpass)
	}
}

func (f *FeedbackDelayNetwork) Process() {
	props := f.Properties()
	if f.PropertiesModified(PropFDNInterpolation) {
		f.network.SetInterpolation(dsp.Interpolation(props.Get(PropFDNInterpolation).Int()))
	}
	if f.PropertiesModified(PropFDNDelays) {
		_ = f.network.SetDelays(props.Get(PropFDNDelays).Floats())
	}
	if f.PropertiesModified(PropFDNMatrix) {
		_ = f.network.SetMatrix(props.Get(PropFDNMatrix).Floats())
	}
	if f.PropertiesModified(PropFDNOutputGains) {
		copy(f.gains, props.Get(PropFDNOutputGains).Floats())
	}
	if f.PropertiesModified(PropFDNFilterTypes, PropFDNFilterFrequencies) {
		f.configureFilters(props.Get(PropFDNFilterTypes).Ints(), props.Get(PropFDNFilterFrequencies).Floats())
	}

	inputs, outputs := f.Inputs(), f.Outputs()
	for i := 0; i < f.BlockSize(); i++ {
		f.network.ComputeFrame(f.lastOutput)
		for j, flt := range f.filters {
			outputs[j][i] = f.lastOutput[j] * f.gains[j]
			f.nextInput[j] = inputs[j][i]
			f.lastOutput[j] = flt.Tick(f.lastOutput[j])
		}
		f.network.Advance(f.nextInput, f.lastOutput)
	}
}

func (f *FeedbackDelayNetwork) ResetState() {
	f.network.Reset()
	for _, flt := range f.filters {
		flt.Reset()
	}
}
