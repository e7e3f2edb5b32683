package dsp

import (
	"fmt"

	"github.com/cwbudde/algo-verse/status"
)

// Filter is any single-channel recurrence with a per-sample step.
type Filter interface {
	Tick(x float32) float32
	Reset()
}

// FilterBank runs one filter per channel. Configuration is applied to every
// channel in one call, so a block never sees a partially configured bank.
type FilterBank[F Filter] struct {
	filters   []F
	newFilter func() F
	lastConf  func(F)
}

// NewFilterBank builds a bank of channels filters produced by newFilter.
func NewFilterBank[F Filter](channels int, newFilter func() F) (*FilterBank[F], error) {
	b := &FilterBank[F]{newFilter: newFilter}
	if err := b.SetChannelCount(channels); err != nil {
		return nil, err
	}
	return b, nil
}

// SetChannelCount grows or shrinks the bank. Retained channels keep their
// coefficients and state; new channels get the last configuration applied.
func (b *FilterBank[F]) SetChannelCount(n int) error {
	if n < 1 {
		return fmt.Errorf("%w: filter bank needs at least one channel, got %d", status.ErrRange, n)
	}
	if n <= len(b.filters) {
		clear(b.filters[n:])
		b.filters = b.filters[:n]
		return nil
	}
	for len(b.filters) < n {
		f := b.newFilter()
		if b.lastConf != nil {
			b.lastConf(f)
		}
		b.filters = append(b.filters, f)
	}
	return nil
}

func (b *FilterBank[F]) ChannelCount() int { return len(b.filters) }

// Filter returns the filter for channel i.
func (b *FilterBank[F]) Filter(i int) F { return b.filters[i] }

// Configure calls fn on every channel.
func (b *FilterBank[F]) Configure(fn func(F)) {
	b.lastConf = fn
	for _, f := range b.filters {
		fn(f)
	}
}

// Process filters blockSize samples of inputs[i] into outputs[i]. Inputs and
// outputs may alias.
func (b *FilterBank[F]) Process(blockSize int, inputs, outputs [][]float32) {
	for ch, f := range b.filters {
		in, out := inputs[ch][:blockSize], outputs[ch][:blockSize]
		for i, x := range in {
			out[i] = f.Tick(x)
		}
	}
}

// Reset clears the state of every channel.
func (b *FilterBank[F]) Reset() {
	for _, f := range b.filters {
		f.Reset()
	}
}

// BiquadBank is a FilterBank of biquad sections sharing one design.
type BiquadBank struct {
	*FilterBank[*BiquadFilter]
}

func NewBiquadBank(channels int, sampleRate float64) (*BiquadBank, error) {
	fb, err := NewFilterBank(channels, func() *BiquadFilter { return NewBiquadFilter(sampleRate) })
	if err != nil {
		return nil, err
	}
	return &BiquadBank{FilterBank: fb}, nil
}

// Configure redesigns every section. Filter state is untouched.
func (b *BiquadBank) Configure(typ BiquadType, frequency, dbGain, q float64) {
	b.FilterBank.Configure(func(f *BiquadFilter) {
		f.Configure(typ, frequency, dbGain, q)
	})
}
