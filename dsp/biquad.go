package dsp

import (
	"fmt"

	"github.com/cwbudde/algo-dsp/dsp/filter/biquad"
	"github.com/cwbudde/algo-dsp/dsp/filter/design"

	"github.com/cwbudde/algo-verse/status"
)

// BiquadType selects the cookbook response of a BiquadFilter.
type BiquadType int

const (
	BiquadLowpass BiquadType = iota
	BiquadHighpass
	BiquadBandpass
	BiquadNotch
	BiquadAllpass
	BiquadPeaking
	BiquadLowshelf
	BiquadHighshelf
	BiquadDisabled
)

var biquadTypeNames = [...]string{
	"lowpass", "highpass", "bandpass", "notch", "allpass",
	"peaking", "lowshelf", "highshelf", "disabled",
}

func (t BiquadType) String() string {
	if t < 0 || int(t) >= len(biquadTypeNames) {
		return fmt.Sprintf("BiquadType(%d)", int(t))
	}
	return biquadTypeNames[t]
}

// ParseBiquadType maps a name produced by BiquadType.String back to its type.
func ParseBiquadType(name string) (BiquadType, error) {
	for i, n := range biquadTypeNames {
		if n == name {
			return BiquadType(i), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown biquad type %q", status.ErrRange, name)
}

// BiquadFilter is one DF-II transposed section. Coefficients change without
// touching the filter state; call Reset when the topology changes.
type BiquadFilter struct {
	sampleRate float64
	section    biquad.Section
}

// NewBiquadFilter returns a passthrough section.
func NewBiquadFilter(sampleRate float64) *BiquadFilter {
	f := &BiquadFilter{sampleRate: sampleRate}
	f.section.Coefficients = biquad.Coefficients{B0: 1}
	return f
}

// Configure recomputes the coefficients. Frequencies outside the open
// interval (0, Nyquist) are pulled just inside it.
func (f *BiquadFilter) Configure(typ BiquadType, frequency, dbGain, q float64) {
	f.section.Coefficients = BiquadCoefficients(typ, frequency, dbGain, q, f.sampleRate)
}

// Coefficients returns the active coefficient set.
func (f *BiquadFilter) Coefficients() biquad.Coefficients { return f.section.Coefficients }

func (f *BiquadFilter) Tick(x float32) float32 {
	return float32(f.section.ProcessSample(float64(x)))
}

func (f *BiquadFilter) Reset() { f.section.Reset() }

// BiquadCoefficients designs one section with the audio EQ cookbook formulas.
func BiquadCoefficients(typ BiquadType, frequency, dbGain, q, sampleRate float64) biquad.Coefficients {
	if typ == BiquadDisabled {
		return biquad.Coefficients{B0: 1}
	}
	nyquist := sampleRate / 2
	switch {
	case frequency <= 0:
		frequency = 1e-3 * nyquist
	case frequency >= nyquist:
		frequency = 0.999 * nyquist
	}

	var c biquad.Coefficients
	switch typ {
	case BiquadLowpass:
		c = design.Lowpass(frequency, q, sampleRate)
	case BiquadHighpass:
		c = design.Highpass(frequency, q, sampleRate)
	case BiquadBandpass:
		c = design.Bandpass(frequency, q, sampleRate)
	case BiquadNotch:
		c = design.Notch(frequency, q, sampleRate)
	case BiquadAllpass:
		c = design.Allpass(frequency, q, sampleRate)
	case BiquadPeaking:
		c = design.Peak(frequency, dbGain, q, sampleRate)
	case BiquadLowshelf:
		c = design.LowShelf(frequency, dbGain, q, sampleRate)
	case BiquadHighshelf:
		c = design.HighShelf(frequency, dbGain, q, sampleRate)
	}
	if c == (biquad.Coefficients{}) {
		// design rejected the input; fall back to passthrough
		return biquad.Coefficients{B0: 1}
	}
	return c
}
