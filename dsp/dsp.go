// Package dsp holds the single-channel recurrence units and the multichannel
// kernels built from them. Everything here runs on the audio path: no method
// allocates after construction and none returns an error per sample.
package dsp

import (
	"math"

	dspcore "github.com/cwbudde/algo-dsp/dsp/core"
	"github.com/cwbudde/algo-dsp/dsp/interp"
)

// Interpolation selects how a DelayLine reads between samples.
type Interpolation int

const (
	InterpLinear Interpolation = iota
	InterpCubic
)

// DelayLine is a circular buffer read at a fractional distance behind the
// write position. The tap is read before the new sample is written, so the
// shortest usable delay is one sample (two in cubic mode).
type DelayLine struct {
	line       []float32
	writePos   int
	sampleRate float32
	maxDelay   float32

	delay  float32 // in samples
	whole  int
	frac   float32
	interp Interpolation
}

// NewDelayLine allocates a line able to hold maxDelay seconds at sampleRate.
func NewDelayLine(maxDelay, sampleRate float32) *DelayLine {
	if maxDelay < 0 {
		maxDelay = 0
	}
	size := int(math.Ceil(float64(maxDelay)*float64(sampleRate))) + 4
	d := &DelayLine{
		line:       make([]float32, size),
		sampleRate: sampleRate,
		maxDelay:   maxDelay,
	}
	d.SetDelay(0)
	return d
}

// SetInterpolation switches the read kernel. The current delay is re-clamped
// because cubic reads need one extra sample of history.
func (d *DelayLine) SetInterpolation(mode Interpolation) {
	d.interp = mode
	d.SetDelay(d.Delay())
}

// SetDelay sets the delay in seconds, clamped to [0, maxDelay].
func (d *DelayLine) SetDelay(seconds float32) {
	seconds = float32(dspcore.Clamp(float64(seconds), 0, float64(d.maxDelay)))
	samples := seconds * d.sampleRate
	if r := float32(math.Round(float64(samples))); math.Abs(float64(samples-r)) < 1e-3 {
		samples = r
	}
	minSamples := float32(1)
	if d.interp == InterpCubic {
		minSamples = 2
	}
	if samples < minSamples {
		samples = minSamples
	}
	if limit := float32(len(d.line) - 3); samples > limit {
		samples = limit
	}
	d.delay = samples
	d.whole = int(samples)
	d.frac = samples - float32(d.whole)
}

// Delay returns the current delay in seconds.
func (d *DelayLine) Delay() float32 { return d.delay / d.sampleRate }

// MaxDelay returns the longest delay the line can hold, in seconds.
func (d *DelayLine) MaxDelay() float32 { return d.maxDelay }

func (d *DelayLine) at(distance int) float32 {
	i := d.writePos - distance
	if i < 0 {
		i += len(d.line)
	}
	return d.line[i]
}

// ComputeSample reads the current tap without changing any state.
func (d *DelayLine) ComputeSample() float32 {
	x0 := d.at(d.whole)
	if d.frac == 0 {
		return x0
	}
	x1 := d.at(d.whole + 1)
	if d.interp == InterpCubic {
		xm1 := d.at(d.whole - 1)
		x2 := d.at(d.whole + 2)
		return float32(interp.Hermite4(float64(d.frac), float64(xm1), float64(x0), float64(x1), float64(x2)))
	}
	return x0 + d.frac*(x1-x0)
}

// Advance writes one sample and moves the line forward.
func (d *DelayLine) Advance(x float32) {
	d.line[d.writePos] = x
	d.writePos++
	if d.writePos == len(d.line) {
		d.writePos = 0
	}
}

// Tick reads the tap then writes x.
func (d *DelayLine) Tick(x float32) float32 {
	y := d.ComputeSample()
	d.Advance(x)
	return y
}

// Reset clears the line. The delay setting is kept.
func (d *DelayLine) Reset() {
	clear(d.line)
	d.writePos = 0
}

// OnePoleFilter computes y[n] = b0*x[n] + b1*y[n-1].
type OnePoleFilter struct {
	sampleRate float32
	b0, b1     float32
	last       float32
}

// NewOnePoleFilter returns a unity passthrough filter.
func NewOnePoleFilter(sampleRate float32) *OnePoleFilter {
	return &OnePoleFilter{sampleRate: sampleRate, b0: 1}
}

// SetCoefficients sets b0 and b1 directly. (1, 0) passes input unchanged.
func (f *OnePoleFilter) SetCoefficients(b0, b1 float32) {
	f.b0, f.b1 = b0, b1
}

// Coefficients returns b0 and b1.
func (f *OnePoleFilter) Coefficients() (b0, b1 float32) { return f.b0, f.b1 }

// SetPoleFromFrequency places the pole for a -3 dB point near freq. The
// highpass form mirrors the lowpass pole around a quarter of the sample rate
// and normalizes gain at Nyquist.
func (f *OnePoleFilter) SetPoleFromFrequency(freq float32, highpass bool) {
	norm := freq / f.sampleRate
	if highpass {
		f.b1 = -fastExp(-2 * math.Pi * (0.5 - norm))
		f.b0 = 1 + f.b1
		return
	}
	f.b1 = fastExp(-2 * math.Pi * norm)
	f.b0 = 1 - f.b1
}

func (f *OnePoleFilter) Tick(x float32) float32 {
	y := f.b0*x + f.b1*f.last
	f.last = float32(dspcore.FlushDenormals(float64(y)))
	return y
}

func (f *OnePoleFilter) Reset() { f.last = 0 }
