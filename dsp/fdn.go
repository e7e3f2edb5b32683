package dsp

import (
	"fmt"

	"github.com/cwbudde/algo-verse/status"
)

// FeedbackDelayNetwork recirculates n delay lines through an n×n matrix.
// Row i of the matrix holds the weights line i receives from every tap.
type FeedbackDelayNetwork struct {
	n         int
	lines     []*DelayLine
	matrix    []float32
	workspace []float32
}

// NewFeedbackDelayNetwork returns a network with a zero matrix and every
// delay at its minimum.
func NewFeedbackDelayNetwork(n int, maxDelay, sampleRate float32) (*FeedbackDelayNetwork, error) {
	if n < 1 {
		return nil, fmt.Errorf("%w: feedback delay network needs at least one line, got %d", status.ErrRange, n)
	}
	f := &FeedbackDelayNetwork{
		n:         n,
		lines:     make([]*DelayLine, n),
		matrix:    make([]float32, n*n),
		workspace: make([]float32, n),
	}
	for i := range f.lines {
		f.lines[i] = NewDelayLine(maxDelay, sampleRate)
	}
	return f, nil
}

func (f *FeedbackDelayNetwork) Channels() int { return f.n }

// ComputeFrame writes the current tap of every line to out.
func (f *FeedbackDelayNetwork) ComputeFrame(out []float32) {
	for i, l := range f.lines {
		out[i] = l.ComputeSample()
	}
}

// Advance feeds line i with input[i] plus row i of the matrix applied to
// feedback, then steps every line. feedback is copied first, so it may alias
// input or the slice last passed to ComputeFrame.
func (f *FeedbackDelayNetwork) Advance(input, feedback []float32) {
	copy(f.workspace, feedback[:f.n])
	for i, l := range f.lines {
		row := f.matrix[i*f.n : (i+1)*f.n]
		sum := input[i]
		for j, w := range row {
			sum += w * f.workspace[j]
		}
		l.Advance(sum)
	}
}

// SetMatrix replaces the mixing matrix, given in row-major order.
func (f *FeedbackDelayNetwork) SetMatrix(values []float32) error {
	if len(values) != f.n*f.n {
		return fmt.Errorf("%w: matrix needs %d values, got %d", status.ErrRange, f.n*f.n, len(values))
	}
	copy(f.matrix, values)
	return nil
}

// SetDelays sets every line's delay in seconds. Values beyond the maximum
// delay are clamped by the lines.
func (f *FeedbackDelayNetwork) SetDelays(values []float32) error {
	if len(values) != f.n {
		return fmt.Errorf("%w: need %d delays, got %d", status.ErrRange, f.n, len(values))
	}
	for i, v := range values {
		f.lines[i].SetDelay(v)
	}
	return nil
}

// Delays returns the effective delay of every line in seconds.
func (f *FeedbackDelayNetwork) Delays() []float32 {
	out := make([]float32, f.n)
	for i, l := range f.lines {
		out[i] = l.Delay()
	}
	return out
}

// SetInterpolation changes the read kernel of every line.
func (f *FeedbackDelayNetwork) SetInterpolation(mode Interpolation) {
	for _, l := range f.lines {
		l.SetInterpolation(mode)
	}
}

// Reset empties every line. Matrix and delays are kept.
func (f *FeedbackDelayNetwork) Reset() {
	for _, l := range f.lines {
		l.Reset()
	}
	clear(f.workspace)
}
