package dsp

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-verse/status"
)

// Feedback matrices are row-major n*n slices as taken by
// FeedbackDelayNetwork.SetMatrix.

// IdentityMatrix returns the n*n identity.
func IdentityMatrix(n int) []float32 {
	m := make([]float32, n*n)
	for i := 0; i < n; i++ {
		m[i*n+i] = 1
	}
	return m
}

// HadamardMatrix returns the normalized Sylvester Hadamard matrix. n must be
// a power of two.
func HadamardMatrix(n int) ([]float32, error) {
	if n < 1 || n&(n-1) != 0 {
		return nil, fmt.Errorf("%w: hadamard size %d is not a power of two", status.ErrRange, n)
	}
	scale := float32(1 / math.Sqrt(float64(n)))
	m := make([]float32, n*n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			// H[i][j] = (-1)^popcount(i&j)
			v := scale
			for b := i & j; b != 0; b &= b - 1 {
				v = -v
			}
			m[i*n+j] = v
		}
	}
	return m, nil
}

// HouseholderMatrix returns I - (2/n)*ones, which is orthogonal for any n.
func HouseholderMatrix(n int) []float32 {
	m := make([]float32, n*n)
	off := -2 / float32(n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			m[i*n+j] = off
		}
		m[i*n+i] += 1
	}
	return m
}

// RT60Gains returns per-line feedback gains so that a signal circulating
// through a line of the given delay decays by 60 dB in rt60 seconds.
func RT60Gains(delays []float32, rt60 float32) ([]float32, error) {
	if !(rt60 > 0) {
		return nil, fmt.Errorf("%w: rt60 %g must be positive", status.ErrRange, rt60)
	}
	g := make([]float32, len(delays))
	for i, d := range delays {
		g[i] = float32(math.Pow(10, -3*float64(d)/float64(rt60)))
	}
	return g, nil
}

// ScaleRows multiplies row i of the n*n matrix m by gains[i] in place. Row i
// feeds line i, so this applies a per-line loop gain.
func ScaleRows(m, gains []float32) error {
	n := len(gains)
	if len(m) != n*n {
		return fmt.Errorf("%w: matrix has %d entries for %d gains", status.ErrRange, len(m), n)
	}
	for i, g := range gains {
		row := m[i*n : (i+1)*n]
		for j := range row {
			row[j] *= g
		}
	}
	return nil
}
