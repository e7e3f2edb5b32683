package analysis

import (
	"math"

	"github.com/cwbudde/algo-dsp/dsp/window"
	algofft "github.com/cwbudde/algo-fft"
)

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// crossCorrelate returns r with r[k mod N] = sum(a[i+k] * b[i]) for every
// lag k with |k| < N/2.
func crossCorrelate(a, b []float64) ([]float64, error) {
	size := nextPow2(len(a) + len(b))
	plan, err := algofft.NewPlan64(size)
	if err != nil {
		return nil, err
	}
	fa := make([]complex128, size)
	fb := make([]complex128, size)
	for i, v := range a {
		fa[i] = complex(v, 0)
	}
	for i, v := range b {
		fb[i] = complex(v, 0)
	}
	if err := plan.Forward(fa, fa); err != nil {
		return nil, err
	}
	if err := plan.Forward(fb, fb); err != nil {
		return nil, err
	}
	for i := range fa {
		fa[i] *= complex(real(fb[i]), -imag(fb[i]))
	}
	if err := plan.Inverse(fa, fa); err != nil {
		return nil, err
	}
	out := make([]float64, size)
	for i, v := range fa {
		out[i] = real(v)
	}
	return out, nil
}

// spectralWindowedInputs Hann-windows the first power-of-two frames (512 up
// to 4096) of a and b. bins is 0 when the signals are too short.
func spectralWindowedInputs(a []float64, b []float64) ([]float64, []float64, int) {
	n := min(len(a), len(b))
	if n < 512 {
		return nil, nil, 0
	}
	size := 4096
	for size > n {
		size >>= 1
	}
	hann, err := window.Hann(size)
	if err != nil {
		return nil, nil, 0
	}
	aw := make([]float64, size)
	bw := make([]float64, size)
	for i, w := range hann {
		aw[i] = a[i] * w
		bw[i] = b[i] * w
	}
	return aw, bw, size / 2
}

// spectralRMSEDB is the RMS of the per-bin dB difference of the magnitude
// spectra, DC excluded.
func spectralRMSEDB(a []float64, b []float64) float64 {
	aw, bw, bins := spectralWindowedInputs(a, b)
	if bins < 2 {
		return 0
	}
	plan, err := algofft.NewPlanReal64(len(aw))
	if err != nil {
		return spectralRMSEDBNaiveWindowed(aw, bw, bins)
	}
	sa := make([]complex128, bins+1)
	sb := make([]complex128, bins+1)
	plan.Forward(sa, aw)
	plan.Forward(sb, bw)
	var sum float64
	for k := 1; k < bins; k++ {
		d := linToDB(cmplxAbs(sa[k])) - linToDB(cmplxAbs(sb[k]))
		sum += d * d
	}
	return math.Sqrt(sum / float64(bins-1))
}

func spectralRMSEDBNaiveWindowed(aw []float64, bw []float64, bins int) float64 {
	var sum float64
	for k := 1; k < bins; k++ {
		d := linToDB(dftBinMag(aw, k)) - linToDB(dftBinMag(bw, k))
		sum += d * d
	}
	return math.Sqrt(sum / float64(bins-1))
}

func dftBinMag(x []float64, bin int) float64 {
	n := len(x)
	var re, im float64
	for i := 0; i < n; i++ {
		phi := -2.0 * math.Pi * float64(bin*i) / float64(n)
		re += x[i] * math.Cos(phi)
		im += x[i] * math.Sin(phi)
	}
	return math.Hypot(re, im)
}

func cmplxAbs(c complex128) float64 { return math.Hypot(real(c), imag(c)) }
