package analysis

import (
	"math"
	"math/rand"
	"testing"
)

func TestCompareIdenticalSignalsHasLowDistance(t *testing.T) {
	sr := 48000
	x := makeDecaySine(sr, 440.0, 1.5, 0.7)
	m := Compare(x, x, sr)
	if m.Score > 0.05 {
		t.Fatalf("expected very low score for identical signals, got %f", m.Score)
	}
	if m.Similarity < 0.85 {
		t.Fatalf("expected high similarity for identical signals, got %f", m.Similarity)
	}
	if m.LagSamples != 0 {
		t.Fatalf("identical signals aligned at lag %d", m.LagSamples)
	}
}

func TestCompareDifferentSignalsHasHigherDistance(t *testing.T) {
	sr := 48000
	a := makeDecaySine(sr, 261.63, 1.8, 0.8)
	b := makeDecaySine(sr, 330.0, 0.8, 0.25)
	m := Compare(a, b, sr)
	if m.Score < 0.25 {
		t.Fatalf("expected higher score for different signals, got %f", m.Score)
	}
}

func TestCompareDegenerateInputs(t *testing.T) {
	tests := []struct {
		name string
		ref  []float64
		cand []float64
		sr   int
	}{
		{"empty reference", nil, []float64{1}, 48000},
		{"silent candidate", []float64{1, 0.5}, make([]float64, 10), 48000},
		{"bad sample rate", []float64{1}, []float64{1}, 0},
		{"too short", []float64{1, 0.5, 0.25}, []float64{1, 0.5, 0.25}, 48000},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if m := Compare(tc.ref, tc.cand, tc.sr); m.Score != 1 || m.Similarity != 0 {
				t.Fatalf("score=%f similarity=%f, want 1 and 0", m.Score, m.Similarity)
			}
		})
	}
}

func TestEstimateLagFindsPositiveShift(t *testing.T) {
	const (
		n      = 8192
		shift  = 237
		maxLag = 600
	)
	ref := randomSignal(n, 7)
	cand := make([]float64, n)
	copy(cand, ref[shift:])

	got := estimateLag(ref, cand, maxLag)
	if got != shift {
		t.Fatalf("estimateLag() = %d, want %d", got, shift)
	}
}

func TestEstimateLagFindsNegativeShift(t *testing.T) {
	const (
		n      = 8192
		shift  = -191
		maxLag = 600
	)
	ref := randomSignal(n, 11)
	cand := make([]float64, n)
	copy(cand[-shift:], ref)

	got := estimateLag(ref, cand, maxLag)
	if got != shift {
		t.Fatalf("estimateLag() = %d, want %d", got, shift)
	}
}

func TestEstimateLagFFTMatchesExhaustive(t *testing.T) {
	const (
		n      = 16000
		shift  = 443
		maxLag = 1000
	)
	ref := randomSignal(n, 23)
	cand := make([]float64, n)
	copy(cand, ref[shift:])

	got := estimateLag(ref, cand, maxLag)
	want := estimateLagExhaustive(ref, cand, maxLag)
	if got != want {
		t.Fatalf("estimateLag() = %d, exhaustive = %d", got, want)
	}
}

func TestSpectralRMSEDBFFTMatchesNaive(t *testing.T) {
	a := randomSignal(3000, 5)
	b := randomSignal(3000, 6)
	aw, bw, bins := spectralWindowedInputs(a, b)
	if len(aw) != 2048 || bins != 1024 {
		t.Fatalf("window size %d, bins %d", len(aw), bins)
	}
	got := spectralRMSEDB(a, b)
	want := spectralRMSEDBNaiveWindowed(aw, bw, bins)
	if math.Abs(got-want) > 1e-6*math.Max(1, want) {
		t.Fatalf("fft %f, naive %f", got, want)
	}
	if same := spectralRMSEDB(a, a); same > 1e-9 {
		t.Fatalf("identical spectra differ by %g dB", same)
	}
}

func TestRT60OfExponentialDecay(t *testing.T) {
	const sr = 48000
	for _, rt := range []float64{0.3, 1.2} {
		// amplitude falls 60 dB in rt seconds
		x := randomSignal(int(rt*1.5*sr), 3)
		for i := range x {
			x[i] *= math.Pow(10, -3*float64(i)/(rt*sr))
		}
		got := RT60(x, sr)
		if math.Abs(got-rt)/rt > 0.1 {
			t.Fatalf("RT60 = %f, want %f", got, rt)
		}
	}
	if !math.IsNaN(RT60(make([]float64, 100), sr)) {
		t.Fatal("silent signal has an RT60")
	}
}

func TestAnalyzeAcoustics(t *testing.T) {
	const sr, rt = 48000, 0.5
	x := randomSignal(sr, 9)
	for i := range x {
		x[i] *= math.Pow(10, -3*float64(i)/(rt*sr))
	}
	x[0] = 2
	a, err := AnalyzeAcoustics(x, sr)
	if err != nil {
		t.Fatal(err)
	}
	if a.PeakIndex != 0 {
		t.Fatalf("PeakIndex = %d", a.PeakIndex)
	}
	if math.Abs(a.RT60-rt)/rt > 0.1 || math.Abs(a.EDT-rt)/rt > 0.2 {
		t.Fatalf("RT60 = %f, EDT = %f, want about %f", a.RT60, a.EDT, rt)
	}
	if a.C80 < a.C50 || a.D50 <= 0 || a.D50 >= 1 {
		t.Fatalf("C50 = %f, C80 = %f, D50 = %f", a.C50, a.C80, a.D50)
	}

	silent, err := AnalyzeAcoustics(make([]float64, 100), sr)
	if err != nil {
		t.Fatal(err)
	}
	if !math.IsNaN(silent.RT60) {
		t.Fatalf("silent RT60 = %f", silent.RT60)
	}
	if f := silent.Finite(); f.RT60 != 0 || f.EDT != 0 || f.C50 != 0 || f.C80 != 0 {
		t.Fatalf("Finite() = %+v", f)
	}
	if _, err := AnalyzeAcoustics(nil, sr); err == nil {
		t.Fatal("empty input accepted")
	}
}

func TestRMS(t *testing.T) {
	if got := RMS([]float32{1, -1, 1, -1}); got != 1 {
		t.Fatalf("RMS = %f", got)
	}
	if RMS(nil) != 0 {
		t.Fatal("RMS(nil) != 0")
	}
}

func makeDecaySine(sr int, freq float64, durationSec float64, decaySec float64) []float64 {
	n := max(int(float64(sr)*durationSec), 1)
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		t := float64(i) / float64(sr)
		out[i] = math.Exp(-t/decaySec) * math.Sin(2*math.Pi*freq*t)
	}
	return out
}

func randomSignal(n int, seed int64) []float64 {
	rng := rand.New(rand.NewSource(seed))
	out := make([]float64, n)
	for i := range out {
		out[i] = rng.Float64()*2 - 1
	}
	return out
}

func TestCompareReportsDominantComponent(t *testing.T) {
	sr := 48000
	a := makeDecaySine(sr, 261.63, 1.8, 0.8)
	b := makeDecaySine(sr, 330.0, 0.8, 0.25)
	m := Compare(a, b, sr)
	sum := WeightTime*m.TimeNorm + WeightEnvelope*m.EnvelopeNorm + WeightSpectral*m.SpectralNorm + WeightDecay*m.DecayNorm
	if math.Abs(sum-m.Score) > 1e-12 {
		t.Fatalf("score %f is not the weighted sum %f", m.Score, sum)
	}
	switch m.Dominant {
	case "time", "envelope", "spectral", "decay":
	default:
		t.Fatalf("unexpected dominant factor %q", m.Dominant)
	}
}

func TestMetricsFiniteZeroesNaN(t *testing.T) {
	m := Metrics{RefRT60: math.NaN(), CandRT60: 1.5, RefDecayDBPerS: math.Inf(-1)}.Finite()
	if m.RefRT60 != 0 || m.RefDecayDBPerS != 0 || m.CandRT60 != 1.5 {
		t.Fatalf("Finite() = %+v", m)
	}
}
