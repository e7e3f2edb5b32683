package dsp

import (
	"errors"
	"math"
	"testing"

	dspcore "github.com/cwbudde/algo-dsp/dsp/core"
	algofft "github.com/cwbudde/algo-fft"

	"github.com/cwbudde/algo-verse/status"
)

func TestDelayLineImpulseArrivesAfterDelay(t *testing.T) {
	const sampleRate = 1000
	d := NewDelayLine(0.05, sampleRate)
	d.SetDelay(0.01) // 10 samples

	for i := 0; i < 30; i++ {
		in := float32(0)
		if i == 0 {
			in = 1
		}
		got := d.Tick(in)
		want := float32(0)
		if i == 10 {
			want = 1
		}
		if got != want {
			t.Fatalf("sample %d: got %f want %f", i, got, want)
		}
	}
}

func TestDelayLineFractionalRead(t *testing.T) {
	d := NewDelayLine(1, 4)
	d.SetDelay(0.625) // 2.5 samples
	out := make([]float32, 6)
	for i := range out {
		in := float32(0)
		if i == 0 {
			in = 1
		}
		out[i] = d.Tick(in)
	}
	want := []float32{0, 0, 0.5, 0.5, 0, 0}
	for i := range want {
		if math.Abs(float64(out[i]-want[i])) > 1e-6 {
			t.Fatalf("out = %v, want %v", out, want)
		}
	}
}

func TestDelayLineClampsToRange(t *testing.T) {
	d := NewDelayLine(0.5, 100)
	d.SetDelay(3)
	if got := d.Delay(); math.Abs(float64(got-0.5)) > 1e-6 {
		t.Fatalf("Delay() = %f, want 0.5", got)
	}
	d.SetDelay(-1)
	if got := d.Delay(); math.Abs(float64(got-0.01)) > 1e-6 {
		t.Fatalf("Delay() = %f, want one sample (0.01)", got)
	}
}

func TestDelayLineCubicMatchesLinearOnIntegerDelay(t *testing.T) {
	lin := NewDelayLine(0.1, 100)
	cub := NewDelayLine(0.1, 100)
	cub.SetInterpolation(InterpCubic)
	lin.SetDelay(0.05)
	cub.SetDelay(0.05)
	for i := 0; i < 40; i++ {
		x := float32(math.Sin(float64(i) * 0.3))
		if a, b := lin.Tick(x), cub.Tick(x); a != b {
			t.Fatalf("sample %d: linear %f cubic %f", i, a, b)
		}
	}
}

func TestOnePoleLowpassHasUnityDCGain(t *testing.T) {
	f := NewOnePoleFilter(48000)
	f.SetPoleFromFrequency(500, false)
	var y float32
	for i := 0; i < 48000; i++ {
		y = f.Tick(1)
	}
	if !dspcore.NearlyEqual(float64(y), 1, 1e-3) {
		t.Fatalf("DC output = %f, want 1", y)
	}
}

func TestOnePoleHighpassPassesNyquist(t *testing.T) {
	f := NewOnePoleFilter(48000)
	f.SetPoleFromFrequency(500, true)
	b0, b1 := f.Coefficients()
	if b1 >= 0 || b0 <= 0 {
		t.Fatalf("unexpected highpass coefficients b0=%f b1=%f", b0, b1)
	}
	// Alternating input sits at Nyquist where the gain is b0/(1+b1) = 1.
	var y float32
	for i := 0; i < 4800; i++ {
		x := float32(1)
		if i%2 == 1 {
			x = -1
		}
		y = f.Tick(x)
	}
	if !dspcore.NearlyEqual(math.Abs(float64(y)), 1, 1e-3) {
		t.Fatalf("Nyquist output = %f, want magnitude 1", y)
	}
}

func TestOnePolePassthrough(t *testing.T) {
	f := NewOnePoleFilter(48000)
	for _, x := range []float32{0.25, -1, 3, 0} {
		if y := f.Tick(x); y != x {
			t.Fatalf("Tick(%f) = %f", x, y)
		}
	}
}

func testBlock(n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(math.Sin(float64(i)*0.17)) + 0.3*float32(math.Cos(float64(i)*1.3))
	}
	return out
}

func TestBiquadBankDisabledIsPassthrough(t *testing.T) {
	bank, err := NewBiquadBank(2, 44100)
	if err != nil {
		t.Fatal(err)
	}
	bank.Configure(BiquadDisabled, 1000, 0, 0.7)

	in := [][]float32{testBlock(128), testBlock(128)}
	out := [][]float32{make([]float32, 128), make([]float32, 128)}
	bank.Process(128, in, out)
	for ch := range in {
		for i := range in[ch] {
			if math.Abs(float64(out[ch][i]-in[ch][i])) > 1e-6 {
				t.Fatalf("channel %d sample %d: got %f want %f", ch, i, out[ch][i], in[ch][i])
			}
		}
	}
}

func TestBiquadOutputMatchesImpulseResponseConvolution(t *testing.T) {
	const n = 64
	f := NewBiquadFilter(48000)
	f.Configure(BiquadLowpass, 2000, 0, 0.9)

	h := make([]float32, n)
	for i := range h {
		x := float32(0)
		if i == 0 {
			x = 1
		}
		h[i] = f.Tick(x)
	}
	f.Reset()

	x := testBlock(n)
	direct := make([]float32, n)
	for i, v := range x {
		direct[i] = f.Tick(v)
	}

	conv := make([]float32, 2*n-1)
	if err := algofft.ConvolveReal(conv, x, h); err != nil {
		t.Fatalf("ConvolveReal: %v", err)
	}
	for i := 0; i < n; i++ {
		if math.Abs(float64(conv[i]-direct[i])) > 1e-3 {
			t.Fatalf("sample %d: convolution %f, filter %f", i, conv[i], direct[i])
		}
	}
}

func TestBiquadCoefficientsSurviveEdgeFrequencies(t *testing.T) {
	for _, freq := range []float64{-10, 0, 22050, 1e6} {
		c := BiquadCoefficients(BiquadLowpass, freq, 0, 0.7, 44100)
		if c.B0 == 0 && c.B1 == 0 && c.B2 == 0 {
			t.Fatalf("frequency %g produced a silent section", freq)
		}
	}
}

func TestParseBiquadType(t *testing.T) {
	for typ := BiquadLowpass; typ <= BiquadDisabled; typ++ {
		got, err := ParseBiquadType(typ.String())
		if err != nil || got != typ {
			t.Fatalf("ParseBiquadType(%q) = %v, %v", typ.String(), got, err)
		}
	}
	if _, err := ParseBiquadType("comb"); !errors.Is(err, status.ErrRange) {
		t.Fatalf("unknown name: %v", err)
	}
}

func TestFilterBankChannelCount(t *testing.T) {
	bank, err := NewBiquadBank(1, 48000)
	if err != nil {
		t.Fatal(err)
	}
	bank.Configure(BiquadHighpass, 300, 0, 0.7)
	first := bank.Filter(0)
	if err := bank.SetChannelCount(3); err != nil {
		t.Fatal(err)
	}
	if bank.Filter(0) != first {
		t.Fatal("growing replaced a retained channel")
	}
	if bank.Filter(2).Coefficients() != first.Coefficients() {
		t.Fatal("new channel did not receive the bank configuration")
	}
	if err := bank.SetChannelCount(0); !errors.Is(err, status.ErrRange) {
		t.Fatalf("SetChannelCount(0) = %v", err)
	}
	if bank.ChannelCount() != 3 {
		t.Fatal("failed resize changed the bank")
	}
	if _, err := NewBiquadBank(0, 48000); !errors.Is(err, status.ErrRange) {
		t.Fatalf("NewBiquadBank(0) = %v", err)
	}
}

func TestFDNPermutationDecaysGeometrically(t *testing.T) {
	const g = 0.8
	fdn, err := NewFeedbackDelayNetwork(2, 0.01, 1000)
	if err != nil {
		t.Fatal(err)
	}
	if err := fdn.SetDelays([]float32{0, 0}); err != nil {
		t.Fatal(err)
	}
	if err := fdn.SetMatrix([]float32{0, g, g, 0}); err != nil {
		t.Fatal(err)
	}

	frame := make([]float32, 2)
	zero := make([]float32, 2)
	fdn.ComputeFrame(frame)
	fdn.Advance([]float32{1, 0}, frame)

	for k := 1; k <= 30; k++ {
		fdn.ComputeFrame(frame)
		mag := math.Abs(float64(frame[0])) + math.Abs(float64(frame[1]))
		want := math.Pow(g, float64(k-1))
		if math.Abs(mag-want) > 1e-5 {
			t.Fatalf("step %d: magnitude %g, want %g", k, mag, want)
		}
		fdn.Advance(zero, frame)
	}
}

func TestFDNAdvanceToleratesAliasing(t *testing.T) {
	build := func() *FeedbackDelayNetwork {
		f, _ := NewFeedbackDelayNetwork(3, 0.01, 1000)
		_ = f.SetMatrix([]float32{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9})
		return f
	}
	a, b := build(), build()
	fa, fb := make([]float32, 3), make([]float32, 3)
	for step := 0; step < 20; step++ {
		a.ComputeFrame(fa)
		b.ComputeFrame(fb)
		for i := range fa {
			fa[i] += float32(step % 3)
			fb[i] += float32(step % 3)
		}
		a.Advance(append([]float32(nil), fa...), append([]float32(nil), fa...))
		b.Advance(fb, fb)
	}
	a.ComputeFrame(fa)
	b.ComputeFrame(fb)
	for i := range fa {
		if fa[i] != fb[i] {
			t.Fatalf("line %d diverged: %f vs %f", i, fa[i], fb[i])
		}
	}
}

func TestFDNRejectsWrongLengths(t *testing.T) {
	fdn, err := NewFeedbackDelayNetwork(2, 1, 100)
	if err != nil {
		t.Fatal(err)
	}
	if err := fdn.SetMatrix([]float32{1, 2, 3}); !errors.Is(err, status.ErrRange) {
		t.Fatalf("SetMatrix: %v", err)
	}
	if err := fdn.SetDelays([]float32{0.1}); !errors.Is(err, status.ErrRange) {
		t.Fatalf("SetDelays: %v", err)
	}
	if _, err := NewFeedbackDelayNetwork(0, 1, 100); !errors.Is(err, status.ErrRange) {
		t.Fatalf("zero lines: %v", err)
	}
}

func TestAllocFloatArray(t *testing.T) {
	for _, n := range []int{1, 3, 128, 1000} {
		buf, err := AllocFloatArray(n)
		if err != nil {
			t.Fatal(err)
		}
		if len(buf) != n || !IsAligned(buf) {
			t.Fatalf("n=%d: len %d aligned %v", n, len(buf), IsAligned(buf))
		}
		for i := range buf {
			buf[i] = 7
		}
		FreeFloatArray(buf)

		again, err := AllocFloatArray(n)
		if err != nil {
			t.Fatal(err)
		}
		for i, v := range again {
			if v != 0 {
				t.Fatalf("n=%d: reused buffer not zeroed at %d", n, i)
			}
		}
		if !IsAligned(again) {
			t.Fatal("reused buffer lost alignment")
		}
	}
	if _, err := AllocFloatArray(0); !errors.Is(err, status.ErrMemory) {
		t.Fatalf("AllocFloatArray(0) = %v", err)
	}
}
