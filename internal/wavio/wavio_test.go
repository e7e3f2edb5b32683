package wavio

import (
	"math"
	"path/filepath"
	"testing"
)

func TestWriteThenReadStereo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "stereo.wav")
	frames := 64
	samples := make([]float32, frames*2)
	for i := 0; i < frames; i++ {
		samples[i*2] = 0.5
		samples[i*2+1] = -0.25
	}
	if err := WriteInterleaved(path, samples, 2, 8000); err != nil {
		t.Fatalf("write: %v", err)
	}

	chans, rate, err := Read(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if rate != 8000 || len(chans) != 2 || len(chans[0]) != frames {
		t.Fatalf("got rate=%d channels=%d frames=%d", rate, len(chans), len(chans[0]))
	}
	l, r := chans[0][10], chans[1][10]
	if l <= 0 || r >= 0 {
		t.Fatalf("samples = (%f, %f), want positive left and negative right", l, r)
	}
	// 16-bit quantization
	if ratio := float64(l / r); math.Abs(ratio+2) > 1e-3 {
		t.Fatalf("left/right = %f, want -2", ratio)
	}

	mono, _, err := ReadMono(path)
	if err != nil {
		t.Fatal(err)
	}
	if want := (l + r) / 2; math.Abs(float64(mono[10]-want)) > 1e-6*math.Abs(float64(l)) {
		t.Fatalf("mono = %f, want %f", mono[10], want)
	}
}

func TestWriteRejectsRaggedFrames(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.wav")
	if err := WriteInterleaved(path, make([]float32, 5), 2, 8000); err == nil {
		t.Fatal("expected error for 5 samples over 2 channels")
	}
}

func TestResampleIfNeededChangesLength(t *testing.T) {
	in := make([]float32, 4800)
	for i := range in {
		in[i] = float32(math.Sin(2 * math.Pi * 440 * float64(i) / 48000))
	}
	same, err := ResampleIfNeeded(in, 48000, 48000)
	if err != nil || len(same) != len(in) {
		t.Fatalf("same-rate resample: len=%d err=%v", len(same), err)
	}
	out, err := ResampleIfNeeded(in, 48000, 24000)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) < 2300 || len(out) > 2500 {
		t.Fatalf("downsampled length = %d, want about 2400", len(out))
	}
}

func TestDeinterleave(t *testing.T) {
	got := Deinterleave([]float32{1, 2, 3, 4, 5, 6}, 3)
	if len(got) != 3 || got[0][1] != 4 || got[2][0] != 3 {
		t.Fatalf("Deinterleave = %v", got)
	}
}
