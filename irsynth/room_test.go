package irsynth

import (
	"math"
	"testing"

	"github.com/cwbudde/algo-verse/analysis"
)

func TestGenerateRoomValidatesConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*RoomConfig)
	}{
		{"low sample rate", func(c *RoomConfig) { c.SampleRate = 4000 }},
		{"negative duration", func(c *RoomConfig) { c.DurationS = -1 }},
		{"zero decay", func(c *RoomConfig) { c.LowRT60 = 0 }},
		{"crossover above nyquist", func(c *RoomConfig) { c.Crossover = 30000 }},
		{"negative early count", func(c *RoomConfig) { c.EarlyCount = -2 }},
		{"zero peak", func(c *RoomConfig) { c.NormalizePeak = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultRoomConfig()
			tt.mutate(&cfg)
			if _, err := GenerateRoom(cfg); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestGenerateRoomIsDeterministicAndNormalized(t *testing.T) {
	cfg := DefaultRoomConfig()
	cfg.SampleRate = 16000
	a, err := GenerateRoom(cfg)
	if err != nil {
		t.Fatal(err)
	}
	b, err := GenerateRoom(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if len(a) != cfg.Length() || len(a) != len(b) {
		t.Fatalf("lengths %d and %d, want %d", len(a), len(b), cfg.Length())
	}
	peak := 0.0
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("non-deterministic output at %d", i)
		}
		peak = math.Max(peak, math.Abs(float64(a[i])))
	}
	if math.Abs(peak-cfg.NormalizePeak) > 1e-6 {
		t.Fatalf("peak %f, want %f", peak, cfg.NormalizePeak)
	}
	pre := int(cfg.PreDelayS * float64(cfg.SampleRate))
	for i := 0; i < pre; i++ {
		if a[i] != 0 {
			t.Fatalf("sample %d before the pre-delay is %f", i, a[i])
		}
	}
}

func TestGenerateRoomDecayFollowsRT60(t *testing.T) {
	cfg := DefaultRoomConfig()
	cfg.SampleRate = 16000
	cfg.EarlyCount = 0
	cfg.FadeOutS = 0
	cfg.LowRT60 = 0.8
	cfg.HighRT60 = 0.8
	cfg.DurationS = 1.6
	ir, err := GenerateRoom(cfg)
	if err != nil {
		t.Fatal(err)
	}
	x := make([]float64, len(ir))
	for i, v := range ir {
		x[i] = float64(v)
	}
	got := analysis.RT60(x, cfg.SampleRate)
	if math.Abs(got-0.8) > 0.15 {
		t.Fatalf("RT60 = %f, want about 0.8", got)
	}
}
