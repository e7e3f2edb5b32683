// Package irsynth synthesizes room impulse responses for the convolver node.
package irsynth

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/cwbudde/algo-verse/dsp"
)

// RoomConfig controls room IR generation. Decay times are RT60 values for
// the bands below and above Crossover.
type RoomConfig struct {
	SampleRate int
	DurationS  float64 // 0 derives the length from the longest decay
	Seed       int64
	PreDelayS  float64
	EarlyCount int
	EarlyLevel float64
	LateLevel  float64
	LowRT60    float64
	HighRT60   float64
	Crossover  float64
	FadeOutS   float64 // cosine fade at the end; 0 = none

	NormalizePeak float64
}

// DefaultRoomConfig returns a medium room at 48 kHz.
func DefaultRoomConfig() RoomConfig {
	return RoomConfig{
		SampleRate:    48000,
		Seed:          1,
		PreDelayS:     0.004,
		EarlyCount:    24,
		EarlyLevel:    0.4,
		LateLevel:     0.2,
		LowRT60:       1.2,
		HighRT60:      0.4,
		Crossover:     2500,
		FadeOutS:      0.01,
		NormalizePeak: 0.9,
	}
}

func (c *RoomConfig) Validate() error {
	if c.SampleRate < 8000 {
		return fmt.Errorf("sample rate too low: %d", c.SampleRate)
	}
	if c.DurationS < 0 || c.PreDelayS < 0 {
		return fmt.Errorf("duration and pre-delay must be >= 0")
	}
	if c.EarlyCount < 0 {
		return fmt.Errorf("early count must be >= 0")
	}
	if c.EarlyLevel < 0 || c.LateLevel < 0 {
		return fmt.Errorf("levels must be >= 0")
	}
	if c.LowRT60 <= 0 || c.HighRT60 <= 0 {
		return fmt.Errorf("decay times must be > 0")
	}
	if c.Crossover <= 0 || c.Crossover >= 0.5*float64(c.SampleRate) {
		return fmt.Errorf("crossover must be in (0, %d)", c.SampleRate/2)
	}
	if c.NormalizePeak <= 0 {
		return fmt.Errorf("normalize peak must be > 0")
	}
	return nil
}

// Length returns the IR length in samples.
func (c *RoomConfig) Length() int {
	d := c.DurationS
	if d == 0 {
		d = c.PreDelayS + 1.2*math.Max(c.LowRT60, c.HighRT60)
	}
	return max(int(math.Round(d*float64(c.SampleRate))), 1)
}

// GenerateRoom returns a mono IR: a unit direct impulse, early reflections
// spread over 50 ms after the pre-delay and a diffuse two-band tail.
func GenerateRoom(cfg RoomConfig) ([]float32, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	n := cfg.Length()
	sr := float64(cfg.SampleRate)
	buf := make([]float64, n)
	rng := rand.New(rand.NewSource(cfg.Seed))

	start := int(cfg.PreDelayS * sr)
	if start < n {
		buf[start] = 1
	}
	for i := 0; i < cfg.EarlyCount; i++ {
		t := 0.001 + 0.049*rng.Float64()
		idx := start + int(t*sr)
		if idx >= n {
			continue
		}
		sign := 1.0
		if rng.Intn(2) == 0 {
			sign = -1
		}
		buf[idx] += sign * cfg.EarlyLevel * (0.3 + 0.7*rng.Float64()) * math.Exp(-t*20)
	}

	if cfg.LateLevel > 0 {
		split := dsp.NewOnePoleFilter(float32(cfg.SampleRate))
		split.SetPoleFromFrequency(float32(cfg.Crossover), false)
		// 60 dB = ln(1000) nepers of amplitude
		lowRate := math.Log(1000) / cfg.LowRT60
		highRate := math.Log(1000) / cfg.HighRT60
		for i := start; i < n; i++ {
			t := float64(i-start) / sr
			noise := rng.NormFloat64()
			low := float64(split.Tick(float32(noise)))
			high := noise - low
			buf[i] += cfg.LateLevel * (low*math.Exp(-lowRate*t) + high*math.Exp(-highRate*t))
		}
	}

	applyFadeOut(buf, cfg.FadeOutS, cfg.SampleRate)

	peak := 1e-12
	for _, v := range buf {
		peak = math.Max(peak, math.Abs(v))
	}
	s := cfg.NormalizePeak / peak
	out := make([]float32, n)
	for i, v := range buf {
		out[i] = float32(v * s)
	}
	return out, nil
}

func applyFadeOut(buf []float64, fadeS float64, sampleRate int) {
	fade := min(int(fadeS*float64(sampleRate)), len(buf))
	if fade <= 1 {
		return
	}
	start := len(buf) - fade
	for i := 0; i < fade; i++ {
		buf[start+i] *= 0.5 * (1 + math.Cos(math.Pi*float64(i)/float64(fade-1)))
	}
}
