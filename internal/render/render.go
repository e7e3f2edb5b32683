// Package render drives a simulation block by block for the offline
// commands.
package render

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/cwbudde/algo-verse/analysis"
	"github.com/cwbudde/algo-verse/graph"
)

// Options controls an offline render. With DecayDBFS finite the render stops
// once HoldBlocks consecutive blocks after MinSeconds fall below the
// threshold, and never runs past MaxSeconds. Otherwise exactly Seconds are
// rendered.
type Options struct {
	Channels   int
	Seconds    float64
	DecayDBFS  float64
	HoldBlocks int
	MinSeconds float64
	MaxSeconds float64
	Mix        bool
}

// DefaultOptions renders two seconds of stereo without auto-stop.
func DefaultOptions() Options {
	return Options{
		Channels:   2,
		Seconds:    2,
		DecayDBFS:  math.Inf(1),
		HoldBlocks: 6,
		MinSeconds: 0.5,
		MaxSeconds: 20,
		Mix:        true,
	}
}

// AutoStop reports whether the render ends on decay.
func (o Options) AutoStop() bool { return !math.IsInf(o.DecayDBFS, 1) && !math.IsNaN(o.DecayDBFS) }

// Run renders sim into one interleaved buffer. Whole blocks are rendered and
// the result is truncated to the requested length.
func Run(sim *graph.Simulation, o Options) ([]float32, error) {
	if o.Channels < 1 {
		return nil, fmt.Errorf("channels must be >= 1, got %d", o.Channels)
	}
	sr := float64(sim.SampleRate())
	bs := sim.BlockSize()
	block := make([]float32, bs*o.Channels)

	if !o.AutoStop() {
		total := max(int(sr*o.Seconds), 1)
		samples := make([]float32, 0, (total+bs)*o.Channels)
		for frames := 0; frames < total; frames += bs {
			if err := sim.GetBlock(o.Channels, o.Mix, block); err != nil {
				return nil, err
			}
			samples = append(samples, block...)
		}
		return samples[:total*o.Channels], nil
	}

	minFrames := int(sr * o.MinSeconds)
	maxFrames := max(int(sr*o.MaxSeconds), minFrames, bs)
	hold := max(o.HoldBlocks, 1)
	threshold := math.Pow(10, o.DecayDBFS/20)

	samples := make([]float32, 0, max(minFrames, bs)*o.Channels)
	below := 0
	frames := 0
	for frames < maxFrames {
		if err := sim.GetBlock(o.Channels, o.Mix, block); err != nil {
			return nil, err
		}
		samples = append(samples, block...)
		frames += bs
		if frames < minFrames {
			continue
		}
		if analysis.RMS(block) < threshold {
			below++
			if below >= hold {
				break
			}
		} else {
			below = 0
		}
	}
	return samples[:min(frames, maxFrames)*o.Channels], nil
}

// ToMono64 averages interleaved frames into one float64 channel.
func ToMono64(samples []float32, channels int) []float64 {
	if channels < 1 {
		return nil
	}
	out := make([]float64, len(samples)/channels)
	for i := range out {
		var sum float64
		for c := 0; c < channels; c++ {
			sum += float64(samples[i*channels+c])
		}
		out[i] = sum / float64(channels)
	}
	return out
}

// ParseWorkers accepts a positive integer or "auto", which yields 0.
func ParseWorkers(raw string) (int, error) {
	v := strings.ToLower(strings.TrimSpace(raw))
	if v == "" {
		return 0, fmt.Errorf("empty value (use integer >= 1 or 'auto')")
	}
	if v == "auto" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%q (use integer >= 1 or 'auto')", raw)
	}
	if n < 1 {
		return 0, fmt.Errorf("%d (must be >= 1 or 'auto')", n)
	}
	return n, nil
}
