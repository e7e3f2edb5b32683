package main

import (
	"flag"
	"fmt"
	"math"
	"os"

	"github.com/cwbudde/algo-verse/analysis"
	"github.com/cwbudde/algo-verse/internal/wavio"
	"github.com/cwbudde/algo-verse/irsynth"
)

func main() {
	cfg := irsynth.DefaultRoomConfig()

	output := flag.String("output", "assets/ir/room_48k.wav", "Output WAV path")
	flag.IntVar(&cfg.SampleRate, "sample-rate", cfg.SampleRate, "Output sample rate")
	flag.Float64Var(&cfg.DurationS, "duration", cfg.DurationS, "IR length in seconds (0 derives it from the decay)")
	flag.Int64Var(&cfg.Seed, "seed", cfg.Seed, "Random seed")
	flag.Float64Var(&cfg.PreDelayS, "pre-delay", cfg.PreDelayS, "Delay before the direct impulse (s)")
	flag.IntVar(&cfg.EarlyCount, "early", cfg.EarlyCount, "Number of early reflections")
	flag.Float64Var(&cfg.EarlyLevel, "early-level", cfg.EarlyLevel, "Early reflection level")
	flag.Float64Var(&cfg.LateLevel, "late", cfg.LateLevel, "Diffuse late-tail level")
	flag.Float64Var(&cfg.LowRT60, "rt60", cfg.LowRT60, "Decay time below the crossover (s)")
	flag.Float64Var(&cfg.HighRT60, "high-rt60", cfg.HighRT60, "Decay time above the crossover (s)")
	flag.Float64Var(&cfg.Crossover, "crossover", cfg.Crossover, "Band split frequency (Hz)")
	flag.Float64Var(&cfg.FadeOutS, "fade", cfg.FadeOutS, "Cosine fade-out length (s)")
	flag.Float64Var(&cfg.NormalizePeak, "normalize", cfg.NormalizePeak, "Peak normalization target")
	flag.Parse()

	ir, err := irsynth.GenerateRoom(cfg)
	if err != nil {
		die("irsynth error: %v", err)
	}
	if err := wavio.WriteInterleaved(*output, ir, 1, cfg.SampleRate); err != nil {
		die("wav write error: %v", err)
	}

	x := make([]float64, len(ir))
	peak := 0.0
	for i, v := range ir {
		x[i] = float64(v)
		peak = math.Max(peak, math.Abs(x[i]))
	}
	fmt.Printf("Wrote %s\n", *output)
	fmt.Printf("SampleRate: %d Hz, Duration: %.3f s, Samples: %d\n", cfg.SampleRate, float64(len(ir))/float64(cfg.SampleRate), len(ir))
	fmt.Printf("Peak: %.6f, RMS: %.6f, RT60: %.3f s\n", peak, analysis.RMS(ir), analysis.RT60(x, cfg.SampleRate))
}

func die(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
