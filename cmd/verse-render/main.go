package main

import (
	"flag"
	"fmt"
	"log/slog"
	"math"
	"os"

	"github.com/cwbudde/algo-verse/analysis"
	"github.com/cwbudde/algo-verse/graph"
	"github.com/cwbudde/algo-verse/internal/render"
	"github.com/cwbudde/algo-verse/internal/wavio"
	"github.com/cwbudde/algo-verse/preset"
)

func main() {
	presetPath := flag.String("preset", "assets/presets/default.json", "Preset JSON file path")
	duration := flag.Float64("duration", 2.0, "Duration in seconds")
	decayDBFS := flag.Float64("decay-dbfs", math.Inf(1), "Auto-stop when block RMS falls below this dBFS (e.g. -90). Disabled by default")
	decayHoldBlocks := flag.Int("decay-hold-blocks", 6, "Consecutive below-threshold blocks required to stop in auto-decay mode")
	minDuration := flag.Float64("min-duration", 0.5, "Minimum render duration in seconds when using -decay-dbfs")
	maxDuration := flag.Float64("max-duration", 20.0, "Maximum render duration in seconds when using -decay-dbfs")
	sampleRate := flag.Int("sample-rate", 0, "Override the preset sample rate in Hz")
	blockSize := flag.Int("block-size", 0, "Override the preset block size")
	channels := flag.Int("channels", 0, "Override the preset output channel count")
	noMix := flag.Bool("no-mix", false, "Do not spread mono or fold stereo output to the channel count")
	output := flag.String("output", "output.wav", "Output WAV file path")
	verbose := flag.Bool("v", false, "Log simulation events")
	flag.Parse()

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	g, err := preset.LoadJSON(*presetPath)
	if err != nil {
		die("Error loading preset %q: %v", *presetPath, err)
	}
	if *sampleRate > 0 {
		g.SampleRate = *sampleRate
	}
	if *blockSize > 0 {
		g.BlockSize = *blockSize
	}
	if *channels > 0 {
		g.Channels = *channels
	}

	b, err := preset.Build(g, graph.WithLogger(logger))
	if err != nil {
		die("Error building preset %q: %v", *presetPath, err)
	}

	opts := render.DefaultOptions()
	opts.Channels = g.Channels
	opts.Seconds = *duration
	opts.DecayDBFS = *decayDBFS
	opts.HoldBlocks = *decayHoldBlocks
	opts.MinSeconds = *minDuration
	opts.MaxSeconds = *maxDuration
	opts.Mix = !*noMix

	fmt.Printf("Rendering %s at %d Hz, block %d, %d channels...\n", *presetPath, g.SampleRate, g.BlockSize, g.Channels)
	samples, err := render.Run(b.Simulation, opts)
	if err != nil {
		die("Error rendering: %v", err)
	}
	frames := len(samples) / g.Channels
	if opts.AutoStop() {
		fmt.Printf("Auto-stop at %d frames (%.3fs), threshold %.1f dBFS\n", frames, float64(frames)/float64(g.SampleRate), *decayDBFS)
	}

	if err := wavio.WriteInterleaved(*output, samples, g.Channels, g.SampleRate); err != nil {
		die("Error writing WAV file: %v", err)
	}
	ac, err := analysis.AnalyzeAcoustics(render.ToMono64(samples, g.Channels), g.SampleRate)
	if err != nil || math.IsNaN(ac.RT60) {
		fmt.Printf("Successfully wrote %s (%d frames)\n", *output, frames)
		return
	}
	fmt.Printf("Successfully wrote %s (%d frames, RT60 %.3fs, EDT %.3fs, C80 %.1f dB)\n", *output, frames, ac.RT60, ac.EDT, ac.C80)
}

func die(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
