package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
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
	referencePath := flag.String("reference", "reference/room.wav", "Reference WAV path")
	candidatePath := flag.String("candidate", "", "Candidate WAV path; if empty, render the preset")
	presetPath := flag.String("preset", "assets/presets/default.json", "Preset JSON path for the rendered candidate")
	sampleRate := flag.Int("sample-rate", 48000, "Analysis sample rate in Hz")
	decayDBFS := flag.Float64("decay-dbfs", -90.0, "Auto-stop threshold in dBFS for the rendered candidate")
	decayHoldBlocks := flag.Int("decay-hold-blocks", 6, "Consecutive below-threshold blocks required for stop")
	minDuration := flag.Float64("min-duration", 0.5, "Minimum rendered duration in seconds")
	maxDuration := flag.Float64("max-duration", 20.0, "Maximum rendered duration in seconds")
	writeCandidate := flag.String("write-candidate", "", "Optional path to write the rendered candidate WAV")
	jsonOut := flag.Bool("json", false, "Print metrics as JSON")
	bands := flag.Bool("bands", false, "Also compare STFT band levels per time window after alignment")
	flag.Parse()

	ref, err := readMono(*referencePath, *sampleRate)
	if err != nil {
		die("failed to read reference: %v", err)
	}

	var cand []float64
	if *candidatePath != "" {
		if cand, err = readMono(*candidatePath, *sampleRate); err != nil {
			die("failed to read candidate: %v", err)
		}
	} else {
		g, err := preset.LoadJSON(*presetPath)
		if err != nil {
			die("failed to load preset: %v", err)
		}
		g.SampleRate = *sampleRate
		b, err := preset.Build(g, graph.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
		if err != nil {
			die("failed to build preset: %v", err)
		}
		opts := render.DefaultOptions()
		opts.Channels = g.Channels
		opts.DecayDBFS = *decayDBFS
		opts.HoldBlocks = *decayHoldBlocks
		opts.MinSeconds = *minDuration
		opts.MaxSeconds = *maxDuration
		samples, err := render.Run(b.Simulation, opts)
		if err != nil {
			die("failed to render candidate: %v", err)
		}
		cand = render.ToMono64(samples, g.Channels)
		if *writeCandidate != "" {
			if err := wavio.WriteInterleaved(*writeCandidate, samples, g.Channels, *sampleRate); err != nil {
				die("failed to write candidate wav: %v", err)
			}
		}
	}

	metrics := analysis.Compare(ref, cand, *sampleRate)
	refAc, err := analysis.AnalyzeAcoustics(ref, *sampleRate)
	if err != nil {
		die("reference acoustics failed: %v", err)
	}
	candAc, err := analysis.AnalyzeAcoustics(cand, *sampleRate)
	if err != nil {
		die("candidate acoustics failed: %v", err)
	}

	var reports []analysis.WindowReport
	if *bands {
		refA, candA := alignPeaks(ref, cand)
		if reports, err = analysis.CompareBands(refA, candA, *sampleRate, analysis.DefaultWindows, analysis.DefaultBands); err != nil {
			die("band comparison failed: %v", err)
		}
	}
	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		out := struct {
			analysis.Metrics
			Reference analysis.Acoustics      `json:"reference_acoustics"`
			Candidate analysis.Acoustics      `json:"candidate_acoustics"`
			Bands     []analysis.WindowReport `json:"bands,omitempty"`
		}{metrics.Finite(), refAc.Finite(), candAc.Finite(), reports}
		if err := enc.Encode(out); err != nil {
			die("json encode failed: %v", err)
		}
		return
	}

	fmt.Printf("Reference frames: %d\n", metrics.ReferenceFrames)
	fmt.Printf("Candidate frames: %d\n", metrics.CandidateFrames)
	fmt.Printf("Aligned frames:   %d\n", metrics.AlignedFrames)
	fmt.Printf("Lag:              %d samples (%.3f ms)\n", metrics.LagSamples, 1000.0*float64(metrics.LagSamples)/float64(metrics.SampleRate))
	fmt.Println()
	fmt.Printf("Component        Raw          Norm   Weight  Contribution\n")
	fmt.Printf("─────────────────────────────────────────────────────────\n")
	printComp := func(name string, raw string, norm, weight float64, dominant bool) {
		marker := ""
		if dominant {
			marker = " ◄"
		}
		fmt.Printf("%-16s %-12s %5.1f%%  ×%.2f   → %.4f%s\n", name, raw, norm*100, weight, norm*weight, marker)
	}
	printComp("Time RMSE", fmt.Sprintf("%.6f", metrics.TimeRMSE), metrics.TimeNorm, analysis.WeightTime, metrics.Dominant == "time")
	printComp("Envelope RMSE", fmt.Sprintf("%.1f dB", metrics.EnvelopeRMSEDB), metrics.EnvelopeNorm, analysis.WeightEnvelope, metrics.Dominant == "envelope")
	printComp("Spectral RMSE", fmt.Sprintf("%.1f dB", metrics.SpectralRMSEDB), metrics.SpectralNorm, analysis.WeightSpectral, metrics.Dominant == "spectral")
	printComp("Decay diff", fmt.Sprintf("%.1f dB/s", metrics.DecayDiffDBPerS), metrics.DecayNorm, analysis.WeightDecay, metrics.Dominant == "decay")
	fmt.Printf("─────────────────────────────────────────────────────────\n")
	fmt.Printf("Score:            %.4f  (0 best, 1 worst)\n", metrics.Score)
	fmt.Printf("Similarity:       %.2f%%\n", metrics.Similarity*100.0)
	fmt.Printf("Dominant factor:  %s\n", metrics.Dominant)
	fmt.Printf("\nDecay slopes: ref=%.1f dB/s  cand=%.1f dB/s\n", metrics.RefDecayDBPerS, metrics.CandDecayDBPerS)
	fmt.Printf("RT60:         ref=%.3f s  cand=%.3f s\n", metrics.RefRT60, metrics.CandRT60)
	fmt.Printf("EDT:          ref=%.3f s  cand=%.3f s\n", refAc.EDT, candAc.EDT)
	fmt.Printf("C50 / C80:    ref=%.1f / %.1f dB  cand=%.1f / %.1f dB\n", refAc.C50, refAc.C80, candAc.C50, candAc.C80)
	fmt.Printf("Centre time:  ref=%.1f ms  cand=%.1f ms\n", 1000*refAc.CenterTime, 1000*candAc.CenterTime)

	for _, r := range reports {
		fmt.Printf("\n--- %s (%d STFT frames) ---\n", r.Window, r.Frames)
		for _, b := range r.Bands {
			marker := ""
			if b.RMSEDB > 15 {
				marker = " <<<"
			}
			if b.RMSEDB > 25 {
				marker = " <<< !!!"
			}
			fmt.Printf("  %-22s RMSE=%5.1fdB  ref=%6.1fdB  cand=%6.1fdB  diff=%+5.1fdB%s\n",
				b.Band, b.RMSEDB, b.RefDB, b.CandDB, b.LevelDiff, marker)
		}
	}
}

// alignPeaks shifts whichever signal peaks later so both peaks coincide.
func alignPeaks(ref, cand []float64) ([]float64, []float64) {
	lag := peakIndex(cand) - peakIndex(ref)
	switch {
	case lag > 0:
		return ref, cand[lag:]
	case lag < 0:
		return ref[-lag:], cand
	}
	return ref, cand
}

func peakIndex(x []float64) int {
	idx, peak := 0, 0.0
	for i, v := range x {
		if a := math.Abs(v); a > peak {
			idx, peak = i, a
		}
	}
	return idx
}

func readMono(path string, sampleRate int) ([]float64, error) {
	x, err := wavio.ReadMonoAt(path, sampleRate)
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = float64(v)
	}
	return out, nil
}

func die(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
