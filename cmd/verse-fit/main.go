package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/cwbudde/algo-verse/internal/render"
	"github.com/cwbudde/algo-verse/internal/wavio"
	"github.com/cwbudde/algo-verse/preset"
)

func main() {
	referencePath := flag.String("reference", "reference/room.wav", "Reference impulse response WAV path")
	presetPath := flag.String("preset", "assets/presets/default.json", "Base preset JSON path")
	nodeName := flag.String("node", "", "Feedback delay network node to fit (default: first in the preset)")
	outputPreset := flag.String("output-preset", "assets/presets/fitted.json", "Path to write the best fitted preset JSON")
	reportPath := flag.String("report", "", "Optional report JSON path (default: <output-preset>.report.json)")
	optimize := flag.String("optimize", "delays,decay,tone", "Comma-separated knob groups to optimize: delays, decay, tone, mix")
	sampleRate := flag.Int("sample-rate", 0, "Render/analysis sample rate (0 uses the preset's)")
	seed := flag.Int64("seed", 1, "Random seed")
	timeBudget := flag.Float64("time-budget", 120.0, "Optimization time budget in seconds")
	maxEvals := flag.Int("max-evals", 2000, "Maximum objective evaluations")
	reportEvery := flag.Int("report-every", 20, "Print progress every N evaluations")
	decayDBFS := flag.Float64("decay-dbfs", -90.0, "Auto-stop threshold in dBFS")
	decayHoldBlocks := flag.Int("decay-hold-blocks", 6, "Consecutive below-threshold blocks for stop")
	minDuration := flag.Float64("min-duration", 0.5, "Minimum render duration in seconds")
	maxDuration := flag.Float64("max-duration", 8.0, "Maximum render duration in seconds")
	topK := flag.Int("top-k", 5, "How many top candidates to keep in report")
	resume := flag.Bool("resume", true, "Resume from previous best_knobs report when available")
	workers := flag.String("workers", "1", "Parallel optimization workers running independent Mayfly rounds (number or 'auto')")

	mayflyVariant := flag.String("mayfly-variant", "desma", "Mayfly variant: ma|desma|olce|eobbma|gsasma|mpma|aoblmoa")
	mayflyPop := flag.Int("mayfly-pop", 10, "Male and female population size per Mayfly run")
	mayflyRoundEvals := flag.Int("mayfly-round-evals", 240, "Target eval budget per Mayfly round")
	flag.Parse()

	groups, err := parseOptimizeGroups(*optimize)
	if err != nil {
		die("invalid --optimize: %v", err)
	}
	if *outputPreset == "" {
		die("output-preset must not be empty")
	}
	if *maxEvals < 1 {
		die("max-evals must be >= 1")
	}
	if *timeBudget <= 0 {
		die("time-budget must be > 0")
	}
	*reportEvery = max(*reportEvery, 1)
	*mayflyPop = max(*mayflyPop, 2)
	*mayflyRoundEvals = max(*mayflyRoundEvals, *mayflyPop*2)
	*topK = max(*topK, 1)
	parsedWorkers, err := render.ParseWorkers(*workers)
	if err != nil {
		die("invalid workers value: %v", err)
	}
	if *reportPath == "" {
		*reportPath = *outputPreset + ".report.json"
	}

	base, err := preset.LoadJSON(*presetPath)
	if err != nil {
		die("failed to load preset: %v", err)
	}
	if *sampleRate > 0 {
		base.SampleRate = *sampleRate
	}
	node, setting, err := findFDN(base, *nodeName)
	if err != nil {
		die("%v", err)
	}

	ref32, err := wavio.ReadMonoAt(*referencePath, base.SampleRate)
	if err != nil {
		die("failed to read reference: %v", err)
	}
	reference := make([]float64, len(ref32))
	for i, v := range ref32 {
		reference[i] = float64(v)
	}

	defs, initCand := initCandidate(setting, base.SampleRate, groups)
	if *resume {
		if resumed, ok, err := loadCandidateFromReport(*reportPath, defs, initCand); err != nil {
			fmt.Fprintf(os.Stderr, "resume skipped (%s): %v\n", *reportPath, err)
		} else if ok {
			initCand = resumed
			fmt.Printf("Resumed candidate from %s\n", *reportPath)
		}
	}

	opts := render.DefaultOptions()
	opts.Channels = base.Channels
	opts.DecayDBFS = *decayDBFS
	opts.HoldBlocks = *decayHoldBlocks
	opts.MinSeconds = *minDuration
	opts.MaxSeconds = *maxDuration

	variant := strings.ToLower(*mayflyVariant)
	out := outputs{
		presetPath:    *outputPreset,
		reportPath:    *reportPath,
		referencePath: *referencePath,
		basePreset:    *presetPath,
		node:          node,
		sampleRate:    base.SampleRate,
		variant:       variant,
		defs:          defs,
	}
	cfg := &optimizationConfig{
		reference:        reference,
		base:             base,
		node:             node,
		defs:             defs,
		initCandidate:    initCand,
		render:           opts,
		seed:             *seed,
		timeBudget:       *timeBudget,
		maxEvals:         *maxEvals,
		reportEvery:      *reportEvery,
		mayflyVariant:    variant,
		mayflyPop:        *mayflyPop,
		mayflyRoundEvals: *mayflyRoundEvals,
		workers:          parsedWorkers,
		topK:             *topK,
	}
	cfg.onImprove = out.checkpoint(cfg)

	fmt.Printf("Fitting %s (%d knobs) in %s against %s\n", node, len(defs), *presetPath, *referencePath)
	result, err := runOptimization(cfg)
	if err != nil {
		die("optimization failed: %v", err)
	}
	if err := out.write(result.bestGraph, result.best, result.bestMetrics, result.evals, result.elapsed, result.top); err != nil {
		die("failed to write outputs: %v", err)
	}

	fmt.Printf("Done evals=%d elapsed=%.1fs best_score=%.4f best_similarity=%.2f%% ref_rt60=%.3fs fit_rt60=%.3fs variant=%s\n",
		result.evals, result.elapsed, result.bestMetrics.Score, result.bestMetrics.Similarity*100.0,
		result.bestMetrics.RefRT60, result.bestMetrics.CandRT60, variant)
}

func loadCandidateFromReport(path string, defs []knobDef, fallback candidate) (candidate, bool, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fallback, false, nil
		}
		return fallback, false, err
	}

	var rep struct {
		BestKnobs map[string]float64 `json:"best_knobs"`
	}
	if err := json.Unmarshal(b, &rep); err != nil {
		return fallback, false, err
	}
	if len(rep.BestKnobs) == 0 {
		return fallback, false, nil
	}

	vals := append([]float64(nil), fallback.Vals...)
	updated := false
	for i, d := range defs {
		if v, ok := rep.BestKnobs[d.Name]; ok {
			vals[i] = clamp(v, d.Min, d.Max)
			if d.IsInt {
				vals[i] = math.Round(vals[i])
			}
			updated = true
		}
	}
	if !updated {
		return fallback, false, nil
	}
	return candidate{Vals: vals}, true, nil
}

func die(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
