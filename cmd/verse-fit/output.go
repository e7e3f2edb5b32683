package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/cwbudde/algo-verse/analysis"
	"github.com/cwbudde/algo-verse/preset"
)

type runReport struct {
	ReferencePath  string             `json:"reference_path"`
	PresetPath     string             `json:"preset_path"`
	OutputPreset   string             `json:"output_preset"`
	Node           string             `json:"node"`
	SampleRate     int                `json:"sample_rate"`
	DurationSec    float64            `json:"elapsed_seconds"`
	Evaluations    int                `json:"evaluations"`
	MayflyVariant  string             `json:"mayfly_variant"`
	BestScore      float64            `json:"best_score"`
	BestSimilarity float64            `json:"best_similarity"`
	BestMetrics    analysis.Metrics   `json:"best_metrics"`
	BestKnobs      map[string]float64 `json:"best_knobs"`
	TopCandidates  []topCandidate     `json:"top_candidates,omitempty"`
}

// outputs knows where a fit run persists its preset and report.
type outputs struct {
	presetPath    string
	reportPath    string
	referencePath string
	basePreset    string
	node          string
	sampleRate    int
	variant       string
	defs          []knobDef
}

func (o outputs) write(g *preset.Graph, best candidate, m analysis.Metrics, evals int, elapsed float64, top []topCandidate) error {
	if err := preset.WriteJSON(o.presetPath, g); err != nil {
		return fmt.Errorf("write preset: %w", err)
	}
	rep := runReport{
		ReferencePath:  o.referencePath,
		PresetPath:     o.basePreset,
		OutputPreset:   o.presetPath,
		Node:           o.node,
		SampleRate:     o.sampleRate,
		DurationSec:    elapsed,
		Evaluations:    evals,
		MayflyVariant:  o.variant,
		BestScore:      m.Score,
		BestSimilarity: m.Similarity,
		BestMetrics:    m.Finite(),
		BestKnobs:      make(map[string]float64, len(o.defs)),
		TopCandidates:  top,
	}
	for i, d := range o.defs {
		rep.BestKnobs[d.Name] = best.Vals[i]
	}
	return writeJSON(o.reportPath, rep)
}

// checkpoint returns an improvement hook that persists every new best.
func (o outputs) checkpoint(cfg *optimizationConfig) func(candidate, analysis.Metrics, int) {
	return func(c candidate, m analysis.Metrics, evals int) {
		g := applyCandidate(cfg.base, cfg.node, cfg.defs, c)
		if err := o.write(g, c, m, evals, 0, nil); err != nil {
			fmt.Fprintf(os.Stderr, "checkpoint write failed: %v\n", err)
		}
	}
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')
	return os.WriteFile(path, b, 0o644)
}
