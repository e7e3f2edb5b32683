package main

import (
	"cmp"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"math"
	"math/rand"
	"runtime"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cwbudde/mayfly"

	"github.com/cwbudde/algo-verse/analysis"
	"github.com/cwbudde/algo-verse/graph"
	"github.com/cwbudde/algo-verse/internal/render"
	"github.com/cwbudde/algo-verse/preset"
)

type topCandidate struct {
	Eval       int                `json:"eval"`
	Score      float64            `json:"score"`
	Similarity float64            `json:"similarity"`
	Knobs      map[string]float64 `json:"knobs"`
}

type optimizationConfig struct {
	reference        []float64
	base             *preset.Graph
	node             string
	defs             []knobDef
	initCandidate    candidate
	render           render.Options
	seed             int64
	timeBudget       float64
	maxEvals         int
	reportEvery      int
	mayflyVariant    string
	mayflyPop        int
	mayflyRoundEvals int
	workers          int
	topK             int
	onImprove        func(best candidate, m analysis.Metrics, evals int)
}

type optimizationResult struct {
	best        candidate
	bestMetrics analysis.Metrics
	bestGraph   *preset.Graph
	top         []topCandidate
	evals       int
	elapsed     float64
}

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

// minDelayGap is the closest two feedback lines may sit before the network
// rings at their common period. Such candidates are scored without a render.
const minDelayGap = 0.5e-3

// search is one optimisation run shared by all worker goroutines.
type search struct {
	cfg      *optimizationConfig
	variant  string
	start    time.Time
	deadline time.Time

	evals    atomic.Int64
	rounds   atomic.Int64
	improves atomic.Int64
	skipped  atomic.Int64

	mu          sync.Mutex
	best        candidate
	bestMetrics analysis.Metrics
	top         []topCandidate

	// persisted orders checkpoints so a slower worker cannot overwrite a
	// better one.
	outputMu  sync.Mutex
	persisted float64
}

func runOptimization(cfg *optimizationConfig) (*optimizationResult, error) {
	s := &search{cfg: cfg, variant: strings.ToLower(cfg.mayflyVariant), start: time.Now()}
	s.deadline = s.start.Add(time.Duration(cfg.timeBudget * float64(time.Second)))

	s.best = cloneCandidate(cfg.initCandidate)
	initial, err := evaluateCandidate(cfg, s.best)
	if err != nil {
		return nil, fmt.Errorf("initial evaluation failed: %w", err)
	}
	s.evals.Store(1)
	s.bestMetrics = initial
	s.persisted = initial.Score
	s.top = updateTopCandidates(nil, cfg.topK, 1, initial, cfg.defs, s.best)
	fmt.Printf("Start score=%.4f similarity=%.2f%% RT60 %.3fs (reference %.3fs)\n",
		initial.Score, initial.Similarity*100.0, initial.CandRT60, initial.RefRT60)
	if cfg.onImprove != nil {
		cfg.onImprove(s.best, initial, 1)
	}

	workers := cfg.workers
	if workers == 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	var wg sync.WaitGroup
	for range max(workers, 1) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for s.round() {
			}
		}()
	}
	wg.Wait()
	if n := s.skipped.Load(); n > 0 {
		fmt.Printf("Skipped %d candidates with coinciding delay lines\n", n)
	}
	return s.result(), nil
}

// round runs one mayfly optimisation seeded from the round number and
// reports whether budget is left for another.
func (s *search) round() bool {
	cfg := s.cfg
	remaining := cfg.maxEvals - int(s.evals.Load())
	if remaining <= 0 || time.Now().After(s.deadline) {
		return false
	}
	n := s.rounds.Add(1)
	budget := min(cfg.mayflyRoundEvals, remaining)
	mc, err := newMayflyConfig(s.variant, cfg.mayflyPop, len(cfg.defs), max(1, budget/(2*cfg.mayflyPop)))
	if err != nil {
		fmt.Printf("mayfly round %d setup failed: %v\n", n, err)
		return false
	}
	mc.Rand = rand.New(rand.NewSource(cfg.seed + n*7919))
	mc.ObjectiveFunc = s.objective
	if _, err := runMayfly(mc); err != nil {
		fmt.Printf("mayfly round %d failed: %v\n", n, err)
	}
	return true
}

// objective scores a normalised position. Positions past the budget or with
// coinciding delay lines get a penalty above the current best instead of a
// render.
func (s *search) objective(pos []float64) float64 {
	if time.Now().After(s.deadline) {
		return s.bestScore() + 1
	}
	cand := fromNormalized(pos, s.cfg.defs)
	if gap, ok := closestDelayGap(s.cfg.defs, cand); ok && gap < minDelayGap {
		s.skipped.Add(1)
		return s.bestScore() + 1 - 0.5*gap/minDelayGap
	}
	evalNum, ok := reserveEval(&s.evals, s.cfg.maxEvals)
	if !ok {
		return s.bestScore() + 1
	}
	m, err := evaluateCandidate(s.cfg, cand)
	if err != nil {
		return s.bestScore() + 0.8
	}
	s.record(int(evalNum), cand, m)
	return m.Score
}

func (s *search) record(evalNum int, cand candidate, m analysis.Metrics) {
	cfg := s.cfg
	s.mu.Lock()
	s.top = updateTopCandidates(s.top, cfg.topK, evalNum, m, cfg.defs, cand)
	improved := m.Score < s.bestMetrics.Score
	if improved {
		s.best = cloneCandidate(cand)
		s.bestMetrics = m
	}
	best := s.bestMetrics
	s.mu.Unlock()

	if improved {
		fmt.Printf("Improved #%d eval=%d score=%.4f RT60 %.3fs/%.3fs\n",
			s.improves.Add(1), evalNum, m.Score, m.CandRT60, m.RefRT60)
		s.outputMu.Lock()
		if cfg.onImprove != nil && m.Score < s.persisted {
			s.persisted = m.Score
			cfg.onImprove(cand, m, evalNum)
		}
		s.outputMu.Unlock()
	}
	if cfg.reportEvery > 0 && evalNum%cfg.reportEvery == 0 {
		fmt.Printf("Progress eval=%d/%d elapsed=%.1fs best=%.4f\n",
			evalNum, cfg.maxEvals, time.Since(s.start).Seconds(), best.Score)
	}
}

func (s *search) bestScore() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bestMetrics.Score
}

func (s *search) result() *optimizationResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	top := make([]topCandidate, len(s.top))
	for i, c := range s.top {
		c.Knobs = maps.Clone(c.Knobs)
		top[i] = c
	}
	return &optimizationResult{
		best:        cloneCandidate(s.best),
		bestMetrics: s.bestMetrics,
		bestGraph:   applyCandidate(s.cfg.base, s.cfg.node, s.cfg.defs, s.best),
		top:         top,
		evals:       int(s.evals.Load()),
		elapsed:     time.Since(s.start).Seconds(),
	}
}

// closestDelayGap returns the smallest distance in seconds between two
// optimised delay lines. ok is false with fewer than two delay knobs.
func closestDelayGap(defs []knobDef, c candidate) (gap float64, ok bool) {
	var delays []float64
	for i, d := range defs {
		if strings.HasPrefix(d.Name, "delay.") {
			delays = append(delays, c.Vals[i])
		}
	}
	if len(delays) < 2 {
		return 0, false
	}
	slices.Sort(delays)
	gap = math.Inf(1)
	for i := 1; i < len(delays); i++ {
		gap = min(gap, delays[i]-delays[i-1])
	}
	return gap, true
}

// evaluateCandidate builds and renders the candidate preset and compares the
// mono render against the reference.
func evaluateCandidate(cfg *optimizationConfig, cand candidate) (analysis.Metrics, error) {
	g := applyCandidate(cfg.base, cfg.node, cfg.defs, cand)
	b, err := preset.Build(g, graph.WithLogger(discard))
	if err != nil {
		return analysis.Metrics{}, err
	}
	samples, err := render.Run(b.Simulation, cfg.render)
	if err != nil {
		return analysis.Metrics{}, err
	}
	mono := render.ToMono64(samples, cfg.render.Channels)
	m := analysis.Compare(cfg.reference, mono, g.SampleRate)
	if math.IsNaN(m.Score) {
		return m, fmt.Errorf("score is NaN")
	}
	return m, nil
}

func cloneCandidate(c candidate) candidate {
	return candidate{Vals: append([]float64(nil), c.Vals...)}
}

func newMayflyConfig(variant string, pop int, dims int, iters int) (*mayfly.Config, error) {
	var cfg *mayfly.Config
	switch variant {
	case "ma":
		cfg = mayfly.NewDefaultConfig()
	case "desma":
		cfg = mayfly.NewDESMAConfig()
	case "olce":
		cfg = mayfly.NewOLCEConfig()
	case "eobbma":
		cfg = mayfly.NewEOBBMAConfig()
	case "gsasma":
		cfg = mayfly.NewGSASMAConfig()
	case "mpma":
		cfg = mayfly.NewMPMAConfig()
	case "aoblmoa":
		cfg = mayfly.NewAOBLMOAConfig()
	default:
		return nil, fmt.Errorf("unsupported variant %q", variant)
	}
	cfg.ProblemSize = dims
	cfg.LowerBound = 0.0
	cfg.UpperBound = 1.0
	cfg.MaxIterations = iters
	cfg.NPop = pop
	cfg.NPopF = pop
	cfg.NC = 2 * pop
	cfg.NM = max(1, int(math.Round(0.05*float64(pop))))
	return cfg, nil
}

func runMayfly(cfg *mayfly.Config) (_ *mayfly.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("mayfly panic: %v", r)
		}
	}()
	return mayfly.Optimize(cfg)
}

func reserveEval(evals *atomic.Int64, maxEvals int) (int64, bool) {
	for {
		cur := evals.Load()
		if cur >= int64(maxEvals) {
			return 0, false
		}
		if evals.CompareAndSwap(cur, cur+1) {
			return cur + 1, true
		}
	}
}

func updateTopCandidates(top []topCandidate, topK int, eval int, metrics analysis.Metrics, defs []knobDef, cand candidate) []topCandidate {
	entry := topCandidate{
		Eval:       eval,
		Score:      metrics.Score,
		Similarity: metrics.Similarity,
		Knobs:      make(map[string]float64, len(defs)),
	}
	for i, d := range defs {
		entry.Knobs[d.Name] = cand.Vals[i]
	}
	top = append(top, entry)
	slices.SortFunc(top, func(a, b topCandidate) int {
		return cmp.Or(cmp.Compare(a.Score, b.Score), cmp.Compare(a.Eval, b.Eval))
	})
	return top[:min(len(top), topK)]
}
