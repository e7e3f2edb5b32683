package main

import (
	"fmt"
	"math"
	"strings"

	"github.com/cwbudde/algo-verse/preset"
)

type knobDef struct {
	Name  string
	Min   float64
	Max   float64
	IsInt bool
}

type candidate struct {
	Vals []float64
}

var validGroups = []string{"delays", "decay", "tone", "mix"}

// parseOptimizeGroups parses a comma-separated list of knob groups.
func parseOptimizeGroups(raw string) (map[string]bool, error) {
	groups := make(map[string]bool)
	for _, s := range strings.Split(raw, ",") {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		known := false
		for _, v := range validGroups {
			known = known || v == s
		}
		if !known {
			return nil, fmt.Errorf("unknown optimize group %q (valid: %s)", s, strings.Join(validGroups, ", "))
		}
		groups[s] = true
	}
	if len(groups) == 0 {
		return nil, fmt.Errorf("no optimize groups specified")
	}
	return groups, nil
}

// findFDN returns the named feedback delay network, or the alphabetically
// first one when name is empty.
func findFDN(g *preset.Graph, name string) (string, preset.NodeSetting, error) {
	if name != "" {
		n, ok := g.Nodes[name]
		if !ok {
			return "", preset.NodeSetting{}, fmt.Errorf("node %q not in preset", name)
		}
		if n.Type != "feedback_delay_network" {
			return "", preset.NodeSetting{}, fmt.Errorf("node %q is a %s, not a feedback_delay_network", name, n.Type)
		}
		return name, n, nil
	}
	best := ""
	for k, n := range g.Nodes {
		if n.Type == "feedback_delay_network" && (best == "" || k < best) {
			best = k
		}
	}
	if best == "" {
		return "", preset.NodeSetting{}, fmt.Errorf("preset has no feedback_delay_network node")
	}
	return best, g.Nodes[best], nil
}

func channelCount(n preset.NodeSetting) int {
	if n.Channels != nil {
		return *n.Channels
	}
	return 1
}

func first(vals []float32, fallback float64) float64 {
	if len(vals) == 0 {
		return fallback
	}
	return float64(vals[0])
}

func initCandidate(base preset.NodeSetting, sampleRate int, groups map[string]bool) ([]knobDef, candidate) {
	n := channelCount(base)
	maxDelay := float64(*base.MaxDelay)

	defs := make([]knobDef, 0, n+4)
	vals := make([]float64, 0, n+4)
	add := func(def knobDef, val float64) {
		defs = append(defs, def)
		vals = append(vals, val)
	}

	if groups["delays"] {
		for i := 0; i < n; i++ {
			d := maxDelay * float64(i+1) / float64(n+1)
			if i < len(base.Delays) {
				d = float64(base.Delays[i])
			}
			add(knobDef{Name: fmt.Sprintf("delay.%d", i), Min: 0.001, Max: maxDelay}, d)
		}
	}
	if groups["decay"] {
		rt := 1.0
		if base.RT60 != nil {
			rt = float64(*base.RT60)
		}
		add(knobDef{Name: "rt60", Min: 0.05, Max: 12}, rt)
	}
	if groups["tone"] {
		add(knobDef{Name: "filter_frequency", Min: 200, Max: 0.45 * float64(sampleRate)}, first(base.FilterFrequencies, 6000))
	}
	if groups["mix"] {
		add(knobDef{Name: "output_gain", Min: 0.01, Max: 2}, first(base.OutputGains, 1))
	}

	for i := range vals {
		vals[i] = clamp(vals[i], defs[i].Min, defs[i].Max)
		if defs[i].IsInt {
			vals[i] = math.Round(vals[i])
		}
	}
	return defs, candidate{Vals: vals}
}

// applyCandidate returns a copy of g whose FDN node carries the candidate's
// knob values. g is not modified.
func applyCandidate(g *preset.Graph, node string, defs []knobDef, c candidate) *preset.Graph {
	out := cloneGraph(g)
	s := out.Nodes[node]
	n := channelCount(s)
	resize := func(vals []float32, fill float32) []float32 {
		if len(vals) == n {
			return vals
		}
		fresh := make([]float32, n)
		for i := range fresh {
			fresh[i] = fill
		}
		return fresh
	}

	for i, def := range defs {
		v := float32(c.Vals[i])
		switch {
		case strings.HasPrefix(def.Name, "delay."):
			var ch int
			if _, err := fmt.Sscanf(def.Name, "delay.%d", &ch); err != nil || ch >= n {
				continue
			}
			s.Delays = resize(s.Delays, 0)
			s.Delays[ch] = v
		case def.Name == "rt60":
			s.RT60 = &v
			if len(s.Matrix) == 0 && (s.MatrixKind == "" || s.MatrixKind == "zero") {
				s.MatrixKind = "householder"
			}
		case def.Name == "filter_frequency":
			s.FilterFrequencies = resize(nil, v)
			types := make([]string, n)
			for j := range types {
				types[j] = "lowpass"
			}
			s.FilterTypes = types
		case def.Name == "output_gain":
			s.OutputGains = resize(nil, v)
		}
	}
	out.Nodes[node] = s
	return out
}

func cloneGraph(g *preset.Graph) *preset.Graph {
	out := *g
	out.Nodes = make(map[string]preset.NodeSetting, len(g.Nodes))
	for name, n := range g.Nodes {
		n.Inputs = append([]preset.Connection(nil), n.Inputs...)
		n.Delays = append([]float32(nil), n.Delays...)
		n.Matrix = append([]float32(nil), n.Matrix...)
		n.OutputGains = append([]float32(nil), n.OutputGains...)
		n.FilterTypes = append([]string(nil), n.FilterTypes...)
		n.FilterFrequencies = append([]float32(nil), n.FilterFrequencies...)
		out.Nodes[name] = n
	}
	return &out
}

func fromNormalized(pos []float64, defs []knobDef) candidate {
	vals := make([]float64, len(defs))
	for i := range defs {
		x := 0.0
		if i < len(pos) {
			x = clamp(pos[i], 0, 1)
		}
		v := defs[i].Min + x*(defs[i].Max-defs[i].Min)
		if defs[i].IsInt {
			v = math.Round(v)
		}
		vals[i] = v
	}
	return candidate{Vals: vals}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
