// Package preset loads JSON graph descriptions and builds simulations from
// them.
package preset

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cwbudde/algo-verse/dsp"
)

// File is the JSON schema for graph presets.
type File struct {
	SampleRate *int                   `json:"sample_rate,omitempty"`
	BlockSize  *int                   `json:"block_size,omitempty"`
	Channels   *int                   `json:"channels,omitempty"`
	Output     string                 `json:"output,omitempty"`
	Nodes      map[string]NodeSetting `json:"nodes,omitempty"`
}

// NodeSetting describes one named node. Fields that do not apply to Type
// are ignored.
type NodeSetting struct {
	Type      string       `json:"type"`
	Channels  *int         `json:"channels,omitempty"`
	Inputs    []Connection `json:"inputs,omitempty"`
	Suspended *bool        `json:"suspended,omitempty"`
	Mul       *float32     `json:"mul,omitempty"`
	Add       *float32     `json:"add,omitempty"`

	// sine and biquad
	Frequency *float32 `json:"frequency,omitempty"`

	// gain, and the amplitude of impulse
	Gain *float32 `json:"gain,omitempty"`

	// biquad
	FilterType string   `json:"filter_type,omitempty"`
	Q          *float32 `json:"q,omitempty"`
	DBGain     *float32 `json:"dbgain,omitempty"`

	// feedback_delay_network
	MaxDelay          *float32  `json:"max_delay,omitempty"`
	Delays            []float32 `json:"delays,omitempty"`
	Matrix            []float32 `json:"matrix,omitempty"`
	MatrixKind        string    `json:"matrix_kind,omitempty"`
	RT60              *float32  `json:"rt60,omitempty"`
	OutputGains       []float32 `json:"output_gains,omitempty"`
	FilterTypes       []string  `json:"filter_types,omitempty"`
	FilterFrequencies []float32 `json:"filter_frequencies,omitempty"`
	Interpolation     string    `json:"interpolation,omitempty"`

	// convolver: a WAV file or a synthesized room
	IRWavPath string       `json:"ir_wav_path,omitempty"`
	Room      *RoomSetting `json:"room,omitempty"`
}

// RoomSetting describes a synthesized room impulse response. Unset fields
// keep the generator's defaults.
type RoomSetting struct {
	RT60       *float64 `json:"rt60,omitempty"`
	HighRT60   *float64 `json:"high_rt60,omitempty"`
	Crossover  *float64 `json:"crossover,omitempty"`
	PreDelay   *float64 `json:"pre_delay,omitempty"`
	Early      *int     `json:"early,omitempty"`
	EarlyLevel *float64 `json:"early_level,omitempty"`
	LateLevel  *float64 `json:"late_level,omitempty"`
	Duration   *float64 `json:"duration,omitempty"`
	Seed       *int64   `json:"seed,omitempty"`
}

// Connection feeds output Output of node Node into input Input of the node
// listing it. Input defaults to the connection's position in the list.
type Connection struct {
	Node   string `json:"node"`
	Output int    `json:"output"`
	Input  *int   `json:"input,omitempty"`
}

// Graph is a validated preset with defaults filled in.
type Graph struct {
	SampleRate int
	BlockSize  int
	Channels   int
	Output     string
	Nodes      map[string]NodeSetting
}

// NewDefaultGraph returns an empty 48 kHz stereo graph rendered in blocks
// of 128 frames.
func NewDefaultGraph() *Graph {
	return &Graph{
		SampleRate: 48000,
		BlockSize:  128,
		Channels:   2,
		Nodes:      make(map[string]NodeSetting),
	}
}

// LoadJSON loads a preset JSON file and applies it on top of the default
// graph. Relative IR paths are resolved against the preset's directory.
func LoadJSON(path string) (*Graph, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var f File
	if err := json.Unmarshal(b, &f); err != nil {
		return nil, err
	}

	g := NewDefaultGraph()
	if err := ApplyFile(g, &f); err != nil {
		return nil, err
	}

	base := filepath.Dir(path)
	for name, n := range g.Nodes {
		if n.IRWavPath != "" && !filepath.IsAbs(n.IRWavPath) {
			n.IRWavPath = filepath.Clean(filepath.Join(base, n.IRWavPath))
			g.Nodes[name] = n
		}
	}
	return g, nil
}

// ApplyFile applies a parsed preset file onto an existing graph. Nodes named
// in f replace nodes of the same name.
func ApplyFile(dst *Graph, f *File) error {
	if dst == nil {
		return fmt.Errorf("nil destination graph")
	}
	if f == nil {
		return nil
	}

	if f.SampleRate != nil {
		if *f.SampleRate <= 0 {
			return fmt.Errorf("sample_rate must be > 0")
		}
		dst.SampleRate = *f.SampleRate
	}
	if f.BlockSize != nil {
		if *f.BlockSize < 1 {
			return fmt.Errorf("block_size must be >= 1")
		}
		dst.BlockSize = *f.BlockSize
	}
	if f.Channels != nil {
		if *f.Channels < 1 {
			return fmt.Errorf("channels must be >= 1")
		}
		dst.Channels = *f.Channels
	}
	if f.Output != "" {
		dst.Output = strings.TrimSpace(f.Output)
	}

	if dst.Nodes == nil {
		dst.Nodes = make(map[string]NodeSetting)
	}
	for _, name := range sortedNames(f.Nodes) {
		n := f.Nodes[name]
		if err := validateNode(name, &n); err != nil {
			return err
		}
		dst.Nodes[name] = n
	}
	return checkReferences(dst)
}

func sortedNames(m map[string]NodeSetting) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func validateNode(name string, n *NodeSetting) error {
	n.Type = strings.ToLower(strings.TrimSpace(n.Type))
	n.IRWavPath = strings.TrimSpace(n.IRWavPath)
	channels := 1
	if n.Channels != nil {
		if *n.Channels < 1 {
			return fmt.Errorf("nodes[%s].channels must be >= 1", name)
		}
		channels = *n.Channels
	}
	if n.Frequency != nil && *n.Frequency < 0 {
		return fmt.Errorf("nodes[%s].frequency must be >= 0", name)
	}
	for i, c := range n.Inputs {
		if c.Node == "" {
			return fmt.Errorf("nodes[%s].inputs[%d].node is empty", name, i)
		}
		if c.Output < 0 || (c.Input != nil && *c.Input < 0) {
			return fmt.Errorf("nodes[%s].inputs[%d] has a negative slot", name, i)
		}
	}

	switch n.Type {
	case "sine", "gain", "passthrough", "impulse":
	case "biquad":
		if n.FilterType != "" {
			if _, err := dsp.ParseBiquadType(n.FilterType); err != nil {
				return fmt.Errorf("nodes[%s].filter_type: %w", name, err)
			}
		}
		if n.Q != nil && *n.Q <= 0 {
			return fmt.Errorf("nodes[%s].q must be > 0", name)
		}
	case "feedback_delay_network", "fdn":
		n.Type = "feedback_delay_network"
		if n.MaxDelay == nil || *n.MaxDelay <= 0 {
			return fmt.Errorf("nodes[%s].max_delay must be > 0", name)
		}
		for field, l := range map[string]int{
			"delays":             len(n.Delays),
			"output_gains":       len(n.OutputGains),
			"filter_types":       len(n.FilterTypes),
			"filter_frequencies": len(n.FilterFrequencies),
		} {
			if l != 0 && l != channels {
				return fmt.Errorf("nodes[%s].%s needs %d entries, got %d", name, field, channels, l)
			}
		}
		for _, d := range n.Delays {
			if d < 0 || d > *n.MaxDelay {
				return fmt.Errorf("nodes[%s].delays must be in [0,max_delay]", name)
			}
		}
		if len(n.Matrix) != 0 && len(n.Matrix) != channels*channels {
			return fmt.Errorf("nodes[%s].matrix needs %d entries, got %d", name, channels*channels, len(n.Matrix))
		}
		if len(n.Matrix) != 0 && n.MatrixKind != "" {
			return fmt.Errorf("nodes[%s] sets both matrix and matrix_kind", name)
		}
		if _, err := feedbackMatrix(n.MatrixKind, channels); err != nil {
			return fmt.Errorf("nodes[%s].matrix_kind: %w", name, err)
		}
		if n.RT60 != nil && *n.RT60 <= 0 {
			return fmt.Errorf("nodes[%s].rt60 must be > 0", name)
		}
		for _, t := range n.FilterTypes {
			if _, err := fdnFilterType(t); err != nil {
				return fmt.Errorf("nodes[%s].filter_types: %w", name, err)
			}
		}
		if _, err := interpolation(n.Interpolation); err != nil {
			return fmt.Errorf("nodes[%s].interpolation: %w", name, err)
		}
	case "convolver":
		if (n.IRWavPath == "") == (n.Room == nil) {
			return fmt.Errorf("nodes[%s] needs exactly one of ir_wav_path and room", name)
		}
	case "":
		return fmt.Errorf("nodes[%s].type is required", name)
	default:
		return fmt.Errorf("nodes[%s].type %q is unknown", name, n.Type)
	}
	return nil
}

func checkReferences(g *Graph) error {
	for _, name := range sortedNames(g.Nodes) {
		for i, c := range g.Nodes[name].Inputs {
			if _, ok := g.Nodes[c.Node]; !ok {
				return fmt.Errorf("nodes[%s].inputs[%d] references unknown node %q", name, i, c.Node)
			}
		}
	}
	if g.Output != "" {
		if _, ok := g.Nodes[g.Output]; !ok {
			return fmt.Errorf("output references unknown node %q", g.Output)
		}
	}
	return nil
}

// WriteJSON stores g at path. IR paths are written relative to the preset.
func WriteJSON(path string, g *Graph) error {
	sr, bs, ch := g.SampleRate, g.BlockSize, g.Channels
	f := File{
		SampleRate: &sr,
		BlockSize:  &bs,
		Channels:   &ch,
		Output:     g.Output,
		Nodes:      make(map[string]NodeSetting, len(g.Nodes)),
	}
	for name, n := range g.Nodes {
		n.IRWavPath = presetIRPath(path, n.IRWavPath)
		f.Nodes[name] = n
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')
	return os.WriteFile(path, b, 0o644)
}

func presetIRPath(presetPath string, irPath string) string {
	if irPath == "" {
		return ""
	}
	presetDirAbs, err := filepath.Abs(filepath.Dir(presetPath))
	if err != nil {
		return irPath
	}
	irAbs := irPath
	if !filepath.IsAbs(irAbs) {
		irAbs, err = filepath.Abs(irAbs)
		if err != nil {
			return irPath
		}
	}
	rel, err := filepath.Rel(presetDirAbs, irAbs)
	if err != nil {
		return irPath
	}
	return filepath.ToSlash(rel)
}
