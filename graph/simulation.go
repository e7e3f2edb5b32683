// Package graph renders a set of connected nodes one block at a time.
//
// A Simulation owns its nodes and a mutex shared by the control side and the
// render side. Render and GetBlock take the lock themselves. Every other
// method of Simulation and Node that reads or changes topology, buffers or
// properties expects the caller to hold it (Lock/Unlock), the same way the
// external API does for the duration of one call.
package graph

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/cwbudde/algo-verse/dsp"
	"github.com/cwbudde/algo-verse/handle"
	"github.com/cwbudde/algo-verse/status"
)

// Kinds of objects created by this package. Node packages number their own
// kinds from KindNode+1.
const (
	KindSimulation handle.Kind = iota + 1
	KindNode
)

// Option configures a Simulation.
type Option func(*Simulation)

// WithLogger sets the logger used for lifecycle events.
func WithLogger(l *slog.Logger) Option {
	return func(s *Simulation) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithTable registers the simulation and its nodes with t instead of a
// private table.
func WithTable(t *handle.Table) Option {
	return func(s *Simulation) {
		if t != nil {
			s.table = t
		}
	}
}

// Simulation drives block rendering for one node set.
type Simulation struct {
	handle.Base

	mu sync.Mutex

	id         uuid.UUID
	sampleRate float32
	blockSize  int
	ticks      uint64
	logger     *slog.Logger
	table      *handle.Table

	nodes      []*Node
	order      []*Node
	orderDirty bool
	zero       []float32
	output     *Node
}

// New returns an empty simulation. sampleRate must be positive and blockSize
// at least one sample.
func New(sampleRate float32, blockSize int, opts ...Option) (*Simulation, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("%w: sample rate %g", status.ErrRange, sampleRate)
	}
	if blockSize < 1 {
		return nil, fmt.Errorf("%w: block size %d", status.ErrRange, blockSize)
	}
	s := &Simulation{
		id:         uuid.New(),
		sampleRate: sampleRate,
		blockSize:  blockSize,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.table == nil {
		s.table = handle.NewTable()
	}
	zero, err := dsp.AllocFloatArray(blockSize)
	if err != nil {
		return nil, err
	}
	s.zero = zero
	s.table.Bind(&s.Base, KindSimulation)
	s.logger = s.logger.With("simulation", s.id.String())
	s.logger.Info("simulation created", "sample_rate", sampleRate, "block_size", blockSize)
	return s, nil
}

func (s *Simulation) Lock()   { s.mu.Lock() }
func (s *Simulation) Unlock() { s.mu.Unlock() }

func (s *Simulation) ID() uuid.UUID        { return s.id }
func (s *Simulation) SampleRate() float32  { return s.sampleRate }
func (s *Simulation) BlockSize() int       { return s.blockSize }
func (s *Simulation) Table() *handle.Table { return s.table }
func (s *Simulation) Logger() *slog.Logger { return s.logger }

// Ticks returns the number of blocks rendered so far.
func (s *Simulation) Ticks() uint64 { return s.ticks }

// Nodes returns the live nodes in creation order.
func (s *Simulation) Nodes() []*Node {
	out := make([]*Node, len(s.nodes))
	copy(out, s.nodes)
	return out
}

// SetBlockSize reallocates every output buffer for the new size. Buffer
// contents are lost.
func (s *Simulation) SetBlockSize(n int) error {
	if n < 1 {
		return fmt.Errorf("%w: block size %d", status.ErrRange, n)
	}
	if n == s.blockSize {
		return nil
	}
	zero, err := dsp.AllocFloatArray(n)
	if err != nil {
		return err
	}
	fresh := make([][][]float32, len(s.nodes))
	for i, node := range s.nodes {
		bufs, err := allocBuffers(len(node.outputs), n)
		if err != nil {
			for _, b := range fresh[:i] {
				freeBuffers(b)
			}
			dsp.FreeFloatArray(zero)
			return err
		}
		fresh[i] = bufs
	}
	for i, node := range s.nodes {
		freeBuffers(node.outputs)
		node.outputs = fresh[i]
	}
	dsp.FreeFloatArray(s.zero)
	s.zero = zero
	old := s.blockSize
	s.blockSize = n
	s.logger.Info("block size changed", "from", old, "to", n)
	return nil
}

// SetOutput selects the node whose outputs GetBlock returns. nil clears it.
// The output node is an internal holder: a node released by its last
// external handle stays alive while it is the output, and is destroyed when
// it stops being the output unless it was referenced again meanwhile.
func (s *Simulation) SetOutput(n Interface) error {
	var node *Node
	if n != nil {
		node = n.GraphNode()
		if node.sim != s {
			return fmt.Errorf("%w: node %d belongs to another simulation", status.ErrRange, node.Handle())
		}
		if node.dead {
			return fmt.Errorf("%w: node %d was destroyed", status.ErrInvalidHandle, node.Handle())
		}
	}
	prev := s.output
	s.output = node
	if prev != nil && prev != node && prev.orphaned {
		prev.orphaned = false
		if s.table.Detach(prev) {
			prev.destroy()
		}
	}
	return nil
}

// Output returns the current output node, or nil.
func (s *Simulation) Output() Interface {
	if s.output == nil {
		return nil
	}
	return s.output.owner
}

// Render processes one block.
func (s *Simulation) Render() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.render()
}

func (s *Simulation) render() {
	order := s.renderOrder()
	for _, n := range order {
		n.willProcess()
	}
	for _, n := range order {
		if !n.Suspended() {
			n.process()
		}
		n.didProcess()
	}
	s.ticks++
}

// GetBlock renders one block and writes the output node's buffers to dst,
// interleaved over channels. With mayApplyMix set, mono output is spread to
// every channel and stereo output folded to mono; otherwise missing channels
// are silent and surplus ones dropped. dst needs channels*BlockSize values.
func (s *Simulation) GetBlock(channels int, mayApplyMix bool, dst []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if channels < 1 {
		return fmt.Errorf("%w: %d channels", status.ErrRange, channels)
	}
	if len(dst) < channels*s.blockSize {
		return fmt.Errorf("%w: destination holds %d samples, need %d", status.ErrRange, len(dst), channels*s.blockSize)
	}
	s.render()

	var src [][]float32
	if s.output != nil && !s.output.dead && !s.output.Suspended() {
		src = s.output.outputs
	}
	bs := s.blockSize
	switch {
	case mayApplyMix && len(src) == 1 && channels > 1:
		for i, v := range src[0][:bs] {
			for ch := 0; ch < channels; ch++ {
				dst[i*channels+ch] = v
			}
		}
	case mayApplyMix && len(src) == 2 && channels == 1:
		l, r := src[0][:bs], src[1][:bs]
		for i := range l {
			dst[i] = 0.5 * (l[i] + r[i])
		}
	default:
		for ch := 0; ch < channels; ch++ {
			if ch >= len(src) {
				for i := 0; i < bs; i++ {
					dst[i*channels+ch] = 0
				}
				continue
			}
			for i, v := range src[ch][:bs] {
				dst[i*channels+ch] = v
			}
		}
	}
	return nil
}

func (s *Simulation) associate(n *Node) {
	s.nodes = append(s.nodes, n)
	s.orderDirty = true
}

func (s *Simulation) dissociate(n *Node) {
	for i, m := range s.nodes {
		if m == n {
			s.nodes = append(s.nodes[:i], s.nodes[i+1:]...)
			break
		}
	}
	if s.output == n {
		s.output = nil
	}
	s.orderDirty = true
}

func allocBuffers(count, size int) ([][]float32, error) {
	bufs := make([][]float32, count)
	for i := range bufs {
		b, err := dsp.AllocFloatArray(size)
		if err != nil {
			freeBuffers(bufs[:i])
			return nil, err
		}
		bufs[i] = b
	}
	return bufs, nil
}

func freeBuffers(bufs [][]float32) {
	for i, b := range bufs {
		dsp.FreeFloatArray(b)
		bufs[i] = nil
	}
}
