// Package api is the handle-based surface of the engine. Every function
// takes and returns integer handles and reports failures as errors whose
// status.CodeOf is the code a foreign caller would see. Outputs are only
// meaningful when the error is nil.
//
// Objects created here start with one external reference. HandleDecRef
// dropping the last one destroys nodes; the simulation they belong to stays
// alive while any of its nodes do.
package api

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/cwbudde/algo-verse/graph"
	"github.com/cwbudde/algo-verse/handle"
	"github.com/cwbudde/algo-verse/status"
)

// Option configures a Library.
type Option func(*Library)

// WithLogger sets the logger handed to every simulation the library creates.
func WithLogger(l *slog.Logger) Option {
	return func(lib *Library) {
		if l != nil {
			lib.logger = l
		}
	}
}

// Library owns the handle table shared by all objects it creates.
type Library struct {
	table  *handle.Table
	logger *slog.Logger
	closed atomic.Bool

	mu   sync.Mutex
	sims []*graph.Simulation
}

// Initialize returns a ready library.
func Initialize(opts ...Option) *Library {
	l := &Library{table: handle.NewTable(), logger: slog.Default()}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	return l
}

// Shutdown drops every handle and outstanding pointer. Nodes are destroyed,
// output nodes included; later calls fail with status.ErrInvalidHandle or
// status.ErrGeneric.
func (l *Library) Shutdown() {
	if l.closed.Swap(true) {
		return
	}
	l.table.Close()

	l.mu.Lock()
	sims := l.sims
	l.sims = nil
	l.mu.Unlock()
	for _, sim := range sims {
		sim.Lock()
		_ = sim.SetOutput(nil)
		sim.Unlock()
	}
	l.logger.Debug("library shut down", "simulations", len(sims))
}

// Table exposes the handle table, mainly to tests and embedders.
func (l *Library) Table() *handle.Table { return l.table }

func (l *Library) checkOpen() error {
	if l.closed.Load() {
		return fmt.Errorf("%w: library is shut down", status.ErrGeneric)
	}
	return nil
}

// hand registers obj and gives the caller its first reference.
func (l *Library) hand(obj handle.Object) (int, error) {
	h := l.table.Outgoing(obj)
	if err := l.table.IncRef(h); err != nil {
		return 0, err
	}
	return h, nil
}

func (l *Library) simulation(h int) (*graph.Simulation, error) {
	return handle.Resolve[*graph.Simulation](l.table, h, false)
}

func (l *Library) node(h int) (*graph.Node, error) {
	n, err := handle.Resolve[graph.Interface](l.table, h, false)
	if err != nil {
		return nil, err
	}
	return n.GraphNode(), nil
}

// withNode resolves h and runs fn with the node's simulation locked.
func (l *Library) withNode(h int, fn func(n *graph.Node) error) error {
	n, err := l.node(h)
	if err != nil {
		return err
	}
	sim := n.Simulation()
	sim.Lock()
	defer sim.Unlock()
	if n.Dead() {
		return fmt.Errorf("%w: node %d was destroyed", status.ErrInvalidHandle, h)
	}
	return fn(n)
}

func (l *Library) HandleIncRef(h int) error { return l.table.IncRef(h) }

// HandleDecRef must not be called while holding a simulation lock.
func (l *Library) HandleDecRef(h int) error { return l.table.DecRef(h) }

func (l *Library) HandleGetRefCount(h int) (int, error) { return l.table.RefCount(h) }

func (l *Library) HandleGetType(h int) (handle.Kind, error) { return l.table.KindOf(h) }

func (l *Library) HandleGetAndClearFirstAccess(h int) (bool, error) { return l.table.FirstAccess(h) }

// Free releases a buffer handed out by NodeGetPropertyIndices or
// NodeGetPropertyName.
func (l *Library) Free(p unsafe.Pointer) error { return l.table.Free(p) }

// String reads a name returned by NodeGetPropertyName without freeing it.
func (l *Library) String(p unsafe.Pointer) (string, error) {
	buf, err := handle.ResolvePointer[[]byte](l.table, p)
	if err != nil {
		return "", err
	}
	return string(buf[:len(buf)-1]), nil
}
