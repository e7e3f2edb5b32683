package api

import (
	"fmt"

	"github.com/cwbudde/algo-verse/graph"
	"github.com/cwbudde/algo-verse/handle"
	"github.com/cwbudde/algo-verse/status"
)

// CreateSimulation returns a handle to a new simulation.
func (l *Library) CreateSimulation(sampleRate float32, blockSize int) (int, error) {
	if err := l.checkOpen(); err != nil {
		return 0, err
	}
	sim, err := graph.New(sampleRate, blockSize, graph.WithTable(l.table), graph.WithLogger(l.logger))
	if err != nil {
		return 0, err
	}
	l.mu.Lock()
	if l.closed.Load() {
		l.mu.Unlock()
		return 0, fmt.Errorf("%w: library is shut down", status.ErrGeneric)
	}
	l.sims = append(l.sims, sim)
	l.mu.Unlock()
	return l.hand(sim)
}

func (l *Library) SimulationGetSampleRate(h int) (float32, error) {
	sim, err := l.simulation(h)
	if err != nil {
		return 0, err
	}
	return sim.SampleRate(), nil
}

func (l *Library) SimulationGetBlockSize(h int) (int, error) {
	sim, err := l.simulation(h)
	if err != nil {
		return 0, err
	}
	sim.Lock()
	defer sim.Unlock()
	return sim.BlockSize(), nil
}

func (l *Library) SimulationSetBlockSize(h, blockSize int) error {
	sim, err := l.simulation(h)
	if err != nil {
		return err
	}
	sim.Lock()
	defer sim.Unlock()
	return sim.SetBlockSize(blockSize)
}

// SimulationSetOutput selects the node GetBlock reads. Handle 0 clears it.
func (l *Library) SimulationSetOutput(h, node int) error {
	sim, err := l.simulation(h)
	if err != nil {
		return err
	}
	n, err := handle.Resolve[graph.Interface](l.table, node, true)
	if err != nil {
		return err
	}
	sim.Lock()
	defer sim.Unlock()
	return sim.SetOutput(n)
}

// SimulationGetOutput returns the output node's handle, or 0.
func (l *Library) SimulationGetOutput(h int) (int, error) {
	sim, err := l.simulation(h)
	if err != nil {
		return 0, err
	}
	sim.Lock()
	defer sim.Unlock()
	out := sim.Output()
	if out == nil {
		return 0, nil
	}
	return l.table.Outgoing(out), nil
}

// SimulationGetBlock renders one block into dst, interleaved over channels.
func (l *Library) SimulationGetBlock(h, channels int, mayApplyMix bool, dst []float32) error {
	sim, err := l.simulation(h)
	if err != nil {
		return err
	}
	return sim.GetBlock(channels, mayApplyMix, dst)
}
