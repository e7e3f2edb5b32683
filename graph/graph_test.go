package graph

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"unsafe"

	"github.com/cwbudde/algo-verse/handle"
	"github.com/cwbudde/algo-verse/status"
)

const testKind = KindNode + 1

// constant writes value to every output.
type constant struct {
	*Node
	value float32
}

func (c *constant) Process() {
	for _, o := range c.Outputs() {
		for i := range o[:c.BlockSize()] {
			o[i] = c.value
		}
	}
}

// clock writes the number of blocks rendered before this one.
type clock struct {
	*Node
}

func (c *clock) Process() {
	v := float32(c.Simulation().Ticks())
	for i := range c.Outputs()[0][:c.BlockSize()] {
		c.Outputs()[0][i] = v
	}
}

// recorder copies its inputs to its outputs and keeps the last block.
type recorder struct {
	*Node
	last [][]float32
}

func (r *recorder) Process() {
	r.last = r.last[:0]
	for i, in := range r.Inputs() {
		r.last = append(r.last, append([]float32(nil), in[:r.BlockSize()]...))
		if i < len(r.Outputs()) {
			copy(r.Outputs()[i], in[:r.BlockSize()])
		}
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newSim(t *testing.T, blockSize int) *Simulation {
	t.Helper()
	sim, err := New(44100, blockSize, WithLogger(quietLogger()))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return sim
}

func newConstant(t *testing.T, sim *Simulation, outputs int, value float32) *constant {
	t.Helper()
	n, err := NewNode(sim, testKind, 0, outputs)
	if err != nil {
		t.Fatal(err)
	}
	c := &constant{Node: n, value: value}
	n.Attach(c)
	return c
}

func newRecorder(t *testing.T, sim *Simulation, channels int) *recorder {
	t.Helper()
	n, err := NewNode(sim, testKind, channels, channels)
	if err != nil {
		t.Fatal(err)
	}
	r := &recorder{Node: n}
	n.Attach(r)
	return r
}

func assertAll(t *testing.T, buf []float32, want float32) {
	t.Helper()
	for i, v := range buf {
		if v != want {
			t.Fatalf("sample %d = %f, want %f", i, v, want)
		}
	}
}

func TestNewValidatesArguments(t *testing.T) {
	if _, err := New(0, 64); !errors.Is(err, status.ErrRange) {
		t.Fatalf("zero sample rate: %v", err)
	}
	if _, err := New(44100, 0); !errors.Is(err, status.ErrRange) {
		t.Fatalf("zero block size: %v", err)
	}
	sim := newSim(t, 64)
	if sim.Handle() == 0 {
		t.Fatal("simulation has no handle")
	}
	if _, err := NewNode(sim, testKind, -1, 0); !errors.Is(err, status.ErrRange) {
		t.Fatalf("negative inputs: %v", err)
	}
}

func TestDisconnectedInputsReadZero(t *testing.T) {
	sim := newSim(t, 32)
	r := newRecorder(t, sim, 3)
	sim.Render()
	if len(r.last) != 3 {
		t.Fatalf("recorded %d inputs", len(r.last))
	}
	for _, in := range r.last {
		assertAll(t, in, 0)
	}
}

func TestSuspendedParentReadsZero(t *testing.T) {
	sim := newSim(t, 16)
	a := newConstant(t, sim, 1, 0.75)
	b := newRecorder(t, sim, 1)
	if err := b.SetParent(0, a, 0); err != nil {
		t.Fatal(err)
	}

	sim.Render()
	assertAll(t, b.last[0], 0.75)

	a.Suspend()
	sim.Render()
	assertAll(t, b.last[0], 0)
	assertAll(t, b.Inputs()[0], 0)
	assertAll(t, a.Outputs()[0][:16], 0.75)

	a.Unsuspend()
	sim.Render()
	assertAll(t, b.last[0], 0.75)
}

func TestRenderOrderRunsParentsFirst(t *testing.T) {
	sim := newSim(t, 8)
	// child created before its parent
	child := newRecorder(t, sim, 1)
	n, err := NewNode(sim, testKind, 0, 1)
	if err != nil {
		t.Fatal(err)
	}
	parent := &clock{Node: n}
	n.Attach(parent)
	if err := child.SetParent(0, parent, 0); err != nil {
		t.Fatal(err)
	}
	for block := 0; block < 3; block++ {
		sim.Render()
		assertAll(t, child.last[0], float32(block))
	}
	if sim.Ticks() != 3 {
		t.Fatalf("Ticks() = %d", sim.Ticks())
	}
}

func TestSetParentValidation(t *testing.T) {
	sim := newSim(t, 8)
	src := newConstant(t, sim, 2, 1)
	dst := newRecorder(t, sim, 1)

	tests := []struct {
		name          string
		input, output int
	}{
		{"input too large", 1, 0},
		{"negative input", -1, 0},
		{"output too large", 0, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := dst.SetParent(tt.input, src, tt.output); !errors.Is(err, status.ErrRange) {
				t.Fatalf("got %v, want ErrRange", err)
			}
		})
	}

	other := newSim(t, 8)
	foreign := newConstant(t, other, 1, 1)
	if err := dst.SetParent(0, foreign, 0); !errors.Is(err, status.ErrRange) {
		t.Fatalf("cross-simulation connection: %v", err)
	}

	if err := dst.SetParent(0, src, 1); err != nil {
		t.Fatal(err)
	}
	p, out, err := dst.Parent(0)
	if err != nil || p != Interface(src) || out != 1 {
		t.Fatalf("Parent(0) = %v, %d, %v", p, out, err)
	}
	if err := dst.ClearParent(0); err != nil {
		t.Fatal(err)
	}
	if p, _, _ := dst.Parent(0); p != nil {
		t.Fatal("ClearParent left a parent")
	}
	if _, _, err := dst.Parent(4); !errors.Is(err, status.ErrRange) {
		t.Fatalf("Parent(4) = %v", err)
	}
}

func TestCyclesAreRejected(t *testing.T) {
	sim := newSim(t, 8)
	a := newRecorder(t, sim, 1)
	b := newRecorder(t, sim, 1)
	c := newRecorder(t, sim, 1)
	if err := b.SetParent(0, a, 0); err != nil {
		t.Fatal(err)
	}
	if err := c.SetParent(0, b, 0); err != nil {
		t.Fatal(err)
	}
	if err := a.SetParent(0, c, 0); !errors.Is(err, status.ErrRange) {
		t.Fatalf("closing a cycle: %v", err)
	}
	if err := a.SetParent(0, a, 0); !errors.Is(err, status.ErrRange) {
		t.Fatalf("self connection: %v", err)
	}
	if p, _, _ := a.Parent(0); p != nil {
		t.Fatal("rejected connection was applied")
	}
	sim.Render()
}

func TestResizeKeepsRetainedBuffers(t *testing.T) {
	sim := newSim(t, 16)
	src := newConstant(t, sim, 2, 1)
	child := newRecorder(t, sim, 1)
	if err := child.SetParent(0, src, 1); err != nil {
		t.Fatal(err)
	}
	sim.Render()
	first := unsafe.Pointer(&src.Outputs()[0][0])
	second := unsafe.Pointer(&src.Outputs()[1][0])

	if err := src.Resize(0, 4); err != nil {
		t.Fatal(err)
	}
	if src.OutputCount() != 4 {
		t.Fatalf("OutputCount = %d", src.OutputCount())
	}
	if unsafe.Pointer(&src.Outputs()[0][0]) != first || unsafe.Pointer(&src.Outputs()[1][0]) != second {
		t.Fatal("growing replaced retained buffers")
	}
	assertAll(t, src.Outputs()[0], 1)
	for _, o := range src.Outputs()[2:] {
		if len(o) != 16 {
			t.Fatalf("new buffer has length %d", len(o))
		}
		assertAll(t, o, 0)
	}

	if err := src.Resize(0, 1); err != nil {
		t.Fatal(err)
	}
	if src.OutputCount() != 1 || unsafe.Pointer(&src.Outputs()[0][0]) != first {
		t.Fatal("shrinking lost the retained buffer")
	}
	sim.Render()
	assertAll(t, child.last[0], 0)
	if p, _, _ := child.Parent(0); p != nil {
		t.Fatal("connection to a removed output survived")
	}

	if err := child.Resize(3, 0); err != nil {
		t.Fatal(err)
	}
	if child.InputCount() != 3 || child.OutputCount() != 0 {
		t.Fatalf("counts = %d/%d", child.InputCount(), child.OutputCount())
	}
	if err := child.Resize(-1, 0); !errors.Is(err, status.ErrRange) {
		t.Fatalf("negative resize: %v", err)
	}
}

func TestSetBlockSizeReallocates(t *testing.T) {
	sim := newSim(t, 16)
	src := newConstant(t, sim, 2, 0.5)
	child := newRecorder(t, sim, 2)
	_ = child.SetParent(0, src, 0)
	_ = child.SetParent(1, src, 1)
	_ = sim.SetOutput(child)

	if err := sim.SetBlockSize(0); !errors.Is(err, status.ErrRange) {
		t.Fatalf("SetBlockSize(0) = %v", err)
	}
	if err := sim.SetBlockSize(48); err != nil {
		t.Fatal(err)
	}
	for _, o := range src.Outputs() {
		if len(o) != 48 {
			t.Fatalf("output length %d after block size change", len(o))
		}
	}
	dst := make([]float32, 2*48)
	if err := sim.GetBlock(2, false, dst); err != nil {
		t.Fatal(err)
	}
	assertAll(t, dst, 0.5)
	if err := sim.GetBlock(2, false, make([]float32, 2*16)); !errors.Is(err, status.ErrRange) {
		t.Fatalf("short destination: %v", err)
	}
}

func TestGetBlockMixing(t *testing.T) {
	sim := newSim(t, 4)
	mono := newConstant(t, sim, 1, 0.25)
	stereo := newConstant(t, sim, 2, 1)

	if err := sim.SetOutput(mono); err != nil {
		t.Fatal(err)
	}
	dst := make([]float32, 8)
	if err := sim.GetBlock(2, true, dst); err != nil {
		t.Fatal(err)
	}
	assertAll(t, dst, 0.25)

	if err := sim.GetBlock(2, false, dst); err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 4; i++ {
		if dst[2*i] != 0.25 || dst[2*i+1] != 0 {
			t.Fatalf("frame %d = %v without mixing", i, dst[2*i:2*i+2])
		}
	}

	_ = sim.SetOutput(stereo)
	out := make([]float32, 4)
	if err := sim.GetBlock(1, true, out); err != nil {
		t.Fatal(err)
	}
	assertAll(t, out, 1)

	_ = sim.SetOutput(nil)
	if err := sim.GetBlock(1, true, out); err != nil {
		t.Fatal(err)
	}
	assertAll(t, out, 0)
	if err := sim.GetBlock(0, true, out); !errors.Is(err, status.ErrRange) {
		t.Fatalf("zero channels: %v", err)
	}
}

func TestMulAndAdd(t *testing.T) {
	sim := newSim(t, 8)
	c := newConstant(t, sim, 1, 2)
	if err := c.Properties().Get(PropMul).SetFloat(0.5); err != nil {
		t.Fatal(err)
	}
	if err := c.Properties().Get(PropAdd).SetFloat(0.25); err != nil {
		t.Fatal(err)
	}
	sim.Render()
	assertAll(t, c.Outputs()[0], 1.25)
}

func TestPropertiesModified(t *testing.T) {
	sim := newSim(t, 8)
	c := newConstant(t, sim, 1, 0)
	if !c.PropertiesModified(PropMul, PropAdd) {
		t.Fatal("fresh properties should count as modified")
	}
	if c.PropertiesModified(PropMul, PropAdd) {
		t.Fatal("second check reported a change")
	}
	_ = c.Properties().Get(PropAdd).SetFloat(1)
	if !c.PropertiesModified(PropMul, PropAdd) {
		t.Fatal("write not reported")
	}
	if c.PropertiesModified(PropMul, PropAdd, 99) {
		t.Fatal("unknown slot reported a change")
	}
}

func TestReleaseDestroysNode(t *testing.T) {
	tbl := handle.NewTable()
	sim, err := New(44100, 8, WithTable(tbl), WithLogger(quietLogger()))
	if err != nil {
		t.Fatal(err)
	}
	src := newConstant(t, sim, 1, 1)
	child := newRecorder(t, sim, 1)
	_ = child.SetParent(0, src, 0)

	h := tbl.Outgoing(src)
	if err := tbl.IncRef(h); err != nil {
		t.Fatal(err)
	}
	sim.Render()
	assertAll(t, child.last[0], 1)

	if err := tbl.DecRef(h); err != nil {
		t.Fatal(err)
	}
	if !src.Dead() || src.Outputs() != nil {
		t.Fatal("node not destroyed on final release")
	}
	if len(sim.Nodes()) != 1 {
		t.Fatalf("simulation still holds %d nodes", len(sim.Nodes()))
	}
	sim.Render()
	assertAll(t, child.last[0], 0)
	if err := child.SetParent(0, src, 0); !errors.Is(err, status.ErrInvalidHandle) {
		t.Fatalf("connecting to a destroyed node: %v", err)
	}
}

func TestOutputNodeOutlivesExternalRelease(t *testing.T) {
	sim := newSim(t, 8)
	c := newConstant(t, sim, 1, 0.5)
	_ = sim.SetOutput(c)
	c.Release()
	if c.Dead() {
		t.Fatal("output node destroyed while still the output")
	}
	dst := make([]float32, 8)
	_ = sim.GetBlock(1, false, dst)
	assertAll(t, dst, 0.5)

	_ = sim.SetOutput(nil)
	if !c.Dead() {
		t.Fatal("released node not destroyed once it stopped being the output")
	}
}

func TestOutputReferencedAgainSurvivesOutputChange(t *testing.T) {
	sim := newSim(t, 8)
	tbl := sim.Table()
	c := newConstant(t, sim, 1, 0.5)
	h := tbl.Outgoing(c)
	if err := tbl.IncRef(h); err != nil {
		t.Fatal(err)
	}
	_ = sim.SetOutput(c)
	if err := tbl.DecRef(h); err != nil {
		t.Fatal(err)
	}

	if again := tbl.Outgoing(c); again != h {
		t.Fatalf("handed out as %d, want %d", again, h)
	}
	if err := tbl.IncRef(h); err != nil {
		t.Fatal(err)
	}
	_ = sim.SetOutput(nil)
	if c.Dead() {
		t.Fatal("node destroyed while an external reference is held")
	}
	if n, err := tbl.RefCount(h); err != nil || n != 1 {
		t.Fatalf("RefCount = %d, %v", n, err)
	}

	if err := tbl.DecRef(h); err != nil {
		t.Fatal(err)
	}
	if !c.Dead() {
		t.Fatal("node not destroyed on final release")
	}
}

func TestOutputHandedOutWithoutReferenceIsDestroyed(t *testing.T) {
	sim := newSim(t, 8)
	tbl := sim.Table()
	c := newConstant(t, sim, 1, 0.5)
	_ = sim.SetOutput(c)
	c.Release()
	h := tbl.Outgoing(c)

	_ = sim.SetOutput(nil)
	if !c.Dead() {
		t.Fatal("unreferenced node survived leaving the output")
	}
	if _, err := tbl.RefCount(h); !errors.Is(err, status.ErrInvalidHandle) {
		t.Fatalf("stale handle still resolves: %v", err)
	}
}

func TestForeignParentRejectedWhileItsSimulationRenders(t *testing.T) {
	sim := newSim(t, 8)
	dst := newRecorder(t, sim, 1)
	other := newSim(t, 8)
	foreign := newConstant(t, other, 1, 1)
	_ = other.SetOutput(foreign)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			other.Render()
		}
	}()
	for i := 0; i < 200; i++ {
		if err := dst.SetParent(0, foreign, 5); !errors.Is(err, status.ErrRange) {
			t.Errorf("cross-simulation connection: %v", err)
			break
		}
	}
	wg.Wait()
}

func TestConcurrentControlAndRender(t *testing.T) {
	sim := newSim(t, 64)
	src := newConstant(t, sim, 2, 1)
	mid := newRecorder(t, sim, 2)
	_ = sim.SetOutput(mid)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		dst := make([]float32, 2*64)
		for i := 0; i < 300; i++ {
			if err := sim.GetBlock(2, true, dst); err != nil {
				t.Error(err)
				return
			}
		}
	}()

	for i := 0; i < 300; i++ {
		sim.Lock()
		switch i % 4 {
		case 0:
			_ = mid.SetParent(0, src, i%2)
		case 1:
			_ = mid.ClearParent(0)
		case 2:
			_ = src.Resize(0, 1+i%3)
		case 3:
			_ = src.Properties().Get(PropMul).SetFloat(float32(i%5) / 5)
		}
		sim.Unlock()
	}
	wg.Wait()
}
