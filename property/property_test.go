package property

import (
	"errors"
	"testing"

	"github.com/cwbudde/algo-verse/status"
)

func TestScalarRangeChecks(t *testing.T) {
	p := NewFloat("frequency", 1000, 0, 20000)
	if err := p.SetFloat(440); err != nil {
		t.Fatalf("SetFloat(440): %v", err)
	}
	if err := p.SetFloat(-1); !errors.Is(err, status.ErrRange) {
		t.Fatalf("SetFloat(-1) = %v, want ErrRange", err)
	}
	if p.Float() != 440 {
		t.Fatalf("failed set mutated the value: %f", p.Float())
	}
	if err := p.SetInt(3); !errors.Is(err, status.ErrTypeMismatch) {
		t.Fatalf("SetInt on float property = %v, want ErrTypeMismatch", err)
	}
}

func TestVersionTracksWrites(t *testing.T) {
	p := NewInt("type", 0, 0, 3)
	seen := p.Version()
	if p.ModifiedSince(seen) {
		t.Fatal("unmodified property reported as modified")
	}
	if err := p.SetInt(2); err != nil {
		t.Fatal(err)
	}
	if !p.ModifiedSince(seen) {
		t.Fatal("write not reported")
	}
	seen = p.Version()
	_ = p.SetInt(99)
	if p.ModifiedSince(seen) {
		t.Fatal("rejected write bumped the version")
	}
	if !p.ModifiedSince(0) {
		t.Fatal("a fresh property must count as modified since version 0")
	}
}

func TestArrayLengthAndElementRange(t *testing.T) {
	p := NewFloatArray("delays", []float32{0, 0}, 2, 2)
	p.SetRange(0, 0.5)

	tests := []struct {
		name string
		in   []float32
		want error
	}{
		{"ok", []float32{0.1, 0.2}, nil},
		{"short", []float32{0.1}, status.ErrRange},
		{"long", []float32{0.1, 0.2, 0.3}, status.ErrRange},
		{"element", []float32{0.1, 0.7}, status.ErrRange},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := p.SetFloats(tt.in)
			if !errors.Is(err, tt.want) {
				t.Fatalf("SetFloats(%v) = %v, want %v", tt.in, err, tt.want)
			}
		})
	}
	got := p.Floats()
	if len(got) != 2 || got[0] != 0.1 || got[1] != 0.2 {
		t.Fatalf("rejected writes changed the array: %v", got)
	}
}

func TestSetFloatsCopiesInput(t *testing.T) {
	p := NewFloatArray("gains", []float32{1}, 1, 1)
	in := []float32{0.5}
	_ = p.SetFloats(in)
	in[0] = 9
	if p.Floats()[0] != 0.5 {
		t.Fatal("property aliases the caller's slice")
	}
}

func TestReadOnlyAndReset(t *testing.T) {
	p := NewFloat("max_delay", 1, 0, 10)
	p.MarkReadOnly()
	if err := p.SetFloat(2); !errors.Is(err, status.ErrReadOnly) {
		t.Fatalf("write to read-only = %v", err)
	}
	if err := p.Reset(); !errors.Is(err, status.ErrReadOnly) {
		t.Fatalf("reset of read-only = %v", err)
	}

	q := NewIntArray("types", []int32{0, 0}, 2, 2)
	_ = q.SetInts([]int32{1, 2})
	if err := q.Reset(); err != nil {
		t.Fatal(err)
	}
	if q.Ints()[0] != 0 || q.Ints()[1] != 0 {
		t.Fatalf("Reset did not restore default: %v", q.Ints())
	}
}

func TestSetSlots(t *testing.T) {
	s := NewSet()
	s.Add(3, NewInt("c", 0, 0, 1))
	s.Add(-1, NewInt("a", 0, 0, 1))
	s.Add(1, NewInt("b", 0, 0, 1))
	got := s.Slots()
	want := []int{-1, 1, 3}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Slots() = %v, want %v", got, want)
		}
	}
	if s.Get(7) != nil {
		t.Fatal("unknown slot should be nil")
	}
	if _, err := s.Lookup(7); !errors.Is(err, status.ErrRange) {
		t.Fatalf("Lookup(7) = %v", err)
	}
}
