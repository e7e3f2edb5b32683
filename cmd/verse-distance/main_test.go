package main

import "testing"

func TestAlignPeaks(t *testing.T) {
	tests := []struct {
		name         string
		ref, cand    []float64
		wantRefHead  float64
		wantCandHead float64
	}{
		{"candidate late", []float64{1, 0, 0, 0}, []float64{0, 0, -2, 0}, 1, -2},
		{"reference late", []float64{0, 0.5, 3}, []float64{4, 0, 0}, 3, 4},
		{"aligned", []float64{0, 1}, []float64{0, 1}, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, c := alignPeaks(tt.ref, tt.cand)
			if r[0] != tt.wantRefHead || c[0] != tt.wantCandHead {
				t.Fatalf("heads %f/%f, want %f/%f", r[0], c[0], tt.wantRefHead, tt.wantCandHead)
			}
		})
	}
}
