package dsp

import "github.com/cwbudde/algo-approx"

func fastExp(x float32) float32 {
	return approx.FastExp(x)
}
