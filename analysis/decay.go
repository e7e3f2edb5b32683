package analysis

import (
	"math"

	"github.com/cwbudde/algo-dsp/measure/ir"
)

func rmsEnvelope(x []float64, frame int, hop int) []float64 {
	if frame <= 0 || hop <= 0 || len(x) < frame {
		return nil
	}
	out := make([]float64, 1+(len(x)-frame)/hop)
	for i := range out {
		start := i * hop
		out[i] = rms1(x[start : start+frame])
	}
	return out
}

// decaySlopeDBPerS fits a line to the envelope in dB from its peak down to
// 60 dB below it. NaN when there is too little decay to fit.
func decaySlopeDBPerS(env []float64, hopSec float64) float64 {
	if len(env) < 8 || hopSec <= 0 {
		return math.NaN()
	}
	peak := math.Inf(-1)
	peakIdx := 0
	for i, v := range env {
		if db := linToDB(v); db > peak {
			peak = db
			peakIdx = i
		}
	}
	start := peakIdx + 1
	if start >= len(env)-4 {
		return math.NaN()
	}
	end := len(env)
	for i := start; i < len(env); i++ {
		if linToDB(env[i]) < peak-60 {
			end = i
			break
		}
	}
	if end-start < 6 {
		return math.NaN()
	}
	ys := make([]float64, end-start)
	for i := range ys {
		ys[i] = linToDB(env[start+i])
	}
	return linearSlope(ys, hopSec)
}

// linearSlope is the least-squares slope of ys sampled every dx.
func linearSlope(ys []float64, dx float64) float64 {
	var sx, sy, sxx, sxy float64
	n := float64(len(ys))
	for i, y := range ys {
		x := float64(i) * dx
		sx += x
		sy += y
		sxx += x * x
		sxy += x * y
	}
	den := n*sxx - sx*sx
	if math.Abs(den) < 1e-12 {
		return math.NaN()
	}
	return (n*sxy - sx*sy) / den
}

// RT60 estimates the reverberation time of an impulse response from its
// Schroeder decay curve, using T30 and falling back to T20 for short tails.
// NaN if neither range is reached.
func RT60(x []float64, sampleRate int) float64 {
	if sampleRate <= 0 || len(x) == 0 {
		return math.NaN()
	}
	rt, err := ir.NewAnalyzer(float64(sampleRate)).RT60(x)
	if err != nil {
		return math.NaN()
	}
	return rt
}

// Acoustics reports the room-acoustic parameters of an impulse response
// (EDT, clarity, definition, centre time). Times are in seconds.
type Acoustics struct {
	RT60       float64 `json:"rt60"`
	EDT        float64 `json:"edt"`
	C50        float64 `json:"c50_db"`
	C80        float64 `json:"c80_db"`
	D50        float64 `json:"d50"`
	CenterTime float64 `json:"center_time"`
	PeakIndex  int     `json:"peak_index"`
}

// AnalyzeAcoustics measures x starting at its absolute peak.
func AnalyzeAcoustics(x []float64, sampleRate int) (Acoustics, error) {
	m, err := ir.NewAnalyzer(float64(sampleRate)).Analyze(x)
	if err != nil {
		return Acoustics{}, err
	}
	a := Acoustics{
		RT60:       m.RT60,
		EDT:        m.EDT,
		C50:        m.C50,
		C80:        m.C80,
		D50:        m.D50,
		CenterTime: m.CenterTime,
		PeakIndex:  m.PeakIndex,
	}
	// zero means the decay range was never reached
	if a.RT60 <= 0 {
		a.RT60 = math.NaN()
	}
	if a.EDT <= 0 {
		a.EDT = math.NaN()
	}
	return a, nil
}

// Finite zeroes the values that could not be measured so the report can be
// encoded as JSON. Clarity is infinite when all energy falls on one side of
// the boundary.
func (a Acoustics) Finite() Acoustics {
	for _, v := range []*float64{&a.RT60, &a.EDT, &a.C50, &a.C80} {
		if !isFinite(*v) {
			*v = 0
		}
	}
	return a
}
