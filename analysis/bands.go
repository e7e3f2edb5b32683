package analysis

import (
	"math"
	"math/cmplx"

	"github.com/cwbudde/algo-dsp/dsp/window"
	algofft "github.com/cwbudde/algo-fft"
)

// Band is a frequency range in Hz.
type Band struct {
	Name string
	Lo   float64
	Hi   float64
}

// Window is a time range in seconds from the start of the aligned signals.
type Window struct {
	Name  string
	Start float64
	End   float64
}

// DefaultBands splits the audio range roughly by octave groups.
var DefaultBands = []Band{
	{"sub-bass (20-100Hz)", 20, 100},
	{"bass (100-300Hz)", 100, 300},
	{"low-mid (300-1kHz)", 300, 1000},
	{"mid (1-3kHz)", 1000, 3000},
	{"hi-mid (3-6kHz)", 3000, 6000},
	{"high (6-12kHz)", 6000, 12000},
	{"air (12-20kHz)", 12000, 20000},
}

// DefaultWindows follow an impulse response from direct sound to late tail.
var DefaultWindows = []Window{
	{"direct (0-20ms)", 0, 0.02},
	{"early (20-100ms)", 0.02, 0.1},
	{"tail (100-500ms)", 0.1, 0.5},
	{"decay (0.5-2s)", 0.5, 2},
	{"late (2-4s)", 2, 4},
}

// BandDiff compares one band inside one window.
type BandDiff struct {
	Band      string  `json:"band"`
	RMSEDB    float64 `json:"rmse_db"`
	RefDB     float64 `json:"ref_db"`
	CandDB    float64 `json:"cand_db"`
	LevelDiff float64 `json:"level_diff_db"`
}

// WindowReport holds the band comparison of one time window.
type WindowReport struct {
	Window string     `json:"window"`
	Frames int        `json:"stft_frames"`
	Bands  []BandDiff `json:"bands"`
}

const (
	bandFFTSize = 4096
	bandHop     = 2048
)

// CompareBands averages Hann-windowed STFT magnitudes of both signals per
// time window and reports per-band log-spectral distance and level. Signals
// are expected to be aligned already. Windows past the end are skipped.
func CompareBands(ref, cand []float64, sampleRate int, windows []Window, bands []Band) ([]WindowReport, error) {
	plan, err := algofft.NewPlanReal64(bandFFTSize)
	if err != nil {
		return nil, err
	}
	n := min(len(ref), len(cand))
	nBins := bandFFTSize / 2
	binHz := float64(sampleRate) / bandFFTSize

	hann, err := window.Hann(bandFFTSize)
	if err != nil {
		return nil, err
	}
	specRef := make([]complex128, nBins+1)
	specCand := make([]complex128, nBins+1)
	bufRef := make([]float64, bandFFTSize)
	bufCand := make([]float64, bandFFTSize)

	accumulate := func(avgRef, avgCand []float64) {
		plan.Forward(specRef, bufRef)
		plan.Forward(specCand, bufCand)
		for k := 1; k < nBins; k++ {
			avgRef[k] += cmplx.Abs(specRef[k])
			avgCand[k] += cmplx.Abs(specCand[k])
		}
	}

	var reports []WindowReport
	for _, w := range windows {
		start := int(w.Start * float64(sampleRate))
		end := min(int(w.End*float64(sampleRate)), n)
		if start >= end {
			continue
		}
		avgRef := make([]float64, nBins)
		avgCand := make([]float64, nBins)
		frames := 0
		for pos := start; pos+bandFFTSize <= end; pos += bandHop {
			for i := range bufRef {
				bufRef[i] = ref[pos+i] * hann[i]
				bufCand[i] = cand[pos+i] * hann[i]
			}
			accumulate(avgRef, avgCand)
			frames++
		}
		if frames == 0 {
			// window shorter than one frame: zero-padded single frame
			clear(bufRef)
			clear(bufCand)
			for i := 0; i < end-start && i < bandFFTSize; i++ {
				bufRef[i] = ref[start+i] * hann[i]
				bufCand[i] = cand[start+i] * hann[i]
			}
			accumulate(avgRef, avgCand)
			frames = 1
		}
		scale := 1 / float64(frames)
		for k := range avgRef {
			avgRef[k] *= scale
			avgCand[k] *= scale
		}

		rep := WindowReport{Window: w.Name, Frames: frames}
		for _, b := range bands {
			lo := max(int(b.Lo/binHz), 1)
			hi := min(int(b.Hi/binHz), nBins-1)
			if lo > hi {
				continue
			}
			var sumSq, refPow, candPow float64
			for k := lo; k <= hi; k++ {
				d := linToDB(avgRef[k]) - linToDB(avgCand[k])
				sumSq += d * d
				refPow += avgRef[k] * avgRef[k]
				candPow += avgCand[k] * avgCand[k]
			}
			cnt := float64(hi - lo + 1)
			refDB := 10 * math.Log10(math.Max(refPow/cnt, 1e-24))
			candDB := 10 * math.Log10(math.Max(candPow/cnt, 1e-24))
			rep.Bands = append(rep.Bands, BandDiff{
				Band:      b.Name,
				RMSEDB:    math.Sqrt(sumSq / cnt),
				RefDB:     refDB,
				CandDB:    candDB,
				LevelDiff: candDB - refDB,
			})
		}
		reports = append(reports, rep)
	}
	return reports, nil
}
