// Package wavio reads and writes the WAV files used by the commands.
package wavio

import (
	"fmt"
	"os"
	"path/filepath"

	dspresample "github.com/cwbudde/algo-dsp/dsp/resample"
	"github.com/cwbudde/wav"
	"github.com/go-audio/audio"
)

// Read returns every channel of a WAV file as normalized float32 samples.
func Read(path string) ([][]float32, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, 0, fmt.Errorf("invalid wav file: %s", path)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, err
	}
	if buf == nil || buf.Format == nil || buf.Format.NumChannels < 1 {
		return nil, 0, fmt.Errorf("invalid wav buffer: %s", path)
	}
	if buf.Format.SampleRate <= 0 {
		return nil, 0, fmt.Errorf("invalid wav sample-rate: %d", buf.Format.SampleRate)
	}
	numCh := buf.Format.NumChannels
	frames := len(buf.Data) / numCh
	out := make([][]float32, numCh)
	for c := range out {
		out[c] = make([]float32, frames)
		for i := 0; i < frames; i++ {
			out[c][i] = buf.Data[i*numCh+c]
		}
	}
	return out, buf.Format.SampleRate, nil
}

// ReadMono reads a WAV file and averages its channels.
func ReadMono(path string) ([]float32, int, error) {
	chans, rate, err := Read(path)
	if err != nil {
		return nil, 0, err
	}
	out := make([]float32, len(chans[0]))
	scale := 1 / float32(len(chans))
	for _, ch := range chans {
		for i, v := range ch {
			out[i] += v * scale
		}
	}
	return out, rate, nil
}

// ReadMonoAt reads a WAV file as mono at sampleRate, resampling when the
// file's rate differs.
func ReadMonoAt(path string, sampleRate int) ([]float32, error) {
	data, rate, err := ReadMono(path)
	if err != nil {
		return nil, err
	}
	return ResampleIfNeeded(data, rate, sampleRate)
}

// ResampleIfNeeded converts in from fromRate to toRate with the
// highest-quality polyphase resampler.
func ResampleIfNeeded(in []float32, fromRate, toRate int) ([]float32, error) {
	if fromRate == toRate {
		return in, nil
	}
	r, err := dspresample.NewForRates(
		float64(fromRate),
		float64(toRate),
		dspresample.WithQuality(dspresample.QualityBest),
	)
	if err != nil {
		return nil, err
	}
	src := make([]float64, len(in))
	for i, v := range in {
		src[i] = float64(v)
	}
	res := r.Process(src)
	out := make([]float32, len(res))
	for i, v := range res {
		out[i] = float32(v)
	}
	return out, nil
}

// WriteInterleaved writes 16-bit PCM. samples holds channels values per
// frame.
func WriteInterleaved(path string, samples []float32, channels, sampleRate int) error {
	if channels < 1 {
		return fmt.Errorf("invalid channel count: %d", channels)
	}
	if len(samples)%channels != 0 {
		return fmt.Errorf("%d samples do not divide into %d channels", len(samples), channels)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := wav.NewEncoder(f, sampleRate, 16, channels, 1)
	defer enc.Close()

	buf := &audio.Float32Buffer{
		Format: &audio.Format{
			SampleRate:  sampleRate,
			NumChannels: channels,
		},
		Data:           samples,
		SourceBitDepth: 16,
	}
	return enc.Write(buf)
}

// Deinterleave splits frames of channels values into one slice per channel.
func Deinterleave(samples []float32, channels int) [][]float32 {
	frames := len(samples) / channels
	out := make([][]float32, channels)
	for c := range out {
		out[c] = make([]float32, frames)
		for i := 0; i < frames; i++ {
			out[c][i] = samples[i*channels+c]
		}
	}
	return out
}
