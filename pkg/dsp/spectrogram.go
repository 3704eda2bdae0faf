package dsp

import (
	"fmt"
	"math"
)

// magnitudeEpsilon is added to every magnitude bin so that a later
// logarithm never sees an exact zero.
const magnitudeEpsilon = 1e-10

// Window selects the analysis window applied to each frame before the FFT.
type Window int

const (
	// WindowHann applies a Hann (raised cosine) window.
	WindowHann Window = iota

	// WindowRect applies no tapering (rectangular window).
	WindowRect
)

// SpectrogramConfig describes one magnitude-spectrogram computation.
type SpectrogramConfig struct {
	// SampleRate of the input signal in Hz.
	SampleRate int

	// FrameSize is the FFT length in samples. Must be a power of two.
	FrameSize int

	// HopSize is the frame advance in samples. Must be > 0.
	HopSize int

	// Window is the analysis window. Defaults to Hann.
	Window Window
}

// Spectrogram slides a window across samples and returns one magnitude
// vector per hop, each with FrameSize/2+1 bins. The final partial frame
// is zero-padded to FrameSize. Magnitudes carry a small epsilon offset
// so log scaling never encounters zero.
func Spectrogram(samples []float64, cfg SpectrogramConfig) ([][]float64, error) {
	if cfg.FrameSize <= 0 || cfg.FrameSize&(cfg.FrameSize-1) != 0 {
		return nil, fmt.Errorf("dsp: frame size %d is not a power of two", cfg.FrameSize)
	}
	if cfg.HopSize <= 0 {
		return nil, fmt.Errorf("dsp: hop size %d must be positive", cfg.HopSize)
	}
	if len(samples) == 0 {
		return nil, nil
	}

	window := makeWindow(cfg.Window, cfg.FrameSize)
	bins := cfg.FrameSize/2 + 1

	frames := 1 + (len(samples)-1)/cfg.HopSize
	out := make([][]float64, 0, frames)

	re := make([]float64, cfg.FrameSize)
	im := make([]float64, cfg.FrameSize)

	for start := 0; start < len(samples); start += cfg.HopSize {
		for i := 0; i < cfg.FrameSize; i++ {
			if start+i < len(samples) {
				re[i] = samples[start+i] * window[i]
			} else {
				re[i] = 0 // zero-pad the tail frame
			}
			im[i] = 0
		}

		FFT(re, im)

		mag := make([]float64, bins)
		for b := 0; b < bins; b++ {
			mag[b] = math.Hypot(re[b], im[b]) + magnitudeEpsilon
		}
		out = append(out, mag)
	}

	return out, nil
}

// ToDecibel rescales a magnitude spectrogram to decibels clipped at
// floorDB and normalised into [0, 1] against the maximum decibel value
// observed in this call.
//
// The normalisation is per invocation: output values are only comparable
// within one ToDecibel call, never across calls. The fall detector's
// ratio thresholds were tuned against this behaviour; preserve it.
func ToDecibel(mag [][]float64, floorDB float64) [][]float64 {
	if len(mag) == 0 {
		return nil
	}

	maxDB := math.Inf(-1)
	db := make([][]float64, len(mag))
	for i, frame := range mag {
		row := make([]float64, len(frame))
		for j, m := range frame {
			v := 20 * math.Log10(m)
			if v < floorDB {
				v = floorDB
			}
			row[j] = v
			if v > maxDB {
				maxDB = v
			}
		}
		db[i] = row
	}

	span := maxDB - floorDB
	if span <= 0 {
		for _, row := range db {
			for j := range row {
				row[j] = 0
			}
		}
		return db
	}

	for _, row := range db {
		for j := range row {
			row[j] = (row[j] - floorDB) / span
		}
	}
	return db
}

// BinFrequency returns the centre frequency in Hz of FFT bin b for the
// given frame size and sample rate.
func BinFrequency(b, frameSize, sampleRate int) float64 {
	return float64(b) * float64(sampleRate) / float64(frameSize)
}

// makeWindow returns the window coefficients for the given kind and size.
func makeWindow(kind Window, size int) []float64 {
	w := make([]float64, size)
	switch kind {
	case WindowRect:
		for i := range w {
			w[i] = 1
		}
	default: // Hann
		for i := range w {
			w[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(size-1)))
		}
	}
	return w
}
