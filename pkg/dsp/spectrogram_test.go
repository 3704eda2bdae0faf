package dsp_test

import (
	"math"
	"testing"

	"github.com/MrWong99/sentina/pkg/dsp"
)

func TestSpectrogram_BinCountAndFrameCount(t *testing.T) {
	t.Parallel()

	samples := make([]float64, 1600) // 100ms at 16kHz
	cfg := dsp.SpectrogramConfig{
		SampleRate: 16000,
		FrameSize:  512,
		HopSize:    160,
		Window:     dsp.WindowHann,
	}

	frames, err := dsp.Spectrogram(samples, cfg)
	if err != nil {
		t.Fatalf("Spectrogram: %v", err)
	}
	if len(frames) != 10 {
		t.Fatalf("frame count = %d, want 10", len(frames))
	}
	for i, f := range frames {
		if len(f) != 257 {
			t.Fatalf("frame %d has %d bins, want 257", i, len(f))
		}
	}
}

func TestSpectrogram_RejectsNonPowerOfTwoFrame(t *testing.T) {
	t.Parallel()

	_, err := dsp.Spectrogram(make([]float64, 100), dsp.SpectrogramConfig{
		SampleRate: 16000,
		FrameSize:  500,
		HopSize:    160,
	})
	if err == nil {
		t.Fatal("expected error for frame size 500")
	}
}

func TestSpectrogram_ToneEnergyInCorrectBin(t *testing.T) {
	t.Parallel()

	const rate = 16000
	const freq = 1000.0
	samples := make([]float64, rate/2)
	for i := range samples {
		samples[i] = math.Sin(2 * math.Pi * freq * float64(i) / rate)
	}

	frames, err := dsp.Spectrogram(samples, dsp.SpectrogramConfig{
		SampleRate: rate,
		FrameSize:  512,
		HopSize:    160,
	})
	if err != nil {
		t.Fatalf("Spectrogram: %v", err)
	}

	// Pick a frame away from the padded tail.
	frame := frames[len(frames)/2]
	peak := 0
	for b := range frame {
		if frame[b] > frame[peak] {
			peak = b
		}
	}
	peakHz := dsp.BinFrequency(peak, 512, rate)
	if math.Abs(peakHz-freq) > float64(rate)/512 {
		t.Fatalf("peak at %.0f Hz, want ~%.0f Hz", peakHz, freq)
	}
}

func TestToDecibel_NormalisedRange(t *testing.T) {
	t.Parallel()

	mag := [][]float64{
		{1e-10, 0.5, 1.0},
		{0.25, 1e-10, 0.75},
	}
	db := dsp.ToDecibel(mag, -80)

	sawOne := false
	for _, row := range db {
		for _, v := range row {
			if v < 0 || v > 1 {
				t.Fatalf("value %g out of [0,1]", v)
			}
			if v == 1 {
				sawOne = true
			}
		}
	}
	if !sawOne {
		t.Fatal("per-call maximum should normalise to exactly 1")
	}
}

func TestToDecibel_SilenceCollapsesToZero(t *testing.T) {
	t.Parallel()

	// All bins at the epsilon floor: no dynamic range.
	mag := [][]float64{{1e-10, 1e-10}}
	db := dsp.ToDecibel(mag, -80)
	for _, v := range db[0] {
		if v != 0 {
			t.Fatalf("silent spectrogram should normalise to 0, got %g", v)
		}
	}
}
