package falldetect

import (
	"math"

	"github.com/MrWong99/sentina/pkg/audio"
	"github.com/MrWong99/sentina/pkg/dsp"
)

// Features summarises one 3-second ambient window for the decision
// function. Computed once per full ring buffer and discarded.
type Features struct {
	RMSPeak       float64 // peak per-frame RMS, full scale
	PeakFrame     int     // spectrogram frame index of the peak
	WidthMs       float64 // half-maximum onset/decay width around the peak
	LowFreqRatio  float64 // energy ≤ lowBandHz / total, at the peak frame
	HighFreqRatio float64 // energy in [highBandLoHz, highBandHiHz] / total
	CentroidHz    float64 // spectral centroid at the peak frame
	PostSilence   bool    // RMS stays below silenceFloor for postSilenceMs
	TopLabel      string  // best classifier label across groups
	TopScore      float64
	Path          string // acceptance path, "bassy" or "farfield"
}

const (
	lowBandHz    = 500.0
	highBandLoHz = 2000.0
	highBandHiHz = 6000.0

	// Post-event quiet: RMS must stay under silenceFloor for
	// postSilenceMs, evaluated postSilenceLagMs after the peak.
	silenceFloor     = 0.02
	postSilenceMs    = 400
	postSilenceLagMs = 200
)

// extractFeatures computes the spectral and temporal features of one
// window. samples is full-scale [-1,1] PCM, spec the magnitude
// spectrogram of the same samples, cfg the spectrogram geometry.
func extractFeatures(samples []float64, spec [][]float64, cfg dsp.SpectrogramConfig) Features {
	var f Features
	if len(spec) == 0 {
		return f
	}

	// Per-hop RMS aligned with the spectrogram frames.
	rms := make([]float64, len(spec))
	for i := range spec {
		start := i * cfg.HopSize
		end := start + cfg.FrameSize
		if end > len(samples) {
			end = len(samples)
		}
		rms[i] = audio.RMS(samples[start:end])
		if rms[i] > f.RMSPeak {
			f.RMSPeak = rms[i]
			f.PeakFrame = i
		}
	}

	hopMs := float64(cfg.HopSize) / float64(cfg.SampleRate) * 1000

	// Half-maximum width: expand left and right from the peak while
	// RMS holds at least 50% of the peak value.
	half := f.RMSPeak / 2
	lo, hi := f.PeakFrame, f.PeakFrame
	for lo > 0 && rms[lo-1] >= half {
		lo--
	}
	for hi < len(rms)-1 && rms[hi+1] >= half {
		hi++
	}
	f.WidthMs = float64(hi-lo+1) * hopMs

	f.LowFreqRatio, f.HighFreqRatio, f.CentroidHz = bandRatios(spec[f.PeakFrame], cfg)

	// Post-event silence check.
	lag := int(math.Round(postSilenceLagMs / hopMs))
	span := int(math.Round(postSilenceMs / hopMs))
	start := f.PeakFrame + lag
	if start+span <= len(rms) {
		f.PostSilence = true
		for _, v := range rms[start : start+span] {
			if v >= silenceFloor {
				f.PostSilence = false
				break
			}
		}
	}
	return f
}

// bandRatios computes the low band ratio, high band ratio and spectral
// centroid of a single magnitude frame.
func bandRatios(mag []float64, cfg dsp.SpectrogramConfig) (low, high, centroid float64) {
	var total, lowSum, highSum, weighted float64
	for bin, m := range mag {
		freq := dsp.BinFrequency(bin, cfg.FrameSize, cfg.SampleRate)
		e := m * m
		total += e
		weighted += e * freq
		if freq <= lowBandHz {
			lowSum += e
		}
		if freq >= highBandLoHz && freq <= highBandHiHz {
			highSum += e
		}
	}
	if total == 0 {
		return 0, 0, 0
	}
	return lowSum / total, highSum / total, weighted / total
}
