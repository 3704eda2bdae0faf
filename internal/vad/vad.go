// Package vad implements the buffer-level voice activity gate that
// decides whether a finished recording is worth transcribing.
//
// The gate calibrates a noise floor from the first frames of the
// recording itself, derives an adaptive threshold, and then scans for
// voiced energy. Its failure policy is deliberately fail-open: a
// recording the gate cannot parse is accepted rather than silently
// dropping the user's words over a format quirk.
package vad

import (
	"bytes"
	"io"
	"log/slog"
	"math"
	"sort"

	"github.com/MrWong99/sentina/pkg/audio"
)

const (
	// frameMs is the analysis frame length.
	frameMs = 10

	// calibrationFrames caps how many leading frames feed the noise
	// floor estimate.
	calibrationFrames = 30

	// noiseFloorPercentile picks the calibration energy used as floor.
	noiseFloorPercentile = 0.70

	// floorHeadroomDB sits the working threshold above the noise floor.
	floorHeadroomDB = 6.0

	// gateHeadroomDB sits the working threshold above the configured gate.
	gateHeadroomDB = 2.0

	// thresholdMinDB and thresholdMaxDB clamp the working threshold.
	thresholdMinDB = -65.0
	thresholdMaxDB = -38.0

	// minContinuousRunMs accepts on a sustained voiced run regardless of
	// total voiced duration.
	minContinuousRunMs = 120

	// absolutePeakTrigger accepts on any frame peaking above this
	// full-scale amplitude.
	absolutePeakTrigger = 0.10
)

// Option is a functional option for configuring a Gate.
type Option func(*Gate)

// WithGateThresholdDBFS sets the configured gate level in dBFS that
// seeds the adaptive working threshold. Default: -50 dBFS.
func WithGateThresholdDBFS(db float64) Option {
	return func(g *Gate) { g.gateDBFS = db }
}

// WithMinVoicedMs sets the total voiced duration required for
// acceptance. Default: 300 ms.
func WithMinVoicedMs(ms int) Option {
	return func(g *Gate) { g.minVoicedMs = ms }
}

// Gate decides whether a recording carries enough voice. It is
// stateless across calls and safe for concurrent use.
type Gate struct {
	gateDBFS    float64
	minVoicedMs int
}

// New creates a Gate with the supplied options.
func New(opts ...Option) *Gate {
	g := &Gate{
		gateDBFS:    -50,
		minVoicedMs: 300,
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// HasEnoughVoice reports whether the WAV stream in r carries enough
// voiced audio to transcribe. Any parse failure accepts with a warning:
// transcription must never be blocked by a format the gate cannot read.
func (g *Gate) HasEnoughVoice(r io.Reader) bool {
	format, samples, err := audio.DecodeWAV(r)
	if err != nil {
		slog.Warn("vad: cannot parse recording, accepting fail-open", "err", err)
		return true
	}
	return g.hasEnoughVoiceSamples(format, samples)
}

// HasEnoughVoiceBytes is a convenience wrapper over an in-memory WAV.
func (g *Gate) HasEnoughVoiceBytes(wav []byte) bool {
	return g.HasEnoughVoice(bytes.NewReader(wav))
}

func (g *Gate) hasEnoughVoiceSamples(format audio.Format, samples []int16) bool {
	if format.Channels != 1 || format.SampleRate <= 0 {
		slog.Warn("vad: unexpected recording layout, accepting fail-open",
			"channels", format.Channels, "sample_rate", format.SampleRate)
		return true
	}

	frameLen := format.SampleRate * frameMs / 1000
	if frameLen <= 0 || len(samples) < frameLen {
		// Shorter than one calibration frame: nothing to measure.
		slog.Warn("vad: recording shorter than one frame, accepting fail-open",
			"samples", len(samples))
		return true
	}

	frameCount := len(samples) / frameLen

	// Calibration: noise floor from the leading frames.
	calCount := calibrationFrames
	if frameCount < calCount {
		calCount = frameCount
	}
	energies := make([]float64, calCount)
	for i := 0; i < calCount; i++ {
		energies[i] = audio.DBFS(audio.RMSInt16(samples[i*frameLen : (i+1)*frameLen]))
	}
	sort.Float64s(energies)
	noiseFloor := energies[int(float64(calCount-1)*noiseFloorPercentile)]

	threshold := math.Min(noiseFloor+floorHeadroomDB, g.gateDBFS+gateHeadroomDB)
	threshold = math.Max(thresholdMinDB, math.Min(thresholdMaxDB, threshold))

	voicedMs := 0
	runMs := 0
	for i := 0; i < frameCount; i++ {
		frame := samples[i*frameLen : (i+1)*frameLen]

		if audio.PeakInt16(frame) >= absolutePeakTrigger {
			return true
		}

		if audio.DBFS(audio.RMSInt16(frame)) >= threshold {
			voicedMs += frameMs
			runMs += frameMs
			if voicedMs >= g.minVoicedMs || runMs >= minContinuousRunMs {
				return true
			}
		} else {
			runMs = 0
		}
	}

	return false
}
