// Package audio provides the PCM frame type, level math, and the WAV
// container used across the capture, VAD, and fall-detection pipelines.
//
// The whole system runs on a single fixed format: 16 kHz mono signed
// 16-bit little-endian PCM, captured in 30 ms frames.
package audio

import "time"

const (
	// SampleRate is the fixed pipeline sample rate in Hz.
	SampleRate = 16000

	// BitsPerSample is the fixed PCM bit depth.
	BitsPerSample = 16

	// FrameDuration is the capture tick.
	FrameDuration = 30 * time.Millisecond

	// SamplesPerFrame is the number of mono samples in one capture frame.
	SamplesPerFrame = SampleRate * 30 / 1000
)

// Frame is one capture tick of mono PCM. Frames are ephemeral: produced
// by the device, consumed immediately by feature extraction or the WAV
// writer, never persisted on their own.
type Frame struct {
	// Samples holds up to SamplesPerFrame signed 16-bit samples (fewer
	// for a truncated final frame).
	Samples []int16

	// Timestamp marks when the frame was captured, relative to the start
	// of its capture session.
	Timestamp time.Duration
}
