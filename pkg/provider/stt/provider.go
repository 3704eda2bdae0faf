// Package stt defines the Provider interface for batch Speech-to-Text
// backends.
//
// The companion captures whole utterances into WAV buffers before
// transcription, so the interface is deliberately batch rather than
// streaming: one finished recording in, one transcript out.
//
// Implementations must be safe for concurrent use.
package stt

import (
	"context"
	"errors"
	"io"
)

// ErrEmptyResult is returned when the backend transcribed successfully
// but produced no text (silence, unintelligible audio).
var ErrEmptyResult = errors.New("stt: empty transcription result")

// Provider is the abstraction over any batch STT backend.
type Provider interface {
	// Transcribe submits a complete WAV stream and returns the transcript
	// text. Network and service failures are returned as errors for the
	// caller to convert into spoken fallbacks; an intelligible-but-empty
	// result returns [ErrEmptyResult].
	Transcribe(ctx context.Context, wav io.Reader) (string, error)
}
