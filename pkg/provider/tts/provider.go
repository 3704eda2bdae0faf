// Package tts defines the Provider interface for speech output.
//
// The conversation machine treats speaking as a blocking operation: a
// Speak call returns once playback has fully finished, which is the
// signal that the microphone may change hands. Cancelling the context
// must stop playback promptly — the fall flow interrupts in-progress
// speech this way.
//
// Implementations must be safe for concurrent use, but callers are
// expected to serialise Speak calls themselves: the speaker shares the
// audio device with the listeners.
package tts

import "context"

// Provider is the abstraction over any speech output backend.
type Provider interface {
	// Speak synthesises and plays text, returning after playback
	// completes. A cancelled context stops playback and returns
	// ctx.Err().
	Speak(ctx context.Context, text string) error
}
