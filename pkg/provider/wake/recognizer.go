// Package wake defines the Recognizer interface for the lightweight
// keyword listener active while the companion idles.
//
// A recognizer is constrained to a single-word grammar: it emits every
// short utterance it hears as text and leaves wake-word acceptance
// (deduplication, trigger cooldown) to the conversation machine.
package wake

import (
	"context"
	"time"
)

// Result is one recognised utterance.
type Result struct {
	// Text is the recognised utterance, unnormalised.
	Text string

	// At is when recognition completed.
	At time.Time
}

// Recognizer is the abstraction over the keyword listener. It owns the
// microphone while running; Stop must release the device before any
// other component opens it.
type Recognizer interface {
	// Start begins listening. It returns an error when the audio device
	// cannot be claimed; otherwise listening proceeds in the background
	// until Stop or ctx cancellation.
	Start(ctx context.Context) error

	// Stop releases the audio device and halts recognition. Idempotent;
	// blocks until the device is released.
	Stop()

	// Results emits recognised utterances. The channel is never closed
	// while the recognizer exists; drain it from a single consumer.
	Results() <-chan Result
}
