// Package mock provides a scriptable wake.Recognizer for tests.
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/MrWong99/sentina/pkg/provider/wake"
)

// Compile-time assertion that Recognizer implements wake.Recognizer.
var _ wake.Recognizer = (*Recognizer)(nil)

// Recognizer tracks Start/Stop calls and lets tests inject results.
type Recognizer struct {
	// StartErr, when non-nil, is returned by Start.
	StartErr error

	mu      sync.Mutex
	running bool
	starts  int
	stops   int
	results chan wake.Result
}

// New creates a Recognizer with a buffered result channel.
func New() *Recognizer {
	return &Recognizer{results: make(chan wake.Result, 8)}
}

// Emit injects a recognised utterance as if heard now.
func (r *Recognizer) Emit(text string) {
	r.results <- wake.Result{Text: text, At: time.Now()}
}

// Start marks the recognizer running.
func (r *Recognizer) Start(ctx context.Context) error {
	if r.StartErr != nil {
		return r.StartErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.running = true
	r.starts++
	return nil
}

// Stop marks the recognizer stopped.
func (r *Recognizer) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		r.running = false
		r.stops++
	}
}

// Results emits injected utterances.
func (r *Recognizer) Results() <-chan wake.Result { return r.results }

// Running reports whether the recognizer is currently started.
func (r *Recognizer) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// Starts reports how many times Start succeeded.
func (r *Recognizer) Starts() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.starts
}
