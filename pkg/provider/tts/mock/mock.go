// Package mock provides an in-memory tts.Provider for tests.
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/MrWong99/sentina/pkg/provider/tts"
)

// Compile-time assertion that Provider implements tts.Provider.
var _ tts.Provider = (*Provider)(nil)

// Provider records every spoken text. An optional per-utterance delay
// simulates playback time; cancellation during the delay aborts the
// utterance the way real playback interruption does.
type Provider struct {
	// Delay simulates playback duration. Zero returns immediately.
	Delay time.Duration

	// Err, when non-nil, is returned by every Speak call.
	Err error

	mu     sync.Mutex
	spoken []string
}

// Speak records text and waits out the configured delay.
func (p *Provider) Speak(ctx context.Context, text string) error {
	if p.Err != nil {
		return p.Err
	}
	if p.Delay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.Delay):
		}
	}
	p.mu.Lock()
	p.spoken = append(p.spoken, text)
	p.mu.Unlock()
	return nil
}

// Spoken returns a copy of all fully played utterances in order.
func (p *Provider) Spoken() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.spoken))
	copy(out, p.spoken)
	return out
}
