// Package mock provides an in-memory stt.Provider for tests.
package mock

import (
	"context"
	"io"
	"sync"

	"github.com/MrWong99/sentina/pkg/provider/stt"
)

// Compile-time assertion that Provider implements stt.Provider.
var _ stt.Provider = (*Provider)(nil)

// Provider returns canned transcripts in order and records every call.
// The zero value returns stt.ErrEmptyResult for all calls.
type Provider struct {
	mu      sync.Mutex
	replies []reply
	calls   int
}

type reply struct {
	text string
	err  error
}

// Queue appends a successful transcription result.
func (p *Provider) Queue(text string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.replies = append(p.replies, reply{text: text})
}

// QueueErr appends a failing transcription result.
func (p *Provider) QueueErr(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.replies = append(p.replies, reply{err: err})
}

// Calls reports how many times Transcribe was invoked.
func (p *Provider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// Transcribe consumes wav and pops the next queued reply.
func (p *Provider) Transcribe(ctx context.Context, wav io.Reader) (string, error) {
	if wav != nil {
		_, _ = io.Copy(io.Discard, wav)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if len(p.replies) == 0 {
		return "", stt.ErrEmptyResult
	}
	r := p.replies[0]
	p.replies = p.replies[1:]
	if r.err != nil {
		return "", r.err
	}
	return r.text, nil
}
