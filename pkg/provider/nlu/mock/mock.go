// Package mock provides an in-memory nlu.Provider for tests.
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/sentina/pkg/provider/nlu"
)

// Compile-time assertion that Provider implements nlu.Provider.
var _ nlu.Provider = (*Provider)(nil)

// Provider returns a fixed result (or error) and records routed
// transcripts.
type Provider struct {
	// Result returned by every Route call when Err is nil.
	Result nlu.RouteResult

	// Err, when non-nil, is returned by every Route call.
	Err error

	mu   sync.Mutex
	seen []string
}

// Route records transcript and returns the configured result.
func (p *Provider) Route(ctx context.Context, transcript string, extra map[string]string) (nlu.RouteResult, error) {
	p.mu.Lock()
	p.seen = append(p.seen, transcript)
	p.mu.Unlock()
	if p.Err != nil {
		return nlu.RouteResult{}, p.Err
	}
	return p.Result, nil
}

// Seen returns all routed transcripts in order.
func (p *Provider) Seen() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.seen))
	copy(out, p.seen)
	return out
}
