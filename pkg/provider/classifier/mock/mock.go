// Package mock provides an in-memory classifier.Provider for tests.
package mock

import (
	"context"
	"sync"

	"github.com/MrWong99/sentina/pkg/provider/classifier"
)

// Compile-time assertion that Provider implements classifier.Provider.
var _ classifier.Provider = (*Provider)(nil)

// Provider returns a fixed ranking (or error) and counts calls.
type Provider struct {
	// Groups returned by every Classify call when Err is nil.
	Groups []classifier.Group

	// Err, when non-nil, is returned by every Classify call.
	Err error

	mu    sync.Mutex
	calls int
}

// Classify returns the configured ranking.
func (p *Provider) Classify(ctx context.Context, samples []float64) ([]classifier.Group, error) {
	p.mu.Lock()
	p.calls++
	p.mu.Unlock()
	if p.Err != nil {
		return nil, p.Err
	}
	return p.Groups, nil
}

// Calls reports how many times Classify was invoked.
func (p *Provider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}
