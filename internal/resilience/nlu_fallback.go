package resilience

import (
	"context"

	"github.com/MrWong99/sentina/pkg/provider/nlu"
)

// NLUFallback implements [nlu.Provider] with automatic failover across multiple
// intent routers. Each backend has its own circuit breaker; when the primary
// fails or its breaker is open, the next healthy fallback is tried.
type NLUFallback struct {
	group *FallbackGroup[nlu.Provider]
}

// Compile-time interface assertion.
var _ nlu.Provider = (*NLUFallback)(nil)

// NewNLUFallback creates an [NLUFallback] with primary as the preferred backend.
func NewNLUFallback(primary nlu.Provider, primaryName string, cfg FallbackConfig) *NLUFallback {
	return &NLUFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional NLU provider as a fallback.
func (f *NLUFallback) AddFallback(name string, provider nlu.Provider) {
	f.group.AddFallback(name, provider)
}

// Route resolves transcript through the first healthy provider. If the primary
// fails, subsequent fallbacks are tried.
func (f *NLUFallback) Route(ctx context.Context, transcript string, extra map[string]string) (nlu.RouteResult, error) {
	return ExecuteWithResult(f.group, func(p nlu.Provider) (nlu.RouteResult, error) {
		return p.Route(ctx, transcript, extra)
	})
}
