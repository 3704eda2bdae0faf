package resilience

import (
	"context"

	"github.com/MrWong99/sentina/pkg/provider/tts"
)

// TTSFallback implements [tts.Provider] with automatic failover across multiple
// TTS backends. Each backend has its own circuit breaker.
type TTSFallback struct {
	group *FallbackGroup[tts.Provider]
}

// Compile-time interface assertion.
var _ tts.Provider = (*TTSFallback)(nil)

// NewTTSFallback creates a [TTSFallback] with primary as the preferred backend.
func NewTTSFallback(primary tts.Provider, primaryName string, cfg FallbackConfig) *TTSFallback {
	return &TTSFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional TTS provider as a fallback.
func (f *TTSFallback) AddFallback(name string, provider tts.Provider) {
	f.group.AddFallback(name, provider)
}

// Speak plays text through the first healthy provider. A cancelled context is
// not retried against fallbacks: the interruption was deliberate.
func (f *TTSFallback) Speak(ctx context.Context, text string) error {
	err := f.group.Execute(func(p tts.Provider) error {
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		return p.Speak(ctx, text)
	})
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}
