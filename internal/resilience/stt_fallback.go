package resilience

import (
	"bytes"
	"context"
	"io"

	"github.com/MrWong99/sentina/pkg/provider/stt"
)

// STTFallback implements [stt.Provider] with automatic failover across multiple
// STT backends. Each backend has its own circuit breaker.
type STTFallback struct {
	group *FallbackGroup[stt.Provider]
}

// Compile-time interface assertion.
var _ stt.Provider = (*STTFallback)(nil)

// NewSTTFallback creates an [STTFallback] with primary as the preferred backend.
func NewSTTFallback(primary stt.Provider, primaryName string, cfg FallbackConfig) *STTFallback {
	return &STTFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional STT provider as a fallback.
func (f *STTFallback) AddFallback(name string, provider stt.Provider) {
	f.group.AddFallback(name, provider)
}

// Transcribe submits the WAV stream to the first healthy provider. The stream
// is buffered up front so a fallback attempt can replay it from the start.
func (f *STTFallback) Transcribe(ctx context.Context, wav io.Reader) (string, error) {
	data, err := io.ReadAll(wav)
	if err != nil {
		return "", err
	}
	return ExecuteWithResult(f.group, func(p stt.Provider) (string, error) {
		return p.Transcribe(ctx, bytes.NewReader(data))
	})
}
