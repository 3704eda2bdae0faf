// Package locald provides a tts.Provider backed by a local speech
// daemon (e.g. a Coqui or Piper wrapper) that synthesises, plays the
// audio itself, and replies when playback has finished.
//
// The daemon contract is a single endpoint:
//
//	POST /api/speak  {"text": "...", "voice": "..."}  → 200 on playback end
//
// Blocking until playback completes is what the conversation machine
// relies on to hand the microphone back safely.
package locald

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/MrWong99/sentina/pkg/provider/tts"
)

// Compile-time assertion that Provider implements tts.Provider.
var _ tts.Provider = (*Provider)(nil)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithVoice selects a daemon-specific voice identifier.
func WithVoice(voice string) Option {
	return func(p *Provider) { p.voice = voice }
}

// WithHTTPClient replaces the HTTP client, mainly for tests.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) { p.client = c }
}

// Provider implements tts.Provider against a local speech daemon.
type Provider struct {
	baseURL string
	voice   string
	client  *http.Client
}

// New creates a Provider talking to the daemon at baseURL. The client
// carries no timeout: playback duration is unbounded and cancellation
// is handled through the request context.
func New(baseURL string, opts ...Option) (*Provider, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("locald: base URL is required")
	}
	p := &Provider{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

type speakRequest struct {
	Text  string `json:"text"`
	Voice string `json:"voice,omitempty"`
}

// Speak posts text to the daemon and returns when playback finished.
func (p *Provider) Speak(ctx context.Context, text string) error {
	payload, err := json.Marshal(speakRequest{Text: text, Voice: p.voice})
	if err != nil {
		return fmt.Errorf("locald: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/speak", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("locald: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("locald: speak request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("locald: daemon returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}
