// Package whisperhttp provides an stt.Provider backed by a local
// whisper-server binary exposing its REST API at POST /inference.
//
// The whole finished WAV recording is submitted as one multipart batch
// request; whisper.cpp is a batch engine and this matches the capture
// controller's record-then-transcribe flow.
//
// Usage:
//
//	p, err := whisperhttp.New("http://localhost:8080",
//	    whisperhttp.WithLanguage("es"),
//	)
//	text, err := p.Transcribe(ctx, wavFile)
package whisperhttp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/MrWong99/sentina/pkg/provider/stt"
)

const (
	defaultLanguage = "es"
	defaultTimeout  = 30 * time.Second
)

// Compile-time assertion that Provider implements stt.Provider.
var _ stt.Provider = (*Provider)(nil)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithLanguage sets the language code sent to the server (e.g. "es",
// "en"). Defaults to "es".
func WithLanguage(lang string) Option {
	return func(p *Provider) { p.language = lang }
}

// WithModel sets the model identifier forwarded to the server. When
// empty the server uses whichever model it was started with.
func WithModel(model string) Option {
	return func(p *Provider) { p.model = model }
}

// WithHTTPClient replaces the HTTP client, mainly for tests.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) { p.client = c }
}

// Provider implements stt.Provider against a whisper-server instance.
type Provider struct {
	serverURL string
	language  string
	model     string
	client    *http.Client
}

// New creates a Provider talking to the whisper-server at serverURL.
func New(serverURL string, opts ...Option) (*Provider, error) {
	if serverURL == "" {
		return nil, fmt.Errorf("whisperhttp: server URL is required")
	}
	p := &Provider{
		serverURL: strings.TrimRight(serverURL, "/"),
		language:  defaultLanguage,
		client:    &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// inferenceResponse is the subset of the whisper-server JSON reply we
// consume.
type inferenceResponse struct {
	Text  string `json:"text"`
	Error string `json:"error"`
}

// Transcribe submits wav as a multipart inference request and returns
// the transcript text.
func (p *Provider) Transcribe(ctx context.Context, wav io.Reader) (string, error) {
	var body strings.Builder
	mw := multipart.NewWriter(&body)

	part, err := mw.CreateFormFile("file", "capture.wav")
	if err != nil {
		return "", fmt.Errorf("whisperhttp: create form file: %w", err)
	}
	if _, err := io.Copy(part, wav); err != nil {
		return "", fmt.Errorf("whisperhttp: copy wav: %w", err)
	}
	if err := mw.WriteField("language", p.language); err != nil {
		return "", fmt.Errorf("whisperhttp: write language field: %w", err)
	}
	if p.model != "" {
		if err := mw.WriteField("model", p.model); err != nil {
			return "", fmt.Errorf("whisperhttp: write model field: %w", err)
		}
	}
	if err := mw.WriteField("response_format", "json"); err != nil {
		return "", fmt.Errorf("whisperhttp: write format field: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("whisperhttp: finalise multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.serverURL+"/inference", strings.NewReader(body.String()))
	if err != nil {
		return "", fmt.Errorf("whisperhttp: build request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := p.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("whisperhttp: inference request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("whisperhttp: server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(payload)))
	}

	var out inferenceResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("whisperhttp: decode response: %w", err)
	}
	if out.Error != "" {
		return "", fmt.Errorf("whisperhttp: server error: %s", out.Error)
	}

	text := strings.TrimSpace(out.Text)
	if text == "" {
		return "", stt.ErrEmptyResult
	}
	return text, nil
}
