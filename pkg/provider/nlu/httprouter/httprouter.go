// Package httprouter provides an nlu.Provider backed by the companion
// backend's POST /route endpoint.
package httprouter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/MrWong99/sentina/pkg/provider/nlu"
)

const defaultTimeout = 10 * time.Second

// Compile-time assertion that Provider implements nlu.Provider.
var _ nlu.Provider = (*Provider)(nil)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithTimeout overrides the per-request timeout. Defaults to 10s.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) { p.client.Timeout = d }
}

// WithHTTPClient replaces the HTTP client, mainly for tests.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) { p.client = c }
}

// Provider implements nlu.Provider against the backend route endpoint.
type Provider struct {
	baseURL string
	client  *http.Client
}

// New creates a Provider talking to the router at baseURL.
func New(baseURL string, opts ...Option) (*Provider, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("httprouter: base URL is required")
	}
	p := &Provider{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

type routeRequest struct {
	Transcript string            `json:"transcript"`
	Context    map[string]string `json:"context,omitempty"`
}

// Route posts the transcript and decodes the routed intent.
func (p *Provider) Route(ctx context.Context, transcript string, extra map[string]string) (nlu.RouteResult, error) {
	payload, err := json.Marshal(routeRequest{Transcript: transcript, Context: extra})
	if err != nil {
		return nlu.RouteResult{}, fmt.Errorf("httprouter: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/route", bytes.NewReader(payload))
	if err != nil {
		return nlu.RouteResult{}, fmt.Errorf("httprouter: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nlu.RouteResult{}, fmt.Errorf("httprouter: route request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nlu.RouteResult{}, fmt.Errorf("httprouter: router returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out nlu.RouteResult
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nlu.RouteResult{}, fmt.Errorf("httprouter: decode response: %w", err)
	}
	return out, nil
}
