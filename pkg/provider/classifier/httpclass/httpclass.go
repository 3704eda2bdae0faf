// Package httpclass provides a classifier.Provider backed by a local
// sound-event inference server (e.g. a YAMNet wrapper) exposing
// POST /classify.
//
// Audio is submitted as raw little-endian float32 samples; the server
// replies with ranked (label, score) lists per classification group.
package httpclass

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/MrWong99/sentina/pkg/provider/classifier"
)

const defaultTimeout = 5 * time.Second

// Compile-time assertion that Provider implements classifier.Provider.
var _ classifier.Provider = (*Provider)(nil)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithTimeout overrides the per-request timeout. Defaults to 5s — the
// ambient loop refreshes every 1.5s and must never back up behind a
// slow model server.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) { p.client.Timeout = d }
}

// WithHTTPClient replaces the HTTP client, mainly for tests.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) { p.client = c }
}

// Provider implements classifier.Provider against an inference server.
type Provider struct {
	baseURL string
	client  *http.Client
}

// New creates a Provider talking to the inference server at baseURL.
func New(baseURL string, opts ...Option) (*Provider, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("httpclass: base URL is required")
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

type classifyResponse struct {
	Groups []struct {
		Name   string `json:"name"`
		Labels []struct {
			Name  string  `json:"label"`
			Score float64 `json:"score"`
		} `json:"labels"`
	} `json:"groups"`
}

// Classify submits samples as raw float32 PCM and decodes the rankings.
func (p *Provider) Classify(ctx context.Context, samples []float64) ([]classifier.Group, error) {
	raw := make([]byte, len(samples)*4)
	for i, s := range samples {
		binary.LittleEndian.PutUint32(raw[4*i:], math.Float32bits(float32(s)))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/classify", bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("httpclass: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("httpclass: classify request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("httpclass: server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out classifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("httpclass: decode response: %w", err)
	}

	groups := make([]classifier.Group, len(out.Groups))
	for i, g := range out.Groups {
		labels := make([]classifier.Label, len(g.Labels))
		for j, l := range g.Labels {
			labels[j] = classifier.Label{Name: l.Name, Score: l.Score}
		}
		groups[i] = classifier.Group{Name: g.Name, Labels: labels}
	}
	return groups, nil
}
