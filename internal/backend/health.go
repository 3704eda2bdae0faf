// Package backend talks to the remote companion backend: the messaging
// send API, its health endpoint, and the recovery flow that retries
// emergency notifications once the backend comes back.
package backend

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

const probeTimeout = 2 * time.Second

// Prober checks the backend health endpoint with a short timeout and
// caches the verdict. A down→up flip invokes OnUp exactly once per
// flip; an up→down flip schedules exactly one backoff re-probe.
type Prober struct {
	url     string
	client  *http.Client
	ttl     time.Duration
	backoff time.Duration

	// OnUp fires on every down→up transition, outside the lock.
	OnUp func()

	mu         sync.Mutex
	up         bool
	known      bool
	checkedAt  time.Time
	retryTimer *time.Timer
}

// ProberOption customises a [Prober].
type ProberOption func(*Prober)

// WithCacheTTL overrides how long a probe verdict is cached.
// Default: 5s.
func WithCacheTTL(ttl time.Duration) ProberOption {
	return func(p *Prober) { p.ttl = ttl }
}

// WithRetryBackoff overrides the delay before the automatic re-probe
// scheduled on an up→down flip. Default: 10s.
func WithRetryBackoff(d time.Duration) ProberOption {
	return func(p *Prober) { p.backoff = d }
}

// NewProber creates a Prober against the given health URL.
func NewProber(url string, client *http.Client, opts ...ProberOption) *Prober {
	if client == nil {
		client = &http.Client{}
	}
	p := &Prober{
		url:     url,
		client:  client,
		ttl:     5 * time.Second,
		backoff: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// IsUp reports the backend health, probing at most once per cache TTL.
func (p *Prober) IsUp(ctx context.Context) bool {
	p.mu.Lock()
	if p.known && time.Since(p.checkedAt) < p.ttl {
		up := p.up
		p.mu.Unlock()
		return up
	}
	p.mu.Unlock()

	return p.probe(ctx)
}

// MarkDown records an observed failure (e.g. a send that errored)
// without waiting for the next probe, scheduling the backoff re-probe
// if this is a fresh up→down flip.
func (p *Prober) MarkDown() {
	p.apply(false)
}

func (p *Prober) probe(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	up := false
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.url, nil)
	if err == nil {
		resp, doErr := p.client.Do(req)
		if doErr == nil {
			resp.Body.Close()
			up = resp.StatusCode == http.StatusOK
		}
	}
	p.apply(up)
	return up
}

// apply records a fresh verdict and runs the flip side effects.
func (p *Prober) apply(up bool) {
	p.mu.Lock()
	flipUp := up && p.known && !p.up
	flipDown := !up && (!p.known || p.up)
	p.up = up
	p.known = true
	p.checkedAt = time.Now()

	if flipDown && p.retryTimer == nil {
		p.retryTimer = time.AfterFunc(p.backoff, func() {
			p.mu.Lock()
			p.retryTimer = nil
			p.mu.Unlock()
			p.probe(context.Background())
		})
	}
	p.mu.Unlock()

	if flipUp {
		slog.Info("backend: recovered")
		if p.OnUp != nil {
			p.OnUp()
		}
	}
	if flipDown {
		slog.Warn("backend: unreachable", "url", p.url)
	}
}

// Check adapts the prober to a readiness checker.
func (p *Prober) Check(ctx context.Context) error {
	if !p.IsUp(ctx) {
		return fmt.Errorf("backend %s is down", p.url)
	}
	return nil
}
