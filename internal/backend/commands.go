package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/MrWong99/sentina/internal/resilience"
)

// Commander issues non-messaging commands against the backend: placing
// calls, media control and free-form queries. Like the messenger it runs
// behind its own circuit breaker and marks the prober down on failure.
type Commander struct {
	url     string
	client  *http.Client
	breaker *resilience.CircuitBreaker
	prober  *Prober
}

// NewCommander creates a command client for the given endpoint.
func NewCommander(url string, client *http.Client, prober *Prober) *Commander {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Commander{
		url:    url,
		client: client,
		breaker: resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			Name:        "commands",
			MaxFailures: 3,
		}),
		prober: prober,
	}
}

// commandRequest is the wire shape shared by all command kinds.
type commandRequest struct {
	Command string `json:"command"`
	Contact string `json:"contact,omitempty"`
	Op      string `json:"op,omitempty"`
	Text    string `json:"text,omitempty"`
}

// commandResponse carries the backend's reply. Only queries populate Reply.
type commandResponse struct {
	Status string `json:"status"`
	Reply  string `json:"reply"`
}

// Call asks the backend to place a call to the named contact. It returns
// once the call is initiated; call teardown is reported separately
// through the control surface.
func (c *Commander) Call(ctx context.Context, contact string) error {
	_, err := c.execute(ctx, commandRequest{Command: "call", Contact: contact})
	return err
}

// Media performs a playback operation ("play", "pause", "stop", ...).
func (c *Commander) Media(ctx context.Context, op string) error {
	_, err := c.execute(ctx, commandRequest{Command: "media", Op: op})
	return err
}

// Query sends a free-form question and returns the spoken reply text.
func (c *Commander) Query(ctx context.Context, text string) (string, error) {
	res, err := c.execute(ctx, commandRequest{Command: "query", Text: text})
	if err != nil {
		return "", err
	}
	return res.Reply, nil
}

func (c *Commander) execute(ctx context.Context, req commandRequest) (commandResponse, error) {
	var res commandResponse
	err := c.breaker.Execute(func() error {
		var callErr error
		res, callErr = c.call(ctx, req)
		return callErr
	})
	if err != nil {
		c.prober.MarkDown()
		return commandResponse{}, err
	}
	return res, nil
}

func (c *Commander) call(ctx context.Context, cmd commandRequest) (commandResponse, error) {
	body, err := json.Marshal(cmd)
	if err != nil {
		return commandResponse{}, fmt.Errorf("backend: encode command: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return commandResponse{}, fmt.Errorf("backend: build command request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return commandResponse{}, fmt.Errorf("backend: %s command: %w", cmd.Command, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return commandResponse{}, fmt.Errorf("backend: %s command: unexpected status %s", cmd.Command, resp.Status)
	}

	var res commandResponse
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return commandResponse{}, fmt.Errorf("backend: decode command response: %w", err)
	}
	return res, nil
}
