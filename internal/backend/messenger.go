package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/MrWong99/sentina/internal/observe"
	"github.com/MrWong99/sentina/internal/resilience"
	"github.com/MrWong99/sentina/internal/store"
)

// SendResult is the messaging API's reply.
type SendResult struct {
	Status string `json:"status"`
	ID     string `json:"id"`
}

// Messenger sends text messages through the backend. Calls run behind a
// circuit breaker; failed emergency sends are enqueued on the recovery
// queue and flushed automatically when the prober sees the backend
// come back.
type Messenger struct {
	url     string
	client  *http.Client
	breaker *resilience.CircuitBreaker
	queue   *store.RecoveryQueue
	prober  *Prober
	metrics *observe.Metrics

	// EmergencyText renders the message body for a recovered queue
	// item. Set once at construction.
	EmergencyText func(userName string) string
}

// NewMessenger wires the send API, breaker, recovery queue and prober
// together. It registers the queue flush on the prober's up transition.
func NewMessenger(url string, client *http.Client, queue *store.RecoveryQueue, prober *Prober) *Messenger {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	m := &Messenger{
		url:     url,
		client:  client,
		breaker: resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
			Name:        "messaging",
			MaxFailures: 3,
		}),
		queue:   queue,
		prober:  prober,
		metrics: observe.DefaultMetrics(),
		EmergencyText: func(userName string) string {
			return fmt.Sprintf("AVISO: %s podría haberse caído y necesita ayuda.", userName)
		},
	}
	prober.OnUp = m.flush
	return m
}

// Send delivers one text message. The error is non-nil when the breaker
// is open or the API call fails; callers decide whether to enqueue.
func (m *Messenger) Send(ctx context.Context, phone, text string) (SendResult, error) {
	var res SendResult
	err := m.breaker.Execute(func() error {
		var callErr error
		res, callErr = m.call(ctx, phone, text)
		return callErr
	})
	if err != nil {
		m.prober.MarkDown()
		return SendResult{}, err
	}
	return res, nil
}

// SendEmergency delivers an emergency notification, enqueueing it for
// recovery when the send fails. It never returns an error: failure to
// reach the backend is not failure to eventually notify.
func (m *Messenger) SendEmergency(ctx context.Context, phone, userName string) {
	if _, err := m.Send(ctx, phone, m.EmergencyText(userName)); err != nil {
		slog.Warn("backend: emergency send failed, queued for recovery",
			"phone", phone, "err", err)
		m.queue.Enqueue(store.EmergencyItem{
			Phone:      phone,
			UserName:   userName,
			EnqueuedAt: time.Now(),
		})
		m.metrics.EmergencyQueueDepth.Add(ctx, 1)
	}
}

// flush retries every queued emergency notification. The breaker is
// reset first: the prober just confirmed the backend is up, and an
// open breaker would reject the whole flush.
func (m *Messenger) flush() {
	if m.queue.Len() == 0 {
		return
	}
	m.breaker.Reset()
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sent := m.queue.Flush(func(it store.EmergencyItem) error {
		_, err := m.Send(ctx, it.Phone, m.EmergencyText(it.UserName))
		return err
	})
	m.metrics.EmergencyQueueDepth.Add(ctx, int64(-sent))
	slog.Info("backend: recovery flush", "delivered", sent, "remaining", m.queue.Len())
}

func (m *Messenger) call(ctx context.Context, phone, text string) (SendResult, error) {
	body, err := json.Marshal(map[string]string{"phone": phone, "text": text})
	if err != nil {
		return SendResult{}, fmt.Errorf("backend: encode send request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.url, bytes.NewReader(body))
	if err != nil {
		return SendResult{}, fmt.Errorf("backend: build send request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return SendResult{}, fmt.Errorf("backend: send message: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return SendResult{}, fmt.Errorf("backend: send message: unexpected status %s", resp.Status)
	}

	var res SendResult
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return SendResult{}, fmt.Errorf("backend: decode send response: %w", err)
	}
	return res, nil
}
