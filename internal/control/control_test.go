package control_test

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/MrWong99/sentina/internal/control"
	"github.com/MrWong99/sentina/internal/convo"
	"github.com/MrWong99/sentina/internal/observe"
)

type fakePoster struct {
	mu     sync.Mutex
	events []convo.Event
}

func (p *fakePoster) Post(ev convo.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

func (p *fakePoster) last() convo.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.events) == 0 {
		return nil
	}
	return p.events[len(p.events)-1]
}

type fakeAmbient struct {
	mu     sync.Mutex
	paused bool
}

func (a *fakeAmbient) Pause() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.paused = true
}

func (a *fakeAmbient) Resume() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.paused = false
}

func (a *fakeAmbient) isPaused() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.paused
}

func newServer(t *testing.T) (*control.Server, *fakePoster, *fakeAmbient, *httptest.Server) {
	t.Helper()
	metrics, err := observe.NewMetrics(sdkmetric.NewMeterProvider())
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	poster := &fakePoster{}
	ambient := &fakeAmbient{}
	srv := control.New(poster, ambient, metrics)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return srv, poster, ambient, ts
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/control"
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "test done") })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		t.Fatalf("Write: %v", err)
	}
}

func eventually(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestControl_SayCommand(t *testing.T) {
	t.Parallel()

	_, poster, _, ts := newServer(t)
	conn := dial(t, ts)

	send(t, conn, map[string]any{"type": "say", "text": "hola", "enqueue_if_busy": true})

	eventually(t, func() bool {
		ev, ok := poster.last().(convo.SayRequest)
		return ok && ev.Text == "hola" && ev.EnqueueIfBusy
	}, "say command never reached the machine")
}

func TestControl_AmbientPauseResume(t *testing.T) {
	t.Parallel()

	_, _, ambient, ts := newServer(t)
	conn := dial(t, ts)

	send(t, conn, map[string]string{"type": "pause_ambient"})
	eventually(t, ambient.isPaused, "pause command never applied")

	send(t, conn, map[string]string{"type": "resume_ambient"})
	eventually(t, func() bool { return !ambient.isPaused() }, "resume command never applied")
}

func TestControl_CommandFinished(t *testing.T) {
	t.Parallel()

	_, poster, _, ts := newServer(t)
	conn := dial(t, ts)

	send(t, conn, map[string]string{"type": "command_finished"})
	eventually(t, func() bool {
		_, ok := poster.last().(convo.CommandFinished)
		return ok
	}, "command_finished never reached the machine")
}

func TestControl_FallPush(t *testing.T) {
	t.Parallel()

	srv, _, _, ts := newServer(t)
	conn := dial(t, ts)

	// Give the server a moment to register the connection.
	time.Sleep(50 * time.Millisecond)
	srv.NotifyFall("ambient", "Carmen")

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	var got struct {
		Type     string `json:"type"`
		Source   string `json:"source"`
		UserName string `json:"user_name"`
	}
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal push: %v", err)
	}
	if got.Type != "fall_detected" || got.Source != "ambient" || got.UserName != "Carmen" {
		t.Errorf("push = %+v, want fall_detected/ambient/Carmen", got)
	}
}

func TestControl_MessageCommand(t *testing.T) {
	t.Parallel()

	_, poster, _, ts := newServer(t)
	conn := dial(t, ts)

	send(t, conn, map[string]any{
		"type":   "message",
		"sender": "Ana",
		"text":   "llego a las cinco",
		"parts":  []string{"llego a las cinco"},
	})

	eventually(t, func() bool {
		ev, ok := poster.last().(convo.MessageArrived)
		return ok && ev.Message.Sender == "Ana" && len(ev.Message.Parts) == 1
	}, "message command never reached the machine")
}

func TestControl_MessageWithoutSenderDropped(t *testing.T) {
	t.Parallel()

	_, poster, _, ts := newServer(t)
	conn := dial(t, ts)

	send(t, conn, map[string]any{"type": "message", "text": "sin remitente"})
	send(t, conn, map[string]string{"type": "command_finished"})

	eventually(t, func() bool {
		_, ok := poster.last().(convo.CommandFinished)
		return ok
	}, "sentinel command never arrived")
	poster.mu.Lock()
	n := len(poster.events)
	poster.mu.Unlock()
	if n != 1 {
		t.Errorf("got %d events, want only the sentinel", n)
	}
}
