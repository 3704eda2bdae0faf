// Package control exposes the daemon to the surrounding app: health and
// readiness probes, the Prometheus metrics endpoint, and a websocket on
// which the app sends commands (say, message, command_finished,
// pause/resume ambient) and receives fall notifications.
package control

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MrWong99/sentina/internal/convo"
	"github.com/MrWong99/sentina/internal/health"
	"github.com/MrWong99/sentina/internal/observe"
	"github.com/MrWong99/sentina/internal/store"
)

// Poster delivers events to the conversation machine.
type Poster interface {
	Post(convo.Event)
}

// Ambient pauses and resumes the fall-detection worker.
type Ambient interface {
	Pause()
	Resume()
}

// command is one inbound websocket message.
type command struct {
	Type          string   `json:"type"`
	Text          string   `json:"text,omitempty"`
	EnqueueIfBusy bool     `json:"enqueue_if_busy,omitempty"`
	Sender        string   `json:"sender,omitempty"`
	Parts         []string `json:"parts,omitempty"`
}

// fallNotice is the outbound fall push.
type fallNotice struct {
	Type     string `json:"type"`
	Source   string `json:"source"`
	UserName string `json:"user_name"`
}

// Server is the control surface. Create with New, mount with Handler.
type Server struct {
	poster  Poster
	ambient Ambient
	health  *health.Handler
	metrics *observe.Metrics

	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

// New creates a Server. checkers feed the readiness probe.
func New(poster Poster, ambient Ambient, metrics *observe.Metrics, checkers ...health.Checker) *Server {
	return &Server{
		poster:  poster,
		ambient: ambient,
		health:  health.New(checkers...),
		metrics: metrics,
		conns:   make(map[*websocket.Conn]struct{}),
	}
}

// Handler returns the full control-surface handler with observability
// middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.health.Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /control", s.handleControl)
	return observe.Middleware(s.metrics)(mux)
}

// NotifyFall pushes a fall notification to every connected client.
func (s *Server) NotifyFall(source, userName string) {
	data, err := json.Marshal(fallNotice{Type: "fall_detected", Source: source, UserName: userName})
	if err != nil {
		return
	}
	s.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := c.Write(ctx, websocket.MessageText, data); err != nil {
			slog.Warn("control: fall push failed", "err", err)
		}
		cancel()
	}
}

func (s *Server) handleControl(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		slog.Warn("control: websocket accept failed", "err", err)
		return
	}
	s.mu.Lock()
	s.conns[conn] = struct{}{}
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		conn.Close(websocket.StatusNormalClosure, "bye")
	}()

	for {
		_, data, err := conn.Read(r.Context())
		if err != nil {
			status := websocket.CloseStatus(err)
			if status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway ||
				errors.Is(err, context.Canceled) {
				return
			}
			slog.Warn("control: websocket read failed", "err", err)
			return
		}
		var cmd command
		if err := json.Unmarshal(data, &cmd); err != nil {
			slog.Warn("control: bad command", "err", err)
			continue
		}
		s.dispatch(cmd)
	}
}

func (s *Server) dispatch(cmd command) {
	switch cmd.Type {
	case "say":
		if cmd.Text == "" {
			return
		}
		s.poster.Post(convo.SayRequest{Text: cmd.Text, EnqueueIfBusy: cmd.EnqueueIfBusy})
	case "message":
		if cmd.Sender == "" || (cmd.Text == "" && len(cmd.Parts) == 0) {
			return
		}
		s.poster.Post(convo.MessageArrived{Message: store.IncomingMessage{
			Sender:    cmd.Sender,
			Body:      cmd.Text,
			Parts:     cmd.Parts,
			ArrivedAt: time.Now(),
		}})
	case "command_finished":
		s.poster.Post(convo.CommandFinished{})
	case "pause_ambient":
		s.ambient.Pause()
	case "resume_ambient":
		s.ambient.Resume()
	default:
		slog.Warn("control: unknown command", "type", cmd.Type)
	}
}
