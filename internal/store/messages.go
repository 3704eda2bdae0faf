// Package store holds the in-memory shared state of the companion:
// the single-slot incoming message, pending reminders and the
// emergency recovery queue. Nothing here is durable; everything is
// guarded by coarse locks and constructed once at process start.
package store

import (
	"sync"
	"time"
)

// IncomingMessage is a message waiting to be read aloud.
type IncomingMessage struct {
	Sender    string
	Body      string
	ArrivedAt time.Time
	Parts     []string
}

// spokenCap bounds the per-sender set of already-announced fragments.
const spokenCap = 32

// MessageSlot keeps at most one pending incoming message. A new arrival
// overwrites the slot; Take consumes it. A bounded per-sender record of
// already-spoken fragments suppresses duplicate announcements when the
// upstream transport re-delivers parts of the same message.
type MessageSlot struct {
	mu      sync.Mutex
	pending *IncomingMessage
	spoken  map[string][]string
}

// NewMessageSlot creates an empty slot.
func NewMessageSlot() *MessageSlot {
	return &MessageSlot{spoken: make(map[string][]string)}
}

// Put stores msg, replacing any unread message. Parts already announced
// for this sender are filtered out; Put reports whether anything new
// remains to announce.
func (s *MessageSlot) Put(msg IncomingMessage) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	fresh := msg.Parts[:0:0]
	for _, p := range msg.Parts {
		if !s.wasSpoken(msg.Sender, p) {
			fresh = append(fresh, p)
		}
	}
	if len(msg.Parts) > 0 && len(fresh) == 0 {
		return false
	}
	msg.Parts = fresh
	s.pending = &msg
	return true
}

// Take removes and returns the pending message. The second result is
// false when the slot is empty. Taken parts are recorded as spoken.
func (s *MessageSlot) Take() (IncomingMessage, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pending == nil {
		return IncomingMessage{}, false
	}
	msg := *s.pending
	s.pending = nil
	for _, p := range msg.Parts {
		s.markSpoken(msg.Sender, p)
	}
	return msg, true
}

// Pending reports whether a message is waiting.
func (s *MessageSlot) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pending != nil
}

func (s *MessageSlot) wasSpoken(sender, part string) bool {
	for _, p := range s.spoken[sender] {
		if p == part {
			return true
		}
	}
	return false
}

func (s *MessageSlot) markSpoken(sender, part string) {
	list := append(s.spoken[sender], part)
	if len(list) > spokenCap {
		list = list[len(list)-spokenCap:] // evict oldest
	}
	s.spoken[sender] = list
}
