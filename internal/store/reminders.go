package store

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Reminder is a spoken announcement scheduled for a point in time.
type Reminder struct {
	ID   string
	Text string
	At   time.Time
}

// ReminderStore keeps pending reminders ordered by due time.
type ReminderStore struct {
	mu    sync.Mutex
	items []Reminder
}

// NewReminderStore creates an empty store.
func NewReminderStore() *ReminderStore {
	return &ReminderStore{}
}

// Add schedules a reminder and returns its id.
func (s *ReminderStore) Add(text string, at time.Time) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := Reminder{ID: uuid.NewString(), Text: text, At: at}
	s.items = append(s.items, r)
	sort.Slice(s.items, func(i, j int) bool { return s.items[i].At.Before(s.items[j].At) })
	return r.ID
}

// Remove deletes a reminder by id and reports whether it existed.
func (s *ReminderStore) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, r := range s.items {
		if r.ID == id {
			s.items = append(s.items[:i], s.items[i+1:]...)
			return true
		}
	}
	return false
}

// PopDue removes and returns all reminders due at or before now.
func (s *ReminderStore) PopDue(now time.Time) []Reminder {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for n < len(s.items) && !s.items[n].At.After(now) {
		n++
	}
	if n == 0 {
		return nil
	}
	due := make([]Reminder, n)
	copy(due, s.items[:n])
	s.items = s.items[n:]
	return due
}

// Len reports the number of pending reminders.
func (s *ReminderStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}
