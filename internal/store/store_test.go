package store_test

import (
	"errors"
	"testing"
	"time"

	"github.com/MrWong99/sentina/internal/store"
)

func TestMessageSlot_OverwriteAndTake(t *testing.T) {
	t.Parallel()

	s := store.NewMessageSlot()
	s.Put(store.IncomingMessage{Sender: "ana", Parts: []string{"first"}})
	s.Put(store.IncomingMessage{Sender: "ana", Parts: []string{"second"}})

	msg, ok := s.Take()
	if !ok {
		t.Fatal("expected a pending message")
	}
	if len(msg.Parts) != 1 || msg.Parts[0] != "second" {
		t.Errorf("slot kept %v, want the overwriting message", msg.Parts)
	}
	if _, ok := s.Take(); ok {
		t.Error("slot must be empty after Take")
	}
}

func TestMessageSlot_DuplicatePartsSuppressed(t *testing.T) {
	t.Parallel()

	s := store.NewMessageSlot()
	s.Put(store.IncomingMessage{Sender: "ana", Parts: []string{"hola", "que tal"}})
	if _, ok := s.Take(); !ok {
		t.Fatal("expected a pending message")
	}

	// Re-delivery of the same fragments has nothing new to announce.
	if s.Put(store.IncomingMessage{Sender: "ana", Parts: []string{"hola"}}) {
		t.Error("already-spoken fragment must not re-announce")
	}
	if s.Pending() {
		t.Error("suppressed delivery must not fill the slot")
	}

	// Same fragment from another sender is fresh.
	if !s.Put(store.IncomingMessage{Sender: "luis", Parts: []string{"hola"}}) {
		t.Error("spoken set must be per sender")
	}
}

func TestReminderStore_PopDueOrder(t *testing.T) {
	t.Parallel()

	s := store.NewReminderStore()
	now := time.Now()
	s.Add("pastillas", now.Add(time.Minute))
	s.Add("medico", now.Add(-time.Minute))
	keep := s.Add("cena", now.Add(time.Hour))

	due := s.PopDue(now)
	if len(due) != 1 || due[0].Text != "medico" {
		t.Fatalf("PopDue = %v, want just the overdue reminder", due)
	}
	if s.Len() != 2 {
		t.Errorf("store has %d reminders, want 2", s.Len())
	}
	if !s.Remove(keep) {
		t.Error("Remove of an existing reminder must report true")
	}
	if s.Remove(keep) {
		t.Error("second Remove of the same id must report false")
	}
}

func TestRecoveryQueue_FlushRemovesOnlySuccesses(t *testing.T) {
	t.Parallel()

	q := store.NewRecoveryQueue()
	q.Enqueue(store.EmergencyItem{Phone: "+34600000001", UserName: "Carmen"})
	q.Enqueue(store.EmergencyItem{Phone: "+34600000002", UserName: "Carmen"})
	q.Enqueue(store.EmergencyItem{Phone: "+34600000003", UserName: "Carmen"})

	sent := q.Flush(func(it store.EmergencyItem) error {
		if it.Phone == "+34600000002" {
			return errors.New("still down")
		}
		return nil
	})
	if sent != 2 {
		t.Fatalf("delivered %d, want 2", sent)
	}
	if q.Len() != 1 {
		t.Fatalf("queue holds %d items, want the single failure", q.Len())
	}

	// Second flush with a healthy backend drains the rest.
	if q.Flush(func(store.EmergencyItem) error { return nil }) != 1 {
		t.Error("remaining item must deliver on the next flush")
	}
	if q.Len() != 0 {
		t.Errorf("queue holds %d items after full flush, want 0", q.Len())
	}
}
