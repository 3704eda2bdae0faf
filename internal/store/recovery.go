package store

import (
	"sync"
	"time"
)

// EmergencyItem is an undelivered emergency notification.
type EmergencyItem struct {
	Phone      string // E.164
	UserName   string
	EnqueuedAt time.Time
}

// RecoveryQueue holds emergency notifications that failed to send.
// Growth is unbounded on purpose: an emergency is never silently
// dropped, the queue only shrinks through successful delivery.
type RecoveryQueue struct {
	mu    sync.Mutex
	items []EmergencyItem
}

// NewRecoveryQueue creates an empty queue.
func NewRecoveryQueue() *RecoveryQueue {
	return &RecoveryQueue{}
}

// Enqueue appends one failed notification.
func (q *RecoveryQueue) Enqueue(item EmergencyItem) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, item)
}

// Len reports the number of queued items.
func (q *RecoveryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Flush calls send for every queued item and removes only the ones that
// sent successfully. Items whose send fails stay queued in order. It
// returns how many were delivered.
func (q *RecoveryQueue) Flush(send func(EmergencyItem) error) int {
	q.mu.Lock()
	snapshot := make([]EmergencyItem, len(q.items))
	copy(snapshot, q.items)
	q.mu.Unlock()

	delivered := make(map[int]bool, len(snapshot))
	for i, item := range snapshot {
		if send(item) == nil {
			delivered[i] = true
		}
	}
	if len(delivered) == 0 {
		return 0
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	// Items enqueued during the flush sit past the snapshot and are kept.
	kept := q.items[:0:0]
	for i, item := range q.items {
		if i < len(snapshot) && delivered[i] {
			continue
		}
		kept = append(kept, item)
	}
	q.items = kept
	return len(delivered)
}
