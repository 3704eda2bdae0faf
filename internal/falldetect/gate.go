package falldetect

import (
	"sync/atomic"
	"time"
)

// ActivationGate admits at most one fall-handling flow at a time.
// TryAcquire is called from the ambient worker on every acceptance;
// Release is called by the conversation flow when the check-in finishes
// and starts the cooldown during which further acceptances are dropped.
type ActivationGate struct {
	held          atomic.Bool
	cooldownUntil atomic.Int64 // unix nanos
	cooldown      time.Duration
	now           func() time.Time
}

// NewActivationGate creates a gate with the given post-release cooldown.
func NewActivationGate(cooldown time.Duration) *ActivationGate {
	return &ActivationGate{cooldown: cooldown, now: time.Now}
}

// TryAcquire attempts to claim the gate. It returns false while the
// gate is held or cooling down; exactly one concurrent caller wins.
func (g *ActivationGate) TryAcquire() bool {
	if g.now().UnixNano() < g.cooldownUntil.Load() {
		return false
	}
	return g.held.CompareAndSwap(false, true)
}

// Release frees the gate and starts the cooldown window. Releasing an
// unheld gate is a no-op.
func (g *ActivationGate) Release() {
	if g.held.CompareAndSwap(true, false) {
		g.cooldownUntil.Store(g.now().Add(g.cooldown).UnixNano())
	}
}

// Held reports whether a fall flow currently owns the gate.
func (g *ActivationGate) Held() bool {
	return g.held.Load()
}
