package convo

import (
	"strings"
	"time"

	"github.com/antzucaro/matchr"
)

const (
	// duplicateWindow suppresses the same recognized text arriving
	// twice from streaming partials.
	duplicateWindow = 2500 * time.Millisecond

	// triggerCooldown is the minimum gap between accepted triggers.
	triggerCooldown = 1500 * time.Millisecond

	// fuzzyWakeThreshold is the Jaro-Winkler score above which a token
	// counts as the wake word even without an exact or phonetic match.
	// Transcription mangles names routinely ("sentina" → "centena").
	fuzzyWakeThreshold = 0.88
)

// WakeFilter decides whether a recognized utterance counts as a wake
// trigger. It is confined to the machine's run loop and needs no lock.
type WakeFilter struct {
	word      string
	codePrim  string
	codeSec   string

	lastText string
	lastSeen time.Time
	lastFire time.Time
}

// NewWakeFilter creates a filter for the given wake word.
func NewWakeFilter(word string) *WakeFilter {
	w := strings.ToLower(strings.TrimSpace(word))
	f := &WakeFilter{word: w}
	if w != "" {
		f.codePrim, f.codeSec = matchr.DoubleMetaphone(w)
	}
	return f
}

// Accept reports whether the recognized text at the given instant fires
// a trigger. Duplicate text inside the window and triggers inside the
// cooldown are rejected.
func (f *WakeFilter) Accept(text string, at time.Time) bool {
	norm := strings.ToLower(strings.TrimSpace(text))
	defer func() {
		f.lastText = norm
		f.lastSeen = at
	}()

	if !f.matches(norm) {
		return false
	}
	if norm == f.lastText && at.Sub(f.lastSeen) < duplicateWindow {
		return false
	}
	if !f.lastFire.IsZero() && at.Sub(f.lastFire) < triggerCooldown {
		return false
	}
	f.lastFire = at
	return true
}

// matches reports whether the wake word occurs in norm, tolerating the
// usual transcription distortions. Exact substring first, then a
// per-token phonetic and similarity pass.
func (f *WakeFilter) matches(norm string) bool {
	if strings.Contains(norm, f.word) {
		return true
	}
	for _, token := range strings.Fields(norm) {
		token = strings.Trim(token, ".,;:¡!¿?")
		if token == "" {
			continue
		}
		p, s := matchr.DoubleMetaphone(token)
		if p != "" && (p == f.codePrim || p == f.codeSec) {
			return true
		}
		if s != "" && (s == f.codePrim || s == f.codeSec) {
			return true
		}
		if matchr.JaroWinkler(token, f.word, false) >= fuzzyWakeThreshold {
			return true
		}
	}
	return false
}
