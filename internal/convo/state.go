package convo

// State is the machine's conversation state. Exactly one is live at a
// time; transitions happen only on the run-loop goroutine.
type State int

const (
	// StateIdle means the wake recognizer is listening and no flow is
	// active. The only state in which deferred announcements drain.
	StateIdle State = iota

	// StateAcknowledging plays the wake acknowledgment.
	StateAcknowledging

	// StateCapturing records the spoken instruction.
	StateCapturing

	// StateProcessing resolves the transcript into an action.
	StateProcessing

	// StateSpeaking plays the response.
	StateSpeaking

	// StateAwaitingConfirmation runs the post-fall check-in dialogue.
	StateAwaitingConfirmation
)

// String returns the lowercase state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAcknowledging:
		return "acknowledging"
	case StateCapturing:
		return "capturing"
	case StateProcessing:
		return "processing"
	case StateSpeaking:
		return "speaking"
	case StateAwaitingConfirmation:
		return "awaiting-confirmation"
	default:
		return "unknown"
	}
}
