package convo

import (
	"time"

	"github.com/MrWong99/sentina/internal/store"
)

// Event is the closed set of inputs the arbitration machine consumes.
// Every trigger source (wake recognizer, ambient detector, control
// surface, completion callbacks from workers) posts typed events onto
// one single-consumer channel; the machine's run loop is the only
// goroutine that mutates conversation state.
type Event interface {
	isEvent()
}

// WakeDetected is posted by the wake recognizer for every recognized
// utterance. The machine applies deduplication and cooldown itself.
type WakeDetected struct {
	Text string
	At   time.Time
}

// FallSignal is posted by the ambient detector after it has acquired
// the activation gate. The machine owns releasing the gate when the
// confirmation flow ends.
type FallSignal struct {
	Source string
}

// SayRequest asks the machine to speak arbitrary text. When the machine
// is mid-flow the request is dropped unless EnqueueIfBusy is set, in
// which case it is announced on return to idle.
type SayRequest struct {
	Text          string
	EnqueueIfBusy bool
}

// CommandFinished tells the machine that an externally dispatched
// command (e.g. a call placed by the surrounding app) has completed and
// the turn can be closed out.
type CommandFinished struct{}

// MessageArrived announces a new incoming message. Non-idle states
// defer the readout until the machine returns to idle.
type MessageArrived struct {
	Message store.IncomingMessage
}

// ReminderDue announces a reminder whose time has come. Deferred like
// MessageArrived while a flow is active.
type ReminderDue struct {
	Reminder store.Reminder
}

// Internal completion events posted by flow workers.

// speechDone reports that one TTS playback finished (or was cut short).
type speechDone struct {
	phase    speechPhase
	canceled bool
}

type speechPhase int

const (
	phaseAck   speechPhase = iota // acknowledgment before capture
	phaseFinal                    // last utterance of a turn
)

// instructionCaptured carries the outcome of capture + VAD + STT.
type instructionCaptured struct {
	transcript string
	heard      bool // false when VAD rejected or STT returned nothing
}

// responseReady carries the spoken reply built by intent processing.
type responseReady struct {
	text string
	// awaitCommand keeps the turn open until CommandFinished arrives
	// instead of closing it after playback.
	awaitCommand bool
}

// fallOutcome carries one round of the confirmation sub-flow.
type fallOutcome struct {
	verdict ReplyVerdict
}

// fallClosed reports that the confirmation flow fully finished,
// including any emergency dispatch and closing utterance.
type fallClosed struct{}

func (WakeDetected) isEvent()        {}
func (FallSignal) isEvent()          {}
func (SayRequest) isEvent()          {}
func (CommandFinished) isEvent()     {}
func (MessageArrived) isEvent()      {}
func (ReminderDue) isEvent()         {}
func (speechDone) isEvent()          {}
func (instructionCaptured) isEvent() {}
func (responseReady) isEvent()       {}
func (fallOutcome) isEvent()         {}
func (fallClosed) isEvent()          {}
