package convo

import (
	"context"
	"time"

	"github.com/MrWong99/sentina/pkg/provider/nlu"
)

// Intent is the closed set of actions the router can resolve. Each
// variant carries its own typed slots; the dispatcher switches
// exhaustively over this set.
type Intent interface {
	isIntent()
}

// CallIntent places a call to a named contact.
type CallIntent struct {
	Contact string
}

// SetAlarmIntent schedules an alarm or reminder.
type SetAlarmIntent struct {
	At    time.Time
	Label string
}

// SendMessageIntent sends a text message to a named contact.
type SendMessageIntent struct {
	Recipient string
	Body      string
}

// QueryIntent asks the backend a free-form question.
type QueryIntent struct {
	Text string
}

// MediaIntent controls media playback ("play", "pause", "stop", ...).
type MediaIntent struct {
	Op string
}

// AnswerIntent speaks a canned answer the router already produced.
type AnswerIntent struct {
	Text string
}

// UnknownIntent is the fallback when nothing could be resolved.
type UnknownIntent struct{}

func (CallIntent) isIntent()        {}
func (SetAlarmIntent) isIntent()    {}
func (SendMessageIntent) isIntent() {}
func (QueryIntent) isIntent()       {}
func (MediaIntent) isIntent()       {}
func (AnswerIntent) isIntent()      {}
func (UnknownIntent) isIntent()     {}

// Actions are the external handlers intents dispatch to. The
// surrounding app implements them; the machine never performs
// telephony or alarm scheduling itself.
type Actions interface {
	// Call starts a call and returns once it is initiated; completion
	// arrives later as a CommandFinished event.
	Call(ctx context.Context, contact string) error

	// SetAlarm schedules an alarm at the given time.
	SetAlarm(ctx context.Context, at time.Time, label string) error

	// SendMessage sends body to the named contact.
	SendMessage(ctx context.Context, recipient, body string) error

	// Query answers a free-form question and returns the spoken reply.
	Query(ctx context.Context, text string) (string, error)

	// Media performs a playback operation.
	Media(ctx context.Context, op string) error
}

// resolveIntent maps a router result onto the typed intent set.
func resolveIntent(res nlu.RouteResult, now time.Time) Intent {
	slot := func(keys ...string) string {
		for _, k := range keys {
			if v := res.Slots[k]; v != "" {
				return v
			}
		}
		return ""
	}

	switch res.Intent {
	case "CALL":
		if c := slot("contact", "name"); c != "" {
			return CallIntent{Contact: c}
		}
	case "SET_ALARM":
		when := slot("time", "datetime")
		if at, ok := ParseSpanishTime(when, now); ok {
			return SetAlarmIntent{At: at, Label: slot("label")}
		}
	case "SEND_MESSAGE":
		if r := slot("recipient", "contact"); r != "" {
			return SendMessageIntent{Recipient: r, Body: slot("body", "text")}
		}
	case "QUERY":
		if q := slot("query", "text"); q != "" {
			return QueryIntent{Text: q}
		}
	case "MEDIA":
		if op := slot("operation", "op"); op != "" {
			return MediaIntent{Op: op}
		}
	case "ANSWER":
		if res.AckText != "" {
			return AnswerIntent{Text: res.AckText}
		}
	}
	if res.AckText != "" {
		return AnswerIntent{Text: res.AckText}
	}
	return UnknownIntent{}
}
