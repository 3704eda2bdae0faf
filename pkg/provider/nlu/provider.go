// Package nlu defines the Provider interface for the natural-language
// intent router.
//
// The router receives a normalised transcript plus optional context and
// returns a resolved intent with its slots. Network failure is an
// expected condition: the conversation machine falls back to a local
// time parser for alarm phrases and a generic spoken reply otherwise.
package nlu

import "context"

// RouteResult is the router's resolution of one transcript.
type RouteResult struct {
	// Intent is the router's intent name (e.g. "CALL", "SET_ALARM").
	// The conversation package maps it onto its closed intent enum.
	Intent string `json:"intent"`

	// Confidence in [0,1].
	Confidence float64 `json:"confidence"`

	// NeedsConfirmation indicates the action should be confirmed aloud
	// before dispatch.
	NeedsConfirmation bool `json:"needs_confirmation"`

	// Slots carries intent arguments (contact names, times, message
	// bodies) keyed by slot name.
	Slots map[string]string `json:"slots"`

	// ClarifyingQuestion is spoken when the router needs more detail.
	ClarifyingQuestion string `json:"clarifying_question"`

	// AckText is an optional router-provided spoken acknowledgement.
	AckText string `json:"ack_text"`
}

// Provider is the abstraction over the intent routing service.
type Provider interface {
	// Route resolves transcript into an intent. extra carries optional
	// request context (user name, locale). Failures are returned as
	// errors; the caller owns the fallback policy.
	Route(ctx context.Context, transcript string, extra map[string]string) (RouteResult, error)
}
