// Package classifier defines the Provider interface for the external
// acoustic event classifier.
//
// Only the output contract matters to the fall detector: the model
// ranks sound-event labels with confidences, grouped the way the model
// organises its heads. The detector fuses the top ranks with its own
// spectral features; classifier failure is always treated as "no
// impact heard", never as a pipeline error.
package classifier

import "context"

// Label is one ranked sound-event label.
type Label struct {
	// Name is the model's label text (e.g. "Thump, thud", "Door slam").
	Name string

	// Score is the model's confidence in [0,1].
	Score float64
}

// Group is one classification head's ranked label list, best first.
type Group struct {
	// Name identifies the head (model-specific, may be empty).
	Name string

	// Labels is ordered by descending score.
	Labels []Label
}

// Provider is the abstraction over the acoustic event classifier.
type Provider interface {
	// Classify ranks sound-event labels for a fixed-length mono buffer
	// of full-scale float samples at the pipeline sample rate.
	Classify(ctx context.Context, samples []float64) ([]Group, error)
}
