// Package marker forwards timeline boundary events to an external
// physiological recording pipeline.
//
// The timeline engine only classifies transitions; everything that touches
// the outside world lives here. The adapter preserves exact production
// order and never reorders, deduplicates, or drops a produced event. Sink
// failures are logged and swallowed: the physiological record's primary
// timeline is independent of marker delivery, so a missed marker must
// never halt or desynchronize the session.
package marker

import (
	"fmt"
	"time"

	"github.com/roach88/mindmark/internal/timeline"
)

// The four wire identifiers, exactly as the recording pipeline expects
// them. No other identifier is ever emitted.
const (
	LabelFocusStart      = "focus_start"
	LabelFocusEnd        = "focus_end"
	LabelRelaxationStart = "relaxation_start"
	LabelRelaxationEnd   = "relaxation_end"
)

// LabelFor maps a boundary kind to its wire identifier.
func LabelFor(k timeline.BoundaryKind) string {
	switch k {
	case timeline.FocusStart:
		return LabelFocusStart
	case timeline.FocusEnd:
		return LabelFocusEnd
	case timeline.RelaxationStart:
		return LabelRelaxationStart
	case timeline.RelaxationEnd:
		return LabelRelaxationEnd
	default:
		panic(fmt.Sprintf("marker: unknown boundary kind %d", int(k)))
	}
}

// Event is one marker as handed to a sink.
type Event struct {
	// Seq is the 1-based delivery sequence number within the session.
	Seq int64
	// Label is one of the four wire identifiers.
	Label string
	// TrialIndex is the 0-based index of the trial the boundary belongs to.
	TrialIndex int
	// Offset is detection time relative to session start.
	Offset time.Duration
	// At is the monotonic detection timestamp from the engine.
	At time.Time
}

// Sink accepts an ordered stream of markers. Push is fire-and-forget:
// no acknowledgement is expected and implementations should return
// promptly, since Push runs on the session's frame loop.
type Sink interface {
	Push(Event) error
}

// DeliveryError reports a sink rejection. It is diagnostic only - the
// adapter logs it and the session continues.
type DeliveryError struct {
	Label string
	Seq   int64
	Err   error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("MARKER_DELIVERY_FAILED: marker %q (seq %d): %v", e.Label, e.Seq, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}
