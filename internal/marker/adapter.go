package marker

import (
	"log/slog"
	"time"

	"github.com/roach88/mindmark/internal/timeline"
)

// Adapter converts timeline boundary events into markers and pushes them
// to a sink in exact production order.
//
// Not safe for concurrent use: the session loop is the only caller, one
// event per tick, so the adapter inherits the loop's single-goroutine
// discipline.
type Adapter struct {
	sink   Sink
	logger *slog.Logger
	start  time.Time

	seq       int64
	delivered int64
	failed    int64
}

// NewAdapter creates an adapter. start is the session's time origin, used
// to compute marker offsets.
func NewAdapter(sink Sink, start time.Time, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{sink: sink, logger: logger, start: start}
}

// Forward pushes one boundary event to the sink. A sink failure is logged
// with the full marker context and recovery is local: the failure count is
// incremented and the session continues undisturbed.
func (a *Adapter) Forward(ev timeline.BoundaryEvent) {
	a.seq++
	m := Event{
		Seq:        a.seq,
		Label:      LabelFor(ev.Kind),
		TrialIndex: ev.TrialIndex,
		Offset:     ev.At.Sub(a.start),
		At:         ev.At,
	}

	if err := a.sink.Push(m); err != nil {
		a.failed++
		derr := &DeliveryError{Label: m.Label, Seq: m.Seq, Err: err}
		a.logger.Error("marker delivery failed, session continues",
			"error", derr,
			"label", m.Label,
			"seq", m.Seq,
			"trial_index", m.TrialIndex,
			"offset", m.Offset,
		)
		return
	}

	a.delivered++
	a.logger.Debug("marker delivered",
		"label", m.Label,
		"seq", m.Seq,
		"trial_index", m.TrialIndex,
		"offset", m.Offset,
	)
}

// Delivered returns the count of markers accepted by the sink.
func (a *Adapter) Delivered() int64 {
	return a.delivered
}

// Failed returns the count of markers the sink rejected.
func (a *Adapter) Failed() int64 {
	return a.failed
}
