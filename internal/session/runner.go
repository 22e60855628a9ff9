// Package session owns the cooperative frame loop that drives a live run.
//
// Each iteration reads the monotonic clock, ticks the timeline engine,
// forwards any boundary event to the marker adapter, and renders the
// returned phase. Nothing blocks except the loop's own frame pacing, and
// abort is cooperative: context cancellation aborts the engine, and the
// loop exits after at most one more frame.
package session

import (
	"context"
	"log/slog"
	"time"

	"github.com/roach88/mindmark/internal/display"
	"github.com/roach88/mindmark/internal/marker"
	"github.com/roach88/mindmark/internal/timeline"
	"github.com/roach88/mindmark/internal/timeutil"
)

// DefaultCadence is the default frame interval. Well under the 50ms bound
// that keeps multi-boundary ticks unreachable and marker latency in spec.
const DefaultCadence = 20 * time.Millisecond

// Summary reports how a session ended.
type Summary struct {
	Token            string
	Phase            timeline.Phase
	TrialsTotal      int
	MarkersDelivered int64
	MarkersFailed    int64
	Elapsed          time.Duration
}

// Runner wires an engine, a clock, a marker sink, and a display into one
// single-goroutine session loop. The engine and schedule are exclusively
// owned by the runner's goroutine for the session's lifetime.
type Runner struct {
	engine  *timeline.Engine
	clock   timeutil.Clock
	sink    marker.Sink
	display display.Display
	cadence time.Duration
	token   string
	logger  *slog.Logger
}

// NewRunner assembles a session. cadence <= 0 selects DefaultCadence;
// a nil display renders nothing.
func NewRunner(engine *timeline.Engine, clock timeutil.Clock, sink marker.Sink, disp display.Display, cadence time.Duration, token string, logger *slog.Logger) *Runner {
	if cadence <= 0 {
		cadence = DefaultCadence
	}
	if disp == nil {
		disp = display.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		engine:  engine,
		clock:   clock,
		sink:    sink,
		display: disp,
		cadence: cadence,
		token:   token,
		logger:  logger,
	}
}

// Run drives the session to a terminal phase and returns its summary.
//
// Cancelling ctx aborts the session (a normal terminal transition, not an
// error). The only error returned is a clock regression, which is fatal by
// design: a broken monotonic source invalidates every boundary after it.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	start := r.clock.Now()
	adapter := marker.NewAdapter(r.sink, start, r.logger)

	r.engine.Start(start)
	r.logger.Info("session started",
		"session", r.token,
		"trials", r.engine.TrialCount(),
		"cadence", r.cadence,
	)

	summary := func(phase timeline.Phase) Summary {
		return Summary{
			Token:            r.token,
			Phase:            phase,
			TrialsTotal:      r.engine.TrialCount(),
			MarkersDelivered: adapter.Delivered(),
			MarkersFailed:    adapter.Failed(),
			Elapsed:          r.clock.Now().Sub(start),
		}
	}

	ticker := time.NewTicker(r.cadence)
	defer ticker.Stop()

	aborting := false
	for {
		select {
		case <-ctx.Done():
			if !aborting {
				aborting = true
				r.engine.Abort()
				r.logger.Info("abort requested", "session", r.token)
			}
		case <-ticker.C:
		}

		now := r.clock.Now()
		res, err := r.engine.Tick(now)
		if err != nil {
			r.logger.Error("session halted", "session", r.token, "error", err)
			return summary(res.Phase), err
		}
		if res.Event != nil {
			adapter.Forward(*res.Event)
		}
		r.display.Render(display.Snapshot{
			Phase:      res.Phase,
			Elapsed:    res.Elapsed,
			Remaining:  res.Remaining,
			TrialTotal: r.engine.TrialCount(),
		})

		if res.Phase.Terminal() {
			s := summary(res.Phase)
			r.logger.Info("session finished",
				"session", r.token,
				"phase", res.Phase.Kind.String(),
				"markers_delivered", s.MarkersDelivered,
				"markers_failed", s.MarkersFailed,
				"elapsed", s.Elapsed,
			)
			return s, nil
		}
	}
}
