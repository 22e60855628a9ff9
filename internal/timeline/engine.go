package timeline

import (
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/roach88/mindmark/internal/schedule"
)

// Config carries the phase durations for a session.
//
// InterTrialMin and InterTrialMax bound the separator length. When they
// are equal every separator is fixed; when min < max each separator is
// drawn uniformly from [min, max] at the moment it is entered, from the
// engine's own jitter source (never from the schedule generator's stream).
type Config struct {
	InitialFixation time.Duration
	ActiveDuration  time.Duration
	InterTrialMin   time.Duration
	InterTrialMax   time.Duration
}

// Option configures an Engine at construction.
type Option func(*Engine)

// WithJitterSource injects the random source used for per-separator
// jitter draws. Required when InterTrialMin < InterTrialMax. The source is
// exclusively owned by the engine afterwards.
func WithJitterSource(rng *rand.Rand) Option {
	return func(e *Engine) {
		e.jitter = rng
	}
}

// WithLogger overrides the logger used for stall diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// Engine drives the session phase progression.
//
// It is a pure, synchronous state reducer: an external presentation loop
// owns the clock and calls Tick with monotonic timestamps; the engine
// classifies transitions and hands back at most one boundary event per
// call. It performs no I/O and has no internal concurrency - all methods
// must be called from the single goroutine that owns the session.
//
// Phase boundaries are computed against the logical start of each phase
// (previous boundary + nominal duration), not against tick arrival times,
// so tick jitter never accumulates into schedule drift. Event timestamps,
// by contrast, record detection time for latency diagnostics.
type Engine struct {
	schedule schedule.Schedule
	cfg      Config
	jitter   *rand.Rand
	logger   *slog.Logger

	phase      Phase
	phaseStart time.Time     // logical entry time of the current phase
	phaseLen   time.Duration // nominal length of the current phase

	started  bool
	lastNow  time.Time
	haveLast bool
}

// New validates the configuration and returns an unstarted engine.
// The schedule is owned by the engine for the session's lifetime.
func New(sched schedule.Schedule, cfg Config, opts ...Option) (*Engine, error) {
	if sched.Len() == 0 {
		return nil, fmt.Errorf("timeline: schedule is empty")
	}
	if cfg.ActiveDuration <= 0 {
		return nil, fmt.Errorf("timeline: active duration must be positive, got %v", cfg.ActiveDuration)
	}
	if cfg.InitialFixation < 0 {
		return nil, fmt.Errorf("timeline: initial fixation must be non-negative, got %v", cfg.InitialFixation)
	}
	if cfg.InterTrialMin < 0 {
		return nil, fmt.Errorf("timeline: inter-trial minimum must be non-negative, got %v", cfg.InterTrialMin)
	}
	if cfg.InterTrialMax < cfg.InterTrialMin {
		return nil, fmt.Errorf("timeline: inter-trial range inverted (min %v > max %v)", cfg.InterTrialMin, cfg.InterTrialMax)
	}

	e := &Engine{
		schedule: sched,
		cfg:      cfg,
		logger:   slog.Default(),
		phase:    Phase{Kind: PhaseInit, Index: -1},
	}
	for _, opt := range opts {
		opt(e)
	}

	if cfg.InterTrialMin < cfg.InterTrialMax && e.jitter == nil {
		return nil, fmt.Errorf("timeline: inter-trial jitter range requires WithJitterSource")
	}

	return e, nil
}

// Start transitions Init -> InitialFixation synchronously. now is the
// session's time origin; all phase boundaries are derived from it.
// Start on an aborted engine is a no-op: Aborted is terminal.
func (e *Engine) Start(now time.Time) {
	if e.started || e.phase.Kind == PhaseAborted {
		return
	}
	e.started = true
	e.phase = Phase{Kind: PhaseInitialFixation, Index: -1}
	e.phaseStart = now
	e.phaseLen = e.cfg.InitialFixation
	e.lastNow = now
	e.haveLast = true
}

// Abort forces the terminal Aborted state, unconditionally and
// immediately, from any state. Not an error: every subsequent Tick
// reports Aborted with no boundary event.
func (e *Engine) Abort() {
	e.phase = Phase{Kind: PhaseAborted, Index: -1}
	e.started = true
}

// Phase returns the current phase without advancing time.
func (e *Engine) Phase() Phase {
	return e.phase
}

// TrialCount returns the total number of scheduled trials.
func (e *Engine) TrialCount() int {
	return e.schedule.Len()
}

// Tick advances the state machine to the given monotonic timestamp.
//
// Tick may be called at arbitrary, irregular intervals. A boundary event
// for a given transition is returned on exactly the first call whose now
// crosses the threshold, never again. If now has advanced past more than
// one boundary (a scheduling stall), the whole chain is processed and only
// the TERMINAL boundary event is reported; the coalesced intermediates are
// logged as a warning. Callers keep this unreachable in practice by
// ticking at least every 50ms.
//
// A now earlier than the last observed timestamp returns a
// ClockRegressionError; the engine state is left untouched.
func (e *Engine) Tick(now time.Time) (TickResult, error) {
	if !e.started {
		return TickResult{Phase: e.phase}, ErrNotStarted
	}
	if e.haveLast && now.Before(e.lastNow) {
		return TickResult{Phase: e.phase}, &ClockRegressionError{Last: e.lastNow, Observed: now}
	}
	e.lastNow = now
	e.haveLast = true

	if e.phase.Terminal() {
		return TickResult{Phase: e.phase}, nil
	}

	var last *BoundaryEvent
	events := 0
	for !e.phase.Terminal() && now.Sub(e.phaseStart) >= e.phaseLen {
		boundary := e.phaseStart.Add(e.phaseLen)
		if ev := e.advance(boundary, now); ev != nil {
			events++
			last = ev
		}
	}
	if events > 1 {
		e.logger.Warn("tick crossed multiple trial boundaries, intermediate markers coalesced",
			"events_skipped", events-1,
			"reported", last.Kind.String(),
			"trial_index", last.TrialIndex,
		)
	}

	res := TickResult{Phase: e.phase, Event: last}
	if !e.phase.Terminal() {
		res.Elapsed = now.Sub(e.phaseStart)
		res.Remaining = e.phaseLen - res.Elapsed
		if res.Remaining < 0 {
			res.Remaining = 0
		}
	}
	return res, nil
}

// advance executes exactly one transition out of the current phase.
// boundary is the logical crossing time (becomes the next phase's start);
// now is the detection time stamped onto the event.
func (e *Engine) advance(boundary, now time.Time) *BoundaryEvent {
	switch e.phase.Kind {
	case PhaseInitialFixation:
		return e.enterTrial(0, boundary, now)

	case PhaseActiveTrial:
		i := e.phase.Index
		class := e.phase.Class
		ev := &BoundaryEvent{Kind: endBoundary(class), TrialIndex: i, Class: class, At: now}
		if i == e.schedule.Len()-1 {
			// No trailing fixation: the last trial exits straight to Completed.
			e.phase = Phase{Kind: PhaseCompleted, Index: -1}
			return ev
		}
		e.phase = Phase{Kind: PhaseInterTrialFixation, Index: i}
		e.phaseStart = boundary
		e.phaseLen = e.drawInterTrial()
		return ev

	case PhaseInterTrialFixation:
		return e.enterTrial(e.phase.Index+1, boundary, now)

	default:
		// Terminal phases never reach here; the Tick loop guards on them.
		return nil
	}
}

// enterTrial transitions into ActiveTrial(i) and produces its start event.
func (e *Engine) enterTrial(i int, boundary, now time.Time) *BoundaryEvent {
	class := e.schedule.At(i)
	e.phase = Phase{Kind: PhaseActiveTrial, Index: i, Class: class}
	e.phaseStart = boundary
	e.phaseLen = e.cfg.ActiveDuration
	return &BoundaryEvent{Kind: startBoundary(class), TrialIndex: i, Class: class, At: now}
}

// drawInterTrial returns the length of the separator being entered.
func (e *Engine) drawInterTrial() time.Duration {
	if e.cfg.InterTrialMin == e.cfg.InterTrialMax {
		return e.cfg.InterTrialMin
	}
	span := int64(e.cfg.InterTrialMax - e.cfg.InterTrialMin)
	return e.cfg.InterTrialMin + time.Duration(e.jitter.Int63n(span+1))
}
