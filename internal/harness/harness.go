package harness

import (
	"fmt"
	"time"

	"github.com/roach88/mindmark/internal/marker"
	"github.com/roach88/mindmark/internal/schedule"
	"github.com/roach88/mindmark/internal/timeline"
	"github.com/roach88/mindmark/internal/timeutil"
)

// TraceEvent is one boundary event as observed by the scripted loop.
type TraceEvent struct {
	// Tick is the 1-based frame number that detected the event.
	Tick int `json:"tick"`
	// AtMs is the detection offset from session start in milliseconds.
	AtMs int64 `json:"at_ms"`
	// Label is the marker wire identifier.
	Label string `json:"label"`
	// TrialIndex is the 0-based trial the boundary belongs to.
	TrialIndex int `json:"trial_index"`
}

// Result captures everything a scenario run produced.
type Result struct {
	Trace      []TraceEvent
	FinalPhase timeline.Phase
}

// Run executes the scenario on a fake clock and collects the trace.
//
// Tick n observes the clock at exactly n*TickMs past session start, so a
// boundary at time B is detected on the first tick with n*TickMs >= B -
// making every trace entry hand-computable from the scenario parameters.
func Run(s *Scenario) (*Result, error) {
	classes := make([]schedule.TrialClass, len(s.Schedule))
	for i, entry := range s.Schedule {
		c, err := schedule.ParseTrialClass(entry)
		if err != nil {
			return nil, fmt.Errorf("scenario %s: %w", s.Name, err)
		}
		classes[i] = c
	}

	engine, err := timeline.New(schedule.New(classes), timeline.Config{
		InitialFixation: time.Duration(s.InitialFixationMs) * time.Millisecond,
		ActiveDuration:  time.Duration(s.ActiveMs) * time.Millisecond,
		InterTrialMin:   time.Duration(s.InterTrialMs) * time.Millisecond,
		InterTrialMax:   time.Duration(s.InterTrialMs) * time.Millisecond,
	})
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", s.Name, err)
	}

	clock := timeutil.NewFake(time.Unix(0, 0))
	start := clock.Now()
	engine.Start(start)

	result := &Result{FinalPhase: engine.Phase()}
	for tick := 1; tick <= s.Ticks; tick++ {
		now := clock.Advance(time.Duration(s.TickMs) * time.Millisecond)
		res, err := engine.Tick(now)
		if err != nil {
			return nil, fmt.Errorf("scenario %s: tick %d: %w", s.Name, tick, err)
		}
		if res.Event != nil {
			result.Trace = append(result.Trace, TraceEvent{
				Tick:       tick,
				AtMs:       res.Event.At.Sub(start).Milliseconds(),
				Label:      marker.LabelFor(res.Event.Kind),
				TrialIndex: res.Event.TrialIndex,
			})
		}
		result.FinalPhase = res.Phase

		if s.AbortAfterTick > 0 && tick == s.AbortAfterTick {
			engine.Abort()
		}
	}
	return result, nil
}

// Verify applies the scenario's assertions to a result, returning every
// failure rather than stopping at the first.
func Verify(s *Scenario, result *Result) []error {
	var errs []error
	for i, a := range s.Assertions {
		switch a.Type {
		case AssertEventOrder:
			if err := verifyEventOrder(&a, result); err != nil {
				errs = append(errs, fmt.Errorf("assertions[%d]: %w", i, err))
			}
		case AssertEventCount:
			if err := verifyEventCount(&a, result); err != nil {
				errs = append(errs, fmt.Errorf("assertions[%d]: %w", i, err))
			}
		case AssertFinalPhase:
			if got := result.FinalPhase.Kind.String(); got != a.Phase {
				errs = append(errs, fmt.Errorf("assertions[%d]: final phase %q, want %q", i, got, a.Phase))
			}
		}
	}
	return errs
}

func verifyEventOrder(a *Assertion, result *Result) error {
	if len(result.Trace) != len(a.Labels) {
		return fmt.Errorf("trace has %d events, want %d", len(result.Trace), len(a.Labels))
	}
	for i, want := range a.Labels {
		if got := result.Trace[i].Label; got != want {
			return fmt.Errorf("trace[%d] is %q, want %q", i, got, want)
		}
	}
	return nil
}

func verifyEventCount(a *Assertion, result *Result) error {
	n := 0
	for _, ev := range result.Trace {
		if ev.Label == a.Label {
			n++
		}
	}
	if n != a.Count {
		return fmt.Errorf("label %q appears %d times, want %d", a.Label, n, a.Count)
	}
	return nil
}
