package timeline

import (
	"fmt"
	"time"

	"github.com/roach88/mindmark/internal/schedule"
)

// PhaseKind identifies which session phase is current.
type PhaseKind int

const (
	// PhaseInit is the pre-start state. It is never user-visible: Start
	// transitions out of it synchronously.
	PhaseInit PhaseKind = iota
	// PhaseInitialFixation is the rest period before the first trial.
	PhaseInitialFixation
	// PhaseActiveTrial is a labeled Focus or Relaxation trial.
	PhaseActiveTrial
	// PhaseInterTrialFixation is the unlabeled separator between trials.
	PhaseInterTrialFixation
	// PhaseCompleted is the terminal state of a full session.
	PhaseCompleted
	// PhaseAborted is the terminal state of an aborted session.
	PhaseAborted
)

// String returns the snake_case phase name used in logs and traces.
func (k PhaseKind) String() string {
	switch k {
	case PhaseInit:
		return "init"
	case PhaseInitialFixation:
		return "initial_fixation"
	case PhaseActiveTrial:
		return "active_trial"
	case PhaseInterTrialFixation:
		return "inter_trial_fixation"
	case PhaseCompleted:
		return "completed"
	case PhaseAborted:
		return "aborted"
	default:
		return fmt.Sprintf("PhaseKind(%d)", int(k))
	}
}

// Phase is the tagged current-state variant. Index carries the trial index
// for PhaseActiveTrial and the after-index for PhaseInterTrialFixation;
// it is -1 for every other kind. Class is only meaningful for
// PhaseActiveTrial.
type Phase struct {
	Kind  PhaseKind
	Index int
	Class schedule.TrialClass
}

// Terminal reports whether the phase is Completed or Aborted.
func (p Phase) Terminal() bool {
	return p.Kind == PhaseCompleted || p.Kind == PhaseAborted
}

// BoundaryKind identifies a labeled-trial boundary.
type BoundaryKind int

const (
	// FocusStart marks entry into a Focus trial.
	FocusStart BoundaryKind = iota
	// FocusEnd marks exit from a Focus trial.
	FocusEnd
	// RelaxationStart marks entry into a Relaxation trial.
	RelaxationStart
	// RelaxationEnd marks exit from a Relaxation trial.
	RelaxationEnd
)

// String returns the boundary name. Marker wire labels live in the marker
// package; this form is for logs and traces only.
func (k BoundaryKind) String() string {
	switch k {
	case FocusStart:
		return "focus_start"
	case FocusEnd:
		return "focus_end"
	case RelaxationStart:
		return "relaxation_start"
	case RelaxationEnd:
		return "relaxation_end"
	default:
		return fmt.Sprintf("BoundaryKind(%d)", int(k))
	}
}

// startBoundary maps a trial class to its entry boundary.
func startBoundary(c schedule.TrialClass) BoundaryKind {
	if c == schedule.Focus {
		return FocusStart
	}
	return RelaxationStart
}

// endBoundary maps a trial class to its exit boundary.
func endBoundary(c schedule.TrialClass) BoundaryKind {
	if c == schedule.Focus {
		return FocusEnd
	}
	return RelaxationEnd
}

// BoundaryEvent is a discrete, exactly-once signal marking entry into or
// exit from an active trial.
//
// At is the monotonic timestamp of DETECTION (the tick that observed the
// crossing), not the logical boundary time; it exists for latency
// diagnostics. The engine never persists events.
type BoundaryEvent struct {
	Kind       BoundaryKind
	TrialIndex int
	Class      schedule.TrialClass
	At         time.Time
}

// TickResult is what every Tick call reports: the current phase, the
// per-phase clock readings, and at most one boundary event.
type TickResult struct {
	Phase Phase

	// Elapsed is time spent in the current phase; Remaining is the nominal
	// time left in it. Both are zero in terminal phases.
	Elapsed   time.Duration
	Remaining time.Duration

	// Event is non-nil on exactly the first tick whose time crosses a
	// phase boundary that enters or leaves an active trial.
	Event *BoundaryEvent
}
