// Package protocol defines and loads session protocol parameters.
//
// A protocol names everything the scheduler and timeline engine need:
// trial counts, phase durations, tick cadence, and an optional seed.
// Protocols are written as CUE files so malformed parameter sets are
// rejected with positioned errors before any window or stream is opened.
package protocol

import (
	"fmt"
	"time"

	"github.com/roach88/mindmark/internal/schedule"
)

// MaxTickCadence is the slowest tick cadence a protocol may request.
// Above this, a single frame can plausibly cross more than one phase
// boundary and markers would be coalesced.
const MaxTickCadence = 50 * time.Millisecond

// Protocol is a fully resolved session parameter set.
type Protocol struct {
	// Name identifies the protocol in logs and the journal.
	Name string

	// Seed, when non-nil, makes schedule generation reproducible.
	Seed *int64

	// TrialsPerClass is the number of trials of EACH class; a session
	// runs twice this many active trials.
	TrialsPerClass int

	InitialFixation time.Duration
	ActiveDuration  time.Duration
	InterTrialMin   time.Duration
	InterTrialMax   time.Duration

	// TickCadence is the presentation loop's frame interval.
	TickCadence time.Duration
}

// Default returns the standard protocol: 50 trials per class, 10s active
// trials, 4s fixations, 20ms cadence, no seed.
func Default() Protocol {
	return Protocol{
		Name:            "standard",
		TrialsPerClass:  schedule.DefaultTrialsPerClass,
		InitialFixation: 4 * time.Second,
		ActiveDuration:  10 * time.Second,
		InterTrialMin:   4 * time.Second,
		InterTrialMax:   4 * time.Second,
		TickCadence:     20 * time.Millisecond,
	}
}

// NominalDuration returns the total scheduled session length: initial
// fixation + all active trials + the separators between them (there is no
// trailing fixation). Jitter ranges use the midpoint.
func (p Protocol) NominalDuration() time.Duration {
	trials := 2 * p.TrialsPerClass
	separator := (p.InterTrialMin + p.InterTrialMax) / 2
	return p.InitialFixation +
		time.Duration(trials)*p.ActiveDuration +
		time.Duration(trials-1)*separator
}

// Validate checks every parameter and returns all violations, not just
// the first, so an operator can fix a protocol file in one pass.
func (p Protocol) Validate() []error {
	var errs []error
	if p.Name == "" {
		errs = append(errs, &LoadError{Code: ErrCodeName, Message: "protocol name is required"})
	}
	if p.TrialsPerClass < 1 {
		errs = append(errs, &LoadError{Code: ErrCodeTrials,
			Message: fmt.Sprintf("trialsPerClass must be >= 1, got %d", p.TrialsPerClass)})
	}
	if p.ActiveDuration <= 0 {
		errs = append(errs, &LoadError{Code: ErrCodeDuration,
			Message: fmt.Sprintf("active duration must be positive, got %v", p.ActiveDuration)})
	}
	if p.InitialFixation < 0 {
		errs = append(errs, &LoadError{Code: ErrCodeDuration,
			Message: fmt.Sprintf("initial fixation must be non-negative, got %v", p.InitialFixation)})
	}
	if p.InterTrialMin < 0 {
		errs = append(errs, &LoadError{Code: ErrCodeDuration,
			Message: fmt.Sprintf("inter-trial minimum must be non-negative, got %v", p.InterTrialMin)})
	}
	if p.InterTrialMax < p.InterTrialMin {
		errs = append(errs, &LoadError{Code: ErrCodeJitterRange,
			Message: fmt.Sprintf("inter-trial range inverted: min %v > max %v", p.InterTrialMin, p.InterTrialMax)})
	}
	if p.TickCadence <= 0 {
		errs = append(errs, &LoadError{Code: ErrCodeCadence,
			Message: fmt.Sprintf("tick cadence must be positive, got %v", p.TickCadence)})
	} else if p.TickCadence > MaxTickCadence {
		errs = append(errs, &LoadError{Code: ErrCodeCadence,
			Message: fmt.Sprintf("tick cadence %v exceeds the %v marker-latency bound", p.TickCadence, MaxTickCadence)})
	}
	return errs
}
