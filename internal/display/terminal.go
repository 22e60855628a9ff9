package display

import (
	"fmt"
	"io"
	"math/rand"
	"time"

	"github.com/roach88/mindmark/internal/schedule"
	"github.com/roach88/mindmark/internal/timeline"
)

// Terminal renders session phases as console lines: one line per phase
// entry, in the shape operators are used to from lab session scripts.
//
// Focus trials show a serial-subtraction prompt seeded from the display's
// own random source - stimuli are presentation-only and must never draw
// from the schedule or jitter streams, or reproducibility would couple to
// rendering.
type Terminal struct {
	w     io.Writer
	total int
	rng   *rand.Rand

	lastKind  timeline.PhaseKind
	lastIndex int
	lastSecs  int
}

// NewTerminal creates a terminal display writing to w for a session of
// trialTotal active trials. rng feeds the focus prompts; pass any seeded
// or entropy source.
func NewTerminal(w io.Writer, trialTotal int, rng *rand.Rand) *Terminal {
	return &Terminal{
		w:         w,
		total:     trialTotal,
		rng:       rng,
		lastKind:  timeline.PhaseInit,
		lastIndex: -1,
		lastSecs:  -1,
	}
}

// Welcome prints the pre-session instruction banner.
func (t *Terminal) Welcome(protocolName string, trialTotal int) {
	fmt.Fprintf(t.w, "\n%s\n", rule)
	fmt.Fprintf(t.w, "  Session protocol: %s\n", protocolName)
	fmt.Fprintf(t.w, "  %d trials. On each trial you will either:\n", trialTotal)
	fmt.Fprintln(t.w, "    - FOCUS: count backwards in your mind from the number shown")
	fmt.Fprintln(t.w, "    - RELAX: close your eyes and rest quietly")
	fmt.Fprintln(t.w, "  A fixation marker (+) separates trials.")
	fmt.Fprintln(t.w, "  Press Ctrl-C at any time to abort.")
	fmt.Fprintf(t.w, "%s\n\n", rule)
}

const rule = "============================================================"

// Render prints a line whenever the phase changes. Inside an active trial
// the remaining whole seconds are redrawn in place on the countdown line;
// all other repeat snapshots are silent.
func (t *Terminal) Render(s Snapshot) {
	if s.Phase.Kind == t.lastKind && s.Phase.Index == t.lastIndex {
		if s.Phase.Kind == timeline.PhaseActiveTrial {
			t.countdown(s.Remaining)
		}
		return
	}
	if t.lastKind == timeline.PhaseActiveTrial && t.lastSecs >= 0 {
		// Terminate the in-place countdown line before the next phase line.
		fmt.Fprintln(t.w)
	}
	t.lastKind = s.Phase.Kind
	t.lastIndex = s.Phase.Index
	t.lastSecs = -1

	switch s.Phase.Kind {
	case timeline.PhaseInitialFixation:
		fmt.Fprintln(t.w, "  +")

	case timeline.PhaseActiveTrial:
		n := s.Phase.Index + 1
		switch s.Phase.Class {
		case schedule.Focus:
			from := 300 + t.rng.Intn(700)
			fmt.Fprintf(t.w, "[Trial %3d/%d]  FOCUS: count backwards by sevens from %d\n", n, t.total, from)
		default:
			fmt.Fprintf(t.w, "[Trial %3d/%d]  RELAX: close your eyes and rest quietly\n", n, t.total)
		}

	case timeline.PhaseInterTrialFixation:
		fmt.Fprintln(t.w, "  +")

	case timeline.PhaseCompleted:
		fmt.Fprintf(t.w, "\n%s\n  Session complete. Thank you.\n%s\n", rule, rule)

	case timeline.PhaseAborted:
		fmt.Fprintf(t.w, "\n%s\n  Session aborted.\n%s\n", rule, rule)
	}
}

// countdown redraws the remaining whole seconds of the current trial on
// one line, overwriting in place with a carriage return.
func (t *Terminal) countdown(remaining time.Duration) {
	secs := int((remaining + time.Second - 1) / time.Second)
	if secs <= 0 || secs == t.lastSecs {
		return
	}
	t.lastSecs = secs
	fmt.Fprintf(t.w, "\r    %2ds remaining ", secs)
}
