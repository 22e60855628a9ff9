// Package display renders the current session phase for the participant.
//
// The timing core only reports phases; everything visual is behind the
// Display interface so the session loop can run headless in tests. The
// shipped implementation is a terminal renderer; full-screen graphics are
// out of scope for this module.
package display

import (
	"time"

	"github.com/roach88/mindmark/internal/timeline"
)

// Snapshot is what the session loop hands the display every tick.
type Snapshot struct {
	Phase      timeline.Phase
	Elapsed    time.Duration
	Remaining  time.Duration
	TrialTotal int
}

// Display renders phase snapshots. Render is called once per tick from
// the session's frame loop and must not block.
type Display interface {
	Render(Snapshot)
}

// Nop is a display that renders nothing. Used by tests and scripted runs.
type Nop struct{}

// Render discards the snapshot.
func (Nop) Render(Snapshot) {}
