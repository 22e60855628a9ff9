// Package schedule generates the randomized trial order for a session.
//
// A schedule is an immutable sequence of labeled trial classes with two
// hard constraints: both classes appear equally often, and no run of
// identical classes exceeds MaxRunLength. Generation uses rejection
// sampling over uniform permutations so the distribution of run positions
// stays unbiased (local repair would cluster repairs near run sites).
package schedule

import "fmt"

// TrialClass labels one mental-state condition.
type TrialClass int

const (
	// Focus is the active-concentration condition.
	Focus TrialClass = iota
	// Relaxation is the quiet-rest condition.
	Relaxation
)

// String returns the lowercase class name used in protocol files,
// scenario files, and CLI output.
func (c TrialClass) String() string {
	switch c {
	case Focus:
		return "focus"
	case Relaxation:
		return "relaxation"
	default:
		return fmt.Sprintf("TrialClass(%d)", int(c))
	}
}

// ParseTrialClass converts a lowercase class name back to a TrialClass.
func ParseTrialClass(s string) (TrialClass, error) {
	switch s {
	case "focus":
		return Focus, nil
	case "relaxation":
		return Relaxation, nil
	default:
		return 0, fmt.Errorf("unknown trial class %q (want \"focus\" or \"relaxation\")", s)
	}
}

// DefaultTrialsPerClass is the per-class trial count of the standard protocol.
const DefaultTrialsPerClass = 50

// MaxRunLength is the longest permitted run of identical trial classes.
// Fixed by the protocol design, not user-configurable; named here so tests
// can exercise other values through Generate.
const MaxRunLength = 5

// Schedule is an immutable ordered sequence of trial class assignments.
// The position of an entry is its 0-based trial index.
//
// The zero value is an empty schedule. Construct with New or Generate.
type Schedule struct {
	entries []TrialClass
}

// New builds a schedule from an explicit entry list. The slice is copied,
// so later mutation of the argument cannot affect the schedule.
//
// New performs no constraint checking - it exists for tests and for
// scenario files that pin an exact trial order. Generated schedules always
// satisfy the balance and run-length invariants.
func New(entries []TrialClass) Schedule {
	cp := make([]TrialClass, len(entries))
	copy(cp, entries)
	return Schedule{entries: cp}
}

// Len returns the total number of trials.
func (s Schedule) Len() int {
	return len(s.entries)
}

// At returns the trial class at index i. Panics if i is out of range,
// matching slice semantics.
func (s Schedule) At(i int) TrialClass {
	return s.entries[i]
}

// Classes returns a copy of the full entry list.
func (s Schedule) Classes() []TrialClass {
	cp := make([]TrialClass, len(s.entries))
	copy(cp, s.entries)
	return cp
}

// CountOf returns how many entries carry the given class.
func (s Schedule) CountOf(c TrialClass) int {
	n := 0
	for _, e := range s.entries {
		if e == c {
			n++
		}
	}
	return n
}

// LongestRun returns the length of the longest contiguous run of
// identical classes. Returns 0 for an empty schedule.
func (s Schedule) LongestRun() int {
	longest, run := 0, 0
	for i, e := range s.entries {
		if i == 0 || e != s.entries[i-1] {
			run = 1
		} else {
			run++
		}
		if run > longest {
			longest = run
		}
	}
	return longest
}

// Validate checks the balance and run-length invariants against the given
// parameters. Used by tests and by the plan command to double-check
// generated output before it is handed to a timeline engine.
func (s Schedule) Validate(trialsPerClass, maxRun int) error {
	if got, want := s.Len(), 2*trialsPerClass; got != want {
		return fmt.Errorf("schedule has %d entries, want %d", got, want)
	}
	if got := s.CountOf(Focus); got != trialsPerClass {
		return fmt.Errorf("schedule has %d focus entries, want %d", got, trialsPerClass)
	}
	if got := s.LongestRun(); got > maxRun {
		return fmt.Errorf("schedule has a run of %d, max allowed %d", got, maxRun)
	}
	return nil
}
