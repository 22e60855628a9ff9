// Package timeline implements the session timing state machine.
//
// ARCHITECTURE:
//
// Single-owner tick loop:
// The engine is a pure state reducer with no goroutines, timers, or I/O of
// its own. An external presentation loop (internal/session) reads a
// monotonic clock, calls Tick once per frame, renders the returned phase,
// and forwards any boundary event to the marker adapter. This keeps every
// timing decision unit-testable against a fake clock with no display or
// stream resources.
//
// Phase progression:
//
//	Init -> InitialFixation -> ActiveTrial(0) -> InterTrialFixation(0)
//	     -> ActiveTrial(1) -> ... -> ActiveTrial(n-1) -> Completed
//
// There is deliberately no trailing fixation: the last active trial exits
// straight to Completed. Abort overrides everything and is terminal.
//
// INVARIANTS:
//   - Phases move monotonically forward; no phase is ever revisited.
//   - A boundary event fires on exactly the first tick that crosses its
//     threshold, at most one event per tick.
//   - Fixation entries and exits never produce events.
//   - The schedule is immutable and exclusively owned by the engine.
//
// KNOWN LIMITATION:
// A tick that arrives after a severe stall may cross several boundaries at
// once; the engine reports only the terminal event of the chain and logs
// the coalesced count. Tick cadence at or under 50ms makes this
// practically unreachable.
package timeline
