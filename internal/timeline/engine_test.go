package timeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/mindmark/internal/schedule"
)

var base = time.Unix(1000, 0)

// newTestEngine builds an engine over an explicit trial order with fixed
// separators. Durations are kept small only for readability - the fake
// timestamps cost nothing either way.
func newTestEngine(t *testing.T, classes []schedule.TrialClass, cfg Config, opts ...Option) *Engine {
	t.Helper()
	e, err := New(schedule.New(classes), cfg, opts...)
	require.NoError(t, err)
	return e
}

func defaultTestConfig() Config {
	return Config{
		InitialFixation: 100 * time.Millisecond,
		ActiveDuration:  200 * time.Millisecond,
		InterTrialMin:   50 * time.Millisecond,
		InterTrialMax:   50 * time.Millisecond,
	}
}

func TestEngine_New_Validation(t *testing.T) {
	valid := defaultTestConfig()

	_, err := New(schedule.Schedule{}, valid)
	assert.Error(t, err, "empty schedule must be rejected")

	bad := valid
	bad.ActiveDuration = 0
	_, err = New(schedule.New([]schedule.TrialClass{schedule.Focus}), bad)
	assert.Error(t, err, "zero active duration must be rejected")

	bad = valid
	bad.InterTrialMin, bad.InterTrialMax = 60*time.Millisecond, 50*time.Millisecond
	_, err = New(schedule.New([]schedule.TrialClass{schedule.Focus}), bad)
	assert.Error(t, err, "inverted jitter range must be rejected")

	jittered := valid
	jittered.InterTrialMax = 80 * time.Millisecond
	_, err = New(schedule.New([]schedule.TrialClass{schedule.Focus}), jittered)
	assert.Error(t, err, "jitter range without a source must be rejected")

	_, err = New(schedule.New([]schedule.TrialClass{schedule.Focus}), jittered,
		WithJitterSource(schedule.NewSeededSource(1)))
	assert.NoError(t, err, "jitter range with a source is valid")
}

func TestEngine_TickBeforeStart(t *testing.T) {
	e := newTestEngine(t, []schedule.TrialClass{schedule.Focus}, defaultTestConfig())

	_, err := e.Tick(base)
	assert.ErrorIs(t, err, ErrNotStarted)
}

func TestEngine_StartEntersInitialFixation(t *testing.T) {
	e := newTestEngine(t, []schedule.TrialClass{schedule.Focus}, defaultTestConfig())

	e.Start(base)
	assert.Equal(t, PhaseInitialFixation, e.Phase().Kind)

	// Tick inside the fixation: no event, phase unchanged, clocks sane.
	res, err := e.Tick(base.Add(40 * time.Millisecond))
	require.NoError(t, err)
	assert.Equal(t, PhaseInitialFixation, res.Phase.Kind)
	assert.Nil(t, res.Event)
	assert.Equal(t, 40*time.Millisecond, res.Elapsed)
	assert.Equal(t, 60*time.Millisecond, res.Remaining)
}

func TestEngine_FirstTrialStart(t *testing.T) {
	e := newTestEngine(t, []schedule.TrialClass{schedule.Relaxation, schedule.Focus}, defaultTestConfig())
	e.Start(base)

	// Exactly on the boundary fires the transition.
	now := base.Add(100 * time.Millisecond)
	res, err := e.Tick(now)
	require.NoError(t, err)
	require.NotNil(t, res.Event)
	assert.Equal(t, RelaxationStart, res.Event.Kind)
	assert.Equal(t, 0, res.Event.TrialIndex)
	assert.Equal(t, now, res.Event.At, "event carries the detection timestamp")
	assert.Equal(t, PhaseActiveTrial, res.Phase.Kind)
	assert.Equal(t, 0, res.Phase.Index)

	// Same timestamp again: transition must not double-fire.
	res, err = e.Tick(now)
	require.NoError(t, err)
	assert.Nil(t, res.Event)
	assert.Equal(t, PhaseActiveTrial, res.Phase.Kind)
}

func TestEngine_NoThresholdNoChange(t *testing.T) {
	e := newTestEngine(t, []schedule.TrialClass{schedule.Focus}, defaultTestConfig())
	e.Start(base)

	// Many irregular ticks inside the initial fixation window.
	for _, ms := range []int{1, 7, 30, 55, 80, 99} {
		res, err := e.Tick(base.Add(time.Duration(ms) * time.Millisecond))
		require.NoError(t, err)
		assert.Nil(t, res.Event, "tick at %dms", ms)
		assert.Equal(t, PhaseInitialFixation, res.Phase.Kind, "tick at %dms", ms)
	}
}

func TestEngine_LastTrialExitsToCompleted(t *testing.T) {
	e := newTestEngine(t, []schedule.TrialClass{schedule.Focus}, defaultTestConfig())
	e.Start(base)

	res, err := e.Tick(base.Add(100 * time.Millisecond))
	require.NoError(t, err)
	require.NotNil(t, res.Event)
	assert.Equal(t, FocusStart, res.Event.Kind)

	// One trial only: its exit goes straight to Completed, no trailing
	// fixation.
	res, err = e.Tick(base.Add(300 * time.Millisecond))
	require.NoError(t, err)
	require.NotNil(t, res.Event)
	assert.Equal(t, FocusEnd, res.Event.Kind)
	assert.Equal(t, PhaseCompleted, res.Phase.Kind)

	// Terminal state is quiet forever after.
	res, err = e.Tick(base.Add(time.Hour))
	require.NoError(t, err)
	assert.Nil(t, res.Event)
	assert.Equal(t, PhaseCompleted, res.Phase.Kind)
}

func TestEngine_SeparatorBetweenTrials(t *testing.T) {
	e := newTestEngine(t, []schedule.TrialClass{schedule.Focus, schedule.Relaxation}, defaultTestConfig())
	e.Start(base)

	// initial fixation ends at 100ms, trial 0 at 300ms, separator at
	// 350ms, trial 1 at 550ms.
	res, err := e.Tick(base.Add(100 * time.Millisecond))
	require.NoError(t, err)
	require.NotNil(t, res.Event)
	assert.Equal(t, FocusStart, res.Event.Kind)

	res, err = e.Tick(base.Add(300 * time.Millisecond))
	require.NoError(t, err)
	require.NotNil(t, res.Event)
	assert.Equal(t, FocusEnd, res.Event.Kind)
	assert.Equal(t, PhaseInterTrialFixation, res.Phase.Kind)
	assert.Equal(t, 0, res.Phase.Index, "separator is tagged with the trial it follows")

	// Fixation exit produces no event of its own; the same tick that
	// leaves it enters trial 1 and reports the start.
	res, err = e.Tick(base.Add(350 * time.Millisecond))
	require.NoError(t, err)
	require.NotNil(t, res.Event)
	assert.Equal(t, RelaxationStart, res.Event.Kind)
	assert.Equal(t, 1, res.Event.TrialIndex)
}

func TestEngine_BoundariesAnchoredToLogicalTime(t *testing.T) {
	// Late ticks must not push later boundaries back: phase starts are
	// anchored at previous-start + nominal duration, not at detection.
	e := newTestEngine(t, []schedule.TrialClass{schedule.Focus, schedule.Relaxation}, defaultTestConfig())
	e.Start(base)

	// Detect the trial 0 start 30ms late.
	res, err := e.Tick(base.Add(130 * time.Millisecond))
	require.NoError(t, err)
	require.NotNil(t, res.Event)

	// Trial 0 still ends at 300ms (not 330ms): a tick at 305ms crosses.
	res, err = e.Tick(base.Add(305 * time.Millisecond))
	require.NoError(t, err)
	require.NotNil(t, res.Event)
	assert.Equal(t, FocusEnd, res.Event.Kind)
}

func TestEngine_StallCoalescesToTerminalEvent(t *testing.T) {
	e := newTestEngine(t, []schedule.TrialClass{schedule.Focus, schedule.Relaxation}, defaultTestConfig())
	e.Start(base)

	// One giant jump past the initial fixation, all of trial 0, and the
	// separator, landing inside trial 1 (350ms..550ms window): the chain
	// is focus_start, focus_end, relaxation_start - only the terminal
	// event is reported.
	res, err := e.Tick(base.Add(500 * time.Millisecond))
	require.NoError(t, err)
	require.NotNil(t, res.Event)
	assert.Equal(t, RelaxationStart, res.Event.Kind)
	assert.Equal(t, 1, res.Event.TrialIndex)
	assert.Equal(t, PhaseActiveTrial, res.Phase.Kind)
	assert.Equal(t, 1, res.Phase.Index)
}

func TestEngine_Abort(t *testing.T) {
	phases := []struct {
		name string
		at   time.Duration
	}{
		{"during initial fixation", 50 * time.Millisecond},
		{"during active trial", 150 * time.Millisecond},
		{"during separator", 320 * time.Millisecond},
	}
	for _, tt := range phases {
		t.Run(tt.name, func(t *testing.T) {
			e := newTestEngine(t, []schedule.TrialClass{schedule.Focus, schedule.Relaxation}, defaultTestConfig())
			e.Start(base)
			_, err := e.Tick(base.Add(tt.at))
			require.NoError(t, err)

			e.Abort()

			// The very next tick reports Aborted; no boundary events ever
			// again, however far time advances.
			for _, after := range []time.Duration{tt.at + time.Millisecond, time.Second, time.Hour} {
				res, err := e.Tick(base.Add(after))
				require.NoError(t, err)
				assert.Equal(t, PhaseAborted, res.Phase.Kind)
				assert.Nil(t, res.Event)
			}
		})
	}
}

func TestEngine_AbortBeforeStart(t *testing.T) {
	e := newTestEngine(t, []schedule.TrialClass{schedule.Focus}, defaultTestConfig())
	e.Abort()
	e.Start(base) // must not resurrect the session

	res, err := e.Tick(base.Add(time.Second))
	require.NoError(t, err)
	assert.Equal(t, PhaseAborted, res.Phase.Kind)
	assert.Nil(t, res.Event)
}

func TestEngine_ClockRegressionIsFatal(t *testing.T) {
	e := newTestEngine(t, []schedule.TrialClass{schedule.Focus}, defaultTestConfig())
	e.Start(base)

	_, err := e.Tick(base.Add(50 * time.Millisecond))
	require.NoError(t, err)

	_, err = e.Tick(base.Add(30 * time.Millisecond))
	require.Error(t, err)
	assert.True(t, IsClockRegression(err))
	assert.Contains(t, err.Error(), "CLOCK_REGRESSION_DETECTED")

	// The rejected tick must not have advanced anything.
	res, err := e.Tick(base.Add(50 * time.Millisecond))
	require.NoError(t, err)
	assert.Equal(t, PhaseInitialFixation, res.Phase.Kind)
}

func TestEngine_JitterWithinRange(t *testing.T) {
	cfg := Config{
		InitialFixation: 100 * time.Millisecond,
		ActiveDuration:  200 * time.Millisecond,
		InterTrialMin:   40 * time.Millisecond,
		InterTrialMax:   80 * time.Millisecond,
	}
	classes := make([]schedule.TrialClass, 10)
	for i := range classes {
		if i%2 == 0 {
			classes[i] = schedule.Focus
		} else {
			classes[i] = schedule.Relaxation
		}
	}
	e := newTestEngine(t, classes, cfg, WithJitterSource(schedule.NewSeededSource(5)))
	e.Start(base)

	// Walk the whole session at 1ms resolution and measure each
	// separator as the gap between an End and the following Start.
	var lastEnd time.Time
	var gaps []time.Duration
	for ms := 1; ms < 4000; ms++ {
		now := base.Add(time.Duration(ms) * time.Millisecond)
		res, err := e.Tick(now)
		require.NoError(t, err)
		if res.Event != nil {
			switch res.Event.Kind {
			case FocusEnd, RelaxationEnd:
				lastEnd = now
			case FocusStart, RelaxationStart:
				if res.Event.TrialIndex > 0 {
					gaps = append(gaps, now.Sub(lastEnd))
				}
			}
		}
		if res.Phase.Terminal() {
			break
		}
	}

	require.Len(t, gaps, len(classes)-1)
	for i, gap := range gaps {
		assert.GreaterOrEqual(t, gap, cfg.InterTrialMin, "separator %d", i)
		assert.LessOrEqual(t, gap, cfg.InterTrialMax, "separator %d", i)
	}
}

// TestEngine_FullSession drives a complete default-parameter session on
// simulated time and checks the global accounting: 200 boundary events,
// classes in schedule order, completion at exactly
// 4s + 100*10s + 99*4s = 1400s.
func TestEngine_FullSession(t *testing.T) {
	sched, err := schedule.Generate(50, schedule.MaxRunLength, schedule.NewSeededSource(42))
	require.NoError(t, err)

	e, err := New(sched, Config{
		InitialFixation: 4 * time.Second,
		ActiveDuration:  10 * time.Second,
		InterTrialMin:   4 * time.Second,
		InterTrialMax:   4 * time.Second,
	})
	require.NoError(t, err)
	e.Start(base)

	const step = 250 * time.Millisecond
	var events []BoundaryEvent
	var completedAt time.Time

	now := base
	for i := 0; i < 10000; i++ {
		now = now.Add(step)
		res, err := e.Tick(now)
		require.NoError(t, err)
		if res.Event != nil {
			events = append(events, *res.Event)
		}
		if res.Phase.Kind == PhaseCompleted {
			completedAt = now
			break
		}
	}

	// 1400s is divisible by the step, so completion is detected exactly
	// on the nominal session boundary.
	require.False(t, completedAt.IsZero(), "session never completed")
	assert.Equal(t, base.Add(1400*time.Second), completedAt)

	// One start and one end per trial, nothing for fixations.
	require.Len(t, events, 200)

	// Projected to classes, events follow the schedule, and every trial
	// is a start/end pair over the same index and class.
	for i := 0; i < 100; i++ {
		start, end := events[2*i], events[2*i+1]
		class := sched.At(i)

		assert.Equal(t, i, start.TrialIndex)
		assert.Equal(t, i, end.TrialIndex)
		assert.Equal(t, class, start.Class)
		assert.Equal(t, class, end.Class)
		if class == schedule.Focus {
			assert.Equal(t, FocusStart, start.Kind)
			assert.Equal(t, FocusEnd, end.Kind)
		} else {
			assert.Equal(t, RelaxationStart, start.Kind)
			assert.Equal(t, RelaxationEnd, end.Kind)
		}
	}
}
