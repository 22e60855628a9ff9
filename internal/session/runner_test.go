package session

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/mindmark/internal/marker"
	"github.com/roach88/mindmark/internal/schedule"
	"github.com/roach88/mindmark/internal/timeline"
	"github.com/roach88/mindmark/internal/timeutil"
)

// captureSink records pushed labels. The runner is single-goroutine, but
// tests read the slice after Run returns, so guard anyway.
type captureSink struct {
	mu     sync.Mutex
	labels []string
}

func (s *captureSink) Push(ev marker.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.labels = append(s.labels, ev.Label)
	return nil
}

func (s *captureSink) Labels() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.labels...)
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newShortEngine builds a real-time session small enough to run inside a
// test: two trials, tens of milliseconds per phase.
func newShortEngine(t *testing.T, classes []schedule.TrialClass) *timeline.Engine {
	t.Helper()
	e, err := timeline.New(schedule.New(classes), timeline.Config{
		InitialFixation: 20 * time.Millisecond,
		ActiveDuration:  40 * time.Millisecond,
		InterTrialMin:   10 * time.Millisecond,
		InterTrialMax:   10 * time.Millisecond,
	})
	require.NoError(t, err)
	return e
}

func TestRunner_RunToCompletion(t *testing.T) {
	engine := newShortEngine(t, []schedule.TrialClass{schedule.Focus, schedule.Relaxation})
	sink := &captureSink{}
	r := NewRunner(engine, timeutil.System{}, sink, nil, 2*time.Millisecond, "tok-1", quietLogger())

	summary, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "tok-1", summary.Token)
	assert.Equal(t, timeline.PhaseCompleted, summary.Phase.Kind)
	assert.Equal(t, 2, summary.TrialsTotal)
	assert.Equal(t, int64(4), summary.MarkersDelivered)
	assert.Equal(t, int64(0), summary.MarkersFailed)
	assert.GreaterOrEqual(t, summary.Elapsed, 110*time.Millisecond, "nominal 20+40+10+40 ms")

	assert.Equal(t, []string{
		"focus_start", "focus_end",
		"relaxation_start", "relaxation_end",
	}, sink.Labels())
}

func TestRunner_ContextCancelAborts(t *testing.T) {
	// Long phases: the session cannot finish on its own within the test.
	e, err := timeline.New(schedule.New([]schedule.TrialClass{schedule.Focus, schedule.Relaxation}), timeline.Config{
		InitialFixation: 10 * time.Millisecond,
		ActiveDuration:  10 * time.Second,
		InterTrialMin:   time.Second,
		InterTrialMax:   time.Second,
	})
	require.NoError(t, err)

	sink := &captureSink{}
	r := NewRunner(e, timeutil.System{}, sink, nil, 2*time.Millisecond, "tok-2", quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	summary, err := r.Run(ctx)
	require.NoError(t, err, "abort is a normal ending, not an error")

	assert.Equal(t, timeline.PhaseAborted, summary.Phase.Kind)
	// Only the first trial's start fired before the abort.
	assert.Equal(t, []string{"focus_start"}, sink.Labels())
}

func TestRunner_DefaultsApplied(t *testing.T) {
	engine := newShortEngine(t, []schedule.TrialClass{schedule.Focus})
	r := NewRunner(engine, timeutil.System{}, marker.DiscardSink{}, nil, 0, "tok-3", nil)
	assert.Equal(t, DefaultCadence, r.cadence)

	summary, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, timeline.PhaseCompleted, summary.Phase.Kind)
}

func TestUUIDv7Generator(t *testing.T) {
	g := UUIDv7Generator{}
	a, b := g.Generate(), g.Generate()

	assert.NotEqual(t, a, b)
	for _, tok := range []string{a, b} {
		parsed, err := uuid.Parse(tok)
		require.NoError(t, err)
		assert.Equal(t, uuid.Version(7), parsed.Version())
	}
}

func TestFixedGenerator(t *testing.T) {
	g := NewFixedGenerator("one", "two")
	assert.Equal(t, "one", g.Generate())
	assert.Equal(t, "two", g.Generate())
	assert.Panics(t, func() { g.Generate() })
}
