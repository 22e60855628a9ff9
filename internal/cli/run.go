package cli

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/mindmark/internal/display"
	"github.com/roach88/mindmark/internal/journal"
	"github.com/roach88/mindmark/internal/marker"
	"github.com/roach88/mindmark/internal/schedule"
	"github.com/roach88/mindmark/internal/session"
	"github.com/roach88/mindmark/internal/timeline"
	"github.com/roach88/mindmark/internal/timeutil"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Seed         int64
	Journal      string
	Stream       string
	Immediate    bool
	QuietMarkers bool

	// TokenGenerator allows overriding the session token generator (for
	// testing). If nil, defaults to UUIDv7Generator.
	TokenGenerator session.TokenGenerator
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run [protocol.cue]",
		Short: "Run a session",
		Long: `Run a full behavioral session: generate the trial schedule, then drive
the timing state machine at the protocol's tick cadence, echoing markers to
stdout and optionally to a TCP recorder stream and a journal database.

Ctrl-C aborts the session; abort is a normal terminal state, not an error.

Example:
  mindmark run --seed 42
  mindmark run protocols/standard.cue --journal ./markers.db --stream 127.0.0.1:7010`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			return runSession(opts, path, cmd)
		},
	}

	cmd.Flags().Int64Var(&opts.Seed, "seed", 0, "schedule seed (overrides the protocol file)")
	cmd.Flags().StringVar(&opts.Journal, "journal", "", "journal markers to this SQLite database")
	cmd.Flags().StringVar(&opts.Stream, "stream", "", "push markers to a TCP recorder at host:port")
	cmd.Flags().BoolVar(&opts.Immediate, "immediate", false, "start without waiting for ENTER")
	cmd.Flags().BoolVar(&opts.QuietMarkers, "quiet-markers", false, "do not echo marker labels to stdout")

	return cmd
}

func runSession(opts *RunOptions, path string, cmd *cobra.Command) error {
	// Configure logging based on verbose flag
	logLevel := slog.LevelInfo
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})
	logger := slog.New(handler)
	slog.SetDefault(logger)

	p, err := resolveProtocol(path, opts.Seed, cmd.Flags().Changed("seed"))
	if err != nil {
		return err
	}

	// Schedule generation happens before any window or stream is opened,
	// so a generation failure is surfaced to the operator cleanly.
	var scheduleRNG, jitterRNG *rand.Rand
	if p.Seed != nil {
		scheduleRNG = schedule.NewSeededSource(*p.Seed)
		// Jitter gets its own stream, derived from but not shared with the
		// schedule's, so adding jitter never changes the trial order.
		jitterRNG = schedule.NewSeededSource(*p.Seed + 1)
	} else {
		scheduleRNG = schedule.NewEntropySource()
		jitterRNG = schedule.NewEntropySource()
	}

	sched, err := schedule.Generate(p.TrialsPerClass, schedule.MaxRunLength, scheduleRNG)
	if err != nil {
		return WrapExitError(ExitFailure, "cannot start session", err)
	}

	engine, err := timeline.New(sched, timeline.Config{
		InitialFixation: p.InitialFixation,
		ActiveDuration:  p.ActiveDuration,
		InterTrialMin:   p.InterTrialMin,
		InterTrialMax:   p.InterTrialMax,
	}, timeline.WithJitterSource(jitterRNG), timeline.WithLogger(logger))
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid session configuration", err)
	}

	tokenGen := opts.TokenGenerator
	if tokenGen == nil {
		tokenGen = session.UUIDv7Generator{}
	}
	token := tokenGen.Generate()

	sink, cleanup, err := buildSink(opts, token, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	out := cmd.OutOrStdout()
	term := display.NewTerminal(out, sched.Len(), schedule.NewEntropySource())
	term.Welcome(p.Name, sched.Len())

	if !opts.Immediate {
		fmt.Fprint(out, "Press ENTER to start the session...")
		if _, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n'); err != nil {
			return WrapExitError(ExitCommandError, "stdin closed before start", err)
		}
	}

	// Ctrl-C maps to the engine's abort, not to process death.
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner := session.NewRunner(engine, timeutil.System{}, sink, term, p.TickCadence, token, logger)
	summary, err := runner.Run(ctx)
	if err != nil {
		return WrapExitError(ExitFailure, "session halted", err)
	}

	fmt.Fprintf(out, "\nsession %s: %s, %d/%d markers delivered",
		summary.Token, summary.Phase.Kind, summary.MarkersDelivered, 2*int64(summary.TrialsTotal))
	if summary.MarkersFailed > 0 {
		fmt.Fprintf(out, " (%d failed)", summary.MarkersFailed)
	}
	fmt.Fprintln(out)
	return nil
}

// buildSink composes the marker sink from the flags: stdout echo always,
// plus the optional TCP stream and journal. The returned cleanup closes
// whatever was opened.
func buildSink(opts *RunOptions, token string, logger *slog.Logger) (marker.Sink, func(), error) {
	var sinks marker.MultiSink
	if !opts.QuietMarkers {
		sinks = append(sinks, marker.WriterSink{W: os.Stdout})
	}
	var closers []func()

	if opts.Stream != "" {
		stream, err := marker.DialStream(opts.Stream, 2*time.Second)
		if err != nil {
			return nil, nil, WrapExitError(ExitCommandError, "failed to reach recorder stream", err)
		}
		sinks = append(sinks, stream)
		closers = append(closers, func() {
			if err := stream.Close(); err != nil {
				logger.Error("error closing recorder stream", "error", err)
			}
		})
	}

	if opts.Journal != "" {
		store, err := journal.Open(opts.Journal)
		if err != nil {
			return nil, nil, WrapExitError(ExitCommandError, "failed to open journal", err)
		}
		if err := store.BeginSession(context.Background(), token, time.Now()); err != nil {
			store.Close()
			return nil, nil, WrapExitError(ExitCommandError, "failed to begin journal session", err)
		}
		sinks = append(sinks, journal.NewSink(store, token))
		closers = append(closers, func() {
			if err := store.Close(); err != nil {
				logger.Error("error closing journal", "error", err)
			}
		})
	}

	cleanup := func() {
		for _, c := range closers {
			c()
		}
	}
	return sinks, cleanup, nil
}
