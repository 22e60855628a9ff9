package cli

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/mindmark/internal/journal"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Journal string
}

// traceMarker is the JSON shape of one journaled marker.
type traceMarker struct {
	Seq      int64  `json:"seq"`
	Label    string `json:"label"`
	OffsetMs int64  `json:"offset_ms"`
	Wall     string `json:"wall"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace [session-token]",
		Short: "Inspect journaled markers",
		Long: `List journaled sessions, or dump the delivered markers of one session in
delivery order for cross-checking against the physiological record.

Example:
  mindmark trace --journal ./markers.db
  mindmark trace --journal ./markers.db 0192e5a1-...`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			token := ""
			if len(args) == 1 {
				token = args[0]
			}
			return runTrace(opts, token, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Journal, "journal", "", "path to the marker journal (required)")
	_ = cmd.MarkFlagRequired("journal")

	return cmd
}

func runTrace(opts *TraceOptions, token string, cmd *cobra.Command) error {
	store, err := journal.Open(opts.Journal)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			slog.Error("error closing journal", "error", closeErr)
		}
	}()

	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	ctx := cmd.Context()

	if token == "" {
		sessions, err := store.Sessions(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read sessions", err)
		}
		if opts.Format == "json" {
			return formatter.Success(sessions)
		}
		if len(sessions) == 0 {
			return formatter.Success("journal is empty")
		}
		return formatter.Success(strings.Join(sessions, "\n"))
	}

	markers, err := store.Markers(ctx, token)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read markers", err)
	}
	if len(markers) == 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("no markers for session %s", token))
	}

	if opts.Format == "json" {
		out := make([]traceMarker, len(markers))
		for i, m := range markers {
			out[i] = traceMarker{
				Seq:      m.Seq,
				Label:    m.Label,
				OffsetMs: m.Offset.Milliseconds(),
				Wall:     m.WallTime.Format("2006-01-02T15:04:05.000Z07:00"),
			}
		}
		return formatter.Success(out)
	}

	var b strings.Builder
	for _, m := range markers {
		fmt.Fprintf(&b, "%4d  %-18s  +%8.3fs  %s\n",
			m.Seq, m.Label, m.Offset.Seconds(), m.WallTime.Format("15:04:05.000"))
	}
	return formatter.Success(strings.TrimRight(b.String(), "\n"))
}
