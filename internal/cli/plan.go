package cli

import (
	"fmt"
	"math/rand"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/mindmark/internal/schedule"
)

// PlanOptions holds flags for the plan command.
type PlanOptions struct {
	*RootOptions
	Seed int64
}

// planData is the JSON payload for plan output.
type planData struct {
	Protocol       string   `json:"protocol"`
	Seed           *int64   `json:"seed,omitempty"`
	TrialsPerClass int      `json:"trials_per_class"`
	MaxRun         int      `json:"max_run"`
	LongestRun     int      `json:"longest_run"`
	Classes        []string `json:"classes"`
}

// NewPlanCommand creates the plan command.
func NewPlanCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PlanOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "plan [protocol.cue]",
		Short: "Generate and print the trial schedule",
		Long: `Generate the randomized trial schedule a session would use and print it
without running anything. With an explicit seed the output is reproducible,
which makes plan the tool for cross-checking schedules between sites.

Example:
  mindmark plan --seed 42
  mindmark plan protocols/standard.cue --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			return runPlan(opts, path, cmd)
		},
	}

	cmd.Flags().Int64Var(&opts.Seed, "seed", 0, "schedule seed (overrides the protocol file)")

	return cmd
}

func runPlan(opts *PlanOptions, path string, cmd *cobra.Command) error {
	p, err := resolveProtocol(path, opts.Seed, cmd.Flags().Changed("seed"))
	if err != nil {
		return err
	}

	var rng *rand.Rand
	if p.Seed != nil {
		rng = schedule.NewSeededSource(*p.Seed)
	} else {
		rng = schedule.NewEntropySource()
	}

	sched, err := schedule.Generate(p.TrialsPerClass, schedule.MaxRunLength, rng)
	if err != nil {
		return WrapExitError(ExitFailure, "schedule generation failed", err)
	}
	if err := sched.Validate(p.TrialsPerClass, schedule.MaxRunLength); err != nil {
		return WrapExitError(ExitFailure, "generated schedule failed validation", err)
	}

	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
	if opts.Format == "json" {
		classes := make([]string, sched.Len())
		for i := 0; i < sched.Len(); i++ {
			classes[i] = sched.At(i).String()
		}
		return formatter.Success(planData{
			Protocol:       p.Name,
			Seed:           p.Seed,
			TrialsPerClass: p.TrialsPerClass,
			MaxRun:         schedule.MaxRunLength,
			LongestRun:     sched.LongestRun(),
			Classes:        classes,
		})
	}

	return formatter.Success(formatPlanText(p.Name, p.Seed, sched))
}

// formatPlanText renders the schedule as rows of F/R glyphs, ten per row.
func formatPlanText(name string, seed *int64, sched schedule.Schedule) string {
	var b strings.Builder
	fmt.Fprintf(&b, "protocol: %s\n", name)
	if seed != nil {
		fmt.Fprintf(&b, "seed:     %d\n", *seed)
	} else {
		fmt.Fprintf(&b, "seed:     (entropy - not reproducible)\n")
	}
	fmt.Fprintf(&b, "trials:   %d (%d focus / %d relaxation), longest run %d\n\n",
		sched.Len(), sched.CountOf(schedule.Focus), sched.CountOf(schedule.Relaxation), sched.LongestRun())

	for i := 0; i < sched.Len(); i++ {
		if i > 0 && i%10 == 0 {
			b.WriteByte('\n')
		}
		if sched.At(i) == schedule.Focus {
			b.WriteByte('F')
		} else {
			b.WriteByte('R')
		}
	}
	return b.String()
}
