package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/mindmark/internal/protocol"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
}

// validateData is the JSON payload for a valid protocol.
type validateData struct {
	Protocol        string  `json:"protocol"`
	TrialsPerClass  int     `json:"trials_per_class"`
	ActiveSeconds   float64 `json:"active_seconds"`
	NominalDuration string  `json:"nominal_duration"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <protocol.cue>",
		Short: "Validate a protocol file",
		Long: `Validate a protocol CUE file, reporting every problem at once.

Exit codes: 0 valid, 1 invalid, 2 file not readable.

Example:
  mindmark validate protocols/standard.cue`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *ValidateOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}

	p, errs := protocol.Load(path)
	if len(errs) > 0 {
		details := make([]string, len(errs))
		for i, err := range errs {
			details[i] = err.Error()
		}
		code, message := classifyLoadErrors(errs)
		if err := formatter.Error(code, message, details); err != nil {
			return err
		}
		if code == protocol.ErrCodeNotFound {
			return NewExitError(ExitCommandError, message)
		}
		return NewExitError(ExitFailure, message)
	}

	if opts.Format == "json" {
		return formatter.Success(validateData{
			Protocol:        p.Name,
			TrialsPerClass:  p.TrialsPerClass,
			ActiveSeconds:   p.ActiveDuration.Seconds(),
			NominalDuration: p.NominalDuration().String(),
		})
	}
	return formatter.Success(fmt.Sprintf("%s: valid (%d trials per class, nominal duration %v)",
		p.Name, p.TrialsPerClass, p.NominalDuration()))
}

// classifyLoadErrors picks the representative code and message for a
// collect-all error list: file-level problems win over field problems.
func classifyLoadErrors(errs []error) (code, message string) {
	code = protocol.ErrCodeGeneric
	for _, err := range errs {
		var le *protocol.LoadError
		if errors.As(err, &le) {
			if le.Code == protocol.ErrCodeNotFound {
				return le.Code, le.Message
			}
			code = le.Code
		}
	}
	return code, fmt.Sprintf("protocol is invalid (%d problems)", len(errs))
}
