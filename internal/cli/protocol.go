package cli

import (
	"fmt"
	"strings"

	"github.com/roach88/mindmark/internal/protocol"
)

// resolveProtocol loads the protocol file when one is given, or starts
// from the standard defaults. A --seed flag overrides any file seed.
func resolveProtocol(path string, seed int64, seedSet bool) (*protocol.Protocol, error) {
	p := protocol.Default()
	if path != "" {
		loaded, errs := protocol.Load(path)
		if len(errs) > 0 {
			return nil, WrapExitError(ExitFailure, "invalid protocol", joinErrors(errs))
		}
		p = *loaded
	}
	if seedSet {
		p.Seed = &seed
	}
	return &p, nil
}

// joinErrors collapses a collect-all error list into one error whose
// message keeps each line intact.
func joinErrors(errs []error) error {
	if len(errs) == 1 {
		return errs[0]
	}
	lines := make([]string, len(errs))
	for i, err := range errs {
		lines[i] = err.Error()
	}
	return fmt.Errorf("%d problems:\n  %s", len(errs), strings.Join(lines, "\n  "))
}
