package timeline

import (
	"errors"
	"fmt"
	"time"
)

// ClockRegressionError reports that the monotonic source handed the engine
// a timestamp earlier than the last one it observed. This indicates a
// broken clock source and is fatal: recomputing negative elapsed time
// silently would corrupt every phase boundary after it.
type ClockRegressionError struct {
	Last     time.Time
	Observed time.Time
}

func (e *ClockRegressionError) Error() string {
	return fmt.Sprintf("CLOCK_REGRESSION_DETECTED: now %v is before last observed %v (regressed by %v)",
		e.Observed, e.Last, e.Last.Sub(e.Observed))
}

// IsClockRegression reports whether err is a clock regression.
// Uses errors.As to handle wrapped errors.
func IsClockRegression(err error) bool {
	var ce *ClockRegressionError
	return errors.As(err, &ce)
}

// ErrNotStarted is returned by Tick when Start has not been called.
var ErrNotStarted = errors.New("timeline: session not started")
