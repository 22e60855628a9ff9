package schedule

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	mathrand "math/rand"
)

// maxAttempts bounds the rejection-sampling loop. With maxRun >= 2 the
// acceptance probability is high enough that exhausting the budget signals
// a broken parameter set, not bad luck.
const maxAttempts = 10000

// GenerationError reports that no valid arrangement was found within the
// retry budget. It names the attempted parameters so the operator can see
// what was asked for before any session resources were opened.
type GenerationError struct {
	TrialsPerClass int
	MaxRun         int
	Attempts       int
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("SCHEDULE_GENERATION_FAILED: no valid schedule after %d attempts (trialsPerClass=%d, maxRun=%d)",
		e.Attempts, e.TrialsPerClass, e.MaxRun)
}

// Generate produces a schedule of 2*trialsPerClass trials, half Focus and
// half Relaxation, with no run of identical classes longer than maxRun.
//
// Determinism contract: the mapping from the random source to the output
// is fixed so independent ports can be cross-checked. The initial array is
// [Focus x N, Relaxation x N]; it is permuted with Fisher-Yates from the
// high index down, drawing j = rng.Intn(i+1) for each i. A permutation that
// violates the run-length constraint is discarded whole and a fresh one is
// drawn from the SAME stream (the source is never re-seeded mid-generation).
// Two calls with sources seeded identically therefore return identical
// schedules.
func Generate(trialsPerClass, maxRun int, rng *mathrand.Rand) (Schedule, error) {
	if trialsPerClass < 1 {
		return Schedule{}, fmt.Errorf("trialsPerClass must be >= 1, got %d", trialsPerClass)
	}
	if maxRun < 1 {
		return Schedule{}, fmt.Errorf("maxRun must be >= 1, got %d", maxRun)
	}
	if rng == nil {
		return Schedule{}, fmt.Errorf("random source is required")
	}

	entries := make([]TrialClass, 0, 2*trialsPerClass)
	for i := 0; i < trialsPerClass; i++ {
		entries = append(entries, Focus)
	}
	for i := 0; i < trialsPerClass; i++ {
		entries = append(entries, Relaxation)
	}

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		// Fisher-Yates, high index down.
		for i := len(entries) - 1; i >= 1; i-- {
			j := rng.Intn(i + 1)
			entries[i], entries[j] = entries[j], entries[i]
		}
		if withinRunLimit(entries, maxRun) {
			return New(entries), nil
		}
	}

	return Schedule{}, &GenerationError{
		TrialsPerClass: trialsPerClass,
		MaxRun:         maxRun,
		Attempts:       maxAttempts,
	}
}

// withinRunLimit scans left to right tracking the current run length.
func withinRunLimit(entries []TrialClass, maxRun int) bool {
	run := 0
	for i, e := range entries {
		if i == 0 || e != entries[i-1] {
			run = 1
		} else {
			run++
			if run > maxRun {
				return false
			}
		}
	}
	return true
}

// NewSeededSource returns a random source for reproducible generation.
// The same seed always yields the same permutation stream.
func NewSeededSource(seed int64) *mathrand.Rand {
	return mathrand.New(mathrand.NewSource(seed))
}

// NewEntropySource returns a source seeded from process entropy.
// Schedules drawn from it are not reproducible.
func NewEntropySource() *mathrand.Rand {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		// crypto/rand never fails on supported platforms; if it does,
		// generation cannot proceed safely.
		panic(fmt.Sprintf("entropy source unavailable: %v", err))
	}
	seed := int64(binary.LittleEndian.Uint64(b[:]))
	return mathrand.New(mathrand.NewSource(seed))
}
