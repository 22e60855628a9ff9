package schedule

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate_BalancedAndBounded(t *testing.T) {
	// Across a spread of seeds: exact length, exact class balance, and
	// no run longer than the limit.
	for seed := int64(0); seed < 25; seed++ {
		rng := NewSeededSource(seed)
		s, err := Generate(50, MaxRunLength, rng)
		require.NoError(t, err, "seed %d", seed)

		assert.Equal(t, 100, s.Len(), "seed %d", seed)
		assert.Equal(t, 50, s.CountOf(Focus), "seed %d", seed)
		assert.Equal(t, 50, s.CountOf(Relaxation), "seed %d", seed)
		assert.LessOrEqual(t, s.LongestRun(), MaxRunLength, "seed %d", seed)
	}
}

func TestGenerate_Deterministic(t *testing.T) {
	// Same seed, two independent calls, identical schedules.
	a, err := Generate(50, MaxRunLength, NewSeededSource(42))
	require.NoError(t, err)
	b, err := Generate(50, MaxRunLength, NewSeededSource(42))
	require.NoError(t, err)

	assert.Equal(t, a.Classes(), b.Classes(), "same seed must reproduce the schedule byte for byte")
}

func TestGenerate_SeedsDiffer(t *testing.T) {
	a, err := Generate(50, MaxRunLength, NewSeededSource(1))
	require.NoError(t, err)
	b, err := Generate(50, MaxRunLength, NewSeededSource(2))
	require.NoError(t, err)

	assert.NotEqual(t, a.Classes(), b.Classes(), "distinct seeds should not collide on 100 trials")
}

func TestGenerate_SingleTrialPerClass(t *testing.T) {
	// trialsPerClass=1: any permutation is trivially valid (max run 2
	// needs only maxRun >= 2 ... here the limit is 5), so generation must
	// terminate promptly with a valid 2-entry schedule.
	s, err := Generate(1, MaxRunLength, NewSeededSource(7))
	require.NoError(t, err)

	assert.Equal(t, 2, s.Len())
	assert.Equal(t, 1, s.CountOf(Focus))
	assert.Equal(t, 1, s.CountOf(Relaxation))
}

func TestGenerate_RetryBudgetExhausted(t *testing.T) {
	// maxRun=1 demands strict alternation; the chance a uniform
	// permutation of 40 trials alternates is ~1e-11 per attempt, so the
	// 10000-attempt budget is exhausted for all practical purposes.
	_, err := Generate(20, 1, NewSeededSource(3))
	require.Error(t, err)

	var genErr *GenerationError
	require.True(t, errors.As(err, &genErr), "want GenerationError, got %T", err)
	assert.Equal(t, 20, genErr.TrialsPerClass)
	assert.Equal(t, 1, genErr.MaxRun)
	assert.Equal(t, maxAttempts, genErr.Attempts)
	assert.Contains(t, genErr.Error(), "SCHEDULE_GENERATION_FAILED")
}

func TestGenerate_ParameterValidation(t *testing.T) {
	_, err := Generate(0, MaxRunLength, NewSeededSource(0))
	assert.Error(t, err, "trialsPerClass < 1 must be rejected")

	_, err = Generate(10, 0, NewSeededSource(0))
	assert.Error(t, err, "maxRun < 1 must be rejected")

	_, err = Generate(10, MaxRunLength, nil)
	assert.Error(t, err, "nil random source must be rejected")
}

func TestGenerate_RejectionKeepsStream(t *testing.T) {
	// A tight run limit forces rejections. Generation must still be
	// deterministic: rejected permutations are redrawn from the same
	// stream, never re-seeded.
	a, err := Generate(10, 2, NewSeededSource(99))
	require.NoError(t, err)
	b, err := Generate(10, 2, NewSeededSource(99))
	require.NoError(t, err)

	assert.Equal(t, a.Classes(), b.Classes())
	assert.LessOrEqual(t, a.LongestRun(), 2)
}

func TestNewEntropySource_Varies(t *testing.T) {
	// Not a reproducibility guarantee - just a sanity check that two
	// entropy sources do not start identically.
	a := NewEntropySource()
	b := NewEntropySource()

	same := true
	for i := 0; i < 8; i++ {
		if a.Int63() != b.Int63() {
			same = false
			break
		}
	}
	assert.False(t, same, "independent entropy sources should diverge")
}
