package model_selection

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/scitune/pkg/errors"
)

func collect(p *FoldPlan) []Fold {
	return slices.Collect(p.All())
}

func TestKFoldEightyRowsFiveFolds(t *testing.T) {
	plan, err := KFold{NSplits: 5}.Plan(80, seeded(42))
	require.NoError(t, err)
	assert.Equal(t, 5, plan.Budget())

	folds := collect(plan)
	require.Len(t, folds, 5)

	count := make([]int, 80)
	for i, f := range folds {
		assert.Equal(t, i, f.Index)
		assert.Equal(t, 0, f.Repeat)
		assert.Len(t, f.TestIndices, 16)
		assert.Len(t, f.TrainIndices, 64)
		for _, idx := range f.TestIndices {
			count[idx]++
		}
		for _, idx := range f.TrainIndices {
			assert.NotContains(t, f.TestIndices, idx)
		}
	}
	for idx, c := range count {
		assert.Equal(t, 1, c, "index %d must be held out exactly once", idx)
	}
}

func TestKFoldUnevenSizes(t *testing.T) {
	plan, err := KFold{NSplits: 3}.Plan(10, seeded(1))
	require.NoError(t, err)
	var sizes []int
	for f := range plan.All() {
		sizes = append(sizes, len(f.TestIndices))
	}
	assert.Equal(t, []int{4, 3, 3}, sizes)
}

func TestKFoldInvalidCount(t *testing.T) {
	for _, k := range []int{-1, 0, 1, 11} {
		_, err := KFold{NSplits: k}.Plan(10, seeded(1))
		var foldErr *errors.InvalidFoldCountError
		require.True(t, errors.As(err, &foldErr), "k=%d", k)
		assert.Equal(t, k, foldErr.Folds)
		assert.Equal(t, 10, foldErr.Samples)
	}

	_, err := KFold{NSplits: 10}.Plan(10, seeded(1))
	assert.NoError(t, err, "leave-one-out is allowed")
}

func TestRepeatedKFold(t *testing.T) {
	plan, err := RepeatedKFold{NSplits: 4, NRepeats: 3}.Plan(20, seeded(9))
	require.NoError(t, err)
	assert.Equal(t, 12, plan.Budget())

	folds := collect(plan)
	require.Len(t, folds, 12)
	for r := 0; r < 3; r++ {
		count := make([]int, 20)
		for _, f := range folds[r*4 : (r+1)*4] {
			assert.Equal(t, r, f.Repeat)
			assert.Equal(t, f.Resample(4), r*4+f.Index)
			for _, idx := range f.TestIndices {
				count[idx]++
			}
		}
		for _, c := range count {
			assert.Equal(t, 1, c)
		}
	}
	assert.NotEqual(t, folds[0].TestIndices, folds[4].TestIndices, "repeats reshuffle")

	again := collect(plan)
	assert.Equal(t, folds, again, "iterating twice yields the same folds")

	_, err = RepeatedKFold{NSplits: 4, NRepeats: 0}.Plan(20, seeded(9))
	var vErr *errors.ValidationError
	assert.True(t, errors.As(err, &vErr))
}

func TestFoldPlanStopsEarly(t *testing.T) {
	plan, err := RepeatedKFold{NSplits: 5, NRepeats: 100}.Plan(50, seeded(2))
	require.NoError(t, err)
	n := 0
	for range plan.All() {
		n++
		if n == 7 {
			break
		}
	}
	assert.Equal(t, 7, n)
}

func TestAdaptiveKFoldValidation(t *testing.T) {
	tests := []struct {
		name string
		cfg  AdaptiveKFold
		ok   bool
	}{
		{"valid", AdaptiveKFold{NSplits: 5, NRepeats: 2, MinResamples: 3, Alpha: 0.05}, true},
		{"min resamples below two", AdaptiveKFold{NSplits: 5, NRepeats: 2, MinResamples: 1, Alpha: 0.05}, false},
		{"min resamples above budget", AdaptiveKFold{NSplits: 5, NRepeats: 2, MinResamples: 11, Alpha: 0.05}, false},
		{"alpha zero", AdaptiveKFold{NSplits: 5, NRepeats: 2, MinResamples: 3, Alpha: 0}, false},
		{"alpha one", AdaptiveKFold{NSplits: 5, NRepeats: 2, MinResamples: 3, Alpha: 1}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan, err := tt.cfg.Plan(40, seeded(5))
			if !tt.ok {
				var vErr *errors.ValidationError
				assert.True(t, errors.As(err, &vErr))
				return
			}
			require.NoError(t, err)
			require.NotNil(t, plan.Adaptive)
			assert.Equal(t, 3, plan.Adaptive.MinResamples)
			assert.Equal(t, 10, plan.Budget())
		})
	}
}

func TestAdaptiveKFoldMatchesRepeatedFolds(t *testing.T) {
	a, err := AdaptiveKFold{NSplits: 3, NRepeats: 2, MinResamples: 2, Alpha: 0.1}.Plan(12, seeded(8))
	require.NoError(t, err)
	r, err := RepeatedKFold{NSplits: 3, NRepeats: 2}.Plan(12, seeded(8))
	require.NoError(t, err)
	assert.Equal(t, collect(r), collect(a))
}
