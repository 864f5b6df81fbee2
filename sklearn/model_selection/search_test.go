package model_selection

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/scitune/core/model"
	"github.com/YuminosukeSato/scitune/core/parallel"
	"github.com/YuminosukeSato/scitune/dataset"
	"github.com/YuminosukeSato/scitune/metrics"
	"github.com/YuminosukeSato/scitune/pkg/errors"
	"github.com/YuminosukeSato/scitune/pkg/log"
	"github.com/YuminosukeSato/scitune/sklearn/estimators"
)

// slope predicts param·x0 and ignores its training data. param 0 fails in
// Fit and param 99 panics.
type slope struct{ k float64 }

func (s *slope) Fit(X, _ mat.Matrix) error {
	switch s.k {
	case 0:
		return errors.NewValueError("slope.Fit", "slope must not be zero")
	case 99:
		panic("slope exploded")
	}
	return nil
}

func (s *slope) Predict(X mat.Matrix) (mat.Matrix, error) {
	n, _ := X.Dims()
	out := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		out.Set(i, 0, s.k*X.At(i, 0))
	}
	return out, nil
}

var slopeFamily = model.FamilyFunc{
	FamilyName: "slope",
	Params:     model.Params{"param": 1},
	Build: func(p model.Params, _ uint64) (model.Regressor, error) {
		return &slope{k: p["param"]}, nil
	},
}

// flaky wraps slope and, when enabled, fails on training folds with an
// even number of rows.
type flaky struct {
	slope
	on bool
}

func (f *flaky) Fit(X, y mat.Matrix) error {
	if n, _ := X.Dims(); f.on && n%2 == 0 {
		return errors.NewValueError("flaky.Fit", "even training fold")
	}
	return f.slope.Fit(X, y)
}

var flakyFamily = model.FamilyFunc{
	FamilyName: "flaky",
	Params:     model.Params{"param": 1, "flaky": 0},
	Build: func(p model.Params, _ uint64) (model.Regressor, error) {
		return &flaky{slope: slope{k: p["param"]}, on: p["flaky"] == 1}, nil
	},
}

// cancelling cancels the search context from inside Fit.
type cancelling struct {
	slope
	cancel context.CancelFunc
}

func (c *cancelling) Fit(X, y mat.Matrix) error {
	c.cancel()
	return c.slope.Fit(X, y)
}

// lineData returns y = 2·x0 + noise·ε over 2 features.
func lineData(n int, noise float64, seed uint64) (*mat.Dense, *mat.VecDense) {
	rng := seeded(seed)
	X := mat.NewDense(n, 2, nil)
	y := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		x := rng.Float64()*10 - 5
		X.Set(i, 0, x)
		X.Set(i, 1, rng.NormFloat64())
		y.SetVec(i, 2*x+noise*rng.NormFloat64())
	}
	return X, y
}

func candidates(values ...float64) []model.Params {
	out := make([]model.Params, len(values))
	for i, v := range values {
		out[i] = model.Params{"param": v}
	}
	return out
}

func TestSearchSelectsLowestError(t *testing.T) {
	X, y := lineData(80, 0.1, 1)
	logger, _ := log.NewTestLogger(log.LevelDebug)

	s := &SearchCV{
		Family:     slopeFamily,
		Candidates: candidates(1, 2, 3),
		Resampler:  KFold{NSplits: 5},
		Pool:       parallel.NewPool(4),
		Seed:       42,
		Logger:     logger,
	}
	res, err := s.Fit(context.Background(), X, y)
	require.NoError(t, err)

	assert.Equal(t, 1, res.BestIndex)
	assert.Equal(t, model.Params{"param": 2}, res.BestParams)
	assert.Equal(t, 5, res.Budget)
	assert.Equal(t, 15, res.Tasks)
	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, "slope", res.Family)

	best := res.Best()
	assert.Equal(t, 1, best.Rank)
	assert.Equal(t, 5, best.Successes)
	assert.Less(t, best.Mean[0], 0.2)
	for _, c := range res.Results {
		require.Len(t, c.Mean, 3, "rmse, mae, r2")
		assert.False(t, c.Eliminated)
	}
	assert.ElementsMatch(t, []int{2, 3}, []int{res.Results[0].Rank, res.Results[2].Rank})

	assert.True(t, logger.ContainsMessage("Search started"))
	assert.True(t, logger.ContainsMessage("Search finished"))
	assert.True(t, logger.ContainsField(log.FamilyKey, "slope"))
	assert.True(t, logger.ContainsField(log.RunIDKey, res.RunID))

	pred, err := res.Predict(X)
	require.NoError(t, err)
	assert.InDelta(t, 2*X.At(0, 0), pred.At(0, 0), 1e-12)

	scores, err := res.Evaluate(X, y)
	require.NoError(t, err)
	assert.Greater(t, scores["r2"], 0.99)
	primary, err := res.Score(X, y)
	require.NoError(t, err)
	assert.Equal(t, scores["rmse"], primary)
}

func TestSearchIsReproducible(t *testing.T) {
	X, y := lineData(60, 1.5, 3)
	run := func() *SearchResult {
		s := &SearchCV{
			Family:     estimators.RandomForestFamily(),
			Candidates: []model.Params{{"n_estimators": 5, "max_depth": 2}, {"n_estimators": 5, "max_depth": 4}},
			Resampler:  RepeatedKFold{NSplits: 3, NRepeats: 2},
			Pool:       parallel.NewPool(3),
			Seed:       7,
			Logger:     log.NewNopLogger(),
		}
		res, err := s.Fit(context.Background(), X, y)
		require.NoError(t, err)
		return res
	}
	a, b := run(), run()
	assert.Equal(t, a.BestIndex, b.BestIndex)
	assert.Equal(t, a.BestParams, b.BestParams)
	for c := range a.Results {
		assert.Equal(t, a.Results[c].Scores, b.Results[c].Scores)
	}
}

func TestSearchExcludesFailingCandidates(t *testing.T) {
	X, y := lineData(40, 0.1, 5)
	logger, _ := log.NewTestLogger(log.LevelWarn)

	s := &SearchCV{
		Family:     slopeFamily,
		Candidates: candidates(0, 99, 3),
		Resampler:  KFold{NSplits: 4},
		Pool:       parallel.NewPool(2),
		Seed:       1,
		Logger:     logger,
	}
	res, err := s.Fit(context.Background(), X, y)
	require.NoError(t, err)

	assert.Equal(t, 2, res.BestIndex, "only the working candidate can win")
	assert.True(t, res.Results[0].Failed())
	assert.True(t, res.Results[1].Failed())
	assert.True(t, math.IsNaN(res.Results[0].Mean[0]))
	assert.Equal(t, 1, res.Results[2].Rank)
	assert.Greater(t, res.Results[0].Rank, 1)
	assert.Greater(t, res.Results[1].Rank, 1)
	assert.Equal(t, 8, logger.CountMessages("Task failed"))
}

func TestSearchPartialFailuresStillCompete(t *testing.T) {
	// 41 rows in 4 folds: the first held-out group has 11 rows, so exactly
	// one training fold has an even row count.
	X, y := lineData(41, 0.1, 5)
	logger, _ := log.NewTestLogger(log.LevelWarn)

	s := &SearchCV{
		Family: flakyFamily,
		Candidates: []model.Params{
			{"param": 1, "flaky": 1},
			{"param": 2, "flaky": 1},
			{"param": 5, "flaky": 1},
		},
		Resampler: KFold{NSplits: 4},
		Pool:      parallel.NewPool(3),
		Seed:      1,
		Logger:    logger,
	}
	res, err := s.Fit(context.Background(), X, y)
	require.NoError(t, err)

	failedSlot := -1
	for c, r := range res.Results {
		assert.False(t, r.Failed())
		assert.Equal(t, 3, r.Successes, "one of %d resamples fails", res.Budget)

		var ok []float64
		for i, v := range r.Scores[0] {
			if math.IsNaN(v) {
				if failedSlot < 0 {
					failedSlot = i
				}
				assert.Equal(t, failedSlot, i, "candidate %d fails on the same fold", c)
				continue
			}
			ok = append(ok, v)
		}
		require.Len(t, ok, 3)
		mean, std := stat.MeanStdDev(ok, nil)
		assert.InDelta(t, mean, r.Mean[0], 1e-12)
		assert.InDelta(t, std, r.Std[0], 1e-12)
	}
	assert.Equal(t, 1, res.BestIndex)
	assert.Equal(t, []int{2, 1, 3}, []int{res.Results[0].Rank, res.Results[1].Rank, res.Results[2].Rank})
	assert.Equal(t, 3, logger.CountMessages("Task failed"))
}

func TestSearchAdaptivePairsOnlySuccessfulResamples(t *testing.T) {
	// 101 rows in 5 folds: the first training fold of each repeat has 80 rows.
	X, y := lineData(101, 0.5, 9)
	s := &SearchCV{
		Family: flakyFamily,
		Candidates: []model.Params{
			{"param": 2},
			{"param": 10, "flaky": 1},
		},
		Resampler: AdaptiveKFold{NSplits: 5, NRepeats: 2, MinResamples: 4, Alpha: 0.05},
		Pool:      parallel.NewPool(2),
		Seed:      11,
		Logger:    log.NewNopLogger(),
	}
	res, err := s.Fit(context.Background(), X, y)
	require.NoError(t, err)

	worse := res.Results[1]
	assert.True(t, worse.Eliminated)
	assert.Equal(t, 0, worse.EliminatedAt, "NaN slots must not poison the paired test")
	assert.False(t, worse.Failed())
	assert.Equal(t, 3, worse.Successes)
	assert.True(t, math.IsNaN(worse.Scores[0][0]))
	assert.False(t, math.IsNaN(res.Results[0].Scores[0][0]))
	assert.False(t, math.IsNaN(worse.Mean[0]))

	assert.Equal(t, 0, res.BestIndex)
	assert.Equal(t, 4, res.Results[0].Successes, "search stops once one candidate is left")
	assert.Equal(t, 8, res.Tasks)
}

func TestSearchAllCandidatesFailed(t *testing.T) {
	X, y := lineData(20, 0.1, 5)
	s := &SearchCV{
		Family:     slopeFamily,
		Candidates: candidates(0, 99),
		Resampler:  KFold{NSplits: 4},
		Pool:       parallel.NewPool(2),
		Logger:     log.NewNopLogger(),
	}
	res, err := s.Fit(context.Background(), X, y)
	require.Error(t, err)
	assert.Nil(t, res)

	var allErr *errors.AllCandidatesFailedError
	require.True(t, errors.As(err, &allErr))
	assert.Equal(t, "slope", allErr.Family)
	assert.Equal(t, 2, allErr.Candidates)

	var panicErr *errors.PanicError
	assert.True(t, errors.As(err, &panicErr), "panics are kept in the combined error")
	var valueErr *errors.ValueError
	assert.True(t, errors.As(err, &valueErr))
}

func TestSearchAdaptiveEliminatesWorseCandidates(t *testing.T) {
	X, y := lineData(100, 0.5, 9)
	logger, _ := log.NewTestLogger(log.LevelDebug)

	s := &SearchCV{
		Family:     slopeFamily,
		Candidates: candidates(2, 8, 10),
		Resampler:  AdaptiveKFold{NSplits: 5, NRepeats: 2, MinResamples: 3, Alpha: 0.05},
		Pool:       parallel.NewPool(4),
		Seed:       11,
		Logger:     logger,
	}
	res, err := s.Fit(context.Background(), X, y)
	require.NoError(t, err)

	assert.Equal(t, 0, res.BestIndex)
	assert.Less(t, res.Tasks, 3*res.Budget, "adaptive search must skip work")
	assert.True(t, res.Results[1].Eliminated)
	assert.True(t, res.Results[2].Eliminated)
	assert.False(t, res.Results[0].Eliminated)
	assert.True(t, logger.ContainsMessage("Candidate eliminated"))
	assert.Equal(t, 1, res.Results[0].Rank)
}

func TestSearchAdaptiveCompleteRunsFullBudgetForSurvivor(t *testing.T) {
	X, y := lineData(100, 0.5, 9)
	s := &SearchCV{
		Family:     slopeFamily,
		Candidates: candidates(2, 10),
		Resampler:  AdaptiveKFold{NSplits: 5, NRepeats: 2, MinResamples: 3, Alpha: 0.05, Complete: true},
		Pool:       parallel.NewPool(2),
		Seed:       11,
		Logger:     log.NewNopLogger(),
	}
	res, err := s.Fit(context.Background(), X, y)
	require.NoError(t, err)
	assert.Equal(t, 10, res.Results[0].Successes)
	assert.Less(t, res.Results[1].Successes, 10)
	assert.Less(t, res.Tasks, 2*res.Budget)
}

func TestSearchGreaterIsBetterPrimary(t *testing.T) {
	X, y := lineData(50, 0.1, 2)
	s := &SearchCV{
		Family:     slopeFamily,
		Candidates: candidates(-2, 2, 5),
		Metrics:    []metrics.Metric{metrics.R2Metric, metrics.RMSEMetric},
		Resampler:  KFold{NSplits: 5},
		Logger:     log.NewNopLogger(),
	}
	res, err := s.Fit(context.Background(), X, y)
	require.NoError(t, err)
	assert.Equal(t, 1, res.BestIndex)
	assert.Greater(t, res.Best().Mean[0], 0.99)
}

func TestSearchWithRealFamily(t *testing.T) {
	ds, err := dataset.MakeRegression(120, 6, 2, 0.5, seeded(4))
	require.NoError(t, err)
	grid, err := ParameterGrid(map[string][]float64{"alpha": {0.01, 10}})
	require.NoError(t, err)

	s := &SearchCV{
		Family:     estimators.LassoFamily(),
		Candidates: grid,
		Resampler:  KFold{NSplits: 4},
		Seed:       3,
		Logger:     log.NewNopLogger(),
	}
	res, err := s.Fit(context.Background(), ds.X, ds.Y)
	require.NoError(t, err)
	assert.Equal(t, 0.01, res.BestParams["alpha"])
	_, ok := res.BestEstimator.(model.ParameterGetter)
	assert.True(t, ok)
}

func TestSearchValidation(t *testing.T) {
	X, y := lineData(10, 0, 1)
	ctx := context.Background()

	_, err := (&SearchCV{Family: slopeFamily, Logger: log.NewNopLogger()}).Fit(ctx, X, y)
	var gErr *errors.EmptyGridError
	assert.True(t, errors.As(err, &gErr))

	_, err = (&SearchCV{Candidates: candidates(1), Logger: log.NewNopLogger()}).Fit(ctx, X, y)
	var vErr *errors.ValidationError
	assert.True(t, errors.As(err, &vErr))

	_, err = (&SearchCV{Family: slopeFamily, Candidates: candidates(1), Resampler: KFold{NSplits: 11}, Logger: log.NewNopLogger()}).Fit(ctx, X, y)
	var fErr *errors.InvalidFoldCountError
	assert.True(t, errors.As(err, &fErr))

	_, err = (&SearchCV{Family: slopeFamily, Candidates: candidates(1), Logger: log.NewNopLogger()}).Fit(ctx, X, mat.NewVecDense(9, nil))
	var dErr *errors.DimensionError
	assert.True(t, errors.As(err, &dErr))
}

func TestSearchCancelled(t *testing.T) {
	X, y := lineData(20, 0, 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := (&SearchCV{Family: slopeFamily, Candidates: candidates(1, 2), Logger: log.NewNopLogger()}).Fit(ctx, X, y)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSearchCancelledMidRoundCountsStartedTasks(t *testing.T) {
	X, y := lineData(20, 0, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	logger, _ := log.NewTestLogger(log.LevelWarn)

	family := model.FamilyFunc{
		FamilyName: "cancelling",
		Params:     model.Params{"param": 1},
		Build: func(p model.Params, _ uint64) (model.Regressor, error) {
			return &cancelling{slope: slope{k: p["param"]}, cancel: cancel}, nil
		},
	}
	s := &SearchCV{
		Family:     family,
		Candidates: candidates(1),
		Resampler:  KFold{NSplits: 5},
		Pool:       parallel.NewPool(1),
		Logger:     logger,
	}
	_, err := s.Fit(ctx, X, y)
	assert.ErrorIs(t, err, context.Canceled)

	entries, err := logger.GetLogEntries()
	require.NoError(t, err)
	var started float64
	for _, e := range entries {
		if e["message"] == "Search cancelled" {
			started = e["tune.tasks"].(float64)
		}
	}
	// one task is in flight when the first cancels; the rest never start
	assert.GreaterOrEqual(t, started, 1.0)
	assert.LessOrEqual(t, started, 2.0)
}

func TestPairedPValue(t *testing.T) {
	assert.Equal(t, 1.0, pairedPValue([]float64{5}), "one difference never eliminates")
	assert.Equal(t, 0.0, pairedPValue([]float64{1, 1, 1}), "constant positive gap")
	assert.Equal(t, 1.0, pairedPValue([]float64{0, 0, 0}))
	assert.Equal(t, 1.0, pairedPValue([]float64{-1, -1}))
	assert.Less(t, pairedPValue([]float64{5, 5.5, 4.8, 5.2}), 0.001)
	assert.Greater(t, pairedPValue([]float64{-1, 1, -0.5, 0.4}), 0.3)
}
