package ensemble

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/scitune/pkg/errors"
)

// friedmanLike returns y = 10·x0 + 5·sin(3·x1) with a pure-noise third feature.
func friedmanLike(n int, seed uint64) (*mat.Dense, *mat.Dense) {
	rng := rand.New(rand.NewPCG(seed, seed))
	X := mat.NewDense(n, 3, nil)
	y := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		x0, x1, x2 := rng.Float64(), rng.Float64(), rng.Float64()
		X.SetRow(i, []float64{x0, x1, x2})
		y.Set(i, 0, 10*x0+5*math.Sin(3*x1))
	}
	return X, y
}

func rmse(t *testing.T, y, pred mat.Matrix) float64 {
	t.Helper()
	r, _ := y.Dims()
	var s float64
	for i := 0; i < r; i++ {
		d := y.At(i, 0) - pred.At(i, 0)
		s += d * d
	}
	return math.Sqrt(s / float64(r))
}

func TestRandomForestFitsSignal(t *testing.T) {
	X, y := friedmanLike(200, 1)
	Xt, yt := friedmanLike(100, 2)

	rf := NewRandomForestRegressor(WithForestEstimators(30), WithForestSeed(7))
	require.NoError(t, rf.Fit(X, y))
	assert.Equal(t, 30, rf.NumTrees())

	pred, err := rf.Predict(Xt)
	require.NoError(t, err)
	assert.Less(t, rmse(t, yt, pred), 2.5, "baseline std is about 3.4")

	imp, err := rf.FeatureImportances()
	require.NoError(t, err)
	assert.InDelta(t, 1.0, imp[0]+imp[1]+imp[2], 1e-9)
	assert.Greater(t, imp[0], imp[2], "signal feature should outrank noise")
}

func TestRandomForestIsDeterministicForSeed(t *testing.T) {
	X, y := friedmanLike(80, 3)
	a := NewRandomForestRegressor(WithForestEstimators(10), WithForestSeed(42))
	b := NewRandomForestRegressor(WithForestEstimators(10), WithForestSeed(42))
	require.NoError(t, a.Fit(X, y))
	require.NoError(t, b.Fit(X, y))

	pa, err := a.Predict(X)
	require.NoError(t, err)
	pb, err := b.Predict(X)
	require.NoError(t, err)
	assert.True(t, mat.Equal(pa, pb))
}

func TestRandomForestMaxFeaturesDefault(t *testing.T) {
	rf := NewRandomForestRegressor()
	assert.Equal(t, 1, rf.effectiveMaxFeatures(2))
	assert.Equal(t, 1, rf.effectiveMaxFeatures(3))
	assert.Equal(t, 3, rf.effectiveMaxFeatures(10))
	assert.Equal(t, 4, NewRandomForestRegressor(WithForestMaxFeatures(9)).effectiveMaxFeatures(4))
}

func TestGradientBoostingFitsSignal(t *testing.T) {
	X, y := friedmanLike(200, 4)
	Xt, yt := friedmanLike(100, 5)

	gb := NewGradientBoostingRegressor(WithBoostingEstimators(150), WithLearningRate(0.1), WithBoostingMaxDepth(3))
	require.NoError(t, gb.Fit(X, y))
	assert.Equal(t, 150, gb.NumTrees())

	pred, err := gb.Predict(Xt)
	require.NoError(t, err)
	assert.Less(t, rmse(t, yt, pred), 1.5)

	imp, err := gb.FeatureImportances()
	require.NoError(t, err)
	assert.Greater(t, imp[0], imp[2])
}

func TestGradientBoostingMoreRoundsReduceTrainingError(t *testing.T) {
	X, y := friedmanLike(100, 6)
	few := NewGradientBoostingRegressor(WithBoostingEstimators(5))
	many := NewGradientBoostingRegressor(WithBoostingEstimators(100))
	require.NoError(t, few.Fit(X, y))
	require.NoError(t, many.Fit(X, y))

	pf, _ := few.Predict(X)
	pm, _ := many.Predict(X)
	assert.Less(t, rmse(t, y, pm), rmse(t, y, pf))
}

func TestGradientBoostingSubsampleIsSeeded(t *testing.T) {
	X, y := friedmanLike(60, 7)
	a := NewGradientBoostingRegressor(WithBoostingEstimators(20), WithSubsample(0.5), WithBoostingSeed(9))
	b := NewGradientBoostingRegressor(WithBoostingEstimators(20), WithSubsample(0.5), WithBoostingSeed(9))
	require.NoError(t, a.Fit(X, y))
	require.NoError(t, b.Fit(X, y))
	pa, _ := a.Predict(X)
	pb, _ := b.Predict(X)
	assert.True(t, mat.Equal(pa, pb))
}

func TestEnsembleValidation(t *testing.T) {
	X, y := friedmanLike(10, 8)
	tests := []struct {
		name string
		fit  func() error
	}{
		{"forest zero estimators", func() error { return NewRandomForestRegressor(WithForestEstimators(0)).Fit(X, y) }},
		{"forest negative depth", func() error { return NewRandomForestRegressor(WithForestMaxDepth(-1)).Fit(X, y) }},
		{"boosting zero learning rate", func() error { return NewGradientBoostingRegressor(WithLearningRate(0)).Fit(X, y) }},
		{"boosting subsample above one", func() error { return NewGradientBoostingRegressor(WithSubsample(1.5)).Fit(X, y) }},
		{"boosting negative lambda", func() error { return NewGradientBoostingRegressor(WithLambda(-1)).Fit(X, y) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var vErr *errors.ValidationError
			assert.True(t, errors.As(tt.fit(), &vErr))
		})
	}
}

func TestEnsembleNotFitted(t *testing.T) {
	var nf *errors.NotFittedError
	_, err := NewRandomForestRegressor().Predict(mat.NewDense(1, 1, nil))
	assert.True(t, errors.As(err, &nf))
	_, err = NewGradientBoostingRegressor().FeatureImportances()
	assert.True(t, errors.As(err, &nf))
}
