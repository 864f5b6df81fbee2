package estimators

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/scitune/core/model"
	"github.com/YuminosukeSato/scitune/pkg/errors"
)

func TestNewRegistryNames(t *testing.T) {
	r := NewRegistry()
	assert.Equal(t, []string{DecisionTree, GradientBoosting, Lasso, LinearRegression, RandomForest}, r.Names())
}

func TestFamiliesBuildAndFit(t *testing.T) {
	X := mat.NewDense(12, 2, nil)
	y := mat.NewDense(12, 1, nil)
	for i := 0; i < 12; i++ {
		X.Set(i, 0, float64(i))
		X.Set(i, 1, float64(i%3))
		y.Set(i, 0, 2*float64(i)+float64(i%3))
	}

	small := map[string]model.Params{
		LinearRegression: {},
		Lasso:            {"alpha": 0.01},
		DecisionTree:     {"max_depth": 3},
		RandomForest:     {"n_estimators": 5},
		GradientBoosting: {"n_estimators": 10},
	}

	r := NewRegistry()
	for _, name := range r.Names() {
		t.Run(name, func(t *testing.T) {
			f, err := r.Get(name)
			require.NoError(t, err)

			reg, err := f.New(small[name], 1)
			require.NoError(t, err)
			require.NoError(t, reg.Fit(X, y))

			pred, err := reg.Predict(X)
			require.NoError(t, err)
			rows, cols := pred.Dims()
			assert.Equal(t, 12, rows)
			assert.Equal(t, 1, cols)

			if pg, ok := reg.(model.ParameterGetter); ok {
				for k, v := range small[name] {
					assert.Equal(t, v, pg.GetParams()[k], k)
				}
			}
		})
	}
}

func TestFamilyRejectsUnknownParameter(t *testing.T) {
	_, err := LassoFamily().New(model.Params{"lambda": 1}, 0)
	var vErr *errors.ValidationError
	require.True(t, errors.As(err, &vErr))
	assert.Equal(t, "lambda", vErr.ParamName)
}

func TestFamilyDefaults(t *testing.T) {
	d := RandomForestFamily().Defaults()
	assert.Equal(t, 100.0, d["n_estimators"])
	assert.Equal(t, 0.0, d["max_features"])
	assert.Equal(t, 0.1, GradientBoostingFamily().Defaults()["learning_rate"])
	assert.Equal(t, 1.0, LassoFamily().Defaults()["alpha"])
}

func TestTreeFamiliesImplementFeatureImporter(t *testing.T) {
	for _, f := range []model.Family{DecisionTreeFamily(), RandomForestFamily(), GradientBoostingFamily()} {
		reg, err := f.New(nil, 0)
		require.NoError(t, err)
		_, ok := reg.(model.FeatureImporter)
		assert.True(t, ok, f.Name())
	}
}
