// Package estimators registers the built-in model families.
package estimators

import (
	"github.com/YuminosukeSato/scitune/core/model"
	"github.com/YuminosukeSato/scitune/sklearn/ensemble"
	"github.com/YuminosukeSato/scitune/sklearn/linear_model"
	"github.com/YuminosukeSato/scitune/sklearn/tree"
)

// Family names.
const (
	LinearRegression = "linear_regression"
	Lasso            = "lasso"
	DecisionTree     = "decision_tree"
	RandomForest     = "random_forest"
	GradientBoosting = "gradient_boosting"
)

// LinearRegressionFamily fits ordinary least squares.
func LinearRegressionFamily() model.Family {
	return model.FamilyFunc{
		FamilyName: LinearRegression,
		Params:     model.Params{"fit_intercept": 1},
		Build: func(p model.Params, _ uint64) (model.Regressor, error) {
			return linear_model.NewLinearRegression(
				linear_model.WithLRFitIntercept(p.Bool("fit_intercept", true)),
			), nil
		},
	}
}

// LassoFamily fits L1-regularised least squares.
func LassoFamily() model.Family {
	return model.FamilyFunc{
		FamilyName: Lasso,
		Params: model.Params{
			"alpha":     1.0,
			"max_iter":  1000,
			"tol":       1e-4,
			"normalize": 1,
		},
		Build: func(p model.Params, _ uint64) (model.Regressor, error) {
			return linear_model.NewLasso(
				linear_model.WithAlpha(p.Get("alpha", 1)),
				linear_model.WithMaxIter(p.Int("max_iter", 1000)),
				linear_model.WithTol(p.Get("tol", 1e-4)),
				linear_model.WithNormalize(p.Bool("normalize", true)),
			), nil
		},
	}
}

// DecisionTreeFamily fits a single regression tree.
func DecisionTreeFamily() model.Family {
	return model.FamilyFunc{
		FamilyName: DecisionTree,
		Params: model.Params{
			"max_depth":         0,
			"min_samples_split": 2,
			"min_samples_leaf":  1,
			"max_features":      0,
		},
		Build: func(p model.Params, seed uint64) (model.Regressor, error) {
			return tree.NewDecisionTreeRegressor(
				tree.WithMaxDepth(p.Int("max_depth", 0)),
				tree.WithMinSamplesSplit(p.Int("min_samples_split", 2)),
				tree.WithMinSamplesLeaf(p.Int("min_samples_leaf", 1)),
				tree.WithMaxFeatures(p.Int("max_features", 0)),
				tree.WithSeed(seed),
			), nil
		},
	}
}

// RandomForestFamily fits a bagged forest.
func RandomForestFamily() model.Family {
	return model.FamilyFunc{
		FamilyName: RandomForest,
		Params: model.Params{
			"n_estimators":     100,
			"max_depth":        0,
			"min_samples_leaf": 1,
			"max_features":     0,
		},
		Build: func(p model.Params, seed uint64) (model.Regressor, error) {
			return ensemble.NewRandomForestRegressor(
				ensemble.WithForestEstimators(p.Int("n_estimators", 100)),
				ensemble.WithForestMaxDepth(p.Int("max_depth", 0)),
				ensemble.WithForestMinSamplesLeaf(p.Int("min_samples_leaf", 1)),
				ensemble.WithForestMaxFeatures(p.Int("max_features", 0)),
				ensemble.WithForestSeed(seed),
			), nil
		},
	}
}

// GradientBoostingFamily fits gradient-boosted trees.
func GradientBoostingFamily() model.Family {
	return model.FamilyFunc{
		FamilyName: GradientBoosting,
		Params: model.Params{
			"n_estimators":     100,
			"learning_rate":    0.1,
			"max_depth":        3,
			"min_samples_leaf": 1,
			"subsample":        1.0,
			"lambda":           0,
		},
		Build: func(p model.Params, seed uint64) (model.Regressor, error) {
			return ensemble.NewGradientBoostingRegressor(
				ensemble.WithBoostingEstimators(p.Int("n_estimators", 100)),
				ensemble.WithLearningRate(p.Get("learning_rate", 0.1)),
				ensemble.WithBoostingMaxDepth(p.Int("max_depth", 3)),
				ensemble.WithBoostingMinSamplesLeaf(p.Int("min_samples_leaf", 1)),
				ensemble.WithSubsample(p.Get("subsample", 1)),
				ensemble.WithLambda(p.Get("lambda", 0)),
				ensemble.WithBoostingSeed(seed),
			), nil
		},
	}
}

// NewRegistry returns a registry holding every built-in family.
func NewRegistry() *model.Registry {
	r := model.NewRegistry()
	r.MustRegister(LinearRegressionFamily())
	r.MustRegister(LassoFamily())
	r.MustRegister(DecisionTreeFamily())
	r.MustRegister(RandomForestFamily())
	r.MustRegister(GradientBoostingFamily())
	return r
}
