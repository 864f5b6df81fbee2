// Package scitune tunes and compares regression model families with
// cross-validation.
//
// A run loads a tabular dataset, holds out a test subset, and for every
// configured model family searches its hyperparameters with k-fold,
// repeated k-fold or adaptive resampling. The adaptive mode drops a
// candidate as soon as a paired t-test shows it is worse than the current
// leader. The best candidate of each family is refit on the training rows
// and scored on the held-out rows.
//
// # Quick Start
//
//	scitune -config examples/synthetic/experiment.yaml -plot-dir plots
//
// or from Go:
//
//	reg := estimators.NewRegistry()
//	family, _ := reg.Get(estimators.Lasso)
//	grid, _ := model_selection.ParameterGrid(map[string][]float64{"alpha": {0.01, 0.1, 1}})
//	search := &model_selection.SearchCV{
//	    Family:     family,
//	    Candidates: grid,
//	    Resampler:  model_selection.RepeatedKFold{NSplits: 5, NRepeats: 3},
//	    Seed:       42,
//	}
//	res, err := search.Fit(ctx, X, y)
//
// # Packages
//
//   - dataset: CSV loading and synthetic regression data
//   - sklearn/model_selection: splitting, fold plans, grids, SearchCV
//   - sklearn/linear_model, sklearn/tree, sklearn/ensemble: regression backends
//   - sklearn/estimators: the default family registry
//   - core/model: Regressor, Family and Registry interfaces
//   - core/parallel: bounded worker pool and row-chunk helpers
//   - metrics: RMSE, MAE, R² and friends
//   - config: YAML/TOML experiment files
//   - experiment: end to end runner used by cmd/scitune
//   - report: comparison tables and metric plots
//   - pkg/errors, pkg/log: typed errors and structured logging
package scitune
