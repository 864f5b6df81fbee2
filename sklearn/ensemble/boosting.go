package ensemble

import (
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/scitune/core/model"
	"github.com/YuminosukeSato/scitune/pkg/errors"
	"github.com/YuminosukeSato/scitune/sklearn/tree"
)

// GradientBoostingRegressor fits an additive model of shallow trees to the
// squared-error gradient, starting from the target mean.
type GradientBoostingRegressor struct {
	state *model.StateManager

	nEstimators    int
	learningRate   float64
	maxDepth       int
	minSamplesLeaf int
	subsample      float64
	lambda         float64
	seed           uint64

	init  float64
	trees []*tree.Tree
}

// BoostingOption configures a GradientBoostingRegressor.
type BoostingOption func(*GradientBoostingRegressor)

func WithBoostingEstimators(n int) BoostingOption {
	return func(gb *GradientBoostingRegressor) { gb.nEstimators = n }
}

func WithLearningRate(lr float64) BoostingOption {
	return func(gb *GradientBoostingRegressor) { gb.learningRate = lr }
}

func WithBoostingMaxDepth(d int) BoostingOption {
	return func(gb *GradientBoostingRegressor) { gb.maxDepth = d }
}

func WithBoostingMinSamplesLeaf(n int) BoostingOption {
	return func(gb *GradientBoostingRegressor) { gb.minSamplesLeaf = n }
}

// WithSubsample sets the fraction of rows drawn without replacement for
// each tree (stochastic gradient boosting).
func WithSubsample(f float64) BoostingOption {
	return func(gb *GradientBoostingRegressor) { gb.subsample = f }
}

// WithLambda sets the L2 penalty on leaf values.
func WithLambda(l float64) BoostingOption {
	return func(gb *GradientBoostingRegressor) { gb.lambda = l }
}

func WithBoostingSeed(seed uint64) BoostingOption {
	return func(gb *GradientBoostingRegressor) { gb.seed = seed }
}

// NewGradientBoostingRegressor creates a model with 100 depth-3 trees and
// learning rate 0.1.
func NewGradientBoostingRegressor(opts ...BoostingOption) *GradientBoostingRegressor {
	gb := &GradientBoostingRegressor{
		state:          model.NewStateManager(),
		nEstimators:    100,
		learningRate:   0.1,
		maxDepth:       3,
		minSamplesLeaf: 1,
		subsample:      1.0,
	}
	for _, opt := range opts {
		opt(gb)
	}
	return gb
}

func (gb *GradientBoostingRegressor) validate() error {
	switch {
	case gb.nEstimators < 1:
		return errors.NewValidationError("n_estimators", "must be >= 1", gb.nEstimators)
	case gb.learningRate <= 0:
		return errors.NewValidationError("learning_rate", "must be > 0", gb.learningRate)
	case gb.subsample <= 0 || gb.subsample > 1:
		return errors.NewValidationError("subsample", "must be in (0, 1]", gb.subsample)
	}
	return tree.ValidateConfig(gb.treeConfig())
}

func (gb *GradientBoostingRegressor) treeConfig() tree.Config {
	return tree.Config{
		MaxDepth:       gb.maxDepth,
		MinSamplesLeaf: gb.minSamplesLeaf,
		Lambda:         gb.lambda,
	}
}

// Fit はモデルを訓練データで学習
func (gb *GradientBoostingRegressor) Fit(X, y mat.Matrix) error {
	if err := gb.validate(); err != nil {
		return err
	}
	target, err := tree.CheckFitInput("GradientBoostingRegressor.Fit", X, y)
	if err != nil {
		return err
	}
	rows, cols := X.Dims()
	Xd := mat.DenseCopyOf(X)
	rng := rand.New(rand.NewPCG(gb.seed, 0x6762))

	gb.init = stat.Mean(target, nil)
	F := make([]float64, rows)
	for i := range F {
		F[i] = gb.init
	}

	nSub := max(1, int(gb.subsample*float64(rows)))
	all := make([]int, rows)
	for i := range all {
		all[i] = i
	}

	cfg := gb.treeConfig()
	grad := make([]float64, rows)
	hess := make([]float64, rows)
	row := make([]float64, cols)
	gb.trees = make([]*tree.Tree, 0, gb.nEstimators)
	for m := 0; m < gb.nEstimators; m++ {
		// 二乗誤差の勾配 F - y、ヘシアン 1
		for i := range grad {
			grad[i] = F[i] - target[i]
			hess[i] = 1
		}

		sample := all
		if nSub < rows {
			perm := rng.Perm(rows)
			sample = perm[:nSub]
		}

		t := tree.Grow(Xd, grad, hess, sample, cfg, rng)
		gb.trees = append(gb.trees, t)

		for i := 0; i < rows; i++ {
			mat.Row(row, i, Xd)
			F[i] += gb.learningRate * t.PredictRow(row)
		}
		if err := errors.CheckNumericalStability("boosting_update", F, m); err != nil {
			return err
		}
	}

	gb.state.SetDimensions(cols, rows)
	gb.state.SetFitted()
	return nil
}

// Predict は入力データに対する予測を行う
func (gb *GradientBoostingRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := gb.state.RequireFitted("GradientBoostingRegressor", "Predict"); err != nil {
		return nil, err
	}
	_, cols := X.Dims()
	if err := gb.state.CheckFeatures("GradientBoostingRegressor.Predict", cols); err != nil {
		return nil, err
	}
	pred, err := tree.PredictTrees("GradientBoostingRegressor.Predict", X, gb.trees, gb.init, gb.learningRate)
	if err != nil {
		return nil, err
	}
	return pred, nil
}

// FeatureImportances sums split gains over all trees, normalised.
func (gb *GradientBoostingRegressor) FeatureImportances() ([]float64, error) {
	if err := gb.state.RequireFitted("GradientBoostingRegressor", "FeatureImportances"); err != nil {
		return nil, err
	}
	nFeatures, _ := gb.state.GetDimensions()
	imp := make([]float64, nFeatures)
	for _, t := range gb.trees {
		for j, v := range t.GainImportances() {
			imp[j] += v
		}
	}
	return tree.Normalize(imp), nil
}

// NumTrees returns the number of boosting rounds fitted.
func (gb *GradientBoostingRegressor) NumTrees() int { return len(gb.trees) }

// GetParams implements model.ParameterGetter.
func (gb *GradientBoostingRegressor) GetParams() model.Params {
	return model.Params{
		"n_estimators":     float64(gb.nEstimators),
		"learning_rate":    gb.learningRate,
		"max_depth":        float64(gb.maxDepth),
		"min_samples_leaf": float64(gb.minSamplesLeaf),
		"subsample":        gb.subsample,
		"lambda":           gb.lambda,
	}
}

func (gb *GradientBoostingRegressor) String() string {
	return fmt.Sprintf("GradientBoostingRegressor(n_estimators=%d, learning_rate=%g, max_depth=%d, subsample=%g)",
		gb.nEstimators, gb.learningRate, gb.maxDepth, gb.subsample)
}
