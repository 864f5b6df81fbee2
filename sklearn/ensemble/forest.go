// Package ensemble provides tree ensembles: bagged random forests and
// gradient-boosted trees for squared-error regression.
package ensemble

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/scitune/core/model"
	"github.com/YuminosukeSato/scitune/core/parallel"
	"github.com/YuminosukeSato/scitune/pkg/errors"
	"github.com/YuminosukeSato/scitune/sklearn/tree"
)

// RandomForestRegressor averages trees grown on bootstrap samples, each
// split choosing among a random subset of features.
type RandomForestRegressor struct {
	state *model.StateManager

	nEstimators    int
	maxDepth       int
	minSamplesLeaf int
	maxFeatures    int
	seed           uint64

	trees []*tree.Tree
}

// ForestOption configures a RandomForestRegressor.
type ForestOption func(*RandomForestRegressor)

func WithForestEstimators(n int) ForestOption {
	return func(rf *RandomForestRegressor) { rf.nEstimators = n }
}

func WithForestMaxDepth(d int) ForestOption {
	return func(rf *RandomForestRegressor) { rf.maxDepth = d }
}

func WithForestMinSamplesLeaf(n int) ForestOption {
	return func(rf *RandomForestRegressor) { rf.minSamplesLeaf = n }
}

// WithForestMaxFeatures sets features tried per split. 0 selects p/3
// rounded, at least 1.
func WithForestMaxFeatures(n int) ForestOption {
	return func(rf *RandomForestRegressor) { rf.maxFeatures = n }
}

func WithForestSeed(seed uint64) ForestOption {
	return func(rf *RandomForestRegressor) { rf.seed = seed }
}

// NewRandomForestRegressor creates a forest of 100 unlimited-depth trees.
func NewRandomForestRegressor(opts ...ForestOption) *RandomForestRegressor {
	rf := &RandomForestRegressor{
		state:          model.NewStateManager(),
		nEstimators:    100,
		minSamplesLeaf: 1,
	}
	for _, opt := range opts {
		opt(rf)
	}
	return rf
}

// effectiveMaxFeatures resolves the 0 default against p.
func (rf *RandomForestRegressor) effectiveMaxFeatures(p int) int {
	if rf.maxFeatures > 0 {
		return min(rf.maxFeatures, p)
	}
	return max(1, int(math.Round(float64(p)/3)))
}

// Fit grows nEstimators trees. Tree k uses its own PCG stream derived from
// (seed, k), so the result does not depend on scheduling.
func (rf *RandomForestRegressor) Fit(X, y mat.Matrix) error {
	if rf.nEstimators < 1 {
		return errors.NewValidationError("n_estimators", "must be >= 1", rf.nEstimators)
	}
	cfg := tree.Config{
		MaxDepth:       rf.maxDepth,
		MinSamplesLeaf: rf.minSamplesLeaf,
	}
	if err := tree.ValidateConfig(cfg); err != nil {
		return err
	}
	if rf.maxFeatures < 0 {
		return errors.NewValidationError("max_features", "must be >= 0", rf.maxFeatures)
	}
	target, err := tree.CheckFitInput("RandomForestRegressor.Fit", X, y)
	if err != nil {
		return err
	}
	rows, cols := X.Dims()
	cfg.MaxFeatures = rf.effectiveMaxFeatures(cols)

	Xd := mat.DenseCopyOf(X)
	grad := make([]float64, rows)
	hess := make([]float64, rows)
	for i := range grad {
		grad[i] = -target[i]
		hess[i] = 1
	}

	trees := make([]*tree.Tree, rf.nEstimators)
	parallel.ParallelizeWithThreshold(rf.nEstimators, 8, func(start, end int) {
		for k := start; k < end; k++ {
			rng := rand.New(rand.NewPCG(rf.seed, uint64(k)))
			boot := make([]int, rows)
			for i := range boot {
				boot[i] = rng.IntN(rows)
			}
			trees[k] = tree.Grow(Xd, grad, hess, boot, cfg, rng)
		}
	})
	rf.trees = trees

	rf.state.SetDimensions(cols, rows)
	rf.state.SetFitted()
	return nil
}

// Predict averages the trees' predictions.
func (rf *RandomForestRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := rf.state.RequireFitted("RandomForestRegressor", "Predict"); err != nil {
		return nil, err
	}
	_, cols := X.Dims()
	if err := rf.state.CheckFeatures("RandomForestRegressor.Predict", cols); err != nil {
		return nil, err
	}
	pred, err := tree.PredictTrees("RandomForestRegressor.Predict", X, rf.trees, 0, 1/float64(len(rf.trees)))
	if err != nil {
		return nil, err
	}
	return pred, nil
}

// FeatureImportances averages each tree's normalised gain importances.
func (rf *RandomForestRegressor) FeatureImportances() ([]float64, error) {
	if err := rf.state.RequireFitted("RandomForestRegressor", "FeatureImportances"); err != nil {
		return nil, err
	}
	nFeatures, _ := rf.state.GetDimensions()
	imp := make([]float64, nFeatures)
	for _, t := range rf.trees {
		for j, v := range tree.Normalize(t.GainImportances()) {
			imp[j] += v
		}
	}
	return tree.Normalize(imp), nil
}

// NumTrees returns the number of fitted trees.
func (rf *RandomForestRegressor) NumTrees() int { return len(rf.trees) }

// GetParams implements model.ParameterGetter.
func (rf *RandomForestRegressor) GetParams() model.Params {
	return model.Params{
		"n_estimators":     float64(rf.nEstimators),
		"max_depth":        float64(rf.maxDepth),
		"min_samples_leaf": float64(rf.minSamplesLeaf),
		"max_features":     float64(rf.maxFeatures),
	}
}

func (rf *RandomForestRegressor) String() string {
	return fmt.Sprintf("RandomForestRegressor(n_estimators=%d, max_depth=%d, min_samples_leaf=%d, max_features=%d)",
		rf.nEstimators, rf.maxDepth, rf.minSamplesLeaf, rf.maxFeatures)
}
