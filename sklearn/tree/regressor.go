package tree

import (
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/scitune/core/model"
	"github.com/YuminosukeSato/scitune/core/parallel"
	"github.com/YuminosukeSato/scitune/pkg/errors"
)

// DecisionTreeRegressor fits a single regression tree minimising squared error.
type DecisionTreeRegressor struct {
	state *model.StateManager
	cfg   Config
	seed  uint64

	tree *Tree
}

// Option configures a DecisionTreeRegressor.
type Option func(*DecisionTreeRegressor)

// WithMaxDepth limits the depth of the tree; 0 means unlimited.
func WithMaxDepth(d int) Option { return func(t *DecisionTreeRegressor) { t.cfg.MaxDepth = d } }

// WithMinSamplesSplit sets the minimum node size that may be split.
func WithMinSamplesSplit(n int) Option {
	return func(t *DecisionTreeRegressor) { t.cfg.MinSamplesSplit = n }
}

// WithMinSamplesLeaf sets the minimum number of samples per leaf.
func WithMinSamplesLeaf(n int) Option {
	return func(t *DecisionTreeRegressor) { t.cfg.MinSamplesLeaf = n }
}

// WithMaxFeatures sets how many features are tried per split; 0 means all.
func WithMaxFeatures(n int) Option { return func(t *DecisionTreeRegressor) { t.cfg.MaxFeatures = n } }

// WithSeed seeds feature subsampling.
func WithSeed(seed uint64) Option { return func(t *DecisionTreeRegressor) { t.seed = seed } }

// NewDecisionTreeRegressor creates an unfitted tree.
func NewDecisionTreeRegressor(opts ...Option) *DecisionTreeRegressor {
	t := &DecisionTreeRegressor{
		state: model.NewStateManager(),
		cfg:   Config{MinSamplesSplit: 2, MinSamplesLeaf: 1},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// ValidateConfig checks growth limits shared by every tree-based regressor.
func ValidateConfig(cfg Config) error {
	switch {
	case cfg.MaxDepth < 0:
		return errors.NewValidationError("max_depth", "must be >= 0", cfg.MaxDepth)
	case cfg.MinSamplesLeaf < 1:
		return errors.NewValidationError("min_samples_leaf", "must be >= 1", cfg.MinSamplesLeaf)
	case cfg.MaxFeatures < 0:
		return errors.NewValidationError("max_features", "must be >= 0", cfg.MaxFeatures)
	case cfg.Lambda < 0:
		return errors.NewValidationError("lambda", "must be >= 0", cfg.Lambda)
	}
	return nil
}

// CheckFitInput validates X and y for tree-based regressors and returns the
// target as a slice.
func CheckFitInput(op string, X, y mat.Matrix) ([]float64, error) {
	rows, cols := X.Dims()
	yRows, yCols := y.Dims()
	if rows == 0 || cols == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, op)
	}
	if rows != yRows {
		return nil, errors.NewDimensionError(op, rows, yRows, 0)
	}
	if yCols != 1 {
		return nil, errors.NewDimensionError(op, 1, yCols, 1)
	}
	target := mat.Col(nil, 0, y)
	if err := errors.CheckNumericalStability(op, target, 0); err != nil {
		return nil, err
	}
	return target, nil
}

// Fit はモデルを訓練データで学習
func (t *DecisionTreeRegressor) Fit(X, y mat.Matrix) error {
	if err := ValidateConfig(t.cfg); err != nil {
		return err
	}
	target, err := CheckFitInput("DecisionTreeRegressor.Fit", X, y)
	if err != nil {
		return err
	}
	rows, cols := X.Dims()

	grad := make([]float64, rows)
	hess := make([]float64, rows)
	idx := make([]int, rows)
	for i := range grad {
		grad[i] = -target[i]
		hess[i] = 1
		idx[i] = i
	}
	rng := rand.New(rand.NewPCG(t.seed, 0x7472656573))
	t.tree = Grow(mat.DenseCopyOf(X), grad, hess, idx, t.cfg, rng)

	t.state.SetDimensions(cols, rows)
	t.state.SetFitted()
	return nil
}

// Predict は入力データに対する予測を行う
func (t *DecisionTreeRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := t.state.RequireFitted("DecisionTreeRegressor", "Predict"); err != nil {
		return nil, err
	}
	_, cols := X.Dims()
	if err := t.state.CheckFeatures("DecisionTreeRegressor.Predict", cols); err != nil {
		return nil, err
	}
	pred, err := PredictTrees("DecisionTreeRegressor.Predict", X, []*Tree{t.tree}, 0, 1)
	if err != nil {
		return nil, err
	}
	return pred, nil
}

// PredictTrees returns base + scale·Σ tree(x) for each row, as an n×1
// matrix. Rows are split across CPUs for large inputs. A non-finite output
// yields a NumericalInstabilityError tagged with op.
func PredictTrees(op string, X mat.Matrix, trees []*Tree, base, scale float64) (*mat.Dense, error) {
	rows, cols := X.Dims()
	out := mat.NewDense(rows, 1, nil)
	parallel.ParallelizeWithThreshold(rows, 512, func(start, end int) {
		row := make([]float64, cols)
		for i := start; i < end; i++ {
			mat.Row(row, i, X)
			v := 0.0
			for _, tr := range trees {
				v += tr.PredictRow(row)
			}
			out.Set(i, 0, base+scale*v)
		}
	})
	if err := errors.CheckNumericalStability(op, out.RawMatrix().Data, 0); err != nil {
		return nil, err
	}
	return out, nil
}

// FeatureImportances implements model.FeatureImporter.
func (t *DecisionTreeRegressor) FeatureImportances() ([]float64, error) {
	if err := t.state.RequireFitted("DecisionTreeRegressor", "FeatureImportances"); err != nil {
		return nil, err
	}
	return Normalize(t.tree.GainImportances()), nil
}

// Tree returns the fitted tree, or nil before Fit.
func (t *DecisionTreeRegressor) Tree() *Tree { return t.tree }

// GetParams implements model.ParameterGetter.
func (t *DecisionTreeRegressor) GetParams() model.Params {
	return model.Params{
		"max_depth":         float64(t.cfg.MaxDepth),
		"min_samples_split": float64(t.cfg.MinSamplesSplit),
		"min_samples_leaf":  float64(t.cfg.MinSamplesLeaf),
		"max_features":      float64(t.cfg.MaxFeatures),
	}
}

func (t *DecisionTreeRegressor) String() string {
	return fmt.Sprintf("DecisionTreeRegressor(max_depth=%d, min_samples_leaf=%d, max_features=%d)",
		t.cfg.MaxDepth, t.cfg.MinSamplesLeaf, t.cfg.MaxFeatures)
}
