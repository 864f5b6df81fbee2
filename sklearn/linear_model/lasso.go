package linear_model

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/scitune/core/model"
	"github.com/YuminosukeSato/scitune/metrics"
	"github.com/YuminosukeSato/scitune/pkg/errors"
	"github.com/YuminosukeSato/scitune/preprocessing"
)

// Lasso minimises (1/2n)·‖y − Xw − b‖² + alpha·‖w‖₁ by cyclic coordinate
// descent. When normalize is set, features are standardised before the
// fit and the coefficients are mapped back to the original scale.
type Lasso struct {
	state *model.StateManager

	alpha        float64
	maxIter      int
	tol          float64
	fitIntercept bool
	normalize    bool

	coef_      []float64
	intercept_ float64
	nIter_     int
}

// LassoOption は Lasso の設定オプション
type LassoOption func(*Lasso)

// WithAlpha sets the L1 penalty strength.
func WithAlpha(alpha float64) LassoOption {
	return func(l *Lasso) { l.alpha = alpha }
}

// WithMaxIter sets the maximum number of coordinate descent sweeps.
func WithMaxIter(n int) LassoOption {
	return func(l *Lasso) { l.maxIter = n }
}

// WithTol sets the convergence tolerance on the largest coefficient update
// relative to the largest coefficient.
func WithTol(tol float64) LassoOption {
	return func(l *Lasso) { l.tol = tol }
}

// WithLassoFitIntercept は切片の学習有無を設定
func WithLassoFitIntercept(fit bool) LassoOption {
	return func(l *Lasso) { l.fitIntercept = fit }
}

// WithNormalize standardises features before fitting.
func WithNormalize(normalize bool) LassoOption {
	return func(l *Lasso) { l.normalize = normalize }
}

// NewLasso creates a Lasso with alpha=1, max_iter=1000, tol=1e-4.
func NewLasso(options ...LassoOption) *Lasso {
	l := &Lasso{
		state:        model.NewStateManager(),
		alpha:        1.0,
		maxIter:      1000,
		tol:          1e-4,
		fitIntercept: true,
		normalize:    true,
	}
	for _, opt := range options {
		opt(l)
	}
	return l
}

func (l *Lasso) validate() error {
	switch {
	case l.alpha < 0 || math.IsNaN(l.alpha):
		return errors.NewValidationError("alpha", "must be non-negative", l.alpha)
	case l.maxIter < 1:
		return errors.NewValidationError("max_iter", "must be at least 1", l.maxIter)
	case l.tol <= 0:
		return errors.NewValidationError("tol", "must be positive", l.tol)
	}
	return nil
}

// Fit はモデルを訓練データで学習
func (l *Lasso) Fit(X, y mat.Matrix) error {
	if err := l.validate(); err != nil {
		return err
	}
	rows, cols, err := checkFitInput("Lasso.Fit", X, y)
	if err != nil {
		return err
	}

	// 前処理: 標準化（任意）と中心化
	scaler := preprocessing.NewStandardScaler(l.fitIntercept, l.normalize)
	scaled, err := scaler.FitTransform(X)
	if err != nil {
		return errors.Wrap(err, "Lasso.Fit: scale features")
	}
	Xs := mat.DenseCopyOf(scaled)

	yMean := 0.0
	if l.fitIntercept {
		for i := 0; i < rows; i++ {
			yMean += y.At(i, 0)
		}
		yMean /= float64(rows)
	}
	residual := make([]float64, rows)
	for i := range residual {
		residual[i] = y.At(i, 0) - yMean
	}

	n := float64(rows)
	colNorm := make([]float64, cols)
	for j := 0; j < cols; j++ {
		col := mat.Col(nil, j, Xs)
		for _, v := range col {
			colNorm[j] += v * v
		}
		colNorm[j] /= n
	}

	w := make([]float64, cols)
	converged := false
	iter := 0
	for iter = 1; iter <= l.maxIter; iter++ {
		maxDelta, maxW := 0.0, 0.0
		for j := 0; j < cols; j++ {
			if colNorm[j] == 0 {
				continue
			}
			var rho float64
			for i := 0; i < rows; i++ {
				rho += Xs.At(i, j) * residual[i]
			}
			rho = rho/n + colNorm[j]*w[j]

			wNew := errors.SoftThreshold(rho, l.alpha) / colNorm[j]
			if delta := wNew - w[j]; delta != 0 {
				for i := 0; i < rows; i++ {
					residual[i] -= delta * Xs.At(i, j)
				}
				maxDelta = math.Max(maxDelta, math.Abs(delta))
			}
			w[j] = wNew
			maxW = math.Max(maxW, math.Abs(wNew))
		}
		if err := errors.CheckNumericalStability("coordinate_descent", w, iter); err != nil {
			return err
		}
		if maxW == 0 || maxDelta/maxW < l.tol {
			converged = true
			break
		}
	}
	if !converged {
		iter = l.maxIter
		errors.Warn(errors.NewConvergenceWarning("Lasso", l.maxIter,
			fmt.Sprintf("alpha=%g; consider increasing max_iter or tol", l.alpha)))
	}

	// 元のスケールに戻す
	l.coef_ = make([]float64, cols)
	l.intercept_ = yMean
	for j := 0; j < cols; j++ {
		l.coef_[j] = w[j] / scaler.Scale[j]
		l.intercept_ -= l.coef_[j] * scaler.Mean[j]
	}
	l.nIter_ = iter

	l.state.SetDimensions(cols, rows)
	l.state.SetFitted()
	return nil
}

// Predict は入力データに対する予測を行う
func (l *Lasso) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := l.state.RequireFitted("Lasso", "Predict"); err != nil {
		return nil, err
	}
	_, cols := X.Dims()
	if err := l.state.CheckFeatures("Lasso.Predict", cols); err != nil {
		return nil, err
	}
	pred, err := linearPredict("Lasso.Predict", X, l.coef_, l.intercept_)
	if err != nil {
		return nil, err
	}
	return pred, nil
}

// Score はモデルの決定係数（R²）を計算
func (l *Lasso) Score(X, y mat.Matrix) (float64, error) {
	pred, err := l.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.R2Metric.Score(y, pred)
}

// Coef returns the coefficients on the original feature scale.
func (l *Lasso) Coef() []float64 {
	if l.coef_ == nil {
		return nil
	}
	return append([]float64(nil), l.coef_...)
}

// Intercept は学習された切片を返す
func (l *Lasso) Intercept() float64 { return l.intercept_ }

// NIter returns the number of sweeps the last Fit used.
func (l *Lasso) NIter() int { return l.nIter_ }

// GetParams implements model.ParameterGetter.
func (l *Lasso) GetParams() model.Params {
	return model.Params{
		"alpha":         l.alpha,
		"max_iter":      float64(l.maxIter),
		"tol":           l.tol,
		"normalize":     boolParam(l.normalize),
		"fit_intercept": boolParam(l.fitIntercept),
	}
}

func (l *Lasso) String() string {
	return fmt.Sprintf("Lasso(alpha=%g, max_iter=%d, tol=%g, normalize=%t)", l.alpha, l.maxIter, l.tol, l.normalize)
}
