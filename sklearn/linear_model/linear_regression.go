package linear_model

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/scitune/core/model"
	"github.com/YuminosukeSato/scitune/metrics"
	"github.com/YuminosukeSato/scitune/pkg/errors"
)

// LinearRegression is ordinary least squares solved by QR decomposition.
type LinearRegression struct {
	state *model.StateManager

	fitIntercept bool

	coef_      []float64
	intercept_ float64
}

// LinearRegressionOption は設定オプション
type LinearRegressionOption func(*LinearRegression)

// WithLRFitIntercept は切片の学習有無を設定
func WithLRFitIntercept(fit bool) LinearRegressionOption {
	return func(lr *LinearRegression) {
		lr.fitIntercept = fit
	}
}

// NewLinearRegression は新しいLinearRegressionモデルを作成
func NewLinearRegression(options ...LinearRegressionOption) *LinearRegression {
	lr := &LinearRegression{
		state:        model.NewStateManager(),
		fitIntercept: true,
	}
	for _, opt := range options {
		opt(lr)
	}
	return lr
}

// Fit はモデルを訓練データで学習
func (lr *LinearRegression) Fit(X, y mat.Matrix) error {
	rows, cols, err := checkFitInput("LinearRegression.Fit", X, y)
	if err != nil {
		return err
	}

	width := cols
	if lr.fitIntercept {
		width++
	}
	if rows < width {
		return errors.NewValueError("LinearRegression.Fit",
			fmt.Sprintf("need at least %d samples for %d coefficients, got %d", width, width, rows))
	}

	// 切片を学習する場合は [1 | X] を作る
	XFit := mat.NewDense(rows, width, nil)
	offset := width - cols
	for i := 0; i < rows; i++ {
		if offset == 1 {
			XFit.Set(i, 0, 1)
		}
		for j := 0; j < cols; j++ {
			XFit.Set(i, j+offset, X.At(i, j))
		}
	}

	// 正規方程式より数値的に安定なQR分解を使用
	var qr mat.QR
	qr.Factorize(XFit)

	coefficients := mat.NewDense(width, 1, nil)
	if err := qr.SolveTo(coefficients, false, y); err != nil {
		var cond mat.Condition
		if errors.As(err, &cond) {
			return errors.Wrapf(errors.ErrSingularMatrix, "LinearRegression.Fit: condition number %.3g", float64(cond))
		}
		return errors.Wrap(err, "LinearRegression.Fit: solve")
	}

	lr.intercept_ = 0
	if lr.fitIntercept {
		lr.intercept_ = coefficients.At(0, 0)
	}
	lr.coef_ = make([]float64, cols)
	for j := 0; j < cols; j++ {
		lr.coef_[j] = coefficients.At(j+offset, 0)
	}
	if err := errors.CheckNumericalStability("LinearRegression.Fit", append(lr.Coef(), lr.intercept_), 0); err != nil {
		return err
	}

	lr.state.SetDimensions(cols, rows)
	lr.state.SetFitted()
	return nil
}

// Predict は入力データに対する予測を行う
func (lr *LinearRegression) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := lr.state.RequireFitted("LinearRegression", "Predict"); err != nil {
		return nil, err
	}
	_, cols := X.Dims()
	if err := lr.state.CheckFeatures("LinearRegression.Predict", cols); err != nil {
		return nil, err
	}
	pred, err := linearPredict("LinearRegression.Predict", X, lr.coef_, lr.intercept_)
	if err != nil {
		return nil, err
	}
	return pred, nil
}

// Score はモデルの決定係数（R²）を計算
func (lr *LinearRegression) Score(X, y mat.Matrix) (float64, error) {
	pred, err := lr.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.R2Metric.Score(y, pred)
}

// Coef は学習された重み係数を返す
func (lr *LinearRegression) Coef() []float64 {
	if lr.coef_ == nil {
		return nil
	}
	return append([]float64(nil), lr.coef_...)
}

// Intercept は学習された切片を返す
func (lr *LinearRegression) Intercept() float64 {
	return lr.intercept_
}

// GetParams implements model.ParameterGetter.
func (lr *LinearRegression) GetParams() model.Params {
	return model.Params{"fit_intercept": boolParam(lr.fitIntercept)}
}

// String returns a string representation of the model
func (lr *LinearRegression) String() string {
	if !lr.state.IsFitted() {
		return fmt.Sprintf("LinearRegression(fit_intercept=%t)", lr.fitIntercept)
	}
	nFeatures, _ := lr.state.GetDimensions()
	return fmt.Sprintf("LinearRegression(fit_intercept=%t, n_features=%d)", lr.fitIntercept, nFeatures)
}

func boolParam(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
