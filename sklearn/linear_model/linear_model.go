// Package linear_model provides linear regression backends: ordinary least
// squares and L1-regularised Lasso.
package linear_model

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/scitune/core/parallel"
	"github.com/YuminosukeSato/scitune/pkg/errors"
)

// predictRowThreshold is the number of rows above which prediction is
// split across CPUs.
const predictRowThreshold = 2048

func checkFitInput(op string, X, y mat.Matrix) (rows, cols int, err error) {
	rows, cols = X.Dims()
	yRows, yCols := y.Dims()
	if rows == 0 || cols == 0 {
		return 0, 0, errors.Wrap(errors.ErrEmptyData, op)
	}
	if rows != yRows {
		return 0, 0, errors.NewDimensionError(op, rows, yRows, 0)
	}
	if yCols != 1 {
		return 0, 0, errors.NewDimensionError(op, 1, yCols, 1)
	}
	return rows, cols, nil
}

// linearPredict computes X·coef + intercept as an n×1 matrix. Non-finite
// outputs are reported as NumericalInstabilityError.
func linearPredict(op string, X mat.Matrix, coef []float64, intercept float64) (*mat.Dense, error) {
	rows, cols := X.Dims()
	predictions := mat.NewDense(rows, 1, nil)
	parallel.ParallelizeWithThreshold(rows, predictRowThreshold, func(start, end int) {
		for i := start; i < end; i++ {
			pred := intercept
			for j := 0; j < cols; j++ {
				pred += X.At(i, j) * coef[j]
			}
			predictions.Set(i, 0, pred)
		}
	})
	if err := errors.CheckNumericalStability(op, predictions.RawMatrix().Data, 0); err != nil {
		return nil, err
	}
	return predictions, nil
}
