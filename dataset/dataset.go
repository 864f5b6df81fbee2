// Package dataset holds the tabular regression data a tuning run works on.
package dataset

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/scitune/pkg/errors"
)

// Dataset is an n×p feature matrix with one numeric target per row. A
// Dataset is not modified after construction; Subset returns copies.
type Dataset struct {
	X            *mat.Dense
	Y            *mat.VecDense
	FeatureNames []string
	TargetName   string
}

// New validates shapes and returns a Dataset. When featureNames is nil the
// features are named x0, x1, ...
func New(X *mat.Dense, y *mat.VecDense, featureNames []string, targetName string) (*Dataset, error) {
	if X == nil || X.IsEmpty() || y == nil || y.IsEmpty() {
		return nil, errors.Wrap(errors.ErrEmptyData, "dataset.New")
	}
	n, p := X.Dims()
	if y.Len() != n {
		return nil, errors.NewDimensionError("dataset.New", n, y.Len(), 0)
	}
	if featureNames == nil {
		featureNames = make([]string, p)
		for j := range featureNames {
			featureNames[j] = fmt.Sprintf("x%d", j)
		}
	}
	if len(featureNames) != p {
		return nil, errors.NewDimensionError("dataset.New", p, len(featureNames), 1)
	}
	if targetName == "" {
		targetName = "y"
	}
	return &Dataset{X: X, Y: y, FeatureNames: featureNames, TargetName: targetName}, nil
}

// FromRows builds a Dataset from row slices. Every row must have the same length.
func FromRows(rows [][]float64, y []float64, featureNames []string, targetName string) (*Dataset, error) {
	if len(rows) == 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "dataset.FromRows")
	}
	p := len(rows[0])
	if p == 0 {
		return nil, errors.NewValueError("dataset.FromRows", "rows have no features")
	}
	data := make([]float64, 0, len(rows)*p)
	for i, r := range rows {
		if len(r) != p {
			return nil, errors.Wrapf(errors.NewDimensionError("dataset.FromRows", p, len(r), 1), "row %d", i)
		}
		data = append(data, r...)
	}
	if len(y) != len(rows) {
		return nil, errors.NewDimensionError("dataset.FromRows", len(rows), len(y), 0)
	}
	return New(mat.NewDense(len(rows), p, data), mat.NewVecDense(len(y), append([]float64(nil), y...)), featureNames, targetName)
}

// Len returns the number of rows.
func (d *Dataset) Len() int {
	n, _ := d.X.Dims()
	return n
}

// NumFeatures returns the number of feature columns.
func (d *Dataset) NumFeatures() int {
	_, p := d.X.Dims()
	return p
}

// Subset returns a copy holding the given rows in index order.
func (d *Dataset) Subset(indices []int) *Dataset {
	X, y := Rows(d.X, d.Y, indices)
	return &Dataset{
		X:            X,
		Y:            y,
		FeatureNames: d.FeatureNames,
		TargetName:   d.TargetName,
	}
}

// Rows copies the selected rows of X and y into new storage.
func Rows(X mat.Matrix, y mat.Vector, indices []int) (*mat.Dense, *mat.VecDense) {
	if len(indices) == 0 {
		return &mat.Dense{}, &mat.VecDense{}
	}
	_, p := X.Dims()
	subX := mat.NewDense(len(indices), p, nil)
	subY := mat.NewVecDense(len(indices), nil)
	for i, idx := range indices {
		for j := 0; j < p; j++ {
			subX.Set(i, j, X.At(idx, j))
		}
		subY.SetVec(i, y.AtVec(idx))
	}
	return subX, subY
}
