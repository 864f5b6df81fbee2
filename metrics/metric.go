package metrics

import (
	"math"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/scitune/pkg/errors"
)

// Metric is a named regression score. The first metric in a search's list
// is the primary metric used for ranking and elimination.
type Metric struct {
	Name            string
	GreaterIsBetter bool
	Func            func(yTrue, yPred *mat.VecDense) (float64, error)
}

// Score evaluates the metric on n×1 matrices.
func (m Metric) Score(yTrue, yPred mat.Matrix) (float64, error) {
	t, err := ColumnVector(m.Name, yTrue)
	if err != nil {
		return math.NaN(), err
	}
	p, err := ColumnVector(m.Name, yPred)
	if err != nil {
		return math.NaN(), err
	}
	return m.Func(t, p)
}

// Better reports whether score a beats score b. NaN never wins.
func (m Metric) Better(a, b float64) bool {
	if math.IsNaN(a) {
		return false
	}
	if math.IsNaN(b) {
		return true
	}
	if m.GreaterIsBetter {
		return a > b
	}
	return a < b
}

// Loss converts a score to lower-is-better orientation.
func (m Metric) Loss(score float64) float64 {
	if m.GreaterIsBetter {
		return -score
	}
	return score
}

var (
	// RMSEMetric is the default primary metric.
	RMSEMetric = Metric{Name: "rmse", Func: RMSE}
	MSEMetric  = Metric{Name: "mse", Func: MSE}
	MAEMetric  = Metric{Name: "mae", Func: MAE}
	MAPEMetric = Metric{Name: "mape", Func: MAPE}
	R2Metric   = Metric{Name: "r2", GreaterIsBetter: true, Func: R2Score}
)

var byName = map[string]Metric{
	"rmse": RMSEMetric,
	"mse":  MSEMetric,
	"mae":  MAEMetric,
	"mape": MAPEMetric,
	"r2":   R2Metric,
}

// Default returns RMSE, MAE and R², with RMSE primary.
func Default() []Metric {
	return []Metric{RMSEMetric, MAEMetric, R2Metric}
}

// ByName looks up a metric by its lower-case name.
func ByName(name string) (Metric, error) {
	m, ok := byName[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Metric{}, errors.NewValidationError("metric", "must be one of rmse, mse, mae, mape, r2", name)
	}
	return m, nil
}

// ByNames resolves a list of names, preserving order.
func ByNames(names []string) ([]Metric, error) {
	out := make([]Metric, 0, len(names))
	for _, n := range names {
		m, err := ByName(n)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}
