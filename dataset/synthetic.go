package dataset

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/scitune/pkg/errors"
)

// MakeRegression generates a linear problem y = X·w + b + ε with standard
// normal features, weights drawn from [-5, 5] and Gaussian noise of the
// given standard deviation. Only the first informative features get
// non-zero weights, which gives lasso something to select.
func MakeRegression(n, p, informative int, noise float64, rng *rand.Rand) (*Dataset, error) {
	if n <= 0 || p <= 0 {
		return nil, errors.NewValidationError("shape", "n and p must be positive", fmt.Sprintf("%dx%d", n, p))
	}
	if informative <= 0 || informative > p {
		informative = p
	}
	w := make([]float64, p)
	for j := 0; j < informative; j++ {
		w[j] = rng.Float64()*10 - 5
	}
	bias := rng.Float64()*2 - 1

	X := mat.NewDense(n, p, nil)
	y := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		v := bias
		for j := 0; j < p; j++ {
			x := rng.NormFloat64()
			X.Set(i, j, x)
			v += w[j] * x
		}
		y.SetVec(i, v+noise*rng.NormFloat64())
	}
	return New(X, y, nil, "y")
}

// MakeFriedman1 generates Friedman's #1 benchmark: features uniform on
// [0, 1] and y = 10 sin(π x0 x1) + 20 (x2 - 0.5)² + 10 x3 + 5 x4 + ε.
// Features beyond the fifth are noise. p must be at least 5.
func MakeFriedman1(n, p int, noise float64, rng *rand.Rand) (*Dataset, error) {
	if n <= 0 || p < 5 {
		return nil, errors.NewValidationError("shape", "need n > 0 and p >= 5", fmt.Sprintf("%dx%d", n, p))
	}
	X := mat.NewDense(n, p, nil)
	y := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < p; j++ {
			X.Set(i, j, rng.Float64())
		}
		r := X.RawRowView(i)
		v := 10*math.Sin(math.Pi*r[0]*r[1]) + 20*(r[2]-0.5)*(r[2]-0.5) + 10*r[3] + 5*r[4]
		y.SetVec(i, v+noise*rng.NormFloat64())
	}
	return New(X, y, nil, "y")
}
