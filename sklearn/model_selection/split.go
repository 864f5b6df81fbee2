// Package model_selection implements holdout splitting, fold planning,
// hyperparameter grids and the cross-validated search that ties them
// together.
package model_selection

import (
	"math"
	"math/rand/v2"
	"slices"

	"github.com/YuminosukeSato/scitune/dataset"
	"github.com/YuminosukeSato/scitune/pkg/errors"
)

// NewRand returns the PCG-backed source used for splits and candidate
// sampling.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, 0x73706c6974))
}

// Split holds disjoint row indices for training and evaluation, each in
// ascending order.
type Split struct {
	Train []int
	Test  []int
}

// TrainSize resolves a requested training size against n samples.
// Values in (0, 1) are fractions rounded down (at least one row); values
// >= 1 are absolute counts.
func TrainSize(n int, trainSize float64) (int, error) {
	var k int
	switch {
	case math.IsNaN(trainSize) || trainSize <= 0:
		k = 0
	case trainSize < 1:
		k = max(1, int(math.Floor(trainSize*float64(n))))
	default:
		k = int(math.Floor(trainSize))
	}
	if k <= 0 || k >= n {
		return 0, errors.NewInvalidSizeError("TrainTestSplit", k, n)
	}
	return k, nil
}

// TrainTestSplit samples the training rows uniformly without replacement;
// the evaluation rows are the complement.
func TrainTestSplit(n int, trainSize float64, rng *rand.Rand) (Split, error) {
	k, err := TrainSize(n, trainSize)
	if err != nil {
		return Split{}, err
	}
	perm := rng.Perm(n)
	train := slices.Clone(perm[:k])
	test := slices.Clone(perm[k:])
	slices.Sort(train)
	slices.Sort(test)
	return Split{Train: train, Test: test}, nil
}

// SplitDataset applies TrainTestSplit to ds.
func SplitDataset(ds *dataset.Dataset, trainSize float64, rng *rand.Rand) (train, test *dataset.Dataset, err error) {
	s, err := TrainTestSplit(ds.Len(), trainSize, rng)
	if err != nil {
		return nil, nil, err
	}
	return ds.Subset(s.Train), ds.Subset(s.Test), nil
}
