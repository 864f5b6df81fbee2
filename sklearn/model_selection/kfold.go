package model_selection

import (
	"iter"
	"math/rand/v2"
	"slices"

	"github.com/YuminosukeSato/scitune/pkg/errors"
)

// Fold is one resample: the model is fitted on TrainIndices and scored on
// TestIndices.
type Fold struct {
	Repeat       int
	Index        int
	TrainIndices []int
	TestIndices  []int
}

// Resample returns the flat position of the fold within its plan.
func (f Fold) Resample(nSplits int) int {
	return f.Repeat*nSplits + f.Index
}

// Adaptive configures early elimination of inferior candidates.
type Adaptive struct {
	// MinResamples is the number of resamples every candidate gets before
	// the first elimination test.
	MinResamples int
	// Alpha is the significance level of the one-sided paired t-test.
	Alpha float64
	// Complete keeps resampling the last survivor up to the full budget.
	Complete bool
}

// FoldPlan is a lazily generated sequence of k-fold partitions over n rows.
type FoldPlan struct {
	N        int
	NSplits  int
	NRepeats int
	// Adaptive is non-nil when the search should eliminate candidates
	// between resamples.
	Adaptive *Adaptive

	seeds []uint64
}

// Budget returns the total number of resamples in the plan.
func (p *FoldPlan) Budget() int {
	return p.NSplits * p.NRepeats
}

// All yields every fold in order. Each repetition's shuffle is drawn only
// when the sequence reaches it, and iterating twice yields the same folds.
func (p *FoldPlan) All() iter.Seq[Fold] {
	return func(yield func(Fold) bool) {
		for r := 0; r < p.NRepeats; r++ {
			rng := rand.New(rand.NewPCG(p.seeds[r], uint64(r)))
			perm := rng.Perm(p.N)
			for i, test := range partition(perm, p.NSplits) {
				f := Fold{
					Repeat:       r,
					Index:        i,
					TestIndices:  test,
					TrainIndices: complement(p.N, test),
				}
				if !yield(f) {
					return
				}
			}
		}
	}
}

// partition cuts perm into k contiguous groups. The first len(perm)%k
// groups hold one extra element. Each group is returned sorted.
func partition(perm []int, k int) [][]int {
	n := len(perm)
	base, extra := n/k, n%k
	groups := make([][]int, k)
	start := 0
	for i := range groups {
		size := base
		if i < extra {
			size++
		}
		g := slices.Clone(perm[start : start+size])
		slices.Sort(g)
		groups[i] = g
		start += size
	}
	return groups
}

// complement returns [0, n) minus the sorted indices in held.
func complement(n int, held []int) []int {
	out := make([]int, 0, n-len(held))
	j := 0
	for i := 0; i < n; i++ {
		if j < len(held) && held[j] == i {
			j++
			continue
		}
		out = append(out, i)
	}
	return out
}

// Resampler plans the resamples of a search over n training rows.
type Resampler interface {
	Plan(n int, rng *rand.Rand) (*FoldPlan, error)
}

// KFold shuffles once and cuts the rows into NSplits folds.
type KFold struct {
	NSplits int
}

// Plan implements Resampler.
func (k KFold) Plan(n int, rng *rand.Rand) (*FoldPlan, error) {
	return RepeatedKFold{NSplits: k.NSplits, NRepeats: 1}.Plan(n, rng)
}

// RepeatedKFold reshuffles and repeats k-fold NRepeats times.
type RepeatedKFold struct {
	NSplits  int
	NRepeats int
}

// Plan implements Resampler.
func (k RepeatedKFold) Plan(n int, rng *rand.Rand) (*FoldPlan, error) {
	if k.NSplits <= 1 || k.NSplits > n {
		return nil, errors.NewInvalidFoldCountError("KFold.Plan", k.NSplits, n)
	}
	if k.NRepeats < 1 {
		return nil, errors.NewValidationError("n_repeats", "must be at least 1", k.NRepeats)
	}
	seeds := make([]uint64, k.NRepeats)
	for i := range seeds {
		seeds[i] = rng.Uint64()
	}
	return &FoldPlan{N: n, NSplits: k.NSplits, NRepeats: k.NRepeats, seeds: seeds}, nil
}

// AdaptiveKFold produces the same folds as RepeatedKFold and asks the
// search to drop candidates that are significantly worse than the leader
// once MinResamples resamples are in.
type AdaptiveKFold struct {
	NSplits      int
	NRepeats     int
	MinResamples int
	Alpha        float64
	Complete     bool
}

// Plan implements Resampler.
func (k AdaptiveKFold) Plan(n int, rng *rand.Rand) (*FoldPlan, error) {
	plan, err := RepeatedKFold{NSplits: k.NSplits, NRepeats: k.NRepeats}.Plan(n, rng)
	if err != nil {
		return nil, err
	}
	if k.MinResamples < 2 || k.MinResamples > plan.Budget() {
		return nil, errors.NewValidationError("min_resamples", "must be in [2, n_splits*n_repeats]", k.MinResamples)
	}
	if !(k.Alpha > 0 && k.Alpha < 1) {
		return nil, errors.NewValidationError("alpha", "must be in (0, 1)", k.Alpha)
	}
	plan.Adaptive = &Adaptive{MinResamples: k.MinResamples, Alpha: k.Alpha, Complete: k.Complete}
	return plan, nil
}
