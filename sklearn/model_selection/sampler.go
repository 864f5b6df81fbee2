package model_selection

import (
	"math"
	"math/rand/v2"
	"maps"
	"slices"

	"github.com/YuminosukeSato/scitune/core/model"
	"github.com/YuminosukeSato/scitune/pkg/errors"
)

// Distribution is the range one hyperparameter is drawn from in a random
// search.
type Distribution interface {
	Sample(rng *rand.Rand) float64
	Contains(v float64) bool
	Validate(name string) error
}

// Uniform draws from [Min, Max].
type Uniform struct {
	Min, Max float64
}

func (u Uniform) Sample(rng *rand.Rand) float64 {
	v := u.Min + rng.Float64()*(u.Max-u.Min)
	return math.Min(math.Max(v, u.Min), u.Max)
}
func (u Uniform) Contains(v float64) bool { return v >= u.Min && v <= u.Max }

// Validate rejects ranges whose width Max-Min is not a finite float64.
func (u Uniform) Validate(name string) error {
	if !(u.Min <= u.Max) || math.IsInf(u.Max-u.Min, 0) {
		return errors.NewValidationError(name, "uniform range needs finite min <= max with a finite width", [2]float64{u.Min, u.Max})
	}
	return nil
}

// LogUniform draws so that log(v) is uniform on [log Min, log Max].
type LogUniform struct {
	Min, Max float64
}

func (u LogUniform) Sample(rng *rand.Rand) float64 {
	lo, hi := math.Log(u.Min), math.Log(u.Max)
	v := math.Exp(lo + rng.Float64()*(hi-lo))
	// exp(log(x)) may land an ulp outside the range
	return math.Min(math.Max(v, u.Min), u.Max)
}
func (u LogUniform) Contains(v float64) bool { return v >= u.Min && v <= u.Max }
func (u LogUniform) Validate(name string) error {
	if !(u.Min > 0 && u.Min <= u.Max) || math.IsInf(u.Max, 0) {
		return errors.NewValidationError(name, "log-uniform range needs 0 < min <= max", [2]float64{u.Min, u.Max})
	}
	return nil
}

// IntUniform draws an integer from [Min, Max], both inclusive.
type IntUniform struct {
	Min, Max int
}

func (u IntUniform) Sample(rng *rand.Rand) float64 {
	return float64(u.Min + rng.IntN(u.Max-u.Min+1))
}
func (u IntUniform) Contains(v float64) bool {
	return v == math.Trunc(v) && v >= float64(u.Min) && v <= float64(u.Max)
}
func (u IntUniform) Validate(name string) error {
	if u.Min > u.Max {
		return errors.NewValidationError(name, "integer range needs min <= max", [2]int{u.Min, u.Max})
	}
	// Max-Min+1 が int に収まること
	if span := u.Max - u.Min; span < 0 || span == math.MaxInt {
		return errors.NewValidationError(name, "integer range is too wide", [2]int{u.Min, u.Max})
	}
	return nil
}

// Choice draws one of Values with equal probability.
type Choice struct {
	Values []float64
}

func (c Choice) Sample(rng *rand.Rand) float64 { return c.Values[rng.IntN(len(c.Values))] }
func (c Choice) Contains(v float64) bool       { return slices.Contains(c.Values, v) }
func (c Choice) Validate(name string) error {
	if len(c.Values) == 0 {
		return errors.NewValidationError(name, "choice needs at least one value", c.Values)
	}
	if slices.ContainsFunc(c.Values, func(v float64) bool { return math.IsNaN(v) || math.IsInf(v, 0) }) {
		return errors.NewValidationError(name, "choice values must be finite", c.Values)
	}
	return nil
}

// ParameterSampler draws budget candidates from space. Duplicate draws are
// dropped, so fewer than budget candidates may be returned.
func ParameterSampler(space map[string]Distribution, budget int, rng *rand.Rand) ([]model.Params, error) {
	if len(space) == 0 {
		return nil, errors.NewEmptyGridError("ParameterSampler", "no parameters")
	}
	if budget <= 0 {
		return nil, errors.NewEmptyGridError("ParameterSampler", "budget must be positive")
	}
	keys := slices.Sorted(maps.Keys(space))
	for _, k := range keys {
		if space[k] == nil {
			return nil, errors.NewValidationError(k, "distribution is nil", nil)
		}
		if err := space[k].Validate(k); err != nil {
			return nil, err
		}
	}

	seen := make(map[string]struct{}, budget)
	out := make([]model.Params, 0, budget)
	for range budget {
		p := make(model.Params, len(keys))
		for _, k := range keys {
			p[k] = space[k].Sample(rng)
		}
		key := p.String()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, p)
	}
	return out, nil
}
