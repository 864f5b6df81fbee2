package model_selection

import (
	"maps"
	"slices"

	"github.com/YuminosukeSato/scitune/core/model"
	"github.com/YuminosukeSato/scitune/pkg/errors"
)

// ParameterGrid expands a full factorial grid. Keys are expanded in sorted
// order with the last key varying fastest; values keep their listed order.
//
//	ParameterGrid(map[string][]float64{"alpha": {0.1, 1}, "max_iter": {100, 1000}})
//	// alpha=0.1, max_iter=100
//	// alpha=0.1, max_iter=1000
//	// alpha=1, max_iter=100
//	// alpha=1, max_iter=1000
func ParameterGrid(space map[string][]float64) ([]model.Params, error) {
	if len(space) == 0 {
		return nil, errors.NewEmptyGridError("ParameterGrid", "no parameters")
	}
	keys := slices.Sorted(maps.Keys(space))
	total := 1
	for _, k := range keys {
		if len(space[k]) == 0 {
			return nil, errors.NewEmptyGridError("ParameterGrid", "parameter "+k+" has no values")
		}
		total *= len(space[k])
	}

	out := make([]model.Params, 0, total)
	idx := make([]int, len(keys))
	for {
		p := make(model.Params, len(keys))
		for i, k := range keys {
			p[k] = space[k][idx[i]]
		}
		out = append(out, p)

		// odometer
		i := len(keys) - 1
		for ; i >= 0; i-- {
			idx[i]++
			if idx[i] < len(space[keys[i]]) {
				break
			}
			idx[i] = 0
		}
		if i < 0 {
			return out, nil
		}
	}
}
