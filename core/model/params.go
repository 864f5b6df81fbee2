package model

import (
	"maps"
	"math"
	"slices"
	"strconv"
	"strings"

	scierrors "github.com/YuminosukeSato/scitune/pkg/errors"
)

// Params is one hyperparameter candidate: a value per parameter name.
// Integer and boolean hyperparameters are stored as float64 and read back
// with Int and Bool.
type Params map[string]float64

// Get returns the value of name, or dflt when it is not set.
func (p Params) Get(name string, dflt float64) float64 {
	if v, ok := p[name]; ok {
		return v
	}
	return dflt
}

// Int returns the value of name rounded to the nearest integer.
func (p Params) Int(name string, dflt int) int {
	if v, ok := p[name]; ok {
		return int(math.Round(v))
	}
	return dflt
}

// Bool treats any non-zero value as true.
func (p Params) Bool(name string, dflt bool) bool {
	if v, ok := p[name]; ok {
		return v != 0
	}
	return dflt
}

// Keys returns the parameter names in sorted order.
func (p Params) Keys() []string {
	return slices.Sorted(maps.Keys(p))
}

// Clone returns an independent copy.
func (p Params) Clone() Params {
	return maps.Clone(p)
}

// String returns the canonical form "a=1, b=0.5" with sorted keys. Two
// candidates are duplicates exactly when their canonical strings match.
func (p Params) String() string {
	var b strings.Builder
	for i, k := range p.Keys() {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(strconv.FormatFloat(p[k], 'g', -1, 64))
	}
	return b.String()
}

// WithDefaults returns defaults overlaid with p. A name in p that is not a
// key of defaults is rejected, since it would otherwise be silently ignored.
func (p Params) WithDefaults(defaults Params) (Params, error) {
	out := defaults.Clone()
	if out == nil {
		out = Params{}
	}
	for _, k := range p.Keys() {
		if _, ok := defaults[k]; !ok {
			return nil, scierrors.NewValidationError(k, "unknown hyperparameter (known: "+strings.Join(defaults.Keys(), ", ")+")", p[k])
		}
		out[k] = p[k]
	}
	return out, nil
}
