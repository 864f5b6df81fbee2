package model

import (
	"maps"
	"slices"
	"strings"
	"sync"

	scierrors "github.com/YuminosukeSato/scitune/pkg/errors"
)

// Family is a named model backend. New builds an unfitted Regressor from a
// candidate; seed drives any randomness inside the regressor.
type Family interface {
	Name() string
	Defaults() Params
	New(params Params, seed uint64) (Regressor, error)
}

// FamilyFunc adapts a constructor into a Family.
type FamilyFunc struct {
	FamilyName string
	Params     Params
	Build      func(params Params, seed uint64) (Regressor, error)
}

// Name implements Family.
func (f FamilyFunc) Name() string { return f.FamilyName }

// Defaults implements Family.
func (f FamilyFunc) Defaults() Params { return f.Params.Clone() }

// New implements Family. Unknown parameter names are rejected before Build
// is called.
func (f FamilyFunc) New(params Params, seed uint64) (Regressor, error) {
	full, err := params.WithDefaults(f.Params)
	if err != nil {
		return nil, scierrors.Wrapf(err, "family %s", f.FamilyName)
	}
	return f.Build(full, seed)
}

// Registry maps family names to Family implementations.
type Registry struct {
	mu       sync.RWMutex
	families map[string]Family
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{families: make(map[string]Family)}
}

// Register adds f. Registering a name twice is an error.
func (r *Registry) Register(f Family) error {
	name := f.Name()
	if strings.TrimSpace(name) == "" {
		return scierrors.NewValidationError("family", "name must not be empty", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.families[name]; dup {
		return scierrors.NewValidationError("family", "already registered", name)
	}
	r.families[name] = f
	return nil
}

// MustRegister is Register that panics on error, for package-level setup.
func (r *Registry) MustRegister(f Family) {
	if err := r.Register(f); err != nil {
		panic(err)
	}
}

// Get returns the family registered under name.
func (r *Registry) Get(name string) (Family, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.families[name]
	if !ok {
		return nil, scierrors.NewValidationError("family", "unknown model family (registered: "+strings.Join(r.namesLocked(), ", ")+")", name)
	}
	return f, nil
}

// Names returns the registered family names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.namesLocked()
}

func (r *Registry) namesLocked() []string {
	return slices.Sorted(maps.Keys(r.families))
}
