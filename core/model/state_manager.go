package model

import (
	"sync"

	scierrors "github.com/YuminosukeSato/scitune/pkg/errors"
)

// StateManager tracks whether a regressor has been fitted and the shape it
// was fitted on. It is safe for concurrent use, so a refit model can be
// shared between goroutines calling Predict.
type StateManager struct {
	mu        sync.RWMutex
	fitted    bool
	nFeatures int
	nSamples  int
}

// NewStateManager creates a new StateManager instance.
func NewStateManager() *StateManager {
	return &StateManager{}
}

// IsFitted returns whether the model has been fitted.
func (s *StateManager) IsFitted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fitted
}

// SetFitted marks the model as fitted.
func (s *StateManager) SetFitted() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fitted = true
}

// Reset resets the fitted state.
func (s *StateManager) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fitted = false
	s.nFeatures = 0
	s.nSamples = 0
}

// SetDimensions sets the number of features and samples seen during fitting.
func (s *StateManager) SetDimensions(nFeatures, nSamples int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nFeatures = nFeatures
	s.nSamples = nSamples
}

// GetDimensions returns the number of features and samples seen during fitting.
func (s *StateManager) GetDimensions() (nFeatures, nSamples int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nFeatures, s.nSamples
}

// RequireFitted returns a NotFittedError naming model and method if the
// model has not been fitted.
func (s *StateManager) RequireFitted(model, method string) error {
	if !s.IsFitted() {
		return scierrors.NewNotFittedError(model, method)
	}
	return nil
}

// CheckFeatures returns a DimensionError when X has a different number of
// columns than the training data.
func (s *StateManager) CheckFeatures(op string, cols int) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if cols != s.nFeatures {
		return scierrors.NewDimensionError(op, s.nFeatures, cols, 1)
	}
	return nil
}
