package model

import (
	"sync"

	"github.com/YuminosukeSato/ppgrid/pkg/errors"
)

// StateManager tracks whether a model or transform has been fitted, and the
// number of features it was fitted on, in a thread-safe manner.
type StateManager struct {
	mu sync.RWMutex

	fitted    bool
	nFeatures int
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

// SetFitted marks the model as fitted on nFeatures columns.
func (s *StateManager) SetFitted(nFeatures int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fitted = true
	s.nFeatures = nFeatures
}

// Reset returns the manager to the unfitted state.
func (s *StateManager) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fitted = false
	s.nFeatures = 0
}

// RequireFitted returns a NotFittedError naming the model and method when
// the model has not been fitted yet.
func (s *StateManager) RequireFitted(modelName, method string) error {
	if !s.IsFitted() {
		return errors.NewNotFittedError(modelName, method)
	}
	return nil
}

// RequireFeatures returns a DimensionError when X does not have the number
// of columns seen during fitting.
func (s *StateManager) RequireFeatures(op string, got int) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if got != s.nFeatures {
		return errors.NewDimensionError(op, s.nFeatures, got, 1)
	}
	return nil
}
