package preprocessing

import (
	"sync/atomic"

	"gonum.org/v1/gonum/mat"
)

// Identity passes features through unchanged. It holds no statistics; it
// only remembers whether FitTransform ran so that the registry can tell a
// variant used in training from one that never was.
type Identity struct {
	fitted atomic.Bool
}

// NewIdentity creates an Identity transform.
func NewIdentity() *Identity {
	return &Identity{}
}

// FitTransform returns X unchanged.
func (t *Identity) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	t.fitted.Store(true)
	return X, nil
}

// Transform returns X unchanged.
func (t *Identity) Transform(X mat.Matrix) (mat.Matrix, error) {
	return X, nil
}

// IsFitted implements model.Transformer.
func (t *Identity) IsFitted() bool {
	return t.fitted.Load()
}
