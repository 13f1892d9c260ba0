package preprocessing

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/ppgrid/core/model"
	"github.com/YuminosukeSato/ppgrid/pkg/errors"
)

// StandardScaler centers every feature and divides it by its standard
// deviation, with statistics learned from the data it was fit on.
type StandardScaler struct {
	state *model.StateManager

	// Mean is the per-feature mean seen during fitting.
	Mean []float64
	// Scale is the per-feature population standard deviation (1 for
	// constant features).
	Scale []float64
}

// NewStandardScaler creates an unfitted StandardScaler.
func NewStandardScaler() *StandardScaler {
	return &StandardScaler{state: model.NewStateManager()}
}

// IsFitted implements model.Transformer.
func (s *StandardScaler) IsFitted() bool {
	return s.state.IsFitted()
}

// FitTransform learns mean and scale from X and returns the scaled X.
func (s *StandardScaler) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return nil, errors.NewModelError("StandardScaler.FitTransform", "empty data", errors.ErrEmptyData)
	}

	s.Mean = make([]float64, c)
	s.Scale = make([]float64, c)
	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, X)
		mean, variance := stat.PopMeanVariance(col, nil)
		s.Mean[j] = mean
		s.Scale[j] = math.Sqrt(variance)
		if s.Scale[j] < 1e-8 {
			s.Scale[j] = 1.0
		}
	}
	s.state.SetFitted(c)
	return s.Transform(X)
}

// Transform scales X with the retained statistics.
func (s *StandardScaler) Transform(X mat.Matrix) (mat.Matrix, error) {
	if err := s.state.RequireFitted("StandardScaler", "Transform"); err != nil {
		return nil, err
	}
	r, c := X.Dims()
	if err := s.state.RequireFeatures("StandardScaler.Transform", c); err != nil {
		return nil, errors.WrapConfigurationError("StandardScaler.Transform", "unsupported feature dimensionality", err)
	}

	result := mat.NewDense(r, c, nil)
	result.Apply(func(i, j int, v float64) float64 {
		return (v - s.Mean[j]) / s.Scale[j]
	}, X)
	return result, nil
}

// String returns a short description.
func (s *StandardScaler) String() string {
	if !s.IsFitted() {
		return "StandardScaler()"
	}
	return fmt.Sprintf("StandardScaler(n_features=%d)", len(s.Mean))
}

// MinMaxScaler maps every feature onto [0, 1] using the range seen during
// fitting. Values outside that range map outside [0, 1].
type MinMaxScaler struct {
	state *model.StateManager

	// DataMin is the per-feature minimum seen during fitting.
	DataMin []float64
	// DataRange is the per-feature max-min (1 for constant features).
	DataRange []float64
}

// NewMinMaxScaler creates an unfitted MinMaxScaler.
func NewMinMaxScaler() *MinMaxScaler {
	return &MinMaxScaler{state: model.NewStateManager()}
}

// IsFitted implements model.Transformer.
func (m *MinMaxScaler) IsFitted() bool {
	return m.state.IsFitted()
}

// FitTransform learns the per-feature range from X and returns the scaled X.
func (m *MinMaxScaler) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return nil, errors.NewModelError("MinMaxScaler.FitTransform", "empty data", errors.ErrEmptyData)
	}

	m.DataMin = make([]float64, c)
	m.DataRange = make([]float64, c)
	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, X)
		lo, hi := col[0], col[0]
		for _, v := range col[1:] {
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
		m.DataMin[j] = lo
		m.DataRange[j] = hi - lo
		if m.DataRange[j] == 0 {
			m.DataRange[j] = 1
		}
	}
	m.state.SetFitted(c)
	return m.Transform(X)
}

// Transform scales X with the retained range.
func (m *MinMaxScaler) Transform(X mat.Matrix) (mat.Matrix, error) {
	if err := m.state.RequireFitted("MinMaxScaler", "Transform"); err != nil {
		return nil, err
	}
	r, c := X.Dims()
	if err := m.state.RequireFeatures("MinMaxScaler.Transform", c); err != nil {
		return nil, errors.WrapConfigurationError("MinMaxScaler.Transform", "unsupported feature dimensionality", err)
	}

	result := mat.NewDense(r, c, nil)
	result.Apply(func(i, j int, v float64) float64 {
		return (v - m.DataMin[j]) / m.DataRange[j]
	}, X)
	return result, nil
}
