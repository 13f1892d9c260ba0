// Package svm provides linear support vector classification.
package svm

import (
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/ppgrid/core/model"
	"github.com/YuminosukeSato/ppgrid/core/solver"
	"github.com/YuminosukeSato/ppgrid/metrics"
	"github.com/YuminosukeSato/ppgrid/pkg/errors"
)

// LinearSVC is a binary linear support vector classifier trained in the
// primal. Compatible with scikit-learn's LinearSVC defaults: squared hinge
// loss, L2 penalty, C=1 and an intercept that is penalized like a weight on
// a constant feature.
type LinearSVC struct {
	state *model.StateManager

	// Hyperparameters
	C                float64
	loss             string // "squared_hinge" or "hinge"
	fitIntercept     bool
	interceptScaling float64
	maxIter          int
	tol              float64
	randomState      int64

	// Model parameters
	coef_      []float64
	intercept_ float64
	classes_   []float64
	nIter_     int
}

// LinearSVCOption is a functional option for LinearSVC.
type LinearSVCOption func(*LinearSVC)

// NewLinearSVC creates a LinearSVC with scikit-learn's defaults and
// random_state 0.
func NewLinearSVC(opts ...LinearSVCOption) *LinearSVC {
	svc := &LinearSVC{
		state:            model.NewStateManager(),
		C:                1.0,
		loss:             "squared_hinge",
		fitIntercept:     true,
		interceptScaling: 1.0,
		maxIter:          1000,
		tol:              1e-4,
		randomState:      0,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// WithSVCC sets the inverse regularization strength.
func WithSVCC(c float64) LinearSVCOption {
	return func(s *LinearSVC) {
		s.C = c
	}
}

// WithSVCLoss sets the loss: "squared_hinge" or "hinge".
func WithSVCLoss(loss string) LinearSVCOption {
	return func(s *LinearSVC) {
		s.loss = loss
	}
}

// WithSVCFitIntercept sets whether to fit an intercept.
func WithSVCFitIntercept(fit bool) LinearSVCOption {
	return func(s *LinearSVC) {
		s.fitIntercept = fit
	}
}

// WithSVCMaxIter sets the maximum number of solver iterations.
func WithSVCMaxIter(maxIter int) LinearSVCOption {
	return func(s *LinearSVC) {
		s.maxIter = maxIter
	}
}

// WithSVCTol sets the gradient tolerance.
func WithSVCTol(tol float64) LinearSVCOption {
	return func(s *LinearSVC) {
		s.tol = tol
	}
}

// WithSVCRandomState sets the seed of the initial weights.
func WithSVCRandomState(seed int64) LinearSVCOption {
	return func(s *LinearSVC) {
		s.randomState = seed
	}
}

// Fit trains the classifier. Both classes must be present in y.
func (s *LinearSVC) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "LinearSVC.Fit")

	if s.C <= 0 {
		return errors.NewValueError("LinearSVC.Fit", fmt.Sprintf("C must be positive, got %v", s.C))
	}
	if s.loss != "squared_hinge" && s.loss != "hinge" {
		return errors.NewValueError("LinearSVC.Fit", fmt.Sprintf("unsupported loss %q", s.loss))
	}
	nSamples, nFeatures, targets, err := model.CheckFitInput("LinearSVC.Fit", X, y)
	if err != nil {
		return err
	}
	classes := model.Classes(targets)
	if len(classes) < 2 {
		return errors.Wrapf(errors.ErrSingleClass, "LinearSVC.Fit: got only class %v", classes)
	}
	if len(classes) > 2 {
		return errors.NewValueError("LinearSVC.Fit", fmt.Sprintf("binary targets required, got %d classes", len(classes)))
	}

	signs := make([]float64, nSamples)
	for i, v := range targets {
		signs[i] = -1
		if v == classes[1] {
			signs[i] = 1
		}
	}
	rows := make([][]float64, nSamples)
	for i := range rows {
		rows[i] = mat.Row(nil, i, X)
	}

	// w[nFeatures] is the intercept weight on a constant column of
	// interceptScaling.
	dim := nFeatures
	if s.fitIntercept {
		dim++
	}
	rng := rand.New(rand.NewSource(s.randomState))
	w0 := make([]float64, dim)
	for j := range w0 {
		w0[j] = (rng.Float64() - 0.5) * 1e-3
	}

	obj := func(w, grad []float64) float64 {
		loss := 0.5 * floats.Dot(w, w)
		if grad != nil {
			copy(grad, w)
		}
		for i, x := range rows {
			margin := signs[i] * s.decision(w, x, nFeatures)
			slack := 1 - margin
			if slack <= 0 {
				continue
			}
			var coeff float64
			if s.loss == "squared_hinge" {
				loss += s.C * slack * slack
				coeff = -2 * s.C * slack * signs[i]
			} else {
				loss += s.C * slack
				coeff = -s.C * signs[i]
			}
			if grad != nil {
				floats.AddScaled(grad[:nFeatures], coeff, x)
				if s.fitIntercept {
					grad[nFeatures] += coeff * s.interceptScaling
				}
			}
		}
		return loss
	}

	res, err := solver.MinimizeLBFGS("LinearSVC", obj, w0, s.maxIter, s.tol)
	if err != nil {
		return err
	}

	s.coef_ = append([]float64(nil), res.X[:nFeatures]...)
	s.intercept_ = 0
	if s.fitIntercept {
		s.intercept_ = res.X[nFeatures] * s.interceptScaling
	}
	s.classes_ = classes
	s.nIter_ = res.Iterations
	s.state.SetFitted(nFeatures)
	return nil
}

func (s *LinearSVC) decision(w, x []float64, nFeatures int) float64 {
	z := floats.Dot(w[:nFeatures], x)
	if s.fitIntercept {
		z += w[nFeatures] * s.interceptScaling
	}
	return z
}

// DecisionFunction returns the signed distance of every row of X to the
// separating hyperplane. Positive values predict the larger class.
func (s *LinearSVC) DecisionFunction(X mat.Matrix) (*mat.VecDense, error) {
	if err := s.state.RequireFitted("LinearSVC", "DecisionFunction"); err != nil {
		return nil, err
	}
	nSamples, nFeatures := X.Dims()
	if err := s.state.RequireFeatures("LinearSVC.DecisionFunction", nFeatures); err != nil {
		return nil, err
	}

	scores := mat.NewVecDense(nSamples, nil)
	scores.MulVec(X, mat.NewVecDense(nFeatures, s.coef_))
	scores.AddVec(scores, constVec(nSamples, s.intercept_))
	return scores, nil
}

func constVec(n int, v float64) *mat.VecDense {
	data := make([]float64, n)
	floats.AddConst(v, data)
	return mat.NewVecDense(n, data)
}

// Predict returns the predicted class for every row of X.
func (s *LinearSVC) Predict(X mat.Matrix) (mat.Matrix, error) {
	scores, err := s.DecisionFunction(X)
	if err != nil {
		return nil, err
	}
	n := scores.Len()
	pred := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		if scores.AtVec(i) > 0 {
			pred.Set(i, 0, s.classes_[1])
		} else {
			pred.Set(i, 0, s.classes_[0])
		}
	}
	return pred, nil
}

// Score returns the mean accuracy on X and y.
func (s *LinearSVC) Score(X, y mat.Matrix) (float64, error) {
	pred, err := s.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.AccuracyMatrix(y, pred)
}

// Report returns the filter metrics on X and y.
func (s *LinearSVC) Report(X, y mat.Matrix) (map[string]float64, error) {
	pred, err := s.Predict(X)
	if err != nil {
		return nil, err
	}
	return metrics.BinaryReport(y, pred)
}

// Coef returns the learned weights.
func (s *LinearSVC) Coef() []float64 {
	return append([]float64(nil), s.coef_...)
}

// Intercept returns the learned intercept.
func (s *LinearSVC) Intercept() float64 {
	return s.intercept_
}

// NIter returns the number of solver iterations used by the last Fit.
func (s *LinearSVC) NIter() int {
	return s.nIter_
}

// GetParams returns the hyperparameters.
func (s *LinearSVC) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"C":                 s.C,
		"loss":              s.loss,
		"fit_intercept":     s.fitIntercept,
		"intercept_scaling": s.interceptScaling,
		"max_iter":          s.maxIter,
		"tol":               s.tol,
		"random_state":      s.randomState,
	}
}
