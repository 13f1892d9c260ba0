// Package linear_model provides binary logistic regression.
package linear_model

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/ppgrid/core/model"
	"github.com/YuminosukeSato/ppgrid/core/parallel"
	"github.com/YuminosukeSato/ppgrid/core/solver"
	"github.com/YuminosukeSato/ppgrid/metrics"
	"github.com/YuminosukeSato/ppgrid/pkg/errors"
)

// LogisticRegression implements binary logistic regression.
// Compatible with scikit-learn's LogisticRegression with the lbfgs solver:
// L2 penalty scaled by 1/C and an unpenalized intercept.
type LogisticRegression struct {
	state *model.StateManager // State management (composition)

	// Hyperparameters
	penalty      string  // Regularization: "l2" or "none"
	C            float64 // Inverse regularization strength (1/alpha)
	fitIntercept bool    // Whether to fit intercept
	maxIter      int     // Maximum iterations
	tol          float64 // Tolerance for stopping

	// Model parameters
	coef_      []float64
	intercept_ float64
	classes_   []float64
	nIter_     int
}

// LogisticRegressionOption is a functional option for LogisticRegression
type LogisticRegressionOption func(*LogisticRegression)

// NewLogisticRegression creates a new LogisticRegression classifier
func NewLogisticRegression(opts ...LogisticRegressionOption) *LogisticRegression {
	lr := &LogisticRegression{
		state:        model.NewStateManager(),
		penalty:      "l2",
		C:            1.0,
		fitIntercept: true,
		maxIter:      100,
		tol:          1e-4,
	}

	// Apply options
	for _, opt := range opts {
		opt(lr)
	}
	return lr
}

// WithLRPenalty sets the regularization type
func WithLRPenalty(penalty string) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.penalty = penalty
	}
}

// WithLRC sets the inverse regularization strength
func WithLRC(c float64) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.C = c
	}
}

// WithLogisticFitIntercept sets whether to fit intercept
func WithLogisticFitIntercept(fit bool) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.fitIntercept = fit
	}
}

// WithLRMaxIter sets the maximum number of iterations
func WithLRMaxIter(maxIter int) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.maxIter = maxIter
	}
}

// WithLRTol sets the tolerance for stopping criteria
func WithLRTol(tol float64) LogisticRegressionOption {
	return func(lr *LogisticRegression) {
		lr.tol = tol
	}
}

// Fit trains the logistic regression model. Both classes must be present.
func (lr *LogisticRegression) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "LogisticRegression.Fit")

	if lr.C <= 0 {
		return errors.NewValueError("LogisticRegression.Fit", fmt.Sprintf("C must be positive, got %v", lr.C))
	}
	if lr.penalty != "l2" && lr.penalty != "none" {
		return errors.NewValueError("LogisticRegression.Fit", fmt.Sprintf("unsupported penalty %q", lr.penalty))
	}
	nSamples, nFeatures, targets, err := model.CheckFitInput("LogisticRegression.Fit", X, y)
	if err != nil {
		return err
	}
	classes := model.Classes(targets)
	if len(classes) < 2 {
		return errors.Wrapf(errors.ErrSingleClass, "LogisticRegression.Fit: got only class %v", classes)
	}
	if len(classes) > 2 {
		return errors.NewValueError("LogisticRegression.Fit", fmt.Sprintf("binary targets required, got %d classes", len(classes)))
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

	// w[nFeatures] is the intercept and is never penalized
	dim := nFeatures
	if lr.fitIntercept {
		dim++
	}
	obj := func(w, grad []float64) float64 {
		var loss float64
		if grad != nil {
			for j := range grad {
				grad[j] = 0
			}
		}
		if lr.penalty == "l2" {
			loss = 0.5 * floats.Dot(w[:nFeatures], w[:nFeatures])
			if grad != nil {
				copy(grad[:nFeatures], w[:nFeatures])
			}
		}
		for i, x := range rows {
			z := floats.Dot(w[:nFeatures], x)
			if lr.fitIntercept {
				z += w[nFeatures]
			}
			m := signs[i] * z
			loss += lr.C * softplus(-m)
			if grad != nil {
				coeff := -lr.C * signs[i] * sigmoid(-m)
				floats.AddScaled(grad[:nFeatures], coeff, x)
				if lr.fitIntercept {
					grad[nFeatures] += coeff
				}
			}
		}
		return loss
	}

	res, err := solver.MinimizeLBFGS("LogisticRegression", obj, make([]float64, dim), lr.maxIter, lr.tol)
	if err != nil {
		return err
	}

	lr.coef_ = append([]float64(nil), res.X[:nFeatures]...)
	lr.intercept_ = 0
	if lr.fitIntercept {
		lr.intercept_ = res.X[nFeatures]
	}
	lr.classes_ = classes
	lr.nIter_ = res.Iterations
	lr.state.SetFitted(nFeatures)
	return nil
}

// PredictProba returns an n×2 matrix of class probabilities, columns in
// class order.
func (lr *LogisticRegression) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if err := lr.state.RequireFitted("LogisticRegression", "PredictProba"); err != nil {
		return nil, err
	}
	nSamples, nFeatures := X.Dims()
	if err := lr.state.RequireFeatures("LogisticRegression.PredictProba", nFeatures); err != nil {
		return nil, err
	}

	proba := mat.NewDense(nSamples, 2, nil)
	parallel.ParallelizeWithThreshold(nSamples, 1000, func(start, end int) {
		x := make([]float64, nFeatures)
		for i := start; i < end; i++ {
			mat.Row(x, i, X)
			p := sigmoid(floats.Dot(lr.coef_, x) + lr.intercept_)
			proba.Set(i, 0, 1-p)
			proba.Set(i, 1, p)
		}
	})
	return proba, nil
}

// Predict returns the predicted class for every row of X.
func (lr *LogisticRegression) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := lr.PredictProba(X)
	if err != nil {
		return nil, err
	}
	n, _ := proba.Dims()
	pred := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		if proba.At(i, 1) > 0.5 {
			pred.Set(i, 0, lr.classes_[1])
		} else {
			pred.Set(i, 0, lr.classes_[0])
		}
	}
	return pred, nil
}

// Score returns the mean accuracy on the given test data and labels
func (lr *LogisticRegression) Score(X, y mat.Matrix) (float64, error) {
	pred, err := lr.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.AccuracyMatrix(y, pred)
}

// Report returns the filter metrics on X and y.
func (lr *LogisticRegression) Report(X, y mat.Matrix) (map[string]float64, error) {
	pred, err := lr.Predict(X)
	if err != nil {
		return nil, err
	}
	return metrics.BinaryReport(y, pred)
}

// Coef returns the learned weights.
func (lr *LogisticRegression) Coef() []float64 {
	return append([]float64(nil), lr.coef_...)
}

// Intercept returns the learned intercept.
func (lr *LogisticRegression) Intercept() float64 {
	return lr.intercept_
}

// NIter returns the number of solver iterations used by the last Fit.
func (lr *LogisticRegression) NIter() int {
	return lr.nIter_
}

// GetParams returns the model hyperparameters
func (lr *LogisticRegression) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"penalty":       lr.penalty,
		"C":             lr.C,
		"fit_intercept": lr.fitIntercept,
		"max_iter":      lr.maxIter,
		"tol":           lr.tol,
	}
}

// SetParams sets the model hyperparameters
func (lr *LogisticRegression) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		var ok bool
		switch key {
		case "penalty":
			lr.penalty, ok = value.(string)
		case "C":
			lr.C, ok = value.(float64)
		case "fit_intercept":
			lr.fitIntercept, ok = value.(bool)
		case "max_iter":
			lr.maxIter, ok = value.(int)
		case "tol":
			lr.tol, ok = value.(float64)
		default:
			return errors.NewValueError("LogisticRegression.SetParams", fmt.Sprintf("unknown parameter: %s", key))
		}
		if !ok {
			return errors.NewValueError("LogisticRegression.SetParams", fmt.Sprintf("invalid type %T for %s", value, key))
		}
	}
	return nil
}

// sigmoid computes the sigmoid function
func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1.0 / (1.0 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1.0 + e)
}

// softplus computes log(1 + exp(z)) without overflow.
func softplus(z float64) float64 {
	if z > 0 {
		return z + math.Log1p(math.Exp(-z))
	}
	return math.Log1p(math.Exp(z))
}
