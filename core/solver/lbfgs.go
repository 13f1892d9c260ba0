// Package solver wraps gonum's quasi-Newton optimizer for the model
// families that minimize a smooth loss.
package solver

import (
	"gonum.org/v1/gonum/optimize"

	"github.com/YuminosukeSato/ppgrid/pkg/errors"
)

// Objective returns the loss at w and writes its gradient into grad.
type Objective func(w, grad []float64) float64

// Result is the outcome of a minimization.
type Result struct {
	X          []float64
	Loss       float64
	Iterations int
	Converged  bool
}

// MinimizeLBFGS minimizes obj starting from x0 with at most maxIter major
// iterations. Hitting the iteration limit or a line-search failure is not
// an error: the best point found is returned and a ConvergenceWarning is
// emitted under algorithm.
func MinimizeLBFGS(algorithm string, obj Objective, x0 []float64, maxIter int, tol float64) (*Result, error) {
	problem := optimize.Problem{
		Func: func(w []float64) float64 {
			return obj(w, nil)
		},
		Grad: func(grad, w []float64) {
			obj(w, grad)
		},
	}
	settings := &optimize.Settings{
		MajorIterations:   maxIter,
		GradientThreshold: tol,
	}

	res, err := optimize.Minimize(problem, x0, settings, &optimize.LBFGS{})
	if res == nil {
		return nil, errors.NewModelError(algorithm, "optimization failed", err)
	}
	if err := errors.CheckNumericalStability(algorithm, res.X, res.MajorIterations); err != nil {
		return nil, err
	}

	out := &Result{
		X:          res.X,
		Loss:       res.F,
		Iterations: res.MajorIterations,
		Converged:  err == nil && res.Status != optimize.IterationLimit,
	}
	if !out.Converged {
		msg := ""
		if err != nil {
			msg = err.Error()
		}
		errors.Warn(errors.NewConvergenceWarning(algorithm, out.Iterations, msg))
	}
	return out, nil
}
