package solver

import (
	"math"
	"testing"

	"github.com/YuminosukeSato/ppgrid/pkg/errors"
)

// quadratic は (w0-3)^2 + 2(w1+1)^2 を最小化する
func quadratic(w, grad []float64) float64 {
	if grad != nil {
		grad[0] = 2 * (w[0] - 3)
		grad[1] = 4 * (w[1] + 1)
	}
	return (w[0]-3)*(w[0]-3) + 2*(w[1]+1)*(w[1]+1)
}

func TestMinimizeLBFGSQuadratic(t *testing.T) {
	res, err := MinimizeLBFGS("quadratic", quadratic, []float64{0, 0}, 100, 1e-8)
	if err != nil {
		t.Fatalf("MinimizeLBFGS: %v", err)
	}
	if math.Abs(res.X[0]-3) > 1e-5 || math.Abs(res.X[1]+1) > 1e-5 {
		t.Errorf("X = %v, want [3 -1]", res.X)
	}
	if !res.Converged {
		t.Error("expected convergence")
	}
}

func TestMinimizeLBFGSIterationLimitWarns(t *testing.T) {
	var warned []error
	errors.SetWarningHandler(func(w error) { warned = append(warned, w) })
	defer errors.SetWarningHandler(nil)

	// Rosenbrock関数は1回の反復では収束しない
	rosen := func(w, grad []float64) float64 {
		a, b := 1-w[0], w[1]-w[0]*w[0]
		if grad != nil {
			grad[0] = -2*a - 400*w[0]*b
			grad[1] = 200 * b
		}
		return a*a + 100*b*b
	}
	res, err := MinimizeLBFGS("rosenbrock", rosen, []float64{-1.2, 1}, 1, 1e-10)
	if err != nil {
		t.Fatalf("MinimizeLBFGS: %v", err)
	}
	if res.Converged {
		t.Error("expected non-convergence after one iteration")
	}
	if len(warned) == 0 {
		t.Fatal("expected a ConvergenceWarning")
	}
	var cw *errors.ConvergenceWarning
	if !errors.As(warned[0], &cw) || cw.Algorithm != "rosenbrock" {
		t.Errorf("unexpected warning %v", warned[0])
	}
}
