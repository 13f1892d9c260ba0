package model

import (
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/ppgrid/pkg/errors"
)

// CheckFitInput validates a feature matrix and a column of targets passed to
// Fit, and returns the targets as a slice.
func CheckFitInput(op string, X, y mat.Matrix) (nSamples, nFeatures int, targets []float64, err error) {
	if X == nil || y == nil {
		return 0, 0, nil, errors.NewModelError(op, "empty data", errors.ErrEmptyData)
	}
	nSamples, nFeatures = X.Dims()
	if nSamples == 0 || nFeatures == 0 {
		return 0, 0, nil, errors.NewModelError(op, "empty data", errors.ErrEmptyData)
	}
	yRows, yCols := y.Dims()
	if yRows != nSamples {
		return 0, 0, nil, errors.NewDimensionError(op, nSamples, yRows, 0)
	}
	if yCols != 1 {
		return 0, 0, nil, errors.NewValueError(op, "y must be a column vector (n×1 matrix)")
	}
	if err := errors.CheckMatrix(op, X); err != nil {
		return 0, 0, nil, err
	}

	targets = make([]float64, nSamples)
	for i := range targets {
		targets[i] = y.At(i, 0)
	}
	return nSamples, nFeatures, targets, nil
}

// Classes returns the distinct target values in ascending order.
func Classes(targets []float64) []float64 {
	seen := make(map[float64]struct{})
	for _, v := range targets {
		seen[v] = struct{}{}
	}
	classes := make([]float64, 0, len(seen))
	for v := range seen {
		classes = append(classes, v)
	}
	sort.Float64s(classes)
	return classes
}
