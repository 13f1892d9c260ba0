// Package model defines the capability interfaces shared by the model
// families and the preprocessing transforms.
package model

import (
	"gonum.org/v1/gonum/mat"
)

// Fitter is implemented by models that learn from a feature matrix and a
// column vector of binary targets.
type Fitter interface {
	Fit(X, y mat.Matrix) error
}

// Predictor returns a column vector of predicted classes.
type Predictor interface {
	Predict(X mat.Matrix) (mat.Matrix, error)
}

// Scorer computes the family's native score, mean accuracy for every
// classifier in this module.
type Scorer interface {
	Score(X, y mat.Matrix) (float64, error)
}

// Classifier is the single capability every model family implements. The
// orchestrator stores and evaluates models only through this interface.
type Classifier interface {
	Fitter
	Predictor
	Scorer
}

// MetricReporter is optionally implemented by families that report named
// metrics beyond the score.
type MetricReporter interface {
	Report(X, y mat.Matrix) (map[string]float64, error)
}

// Transformer is the two-phase preprocessing contract: FitTransform learns
// state from X, Transform reuses that state and never refits.
type Transformer interface {
	FitTransform(X mat.Matrix) (mat.Matrix, error)
	Transform(X mat.Matrix) (mat.Matrix, error)
	IsFitted() bool
}

// ParameterGetter is the interface for models that expose their parameters.
type ParameterGetter interface {
	GetParams() map[string]interface{}
}
