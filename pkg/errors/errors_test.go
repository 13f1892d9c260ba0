package errors

import (
	"context"
	"fmt"
	"math"
	"strings"
	"testing"
)

func TestNewConfigurationError(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantMsg string
	}{
		{
			name:    "without cause",
			err:     NewConfigurationError("Registry.Transform", `unknown transform "fh"`),
			wantMsg: `ppgrid: Registry.Transform: configuration error: unknown transform "fh"`,
		},
		{
			name:    "with cause",
			err:     WrapConfigurationError("PCA.Transform", "unsupported feature dimensionality", NewDimensionError("PCA.Transform", 12, 3, 1)),
			wantMsg: "ppgrid: PCA.Transform: configuration error: unsupported feature dimensionality: ppgrid: PCA.Transform: dimension mismatch on axis 1 (features). Expected 12, got 3",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Error() != tt.wantMsg {
				t.Errorf("Error() = %v, want %v", tt.err.Error(), tt.wantMsg)
			}

			var cfgErr *ConfigurationError
			if !As(tt.err, &cfgErr) {
				t.Error("Error should be castable to *ConfigurationError")
			}

			formatted := fmt.Sprintf("%+v", tt.err)
			if !strings.Contains(formatted, "errors_test.go") {
				t.Error("Expected stack trace to contain test file name")
			}
		})
	}
}

func TestConfigurationErrorUnwrapsDimensionError(t *testing.T) {
	err := WrapConfigurationError("PCA.Transform", "unsupported feature dimensionality", NewDimensionError("PCA.Transform", 4, 2, 1))

	var dimErr *DimensionError
	if !As(err, &dimErr) {
		t.Fatal("Expected *DimensionError in chain")
	}
	if dimErr.Expected != 4 || dimErr.Got != 2 {
		t.Errorf("DimensionError = %+v", dimErr)
	}
}

func TestNewTrainingError(t *testing.T) {
	err := NewTrainingError("car", "pca", "svm", ErrSingleClass)

	want := `ppgrid: training failed for label "car" with pca/svm: needs samples of at least 2 classes in the data`
	if err.Error() != want {
		t.Errorf("Error() = %v, want %v", err.Error(), want)
	}

	var trainErr *TrainingError
	if !As(err, &trainErr) {
		t.Fatal("Error should be castable to *TrainingError")
	}
	if trainErr.Label != "car" || trainErr.Variant != "pca" || trainErr.Family != "svm" {
		t.Errorf("unexpected triple: %+v", trainErr)
	}
	if !Is(err, ErrSingleClass) {
		t.Error("Expected Is(err, ErrSingleClass)")
	}
}

func TestTrainingErrorWrapsDeadline(t *testing.T) {
	err := NewTrainingError(">40", "none", "dnn", context.DeadlineExceeded)
	if !Is(err, context.DeadlineExceeded) {
		t.Error("Expected deadline to be visible through TrainingError")
	}
}

func TestNewEvaluationError(t *testing.T) {
	err := NewEvaluationError("car", "pca/svm", NewUnfittedTransformError("pca"))

	var evalErr *EvaluationError
	if !As(err, &evalErr) {
		t.Fatal("Error should be castable to *EvaluationError")
	}
	if evalErr.Category != "car" || evalErr.CompositeID != "pca/svm" {
		t.Errorf("unexpected entry: %+v", evalErr)
	}
	var unfitted *UnfittedTransformError
	if !As(err, &unfitted) {
		t.Error("Expected the UnfittedTransformError cause to be reachable")
	}
}

func TestNewUnfittedTransformError(t *testing.T) {
	err := NewUnfittedTransformError("pca")

	want := `ppgrid: preprocessing variant "pca" was never fit; refusing to fit on evaluation data`
	if err.Error() != want {
		t.Errorf("Error() = %v, want %v", err.Error(), want)
	}

	var unfitted *UnfittedTransformError
	if !As(err, &unfitted) {
		t.Fatal("Error should be castable to *UnfittedTransformError")
	}
	if unfitted.Variant != "pca" {
		t.Errorf("Variant = %q", unfitted.Variant)
	}
}

func TestNewNotFittedError(t *testing.T) {
	err := NewNotFittedError("LinearSVC", "Predict")

	want := "ppgrid: LinearSVC: this model is not fitted yet. Call Fit() before using Predict()"
	if err.Error() != want {
		t.Errorf("Error() = %v, want %v", err.Error(), want)
	}

	var notFittedErr *NotFittedError
	if !As(err, &notFittedErr) {
		t.Error("Error should be castable to *NotFittedError")
	}
}

func TestNewModelError(t *testing.T) {
	err := NewModelError("Fit", "invalid input", fmt.Errorf("test error"))
	if err.Error() != "ppgrid: Fit: invalid input: test error" {
		t.Errorf("Error() = %v", err.Error())
	}

	var modelErr *ModelError
	if !As(err, &modelErr) {
		t.Error("Error should be castable to *ModelError")
	}
}

func TestNewConvergenceWarning(t *testing.T) {
	warn := NewConvergenceWarning("lbfgs", 200, "iteration limit reached")

	want := "lbfgs failed to converge after 200 iterations: iteration limit reached"
	if warn.Error() != want {
		t.Errorf("Error() = %v, want %v", warn.Error(), want)
	}
}

func TestWarnUsesStructuredSink(t *testing.T) {
	var got []error
	SetZerologWarnFunc(func(w error) { got = append(got, w) })
	defer SetZerologWarnFunc(nil)

	Warn(NewUndefinedMetricWarning("false_negative_rate", "no positive samples", 0))

	if len(got) != 1 {
		t.Fatalf("expected 1 warning, got %d", len(got))
	}
	if !strings.Contains(got[0].Error(), "false_negative_rate") {
		t.Errorf("unexpected warning: %v", got[0])
	}
}

func TestWrapAndIs(t *testing.T) {
	wrapped := Wrapf(ErrEmptyData, "in %s", "Binarize")

	if !Is(wrapped, ErrEmptyData) {
		t.Error("Expected Is(wrapped, ErrEmptyData) to be true")
	}
	if !strings.Contains(wrapped.Error(), "in Binarize") {
		t.Error("Expected wrapped error to contain wrapping message")
	}
}

func TestNumericalHelpers(t *testing.T) {
	if got := LogSumExp([]float64{math.Log(1), math.Log(3)}); math.Abs(got-math.Log(4)) > 1e-12 {
		t.Errorf("LogSumExp = %v, want %v", got, math.Log(4))
	}
	if got := LogSumExp(nil); !math.IsInf(got, -1) {
		t.Errorf("LogSumExp(nil) = %v, want -Inf", got)
	}
	if got := SafeDivide(1, 0); got != 0 {
		t.Errorf("SafeDivide(1, 0) = %v", got)
	}
	if err := CheckNumericalStability("loss", []float64{1, math.NaN()}, 3); err == nil {
		t.Error("expected instability error for NaN")
	}
	if err := CheckNumericalStability("loss", []float64{1, 2}, 3); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
