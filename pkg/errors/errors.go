// Package errors provides the error taxonomy and warning system used across ppgrid.
// Every constructor attaches a stack trace through cockroachdb/errors so that
// failures recorded deep inside a training fan-out can still be traced.
package errors

import (
	"fmt"
	"log"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// ===========================================================================
//
//	Global warning handling
//
// ===========================================================================
var (
	warningMutex   sync.Mutex
	warningHandler = func(w error) {
		log.Printf("ppgrid-Warning: %v\n", w)
	}
	// set by pkg/log to avoid an import cycle
	zerologWarnFunc func(warning error)
)

// SetWarningHandler replaces the process-wide warning handler.
//
// Example:
//
//	errors.SetWarningHandler(func(w error) {
//	    // ignore warnings
//	})
func SetWarningHandler(handler func(w error)) {
	warningMutex.Lock()
	defer warningMutex.Unlock()
	warningHandler = handler
}

// SetZerologWarnFunc installs a structured warning sink.
func SetZerologWarnFunc(warnFunc func(warning error)) {
	warningMutex.Lock()
	defer warningMutex.Unlock()
	zerologWarnFunc = warnFunc
}

// Warn emits a warning. The structured sink wins over the plain handler.
func Warn(w error) {
	warningMutex.Lock()
	defer warningMutex.Unlock()

	if zerologWarnFunc != nil {
		zerologWarnFunc(w)
		return
	}
	if warningHandler != nil {
		warningHandler(w)
	}
}

// ===========================================================================
//
//	Warnings
//
// ===========================================================================

// ConvergenceWarning is raised when an optimizer stops before converging.
type ConvergenceWarning struct {
	Algorithm  string
	Iterations int
	Message    string
}

func (w *ConvergenceWarning) Error() string {
	if w.Message != "" {
		return fmt.Sprintf("%s failed to converge after %d iterations: %s", w.Algorithm, w.Iterations, w.Message)
	}
	return fmt.Sprintf("%s failed to converge after %d iterations. Consider increasing max_iter or adjusting parameters.", w.Algorithm, w.Iterations)
}

// MarshalZerologObject adds the warning fields to a zerolog event.
func (w *ConvergenceWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Str("algorithm", w.Algorithm).
		Int("iterations", w.Iterations).
		Str("message", w.Message).
		Str("type", "ConvergenceWarning")
}

// NewConvergenceWarning creates a ConvergenceWarning.
func NewConvergenceWarning(algorithm string, iterations int, message string) *ConvergenceWarning {
	return &ConvergenceWarning{Algorithm: algorithm, Iterations: iterations, Message: message}
}

// UndefinedMetricWarning is raised when a metric cannot be computed, for
// example a false negative rate on a label with no positive samples.
type UndefinedMetricWarning struct {
	Metric    string
	Condition string
	Result    float64
}

func (w *UndefinedMetricWarning) Error() string {
	return fmt.Sprintf("'%s' is ill-defined and being set to %f due to %s.", w.Metric, w.Result, w.Condition)
}

// MarshalZerologObject adds the warning fields to a zerolog event.
func (w *UndefinedMetricWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Str("metric", w.Metric).
		Str("condition", w.Condition).
		Float64("result", w.Result).
		Str("type", "UndefinedMetricWarning")
}

// NewUndefinedMetricWarning creates an UndefinedMetricWarning.
func NewUndefinedMetricWarning(metric, condition string, result float64) *UndefinedMetricWarning {
	return &UndefinedMetricWarning{Metric: metric, Condition: condition, Result: result}
}

// ===========================================================================
//
//	Orchestrator error taxonomy
//
// ===========================================================================

// ConfigurationError reports a caller bug: an unknown transform, model or
// label name, an unsupported feature dimensionality, or an inconsistent
// vocabulary. It is fatal to the operation that raised it.
type ConfigurationError struct {
	Op     string
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("ppgrid: %s: configuration error: %s: %v", e.Op, e.Reason, e.Err)
	}
	return fmt.Sprintf("ppgrid: %s: configuration error: %s", e.Op, e.Reason)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// MarshalZerologObject adds the error fields to a zerolog event.
func (e *ConfigurationError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Str("reason", e.Reason).
		Str("type", "ConfigurationError")
}

// NewConfigurationError creates a ConfigurationError with a stack trace.
func NewConfigurationError(op, reason string) error {
	return errors.WithStack(&ConfigurationError{Op: op, Reason: reason})
}

// WrapConfigurationError creates a ConfigurationError caused by err.
func WrapConfigurationError(op, reason string, err error) error {
	return errors.WithStack(&ConfigurationError{Op: op, Reason: reason, Err: err})
}

// TrainingError reports that one (label, variant, family) triple could not
// be trained. It never aborts the surrounding batch.
type TrainingError struct {
	Label   string
	Variant string
	Family  string
	Err     error
}

func (e *TrainingError) Error() string {
	return fmt.Sprintf("ppgrid: training failed for label %q with %s/%s: %v", e.Label, e.Variant, e.Family, e.Err)
}

func (e *TrainingError) Unwrap() error {
	return e.Err
}

// MarshalZerologObject adds the error fields to a zerolog event.
func (e *TrainingError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("label", e.Label).
		Str("variant", e.Variant).
		Str("family", e.Family).
		Str("type", "TrainingError")
}

// NewTrainingError creates a TrainingError with a stack trace.
func NewTrainingError(label, variant, family string, err error) error {
	return errors.WithStack(&TrainingError{Label: label, Variant: variant, Family: family, Err: err})
}

// EvaluationError reports that one stored model could not be scored. The
// other entries of the same evaluation run are unaffected.
type EvaluationError struct {
	Category    string
	CompositeID string
	Err         error
}

func (e *EvaluationError) Error() string {
	return fmt.Sprintf("ppgrid: evaluation failed for label %q with %s: %v", e.Category, e.CompositeID, e.Err)
}

func (e *EvaluationError) Unwrap() error {
	return e.Err
}

// MarshalZerologObject adds the error fields to a zerolog event.
func (e *EvaluationError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("label", e.Category).
		Str("composite_id", e.CompositeID).
		Str("type", "EvaluationError")
}

// NewEvaluationError creates an EvaluationError with a stack trace.
func NewEvaluationError(category, compositeID string, err error) error {
	return errors.WithStack(&EvaluationError{Category: category, CompositeID: compositeID, Err: err})
}

// UnfittedTransformError reports that evaluation referenced a preprocessing
// variant that was never fit. Fitting it at that point would leak held-out
// statistics, so the request fails instead.
type UnfittedTransformError struct {
	Variant string
}

func (e *UnfittedTransformError) Error() string {
	return fmt.Sprintf("ppgrid: preprocessing variant %q was never fit; refusing to fit on evaluation data", e.Variant)
}

// MarshalZerologObject adds the error fields to a zerolog event.
func (e *UnfittedTransformError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("variant", e.Variant).
		Str("type", "UnfittedTransformError")
}

// NewUnfittedTransformError creates an UnfittedTransformError with a stack trace.
func NewUnfittedTransformError(variant string) error {
	return errors.WithStack(&UnfittedTransformError{Variant: variant})
}

// ===========================================================================
//
//	Learning-library errors
//
// ===========================================================================

// NotFittedError is returned when Predict, Score or Transform is called
// before Fit.
type NotFittedError struct {
	ModelName string
	Method    string
}

func (e *NotFittedError) Error() string {
	return fmt.Sprintf("ppgrid: %s: this model is not fitted yet. Call Fit() before using %s()", e.ModelName, e.Method)
}

// MarshalZerologObject adds the error fields to a zerolog event.
func (e *NotFittedError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("model_name", e.ModelName).
		Str("method", e.Method).
		Str("type", "NotFittedError")
}

// NewNotFittedError creates a NotFittedError with a stack trace.
func NewNotFittedError(modelName, method string) error {
	return errors.WithStack(&NotFittedError{ModelName: modelName, Method: method})
}

// DimensionError reports a shape mismatch.
type DimensionError struct {
	Op       string
	Expected int
	Got      int
	Axis     int // 0 for rows, 1 for columns/features
}

func (e *DimensionError) Error() string {
	axisName := "features"
	if e.Axis == 0 {
		axisName = "rows"
	}
	return fmt.Sprintf("ppgrid: %s: dimension mismatch on axis %d (%s). Expected %d, got %d", e.Op, e.Axis, axisName, e.Expected, e.Got)
}

// MarshalZerologObject adds the error fields to a zerolog event.
func (e *DimensionError) MarshalZerologObject(event *zerolog.Event) {
	axisName := "features"
	if e.Axis == 0 {
		axisName = "rows"
	}
	event.Str("operation", e.Op).
		Int("expected", e.Expected).
		Int("got", e.Got).
		Int("axis", e.Axis).
		Str("axis_name", axisName).
		Str("type", "DimensionError")
}

// NewDimensionError creates a DimensionError with a stack trace.
func NewDimensionError(op string, expected, got, axis int) error {
	return errors.WithStack(&DimensionError{Op: op, Expected: expected, Got: got, Axis: axis})
}

// ValueError reports an argument with an invalid value.
type ValueError struct {
	Op      string
	Message string
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("ppgrid: %s: %s", e.Op, e.Message)
}

// NewValueError creates a ValueError with a stack trace.
func NewValueError(op, message string) error {
	return errors.WithStack(&ValueError{Op: op, Message: message})
}

// ModelError is a general failure inside a model family.
type ModelError struct {
	Op   string
	Kind string
	Err  error
}

func (e *ModelError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("ppgrid: %s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("ppgrid: %s: %s", e.Op, e.Kind)
}

func (e *ModelError) Unwrap() error {
	return e.Err
}

// NewModelError creates a ModelError with a stack trace.
func NewModelError(op, kind string, err error) error {
	return errors.WithStack(&ModelError{Op: op, Kind: kind, Err: err})
}

// ===========================================================================
//
//	cockroachdb/errors wrappers
//
// ===========================================================================

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Wrap annotates err with a message.
func Wrap(err error, message string) error {
	return errors.Wrap(err, message)
}

// Wrapf annotates err with a formatted message.
func Wrapf(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, format, args...)
}

// New creates an error with a stack trace.
func New(message string) error {
	return errors.New(message)
}

// WithStack attaches a stack trace to err.
func WithStack(err error) error {
	return errors.WithStack(err)
}

// ===========================================================================
//
//	Sentinel errors
//
// ===========================================================================

var (
	// ErrEmptyData is returned when a matrix or table has no rows.
	ErrEmptyData = New("empty data")

	// ErrSingleClass is returned by families that need both classes present.
	ErrSingleClass = New("needs samples of at least 2 classes in the data")
)
