// Standard attribute keys shared by every ppgrid component. Using the same
// keys everywhere lets a log pipeline group training and evaluation records
// by triple.

package log

// Model and operation context.
const (
	// ModelNameKey identifies the model type, e.g. "LinearSVC".
	ModelNameKey = "model.name"

	// OperationKey is one of the Operation* values below.
	OperationKey = "ml.operation"

	// ComponentKey identifies the emitting package, e.g. "pp.trainer".
	ComponentKey = "ml.component"

	// PhaseKey is one of the Phase* values below.
	PhaseKey = "ml.phase"
)

// Grid coordinates. A trained model is addressed by category and composite id.
const (
	// LabelKey is the synthetic binary label name, e.g. "car" or ">40".
	LabelKey = "grid.label"

	// VariantKey is the preprocessing variant name, e.g. "pca".
	VariantKey = "grid.variant"

	// FamilyKey is the model family name, e.g. "svm".
	FamilyKey = "grid.family"

	// CompositeIDKey is "<variant>/<family>".
	CompositeIDKey = "grid.composite_id"

	// ColumnKey is an attribute-table column name.
	ColumnKey = "data.column"
)

// Data shape.
const (
	// SamplesKey is the number of rows.
	SamplesKey = "data.samples"

	// FeaturesKey is the number of feature columns.
	FeaturesKey = "data.features"

	// LabelsKey is the number of binary labels produced.
	LabelsKey = "data.labels"
)

// Performance and results.
const (
	// DurationMsKey is the wall time of an operation in milliseconds.
	DurationMsKey = "perf.duration_ms"

	// ScoreKey is the score recorded by the evaluation engine.
	ScoreKey = "metrics.score"

	// IterationKey is the solver iteration count.
	IterationKey = "training.iteration"

	// TriplesKey is the number of (variant, family, label) triples.
	TriplesKey = "grid.triples"

	// FailuresKey is the number of failed triples or entries.
	FailuresKey = "grid.failures"

	// WorkersKey is the fan-out concurrency limit.
	WorkersKey = "infra.workers"
)

// Error context.
const (
	// ErrorKey holds the error value.
	ErrorKey = "error"

	// ErrorTypeKey categorizes the error, e.g. "TrainingError".
	ErrorTypeKey = "error.type"

	// StacktraceKey holds the cockroachdb stack trace of ErrorKey.
	StacktraceKey = "error.stacktrace"
)

// Standard attribute values.
const (
	OperationFit          = "fit"
	OperationPredict      = "predict"
	OperationTransform    = "transform"
	OperationFitTransform = "fit_transform"
	OperationScore        = "score"
	OperationBinarize     = "binarize"

	PhaseTraining      = "training"
	PhaseEvaluation    = "evaluation"
	PhasePreprocessing = "preprocessing"
	PhaseLabeling      = "labeling"
)
