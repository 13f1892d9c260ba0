// Package pp trains and scores probabilistic predicates: cheap binary
// classifiers that a query optimizer can run in front of an expensive
// detector.
//
// An Orchestrator owns the whole grid. It binarizes the attribute table
// into labels, downsamples the images, fits every preprocessing variant
// once, trains one model per (variant, family, label) triple and later
// scores every stored model on held-out data:
//
//	o, err := pp.NewOrchestrator(pp.DefaultConfig())
//	report, err := o.TrainAll(ctx, train)
//	evalReport, err := o.Evaluate(ctx, test)
//	stats, _ := o.CategoryStats("car") // "pca/svm" -> {"score": 0.91, ...}
package pp

import (
	"context"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/ppgrid/core/model"
	"github.com/YuminosukeSato/ppgrid/dataset"
	"github.com/YuminosukeSato/ppgrid/labels"
	"github.com/YuminosukeSato/ppgrid/pkg/errors"
	"github.com/YuminosukeSato/ppgrid/pkg/log"
	"github.com/YuminosukeSato/ppgrid/preprocessing"
)

// Orchestrator ties the binarizer, the preprocessing registry, the trainer
// and the evaluator together around one pair of registries.
type Orchestrator struct {
	cfg Config

	binarizer *labels.Binarizer
	preproc   *preprocessing.Registry
	models    *ModelRegistry
	stats     *StatsRegistry
	trainer   *Trainer
	evaluator *Evaluator
	logger    log.Logger
}

// NewOrchestrator validates cfg and builds an orchestrator with empty
// registries.
func NewOrchestrator(cfg Config) (*Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.GetLoggerWithName("pp")
	}
	instr, err := NewInstrumentation(cfg.Registerer)
	if err != nil {
		return nil, errors.Wrap(err, "register metrics")
	}

	binarizer, err := labels.NewBinarizer(cfg.Vocabulary,
		labels.WithLogger(logger.With(log.ComponentKey, "labels.binarizer")))
	if err != nil {
		return nil, err
	}
	preproc, err := preprocessing.NewRegistry(cfg.Variants,
		preprocessing.WithLogger(logger.With(log.ComponentKey, "preprocessing.registry")))
	if err != nil {
		return nil, err
	}

	models := NewModelRegistry()
	stats := NewStatsRegistry()
	trainer, err := NewTrainer(cfg.Families, models,
		WithWorkers(cfg.Workers),
		WithFitTimeout(cfg.FitTimeout),
		WithTrainerLogger(logger.With(log.ComponentKey, "pp.trainer")),
		WithTrainerInstrumentation(instr),
	)
	if err != nil {
		return nil, err
	}
	evaluator := NewEvaluator(preproc, models, stats,
		WithEvaluatorWorkers(cfg.Workers),
		WithEvaluatorLogger(logger.With(log.ComponentKey, "pp.evaluator")),
		WithEvaluatorInstrumentation(instr),
	)

	return &Orchestrator{
		cfg:       cfg,
		binarizer: binarizer,
		preproc:   preproc,
		models:    models,
		stats:     stats,
		trainer:   trainer,
		evaluator: evaluator,
		logger:    logger,
	}, nil
}

// Binarize derives the label set of ds.
func (o *Orchestrator) Binarize(ds *dataset.RawDataset) (*labels.LabelSet, error) {
	if ds == nil || ds.Table == nil {
		return nil, errors.NewValueError("pp.Binarize", "dataset has no attribute table")
	}
	return o.binarizer.Binarize(ds.Table)
}

// Downsample flattens the images of ds into one feature row per sample,
// keeping every ReductionRate-th pixel along height and width.
func (o *Orchestrator) Downsample(ds *dataset.RawDataset) (*mat.Dense, error) {
	if err := ds.Validate(); err != nil {
		return nil, err
	}
	return ds.Images.Downsample(o.cfg.ReductionRate)
}

// Preprocess runs every registered transform over X. Transforms fitted by
// an earlier call are reused, not refit.
func (o *Orchestrator) Preprocess(X mat.Matrix) (preprocessing.FeatureSet, error) {
	return o.preproc.FitAll(X)
}

// Train trains the full grid over features and ls. Every variant in
// features must be registered.
func (o *Orchestrator) Train(ctx context.Context, features preprocessing.FeatureSet, ls *labels.LabelSet) (*TrainingReport, error) {
	for v := range features {
		if !o.preproc.Has(v) {
			return nil, errors.NewConfigurationError("pp.Train", fmt.Sprintf("unknown preprocessing variant %q", v))
		}
	}
	return o.trainer.Train(ctx, features, ls)
}

// TrainAll binarizes, downsamples, preprocesses and trains on ds.
func (o *Orchestrator) TrainAll(ctx context.Context, ds *dataset.RawDataset) (*TrainingReport, error) {
	ls, err := o.Binarize(ds)
	if err != nil {
		return nil, err
	}
	X, err := o.Downsample(ds)
	if err != nil {
		return nil, err
	}
	o.logger.Info("Training data prepared",
		log.PhaseKey, log.PhasePreprocessing,
		log.SamplesKey, ls.Len(),
		log.LabelsKey, len(ls.Names()),
	)
	features, err := o.Preprocess(X)
	if err != nil {
		return nil, err
	}
	return o.Train(ctx, features, ls)
}

// Evaluate binarizes and downsamples the held-out dataset ds and scores
// every stored model on it.
func (o *Orchestrator) Evaluate(ctx context.Context, ds *dataset.RawDataset) (*EvaluationReport, error) {
	ls, err := o.Binarize(ds)
	if err != nil {
		return nil, err
	}
	X, err := o.Downsample(ds)
	if err != nil {
		return nil, err
	}
	return o.EvaluateFeatures(ctx, X, ls)
}

// EvaluateFeatures scores every stored model on already downsampled
// held-out features X and labels ls.
func (o *Orchestrator) EvaluateFeatures(ctx context.Context, X mat.Matrix, ls *labels.LabelSet) (*EvaluationReport, error) {
	return o.evaluator.Evaluate(ctx, X, ls)
}

// CategoryStats returns the metrics of every evaluated model of one label.
func (o *Orchestrator) CategoryStats(name string) (map[string]Metrics, bool) {
	return o.stats.Category(name)
}

// CategoryModels returns every trained model of one label.
func (o *Orchestrator) CategoryModels(name string) (map[string]model.Classifier, bool) {
	return o.models.Category(name)
}

// Families returns the configured model family names.
func (o *Orchestrator) Families() []string {
	names := make([]string, len(o.cfg.Families))
	for i, f := range o.cfg.Families {
		names[i] = f.Name
	}
	return names
}

// Variants returns the configured preprocessing variant names.
func (o *Orchestrator) Variants() []string {
	return o.preproc.Names()
}

// Models returns the trained-model registry.
func (o *Orchestrator) Models() *ModelRegistry {
	return o.models
}

// Stats returns the stats registry.
func (o *Orchestrator) Stats() *StatsRegistry {
	return o.stats
}

// Preprocessing returns the preprocessing registry.
func (o *Orchestrator) Preprocessing() *preprocessing.Registry {
	return o.preproc
}
