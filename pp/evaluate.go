package pp

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/multierr"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/ppgrid/core/model"
	"github.com/YuminosukeSato/ppgrid/core/parallel"
	"github.com/YuminosukeSato/ppgrid/labels"
	"github.com/YuminosukeSato/ppgrid/pkg/errors"
	"github.com/YuminosukeSato/ppgrid/pkg/log"
	"github.com/YuminosukeSato/ppgrid/preprocessing"
)

// EvaluationReport summarizes one evaluation run. Every entry that could
// not be scored is listed in Failures as a *errors.EvaluationError; its
// previous stats, if any, are left as they were.
type EvaluationReport struct {
	Evaluated int
	Failures  []error
	Duration  time.Duration
}

// Err combines all failures into one error, or returns nil.
func (r *EvaluationReport) Err() error {
	return multierr.Combine(r.Failures...)
}

// Failed returns the number of entries that could not be scored.
func (r *EvaluationReport) Failed() int {
	return len(r.Failures)
}

// Evaluator scores every stored model on held-out data and records the
// result in a StatsRegistry.
type Evaluator struct {
	preproc *preprocessing.Registry
	models  *ModelRegistry
	stats   *StatsRegistry
	workers int
	logger  log.Logger
	instr   *Instrumentation
}

// EvaluatorOption configures an Evaluator.
type EvaluatorOption func(*Evaluator)

// WithEvaluatorWorkers bounds concurrent evaluations. Zero means one per CPU.
func WithEvaluatorWorkers(n int) EvaluatorOption {
	return func(e *Evaluator) {
		e.workers = n
	}
}

// WithEvaluatorLogger sets the evaluator's logger.
func WithEvaluatorLogger(l log.Logger) EvaluatorOption {
	return func(e *Evaluator) {
		e.logger = l
	}
}

// WithEvaluatorInstrumentation sets the collectors scores are recorded in.
func WithEvaluatorInstrumentation(in *Instrumentation) EvaluatorOption {
	return func(e *Evaluator) {
		e.instr = in
	}
}

// NewEvaluator creates an Evaluator reading models and transforms and
// writing stats.
func NewEvaluator(preproc *preprocessing.Registry, models *ModelRegistry, stats *StatsRegistry, opts ...EvaluatorOption) *Evaluator {
	e := &Evaluator{
		preproc: preproc,
		models:  models,
		stats:   stats,
		logger:  log.GetLoggerWithName("pp.evaluator"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// heldOut is the held-out feature matrix of one variant, or the reason it
// could not be produced.
type heldOut struct {
	X   mat.Matrix
	err error
}

// Evaluate scores every stored model against the held-out features X and
// labels ls. X holds downsampled, untransformed features; each variant's
// transform is applied once, never fit. A row count mismatch between X and
// ls is a configuration error; every other problem fails only the entries
// it touches.
func (e *Evaluator) Evaluate(ctx context.Context, X mat.Matrix, ls *labels.LabelSet) (*EvaluationReport, error) {
	start := time.Now()
	if rows, _ := X.Dims(); rows != ls.Len() {
		return nil, errors.NewConfigurationError("pp.Evaluate",
			fmt.Sprintf("held-out features have %d rows but labels have %d samples", rows, ls.Len()))
	}

	entries := e.models.Snapshot()
	variantOf := make([]string, len(entries))
	failures := make([]error, len(entries))
	features := make(map[string]*heldOut)
	for i, entry := range entries {
		variant, _, err := SplitCompositeID(entry.CompositeID)
		if err != nil {
			failures[i] = errors.NewEvaluationError(entry.Category, entry.CompositeID, err)
			continue
		}
		if !e.preproc.Has(variant) {
			return nil, errors.NewConfigurationError("pp.Evaluate",
				fmt.Sprintf("model %q uses unknown preprocessing variant %q", entry.CompositeID, variant))
		}
		variantOf[i] = variant
		features[variant] = nil
	}

	var mu sync.Mutex
	variants := make([]string, 0, len(features))
	for v := range features {
		variants = append(variants, v)
	}
	err := parallel.ForEach(ctx, len(variants), e.workers, func(_ context.Context, i int) error {
		v := variants[i]
		Xv, err := e.preproc.Transform(v, X)
		mu.Lock()
		features[v] = &heldOut{X: Xv, err: err}
		mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "evaluation interrupted")
	}

	e.logger.Info("Evaluation started",
		log.PhaseKey, log.PhaseEvaluation,
		"entries", len(entries),
		"variants", len(variants),
		log.WorkersKey, e.workers,
	)

	err = parallel.ForEach(ctx, len(entries), e.workers, func(_ context.Context, i int) error {
		if failures[i] != nil {
			return nil
		}
		entry := entries[i]
		failures[i] = e.evaluateEntry(entry, features[variantOf[i]], ls)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "evaluation interrupted")
	}

	report := &EvaluationReport{Duration: time.Since(start)}
	for _, f := range failures {
		if f != nil {
			report.Failures = append(report.Failures, f)
			e.instr.evaluationFailed()
		} else {
			report.Evaluated++
		}
	}
	e.logger.Info("Evaluation finished",
		log.PhaseKey, log.PhaseEvaluation,
		"evaluated", report.Evaluated,
		log.FailuresKey, report.Failed(),
		log.DurationMsKey, report.Duration.Milliseconds(),
	)
	return report, nil
}

func (e *Evaluator) evaluateEntry(entry ModelEntry, features *heldOut, ls *labels.LabelSet) error {
	fail := func(err error) error {
		evalErr := errors.NewEvaluationError(entry.Category, entry.CompositeID, err)
		e.logger.Warn("Model evaluation failed",
			log.LabelKey, entry.Category,
			log.CompositeIDKey, entry.CompositeID,
			log.ErrorKey, evalErr,
		)
		return evalErr
	}

	if features.err != nil {
		return fail(features.err)
	}
	y, err := ls.Vector(entry.Category)
	if err != nil {
		return fail(errors.WrapConfigurationError("pp.Evaluate",
			fmt.Sprintf("no held-out labels for %q", entry.Category), err))
	}

	var metrics Metrics
	err = errors.SafeExecute("pp.score", func() error {
		score, err := entry.Model.Score(features.X, y)
		if err != nil {
			return err
		}
		metrics = Metrics{ScoreKey: score}
		if reporter, ok := entry.Model.(model.MetricReporter); ok {
			extra, err := reporter.Report(features.X, y)
			if err != nil {
				return err
			}
			for k, v := range extra {
				if k != ScoreKey {
					metrics[k] = v
				}
			}
		}
		return nil
	})
	if err != nil {
		return fail(err)
	}

	e.stats.Put(entry.Category, entry.CompositeID, metrics)
	e.instr.observeScore(entry.Category, entry.CompositeID, metrics.Score())
	e.logger.Debug("Model evaluated",
		log.LabelKey, entry.Category,
		log.CompositeIDKey, entry.CompositeID,
		log.ScoreKey, metrics.Score(),
	)
	return nil
}
