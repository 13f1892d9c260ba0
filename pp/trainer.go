package pp

import (
	"context"
	"fmt"
	"sort"
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

// TrainingReport summarizes one training run. Failed triples do not stop
// the run; each one is listed in Failures as a *errors.TrainingError.
type TrainingReport struct {
	Trained  int
	Failures []error
	Duration time.Duration
}

// Err combines all failures into one error, or returns nil.
func (r *TrainingReport) Err() error {
	return multierr.Combine(r.Failures...)
}

// Failed returns the number of failed triples.
func (r *TrainingReport) Failed() int {
	return len(r.Failures)
}

type triple struct {
	variant string
	family  Family
	label   string
}

// Trainer fits one fresh model per (variant, family, label) triple and
// stores it in a ModelRegistry.
type Trainer struct {
	families   []Family
	models     *ModelRegistry
	workers    int
	fitTimeout time.Duration
	logger     log.Logger
	instr      *Instrumentation
}

// TrainerOption configures a Trainer.
type TrainerOption func(*Trainer)

// WithWorkers bounds the number of concurrent fits. Zero means one per CPU.
func WithWorkers(n int) TrainerOption {
	return func(t *Trainer) {
		t.workers = n
	}
}

// WithFitTimeout bounds a single fit. Zero means no limit.
func WithFitTimeout(d time.Duration) TrainerOption {
	return func(t *Trainer) {
		t.fitTimeout = d
	}
}

// WithTrainerLogger sets the trainer's logger.
func WithTrainerLogger(l log.Logger) TrainerOption {
	return func(t *Trainer) {
		t.logger = l
	}
}

// WithTrainerInstrumentation sets the collectors fits are recorded in.
func WithTrainerInstrumentation(in *Instrumentation) TrainerOption {
	return func(t *Trainer) {
		t.instr = in
	}
}

// NewTrainer creates a Trainer for families. Unknown, duplicate or
// separator-containing family names are configuration errors.
func NewTrainer(families []Family, models *ModelRegistry, opts ...TrainerOption) (*Trainer, error) {
	if err := validateFamilies(families); err != nil {
		return nil, err
	}
	t := &Trainer{
		families: append([]Family(nil), families...),
		models:   models,
		logger:   log.GetLoggerWithName("pp.trainer"),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Train fits every (variant, family, label) triple over features and ls.
// Configuration errors are returned immediately and nothing is trained.
// Per-triple failures are recorded in the report and the rest of the grid
// still runs. The returned error is non-nil only for configuration errors
// or when ctx is done.
func (t *Trainer) Train(ctx context.Context, features preprocessing.FeatureSet, ls *labels.LabelSet) (*TrainingReport, error) {
	start := time.Now()

	variants := make([]string, 0, len(features))
	for v, X := range features {
		if err := model.ValidateName("transform", v); err != nil {
			return nil, err
		}
		if rows, _ := X.Dims(); rows != ls.Len() {
			return nil, errors.NewConfigurationError("pp.Train",
				fmt.Sprintf("variant %q has %d rows but labels have %d samples", v, rows, ls.Len()))
		}
		variants = append(variants, v)
	}
	sort.Strings(variants)

	triples := make([]triple, 0, len(variants)*len(t.families)*len(ls.Names()))
	for _, v := range variants {
		for _, f := range t.families {
			for _, label := range ls.Names() {
				triples = append(triples, triple{variant: v, family: f, label: label})
			}
		}
	}

	t.logger.Info("Training grid started",
		log.PhaseKey, log.PhaseTraining,
		log.TriplesKey, len(triples),
		log.WorkersKey, t.workers,
	)

	failures := make([]error, len(triples))
	err := parallel.ForEach(ctx, len(triples), t.workers, func(ctx context.Context, i int) error {
		tr := triples[i]
		y, err := ls.Vector(tr.label)
		if err != nil {
			return err
		}
		failures[i] = t.fit(ctx, tr, features[tr.variant], y)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, "training interrupted")
	}

	report := &TrainingReport{Duration: time.Since(start)}
	for _, f := range failures {
		if f != nil {
			report.Failures = append(report.Failures, f)
		} else {
			report.Trained++
		}
	}

	t.logger.Info("Training grid finished",
		log.PhaseKey, log.PhaseTraining,
		log.TriplesKey, len(triples),
		log.FailuresKey, report.Failed(),
		log.DurationMsKey, report.Duration.Milliseconds(),
	)
	return report, nil
}

// fit trains one triple and stores the model. A timed-out fit keeps
// running in the background but its model is discarded.
func (t *Trainer) fit(ctx context.Context, tr triple, X, y mat.Matrix) error {
	id := CompositeID(tr.variant, tr.family.Name)
	logger := t.logger.With(
		log.LabelKey, tr.label,
		log.CompositeIDKey, id,
	)
	observe := t.instr.fitTimer(tr.variant, tr.family.Name)
	start := time.Now()

	fitCtx, cancel := ctx, context.CancelFunc(func() {})
	if t.fitTimeout > 0 {
		fitCtx, cancel = context.WithTimeout(ctx, t.fitTimeout)
	}
	defer cancel()

	m := tr.family.New()
	done := make(chan error, 1)
	go func() {
		done <- errors.SafeExecute("pp.fit", func() error {
			return m.Fit(X, y)
		})
	}()

	var err error
	timedOut := false
	select {
	case err = <-done:
	case <-fitCtx.Done():
		err = fitCtx.Err()
		timedOut = errors.Is(err, context.DeadlineExceeded)
	}
	observe(err, timedOut)

	if err != nil {
		trainErr := errors.NewTrainingError(tr.label, tr.variant, tr.family.Name, err)
		logger.Warn("Model training failed", log.ErrorKey, trainErr)
		return trainErr
	}

	t.models.Put(tr.label, id, m)
	logger.Debug("Model trained", log.DurationMsKey, time.Since(start).Milliseconds())
	return nil
}
