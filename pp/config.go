package pp

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/YuminosukeSato/ppgrid/core/model"
	"github.com/YuminosukeSato/ppgrid/labels"
	"github.com/YuminosukeSato/ppgrid/pkg/errors"
	"github.com/YuminosukeSato/ppgrid/pkg/log"
	"github.com/YuminosukeSato/ppgrid/preprocessing"
)

// DefaultReductionRate is the stride used to downsample image height and
// width before preprocessing.
const DefaultReductionRate = 12

// Config is the immutable configuration table an Orchestrator is built
// from.
type Config struct {
	// Variants are the preprocessing transforms, one registry slot each.
	Variants []preprocessing.Spec
	// Families are the model families trained for every variant and label.
	Families []Family
	// Vocabulary drives label binarization.
	Vocabulary labels.Vocabulary
	// ReductionRate is the image downsampling stride.
	ReductionRate int
	// Workers bounds concurrent fits and evaluations. Zero means one per CPU.
	Workers int
	// FitTimeout bounds a single fit. Zero means no limit.
	FitTimeout time.Duration

	// Logger defaults to log.GetLoggerWithName("pp").
	Logger log.Logger
	// Registerer receives the Prometheus collectors. Nil disables metrics.
	Registerer prometheus.Registerer
}

// DefaultConfig returns the identity and PCA variants, the kde, svm, dnn and
// rf families, the default vocabulary and a reduction rate of 12.
func DefaultConfig() Config {
	return Config{
		Variants:      preprocessing.DefaultSpecs(),
		Families:      DefaultFamilies(),
		Vocabulary:    labels.DefaultVocabulary(),
		ReductionRate: DefaultReductionRate,
	}
}

// Validate checks everything that can be checked before any data is seen.
// Every failure is a ConfigurationError.
func (c Config) Validate() error {
	if len(c.Variants) == 0 {
		return errors.NewConfigurationError("pp.Config", "no preprocessing variants configured")
	}
	if err := validateFamilies(c.Families); err != nil {
		return err
	}
	if c.ReductionRate < 1 {
		return errors.NewConfigurationError("pp.Config", fmt.Sprintf("reduction rate must be >= 1, got %d", c.ReductionRate))
	}
	if c.Workers < 0 {
		return errors.NewConfigurationError("pp.Config", fmt.Sprintf("workers must be >= 0, got %d", c.Workers))
	}
	if c.FitTimeout < 0 {
		return errors.NewConfigurationError("pp.Config", fmt.Sprintf("fit timeout must be >= 0, got %s", c.FitTimeout))
	}
	return c.Vocabulary.Validate()
}

func validateFamilies(families []Family) error {
	if len(families) == 0 {
		return errors.NewConfigurationError("pp.Config", "no model families configured")
	}
	seen := make(map[string]bool, len(families))
	for _, f := range families {
		if err := model.ValidateName("family", f.Name); err != nil {
			return err
		}
		if f.New == nil {
			return errors.NewConfigurationError("pp.Config", fmt.Sprintf("unknown model family %q", f.Name))
		}
		if seen[f.Name] {
			return errors.NewConfigurationError("pp.Config", fmt.Sprintf("duplicate model family %q", f.Name))
		}
		seen[f.Name] = true
	}
	return nil
}
