// Package config reads the settings of a training run from an optional
// YAML file and PPGRID_* environment variables, and turns them into a
// pp.Config.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/YuminosukeSato/ppgrid/labels"
	"github.com/YuminosukeSato/ppgrid/pkg/errors"
	"github.com/YuminosukeSato/ppgrid/pkg/log"
	"github.com/YuminosukeSato/ppgrid/pp"
	"github.com/YuminosukeSato/ppgrid/preprocessing"
)

// EnvPrefix is the prefix of the environment variables read by New, e.g.
// PPGRID_REDUCTION_RATE.
const EnvPrefix = "ppgrid"

// Settings is the file and environment representation of a run.
type Settings struct {
	Variants      []string      `mapstructure:"variants"`
	Families      []string      `mapstructure:"families"`
	ReductionRate int           `mapstructure:"reduction_rate"`
	Workers       int           `mapstructure:"workers"`
	FitTimeout    time.Duration `mapstructure:"fit_timeout"`
	LogLevel      string        `mapstructure:"log_level"`

	// Vocabulary replaces the default vocabulary when set.
	Vocabulary *VocabularySettings `mapstructure:"vocabulary"`
}

// VocabularySettings lists categorical sub-values and numeric rule
// expressions such as ">40" per column. Columns are list entries rather
// than map keys because Viper lowercases map keys, and column names are
// case-sensitive.
type VocabularySettings struct {
	Categorical []CategoricalColumn `mapstructure:"categorical"`
	Numeric     []NumericColumn     `mapstructure:"numeric"`
}

// CategoricalColumn holds the sub-values that become labels of one column.
type CategoricalColumn struct {
	Column string   `mapstructure:"column"`
	Values []string `mapstructure:"values"`
}

// NumericColumn holds the rule expressions that become labels of one column.
type NumericColumn struct {
	Column string   `mapstructure:"column"`
	Rules  []string `mapstructure:"rules"`
}

// New returns a Viper instance reading the environment, with the defaults
// of pp.DefaultConfig applied.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	applyDefaults(v)
	return v
}

func applyDefaults(v *viper.Viper) {
	def := pp.DefaultConfig()
	variants := make([]string, len(def.Variants))
	for i, s := range def.Variants {
		variants[i] = s.Name
	}
	families := make([]string, len(def.Families))
	for i, f := range def.Families {
		families[i] = f.Name
	}
	v.SetDefault("variants", variants)
	v.SetDefault("families", families)
	v.SetDefault("reduction_rate", def.ReductionRate)
	v.SetDefault("workers", 0)
	v.SetDefault("fit_timeout", time.Duration(0))
	v.SetDefault("log_level", "info")
}

// Load reads the settings from the environment and, when path is not
// empty, from the configuration file at path.
func Load(path string) (*Settings, error) {
	v := New()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.WrapConfigurationError("config.Load", fmt.Sprintf("cannot read %s", path), err)
		}
	}
	return FromViper(v)
}

// FromViper decodes the settings held by v.
func FromViper(v *viper.Viper) (*Settings, error) {
	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return nil, errors.WrapConfigurationError("config.FromViper", "cannot decode settings", err)
	}
	return &s, nil
}

// Level parses LogLevel.
func (s *Settings) Level() (log.Level, error) {
	return log.ParseLevel(s.LogLevel)
}

// Config converts the settings into a validated pp.Config. Unknown variant
// or family names are configuration errors.
func (s *Settings) Config() (pp.Config, error) {
	cfg := pp.DefaultConfig()
	cfg.Variants = preprocessing.SelectSpecs(s.Variants...)
	for _, spec := range cfg.Variants {
		if spec.New == nil {
			return pp.Config{}, errors.NewConfigurationError("config.Config", fmt.Sprintf("unknown preprocessing variant %q", spec.Name))
		}
	}
	cfg.Families = pp.SelectFamilies(s.Families...)
	cfg.ReductionRate = s.ReductionRate
	cfg.Workers = s.Workers
	cfg.FitTimeout = s.FitTimeout

	if s.Vocabulary != nil {
		vocab, err := s.Vocabulary.vocabulary()
		if err != nil {
			return pp.Config{}, err
		}
		cfg.Vocabulary = vocab
	}
	if err := cfg.Validate(); err != nil {
		return pp.Config{}, err
	}
	return cfg, nil
}

func (vs *VocabularySettings) vocabulary() (labels.Vocabulary, error) {
	vocab := labels.Vocabulary{
		Categorical: make(map[string][]string, len(vs.Categorical)),
		Numeric:     make(map[string][]labels.Rule, len(vs.Numeric)),
	}
	seen := make(map[string]bool, len(vs.Categorical)+len(vs.Numeric))
	claim := func(column string) error {
		if column == "" {
			return errors.NewConfigurationError("config.Config", "vocabulary entry without a column name")
		}
		if seen[column] {
			return errors.NewConfigurationError("config.Config", fmt.Sprintf("vocabulary column %q listed twice", column))
		}
		seen[column] = true
		return nil
	}
	for _, c := range vs.Categorical {
		if err := claim(c.Column); err != nil {
			return labels.Vocabulary{}, err
		}
		vocab.Categorical[c.Column] = append([]string(nil), c.Values...)
	}
	for _, c := range vs.Numeric {
		if err := claim(c.Column); err != nil {
			return labels.Vocabulary{}, err
		}
		rules := make([]labels.Rule, 0, len(c.Rules))
		for _, expr := range c.Rules {
			r, err := labels.ParseRule(expr)
			if err != nil {
				return labels.Vocabulary{}, err
			}
			rules = append(rules, r)
		}
		vocab.Numeric[c.Column] = rules
	}
	return vocab, nil
}
