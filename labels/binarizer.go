package labels

import (
	"encoding/json"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/ppgrid/dataset"
	"github.com/YuminosukeSato/ppgrid/pkg/errors"
	"github.com/YuminosukeSato/ppgrid/pkg/log"
)

// LabelSet maps synthetic label names to 0/1 vectors with one entry per
// sample, in sample order.
type LabelSet struct {
	n       int
	names   []string
	vectors map[string][]float64
}

// NewLabelSet creates an empty set for n samples.
func NewLabelSet(n int) *LabelSet {
	return &LabelSet{n: n, vectors: make(map[string][]float64)}
}

// Add inserts a vector. It fails on a duplicate name or a length mismatch;
// an existing label is never overwritten.
func (s *LabelSet) Add(name string, v []float64) error {
	if len(v) != s.n {
		return errors.NewDimensionError(fmt.Sprintf("LabelSet.Add(%s)", name), s.n, len(v), 0)
	}
	if _, ok := s.vectors[name]; ok {
		return errors.NewConfigurationError("LabelSet.Add", fmt.Sprintf("label %q already present", name))
	}
	s.names = append(s.names, name)
	s.vectors[name] = v
	return nil
}

// Names returns label names in insertion order.
func (s *LabelSet) Names() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

// Len returns the number of samples.
func (s *LabelSet) Len() int {
	return s.n
}

// Values returns the raw vector of a label.
func (s *LabelSet) Values(name string) ([]float64, bool) {
	v, ok := s.vectors[name]
	return v, ok
}

// Vector returns a label as a column vector suitable for model.Fitter.
func (s *LabelSet) Vector(name string) (*mat.VecDense, error) {
	v, ok := s.vectors[name]
	if !ok {
		return nil, errors.NewConfigurationError("LabelSet.Vector", fmt.Sprintf("unknown label %q", name))
	}
	return mat.NewVecDense(len(v), v), nil
}

// Binarizer converts attribute tables into LabelSets using a fixed vocabulary.
type Binarizer struct {
	vocab  Vocabulary
	logger log.Logger
}

// BinarizerOption configures a Binarizer.
type BinarizerOption func(*Binarizer)

// WithLogger sets the logger used for diagnostics.
func WithLogger(l log.Logger) BinarizerOption {
	return func(b *Binarizer) {
		b.logger = l
	}
}

// NewBinarizer validates vocab and returns a Binarizer for it.
func NewBinarizer(vocab Vocabulary, opts ...BinarizerOption) (*Binarizer, error) {
	if err := vocab.Validate(); err != nil {
		return nil, err
	}
	b := &Binarizer{vocab: vocab, logger: log.GetLoggerWithName("labels.binarizer")}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// Binarize is a shorthand for NewBinarizer(vocab).Binarize(table).
func Binarize(table *dataset.Table, vocab Vocabulary) (*LabelSet, error) {
	b, err := NewBinarizer(vocab)
	if err != nil {
		return nil, err
	}
	return b.Binarize(table)
}

// Binarize produces one vector per vocabulary entry of every vocabulary
// column present in table. Null cells and null readings yield zeros.
// Columns of the vocabulary that the table lacks are skipped.
func (b *Binarizer) Binarize(table *dataset.Table) (*LabelSet, error) {
	if table == nil {
		return nil, errors.NewValueError("Binarizer.Binarize", "nil attribute table")
	}
	set := NewLabelSet(table.Len())

	for _, column := range sortedKeys(b.vocab.Categorical) {
		cells, ok := table.Column(column)
		if !ok {
			b.logger.Debug("Vocabulary column missing from table", log.ColumnKey, column)
			continue
		}
		if err := b.categorical(set, column, cells); err != nil {
			return nil, err
		}
	}
	for _, column := range sortedKeys(b.vocab.Numeric) {
		cells, ok := table.Column(column)
		if !ok {
			b.logger.Debug("Vocabulary column missing from table", log.ColumnKey, column)
			continue
		}
		if err := b.numeric(set, column, cells); err != nil {
			return nil, err
		}
	}

	b.logger.Debug("Binarized attribute table",
		log.OperationKey, log.OperationBinarize,
		log.SamplesKey, set.Len(),
		log.LabelsKey, len(set.names),
	)
	return set, nil
}

func (b *Binarizer) categorical(set *LabelSet, column string, cells []dataset.Cell) error {
	subs := b.vocab.Categorical[column]
	index := make(map[string]int, len(subs))
	vectors := make([][]float64, len(subs))
	for i, sub := range subs {
		index[sub] = i
		vectors[i] = make([]float64, len(cells))
	}

	unknown := 0
	for row, cell := range cells {
		for _, reading := range cell {
			if reading == nil {
				continue
			}
			s, ok := reading.(string)
			if !ok {
				return errors.NewConfigurationError("Binarizer.Binarize",
					fmt.Sprintf("column %q row %d: categorical reading %v (%T) is not a string", column, row, reading, reading))
			}
			i, ok := index[s]
			if !ok {
				unknown++
				continue
			}
			vectors[i][row] = 1
		}
	}
	if unknown > 0 {
		b.logger.Debug("Ignored sub-values outside the vocabulary", log.ColumnKey, column, "count", unknown)
	}

	for i, sub := range subs {
		if err := set.Add(sub, vectors[i]); err != nil {
			return err
		}
	}
	return nil
}

func (b *Binarizer) numeric(set *LabelSet, column string, cells []dataset.Cell) error {
	rules := b.vocab.Numeric[column]
	vectors := make([][]float64, len(rules))
	for i := range rules {
		vectors[i] = make([]float64, len(cells))
	}

	for row, cell := range cells {
		for _, reading := range cell {
			if reading == nil {
				continue
			}
			v, err := toFloat(reading)
			if err != nil {
				return errors.WrapConfigurationError("Binarizer.Binarize",
					fmt.Sprintf("column %q row %d", column, row), err)
			}
			for i, r := range rules {
				if r.Match(v) {
					vectors[i][row] = 1
				}
			}
		}
	}

	for i, r := range rules {
		if err := set.Add(r.Name, vectors[i]); err != nil {
			return err
		}
	}
	return nil
}

func toFloat(v any) (float64, error) {
	switch x := v.(type) {
	case float64:
		return x, nil
	case float32:
		return float64(x), nil
	case int:
		return float64(x), nil
	case int64:
		return float64(x), nil
	case int32:
		return float64(x), nil
	case json.Number:
		return x.Float64()
	default:
		return 0, errors.NewValueError("toFloat", fmt.Sprintf("numeric reading %v (%T) is not a number", v, v))
	}
}
