// Package labels turns attribute-table columns into binary classification
// targets. The vocabulary (categorical sub-values and numeric threshold
// rules per column) is configuration data; the binarizer has no column
// names baked in.
package labels

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/YuminosukeSato/ppgrid/pkg/errors"
)

// Op is a comparison operator of a numeric rule.
type Op string

// Supported comparison operators.
const (
	OpGreater      Op = ">"
	OpGreaterEqual Op = ">="
	OpLess         Op = "<"
	OpLessEqual    Op = "<="
	OpEqual        Op = "=="
)

// Rule derives one threshold label from a numeric column.
type Rule struct {
	Name      string
	Op        Op
	Threshold float64
}

// Match reports whether a reading satisfies the rule.
func (r Rule) Match(v float64) bool {
	switch r.Op {
	case OpGreater:
		return v > r.Threshold
	case OpGreaterEqual:
		return v >= r.Threshold
	case OpLess:
		return v < r.Threshold
	case OpLessEqual:
		return v <= r.Threshold
	case OpEqual:
		return v == r.Threshold
	default:
		return false
	}
}

// ParseRule parses expressions such as ">40" or "<=65". The expression
// itself becomes the label name.
func ParseRule(expr string) (Rule, error) {
	s := strings.TrimSpace(expr)
	for _, op := range []Op{OpGreaterEqual, OpLessEqual, OpEqual, OpGreater, OpLess} {
		if !strings.HasPrefix(s, string(op)) {
			continue
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(s[len(op):]), 64)
		if err != nil {
			return Rule{}, errors.WrapConfigurationError("ParseRule", fmt.Sprintf("invalid threshold in %q", expr), err)
		}
		return Rule{Name: s, Op: op, Threshold: v}, nil
	}
	return Rule{}, errors.NewConfigurationError("ParseRule", fmt.Sprintf("unsupported operator in %q", expr))
}

// MustParseRules parses a list of rule expressions and panics on error. It
// is meant for package-level vocabularies.
func MustParseRules(exprs ...string) []Rule {
	rules := make([]Rule, len(exprs))
	for i, e := range exprs {
		r, err := ParseRule(e)
		if err != nil {
			panic(err)
		}
		rules[i] = r
	}
	return rules
}

// Vocabulary maps column names to the labels derived from them.
type Vocabulary struct {
	// Categorical maps a column to its canonical sub-values.
	Categorical map[string][]string
	// Numeric maps a column to its threshold rules.
	Numeric map[string][]Rule
}

// DefaultVocabulary returns the curated traffic-camera vocabulary.
func DefaultVocabulary() Vocabulary {
	return Vocabulary{
		Categorical: map[string][]string{
			"vehicle_type": {"car", "van", "bus", "others"},
			"color":        {"red", "white", "black", "silver"},
			"intersection": {"pt335", "pt211", "pt342", "pt208"},
		},
		Numeric: map[string][]Rule{
			"speed": MustParseRules(">40", ">50", ">60", "<65", "<70"),
		},
	}
}

// Validate rejects empty names, columns configured as both kinds and any
// label name produced by more than one column.
func (v Vocabulary) Validate() error {
	owner := make(map[string]string)
	claim := func(column, label string) error {
		if label == "" {
			return errors.NewConfigurationError("Vocabulary.Validate", fmt.Sprintf("empty label name in column %q", column))
		}
		if prev, ok := owner[label]; ok {
			return errors.NewConfigurationError("Vocabulary.Validate",
				fmt.Sprintf("label %q produced by both %q and %q", label, prev, column))
		}
		owner[label] = column
		return nil
	}

	for _, column := range sortedKeys(v.Categorical) {
		if _, dup := v.Numeric[column]; dup {
			return errors.NewConfigurationError("Vocabulary.Validate",
				fmt.Sprintf("column %q is configured as both categorical and numeric", column))
		}
		for _, sub := range v.Categorical[column] {
			if err := claim(column, sub); err != nil {
				return err
			}
		}
	}
	for _, column := range sortedKeys(v.Numeric) {
		for _, r := range v.Numeric[column] {
			if err := claim(column, r.Name); err != nil {
				return err
			}
		}
	}
	return nil
}

// Labels returns every label name the vocabulary can produce.
func (v Vocabulary) Labels() []string {
	var out []string
	for _, column := range sortedKeys(v.Categorical) {
		out = append(out, v.Categorical[column]...)
	}
	for _, column := range sortedKeys(v.Numeric) {
		for _, r := range v.Numeric[column] {
			out = append(out, r.Name)
		}
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
