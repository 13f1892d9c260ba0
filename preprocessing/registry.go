// Package preprocessing holds the feature transforms applied to downsampled
// images and the Registry that owns their fitted state.
//
// Every transform follows a two-phase contract. FitTransform learns its
// statistics from training features; Transform reuses them. The Registry
// enforces that held-out data only ever reaches Transform.
package preprocessing

import (
	"fmt"
	"sync"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/ppgrid/core/model"
	"github.com/YuminosukeSato/ppgrid/pkg/errors"
	"github.com/YuminosukeSato/ppgrid/pkg/log"
)

// Variant names of the built-in transforms.
const (
	VariantNone   = "none"
	VariantPCA    = "pca"
	VariantScale  = "scale"
	VariantMinMax = "minmax"
)

// Spec names a transform and how to build a fresh, unfitted instance of it.
type Spec struct {
	Name string
	New  func() model.Transformer
}

// FeatureSet maps a variant name to the features it produced, one row per
// sample in sample order.
type FeatureSet map[string]mat.Matrix

// AvailableSpecs returns every built-in transform.
func AvailableSpecs() []Spec {
	return []Spec{
		{Name: VariantNone, New: func() model.Transformer { return NewIdentity() }},
		{Name: VariantPCA, New: func() model.Transformer { return NewPCA() }},
		{Name: VariantScale, New: func() model.Transformer { return NewStandardScaler() }},
		{Name: VariantMinMax, New: func() model.Transformer { return NewMinMaxScaler() }},
	}
}

// DefaultSpecs returns the transforms enabled out of the box: the identity
// and a full PCA.
func DefaultSpecs() []Spec {
	return SelectSpecs(VariantNone, VariantPCA)
}

// SelectSpecs returns the built-in specs with the given names, in the order
// given. Unknown names are returned as specs with a nil constructor so that
// NewRegistry reports them.
func SelectSpecs(names ...string) []Spec {
	available := make(map[string]Spec)
	for _, s := range AvailableSpecs() {
		available[s.Name] = s
	}
	out := make([]Spec, 0, len(names))
	for _, name := range names {
		s, ok := available[name]
		if !ok {
			s = Spec{Name: name}
		}
		out = append(out, s)
	}
	return out
}

type entry struct {
	mu sync.Mutex
	t  model.Transformer
}

// Registry owns one transform instance per variant name. The set of names
// is fixed at construction.
type Registry struct {
	names   []string
	entries map[string]*entry
	logger  log.Logger
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithLogger sets the logger used by the registry.
func WithLogger(l log.Logger) RegistryOption {
	return func(r *Registry) {
		r.logger = l
	}
}

// NewRegistry builds a registry from specs. Empty, duplicate or
// separator-containing names and missing constructors are configuration
// errors.
func NewRegistry(specs []Spec, opts ...RegistryOption) (*Registry, error) {
	r := &Registry{
		entries: make(map[string]*entry, len(specs)),
		logger:  log.GetLoggerWithName("preprocessing.registry"),
	}
	for _, opt := range opts {
		opt(r)
	}

	for _, s := range specs {
		if err := model.ValidateName("transform", s.Name); err != nil {
			return nil, err
		}
		if s.New == nil {
			return nil, errors.NewConfigurationError("preprocessing.NewRegistry", fmt.Sprintf("unknown transform %q", s.Name))
		}
		if _, dup := r.entries[s.Name]; dup {
			return nil, errors.NewConfigurationError("preprocessing.NewRegistry", fmt.Sprintf("duplicate transform %q", s.Name))
		}
		r.entries[s.Name] = &entry{t: s.New()}
		r.names = append(r.names, s.Name)
	}
	return r, nil
}

// Names returns the registered variant names in registration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.names...)
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.entries[name]
	return ok
}

// IsFitted reports whether the named transform has been fit. Unknown names
// report false.
func (r *Registry) IsFitted(name string) bool {
	e, ok := r.entries[name]
	if !ok {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.t.IsFitted()
}

func (r *Registry) lookup(op, name string) (*entry, error) {
	e, ok := r.entries[name]
	if !ok {
		return nil, errors.NewConfigurationError(op, fmt.Sprintf("unknown transform %q", name))
	}
	return e, nil
}

// Prepare is the training-side entry point. The first caller for a name
// fits the transform on X; later callers, including ones that were blocked
// while the first fit ran, reuse the fitted state.
func (r *Registry) Prepare(name string, X mat.Matrix) (mat.Matrix, error) {
	e, err := r.lookup("preprocessing.Prepare", name)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.t.IsFitted() {
		return e.t.Transform(X)
	}
	return r.fit(name, e, X)
}

// FitTransform fits the named transform on X. Fitting a transform that is
// already fitted is a configuration error; refitting is never implicit.
func (r *Registry) FitTransform(name string, X mat.Matrix) (mat.Matrix, error) {
	e, err := r.lookup("preprocessing.FitTransform", name)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.t.IsFitted() {
		return nil, errors.NewConfigurationError("preprocessing.FitTransform", fmt.Sprintf("transform %q is already fitted", name))
	}
	return r.fit(name, e, X)
}

// Transform applies the named transform with its retained state. It never
// fits: an unfitted transform yields an UnfittedTransformError.
func (r *Registry) Transform(name string, X mat.Matrix) (mat.Matrix, error) {
	e, err := r.lookup("preprocessing.Transform", name)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	fitted := e.t.IsFitted()
	e.mu.Unlock()
	if !fitted {
		return nil, errors.NewUnfittedTransformError(name)
	}
	return e.t.Transform(X)
}

// FitAll runs Prepare for every registered transform and collects the
// results.
func (r *Registry) FitAll(X mat.Matrix) (FeatureSet, error) {
	out := make(FeatureSet, len(r.names))
	for _, name := range r.names {
		f, err := r.Prepare(name, X)
		if err != nil {
			return nil, errors.Wrapf(err, "preprocess %q", name)
		}
		out[name] = f
	}
	return out, nil
}

// caller holds e.mu
func (r *Registry) fit(name string, e *entry, X mat.Matrix) (out mat.Matrix, err error) {
	defer errors.Recover(&err, "preprocessing.fit")

	rows, cols := X.Dims()
	out, err = e.t.FitTransform(X)
	if err != nil {
		return nil, err
	}
	_, dims := out.Dims()
	r.logger.Info("Transform fitted",
		log.PhaseKey, log.PhasePreprocessing,
		log.VariantKey, name,
		log.SamplesKey, rows,
		log.FeaturesKey, cols,
		"output_features", dims,
	)
	return out, nil
}
