package preprocessing

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/YuminosukeSato/ppgrid/core/model"
	"github.com/YuminosukeSato/ppgrid/pkg/errors"
)

// PCA projects features onto their principal components. The mean and the
// projection are learned once in FitTransform; Transform applies them and
// never refits.
type PCA struct {
	state *model.StateManager

	nComponents int

	// Mean is the per-feature mean of the fitting data.
	Mean []float64
	// Components holds one principal axis per column (n_features × k).
	Components *mat.Dense
	// ExplainedVariance holds the variance along each kept axis.
	ExplainedVariance []float64
}

// PCAOption configures a PCA transform.
type PCAOption func(*PCA)

// WithNComponents keeps the first k components. Zero keeps
// min(n_samples, n_features).
func WithNComponents(k int) PCAOption {
	return func(p *PCA) {
		p.nComponents = k
	}
}

// NewPCA creates an unfitted PCA transform.
func NewPCA(opts ...PCAOption) *PCA {
	p := &PCA{state: model.NewStateManager()}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// IsFitted implements model.Transformer.
func (p *PCA) IsFitted() bool {
	return p.state.IsFitted()
}

// FitTransform learns the projection from X and returns X projected onto it.
func (p *PCA) FitTransform(X mat.Matrix) (mat.Matrix, error) {
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return nil, errors.NewModelError("PCA.FitTransform", "empty data", errors.ErrEmptyData)
	}
	if p.nComponents < 0 {
		return nil, errors.NewConfigurationError("PCA.FitTransform", fmt.Sprintf("n_components must be >= 0, got %d", p.nComponents))
	}

	var pc stat.PC
	if ok := pc.PrincipalComponents(X, nil); !ok {
		return nil, errors.NewModelError("PCA.FitTransform", "singular value decomposition failed", nil)
	}
	var vecs mat.Dense
	pc.VectorsTo(&vecs)
	vars := pc.VarsTo(nil)

	_, avail := vecs.Dims()
	k := p.nComponents
	if k == 0 || k > avail {
		k = avail
	}

	p.Mean = make([]float64, c)
	col := make([]float64, r)
	for j := 0; j < c; j++ {
		mat.Col(col, j, X)
		p.Mean[j] = stat.Mean(col, nil)
	}
	p.Components = mat.DenseCopyOf(vecs.Slice(0, c, 0, k))
	p.ExplainedVariance = append([]float64(nil), vars[:k]...)
	p.state.SetFitted(c)

	return p.Transform(X)
}

// Transform centers X with the fitted mean and projects it. A matrix with a
// different number of features than the fitting data is a configuration
// error.
func (p *PCA) Transform(X mat.Matrix) (mat.Matrix, error) {
	if err := p.state.RequireFitted("PCA", "Transform"); err != nil {
		return nil, err
	}
	r, c := X.Dims()
	if err := p.state.RequireFeatures("PCA.Transform", c); err != nil {
		return nil, errors.WrapConfigurationError("PCA.Transform", "unsupported feature dimensionality", err)
	}

	centered := mat.NewDense(r, c, nil)
	centered.Apply(func(i, j int, v float64) float64 {
		return v - p.Mean[j]
	}, X)

	_, k := p.Components.Dims()
	out := mat.NewDense(r, k, nil)
	out.Mul(centered, p.Components)
	if err := errors.CheckMatrix("PCA.Transform", out); err != nil {
		return nil, err
	}
	return out, nil
}

// NComponents returns the number of kept components, or 0 before fitting.
func (p *PCA) NComponents() int {
	if p.Components == nil {
		return 0
	}
	_, k := p.Components.Dims()
	return k
}
