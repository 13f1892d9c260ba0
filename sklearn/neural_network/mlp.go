// Package neural_network provides a multi-layer perceptron classifier.
package neural_network

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/ppgrid/core/model"
	"github.com/YuminosukeSato/ppgrid/core/solver"
	"github.com/YuminosukeSato/ppgrid/metrics"
	"github.com/YuminosukeSato/ppgrid/pkg/errors"
)

// MLPClassifier is a feed-forward binary classifier with a logistic output
// unit, trained on the L2-penalized log loss with L-BFGS.
type MLPClassifier struct {
	state *model.StateManager

	// Hyperparameters
	hiddenLayerSizes []int
	activation       string // "relu", "tanh", "logistic" or "identity"
	alpha            float64
	maxIter          int
	tol              float64
	randomState      int64

	// Model parameters
	coefs_      []*mat.Dense // one (fan_in × fan_out) matrix per layer
	intercepts_ [][]float64
	classes_    []float64
	loss_       float64
	nIter_      int
}

// MLPOption is a functional option for MLPClassifier.
type MLPOption func(*MLPClassifier)

// NewMLPClassifier creates a classifier with hidden layers (5, 2), relu
// activations, alpha 1e-5 and random_state 1.
func NewMLPClassifier(opts ...MLPOption) *MLPClassifier {
	m := &MLPClassifier{
		state:            model.NewStateManager(),
		hiddenLayerSizes: []int{5, 2},
		activation:       "relu",
		alpha:            1e-5,
		maxIter:          200,
		tol:              1e-4,
		randomState:      1,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// WithMLPHiddenLayerSizes sets the width of every hidden layer.
func WithMLPHiddenLayerSizes(sizes ...int) MLPOption {
	return func(m *MLPClassifier) {
		m.hiddenLayerSizes = append([]int(nil), sizes...)
	}
}

// WithMLPActivation sets the hidden-layer activation.
func WithMLPActivation(activation string) MLPOption {
	return func(m *MLPClassifier) {
		m.activation = activation
	}
}

// WithMLPAlpha sets the L2 penalty.
func WithMLPAlpha(alpha float64) MLPOption {
	return func(m *MLPClassifier) {
		m.alpha = alpha
	}
}

// WithMLPMaxIter sets the maximum number of L-BFGS iterations.
func WithMLPMaxIter(maxIter int) MLPOption {
	return func(m *MLPClassifier) {
		m.maxIter = maxIter
	}
}

// WithMLPRandomState sets the seed of the weight initialization.
func WithMLPRandomState(seed int64) MLPOption {
	return func(m *MLPClassifier) {
		m.randomState = seed
	}
}

// layerSizes returns [n_features, hidden..., 1].
func (m *MLPClassifier) layerSizes(nFeatures int) []int {
	sizes := append([]int{nFeatures}, m.hiddenLayerSizes...)
	return append(sizes, 1)
}

func nParams(sizes []int) int {
	n := 0
	for l := 0; l+1 < len(sizes); l++ {
		n += sizes[l]*sizes[l+1] + sizes[l+1]
	}
	return n
}

// Fit trains the network. A single-class target is accepted.
func (m *MLPClassifier) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "MLPClassifier.Fit")

	if err := m.validate(); err != nil {
		return err
	}
	nSamples, nFeatures, targets, err := model.CheckFitInput("MLPClassifier.Fit", X, y)
	if err != nil {
		return err
	}
	classes := model.Classes(targets)
	if len(classes) > 2 {
		return errors.NewValueError("MLPClassifier.Fit", fmt.Sprintf("binary targets required, got %d classes", len(classes)))
	}

	t := make([]float64, nSamples)
	if len(classes) == 2 {
		for i, v := range targets {
			if v == classes[1] {
				t[i] = 1
			}
		}
	}

	sizes := m.layerSizes(nFeatures)
	w0 := m.initParams(sizes)
	Xd := mat.DenseCopyOf(X)

	obj := func(w, grad []float64) float64 {
		return m.lossGrad(sizes, w, grad, Xd, t)
	}
	res, err := solver.MinimizeLBFGS("MLPClassifier", obj, w0, m.maxIter, m.tol)
	if err != nil {
		return err
	}

	m.coefs_, m.intercepts_ = unpack(sizes, res.X)
	m.classes_ = classes
	m.loss_ = res.Loss
	m.nIter_ = res.Iterations
	m.state.SetFitted(nFeatures)
	return nil
}

func (m *MLPClassifier) validate() error {
	if len(m.hiddenLayerSizes) == 0 {
		return errors.NewValueError("MLPClassifier.Fit", "at least one hidden layer is required")
	}
	for _, s := range m.hiddenLayerSizes {
		if s <= 0 {
			return errors.NewValueError("MLPClassifier.Fit", fmt.Sprintf("hidden layer sizes must be positive, got %v", m.hiddenLayerSizes))
		}
	}
	if _, ok := activations[m.activation]; !ok {
		return errors.NewValueError("MLPClassifier.Fit", fmt.Sprintf("unsupported activation %q", m.activation))
	}
	if m.alpha < 0 {
		return errors.NewValueError("MLPClassifier.Fit", fmt.Sprintf("alpha must be >= 0, got %v", m.alpha))
	}
	return nil
}

// initParams uses Glorot uniform initialization, with the bound for the
// logistic output layer scaled as in scikit-learn.
func (m *MLPClassifier) initParams(sizes []int) []float64 {
	rng := rand.New(rand.NewSource(m.randomState))
	w := make([]float64, 0, nParams(sizes))
	for l := 0; l+1 < len(sizes); l++ {
		fanIn, fanOut := sizes[l], sizes[l+1]
		factor := 6.0
		if l+2 == len(sizes) {
			factor = 2.0
		}
		bound := math.Sqrt(factor / float64(fanIn+fanOut))
		for k := 0; k < fanIn*fanOut+fanOut; k++ {
			w = append(w, (rng.Float64()*2-1)*bound)
		}
	}
	return w
}

// unpack copies a flat parameter vector into per-layer weights and biases.
func unpack(sizes []int, w []float64) ([]*mat.Dense, [][]float64) {
	coefs := make([]*mat.Dense, len(sizes)-1)
	intercepts := make([][]float64, len(sizes)-1)
	off := 0
	for l := 0; l+1 < len(sizes); l++ {
		fanIn, fanOut := sizes[l], sizes[l+1]
		coefs[l] = mat.NewDense(fanIn, fanOut, append([]float64(nil), w[off:off+fanIn*fanOut]...))
		off += fanIn * fanOut
		intercepts[l] = append([]float64(nil), w[off:off+fanOut]...)
		off += fanOut
	}
	return coefs, intercepts
}

// forward returns the activations of every layer, input included. The last
// entry holds the output probabilities.
func (m *MLPClassifier) forward(coefs []*mat.Dense, intercepts [][]float64, X mat.Matrix) []*mat.Dense {
	act := activations[m.activation]
	n, _ := X.Dims()
	outs := []*mat.Dense{mat.DenseCopyOf(X)}
	for l := range coefs {
		_, fanOut := coefs[l].Dims()
		z := mat.NewDense(n, fanOut, nil)
		z.Mul(outs[l], coefs[l])
		last := l == len(coefs)-1
		z.Apply(func(i, j int, v float64) float64 {
			v += intercepts[l][j]
			if last {
				return sigmoid(v)
			}
			return act.f(v)
		}, z)
		outs = append(outs, z)
	}
	return outs
}

// lossGrad computes the penalized mean log loss and, when grad is not nil,
// its gradient by backpropagation.
func (m *MLPClassifier) lossGrad(sizes []int, w, grad []float64, X *mat.Dense, t []float64) float64 {
	coefs, intercepts := unpack(sizes, w)
	outs := m.forward(coefs, intercepts, X)
	n := float64(len(t))
	prob := outs[len(outs)-1]

	loss := 0.0
	for i, ti := range t {
		p := prob.At(i, 0)
		loss -= ti*errors.StabilizeLog(p) + (1-ti)*errors.StabilizeLog(1-p)
	}
	loss /= n
	penalty := 0.0
	for _, c := range coefs {
		penalty += mat.Sum(mulElem(c, c))
	}
	loss += m.alpha / (2 * n) * penalty

	if grad == nil {
		return loss
	}

	act := activations[m.activation]
	// output delta for sigmoid + log loss
	delta := mat.NewDense(len(t), 1, nil)
	delta.Apply(func(i, _ int, p float64) float64 { return (p - t[i]) / n }, prob)

	grads := make([]*mat.Dense, len(coefs))
	biasGrads := make([][]float64, len(coefs))
	for l := len(coefs) - 1; l >= 0; l-- {
		fanIn, fanOut := coefs[l].Dims()
		g := mat.NewDense(fanIn, fanOut, nil)
		g.Mul(outs[l].T(), delta)
		g.Apply(func(i, j int, v float64) float64 {
			return v + m.alpha/n*coefs[l].At(i, j)
		}, g)
		grads[l] = g
		bg := make([]float64, fanOut)
		for j := range bg {
			bg[j] = mat.Sum(delta.ColView(j))
		}
		biasGrads[l] = bg

		if l > 0 {
			rows, _ := delta.Dims()
			prev := mat.NewDense(rows, fanIn, nil)
			prev.Mul(delta, coefs[l].T())
			prev.Apply(func(i, j int, v float64) float64 {
				return v * act.df(outs[l].At(i, j))
			}, prev)
			delta = prev
		}
	}

	off := 0
	for l := range grads {
		fanIn, fanOut := grads[l].Dims()
		for i := 0; i < fanIn; i++ {
			for j := 0; j < fanOut; j++ {
				grad[off] = grads[l].At(i, j)
				off++
			}
		}
		for j := 0; j < fanOut; j++ {
			grad[off] = biasGrads[l][j]
			off++
		}
	}
	return loss
}

func mulElem(a, b mat.Matrix) *mat.Dense {
	var out mat.Dense
	out.MulElem(a, b)
	return &out
}

// PredictProba returns the probability of the larger class for every row.
func (m *MLPClassifier) PredictProba(X mat.Matrix) (*mat.VecDense, error) {
	if err := m.state.RequireFitted("MLPClassifier", "PredictProba"); err != nil {
		return nil, err
	}
	nSamples, nFeatures := X.Dims()
	if err := m.state.RequireFeatures("MLPClassifier.PredictProba", nFeatures); err != nil {
		return nil, err
	}
	outs := m.forward(m.coefs_, m.intercepts_, X)
	prob := mat.NewVecDense(nSamples, nil)
	prob.CopyVec(outs[len(outs)-1].ColView(0))
	return prob, nil
}

// Predict returns the predicted class for every row of X.
func (m *MLPClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	prob, err := m.PredictProba(X)
	if err != nil {
		return nil, err
	}
	n := prob.Len()
	pred := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		c := m.classes_[0]
		if prob.AtVec(i) >= 0.5 && len(m.classes_) == 2 {
			c = m.classes_[1]
		}
		pred.Set(i, 0, c)
	}
	return pred, nil
}

// Score returns the mean accuracy on X and y.
func (m *MLPClassifier) Score(X, y mat.Matrix) (float64, error) {
	pred, err := m.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.AccuracyMatrix(y, pred)
}

// Report returns the filter metrics on X and y.
func (m *MLPClassifier) Report(X, y mat.Matrix) (map[string]float64, error) {
	pred, err := m.Predict(X)
	if err != nil {
		return nil, err
	}
	return metrics.BinaryReport(y, pred)
}

// Loss returns the training loss reached by the last Fit.
func (m *MLPClassifier) Loss() float64 {
	return m.loss_
}

// NIter returns the number of solver iterations used by the last Fit.
func (m *MLPClassifier) NIter() int {
	return m.nIter_
}

// GetParams returns the hyperparameters.
func (m *MLPClassifier) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"hidden_layer_sizes": append([]int(nil), m.hiddenLayerSizes...),
		"activation":         m.activation,
		"alpha":              m.alpha,
		"solver":             "lbfgs",
		"max_iter":           m.maxIter,
		"tol":                m.tol,
		"random_state":       m.randomState,
	}
}
