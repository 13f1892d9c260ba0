// Package neighbors provides density-based classifiers.
package neighbors

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/ppgrid/core/model"
	"github.com/YuminosukeSato/ppgrid/core/parallel"
	"github.com/YuminosukeSato/ppgrid/metrics"
	"github.com/YuminosukeSato/ppgrid/pkg/errors"
)

// KernelDensityClassifier fits one kernel density estimate per class and
// predicts the class with the highest posterior log-density.
type KernelDensityClassifier struct {
	state *model.StateManager

	// Hyperparameters
	bandwidth float64
	kernel    string

	// Model parameters
	classes_   []float64
	samples_   [][][]float64 // per class, per sample, per feature
	logPrior_  []float64
	nFeatures_ int
}

// KDEOption is a functional option for KernelDensityClassifier.
type KDEOption func(*KernelDensityClassifier)

// NewKernelDensityClassifier creates a classifier with a gaussian kernel of
// bandwidth 0.2.
func NewKernelDensityClassifier(opts ...KDEOption) *KernelDensityClassifier {
	k := &KernelDensityClassifier{
		state:     model.NewStateManager(),
		bandwidth: 0.2,
		kernel:    "gaussian",
	}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

// WithKDEBandwidth sets the kernel bandwidth.
func WithKDEBandwidth(h float64) KDEOption {
	return func(k *KernelDensityClassifier) {
		k.bandwidth = h
	}
}

// WithKDEKernel sets the kernel: "gaussian" or "exponential".
func WithKDEKernel(kernel string) KDEOption {
	return func(k *KernelDensityClassifier) {
		k.kernel = kernel
	}
}

// Fit stores the training samples grouped by class. A single-class target
// is accepted; the classifier then always predicts that class.
func (k *KernelDensityClassifier) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "KernelDensityClassifier.Fit")

	if k.bandwidth <= 0 {
		return errors.NewValueError("KernelDensityClassifier.Fit", fmt.Sprintf("bandwidth must be positive, got %v", k.bandwidth))
	}
	if k.kernel != "gaussian" && k.kernel != "exponential" {
		return errors.NewValueError("KernelDensityClassifier.Fit", fmt.Sprintf("unsupported kernel %q", k.kernel))
	}
	nSamples, nFeatures, targets, err := model.CheckFitInput("KernelDensityClassifier.Fit", X, y)
	if err != nil {
		return err
	}

	k.classes_ = model.Classes(targets)
	index := make(map[float64]int, len(k.classes_))
	for i, c := range k.classes_ {
		index[c] = i
	}
	k.samples_ = make([][][]float64, len(k.classes_))
	for i := 0; i < nSamples; i++ {
		row := mat.Row(nil, i, X)
		c := index[targets[i]]
		k.samples_[c] = append(k.samples_[c], row)
	}
	k.logPrior_ = make([]float64, len(k.classes_))
	for c := range k.classes_ {
		k.logPrior_[c] = math.Log(float64(len(k.samples_[c])) / float64(nSamples))
	}
	k.nFeatures_ = nFeatures
	k.state.SetFitted(nFeatures)
	return nil
}

// logDensity returns the log of the normalized kernel density of class c at x.
func (k *KernelDensityClassifier) logDensity(c int, x []float64) float64 {
	samples := k.samples_[c]
	terms := make([]float64, len(samples))
	h := k.bandwidth
	d := float64(k.nFeatures_)

	var logNorm float64
	switch k.kernel {
	case "exponential":
		for i, s := range samples {
			terms[i] = -floats.Distance(x, s, 2) / h
		}
		// unit-volume normalization of exp(-r/h) in d dimensions
		logNorm = d*math.Log(h) + math.Log(2) + (d/2)*math.Log(math.Pi) + lgamma(d) - lgamma(d/2)
	default:
		for i, s := range samples {
			dist := floats.Distance(x, s, 2)
			terms[i] = -dist * dist / (2 * h * h)
		}
		logNorm = (d / 2) * math.Log(2*math.Pi*h*h)
	}
	return errors.LogSumExp(terms) - math.Log(float64(len(samples))) - logNorm
}

func lgamma(x float64) float64 {
	v, _ := math.Lgamma(x)
	return v
}

// PredictLogProba returns the per-class posterior log-probabilities, one
// column per class in ascending class order.
func (k *KernelDensityClassifier) PredictLogProba(X mat.Matrix) (mat.Matrix, error) {
	if err := k.state.RequireFitted("KernelDensityClassifier", "PredictLogProba"); err != nil {
		return nil, err
	}
	nSamples, nFeatures := X.Dims()
	if err := k.state.RequireFeatures("KernelDensityClassifier.PredictLogProba", nFeatures); err != nil {
		return nil, err
	}

	out := mat.NewDense(nSamples, len(k.classes_), nil)
	parallel.ParallelizeWithThreshold(nSamples, 64, func(start, end int) {
		joint := make([]float64, len(k.classes_))
		for i := start; i < end; i++ {
			x := mat.Row(nil, i, X)
			for c := range k.classes_ {
				joint[c] = k.logDensity(c, x) + k.logPrior_[c]
			}
			norm := errors.LogSumExp(joint)
			for c := range joint {
				out.Set(i, c, joint[c]-norm)
			}
		}
	})
	return out, nil
}

// Predict returns the most likely class for every row of X.
func (k *KernelDensityClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	logProba, err := k.PredictLogProba(X)
	if err != nil {
		return nil, err
	}
	nSamples, nClasses := logProba.Dims()
	pred := mat.NewDense(nSamples, 1, nil)
	row := make([]float64, nClasses)
	for i := 0; i < nSamples; i++ {
		mat.Row(row, i, logProba)
		pred.Set(i, 0, k.classes_[floats.MaxIdx(row)])
	}
	return pred, nil
}

// Score returns the mean accuracy on X and y.
func (k *KernelDensityClassifier) Score(X, y mat.Matrix) (float64, error) {
	pred, err := k.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.AccuracyMatrix(y, pred)
}

// Report returns the filter metrics on X and y.
func (k *KernelDensityClassifier) Report(X, y mat.Matrix) (map[string]float64, error) {
	pred, err := k.Predict(X)
	if err != nil {
		return nil, err
	}
	return metrics.BinaryReport(y, pred)
}

// Classes returns the class labels seen during Fit.
func (k *KernelDensityClassifier) Classes() []float64 {
	return append([]float64(nil), k.classes_...)
}

// GetParams returns the hyperparameters.
func (k *KernelDensityClassifier) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"bandwidth": k.bandwidth,
		"kernel":    k.kernel,
	}
}
