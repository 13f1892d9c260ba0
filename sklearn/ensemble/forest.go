// Package ensemble provides bagged tree ensembles.
package ensemble

import (
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/ppgrid/core/model"
	"github.com/YuminosukeSato/ppgrid/core/parallel"
	"github.com/YuminosukeSato/ppgrid/metrics"
	"github.com/YuminosukeSato/ppgrid/pkg/errors"
	"github.com/YuminosukeSato/ppgrid/sklearn/tree"
)

// RandomForestClassifier averages the class distributions of decision trees
// grown on bootstrap samples with per-split feature sampling.
type RandomForestClassifier struct {
	state *model.StateManager

	// Hyperparameters
	nEstimators     int
	criterion       string
	maxDepth        int
	minSamplesSplit int
	minSamplesLeaf  int
	maxFeatures     string
	bootstrap       bool
	randomState     int64

	// Model parameters
	estimators_         []*tree.DecisionTreeClassifier
	classes_            []float64
	featureImportances_ []float64
}

// ForestOption is a functional option for RandomForestClassifier.
type ForestOption func(*RandomForestClassifier)

// NewRandomForestClassifier creates a forest of 100 gini trees of depth 2
// with sqrt feature sampling and random_state 0.
func NewRandomForestClassifier(opts ...ForestOption) *RandomForestClassifier {
	rf := &RandomForestClassifier{
		state:           model.NewStateManager(),
		nEstimators:     100,
		criterion:       "gini",
		maxDepth:        2,
		minSamplesSplit: 2,
		minSamplesLeaf:  1,
		maxFeatures:     "sqrt",
		bootstrap:       true,
		randomState:     0,
	}
	for _, opt := range opts {
		opt(rf)
	}
	return rf
}

// WithRFNEstimators sets the number of trees.
func WithRFNEstimators(n int) ForestOption {
	return func(rf *RandomForestClassifier) {
		rf.nEstimators = n
	}
}

// WithRFMaxDepth sets the depth limit of every tree. Negative means no limit.
func WithRFMaxDepth(depth int) ForestOption {
	return func(rf *RandomForestClassifier) {
		rf.maxDepth = depth
	}
}

// WithRFCriterion sets the impurity criterion of every tree.
func WithRFCriterion(criterion string) ForestOption {
	return func(rf *RandomForestClassifier) {
		rf.criterion = criterion
	}
}

// WithRFMaxFeatures sets the per-split feature sampling of every tree.
func WithRFMaxFeatures(maxFeatures string) ForestOption {
	return func(rf *RandomForestClassifier) {
		rf.maxFeatures = maxFeatures
	}
}

// WithRFBootstrap sets whether every tree sees a bootstrap sample.
func WithRFBootstrap(bootstrap bool) ForestOption {
	return func(rf *RandomForestClassifier) {
		rf.bootstrap = bootstrap
	}
}

// WithRFRandomState sets the seed of the bootstrap and feature sampling.
func WithRFRandomState(seed int64) ForestOption {
	return func(rf *RandomForestClassifier) {
		rf.randomState = seed
	}
}

// Fit grows nEstimators trees concurrently. Seeds are drawn up front so the
// result does not depend on scheduling.
func (rf *RandomForestClassifier) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "RandomForestClassifier.Fit")

	if rf.nEstimators < 1 {
		return errors.NewValueError("RandomForestClassifier.Fit", fmt.Sprintf("n_estimators must be >= 1, got %d", rf.nEstimators))
	}
	nSamples, nFeatures, targets, err := model.CheckFitInput("RandomForestClassifier.Fit", X, y)
	if err != nil {
		return err
	}
	classes := model.Classes(targets)

	rng := rand.New(rand.NewSource(rf.randomState))
	seeds := make([]int64, rf.nEstimators)
	samples := make([][]int, rf.nEstimators)
	for t := range seeds {
		seeds[t] = rng.Int63()
		samples[t] = make([]int, nSamples)
		for i := range samples[t] {
			if rf.bootstrap {
				samples[t][i] = rng.Intn(nSamples)
			} else {
				samples[t][i] = i
			}
		}
	}

	Xd := mat.DenseCopyOf(X)
	estimators := make([]*tree.DecisionTreeClassifier, rf.nEstimators)
	errs := make([]error, rf.nEstimators)
	parallel.Parallelize(rf.nEstimators, func(start, end int) {
		for t := start; t < end; t++ {
			estimators[t], errs[t] = rf.growTree(Xd, targets, samples[t], seeds[t])
		}
	})
	for t, e := range errs {
		if e != nil {
			return errors.Wrapf(e, "tree %d", t)
		}
	}

	rf.estimators_ = estimators
	rf.classes_ = classes
	rf.featureImportances_ = make([]float64, nFeatures)
	for _, est := range estimators {
		floats.Add(rf.featureImportances_, est.GetFeatureImportances())
	}
	if sum := floats.Sum(rf.featureImportances_); sum > 0 {
		floats.Scale(1/sum, rf.featureImportances_)
	}
	rf.state.SetFitted(nFeatures)
	return nil
}

func (rf *RandomForestClassifier) growTree(X *mat.Dense, targets []float64, sample []int, seed int64) (est *tree.DecisionTreeClassifier, err error) {
	defer errors.Recover(&err, "RandomForestClassifier.growTree")

	_, nFeatures := X.Dims()
	Xs := mat.NewDense(len(sample), nFeatures, nil)
	ys := mat.NewDense(len(sample), 1, nil)
	for i, s := range sample {
		Xs.SetRow(i, X.RawRowView(s))
		ys.Set(i, 0, targets[s])
	}

	est = tree.NewDecisionTreeClassifier(
		tree.WithCriterion(rf.criterion),
		tree.WithMaxDepth(rf.maxDepth),
		tree.WithMinSamplesSplit(rf.minSamplesSplit),
		tree.WithMinSamplesLeaf(rf.minSamplesLeaf),
		tree.WithMaxFeatures(rf.maxFeatures),
		tree.WithRandomState(seed),
	)
	if err := est.Fit(Xs, ys); err != nil {
		return nil, err
	}
	return est, nil
}

// PredictProba returns the mean class distribution over all trees, one
// column per class in ascending class order.
func (rf *RandomForestClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if err := rf.state.RequireFitted("RandomForestClassifier", "PredictProba"); err != nil {
		return nil, err
	}
	nSamples, nFeatures := X.Dims()
	if err := rf.state.RequireFeatures("RandomForestClassifier.PredictProba", nFeatures); err != nil {
		return nil, err
	}

	column := make(map[float64]int, len(rf.classes_))
	for j, c := range rf.classes_ {
		column[c] = j
	}
	out := mat.NewDense(nSamples, len(rf.classes_), nil)
	for _, est := range rf.estimators_ {
		proba, err := est.PredictProba(X)
		if err != nil {
			return nil, err
		}
		// a bootstrap sample may miss a class, so map tree columns by label
		for k, c := range est.Classes() {
			j := column[c]
			for i := 0; i < nSamples; i++ {
				out.Set(i, j, out.At(i, j)+proba.At(i, k))
			}
		}
	}
	out.Scale(1/float64(len(rf.estimators_)), out)
	return out, nil
}

// Predict returns the class with the highest mean probability.
func (rf *RandomForestClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := rf.PredictProba(X)
	if err != nil {
		return nil, err
	}
	nSamples, nClasses := proba.Dims()
	pred := mat.NewDense(nSamples, 1, nil)
	row := make([]float64, nClasses)
	for i := 0; i < nSamples; i++ {
		mat.Row(row, i, proba)
		pred.Set(i, 0, rf.classes_[floats.MaxIdx(row)])
	}
	return pred, nil
}

// Score returns the mean accuracy on X and y.
func (rf *RandomForestClassifier) Score(X, y mat.Matrix) (float64, error) {
	pred, err := rf.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.AccuracyMatrix(y, pred)
}

// Report returns the filter metrics on X and y.
func (rf *RandomForestClassifier) Report(X, y mat.Matrix) (map[string]float64, error) {
	pred, err := rf.Predict(X)
	if err != nil {
		return nil, err
	}
	return metrics.BinaryReport(y, pred)
}

// FeatureImportances returns the normalized mean impurity decrease per feature.
func (rf *RandomForestClassifier) FeatureImportances() []float64 {
	return append([]float64(nil), rf.featureImportances_...)
}

// NEstimators returns the number of fitted trees.
func (rf *RandomForestClassifier) NEstimators() int {
	return len(rf.estimators_)
}

// GetParams returns the hyperparameters.
func (rf *RandomForestClassifier) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_estimators":      rf.nEstimators,
		"criterion":         rf.criterion,
		"max_depth":         rf.maxDepth,
		"min_samples_split": rf.minSamplesSplit,
		"min_samples_leaf":  rf.minSamplesLeaf,
		"max_features":      rf.maxFeatures,
		"bootstrap":         rf.bootstrap,
		"random_state":      rf.randomState,
	}
}
