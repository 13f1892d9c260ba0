// Package tree provides a CART decision tree classifier.
package tree

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/ppgrid/core/model"
	"github.com/YuminosukeSato/ppgrid/metrics"
	"github.com/YuminosukeSato/ppgrid/pkg/errors"
)

// node is a split node when left and right are set, a leaf otherwise.
type node struct {
	feature   int
	threshold float64
	left      *node
	right     *node

	proba    []float64 // class distribution of the training samples
	nSamples int
	impurity float64
}

func (n *node) isLeaf() bool {
	return n.left == nil
}

// DecisionTreeClassifier is a binary-split classification tree grown
// greedily on gini or entropy impurity.
type DecisionTreeClassifier struct {
	state *model.StateManager

	// Hyperparameters
	criterion       string // "gini" or "entropy"
	maxDepth        int    // -1 means unlimited
	minSamplesSplit int
	minSamplesLeaf  int
	maxFeatures     string // "", "all", "sqrt" or "log2"
	randomState     int64

	// Model parameters
	root                *node
	classes_            []float64
	nClasses_           int
	nFeatures_          int
	featureImportances_ []float64

	rng *rand.Rand
}

// Option is a functional option for DecisionTreeClassifier.
type Option func(*DecisionTreeClassifier)

// NewDecisionTreeClassifier creates an unlimited-depth gini tree that
// considers every feature at every split.
func NewDecisionTreeClassifier(opts ...Option) *DecisionTreeClassifier {
	dt := &DecisionTreeClassifier{
		state:           model.NewStateManager(),
		criterion:       "gini",
		maxDepth:        -1,
		minSamplesSplit: 2,
		minSamplesLeaf:  1,
		maxFeatures:     "all",
		randomState:     0,
	}
	for _, opt := range opts {
		opt(dt)
	}
	return dt
}

// WithCriterion sets the impurity criterion.
func WithCriterion(criterion string) Option {
	return func(dt *DecisionTreeClassifier) {
		dt.criterion = criterion
	}
}

// WithMaxDepth limits the depth of the tree. A negative value means no limit.
func WithMaxDepth(depth int) Option {
	return func(dt *DecisionTreeClassifier) {
		dt.maxDepth = depth
	}
}

// WithMinSamplesSplit sets the minimum node size that may be split.
func WithMinSamplesSplit(n int) Option {
	return func(dt *DecisionTreeClassifier) {
		dt.minSamplesSplit = n
	}
}

// WithMinSamplesLeaf sets the minimum number of samples in a leaf.
func WithMinSamplesLeaf(n int) Option {
	return func(dt *DecisionTreeClassifier) {
		dt.minSamplesLeaf = n
	}
}

// WithMaxFeatures sets how many features are drawn at every split: "all",
// "sqrt" or "log2".
func WithMaxFeatures(maxFeatures string) Option {
	return func(dt *DecisionTreeClassifier) {
		dt.maxFeatures = maxFeatures
	}
}

// WithRandomState sets the seed of the feature sampling.
func WithRandomState(seed int64) Option {
	return func(dt *DecisionTreeClassifier) {
		dt.randomState = seed
	}
}

func (dt *DecisionTreeClassifier) validate() error {
	if dt.criterion != "gini" && dt.criterion != "entropy" {
		return errors.NewValueError("DecisionTreeClassifier.Fit", fmt.Sprintf("unsupported criterion %q", dt.criterion))
	}
	if dt.minSamplesSplit < 2 {
		return errors.NewValueError("DecisionTreeClassifier.Fit", fmt.Sprintf("min_samples_split must be >= 2, got %d", dt.minSamplesSplit))
	}
	if dt.minSamplesLeaf < 1 {
		return errors.NewValueError("DecisionTreeClassifier.Fit", fmt.Sprintf("min_samples_leaf must be >= 1, got %d", dt.minSamplesLeaf))
	}
	switch dt.maxFeatures {
	case "", "all", "sqrt", "log2":
	default:
		return errors.NewValueError("DecisionTreeClassifier.Fit", fmt.Sprintf("unsupported max_features %q", dt.maxFeatures))
	}
	return nil
}

// nCandidates returns how many features are examined at a split.
func (dt *DecisionTreeClassifier) nCandidates() int {
	n := dt.nFeatures_
	switch dt.maxFeatures {
	case "sqrt":
		n = int(math.Sqrt(float64(dt.nFeatures_)))
	case "log2":
		n = int(math.Log2(float64(dt.nFeatures_)))
	}
	if n < 1 {
		n = 1
	}
	return n
}

// Fit grows the tree on X and y.
func (dt *DecisionTreeClassifier) Fit(X, y mat.Matrix) (err error) {
	defer errors.Recover(&err, "DecisionTreeClassifier.Fit")

	if err := dt.validate(); err != nil {
		return err
	}
	nSamples, nFeatures, targets, err := model.CheckFitInput("DecisionTreeClassifier.Fit", X, y)
	if err != nil {
		return err
	}

	dt.classes_ = model.Classes(targets)
	dt.nClasses_ = len(dt.classes_)
	dt.nFeatures_ = nFeatures
	dt.featureImportances_ = make([]float64, nFeatures)
	dt.rng = rand.New(rand.NewSource(dt.randomState))

	index := make(map[float64]int, dt.nClasses_)
	for i, c := range dt.classes_ {
		index[c] = i
	}
	g := &grower{
		dt:     dt,
		X:      mat.DenseCopyOf(X),
		labels: make([]int, nSamples),
		total:  float64(nSamples),
	}
	for i, v := range targets {
		g.labels[i] = index[v]
	}

	samples := make([]int, nSamples)
	for i := range samples {
		samples[i] = i
	}
	dt.root = g.grow(samples, 0)

	if sum := floats.Sum(dt.featureImportances_); sum > 0 {
		floats.Scale(1/sum, dt.featureImportances_)
	}
	dt.state.SetFitted(nFeatures)
	return nil
}

type grower struct {
	dt     *DecisionTreeClassifier
	X      *mat.Dense
	labels []int
	total  float64
}

func (g *grower) counts(samples []int) []float64 {
	c := make([]float64, g.dt.nClasses_)
	for _, s := range samples {
		c[g.labels[s]]++
	}
	return c
}

func (g *grower) impurity(counts []float64, n float64) float64 {
	if n == 0 {
		return 0
	}
	imp := 0.0
	if g.dt.criterion == "entropy" {
		for _, c := range counts {
			if c > 0 {
				p := c / n
				imp -= p * math.Log2(p)
			}
		}
		return imp
	}
	imp = 1
	for _, c := range counts {
		p := c / n
		imp -= p * p
	}
	return imp
}

type split struct {
	feature   int
	threshold float64
	impurity  float64 // weighted child impurity
	found     bool
}

func (g *grower) grow(samples []int, depth int) *node {
	counts := g.counts(samples)
	n := float64(len(samples))
	nd := &node{
		proba:    make([]float64, len(counts)),
		nSamples: len(samples),
		impurity: g.impurity(counts, n),
	}
	for i, c := range counts {
		nd.proba[i] = c / n
	}

	dt := g.dt
	if nd.impurity <= 1e-12 ||
		len(samples) < dt.minSamplesSplit ||
		len(samples) < 2*dt.minSamplesLeaf ||
		(dt.maxDepth >= 0 && depth >= dt.maxDepth) {
		return nd
	}

	best := g.bestSplit(samples, counts)
	if !best.found {
		return nd
	}

	var left, right []int
	for _, s := range samples {
		if g.X.At(s, best.feature) <= best.threshold {
			left = append(left, s)
		} else {
			right = append(right, s)
		}
	}
	dt.featureImportances_[best.feature] += n / g.total * (nd.impurity - best.impurity)

	nd.feature = best.feature
	nd.threshold = best.threshold
	nd.left = g.grow(left, depth+1)
	nd.right = g.grow(right, depth+1)
	return nd
}

// bestSplit draws features in random order and examines at least
// nCandidates of them, continuing past that until a valid split is found.
func (g *grower) bestSplit(samples []int, parent []float64) split {
	dt := g.dt
	order := dt.rng.Perm(dt.nFeatures_)
	if dt.maxFeatures == "" || dt.maxFeatures == "all" {
		sort.Ints(order)
	}
	limit := dt.nCandidates()

	best := split{impurity: math.Inf(1)}
	sorted := append([]int(nil), samples...)
	n := float64(len(samples))
	for k, f := range order {
		if k >= limit && best.found {
			break
		}
		sort.Slice(sorted, func(a, b int) bool {
			return g.X.At(sorted[a], f) < g.X.At(sorted[b], f)
		})

		leftCounts := make([]float64, len(parent))
		rightCounts := append([]float64(nil), parent...)
		for i := 0; i < len(sorted)-1; i++ {
			c := g.labels[sorted[i]]
			leftCounts[c]++
			rightCounts[c]--

			nLeft := i + 1
			nRight := len(sorted) - nLeft
			if nLeft < dt.minSamplesLeaf || nRight < dt.minSamplesLeaf {
				continue
			}
			lo, hi := g.X.At(sorted[i], f), g.X.At(sorted[i+1], f)
			if hi-lo <= 1e-12 {
				continue
			}
			imp := (float64(nLeft)*g.impurity(leftCounts, float64(nLeft)) +
				float64(nRight)*g.impurity(rightCounts, float64(nRight))) / n
			if imp < best.impurity {
				best = split{feature: f, threshold: lo + (hi-lo)/2, impurity: imp, found: true}
			}
		}
	}
	return best
}

func (dt *DecisionTreeClassifier) leaf(x []float64) *node {
	nd := dt.root
	for !nd.isLeaf() {
		if x[nd.feature] <= nd.threshold {
			nd = nd.left
		} else {
			nd = nd.right
		}
	}
	return nd
}

// PredictProba returns the class distribution of the leaf reached by every
// row, one column per class in ascending class order.
func (dt *DecisionTreeClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if err := dt.state.RequireFitted("DecisionTreeClassifier", "PredictProba"); err != nil {
		return nil, err
	}
	nSamples, nFeatures := X.Dims()
	if err := dt.state.RequireFeatures("DecisionTreeClassifier.PredictProba", nFeatures); err != nil {
		return nil, err
	}

	out := mat.NewDense(nSamples, dt.nClasses_, nil)
	row := make([]float64, nFeatures)
	for i := 0; i < nSamples; i++ {
		mat.Row(row, i, X)
		out.SetRow(i, dt.leaf(row).proba)
	}
	return out, nil
}

// Predict returns the majority class of the leaf reached by every row.
func (dt *DecisionTreeClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := dt.PredictProba(X)
	if err != nil {
		return nil, err
	}
	nSamples, _ := proba.Dims()
	pred := mat.NewDense(nSamples, 1, nil)
	row := make([]float64, dt.nClasses_)
	for i := 0; i < nSamples; i++ {
		mat.Row(row, i, proba)
		pred.Set(i, 0, dt.classes_[floats.MaxIdx(row)])
	}
	return pred, nil
}

// Score returns the mean accuracy on X and y.
func (dt *DecisionTreeClassifier) Score(X, y mat.Matrix) (float64, error) {
	pred, err := dt.Predict(X)
	if err != nil {
		return 0, err
	}
	return metrics.AccuracyMatrix(y, pred)
}

// Classes returns the class labels seen during Fit.
func (dt *DecisionTreeClassifier) Classes() []float64 {
	return append([]float64(nil), dt.classes_...)
}

// GetFeatureImportances returns the normalized total impurity decrease
// contributed by each feature.
func (dt *DecisionTreeClassifier) GetFeatureImportances() []float64 {
	return append([]float64(nil), dt.featureImportances_...)
}

// GetDepth returns the depth of the fitted tree.
func (dt *DecisionTreeClassifier) GetDepth() int {
	var depth func(*node) int
	depth = func(nd *node) int {
		if nd == nil || nd.isLeaf() {
			return 0
		}
		return 1 + max(depth(nd.left), depth(nd.right))
	}
	return depth(dt.root)
}

// GetNLeaves returns the number of leaves of the fitted tree.
func (dt *DecisionTreeClassifier) GetNLeaves() int {
	var leaves func(*node) int
	leaves = func(nd *node) int {
		if nd == nil {
			return 0
		}
		if nd.isLeaf() {
			return 1
		}
		return leaves(nd.left) + leaves(nd.right)
	}
	return leaves(dt.root)
}

// GetParams returns the hyperparameters.
func (dt *DecisionTreeClassifier) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"criterion":         dt.criterion,
		"max_depth":         dt.maxDepth,
		"min_samples_split": dt.minSamplesSplit,
		"min_samples_leaf":  dt.minSamplesLeaf,
		"max_features":      dt.maxFeatures,
		"random_state":      dt.randomState,
	}
}

// SetParams updates hyperparameters by name.
func (dt *DecisionTreeClassifier) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		var ok bool
		switch key {
		case "criterion":
			dt.criterion, ok = value.(string)
		case "max_depth":
			dt.maxDepth, ok = value.(int)
		case "min_samples_split":
			dt.minSamplesSplit, ok = value.(int)
		case "min_samples_leaf":
			dt.minSamplesLeaf, ok = value.(int)
		case "max_features":
			dt.maxFeatures, ok = value.(string)
		case "random_state":
			dt.randomState, ok = value.(int64)
		default:
			return errors.NewValueError("DecisionTreeClassifier.SetParams", fmt.Sprintf("unknown parameter %q", key))
		}
		if !ok {
			return errors.NewValueError("DecisionTreeClassifier.SetParams", fmt.Sprintf("invalid type %T for %q", value, key))
		}
	}
	return nil
}
