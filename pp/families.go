package pp

import (
	"github.com/YuminosukeSato/ppgrid/core/model"
	"github.com/YuminosukeSato/ppgrid/sklearn/ensemble"
	"github.com/YuminosukeSato/ppgrid/sklearn/linear_model"
	"github.com/YuminosukeSato/ppgrid/sklearn/neighbors"
	"github.com/YuminosukeSato/ppgrid/sklearn/neural_network"
	"github.com/YuminosukeSato/ppgrid/sklearn/svm"
)

// Model family names.
const (
	FamilyKDE = "kde"
	FamilySVM = "svm"
	FamilyDNN = "dnn"
	FamilyRF  = "rf"
	// FamilyLR is available but not part of DefaultFamilies.
	FamilyLR = "lr"
)

// Family names a model family and builds a fresh, unfitted instance of it
// with the family's fixed hyperparameters.
type Family struct {
	Name string
	New  func() model.Classifier
}

// AvailableFamilies returns every built-in family.
func AvailableFamilies() []Family {
	return []Family{
		{Name: FamilyKDE, New: func() model.Classifier {
			return neighbors.NewKernelDensityClassifier(
				neighbors.WithKDEKernel("gaussian"),
				neighbors.WithKDEBandwidth(0.2),
			)
		}},
		{Name: FamilySVM, New: func() model.Classifier {
			return svm.NewLinearSVC(svm.WithSVCRandomState(0))
		}},
		{Name: FamilyDNN, New: func() model.Classifier {
			return neural_network.NewMLPClassifier(
				neural_network.WithMLPAlpha(1e-5),
				neural_network.WithMLPHiddenLayerSizes(5, 2),
				neural_network.WithMLPRandomState(1),
			)
		}},
		{Name: FamilyRF, New: func() model.Classifier {
			return ensemble.NewRandomForestClassifier(
				ensemble.WithRFMaxDepth(2),
				ensemble.WithRFRandomState(0),
			)
		}},
		{Name: FamilyLR, New: func() model.Classifier {
			return linear_model.NewLogisticRegression()
		}},
	}
}

// DefaultFamilies returns the kde, svm, dnn and rf families.
func DefaultFamilies() []Family {
	return SelectFamilies(FamilyKDE, FamilySVM, FamilyDNN, FamilyRF)
}

// SelectFamilies returns the built-in families with the given names, in
// the order given. Unknown names come back with a nil constructor so that
// the configuration check reports them.
func SelectFamilies(names ...string) []Family {
	available := make(map[string]Family)
	for _, f := range AvailableFamilies() {
		available[f.Name] = f
	}
	out := make([]Family, 0, len(names))
	for _, name := range names {
		f, ok := available[name]
		if !ok {
			f = Family{Name: name}
		}
		out = append(out, f)
	}
	return out
}
