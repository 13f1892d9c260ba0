package pp

import (
	"sync/atomic"
	"testing"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/ppgrid/core/model"
	"github.com/YuminosukeSato/ppgrid/labels"
	"github.com/YuminosukeSato/ppgrid/pkg/errors"
	"github.com/YuminosukeSato/ppgrid/pkg/log"
	"github.com/YuminosukeSato/ppgrid/preprocessing"
)

// majorityClassifier は学習データの多数派クラスを常に予測する
type majorityClassifier struct {
	class  float64
	fitted bool
}

func (m *majorityClassifier) Fit(X, y mat.Matrix) error {
	n, _ := y.Dims()
	ones := 0
	for i := 0; i < n; i++ {
		if y.At(i, 0) == 1 {
			ones++
		}
	}
	if 2*ones > n {
		m.class = 1
	}
	m.fitted = true
	return nil
}

func (m *majorityClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	if !m.fitted {
		return nil, errors.NewNotFittedError("majorityClassifier", "Predict")
	}
	n, _ := X.Dims()
	out := mat.NewDense(n, 1, nil)
	for i := 0; i < n; i++ {
		out.Set(i, 0, m.class)
	}
	return out, nil
}

func (m *majorityClassifier) Score(X, y mat.Matrix) (float64, error) {
	pred, err := m.Predict(X)
	if err != nil {
		return 0, err
	}
	n, _ := y.Dims()
	correct := 0
	for i := 0; i < n; i++ {
		if pred.At(i, 0) == y.At(i, 0) {
			correct++
		}
	}
	return float64(correct) / float64(n), nil
}

// reportingClassifier adds a named metric to the score
type reportingClassifier struct {
	majorityClassifier
}

func (r *reportingClassifier) Report(X, y mat.Matrix) (map[string]float64, error) {
	return map[string]float64{"reduction_rate": 0.25, ScoreKey: -1}, nil
}

// singleClassRejecter fails like a linear SVM on one-class targets
type singleClassRejecter struct {
	majorityClassifier
}

func (s *singleClassRejecter) Fit(X, y mat.Matrix) error {
	_, _, targets, err := model.CheckFitInput("singleClassRejecter.Fit", X, y)
	if err != nil {
		return err
	}
	if len(model.Classes(targets)) < 2 {
		return errors.ErrSingleClass
	}
	return s.majorityClassifier.Fit(X, y)
}

type panickingClassifier struct {
	majorityClassifier
}

func (panickingClassifier) Fit(X, y mat.Matrix) error {
	panic("index out of range")
}

type slowClassifier struct {
	majorityClassifier
	delay time.Duration
}

func (s *slowClassifier) Fit(X, y mat.Matrix) error {
	time.Sleep(s.delay)
	return s.majorityClassifier.Fit(X, y)
}

func stubFamily(name string) Family {
	return Family{Name: name, New: func() model.Classifier { return &majorityClassifier{} }}
}

// countingFamily returns a family whose constructor counts its calls
func countingFamily(name string, calls *atomic.Int32) Family {
	return Family{Name: name, New: func() model.Classifier {
		calls.Add(1)
		return &majorityClassifier{}
	}}
}

func reduceSpec() preprocessing.Spec {
	return preprocessing.Spec{Name: "reduce", New: func() model.Transformer {
		return preprocessing.NewPCA(preprocessing.WithNComponents(2))
	}}
}

// gridFixture は6サンプル×4特徴量と2つのラベルを返す
func gridFixture(t *testing.T) (*mat.Dense, *labels.LabelSet) {
	t.Helper()
	X := mat.NewDense(6, 4, []float64{
		0.1, 0.2, 0.0, 1.0,
		0.3, 0.1, 0.2, 0.9,
		0.2, 0.4, 0.1, 0.8,
		0.9, 0.8, 1.0, 0.1,
		0.8, 0.9, 0.7, 0.2,
		1.0, 0.7, 0.9, 0.0,
	})
	ls := labels.NewLabelSet(6)
	if err := ls.Add("car", []float64{0, 0, 0, 1, 1, 1}); err != nil {
		t.Fatal(err)
	}
	if err := ls.Add("bus", []float64{1, 0, 1, 0, 0, 0}); err != nil {
		t.Fatal(err)
	}
	return X, ls
}

func quietLogger() *log.TestLogger {
	logger, _ := log.NewTestLogger(log.LevelWarn)
	return logger
}
