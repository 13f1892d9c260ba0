package linear_model

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/ppgrid/pkg/errors"
)

// TestLogisticRegression_FitPredict_Binary tests binary classification
func TestLogisticRegression_FitPredict_Binary(t *testing.T) {
	// Class 0: points around (1, 1)
	// Class 1: points around (3, 3)
	X := mat.NewDense(6, 2, []float64{
		0.5, 0.5,
		1.0, 1.5,
		1.5, 1.0,
		3.0, 2.5,
		2.5, 3.0,
		3.5, 3.5,
	})
	y := mat.NewDense(6, 1, []float64{0, 0, 0, 1, 1, 1})

	lr := NewLogisticRegression(
		WithLRMaxIter(1000),
		WithLRTol(1e-6),
	)
	if err := lr.Fit(X, y); err != nil {
		t.Fatalf("Failed to fit model: %v", err)
	}

	predictions, err := lr.Predict(X)
	if err != nil {
		t.Fatalf("Failed to predict: %v", err)
	}
	for i := 0; i < 6; i++ {
		if predictions.At(i, 0) != y.At(i, 0) {
			t.Errorf("Sample %d: expected %v, got %v", i, y.At(i, 0), predictions.At(i, 0))
		}
	}

	XTest := mat.NewDense(2, 2, []float64{
		1.0, 1.0, // Should be class 0
		3.0, 3.0, // Should be class 1
	})
	testPreds, err := lr.Predict(XTest)
	if err != nil {
		t.Fatalf("Failed to predict on test data: %v", err)
	}
	if testPreds.At(0, 0) != 0 || testPreds.At(1, 0) != 1 {
		t.Errorf("test predictions = (%v, %v), want (0, 1)", testPreds.At(0, 0), testPreds.At(1, 0))
	}

	score, err := lr.Score(X, y)
	if err != nil || score != 1 {
		t.Errorf("Score() = %v, %v; want 1", score, err)
	}
}

// TestLogisticRegression_PredictProba tests probability predictions
func TestLogisticRegression_PredictProba(t *testing.T) {
	X := mat.NewDense(4, 2, []float64{
		0, 0,
		0, 1,
		1, 0,
		1, 1,
	})
	y := mat.NewDense(4, 1, []float64{0, 0, 0, 1})

	lr := NewLogisticRegression()
	if err := lr.Fit(X, y); err != nil {
		t.Fatal(err)
	}
	proba, err := lr.PredictProba(X)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 4; i++ {
		p0, p1 := proba.At(i, 0), proba.At(i, 1)
		if math.Abs(p0+p1-1) > 1e-12 {
			t.Errorf("row %d: probabilities sum to %v", i, p0+p1)
		}
		if p1 < 0 || p1 > 1 {
			t.Errorf("row %d: probability %v outside [0, 1]", i, p1)
		}
	}
	// (1, 1) が最も正クラスらしい
	if proba.At(3, 1) <= proba.At(0, 1) {
		t.Errorf("P(1|(1,1)) = %v should exceed P(1|(0,0)) = %v", proba.At(3, 1), proba.At(0, 1))
	}
}

// 勾配が正則化付き目的関数の停留点になっていることを確認する
func TestLogisticRegression_Optimality(t *testing.T) {
	X := mat.NewDense(6, 1, []float64{-2, -1, -0.5, 0.5, 1, 2})
	y := mat.NewDense(6, 1, []float64{0, 1, 0, 1, 0, 1})

	lr := NewLogisticRegression(WithLRTol(1e-10), WithLRMaxIter(500))
	if err := lr.Fit(X, y); err != nil {
		t.Fatal(err)
	}
	w, b := lr.Coef()[0], lr.Intercept()
	var gw, gb float64
	gw = w
	for i := 0; i < 6; i++ {
		s := -1.0
		if y.At(i, 0) == 1 {
			s = 1
		}
		x := X.At(i, 0)
		c := -s * sigmoid(-s*(w*x+b))
		gw += c * x
		gb += c
	}
	if math.Abs(gw) > 1e-5 || math.Abs(gb) > 1e-5 {
		t.Errorf("gradient at optimum = (%v, %v), want ~0", gw, gb)
	}
}

func TestLogisticRegression_SingleClass(t *testing.T) {
	X := mat.NewDense(3, 1, []float64{1, 2, 3})
	y := mat.NewDense(3, 1, []float64{0, 0, 0})
	err := NewLogisticRegression().Fit(X, y)
	if !errors.Is(err, errors.ErrSingleClass) {
		t.Errorf("expected ErrSingleClass, got %v", err)
	}
}

func TestLogisticRegression_NotFitted(t *testing.T) {
	lr := NewLogisticRegression()
	if _, err := lr.Predict(mat.NewDense(1, 1, nil)); err == nil {
		t.Error("expected an error before Fit")
	}
}

func TestLogisticRegression_Params(t *testing.T) {
	lr := NewLogisticRegression()
	if err := lr.SetParams(map[string]interface{}{"C": 0.5, "penalty": "none"}); err != nil {
		t.Fatal(err)
	}
	params := lr.GetParams()
	if params["C"] != 0.5 || params["penalty"] != "none" {
		t.Errorf("GetParams() = %v", params)
	}
	if err := lr.SetParams(map[string]interface{}{"solver": "saga"}); err == nil {
		t.Error("expected an error for an unknown parameter")
	}
	if err := lr.SetParams(map[string]interface{}{"C": "large"}); err == nil {
		t.Error("expected an error for a wrongly typed parameter")
	}
}

func TestLogisticRegression_InvalidPenalty(t *testing.T) {
	X := mat.NewDense(2, 1, []float64{0, 1})
	y := mat.NewDense(2, 1, []float64{0, 1})
	if err := NewLogisticRegression(WithLRPenalty("l1")).Fit(X, y); err == nil {
		t.Error("expected an error for an unsupported penalty")
	}
}
