// Package metrics は二値分類器の評価指標を提供する。
//
// すべての関数は0/1のラベルベクトルを受け取る。0.5以上の値は陽性として扱う。
package metrics

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/ppgrid/pkg/errors"
)

// Metric names reported alongside the score.
const (
	FalseNegativeRateKey = "false_negative_rate"
	ReductionRateKey     = "reduction_rate"
	AccuracyKey          = "accuracy"
)

// ConfusionMatrix holds the four counts of a binary prediction.
type ConfusionMatrix struct {
	TP, FP, TN, FN int
}

// Total returns the number of samples counted.
func (c ConfusionMatrix) Total() int {
	return c.TP + c.FP + c.TN + c.FN
}

func positive(v float64) bool {
	return v >= 0.5
}

// Accuracy は正解率（予測が一致した割合）を計算する
func Accuracy(yTrue, yPred *mat.VecDense) (float64, error) {
	if yTrue == nil || yPred == nil || yTrue.Len() == 0 {
		return 0, errors.NewValueError("Accuracy", "empty vector")
	}
	n := yTrue.Len()
	if yPred.Len() != n {
		return 0, errors.NewDimensionError("Accuracy", n, yPred.Len(), 0)
	}

	correct := 0
	for i := 0; i < n; i++ {
		if yTrue.AtVec(i) == yPred.AtVec(i) {
			correct++
		}
	}
	return float64(correct) / float64(n), nil
}

// AccuracyMatrix は列ベクトル（n×1行列）に対して正解率を計算する
func AccuracyMatrix(yTrue, yPred mat.Matrix) (float64, error) {
	t, err := columnVector("AccuracyMatrix", yTrue)
	if err != nil {
		return 0, err
	}
	p, err := columnVector("AccuracyMatrix", yPred)
	if err != nil {
		return 0, err
	}
	return Accuracy(t, p)
}

// Confusion は二値の混同行列を数える
func Confusion(yTrue, yPred mat.Matrix) (ConfusionMatrix, error) {
	t, err := columnVector("Confusion", yTrue)
	if err != nil {
		return ConfusionMatrix{}, err
	}
	p, err := columnVector("Confusion", yPred)
	if err != nil {
		return ConfusionMatrix{}, err
	}
	if t.Len() != p.Len() {
		return ConfusionMatrix{}, errors.NewDimensionError("Confusion", t.Len(), p.Len(), 0)
	}

	var c ConfusionMatrix
	for i := 0; i < t.Len(); i++ {
		switch truth, pred := positive(t.AtVec(i)), positive(p.AtVec(i)); {
		case truth && pred:
			c.TP++
		case truth && !pred:
			c.FN++
		case !truth && pred:
			c.FP++
		default:
			c.TN++
		}
	}
	return c, nil
}

// FalseNegativeRate は陽性サンプルのうち陰性と予測された割合 FN/(TP+FN) を返す。
// 陽性サンプルがない場合は0を返し、UndefinedMetricWarningを発行する。
func (c ConfusionMatrix) FalseNegativeRate() float64 {
	if c.TP+c.FN == 0 {
		errors.Warn(errors.NewUndefinedMetricWarning(FalseNegativeRateKey, "no positive samples", 0))
		return 0
	}
	return float64(c.FN) / float64(c.TP+c.FN)
}

// ReductionRate は陰性と予測され、下流の処理から除外できるサンプルの割合を返す
func (c ConfusionMatrix) ReductionRate() float64 {
	total := c.Total()
	if total == 0 {
		return 0
	}
	return float64(c.TN+c.FN) / float64(total)
}

// Accuracy returns (TP+TN)/total.
func (c ConfusionMatrix) Accuracy() float64 {
	return errors.SafeDivide(float64(c.TP+c.TN), float64(c.Total()))
}

// BinaryReport は述語フィルタとしての評価指標をまとめて返す
func BinaryReport(yTrue, yPred mat.Matrix) (map[string]float64, error) {
	c, err := Confusion(yTrue, yPred)
	if err != nil {
		return nil, err
	}
	if c.Total() == 0 {
		return nil, errors.NewValueError("BinaryReport", "empty vector")
	}
	return map[string]float64{
		FalseNegativeRateKey: c.FalseNegativeRate(),
		ReductionRateKey:     c.ReductionRate(),
	}, nil
}

func columnVector(op string, m mat.Matrix) (*mat.VecDense, error) {
	if m == nil {
		return nil, errors.NewValueError(op, "empty matrix")
	}
	if v, ok := m.(*mat.VecDense); ok {
		if v == nil {
			return nil, errors.NewValueError(op, "empty matrix")
		}
		return v, nil
	}
	r, c := m.Dims()
	if r == 0 || c == 0 {
		return nil, errors.NewValueError(op, "empty matrix")
	}
	if c != 1 {
		return nil, errors.NewValueError(op, "must be a column vector (n×1 matrix)")
	}
	v := mat.NewVecDense(r, nil)
	for i := 0; i < r; i++ {
		v.SetVec(i, m.At(i, 0))
	}
	return v, nil
}
