// Package dataset holds the raw input of a training run: an image tensor and
// an attribute table with one row per image.
package dataset

import (
	"fmt"

	"github.com/YuminosukeSato/ppgrid/pkg/errors"
	"gonum.org/v1/gonum/mat"
)

// ImageTensor is a dense samples×height×width×channels array stored in
// row-major order.
type ImageTensor struct {
	N, H, W, C int
	Data       []float64
}

// NewImageTensor wraps data, which must hold exactly n*h*w*c values. A nil
// data slice allocates a zeroed tensor.
func NewImageTensor(n, h, w, c int, data []float64) (*ImageTensor, error) {
	if n < 0 || h <= 0 || w <= 0 || c <= 0 {
		return nil, errors.NewValueError("NewImageTensor", fmt.Sprintf("invalid shape (%d, %d, %d, %d)", n, h, w, c))
	}
	size := n * h * w * c
	if data == nil {
		data = make([]float64, size)
	}
	if len(data) != size {
		return nil, errors.NewDimensionError("NewImageTensor", size, len(data), 0)
	}
	return &ImageTensor{N: n, H: h, W: w, C: c, Data: data}, nil
}

func (t *ImageTensor) offset(n, h, w, c int) int {
	return ((n*t.H+h)*t.W+w)*t.C + c
}

// At returns the value at sample n, row h, column w, channel c.
func (t *ImageTensor) At(n, h, w, c int) float64 {
	return t.Data[t.offset(n, h, w, c)]
}

// Set stores v at sample n, row h, column w, channel c.
func (t *ImageTensor) Set(n, h, w, c int, v float64) {
	t.Data[t.offset(n, h, w, c)] = v
}

// Downsample keeps every rate-th row and column of each image, all channels,
// and flattens each sample into one matrix row. Row order matches sample
// order.
func (t *ImageTensor) Downsample(rate int) (*mat.Dense, error) {
	if rate <= 0 {
		return nil, errors.NewValueError("ImageTensor.Downsample", fmt.Sprintf("reduction rate must be positive, got %d", rate))
	}
	if t.N == 0 {
		return nil, errors.NewModelError("ImageTensor.Downsample", "empty data", errors.ErrEmptyData)
	}

	nx := (t.H + rate - 1) / rate
	ny := (t.W + rate - 1) / rate
	cols := nx * ny * t.C

	out := mat.NewDense(t.N, cols, nil)
	for n := 0; n < t.N; n++ {
		row := out.RawRowView(n)
		k := 0
		for h := 0; h < t.H; h += rate {
			for w := 0; w < t.W; w += rate {
				base := t.offset(n, h, w, 0)
				copy(row[k:k+t.C], t.Data[base:base+t.C])
				k += t.C
			}
		}
	}
	return out, nil
}
