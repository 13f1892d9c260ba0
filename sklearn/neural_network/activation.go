package neural_network

import "math"

// activation holds a function and its derivative expressed in terms of the
// function's output.
type activation struct {
	f  func(float64) float64
	df func(out float64) float64
}

var activations = map[string]activation{
	"identity": {
		f:  func(v float64) float64 { return v },
		df: func(float64) float64 { return 1 },
	},
	"relu": {
		f: func(v float64) float64 { return math.Max(0, v) },
		df: func(out float64) float64 {
			if out > 0 {
				return 1
			}
			return 0
		},
	},
	"tanh": {
		f:  math.Tanh,
		df: func(out float64) float64 { return 1 - out*out },
	},
	"logistic": {
		f:  sigmoid,
		df: func(out float64) float64 { return out * (1 - out) },
	},
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}
