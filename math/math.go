package math

import (
	"math"

	"golang.org/x/exp/constraints"
)

// ApproInf is what TolerableValue substitutes for an infinity.
const ApproInf = 1e20

func CentralDifference[X constraints.Float](plusY, minusY, h X) X {
	return (plusY - minusY) / (2.0 * h)
}

// NumericalGradient estimates the gradient of f at xs by central differences.
// xs is perturbed in place and restored before returning.
func NumericalGradient[X constraints.Float](xs []X, f func([]X) X, h X) []X {
	grad := make([]X, len(xs))
	for i := range xs {
		tmp := xs[i]
		xs[i] = tmp + h
		plusY := f(xs)

		xs[i] = tmp - h
		minusY := f(xs)

		grad[i] = CentralDifference(plusY, minusY, h)
		xs[i] = tmp
	}
	return grad
}

// TolerableValue replaces ±Inf by ±ApproInf and returns every other value unchanged.
func TolerableValue[X constraints.Float](x X) X {
	switch {
	case math.IsInf(float64(x), 1):
		return X(ApproInf)
	case math.IsInf(float64(x), -1):
		return X(-ApproInf)
	}
	return x
}
