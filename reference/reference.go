// Package reference computes softmax with cross entropy the straightforward
// way, in float64, so that kernels can be checked against it.
package reference

import (
	"errors"
	"fmt"
	"math"

	"github.com/sw965/xent/blas32/tensor/2d"
	cmath "github.com/sw965/xent/math"
	"gonum.org/v1/gonum/blas/blas32"
	"gonum.org/v1/gonum/floats"
)

var ErrInvalidArgument = errors.New("invalid argument")

func covers(gen blas32.General) bool {
	return gen.Stride >= gen.Cols && len(gen.Data) >= (gen.Rows-1)*gen.Stride+gen.Cols
}

// Validate checks that logits has at least one row and two columns and that
// labels holds one valid column index per row.
func Validate(logits blas32.General, labels []int) error {
	if logits.Rows < 1 {
		return fmt.Errorf("%w: logits has %d rows, need at least 1", ErrInvalidArgument, logits.Rows)
	}
	if logits.Cols < 2 {
		return fmt.Errorf("%w: logits has %d columns, need at least 2", ErrInvalidArgument, logits.Cols)
	}
	if !covers(logits) {
		return fmt.Errorf("%w: logits data does not cover a %dx%d matrix", ErrInvalidArgument, logits.Rows, logits.Cols)
	}
	if len(labels) != logits.Rows {
		return fmt.Errorf("%w: %d labels for %d rows", ErrInvalidArgument, len(labels), logits.Rows)
	}
	for i, label := range labels {
		if label < 0 || label >= logits.Cols {
			return fmt.Errorf("%w: label[%d] = %d outside [0, %d)", ErrInvalidArgument, i, label, logits.Cols)
		}
	}
	return nil
}

// StableSoftmax subtracts the row maximum before exponentiating.
func StableSoftmax(row []float64) []float64 {
	maxX := floats.Max(row)
	y := make([]float64, len(row))
	for i, x := range row {
		y[i] = math.Exp(x - maxX)
	}
	floats.Scale(1/floats.Sum(y), y)
	return y
}

// Compute returns the row-wise softmax of logits and the per-row loss
// -log(softmax[i, labels[i]]) as a (rows, 1) column. Inputs are not modified.
// A probability that underflows to zero gives cmath.ApproInf, as the kernel does.
func Compute(logits blas32.General, labels []int) (blas32.General, blas32.General, error) {
	if err := Validate(logits, labels); err != nil {
		return blas32.General{}, blas32.General{}, err
	}

	softmax := tensor2d.NewZerosLike(logits)
	loss := tensor2d.NewZeros(logits.Rows, 1)
	row := make([]float64, logits.Cols)
	for i := 0; i < logits.Rows; i++ {
		for j, e := range tensor2d.Row(logits, i).Data {
			row[j] = float64(e)
		}
		y := StableSoftmax(row)
		out := tensor2d.Row(softmax, i).Data
		for j, e := range y {
			out[j] = float32(e)
		}
		loss.Data[i] = float32(cmath.TolerableValue(-math.Log(y[labels[i]])))
	}
	return softmax, loss, nil
}

// Grad returns dLoss[i] * (softmax[i] - onehot(labels[i])), the gradient of
// sum_i dLoss[i] * loss[i] with respect to the logits.
func Grad(softmax blas32.General, labels []int, dLoss blas32.General) (blas32.General, error) {
	if err := Validate(softmax, labels); err != nil {
		return blas32.General{}, err
	}
	if dLoss.Rows != softmax.Rows || dLoss.Cols != 1 {
		return blas32.General{}, fmt.Errorf("%w: loss gradient is %dx%d, want %dx1", ErrInvalidArgument, dLoss.Rows, dLoss.Cols, softmax.Rows)
	}
	if !covers(dLoss) {
		return blas32.General{}, fmt.Errorf("%w: loss gradient data does not cover a %dx1 matrix", ErrInvalidArgument, dLoss.Rows)
	}

	dLogits := tensor2d.NewZerosLike(softmax)
	for i := 0; i < softmax.Rows; i++ {
		g := float64(dLoss.Data[tensor2d.At(dLoss, i, 0)])
		src := tensor2d.Row(softmax, i).Data
		dst := tensor2d.Row(dLogits, i).Data
		for j, p := range src {
			d := float64(p)
			if j == labels[i] {
				d -= 1
			}
			dst[j] = float32(g * d)
		}
	}
	return dLogits, nil
}

// MeanLoss averages a loss column in float64.
func MeanLoss(loss blas32.General) float64 {
	if loss.Rows == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < loss.Rows; i++ {
		sum += float64(loss.Data[tensor2d.At(loss, i, 0)])
	}
	return sum / float64(loss.Rows)
}
