package softmaxce

import (
	"errors"
	"fmt"

	"github.com/chewxy/math32"
	"github.com/sw965/xent/blas32/tensor/2d"
	"github.com/sw965/xent/blas32/vector"
	cmath "github.com/sw965/xent/math"
	"gonum.org/v1/gonum/blas/blas32"
)

var ErrInvalidArgument = errors.New("softmax_with_cross_entropy: invalid argument")

func covers(gen blas32.General) bool {
	return gen.Stride >= gen.Cols && len(gen.Data) >= (gen.Rows-1)*gen.Stride+gen.Cols
}

func validate(logits blas32.General, labels []int) error {
	if logits.Rows < 1 || logits.Cols < 2 {
		return fmt.Errorf("%w: logits shape %dx%d, need at least 1x2", ErrInvalidArgument, logits.Rows, logits.Cols)
	}
	if !covers(logits) {
		return fmt.Errorf("%w: logits data does not cover a %dx%d matrix", ErrInvalidArgument, logits.Rows, logits.Cols)
	}
	if len(labels) != logits.Rows {
		return fmt.Errorf("%w: batch size %d, but %d labels", ErrInvalidArgument, logits.Rows, len(labels))
	}
	for i, label := range labels {
		if label < 0 || label >= logits.Cols {
			return fmt.Errorf("%w: label[%d] = %d, class num %d", ErrInvalidArgument, i, label, logits.Cols)
		}
	}
	return nil
}

// Forward returns softmax(logits) row by row and the hard label cross entropy
// loss as a (batch size, 1) column. A probability that underflows to zero gives
// a loss of cmath.ApproInf instead of +Inf.
func Forward(logits blas32.General, labels []int) (blas32.General, blas32.General, error) {
	if err := validate(logits, labels); err != nil {
		return blas32.General{}, blas32.General{}, err
	}

	softmax := tensor2d.NewZerosLike(logits)
	loss := tensor2d.NewZeros(logits.Rows, 1)
	for i := 0; i < logits.Rows; i++ {
		y := vector.StableSoftmax(tensor2d.Row(logits, i))
		blas32.Copy(y, tensor2d.Row(softmax, i))
		loss.Data[i] = -cmath.TolerableValue(math32.Log(y.Data[labels[i]]))
	}
	return softmax, loss, nil
}

// Backward returns dLogits[i, j] = dLoss[i] * (softmax[i, j] - 1{j == labels[i]}).
func Backward(softmax blas32.General, labels []int, dLoss blas32.General) (blas32.General, error) {
	if err := validate(softmax, labels); err != nil {
		return blas32.General{}, err
	}
	if dLoss.Rows != softmax.Rows || dLoss.Cols != 1 {
		return blas32.General{}, fmt.Errorf("%w: loss gradient shape %dx%d, want %dx1", ErrInvalidArgument, dLoss.Rows, dLoss.Cols, softmax.Rows)
	}
	if !covers(dLoss) {
		return blas32.General{}, fmt.Errorf("%w: loss gradient data does not cover a %dx1 matrix", ErrInvalidArgument, dLoss.Rows)
	}

	dLogits := tensor2d.NewZerosLike(softmax)
	for i := 0; i < softmax.Rows; i++ {
		t, err := vector.OneHot(softmax.Cols, labels[i])
		if err != nil {
			return blas32.General{}, err
		}
		dx := tensor2d.Row(dLogits, i)
		blas32.Copy(tensor2d.Row(softmax, i), dx)
		blas32.Axpy(-1.0, t, dx)
		blas32.Scal(dLoss.Data[tensor2d.At(dLoss, i, 0)], dx)
	}
	return dLogits, nil
}
