package tensor2d_test

import (
	"slices"
	"testing"

	"github.com/sw965/xent/blas32/tensor/2d"
	crand "github.com/sw965/xent/math/rand"
	"gonum.org/v1/gonum/blas/blas32"
)

func TestFromRows(t *testing.T) {
	result, err := tensor2d.FromRows([][]float32{
		{1, 2, 3},
		{4, 5, 6},
	})
	if err != nil {
		t.Fatal(err)
	}

	expected := blas32.General{
		Rows:   2,
		Cols:   3,
		Stride: 3,
		Data:   []float32{1, 2, 3, 4, 5, 6},
	}
	if result.Rows != expected.Rows || result.Cols != expected.Cols || result.Stride != expected.Stride {
		t.Errorf("shape = %dx%d stride %d", result.Rows, result.Cols, result.Stride)
	}
	if !slices.Equal(result.Data, expected.Data) {
		t.Errorf("Data = %v, want %v", result.Data, expected.Data)
	}

	if _, err := tensor2d.FromRows([][]float32{{1, 2}, {3}}); err == nil {
		t.Errorf("ragged rows should fail")
	}
}

func TestRowAndSum1(t *testing.T) {
	x := blas32.General{
		Rows:   3,
		Cols:   2,
		Stride: 4,
		Data: []float32{
			1, 2, 99, 99,
			3, 4, 99, 99,
			5, 6, 99, 99,
		},
	}

	if got := tensor2d.Row(x, 1).Data; !slices.Equal(got, []float32{3, 4}) {
		t.Errorf("Row(1) = %v", got)
	}

	if got := tensor2d.Sum1(x).Data; !slices.Equal(got, []float32{3, 7, 11}) {
		t.Errorf("Sum1 = %v", got)
	}

	if got := tensor2d.Flatten(x).Data; !slices.Equal(got, []float32{1, 2, 3, 4, 5, 6}) {
		t.Errorf("Flatten = %v", got)
	}
}

func TestAddConst(t *testing.T) {
	x := tensor2d.NewOnes(2, 2)
	y := tensor2d.AddConst(2.5, x)

	if !slices.Equal(y.Data, []float32{3.5, 3.5, 3.5, 3.5}) {
		t.Errorf("AddConst = %v", y.Data)
	}
	if !slices.Equal(x.Data, []float32{1, 1, 1, 1}) {
		t.Errorf("AddConst modified its input: %v", x.Data)
	}
}

func TestNewUniform(t *testing.T) {
	rng := crand.NewMt19937(7)
	x := tensor2d.NewUniform(22, 9, 0.1, 1.0, rng)
	for i, e := range x.Data {
		if e < 0.1 || e >= 1.0 {
			t.Fatalf("element %d = %v outside [0.1, 1.0)", i, e)
		}
	}

	same := tensor2d.NewUniform(22, 9, 0.1, 1.0, crand.NewMt19937(7))
	if !slices.Equal(x.Data, same.Data) {
		t.Errorf("the same seed produced different matrices")
	}
}

func TestNewRademacher(t *testing.T) {
	x := tensor2d.NewRademacher(4, 5, crand.NewMt19937(3))
	for i, e := range x.Data {
		if e != 1.0 && e != -1.0 {
			t.Errorf("element %d = %v, want ±1", i, e)
		}
	}
}

func TestEqual(t *testing.T) {
	a := tensor2d.NewOnes(2, 3)
	b := tensor2d.Clone(a)
	b.Data[4] += 1e-6

	if !tensor2d.Equal(a, b, 1e-5, 1e-5) {
		t.Errorf("matrices within tolerance reported unequal")
	}

	b.Data[4] += 1e-3
	if tensor2d.Equal(a, b, 1e-5, 1e-5) {
		t.Errorf("matrices outside tolerance reported equal")
	}

	if tensor2d.Equal(a, tensor2d.NewOnes(3, 2), 1, 1) {
		t.Errorf("matrices of different shape reported equal")
	}
}

func TestScal(t *testing.T) {
	y := tensor2d.NewOnes(2, 2)
	tensor2d.Scal(3, y)

	if !slices.Equal(y.Data, []float32{3, 3, 3, 3}) {
		t.Errorf("Scal = %v", y.Data)
	}
}
