package vector_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/sw965/xent/blas32/vector"
	"gonum.org/v1/gonum/blas/blas32"
)

func TestClone(t *testing.T) {
	vec := blas32.Vector{
		N:    8,
		Inc:  1,
		Data: []float32{-1.0, -2.0, -3.0, -4.0, 1.0, 2.0, 3.0, 4.0},
	}

	result := vector.Clone(vec)
	result.Data[0] = 1000.0

	if vec.Data[0] != -1.0 {
		t.Errorf("Clone shares data with the source: %v", vec.Data)
	}
}

func TestOneHot(t *testing.T) {
	result, err := vector.OneHot(4, 2)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]float32{0, 0, 1, 0}, result.Data); diff != "" {
		t.Errorf("OneHot mismatch (-want +got):\n%s", diff)
	}

	for _, idx := range []int{-1, 4} {
		if _, err := vector.OneHot(4, idx); err == nil {
			t.Errorf("OneHot(4, %d) should fail", idx)
		}
	}
}

func TestMaxSum(t *testing.T) {
	vec := blas32.Vector{N: 4, Inc: 1, Data: []float32{0.5, -3.0, 2.5, 1.0}}
	if got := vector.Max(vec); got != 2.5 {
		t.Errorf("Max = %v, want 2.5", got)
	}
	if got := vector.Sum(vec); got != 1.0 {
		t.Errorf("Sum = %v, want 1", got)
	}

	strided := blas32.Vector{N: 2, Inc: 2, Data: []float32{1, 100, 3, 100}}
	if got := vector.Max(strided); got != 3 {
		t.Errorf("strided Max = %v, want 3", got)
	}
	if got := vector.Sum(strided); got != 4 {
		t.Errorf("strided Sum = %v, want 4", got)
	}
}

func TestStableSoftmax(t *testing.T) {
	approx := cmpopts.EquateApprox(0, 1e-4)

	testCases := []struct {
		name string
		x    []float32
		want []float32
	}{
		{"ascending", []float32{1.0, 2.0, 3.0}, []float32{0.09003057, 0.24472847, 0.66524096}},
		{"uniform", []float32{0.1, 0.1}, []float32{0.5, 0.5}},
		{"large", []float32{1000.0, 1000.0, 1000.0, 1000.0}, []float32{0.25, 0.25, 0.25, 0.25}},
		{"dominant", []float32{-500.0, 500.0}, []float32{0.0, 1.0}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			x := blas32.Vector{N: len(tc.x), Inc: 1, Data: tc.x}
			before := vector.Clone(x)
			y := vector.StableSoftmax(x)

			if diff := cmp.Diff(tc.want, y.Data, approx); diff != "" {
				t.Errorf("StableSoftmax mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(before.Data, x.Data); diff != "" {
				t.Errorf("StableSoftmax modified its input (-before +after):\n%s", diff)
			}
		})
	}
}

func TestStableSoftmaxShiftInvariance(t *testing.T) {
	x := blas32.Vector{N: 5, Inc: 1, Data: []float32{0.3, 0.9, 0.1, 0.45, 0.7}}
	shifted := vector.Clone(x)
	for i := range shifted.Data {
		shifted.Data[i] += 50.0
	}

	want := vector.StableSoftmax(x)
	got := vector.StableSoftmax(shifted)
	if diff := cmp.Diff(want.Data, got.Data, cmpopts.EquateApprox(0, 1e-4)); diff != "" {
		t.Errorf("softmax changed under a constant shift (-want +got):\n%s", diff)
	}
}
