package vector

import (
	"fmt"
	"slices"

	"github.com/chewxy/math32"
	"gonum.org/v1/gonum/blas/blas32"
)

func NewZeros(n int) blas32.Vector {
	return blas32.Vector{
		N:    n,
		Inc:  1,
		Data: make([]float32, n),
	}
}

func NewZerosLike(vec blas32.Vector) blas32.Vector {
	return NewZeros(vec.N)
}

func Clone(vec blas32.Vector) blas32.Vector {
	return blas32.Vector{
		N:    vec.N,
		Inc:  vec.Inc,
		Data: slices.Clone(vec.Data),
	}
}

// OneHot returns a vector of length n that is 1 at idx and 0 elsewhere.
func OneHot(n, idx int) (blas32.Vector, error) {
	if idx < 0 || idx >= n {
		return blas32.Vector{}, fmt.Errorf("vector.OneHot: index %d out of range [0, %d)", idx, n)
	}
	vec := NewZeros(n)
	vec.Data[idx] = 1.0
	return vec, nil
}

// Max panics on an empty vector.
func Max(vec blas32.Vector) float32 {
	if vec.N == 0 {
		panic("vector.Max: empty vector")
	}
	m := vec.Data[0]
	for i := 1; i < vec.N; i++ {
		m = math32.Max(m, vec.Data[i*vec.Inc])
	}
	return m
}

func Sum(vec blas32.Vector) float32 {
	var sum float32
	for i := 0; i < vec.N; i++ {
		sum += vec.Data[i*vec.Inc]
	}
	return sum
}

// StableSoftmax normalizes x into a probability distribution. x is not modified.
func StableSoftmax(x blas32.Vector) blas32.Vector {
	maxX := Max(x) // オーバーフロー対策
	y := NewZeros(x.N)
	var sumExpX float32
	for i := range y.Data {
		e := math32.Exp(x.Data[i*x.Inc] - maxX)
		y.Data[i] = e
		sumExpX += e
	}
	blas32.Scal(1.0/sumExpX, y)
	return y
}
