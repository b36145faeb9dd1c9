package tensor2d

import (
	"fmt"
	"math/rand"
	"slices"

	crand "github.com/sw965/xent/math/rand"
	"gonum.org/v1/gonum/blas/blas32"
	"gonum.org/v1/gonum/floats/scalar"
)

func NewZeros(rows, cols int) blas32.General {
	return blas32.General{
		Rows:   rows,
		Cols:   cols,
		Stride: cols,
		Data:   make([]float32, rows*cols),
	}
}

func NewZerosLike(gen blas32.General) blas32.General {
	return NewZeros(gen.Rows, gen.Cols)
}

func NewOnes(rows, cols int) blas32.General {
	gen := NewZeros(rows, cols)
	for i := range gen.Data {
		gen.Data[i] = 1.0
	}
	return gen
}

// NewUniform fills a rows x cols matrix with samples from [low, high).
func NewUniform(rows, cols int, low, high float32, rng *rand.Rand) blas32.General {
	gen := NewZeros(rows, cols)
	for i := range gen.Data {
		gen.Data[i] = crand.Uniform(low, high, rng)
	}
	return gen
}

func NewRademacher(rows, cols int, rng *rand.Rand) blas32.General {
	gen := NewZeros(rows, cols)
	for i := range gen.Data {
		gen.Data[i] = crand.Rademacher(rng)
	}
	return gen
}

// FromRows copies rows into a dense matrix. All rows must have the same length.
func FromRows(rows [][]float32) (blas32.General, error) {
	if len(rows) == 0 {
		return NewZeros(0, 0), nil
	}
	cols := len(rows[0])
	gen := NewZeros(len(rows), cols)
	for r, row := range rows {
		if len(row) != cols {
			return blas32.General{}, fmt.Errorf("tensor2d.FromRows: row %d has %d columns, want %d", r, len(row), cols)
		}
		copy(gen.Data[r*gen.Stride:], row)
	}
	return gen, nil
}

func N(gen blas32.General) int {
	return gen.Rows * gen.Cols
}

func Clone(gen blas32.General) blas32.General {
	return blas32.General{
		Rows:   gen.Rows,
		Cols:   gen.Cols,
		Stride: gen.Stride,
		Data:   slices.Clone(gen.Data),
	}
}

func At(gen blas32.General, row, col int) int {
	return row*gen.Stride + col
}

// Row returns a view of row r. Writes through the view change gen.
func Row(gen blas32.General, r int) blas32.Vector {
	offset := r * gen.Stride
	return blas32.Vector{
		N:    gen.Cols,
		Inc:  1,
		Data: gen.Data[offset : offset+gen.Cols],
	}
}

// ToVector requires a contiguous matrix (Stride == Cols).
func ToVector(gen blas32.General) blas32.Vector {
	return blas32.Vector{
		N:    N(gen),
		Inc:  1,
		Data: gen.Data,
	}
}

func Flatten(gen blas32.General) blas32.Vector {
	data := make([]float32, 0, N(gen))
	for r := 0; r < gen.Rows; r++ {
		data = append(data, Row(gen, r).Data...)
	}
	return blas32.Vector{
		N:    len(data),
		Inc:  1,
		Data: data,
	}
}

func Scal(alpha float32, gen blas32.General) {
	vec := ToVector(gen)
	blas32.Scal(alpha, vec)
}

// AddConst returns a copy of gen with c added to every element.
func AddConst(c float32, gen blas32.General) blas32.General {
	y := NewZerosLike(gen)
	for r := 0; r < gen.Rows; r++ {
		src := Row(gen, r).Data
		dst := Row(y, r).Data
		for i, e := range src {
			dst[i] = e + c
		}
	}
	return y
}

func Sum1(gen blas32.General) blas32.Vector {
	sums := make([]float32, gen.Rows)
	for r := 0; r < gen.Rows; r++ {
		offset := r * gen.Stride
		var sum float32
		for c := 0; c < gen.Cols; c++ {
			sum += gen.Data[offset+c]
		}
		sums[r] = sum
	}
	return blas32.Vector{
		N:    gen.Rows,
		Inc:  1,
		Data: sums,
	}
}

func SameShape(a, b blas32.General) bool {
	return a.Rows == b.Rows && a.Cols == b.Cols
}

// Equal reports whether a and b have the same shape and every pair of elements
// is within absTol or relTol of each other.
func Equal(a, b blas32.General, absTol, relTol float64) bool {
	if !SameShape(a, b) {
		return false
	}
	for r := 0; r < a.Rows; r++ {
		for c := 0; c < a.Cols; c++ {
			x := float64(a.Data[At(a, r, c)])
			y := float64(b.Data[At(b, r, c)])
			if !scalar.EqualWithinAbsOrRel(x, y, absTol, relTol) {
				return false
			}
		}
	}
	return true
}
