// Package optest checks a registered operator against precomputed outputs
// (CheckOutput) and its backward pass against finite differences (CheckGrad).
package optest

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"slices"
	"sync"

	"github.com/sw965/xent/blas32/tensor/2d"
	cmath "github.com/sw965/xent/math"
	"github.com/sw965/xent/op"
	"gonum.org/v1/gonum/blas/blas32"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/floats/scalar"
)

var ErrShapeMismatch = errors.New("shape mismatch")

// Case is one operator invocation: the inputs to feed and the outputs expected.
type Case struct {
	Type    string
	Inputs  op.Vars
	Outputs op.Vars
}

type Tolerance struct {
	Abs float64
	Rel float64
}

var DefaultTolerance = Tolerance{Abs: 1e-5, Rel: 1e-5}

type MismatchError struct {
	Type  string
	Var   string
	Index int
	Got   float64
	Want  float64
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("%s: output %s[%d] = %v, want %v", e.Type, e.Var, e.Index, e.Got, e.Want)
}

type GradMismatchError struct {
	Type             string
	Var              string
	Index            int
	Analytic         float64
	Numeric          float64
	RelativeError    float64
	MaxRelativeError float64
}

func (e *GradMismatchError) Error() string {
	return fmt.Sprintf("%s: gradient of %s[%d]: analytic %v, numeric %v, relative error %v exceeds %v",
		e.Type, e.Var, e.Index, e.Analytic, e.Numeric, e.RelativeError, e.MaxRelativeError)
}

func compareGeneral(typ, name string, got, want blas32.General, tol Tolerance) error {
	if !tensor2d.SameShape(got, want) {
		return fmt.Errorf("%s: output %s: %w: got %dx%d, want %dx%d", typ, name, ErrShapeMismatch, got.Rows, got.Cols, want.Rows, want.Cols)
	}
	g := tensor2d.Flatten(got).Data
	w := tensor2d.Flatten(want).Data
	for i := range w {
		gi, wi := float64(g[i]), float64(w[i])
		if !scalar.EqualWithinAbsOrRel(gi, wi, tol.Abs, tol.Rel) {
			return &MismatchError{Type: typ, Var: name, Index: i, Got: gi, Want: wi}
		}
	}
	return nil
}

func compareIndex(typ, name string, got, want []int) error {
	if len(got) != len(want) {
		return fmt.Errorf("%s: output %s: %w: got %d entries, want %d", typ, name, ErrShapeMismatch, len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			return &MismatchError{Type: typ, Var: name, Index: i, Got: float64(got[i]), Want: float64(want[i])}
		}
	}
	return nil
}

// CheckOutput runs the forward pass of c.Type and compares every expected output.
func CheckOutput(c Case, tol Tolerance) error {
	o, err := op.Lookup(c.Type)
	if err != nil {
		return err
	}
	outs, err := o.Forward(c.Inputs)
	if err != nil {
		return fmt.Errorf("%s: forward: %w", c.Type, err)
	}

	for _, name := range o.Outputs {
		want, ok := c.Outputs[name]
		if !ok {
			continue
		}
		got, ok := outs[name]
		if !ok {
			return fmt.Errorf("%s: forward: %w: %s", c.Type, op.ErrMissingVar, name)
		}
		if want.Index != nil {
			err = compareIndex(c.Type, name, got.Index, want.Index)
		} else {
			err = compareGeneral(c.Type, name, got.General, want.General, tol)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

type GradConfig struct {
	// Delta is the finite difference step.
	Delta            float64
	MaxRelativeError float64
	Concurrent       bool
}

func NewGradConfig() GradConfig {
	return GradConfig{
		Delta:            0.005,
		MaxRelativeError: 0.01,
	}
}

func replaceInput(ins op.Vars, name string, gen blas32.General) op.Vars {
	replaced := make(op.Vars, len(ins))
	for k, v := range ins {
		replaced[k] = v
	}
	replaced[name] = op.NewGeneralVar(gen)
	return replaced
}

// meanOutput returns a function evaluating mean(outputName) as a function of
// the flattened input name. The first forward error is kept in *errp.
func meanOutput(o op.Op, ins op.Vars, name, outputName string, rows, cols int, errp *error) func([]float64) float64 {
	var mu sync.Mutex
	return func(x []float64) float64 {
		gen := tensor2d.NewZeros(rows, cols)
		for i, e := range x {
			gen.Data[i] = float32(e)
		}
		outs, err := o.Forward(replaceInput(ins, name, gen))
		if err == nil {
			var out blas32.General
			out, err = outs.General(outputName)
			if err == nil {
				var sum float64
				for _, e := range tensor2d.Flatten(out).Data {
					sum += float64(e)
				}
				return sum / float64(tensor2d.N(out))
			}
		}
		mu.Lock()
		if *errp == nil {
			*errp = err
		}
		mu.Unlock()
		return math.NaN()
	}
}

func toFloat64s(vec blas32.Vector) []float64 {
	x := make([]float64, vec.N)
	for i, e := range vec.Data {
		x[i] = float64(e)
	}
	return x
}

// analyticGrads runs forward then backward with d(mean(outputName)) as the
// output gradient.
func analyticGrads(o op.Op, ins op.Vars, outputName string) (op.Vars, error) {
	if o.Backward == nil {
		return nil, fmt.Errorf("%s: %w: no backward", o.Type, op.ErrIncompleteOp)
	}
	outs, err := o.Forward(ins)
	if err != nil {
		return nil, fmt.Errorf("%s: forward: %w", o.Type, err)
	}
	out, err := outs.General(outputName)
	if err != nil {
		return nil, fmt.Errorf("%s: forward: %w", o.Type, err)
	}

	outGrad := tensor2d.NewOnes(out.Rows, out.Cols)
	tensor2d.Scal(1.0/float32(tensor2d.N(out)), outGrad)
	grads, err := o.Backward(ins, outs, op.Vars{op.GradName(outputName): op.NewGeneralVar(outGrad)})
	if err != nil {
		return nil, fmt.Errorf("%s: backward: %w", o.Type, err)
	}
	return grads, nil
}

// CheckGrad compares the backward pass of c.Type with a central difference
// estimate of d mean(outputName) / d input for every name in inputNames.
// Entries whose analytic value is below 1e-3 in magnitude are compared in
// absolute terms.
func CheckGrad(c Case, inputNames []string, outputName string, cfg GradConfig) error {
	o, err := op.Lookup(c.Type)
	if err != nil {
		return err
	}
	if !slices.Contains(o.Outputs, outputName) {
		return fmt.Errorf("%s: %w: %s is not an output", c.Type, op.ErrMissingVar, outputName)
	}
	grads, err := analyticGrads(o, c.Inputs, outputName)
	if err != nil {
		return err
	}

	for _, name := range inputNames {
		x, err := c.Inputs.General(name)
		if err != nil {
			return fmt.Errorf("%s: %w", c.Type, err)
		}
		analytic, err := grads.General(op.GradName(name))
		if err != nil {
			return fmt.Errorf("%s: backward: %w", c.Type, err)
		}
		if !tensor2d.SameShape(x, analytic) {
			return fmt.Errorf("%s: gradient of %s: %w", c.Type, name, ErrShapeMismatch)
		}

		var ferr error
		f := meanOutput(o, c.Inputs, name, outputName, x.Rows, x.Cols, &ferr)
		settings := &fd.Settings{
			Formula:    fd.Central,
			Step:       cfg.Delta,
			Concurrent: cfg.Concurrent,
		}
		numeric := fd.Gradient(nil, f, toFloat64s(tensor2d.Flatten(x)), settings)
		if ferr != nil {
			return fmt.Errorf("%s: forward: %w", c.Type, ferr)
		}

		for i, a := range tensor2d.Flatten(analytic).Data {
			af := float64(a)
			scale := math.Abs(af)
			if scale < 1e-3 {
				scale = 1
			}
			relErr := math.Abs(af-numeric[i]) / scale
			if relErr > cfg.MaxRelativeError {
				return &GradMismatchError{
					Type:             c.Type,
					Var:              name,
					Index:            i,
					Analytic:         af,
					Numeric:          numeric[i],
					RelativeError:    relErr,
					MaxRelativeError: cfg.MaxRelativeError,
				}
			}
		}
	}
	return nil
}

type DirectionalConfig struct {
	Step      float64
	Tolerance Tolerance
}

func NewDirectionalConfig() DirectionalConfig {
	return DirectionalConfig{
		Step:      0.01,
		Tolerance: Tolerance{Abs: 1e-4, Rel: 1e-2},
	}
}

// CheckGradDirectional perturbs the whole of inputName along one random ±1
// direction d and compares the central difference of mean(outputName) with
// grad · d. The numeric side costs two forward passes whatever the input size.
func CheckGradDirectional(c Case, inputName, outputName string, cfg DirectionalConfig, rng *rand.Rand) error {
	o, err := op.Lookup(c.Type)
	if err != nil {
		return err
	}
	grads, err := analyticGrads(o, c.Inputs, outputName)
	if err != nil {
		return err
	}
	x, err := c.Inputs.General(inputName)
	if err != nil {
		return fmt.Errorf("%s: %w", c.Type, err)
	}
	grad, err := grads.General(op.GradName(inputName))
	if err != nil {
		return fmt.Errorf("%s: backward: %w", c.Type, err)
	}
	if !tensor2d.SameShape(x, grad) {
		return fmt.Errorf("%s: gradient of %s: %w", c.Type, inputName, ErrShapeMismatch)
	}

	direction := tensor2d.NewRademacher(x.Rows, x.Cols, rng)
	xs := toFloat64s(tensor2d.Flatten(x))
	ds := toFloat64s(tensor2d.Flatten(direction))

	var ferr error
	f := meanOutput(o, c.Inputs, inputName, outputName, x.Rows, x.Cols, &ferr)
	shifted := func(sign float64) float64 {
		p := make([]float64, len(xs))
		for i := range xs {
			p[i] = xs[i] + sign*cfg.Step*ds[i]
		}
		return f(p)
	}
	numeric := cmath.CentralDifference(shifted(1), shifted(-1), cfg.Step)
	if ferr != nil {
		return fmt.Errorf("%s: forward: %w", c.Type, ferr)
	}

	analytic := float64(blas32.Dot(tensor2d.Flatten(grad), tensor2d.Flatten(direction)))
	if !scalar.EqualWithinAbsOrRel(analytic, numeric, cfg.Tolerance.Abs, cfg.Tolerance.Rel) {
		return &GradMismatchError{
			Type:             c.Type,
			Var:              inputName,
			Index:            -1,
			Analytic:         analytic,
			Numeric:          numeric,
			RelativeError:    math.Abs(analytic-numeric) / math.Max(math.Abs(analytic), math.SmallestNonzeroFloat64),
			MaxRelativeError: cfg.Tolerance.Rel,
		}
	}
	return nil
}
