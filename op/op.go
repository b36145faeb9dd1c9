// Package op holds named operators together with the keyed variables they read
// and write.
package op

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"gonum.org/v1/gonum/blas/blas32"
)

var (
	ErrMissingVar   = errors.New("missing variable")
	ErrUnknownOp    = errors.New("unknown operator")
	ErrDuplicateOp  = errors.New("operator already registered")
	ErrIncompleteOp = errors.New("incomplete operator")
)

// Var is either a float32 matrix or an index vector.
type Var struct {
	General blas32.General
	Index   []int
}

func NewGeneralVar(gen blas32.General) Var {
	return Var{General: gen}
}

func NewIndexVar(idx []int) Var {
	return Var{Index: idx}
}

type Vars map[string]Var

func (vs Vars) General(name string) (blas32.General, error) {
	v, ok := vs[name]
	if !ok {
		return blas32.General{}, fmt.Errorf("%w: %s", ErrMissingVar, name)
	}
	return v.General, nil
}

func (vs Vars) Index(name string) ([]int, error) {
	v, ok := vs[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMissingVar, name)
	}
	return v.Index, nil
}

// GradName is the key under which the gradient of name is stored.
func GradName(name string) string {
	return name + "@GRAD"
}

type Forward func(ins Vars) (Vars, error)

// Backward receives the forward inputs and outputs plus the gradients of the
// outputs (keyed by GradName) and returns the gradients of the inputs.
type Backward func(ins, outs, outGrads Vars) (Vars, error)

type Op struct {
	Type     string
	Inputs   []string
	Outputs  []string
	Forward  Forward
	Backward Backward
}

var (
	mu       sync.RWMutex
	registry = map[string]Op{}
)

func Register(o Op) error {
	if o.Type == "" || o.Forward == nil {
		return fmt.Errorf("%w: %q", ErrIncompleteOp, o.Type)
	}

	mu.Lock()
	defer mu.Unlock()
	if _, ok := registry[o.Type]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateOp, o.Type)
	}
	registry[o.Type] = o
	return nil
}

func Lookup(typ string) (Op, error) {
	mu.RLock()
	defer mu.RUnlock()
	o, ok := registry[typ]
	if !ok {
		return Op{}, fmt.Errorf("%w: %s", ErrUnknownOp, typ)
	}
	return o, nil
}

func Types() []string {
	mu.RLock()
	defer mu.RUnlock()
	types := make([]string, 0, len(registry))
	for typ := range registry {
		types = append(types, typ)
	}
	slices.Sort(types)
	return types
}
