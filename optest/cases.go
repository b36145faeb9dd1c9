package optest

import (
	"encoding/gob"
	"errors"
	"fmt"
	"math/rand"
	"os"

	"github.com/sw965/xent/blas32/tensor/2d"
	crand "github.com/sw965/xent/math/rand"
	"github.com/sw965/xent/op"
	"github.com/sw965/xent/reference"
	"github.com/sw965/xent/softmaxce"
	"gonum.org/v1/gonum/blas/blas32"
)

var ErrInvalidConfig = errors.New("invalid case config")

// CaseConfig bounds the random softmax_with_cross_entropy cases. The maxima
// are exclusive.
type CaseConfig struct {
	MaxBatchSize int
	MaxClassNum  int
	LogitLow     float32
	LogitHigh    float32
}

func NewCaseConfig() CaseConfig {
	return CaseConfig{
		MaxBatchSize: 23,
		MaxClassNum:  10,
		LogitLow:     0.1,
		LogitHigh:    1.0,
	}
}

func (cfg CaseConfig) Validate() error {
	if cfg.MaxBatchSize < 2 {
		return fmt.Errorf("%w: MaxBatchSize %d, need at least 2", ErrInvalidConfig, cfg.MaxBatchSize)
	}
	if cfg.MaxClassNum < 3 {
		return fmt.Errorf("%w: MaxClassNum %d, need at least 3", ErrInvalidConfig, cfg.MaxClassNum)
	}
	if !(cfg.LogitLow < cfg.LogitHigh) {
		return fmt.Errorf("%w: logit range [%v, %v) is empty", ErrInvalidConfig, cfg.LogitLow, cfg.LogitHigh)
	}
	return nil
}

// NewSoftmaxWithCrossEntropyCase draws batch size in [1, MaxBatchSize), class
// num in [2, MaxClassNum), uniform logits and uniform labels, and fills the
// expected outputs from the reference implementation.
func NewSoftmaxWithCrossEntropyCase(cfg CaseConfig, rng *rand.Rand) (Case, error) {
	if err := cfg.Validate(); err != nil {
		return Case{}, err
	}

	batchSize := crand.IntRange(1, cfg.MaxBatchSize, rng)
	classNum := crand.IntRange(2, cfg.MaxClassNum, rng)
	logits := tensor2d.NewUniform(batchSize, classNum, cfg.LogitLow, cfg.LogitHigh, rng)
	labels := make([]int, batchSize)
	for i := range labels {
		labels[i] = crand.IntRange(0, classNum, rng)
	}
	return NewSoftmaxWithCrossEntropyCaseFrom(logits, labels)
}

// NewSoftmaxWithCrossEntropyCaseFrom builds a case for the given inputs.
func NewSoftmaxWithCrossEntropyCaseFrom(logits blas32.General, labels []int) (Case, error) {
	softmax, loss, err := reference.Compute(logits, labels)
	if err != nil {
		return Case{}, err
	}
	return Case{
		Type: softmaxce.OpType,
		Inputs: op.Vars{
			softmaxce.LogitsName: op.NewGeneralVar(logits),
			softmaxce.LabelName:  op.NewIndexVar(labels),
		},
		Outputs: op.Vars{
			softmaxce.SoftmaxName: op.NewGeneralVar(softmax),
			softmaxce.LossName:    op.NewGeneralVar(loss),
		},
	}, nil
}

func SaveCases(path string, cases []Case) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := gob.NewEncoder(f).Encode(cases); err != nil {
		f.Close()
		return fmt.Errorf("optest.SaveCases: %w", err)
	}
	return f.Close()
}

func LoadCases(path string) ([]Case, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cases []Case
	if err := gob.NewDecoder(f).Decode(&cases); err != nil {
		return nil, fmt.Errorf("optest.LoadCases: %w", err)
	}
	return cases, nil
}
