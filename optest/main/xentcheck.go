package main

import (
	"errors"
	"fmt"
	"log"
	"os"
	"runtime"
	"sync"

	"github.com/spf13/cobra"
	crand "github.com/sw965/xent/math/rand"
	"github.com/sw965/xent/optest"
	"github.com/sw965/xent/softmaxce"
	"golang.org/x/sync/errgroup"
)

var errFailed = errors.New("some cases failed")

type options struct {
	cases        int
	seed         int64
	workers      int
	caseCfg      optest.CaseConfig
	tol          optest.Tolerance
	gradCfg      optest.GradConfig
	saveFailures string
}

func newRootCmd() *cobra.Command {
	opts := options{
		caseCfg: optest.NewCaseConfig(),
		tol:     optest.DefaultTolerance,
		gradCfg: optest.NewGradConfig(),
	}

	cmd := &cobra.Command{
		Use:           "xentcheck",
		Short:         "Check softmax_with_cross_entropy against the reference on random cases",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(opts)
		},
	}

	flags := cmd.Flags()
	flags.IntVar(&opts.cases, "cases", 100, "number of random cases")
	flags.Int64Var(&opts.seed, "seed", 1, "seed of the first worker; worker i uses seed+i")
	flags.IntVar(&opts.workers, "workers", runtime.NumCPU(), "number of parallel workers")
	flags.IntVar(&opts.caseCfg.MaxBatchSize, "max-batch", opts.caseCfg.MaxBatchSize, "exclusive upper bound of the batch size")
	flags.IntVar(&opts.caseCfg.MaxClassNum, "max-class", opts.caseCfg.MaxClassNum, "exclusive upper bound of the class num")
	flags.Float64Var(&opts.tol.Abs, "abs-tol", opts.tol.Abs, "absolute tolerance of the forward check")
	flags.Float64Var(&opts.tol.Rel, "rel-tol", opts.tol.Rel, "relative tolerance of the forward check")
	flags.Float64Var(&opts.gradCfg.Delta, "delta", opts.gradCfg.Delta, "finite difference step of the gradient check")
	flags.Float64Var(&opts.gradCfg.MaxRelativeError, "max-rel-err", opts.gradCfg.MaxRelativeError, "maximum relative error of the gradient check")
	flags.StringVar(&opts.saveFailures, "save-failures", "", "write failing cases to this gob file")
	return cmd
}

// distributeIndicesEvenly splits [0, n) into p contiguous chunks whose sizes
// differ by at most one.
func distributeIndicesEvenly(n, p int) [][]int {
	chunks := make([][]int, p)
	start := 0
	for i := range chunks {
		size := n / p
		if i < n%p {
			size++
		}
		chunks[i] = make([]int, size)
		for j := range chunks[i] {
			chunks[i][j] = start + j
		}
		start += size
	}
	return chunks
}

func checkCase(c optest.Case, opts options) error {
	if err := optest.CheckOutput(c, opts.tol); err != nil {
		return fmt.Errorf("check output: %w", err)
	}
	if err := optest.CheckGrad(c, []string{softmaxce.LogitsName}, softmaxce.LossName, opts.gradCfg); err != nil {
		return fmt.Errorf("check grad: %w", err)
	}
	return nil
}

func run(opts options) error {
	if opts.cases < 0 {
		return fmt.Errorf("--cases must not be negative, got %d", opts.cases)
	}
	if opts.workers < 1 {
		return fmt.Errorf("--workers must be positive, got %d", opts.workers)
	}
	if err := opts.caseCfg.Validate(); err != nil {
		return err
	}

	log.Printf("%d cases, %d workers, seed %d", opts.cases, opts.workers, opts.seed)
	rngs := crand.NewMt19937s(opts.seed, opts.workers)

	var mu sync.Mutex
	var failures []optest.Case
	var g errgroup.Group
	for workerIdx, idxs := range distributeIndicesEvenly(opts.cases, opts.workers) {
		workerIdx, idxs := workerIdx, idxs
		g.Go(func() error {
			rng := rngs[workerIdx]
			for _, idx := range idxs {
				c, err := optest.NewSoftmaxWithCrossEntropyCase(opts.caseCfg, rng)
				if err != nil {
					return err
				}
				if err := checkCase(c, opts); err != nil {
					log.Printf("case %d (worker %d): %v", idx, workerIdx, err)
					mu.Lock()
					failures = append(failures, c)
					mu.Unlock()
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if len(failures) == 0 {
		log.Printf("all %d cases passed", opts.cases)
		return nil
	}
	if opts.saveFailures != "" {
		if err := optest.SaveCases(opts.saveFailures, failures); err != nil {
			return err
		}
		log.Printf("saved %d failing cases to %s", len(failures), opts.saveFailures)
	}
	return fmt.Errorf("%w: %d of %d", errFailed, len(failures), opts.cases)
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Println(err)
		os.Exit(1)
	}
}
