// Package reduce implements the interestingness-preserving shrinker
// (spec.md §4.H): a coarse binary-search statement remover followed by a
// fixed-point application of a prioritized tree-rewrite simplifier catalog,
// each rewrite gated by reproducing the original program's divergence.
//
// Tree-rewriting everywhere: following the teacher's node-tree-plus-Walk
// shape (spec.md §9), a rewrite here is "clone the program, mutate the
// clone, test it, keep the clone or throw it away" -- never in-place
// mutation of the tree the caller still holds a reference to.
package reduce

import (
	"context"
	"fmt"
	"time"

	"github.com/diffuzz/diffuzz/internal/ast"
	"github.com/diffuzz/diffuzz/internal/compiler"
	"github.com/diffuzz/diffuzz/internal/execclient"
	"github.com/diffuzz/diffuzz/internal/printer"
	"github.com/diffuzz/diffuzz/internal/rng"
)

// Config controls reducer behavior.
type Config struct {
	// Timeout bounds every compile+run attempt made during reduction.
	Timeout time.Duration
	// ShuffleSeed seeds the Fisher-Yates traversal-order shuffle (spec.md
	// §4.H fine pass); fixed for a reproducible reduction given a fixed
	// input program.
	ShuffleSeed uint64
}

// DefaultConfig returns reasonable reduction defaults.
func DefaultConfig() Config {
	return Config{Timeout: 10 * time.Second, ShuffleSeed: 0xD15EA5E}
}

// Reducer drives one reduction session against a compile+run pipeline.
type Reducer struct {
	debug   compiler.Compiler
	release compiler.Compiler
	exec    *execclient.Client
	cfg     Config
	r       *rng.Random

	mode       Mode
	iterations int
	simplified int
}

// New builds a Reducer. exec may be nil when the caller did not pass
// --reduce-use-child-processes (spec.md §6): in that case only
// CompilerCrash/CompileError modes are reachable, matching spec.md §5 "an
// independent instance of the pipeline" being optional for the reducer.
func New(debugC, releaseC compiler.Compiler, exec *execclient.Client, cfg Config) *Reducer {
	return &Reducer{debug: debugC, release: releaseC, exec: exec, cfg: cfg, r: rng.New(cfg.ShuffleSeed)}
}

// Report summarizes a completed reduction for the header comment (spec.md
// §6) and CLI output.
type Report struct {
	OriginalSizeBytes int
	ReducedSizeBytes  int
	Elapsed           time.Duration
	Mode              Mode
	DebugSummary      string
	ReleaseSummary    string
}

// Reduce runs the full pipeline: establish mode, coarse pass, fine pass to
// fixed point, finalize (spec.md §4.H).
func (rd *Reducer) Reduce(ctx context.Context, initial *ast.Program) (*ast.Program, Report, error) {
	start := time.Now()

	originalSrc, err := printer.Print(initial, printer.DefaultOptions())
	if err != nil {
		return nil, Report{}, fmt.Errorf("reduce: print initial program: %w", err)
	}

	baselineRes := rd.evalCtx(ctx, originalSrc)
	mode, err := establishMode(baselineRes)
	if err != nil {
		return nil, Report{}, err
	}
	rd.mode = mode

	current := initial
	current = rd.coarsePass(ctx, current)
	current = rd.finePass(ctx, current)
	final, summary := rd.finalize(current)

	// Measured without the reduction header itself, so "Reduced from X to Y"
	// describes the program, not the summary line describing it.
	plainSrc, err := printer.Print(final, printer.DefaultOptions())
	if err != nil {
		return nil, Report{}, fmt.Errorf("reduce: print final program: %w", err)
	}

	report := Report{
		OriginalSizeBytes: len(originalSrc),
		ReducedSizeBytes:  len(plainSrc),
		Elapsed:           time.Since(start),
		Mode:              rd.mode,
		DebugSummary:      summary.debug,
		ReleaseSummary:    summary.release,
	}
	return final, report, nil
}

// PrintWithHeader renders final with report's summary embedded in the
// header comment (spec.md §6), for callers emitting the reduced source to
// --output-source.
func PrintWithHeader(final *ast.Program, report Report) ([]byte, error) {
	return printer.Print(final, printer.Options{
		Now: time.Now,
		Reduction: &printer.ReductionInfo{
			OriginalBytes:  report.OriginalSizeBytes,
			ReducedBytes:   report.ReducedSizeBytes,
			Elapsed:        report.Elapsed,
			DebugSummary:   report.DebugSummary,
			ReleaseSummary: report.ReleaseSummary,
		},
	})
}

// isInteresting is the predicate gating every commit in both passes (spec.md
// §4.H, §8 property 7): prints the candidate, evaluates it, and reports
// whether it reproduces rd.mode. A reproduced-but-upgraded classification
// (spec.md "the mode may silently upgrade to runtime-crash") updates
// rd.mode for subsequent checks.
func (rd *Reducer) isInteresting(ctx context.Context, candidate *ast.Program) bool {
	src, err := printer.Print(candidate, printer.DefaultOptions())
	if err != nil {
		return false
	}
	res := rd.evalCtx(ctx, src)
	ok, upgraded := reproduces(rd.mode, res)
	if upgraded != nil {
		rd.mode = *upgraded
	}
	return ok
}

func (rd *Reducer) evalCtx(ctx context.Context, src []byte) evalResult {
	runCtx := ctx
	var cancel context.CancelFunc
	if rd.cfg.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, rd.cfg.Timeout)
		defer cancel()
	}
	return evaluate(runCtx, rd.debug, rd.release, rd.exec, src)
}
