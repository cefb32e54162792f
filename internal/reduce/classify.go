package reduce

import (
	"context"
	"errors"

	"github.com/diffuzz/diffuzz/internal/compiler"
	"github.com/diffuzz/diffuzz/internal/execclient"
)

// ModeKind tags the interestingness mode established once at reducer start
// (spec.md §4.H "the reducer first compiles debug and release copies to
// establish the interestingness mode").
type ModeKind int

const (
	// ModeCompilerCrash: recompiling must throw on the same regime.
	ModeCompilerCrash ModeKind = iota
	// ModeCompileError: recompiling must reproduce the same diagnostic code.
	ModeCompileError
	// ModeRuntimeCrash: re-running must crash/exit abnormally.
	ModeRuntimeCrash
	// ModeExceptionDivergence: re-running must reproduce the same pair of
	// (debug, release) exception type names.
	ModeExceptionDivergence
	// ModeChecksumDivergence: re-running must again disagree on checksum
	// while agreeing on exception types.
	ModeChecksumDivergence
)

// Mode is the frozen classification spec.md §4.H derives from the original
// program; every later candidate is judged by reproducing it.
type Mode struct {
	Kind ModeKind

	Regime string // "debug" | "release"; meaningful for CompilerCrash/CompileError
	Code   string // compiler.Diagnostic.Code; meaningful for CompileError

	DebugException   string // meaningful for ExceptionDivergence
	ReleaseException string
}

// ErrNotBuggy is returned when the initial program has no divergence at all
// (spec.md §7 "On 'program has no errors' at reducer start, abort with a
// user-facing error").
var ErrNotBuggy = errors.New("reduce: program has no errors to reduce (not interesting)")

// ErrHangsAtStart is returned when the initial program times out (spec.md
// §7 "On 'program times out' at reducer start, abort (hangs cannot be
// distinguished from slow programs)").
var ErrHangsAtStart = errors.New("reduce: program times out at reducer start; cannot reduce a hang")

// evalResult is the outcome of compiling + (maybe) running one candidate
// source text, carrying enough detail for both baseline establishment and
// later interestingness checks.
type evalResult struct {
	compilerCrash *compiler.CompilerCrash
	compileError  *compiler.CompileError
	timeout       bool
	crash         bool
	pair          *execclient.ProgramPairResults
}

// evaluate compiles source under both regimes and, if both succeed, runs
// the pair through exec (spec.md §4.H, §2 control flow).
func evaluate(ctx context.Context, debugC, releaseC compiler.Compiler, exec *execclient.Client, source []byte) evalResult {
	var res evalResult

	dbgBytes, dbgErr := debugC.Compile(source, compiler.Options{Optimize: false})
	if cc, ok := asCompilerCrash(dbgErr); ok {
		res.compilerCrash = cc
		return res
	}
	if ce, ok := asCompileError(dbgErr); ok {
		res.compileError = ce
		return res
	}

	relBytes, relErr := releaseC.Compile(source, compiler.Options{Optimize: true})
	if cc, ok := asCompilerCrash(relErr); ok {
		res.compilerCrash = cc
		return res
	}
	if ce, ok := asCompileError(relErr); ok {
		res.compileError = ce
		return res
	}

	if exec == nil {
		// No child process wired (reduce without --reduce-use-child-processes):
		// callers in compiler-only modes never reach here; runtime modes are
		// simply unavailable and report as a non-crash, non-timeout empty pair.
		return res
	}

	outcome, err := exec.RunPair(ctx, execclient.PairArgs{TrackOutput: true, Debug: dbgBytes, Release: relBytes})
	if err != nil {
		res.crash = true
		return res
	}
	switch {
	case outcome.Timeout:
		res.timeout = true
	case outcome.Crash != nil:
		res.crash = true
	case outcome.Pair != nil:
		res.pair = outcome.Pair
	default:
		res.crash = true
	}
	return res
}

func asCompilerCrash(err error) (*compiler.CompilerCrash, bool) {
	var cc *compiler.CompilerCrash
	if errors.As(err, &cc) {
		return cc, true
	}
	return nil, false
}

func asCompileError(err error) (*compiler.CompileError, bool) {
	var ce *compiler.CompileError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// establishMode classifies the initial program's evalResult into a frozen
// Mode, or returns one of the start-time abort errors.
func establishMode(res evalResult) (Mode, error) {
	if res.compilerCrash != nil {
		return Mode{Kind: ModeCompilerCrash, Regime: res.compilerCrash.Regime}, nil
	}
	if res.compileError != nil {
		return Mode{Kind: ModeCompileError, Regime: res.compileError.Regime, Code: res.compileError.FirstErrorCode()}, nil
	}
	if res.timeout {
		return Mode{}, ErrHangsAtStart
	}
	if res.crash {
		return Mode{Kind: ModeRuntimeCrash}, nil
	}
	if res.pair == nil {
		return Mode{}, ErrNotBuggy
	}
	if res.pair.DebugResult.ExceptionType != res.pair.ReleaseResult.ExceptionType {
		return Mode{
			Kind:             ModeExceptionDivergence,
			DebugException:   res.pair.DebugResult.ExceptionType,
			ReleaseException: res.pair.ReleaseResult.ExceptionType,
		}, nil
	}
	if res.pair.Mismatched() {
		return Mode{Kind: ModeChecksumDivergence}, nil
	}
	return Mode{}, ErrNotBuggy
}

// reproduces reports whether res reproduces mode, with the "may silently
// upgrade to runtime-crash" allowance (spec.md §4.H): a candidate that now
// crashes is treated as interesting in every mode except compiler-crash,
// and upgrades mode for subsequent checks. The caller applies the upgrade.
func reproduces(mode Mode, res evalResult) (interesting bool, upgraded *Mode) {
	switch mode.Kind {
	case ModeCompilerCrash:
		if res.compilerCrash != nil && res.compilerCrash.Regime == mode.Regime {
			return true, nil
		}
		return false, nil
	case ModeCompileError:
		if res.compileError != nil && res.compileError.Regime == mode.Regime && res.compileError.FirstErrorCode() == mode.Code {
			return true, nil
		}
		if res.crash {
			up := Mode{Kind: ModeRuntimeCrash}
			return true, &up
		}
		return false, nil
	case ModeRuntimeCrash:
		return res.crash, nil
	case ModeExceptionDivergence:
		if res.crash {
			up := Mode{Kind: ModeRuntimeCrash}
			return true, &up
		}
		if res.pair == nil {
			return false, nil
		}
		return res.pair.DebugResult.ExceptionType == mode.DebugException &&
			res.pair.ReleaseResult.ExceptionType == mode.ReleaseException, nil
	case ModeChecksumDivergence:
		if res.crash {
			up := Mode{Kind: ModeRuntimeCrash}
			return true, &up
		}
		if res.pair == nil {
			return false, nil
		}
		return res.pair.Mismatched() &&
			res.pair.DebugResult.ExceptionType == res.pair.ReleaseResult.ExceptionType, nil
	}
	return false, nil
}
