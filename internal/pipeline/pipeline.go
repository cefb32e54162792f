// Package pipeline wires Random+TypeUniverse+Synthesizer+Statics into one
// abstract program, prints it, compiles it under both regimes, runs the pair,
// and classifies the outcome (spec.md §2 "Control flow", generate mode).
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/diffuzz/diffuzz/internal/ast"
	"github.com/diffuzz/diffuzz/internal/compiler"
	"github.com/diffuzz/diffuzz/internal/execclient"
	"github.com/diffuzz/diffuzz/internal/eventlog"
	"github.com/diffuzz/diffuzz/internal/fuzztype"
	"github.com/diffuzz/diffuzz/internal/literal"
	"github.com/diffuzz/diffuzz/internal/printer"
	"github.com/diffuzz/diffuzz/internal/rng"
	"github.com/diffuzz/diffuzz/internal/statics"
	"github.com/diffuzz/diffuzz/internal/synth"
)

// Pipeline holds everything one worker needs to generate, compile, and run
// programs against the out-of-scope external collaborators (spec.md §1):
// the compiler front-end and the executor child, both reached through the
// single --host process (execclient.Client).
type Pipeline struct {
	SynthConfig   synth.Config
	PrimaryClass  string
	DebugCompiler compiler.Compiler
	RelCompiler   compiler.Compiler
	Exec          *execclient.Client // nil disables runtime execution entirely
	Log           *eventlog.Logger
}

// Generate builds one abstract Program deterministically from seed (spec.md
// §4.A-E): a fresh Random stream seeds the type universe, statics pool,
// literal generator, and synthesizer, all drawing from that single stream
// (spec.md §8 S1 determinism).
func (p *Pipeline) Generate(seed uint64) *ast.Program {
	r := rng.New(seed)
	universe := fuzztype.NewUniverse(r)
	lit := literal.NewGenerator(r, universe)
	pool := statics.NewPool(r, universe, lit)
	s := synth.NewSynthesizer(r, universe, pool, lit, p.SynthConfig)
	return s.GenerateProgram(seed, p.PrimaryClass)
}

// Outcome is the classification of one generate-mode run (spec.md §7).
type Outcome struct {
	Kind    eventlog.Kind
	Detail  map[string]any
	Program *ast.Program
	Source  []byte
}

// RunOnce generates a program for seed, compiles and (if Exec is set) runs
// it, and classifies the result. It returns a non-nil error only for
// infrastructure failures (spec.md §7); every compiler/runtime divergence is
// reported via the returned Outcome and logged, never returned as an error,
// so dispatch.Run never cancels siblings over a found bug.
func (p *Pipeline) RunOnce(ctx context.Context, seed uint64) (Outcome, error) {
	prog := p.Generate(seed)
	src, err := printer.Print(prog, printer.DefaultOptions())
	if err != nil {
		return Outcome{}, fmt.Errorf("pipeline: print program (seed %d): %w", seed, err)
	}

	dbgBytes, dbgErr := p.DebugCompiler.Compile(src, compiler.Options{Optimize: false})
	if out, ok := classifyCompile("debug", dbgErr); ok {
		out.Program, out.Source = prog, src
		p.log(seed, out)
		return out, nil
	}
	relBytes, relErr := p.RelCompiler.Compile(src, compiler.Options{Optimize: true})
	if out, ok := classifyCompile("release", relErr); ok {
		out.Program, out.Source = prog, src
		p.log(seed, out)
		return out, nil
	}

	if p.Exec == nil {
		out := Outcome{Kind: "", Program: prog, Source: src}
		return out, nil
	}

	outcome, err := p.Exec.RunPair(ctx, execclient.PairArgs{TrackOutput: true, Debug: dbgBytes, Release: relBytes})
	if err != nil {
		return Outcome{}, fmt.Errorf("pipeline: run pair (seed %d): %w", seed, err)
	}

	var out Outcome
	switch {
	case outcome.Timeout:
		out = Outcome{Kind: eventlog.KindTimeout, Program: prog, Source: src}
	case outcome.Crash != nil:
		out = Outcome{Kind: eventlog.KindRuntimeCrash, Detail: map[string]any{"stderr": outcome.Crash.Stderr}, Program: prog, Source: src}
	case outcome.Pair != nil:
		out = classifyPair(outcome.Pair, prog, src)
	default:
		out = Outcome{Kind: eventlog.KindRuntimeCrash, Program: prog, Source: src}
	}
	p.log(seed, out)
	return out, nil
}

func classifyCompile(regime string, err error) (Outcome, bool) {
	var cc *compiler.CompilerCrash
	if errors.As(err, &cc) {
		return Outcome{Kind: eventlog.KindCompilerCrash, Detail: map[string]any{"regime": regime}}, true
	}
	var ce *compiler.CompileError
	if errors.As(err, &ce) {
		return Outcome{Kind: eventlog.KindCompileError, Detail: map[string]any{"regime": regime, "code": ce.FirstErrorCode()}}, true
	}
	return Outcome{}, false
}

func classifyPair(pair *execclient.ProgramPairResults, prog *ast.Program, src []byte) Outcome {
	if pair.DebugResult.ExceptionType != pair.ReleaseResult.ExceptionType {
		return Outcome{
			Kind: eventlog.KindException,
			Detail: map[string]any{
				"debugException":   pair.DebugResult.ExceptionType,
				"releaseException": pair.ReleaseResult.ExceptionType,
			},
			Program: prog, Source: src,
		}
	}
	if pair.Mismatched() {
		return Outcome{
			Kind: eventlog.KindMismatch,
			Detail: map[string]any{
				"debugChecksum":   pair.DebugResult.Checksum,
				"releaseChecksum": pair.ReleaseResult.Checksum,
			},
			Program: prog, Source: src,
		}
	}
	return Outcome{Program: prog, Source: src}
}

func (p *Pipeline) log(seed uint64, out Outcome) {
	if p.Log == nil || out.Kind == "" {
		return
	}
	_ = p.Log.Append(out.Kind, seed, out.Detail)
}

// Interesting reports whether out represents a divergence worth reporting
// (spec.md §7: CompilerCrash/CompileError/ExceptionDivergence/ProgramMismatch/
// a runtime crash or timeout), as opposed to a clean run.
func (o Outcome) Interesting() bool { return o.Kind != "" }
