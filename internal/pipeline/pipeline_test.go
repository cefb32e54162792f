package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/diffuzz/diffuzz/internal/compiler"
	"github.com/diffuzz/diffuzz/internal/eventlog"
)

type stubCompiler struct {
	err error
}

func (s *stubCompiler) Compile(source []byte, _ compiler.Options) ([]byte, error) {
	if s.err != nil {
		return nil, s.err
	}
	return source, nil
}

// TestGenerateDeterministic covers spec.md §8 S1: two Generate calls with
// the same seed must produce programs with the same seed and the same
// number of functions.
func TestGenerateDeterministic(t *testing.T) {
	p := &Pipeline{PrimaryClass: "Program"}
	a := p.Generate(42)
	b := p.Generate(42)
	if a.Seed != b.Seed {
		t.Fatalf("seeds differ: %d vs %d", a.Seed, b.Seed)
	}
	if len(a.Functions) != len(b.Functions) {
		t.Fatalf("function counts differ: %d vs %d", len(a.Functions), len(b.Functions))
	}
}

// TestRunOnceCompilerCrash covers spec.md §7 CompilerCrash classification:
// a debug-side crash must short-circuit before the release compile runs.
func TestRunOnceCompilerCrash(t *testing.T) {
	releaseCompiled := false
	debugC := &stubCompiler{err: &compiler.CompilerCrash{Regime: "debug", Cause: errors.New("boom")}}
	relC := compilerFunc(func(src []byte, opt compiler.Options) ([]byte, error) {
		releaseCompiled = true
		return src, nil
	})

	p := &Pipeline{PrimaryClass: "Program", DebugCompiler: debugC, RelCompiler: relC}
	out, err := p.RunOnce(context.Background(), 1)
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if out.Kind != eventlog.KindCompilerCrash {
		t.Fatalf("got kind %q, want %q", out.Kind, eventlog.KindCompilerCrash)
	}
	if !out.Interesting() {
		t.Fatal("CompilerCrash outcome should be Interesting")
	}
	if releaseCompiled {
		t.Fatal("release regime should not compile after a debug CompilerCrash")
	}
}

// TestRunOnceCompileError covers spec.md §7 CompileError classification.
func TestRunOnceCompileError(t *testing.T) {
	debugC := &stubCompiler{}
	relC := &stubCompiler{err: &compiler.CompileError{
		Regime:      "release",
		Diagnostics: []compiler.Diagnostic{{Code: "CS0029", Severity: "error"}},
	}}
	p := &Pipeline{PrimaryClass: "Program", DebugCompiler: debugC, RelCompiler: relC}
	out, err := p.RunOnce(context.Background(), 7)
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if out.Kind != eventlog.KindCompileError {
		t.Fatalf("got kind %q, want %q", out.Kind, eventlog.KindCompileError)
	}
	if out.Detail["code"] != "CS0029" {
		t.Fatalf("got code %v, want CS0029", out.Detail["code"])
	}
}

// TestRunOnceCleanNoExec covers the Exec==nil path: with no executor wired,
// a program that compiles cleanly under both regimes is not Interesting.
func TestRunOnceCleanNoExec(t *testing.T) {
	p := &Pipeline{PrimaryClass: "Program", DebugCompiler: &stubCompiler{}, RelCompiler: &stubCompiler{}}
	out, err := p.RunOnce(context.Background(), 3)
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if out.Interesting() {
		t.Fatalf("clean compile with no executor should not be Interesting, got kind %q", out.Kind)
	}
}

type compilerFunc func(source []byte, opt compiler.Options) ([]byte, error)

func (f compilerFunc) Compile(source []byte, opt compiler.Options) ([]byte, error) {
	return f(source, opt)
}
