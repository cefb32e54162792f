package reduce

import (
	"bytes"
	"context"
	"testing"

	"github.com/diffuzz/diffuzz/internal/ast"
	"github.com/diffuzz/diffuzz/internal/compiler"
	"github.com/diffuzz/diffuzz/internal/fuzztype"
)

// markerCompiler is a fake compiler.Compiler: it reports a CompileError
// whenever source contains marker, and succeeds otherwise. This lets a test
// pin a reduction's "bug" to one specific literal appearing in the printed
// program, independent of any real host process.
type markerCompiler struct {
	regime string
	marker []byte
}

func (m *markerCompiler) Compile(source []byte, _ compiler.Options) ([]byte, error) {
	if bytes.Contains(source, m.marker) {
		return nil, &compiler.CompileError{
			Regime:      m.regime,
			Diagnostics: []compiler.Diagnostic{{Code: "CS0001", Severity: "error"}},
		}
	}
	return source, nil
}

func intType() *fuzztype.Type {
	return &fuzztype.Type{Kind: fuzztype.KindPrimitive, Prim: fuzztype.PrimInt}
}

// buildProgram returns a one-function, one-static program whose body
// assigns five literals to the static in turn, only one of which carries
// the marker value 999999.
func buildProgram() *ast.Program {
	ty := intType()
	static := &ast.StaticField{
		Var:  ast.VariableIdentifier{Type: ty, Name: "x"},
		Init: &ast.Node{Kind: ast.KLiteral, Val: int64(0), Type: ty},
	}

	body := ast.NewNode(ast.KBlock)
	for _, v := range []int64{1, 2, 3, 999999, 5} {
		lhs := &ast.Node{Kind: ast.KIdent, Ident: "x", Type: ty}
		rhs := &ast.Node{Kind: ast.KLiteral, Val: v, Type: ty}
		assign := ast.NewNode(ast.KAssign, lhs, rhs)
		assign.Op = "="
		body.AddChild(assign)
	}

	fn := &ast.Function{ID: 0, Name: "Main0", Body: body}
	return &ast.Program{
		PrimaryClassName: "Program",
		Seed:             1,
		Statics:          []*ast.StaticField{static},
		Functions:        []*ast.Function{fn},
	}
}

// TestReduceDropsUnrelatedStatements covers spec.md §8 property 7
// (interestingness preservation) and S5 (binary-search statement removal):
// given a program whose "bug" is pinned to one literal, the reducer must
// throw away every statement not needed to keep that literal in the output
// while continuing to reproduce the CompileError mode.
func TestReduceDropsUnrelatedStatements(t *testing.T) {
	marker := []byte("999999")
	debugC := &markerCompiler{regime: "debug", marker: marker}
	relC := &markerCompiler{regime: "release", marker: marker}

	rd := New(debugC, relC, nil, DefaultConfig())
	final, report, err := rd.Reduce(context.Background(), buildProgram())
	if err != nil {
		t.Fatalf("Reduce: %v", err)
	}
	if report.Mode.Kind != ModeCompileError {
		t.Fatalf("got mode %v, want ModeCompileError", report.Mode.Kind)
	}
	if report.ReducedSizeBytes >= report.OriginalSizeBytes {
		t.Fatalf("reduced size %d not smaller than original %d", report.ReducedSizeBytes, report.OriginalSizeBytes)
	}

	fn := final.Functions[0]
	if n := len(fn.Body.Children); n != 1 {
		t.Fatalf("got %d surviving top-level statements, want 1 (only the marker assignment)", n)
	}
	assign := fn.Body.Children[0]
	if assign.Kind != ast.KAssign {
		t.Fatalf("surviving statement has kind %v, want KAssign", assign.Kind)
	}
	if got := assign.Children[1].Val.(int64); got != 999999 {
		t.Fatalf("surviving statement assigns %d, want 999999", got)
	}
}

// TestReduceNotBuggyAborts covers spec.md §7: a program with no divergence
// at reducer start must abort with ErrNotBuggy rather than reduce anything.
func TestReduceNotBuggyAborts(t *testing.T) {
	cleanMarker := []byte("never-present-in-this-source")
	debugC := &markerCompiler{regime: "debug", marker: cleanMarker}
	relC := &markerCompiler{regime: "release", marker: cleanMarker}

	rd := New(debugC, relC, nil, DefaultConfig())
	_, _, err := rd.Reduce(context.Background(), buildProgram())
	if err != ErrNotBuggy {
		t.Fatalf("got err %v, want ErrNotBuggy", err)
	}
}

// TestReduceRegimeSpecificCompileErrorPinsRegime covers the CompileError
// mode: a compile error raised only by the "release" compiler must establish
// a mode pinned to the "release" regime, since Mode.Regime is part of the
// reproduces() comparison.
func TestReduceRegimeSpecificCompileErrorPinsRegime(t *testing.T) {
	marker := []byte("999999")
	debugC := &markerCompiler{regime: "debug", marker: []byte("never-present")}
	relC := &markerCompiler{regime: "release", marker: marker}

	rd := New(debugC, relC, nil, DefaultConfig())
	_, report, err := rd.Reduce(context.Background(), buildProgram())
	if err != nil {
		t.Fatalf("Reduce: %v", err)
	}
	if report.Mode.Kind != ModeCompileError || report.Mode.Regime != "release" {
		t.Fatalf("got mode %+v, want ModeCompileError/release", report.Mode)
	}
}
