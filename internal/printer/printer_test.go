package printer

import (
	"strings"
	"testing"
	"time"

	"github.com/diffuzz/diffuzz/internal/ast"
	"github.com/diffuzz/diffuzz/internal/fuzztype"
)

func fixedNow() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

func minimalProgram() *ast.Program {
	ty := &fuzztype.Type{Kind: fuzztype.KindPrimitive, Prim: fuzztype.PrimInt}
	static := &ast.StaticField{
		Var:  ast.VariableIdentifier{Type: ty, Name: "g"},
		Init: &ast.Node{Kind: ast.KLiteral, Val: int64(7), Type: ty},
	}
	body := ast.NewNode(ast.KBlock)
	ret := ast.NewNode(ast.KReturn)
	body.AddChild(ret)
	fn := &ast.Function{ID: 0, Name: "Main0", Body: body}
	return &ast.Program{
		PrimaryClassName: "Program",
		Seed:             99,
		Statics:          []*ast.StaticField{static},
		Functions:        []*ast.Function{fn},
	}
}

// TestPrintSmoke covers spec.md §4.F: the printer must emit a class wrapper
// named after PrimaryClassName, the static field, and an entry point that
// calls function 0.
func TestPrintSmoke(t *testing.T) {
	src, err := Print(minimalProgram(), Options{Now: fixedNow})
	if err != nil {
		t.Fatalf("Print: %v", err)
	}
	s := string(src)
	for _, want := range []string{
		"class Program",
		"static int g = 7;",
		"Main0();",
		"// Seed: 99",
	} {
		if !strings.Contains(s, want) {
			t.Fatalf("printed source missing %q:\n%s", want, s)
		}
	}
}

// TestPrintChecksumEnabled covers spec.md §4.F's runtime-object wiring: with
// ChecksumEnabled, Main must construct and store the runtime before calling
// function 0, and the entry point must checksum every static afterward.
func TestPrintChecksumEnabled(t *testing.T) {
	prog := minimalProgram()
	prog.ChecksumEnabled = true
	src, err := Print(prog, Options{Now: fixedNow})
	if err != nil {
		t.Fatalf("Print: %v", err)
	}
	s := string(src)
	for _, want := range []string{
		"static Runtime s_rt;",
		"s_rt = new Runtime();",
		`s_rt.Checksum("g", g);`,
	} {
		if !strings.Contains(s, want) {
			t.Fatalf("printed source missing %q:\n%s", want, s)
		}
	}
}

// TestExprStringBinaryParenthesizes covers spec.md §4.F's fully-parenthesized
// expression rendering, which the reducer's diffing relies on being
// unambiguous regardless of operator precedence.
func TestExprStringBinaryParenthesizes(t *testing.T) {
	ty := &fuzztype.Type{Kind: fuzztype.KindPrimitive, Prim: fuzztype.PrimInt}
	a := &ast.Node{Kind: ast.KIdent, Ident: "a", Type: ty}
	b := &ast.Node{Kind: ast.KIdent, Ident: "b", Type: ty}
	bin := ast.NewNode(ast.KBinary, a, b)
	bin.Op = "+"
	got := ExprString(bin)
	if got != "(a + b)" {
		t.Fatalf("got %q, want %q", got, "(a + b)")
	}
}
