package statics

import (
	"testing"

	"github.com/diffuzz/diffuzz/internal/ast"
	"github.com/diffuzz/diffuzz/internal/fuzztype"
	"github.com/diffuzz/diffuzz/internal/literal"
	"github.com/diffuzz/diffuzz/internal/rng"
)

func newPool(seed uint64) (*Pool, *fuzztype.Universe) {
	r := rng.New(seed)
	u := fuzztype.NewUniverse(r)
	lit := literal.NewGenerator(r, u)
	return NewPool(r, u, lit), u
}

// TestGenerateNewFieldNamesAreUnique covers spec.md §4.C: every static gets
// a distinct s_<counter> name in generation order.
func TestGenerateNewFieldNamesAreUnique(t *testing.T) {
	p, u := newPool(1)
	intType := u.GetPrimitive(fuzztype.PrimInt)
	seen := map[string]bool{}
	for i := 0; i < 10; i++ {
		f := p.GenerateNewField(intType)
		if seen[f.Var.Name] {
			t.Fatalf("duplicate static name %q", f.Var.Name)
		}
		seen[f.Var.Name] = true
	}
}

// TestPickStaticReusesExistingField covers spec.md §4.C's pooling behavior:
// once a static of type t exists, PickStatic must be able to return it
// rather than always minting a new one.
func TestPickStaticReusesExistingField(t *testing.T) {
	p, u := newPool(2)
	intType := u.GetPrimitive(fuzztype.PrimInt)
	first := p.GenerateNewField(intType)

	reused := false
	for i := 0; i < 50; i++ {
		f := p.PickStatic(intType)
		if f == first {
			reused = true
			break
		}
	}
	if !reused {
		t.Fatal("PickStatic never returned the pre-existing field across 50 draws")
	}
}

// TestPickStaticEscapeScope covers spec.md §3: every static's ref-escape
// scope must be EscapeStatic, the outermost rank.
func TestPickStaticEscapeScope(t *testing.T) {
	p, u := newPool(3)
	f := p.GenerateNewField(u.GetPrimitive(fuzztype.PrimLong))
	if f.Var.RefEscapeScope != ast.EscapeStatic {
		t.Fatalf("got escape scope %d, want %d", f.Var.RefEscapeScope, ast.EscapeStatic)
	}
}
