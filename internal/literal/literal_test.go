package literal

import (
	"math"
	"testing"

	"github.com/diffuzz/diffuzz/internal/ast"
	"github.com/diffuzz/diffuzz/internal/fuzztype"
	"github.com/diffuzz/diffuzz/internal/rng"
)

func newGen(seed uint64) (*Generator, *fuzztype.Universe) {
	r := rng.New(seed)
	u := fuzztype.NewUniverse(r)
	return NewGenerator(r, u), u
}

// TestIntegralLiteralsStayInRange covers spec.md §4.D: every generated
// integral literal must fall within its type's representable range,
// including the signed types' negative minimums.
func TestIntegralLiteralsStayInRange(t *testing.T) {
	g, u := newGen(1)
	bounds := map[fuzztype.PrimKind][2]int64{
		fuzztype.PrimSByte:  {-1 << 7, 1<<7 - 1},
		fuzztype.PrimByte:   {0, 1<<8 - 1},
		fuzztype.PrimShort:  {-1 << 15, 1<<15 - 1},
		fuzztype.PrimUShort: {0, 1<<16 - 1},
		fuzztype.PrimInt:    {-1 << 31, 1<<31 - 1},
		fuzztype.PrimUInt:   {0, 1<<32 - 1},
		fuzztype.PrimLong:   {math.MinInt64, math.MaxInt64},
		fuzztype.PrimULong:  {0, math.MaxInt64},
	}
	for prim, rng := range bounds {
		ty := u.GetPrimitive(prim)
		for i := 0; i < 200; i++ {
			n := g.Literal(ty)
			v, ok := n.Val.(int64)
			if !ok {
				t.Fatalf("prim %v: literal value is %T, want int64", prim, n.Val)
			}
			if v < rng[0] || v > rng[1] {
				t.Fatalf("prim %v: literal %d out of range [%d, %d]", prim, v, rng[0], rng[1])
			}
		}
	}
}

// TestLiteralDeterministic covers spec.md §8 S1: the same seed must
// produce the same literal stream.
func TestLiteralDeterministic(t *testing.T) {
	g1, u1 := newGen(55)
	g2, u2 := newGen(55)
	ty1 := u1.GetPrimitive(fuzztype.PrimInt)
	ty2 := u2.GetPrimitive(fuzztype.PrimInt)
	for i := 0; i < 50; i++ {
		a := g1.Literal(ty1).Val
		b := g2.Literal(ty2).Val
		if a != b {
			t.Fatalf("draw %d: got %v, want %v (same seed must replay identically)", i, a, b)
		}
	}
}

// TestInterfaceLiteralIsNil covers spec.md §4.D: an interface-typed literal
// is always a nil placeholder, never a synthesized implementer instance.
func TestInterfaceLiteralIsNil(t *testing.T) {
	g, u := newGen(9)
	u.GenerateTypes(fuzztype.Config{NumAggregates: 2, NumInterfaces: 1, MaxFields: 2, ClassProb: 0.5, InterfaceShare: 1})
	ifaces := u.Interfaces()
	if len(ifaces) == 0 {
		t.Fatal("expected at least one interface type")
	}
	n := g.Literal(ifaces[0])
	if n.Kind != ast.KLiteral || n.Val != nil {
		t.Fatalf("interface literal = %+v, want a nil KLiteral", n)
	}
}

// TestRefLiteralPanics covers spec.md §3's invariant that Ref never appears
// as a static/field type, so Literal must refuse to produce one.
func TestRefLiteralPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected Literal to panic on a Ref type")
		}
	}()
	g, u := newGen(1)
	refType := &fuzztype.Type{Kind: fuzztype.KindRef, Inner: u.GetPrimitive(fuzztype.PrimInt)}
	g.Literal(refType)
}
