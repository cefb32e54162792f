// Package literal produces random literal expressions for any FuzzType
// (spec.md §4.D). Literals are biased toward interesting boundary values
// (0, 1, -1, min, max) and never produce a divide-by-zero-triggering
// constant in a position the synthesizer cannot wrap, since literal RHS
// operands of `/` and `%` are always routed through the synthesizer's
// `(expr | 1)` guard (spec.md §4.E) rather than generated bare.
package literal

import (
	"math"

	"github.com/diffuzz/diffuzz/internal/ast"
	"github.com/diffuzz/diffuzz/internal/fuzztype"
	"github.com/diffuzz/diffuzz/internal/rng"
)

// Generator produces literal Node trees for a Universe's types.
type Generator struct {
	r        *rng.Random
	universe *fuzztype.Universe

	// BiasProb is the probability of picking a boundary value (0, 1, -1,
	// min, max) over a uniformly sampled one, for integral/float literals.
	BiasProb float64
}

// NewGenerator returns a literal Generator with the spec's suggested bias.
func NewGenerator(r *rng.Random, universe *fuzztype.Universe) *Generator {
	return &Generator{r: r, universe: universe, BiasProb: 0.3}
}

// Literal returns a literal expression node for t.
func (g *Generator) Literal(t *fuzztype.Type) *ast.Node {
	switch t.Kind {
	case fuzztype.KindPrimitive:
		return g.primitiveLiteral(t)
	case fuzztype.KindArray:
		return g.arrayLiteral(t)
	case fuzztype.KindAggregate:
		return g.aggregateLiteral(t)
	case fuzztype.KindInterface:
		// An interface-typed static/local is always zero-initialized to
		// nil; a live value only ever arrives via assignment from a
		// concrete-typed expression.
		n := ast.NewNode(ast.KLiteral)
		n.Type = t
		n.Val = nil
		return n
	case fuzztype.KindRef:
		// Ref-typed statics/fields never occur (spec.md §3 invariant: Ref
		// nests only one level and aggregate fields never reference Ref);
		// callers must not ask for a bare Ref literal.
		panic("literal: cannot produce a literal Ref value")
	default:
		panic("literal: unknown type kind")
	}
}

func (g *Generator) primitiveLiteral(t *fuzztype.Type) *ast.Node {
	n := ast.NewNode(ast.KLiteral)
	n.Type = t

	switch t.Prim {
	case fuzztype.PrimBool:
		n.Val = g.r.FlipCoin(0.5)
	case fuzztype.PrimFloat:
		n.Val = float32(g.biasedFloat())
	case fuzztype.PrimDouble:
		n.Val = g.biasedFloat()
	case fuzztype.PrimChar:
		n.Val = rune(32 + g.r.PickIndex(94)) // printable ASCII
	default:
		n.Val = g.biasedInt(t)
	}
	return n
}

// biasedInt returns an int64 drawn from t's representable range, biased
// toward 0, 1, -1, min, and max.
func (g *Generator) biasedInt(t *fuzztype.Type) int64 {
	lo, hi := intRange(t)
	if g.r.FlipCoin(g.BiasProb) {
		switch g.r.PickIndex(5) {
		case 0:
			return 0
		case 1:
			return 1
		case 2:
			if lo <= -1 && -1 <= hi {
				return -1
			}
		case 3:
			return lo
		case 4:
			return hi
		}
	}
	return g.r.NextInRangeInclusive(lo, hi)
}

func (g *Generator) biasedFloat() float64 {
	if g.r.FlipCoin(g.BiasProb) {
		switch g.r.PickIndex(5) {
		case 0:
			return 0
		case 1:
			return 1
		case 2:
			return -1
		case 3:
			return math.MaxFloat32
		case 4:
			return -math.MaxFloat32
		}
	}
	// Uniform over a modest range; unboundedly large floats are not
	// interesting for JIT divergence hunting and risk NaN/Inf noise.
	v := float64(g.r.NextInRange(-1_000_000, 1_000_000))
	frac := float64(g.r.NextInRange(0, 1000)) / 1000.0
	return v + frac
}

func intRange(t *fuzztype.Type) (lo, hi int64) {
	switch t.Prim {
	case fuzztype.PrimSByte:
		return -1 << 7, 1<<7 - 1
	case fuzztype.PrimByte:
		return 0, 1<<8 - 1
	case fuzztype.PrimShort:
		return -1 << 15, 1<<15 - 1
	case fuzztype.PrimUShort:
		return 0, 1<<16 - 1
	case fuzztype.PrimInt:
		return -1 << 31, 1<<31 - 1
	case fuzztype.PrimUInt:
		return 0, 1<<32 - 1
	case fuzztype.PrimLong:
		return math.MinInt64, math.MaxInt64
	case fuzztype.PrimULong:
		// ulong's true max overflows int64; callers needing bit-exact
		// ulong max should special-case it. For literal generation this
		// truncated range is sufficient variety.
		return 0, math.MaxInt64
	default:
		return 0, 255
	}
}

// arrayLiteral produces a fixed-length-1 array with a zero element, per
// spec.md §4.D.
func (g *Generator) arrayLiteral(t *fuzztype.Type) *ast.Node {
	n := ast.NewNode(ast.KNewObject, g.zeroValue(t.Elem))
	n.Type = t
	n.Ident = "array1"
	return n
}

// aggregateLiteral constructs an aggregate with a literal per field.
func (g *Generator) aggregateLiteral(t *fuzztype.Type) *ast.Node {
	children := make([]*ast.Node, len(t.Fields))
	for i, f := range t.Fields {
		children[i] = g.zeroValue(f.Type)
	}
	n := ast.NewNode(ast.KNewObject, children...)
	n.Type = t
	return n
}

// zeroValue returns the type's default value, used for the element of an
// array literal and for every field of an aggregate literal.
func (g *Generator) zeroValue(t *fuzztype.Type) *ast.Node {
	switch t.Kind {
	case fuzztype.KindPrimitive:
		n := ast.NewNode(ast.KLiteral)
		n.Type = t
		switch t.Prim {
		case fuzztype.PrimBool:
			n.Val = false
		case fuzztype.PrimFloat:
			n.Val = float32(0)
		case fuzztype.PrimDouble:
			n.Val = float64(0)
		case fuzztype.PrimChar:
			n.Val = rune(0)
		default:
			n.Val = int64(0)
		}
		return n
	case fuzztype.KindArray:
		return g.arrayLiteral(t)
	case fuzztype.KindAggregate:
		return g.aggregateLiteral(t)
	case fuzztype.KindInterface:
		n := ast.NewNode(ast.KLiteral)
		n.Type = t
		n.Val = nil
		return n
	default:
		panic("literal: zeroValue of unsupported kind")
	}
}
