// Package fuzztype builds and serves the finite universe of types a
// generated program draws from: primitives, arrays, aggregates (structs and
// classes), and interfaces (spec.md §3, §4.B).
package fuzztype

import "github.com/diffuzz/diffuzz/internal/rng"

// Kind tags the variant a Type holds. Exactly one of the per-kind fields on
// Type is meaningful for a given Kind.
type Kind int

const (
	KindPrimitive Kind = iota
	KindArray
	KindAggregate
	KindInterface
	KindRef
)

// PrimKind enumerates the primitive keyword set from spec.md §3.
type PrimKind int

const (
	PrimBool PrimKind = iota
	PrimSByte
	PrimByte
	PrimShort
	PrimUShort
	PrimInt
	PrimUInt
	PrimLong
	PrimULong
	PrimChar
	PrimFloat
	PrimDouble
)

// primInfo describes one primitive's signedness, width, and whether it
// participates in integer arithmetic (as opposed to float/bool/char).
type primInfo struct {
	name      string
	signed    bool
	width     int
	integral  bool
	isFloat   bool
	minInt    int64
	maxUInt64 uint64
}

// primOrder fixes the iteration order over primTable. Go randomizes map
// range order per execution, so ranging primTable directly to build
// Universe.primitives would let the same seed synthesize a different
// program on different runs -- every pick indexes primitives by position
// (spec.md §4.A determinism, §8 property 1). This slice is the single
// source of truth for that order; primTable stays a map only for the
// keyed-lookup call sites (GetPrimitive, IsIntegral, IsSigned, String).
var primOrder = []PrimKind{
	PrimBool, PrimSByte, PrimByte, PrimShort, PrimUShort, PrimInt, PrimUInt,
	PrimLong, PrimULong, PrimChar, PrimFloat, PrimDouble,
}

var primTable = map[PrimKind]primInfo{
	PrimBool:   {name: "bool", width: 1},
	PrimSByte:  {name: "sbyte", signed: true, width: 8, integral: true, minInt: -1 << 7, maxUInt64: 1<<7 - 1},
	PrimByte:   {name: "byte", width: 8, integral: true, maxUInt64: 1<<8 - 1},
	PrimShort:  {name: "short", signed: true, width: 16, integral: true, minInt: -1 << 15, maxUInt64: 1<<15 - 1},
	PrimUShort: {name: "ushort", width: 16, integral: true, maxUInt64: 1<<16 - 1},
	PrimInt:    {name: "int", signed: true, width: 32, integral: true, minInt: -1 << 31, maxUInt64: 1<<31 - 1},
	PrimUInt:   {name: "uint", width: 32, integral: true, maxUInt64: 1<<32 - 1},
	PrimLong:   {name: "long", signed: true, width: 64, integral: true, minInt: -1 << 63, maxUInt64: 1<<63 - 1},
	PrimULong:  {name: "ulong", width: 64, integral: true, maxUInt64: ^uint64(0)},
	PrimChar:   {name: "char", width: 16},
	PrimFloat:  {name: "float", width: 32, isFloat: true},
	PrimDouble: {name: "double", width: 64, isFloat: true},
}

// Field is one named, ordered member of an Aggregate.
type Field struct {
	Name string
	Type *Type
}

// Type is the tagged FuzzType variant of spec.md §3. Ref nests only one
// level (Inner is never itself a Ref); Array.Elem is never a Ref; Aggregate
// field types never reference Ref.
type Type struct {
	Kind Kind

	// KindPrimitive
	Prim PrimKind

	// KindArray
	Elem *Type
	Rank int

	// KindAggregate / KindInterface
	Name         string
	IsClass      bool // KindAggregate only
	Fields       []Field
	Implements   map[string]bool // aggregate -> interface names it implements
	Implementers map[string]bool // interface -> aggregate names implementing it

	// KindRef
	Inner *Type
}

// String names the type the way the printer will render it (spec.md §4.G
// uses the same keyword vocabulary for declarations and casts).
func (t *Type) String() string {
	switch t.Kind {
	case KindPrimitive:
		return primTable[t.Prim].name
	case KindArray:
		s := t.Elem.String()
		for i := 0; i < t.Rank; i++ {
			s += "[]"
		}
		return s
	case KindAggregate, KindInterface:
		return t.Name
	case KindRef:
		return "ref " + t.Inner.String()
	default:
		return "<?type>"
	}
}

// IsIntegral reports whether the type is an integer primitive (arithmetic
// and shift operators apply; division/modulo require the div-by-zero guard).
func (t *Type) IsIntegral() bool {
	return t.Kind == KindPrimitive && primTable[t.Prim].integral
}

// IsSigned reports whether an integral primitive is signed.
func (t *Type) IsSigned() bool {
	return t.Kind == KindPrimitive && primTable[t.Prim].signed
}

// Equal reports whether two types are structurally identical. Aggregates and
// interfaces compare by name since the Universe never produces two distinct
// types sharing a name.
func Equal(a, b *Type) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil || a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case KindPrimitive:
		return a.Prim == b.Prim
	case KindArray:
		return a.Rank == b.Rank && Equal(a.Elem, b.Elem)
	case KindAggregate, KindInterface:
		return a.Name == b.Name
	case KindRef:
		return Equal(a.Inner, b.Inner)
	}
	return false
}

// Universe is the finite, immutable-after-generation set of types a program
// draws from. Aggregates are generated forward-reference only, so an
// aggregate's fields may only name primitives, arrays, or earlier aggregates
// -- this keeps the implementation graph acyclic by construction.
type Universe struct {
	r *rng.Random

	primitives  []*Type
	aggregates  []*Type
	interfaces  []*Type
}

// Config controls how many types GenerateTypes produces.
type Config struct {
	NumAggregates  int
	NumInterfaces  int
	MaxFields      int
	ClassProb      float64 // probability an aggregate is a class rather than a struct
	InterfaceShare float64 // probability any given aggregate implements any given interface
}

// DefaultConfig returns reasonable generation volumes for one program.
func DefaultConfig() Config {
	return Config{
		NumAggregates:  6,
		NumInterfaces:  2,
		MaxFields:      5,
		ClassProb:      0.5,
		InterfaceShare: 0.35,
	}
}

// NewUniverse builds the Universe with the full primitive set pre-seeded.
func NewUniverse(r *rng.Random) *Universe {
	u := &Universe{r: r}
	for _, k := range primOrder {
		u.primitives = append(u.primitives, &Type{Kind: KindPrimitive, Prim: k})
	}
	return u
}

// GenerateTypes produces cfg.NumAggregates aggregates (each possibly array-
// or previously-generated-aggregate-typed) and cfg.NumInterfaces interfaces,
// randomly assigning implementers, per spec.md §4.B.
func (u *Universe) GenerateTypes(cfg Config) {
	for i := 0; i < cfg.NumAggregates; i++ {
		agg := &Type{
			Kind:       KindAggregate,
			Name:       syntheticName("S", i),
			IsClass:    u.r.FlipCoin(cfg.ClassProb),
			Implements: map[string]bool{},
		}
		nFields := 1 + u.r.PickIndex(cfg.MaxFields)
		for f := 0; f < nFields; f++ {
			agg.Fields = append(agg.Fields, Field{
				Name: syntheticName("f", f),
				Type: u.pickFieldType(),
			})
		}
		u.aggregates = append(u.aggregates, agg)
	}
	for i := 0; i < cfg.NumInterfaces; i++ {
		iface := &Type{
			Kind:         KindInterface,
			Name:         syntheticName("I", i),
			Implementers: map[string]bool{},
		}
		for _, agg := range u.aggregates {
			if u.r.FlipCoin(cfg.InterfaceShare) {
				iface.Implementers[agg.Name] = true
				agg.Implements[iface.Name] = true
			}
		}
		u.interfaces = append(u.interfaces, iface)
	}
}

// pickFieldType chooses a primitive, array, or forward-declared aggregate
// type for a field, never a Ref (spec.md §3 invariant).
func (u *Universe) pickFieldType() *Type {
	switch {
	case len(u.aggregates) > 0 && u.r.FlipCoin(0.2):
		return u.aggregates[u.r.PickIndex(len(u.aggregates))]
	case u.r.FlipCoin(0.15):
		return &Type{Kind: KindArray, Elem: u.primitives[u.r.PickIndex(len(u.primitives))], Rank: 1}
	default:
		return u.primitives[u.r.PickIndex(len(u.primitives))]
	}
}

// PickType returns a random type from the universe, wrapped in a Ref with
// probability byRefProb.
func (u *Universe) PickType(byRefProb float64) *Type {
	t := u.pickNonRefType()
	if u.r.FlipCoin(byRefProb) {
		return &Type{Kind: KindRef, Inner: t}
	}
	return t
}

func (u *Universe) pickNonRefType() *Type {
	all := u.allConcreteTypes()
	return all[u.r.PickIndex(len(all))]
}

func (u *Universe) allConcreteTypes() []*Type {
	all := make([]*Type, 0, len(u.primitives)+len(u.aggregates)+len(u.interfaces))
	all = append(all, u.primitives...)
	all = append(all, u.aggregates...)
	all = append(all, u.interfaces...)
	return all
}

// PickPrimitive returns a random primitive type matching pred, or nil if
// none match.
func (u *Universe) PickPrimitive(pred func(*Type) bool) *Type {
	var matches []*Type
	for _, p := range u.primitives {
		if pred == nil || pred(p) {
			matches = append(matches, p)
		}
	}
	if len(matches) == 0 {
		return nil
	}
	return matches[u.r.PickIndex(len(matches))]
}

// GetPrimitive returns the Type for a given primitive kind.
func (u *Universe) GetPrimitive(kind PrimKind) *Type {
	for _, p := range u.primitives {
		if p.Prim == kind {
			return p
		}
	}
	return nil
}

// GetImplementers returns the aggregate types implementing iface.
func (u *Universe) GetImplementers(iface *Type) []*Type {
	var out []*Type
	for _, agg := range u.aggregates {
		if iface.Implementers[agg.Name] {
			out = append(out, agg)
		}
	}
	return out
}

// Aggregates returns all generated aggregate types, in generation order.
func (u *Universe) Aggregates() []*Type { return u.aggregates }

// Interfaces returns all generated interface types, in generation order.
func (u *Universe) Interfaces() []*Type { return u.interfaces }

func syntheticName(prefix string, n int) string {
	const digits = "0123456789"
	if n == 0 {
		return prefix + "0"
	}
	var buf []byte
	for n > 0 {
		buf = append([]byte{digits[n%10]}, buf...)
		n /= 10
	}
	return prefix + string(buf)
}
