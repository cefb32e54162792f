package fuzztype

import (
	"testing"

	"github.com/diffuzz/diffuzz/internal/rng"
)

func TestGenerateTypesAcyclic(t *testing.T) {
	u := NewUniverse(rng.New(1))
	u.GenerateTypes(DefaultConfig())

	seen := map[string]bool{}
	for i, agg := range u.Aggregates() {
		for _, f := range agg.Fields {
			if f.Type.Kind == KindAggregate {
				if !seen[f.Type.Name] {
					t.Fatalf("aggregate %s references %s before it was declared (index %d)", agg.Name, f.Type.Name, i)
				}
			}
		}
		seen[agg.Name] = true
	}
}

func TestPickTypeNeverWrapsRefInRef(t *testing.T) {
	u := NewUniverse(rng.New(2))
	u.GenerateTypes(DefaultConfig())
	for i := 0; i < 200; i++ {
		ty := u.PickType(0.5)
		if ty.Kind == KindRef && ty.Inner.Kind == KindRef {
			t.Fatal("Ref nested inside Ref")
		}
	}
}

func TestGetImplementers(t *testing.T) {
	u := NewUniverse(rng.New(3))
	u.GenerateTypes(Config{NumAggregates: 4, NumInterfaces: 1, MaxFields: 2, ClassProb: 0.5, InterfaceShare: 1})
	iface := u.Interfaces()[0]
	impls := u.GetImplementers(iface)
	if len(impls) != 4 {
		t.Fatalf("expected all 4 aggregates to implement the interface, got %d", len(impls))
	}
}
