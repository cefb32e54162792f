// Package statics implements the pool of process-global variables the
// synthesizer draws from and adds to on demand (spec.md §4.C).
package statics

import (
	"fmt"

	"github.com/diffuzz/diffuzz/internal/ast"
	"github.com/diffuzz/diffuzz/internal/fuzztype"
	"github.com/diffuzz/diffuzz/internal/literal"
	"github.com/diffuzz/diffuzz/internal/rng"
)

// Pool holds every static field generated so far for one program.
type Pool struct {
	r        *rng.Random
	universe *fuzztype.Universe
	lit      *literal.Generator

	fields  []*ast.StaticField
	counter int
}

// NewPool returns an empty static pool wired to universe and lit for type
// and literal selection.
func NewPool(r *rng.Random, universe *fuzztype.Universe, lit *literal.Generator) *Pool {
	return &Pool{r: r, universe: universe, lit: lit}
}

// Fields returns every static field generated so far, in insertion order.
func (p *Pool) Fields() []*ast.StaticField { return p.fields }

// PickStatic returns an existing static matching t if one exists, else
// generates a new one. t may be nil, meaning any type is acceptable.
func (p *Pool) PickStatic(t *fuzztype.Type) *ast.StaticField {
	var matches []*ast.StaticField
	for _, f := range p.fields {
		if t == nil || fuzztype.Equal(f.Var.Type, t) {
			matches = append(matches, f)
		}
	}
	if len(matches) > 0 {
		return matches[p.r.PickIndex(len(matches))]
	}
	return p.GenerateNewField(t)
}

// GenerateNewField creates a new static of type t (defaulting to a
// by-value-picked universe type when t is nil) with a seeded literal
// initializer, names it s_<counter>, and adds it to the pool.
func (p *Pool) GenerateNewField(t *fuzztype.Type) *ast.StaticField {
	if t == nil {
		t = p.universe.PickType(0)
	}
	name := fmt.Sprintf("s_%d", p.counter)
	p.counter++

	field := &ast.StaticField{
		Var: ast.VariableIdentifier{
			Type:           t,
			Name:           name,
			RefEscapeScope: ast.EscapeStatic,
			ReadOnly:       false,
		},
		Init: p.lit.Literal(t),
	}
	p.fields = append(p.fields, field)
	return field
}
