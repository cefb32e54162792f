package synth

import (
	"github.com/diffuzz/diffuzz/internal/ast"
	"github.com/diffuzz/diffuzz/internal/fuzztype"
)

// generateCallStatement implements spec.md §4.E Call generation in
// statement position: any callee is acceptable, any return value (if any)
// is discarded.
func (s *Synthesizer) generateCallStatement(fn *ast.Function, frame *ast.ScopeFrame, depth int) *ast.Node {
	call := s.generateCall(fn, frame, nil, false, depth)
	if call == nil {
		return nil
	}
	return ast.NewNode(ast.KCallStmt, call)
}

// genCallExpression implements spec.md §4.E Call generation in expression
// position: the callee must return (or be castable to) t.
func (s *Synthesizer) genCallExpression(fn *ast.Function, frame *ast.ScopeFrame, t *fuzztype.Type, depth int) *ast.Node {
	return s.generateCall(fn, frame, t, true, depth)
}

// generateCall implements spec.md §4.E Call generation:
//
//  1. With probability NewCalleeProb, and only while the call-graph budget
//     is not exceeded, synthesize a brand-new callee and recurse into its
//     generation (forceReturn wanted when the caller needs a specific type).
//  2. Otherwise pick among existing functions with strictly greater ID whose
//     transitive call counts would not push the caller over
//     SingleFunctionMaxTotalCalls, filtered by return-type compatibility
//     when wanted is non-nil.
//
// After binding, the caller's transitive call-count table is updated: +1 for
// the callee itself, plus every (g, n) recorded in the callee's own table.
func (s *Synthesizer) generateCall(fn *ast.Function, frame *ast.ScopeFrame, wanted *fuzztype.Type, needsValue bool, depth int) *ast.Node {
	used := 0
	for _, n := range fn.CallCounts {
		used += n
	}
	budgetOK := used < s.cfg.SingleFunctionMaxTotalCalls
	if s.recPolicy.Allow(s.r, depth) && budgetOK && s.r.FlipCoin(s.cfg.NewCalleeProb) {
		var callee *ast.Function
		if needsValue && wanted != nil {
			callee = s.generateFunction(false, true, wanted)
		} else {
			callee = s.generateFunction(false, false, nil)
		}
		return s.bindCall(fn, frame, callee, depth)
	}

	candidates := s.candidateCallees(fn, wanted, needsValue)
	if len(candidates) == 0 {
		if needsValue {
			return nil
		}
		// Statement position tolerates no match: synthesize a fresh callee
		// instead of emitting nothing.
		callee := s.generateFunction(false, false, nil)
		return s.bindCall(fn, frame, callee, depth)
	}
	callee := candidates[s.r.PickIndex(len(candidates))]
	return s.bindCall(fn, frame, callee, depth)
}

// candidateCallees returns functions with ID > fn.ID whose transitive call
// count, added to fn's own budget usage, stays within
// SingleFunctionMaxTotalCalls, filtered by return-type castability to
// wanted when needsValue is set.
func (s *Synthesizer) candidateCallees(fn *ast.Function, wanted *fuzztype.Type, needsValue bool) []*ast.Function {
	var out []*ast.Function
	used := 0
	for _, n := range fn.CallCounts {
		used += n
	}
	for _, g := range s.functions {
		if g.ID <= fn.ID {
			continue
		}
		added := 1
		for _, n := range g.CallCounts {
			added += n
		}
		if used+added > s.cfg.SingleFunctionMaxTotalCalls {
			continue
		}
		if needsValue && !castableTo(g.ReturnType, wanted) {
			continue
		}
		out = append(out, g)
	}
	return out
}

// castableTo reports whether a value of type have may be used where want is
// required: exact match, or an aggregate implementing the wanted interface.
func castableTo(have, want *fuzztype.Type) bool {
	if have == nil || want == nil {
		return false
	}
	if fuzztype.Equal(have, want) {
		return true
	}
	if want.Kind == fuzztype.KindInterface && have.Kind == fuzztype.KindAggregate {
		return have.Implements[want.Name]
	}
	if have.IsIntegral() && want.IsIntegral() {
		return true // implicit widening; printer/reducer treat this as an upcast
	}
	return false
}

// bindCall resolves the receiver (for instance methods), generates
// arguments, and updates fn's transitive call-count table. Each by-ref
// argument is an l-value with escape scope at least EscapeOrdinaryParam; no
// minimum escape scope is tracked across the arguments, and none is derived
// for the call's result.
func (s *Synthesizer) bindCall(fn *ast.Function, frame *ast.ScopeFrame, callee *ast.Function, depth int) *ast.Node {
	call := ast.NewNode(ast.KCallExpr)
	call.Ident = callee.Name
	call.Type = callee.ReturnType
	call.Val = callee.ID

	if callee.InstanceType != nil {
		call.Op = "method"
		recv := s.genExpression(fn, frame, callee.InstanceType, depth+1)
		call.AddChild(recv)
	}

	for _, p := range callee.Parameters {
		if p.Type.Kind == fuzztype.KindRef {
			lv := s.genLValue(frame, p.Type.Inner, ast.EscapeOrdinaryParam)
			refExpr := ast.NewNode(ast.KRefExpr, lv.Expr)
			refExpr.Type = p.Type
			call.AddChild(refExpr)
		} else {
			call.AddChild(s.genExpression(fn, frame, p.Type, depth+1))
		}
	}

	if fn.CallCounts == nil {
		fn.CallCounts = map[int]int{}
	}
	fn.CallCounts[callee.ID]++
	for g, n := range callee.CallCounts {
		fn.CallCounts[g] += n
	}

	return call
}
