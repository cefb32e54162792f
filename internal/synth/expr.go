package synth

import (
	"fmt"

	"github.com/diffuzz/diffuzz/internal/ast"
	"github.com/diffuzz/diffuzz/internal/fuzztype"
)

// opEntry is one operator offered for a given result type. It records only
// the operator keyword: operand-type promotion is not modelled, and no cast
// is inserted where an operator's natural result type differs from t.
type opEntry struct {
	op string
}

// binOpsForResult returns the binary operators whose natural result is t.
func binOpsForResult(t *fuzztype.Type) []opEntry {
	if t.Kind != fuzztype.KindPrimitive {
		return nil
	}
	if t.Prim == fuzztype.PrimFloat || t.Prim == fuzztype.PrimDouble {
		return []opEntry{{"+"}, {"-"}, {"*"}, {"/"}}
	}
	if t.IsIntegral() {
		return []opEntry{{"+"}, {"-"}, {"*"}, {"&"}, {"|"}, {"^"}}
	}
	return nil
}

// unOpsForResult returns the unary operators available for t.
func unOpsForResult(t *fuzztype.Type) []string {
	if t.Kind != fuzztype.KindPrimitive {
		return nil
	}
	if t.Prim == fuzztype.PrimBool {
		return []string{"!"}
	}
	if t.IsIntegral() {
		return []string{"-", "~"}
	}
	if t.Prim == fuzztype.PrimFloat || t.Prim == fuzztype.PrimDouble {
		return []string{"-"}
	}
	return nil
}

// genExpression implements spec.md §4.E gen_expression(type): samples an
// expression kind, recursion-rejecting compound kinds by depth.
func (s *Synthesizer) genExpression(fn *ast.Function, frame *ast.ScopeFrame, t *fuzztype.Type, depth int) *ast.Node {
	weights := []int{4, 3, 2, 2, 1, 1, 1, 1} // MemberAccess Literal Unary Binary Call Increment Decrement NewObject
	kind := s.r.SampleWeighted(weights)
	compound := map[int]bool{2: true, 3: true, 4: true}
	if compound[kind] && !s.recPolicy.Allow(s.r, depth) {
		kind = 1
	}

	switch kind {
	case 0:
		if e := s.tryMemberAccess(frame, t); e != nil {
			return e
		}
		return s.lit.Literal(t)
	case 2:
		return s.genUnary(fn, frame, t, depth)
	case 3:
		return s.genBinary(fn, frame, t, depth)
	case 4:
		if e := s.genCallExpression(fn, frame, t, depth); e != nil {
			return e
		}
		return s.lit.Literal(t)
	case 5, 6:
		if t.IsIntegral() {
			if e := s.genIncDec(frame, t, kind == 5); e != nil {
				return e
			}
		}
		return s.lit.Literal(t)
	default:
		return s.lit.Literal(t)
	}
}

// tryMemberAccess enumerates paths rooted at visible variables, filtering
// by type, and returns a random match or nil.
func (s *Synthesizer) tryMemberAccess(frame *ast.ScopeFrame, t *fuzztype.Type) *ast.Node {
	paths := s.collectPaths(frame, func(ty *fuzztype.Type) bool { return fuzztype.Equal(ty, t) })
	if len(paths) == 0 {
		return nil
	}
	lv := paths[s.r.PickIndex(len(paths))]
	return lv.Expr
}

// collectPaths recursively descends into aggregate fields (array paths
// fixed at index 0) of every visible variable, returning every path whose
// type satisfies pred. Paths through a Ref are lifted to the inner type.
func (s *Synthesizer) collectPaths(frame *ast.ScopeFrame, pred func(*fuzztype.Type) bool) []ast.LValueInfo {
	var out []ast.LValueInfo
	for _, v := range frame.Visible() {
		root := ast.NewNode(ast.KIdent)
		root.Ident = v.Name
		root.Type = v.Type
		root.EscapeScope = v.RefEscapeScope
		root.ReadOnly = v.ReadOnly
		s.walkPaths(root, v.Type, v.RefEscapeScope, v.ReadOnly, pred, &out)
	}
	return out
}

func (s *Synthesizer) walkPaths(expr *ast.Node, t *fuzztype.Type, escape int, readOnly bool, pred func(*fuzztype.Type) bool, out *[]ast.LValueInfo) {
	effective := t
	if t.Kind == fuzztype.KindRef {
		effective = t.Inner
	}
	if pred(effective) {
		*out = append(*out, ast.LValueInfo{Expr: expr, Type: effective, EscapeScope: escape, ReadOnly: readOnly})
	}
	switch effective.Kind {
	case fuzztype.KindAggregate:
		for _, f := range effective.Fields {
			access := ast.NewNode(ast.KMemberAccess, expr)
			access.Ident = f.Name
			access.Type = f.Type
			access.EscapeScope = escape
			access.ReadOnly = readOnly
			s.walkPaths(access, f.Type, escape, readOnly, pred, out)
		}
	case fuzztype.KindArray:
		idx := ast.NewNode(ast.KLiteral)
		idx.Type = s.universe.GetPrimitive(fuzztype.PrimInt)
		idx.Val = int64(0)
		access := ast.NewNode(ast.KMemberAccess, expr, idx)
		access.Ident = "[]"
		access.Type = effective.Elem
		access.EscapeScope = escape
		access.ReadOnly = readOnly
		s.walkPaths(access, effective.Elem, escape, readOnly, pred, out)
	}
}

func (s *Synthesizer) genUnary(fn *ast.Function, frame *ast.ScopeFrame, t *fuzztype.Type, depth int) *ast.Node {
	ops := unOpsForResult(t)
	if len(ops) == 0 {
		return s.lit.Literal(t)
	}
	op := ops[s.r.PickIndex(len(ops))]
	operand := s.genExpression(fn, frame, t, depth+1)
	n := ast.NewNode(ast.KUnary, operand)
	n.Op = op
	n.Type = t
	return n
}

func (s *Synthesizer) genIncDec(frame *ast.ScopeFrame, t *fuzztype.Type, inc bool) *ast.Node {
	paths := s.collectPaths(frame, func(ty *fuzztype.Type) bool { return fuzztype.Equal(ty, t) })
	var writable []ast.LValueInfo
	for _, p := range paths {
		if !p.ReadOnly {
			writable = append(writable, p)
		}
	}
	if len(writable) == 0 {
		return nil
	}
	lv := writable[s.r.PickIndex(len(writable))]
	kind := ast.KIncrement
	if !inc {
		kind = ast.KDecrement
	}
	n := ast.NewNode(kind, lv.Expr)
	n.Type = t
	return n
}

// genBinary implements spec.md §4.E Binary generation: picks an operator
// whose natural result matches t, and refuses literal-op-literal (the
// front-end compiler would constant-fold it, and constant folding may
// reject compile-time overflow).
func (s *Synthesizer) genBinary(fn *ast.Function, frame *ast.ScopeFrame, t *fuzztype.Type, depth int) *ast.Node {
	ops := binOpsForResult(t)
	if len(ops) == 0 {
		return s.lit.Literal(t)
	}
	entry := ops[s.r.PickIndex(len(ops))]

	var lhs, rhs *ast.Node
	for attempt := 0; attempt < 5; attempt++ {
		lhs = s.genExpression(fn, frame, t, depth+1)
		rhs = s.genOperandForDivisor(fn, frame, t, entry.op, depth+1)
		if lhs.Kind != ast.KLiteral || rhs.Kind != ast.KLiteral {
			break
		}
	}
	if lhs.Kind == ast.KLiteral && rhs.Kind == ast.KLiteral {
		return lhs
	}

	n := ast.NewNode(ast.KBinary, lhs, rhs)
	n.Op = entry.op
	n.Type = t
	return n
}

// genOperandForDivisor returns an operand for op's RHS position. When op is
// a division-capable operator ("/" or "%"), the RHS is wrapped in
// `(T)((rhs) | 1)` to eliminate division-by-zero at runtime (spec.md §4.E,
// §8 property 3): the `| 1` guarantees a non-zero value regardless of what
// rhs evaluates to, since any integer OR'd with 1 is odd, hence nonzero.
func (s *Synthesizer) genOperandForDivisor(fn *ast.Function, frame *ast.ScopeFrame, t *fuzztype.Type, op string, depth int) *ast.Node {
	base := s.genExpression(fn, frame, t, depth)
	if op != "/" && op != "%" {
		return base
	}
	one := ast.NewNode(ast.KLiteral)
	one.Type = t
	one.Val = int64(1)
	or := ast.NewNode(ast.KBinary, base, one)
	or.Op = "|"
	or.Type = t
	cast := ast.NewNode(ast.KCast, or)
	cast.Type = t
	cast.Ident = t.String()
	return cast
}

// genLValue resolves an assignable expression of type inner with ref-escape
// scope at least minScope, per spec.md §4.E's ref-escape discipline:
// candidates with an escape scope below minScope are filtered out. Falls
// back to declaring a fresh static (escape scope = EscapeStatic, always
// eligible) when no existing candidate qualifies.
func (s *Synthesizer) genLValue(frame *ast.ScopeFrame, inner *fuzztype.Type, minScope int) ast.LValueInfo {
	paths := s.collectPaths(frame, func(ty *fuzztype.Type) bool { return fuzztype.Equal(ty, inner) })
	var candidates []ast.LValueInfo
	for _, p := range paths {
		if !p.ReadOnly && p.EscapeScope >= minScope {
			candidates = append(candidates, p)
		}
	}
	if len(candidates) > 0 {
		return candidates[s.r.PickIndex(len(candidates))]
	}
	field := s.statics.GenerateNewField(inner)
	root := ast.NewNode(ast.KIdent)
	root.Ident = field.Var.Name
	root.Type = field.Var.Type
	root.EscapeScope = ast.EscapeStatic
	return ast.LValueInfo{Expr: root, Type: inner, EscapeScope: ast.EscapeStatic, ReadOnly: false}
}

// generateAssignment implements spec.md §4.E Assignment generation.
func (s *Synthesizer) generateAssignment(fn *ast.Function, frame *ast.ScopeFrame, depth int) *ast.Node {
	if s.r.FlipCoin(s.cfg.NewLocalProb) {
		return s.generateNewLocalAssignment(fn, frame, depth)
	}

	paths := s.collectPaths(frame, func(*fuzztype.Type) bool { return true })
	var writable []ast.LValueInfo
	for _, p := range paths {
		if !p.ReadOnly {
			writable = append(writable, p)
		}
	}
	if len(writable) == 0 {
		return s.generateNewLocalAssignment(fn, frame, depth)
	}
	lv := writable[s.r.PickIndex(len(writable))]
	return s.generateAssignmentTo(fn, frame, lv, depth)
}

func (s *Synthesizer) generateNewLocalAssignment(fn *ast.Function, frame *ast.ScopeFrame, depth int) *ast.Node {
	t := s.universe.PickType(s.cfg.ByRefProb)
	name := fmt.Sprintf("var%d", s.localCounter)
	s.localCounter++

	if t.Kind == fuzztype.KindRef {
		lv := s.genLValue(frame, t.Inner, 0)
		refExpr := ast.NewNode(ast.KRefExpr, lv.Expr)
		refExpr.Type = t

		decl := ast.NewNode(ast.KLocalDeclAssign, refExpr)
		decl.Type = t
		decl.Ident = name
		v := &ast.VariableIdentifier{Type: t, Name: name}
		frame.Declare(v)
		return decl
	}

	var rhs *ast.Node
	if s.r.FlipCoin(0.5) {
		rhs = s.lit.Literal(t)
	} else {
		rhs = s.genExpression(fn, frame, t, depth+1)
	}
	decl := ast.NewNode(ast.KLocalDeclAssign, rhs)
	decl.Type = t
	decl.Ident = name
	v := &ast.VariableIdentifier{Type: t, Name: name}
	frame.Declare(v)
	return decl
}

// compoundOps lists the compound-assignment operator keywords available for
// an effective (Ref-lifted) result type.
func compoundOps(t *fuzztype.Type) []string {
	if t.Kind != fuzztype.KindPrimitive {
		return []string{"="}
	}
	ops := []string{"="}
	if t.IsIntegral() {
		ops = append(ops, "+=", "-=", "*=", "&=", "|=", "^=", "/=", "%=", "<<=", ">>=")
	} else if t.Prim == fuzztype.PrimFloat || t.Prim == fuzztype.PrimDouble {
		ops = append(ops, "+=", "-=", "*=", "/=")
	}
	return ops
}

// generateAssignmentTo implements the "pick an existing l-value" branch of
// spec.md §4.E Assignment generation, including the ref-reassignment case
// and the compound-operator/division-guard cases.
func (s *Synthesizer) generateAssignmentTo(fn *ast.Function, frame *ast.ScopeFrame, lv ast.LValueInfo, depth int) *ast.Node {
	declaredType := lv.Type
	isRef := lv.Expr.Type != nil && lv.Expr.Type.Kind == fuzztype.KindRef

	if isRef && s.r.FlipCoin(s.cfg.RefReassignProb) {
		inner := declaredType
		source := s.genLValue(frame, inner, lv.EscapeScope)
		refExpr := ast.NewNode(ast.KRefExpr, source.Expr)
		refExpr.Type = &fuzztype.Type{Kind: fuzztype.KindRef, Inner: inner}
		n := ast.NewNode(ast.KAssign, lv.Expr, refExpr)
		n.Op = "= ref"
		n.Type = refExpr.Type
		return n
	}

	ops := compoundOps(declaredType)
	op := ops[s.r.PickIndex(len(ops))]

	rhsType := declaredType
	if op == "<<=" || op == ">>=" {
		rhsType = s.universe.GetPrimitive(fuzztype.PrimInt)
	}

	var rhs *ast.Node
	switch op {
	case "/=", "%=":
		divOp := "/"
		if op == "%=" {
			divOp = "%"
		}
		rhs = s.genOperandForDivisor(fn, frame, declaredType, divOp, depth+1)
	default:
		rhs = s.genExpression(fn, frame, rhsType, depth+1)
	}

	n := ast.NewNode(ast.KAssign, lv.Expr, rhs)
	n.Op = op
	n.Type = declaredType
	return n
}
