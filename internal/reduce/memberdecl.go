package reduce

import (
	"context"

	"github.com/diffuzz/diffuzz/internal/ast"
	"github.com/diffuzz/diffuzz/internal/fuzztype"
)

// applyMemberDeclCatalog implements spec.md §4.H's third fine-pass category:
// rewrites whose unit of change is a whole member declaration (a function,
// a type, a static field, a parameter plus its call sites) rather than a
// single expression/statement node, so each gets its own dedicated
// clone-mutate-test step instead of going through the generic node-path
// engine in simplify.go.
func (rd *Reducer) applyMemberDeclCatalog(ctx context.Context, current **ast.Program, includeLate bool) bool {
	progress := false
	for {
		if rd.tryRemoveFunction(ctx, current) {
			progress = true
			continue
		}
		if rd.tryRemoveType(ctx, current) {
			progress = true
			continue
		}
		if rd.tryRemoveStaticField(ctx, current) {
			progress = true
			continue
		}
		if rd.tryRemoveParameter(ctx, current) {
			progress = true
			continue
		}
		if rd.tryDropReturnType(ctx, current) {
			progress = true
			continue
		}
		if includeLate && rd.tryInlineVoidCallStmt(ctx, current) {
			progress = true
			continue
		}
		if includeLate && rd.tryMoveInstanceMethodToStatic(ctx, current) {
			progress = true
			continue
		}
		break
	}
	return progress
}

// tryRemoveFunction implements "Remove method declaration (except entry
// point)" (spec.md §4.H catalog). Function 0 (the entry point) is never a
// candidate.
func (rd *Reducer) tryRemoveFunction(ctx context.Context, current **ast.Program) bool {
	for _, fn := range (*current).Functions {
		if fn.ID == 0 {
			continue
		}
		candidate := (*current).Clone()
		var kept []*ast.Function
		for _, f := range candidate.Functions {
			if f.ID != fn.ID {
				kept = append(kept, f)
			}
		}
		candidate.Functions = kept
		if rd.isInteresting(ctx, candidate) {
			*current = candidate
			return true
		}
	}
	return false
}

// tryRemoveType implements "Remove type declaration (except primary
// class)"; the primary class is never itself represented in Aggregates/
// Interfaces, so every entry here is eligible.
func (rd *Reducer) tryRemoveType(ctx context.Context, current **ast.Program) bool {
	for _, agg := range (*current).Aggregates {
		candidate := (*current).Clone()
		candidate.Aggregates = removeType(candidate.Aggregates, agg.Name)
		if rd.isInteresting(ctx, candidate) {
			*current = candidate
			return true
		}
	}
	for _, iface := range (*current).Interfaces {
		candidate := (*current).Clone()
		candidate.Interfaces = removeType(candidate.Interfaces, iface.Name)
		if rd.isInteresting(ctx, candidate) {
			*current = candidate
			return true
		}
	}
	return false
}

func removeType(types []*fuzztype.Type, name string) []*fuzztype.Type {
	var out []*fuzztype.Type
	for _, t := range types {
		if t.Name != name {
			out = append(out, t)
		}
	}
	return out
}

// tryRemoveStaticField implements the "Field: ↦ remove" catalog entry
// (spec.md §4.H) against the program's static pool. The "↦ drop
// initializer" variant does not apply here: every StaticField always
// carries a literal initializer in this generator's data model (spec.md §3
// StaticField), so there is no initializer-less shape to fall back to.
func (rd *Reducer) tryRemoveStaticField(ctx context.Context, current **ast.Program) bool {
	for _, s := range (*current).Statics {
		candidate := (*current).Clone()
		var kept []*ast.StaticField
		for _, f := range candidate.Statics {
			if f.Var.Name != s.Var.Name {
				kept = append(kept, f)
			}
		}
		candidate.Statics = kept
		if rd.isInteresting(ctx, candidate) {
			*current = candidate
			return true
		}
	}
	return false
}

// tryRemoveParameter implements "remove the ith parameter of some function
// ... and every matching-arity call site" (spec.md §4.H catalog).
func (rd *Reducer) tryRemoveParameter(ctx context.Context, current **ast.Program) bool {
	for _, fn := range (*current).Functions {
		for i := range fn.Parameters {
			candidate := (*current).Clone()
			cfn := functionByID(candidate, fn.ID)
			cfn.Parameters = append(append([]*ast.VariableIdentifier{}, cfn.Parameters[:i]...), cfn.Parameters[i+1:]...)
			removeArgAtCallSites(candidate, fn.ID, i)
			if rd.isInteresting(ctx, candidate) {
				*current = candidate
				return true
			}
		}
	}
	return false
}

func removeArgAtCallSites(prog *ast.Program, calleeID, paramIdx int) {
	for _, fn := range prog.Functions {
		fn.Body.Walk(func(n *ast.Node) bool {
			if n.Kind == ast.KCallExpr {
				if id, ok := n.Val.(int); ok && id == calleeID {
					argIdx := paramIdx
					if n.Op == "method" {
						argIdx++ // skip the receiver child
					}
					if argIdx < len(n.Children) {
						children := append(append([]*ast.Node{}, n.Children[:argIdx]...), n.Children[argIdx+1:]...)
						n.SetChildren(children)
					}
				}
			}
			return true
		}, nil)
	}
}

// tryDropReturnType implements "Method: drop return type by converting to
// void and rewriting all return statements" (spec.md §4.H catalog). Call
// sites that used the result as a value become invalid and are left for the
// interestingness predicate to reject via the ordinary compile-error path
// (spec.md §7: every candidate is "try { compile; run; classify } catch all
// -> NotInteresting").
func (rd *Reducer) tryDropReturnType(ctx context.Context, current **ast.Program) bool {
	for _, fn := range (*current).Functions {
		if fn.ID == 0 || fn.ReturnType == nil {
			continue
		}
		candidate := (*current).Clone()
		cfn := functionByID(candidate, fn.ID)
		cfn.ReturnType = nil
		cfn.Body.Walk(func(n *ast.Node) bool {
			if n.Kind == ast.KReturn && len(n.Children) > 0 {
				n.SetChildren(nil)
			}
			return true
		}, nil)
		if rd.isInteresting(ctx, candidate) {
			*current = candidate
			return true
		}
	}
	return false
}

// tryInlineVoidCallStmt implements a constrained form of "Inline call site
// (late)": a void-returning call in statement position is replaced by its
// callee's body, with each parameter re-bound to a fresh local holding the
// argument expression (spec.md §4.H "parameters become fresh locals").
// Expression-position calls with a used return value are not inlined here:
// this tree grammar has no statement-sequence-with-trailing-value
// expression form to hold the callee's intermediate statements, so only the
// always-representable void/statement-position shape is attempted.
func (rd *Reducer) tryInlineVoidCallStmt(ctx context.Context, current **ast.Program) bool {
	for _, fn0 := range (*current).Functions {
		entries := collectWithPaths(fn0.Body, func(n *ast.Node) bool {
			if n.Kind != ast.KCallStmt {
				return false
			}
			call := n.Children[0]
			return call.Kind == ast.KCallExpr && call.Type == nil && call.Op != "method"
		})
		for _, e := range entries {
			call := e.node.Children[0]
			calleeID, _ := call.Val.(int)
			callee := functionByID(*current, calleeID)
			if callee == nil || returnCount(callee.Body) > 1 {
				continue
			}
			candidate := (*current).Clone()
			cfn := functionByID(candidate, fn0.ID)
			ccallee := functionByID(candidate, calleeID)
			repl := inlineBody(ccallee, call.Children)
			if !replaceAtPath(cfn.Body, e.path, repl) {
				continue
			}
			if rd.isInteresting(ctx, candidate) {
				*current = candidate
				return true
			}
		}
	}
	return false
}

func returnCount(body *ast.Node) int {
	n := 0
	body.Walk(func(c *ast.Node) bool {
		if c.Kind == ast.KReturn {
			n++
		}
		return true
	}, nil)
	return n
}

// inlineBody produces the statement-block replacement for a call to callee
// with the given argument expressions: one fresh local per parameter, then
// the callee's own body statements. Only the parameters are renamed (with
// an `_inl<callee>` suffix); the callee's own locals keep their names.
func inlineBody(callee *ast.Function, args []*ast.Node) *ast.Node {
	suffix := "_inl" + callee.Name
	rename := map[string]string{}
	for _, p := range callee.Parameters {
		rename[p.Name] = p.Name + suffix
	}

	var stmts []*ast.Node
	for i, p := range callee.Parameters {
		decl := ast.NewNode(ast.KLocalDeclAssign, args[i])
		decl.Type, decl.Ident = p.Type, rename[p.Name]
		stmts = append(stmts, decl)
	}
	body := callee.Body.Clone()
	renameIdents(body, rename)
	stmts = append(stmts, body.Children...)
	return ast.NewNode(ast.KBlock, stmts...)
}

func renameIdents(n *ast.Node, rename map[string]string) {
	if n == nil {
		return
	}
	if (n.Kind == ast.KIdent || n.Kind == ast.KVarDecl || n.Kind == ast.KLocalDeclAssign) && n.Ident != "" {
		if nn, ok := rename[n.Ident]; ok {
			n.Ident = nn
		}
	}
	for _, c := range n.Children {
		renameIdents(c, rename)
	}
}

// tryMoveInstanceMethodToStatic implements "Move an instance method to the
// primary class as static (late)". This generator never preseeds an
// instance-method body with an implicit receiver variable (spec.md §4.E
// Function generation has no "this" slot in scope), so there are no
// `this`-qualified reads to rewrite; converting is just dropping the
// instance marker and the now-unused receiver argument at call sites.
func (rd *Reducer) tryMoveInstanceMethodToStatic(ctx context.Context, current **ast.Program) bool {
	for _, fn := range (*current).Functions {
		if fn.InstanceType == nil {
			continue
		}
		candidate := (*current).Clone()
		cfn := functionByID(candidate, fn.ID)
		cfn.InstanceType = nil
		cfn.IsStatic = true
		for _, g := range candidate.Functions {
			g.Body.Walk(func(n *ast.Node) bool {
				if n.Kind == ast.KCallExpr && n.Op == "method" {
					if id, ok := n.Val.(int); ok && id == fn.ID && len(n.Children) > 0 {
						n.Op = ""
						n.SetChildren(n.Children[1:])
					}
				}
				return true
			}, nil)
		}
		if rd.isInteresting(ctx, candidate) {
			*current = candidate
			return true
		}
	}
	return false
}
