package reduce

import (
	"fmt"
	"sort"

	"github.com/diffuzz/diffuzz/internal/ast"
	"github.com/diffuzz/diffuzz/internal/fuzztype"
)

// extractCounter names the fresh locals "if-condition-extract" and
// "extract-call-argument" introduce. The reducer drives a single Reducer
// per process (spec.md §5 "single-threaded per seed"), so a plain
// package-level counter is enough to keep every extracted name unique
// without needing the synth package's per-Synthesizer counter.
var extractCounter int

func freshExtractName(prefix string) string {
	extractCounter++
	return fmt.Sprintf("%s%d", prefix, extractCounter)
}

// removableStmtKinds are statement kinds spec.md §4.H's "Statement ↦ null"
// simplifier may delete outright. KReturn is excluded: removing the
// function's only return statement produces a program whose correctness
// the compiler (not this simplifier) should judge, and coarse-pass already
// explores statement deletion far more cheaply via binary search.
var removableStmtKinds = map[ast.Kind]bool{
	ast.KAssign: true, ast.KCallStmt: true, ast.KIf: true,
	ast.KTryFinally: true, ast.KLoop: true, ast.KVarDecl: true,
	ast.KLocalDeclAssign: true, ast.KBlock: true,
}

var statementCatalog = sortedCatalog([]Simplifier{
	{
		Name: "stmt-to-null", Priority: 10,
		Applies: func(n *ast.Node) bool { return removableStmtKinds[n.Kind] },
		Rewrite: func(n *ast.Node) []rewriteResult { return []rewriteResult{{Remove: true}} },
	},
	{
		Name: "extract-invocation", Priority: 6,
		Applies: func(n *ast.Node) bool {
			return (n.Kind == ast.KAssign || n.Kind == ast.KLocalDeclAssign) && hasCallRHS(n)
		},
		Rewrite: func(n *ast.Node) []rewriteResult {
			call := callRHS(n)
			return []rewriteResult{{Replacement: ast.NewNode(ast.KCallStmt, call)}}
		},
	},
	{
		Name: "local-decl-drop-init", Priority: 4,
		Applies: func(n *ast.Node) bool {
			return n.Kind == ast.KLocalDeclAssign && (n.Type == nil || n.Type.Kind != fuzztype.KindRef)
		},
		Rewrite: func(n *ast.Node) []rewriteResult {
			decl := ast.NewNode(ast.KVarDecl)
			decl.Type, decl.Ident = n.Type, n.Ident
			return []rewriteResult{{Replacement: decl}}
		},
	},
	{
		Name: "ref-local-to-plain", Priority: 4,
		Applies: func(n *ast.Node) bool {
			return n.Kind == ast.KLocalDeclAssign && n.Type != nil && n.Type.Kind == fuzztype.KindRef &&
				len(n.Children) == 1 && n.Children[0].Kind == ast.KRefExpr
		},
		Rewrite: func(n *ast.Node) []rewriteResult {
			decl := ast.NewNode(ast.KLocalDeclAssign, n.Children[0].Children[0])
			decl.Type, decl.Ident = n.Type.Inner, n.Ident
			return []rewriteResult{{Replacement: decl}}
		},
	},
	{
		Name: "if-branches", Priority: 8,
		Applies: func(n *ast.Node) bool { return n.Kind == ast.KIf },
		Rewrite: func(n *ast.Node) []rewriteResult {
			var out []rewriteResult
			out = append(out, rewriteResult{Replacement: n.Children[1]})
			if len(n.Children) > 2 {
				out = append(out, rewriteResult{Replacement: n.Children[2]})
				// Preserve the source's narrower "flip if" behavior (spec.md
				// §9 Open Questions): only flip when the then-branch is empty.
				if len(n.Children[1].Children) == 0 {
					neg := ast.NewNode(ast.KUnary, n.Children[0])
					neg.Op, neg.Type = "!", n.Children[0].Type
					flipped := ast.NewNode(ast.KIf, neg, n.Children[2])
					out = append(out, rewriteResult{Replacement: flipped})
				}
			}
			// Extract condition to local (spec.md §4.H catalog): hoists the
			// guard expression out of the `if` into a preceding declaration,
			// in case a later simplifier (constant-literal narrowing, or
			// removing the declaration outright) can shrink it independently
			// of the branches it guards.
			if n.Children[0].Type != nil {
				name := freshExtractName("cond")
				decl := ast.NewNode(ast.KLocalDeclAssign, n.Children[0])
				decl.Type, decl.Ident = n.Children[0].Type, name
				ident := ast.NewNode(ast.KIdent)
				ident.Type, ident.Ident = n.Children[0].Type, name
				extracted := ast.NewNode(ast.KIf, append([]*ast.Node{ident}, n.Children[1:]...)...)
				out = append(out, rewriteResult{Replacement: ast.NewNode(ast.KBlock, decl, extracted)})
			}
			return out
		},
	},
	{
		Name: "for-to-block", Priority: 6,
		Applies: func(n *ast.Node) bool { return n.Kind == ast.KLoop },
		Rewrite: func(n *ast.Node) []rewriteResult {
			init := ast.NewNode(ast.KLocalDeclAssign, n.Children[0])
			init.Type, init.Ident = n.Type, n.Ident
			repl := ast.NewNode(ast.KBlock, init, n.Children[2])
			return []rewriteResult{{Replacement: repl}}
		},
	},
	{
		Name: "try-finally-variants", Priority: 6,
		Applies: func(n *ast.Node) bool { return n.Kind == ast.KTryFinally },
		Rewrite: func(n *ast.Node) []rewriteResult {
			try, fin := n.Children[0], n.Children[1]
			concat := ast.NewNode(ast.KBlock, append(append([]*ast.Node{}, try.Children...), fin.Children...)...)
			reversed := ast.NewNode(ast.KBlock, append(append([]*ast.Node{}, fin.Children...), try.Children...)...)
			return []rewriteResult{
				{Replacement: try}, {Replacement: fin},
				{Replacement: concat}, {Replacement: reversed},
			}
		},
	},
	{
		Name: "flatten-nested-block", Priority: 5,
		Applies: func(n *ast.Node) bool { return n.Kind == ast.KBlock && hasNestedBlockChild(n) },
		Rewrite: func(n *ast.Node) []rewriteResult {
			var flat []*ast.Node
			for _, c := range n.Children {
				if c.Kind == ast.KBlock {
					flat = append(flat, c.Children...)
				} else {
					flat = append(flat, c)
				}
			}
			return []rewriteResult{{Replacement: ast.NewNode(ast.KBlock, flat...)}}
		},
	},
	{
		Name: "combine-decl-assign", Priority: 5,
		Applies: func(n *ast.Node) bool { return n.Kind == ast.KBlock && hasDeclThenAssignPair(n) },
		Rewrite: func(n *ast.Node) []rewriteResult {
			repl := combineDeclAssign(n)
			if repl == nil {
				return nil
			}
			return []rewriteResult{{Replacement: repl}}
		},
	},
	{
		Name: "inline-trivial-locals", Priority: 3, Late: true,
		Applies: func(n *ast.Node) bool { return n.Kind == ast.KBlock && hasTrivialLocal(n) },
		Rewrite: func(n *ast.Node) []rewriteResult {
			repl := inlineTrivialLocal(n)
			if repl == nil {
				return nil
			}
			return []rewriteResult{{Replacement: repl}}
		},
	},
	{
		Name: "extract-call-argument", Priority: 2, Late: true,
		// Extract a single argument of an invocation to a preceding local
		// (spec.md §4.H catalog, "used as fallback when full extraction
		// eliminates the bug"): tried only once the rest of the catalog has
		// stopped making progress on a statement, so it doesn't compete with
		// cheaper rewrites for priority.
		Applies: func(n *ast.Node) bool {
			return extractableStmtKinds[n.Kind] && findExtractableArg(n) != nil
		},
		Rewrite: func(n *ast.Node) []rewriteResult {
			arg := findExtractableArg(n)
			if arg == nil {
				return nil
			}
			name := freshExtractName("rex")
			decl := ast.NewNode(ast.KLocalDeclAssign, arg)
			decl.Type, decl.Ident = arg.Type, name
			ident := ast.NewNode(ast.KIdent)
			ident.Type, ident.Ident = arg.Type, name
			done := false
			rewritten := replaceNodePointer(n, arg, ident, &done)
			return []rewriteResult{{Replacement: ast.NewNode(ast.KBlock, decl, rewritten)}}
		},
	},
})

var expressionCatalog = sortedCatalog([]Simplifier{
	{
		Name: "binary-to-operand", Priority: 7,
		Applies: func(n *ast.Node) bool { return n.Kind == ast.KBinary },
		Rewrite: func(n *ast.Node) []rewriteResult {
			return []rewriteResult{{Replacement: n.Children[0]}, {Replacement: n.Children[1]}}
		},
	},
	{
		Name: "cast-to-inner", Priority: 6,
		Applies: func(n *ast.Node) bool { return n.Kind == ast.KCast },
		Rewrite: func(n *ast.Node) []rewriteResult { return []rewriteResult{{Replacement: n.Children[0]}} },
	},
	{
		Name: "paren-to-inner", Priority: 6,
		Applies: func(n *ast.Node) bool { return n.Kind == ast.KParen },
		Rewrite: func(n *ast.Node) []rewriteResult { return []rewriteResult{{Replacement: n.Children[0]}} },
	},
	{
		Name: "unary-to-operand", Priority: 5,
		Applies: func(n *ast.Node) bool { return n.Kind == ast.KUnary || n.Kind == ast.KIncrement || n.Kind == ast.KDecrement },
		Rewrite: func(n *ast.Node) []rewriteResult { return []rewriteResult{{Replacement: n.Children[0]}} },
	},
	{
		Name: "array-initializer-first-only", Priority: 3,
		Applies: func(n *ast.Node) bool { return n.Kind == ast.KNewObject && n.Ident == "array1" },
		Rewrite: func(n *ast.Node) []rewriteResult { return nil }, // already fixed length 1; nothing further to drop
	},
	{
		Name: "const-literal-small", Priority: 1, Late: true,
		Applies: func(n *ast.Node) bool { return n.Kind == ast.KLiteral && isNonTrivialNumeric(n) },
		Rewrite: func(n *ast.Node) []rewriteResult {
			var out []rewriteResult
			for _, v := range smallConstants(n) {
				repl := ast.NewNode(ast.KLiteral)
				repl.Type, repl.Val = n.Type, v
				out = append(out, rewriteResult{Replacement: repl})
			}
			return out
		},
	},
})

func sortedCatalog(in []Simplifier) []Simplifier {
	sort.SliceStable(in, func(i, j int) bool { return in[i].Priority > in[j].Priority })
	return in
}

func hasCallRHS(n *ast.Node) bool { return callRHS(n) != nil }

func callRHS(n *ast.Node) *ast.Node {
	if len(n.Children) == 0 {
		return nil
	}
	rhs := n.Children[len(n.Children)-1]
	if rhs.Kind == ast.KCallExpr {
		return rhs
	}
	return nil
}

func hasNestedBlockChild(n *ast.Node) bool {
	for _, c := range n.Children {
		if c.Kind == ast.KBlock {
			return true
		}
	}
	return false
}

func hasDeclThenAssignPair(block *ast.Node) bool { return combineDeclAssign(block) != nil }

// combineDeclAssign finds `T x;` immediately followed by `x = e;` and
// returns the block with that pair merged into `T x = e;`, or nil if no
// such adjacent pair exists (spec.md §4.H catalog "Combine T x; x = e;").
func combineDeclAssign(block *ast.Node) *ast.Node {
	for i := 0; i+1 < len(block.Children); i++ {
		decl := block.Children[i]
		assign := block.Children[i+1]
		if decl.Kind != ast.KVarDecl || assign.Kind != ast.KAssign || assign.Op != "=" {
			continue
		}
		if assign.Children[0].Kind != ast.KIdent || assign.Children[0].Ident != decl.Ident {
			continue
		}
		merged := ast.NewNode(ast.KLocalDeclAssign, assign.Children[1])
		merged.Type, merged.Ident = decl.Type, decl.Ident
		out := append(append([]*ast.Node{}, block.Children[:i]...), merged)
		out = append(out, block.Children[i+2:]...)
		return ast.NewNode(ast.KBlock, out...)
	}
	return nil
}

func hasTrivialLocal(block *ast.Node) bool { return inlineTrivialLocal(block) != nil }

// inlineTrivialLocal finds the first `var a = identifier;` or
// `var a = literal;` declaration and substitutes every later occurrence of
// `a` within the same block (reads and assignment targets alike) with its
// initializer, dropping the declaration
// (spec.md §4.H catalog "Inline trivially-initialized locals").
func inlineTrivialLocal(block *ast.Node) *ast.Node {
	for i, decl := range block.Children {
		if decl.Kind != ast.KLocalDeclAssign || len(decl.Children) != 1 {
			continue
		}
		init := decl.Children[0]
		if init.Kind != ast.KIdent && init.Kind != ast.KLiteral {
			continue
		}
		rest := append([]*ast.Node{}, block.Children[:i]...)
		for _, c := range block.Children[i+1:] {
			rest = append(rest, substituteIdent(c, decl.Ident, init))
		}
		return ast.NewNode(ast.KBlock, rest...)
	}
	return nil
}

func substituteIdent(n *ast.Node, name string, with *ast.Node) *ast.Node {
	if n == nil {
		return nil
	}
	if n.Kind == ast.KIdent && n.Ident == name {
		return with
	}
	if len(n.Children) == 0 {
		return n
	}
	cp := n.Clone()
	for i, c := range cp.Children {
		cp.Children[i] = substituteIdent(c, name, with)
	}
	cp.SetChildren(cp.Children)
	return cp
}

func isNonTrivialNumeric(n *ast.Node) bool {
	if n.Type == nil || n.Type.Kind != fuzztype.KindPrimitive || !n.Type.IsIntegral() {
		return false
	}
	v, ok := n.Val.(int64)
	return ok && v != 0 && v != 1 && v != -1
}

func smallConstants(n *ast.Node) []int64 {
	var out []int64
	for _, v := range []int64{0, 1, -1} {
		if n.Val != v {
			out = append(out, v)
		}
	}
	return out
}

// extractableStmtKinds are the statement shapes "extract-call-argument"
// considers: leaf statements that can directly hold a call expression.
// Compound statements (KBlock, KTryFinally) are skipped since any call they
// contain is reachable through one of their own statement children instead.
var extractableStmtKinds = map[ast.Kind]bool{
	ast.KAssign: true, ast.KCallStmt: true, ast.KIf: true,
	ast.KReturn: true, ast.KLocalDeclAssign: true, ast.KLoop: true,
}

// extractableExprRoots returns the expression-only children of a statement
// to search for a call argument -- deliberately excluding a KIf's branches
// and a KLoop's body, which are themselves statement subtrees that
// "extract-call-argument" will match independently when traversal reaches
// them, rather than through the enclosing KIf/KLoop.
func extractableExprRoots(n *ast.Node) []*ast.Node {
	switch n.Kind {
	case ast.KIf:
		return n.Children[:1]
	case ast.KLoop:
		return n.Children[:2]
	default:
		return n.Children
	}
}

// findExtractableArg returns the first call argument within n's
// expression-only children (see extractableExprRoots) that is not already a
// bare identifier or literal (spec.md §4.H catalog "Extract a single
// argument of an invocation to a preceding local"), or nil if none
// qualifies. A call's receiver (Op == "method", first child) and Ref
// arguments are never extracted: pulling either into a plain local would
// change what l-value the call actually observes.
func findExtractableArg(n *ast.Node) *ast.Node {
	for _, root := range extractableExprRoots(n) {
		var found *ast.Node
		root.Walk(func(c *ast.Node) bool {
			if found != nil {
				return false
			}
			if c.Kind != ast.KCallExpr {
				return true
			}
			args := c.Children
			if c.Op == "method" && len(args) > 0 {
				args = args[1:]
			}
			for _, a := range args {
				if a.Kind == ast.KIdent || a.Kind == ast.KLiteral || a.Kind == ast.KRefExpr || a.Type == nil {
					continue
				}
				found = a
				return false
			}
			return true
		}, nil)
		if found != nil {
			return found
		}
	}
	return nil
}

// replaceNodePointer returns a copy of the subtree rooted at n with the
// first descendant identical (by pointer) to target swapped for
// replacement, cloning only the spine of ancestors on the path to target so
// every other subtree is shared with n (matching substituteIdent's
// clone-only-what-changed discipline).
func replaceNodePointer(n, target, replacement *ast.Node, done *bool) *ast.Node {
	if *done || n == nil {
		return n
	}
	if n == target {
		*done = true
		return replacement
	}
	if len(n.Children) == 0 {
		return n
	}
	newChildren := make([]*ast.Node, len(n.Children))
	changed := false
	for i, c := range n.Children {
		nc := replaceNodePointer(c, target, replacement, done)
		newChildren[i] = nc
		if nc != c {
			changed = true
		}
	}
	if !changed {
		return n
	}
	cp := n.Clone()
	cp.SetChildren(newChildren)
	return cp
}
