package reduce

import (
	"context"
	"sort"

	"github.com/diffuzz/diffuzz/internal/ast"
	"github.com/diffuzz/diffuzz/internal/fuzztype"
)

// coarsePass runs the reducer's one-shot coarse shrink (spec.md §4.H):
// variable lifting (to enable later per-statement removal across def-use
// boundaries) followed by a per-method, largest-first binary search
// statement remover.
func (rd *Reducer) coarsePass(ctx context.Context, prog *ast.Program) *ast.Program {
	current := rd.liftLocals(ctx, prog)
	current = rd.removeStatements(ctx, current)
	return current
}

// liftLocals implements spec.md §4.H coarse pass step 1: for each method,
// for each non-ref single-variable local decl, try replacing it with a
// `T x;` declaration lifted to the top of the method plus an in-place
// assignment. Declarations are addressed by variable name rather than tree
// position, since `synth` hands out globally unique var<counter> names and
// the lift itself only ever prepends to the method body (shifting sibling
// indices, but never variable names).
func (rd *Reducer) liftLocals(ctx context.Context, prog *ast.Program) *ast.Program {
	current := prog
	for _, fn0 := range prog.Functions {
		fnID := fn0.ID
		tried := map[string]bool{}
		for {
			fn := functionByID(current, fnID)
			decls := collectWithPaths(fn.Body, func(n *ast.Node) bool { return n.Kind == ast.KLocalDeclAssign })
			var target *pathEntry
			for i := range decls {
				if !tried[decls[i].node.Ident] {
					target = &decls[i]
					break
				}
			}
			if target == nil {
				break
			}
			tried[target.node.Ident] = true
			if target.node.Type != nil && target.node.Type.Kind == fuzztype.KindRef {
				continue // "ref T x = ref y;" is handled by its own catalog simplifier, not lifted
			}

			candidate := current.Clone()
			cfn := functionByID(candidate, fnID)
			cdecl := findByIdent(cfn.Body, target.node.Ident)
			if cdecl == nil {
				continue
			}
			liftDecl(cfn, cdecl)
			if rd.isInteresting(ctx, candidate) {
				current = candidate
			}
		}
	}
	return current
}

func findByIdent(root *ast.Node, ident string) *ast.Node {
	var found *ast.Node
	root.Walk(func(n *ast.Node) bool {
		if found != nil {
			return false
		}
		if n.Kind == ast.KLocalDeclAssign && n.Ident == ident {
			found = n
		}
		return found == nil
	}, nil)
	return found
}

// liftDecl converts decl (a KLocalDeclAssign) in place into a KAssign, and
// prepends a KVarDecl of the same name/type to fn's body. The prepended
// declaration has no initializer.
func liftDecl(fn *ast.Function, decl *ast.Node) {
	name := decl.Ident
	declType := decl.Type
	rhs := decl.Children[0]

	lhs := ast.NewNode(ast.KIdent)
	lhs.Ident = name
	lhs.Type = declType

	decl.Kind = ast.KAssign
	decl.Op = "="
	decl.Ident = ""
	decl.SetChildren([]*ast.Node{lhs, rhs})

	varDecl := ast.NewNode(ast.KVarDecl)
	varDecl.Type = declType
	varDecl.Ident = name

	fn.Body.SetChildren(append([]*ast.Node{varDecl}, fn.Body.Children...))
}

// removeStatements implements spec.md §4.H coarse pass step 2: process
// methods largest-first by descendant count, running a binary-search
// statement remover over each block, descending into surviving blocks.
func (rd *Reducer) removeStatements(ctx context.Context, prog *ast.Program) *ast.Program {
	current := prog
	order := append([]*ast.Function{}, prog.Functions...)
	sort.Slice(order, func(i, j int) bool {
		return order[i].Body.DescendantCount() > order[j].Body.DescendantCount()
	})
	for _, fn0 := range order {
		current = rd.reduceFunctionBlocks(ctx, current, fn0.ID)
	}
	return current
}

func (rd *Reducer) reduceFunctionBlocks(ctx context.Context, prog *ast.Program, fnID int) *ast.Program {
	current := prog
	queue := [][]int{{}}
	for len(queue) > 0 {
		path := queue[0]
		queue = queue[1:]

		current = rd.binarySearchRemove(ctx, current, fnID, path)

		fn := functionByID(current, fnID)
		blk := nodeAtPath(fn.Body, path)
		if blk == nil {
			continue
		}
		for i, child := range blk.Children {
			childPath := append(append([]int{}, path...), i)
			if child.Kind == ast.KBlock {
				queue = append(queue, childPath)
				continue
			}
			for _, ci := range directBlockChildIndices(child) {
				queue = append(queue, append(append([]int{}, childPath...), ci))
			}
		}
	}
	return current
}

// binarySearchRemove implements spec.md's "binary-search coarse statement
// remover" (§4.H, §4 Reducer, §8 S5): a classic delta-debugging chunked
// removal -- start with the whole block as one chunk, halve the chunk size
// each round, and try deleting every chunk-sized run at its current offset,
// keeping the deletion whenever the result stays interesting.
func (rd *Reducer) binarySearchRemove(ctx context.Context, prog *ast.Program, fnID int, path []int) *ast.Program {
	current := prog
	fn := functionByID(current, fnID)
	blk := nodeAtPath(fn.Body, path)
	if blk == nil {
		return current
	}
	n := len(blk.Children)
	if n == 0 {
		return current
	}

	for chunk := n; chunk >= 1; chunk /= 2 {
		offset := 0
		for {
			fn = functionByID(current, fnID)
			blk = nodeAtPath(fn.Body, path)
			if blk == nil || offset >= len(blk.Children) {
				break
			}
			hi := offset + chunk
			if hi > len(blk.Children) {
				hi = len(blk.Children)
			}
			if hi <= offset {
				break
			}

			candidate := current.Clone()
			cfn := functionByID(candidate, fnID)
			cblk := nodeAtPath(cfn.Body, path)
			remaining := append(append([]*ast.Node{}, cblk.Children[:offset]...), cblk.Children[hi:]...)
			cblk.SetChildren(remaining)

			if rd.isInteresting(ctx, candidate) {
				current = candidate
				// Block shrank in place; retry at the same offset.
				continue
			}
			offset += chunk
		}
	}
	return current
}
