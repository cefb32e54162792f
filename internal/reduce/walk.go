package reduce

import "github.com/diffuzz/diffuzz/internal/ast"

// functionByID returns the function with the given ID in prog, or nil.
func functionByID(prog *ast.Program, id int) *ast.Function {
	for _, fn := range prog.Functions {
		if fn.ID == id {
			return fn
		}
	}
	return nil
}

// nodeAtPath walks root by a sequence of child indices. An empty path
// returns root itself. This is the reducer's "node-id" in spec.md §9's
// sense -- a position that survives re-derivation against a freshly cloned
// tree of the same shape, used to locate the same logical node inside a
// just-cloned candidate program.
func nodeAtPath(root *ast.Node, path []int) *ast.Node {
	n := root
	for _, idx := range path {
		if n == nil || idx < 0 || idx >= len(n.Children) {
			return nil
		}
		n = n.Children[idx]
	}
	return n
}

// pathEntry pairs a node with the child-index path used to relocate it.
type pathEntry struct {
	node *ast.Node
	path []int
}

// collectWithPaths walks root in depth-first order, recording every node
// matching pred along with its path from root.
func collectWithPaths(root *ast.Node, pred func(*ast.Node) bool) []pathEntry {
	var out []pathEntry
	var walk func(n *ast.Node, path []int)
	walk = func(n *ast.Node, path []int) {
		if n == nil {
			return
		}
		if pred(n) {
			cp := append([]int{}, path...)
			out = append(out, pathEntry{node: n, path: cp})
		}
		for i, c := range n.Children {
			walk(c, append(path, i))
		}
	}
	walk(root, nil)
	return out
}

// replaceAtPath replaces the node at path (relative to root) with
// replacement, rewiring the parent's child slice. An empty path means
// replace root itself, which callers must special-case since a Node has no
// way to replace itself in its own ancestor from here; used only for
// non-root paths in this package.
func replaceAtPath(root *ast.Node, path []int, replacement *ast.Node) bool {
	if len(path) == 0 {
		return false
	}
	parent := nodeAtPath(root, path[:len(path)-1])
	if parent == nil {
		return false
	}
	idx := path[len(path)-1]
	if idx < 0 || idx >= len(parent.Children) {
		return false
	}
	children := append([]*ast.Node{}, parent.Children...)
	children[idx] = replacement
	parent.SetChildren(children)
	return true
}

// removeAtPath deletes the node at path from its parent's child list
// (shrinking it by one), used by statement-removal simplifiers.
func removeAtPath(root *ast.Node, path []int) bool {
	if len(path) == 0 {
		return false
	}
	parent := nodeAtPath(root, path[:len(path)-1])
	if parent == nil {
		return false
	}
	idx := path[len(path)-1]
	if idx < 0 || idx >= len(parent.Children) {
		return false
	}
	children := append([]*ast.Node{}, parent.Children[:idx]...)
	children = append(children, parent.Children[idx+1:]...)
	parent.SetChildren(children)
	return true
}

// directBlockChildIndices returns the child indices of n that are
// themselves block-shaped containers the coarse pass's binary search
// remover should recurse into (spec.md §4.H coarse pass "descend into
// surviving blocks").
func directBlockChildIndices(n *ast.Node) []int {
	switch n.Kind {
	case ast.KIf:
		if len(n.Children) > 2 {
			return []int{1, 2}
		}
		return []int{1}
	case ast.KTryFinally:
		return []int{0, 1}
	case ast.KLoop:
		return []int{2}
	default:
		return nil
	}
}
