// Package ast defines the abstract program tree shared by the synthesizer,
// printer, and reducer (spec.md §3). Every node is a *Node tagged with a
// Kind, following the teacher's node-tree shape (interp.node: child []*node,
// anc *node, a generic depth-first Walk) rather than a Go-native typed AST --
// this is what lets the reducer rewrite the tree generically by Kind instead
// of by Go type switch per node shape.
package ast

import "github.com/diffuzz/diffuzz/internal/fuzztype"

// Kind tags every node in the program tree, statements and expressions alike.
type Kind int

const (
	// Statements
	KBlock Kind = iota
	KAssign
	KCallStmt
	KIf
	KReturn
	KTryFinally
	KLoop
	KVarDecl // `T x;` with no initializer (post var-lift / simplifier output)
	KLocalDeclAssign // `T x = expr;`

	// Expressions
	KMemberAccess
	KLiteral
	KUnary
	KBinary
	KCallExpr
	KIncrement
	KDecrement
	KNewObject
	KIdent
	KRefExpr
	KCast
	KParen
)

// Node is one tagged tree node. Children are stored positionally; callers
// interpret Children by the node's Kind. This mirrors the teacher's node struct,
// generalized from a Go-source CFG node to a program-tree node for the
// fuzzed source language.
type Node struct {
	Kind     Kind
	Children []*Node
	Anc      *Node

	Type *fuzztype.Type // result type, for expressions; declared type, for KVarDecl/KLocalDeclAssign

	Ident  string // variable/field/function name, operator keyword, or cast-target free text
	Op     string // operator keyword for KUnary/KBinary/KIncrement/KDecrement/compound-assign
	SiteID string // checksum call site id, set only on checksum KCallStmt nodes
	Val    interface{}

	// EscapeScope/ReadOnly are meaningful on expression nodes the
	// synthesizer treats as l-values (KIdent, KMemberAccess) and are
	// propagated from the VariableIdentifier or ScopeFrame entry they were
	// resolved against (spec.md §3 LValueInfo).
	EscapeScope int
	ReadOnly    bool

	// IsChecksumCall marks a KCallStmt emitted by the checksum
	// instrumentation pass, so the reducer's finalization step (spec.md
	// §4.H) can find and rewrite them without re-deriving intent from Ident.
	IsChecksumCall bool
}

// NewNode allocates a Node of the given kind with the given children,
// wiring each child's Anc back-link.
func NewNode(kind Kind, children ...*Node) *Node {
	n := &Node{Kind: kind, Children: children}
	for _, c := range children {
		if c != nil {
			c.Anc = n
		}
	}
	return n
}

// AddChild appends a child and sets its ancestor link.
func (n *Node) AddChild(c *Node) {
	if c != nil {
		c.Anc = n
	}
	n.Children = append(n.Children, c)
}

// SetChildren replaces Children wholesale and re-wires ancestor links. Used
// by the reducer when committing a rewritten child list.
func (n *Node) SetChildren(children []*Node) {
	n.Children = children
	for _, c := range children {
		if c != nil {
			c.Anc = n
		}
	}
}

// Clone performs a deep structural copy of the subtree rooted at n. The
// reducer works on a tree-rewrite-returns-new-tree discipline (spec.md §9);
// Clone is how a candidate rewrite gets an independent tree to mutate
// without disturbing the tree it was generated from (needed because a
// rejected candidate must leave the original untouched).
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	cp := &Node{
		Kind:           n.Kind,
		Type:           n.Type,
		Ident:          n.Ident,
		Op:             n.Op,
		SiteID:         n.SiteID,
		Val:            n.Val,
		EscapeScope:    n.EscapeScope,
		ReadOnly:       n.ReadOnly,
		IsChecksumCall: n.IsChecksumCall,
	}
	if len(n.Children) > 0 {
		cp.Children = make([]*Node, len(n.Children))
		for i, c := range n.Children {
			cp.Children[i] = c.Clone()
			if cp.Children[i] != nil {
				cp.Children[i].Anc = cp
			}
		}
	}
	return cp
}

// Walk traverses the subtree rooted at n in depth-first order, calling in at
// node entry (skipping the subtree if in returns false) and out at node
// exit. Mirrors interp.node.Walk in the teacher.
func (n *Node) Walk(in func(*Node) bool, out func(*Node)) {
	if n == nil {
		return
	}
	if in != nil && !in(n) {
		return
	}
	for _, c := range n.Children {
		c.Walk(in, out)
	}
	if out != nil {
		out(n)
	}
}

// DescendantCount returns the number of nodes in the subtree rooted at n,
// including n itself. Used by the reducer to process methods largest-first
// (spec.md §4.H coarse pass).
func (n *Node) DescendantCount() int {
	count := 0
	n.Walk(func(*Node) bool { count++; return true }, nil)
	return count
}

// VariableIdentifier is a named, typed slot with an associated ref-escape
// scope and mutability flag (spec.md §3).
//
// refEscapeScope encodes the innermost lifetime a by-ref taken of this
// variable may legally escape to: statics use EscapeStatic (+inf), locals at
// scope depth d use -d, ordinary parameters use 0, and by-ref parameters use
// 1 (they may safely escape to the caller).
type VariableIdentifier struct {
	Type            *fuzztype.Type
	Name            string
	RefEscapeScope  int
	ReadOnly        bool
}

// EscapeStatic is the ref-escape scope rank assigned to static fields: it
// outlives every other lifetime in the program.
const EscapeStatic = 1 << 30

// EscapeByRefParam is the rank assigned to a by-ref function parameter: safe
// to return upward to the caller, but not as permanent as a static.
const EscapeByRefParam = 1

// EscapeOrdinaryParam is the rank assigned to an ordinary (by-value)
// parameter's l-value identity.
const EscapeOrdinaryParam = 0

// LocalEscapeScope returns the rank for a local declared at scope depth d
// (d counted from the function body's outermost block as depth 1).
func LocalEscapeScope(depth int) int { return -depth }

// LValueInfo is the synthesizer's working record for any sub-expression it
// has resolved as assignable (spec.md §3).
type LValueInfo struct {
	Expr        *Node
	Type        *fuzztype.Type
	EscapeScope int
	ReadOnly    bool
}

// ScopeFrame is one block's slice of visible locals; frames are pushed on
// block entry and popped on exit, forming the scope stack (spec.md §3).
type ScopeFrame struct {
	Vars  []*VariableIdentifier
	Anc   *ScopeFrame
	Depth int
}

// PushFrame creates a new frame nested under anc, seeded with preseeded
// locals (e.g. a for-loop's induction variable).
func PushFrame(anc *ScopeFrame, preseeded ...*VariableIdentifier) *ScopeFrame {
	depth := 1
	if anc != nil {
		depth = anc.Depth + 1
	}
	return &ScopeFrame{Vars: append([]*VariableIdentifier{}, preseeded...), Anc: anc, Depth: depth}
}

// Declare adds a new local to the frame with the frame's depth as its
// ref-escape scope.
func (f *ScopeFrame) Declare(v *VariableIdentifier) {
	v.RefEscapeScope = LocalEscapeScope(f.Depth)
	f.Vars = append(f.Vars, v)
}

// Visible returns every variable visible from this frame, innermost first
// (frame's own vars, then ancestor frames' vars).
func (f *ScopeFrame) Visible() []*VariableIdentifier {
	var out []*VariableIdentifier
	for s := f; s != nil; s = s.Anc {
		out = append(out, s.Vars...)
	}
	return out
}

// Function is one generated callable (spec.md §3). Functions are keyed by
// insertion-order ID; a call may only target a function with a strictly
// greater ID (forward-only call graph, spec.md §8 property 4).
type Function struct {
	ID           int
	Name         string
	ReturnType   *fuzztype.Type // nil means void
	Parameters   []*VariableIdentifier
	Body         *Node // KBlock
	InstanceType *fuzztype.Type // non-nil for an instance method
	InterfaceType *fuzztype.Type // non-nil if this function implements an interface method
	IsStatic     bool

	// CallCounts[g] is the transitive invocation count of function g from
	// within this function's body (spec.md §4.E "transitive call counts").
	CallCounts map[int]int
}

// StaticField is a process-global variable with a seeded literal
// initializer (spec.md §3).
type StaticField struct {
	Var  VariableIdentifier
	Init *Node // KLiteral or KNewObject
}

// Program is the full generated program (spec.md §3): its type universe's
// aggregates/interfaces, its static pool, its functions in insertion order,
// and the name of the class the printer emits everything else inside of.
type Program struct {
	Aggregates       []*fuzztype.Type
	Interfaces       []*fuzztype.Type
	Statics          []*StaticField
	Functions        []*Function
	PrimaryClassName string
	Seed             uint64
	ChecksumEnabled  bool
	// NextSiteID is the next checksum site id to allocate; monotonic across
	// the whole program (spec.md §4.E checksumming).
	NextSiteID int
}

// Clone deep-copies fn, including its body tree and parameter/return-type
// pointers (types are shared, not cloned -- the Universe's Type values are
// immutable after generation). Used by the reducer, which always rewrites a
// clone and discards it on a failed interestingness check (spec.md §4.H,
// §9 "rewrites return a new tree").
func (fn *Function) Clone() *Function {
	if fn == nil {
		return nil
	}
	cp := &Function{
		ID:            fn.ID,
		Name:          fn.Name,
		ReturnType:    fn.ReturnType,
		InstanceType:  fn.InstanceType,
		InterfaceType: fn.InterfaceType,
		IsStatic:      fn.IsStatic,
		Body:          fn.Body.Clone(),
	}
	if fn.Parameters != nil {
		cp.Parameters = make([]*VariableIdentifier, len(fn.Parameters))
		for i, p := range fn.Parameters {
			v := *p
			cp.Parameters[i] = &v
		}
	}
	if fn.CallCounts != nil {
		cp.CallCounts = make(map[int]int, len(fn.CallCounts))
		for k, v := range fn.CallCounts {
			cp.CallCounts[k] = v
		}
	}
	return cp
}

// Clone deep-copies the whole program tree. The reducer works exclusively
// on clones: a candidate rewrite mutates its own clone, and is thrown away
// wholesale if the interestingness predicate rejects it (spec.md §4.H).
func (p *Program) Clone() *Program {
	if p == nil {
		return nil
	}
	cp := &Program{
		Aggregates:       p.Aggregates,
		Interfaces:       p.Interfaces,
		PrimaryClassName: p.PrimaryClassName,
		Seed:             p.Seed,
		ChecksumEnabled:  p.ChecksumEnabled,
		NextSiteID:       p.NextSiteID,
	}
	if p.Statics != nil {
		cp.Statics = make([]*StaticField, len(p.Statics))
		for i, s := range p.Statics {
			sv := *s
			sv.Init = s.Init.Clone()
			cp.Statics[i] = &sv
		}
	}
	if p.Functions != nil {
		cp.Functions = make([]*Function, len(p.Functions))
		for i, fn := range p.Functions {
			cp.Functions[i] = fn.Clone()
		}
	}
	return cp
}
