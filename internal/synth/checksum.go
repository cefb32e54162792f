package synth

import (
	"fmt"

	"github.com/diffuzz/diffuzz/internal/ast"
	"github.com/diffuzz/diffuzz/internal/fuzztype"
)

// checksumTarget is the receiver expression the printer renders the checksum
// call against. It is always the unqualified s_rt.Checksum, since every
// generated function is printed inside the primary class (spec.md §4.F
// Checksumming).
const checksumTarget = "s_rt.Checksum"

// emitChecksums implements spec.md §4.E step 5 / §4.F Checksumming: for
// every primitive-typed or Ref-to-primitive leaf path reachable from frame's
// variables, append one checksum call statement to block, carrying a
// monotonically increasing site id. Called once per block, after its own
// statements (and any nested blocks) are already generated, so a block's
// checksum sites always observe that block's final variable values.
func (s *Synthesizer) emitChecksums(block *ast.Node, frame *ast.ScopeFrame) {
	paths := s.collectPaths(frame, func(t *fuzztype.Type) bool { return t.Kind == fuzztype.KindPrimitive })
	for _, p := range paths {
		siteID := fmt.Sprintf("c_%d", s.nextSiteID)
		s.nextSiteID++

		id := ast.NewNode(ast.KLiteral)
		id.Type = &fuzztype.Type{Kind: fuzztype.KindPrimitive, Prim: fuzztype.PrimInt}
		id.Val = siteID

		call := ast.NewNode(ast.KCallExpr, id, p.Expr)
		call.Ident = checksumTarget

		stmt := ast.NewNode(ast.KCallStmt, call)
		stmt.SiteID = siteID
		stmt.IsChecksumCall = true
		block.AddChild(stmt)
	}
}
