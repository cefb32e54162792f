package reduce

import (
	"fmt"

	"github.com/diffuzz/diffuzz/internal/ast"
)

// finalizeSummary carries the per-regime one-line descriptions the header
// comment's "// Debug: ..." / "// Release: ..." lines report (spec.md §6).
type finalizeSummary struct {
	debug   string
	release string
}

// finalize implements spec.md §4.H's finalization pass: strip the runtime
// instrumentation object and rewrite every checksum call site into a plain
// console write, so the reduced program reads like ordinary source rather
// than one carrying reducer-only scaffolding.
func (rd *Reducer) finalize(prog *ast.Program) (*ast.Program, finalizeSummary) {
	final := prog.Clone()
	final.ChecksumEnabled = false

	for _, fn := range final.Functions {
		rewriteChecksumCalls(fn.Body)
	}

	return final, summarizeMode(rd.mode)
}

// rewriteChecksumCalls walks body in place, turning every IsChecksumCall
// KCallStmt (site-id literal plus one value expression, spec.md §4.E
// checksumming) into a console write of just the value.
func rewriteChecksumCalls(body *ast.Node) {
	body.Walk(func(n *ast.Node) bool {
		if n.Kind == ast.KCallStmt && len(n.Children) == 1 {
			call := n.Children[0]
			if call.Kind == ast.KCallExpr && n.IsChecksumCall && len(call.Children) == 2 {
				value := call.Children[1]
				call.Ident = "Console.WriteLine"
				call.Op = ""
				call.SetChildren([]*ast.Node{value})
				n.IsChecksumCall = false
				n.SiteID = ""
			}
		}
		return true
	}, nil)
}

// summarizeMode renders the frozen interestingness mode (spec.md §4.H) into
// the two outcome descriptions the header comment names.
func summarizeMode(mode Mode) finalizeSummary {
	switch mode.Kind {
	case ModeCompilerCrash:
		if mode.Regime == "debug" {
			return finalizeSummary{debug: "compiler crash", release: "not reached"}
		}
		return finalizeSummary{debug: "compiles", release: "compiler crash"}
	case ModeCompileError:
		desc := fmt.Sprintf("compile error %s", mode.Code)
		if mode.Regime == "debug" {
			return finalizeSummary{debug: desc, release: "not reached"}
		}
		return finalizeSummary{debug: "compiles", release: desc}
	case ModeRuntimeCrash:
		return finalizeSummary{debug: "crash", release: "crash"}
	case ModeExceptionDivergence:
		return finalizeSummary{
			debug:   fmt.Sprintf("throws %s", mode.DebugException),
			release: fmt.Sprintf("throws %s", mode.ReleaseException),
		}
	case ModeChecksumDivergence:
		return finalizeSummary{debug: "checksum mismatch", release: "checksum mismatch"}
	}
	return finalizeSummary{debug: "unknown", release: "unknown"}
}
