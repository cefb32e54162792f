package reduce

import (
	"context"

	"github.com/diffuzz/diffuzz/internal/ast"
)

// rewriteResult is one candidate a Simplifier proposes for a matched node:
// either delete the node from its parent (Remove) or substitute Replacement
// in its place (spec.md §9 "rewrites return a new tree").
type rewriteResult struct {
	Remove      bool
	Replacement *ast.Node
}

// Simplifier is one row of the catalog (spec.md §4.H, §9 "simplifiers are
// values in a table sorted by (priority desc, insertion)"). Applies filters
// which nodes this rule considers; Rewrite returns one or more candidate
// rewrites for a matched node, tried in order until one commits. The
// candidates of different simplifiers are not interleaved: each simplifier's
// list is tried to the end before the next simplifier's.
type Simplifier struct {
	Name     string
	Priority int
	Late     bool
	Applies  func(n *ast.Node) bool
	Rewrite  func(n *ast.Node) []rewriteResult
}

// finePass implements spec.md §4.H's fine pass: repeatedly pass statement
// nodes, then expression nodes, then member-declaration nodes through the
// catalog until a full outer iteration makes no progress. Late simplifiers
// are skipped on the first outer iteration.
func (rd *Reducer) finePass(ctx context.Context, prog *ast.Program) *ast.Program {
	current := prog
	for outer := 0; ; outer++ {
		includeLate := outer > 0
		progressed := false

		for _, fn0 := range current.Functions {
			changed := rd.applyCatalogToFunction(ctx, &current, fn0.ID, statementCatalog, includeLate)
			progressed = progressed || changed
		}
		for _, fn0 := range current.Functions {
			changed := rd.applyCatalogToFunction(ctx, &current, fn0.ID, expressionCatalog, includeLate)
			progressed = progressed || changed
		}
		changed := rd.applyMemberDeclCatalog(ctx, &current, includeLate)
		progressed = progressed || changed

		if !progressed {
			return current
		}
	}
}

// applyCatalogToFunction runs catalog against every matching node in fn's
// body, in a shuffled traversal order (spec.md §9 "Fisher-Yates-shuffled
// traversal order"), restarting the node list from scratch after every
// committed rewrite (spec.md "on the first interesting replacement, commit
// and restart traversal of that node list").
func (rd *Reducer) applyCatalogToFunction(ctx context.Context, current **ast.Program, fnID int, catalog []Simplifier, includeLate bool) bool {
	anyProgress := false
restart:
	fn := functionByID(*current, fnID)
	if fn == nil {
		return anyProgress
	}
	entries := collectWithPaths(fn.Body, func(*ast.Node) bool { return true })
	order := rd.r.Perm(len(entries))

	for _, idx := range order {
		entry := entries[idx]
		for _, simp := range catalog {
			if simp.Late && !includeLate {
				continue
			}
			if !simp.Applies(entry.node) {
				continue
			}
			for _, cand := range simp.Rewrite(entry.node) {
				if rd.tryCommitNodeRewrite(ctx, current, fnID, entry.path, cand) {
					anyProgress = true
					goto restart
				}
			}
		}
	}
	return anyProgress
}

// tryCommitNodeRewrite clones *current, relocates the node at path inside
// the clone, applies cand, and keeps the clone iff it is still interesting.
func (rd *Reducer) tryCommitNodeRewrite(ctx context.Context, current **ast.Program, fnID int, path []int, cand rewriteResult) bool {
	candidate := (*current).Clone()
	cfn := functionByID(candidate, fnID)
	if cfn == nil {
		return false
	}
	if len(path) == 0 {
		return false // the function body root is never itself rewritten here
	}
	var ok bool
	if cand.Remove {
		ok = removeAtPath(cfn.Body, path)
	} else {
		ok = replaceAtPath(cfn.Body, path, cand.Replacement)
	}
	if !ok {
		return false
	}
	if rd.isInteresting(ctx, candidate) {
		*current = candidate
		return true
	}
	return false
}
