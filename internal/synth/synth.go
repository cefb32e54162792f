// Package synth implements the type-directed random program synthesizer
// (spec.md §4.E), the heart of the generator. It produces a Program
// guaranteed to type-check and to avoid undefined-at-compile-time behavior:
// division-by-zero is excluded by forcing every divisor through `(x | 1)`,
// escape-scope discipline keeps by-reference passing correct, and every
// local is always assigned a literal or expression value before any read.
package synth

import (
	"fmt"

	"github.com/diffuzz/diffuzz/internal/ast"
	"github.com/diffuzz/diffuzz/internal/fuzztype"
	"github.com/diffuzz/diffuzz/internal/literal"
	"github.com/diffuzz/diffuzz/internal/rng"
	"github.com/diffuzz/diffuzz/internal/statics"
)

// Config controls the generation volumes and probabilities used throughout
// synthesis. NewSynthesizer replaces a Config equal to the zero value with
// DefaultConfig(); any other Config is used exactly as given.
type Config struct {
	TypeConfig fuzztype.Config

	MinFunctions int // minimum number of top-level functions to emit
	MinGlobalStatements int // minimum statement count reachable from function 0's root block (spec.md §4.E step 2)

	MaxStatementsPerBlock int
	NewCalleeProb         float64 // probability a call site synthesizes a brand new callee
	NewLocalProb          float64 // probability an assignment declares a new local
	ByRefProb             float64 // probability a chosen type is wrapped in Ref
	RefReassignProb       float64 // probability a Ref-typed l-value gets `lhs = ref y` instead of a value store
	ChecksumEnabled       bool

	SingleFunctionMaxTotalCalls int // call-graph budget (spec.md §4.E call generation)
	MaxParams                  int
	MaxRecursionDepth          int

	StatementWeights StatementWeights
}

// StatementWeights is the weighted distribution over statement kinds
// (spec.md §4.E). Index meanings are documented by the stmtKind* constants.
type StatementWeights struct {
	Block      int
	Assignment int
	Call       int
	If         int
	Return     int
	TryFinally int
	Loop       int
}

// DefaultConfig returns the spec's suggested generation volumes.
func DefaultConfig() Config {
	return Config{
		TypeConfig:                  fuzztype.DefaultConfig(),
		MinFunctions:                4,
		MinGlobalStatements:         40,
		MaxStatementsPerBlock:       6,
		NewCalleeProb:               0.25,
		NewLocalProb:                0.4,
		ByRefProb:                   0.15,
		RefReassignProb:             0.3,
		ChecksumEnabled:             true,
		SingleFunctionMaxTotalCalls: 64,
		MaxParams:                   4,
		MaxRecursionDepth:           7,
		StatementWeights: StatementWeights{
			Block: 1, Assignment: 6, Call: 3, If: 3, Return: 1, TryFinally: 1, Loop: 2,
		},
	}
}

// Synthesizer holds all generation state for one program (spec.md §4.E).
type Synthesizer struct {
	r        *rng.Random
	universe *fuzztype.Universe
	statics  *statics.Pool
	lit      *literal.Generator
	cfg      Config
	recPolicy rng.RecursionRejection

	functions       []*ast.Function
	localCounter    int
	globalStmtCount int
	nextSiteID      int
	finallyDepth    int // >0 means we are nested inside a finally block somewhere in the current function
}

// NewSynthesizer builds a Synthesizer from a seeded Random and Config. The
// caller is expected to have created r, universe, statics pool, and literal
// generator from the same Random instance so that the whole pipeline draws
// from a single deterministic stream (spec.md §4.A, §8 S1).
func NewSynthesizer(r *rng.Random, universe *fuzztype.Universe, pool *statics.Pool, lit *literal.Generator, cfg Config) *Synthesizer {
	if cfg == (Config{}) {
		cfg = DefaultConfig()
	}
	return &Synthesizer{
		r:         r,
		universe:  universe,
		statics:   pool,
		lit:       lit,
		cfg:       cfg,
		recPolicy: rng.DefaultRecursionRejection(),
	}
}

// GenerateProgram runs the full synthesis pass: types (generated here into
// universe from the TypeConfig), function 0 (Main-like, void, no params), then
// additional top-level functions until MinFunctions is reached -- new
// functions may also be appended earlier than that, as callees synthesized
// mid-generation by call sites (spec.md §4.E Call generation).
func (s *Synthesizer) GenerateProgram(seed uint64, primaryClassName string) *ast.Program {
	s.universe.GenerateTypes(s.cfg.TypeConfig)

	s.generateFunction(true, false, nil)
	for len(s.functions) < s.cfg.MinFunctions {
		s.generateFunction(false, false, nil)
	}

	prog := &ast.Program{
		Aggregates:       s.universe.Aggregates(),
		Interfaces:       s.universe.Interfaces(),
		Statics:          s.statics.Fields(),
		Functions:        s.functions,
		PrimaryClassName: primaryClassName,
		Seed:             seed,
		ChecksumEnabled:  s.cfg.ChecksumEnabled,
		NextSiteID:       s.nextSiteID,
	}
	return prog
}

// generateFunction allocates the next function ID, appends it to the
// function list immediately (so any callee it spawns gets a strictly
// greater ID, maintaining the forward-only call graph invariant), then
// fills in its signature and body.
//
// entryPoint forces a void, parameterless signature matching "Function 0 is
// Main-like" (spec.md §4.E). When forceReturn is true, the function's
// return type is pinned to returnType (which may itself be nil for void) --
// used when an expression-context call site synthesizes a brand-new callee
// that must hand back a specific type (spec.md §4.E Call generation).
func (s *Synthesizer) generateFunction(entryPoint, forceReturn bool, returnType *fuzztype.Type) *ast.Function {
	id := len(s.functions)
	fn := &ast.Function{ID: id, Name: funcName(id), CallCounts: map[int]int{}}
	s.functions = append(s.functions, fn)

	var params []*ast.VariableIdentifier
	switch {
	case entryPoint:
		fn.ReturnType = nil
	case forceReturn:
		fn.ReturnType = returnType
	default:
		if s.r.FlipCoin(0.7) {
			fn.ReturnType = s.universe.PickType(s.cfg.ByRefProb)
		}
	}
	if !entryPoint {
		nParams := s.r.PickIndex(s.cfg.MaxParams + 1)
		for i := 0; i < nParams; i++ {
			byRef := s.r.FlipCoin(s.cfg.ByRefProb)
			t := s.universe.PickType(0)
			v := &ast.VariableIdentifier{Type: t, Name: fmt.Sprintf("p%d", i)}
			if byRef {
				v.RefEscapeScope = ast.EscapeByRefParam
				v.Type = &fuzztype.Type{Kind: fuzztype.KindRef, Inner: t}
			} else {
				v.RefEscapeScope = ast.EscapeOrdinaryParam
			}
			params = append(params, v)
		}
		if s.r.FlipCoin(0.3) && len(s.universe.Aggregates()) > 0 {
			fn.InstanceType = s.universe.Aggregates()[s.r.PickIndex(len(s.universe.Aggregates()))]
		}
	}
	fn.Parameters = params

	savedFinally := s.finallyDepth
	s.finallyDepth = 0
	targetStmts := 2 + s.r.PickIndex(s.cfg.MaxStatementsPerBlock)
	fn.Body = s.generateBlock(fn, nil, true, targetStmts, 0, params...)
	s.finallyDepth = savedFinally

	return fn
}

func funcName(id int) string {
	if id == 0 {
		return "Main"
	}
	return fmt.Sprintf("M%d", id)
}

// generateBlock implements spec.md §4.E Block generation. preseeded locals
// (function parameters, or a for-loop's induction variable) are pushed into
// the new frame before any statements are generated.
func (s *Synthesizer) generateBlock(fn *ast.Function, anc *ast.ScopeFrame, root bool, targetCount, depth int, preseeded ...*ast.VariableIdentifier) *ast.Node {
	frame := ast.PushFrame(anc, preseeded...)
	block := ast.NewNode(ast.KBlock)

	// Checksums must land before the terminal return, never after it (spec.md
	// §4.E step 5) -- a statement after a return would be dead code. So every
	// path that ends the block with a return first flushes the block's
	// checksum statements, then appends the return last.
	returned := false
	for i := 0; i < targetCount || (root && fn.ID == 0 && s.globalStmtCount < s.cfg.MinGlobalStatements); i++ {
		stmt := s.generateStatement(fn, frame, root, depth)
		if stmt == nil {
			continue
		}
		if stmt.Kind == ast.KReturn {
			if s.cfg.ChecksumEnabled {
				s.emitChecksums(block, frame)
			}
			block.AddChild(stmt)
			s.globalStmtCount++
			returned = true
			break
		}
		block.AddChild(stmt)
		s.globalStmtCount++
		if i+1 >= targetCount && root && fn.ID == 0 && s.globalStmtCount >= s.cfg.MinGlobalStatements {
			break
		}
	}

	if root && fn.ReturnType != nil && !returned {
		if s.cfg.ChecksumEnabled {
			s.emitChecksums(block, frame)
		}
		block.AddChild(s.generateReturn(fn, frame, depth))
		returned = true
	}

	if s.cfg.ChecksumEnabled && !returned {
		s.emitChecksums(block, frame)
	}

	return block
}

// generateStatement samples a statement kind by weighted distribution,
// applying recursion rejection to compound kinds. A Return sampled where it
// is not legal (nested in a finally, or at root level) is generated as an
// assignment instead.
func (s *Synthesizer) generateStatement(fn *ast.Function, frame *ast.ScopeFrame, root bool, depth int) *ast.Node {
	w := s.cfg.StatementWeights
	weights := []int{w.Block, w.Assignment, w.Call, w.If, w.Return, w.TryFinally, w.Loop}
	compound := map[int]bool{0: true, 3: true, 5: true, 6: true}

	idx := s.r.SampleWeighted(weights)
	if compound[idx] && !s.recPolicy.Allow(s.r, depth) {
		idx = 1 // fall back to a simple assignment
	}

	switch idx {
	case 0:
		return s.generateBlock(fn, frame, false, 1+s.r.PickIndex(3), depth+1)
	case 1:
		return s.generateAssignment(fn, frame, depth)
	case 2:
		return s.generateCallStatement(fn, frame, depth)
	case 3:
		return s.generateIf(fn, frame, depth)
	case 4:
		if root || s.finallyDepth > 0 {
			return s.generateAssignment(fn, frame, depth)
		}
		return s.generateReturn(fn, frame, depth)
	case 5:
		return s.generateTryFinally(fn, frame, depth)
	case 6:
		return s.generateLoop(fn, frame, depth)
	}
	return s.generateAssignment(fn, frame, depth)
}

func (s *Synthesizer) generateReturn(fn *ast.Function, frame *ast.ScopeFrame, depth int) *ast.Node {
	ret := ast.NewNode(ast.KReturn)
	if fn.ReturnType != nil {
		if fn.ReturnType.Kind == fuzztype.KindRef {
			lv := s.genLValue(frame, fn.ReturnType.Inner, ast.EscapeByRefParam)
			refExpr := ast.NewNode(ast.KRefExpr, lv.Expr)
			refExpr.Type = fn.ReturnType
			ret.AddChild(refExpr)
		} else {
			ret.AddChild(s.genExpression(fn, frame, fn.ReturnType, depth))
		}
	}
	return ret
}

func (s *Synthesizer) generateIf(fn *ast.Function, frame *ast.ScopeFrame, depth int) *ast.Node {
	boolT := s.universe.GetPrimitive(fuzztype.PrimBool)
	var cond *ast.Node
	for i := 0; i < 20; i++ {
		cond = s.genExpression(fn, frame, boolT, depth+1)
		if cond.Kind != ast.KLiteral {
			break
		}
	}
	thenBlock := s.generateBlock(fn, frame, false, 1+s.r.PickIndex(3), depth+1)
	ifNode := ast.NewNode(ast.KIf, cond, thenBlock)
	if s.r.FlipCoin(0.5) {
		elseBlock := s.generateBlock(fn, frame, false, 1+s.r.PickIndex(3), depth+1)
		ifNode.AddChild(elseBlock)
	}
	return ifNode
}

func (s *Synthesizer) generateTryFinally(fn *ast.Function, frame *ast.ScopeFrame, depth int) *ast.Node {
	tryBudget := 1 + s.r.PickIndex(3)
	finallyBudget := 1 + s.r.PickIndex(2)

	tryBlock := s.generateBlock(fn, frame, false, tryBudget, depth+1)

	s.finallyDepth++
	finallyBlock := s.generateBlock(fn, frame, false, finallyBudget, depth+1)
	s.finallyDepth--

	return ast.NewNode(ast.KTryFinally, tryBlock, finallyBlock)
}

// generateLoop synthesizes a for-loop with a fresh int induction variable,
// initial 0, bound 2, post-increment; the body block is preseeded with the
// induction variable, which is read-only (spec.md §4.E Loop).
func (s *Synthesizer) generateLoop(fn *ast.Function, frame *ast.ScopeFrame, depth int) *ast.Node {
	intT := s.universe.GetPrimitive(fuzztype.PrimInt)
	induction := &ast.VariableIdentifier{Type: intT, Name: fmt.Sprintf("i%d", depth), ReadOnly: true}

	initLit := ast.NewNode(ast.KLiteral)
	initLit.Type = intT
	initLit.Val = int64(0)
	boundLit := ast.NewNode(ast.KLiteral)
	boundLit.Type = intT
	boundLit.Val = int64(2)

	body := s.generateBlock(fn, frame, false, 1+s.r.PickIndex(3), depth+1, induction)
	loop := ast.NewNode(ast.KLoop, initLit, boundLit, body)
	loop.Ident = induction.Name
	loop.Type = intT
	return loop
}
