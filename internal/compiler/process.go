package compiler

import (
	"context"

	"github.com/diffuzz/diffuzz/internal/execclient"
)

// ProcessCompiler adapts an execclient.Client (the single --host process,
// spec.md §6) into the Compiler interface, translating its wire-level
// CompileResult into the CompilerCrash/CompileError sentinels the pipeline
// classifies on (spec.md §7).
type ProcessCompiler struct {
	Client *execclient.Client
	Regime string // "debug" | "release"
	Ctx    func() context.Context
}

// Compile sends opt's regime to the host process and classifies its reply.
func (p *ProcessCompiler) Compile(source []byte, opt Options) ([]byte, error) {
	ctx := context.Background()
	if p.Ctx != nil {
		ctx = p.Ctx()
	}
	res, err := p.Client.Compile(ctx, source, opt.Optimize)
	if err != nil {
		return nil, err
	}
	if res.Crashed {
		return nil, &CompilerCrash{Regime: p.Regime}
	}
	var diags []Diagnostic
	hasError := false
	for _, d := range res.Diagnostics {
		diags = append(diags, Diagnostic{Code: d.Code, Message: d.Message, Severity: d.Severity})
		if d.Severity == "error" {
			hasError = true
		}
	}
	if hasError {
		return nil, &CompileError{Regime: p.Regime, Diagnostics: diags}
	}
	return res.Bytes, nil
}
