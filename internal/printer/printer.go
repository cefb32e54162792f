// Package printer serializes an abstract Program into concrete source text
// for the compiler front-end (spec.md §4.F). The generated language is a
// curly-brace, C-family object-oriented source language (the curated subset
// spec.md §1 describes); the printer is the only package that knows its
// concrete syntax.
package printer

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/tools/imports"

	"github.com/diffuzz/diffuzz/internal/ast"
	"github.com/diffuzz/diffuzz/internal/fuzztype"
	"github.com/diffuzz/diffuzz/internal/version"
)

// Options controls header-comment rendering; Now is overridable for
// deterministic golden-file tests (spec.md §8 S1 compares normalized output,
// and the header's timestamp line is excluded from that normalization by the
// caller before hashing).
type Options struct {
	Now func() time.Time

	// Reduction, when set, adds the reducer's summary lines to the header
	// (spec.md §6): original/reduced size, elapsed time, and each regime's
	// outcome description.
	Reduction *ReductionInfo
}

// ReductionInfo is the reducer's finished-run summary, rendered into the
// header comment's trailing lines.
type ReductionInfo struct {
	OriginalBytes int
	ReducedBytes  int
	Elapsed       time.Duration
	DebugSummary  string
	ReleaseSummary string
}

// DefaultOptions uses the wall clock.
func DefaultOptions() Options {
	return Options{Now: time.Now}
}

// Print walks prog and returns its source text, types first (each aggregate
// preceded by any interfaces it references), then the primary class
// containing the runtime-object static (if checksumming), pool statics, the
// entry point, and all functions (spec.md §4.F).
func Print(prog *ast.Program, opt Options) ([]byte, error) {
	var buf bytes.Buffer

	writeHeader(&buf, prog, opt)

	for _, iface := range prog.Interfaces {
		printInterface(&buf, iface)
	}
	for _, agg := range prog.Aggregates {
		printAggregate(&buf, agg)
	}

	fmt.Fprintf(&buf, "class %s\n{\n", prog.PrimaryClassName)
	if prog.ChecksumEnabled {
		fmt.Fprintf(&buf, "    static Runtime s_rt;\n\n")
	}
	for _, s := range prog.Statics {
		printStatic(&buf, s)
	}
	buf.WriteString("\n")
	printEntryPoint(&buf, prog)
	for _, fn := range prog.Functions {
		printFunction(&buf, fn)
	}
	buf.WriteString("}\n")

	// imports.Process is a gofmt+import-fixup pass; the emitted text here is
	// not Go, so it will typically fail to parse and the raw buffer is
	// returned unformatted rather than treated as an error.
	if formatted, err := imports.Process("generated.cs.go", buf.Bytes(), nil); err == nil {
		return formatted, nil
	}
	return buf.Bytes(), nil
}

func writeHeader(buf *bytes.Buffer, prog *ast.Program, opt Options) {
	now := time.Now
	if opt.Now != nil {
		now = opt.Now
	}
	fmt.Fprintf(buf, "// Generated by %s on %s\n", version.Banner(), now().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(buf, "// Seed: %d\n", prog.Seed)
	if r := opt.Reduction; r != nil {
		fmt.Fprintf(buf, "// Reduced from %.1f KiB to %.1f KiB in %s\n",
			float64(r.OriginalBytes)/1024, float64(r.ReducedBytes)/1024, formatDuration(r.Elapsed))
		fmt.Fprintf(buf, "// Debug: %s\n", r.DebugSummary)
		fmt.Fprintf(buf, "// Release: %s\n", r.ReleaseSummary)
	}
	buf.WriteString("\n")
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

func printInterface(buf *bytes.Buffer, iface *fuzztype.Type) {
	fmt.Fprintf(buf, "interface %s\n{\n}\n\n", iface.Name)
}

func printAggregate(buf *bytes.Buffer, agg *fuzztype.Type) {
	kind := "struct"
	if agg.IsClass {
		kind = "class"
	}
	implements := ""
	if len(agg.Implements) > 0 {
		names := make([]string, 0, len(agg.Implements))
		for name := range agg.Implements {
			names = append(names, name)
		}
		sort.Strings(names)
		implements = " : " + strings.Join(names, ", ")
	}
	fmt.Fprintf(buf, "%s %s%s\n{\n", kind, agg.Name, implements)
	for _, f := range agg.Fields {
		fmt.Fprintf(buf, "    public %s %s;\n", f.Type.String(), f.Name)
	}
	buf.WriteString("}\n\n")
}

func printStatic(buf *bytes.Buffer, s *ast.StaticField) {
	fmt.Fprintf(buf, "    static %s %s = %s;\n", s.Var.Type.String(), s.Var.Name, ExprString(s.Init))
}

// printEntryPoint emits the synthesized entry point (spec.md §3 Program):
// if checksumming is enabled, stores an injected runtime object into the
// designated static, invokes function 0, then checksums every static field.
func printEntryPoint(buf *bytes.Buffer, prog *ast.Program) {
	buf.WriteString("    static void Main()\n    {\n")
	if prog.ChecksumEnabled {
		buf.WriteString("        s_rt = new Runtime();\n")
	}
	buf.WriteString("        Main0();\n")
	if prog.ChecksumEnabled {
		for _, s := range prog.Statics {
			fmt.Fprintf(buf, "        s_rt.Checksum(\"%s\", %s);\n", s.Var.Name, s.Var.Name)
		}
	}
	buf.WriteString("    }\n\n")
}

func printFunction(buf *bytes.Buffer, fn *ast.Function) {
	if fn.ID == 0 {
		// Function 0 is renamed Main0 to make room for the synthesized
		// parameterless Main entry point above.
		printSignature(buf, fn, "Main0")
	} else {
		printSignature(buf, fn, fn.Name)
	}
	printBlock(buf, fn.Body, 1)
	buf.WriteString("\n")
}

func printSignature(buf *bytes.Buffer, fn *ast.Function, name string) {
	ret := "void"
	if fn.ReturnType != nil {
		ret = fn.ReturnType.String()
	}
	static := "static "
	if fn.InstanceType != nil {
		static = ""
	}
	params := make([]string, len(fn.Parameters))
	for i, p := range fn.Parameters {
		if p.Type.Kind == fuzztype.KindRef {
			params[i] = fmt.Sprintf("ref %s %s", p.Type.Inner.String(), p.Name)
		} else {
			params[i] = fmt.Sprintf("%s %s", p.Type.String(), p.Name)
		}
	}
	paramList := ""
	for i, p := range params {
		if i > 0 {
			paramList += ", "
		}
		paramList += p
	}
	fmt.Fprintf(buf, "    %s%s %s(%s)\n", static, ret, name, paramList)
}
