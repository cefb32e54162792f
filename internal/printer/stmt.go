package printer

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/diffuzz/diffuzz/internal/ast"
)

func indent(n int) string { return strings.Repeat("    ", n) }

// printBlock prints a KBlock node's children as braced statements at the
// given indent depth.
func printBlock(buf *bytes.Buffer, block *ast.Node, depth int) {
	buf.WriteString(indent(depth) + "{\n")
	for _, stmt := range block.Children {
		printStatement(buf, stmt, depth+1)
	}
	buf.WriteString(indent(depth) + "}\n")
}

func printStatement(buf *bytes.Buffer, n *ast.Node, depth int) {
	pad := indent(depth)
	switch n.Kind {
	case ast.KBlock:
		printBlock(buf, n, depth)
	case ast.KAssign:
		fmt.Fprintf(buf, "%s%s %s %s;\n", pad, ExprString(n.Children[0]), n.Op, ExprString(n.Children[1]))
	case ast.KCallStmt:
		fmt.Fprintf(buf, "%s%s;\n", pad, ExprString(n.Children[0]))
	case ast.KIf:
		fmt.Fprintf(buf, "%sif (%s)\n", pad, ExprString(n.Children[0]))
		printBlock(buf, n.Children[1], depth)
		if len(n.Children) > 2 {
			fmt.Fprintf(buf, "%selse\n", pad)
			printBlock(buf, n.Children[2], depth)
		}
	case ast.KReturn:
		if len(n.Children) > 0 {
			fmt.Fprintf(buf, "%sreturn %s;\n", pad, ExprString(n.Children[0]))
		} else {
			fmt.Fprintf(buf, "%sreturn;\n", pad)
		}
	case ast.KTryFinally:
		fmt.Fprintf(buf, "%stry\n", pad)
		printBlock(buf, n.Children[0], depth)
		fmt.Fprintf(buf, "%sfinally\n", pad)
		printBlock(buf, n.Children[1], depth)
	case ast.KLoop:
		fmt.Fprintf(buf, "%sfor (int %s = %s; %s < %s; %s++)\n",
			pad, n.Ident, ExprString(n.Children[0]), n.Ident, ExprString(n.Children[1]), n.Ident)
		printBlock(buf, n.Children[2], depth)
	case ast.KVarDecl:
		fmt.Fprintf(buf, "%s%s %s;\n", pad, n.Type.String(), n.Ident)
	case ast.KLocalDeclAssign:
		fmt.Fprintf(buf, "%s%s %s = %s;\n", pad, n.Type.String(), n.Ident, ExprString(n.Children[0]))
	default:
		fmt.Fprintf(buf, "%s%s;\n", pad, ExprString(n))
	}
}

// ExprString renders an expression node to its inline textual form. Shared
// by the printer (statement rendering) and the reducer (candidate diffing /
// simplifier debug output).
func ExprString(n *ast.Node) string {
	if n == nil {
		return ""
	}
	switch n.Kind {
	case ast.KLiteral:
		return literalString(n)
	case ast.KIdent:
		return n.Ident
	case ast.KMemberAccess:
		if n.Ident == "[]" {
			return fmt.Sprintf("%s[%s]", ExprString(n.Children[0]), ExprString(n.Children[1]))
		}
		return fmt.Sprintf("%s.%s", ExprString(n.Children[0]), n.Ident)
	case ast.KUnary:
		return fmt.Sprintf("%s%s", n.Op, ExprString(n.Children[0]))
	case ast.KBinary:
		return fmt.Sprintf("(%s %s %s)", ExprString(n.Children[0]), n.Op, ExprString(n.Children[1]))
	case ast.KCallExpr:
		return callString(n)
	case ast.KIncrement:
		return fmt.Sprintf("%s++", ExprString(n.Children[0]))
	case ast.KDecrement:
		return fmt.Sprintf("%s--", ExprString(n.Children[0]))
	case ast.KNewObject:
		return newObjectString(n)
	case ast.KRefExpr:
		return fmt.Sprintf("ref %s", ExprString(n.Children[0]))
	case ast.KCast:
		return fmt.Sprintf("(%s)(%s)", n.Ident, ExprString(n.Children[0]))
	case ast.KParen:
		return fmt.Sprintf("(%s)", ExprString(n.Children[0]))
	default:
		return "<?expr>"
	}
}

func literalString(n *ast.Node) string {
	if n.Val == nil {
		return "null"
	}
	switch v := n.Val.(type) {
	case string:
		return fmt.Sprintf("%q", v)
	case bool:
		if v {
			return "true"
		}
		return "false"
	case rune:
		return fmt.Sprintf("'%c'", v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// callString renders a call site. Checksum calls (Ident == "s_rt.Checksum")
// carry their site-id literal as the first child, as emitted by
// internal/synth's checksum instrumentation. Instance-method calls (Op ==
// "method") carry the receiver expression as their first child.
func callString(n *ast.Node) string {
	if n.Ident == "s_rt.Checksum" {
		return fmt.Sprintf("s_rt.Checksum(%s, %s)", ExprString(n.Children[0]), ExprString(n.Children[1]))
	}
	start := 0
	receiver := n.Ident
	if n.Op == "method" {
		receiver = fmt.Sprintf("%s.%s", ExprString(n.Children[0]), n.Ident)
		start = 1
	}
	var args []string
	for i := start; i < len(n.Children); i++ {
		args = append(args, ExprString(n.Children[i]))
	}
	return fmt.Sprintf("%s(%s)", receiver, strings.Join(args, ", "))
}

func newObjectString(n *ast.Node) string {
	var parts []string
	for _, c := range n.Children {
		parts = append(parts, ExprString(c))
	}
	if n.Ident == "array1" {
		return fmt.Sprintf("new %s[] { %s }", n.Type.Elem.String(), strings.Join(parts, ", "))
	}
	return fmt.Sprintf("new %s(%s)", n.Type.String(), strings.Join(parts, ", "))
}
