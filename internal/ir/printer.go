package ir

import (
	"fmt"
	"strings"
)

// Printer renders a Program as readable, debug-oriented text. It is not the
// public JavaScript unparser (that lives behind the external source.Printer
// interface, §6) — this is the internal `kanso`-style tree dump used by the
// CLI driver and by tests to eyeball a pipeline's output.
type Printer struct {
	indent int
	out    strings.Builder
}

func NewPrinter() *Printer { return &Printer{} }

func Print(prog *Program) string {
	p := NewPrinter()
	p.printProgram(prog)
	return p.out.String()
}

func (p *Printer) writeIndent() {
	for i := 0; i < p.indent; i++ {
		p.out.WriteString("  ")
	}
}

func (p *Printer) writeLine(format string, args ...interface{}) {
	p.writeIndent()
	p.out.WriteString(fmt.Sprintf(format, args...))
	p.out.WriteString("\n")
}

func (p *Printer) printProgram(prog *Program) {
	for _, fn := range prog.Functions {
		p.printStmt(fn)
		p.out.WriteString("\n")
	}
}

func (p *Printer) printStmt(s Stmt) {
	switch n := s.(type) {
	case *FunctionDecl:
		p.writeLine("function %s(%s) {", n.Name, strings.Join(n.Params, ", "))
		p.indent++
		p.printStmt(n.Body)
		p.indent--
		p.writeLine("}")
	case *Block:
		for _, st := range n.Body {
			p.printStmt(st)
		}
	case *ExprStatement:
		p.writeLine("%s;", p.exprString(n.Expression))
	case *VariableDecl:
		parts := make([]string, len(n.Declarators))
		for i, d := range n.Declarators {
			if d.Init != nil {
				parts[i] = fmt.Sprintf("%s = %s", d.Name, p.exprString(d.Init))
			} else {
				parts[i] = d.Name
			}
		}
		p.writeLine("%s %s;", n.VarKind, strings.Join(parts, ", "))
	case *If:
		p.writeLine("if (%s) {", p.exprString(n.Test))
		p.indent++
		p.printStmt(n.Then)
		p.indent--
		if n.Else != nil {
			p.writeLine("} else {")
			p.indent++
			p.printStmt(n.Else)
			p.indent--
		}
		p.writeLine("}")
	case *While:
		p.writeLine("while (%s) {", p.exprString(n.Test))
		p.indent++
		p.printStmt(n.Body)
		p.indent--
		p.writeLine("}")
	case *DoWhile:
		p.writeLine("do {")
		p.indent++
		p.printStmt(n.Body)
		p.indent--
		p.writeLine("} while (%s);", p.exprString(n.Test))
	case *For:
		p.writeLine("for (...) {")
		p.indent++
		p.printStmt(n.Body)
		p.indent--
		p.writeLine("}")
	case *Switch:
		p.writeLine("switch (%s) {", p.exprString(n.Discriminant))
		p.indent++
		for _, c := range n.Cases {
			if c.Test != nil {
				p.writeLine("case %s:", p.exprString(*c.Test))
			} else {
				p.writeLine("default:")
			}
			p.indent++
			for _, st := range c.Body {
				p.printStmt(st)
			}
			p.indent--
		}
		p.indent--
		p.writeLine("}")
	case *Return:
		if n.Value != nil {
			p.writeLine("return %s;", p.exprString(n.Value))
		} else {
			p.writeLine("return;")
		}
	case *Throw:
		p.writeLine("throw %s;", p.exprString(n.Value))
	case *Try:
		p.writeLine("try {")
		p.indent++
		p.printStmt(n.Block)
		p.indent--
		if n.Catch != nil {
			p.writeLine("} catch (%s) {", n.Catch.Param)
			p.indent++
			p.printStmt(n.Catch.Body)
			p.indent--
		}
		if n.Finally != nil {
			p.writeLine("} finally {")
			p.indent++
			p.printStmt(n.Finally)
			p.indent--
		}
		p.writeLine("}")
	case *Break:
		if n.Label != "" {
			p.writeLine("break %s;", n.Label)
		} else {
			p.writeLine("break;")
		}
	case *Continue:
		if n.Label != "" {
			p.writeLine("continue %s;", n.Label)
		} else {
			p.writeLine("continue;")
		}
	case *Empty:
		// nothing to print
	default:
		p.writeLine("<unknown statement>")
	}
}

func (p *Printer) exprString(e Expr) string {
	switch n := e.(type) {
	case nil:
		return ""
	case *Literal:
		return n.Value.String_()
	case *Identifier:
		if n.InSSA {
			return n.SSA.String()
		}
		return n.Name
	case *Binary:
		return fmt.Sprintf("(%s %s %s)", p.exprString(n.Left), n.Op, p.exprString(n.Right))
	case *Unary:
		return fmt.Sprintf("(%s%s)", n.Op, p.exprString(n.Arg))
	case *Logical:
		return fmt.Sprintf("(%s %s %s)", p.exprString(n.Left), n.Op, p.exprString(n.Right))
	case *Conditional:
		return fmt.Sprintf("(%s ? %s : %s)", p.exprString(n.Test), p.exprString(n.Then), p.exprString(n.Else))
	case *Assignment:
		return fmt.Sprintf("%s %s %s", p.exprString(n.Target), n.Op, p.exprString(n.Value))
	case *Call:
		args := make([]string, len(n.Args))
		for i, a := range n.Args {
			args[i] = p.exprString(a)
		}
		return fmt.Sprintf("%s(%s)", p.exprString(n.Callee), strings.Join(args, ", "))
	case *Member:
		if n.Computed {
			return fmt.Sprintf("%s[%s]", p.exprString(n.Object), p.exprString(n.Property))
		}
		return fmt.Sprintf("%s.%s", p.exprString(n.Object), p.exprString(n.Property))
	case *Array:
		parts := make([]string, len(n.Elements))
		for i, el := range n.Elements {
			parts[i] = p.exprString(el)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case *Object:
		parts := make([]string, len(n.Properties))
		for i, prop := range n.Properties {
			parts[i] = fmt.Sprintf("%s: %s", p.exprString(prop.Key), p.exprString(prop.Value))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case *Phi:
		parts := make([]string, 0, len(n.Operands))
		for pred, ssa := range n.Operands {
			parts = append(parts, fmt.Sprintf("%s: %s", pred, ssa))
		}
		return fmt.Sprintf("phi(%s)", strings.Join(parts, ", "))
	case *FunctionExpr:
		return fmt.Sprintf("function %s(...)", n.Name)
	case *ArrowExpr:
		return "(...) => {...}"
	default:
		return "<unknown expr>"
	}
}
