package ir

// Program is the top-level unit the pass pipeline operates on: the result
// of lifting a source file or a bytecode module, or of devirtualisation
// (§4.9 phase 5 wraps its output in a synthetic Function and returns a
// single-function Program the caller may splice back in).
type Program struct {
	Functions []*FunctionDecl
}

// Nodes walks prog and returns every node reachable from it, keyed by
// NodeID. Passes use this to rebuild the map-node-id->node view of
// pass.State after a structural edit.
func Nodes(prog *Program) map[NodeID]Node {
	out := make(map[NodeID]Node)
	var visitStmt func(Stmt)
	var visitExpr func(Expr)

	record := func(n Node) {
		if n == nil {
			return
		}
		out[n.ID()] = n
	}

	visitExpr = func(e Expr) {
		if e == nil {
			return
		}
		record(e)
		switch n := e.(type) {
		case *Binary:
			visitExpr(n.Left)
			visitExpr(n.Right)
		case *Unary:
			visitExpr(n.Arg)
		case *Logical:
			visitExpr(n.Left)
			visitExpr(n.Right)
		case *Conditional:
			visitExpr(n.Test)
			visitExpr(n.Then)
			visitExpr(n.Else)
		case *Assignment:
			visitExpr(n.Target)
			visitExpr(n.Value)
		case *Call:
			visitExpr(n.Callee)
			for _, a := range n.Args {
				visitExpr(a)
			}
		case *Member:
			visitExpr(n.Object)
			visitExpr(n.Property)
		case *Array:
			for _, el := range n.Elements {
				visitExpr(el)
			}
		case *Object:
			for _, p := range n.Properties {
				visitExpr(p.Key)
				visitExpr(p.Value)
			}
		case *FunctionExpr:
			visitStmt(n.Body)
		case *ArrowExpr:
			visitStmt(n.Body)
		case *Phi:
			// operands reference SSA names, not nodes directly.
		}
	}

	visitStmt = func(s Stmt) {
		if s == nil {
			return
		}
		record(s)
		switch n := s.(type) {
		case *ExprStatement:
			visitExpr(n.Expression)
		case *VariableDecl:
			for _, d := range n.Declarators {
				visitExpr(d.Init)
			}
		case *Block:
			for _, st := range n.Body {
				visitStmt(st)
			}
		case *If:
			visitExpr(n.Test)
			visitStmt(n.Then)
			visitStmt(n.Else)
		case *While:
			visitExpr(n.Test)
			visitStmt(n.Body)
		case *For:
			visitStmt(n.Init)
			visitExpr(n.Test)
			visitExpr(n.Update)
			visitStmt(n.Body)
		case *DoWhile:
			visitStmt(n.Body)
			visitExpr(n.Test)
		case *Switch:
			visitExpr(n.Discriminant)
			for _, c := range n.Cases {
				if c.Test != nil {
					visitExpr(*c.Test)
				}
				for _, st := range c.Body {
					visitStmt(st)
				}
			}
		case *Return:
			visitExpr(n.Value)
		case *Throw:
			visitExpr(n.Value)
		case *Try:
			visitStmt(n.Block)
			if n.Catch != nil {
				visitStmt(n.Catch.Body)
			}
			visitStmt(n.Finally)
		case *FunctionDecl:
			visitStmt(n.Body)
		}
	}

	for _, fn := range prog.Functions {
		visitStmt(fn)
	}
	return out
}
