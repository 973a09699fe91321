package devirt

import "deobf/internal/ir"

// stmtList normalizes any Stmt into the flat statement slice it contains,
// so callers don't need a type switch just to look inside a Block.
func stmtList(s ir.Stmt) []ir.Stmt {
	if s == nil {
		return nil
	}
	if b, ok := s.(*ir.Block); ok {
		return b.Body
	}
	return []ir.Stmt{s}
}

// findSwitch returns the first Switch statement reachable from s by
// looking through blocks and if-statements (a dispatcher's switch is
// sometimes guarded by a bounds check before it).
func findSwitch(s ir.Stmt) *ir.Switch {
	switch n := s.(type) {
	case nil:
		return nil
	case *ir.Switch:
		return n
	case *ir.Block:
		for _, child := range n.Body {
			if sw := findSwitch(child); sw != nil {
				return sw
			}
		}
	case *ir.If:
		if sw := findSwitch(n.Then); sw != nil {
			return sw
		}
		return findSwitch(n.Else)
	}
	return nil
}

// walkExpr calls visit on e and every expression reachable from it,
// depth-first, left-to-right — the same order a JS engine would evaluate
// operand subexpressions in, which is what lets phase 2 tell a dest
// operand fetch from a source operand fetch by visitation order.
func walkExpr(e ir.Expr, visit func(ir.Expr)) {
	if e == nil {
		return
	}
	visit(e)
	switch n := e.(type) {
	case *ir.Binary:
		walkExpr(n.Left, visit)
		walkExpr(n.Right, visit)
	case *ir.Unary:
		walkExpr(n.Arg, visit)
	case *ir.Logical:
		walkExpr(n.Left, visit)
		walkExpr(n.Right, visit)
	case *ir.Conditional:
		walkExpr(n.Test, visit)
		walkExpr(n.Then, visit)
		walkExpr(n.Else, visit)
	case *ir.Assignment:
		walkExpr(n.Target, visit)
		walkExpr(n.Value, visit)
	case *ir.Call:
		walkExpr(n.Callee, visit)
		for _, a := range n.Args {
			walkExpr(a, visit)
		}
	case *ir.Member:
		walkExpr(n.Object, visit)
		walkExpr(n.Property, visit)
	case *ir.Array:
		for _, el := range n.Elements {
			walkExpr(el, visit)
		}
	}
}

// walkStmtExprs visits every expression directly attached to s (not
// descending into nested statement bodies) via walkExpr.
func walkStmtExprs(s ir.Stmt, visit func(ir.Expr)) {
	switch n := s.(type) {
	case *ir.ExprStatement:
		walkExpr(n.Expression, visit)
	case *ir.VariableDecl:
		for _, d := range n.Declarators {
			walkExpr(d.Init, visit)
		}
	case *ir.If:
		walkExpr(n.Test, visit)
	case *ir.Return:
		walkExpr(n.Value, visit)
	case *ir.Throw:
		walkExpr(n.Value, visit)
	}
}

// isIndexOf reports whether e is `arr[idx]` with a computed Member whose
// Object is the identifier named arrName and Property the identifier
// named idxName.
func isIndexOf(e ir.Expr, arrName, idxName string) bool {
	m, ok := e.(*ir.Member)
	if !ok || !m.Computed {
		return false
	}
	obj, ok := m.Object.(*ir.Identifier)
	if !ok || obj.Name != arrName {
		return false
	}
	idx, ok := m.Property.(*ir.Identifier)
	return ok && idx.Name == idxName
}

// literalNumber extracts a float64 from e if it is a plain number literal.
func literalNumber(e ir.Expr) (float64, bool) {
	lit, ok := e.(*ir.Literal)
	if !ok || lit.Value.Kind != ir.LitNumber {
		return 0, false
	}
	return lit.Value.Number, true
}

// isIncrementOf reports whether stmt is `name = name + k` for some
// numeric literal k (the desugared form of a postfix `name++` this IR's
// reduced node set has no direct operator for).
func isIncrementOf(stmt ir.Stmt, name string) (step float64, ok bool) {
	es, ok := stmt.(*ir.ExprStatement)
	if !ok {
		return 0, false
	}
	asg, ok := es.Expression.(*ir.Assignment)
	if !ok || asg.Op != ir.OpAssign {
		return 0, false
	}
	target, ok := asg.Target.(*ir.Identifier)
	if !ok || target.Name != name {
		return 0, false
	}
	bin, ok := asg.Value.(*ir.Binary)
	if !ok || bin.Op != ir.OpAdd {
		return 0, false
	}
	left, ok := bin.Left.(*ir.Identifier)
	if ok && left.Name == name {
		return literalNumber(bin.Right)
	}
	right, ok := bin.Right.(*ir.Identifier)
	if ok && right.Name == name {
		return literalNumber(bin.Left)
	}
	return 0, false
}
