package dce

import (
	"deobf/internal/builtins"
	"deobf/internal/ir"
)

// IsPure reports whether evaluating e can be skipped entirely when its
// result is discarded: no assignment, no member access (which may invoke a
// getter or throw on a null base), and any call must name a registered
// side-effect-free builtin (§4.5). Unknown callees are conservatively
// treated as impure, same as the const-prop lattice treats them as Top.
func IsPure(e ir.Expr) bool {
	switch n := e.(type) {
	case nil, *ir.Literal, *ir.Identifier:
		return true
	case *ir.Binary:
		return IsPure(n.Left) && IsPure(n.Right)
	case *ir.Unary:
		return IsPure(n.Arg)
	case *ir.Logical:
		return IsPure(n.Left) && IsPure(n.Right)
	case *ir.Conditional:
		return IsPure(n.Test) && IsPure(n.Then) && IsPure(n.Else)
	case *ir.Call:
		if !builtins.IsSideEffectFree(n.CalleeName) {
			return false
		}
		for _, a := range n.Args {
			if !IsPure(a) {
				return false
			}
		}
		return true
	case *ir.Array:
		for _, el := range n.Elements {
			if !IsPure(el) {
				return false
			}
		}
		return true
	case *ir.Object:
		for _, p := range n.Properties {
			if !IsPure(p.Value) {
				return false
			}
		}
		return true
	default:
		// Member, Assignment, FunctionExpr/ArrowExpr, Phi: never safe to
		// drop purely on the basis of the expression shape.
		return false
	}
}
