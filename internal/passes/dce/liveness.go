package dce

import "deobf/internal/ir"

// collectReads walks e and records the SSA name of every SSA-form
// Identifier it reads (an assignment's own Target is not a read of the
// name it defines, so callers pass only the sub-expressions that are
// actually evaluated for their value).
func collectReads(e ir.Expr, into map[ir.SSAName]bool) {
	switch n := e.(type) {
	case nil:
		return
	case *ir.Identifier:
		if n.InSSA {
			into[n.SSA] = true
		}
	case *ir.Binary:
		collectReads(n.Left, into)
		collectReads(n.Right, into)
	case *ir.Unary:
		collectReads(n.Arg, into)
	case *ir.Logical:
		collectReads(n.Left, into)
		collectReads(n.Right, into)
	case *ir.Conditional:
		collectReads(n.Test, into)
		collectReads(n.Then, into)
		collectReads(n.Else, into)
	case *ir.Assignment:
		if _, ok := n.Target.(*ir.Identifier); !ok {
			collectReads(n.Target, into)
		}
		collectReads(n.Value, into)
	case *ir.Call:
		collectReads(n.Callee, into)
		for _, a := range n.Args {
			collectReads(a, into)
		}
	case *ir.Member:
		collectReads(n.Object, into)
		collectReads(n.Property, into)
	case *ir.Array:
		for _, el := range n.Elements {
			collectReads(el, into)
		}
	case *ir.Object:
		for _, p := range n.Properties {
			collectReads(p.Value, into)
		}
	}
}

// definedName reports the SSA name a statement or assignment defines, if
// it defines exactly one by simple identifier target.
func definedName(e *ir.Assignment) (ir.SSAName, bool) {
	if e.Op != ir.OpAssign {
		return ir.SSAName{}, false
	}
	id, ok := e.Target.(*ir.Identifier)
	if !ok || !id.InSSA {
		return ir.SSAName{}, false
	}
	return id.SSA, true
}
