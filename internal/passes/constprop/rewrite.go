package constprop

import (
	"deobf/internal/cfg"
	"deobf/internal/ir"
	"deobf/internal/pass"
)

// foldBranches collapses if(true)/if(false)-shaped branches (§4.5): when a
// block's branch condition is Constant at or above threshold, the dead
// edge is severed and the terminator becomes an unconditional jump. Blocks
// left unreachable by this are pruned from the graph afterwards.
func foldBranches(fs *pass.FunctionState, env map[ir.SSAName]Value, threshold float64) bool {
	changed := false
	for _, b := range fs.CFG.Blocks {
		if b.Terminator.Kind != cfg.TermBranch {
			continue
		}
		v := evalExpr(b.Terminator.Condition, env)
		if v.Kind != Constant || v.Confidence < threshold {
			continue
		}
		live, dead := b.Terminator.TrueBlock, b.Terminator.FalseBlock
		if !truthy(v.Literal) {
			live, dead = b.Terminator.FalseBlock, b.Terminator.TrueBlock
		}
		severEdge(b, dead)
		b.Terminator = cfg.Terminator{Kind: cfg.TermJump, Target: live}
		changed = true
	}
	if changed {
		prune(fs.CFG)
	}
	return changed
}

func severEdge(from, to *cfg.BasicBlock) {
	kept := from.Successors[:0]
	for _, e := range from.Successors {
		if e.To == to {
			removePredecessor(to, e)
			continue
		}
		kept = append(kept, e)
	}
	from.Successors = kept
}

func removePredecessor(b *cfg.BasicBlock, edge *cfg.Edge) {
	kept := b.Predecessors[:0]
	for _, e := range b.Predecessors {
		if e != edge {
			kept = append(kept, e)
		}
	}
	b.Predecessors = kept
}

// prune drops every block unreachable from Entry (Exit is always kept,
// even if currently unreachable, since the graph's exit identity must
// stay stable for callers holding a *cfg.Graph reference).
func prune(g *cfg.Graph) {
	reachable := make(map[*cfg.BasicBlock]bool)
	var walk func(*cfg.BasicBlock)
	walk = func(b *cfg.BasicBlock) {
		if reachable[b] {
			return
		}
		reachable[b] = true
		for _, e := range b.Successors {
			walk(e.To)
		}
	}
	walk(g.Entry)
	reachable[g.Exit] = true

	kept := make([]*cfg.BasicBlock, 0, len(g.Blocks))
	for _, b := range g.Blocks {
		if reachable[b] {
			kept = append(kept, b)
		}
	}
	g.Blocks = kept
}

// rewriteUses replaces any expression whose constprop value is Constant at
// or above threshold with a literal. It tries the outermost expression
// first and only descends into operands when that expression is not itself
// constant, so an outer expression built entirely from constants is folded
// as a whole.
func rewriteUses(fs *pass.FunctionState, env map[ir.SSAName]Value, threshold float64) bool {
	changed := false
	f := ir.NewFactory()

	var rewrite func(ir.Expr) ir.Expr
	rewrite = func(e ir.Expr) ir.Expr {
		switch e.(type) {
		case nil:
			return nil
		case *ir.Literal, *ir.Phi:
			return e
		}

		v := evalExpr(e, env)
		if v.Kind == Constant && v.Confidence >= threshold {
			changed = true
			return f.Literal(e.Pos(), v.Literal)
		}

		switch n := e.(type) {
		case *ir.Identifier:
			return n
		case *ir.Binary:
			return f.Binary(n.Pos(), n.Op, rewrite(n.Left), rewrite(n.Right))
		case *ir.Unary:
			return f.Unary(n.Pos(), n.Op, rewrite(n.Arg))
		case *ir.Logical:
			return f.Logical(n.Pos(), n.Op, rewrite(n.Left), rewrite(n.Right))
		case *ir.Conditional:
			return f.Conditional(n.Pos(), rewrite(n.Test), rewrite(n.Then), rewrite(n.Else))
		case *ir.Assignment:
			return f.Assignment(n.Pos(), n.Op, n.Target, rewrite(n.Value))
		case *ir.Call:
			args := make([]ir.Expr, len(n.Args))
			for i, a := range n.Args {
				args[i] = rewrite(a)
			}
			return f.Call(n.Pos(), rewrite(n.Callee), n.CalleeName, args)
		case *ir.Member:
			return f.Member(n.Pos(), rewrite(n.Object), rewrite(n.Property), n.Computed)
		case *ir.Array:
			elems := make([]ir.Expr, len(n.Elements))
			for i, el := range n.Elements {
				elems[i] = rewrite(el)
			}
			return f.Array(n.Pos(), elems)
		case *ir.Object:
			props := make([]ir.ObjectProperty, len(n.Properties))
			for i, prop := range n.Properties {
				props[i] = ir.ObjectProperty{Key: prop.Key, Value: rewrite(prop.Value), Computed: prop.Computed}
			}
			return f.Object(n.Pos(), props)
		default:
			return e
		}
	}

	for _, b := range fs.CFG.Blocks {
		for i, s := range b.Instructions {
			switch n := s.(type) {
			case *ir.VariableDecl:
				newDecls := make([]*ir.Declarator, len(n.Declarators))
				for j, d := range n.Declarators {
					newDecls[j] = &ir.Declarator{Name: d.Name, Init: rewrite(d.Init), SSA: d.SSA}
				}
				b.Instructions[i] = &ir.VariableDecl{VarKind: n.VarKind, Declarators: newDecls}
			case *ir.ExprStatement:
				b.Instructions[i] = &ir.ExprStatement{Expression: rewrite(n.Expression)}
			}
		}
		if b.Terminator.Condition != nil {
			b.Terminator.Condition = rewrite(b.Terminator.Condition)
		}
		if b.Terminator.ReturnValue != nil {
			b.Terminator.ReturnValue = rewrite(b.Terminator.ReturnValue)
		}
		if b.Terminator.ThrowValue != nil {
			b.Terminator.ThrowValue = rewrite(b.Terminator.ThrowValue)
		}
	}
	return changed
}
