// Package ssa renames a non-SSA CFG into static single assignment form
// (§4.3): it inserts φ-nodes at dominance frontiers and renames every
// definition/use to a versioned SSA name.
package ssa

import (
	"sort"

	"deobf/internal/cfg"
	"deobf/internal/errors"
	"deobf/internal/ir"
)

// Info is the SSA-specific half of pass.State: the φ-nodes the builder
// inserted, keyed by the block they head.
type Info struct {
	Phis map[*cfg.BasicBlock][]*ir.Phi
}

type renamer struct {
	g        *cfg.Graph
	phis     map[*cfg.BasicBlock]map[string]*ir.Phi
	stacks   map[string][]int
	versions map[string]int
	locals   map[string]bool // variables assigned somewhere in this function
	warns    []*errors.Diagnostic
	factory  *ir.Factory
}

// Build converts g (a CFG whose instructions still use plain-name
// Identifiers) into SSA form in place: cfg.ComputeDominance must already
// have been run. Building SSA mutates the blocks' instruction lists. It
// runs when a function is lowered or lifted, and again inside the passes
// that change a CFG's block structure (const-prop, DCE, opaque-predicate
// elimination), which re-rename the already-renamed instructions in place.
func Build(g *cfg.Graph) (*Info, []*errors.Diagnostic) {
	r := &renamer{
		g:        g,
		phis:     make(map[*cfg.BasicBlock]map[string]*ir.Phi),
		stacks:   make(map[string][]int),
		versions: make(map[string]int),
		locals:   make(map[string]bool),
		factory:  ir.NewFactory(),
	}
	r.collectLocals(g)
	r.insertPhis(g)
	r.renameFrom(g.Entry)

	info := &Info{Phis: make(map[*cfg.BasicBlock][]*ir.Phi)}
	for b, m := range r.phis {
		var list []*ir.Phi
		for _, p := range m {
			list = append(list, p)
		}
		sort.Slice(list, func(i, j int) bool { return list[i].Variable < list[j].Variable })
		info.Phis[b] = list
	}
	return info, r.warns
}

func (r *renamer) collectLocals(g *cfg.Graph) {
	var walkExpr func(ir.Expr)
	walkExpr = func(e ir.Expr) {
		if e == nil {
			return
		}
		switch n := e.(type) {
		case *ir.Assignment:
			if id, ok := n.Target.(*ir.Identifier); ok {
				r.locals[id.Name] = true
			}
			walkExpr(n.Value)
		case *ir.Binary:
			walkExpr(n.Left)
			walkExpr(n.Right)
		case *ir.Unary:
			walkExpr(n.Arg)
		case *ir.Logical:
			walkExpr(n.Left)
			walkExpr(n.Right)
		case *ir.Conditional:
			walkExpr(n.Test)
			walkExpr(n.Then)
			walkExpr(n.Else)
		case *ir.Call:
			walkExpr(n.Callee)
			for _, a := range n.Args {
				walkExpr(a)
			}
		case *ir.Member:
			walkExpr(n.Object)
			walkExpr(n.Property)
		case *ir.Array:
			for _, el := range n.Elements {
				walkExpr(el)
			}
		case *ir.Object:
			for _, p := range n.Properties {
				walkExpr(p.Value)
			}
		}
	}
	for _, b := range g.Blocks {
		for _, s := range b.Instructions {
			switch n := s.(type) {
			case *ir.VariableDecl:
				for _, d := range n.Declarators {
					r.locals[d.Name] = true
					walkExpr(d.Init)
				}
			case *ir.ExprStatement:
				walkExpr(n.Expression)
			}
		}
		if b.Terminator.Condition != nil {
			walkExpr(b.Terminator.Condition)
		}
		if b.Terminator.ReturnValue != nil {
			walkExpr(b.Terminator.ReturnValue)
		}
		if b.Terminator.ThrowValue != nil {
			walkExpr(b.Terminator.ThrowValue)
		}
	}
}

// defBlocks finds, for every local variable, the set of blocks containing
// at least one definition of it.
func (r *renamer) defBlocks(g *cfg.Graph) map[string]map[*cfg.BasicBlock]bool {
	out := make(map[string]map[*cfg.BasicBlock]bool)
	add := func(v string, b *cfg.BasicBlock) {
		if out[v] == nil {
			out[v] = make(map[*cfg.BasicBlock]bool)
		}
		out[v][b] = true
	}
	for _, b := range g.Blocks {
		for _, s := range b.Instructions {
			switch n := s.(type) {
			case *ir.VariableDecl:
				for _, d := range n.Declarators {
					add(d.Name, b)
				}
			case *ir.ExprStatement:
				if asg, ok := n.Expression.(*ir.Assignment); ok {
					if id, ok := asg.Target.(*ir.Identifier); ok {
						add(id.Name, b)
					}
				}
			}
		}
	}
	return out
}

// insertPhis places a φ for v at every block in the iterated dominance
// frontier of v's definitions (§4.3).
func (r *renamer) insertPhis(g *cfg.Graph) {
	defs := r.defBlocks(g)
	for v, blocks := range defs {
		hasPhi := make(map[*cfg.BasicBlock]bool)
		worklist := make([]*cfg.BasicBlock, 0, len(blocks))
		for b := range blocks {
			worklist = append(worklist, b)
		}
		for len(worklist) > 0 {
			b := worklist[len(worklist)-1]
			worklist = worklist[:len(worklist)-1]
			for _, d := range g.DomFrontier[b] {
				if hasPhi[d] {
					continue
				}
				hasPhi[d] = true
				r.addPhi(d, v)
				if !blocks[d] {
					worklist = append(worklist, d)
				}
			}
		}
	}
}

func (r *renamer) addPhi(b *cfg.BasicBlock, variable string) {
	if r.phis[b] == nil {
		r.phis[b] = make(map[string]*ir.Phi)
	}
	if _, ok := r.phis[b][variable]; ok {
		return
	}
	r.phis[b][variable] = r.factory.Phi(ir.Position{}, variable, b.Label, make(map[string]ir.SSAName))
}

func (r *renamer) newVersion(v string) int {
	r.versions[v]++
	ver := r.versions[v]
	r.stacks[v] = append(r.stacks[v], ver)
	return ver
}

func (r *renamer) currentVersion(v string) (ir.SSAName, bool) {
	st := r.stacks[v]
	if len(st) == 0 {
		return ir.SSAName{Var: v, Version: 0}, false
	}
	return ir.SSAName{Var: v, Version: st[len(st)-1]}, true
}

// renameFrom performs the dominator-tree preorder renaming walk (§4.3).
func (r *renamer) renameFrom(b *cfg.BasicBlock) {
	pushedPerVar := make(map[string]int)

	// Phis at this block's head are defs of their variable.
	if phis, ok := r.phis[b]; ok {
		for v, phi := range phis {
			ver := r.newVersion(v)
			pushedPerVar[v]++
			phi.Result = ir.SSAName{Var: v, Version: ver}
		}
	}

	var rewriteExpr func(ir.Expr) ir.Expr
	rewriteExpr = func(e ir.Expr) ir.Expr {
		switch n := e.(type) {
		case nil:
			return nil
		case *ir.Identifier:
			if !r.locals[n.Name] {
				// Parameter or free variable: no in-function definition
				// reaches it, so it reads the live-on-entry placeholder
				// without triggering the missing-definition warning.
				return r.factory.SSAIdentifier(n.Pos(), n.Name, ir.SSAName{Var: n.Name, Version: 0})
			}
			ssa, ok := r.currentVersion(n.Name)
			if !ok {
				r.warns = append(r.warns, errors.NewWarning(errors.CodeMissingReachingDef,
					"use of "+n.Name+" has no reaching definition", n.Pos()))
			}
			return r.factory.SSAIdentifier(n.Pos(), n.Name, ssa)
		case *ir.Binary:
			return r.factory.Binary(n.Pos(), n.Op, rewriteExpr(n.Left), rewriteExpr(n.Right))
		case *ir.Unary:
			return r.factory.Unary(n.Pos(), n.Op, rewriteExpr(n.Arg))
		case *ir.Logical:
			return r.factory.Logical(n.Pos(), n.Op, rewriteExpr(n.Left), rewriteExpr(n.Right))
		case *ir.Conditional:
			return r.factory.Conditional(n.Pos(), rewriteExpr(n.Test), rewriteExpr(n.Then), rewriteExpr(n.Else))
		case *ir.Call:
			args := make([]ir.Expr, len(n.Args))
			for i, a := range n.Args {
				args[i] = rewriteExpr(a)
			}
			return r.factory.Call(n.Pos(), rewriteExpr(n.Callee), n.CalleeName, args)
		case *ir.Member:
			return r.factory.Member(n.Pos(), rewriteExpr(n.Object), rewriteExpr(n.Property), n.Computed)
		case *ir.Array:
			elems := make([]ir.Expr, len(n.Elements))
			for i, el := range n.Elements {
				elems[i] = rewriteExpr(el)
			}
			return r.factory.Array(n.Pos(), elems)
		case *ir.Object:
			props := make([]ir.ObjectProperty, len(n.Properties))
			for i, p := range n.Properties {
				props[i] = ir.ObjectProperty{Key: p.Key, Value: rewriteExpr(p.Value), Computed: p.Computed}
			}
			return r.factory.Object(n.Pos(), props)
		case *ir.Assignment:
			value := rewriteExpr(n.Value)
			target := n.Target
			switch t := n.Target.(type) {
			case *ir.Identifier:
				ver := r.newVersion(t.Name)
				pushedPerVar[t.Name]++
				target = r.factory.SSAIdentifier(t.Pos(), t.Name, ir.SSAName{Var: t.Name, Version: ver})
			case *ir.Member:
				// A property write's object/computed-property subexpressions
				// are reads, not a definition of a new SSA name: rewrite them
				// like any other read instead of leaving them pre-SSA.
				target = r.factory.Member(t.Pos(), rewriteExpr(t.Object), rewriteExpr(t.Property), t.Computed)
			}
			return r.factory.Assignment(n.Pos(), n.Op, target, value)
		default:
			return e
		}
	}

	for i, s := range b.Instructions {
		switch n := s.(type) {
		case *ir.VariableDecl:
			newDecls := make([]*ir.Declarator, len(n.Declarators))
			for j, d := range n.Declarators {
				init := rewriteExpr(d.Init)
				ver := r.newVersion(d.Name)
				pushedPerVar[d.Name]++
				newDecls[j] = &ir.Declarator{Name: d.Name, Init: init, SSA: ir.SSAName{Var: d.Name, Version: ver}}
			}
			b.Instructions[i] = &ir.VariableDecl{VarKind: n.VarKind, Declarators: newDecls}
		case *ir.ExprStatement:
			b.Instructions[i] = &ir.ExprStatement{Expression: rewriteExpr(n.Expression)}
		}
	}

	if b.Terminator.Condition != nil {
		b.Terminator.Condition = rewriteExpr(b.Terminator.Condition)
	}
	if b.Terminator.ReturnValue != nil {
		b.Terminator.ReturnValue = rewriteExpr(b.Terminator.ReturnValue)
	}
	if b.Terminator.ThrowValue != nil {
		b.Terminator.ThrowValue = rewriteExpr(b.Terminator.ThrowValue)
	}

	// Fill phi operands on every CFG successor for the version current at
	// the end of this block.
	for _, e := range b.Successors {
		succPhis, ok := r.phis[e.To]
		if !ok {
			continue
		}
		for v, phi := range succPhis {
			ssa, ok := r.currentVersion(v)
			if !ok {
				r.warns = append(r.warns, errors.NewWarning(errors.CodeMissingReachingDef,
					"phi operand for "+v+" from block "+b.Label+" has no reaching definition", ir.Position{}))
			}
			phi.Operands[b.Label] = ssa
		}
	}

	for _, child := range domChildren(r.g, b) {
		r.renameFrom(child)
	}

	for v, n := range pushedPerVar {
		r.stacks[v] = r.stacks[v][:len(r.stacks[v])-n]
	}
}

func domChildren(g *cfg.Graph, b *cfg.BasicBlock) []*cfg.BasicBlock {
	var out []*cfg.BasicBlock
	for child, idom := range g.IDom {
		if idom == b {
			out = append(out, child)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
