// Package dce implements dead-code elimination over the SSA form the
// pipeline builds for every function (§4.5): a statement or declarator is
// removable only if the SSA name it defines is never read and evaluating
// its right-hand side cannot be observed (§4.5's purity registry gates
// this the same way it gates const-prop's call folding). Grounded on the
// teacher's DeadCodeElimination pass (internal/ir/optimizations.go), which
// walks the same "is this instruction's result ever used" question over a
// flatter instruction list; this generalises it to SSA def-use across
// blocks and φ-nodes.
package dce

import (
	"deobf/internal/cfg"
	"deobf/internal/errors"
	"deobf/internal/ir"
	"deobf/internal/pass"
	"deobf/internal/ssa"
)

type Pass struct{}

func New() *Pass { return &Pass{} }

func (p *Pass) Name() string { return "dead-code-elimination" }

func (p *Pass) Description() string {
	return "removes declarations, assignments, branches, and whole functions whose results are never observed"
}

func (p *Pass) Run(state *pass.State, config pass.Config) (*pass.State, bool, []*errors.Diagnostic, error) {
	var diags []*errors.Diagnostic
	changedAny := false

	for _, fs := range state.Functions {
		changed, warns := sweepFunction(fs)
		diags = append(diags, warns...)
		if changed {
			changedAny = true
		}
	}

	live := liveFunctions(state.Program, state.Functions)
	kept := make([]*ir.FunctionDecl, 0, len(state.Program.Functions))
	keptStates := make([]*pass.FunctionState, 0, len(state.Functions))
	for i, fn := range state.Program.Functions {
		if live[fn.Name] {
			kept = append(kept, fn)
			keptStates = append(keptStates, state.Functions[i])
		} else {
			changedAny = true
		}
	}

	newProgram := &ir.Program{Functions: kept}
	next := state.WithFunctions(keptStates)
	next.Program = newProgram
	return next, changedAny, diags, nil
}

// liveFunctions computes which top-level functions are reachable: every
// function any live call names, transitively, plus "main" and the first
// declared function, which are always treated as entry points since this
// IR has no separate export/visibility concept.
func liveFunctions(prog *ir.Program, funcs []*pass.FunctionState) map[string]bool {
	live := make(map[string]bool)
	if len(prog.Functions) == 0 {
		return live
	}
	live[prog.Functions[0].Name] = true
	for _, fn := range prog.Functions {
		if fn.Name == "main" {
			live[fn.Name] = true
		}
	}

	byName := make(map[string]*pass.FunctionState)
	for i, fn := range prog.Functions {
		if i < len(funcs) {
			byName[fn.Name] = funcs[i]
		}
	}

	changed := true
	for changed {
		changed = false
		for name := range live {
			fs, ok := byName[name]
			if !ok || fs == nil {
				continue
			}
			for _, callee := range calledNames(fs) {
				if !live[callee] {
					live[callee] = true
					changed = true
				}
			}
		}
	}
	return live
}

func calledNames(fs *pass.FunctionState) []string {
	var out []string
	var walk func(ir.Expr)
	walk = func(e ir.Expr) {
		switch n := e.(type) {
		case nil:
			return
		case *ir.Call:
			if n.CalleeName != "" {
				out = append(out, n.CalleeName)
			}
			walk(n.Callee)
			for _, a := range n.Args {
				walk(a)
			}
		case *ir.Binary:
			walk(n.Left)
			walk(n.Right)
		case *ir.Unary:
			walk(n.Arg)
		case *ir.Logical:
			walk(n.Left)
			walk(n.Right)
		case *ir.Conditional:
			walk(n.Test)
			walk(n.Then)
			walk(n.Else)
		case *ir.Assignment:
			walk(n.Target)
			walk(n.Value)
		case *ir.Member:
			walk(n.Object)
			walk(n.Property)
		case *ir.Array:
			for _, el := range n.Elements {
				walk(el)
			}
		case *ir.Object:
			for _, p := range n.Properties {
				walk(p.Value)
			}
		}
	}
	for _, b := range fs.CFG.Blocks {
		for _, s := range b.Instructions {
			switch n := s.(type) {
			case *ir.ExprStatement:
				walk(n.Expression)
			case *ir.VariableDecl:
				for _, d := range n.Declarators {
					walk(d.Init)
				}
			}
		}
		walk(b.Terminator.Condition)
		walk(b.Terminator.ReturnValue)
		walk(b.Terminator.ThrowValue)
	}
	return out
}

// sweepFunction removes dead declarators/assignments/phis from fs in
// place, via the standard mark-essential/sweep-the-rest shape: seed with
// statements that can never be deleted (impure evaluation, terminators),
// then close over SSA def-use and φ operands until nothing new is
// reachable, then drop everything left unmarked.
func sweepFunction(fs *pass.FunctionState) (bool, []*errors.Diagnostic) {
	essentialSSA := make(map[ir.SSAName]bool)
	var diags []*errors.Diagnostic

	markReads := func(e ir.Expr) {
		reads := make(map[ir.SSAName]bool)
		collectReads(e, reads)
		for name := range reads {
			essentialSSA[name] = true
		}
	}

	for {
		changed := false

		for _, b := range fs.CFG.Blocks {
			for _, s := range b.Instructions {
				switch n := s.(type) {
				case *ir.VariableDecl:
					for _, d := range n.Declarators {
						// Kept either because its name is read downstream or
						// because its initializer can't be dropped silently;
						// either way its own reads must survive too.
						if essentialSSA[d.SSA] || !IsPure(d.Init) {
							before := len(essentialSSA)
							markReads(d.Init)
							if len(essentialSSA) != before {
								changed = true
							}
						}
					}
				case *ir.ExprStatement:
					if asg, ok := n.Expression.(*ir.Assignment); ok {
						if name, ok := definedName(asg); ok {
							if essentialSSA[name] || !IsPure(asg.Value) {
								before := len(essentialSSA)
								markReads(asg.Value)
								if len(essentialSSA) != before {
									changed = true
								}
							}
							continue
						}
					}
					if !IsPure(n.Expression) {
						before := len(essentialSSA)
						markReads(n.Expression)
						if len(essentialSSA) != before {
							changed = true
						}
					}
				}
			}
			for _, e := range []ir.Expr{b.Terminator.Condition, b.Terminator.ReturnValue, b.Terminator.ThrowValue} {
				before := len(essentialSSA)
				markReads(e)
				if len(essentialSSA) != before {
					changed = true
				}
			}
		}

		if fs.SSA != nil {
			for _, phis := range fs.SSA.Phis {
				for _, phi := range phis {
					if !essentialSSA[phi.Result] {
						continue
					}
					for _, operand := range phi.Operands {
						if !essentialSSA[operand] {
							essentialSSA[operand] = true
							changed = true
						}
					}
				}
			}
		}

		if !changed {
			break
		}
	}

	changedAny := false

	for _, b := range fs.CFG.Blocks {
		kept := b.Instructions[:0]
		for _, s := range b.Instructions {
			switch n := s.(type) {
			case *ir.VariableDecl:
				var keepDecls []*ir.Declarator
				for _, d := range n.Declarators {
					live := essentialSSA[d.SSA]
					if live {
						keepDecls = append(keepDecls, d)
						continue
					}
					if !IsPure(d.Init) {
						keepDecls = append(keepDecls, d)
						diags = append(diags, errors.NewWarning(errors.CodeDCEUnsafeInitializer,
							"initializer for "+d.Name+" kept despite being unused: it may have a side effect", d.Init.Pos()))
						continue
					}
					changedAny = true
				}
				if len(keepDecls) == 0 {
					continue
				}
				if len(keepDecls) != len(n.Declarators) {
					changedAny = true
				}
				kept = append(kept, &ir.VariableDecl{VarKind: n.VarKind, Declarators: keepDecls})
			case *ir.ExprStatement:
				if asg, ok := n.Expression.(*ir.Assignment); ok {
					if name, ok := definedName(asg); ok {
						if essentialSSA[name] || !IsPure(asg.Value) {
							kept = append(kept, n)
						} else {
							changedAny = true
						}
						continue
					}
				}
				if IsPure(n.Expression) {
					changedAny = true
					continue
				}
				kept = append(kept, n)
			default:
				kept = append(kept, s)
			}
		}
		b.Instructions = kept
	}

	if fs.SSA != nil {
		for b, phis := range fs.SSA.Phis {
			var keptPhis []*ir.Phi
			for _, phi := range phis {
				if essentialSSA[phi.Result] {
					keptPhis = append(keptPhis, phi)
				} else {
					changedAny = true
				}
			}
			fs.SSA.Phis[b] = keptPhis
		}
	}

	// Run regardless of changedAny: the builder also leaves behind
	// "unreachable" blocks for code following a return/throw/break/continue
	// (internal/cfg/builder.go's lowerList) that have no predecessor from
	// the moment they're built, not just ones orphaned by this sweep's own
	// edits. Those never flip changedAny above since nothing here touched
	// them, so gating the prune on changedAny silently kept them forever on
	// a function this sweep didn't otherwise rewrite.
	before := len(fs.CFG.Blocks)
	pruneUnreachable(fs.CFG)
	if len(fs.CFG.Blocks) != before {
		changedAny = true
		cfg.ComputeDominance(fs.CFG)
		info, warns := ssa.Build(fs.CFG)
		fs.SSA = info
		diags = append(diags, warns...)
	}

	return changedAny, diags
}

// pruneUnreachable drops blocks no longer reachable from Entry: dead
// branches elsewhere may have severed their only path in (pattern shared
// with const-prop's branch folding), or the builder may never have wired
// one in to begin with (unreachable code after a terminator).
func pruneUnreachable(g *cfg.Graph) {
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
