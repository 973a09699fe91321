package opaque

import (
	"context"
	"time"

	"deobf/internal/cfg"
	"deobf/internal/errors"
	"deobf/internal/ir"
	"deobf/internal/pass"
	"deobf/internal/passes/dce"
	"deobf/internal/smt"
	"deobf/internal/ssa"
)

// Pass is the opaque-predicate elimination transformation of §4.6: every
// branch's condition is tried against the pattern oracle first, then
// (if inconclusive and the condition has no possible side effect) against
// an SMT oracle, and collapsed to an unconditional jump when a verdict
// clears the configured confidence floor.
type Pass struct {
	// Solver is used for predicates the pattern oracle can't classify. A
	// nil Solver skips the SMT tier entirely (every pattern-library miss
	// stays non-opaque), matching §4.6's "solver unreachable" fallback.
	Solver smt.Solver
}

// New builds a Pass backed by solver. Pass a nil solver to run
// pattern-oracle-only (e.g. when no external SMT process is configured).
func New(solver smt.Solver) *Pass {
	return &Pass{Solver: solver}
}

func (p *Pass) Name() string { return "opaque-predicate-elimination" }

func (p *Pass) Description() string {
	return "collapses tautological/contradictory branch conditions via a pattern oracle and an SMT oracle"
}

func (p *Pass) Run(state *pass.State, config pass.Config) (*pass.State, bool, []*errors.Diagnostic, error) {
	threshold := config.OpaquePredicate.ConfidenceThreshold
	if threshold <= 0 {
		threshold = pass.DefaultConfig().OpaquePredicate.ConfidenceThreshold
	}
	budget := config.OpaquePredicate.SMTComplexityBudget
	if budget <= 0 {
		budget = pass.DefaultConfig().OpaquePredicate.SMTComplexityBudget
	}
	timeout := config.OpaquePredicate.SMTTimeout
	if timeout <= 0 {
		timeout = pass.DefaultConfig().OpaquePredicate.SMTTimeout
	}

	var diags []*errors.Diagnostic
	changedAny := false

	for _, fs := range state.Functions {
		changed, warns := p.collapseFunction(fs, threshold, budget, timeout)
		diags = append(diags, warns...)
		if changed {
			changedAny = true
		}
	}

	return state.WithFunctions(state.Functions), changedAny, diags, nil
}

func (p *Pass) collapseFunction(fs *pass.FunctionState, threshold float64, budget int, timeout time.Duration) (bool, []*errors.Diagnostic) {
	var diags []*errors.Diagnostic
	changed := false

	for _, b := range fs.CFG.Blocks {
		if b.Terminator.Kind != cfg.TermBranch {
			continue
		}
		cond := b.Terminator.Condition

		v := MatchPattern(cond)
		if !v.AlwaysTrue && !v.AlwaysFalse {
			if !sideEffectSafe(cond) {
				diags = append(diags, errors.NewWarning(errors.CodeOpaqueSideEffecting,
					"predicate left unrewritten: operands may have a side effect", cond.Pos()))
				continue
			}
			if p.Solver != nil {
				sv, ok := p.smtVerdict(cond, budget, timeout, &diags)
				if ok {
					v = sv
				}
			} else {
				diags = append(diags, errors.NewWarning(errors.CodeOpaqueSolverUnreachable,
					"no SMT solver configured; predicate left unrewritten", cond.Pos()))
			}
		}

		if !v.AlwaysTrue && !v.AlwaysFalse {
			continue
		}
		if v.Confidence < threshold {
			diags = append(diags, errors.NewWarning(errors.CodeOpaqueLowConfidence,
				"predicate verdict fell below the rewrite confidence threshold", cond.Pos()))
			continue
		}

		live, dead := b.Terminator.TrueBlock, b.Terminator.FalseBlock
		if v.AlwaysFalse {
			live, dead = b.Terminator.FalseBlock, b.Terminator.TrueBlock
		}
		severEdge(b, dead)
		b.Terminator = cfg.Terminator{Kind: cfg.TermJump, Target: live}
		changed = true
	}

	if changed {
		pruneUnreachable(fs.CFG)
		cfg.ComputeDominance(fs.CFG)
		info, warns := ssa.Build(fs.CFG)
		fs.SSA = info
		diags = append(diags, warns...)
	}
	return changed, diags
}

// smtVerdict asks the SMT oracle §4.6's two questions (is ¬P unsat, is P
// unsat) and derives a verdict from the answers. ok is false if the
// predicate doesn't translate, the complexity budget is exceeded, or
// neither query comes back unsat (each answered sat or unknown, timed
// out, or failed).
func (p *Pass) smtVerdict(cond ir.Expr, budget int, timeout time.Duration, diags *[]*errors.Diagnostic) (Verdict, bool) {
	formula, ok := smt.Translate(cond, budget)
	if !ok {
		return unknownVerdict, false
	}

	p.Solver.SetTimeout(timeout)
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	negated := smt.UnOp{Op: "not", Arg: formula, ResSort: smt.SortBool}

	notPUnsat, ok1 := p.checkUnsat(ctx, negated, diags, cond)
	if ok1 && notPUnsat {
		return Verdict{AlwaysTrue: true, Confidence: 1.0}, true
	}

	pUnsat, ok2 := p.checkUnsat(ctx, formula, diags, cond)
	if ok2 && pUnsat {
		return Verdict{AlwaysFalse: true, Confidence: 1.0}, true
	}

	return unknownVerdict, false
}

func (p *Pass) checkUnsat(ctx context.Context, formula smt.Expr, diags *[]*errors.Diagnostic, cond ir.Expr) (unsat bool, ok bool) {
	if err := p.Solver.Push(ctx); err != nil {
		return false, false
	}
	defer p.Solver.Pop(ctx)

	if err := p.Solver.Assert(ctx, formula); err != nil {
		return false, false
	}
	verdict, err := p.Solver.Check(ctx)
	if err != nil {
		return false, false
	}
	if verdict == smt.Timeout {
		*diags = append(*diags, errors.NewWarning(errors.CodeOpaqueSolverTimeout,
			"SMT query exceeded its per-query timeout", cond.Pos()))
		return false, false
	}
	if verdict == smt.Unknown {
		return false, false
	}
	return verdict == smt.Unsat, true
}

// sideEffectSafe reports whether cond is safe to hand to the SMT oracle:
// reusing dce's purity classification, since "this expression's
// evaluation has no observable effect" is the same question DCE asks
// before deleting, and it is exactly the condition §4.6 needs before
// evaluating a predicate twice (once for ¬P, once for P) is sound.
func sideEffectSafe(cond ir.Expr) bool {
	return dce.IsPure(cond)
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
