package constprop

import (
	"deobf/internal/builtins"
	"deobf/internal/cfg"
	"deobf/internal/errors"
	"deobf/internal/ir"
	"deobf/internal/pass"
	"deobf/internal/ssa"
)

// Pass is the constant-propagation/folding transformation of §4.5.
type Pass struct{}

func New() *Pass { return &Pass{} }

func (p *Pass) Name() string { return "constant-propagation" }

func (p *Pass) Description() string {
	return "propagates and folds compile-time-constant values through SSA form"
}

func (p *Pass) Run(state *pass.State, config pass.Config) (*pass.State, bool, []*errors.Diagnostic, error) {
	threshold := config.ConstProp.ConfidenceThreshold
	if threshold <= 0 {
		threshold = pass.DefaultConfig().ConstProp.ConfidenceThreshold
	}
	maxIter := config.ConstProp.MaxIterations
	if maxIter <= 0 {
		maxIter = pass.DefaultConfig().ConstProp.MaxIterations
	}

	var diags []*errors.Diagnostic
	changedAny := false

	for _, fs := range state.Functions {
		env := analyze(fs, maxIter)
		if foldBranches(fs, env, threshold) {
			cfg.ComputeDominance(fs.CFG)
			info, warns := ssa.Build(fs.CFG)
			fs.SSA = info
			diags = append(diags, warns...)
			env = analyze(fs, maxIter)
			changedAny = true
		}
		if rewriteUses(fs, env, threshold) {
			changedAny = true
		}
	}

	return state.WithFunctions(state.Functions), changedAny, diags, nil
}

// analyze runs the dataflow sweep described in lattice.go, iterating block
// order up to maxIter times or until the environment stops changing.
func analyze(fs *pass.FunctionState, maxIter int) map[ir.SSAName]Value {
	env := make(map[ir.SSAName]Value)

	for iter := 0; iter < maxIter; iter++ {
		changed := false
		for _, b := range fs.CFG.Blocks {
			if fs.SSA != nil {
				for _, phi := range fs.SSA.Phis[b] {
					v := bottomValue
					for _, operand := range phi.Operands {
						v = meet(v, envGet(env, operand))
					}
					v = decay(v)
					if !sameValue(env[phi.Result], v) {
						env[phi.Result] = v
						changed = true
					}
				}
			}
			for _, s := range b.Instructions {
				switch n := s.(type) {
				case *ir.VariableDecl:
					for _, d := range n.Declarators {
						v := evalExpr(d.Init, env)
						if !sameValue(env[d.SSA], v) {
							env[d.SSA] = v
							changed = true
						}
					}
				case *ir.ExprStatement:
					if asg, ok := n.Expression.(*ir.Assignment); ok {
						if id, ok := asg.Target.(*ir.Identifier); ok && asg.Op == ir.OpAssign {
							v := evalExpr(asg.Value, env)
							if !sameValue(env[id.SSA], v) {
								env[id.SSA] = v
								changed = true
							}
						}
					}
				}
			}
		}
		if !changed {
			break
		}
	}
	return env
}

func decay(v Value) Value {
	if v.Kind != Constant {
		return v
	}
	return constantValue(v.Literal, v.Confidence*phiDecay)
}

func envGet(env map[ir.SSAName]Value, name ir.SSAName) Value {
	if v, ok := env[name]; ok {
		return v
	}
	return bottomValue
}

func sameValue(a, b Value) bool {
	if a.Kind != b.Kind {
		return false
	}
	if a.Kind == Constant {
		return a.Literal.Equal(b.Literal) && a.Confidence == b.Confidence
	}
	return true
}

func evalExpr(e ir.Expr, env map[ir.SSAName]Value) Value {
	switch n := e.(type) {
	case nil:
		return topValue
	case *ir.Literal:
		return constantValue(n.Value, 1.0)
	case *ir.Identifier:
		if !n.InSSA {
			return topValue
		}
		return envGet(env, n.SSA)
	case *ir.Binary:
		l := evalExpr(n.Left, env)
		r := evalExpr(n.Right, env)
		if l.Kind != Constant || r.Kind != Constant {
			if l.Kind == Top || r.Kind == Top {
				return topValue
			}
			return bottomValue
		}
		folded, ok := evalBinary(n.Op, l.Literal, r.Literal)
		if !ok {
			return topValue
		}
		conf := l.Confidence
		if r.Confidence < conf {
			conf = r.Confidence
		}
		return constantValue(folded, conf)
	case *ir.Unary:
		v := evalExpr(n.Arg, env)
		if v.Kind != Constant {
			if v.Kind == Top {
				return topValue
			}
			return bottomValue
		}
		folded, ok := evalUnary(n.Op, v.Literal)
		if !ok {
			return topValue
		}
		return constantValue(folded, v.Confidence)
	case *ir.Logical:
		l := evalExpr(n.Left, env)
		if l.Kind == Constant {
			switch n.Op {
			case ir.OpLogicalAnd:
				if !truthy(l.Literal) {
					return l
				}
			case ir.OpLogicalOr:
				if truthy(l.Literal) {
					return l
				}
			case ir.OpNullishCoalescing:
				if l.Literal.Kind != ir.LitNull && l.Literal.Kind != ir.LitUndefined {
					return l
				}
			}
		}
		r := evalExpr(n.Right, env)
		if l.Kind == Top {
			return topValue
		}
		return r
	case *ir.Conditional:
		test := evalExpr(n.Test, env)
		if test.Kind == Constant {
			if truthy(test.Literal) {
				return evalExpr(n.Then, env)
			}
			return evalExpr(n.Else, env)
		}
		if test.Kind == Top {
			return topValue
		}
		return bottomValue
	case *ir.Call:
		known := true
		args := make([]ir.LiteralValue, len(n.Args))
		minConf := 1.0
		for i, a := range n.Args {
			v := evalExpr(a, env)
			if v.Kind != Constant {
				known = false
				break
			}
			args[i] = v.Literal
			if v.Confidence < minConf {
				minConf = v.Confidence
			}
		}
		if !known {
			return topValue
		}
		if lit, ok := builtins.Eval(n.CalleeName, args); ok {
			return constantValue(lit, minConf)
		}
		return topValue
	default:
		return topValue
	}
}
