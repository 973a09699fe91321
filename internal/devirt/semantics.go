package devirt

import "deobf/internal/ir"

// ExtractSemantics implements §4.9 phase 2: for every non-default case in
// the dispatcher's switch, statically derive its register reads/writes,
// stack effect, operator, control-flow effect, category, and confidence.
func ExtractSemantics(sw *ir.Switch, d *Dispatcher) map[int64]*OpcodeSemantics {
	out := make(map[int64]*OpcodeSemantics)
	for _, c := range sw.Cases {
		if c.Test == nil {
			continue
		}
		v, ok := literalNumber(*c.Test)
		if !ok {
			continue
		}
		out[int64(v)] = extractCase(c, d, int64(v))
	}
	return out
}

func extractCase(c ir.SwitchCase, d *Dispatcher, value int64) *OpcodeSemantics {
	sem := &OpcodeSemantics{Value: value, Body: c.Body}

	sawStackPush, sawStackPop := false, false
	firstDestSeen := false

	for _, stmt := range c.Body {
		switch n := stmt.(type) {
		case *ir.Return:
			sem.Effect = EffectReturn
			if m, ok := n.Value.(*ir.Member); ok && isRegsIndex(m, d.RegsVar) {
				if lit, ok := literalNumber(m.Property); ok {
					idx := int(lit)
					sem.ReturnRegIndex = &idx
				}
			}
		case *ir.Throw:
			sem.Effect = EffectThrow
			if m, ok := n.Value.(*ir.Member); ok && isRegsIndex(m, d.RegsVar) {
				if lit, ok := literalNumber(m.Property); ok {
					idx := int(lit)
					sem.ReturnRegIndex = &idx
				}
			}
		case *ir.If:
			if sem.Effect == EffectNone {
				sem.Effect = EffectConditional
			}
		}

		walkStmtExprs(stmt, func(e ir.Expr) {
			if isIndexOf(e, d.ArrVar, d.PCVar) {
				sem.OperandN++
			}
			if call, ok := e.(*ir.Call); ok {
				switch call.CalleeName {
				case "push":
					sawStackPush = true
				case "pop":
					sawStackPop = true
				default:
					if sem.Effect == EffectNone {
						sem.Effect = EffectCall
					}
				}
			}
			if bin, ok := e.(*ir.Binary); ok && !sem.HasBinOp {
				sem.BinaryOp = bin.Op
				sem.HasBinOp = true
			}
		})

		// A register write is an Assignment whose target indexes the
		// register-file variable; everything else that indexes it is a
		// read. The first write encountered in a case is treated as the
		// destination for later micro-emulation (§4.9 phase 4).
		if es, ok := stmt.(*ir.ExprStatement); ok {
			if asg, ok := es.Expression.(*ir.Assignment); ok {
				if m, ok := asg.Target.(*ir.Member); ok && isRegsIndex(m, d.RegsVar) {
					sem.RegWrites = append(sem.RegWrites, -1) // index resolved at emulation time
					if !firstDestSeen {
						sem.DestIsReg = true
						firstDestSeen = true
					}
				} else if target, ok := asg.Target.(*ir.Identifier); ok && target.Name == d.PCVar {
					if _, isLit := asg.Value.(*ir.Literal); isLit && sem.Effect == EffectNone {
						sem.Effect = EffectJump
					}
				}
				walkExpr(asg.Value, func(e ir.Expr) {
					if m, ok := e.(*ir.Member); ok && isRegsIndex(m, d.RegsVar) {
						sem.RegReads = append(sem.RegReads, -1)
					}
				})
			}
		}
	}

	sem.StackPush = sawStackPush
	sem.StackPop = sawStackPop
	sem.Category = categorize(sem, sawStackPush, sawStackPop)
	sem.Confidence = opcodeConfidence(sem, sawStackPush, sawStackPop)
	return sem
}

func isRegsIndex(m *ir.Member, regsVar string) bool {
	if regsVar == "" || !m.Computed {
		return false
	}
	obj, ok := m.Object.(*ir.Identifier)
	return ok && obj.Name == regsVar
}

func categorize(sem *OpcodeSemantics, push, pop bool) Category {
	switch {
	case sem.Effect == EffectReturn || sem.Effect == EffectJump || sem.Effect == EffectConditional || sem.Effect == EffectThrow:
		return CategoryControl
	case sem.Effect == EffectCall:
		return CategoryCall
	case push || pop:
		return CategoryStack
	case sem.HasBinOp:
		switch sem.BinaryOp {
		case ir.OpEq, ir.OpNotEq, ir.OpStrictEq, ir.OpStrictNEq, ir.OpLess, ir.OpLessEq, ir.OpGreater, ir.OpGreaterEq:
			return CategoryComparison
		case ir.OpBitAnd, ir.OpBitOr, ir.OpBitXor, ir.OpShl, ir.OpShr, ir.OpUShr:
			return CategoryLogical
		default:
			return CategoryArithmetic
		}
	case len(sem.RegWrites) > 0:
		return CategoryStore
	case len(sem.RegReads) > 0:
		return CategoryLoad
	default:
		return CategoryUnknown
	}
}

func opcodeConfidence(sem *OpcodeSemantics, push, pop bool) float64 {
	c := 0.5
	if len(sem.RegReads) > 0 || len(sem.RegWrites) > 0 {
		c += 0.2
	}
	if push || pop {
		c += 0.2
	}
	if sem.Effect != EffectNone {
		c += 0.1
	}
	if len(sem.Body) <= 1 {
		c -= 0.2
	}
	if c < 0 {
		c = 0
	}
	if c > 1 {
		c = 1
	}
	return c
}
