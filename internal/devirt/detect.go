package devirt

import "deobf/internal/ir"

// DetectDispatcher implements §4.9 phase 1: find a `while(true){ switch
// (arr[pc++]) { ... } }`-shaped dispatch loop inside fn, recover the
// names it threads pc/array/register-file state through, and classify
// the virtual machine. ok is false if no such loop is found at all; a
// found-but-unconvincing loop still returns ok=true with a low
// Confidence so the caller can apply the refuse/eager thresholds.
func DetectDispatcher(fn *ir.FunctionDecl) (*Dispatcher, *ir.Switch, bool) {
	if fn == nil || fn.Body == nil {
		return nil, nil, false
	}

	loop := findDispatchLoop(fn.Body.Body)
	if loop == nil {
		return nil, nil, false
	}

	sw := findSwitch(loop.Body)
	if sw == nil {
		return nil, nil, false
	}

	arrVar, pcVar, ok := discriminantVars(sw.Discriminant, stmtList(loop.Body))
	if !ok {
		return nil, nil, false
	}

	hasIncrement := false
	for _, s := range stmtList(loop.Body) {
		if _, ok := isIncrementOf(s, pcVar); ok {
			hasIncrement = true
			break
		}
	}

	regsVar, kind := classifyKind(sw.Cases, arrVar)

	opcodeCount := 0
	for _, c := range sw.Cases {
		if c.Test != nil {
			opcodeCount++
		}
	}

	d := &Dispatcher{
		Kind:    kind,
		PCVar:   pcVar,
		ArrVar:  arrVar,
		RegsVar: regsVar,
	}
	d.Confidence = dispatcherConfidence(opcodeCount, kind, hasIncrement)
	return d, sw, true
}

func findDispatchLoop(body []ir.Stmt) *ir.While {
	for _, s := range body {
		if w, ok := s.(*ir.While); ok && isAlwaysTrue(w.Test) {
			return w
		}
	}
	return nil
}

func isAlwaysTrue(e ir.Expr) bool {
	lit, ok := e.(*ir.Literal)
	return ok && lit.Value.Kind == ir.LitBoolean && lit.Value.Boolean
}

// discriminantVars recovers the array/index variable names the switch
// dispatches on, either directly (`switch (arr[pc])`) or through a single
// intermediate variable assigned from that shape just before the switch
// (`var opcode = arr[pc]; switch (opcode)`).
func discriminantVars(disc ir.Expr, loopBody []ir.Stmt) (arrVar, pcVar string, ok bool) {
	if m, isMember := disc.(*ir.Member); isMember && m.Computed {
		if obj, ok1 := m.Object.(*ir.Identifier); ok1 {
			if idx, ok2 := m.Property.(*ir.Identifier); ok2 {
				return obj.Name, idx.Name, true
			}
		}
	}

	id, isIdent := disc.(*ir.Identifier)
	if !isIdent {
		return "", "", false
	}
	for _, s := range loopBody {
		var rhs ir.Expr
		switch n := s.(type) {
		case *ir.VariableDecl:
			for _, d := range n.Declarators {
				if d.Name == id.Name {
					rhs = d.Init
				}
			}
		case *ir.ExprStatement:
			if asg, ok := n.Expression.(*ir.Assignment); ok {
				if target, ok := asg.Target.(*ir.Identifier); ok && target.Name == id.Name {
					rhs = asg.Value
				}
			}
		}
		if rhs == nil {
			continue
		}
		if m, isMember := rhs.(*ir.Member); isMember && m.Computed {
			if obj, ok1 := m.Object.(*ir.Identifier); ok1 {
				if idx, ok2 := m.Property.(*ir.Identifier); ok2 {
					return obj.Name, idx.Name, true
				}
			}
		}
	}
	return "", "", false
}

// classifyKind scans every case body for a regs[k]-shaped Member (other
// than the dispatch array itself) and for push/pop-named calls, deriving
// both the register-file variable name and the stack-vs-register-vs-
// hybrid classification in one pass.
func classifyKind(cases []ir.SwitchCase, arrVar string) (regsVar string, kind Kind) {
	sawRegs, sawStack := false, false
	for _, c := range cases {
		for _, stmt := range c.Body {
			walkStmtExprs(stmt, func(e ir.Expr) {
				if m, ok := e.(*ir.Member); ok && m.Computed {
					if obj, ok := m.Object.(*ir.Identifier); ok && obj.Name != arrVar {
						sawRegs = true
						if regsVar == "" {
							regsVar = obj.Name
						}
					}
				}
				if call, ok := e.(*ir.Call); ok {
					if call.CalleeName == "push" || call.CalleeName == "pop" {
						sawStack = true
					}
				}
			})
		}
	}
	switch {
	case sawRegs && sawStack:
		return regsVar, KindHybrid
	case sawRegs:
		return regsVar, KindRegisterBased
	case sawStack:
		return regsVar, KindStackBased
	default:
		return regsVar, KindUnknown
	}
}

func dispatcherConfidence(opcodeCount int, kind Kind, hasIncrement bool) float64 {
	c := 0.5
	if opcodeCount >= 2 {
		c += 0.2
	}
	if kind != KindUnknown {
		c += 0.2
	}
	if hasIncrement {
		c += 0.1
	}
	if c < 0 {
		c = 0
	}
	if c > 1 {
		c = 1
	}
	return c
}
