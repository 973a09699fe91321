package devirt

import (
	"fmt"

	"deobf/internal/errors"
	"deobf/internal/ir"
)

// virtualState is the abstract machine phase 4 walks: a register map from
// index to the symbolic expression currently held there, a virtual
// program counter, and the step counter guarding against adversarial
// loops in the virtual program. The stack/flags/call-stack pieces named
// in §4.9 have no work to do for the arithmetic/control opcode shapes
// this emulator actually resolves; they are not modelled as separate
// fields since nothing here ever reads them.
type virtualState struct {
	regs map[int]ir.Expr
	pc   int
}

// MicroEmulate implements §4.9 phase 4: walk the extracted bytecode array
// against the dispatcher's opcode semantics, emitting one IR statement
// per virtual instruction whose effect is understood. It refuses to
// revisit a program-counter value (defeats an adversarial loop without
// needing the step cap) and hard-caps total steps at stepCap.
func MicroEmulate(f *ir.Factory, d *Dispatcher, sems map[int64]*OpcodeSemantics, bytecode []int64, regsInit map[int]ir.Expr, stepCap int) ([]ir.Stmt, bool, []*errors.Diagnostic) {
	var diags []*errors.Diagnostic
	var out []ir.Stmt

	st := &virtualState{regs: map[int]ir.Expr{}, pc: 0}
	for k, v := range regsInit {
		st.regs[k] = v
	}
	regAt := func(idx int) ir.Expr {
		if e, ok := st.regs[idx]; ok {
			return e
		}
		e := f.Member(ir.Position{}, f.Identifier(ir.Position{}, d.RegsVar), f.Literal(ir.Position{}, ir.NewLiteralNumber(float64(idx))), true)
		st.regs[idx] = e
		return e
	}

	visited := map[int]bool{}
	steps := 0

	for {
		if steps >= stepCap {
			diags = append(diags, errors.NewWarning(errors.CodeDevirtStepCapReached,
				fmt.Sprintf("micro-emulation stopped after %d steps", stepCap), ir.Position{}))
			return out, false, diags
		}
		if st.pc < 0 || st.pc >= len(bytecode) {
			diags = append(diags, errors.NewWarning(errors.CodeDevirtEmulationAborted,
				"virtual program counter ran outside the bytecode array", ir.Position{}))
			return out, false, diags
		}
		if visited[st.pc] {
			diags = append(diags, errors.NewWarning(errors.CodeDevirtEmulationAborted,
				"virtual program counter revisited an already-emulated offset", ir.Position{}))
			return out, false, diags
		}
		visited[st.pc] = true
		steps++

		opcode := bytecode[st.pc]
		sem, ok := sems[opcode]
		if !ok {
			diags = append(diags, errors.NewWarning(errors.CodeDevirtEmulationAborted,
				fmt.Sprintf("no known semantics for opcode %d", opcode), ir.Position{}))
			return out, false, diags
		}

		operandStart := st.pc + 1
		if operandStart+sem.OperandN > len(bytecode) {
			diags = append(diags, errors.NewWarning(errors.CodeDevirtEmulationAborted,
				"opcode operands ran past the end of the bytecode array", ir.Position{}))
			return out, false, diags
		}
		operands := bytecode[operandStart : operandStart+sem.OperandN]
		st.pc = operandStart + sem.OperandN

		switch {
		case sem.Effect == EffectReturn:
			var ret ir.Expr
			if sem.ReturnRegIndex != nil {
				ret = regAt(*sem.ReturnRegIndex)
			} else if len(operands) > 0 {
				ret = regAt(int(operands[0]))
			}
			out = append(out, f.Return(ir.Position{}, ret))
			return out, true, diags

		case sem.Effect == EffectThrow:
			var val ir.Expr
			if sem.ReturnRegIndex != nil {
				val = regAt(*sem.ReturnRegIndex)
			} else if len(operands) > 0 {
				val = regAt(int(operands[0]))
			}
			out = append(out, f.Throw(ir.Position{}, val))
			return out, true, diags

		case sem.HasBinOp && sem.DestIsReg && len(operands) >= 3:
			dest := int(operands[0])
			lhs := regAt(int(operands[1]))
			rhs := regAt(int(operands[2]))
			val := f.Binary(ir.Position{}, sem.BinaryOp, lhs, rhs)
			st.regs[dest] = val
			out = append(out, f.ExprStatement(ir.Position{}, f.Assignment(ir.Position{}, ir.OpAssign,
				f.Member(ir.Position{}, f.Identifier(ir.Position{}, d.RegsVar), f.Literal(ir.Position{}, ir.NewLiteralNumber(float64(dest))), true),
				val)))

		default:
			diags = append(diags, errors.NewWarning(errors.CodeDevirtEmulationAborted,
				fmt.Sprintf("opcode %d's effect is not one micro-emulation resolves", opcode), ir.Position{}))
			return out, false, diags
		}
	}
}
