package register

import (
	"fmt"
	"sort"

	"deobf/internal/cfg"
	"deobf/internal/errors"
	"deobf/internal/ir"
	"deobf/internal/pass"
	"deobf/internal/ssa"
)

// Lift parses a register-engine module and lifts every function whose
// lifted confidence clears cfg.RegisterLifter.ConfidenceThreshold. A
// function that falls short emits CodeRegisterLowConfidence and is
// dropped rather than handed on as a guess (§4.8: "function bodies below
// a configurable confidence threshold emit warnings rather than
// fabricate plausible IR").
func Lift(data []byte, threshold float64) (*pass.State, []*errors.Diagnostic) {
	mod, diags := ParseModule(data)

	prog := &ir.Program{}
	var functions []*pass.FunctionState

	for i, fn := range mod.Functions {
		instrs, truncated := decodeFunction(fn.Opcodes)
		conf := confidence(fn, instrs, truncated)
		if conf < threshold {
			diags = append(diags, errors.NewWarning(errors.CodeRegisterLowConfidence,
				fmt.Sprintf("function %d lifted at confidence %.2f, below threshold %.2f", i, conf, threshold),
				ir.Position{}))
			continue
		}

		fs := liftFunction(mod, fn, instrs, i)
		prog.Functions = append(prog.Functions, fs.Decl)
		functions = append(functions, fs)
	}

	return &pass.State{Program: prog, Functions: functions, Diagnostics: diags}, diags
}

// confidence follows the base-plus-evidence formula named across §4.8/§4.9:
// a function with real register traffic, a detectable return, and more
// than one instruction is trusted; any unknown opcode or truncation, or a
// body of at most one instruction, drags it back down.
func confidence(fn FunctionDef, instrs []Instruction, truncated bool) float64 {
	c := 0.5
	regTouches := 0
	sawControlFlow := false
	unknown := 0
	for _, ins := range instrs {
		if ins.Unknown {
			unknown++
			continue
		}
		if ins.Info.Operand == OperandReg || ins.Info.Operand == OperandRegPair {
			regTouches++
		}
		switch ins.Op {
		case OpJump, OpJumpIfFalse, OpReturn, OpReturnUndefined:
			sawControlFlow = true
		}
	}
	if regTouches > 0 {
		c += 0.2
	}
	if sawControlFlow {
		c += 0.1
	}
	if len(instrs) <= 1 {
		c -= 0.2
	}
	if truncated || unknown > 0 {
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

func regName(idx int) string { return fmt.Sprintf("r%d", idx) }

const accName = "acc"

func addEdge(from, to *cfg.BasicBlock, kind cfg.EdgeKind) {
	e := &cfg.Edge{From: from, To: to, Kind: kind}
	from.Successors = append(from.Successors, e)
	to.Predecessors = append(to.Predecessors, e)
}

var binaryOpFor = map[Op]ir.BinaryOp{
	OpAdd: ir.OpAdd, OpSub: ir.OpSub, OpMul: ir.OpMul, OpDiv: ir.OpDiv, OpMod: ir.OpMod,
	OpBitAnd: ir.OpBitAnd, OpBitOr: ir.OpBitOr, OpBitXor: ir.OpBitXor,
	OpShl: ir.OpShl, OpShr: ir.OpShr, OpUShr: ir.OpUShr,
	OpTestEq: ir.OpEq, OpTestNeq: ir.OpNotEq, OpTestEqStrict: ir.OpStrictEq, OpTestNeqStrict: ir.OpStrictNEq,
	OpTestLt: ir.OpLess, OpTestLte: ir.OpLessEq, OpTestGt: ir.OpGreater, OpTestGte: ir.OpGreaterEq,
}

// liftFunction simulates the accumulator directly: every Lda* opcode
// (re)defines the plain acc variable, every arithmetic/comparison opcode
// reads acc and a register operand and writes acc back, and Star/Ldar move
// values between acc and the register file. Building the CFG straight
// from the decoded stream (rather than routing through cfg.Build/
// pass.Lower, which are source-tree specific) mirrors the stack lifter's
// approach and lets this package hand the result straight to ssa.Build.
func liftFunction(mod *Module, fn FunctionDef, instrs []Instruction, index int) *pass.FunctionState {
	f := ir.NewFactory()

	leaders := map[int]bool{}
	if len(instrs) > 0 {
		leaders[0] = true
	}
	for _, ins := range instrs {
		if ins.Unknown {
			continue
		}
		end := ins.Offset + ins.Len
		switch ins.Op {
		case OpJumpIfFalse, OpJump:
			target := end + int(ins.A)
			leaders[target] = true
			if end < len(fn.Opcodes) {
				leaders[end] = true
			}
		case OpReturn, OpReturnUndefined, OpThrow:
			if end < len(fn.Opcodes) {
				leaders[end] = true
			}
		}
	}

	var offsets []int
	for off := range leaders {
		offsets = append(offsets, off)
	}
	sort.Ints(offsets)

	blocks := make([]*cfg.BasicBlock, len(offsets))
	for i, off := range offsets {
		blocks[i] = &cfg.BasicBlock{ID: i + 1, Label: fmt.Sprintf("b%d_%d", i, off)}
	}
	blockAt := func(off int) *cfg.BasicBlock {
		i := sort.Search(len(offsets), func(i int) bool { return offsets[i] > off }) - 1
		if i < 0 {
			i = 0
		}
		return blocks[i]
	}

	entry := &cfg.BasicBlock{ID: 0, Label: "entry"}
	exit := &cfg.BasicBlock{ID: len(blocks) + 1, Label: "exit"}
	if len(blocks) > 0 {
		addEdge(entry, blocks[0], cfg.EdgeFallthrough)
	} else {
		addEdge(entry, exit, cfg.EdgeFallthrough)
	}

	acc := func(pos ir.Position) *ir.Identifier { return f.Identifier(pos, accName) }
	reg := func(pos ir.Position, idx int) *ir.Identifier { return f.Identifier(pos, regName(idx)) }
	emitAssign := func(b *cfg.BasicBlock, pos ir.Position, name string, val ir.Expr) {
		b.Instructions = append(b.Instructions, f.ExprStatement(pos,
			f.Assignment(pos, ir.OpAssign, f.Identifier(pos, name), val)))
	}

	for idx, ins := range instrs {
		pos := ir.Position{Offset: ins.Offset}
		b := blockAt(ins.Offset)

		if ins.Unknown {
			b.Instructions = append(b.Instructions, f.Empty(pos))
			continue
		}

		switch ins.Op {
		case OpLdaSmi:
			emitAssign(b, pos, accName, f.Literal(pos, ir.NewLiteralNumber(float64(ins.A))))
		case OpLdaConst:
			ci := int(ins.A)
			var lit *ir.Literal
			if ci >= 0 && ci < len(fn.ConstPool) {
				lit = constToLiteral(f, pos, fn.ConstPool[ci])
			} else {
				lit = f.Literal(pos, ir.NewLiteralUndefined())
			}
			emitAssign(b, pos, accName, lit)
		case OpLdaUndefined:
			emitAssign(b, pos, accName, f.Literal(pos, ir.NewLiteralUndefined()))
		case OpLdaNull:
			emitAssign(b, pos, accName, f.Literal(pos, ir.NewLiteralNull()))
		case OpLdaTrue:
			emitAssign(b, pos, accName, f.Literal(pos, ir.NewLiteralBool(true)))
		case OpLdaFalse:
			emitAssign(b, pos, accName, f.Literal(pos, ir.NewLiteralBool(false)))
		case OpLdar:
			emitAssign(b, pos, accName, reg(pos, int(ins.A)))
		case OpStar:
			emitAssign(b, pos, regName(int(ins.A)), acc(pos))
		case OpMov:
			emitAssign(b, pos, regName(int(ins.B)), reg(pos, int(ins.A)))
		case OpAdd, OpSub, OpMul, OpDiv, OpMod, OpBitAnd, OpBitOr, OpBitXor, OpShl, OpShr, OpUShr,
			OpTestEq, OpTestNeq, OpTestEqStrict, OpTestNeqStrict, OpTestLt, OpTestLte, OpTestGt, OpTestGte:
			emitAssign(b, pos, accName, f.Binary(pos, binaryOpFor[ins.Op], reg(pos, int(ins.A)), acc(pos)))
		case OpToBooleanNot:
			emitAssign(b, pos, accName, f.Unary(pos, ir.OpNot, acc(pos)))
		case OpNeg:
			emitAssign(b, pos, accName, f.Unary(pos, ir.OpUnaryMinus, acc(pos)))
		case OpGetNamedProp:
			name := "prop"
			if ci := int(ins.A); ci < len(fn.ConstPool) && fn.ConstPool[ci].Kind == ConstString {
				name = fn.ConstPool[ci].String
			}
			emitAssign(b, pos, accName, f.Member(pos, acc(pos), f.Identifier(pos, name), false))
		case OpSetNamedProp:
			name := "prop"
			if ci := int(ins.B); ci < len(fn.ConstPool) && fn.ConstPool[ci].Kind == ConstString {
				name = fn.ConstPool[ci].String
			}
			b.Instructions = append(b.Instructions, f.ExprStatement(pos,
				f.Assignment(pos, ir.OpAssign, f.Member(pos, reg(pos, int(ins.A)), f.Identifier(pos, name), false), acc(pos))))
		case OpCallNoArgs:
			emitAssign(b, pos, accName, f.Call(pos, acc(pos), "", nil))
		case OpCallReg1:
			emitAssign(b, pos, accName, f.Call(pos, acc(pos), "", []ir.Expr{reg(pos, int(ins.A))}))
		case OpJumpIfFalse:
			end := ins.Offset + ins.Len
			target := blockAt(end + int(ins.A))
			var fall *cfg.BasicBlock
			if idx+1 < len(instrs) {
				fall = blockAt(instrs[idx+1].Offset)
			} else {
				fall = exit
			}
			b.Terminator = cfg.Terminator{Kind: cfg.TermBranch, Condition: acc(pos), TrueBlock: fall, FalseBlock: target}
			addEdge(b, fall, cfg.EdgeTrue)
			addEdge(b, target, cfg.EdgeFalse)
		case OpJump:
			end := ins.Offset + ins.Len
			target := blockAt(end + int(ins.A))
			b.Terminator = cfg.Terminator{Kind: cfg.TermJump, Target: target}
			addEdge(b, target, cfg.EdgeJump)
		case OpReturn:
			b.Terminator = cfg.Terminator{Kind: cfg.TermReturn, ReturnValue: acc(pos)}
			addEdge(b, exit, cfg.EdgeJump)
		case OpReturnUndefined:
			b.Terminator = cfg.Terminator{Kind: cfg.TermReturn}
			addEdge(b, exit, cfg.EdgeJump)
		case OpThrow:
			b.Terminator = cfg.Terminator{Kind: cfg.TermThrow, ThrowValue: acc(pos)}
			addEdge(b, exit, cfg.EdgeException)
		}
	}

	for i, b := range blocks {
		if b.Terminator.Kind != cfg.TermNone {
			continue
		}
		var next *cfg.BasicBlock
		if i+1 < len(blocks) {
			next = blocks[i+1]
		} else {
			next = exit
		}
		b.Terminator = cfg.Terminator{Kind: cfg.TermJump, Target: next}
		addEdge(b, next, cfg.EdgeFallthrough)
	}

	g := &cfg.Graph{Entry: entry, Exit: exit, Blocks: append(append([]*cfg.BasicBlock{entry}, blocks...), exit)}
	cfg.ComputeDominance(g)
	info, _ := ssa.Build(g)

	params := make([]string, fn.ParamCount)
	for i := range params {
		params[i] = regName(i)
	}
	decl := f.FunctionDecl(ir.Position{}, fmt.Sprintf("function%d", index), params, f.Block(ir.Position{}, nil))

	return &pass.FunctionState{Decl: decl, CFG: g, SSA: info}
}
