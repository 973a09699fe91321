package stack

import (
	"fmt"
	"sort"

	"deobf/internal/cfg"
	"deobf/internal/errors"
	"deobf/internal/ir"
	"deobf/internal/pass"
	"deobf/internal/ssa"
)

// Lift parses a stack-engine module and lifts every function it contains
// to a pass.State ready for the pipeline (§2's "bytes -> lifter module ->
// IR tree -> same pass pipeline" data flow). A function that fails to
// lift (truncated operand, stack underflow) is dropped with its
// diagnostic kept; the rest of the module keeps going, matching §4.7's
// per-function failure scope.
func Lift(data []byte) (*pass.State, []*errors.Diagnostic, error) {
	mod, diags, err := ParseModule(data)
	if err != nil {
		return nil, diags, err
	}

	prog := &ir.Program{}
	var functions []*pass.FunctionState

	for _, fn := range mod.Functions {
		fs, d, lerr := liftFunction(mod, fn)
		diags = append(diags, d...)
		if lerr != nil {
			if ld, ok := lerr.(*errors.Diagnostic); ok {
				diags = append(diags, ld)
			} else {
				diags = append(diags, errors.NewStructural(errors.CodeStackStackUnderflow, lerr.Error(), ir.Position{}, lerr))
			}
			continue
		}
		prog.Functions = append(prog.Functions, fs.Decl)
		functions = append(functions, fs)
	}

	return &pass.State{Program: prog, Functions: functions, Diagnostics: diags}, diags, nil
}

func slotName(depth int) string { return fmt.Sprintf("s%d", depth) }
func localName(idx int) string  { return fmt.Sprintf("local%d", idx) }

func addEdge(from, to *cfg.BasicBlock, kind cfg.EdgeKind) {
	e := &cfg.Edge{From: from, To: to, Kind: kind}
	from.Successors = append(from.Successors, e)
	to.Predecessors = append(to.Predecessors, e)
}

var binaryOpFor = map[Op]ir.BinaryOp{
	OpAdd: ir.OpAdd, OpSub: ir.OpSub, OpMul: ir.OpMul, OpDiv: ir.OpDiv, OpMod: ir.OpMod,
	OpBitAnd: ir.OpBitAnd, OpBitOr: ir.OpBitOr, OpBitXor: ir.OpBitXor,
	OpShl: ir.OpShl, OpShr: ir.OpShr, OpUShr: ir.OpUShr,
	OpEq: ir.OpEq, OpNeq: ir.OpNotEq, OpStrictEq: ir.OpStrictEq, OpStrictNeq: ir.OpStrictNEq,
	OpLt: ir.OpLess, OpLte: ir.OpLessEq, OpGt: ir.OpGreater, OpGte: ir.OpGreaterEq,
}

var unaryOpFor = map[Op]ir.UnaryOp{
	OpNot: ir.OpNot,
	OpNeg: ir.OpUnaryMinus,
}

type stackUnderflow struct{ op string }

func (e stackUnderflow) Error() string { return "stack underflow at " + e.op }

// liftFunction simulates the abstract stack over fn's decoded bytecode,
// building a CFG directly from the instruction stream (§4.7: leaders are
// the first instruction, every branch target, and every instruction after
// a branch/return/throw) and then completing SSA over it with the same
// ssa.Build the source path uses.
func liftFunction(mod *Module, fn FunctionDef) (*pass.FunctionState, []*errors.Diagnostic, error) {
	instrs, diags, err := decodeFunction(fn.Bytecode)
	if err != nil {
		return nil, diags, err
	}

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
		case OpIfFalse, OpGoto:
			target := end + int(ins.Arg)
			leaders[target] = true
			if end < len(fn.Bytecode) {
				leaders[end] = true
			}
		case OpReturn, OpReturnUndef, OpThrow:
			if end < len(fn.Bytecode) {
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

	depth := 0
	readSlot := func(d int) *ir.Identifier { return f.Identifier(ir.Position{}, slotName(d)) }
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
		case OpPushConst:
			ci := int(ins.Arg)
			var lit *ir.Literal
			if ci >= 0 && ci < len(fn.ConstPool) {
				lit = constToLiteral(f, pos, fn.ConstPool[ci])
			} else {
				lit = f.Literal(pos, ir.NewLiteralUndefined())
			}
			emitAssign(b, pos, slotName(depth), lit)
			depth++
		case OpPushInt:
			emitAssign(b, pos, slotName(depth), f.Literal(pos, ir.NewLiteralNumber(float64(ins.Arg))))
			depth++
		case OpPushUndef:
			emitAssign(b, pos, slotName(depth), f.Literal(pos, ir.NewLiteralUndefined()))
			depth++
		case OpPushNull:
			emitAssign(b, pos, slotName(depth), f.Literal(pos, ir.NewLiteralNull()))
			depth++
		case OpPushTrue:
			emitAssign(b, pos, slotName(depth), f.Literal(pos, ir.NewLiteralBool(true)))
			depth++
		case OpPushFalse:
			emitAssign(b, pos, slotName(depth), f.Literal(pos, ir.NewLiteralBool(false)))
			depth++
		case OpGetLocal:
			emitAssign(b, pos, slotName(depth), f.Identifier(pos, localName(int(ins.Arg))))
			depth++
		case OpPutLocal:
			if depth < 1 {
				return nil, diags, stackUnderflow{"put_local"}
			}
			depth--
			emitAssign(b, pos, localName(int(ins.Arg)), readSlot(depth))
		case OpDup:
			if depth < 1 {
				return nil, diags, stackUnderflow{"dup"}
			}
			emitAssign(b, pos, slotName(depth), readSlot(depth-1))
			depth++
		case OpDrop:
			if depth < 1 {
				return nil, diags, stackUnderflow{"drop"}
			}
			depth--
		case OpNot, OpNeg:
			if depth < 1 {
				return nil, diags, stackUnderflow{ins.Info.Mnemonic}
			}
			arg := readSlot(depth - 1)
			depth--
			emitAssign(b, pos, slotName(depth), f.Unary(pos, unaryOpFor[ins.Op], arg))
			depth++
		case OpAdd, OpSub, OpMul, OpDiv, OpMod, OpBitAnd, OpBitOr, OpBitXor, OpShl, OpShr, OpUShr,
			OpEq, OpNeq, OpStrictEq, OpStrictNeq, OpLt, OpLte, OpGt, OpGte:
			if depth < 2 {
				return nil, diags, stackUnderflow{ins.Info.Mnemonic}
			}
			rhs := readSlot(depth - 1)
			lhs := readSlot(depth - 2)
			depth -= 2
			emitAssign(b, pos, slotName(depth), f.Binary(pos, binaryOpFor[ins.Op], lhs, rhs))
			depth++
		case OpGetField:
			if depth < 1 {
				return nil, diags, stackUnderflow{"get_field"}
			}
			obj := readSlot(depth - 1)
			depth--
			prop := f.Identifier(pos, mod.atomName(int(ins.Arg)))
			emitAssign(b, pos, slotName(depth), f.Member(pos, obj, prop, false))
			depth++
		case OpPutField:
			if depth < 2 {
				return nil, diags, stackUnderflow{"put_field"}
			}
			val := readSlot(depth - 1)
			obj := readSlot(depth - 2)
			depth -= 2
			prop := f.Identifier(pos, mod.atomName(int(ins.Arg)))
			b.Instructions = append(b.Instructions, f.ExprStatement(pos,
				f.Assignment(pos, ir.OpAssign, f.Member(pos, obj, prop, false), val)))
		case OpCall:
			argc := int(ins.Arg)
			if depth < argc+1 {
				return nil, diags, stackUnderflow{"call"}
			}
			args := make([]ir.Expr, argc)
			for i := 0; i < argc; i++ {
				args[i] = readSlot(depth - argc + i)
			}
			callee := readSlot(depth - argc - 1)
			depth -= argc + 1
			emitAssign(b, pos, slotName(depth), f.Call(pos, callee, "", args))
			depth++
		case OpIfFalse:
			if depth < 1 {
				return nil, diags, stackUnderflow{"if_false"}
			}
			cond := readSlot(depth - 1)
			depth--
			end := ins.Offset + ins.Len
			target := blockAt(end + int(ins.Arg))
			var fall *cfg.BasicBlock
			if idx+1 < len(instrs) {
				fall = blockAt(instrs[idx+1].Offset)
			} else {
				fall = exit
			}
			b.Terminator = cfg.Terminator{Kind: cfg.TermBranch, Condition: cond, TrueBlock: fall, FalseBlock: target}
			addEdge(b, fall, cfg.EdgeTrue)
			addEdge(b, target, cfg.EdgeFalse)
		case OpGoto:
			end := ins.Offset + ins.Len
			target := blockAt(end + int(ins.Arg))
			b.Terminator = cfg.Terminator{Kind: cfg.TermJump, Target: target}
			addEdge(b, target, cfg.EdgeJump)
		case OpReturn:
			if depth < 1 {
				return nil, diags, stackUnderflow{"return"}
			}
			depth--
			b.Terminator = cfg.Terminator{Kind: cfg.TermReturn, ReturnValue: readSlot(depth)}
			addEdge(b, exit, cfg.EdgeJump)
		case OpReturnUndef:
			b.Terminator = cfg.Terminator{Kind: cfg.TermReturn}
			addEdge(b, exit, cfg.EdgeJump)
		case OpThrow:
			if depth < 1 {
				return nil, diags, stackUnderflow{"throw"}
			}
			depth--
			b.Terminator = cfg.Terminator{Kind: cfg.TermThrow, ThrowValue: readSlot(depth)}
			addEdge(b, exit, cfg.EdgeException)
		}
	}

	// Blocks that fell off the end of their leader range without an
	// explicit terminator (straight-line arithmetic continuing into the
	// next leader) fall through to the next block in program order, or to
	// exit if they are last.
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
	info, ssaWarns := ssa.Build(g)
	diags = append(diags, ssaWarns...)

	params := make([]string, fn.ParamCount)
	for i := range params {
		params[i] = localName(i)
	}
	decl := f.FunctionDecl(ir.Position{}, mod.atomName(fn.NameAtom), params, f.Block(ir.Position{}, nil))

	return &pass.FunctionState{Decl: decl, CFG: g, SSA: info}, diags, nil
}
