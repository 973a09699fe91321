package stack

import "deobf/internal/ir"

// OperandKind closes the set of operand shapes an opcode may declare (§4.7).
type OperandKind int

const (
	OperandNone OperandKind = iota
	OperandImmediate
	OperandConstIdx
	OperandLocalIdx
	OperandAtomIdx
	OperandBranchOffset
	OperandArgCount
)

// Category groups opcodes the way §4.7 does, for diagnostics and for the
// devirtualiser's opcode classification (§4.9) to reuse the same vocabulary.
type Category int

const (
	CatStack Category = iota
	CatArithmetic
	CatComparison
	CatLogical
	CatVariable
	CatProperty
	CatControlFlow
	CatFunction
)

// Op is the closed opcode alphabet this lifter recognises. Real QuickJS
// bytecode has a much larger table; this is the representative subset §4.7
// calls for, wide enough to lift the arithmetic/branch/call shapes the
// pass pipeline exercises downstream.
type Op byte

const (
	OpPushConst Op = 0x01
	OpPushInt   Op = 0x02
	OpPushUndef Op = 0x03
	OpPushNull  Op = 0x04
	OpPushTrue  Op = 0x05
	OpPushFalse Op = 0x06
	OpGetLocal  Op = 0x07
	OpPutLocal  Op = 0x08
	OpDup       Op = 0x09
	OpDrop      Op = 0x0A
	OpAdd       Op = 0x0B
	OpSub       Op = 0x0C
	OpMul       Op = 0x0D
	OpDiv       Op = 0x0E
	OpMod       Op = 0x0F
	OpBitAnd    Op = 0x10
	OpBitOr     Op = 0x11
	OpBitXor    Op = 0x12
	OpShl       Op = 0x13
	OpShr       Op = 0x14
	OpUShr      Op = 0x15
	OpEq        Op = 0x16
	OpNeq       Op = 0x17
	OpStrictEq  Op = 0x18
	OpStrictNeq Op = 0x19
	OpLt        Op = 0x1A
	OpLte       Op = 0x1B
	OpGt        Op = 0x1C
	OpGte       Op = 0x1D
	OpNot       Op = 0x1E
	OpNeg       Op = 0x1F
	OpIfFalse   Op = 0x20
	OpGoto      Op = 0x21
	OpReturn    Op = 0x22
	OpReturnUndef Op = 0x23
	OpCall      Op = 0x24
	OpGetField  Op = 0x25
	OpPutField  Op = 0x26
	OpThrow     Op = 0x27
)

// OpInfo is the closed-table entry (§4.7): mnemonic, operand kind,
// declared net stack effect (variadic opcodes recompute it from the
// decoded operand), category, and throw/side-effect flags.
type OpInfo struct {
	Mnemonic      string
	Operand       OperandKind
	StackEffect   int
	Category      Category
	MayThrow      bool
	HasSideEffect bool
}

var opcodeTable = map[Op]OpInfo{
	OpPushConst:   {"push_const", OperandConstIdx, 1, CatStack, false, false},
	OpPushInt:     {"push_int", OperandImmediate, 1, CatStack, false, false},
	OpPushUndef:   {"push_undefined", OperandNone, 1, CatStack, false, false},
	OpPushNull:    {"push_null", OperandNone, 1, CatStack, false, false},
	OpPushTrue:    {"push_true", OperandNone, 1, CatStack, false, false},
	OpPushFalse:   {"push_false", OperandNone, 1, CatStack, false, false},
	OpGetLocal:    {"get_local", OperandLocalIdx, 1, CatVariable, false, false},
	OpPutLocal:    {"put_local", OperandLocalIdx, -1, CatVariable, false, true},
	OpDup:         {"dup", OperandNone, 1, CatStack, false, false},
	OpDrop:        {"drop", OperandNone, -1, CatStack, false, false},
	OpAdd:         {"add", OperandNone, -1, CatArithmetic, false, false},
	OpSub:         {"sub", OperandNone, -1, CatArithmetic, false, false},
	OpMul:         {"mul", OperandNone, -1, CatArithmetic, false, false},
	OpDiv:         {"div", OperandNone, -1, CatArithmetic, false, false},
	OpMod:         {"mod", OperandNone, -1, CatArithmetic, false, false},
	OpBitAnd:      {"bit_and", OperandNone, -1, CatArithmetic, false, false},
	OpBitOr:       {"bit_or", OperandNone, -1, CatArithmetic, false, false},
	OpBitXor:      {"bit_xor", OperandNone, -1, CatArithmetic, false, false},
	OpShl:         {"shl", OperandNone, -1, CatArithmetic, false, false},
	OpShr:         {"shr", OperandNone, -1, CatArithmetic, false, false},
	OpUShr:        {"ushr", OperandNone, -1, CatArithmetic, false, false},
	OpEq:          {"eq", OperandNone, -1, CatComparison, false, false},
	OpNeq:         {"neq", OperandNone, -1, CatComparison, false, false},
	OpStrictEq:    {"strict_eq", OperandNone, -1, CatComparison, false, false},
	OpStrictNeq:   {"strict_neq", OperandNone, -1, CatComparison, false, false},
	OpLt:          {"lt", OperandNone, -1, CatComparison, false, false},
	OpLte:         {"lte", OperandNone, -1, CatComparison, false, false},
	OpGt:          {"gt", OperandNone, -1, CatComparison, false, false},
	OpGte:         {"gte", OperandNone, -1, CatComparison, false, false},
	OpNot:         {"not", OperandNone, 0, CatLogical, false, false},
	OpNeg:         {"neg", OperandNone, 0, CatArithmetic, false, false},
	OpIfFalse:     {"if_false", OperandBranchOffset, -1, CatControlFlow, false, false},
	OpGoto:        {"goto", OperandBranchOffset, 0, CatControlFlow, false, false},
	OpReturn:      {"return", OperandNone, -1, CatControlFlow, false, false},
	OpReturnUndef: {"return_undef", OperandNone, 0, CatControlFlow, false, false},
	OpCall:        {"call", OperandArgCount, 0, CatFunction, true, true},
	OpGetField:    {"get_field", OperandAtomIdx, 0, CatProperty, true, false},
	OpPutField:    {"put_field", OperandAtomIdx, -2, CatProperty, true, true},
	OpThrow:       {"throw", OperandNone, -1, CatControlFlow, true, false},
}

func constToLiteral(f *ir.Factory, pos ir.Position, c ConstEntry) *ir.Literal {
	switch c.Kind {
	case ConstNumber:
		return f.Literal(pos, ir.NewLiteralNumber(c.Number))
	case ConstString:
		return f.Literal(pos, ir.NewLiteralString(c.String))
	case ConstBoolean:
		return f.Literal(pos, ir.NewLiteralBool(c.Boolean))
	case ConstNull:
		return f.Literal(pos, ir.NewLiteralNull())
	default:
		return f.Literal(pos, ir.NewLiteralUndefined())
	}
}
