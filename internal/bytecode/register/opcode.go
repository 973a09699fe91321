package register

// AccUse is an opcode's declared accumulator-use mode (§4.8).
type AccUse int

const (
	AccNone AccUse = iota
	AccRead
	AccWrite
	AccReadWrite
)

// OperandKind closes the set of operand shapes an opcode may carry.
type OperandKind int

const (
	OperandNone OperandKind = iota
	OperandImmediate
	OperandConstIdx
	OperandReg
	OperandRegPair
	OperandBranchOffset
)

type Op byte

const (
	OpLdaSmi          Op = 0x01
	OpLdaConst        Op = 0x02
	OpLdaUndefined    Op = 0x03
	OpLdaNull         Op = 0x04
	OpLdaTrue         Op = 0x05
	OpLdaFalse        Op = 0x06
	OpLdar            Op = 0x07
	OpStar            Op = 0x08
	OpMov             Op = 0x09
	OpAdd             Op = 0x0A
	OpSub             Op = 0x0B
	OpMul             Op = 0x0C
	OpDiv             Op = 0x0D
	OpMod             Op = 0x0E
	OpBitAnd          Op = 0x0F
	OpBitOr           Op = 0x10
	OpBitXor          Op = 0x11
	OpShl             Op = 0x12
	OpShr             Op = 0x13
	OpUShr            Op = 0x14
	OpTestEq          Op = 0x15
	OpTestNeq         Op = 0x16
	OpTestEqStrict    Op = 0x17
	OpTestNeqStrict   Op = 0x18
	OpTestLt          Op = 0x19
	OpTestLte         Op = 0x1A
	OpTestGt          Op = 0x1B
	OpTestGte         Op = 0x1C
	OpToBooleanNot    Op = 0x1D
	OpNeg             Op = 0x1E
	OpJumpIfFalse     Op = 0x1F
	OpJump            Op = 0x20
	OpReturn          Op = 0x21
	OpReturnUndefined Op = 0x22
	OpGetNamedProp    Op = 0x23
	OpSetNamedProp    Op = 0x24
	OpCallNoArgs      Op = 0x25
	OpCallReg1        Op = 0x26
	OpThrow           Op = 0x27
)

type OpInfo struct {
	Mnemonic string
	Operand  OperandKind
	Acc      AccUse
}

var opcodeTable = map[Op]OpInfo{
	OpLdaSmi:          {"LdaSmi", OperandImmediate, AccWrite},
	OpLdaConst:        {"LdaConst", OperandConstIdx, AccWrite},
	OpLdaUndefined:    {"LdaUndefined", OperandNone, AccWrite},
	OpLdaNull:         {"LdaNull", OperandNone, AccWrite},
	OpLdaTrue:         {"LdaTrue", OperandNone, AccWrite},
	OpLdaFalse:        {"LdaFalse", OperandNone, AccWrite},
	OpLdar:            {"Ldar", OperandReg, AccWrite},
	OpStar:            {"Star", OperandReg, AccRead},
	OpMov:             {"Mov", OperandRegPair, AccNone},
	OpAdd:             {"Add", OperandReg, AccReadWrite},
	OpSub:             {"Sub", OperandReg, AccReadWrite},
	OpMul:             {"Mul", OperandReg, AccReadWrite},
	OpDiv:             {"Div", OperandReg, AccReadWrite},
	OpMod:             {"Mod", OperandReg, AccReadWrite},
	OpBitAnd:          {"BitAnd", OperandReg, AccReadWrite},
	OpBitOr:           {"BitOr", OperandReg, AccReadWrite},
	OpBitXor:          {"BitXor", OperandReg, AccReadWrite},
	OpShl:             {"Shl", OperandReg, AccReadWrite},
	OpShr:             {"Shr", OperandReg, AccReadWrite},
	OpUShr:            {"UShr", OperandReg, AccReadWrite},
	OpTestEq:          {"TestEq", OperandReg, AccReadWrite},
	OpTestNeq:         {"TestNeq", OperandReg, AccReadWrite},
	OpTestEqStrict:    {"TestEqStrict", OperandReg, AccReadWrite},
	OpTestNeqStrict:   {"TestNeqStrict", OperandReg, AccReadWrite},
	OpTestLt:          {"TestLt", OperandReg, AccReadWrite},
	OpTestLte:         {"TestLte", OperandReg, AccReadWrite},
	OpTestGt:          {"TestGt", OperandReg, AccReadWrite},
	OpTestGte:         {"TestGte", OperandReg, AccReadWrite},
	OpToBooleanNot:    {"ToBooleanNot", OperandNone, AccReadWrite},
	OpNeg:             {"Neg", OperandNone, AccReadWrite},
	OpJumpIfFalse:     {"JumpIfFalse", OperandBranchOffset, AccRead},
	OpJump:            {"Jump", OperandBranchOffset, AccNone},
	OpReturn:          {"Return", OperandNone, AccRead},
	OpReturnUndefined: {"ReturnUndefined", OperandNone, AccNone},
	OpGetNamedProp:    {"GetNamedProperty", OperandConstIdx, AccReadWrite},
	OpSetNamedProp:    {"SetNamedProperty", OperandRegPair, AccRead}, // operands: (object reg, name-const idx)
	OpCallNoArgs:      {"CallNoArgs", OperandNone, AccReadWrite},
	OpCallReg1:        {"CallReg1", OperandReg, AccReadWrite},
	OpThrow:           {"Throw", OperandNone, AccRead},
}

// Instruction is one decoded opcode within a function's opcode stream.
type Instruction struct {
	Op      Op
	Info    OpInfo
	A, B    int64 // operand values; B only meaningful for OperandRegPair
	Offset  int
	Len     int
	Unknown bool
}
