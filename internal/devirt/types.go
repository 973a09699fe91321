// Package devirt reverses interpreter-based obfuscation: source code
// rewritten as a dispatch loop over a bytecode array. It operates
// directly on a function's statement tree (§4.9's pattern lives at the
// while/switch level, before a function has been lowered to a cfg.Graph)
// and hands its output back as an ordinary ir.Program the rest of the
// pipeline can re-ingest.
package devirt

import "deobf/internal/ir"

// Kind classifies the virtual machine a dispatcher implements.
type Kind int

const (
	KindUnknown Kind = iota
	KindStackBased
	KindRegisterBased
	KindHybrid
)

func (k Kind) String() string {
	switch k {
	case KindStackBased:
		return "stack-based"
	case KindRegisterBased:
		return "register-based"
	case KindHybrid:
		return "hybrid"
	default:
		return "unknown"
	}
}

// ControlEffect classifies what a handler does to control flow.
type ControlEffect int

const (
	EffectNone ControlEffect = iota
	EffectJump
	EffectConditional
	EffectReturn
	EffectCall
	EffectThrow
)

// Category closes the opcode-purpose alphabet named in §4.9.
type Category int

const (
	CategoryUnknown Category = iota
	CategoryArithmetic
	CategoryLoad
	CategoryStore
	CategoryControl
	CategoryComparison
	CategoryLogical
	CategoryStack
	CategoryCall
)

// OpcodeSemantics is everything phase 2 statically extracts about one
// case in the dispatcher's switch.
type OpcodeSemantics struct {
	Value      int64
	RegReads   []int
	RegWrites  []int
	StackPush  bool
	StackPop   bool
	BinaryOp   ir.BinaryOp
	HasBinOp   bool
	Effect     ControlEffect
	Category   Category
	OperandN   int // number of operand-fetch reads (ops[pc++]-shaped) in the handler
	DestIsReg  bool
	// ReturnRegIndex is set when a return/throw handler names a fixed
	// register index directly (`return regs[0]`) rather than fetching it
	// from an operand, matching a zero-operand virtual instruction.
	ReturnRegIndex *int
	Body           []ir.Stmt
	Confidence     float64
}

// Dispatcher is everything phase 1 recovers about a detected interpreter
// loop: its virtual machine kind and the names it threads pc/array/regs
// state through. Opcodes, the per-opcode semantics table, is filled in by
// Devirtualize from phase 2's ExtractSemantics.
type Dispatcher struct {
	Kind       Kind
	PCVar      string
	ArrVar     string
	RegsVar    string
	Opcodes    map[int64]*OpcodeSemantics
	Confidence float64
}
