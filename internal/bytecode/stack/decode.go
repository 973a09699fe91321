package stack

import (
	"encoding/binary"

	"deobf/internal/errors"
	"deobf/internal/ir"
)

// Instruction is one decoded opcode: its mnemonic table entry, decoded
// operand value (meaning depends on Info.Operand), and its byte offset and
// length within the function's bytecode slice.
type Instruction struct {
	Op     Op
	Info   OpInfo
	Arg    int64
	Offset int
	Len    int
	// Unknown is true for an unrecognised opcode byte (§4.7's failure
	// model): Op/Info/Arg are meaningless, the instruction occupies
	// exactly one byte, and a warning has already been recorded for it.
	Unknown bool
}

// decodeFunction decodes a function's bytecode slice into a flat
// instruction list. An unknown opcode is skipped one byte at a time with a
// warning (never aborts the module); a truncated operand aborts this
// function only, per §4.7.
func decodeFunction(bc []byte) ([]Instruction, []*errors.Diagnostic, error) {
	var out []Instruction
	var diags []*errors.Diagnostic
	pos := 0

	for pos < len(bc) {
		opByte := bc[pos]
		info, known := opcodeTable[Op(opByte)]
		if !known {
			diags = append(diags, errors.NewWarning(errors.CodeStackUnknownOpcode,
				"unrecognised stack opcode byte skipped", ir.Position{Offset: pos}))
			out = append(out, Instruction{Offset: pos, Len: 1, Unknown: true})
			pos++
			continue
		}

		start := pos
		pos++
		var arg int64

		switch info.Operand {
		case OperandNone:
			// no operand bytes
		case OperandImmediate, OperandBranchOffset:
			if pos+4 > len(bc) {
				return out, diags, errors.NewStructural(errors.CodeStackTruncatedOperand,
					"instruction operand ran past end of bytecode", ir.Position{Offset: start}, nil)
			}
			arg = int64(int32(binary.LittleEndian.Uint32(bc[pos : pos+4])))
			pos += 4
		case OperandConstIdx, OperandLocalIdx, OperandAtomIdx, OperandArgCount:
			v, n, ok := readVarintAt(bc, pos)
			if !ok {
				return out, diags, errors.NewStructural(errors.CodeStackTruncatedOperand,
					"instruction operand ran past end of bytecode", ir.Position{Offset: start}, nil)
			}
			arg = int64(v)
			pos += n
		}

		out = append(out, Instruction{Op: Op(opByte), Info: info, Arg: arg, Offset: start, Len: pos - start})
	}

	return out, diags, nil
}

func readVarintAt(data []byte, pos int) (uint64, int, bool) {
	var result uint64
	var shift uint
	n := 0
	for {
		if pos+n >= len(data) {
			return 0, 0, false
		}
		b := data[pos+n]
		result |= uint64(b&0x7f) << shift
		n++
		if b&0x80 == 0 {
			return result, n, true
		}
		shift += 7
		if shift > 63 {
			return 0, 0, false
		}
	}
}
