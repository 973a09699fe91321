package register

import "encoding/binary"

// decodeFunction decodes a function's opcode stream into a flat instruction
// list. An unknown opcode byte is recorded as a one-byte Unknown
// instruction and decoding carries on with the next byte; an operand that
// runs past the end of the stream stops decoding. Either case sets the
// returned truncated flag, which the caller turns into a confidence
// penalty rather than a diagnostic, matching this package's "warn, never
// abort hard" stance (§4.8).
func decodeFunction(bc []byte) ([]Instruction, bool) {
	var out []Instruction
	pos := 0
	truncated := false

	for pos < len(bc) {
		opByte := bc[pos]
		info, known := opcodeTable[Op(opByte)]
		if !known {
			out = append(out, Instruction{Offset: pos, Len: 1, Unknown: true})
			pos++
			truncated = true
			continue
		}

		start := pos
		pos++
		var a, b int64

		switch info.Operand {
		case OperandNone:
		case OperandImmediate:
			if pos+4 > len(bc) {
				truncated = true
				pos = len(bc)
				continue
			}
			a = int64(int32(binary.LittleEndian.Uint32(bc[pos : pos+4])))
			pos += 4
		case OperandBranchOffset:
			if pos+4 > len(bc) {
				truncated = true
				pos = len(bc)
				continue
			}
			a = int64(int32(binary.LittleEndian.Uint32(bc[pos : pos+4])))
			pos += 4
		case OperandConstIdx, OperandReg:
			v, n, ok := readVarintAt(bc, pos)
			if !ok {
				truncated = true
				pos = len(bc)
				continue
			}
			a = int64(v)
			pos += n
		case OperandRegPair:
			v1, n1, ok := readVarintAt(bc, pos)
			if !ok {
				truncated = true
				pos = len(bc)
				continue
			}
			pos += n1
			v2, n2, ok := readVarintAt(bc, pos)
			if !ok {
				truncated = true
				pos = len(bc)
				continue
			}
			pos += n2
			a, b = int64(v1), int64(v2)
		}

		out = append(out, Instruction{Op: Op(opByte), Info: info, A: a, B: b, Offset: start, Len: pos - start})
	}

	return out, truncated
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
