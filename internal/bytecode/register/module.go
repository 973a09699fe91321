// Package register lifts the register+accumulator ("V8I") bytecode module
// format to IR (§4.8). Its parser follows the same hand-rolled
// varint/header-reading idiom as internal/bytecode/stack (there is no
// teacher equivalent of a bytecode reader), but its failure model is
// deliberately looser: §4.8 asks a malformed tail to downgrade to a
// warning and a minimal module rather than fail outright, unlike the
// stack engine's harder per-field structural errors.
package register

import (
	"encoding/binary"
	"math"

	"deobf/internal/errors"
	"deobf/internal/ir"
)

var magic = [4]byte{'V', 'I', 'R', 'S'}

type ConstKind byte

const (
	ConstNumber ConstKind = iota
	ConstString
	ConstBoolean
	ConstNull
	ConstUndefined
)

type ConstEntry struct {
	Kind    ConstKind
	Number  float64
	String  string
	Boolean bool
}

// FunctionDef is one function record (§6): register file size, parameter
// count, a stack-size hint carried through but not used by this lifter,
// and an opaque scope descriptor (kept only for round-trip fidelity).
type FunctionDef struct {
	RegisterCount   int
	ParamCount      int
	StackSizeHint   int
	ScopeDescriptor int
	ConstPool       []ConstEntry
	Opcodes         []byte
}

type Module struct {
	Version   uint32
	Flags     uint32
	Functions []FunctionDef
}

// ParseModule parses a register-engine module. A bad magic is the one
// unrecoverable error (§4.8); every other malformed field downgrades to a
// CodeRegisterMalformedTail warning and stops reading further functions,
// keeping whatever was already parsed rather than failing the whole
// module.
func ParseModule(data []byte) (*Module, []*errors.Diagnostic) {
	r := &cursor{data: data}

	var hdr [4]byte
	if !r.readBytes(hdr[:]) || hdr != magic {
		return &Module{}, []*errors.Diagnostic{
			errors.NewStructural(errors.CodeRegisterBadMagic, "module magic did not match 'VIRS'", ir.Position{}, nil),
		}
	}

	version, ok := r.readU32()
	if !ok {
		return &Module{}, []*errors.Diagnostic{errors.NewWarning(errors.CodeRegisterMalformedTail, "module truncated in header", ir.Position{})}
	}
	flags, ok := r.readU32()
	if !ok {
		return &Module{Version: version}, []*errors.Diagnostic{errors.NewWarning(errors.CodeRegisterMalformedTail, "module truncated in header", ir.Position{})}
	}
	funcCount, ok := r.readU32()
	if !ok {
		return &Module{Version: version, Flags: flags}, []*errors.Diagnostic{errors.NewWarning(errors.CodeRegisterMalformedTail, "module truncated in header", ir.Position{})}
	}

	mod := &Module{Version: version, Flags: flags}
	var diags []*errors.Diagnostic

	for i := uint32(0); i < funcCount; i++ {
		fn, ok := parseFunctionDef(r)
		if !ok {
			diags = append(diags, errors.NewWarning(errors.CodeRegisterMalformedTail,
				"trailing bytes after the last function could not be parsed", ir.Position{}))
			break
		}
		mod.Functions = append(mod.Functions, fn)
	}

	return mod, diags
}

func parseFunctionDef(r *cursor) (FunctionDef, bool) {
	var fn FunctionDef
	var ok bool

	if fn.RegisterCount, ok = r.readVarintInt(); !ok {
		return fn, false
	}
	if fn.ParamCount, ok = r.readVarintInt(); !ok {
		return fn, false
	}
	if fn.StackSizeHint, ok = r.readVarintInt(); !ok {
		return fn, false
	}
	if fn.ScopeDescriptor, ok = r.readVarintInt(); !ok {
		return fn, false
	}
	constCount, ok := r.readVarintInt()
	if !ok {
		return fn, false
	}
	for i := 0; i < constCount; i++ {
		ce, ok := parseConstEntry(r)
		if !ok {
			return fn, false
		}
		fn.ConstPool = append(fn.ConstPool, ce)
	}
	opLen, ok := r.readVarintInt()
	if !ok {
		return fn, false
	}
	opcodes, ok := r.readBytesN(opLen)
	if !ok {
		return fn, false
	}
	fn.Opcodes = opcodes
	return fn, true
}

func parseConstEntry(r *cursor) (ConstEntry, bool) {
	kindByte, ok := r.readByte()
	if !ok {
		return ConstEntry{}, false
	}
	switch ConstKind(kindByte) {
	case ConstNumber:
		var buf [8]byte
		if !r.readBytes(buf[:]) {
			return ConstEntry{}, false
		}
		return ConstEntry{Kind: ConstNumber, Number: math.Float64frombits(binary.LittleEndian.Uint64(buf[:]))}, true
	case ConstString:
		n, ok := r.readVarintInt()
		if !ok {
			return ConstEntry{}, false
		}
		s, ok := r.readBytesN(n)
		if !ok {
			return ConstEntry{}, false
		}
		return ConstEntry{Kind: ConstString, String: string(s)}, true
	case ConstBoolean:
		b, ok := r.readByte()
		if !ok {
			return ConstEntry{}, false
		}
		return ConstEntry{Kind: ConstBoolean, Boolean: b != 0}, true
	case ConstNull:
		return ConstEntry{Kind: ConstNull}, true
	case ConstUndefined:
		return ConstEntry{Kind: ConstUndefined}, true
	default:
		return ConstEntry{}, false
	}
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
