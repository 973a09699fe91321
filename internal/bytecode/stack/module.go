// Package stack lifts the stack-engine ("QJS") bytecode module format to
// IR (§4.7). There is no teacher or pack equivalent of a bytecode reader;
// the varint/header parsing here follows the spec's own byte-layout
// description directly, written in the style internal/cfg and internal/ssa
// already established in this repo (small constructor-style helpers, a
// closed opcode table, diagnostics collected rather than returned as a
// single fatal error).
package stack

import (
	"encoding/binary"

	"deobf/internal/errors"
	"deobf/internal/ir"
)

var magic = [4]byte{'q', 'j', 's', 0}

// ConstKind closes the set of constant-pool entry shapes a function's
// constant pool may hold.
type ConstKind byte

const (
	ConstNumber ConstKind = iota
	ConstString
	ConstBoolean
	ConstNull
	ConstUndefined
	ConstObjectRef
)

type ConstEntry struct {
	Kind      ConstKind
	Number    float64
	String    string
	Boolean   bool
	ObjectRef int
}

// FunctionDef is one function definition record from the module (§6).
type FunctionDef struct {
	Flags          uint32
	NameAtom       int
	ParamCount     int
	LocalCount     int
	DefinedArgs    int
	StackDepth     int
	ClosureVars    int
	ConstPool      []ConstEntry
	Bytecode       []byte
	HasDebugBlock  bool
}

const flagHasDebug = 1 << 0

type Module struct {
	Version   uint32
	Flags     uint32
	Atoms     []string
	Functions []FunctionDef
}

func (m *Module) atomName(idx int) string {
	if idx < 0 || idx >= len(m.Atoms) {
		return ""
	}
	return m.Atoms[idx]
}

// ParseModule parses a stack-engine module per §6's layout. A bad magic,
// a truncated header or a truncated atom table is a structural error that
// aborts the whole module (there is nothing recoverable to lift). A
// malformed function record is reported as a diagnostic and stops parsing
// at that record: the functions before it are kept, the ones after it are
// not read.
func ParseModule(data []byte) (*Module, []*errors.Diagnostic, error) {
	r := newReader(data)

	var hdr [4]byte
	if !r.readBytes(hdr[:]) {
		return nil, nil, errors.NewStructural(errors.CodeStackBadMagic, "module shorter than the header", ir.Position{}, nil)
	}
	if hdr != magic {
		return nil, nil, errors.NewStructural(errors.CodeStackBadMagic, "module magic did not match 'qjs\\0'", ir.Position{}, nil)
	}

	version, ok := r.readU32()
	if !ok {
		return nil, nil, errors.NewStructural(errors.CodeStackBadMagic, "module truncated in header", ir.Position{}, nil)
	}
	flags, ok := r.readU32()
	if !ok {
		return nil, nil, errors.NewStructural(errors.CodeStackBadMagic, "module truncated in header", ir.Position{}, nil)
	}
	atomCount, ok := r.readU32()
	if !ok {
		return nil, nil, errors.NewStructural(errors.CodeStackBadMagic, "module truncated in header", ir.Position{}, nil)
	}
	funcCount, ok := r.readU32()
	if !ok {
		return nil, nil, errors.NewStructural(errors.CodeStackBadMagic, "module truncated in header", ir.Position{}, nil)
	}

	mod := &Module{Version: version, Flags: flags}

	var diags []*errors.Diagnostic

	for i := uint32(0); i < atomCount; i++ {
		n, ok := r.readVarint()
		if !ok {
			return mod, diags, errors.NewStructural(errors.CodeStackTruncatedOperand, "atom table truncated", ir.Position{}, nil)
		}
		s, ok := r.readString(int(n))
		if !ok {
			return mod, diags, errors.NewStructural(errors.CodeStackTruncatedOperand, "atom table truncated", ir.Position{}, nil)
		}
		mod.Atoms = append(mod.Atoms, s)
	}

	for i := uint32(0); i < funcCount; i++ {
		fn, d, err := parseFunctionDef(r)
		diags = append(diags, d...)
		if err != nil {
			// A malformed function header leaves the reader position
			// unrecoverable for subsequent functions; stop reading the
			// module but keep whatever functions were already parsed.
			diags = append(diags, errors.NewStructural(errors.CodeStackTruncatedOperand, err.Error(), ir.Position{}, err))
			break
		}
		mod.Functions = append(mod.Functions, fn)
	}

	return mod, diags, nil
}

func parseFunctionDef(r *reader) (FunctionDef, []*errors.Diagnostic, error) {
	var fn FunctionDef
	var diags []*errors.Diagnostic

	flags, ok := r.readU32()
	if !ok {
		return fn, diags, errTruncated
	}
	fn.Flags = flags
	fn.HasDebugBlock = flags&flagHasDebug != 0

	readVar := func() (int, bool) {
		v, ok := r.readVarint()
		return int(v), ok
	}

	var ok2 bool
	if fn.NameAtom, ok2 = readVar(); !ok2 {
		return fn, diags, errTruncated
	}
	if fn.ParamCount, ok2 = readVar(); !ok2 {
		return fn, diags, errTruncated
	}
	if fn.LocalCount, ok2 = readVar(); !ok2 {
		return fn, diags, errTruncated
	}
	if fn.DefinedArgs, ok2 = readVar(); !ok2 {
		return fn, diags, errTruncated
	}
	if fn.StackDepth, ok2 = readVar(); !ok2 {
		return fn, diags, errTruncated
	}
	if fn.ClosureVars, ok2 = readVar(); !ok2 {
		return fn, diags, errTruncated
	}
	constCount, ok3 := readVar()
	if !ok3 {
		return fn, diags, errTruncated
	}
	for i := 0; i < constCount; i++ {
		ce, err := parseConstEntry(r)
		if err != nil {
			return fn, diags, err
		}
		fn.ConstPool = append(fn.ConstPool, ce)
	}

	bcSize, ok4 := readVar()
	if !ok4 {
		return fn, diags, errTruncated
	}
	bc, ok5 := r.readBytesN(bcSize)
	if !ok5 {
		return fn, diags, errTruncated
	}
	fn.Bytecode = bc

	if fn.HasDebugBlock {
		dbgLen, okd := readVar()
		if !okd {
			return fn, diags, errTruncated
		}
		if _, okd := r.readBytesN(dbgLen); !okd {
			return fn, diags, errTruncated
		}
	}

	return fn, diags, nil
}

func parseConstEntry(r *reader) (ConstEntry, error) {
	kindByte, ok := r.readByte()
	if !ok {
		return ConstEntry{}, errTruncated
	}
	switch ConstKind(kindByte) {
	case ConstNumber:
		var buf [8]byte
		if !r.readBytes(buf[:]) {
			return ConstEntry{}, errTruncated
		}
		bits := binary.LittleEndian.Uint64(buf[:])
		return ConstEntry{Kind: ConstNumber, Number: float64frombits(bits)}, nil
	case ConstString:
		n, ok := r.readVarint()
		if !ok {
			return ConstEntry{}, errTruncated
		}
		s, ok := r.readString(int(n))
		if !ok {
			return ConstEntry{}, errTruncated
		}
		return ConstEntry{Kind: ConstString, String: s}, nil
	case ConstBoolean:
		b, ok := r.readByte()
		if !ok {
			return ConstEntry{}, errTruncated
		}
		return ConstEntry{Kind: ConstBoolean, Boolean: b != 0}, nil
	case ConstNull:
		return ConstEntry{Kind: ConstNull}, nil
	case ConstUndefined:
		return ConstEntry{Kind: ConstUndefined}, nil
	case ConstObjectRef:
		idx, ok := r.readVarint()
		if !ok {
			return ConstEntry{}, errTruncated
		}
		return ConstEntry{Kind: ConstObjectRef, ObjectRef: int(idx)}, nil
	default:
		return ConstEntry{}, errTruncated
	}
}
