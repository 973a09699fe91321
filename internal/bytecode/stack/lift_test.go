package stack

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"

	"deobf/internal/cfg"
	"deobf/internal/ir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func putVarint(buf *bytes.Buffer, n uint64) {
	for {
		b := byte(n & 0x7f)
		n >>= 7
		if n != 0 {
			buf.WriteByte(b | 0x80)
		} else {
			buf.WriteByte(b)
			return
		}
	}
}

func putU32(buf *bytes.Buffer, n uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], n)
	buf.Write(b[:])
}

func putF64(buf *bytes.Buffer, v float64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], math.Float64bits(v))
	buf.Write(b[:])
}

// buildModule assembles a one-function module whose bytecode is bc and
// whose constant pool is the given float64 values (all ConstNumber).
func buildModule(t *testing.T, consts []float64, bc []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	buf.Write(magic[:])
	putU32(&buf, 1) // version
	putU32(&buf, 0) // flags
	putU32(&buf, 0) // atom count
	putU32(&buf, 1) // function count

	putU32(&buf, 0)       // function flags (no debug block)
	putVarint(&buf, 0)    // name atom
	putVarint(&buf, 0)    // param count
	putVarint(&buf, 0)    // local count
	putVarint(&buf, 0)    // defined arg count
	putVarint(&buf, 4)    // stack depth hint
	putVarint(&buf, 0)    // closure var count
	putVarint(&buf, uint64(len(consts)))
	for _, c := range consts {
		buf.WriteByte(byte(ConstNumber))
		putF64(&buf, c)
	}
	putVarint(&buf, uint64(len(bc)))
	buf.Write(bc)

	return buf.Bytes()
}

func TestLift_AddReturnsBinaryOverLiftedConstants(t *testing.T) {
	var bc bytes.Buffer
	bc.WriteByte(byte(OpPushConst))
	putVarint(&bc, 0)
	bc.WriteByte(byte(OpPushConst))
	putVarint(&bc, 1)
	bc.WriteByte(byte(OpAdd))
	bc.WriteByte(byte(OpReturn))

	data := buildModule(t, []float64{1, 2}, bc.Bytes())

	state, diags, err := Lift(data)
	require.NoError(t, err)
	for _, d := range diags {
		t.Logf("diag: %s %s", d.Code, d.Message)
	}
	require.Len(t, state.Functions, 1)

	fs := state.Functions[0]
	var retBlock *cfg.BasicBlock
	var sumTarget ir.SSAName
	var foundSum bool
	for _, b := range fs.CFG.Blocks {
		for _, s := range b.Instructions {
			es, ok := s.(*ir.ExprStatement)
			if !ok {
				continue
			}
			asg, ok := es.Expression.(*ir.Assignment)
			if !ok {
				continue
			}
			if bin, ok := asg.Value.(*ir.Binary); ok && bin.Op == ir.OpAdd {
				foundSum = true
				sumTarget = asg.Target.(*ir.Identifier).SSA
			}
		}
		if b.Terminator.Kind == cfg.TermReturn {
			retBlock = b
		}
	}
	require.True(t, foundSum, "expected an s0 = s0 + s1 style binary add assignment")
	require.NotNil(t, retBlock)
	retID, ok := retBlock.Terminator.ReturnValue.(*ir.Identifier)
	require.True(t, ok, "return value should read the summed SSA name")
	assert.Equal(t, sumTarget, retID.SSA)
}

func TestLift_UnknownOpcodeSkippedWithWarning(t *testing.T) {
	var bc bytes.Buffer
	bc.WriteByte(0xFF) // unknown
	bc.WriteByte(byte(OpReturnUndef))

	data := buildModule(t, nil, bc.Bytes())
	_, diags, err := Lift(data)
	require.NoError(t, err)

	var sawWarning bool
	for _, d := range diags {
		if d.Code == "D0401" {
			sawWarning = true
		}
	}
	assert.True(t, sawWarning)
}

func TestLift_StackUnderflowAbortsJustThatFunction(t *testing.T) {
	var bc bytes.Buffer
	bc.WriteByte(byte(OpAdd)) // nothing pushed yet

	data := buildModule(t, nil, bc.Bytes())
	state, diags, err := Lift(data)
	require.NoError(t, err)
	assert.Empty(t, state.Functions)

	var sawUnderflow bool
	for _, d := range diags {
		if d.Code == "D0403" {
			sawUnderflow = true
		}
	}
	assert.True(t, sawUnderflow)
}

func TestParseModule_BadMagicIsStructuralError(t *testing.T) {
	_, _, err := ParseModule([]byte("nope"))
	require.Error(t, err)
}
