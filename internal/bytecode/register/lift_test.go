package register

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

func putI32(buf *bytes.Buffer, n int32) { putU32(buf, uint32(n)) }

func putF64(buf *bytes.Buffer, v float64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], math.Float64bits(v))
	buf.Write(b[:])
}

// buildModule assembles a one-function module whose opcode stream is bc.
func buildModule(t *testing.T, regCount, paramCount int, bc []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	buf.Write(magic[:])
	putU32(&buf, 1) // version
	putU32(&buf, 0) // flags
	putU32(&buf, 1) // function count

	putVarint(&buf, uint64(regCount))
	putVarint(&buf, uint64(paramCount))
	putVarint(&buf, 8) // stack size hint
	putVarint(&buf, 0) // scope descriptor
	putVarint(&buf, 0) // const pool count
	putVarint(&buf, uint64(len(bc)))
	buf.Write(bc)

	return buf.Bytes()
}

// TestLift_AddOverAccumulatorAndRegister mirrors spec scenario 5: LdaSmi 5,
// Star r0, LdaSmi 7, Add r0, Return should lift to a function whose CFG
// contains an acc = r0 + acc binary-add assignment and a return reading acc.
func TestLift_AddOverAccumulatorAndRegister(t *testing.T) {
	var bc bytes.Buffer
	bc.WriteByte(byte(OpLdaSmi))
	putI32(&bc, 5)
	bc.WriteByte(byte(OpStar))
	putVarint(&bc, 0)
	bc.WriteByte(byte(OpLdaSmi))
	putI32(&bc, 7)
	bc.WriteByte(byte(OpAdd))
	putVarint(&bc, 0)
	bc.WriteByte(byte(OpReturn))

	data := buildModule(t, 1, 0, bc.Bytes())

	state, diags := Lift(data, 0.5)
	for _, d := range diags {
		t.Logf("diag: %s %s", d.Code, d.Message)
	}
	require.Len(t, state.Functions, 1)

	fs := state.Functions[0]
	var retBlock *cfg.BasicBlock
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
			}
		}
		if b.Terminator.Kind == cfg.TermReturn {
			retBlock = b
		}
	}
	assert.True(t, foundSum, "expected an acc = r0 + acc style binary add assignment")
	require.NotNil(t, retBlock)
	assert.NotNil(t, retBlock.Terminator.ReturnValue)
}

func TestLift_LowConfidenceFunctionIsSkippedWithWarning(t *testing.T) {
	var bc bytes.Buffer
	bc.WriteByte(byte(OpReturnUndefined))

	data := buildModule(t, 0, 0, bc.Bytes())

	state, diags := Lift(data, 0.9)
	assert.Empty(t, state.Functions)

	var sawWarning bool
	for _, d := range diags {
		if d.Code == "D0502" {
			sawWarning = true
		}
	}
	assert.True(t, sawWarning)
}

func TestParseModule_BadMagicReturnsDiagnosticNotError(t *testing.T) {
	mod, diags := ParseModule([]byte("nope"))
	require.NotNil(t, mod)
	require.NotEmpty(t, diags)
	assert.Equal(t, "D0500", diags[0].Code)
}
