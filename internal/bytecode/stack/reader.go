package stack

import (
	"encoding/binary"
	"errors"
	"math"
)

var errTruncated = errors.New("bytecode: truncated field")

// reader is a forward-only cursor over a module's bytes. Every read method
// reports ok=false instead of panicking on a short buffer, so callers can
// turn that into a scoped structural diagnostic (§4.7's failure model)
// rather than crashing the whole lift.
type reader struct {
	data []byte
	pos  int
}

func newReader(data []byte) *reader { return &reader{data: data} }

func (r *reader) offset() int { return r.pos }

func (r *reader) readByte() (byte, bool) {
	if r.pos >= len(r.data) {
		return 0, false
	}
	b := r.data[r.pos]
	r.pos++
	return b, true
}

func (r *reader) readBytes(into []byte) bool {
	if r.pos+len(into) > len(r.data) {
		return false
	}
	copy(into, r.data[r.pos:r.pos+len(into)])
	r.pos += len(into)
	return true
}

func (r *reader) readBytesN(n int) ([]byte, bool) {
	if n < 0 || r.pos+n > len(r.data) {
		return nil, false
	}
	out := r.data[r.pos : r.pos+n]
	r.pos += n
	return out, true
}

func (r *reader) readU32() (uint32, bool) {
	var buf [4]byte
	if !r.readBytes(buf[:]) {
		return 0, false
	}
	return binary.LittleEndian.Uint32(buf[:]), true
}

func (r *reader) readString(n int) (string, bool) {
	b, ok := r.readBytesN(n)
	if !ok {
		return "", false
	}
	return string(b), true
}

// readVarint decodes a 7-bit-continuation variable-length integer (§4.7):
// each byte contributes its low 7 bits, most-significant group first is
// NOT assumed — this follows the common LEB128 convention of least
// significant group first, continuation bit in the high bit.
func (r *reader) readVarint() (uint64, bool) {
	var result uint64
	var shift uint
	for {
		b, ok := r.readByte()
		if !ok {
			return 0, false
		}
		result |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return result, true
		}
		shift += 7
		if shift > 63 {
			return 0, false
		}
	}
}

func float64frombits(bits uint64) float64 {
	return math.Float64frombits(bits)
}
