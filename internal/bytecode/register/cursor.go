package register

import "encoding/binary"

// cursor is the register-engine parser's forward-only byte cursor, the
// same shape as internal/bytecode/stack's reader but kept as a separate
// (smaller) type since this package's tolerant failure model never needs
// to distinguish "truncated" from "malformed" the way the stack lifter
// does — every short read here just becomes the same warning.
type cursor struct {
	data []byte
	pos  int
}

func (c *cursor) readByte() (byte, bool) {
	if c.pos >= len(c.data) {
		return 0, false
	}
	b := c.data[c.pos]
	c.pos++
	return b, true
}

func (c *cursor) readBytes(into []byte) bool {
	if c.pos+len(into) > len(c.data) {
		return false
	}
	copy(into, c.data[c.pos:c.pos+len(into)])
	c.pos += len(into)
	return true
}

func (c *cursor) readBytesN(n int) ([]byte, bool) {
	if n < 0 || c.pos+n > len(c.data) {
		return nil, false
	}
	out := c.data[c.pos : c.pos+n]
	c.pos += n
	return out, true
}

func (c *cursor) readU32() (uint32, bool) {
	var buf [4]byte
	if !c.readBytes(buf[:]) {
		return 0, false
	}
	return binary.LittleEndian.Uint32(buf[:]), true
}

func (c *cursor) readVarint() (uint64, bool) {
	var result uint64
	var shift uint
	for {
		b, ok := c.readByte()
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

func (c *cursor) readVarintInt() (int, bool) {
	v, ok := c.readVarint()
	return int(v), ok
}
