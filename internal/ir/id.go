package ir

import (
	"sync/atomic"

	"github.com/iancoleman/strcase"
)

// NodeID is a process-wide opaque handle. It is monotonically assigned and
// never recycled within a run: once minted, an id continues to identify the
// same logical node even after the node's subtree has been replaced, so a
// pass can compare ids across states to detect structural sharing (§3/§8).
type NodeID uint64

var nodeIDCounter uint64

// NewNodeID mints a fresh, process-wide unique node identifier. Safe for
// concurrent use by independent pipeline invocations (§5).
func NewNodeID() NodeID {
	return NodeID(atomic.AddUint64(&nodeIDCounter, 1))
}

var varNameCounter uint64

// FreshVariableName returns a synthetic variable name derived from hint,
// guaranteed unique within the process. Factory.FreshVar wraps it; the
// bytecode lifters do not use it and name stack slots and virtual
// registers with fixed s%d/local%d/r%d patterns instead.
func FreshVariableName(hint string) string {
	n := atomic.AddUint64(&varNameCounter, 1)
	if hint == "" {
		hint = "tmp"
	}
	return strcase.ToLowerCamel(hint) + "_" + itoa(n)
}

func itoa(n uint64) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}
