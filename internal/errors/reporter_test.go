package errors

import (
	"testing"

	"deobf/internal/ir"
	"github.com/stretchr/testify/assert"
)

func TestReporter_FormatsWarningWithSourceContext(t *testing.T) {
	src := "let x = 1 + 2;\nif (x === 3) foo();\n"
	r := NewReporter("sample.js", src)

	d := NewWarning(CodeMissingReachingDef, "use of x has no reaching definition", ir.Position{Line: 2, Column: 5})
	out := r.Format(d)

	assert.Contains(t, out, "D0100")
	assert.Contains(t, out, "sample.js:2:5")
	assert.Contains(t, out, "if (x === 3) foo();")
}

func TestReporter_StructuralWithoutSourceFallsBackGracefully(t *testing.T) {
	r := NewReporter("", "")
	d := NewStructural(CodeStackStackUnderflow, "stack underflow in function 3", ir.Position{}, assertErr{})
	out := r.Format(d)
	assert.Contains(t, out, "D0403")
	assert.Contains(t, out, "cause:")
}

type assertErr struct{}

func (assertErr) Error() string { return "boom" }
