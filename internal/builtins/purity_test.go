package builtins

import (
	"testing"

	"deobf/internal/ir"
	"github.com/stretchr/testify/assert"
)

func TestClassify_KnownBuiltins(t *testing.T) {
	assert.True(t, IsSideEffectFree("Math.abs"))
	assert.True(t, IsDeterministic("Math.abs"))

	assert.True(t, IsSideEffectFree("Math.random"))
	assert.False(t, IsDeterministic("Math.random"))

	assert.False(t, IsSideEffectFree("console.log"))
	assert.False(t, IsDeterministic("console.log"))
}

func TestClassify_UnknownCalleeIsNeither(t *testing.T) {
	assert.False(t, IsSideEffectFree("someUserFunction"))
	assert.False(t, IsDeterministic("someUserFunction"))
	_, ok := Classify("someUserFunction")
	assert.False(t, ok)
}

func TestEval_MathAbs(t *testing.T) {
	v, ok := Eval("Math.abs", []ir.LiteralValue{ir.NewLiteralNumber(-4)})
	assert.True(t, ok)
	assert.Equal(t, 4.0, v.Number)
}

func TestEval_NonDeterministicRefuses(t *testing.T) {
	_, ok := Eval("Math.random", nil)
	assert.False(t, ok)
}

func TestEval_WrongArgKindRefuses(t *testing.T) {
	_, ok := Eval("Math.abs", []ir.LiteralValue{ir.NewLiteralString("x")})
	assert.False(t, ok)
}
