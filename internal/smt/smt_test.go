package smt

import (
	"context"
	"testing"

	"deobf/internal/ir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranslate_SimpleComparisonRoundTrips(t *testing.T) {
	f := ir.NewFactory()
	e := f.Binary(ir.Position{}, ir.OpStrictEq, f.Identifier(ir.Position{}, "x"), f.Identifier(ir.Position{}, "x"))

	out, ok := Translate(e, 100)
	require.True(t, ok)
	assert.Equal(t, "(= x x)", out.String())
}

func TestTranslate_BailsOnCall(t *testing.T) {
	f := ir.NewFactory()
	e := f.Call(ir.Position{}, f.Identifier(ir.Position{}, "f"), "f", nil)

	_, ok := Translate(e, 100)
	assert.False(t, ok)
}

func TestTranslate_BailsOnComplexityBudget(t *testing.T) {
	f := ir.NewFactory()
	e := ir.Expr(f.Literal(ir.Position{}, ir.NewLiteralBool(true)))
	for i := 0; i < 10; i++ {
		e = f.Unary(ir.Position{}, ir.OpNot, e)
	}

	_, ok := Translate(e, 3)
	assert.False(t, ok)
}

func TestMockSolver_RecognisesSelfEquality(t *testing.T) {
	m := NewMockSolver()
	ctx := context.Background()

	negated := UnOp{Op: "not", Arg: BinOp{Op: "=", Left: Var{Name: "x", Sort_: SortInt}, Right: Var{Name: "x", Sort_: SortInt}, ResSort: SortBool}, ResSort: SortBool}
	require.NoError(t, m.Assert(ctx, negated))
	v, err := m.Check(ctx)
	require.NoError(t, err)
	assert.Equal(t, Unsat, v, "not(x = x) must be unsatisfiable")
}

func TestMockSolver_UnknownConstructStaysUnknown(t *testing.T) {
	m := NewMockSolver()
	ctx := context.Background()

	require.NoError(t, m.Assert(ctx, BinOp{Op: "<", Left: Var{Name: "x", Sort_: SortInt}, Right: Var{Name: "y", Sort_: SortInt}, ResSort: SortBool}))
	v, err := m.Check(ctx)
	require.NoError(t, err)
	assert.Equal(t, Unknown, v)
}

func TestParseResponse(t *testing.T) {
	assert.Equal(t, Sat, parseResponse("sat"))
	assert.Equal(t, Unsat, parseResponse("unsat"))
	assert.Equal(t, Unknown, parseResponse("unknown"))
	assert.Equal(t, Unknown, parseResponse(`(error "line 1: unexpected token")`))
}
