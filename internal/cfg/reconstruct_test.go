package cfg

import (
	"testing"

	"deobf/internal/ir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func callStmt(f *ir.Factory, name string) ir.Stmt {
	return f.ExprStatement(ir.Position{}, f.Call(ir.Position{}, f.Identifier(ir.Position{}, name), name, nil))
}

func TestReconstruct_StraightLine(t *testing.T) {
	f := ir.NewFactory()
	g, _, err := Build([]ir.Stmt{callStmt(f, "a"), callStmt(f, "b")})
	require.NoError(t, err)
	ComputeDominance(g)

	stmts := Reconstruct(g)
	require.Len(t, stmts, 2)
	assert.Equal(t, "a", stmts[0].(*ir.ExprStatement).Expression.(*ir.Call).CalleeName)
	assert.Equal(t, "b", stmts[1].(*ir.ExprStatement).Expression.(*ir.Call).CalleeName)
}

func TestReconstruct_IfElseRoundTrips(t *testing.T) {
	f := ir.NewFactory()
	test := f.Identifier(ir.Position{}, "cond")
	ifStmt := f.If(ir.Position{}, test, callStmt(f, "then"), callStmt(f, "else"))
	g, _, err := Build([]ir.Stmt{ifStmt})
	require.NoError(t, err)
	ComputeDominance(g)

	stmts := Reconstruct(g)
	require.Len(t, stmts, 1)
	got, ok := stmts[0].(*ir.If)
	require.True(t, ok, "expected a reconstructed *ir.If, got %T", stmts[0])
	assert.Equal(t, "cond", got.Test.(*ir.Identifier).Name)
	thenBlock := got.Then.(*ir.Block)
	require.Len(t, thenBlock.Body, 1)
	assert.Equal(t, "then", thenBlock.Body[0].(*ir.ExprStatement).Expression.(*ir.Call).CalleeName)
	elseBlock := got.Else.(*ir.Block)
	require.Len(t, elseBlock.Body, 1)
	assert.Equal(t, "else", elseBlock.Body[0].(*ir.ExprStatement).Expression.(*ir.Call).CalleeName)
}

func TestReconstruct_IfWithNoElse(t *testing.T) {
	f := ir.NewFactory()
	ifStmt := f.If(ir.Position{}, f.Identifier(ir.Position{}, "cond"), callStmt(f, "then"), nil)
	g, _, err := Build([]ir.Stmt{ifStmt, callStmt(f, "after")})
	require.NoError(t, err)
	ComputeDominance(g)

	stmts := Reconstruct(g)
	require.Len(t, stmts, 2)
	got := stmts[0].(*ir.If)
	assert.Nil(t, got.Else)
	assert.Equal(t, "after", stmts[1].(*ir.ExprStatement).Expression.(*ir.Call).CalleeName)
}

func TestReconstruct_WhileLoop(t *testing.T) {
	f := ir.NewFactory()
	whileStmt := f.While(ir.Position{}, f.Identifier(ir.Position{}, "cond"), callStmt(f, "body"))
	g, _, err := Build([]ir.Stmt{whileStmt, callStmt(f, "after")})
	require.NoError(t, err)
	ComputeDominance(g)

	stmts := Reconstruct(g)
	require.Len(t, stmts, 2)
	loop, ok := stmts[0].(*ir.While)
	require.True(t, ok, "expected a reconstructed *ir.While, got %T", stmts[0])

	// The loop's header branch becomes a break-guarded if inside a
	// while(true) body, not a textual while(cond) — see emitLoop's doc
	// comment for why that's the chosen, behaviourally-equivalent shape.
	lit, ok := loop.Test.(*ir.Literal)
	require.True(t, ok)
	assert.True(t, lit.Value.Boolean)

	body := loop.Body.(*ir.Block).Body
	require.NotEmpty(t, body)
	assert.Equal(t, "after", stmts[1].(*ir.ExprStatement).Expression.(*ir.Call).CalleeName)
}

func TestReconstruct_FallsBackToFlattenOnSwitch(t *testing.T) {
	f := ir.NewFactory()
	disc := f.Identifier(ir.Position{}, "x")
	var test ir.Expr = f.Literal(ir.Position{}, ir.NewLiteralNumber(1))
	cases := []ir.SwitchCase{
		{Test: &test, Body: []ir.Stmt{callStmt(f, "one")}},
	}
	sw := f.Switch(ir.Position{}, disc, cases)
	g, _, err := Build([]ir.Stmt{sw})
	require.NoError(t, err)
	ComputeDominance(g)

	stmts := Reconstruct(g)
	var sawOne bool
	for _, s := range stmts {
		if blk, ok := s.(*ir.Block); ok {
			for _, inner := range blk.Body {
				if es, ok := inner.(*ir.ExprStatement); ok {
					if call, ok := es.Expression.(*ir.Call); ok && call.CalleeName == "one" {
						sawOne = true
					}
				}
			}
		}
	}
	assert.True(t, sawOne, "flatten fallback must still surface every reachable instruction")
}
