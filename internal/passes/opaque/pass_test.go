package opaque

import (
	"testing"

	"deobf/internal/ir"
	"deobf/internal/pass"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func findCall(stmts []ir.Stmt, name string) bool {
	for _, s := range stmts {
		if es, ok := s.(*ir.ExprStatement); ok {
			if call, ok := es.Expression.(*ir.Call); ok && call.CalleeName == name {
				return true
			}
		}
	}
	return false
}

func TestPass_CollapsesSelfXorPattern(t *testing.T) {
	f := ir.NewFactory()
	x := f.Identifier(ir.Position{}, "x")
	cond := f.Binary(ir.Position{}, ir.OpStrictEq,
		f.Binary(ir.Position{}, ir.OpBitXor, x, f.Identifier(ir.Position{}, "x")),
		f.Literal(ir.Position{}, ir.NewLiteralNumber(0)))
	then := f.ExprStatement(ir.Position{}, f.Call(ir.Position{}, f.Identifier(ir.Position{}, "live"), "live", nil))
	els := f.ExprStatement(ir.Position{}, f.Call(ir.Position{}, f.Identifier(ir.Position{}, "dead"), "dead", nil))
	ifStmt := f.If(ir.Position{}, cond, then, els)
	fn := f.FunctionDecl(ir.Position{}, "main", []string{"x"}, f.Block(ir.Position{}, []ir.Stmt{ifStmt}))

	state, _ := pass.Lower(&ir.Program{Functions: []*ir.FunctionDecl{fn}})

	p := New(nil)
	state, changed, _, err := p.Run(state, pass.DefaultConfig())
	require.NoError(t, err)
	assert.True(t, changed)

	var sawLive, sawDead bool
	for _, b := range state.Functions[0].CFG.Blocks {
		if findCall(b.Instructions, "live") {
			sawLive = true
		}
		if findCall(b.Instructions, "dead") {
			sawDead = true
		}
	}
	assert.True(t, sawLive)
	assert.False(t, sawDead)
}

func TestPass_UnrecognisedPredicateWithoutSolverStaysUnchanged(t *testing.T) {
	f := ir.NewFactory()
	cond := f.Binary(ir.Position{}, ir.OpLess, f.Identifier(ir.Position{}, "x"), f.Identifier(ir.Position{}, "y"))
	then := f.ExprStatement(ir.Position{}, f.Call(ir.Position{}, f.Identifier(ir.Position{}, "a"), "a", nil))
	els := f.ExprStatement(ir.Position{}, f.Call(ir.Position{}, f.Identifier(ir.Position{}, "b"), "b", nil))
	ifStmt := f.If(ir.Position{}, cond, then, els)
	fn := f.FunctionDecl(ir.Position{}, "main", []string{"x", "y"}, f.Block(ir.Position{}, []ir.Stmt{ifStmt}))

	state, _ := pass.Lower(&ir.Program{Functions: []*ir.FunctionDecl{fn}})

	p := New(nil)
	_, changed, diags, err := p.Run(state, pass.DefaultConfig())
	require.NoError(t, err)
	assert.False(t, changed)
	require.NotEmpty(t, diags)
	assert.Equal(t, "D0300", diags[0].Code)
}

func TestMatchPattern_BareBooleanLiteral(t *testing.T) {
	f := ir.NewFactory()
	v := MatchPattern(f.Literal(ir.Position{}, ir.NewLiteralBool(true)))
	assert.True(t, v.AlwaysTrue)
	assert.Equal(t, 1.0, v.Confidence)
}

func TestMatchPattern_SelfEquality(t *testing.T) {
	f := ir.NewFactory()
	x := f.Identifier(ir.Position{}, "x")
	v := MatchPattern(f.Binary(ir.Position{}, ir.OpStrictEq, x, f.Identifier(ir.Position{}, "x")))
	assert.True(t, v.AlwaysTrue)
	assert.InDelta(t, 0.85, v.Confidence, 0.001)
}
