package constprop

import (
	"testing"

	"deobf/internal/ir"
	"deobf/internal/pass"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func program(body []ir.Stmt) *ir.Program {
	f := ir.NewFactory()
	fn := f.FunctionDecl(ir.Position{}, "main", nil, f.Block(ir.Position{}, body))
	return &ir.Program{Functions: []*ir.FunctionDecl{fn}}
}

func findCall(stmts []ir.Stmt, name string) *ir.Call {
	for _, s := range stmts {
		if es, ok := s.(*ir.ExprStatement); ok {
			if call, ok := es.Expression.(*ir.Call); ok && call.CalleeName == name {
				return call
			}
		}
	}
	return nil
}

func TestPass_FoldsArithmeticThroughLinearDefs(t *testing.T) {
	f := ir.NewFactory()
	declX := f.VariableDecl(ir.Position{}, ir.KindLet, []*ir.Declarator{{Name: "x", Init: f.Literal(ir.Position{}, ir.NewLiteralNumber(2))}})
	declY := f.VariableDecl(ir.Position{}, ir.KindLet, []*ir.Declarator{{Name: "y", Init: f.Binary(ir.Position{}, ir.OpAdd, f.Identifier(ir.Position{}, "x"), f.Literal(ir.Position{}, ir.NewLiteralNumber(3)))}})
	use := f.ExprStatement(ir.Position{}, f.Call(ir.Position{}, f.Identifier(ir.Position{}, "use"), "use", []ir.Expr{f.Identifier(ir.Position{}, "y")}))

	prog := program([]ir.Stmt{declX, declY, use})
	state, diags := pass.Lower(prog)
	require.Empty(t, diags)

	p := New()
	state, changed, diags, err := p.Run(state, pass.DefaultConfig())
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Empty(t, diags)

	call := findCall(state.Functions[0].CFG.Entry.Instructions, "use")
	require.NotNil(t, call)
	require.Len(t, call.Args, 1)
	lit, ok := call.Args[0].(*ir.Literal)
	require.True(t, ok, "expected the use() argument to be folded to a literal")
	assert.Equal(t, 5.0, lit.Value.Number)
}

func TestPass_FoldsAlwaysTrueBranch(t *testing.T) {
	f := ir.NewFactory()
	test := f.Literal(ir.Position{}, ir.NewLiteralBool(true))
	then := f.ExprStatement(ir.Position{}, f.Call(ir.Position{}, f.Identifier(ir.Position{}, "live"), "live", nil))
	els := f.ExprStatement(ir.Position{}, f.Call(ir.Position{}, f.Identifier(ir.Position{}, "dead"), "dead", nil))
	ifStmt := f.If(ir.Position{}, test, then, els)

	prog := program([]ir.Stmt{ifStmt})
	state, _ := pass.Lower(prog)

	p := New()
	state, changed, _, err := p.Run(state, pass.DefaultConfig())
	require.NoError(t, err)
	assert.True(t, changed)

	var sawDead, sawLive bool
	for _, b := range state.Functions[0].CFG.Blocks {
		if findCall(b.Instructions, "dead") != nil {
			sawDead = true
		}
		if findCall(b.Instructions, "live") != nil {
			sawLive = true
		}
	}
	assert.True(t, sawLive)
	assert.False(t, sawDead, "the unreachable else branch should have been pruned")
}

func TestPass_DeterministicBuiltinFolds(t *testing.T) {
	f := ir.NewFactory()
	call := f.Call(ir.Position{}, f.Identifier(ir.Position{}, "Math.abs"), "Math.abs", []ir.Expr{f.Literal(ir.Position{}, ir.NewLiteralNumber(-9))})
	decl := f.VariableDecl(ir.Position{}, ir.KindLet, []*ir.Declarator{{Name: "r", Init: call}})
	use := f.ExprStatement(ir.Position{}, f.Call(ir.Position{}, f.Identifier(ir.Position{}, "use"), "use", []ir.Expr{f.Identifier(ir.Position{}, "r")}))

	prog := program([]ir.Stmt{decl, use})
	state, _ := pass.Lower(prog)

	p := New()
	state, _, _, err := p.Run(state, pass.DefaultConfig())
	require.NoError(t, err)

	got := findCall(state.Functions[0].CFG.Entry.Instructions, "use")
	require.NotNil(t, got)
	lit, ok := got.Args[0].(*ir.Literal)
	require.True(t, ok)
	assert.Equal(t, 9.0, lit.Value.Number)
}
