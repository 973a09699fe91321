package dce

import (
	"testing"

	"deobf/internal/ir"
	"deobf/internal/pass"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func program(fns ...*ir.FunctionDecl) *ir.Program {
	return &ir.Program{Functions: fns}
}

func declStmts(stmts []ir.Stmt, name string) []*ir.VariableDecl {
	var out []*ir.VariableDecl
	for _, s := range stmts {
		if d, ok := s.(*ir.VariableDecl); ok {
			for _, decl := range d.Declarators {
				if decl.Name == name {
					out = append(out, d)
				}
			}
		}
	}
	return out
}

func TestPass_RemovesUnusedPureDeclarator(t *testing.T) {
	f := ir.NewFactory()
	dead := f.VariableDecl(ir.Position{}, ir.KindLet, []*ir.Declarator{{Name: "dead", Init: f.Literal(ir.Position{}, ir.NewLiteralNumber(1))}})
	live := f.VariableDecl(ir.Position{}, ir.KindLet, []*ir.Declarator{{Name: "live", Init: f.Literal(ir.Position{}, ir.NewLiteralNumber(2))}})
	use := f.ExprStatement(ir.Position{}, f.Call(ir.Position{}, f.Identifier(ir.Position{}, "use"), "use", []ir.Expr{f.Identifier(ir.Position{}, "live")}))

	fn := f.FunctionDecl(ir.Position{}, "main", nil, f.Block(ir.Position{}, []ir.Stmt{dead, live, use}))
	state, diags := pass.Lower(program(fn))
	require.Empty(t, diags)

	p := New()
	state, changed, diags, err := p.Run(state, pass.DefaultConfig())
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Empty(t, diags)

	body := state.Functions[0].CFG.Entry.Instructions
	assert.Empty(t, declStmts(body, "dead"))
	assert.NotEmpty(t, declStmts(body, "live"))
}

func TestPass_KeepsUnusedDeclaratorWithUnknownCallInitializer(t *testing.T) {
	f := ir.NewFactory()
	call := f.Call(ir.Position{}, f.Identifier(ir.Position{}, "trackEvent"), "trackEvent", nil)
	decl := f.VariableDecl(ir.Position{}, ir.KindLet, []*ir.Declarator{{Name: "unused", Init: call}})

	fn := f.FunctionDecl(ir.Position{}, "main", nil, f.Block(ir.Position{}, []ir.Stmt{decl}))
	state, _ := pass.Lower(program(fn))

	p := New()
	state, _, diags, err := p.Run(state, pass.DefaultConfig())
	require.NoError(t, err)
	require.Len(t, diags, 1)
	assert.Equal(t, "D0201", diags[0].Code)

	body := state.Functions[0].CFG.Entry.Instructions
	assert.NotEmpty(t, declStmts(body, "unused"), "initializer with unresolved call side effect must be kept")
}

func TestPass_DropsUnreferencedFunction(t *testing.T) {
	f := ir.NewFactory()
	mainFn := f.FunctionDecl(ir.Position{}, "main", nil, f.Block(ir.Position{}, nil))
	orphan := f.FunctionDecl(ir.Position{}, "neverCalled", nil, f.Block(ir.Position{}, nil))

	state, _ := pass.Lower(program(mainFn, orphan))

	p := New()
	state, changed, _, err := p.Run(state, pass.DefaultConfig())
	require.NoError(t, err)
	assert.True(t, changed)
	require.Len(t, state.Program.Functions, 1)
	assert.Equal(t, "main", state.Program.Functions[0].Name)
}

func TestPass_KeepsCalledFunction(t *testing.T) {
	f := ir.NewFactory()
	helperCall := f.ExprStatement(ir.Position{}, f.Call(ir.Position{}, f.Identifier(ir.Position{}, "helper"), "helper", nil))
	mainFn := f.FunctionDecl(ir.Position{}, "main", nil, f.Block(ir.Position{}, []ir.Stmt{helperCall}))
	helper := f.FunctionDecl(ir.Position{}, "helper", nil, f.Block(ir.Position{}, nil))

	state, _ := pass.Lower(program(mainFn, helper))

	p := New()
	state, _, _, err := p.Run(state, pass.DefaultConfig())
	require.NoError(t, err)
	names := map[string]bool{}
	for _, fn := range state.Program.Functions {
		names[fn.Name] = true
	}
	assert.True(t, names["helper"])
}
