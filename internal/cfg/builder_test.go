package cfg

import (
	"testing"

	"deobf/internal/ir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild_EmptyBodyYieldsEntryExitOnly(t *testing.T) {
	g, warns, err := Build(nil)
	require.NoError(t, err)
	assert.Empty(t, warns)
	assert.Len(t, g.Blocks, 2)
	require.Len(t, g.Entry.Successors, 1)
	assert.Equal(t, EdgeFallthrough, g.Entry.Successors[0].Kind)
	assert.Equal(t, g.Exit, g.Entry.Successors[0].To)
}

func TestBuild_IfElse_BothBranchesJoin(t *testing.T) {
	f := ir.NewFactory()
	test := f.Literal(ir.Position{}, ir.NewLiteralBool(true))
	then := f.ExprStatement(ir.Position{}, f.Call(ir.Position{}, f.Identifier(ir.Position{}, "foo"), "foo", nil))
	els := f.ExprStatement(ir.Position{}, f.Call(ir.Position{}, f.Identifier(ir.Position{}, "bar"), "bar", nil))
	ifStmt := f.If(ir.Position{}, test, then, els)

	g, _, err := Build([]ir.Stmt{ifStmt})
	require.NoError(t, err)

	// entry -> branch block (which is entry itself) -> then/else -> join -> exit
	require.Len(t, g.Entry.Successors, 2)
	kinds := map[EdgeKind]bool{}
	for _, e := range g.Entry.Successors {
		kinds[e.Kind] = true
	}
	assert.True(t, kinds[EdgeTrue])
	assert.True(t, kinds[EdgeFalse])

	join := firstBlockNamed(g, "if.end")
	require.NotNil(t, join)
	assert.Len(t, join.Predecessors, 2)
}

func TestBuild_BreakWithoutLoop_IsStructuralError(t *testing.T) {
	f := ir.NewFactory()
	brk := f.Break(ir.Position{}, "")
	_, _, err := Build([]ir.Stmt{brk})
	assert.Error(t, err)
}

func TestBuild_WhileLoop_HeaderHasTwoPredecessors(t *testing.T) {
	f := ir.NewFactory()
	test := f.Literal(ir.Position{}, ir.NewLiteralBool(true))
	body := f.Block(ir.Position{}, []ir.Stmt{
		f.ExprStatement(ir.Position{}, f.Call(ir.Position{}, f.Identifier(ir.Position{}, "tick"), "tick", nil)),
	})
	loop := f.While(ir.Position{}, test, body)

	g, _, err := Build([]ir.Stmt{loop})
	require.NoError(t, err)

	var header *BasicBlock
	for _, b := range g.Blocks {
		if b.Label == "while.header" {
			header = b
		}
	}
	require.NotNil(t, header)
	assert.Len(t, header.Predecessors, 2) // entry fallthrough + back edge from body
}

func TestBuild_EveryNonEntryBlockHasPredecessor(t *testing.T) {
	f := ir.NewFactory()
	test := f.Literal(ir.Position{}, ir.NewLiteralBool(true))
	then := f.Return(ir.Position{}, nil)
	ifStmt := f.If(ir.Position{}, test, then, nil)
	g, _, err := Build([]ir.Stmt{ifStmt})
	require.NoError(t, err)

	for _, b := range g.Blocks {
		if b == g.Entry {
			continue
		}
		assert.NotEmpty(t, b.Predecessors, "block %s (%d) should have a predecessor", b.Label, b.ID)
	}
}
