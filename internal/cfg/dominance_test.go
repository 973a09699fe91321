package cfg

import (
	"testing"

	"deobf/internal/ir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComputeDominance_Diamond(t *testing.T) {
	f := ir.NewFactory()
	test := f.Literal(ir.Position{}, ir.NewLiteralBool(true))
	then := f.ExprStatement(ir.Position{}, f.Call(ir.Position{}, f.Identifier(ir.Position{}, "a"), "a", nil))
	els := f.ExprStatement(ir.Position{}, f.Call(ir.Position{}, f.Identifier(ir.Position{}, "b"), "b", nil))
	ifStmt := f.If(ir.Position{}, test, then, els)

	g, _, err := Build([]ir.Stmt{ifStmt})
	require.NoError(t, err)
	ComputeDominance(g)

	var join *BasicBlock
	for _, b := range g.Blocks {
		if b.Label == "if.end" {
			join = b
		}
	}
	require.NotNil(t, join)

	// entry dominates everything, including the join block.
	assert.True(t, g.Dominates(g.Entry, join))
	// neither then nor else individually dominates the join (two preds).
	for _, b := range g.Blocks {
		if b.Label == "if.then" || b.Label == "if.else" {
			assert.False(t, g.Dominates(b, join))
		}
	}
	// the join block is in entry's dominance frontier only if entry has
	// another path around it — here entry strictly dominates join, so the
	// frontier should be on the then/else blocks instead.
	assert.Contains(t, g.DomFrontier[firstBlockNamed(g, "if.then")], join)
	assert.Contains(t, g.DomFrontier[firstBlockNamed(g, "if.else")], join)
}

func firstBlockNamed(g *Graph, label string) *BasicBlock {
	for _, b := range g.Blocks {
		if b.Label == label {
			return b
		}
	}
	return nil
}

func TestComputeDominance_EmptyFunction(t *testing.T) {
	g, _, err := Build(nil)
	require.NoError(t, err)
	ComputeDominance(g)
	assert.True(t, g.Dominates(g.Entry, g.Exit))
}
