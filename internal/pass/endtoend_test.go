package pass_test

import (
	"strings"
	"testing"

	"deobf/internal/cfg"
	"deobf/internal/ir"
	"deobf/internal/pass"
	"deobf/internal/passes/constprop"
	"deobf/internal/passes/dce"
	"deobf/internal/passes/opaque"
	"deobf/internal/smt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestEndToEnd_PrintedOutputReflectsFoldAndDCE builds the spec's scenario 1
// shape (if (x === 3) { live() } else { dead() }), runs it through
// Lower -> Pipeline.Run -> FunctionState.Materialize -> ir.Print, and
// asserts the *printed text* shows the fold: a previous version of this
// pipeline kept rewriting FunctionState.CFG correctly but printed
// FunctionState.Decl.Body straight from Lower's pre-pipeline tree, so no
// fold/DCE/opaque-predicate rewrite was ever visible in any textual
// output. Asserting against CFG.Instructions (as the unit tests elsewhere
// in this repo do) would have passed even with that bug in place.
func TestEndToEnd_PrintedOutputReflectsFoldAndDCE(t *testing.T) {
	f := ir.NewFactory()
	test := f.Binary(ir.Position{}, ir.OpStrictEq, f.Literal(ir.Position{}, ir.NewLiteralNumber(3)), f.Literal(ir.Position{}, ir.NewLiteralNumber(3)))
	then := f.ExprStatement(ir.Position{}, f.Call(ir.Position{}, f.Identifier(ir.Position{}, "use"), "use", []ir.Expr{f.Literal(ir.Position{}, ir.NewLiteralNumber(3))}))
	els := f.ExprStatement(ir.Position{}, f.Call(ir.Position{}, f.Identifier(ir.Position{}, "use"), "use", []ir.Expr{f.Literal(ir.Position{}, ir.NewLiteralNumber(99))}))
	ifStmt := f.If(ir.Position{}, test, then, els)
	fn := f.FunctionDecl(ir.Position{}, "main", nil, f.Block(ir.Position{}, []ir.Stmt{ifStmt}))
	prog := &ir.Program{Functions: []*ir.FunctionDecl{fn}}

	pipeline := pass.NewPipeline(
		constprop.New(),
		dce.New(),
		opaque.New(smt.NewMockSolver()),
	)
	final, err := pipeline.Run(prog, pass.DefaultConfig())
	require.NoError(t, err)
	require.Len(t, final.Functions, 1)

	out := &ir.Program{Functions: []*ir.FunctionDecl{final.Functions[0].Materialize()}}
	text := ir.Print(out)

	assert.Contains(t, text, "use(3)")
	assert.NotContains(t, text, "use(99)",
		"the always-false else branch should have been folded away and DCE'd, not just in CFG but in the printed tree")
	assert.NotContains(t, text, "if (",
		"a branch with a statically-known condition should fold away the if entirely, not just its dead arm")
}

// TestEndToEnd_BytecodeLiftedFunctionPrintsItsBody guards the same defect
// on the bytecode path: a lifted FunctionState's Decl starts with a
// permanently empty placeholder body (all of its IR lives in CFG), so
// printing fs.Decl directly always printed "function f() {\n}" regardless
// of what was lifted. Printing fs.Materialize() instead must show the
// lifted body.
func TestEndToEnd_BytecodeLiftedFunctionPrintsItsBody(t *testing.T) {
	f := ir.NewFactory()

	// Build a FunctionState the way a bytecode lifter does: Decl has an
	// empty placeholder Body (see bytecode/stack and bytecode/register
	// lift.go), and all real content lives in CFG instead.
	entry := &cfg.BasicBlock{ID: 0, Label: "entry"}
	exit := &cfg.BasicBlock{ID: 1, Label: "exit"}
	sum := f.Binary(ir.Position{}, ir.OpAdd, f.Literal(ir.Position{}, ir.NewLiteralNumber(1)), f.Literal(ir.Position{}, ir.NewLiteralNumber(2)))
	entry.Terminator = cfg.Terminator{Kind: cfg.TermReturn, ReturnValue: sum}
	edge := &cfg.Edge{From: entry, To: exit, Kind: cfg.EdgeJump}
	entry.Successors = append(entry.Successors, edge)
	exit.Predecessors = append(exit.Predecessors, edge)
	g := &cfg.Graph{Entry: entry, Exit: exit, Blocks: []*cfg.BasicBlock{entry, exit}}

	fs := &pass.FunctionState{
		Decl: f.FunctionDecl(ir.Position{}, "lifted", nil, f.Block(ir.Position{}, nil)),
		CFG:  g,
	}

	materialized := fs.Materialize()
	text := ir.Print(&ir.Program{Functions: []*ir.FunctionDecl{materialized}})

	assert.Contains(t, text, "return (1 + 2);")
	assert.NotEqual(t, "function lifted() {\n}\n\n", text,
		"materializing a lifted FunctionState must not fall back to the empty placeholder body")
}

func TestReconstruct_BlockWrappingAddsNoExtraBraces(t *testing.T) {
	// Sanity check that ir.Print's Block flattening (relied on by both
	// Reconstruct's if/else wrapping and its flatten fallback) doesn't add
	// stray braces around a synthetic Block used purely for grouping.
	f := ir.NewFactory()
	inner := f.ExprStatement(ir.Position{}, f.Call(ir.Position{}, f.Identifier(ir.Position{}, "x"), "x", nil))
	blk := f.Block(ir.Position{}, []ir.Stmt{inner})
	fn := f.FunctionDecl(ir.Position{}, "f", nil, f.Block(ir.Position{}, []ir.Stmt{blk}))
	text := ir.Print(&ir.Program{Functions: []*ir.FunctionDecl{fn}})
	assert.True(t, strings.Count(text, "{") == 1, "a bare grouping Block should not introduce its own braces")
}
