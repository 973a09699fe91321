package devirt

import (
	"testing"

	"deobf/internal/ir"
	"deobf/internal/pass"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func num(f *ir.Factory, v float64) *ir.Literal { return f.Literal(ir.Position{}, ir.NewLiteralNumber(v)) }

// buildInterpreterFunction assembles, by hand, the IR shape of:
//
//	function f() {
//	  var ops = [1, 0, 1, 2, 2];
//	  var regs = [5, 7, 0];
//	  var pc = 0;
//	  while (true) {
//	    switch (ops[pc]) {
//	      case 1:
//	        regs[ops[pc]] = regs[ops[pc]] + regs[ops[pc]];
//	        break;
//	      case 2:
//	        return regs[0];
//	    }
//	    pc = pc + 1;
//	  }
//	}
func buildInterpreterFunction(f *ir.Factory) *ir.FunctionDecl {
	opsArr := f.Array(ir.Position{}, []ir.Expr{num(f, 1), num(f, 0), num(f, 1), num(f, 2), num(f, 2)})
	regsArr := f.Array(ir.Position{}, []ir.Expr{num(f, 5), num(f, 7), num(f, 0)})

	opsDecl := f.VariableDecl(ir.Position{}, ir.KindVar, []*ir.Declarator{{Name: "ops", Init: opsArr}})
	regsDecl := f.VariableDecl(ir.Position{}, ir.KindVar, []*ir.Declarator{{Name: "regs", Init: regsArr}})
	pcDecl := f.VariableDecl(ir.Position{}, ir.KindVar, []*ir.Declarator{{Name: "pc", Init: num(f, 0)}})

	opsAtPC := func() ir.Expr { return f.Member(ir.Position{}, f.Identifier(ir.Position{}, "ops"), f.Identifier(ir.Position{}, "pc"), true) }
	regsAt := func(idx ir.Expr) ir.Expr { return f.Member(ir.Position{}, f.Identifier(ir.Position{}, "regs"), idx, true) }

	case1Body := []ir.Stmt{
		f.ExprStatement(ir.Position{}, f.Assignment(ir.Position{}, ir.OpAssign,
			regsAt(opsAtPC()),
			f.Binary(ir.Position{}, ir.OpAdd, regsAt(opsAtPC()), regsAt(opsAtPC())))),
		f.Break(ir.Position{}, ""),
	}
	case2Body := []ir.Stmt{
		f.Return(ir.Position{}, regsAt(num(f, 0))),
	}
	testOne := ir.Expr(num(f, 1))
	testTwo := ir.Expr(num(f, 2))
	sw := f.Switch(ir.Position{}, opsAtPC(), []ir.SwitchCase{
		{Test: &testOne, Body: case1Body},
		{Test: &testTwo, Body: case2Body},
	})

	pcIncrement := f.ExprStatement(ir.Position{}, f.Assignment(ir.Position{}, ir.OpAssign,
		f.Identifier(ir.Position{}, "pc"),
		f.Binary(ir.Position{}, ir.OpAdd, f.Identifier(ir.Position{}, "pc"), num(f, 1))))

	loopBody := f.Block(ir.Position{}, []ir.Stmt{sw, pcIncrement})
	loop := f.While(ir.Position{}, f.Literal(ir.Position{}, ir.NewLiteralBool(true)), loopBody)

	body := f.Block(ir.Position{}, []ir.Stmt{opsDecl, regsDecl, pcDecl, loop})
	return f.FunctionDecl(ir.Position{}, "obfuscated", nil, body)
}

func TestDetectDispatcher_FindsArrayAndPCVariables(t *testing.T) {
	f := ir.NewFactory()
	fn := buildInterpreterFunction(f)

	d, sw, ok := DetectDispatcher(fn)
	require.True(t, ok)
	require.NotNil(t, sw)
	assert.Equal(t, "ops", d.ArrVar)
	assert.Equal(t, "pc", d.PCVar)
	assert.Equal(t, "regs", d.RegsVar)
	assert.Equal(t, KindRegisterBased, d.Kind)
	assert.Greater(t, d.Confidence, 0.5)
}

func TestDevirtualize_ProducesReturnOfRegsZeroPlusRegsOne(t *testing.T) {
	f := ir.NewFactory()
	fn := buildInterpreterFunction(f)

	cfg := pass.DefaultConfig()
	prog, diags, ok := Devirtualize(fn, cfg)
	for _, d := range diags {
		t.Logf("diag: %s %s", d.Code, d.Message)
	}
	require.True(t, ok)
	require.Len(t, prog.Functions, 1)

	decl := prog.Functions[0]
	assert.Equal(t, "devirtualized_function", decl.Name)
	require.Len(t, decl.Body.Body, 2, "expected a register-assignment statement plus a return")

	asgStmt, ok := decl.Body.Body[0].(*ir.ExprStatement)
	require.True(t, ok)
	asg, ok := asgStmt.Expression.(*ir.Assignment)
	require.True(t, ok)
	bin, ok := asg.Value.(*ir.Binary)
	require.True(t, ok)
	assert.Equal(t, ir.OpAdd, bin.Op)

	ret, ok := decl.Body.Body[1].(*ir.Return)
	require.True(t, ok)
	assert.NotNil(t, ret.Value)
}

func TestDevirtualize_NoDispatcherFound(t *testing.T) {
	f := ir.NewFactory()
	fn := f.FunctionDecl(ir.Position{}, "plain", nil, f.Block(ir.Position{}, []ir.Stmt{
		f.Return(ir.Position{}, num(f, 1)),
	}))

	prog, _, ok := Devirtualize(fn, pass.DefaultConfig())
	assert.False(t, ok)
	assert.Nil(t, prog)
}
