package testfixture

import (
	"testing"

	"deobf/internal/ir"
	"deobf/internal/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func plainProgram(name string) *ir.Program {
	f := ir.NewFactory()
	body := f.Block(ir.Position{}, []ir.Stmt{
		f.Return(ir.Position{}, f.Literal(ir.Position{}, ir.NewLiteralNumber(1))),
	})
	fn := f.FunctionDecl(ir.Position{}, name, nil, body)
	return &ir.Program{Functions: []*ir.FunctionDecl{fn}}
}

func TestRegistry_ParseReturnsRegisteredProgram(t *testing.T) {
	r := NewRegistry()
	prog := plainProgram("main")
	r.Register("fixture-a", prog)

	got, err := r.Parse("fixture-a")
	require.NoError(t, err)
	assert.Same(t, prog, got)
}

func TestRegistry_ParseUnknownNameErrors(t *testing.T) {
	r := NewRegistry()
	_, err := r.Parse("missing")
	assert.Error(t, err)
}

func TestRegistry_PrintRendersNonEmptyText(t *testing.T) {
	r := NewRegistry()
	out, err := r.Print(plainProgram("f"))
	require.NoError(t, err)
	assert.Contains(t, out, "f")
}

func TestRecordingSink_CollectsEventsByPass(t *testing.T) {
	sink := &RecordingSink{}
	sink.Record(source.TraceEvent{Pass: "const-prop", Message: "iter 0"})
	sink.Record(source.TraceEvent{Pass: "dce", Message: "iter 0"})
	sink.Record(source.TraceEvent{Pass: "const-prop", Message: "iter 1"})

	assert.Len(t, sink.Events, 3)
	assert.Len(t, sink.ByPass("const-prop"), 2)
	assert.Len(t, sink.ByPass("dce"), 1)
}
