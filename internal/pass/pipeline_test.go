package pass

import (
	"testing"

	"deobf/internal/errors"
	"deobf/internal/ir"
	"deobf/internal/source/testfixture"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingPass reports "changed" for its first N runs, then stops; it lets
// tests assert the pipeline actually iterates to a fixed point instead of
// stopping after one pass over the list.
type countingPass struct {
	runsBeforeStable int
	seen             int
}

func (p *countingPass) Name() string        { return "counting-pass" }
func (p *countingPass) Description() string { return "test double that changes a bounded number of times" }

func (p *countingPass) Run(state *State, config Config) (*State, bool, []*errors.Diagnostic, error) {
	p.seen++
	if p.seen <= p.runsBeforeStable {
		return state, true, nil, nil
	}
	return state, false, nil, nil
}

func emptyProgram() *ir.Program {
	f := ir.NewFactory()
	body := f.Block(ir.Position{}, nil)
	fn := f.FunctionDecl(ir.Position{}, "main", nil, body)
	return &ir.Program{Functions: []*ir.FunctionDecl{fn}}
}

func TestPipeline_RunsToFixedPoint(t *testing.T) {
	cp := &countingPass{runsBeforeStable: 3}
	pipeline := NewPipeline(cp)

	state, err := pipeline.Run(emptyProgram(), DefaultConfig())
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, 4, cp.seen) // 3 changed runs + 1 confirming stability
}

func TestPipeline_NeverConvergingHitsIterationBudget(t *testing.T) {
	alwaysChanges := &countingPass{runsBeforeStable: 1 << 20}
	pipeline := NewPipeline(alwaysChanges)

	config := DefaultConfig()
	config.Pipeline.MaxFixedPointIterations = 5
	state, err := pipeline.Run(emptyProgram(), config)
	require.NoError(t, err)

	var sawBudget bool
	for _, d := range state.Diagnostics {
		if d.Kind == errors.KindBudget {
			sawBudget = true
		}
	}
	assert.True(t, sawBudget, "expected a budget diagnostic when the pipeline does not converge")
}

func TestPipeline_TraceSinkSeesOneEventPerPassPerIteration(t *testing.T) {
	cp := &countingPass{runsBeforeStable: 2}
	sink := &testfixture.RecordingSink{}
	pipeline := NewPipeline(cp).WithTraceSink(sink)

	_, err := pipeline.Run(emptyProgram(), DefaultConfig())
	require.NoError(t, err)

	events := sink.ByPass("counting-pass")
	assert.Len(t, events, 3) // 2 changed runs + 1 confirming stability
	assert.NotEmpty(t, events[0].TraceID)
}

func TestLower_DropsFunctionWithStructuralError(t *testing.T) {
	f := ir.NewFactory()
	brk := f.Break(ir.Position{}, "")
	body := f.Block(ir.Position{}, []ir.Stmt{brk})
	fn := f.FunctionDecl(ir.Position{}, "bad", nil, body)
	prog := &ir.Program{Functions: []*ir.FunctionDecl{fn}}

	state, diags := Lower(prog)
	assert.Empty(t, state.Functions)
	require.NotEmpty(t, diags)
	assert.Equal(t, errors.KindStructural, diags[0].Kind)
}
