package pass

import (
	"time"

	"deobf/internal/errors"
	"deobf/internal/ir"
	"deobf/internal/source"
	"github.com/segmentio/ksuid"
)

// Pipeline runs a fixed ordered list of passes to a fixed point (§4.4):
// the whole sequence repeats until a full pass over every Pass reports no
// change, or Config.Pipeline.MaxFixedPointIterations is reached, whichever
// comes first. Mirrors the teacher's OptimizationPipeline.Run loop, but
// drives to convergence instead of a single pass over the list, and
// records metrics instead of printing progress lines.
type Pipeline struct {
	passes  []Pass
	metrics *Metrics
	sink    source.TraceSink
}

// NewPipeline builds a pipeline that runs passes in the given order on
// every iteration.
func NewPipeline(passes ...Pass) *Pipeline {
	return &Pipeline{passes: passes, metrics: NewMetrics()}
}

func (p *Pipeline) Metrics() *Metrics { return p.metrics }

// WithTraceSink attaches the optional §6 observer: every pass run still
// lands in Metrics regardless, but when sink is non-nil it also receives
// one TraceEvent per pass per iteration, carrying the same TraceID as the
// corresponding PassMetrics entry so the two streams can be joined.
func (p *Pipeline) WithTraceSink(sink source.TraceSink) *Pipeline {
	p.sink = sink
	return p
}

// Run lowers prog to CFG/SSA form once, then drives every pass to
// convergence. A pass is responsible for keeping its returned
// FunctionState's CFG/SSA info consistent with whatever it rewrote (see
// State.WithFunctions) — the pipeline does not re-derive either from
// FunctionDecl.Body after the initial Lower.
func (p *Pipeline) Run(prog *ir.Program, config Config) (*State, error) {
	state, lowerDiags := Lower(prog)
	state = state.WithDiagnostics(lowerDiags)
	return p.RunState(state, config)
}

// RunState drives every pass to convergence over an already-lowered State,
// skipping Lower entirely. The bytecode lifters (internal/bytecode/stack,
// internal/bytecode/register) build a State with CFG/SSA already attached
// straight off a decoded instruction stream rather than off an
// ir.Program's statement tree, so their output re-enters the pipeline
// here instead of through Run.
func (p *Pipeline) RunState(state *State, config Config) (*State, error) {
	maxIter := config.Pipeline.MaxFixedPointIterations
	if maxIter <= 0 {
		maxIter = DefaultConfig().Pipeline.MaxFixedPointIterations
	}

	for iter := 0; iter < maxIter; iter++ {
		anyChanged := false
		for _, ps := range p.passes {
			traceID := ksuid.New().String()
			start := time.Now()
			next, changed, diags, err := ps.Run(state, config)
			if err != nil {
				return state, err
			}
			state = next.WithDiagnostics(diags)
			if changed {
				anyChanged = true
			}
			p.metrics.Record(PassMetrics{
				TraceID:   traceID,
				Name:      ps.Name(),
				Iteration: iter,
				Duration:  time.Since(start),
				Warnings:  len(diags),
			})
			if p.sink != nil {
				p.sink.Record(source.TraceEvent{
					EventID: ksuid.New().String(),
					TraceID: traceID,
					Pass:    ps.Name(),
					Message: "pass completed",
					Fields: map[string]any{
						"iteration": iter,
						"changed":   changed,
						"warnings":  len(diags),
					},
				})
			}
		}
		if !anyChanged {
			return state, nil
		}
	}

	budget := errors.NewBudget(errors.CodeBudgetPartialResult,
		"pipeline reached the fixed-point iteration cap without converging")
	return state.WithDiagnostics([]*errors.Diagnostic{budget}), nil
}
