package pass

import (
	"deobf/internal/cfg"
	"deobf/internal/errors"
	"deobf/internal/ir"
	"deobf/internal/ssa"
)

// FunctionState is the per-function analysis data a pass may read: its CFG
// and the φ-nodes the SSA builder inserted for it (§4.4).
type FunctionState struct {
	Decl *ir.FunctionDecl
	CFG  *cfg.Graph
	SSA  *ssa.Info
}

// State is the pipeline's unit of exchange between passes (§4.4): a
// program plus the per-function analyses derived from it and the
// diagnostics accumulated so far. Passes return a new State value, but the
// FunctionStates in it are the ones they were given, with CFG and SSA
// edited in place: an earlier State is not a snapshot of an earlier pass's
// output, and a pass that fails part-way leaves its partial edits behind.
type State struct {
	Program     *ir.Program
	Functions   []*FunctionState
	Diagnostics []*errors.Diagnostic
}

// Materialize rebuilds a printable FunctionDecl from fs.CFG via
// cfg.Reconstruct. fs.Decl itself is never touched again once Lower runs
// (§4.4: the CFG, not the statement tree, is canonical) — every pass edits
// CFG/SSA only, so fs.Decl.Body is the function's pre-pipeline body
// forever. Anything that needs to show a function's body after passes
// have run (printing, a second Lower over bytecode-lifted IR) must call
// this instead of reading fs.Decl.Body directly.
func (fs *FunctionState) Materialize() *ir.FunctionDecl {
	f := ir.NewFactory()
	pos := ir.Position{}
	name := ""
	var params []string
	if fs.Decl != nil {
		pos = fs.Decl.Pos()
		name = fs.Decl.Name
		params = fs.Decl.Params
	}
	body := cfg.Reconstruct(fs.CFG)
	return f.FunctionDecl(pos, name, params, f.Block(pos, body))
}

// FunctionStateFor returns the analysis state for decl, or nil if none was
// computed (e.g. the function's CFG failed to build).
func (s *State) FunctionStateFor(decl *ir.FunctionDecl) *FunctionState {
	for _, fs := range s.Functions {
		if fs.Decl == decl {
			return fs
		}
	}
	return nil
}

// WithFunctions returns a copy of s with Functions replaced. Passes that
// rewrite instructions in place within existing blocks (const-prop) use
// this to publish their edits; passes that change block structure (DCE
// pruning unreachable blocks) must also have refreshed CFG.IDom/DomFrontier
// and SSA on the affected FunctionState before calling this, since nothing
// downstream re-derives them from source.
func (s *State) WithFunctions(funcs []*FunctionState) *State {
	return &State{Program: s.Program, Functions: funcs, Diagnostics: s.Diagnostics}
}

// WithDiagnostics returns a copy of s with ds appended to its diagnostics.
func (s *State) WithDiagnostics(ds []*errors.Diagnostic) *State {
	if len(ds) == 0 {
		return s
	}
	merged := make([]*errors.Diagnostic, 0, len(s.Diagnostics)+len(ds))
	merged = append(merged, s.Diagnostics...)
	merged = append(merged, ds...)
	return &State{Program: s.Program, Functions: s.Functions, Diagnostics: merged}
}

// Lower builds the initial CFG and SSA form for every function in prog.
// This runs exactly once, before the pipeline's first pass: once a
// function's body has been partitioned into basic blocks, the CFG (not
// FunctionDecl.Body's nested tree) is the representation every pass reads
// and rewrites, since partitioning already discards the tree's nested
// if/while/for wrappers in favour of block/edge structure (§4.2). A
// function whose body fails to build a CFG (a structural error, e.g. a
// stray break) is dropped from Functions and its diagnostic kept; the rest
// of the module keeps going (§4.2 failure model).
func Lower(prog *ir.Program) (*State, []*errors.Diagnostic) {
	var diags []*errors.Diagnostic
	funcs := make([]*FunctionState, 0, len(prog.Functions))
	for _, fn := range prog.Functions {
		var body []ir.Stmt
		if fn.Body != nil {
			body = fn.Body.Body
		}
		g, warns, err := cfg.Build(body)
		diags = append(diags, warns...)
		if err != nil {
			if d, ok := err.(*errors.Diagnostic); ok {
				diags = append(diags, d)
			} else {
				diags = append(diags, errors.NewStructural(errors.CodeMalformedTerminator, err.Error(), ir.Position{}, err))
			}
			continue
		}
		cfg.ComputeDominance(g)
		info, ssaWarns := ssa.Build(g)
		diags = append(diags, ssaWarns...)
		funcs = append(funcs, &FunctionState{Decl: fn, CFG: g, SSA: info})
	}
	return &State{Program: prog, Functions: funcs, Diagnostics: diags}, diags
}
