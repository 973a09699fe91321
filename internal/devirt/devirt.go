package devirt

import (
	"deobf/internal/errors"
	"deobf/internal/ir"
	"deobf/internal/pass"
)

// Devirtualize runs all five phases of §4.9 against fn: detect a
// dispatch loop, extract per-opcode semantics, extract the bytecode
// array, micro-emulate it, and wrap the result in a synthetic
// "devirtualized_function" declaration. ok is false whenever nothing is
// returned — no dispatcher found, confidence below the refuse floor, or
// (below the eager floor) a failed micro-emulation. Every refusal or
// fallback is recorded as a warning rather than an error, per §4.9's
// failure model.
func Devirtualize(fn *ir.FunctionDecl, cfg pass.Config) (*ir.Program, []*errors.Diagnostic, bool) {
	var diags []*errors.Diagnostic

	d, sw, found := DetectDispatcher(fn)
	if !found {
		return nil, diags, false
	}

	refuseBelow := cfg.Devirtualization.RefuseBelow
	eagerAbove := cfg.Devirtualization.EagerAbove
	stepCap := cfg.Devirtualization.EmulationStepCap
	if stepCap <= 0 {
		stepCap = pass.DefaultConfig().Devirtualization.EmulationStepCap
	}

	if d.Confidence < refuseBelow {
		diags = append(diags, errors.NewWarning(errors.CodeDevirtRefused,
			"dispatcher detection confidence below the refuse floor; left as source", fn.Pos()))
		return nil, diags, false
	}
	if d.Confidence < eagerAbove {
		diags = append(diags, errors.NewWarning(errors.CodeDevirtLowConfidence,
			"dispatcher detection confidence is in the emulate-only-if-it-succeeds band", fn.Pos()))
	}

	sems := ExtractSemantics(sw, d)
	d.Opcodes = sems

	bytecode, _, ok := ExtractBytecodeArray(fn, d.ArrVar)
	if !ok {
		diags = append(diags, errors.NewWarning(errors.CodeDevirtEmulationAborted,
			"no plausible bytecode array found in scope", fn.Pos()))
		if d.Confidence < eagerAbove {
			return nil, diags, false
		}
		return wrapPlaceholder(fn, diags), diags, true
	}

	regsInit, regsName, _ := ExtractBytecodeArray(fn, d.RegsVar)
	if regsName != d.RegsVar {
		regsInit = nil
	}
	regInitExprs := map[int]ir.Expr{}
	f := ir.NewFactory()
	for i, v := range regsInit {
		regInitExprs[i] = f.Literal(ir.Position{}, ir.NewLiteralNumber(float64(v)))
	}

	stmts, ok, emDiags := MicroEmulate(f, d, sems, bytecode, regInitExprs, stepCap)
	diags = append(diags, emDiags...)

	if !ok {
		if d.Confidence < eagerAbove {
			return nil, diags, false
		}
		// Eager band: keep whatever the emulator produced before it
		// aborted and append an empty statement where it stopped. The
		// placeholder itself carries no annotation; the reason is only in
		// the emulator's diagnostics.
		stmts = append(stmts, f.Empty(fn.Pos()))
	}

	decl := f.FunctionDecl(fn.Pos(), "devirtualized_function", nil, f.Block(fn.Pos(), stmts))
	return &ir.Program{Functions: []*ir.FunctionDecl{decl}}, diags, true
}

func wrapPlaceholder(fn *ir.FunctionDecl, diags []*errors.Diagnostic) *ir.Program {
	f := ir.NewFactory()
	decl := f.FunctionDecl(fn.Pos(), "devirtualized_function", nil, f.Block(fn.Pos(), []ir.Stmt{f.Empty(fn.Pos())}))
	return &ir.Program{Functions: []*ir.FunctionDecl{decl}}
}
