// Package source defines the narrow external collaborator boundary named in
// spec §6: a JavaScript frontend/backend the core pipeline talks to through
// three small interfaces rather than depending on any particular parser or
// unparser library directly. This mirrors how the teacher's LSP handler
// depends on its own internal/parser only through the handful of functions
// it actually calls (ParseSourceWithMetadata, ParseResult) rather than
// reaching into the scanner or grammar directly — here the boundary is
// formalised as interfaces so a real JS frontend can be swapped in without
// touching anything under internal/pass, internal/ir, or internal/devirt.
package source

import "deobf/internal/ir"

// Parser turns JavaScript source text into the IR program the pipeline
// operates on. Nothing under internal/pass or internal/ir constructs a
// Parser itself; cmd/deobf-cli wires a concrete implementation in.
type Parser interface {
	Parse(src string) (*ir.Program, error)
}

// Printer is the public unparser: it turns a (possibly rewritten) IR
// program back into JavaScript source text. It is deliberately a separate
// interface from ir.Printer, which only produces the internal debug tree
// dump used by tests and the CLI's -dump-ir flag — a Printer here must
// produce text a JS engine can run.
type Printer interface {
	Print(prog *ir.Program) (string, error)
}

// TraceEvent is one record a pass pipeline hands to a TraceSink: an event
// id (a ksuid, distinct from the pass's own TraceID so concurrent pipeline
// invocations still produce a globally sortable, collision-free stream),
// the TraceID correlating it back to a pass.PassMetrics entry, and a
// free-form field set for whatever that pass wants to surface
// (opaque-predicate solver verdicts, devirtualisation confidence, and so
// on).
type TraceEvent struct {
	EventID string
	TraceID string
	Pass    string
	Message string
	Fields  map[string]any
}

// TraceSink is the optional per-pass metrics/warning observer named in
// §6. A nil TraceSink is always valid; callers must check before invoking
// Record rather than requiring every caller to hand in a no-op
// implementation.
type TraceSink interface {
	Record(event TraceEvent)
}
