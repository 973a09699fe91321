// Package errors implements the four error kinds of spec §7: structural,
// semantic-warning, budget, and internal-invariant. Every kind is carried
// as a Diagnostic; Kind distinguishes how the pipeline must react to it.
package errors

import (
	"fmt"

	"deobf/internal/ir"
	pkgerrors "github.com/pkg/errors"
)

// Kind is one of the four error kinds named in spec §7.
type Kind int

const (
	// Structural: ill-formed input that prevents building valid IR. Halts
	// the affected function only.
	KindStructural Kind = iota
	// SemanticWarning: a recoverable anomaly, collected and continued past.
	KindSemanticWarning
	// Budget: a time/step/iteration cap was reached; partial output kept.
	KindBudget
	// InternalInvariant: a pass produced IR violating an §3 invariant.
	// Aborts the remaining pipeline.
	KindInternalInvariant
)

func (k Kind) String() string {
	switch k {
	case KindStructural:
		return "structural"
	case KindSemanticWarning:
		return "warning"
	case KindBudget:
		return "budget"
	case KindInternalInvariant:
		return "internal-invariant"
	default:
		return "unknown"
	}
}

// Diagnostic is a structured error or warning with enough context to print
// a Rust-like caret diagnostic and to let the pipeline decide whether to
// keep going (§7 propagation rules).
type Diagnostic struct {
	Kind     Kind
	Code     string
	Message  string
	Position ir.Position
	NodeID   ir.NodeID // zero if not tied to a specific node
	Cause    error      // wrapped cause, if any (structural errors from lifters)
}

func (d *Diagnostic) Error() string {
	if d.Cause != nil {
		return fmt.Sprintf("%s[%s]: %s: %v", d.Kind, d.Code, d.Message, d.Cause)
	}
	return fmt.Sprintf("%s[%s]: %s", d.Kind, d.Code, d.Message)
}

// NewStructural builds a structural-error Diagnostic, wrapping cause (if
// any) with github.com/pkg/errors so the original stack trace survives
// across lifter call boundaries.
func NewStructural(code, message string, pos ir.Position, cause error) *Diagnostic {
	if cause != nil {
		cause = pkgerrors.Wrap(cause, message)
	}
	return &Diagnostic{Kind: KindStructural, Code: code, Message: message, Position: pos, Cause: cause}
}

func NewWarning(code, message string, pos ir.Position) *Diagnostic {
	return &Diagnostic{Kind: KindSemanticWarning, Code: code, Message: message, Position: pos}
}

func NewBudget(code, message string) *Diagnostic {
	return &Diagnostic{Kind: KindBudget, Code: code, Message: message}
}

func NewInternalInvariant(code, message string, nodeID ir.NodeID) *Diagnostic {
	return &Diagnostic{Kind: KindInternalInvariant, Code: code, Message: message, NodeID: nodeID}
}
