package errors

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
)

// Reporter formats Diagnostics with the same Rust-like caret styling the
// teacher compiler uses for parse errors, generalised from a single
// CompilerError to the pipeline's four diagnostic kinds.
type Reporter struct {
	filename string
	lines    []string
}

// NewReporter builds a reporter for a source file. source may be empty when
// the diagnostic originates from a bytecode lifter with no textual source
// (CFG/lifter errors fall back to printing without a context snippet).
func NewReporter(filename, source string) *Reporter {
	return &Reporter{filename: filename, lines: strings.Split(source, "\n")}
}

// Format renders one Diagnostic.
func (r *Reporter) Format(d *Diagnostic) string {
	var out strings.Builder

	levelColor := r.levelColor(d.Kind)
	bold := color.New(color.Bold).SprintFunc()
	dim := color.New(color.Faint).SprintFunc()

	out.WriteString(fmt.Sprintf("%s[%s]: %s\n", levelColor(d.Kind.String()), d.Code, d.Message))
	if desc := Describe(d.Code); desc != "" {
		out.WriteString(fmt.Sprintf("  %s %s\n", dim("note:"), desc))
	}

	if d.Position.IsZero() || len(r.lines) == 0 || r.filename == "" {
		if d.Cause != nil {
			out.WriteString(fmt.Sprintf("  %s %v\n", dim("cause:"), d.Cause))
		}
		out.WriteString("\n")
		return out.String()
	}

	width := lineNumberWidth(d.Position.Line)
	indent := strings.Repeat(" ", width)

	out.WriteString(fmt.Sprintf("%s %s %s:%d:%d\n", indent, dim("-->"), r.filename, d.Position.Line, d.Position.Column))
	out.WriteString(fmt.Sprintf("%s %s\n", indent, dim("│")))

	if d.Position.Line >= 1 && d.Position.Line <= len(r.lines) {
		out.WriteString(fmt.Sprintf("%s %s %s\n",
			bold(fmt.Sprintf("%*d", width, d.Position.Line)), dim("│"), r.lines[d.Position.Line-1]))
		marker := strings.Repeat(" ", max0(d.Position.Column-1)) + levelColor("^")
		out.WriteString(fmt.Sprintf("%s %s %s\n", indent, dim("│"), marker))
	}

	if d.Cause != nil {
		out.WriteString(fmt.Sprintf("%s %s %v\n", indent, dim("│ cause:"), d.Cause))
	}
	out.WriteString("\n")
	return out.String()
}

// FormatAll renders a batch of diagnostics in order.
func (r *Reporter) FormatAll(ds []*Diagnostic) string {
	var out strings.Builder
	for _, d := range ds {
		out.WriteString(r.Format(d))
	}
	return out.String()
}

func (r *Reporter) levelColor(k Kind) func(...interface{}) string {
	switch k {
	case KindStructural, KindInternalInvariant:
		return color.New(color.FgRed, color.Bold).SprintFunc()
	case KindBudget:
		return color.New(color.FgMagenta, color.Bold).SprintFunc()
	case KindSemanticWarning:
		return color.New(color.FgYellow, color.Bold).SprintFunc()
	default:
		return color.New(color.FgRed, color.Bold).SprintFunc()
	}
}

func lineNumberWidth(line int) int {
	w := len(fmt.Sprintf("%d", line))
	if w < 3 {
		w = 3
	}
	return w
}

func max0(n int) int {
	if n < 0 {
		return 0
	}
	return n
}
