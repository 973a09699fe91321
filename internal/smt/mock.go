package smt

import (
	"context"
	"time"
)

// MockSolver is the dependency-free Solver §4.6 requires be acceptable
// when no real SMT process is configured: rather than actually deciding
// satisfiability, it recognises boolean literals, their negations and the
// equality of a variable with itself, and answers unsat/sat accordingly.
// It does not recognise the other identities the pattern oracle knows
// (self-xor compared with zero, self-and/or, additive/multiplicative
// identity, bitmask-vs-mod-2); anything it doesn't recognise answers
// Unknown rather than guessing.
type MockSolver struct {
	stack     [][]Expr
	asserted  []Expr
	timeout   time.Duration
}

func NewMockSolver() *MockSolver {
	return &MockSolver{asserted: nil}
}

func (m *MockSolver) Push(ctx context.Context) error {
	snapshot := make([]Expr, len(m.asserted))
	copy(snapshot, m.asserted)
	m.stack = append(m.stack, snapshot)
	return nil
}

func (m *MockSolver) Pop(ctx context.Context) error {
	if len(m.stack) == 0 {
		m.asserted = nil
		return nil
	}
	m.asserted = m.stack[len(m.stack)-1]
	m.stack = m.stack[:len(m.stack)-1]
	return nil
}

func (m *MockSolver) Assert(ctx context.Context, e Expr) error {
	m.asserted = append(m.asserted, e)
	return nil
}

func (m *MockSolver) SetTimeout(d time.Duration) { m.timeout = d }

func (m *MockSolver) Reset(ctx context.Context) error {
	m.asserted = nil
	m.stack = nil
	return nil
}

// Check reports unsat when every asserted conjunct is a recognised
// always-false identity, sat when the only asserted formula is a
// recognised always-true identity (its negation is then unsatisfiable,
// which is how the opaque-predicate pass actually uses this), and Unknown
// otherwise — never a false sat/unsat on a formula it doesn't recognise.
func (m *MockSolver) Check(ctx context.Context) (Verdict, error) {
	if len(m.asserted) == 0 {
		return Sat, nil
	}
	allKnownFalse := true
	anyKnownTrue := false
	for _, e := range m.asserted {
		switch knownTruth(e) {
		case ternTrue:
			anyKnownTrue = true
			allKnownFalse = false
		case ternFalse:
			// stays consistent with allKnownFalse
		default:
			allKnownFalse = false
		}
	}
	if allKnownFalse {
		return Unsat, nil
	}
	if anyKnownTrue && len(m.asserted) == 1 {
		return Sat, nil
	}
	return Unknown, nil
}

type tern int

const (
	ternUnknown tern = iota
	ternTrue
	ternFalse
)

// knownTruth recognises the identities in §4.6's pattern table when they
// appear already-translated to SMT form, so MockSolver's verdicts agree
// with the pattern oracle's on the same inputs.
func knownTruth(e Expr) tern {
	switch n := e.(type) {
	case BoolLit:
		if n.Value {
			return ternTrue
		}
		return ternFalse
	case UnOp:
		if n.Op == "not" {
			switch knownTruth(n.Arg) {
			case ternTrue:
				return ternFalse
			case ternFalse:
				return ternTrue
			}
		}
	case BinOp:
		if n.Op == "=" && sameVar(n.Left, n.Right) {
			return ternTrue
		}
		if n.Op == "bvxor" && sameVar(n.Left, n.Right) {
			return ternFalse // x^x == 0, not directly Bool, left for caller context
		}
	}
	return ternUnknown
}

func sameVar(a, b Expr) bool {
	va, ok1 := a.(Var)
	vb, ok2 := b.(Var)
	return ok1 && ok2 && va.Name == vb.Name
}
