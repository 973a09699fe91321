// Package opaque implements opaque-predicate elimination (§4.6): a
// two-tier dispatch over a fixed pattern library (fast path) and an SMT
// oracle (slow path) for predicates the pattern library doesn't
// recognise. Grounded on the teacher's closed-alphabet-matcher idiom
// (e.g. `IsValidBinaryOp`'s membership map in internal/ir/operators.go)
// generalised from "is this token in the known set" to "does this
// expression tree match one of a known set of shapes".
package opaque

import "deobf/internal/ir"

// Verdict is a single oracle's answer about a predicate: whether it
// always evaluates true, always false, or neither is known, plus a
// confidence in [0,1].
type Verdict struct {
	AlwaysTrue  bool
	AlwaysFalse bool
	Confidence  float64
}

var unknownVerdict = Verdict{}

// patternRule is one entry of §4.6's fixed identity library: match
// reports whether e has this shape, at a fixed confidence.
type patternRule struct {
	confidence float64
	match      func(e ir.Expr) bool
}

var patternLibrary = []patternRule{
	// x ^ x === 0
	{0.99, func(e ir.Expr) bool {
		l, r, ok := strictEqSides(e)
		if !ok {
			return false
		}
		return (isXorSelf(l) && isZero(r)) || (isXorSelf(r) && isZero(l))
	}},
	// (x & 1) === (x % 2)
	{0.95, func(e ir.Expr) bool {
		l, r, ok := strictEqSides(e)
		if !ok {
			return false
		}
		return (isAndOne(l) && isModTwoOf(r, andOperand(l))) ||
			(isAndOne(r) && isModTwoOf(l, andOperand(r)))
	}},
	// (x | 0) === x
	{0.90, func(e ir.Expr) bool {
		l, r, ok := strictEqSides(e)
		if !ok {
			return false
		}
		return (isOrZeroOf(l, r)) || (isOrZeroOf(r, l))
	}},
	// (x & x) === x
	{0.90, func(e ir.Expr) bool {
		l, r, ok := strictEqSides(e)
		if !ok {
			return false
		}
		return (isAndSelfOf(l, r)) || (isAndSelfOf(r, l))
	}},
	// x + 0 === x, x * 1 === x
	{0.85, func(e ir.Expr) bool {
		l, r, ok := strictEqSides(e)
		if !ok {
			return false
		}
		return isAddZeroOf(l, r) || isAddZeroOf(r, l) || isMulOneOf(l, r) || isMulOneOf(r, l)
	}},
	// x === x (lowest confidence: reads may carry getter side effects)
	{0.85, func(e ir.Expr) bool {
		l, r, ok := strictEqSides(e)
		if !ok {
			return false
		}
		return sameExpr(l, r)
	}},
}

// MatchPattern is §4.6's fast path: classify e against the fixed identity
// library, or recognise a bare boolean literal directly. It never reports
// AlwaysFalse for an identity from the library — every pattern above is a
// tautology by construction — so a pattern match is always AlwaysTrue.
func MatchPattern(e ir.Expr) Verdict {
	if lit, ok := e.(*ir.Literal); ok && lit.Value.Kind == ir.LitBoolean {
		if lit.Value.Boolean {
			return Verdict{AlwaysTrue: true, Confidence: 1.0}
		}
		return Verdict{AlwaysFalse: true, Confidence: 1.0}
	}
	for _, rule := range patternLibrary {
		if rule.match(e) {
			return Verdict{AlwaysTrue: true, Confidence: rule.confidence}
		}
	}
	return unknownVerdict
}

func strictEqSides(e ir.Expr) (l, r ir.Expr, ok bool) {
	b, isBin := e.(*ir.Binary)
	if !isBin || b.Op != ir.OpStrictEq {
		return nil, nil, false
	}
	return b.Left, b.Right, true
}

func isZero(e ir.Expr) bool  { return isNumberLiteral(e, 0) }
func isOne(e ir.Expr) bool   { return isNumberLiteral(e, 1) }
func isTwo(e ir.Expr) bool   { return isNumberLiteral(e, 2) }

func isNumberLiteral(e ir.Expr, v float64) bool {
	lit, ok := e.(*ir.Literal)
	return ok && lit.Value.Kind == ir.LitNumber && lit.Value.Number == v
}

func isXorSelf(e ir.Expr) bool {
	b, ok := e.(*ir.Binary)
	return ok && b.Op == ir.OpBitXor && sameExpr(b.Left, b.Right)
}

func isAndOne(e ir.Expr) bool {
	b, ok := e.(*ir.Binary)
	return ok && b.Op == ir.OpBitAnd && (isOne(b.Right) || isOne(b.Left))
}

func andOperand(e ir.Expr) ir.Expr {
	b := e.(*ir.Binary)
	if isOne(b.Right) {
		return b.Left
	}
	return b.Right
}

func isModTwoOf(e ir.Expr, x ir.Expr) bool {
	b, ok := e.(*ir.Binary)
	return ok && b.Op == ir.OpMod && isTwo(b.Right) && sameExpr(b.Left, x)
}

func isOrZeroOf(maybeOr, x ir.Expr) bool {
	b, ok := maybeOr.(*ir.Binary)
	if !ok || b.Op != ir.OpBitOr {
		return false
	}
	if isZero(b.Right) {
		return sameExpr(b.Left, x)
	}
	if isZero(b.Left) {
		return sameExpr(b.Right, x)
	}
	return false
}

func isAndSelfOf(maybeAnd, x ir.Expr) bool {
	b, ok := maybeAnd.(*ir.Binary)
	return ok && b.Op == ir.OpBitAnd && sameExpr(b.Left, b.Right) && sameExpr(b.Left, x)
}

func isAddZeroOf(maybeAdd, x ir.Expr) bool {
	b, ok := maybeAdd.(*ir.Binary)
	if !ok || b.Op != ir.OpAdd {
		return false
	}
	if isZero(b.Right) {
		return sameExpr(b.Left, x)
	}
	if isZero(b.Left) {
		return sameExpr(b.Right, x)
	}
	return false
}

func isMulOneOf(maybeMul, x ir.Expr) bool {
	b, ok := maybeMul.(*ir.Binary)
	if !ok || b.Op != ir.OpMul {
		return false
	}
	if isOne(b.Right) {
		return sameExpr(b.Left, x)
	}
	if isOne(b.Left) {
		return sameExpr(b.Right, x)
	}
	return false
}

// sameExpr reports whether a and b are syntactically the same read: the
// same SSA name once in SSA form, or the same plain name before that.
// Anything else (two different literals, two different shapes) is never
// treated as "the same", even if they'd happen to evaluate equal.
func sameExpr(a, b ir.Expr) bool {
	ai, aok := a.(*ir.Identifier)
	bi, bok := b.(*ir.Identifier)
	if !aok || !bok {
		return false
	}
	if ai.InSSA && bi.InSSA {
		return ai.SSA.Equal(bi.SSA)
	}
	if !ai.InSSA && !bi.InSSA {
		return ai.Name == bi.Name
	}
	return false
}
