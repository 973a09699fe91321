package builtins

import (
	"math"

	"deobf/internal/ir"
)

// Eval evaluates a call to a Deterministic builtin whose arguments are all
// already-known literals. It returns ok=false if calleeName is not
// registered as Deterministic, if the arity doesn't match what the
// function expects, or if any argument isn't a number (the only literal
// kind these functions accept) — const-prop (§4.5) treats any of those as
// "cannot fold" and leaves the call in place. Only the Math functions,
// isNaN, isFinite and Number are folded here; the other Deterministic
// builtins (String.fromCharCode, parseInt, parseFloat, Boolean, String)
// also return ok=false.
func Eval(calleeName string, args []ir.LiteralValue) (ir.LiteralValue, bool) {
	if !IsDeterministic(calleeName) {
		return ir.LiteralValue{}, false
	}

	nums := make([]float64, len(args))
	for i, a := range args {
		if a.Kind != ir.LitNumber {
			return ir.LiteralValue{}, false
		}
		nums[i] = a.Number
	}

	switch calleeName {
	case "Math.abs":
		return one(nums, math.Abs)
	case "Math.floor":
		return one(nums, math.Floor)
	case "Math.ceil":
		return one(nums, math.Ceil)
	case "Math.round":
		return one(nums, math.Round)
	case "Math.trunc":
		return one(nums, math.Trunc)
	case "Math.sign":
		return one(nums, func(v float64) float64 {
			switch {
			case v > 0:
				return 1
			case v < 0:
				return -1
			default:
				return v
			}
		})
	case "Math.sqrt":
		return one(nums, math.Sqrt)
	case "Math.pow":
		if len(nums) != 2 {
			return ir.LiteralValue{}, false
		}
		return ir.NewLiteralNumber(math.Pow(nums[0], nums[1])), true
	case "Math.max":
		if len(nums) == 0 {
			return ir.NewLiteralNumber(math.Inf(-1)), true
		}
		m := nums[0]
		for _, n := range nums[1:] {
			m = math.Max(m, n)
		}
		return ir.NewLiteralNumber(m), true
	case "Math.min":
		if len(nums) == 0 {
			return ir.NewLiteralNumber(math.Inf(1)), true
		}
		m := nums[0]
		for _, n := range nums[1:] {
			m = math.Min(m, n)
		}
		return ir.NewLiteralNumber(m), true
	case "isNaN":
		if len(nums) != 1 {
			return ir.LiteralValue{}, false
		}
		return ir.NewLiteralBool(math.IsNaN(nums[0])), true
	case "isFinite":
		if len(nums) != 1 {
			return ir.LiteralValue{}, false
		}
		return ir.NewLiteralBool(!math.IsNaN(nums[0]) && !math.IsInf(nums[0], 0)), true
	case "Number":
		if len(nums) != 1 {
			return ir.LiteralValue{}, false
		}
		return ir.NewLiteralNumber(nums[0]), true
	default:
		return ir.LiteralValue{}, false
	}
}

func one(nums []float64, f func(float64) float64) (ir.LiteralValue, bool) {
	if len(nums) != 1 {
		return ir.LiteralValue{}, false
	}
	return ir.NewLiteralNumber(f(nums[0])), true
}
