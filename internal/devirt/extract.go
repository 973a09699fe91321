package devirt

import "deobf/internal/ir"

// ExtractBytecodeArray implements §4.9 phase 3: find the longest
// all-numeric array literal bound to a variable in fn's body, preferring
// one bound to the dispatcher's own array-variable name when present.
func ExtractBytecodeArray(fn *ir.FunctionDecl, preferName string) ([]int64, string, bool) {
	var best []int64
	var bestName string

	for _, s := range fn.Body.Body {
		decl, ok := s.(*ir.VariableDecl)
		if !ok {
			continue
		}
		for _, d := range decl.Declarators {
			vals, ok := numericArray(d.Init)
			if !ok {
				continue
			}
			if d.Name == preferName {
				return vals, d.Name, true
			}
			if len(vals) > len(best) {
				best, bestName = vals, d.Name
			}
		}
	}
	if best == nil {
		return nil, "", false
	}
	return best, bestName, true
}

func numericArray(e ir.Expr) ([]int64, bool) {
	arr, ok := e.(*ir.Array)
	if !ok || len(arr.Elements) == 0 {
		return nil, false
	}
	out := make([]int64, len(arr.Elements))
	for i, el := range arr.Elements {
		v, ok := literalNumber(el)
		if !ok {
			return nil, false
		}
		out[i] = int64(v)
	}
	return out, true
}
