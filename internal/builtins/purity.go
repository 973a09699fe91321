// Package builtins is the closed registry of well-known JavaScript global
// and prototype functions the pass pipeline is allowed to reason about:
// whether calling one can be deleted when its result is unused (DCE, §4.5)
// and whether it can be constant-folded (const-prop, §4.5). Any callee not
// listed here is conservatively treated as neither, the same way the
// teacher's BuiltinTypes/ModuleDefinition registries treat anything
// outside their closed maps as unrecognised rather than guessing.
package builtins

// Classification records what the pipeline is permitted to assume about a
// single builtin function.
type Classification struct {
	// SideEffectFree means calling it (and discarding the result) is safe
	// to delete — it touches no observable state and never throws for
	// values reaching this registry's arity.
	SideEffectFree bool
	// Deterministic means it is additionally safe to constant-fold: the
	// same argument literals always produce the same result.
	Deterministic bool
}

// registry is the closed set of builtins the pipeline recognises. Anything
// absent is Unknown: DCE must keep the call and const-prop must treat its
// result as Top (§4.5).
var registry = map[string]Classification{
	"Math.abs":     {SideEffectFree: true, Deterministic: true},
	"Math.floor":   {SideEffectFree: true, Deterministic: true},
	"Math.ceil":    {SideEffectFree: true, Deterministic: true},
	"Math.round":   {SideEffectFree: true, Deterministic: true},
	"Math.trunc":   {SideEffectFree: true, Deterministic: true},
	"Math.sign":    {SideEffectFree: true, Deterministic: true},
	"Math.sqrt":    {SideEffectFree: true, Deterministic: true},
	"Math.pow":     {SideEffectFree: true, Deterministic: true},
	"Math.max":     {SideEffectFree: true, Deterministic: true},
	"Math.min":     {SideEffectFree: true, Deterministic: true},
	"Math.random":  {SideEffectFree: true, Deterministic: false},

	"String.fromCharCode": {SideEffectFree: true, Deterministic: true},
	"parseInt":            {SideEffectFree: true, Deterministic: true},
	"parseFloat":          {SideEffectFree: true, Deterministic: true},
	"isNaN":               {SideEffectFree: true, Deterministic: true},
	"isFinite":            {SideEffectFree: true, Deterministic: true},
	"Boolean":             {SideEffectFree: true, Deterministic: true},
	"Number":              {SideEffectFree: true, Deterministic: true},
	"String":              {SideEffectFree: true, Deterministic: true},

	"Array.isArray": {SideEffectFree: true, Deterministic: false},
	"Object.keys":   {SideEffectFree: true, Deterministic: false},
	"Object.values": {SideEffectFree: true, Deterministic: false},
	"Object.freeze": {SideEffectFree: false, Deterministic: false},

	"console.log":   {SideEffectFree: false, Deterministic: false},
	"console.warn":  {SideEffectFree: false, Deterministic: false},
	"console.error": {SideEffectFree: false, Deterministic: false},
}

// Classify looks up calleeName in the closed registry. ok is false for any
// name the registry does not recognise.
func Classify(calleeName string) (c Classification, ok bool) {
	c, ok = registry[calleeName]
	return c, ok
}

// IsSideEffectFree reports whether calling calleeName and discarding its
// result is safe to delete. Unknown callees are never side-effect free.
func IsSideEffectFree(calleeName string) bool {
	c, ok := registry[calleeName]
	return ok && c.SideEffectFree
}

// IsDeterministic reports whether calleeName is safe to constant-fold.
// Unknown callees are never deterministic.
func IsDeterministic(calleeName string) bool {
	c, ok := registry[calleeName]
	return ok && c.Deterministic
}
