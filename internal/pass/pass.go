// Package pass implements the cooperative pass pipeline of spec §4.4: a
// sequence of named transformations run to a fixed point over a shared
// State. The passes edit each function's CFG/SSA in place and return a
// State that shares those FunctionStates, so the State a pass was given
// also shows its edits afterwards. It generalises the teacher's OptimizationPass/OptimizationPipeline
// pair to a de-virtualising-compiler domain: passes gain per-function
// CFG/SSA context, structured diagnostics, configurable thresholds, and
// per-pass metrics instead of a bare changed bool and a fmt.Printf log.
package pass

import "deobf/internal/errors"

// Pass is a single named transformation over a State. Run returns the next
// State (the passes here edit the incoming FunctionStates in place and
// return them in it), whether anything changed, and any diagnostics raised
// while running.
type Pass interface {
	Name() string
	Description() string
	Run(state *State, config Config) (next *State, changed bool, diags []*errors.Diagnostic, err error)
}
