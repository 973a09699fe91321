// Package testfixture stands in for a real JavaScript frontend in tests.
// A full parser/unparser is out of scope here (spec §6 leaves both
// interfaces unspecified beyond their signatures); instead Registry binds
// names to hand-built ir.Program values, so tests can exercise anything
// that depends on a source.Parser/source.Printer pair without requiring an
// actual JS grammar to exist.
package testfixture

import (
	"fmt"
	"sync"

	"deobf/internal/ir"
	"deobf/internal/source"
)

// Registry implements source.Parser and source.Printer over a plain
// name -> *ir.Program map.
type Registry struct {
	mu       sync.RWMutex
	programs map[string]*ir.Program
}

func NewRegistry() *Registry {
	return &Registry{programs: make(map[string]*ir.Program)}
}

// Register binds name so a later Parse(name) returns prog.
func (r *Registry) Register(name string, prog *ir.Program) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.programs[name] = prog
}

// Parse implements source.Parser by treating src as a fixture name rather
// than JavaScript text.
func (r *Registry) Parse(src string) (*ir.Program, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	prog, ok := r.programs[src]
	if !ok {
		return nil, fmt.Errorf("testfixture: no program registered under %q", src)
	}
	return prog, nil
}

// Print implements source.Printer using ir's own debug printer. Fixture
// tests only need a stable, readable rendering to assert against, not
// syntactically valid JavaScript.
func (r *Registry) Print(prog *ir.Program) (string, error) {
	return ir.Print(prog), nil
}

var (
	_ source.Parser  = (*Registry)(nil)
	_ source.Printer = (*Registry)(nil)
)
