package pass

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds every tunable threshold and budget named across spec §4:
// const-prop's confidence floor and iteration cap, the opaque-predicate
// oracle's confidence floor and SMT budget, the devirtualiser's emulation
// step cap, and the pipeline's own fixed-point iteration cap. It is loaded
// from YAML the way the teacher loads its own tool configuration, rather
// than wired up as a pile of flag.Int calls.
type Config struct {
	ConstProp struct {
		ConfidenceThreshold float64 `yaml:"confidence_threshold"`
		MaxIterations       int     `yaml:"max_iterations"`
	} `yaml:"constant_propagation"`

	OpaquePredicate struct {
		ConfidenceThreshold float64       `yaml:"confidence_threshold"`
		SMTTimeout          time.Duration `yaml:"smt_timeout"`
		SMTComplexityBudget int           `yaml:"smt_complexity_budget"`
	} `yaml:"opaque_predicate"`

	Devirtualization struct {
		RefuseBelow      float64 `yaml:"refuse_below"`
		EagerAbove       float64 `yaml:"eager_above"`
		EmulationStepCap int     `yaml:"emulation_step_cap"`
	} `yaml:"devirtualization"`

	RegisterLifter struct {
		ConfidenceThreshold float64 `yaml:"confidence_threshold"`
	} `yaml:"register_lifter"`

	Pipeline struct {
		MaxFixedPointIterations int `yaml:"max_fixed_point_iterations"`
	} `yaml:"pipeline"`
}

// DefaultConfig returns the thresholds named in spec §4: const-prop
// rewrites at confidence >= 0.9 within 100 iterations; opaque-predicate
// elimination rewrites at confidence >= 0.7 with a 5s/100-node SMT budget;
// devirtualisation refuses below 0.3 confidence and goes eager above 0.6,
// capped at 10000 emulated steps.
func DefaultConfig() Config {
	var c Config
	c.ConstProp.ConfidenceThreshold = 0.9
	c.ConstProp.MaxIterations = 100
	c.OpaquePredicate.ConfidenceThreshold = 0.7
	c.OpaquePredicate.SMTTimeout = 5 * time.Second
	c.OpaquePredicate.SMTComplexityBudget = 100
	c.Devirtualization.RefuseBelow = 0.3
	c.Devirtualization.EagerAbove = 0.6
	c.Devirtualization.EmulationStepCap = 10000
	c.RegisterLifter.ConfidenceThreshold = 0.5
	c.Pipeline.MaxFixedPointIterations = 100
	return c
}

// LoadConfig reads a YAML config file, starting from DefaultConfig so an
// omitted section keeps its default rather than zeroing out.
func LoadConfig(path string) (Config, error) {
	c := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return c, err
	}
	if err := yaml.Unmarshal(data, &c); err != nil {
		return c, err
	}
	return c, nil
}
