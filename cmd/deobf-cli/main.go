package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/fatih/color"

	"deobf/internal/bytecode/register"
	"deobf/internal/bytecode/stack"
	"deobf/internal/devirt"
	"deobf/internal/errors"
	"deobf/internal/ir"
	"deobf/internal/pass"
	"deobf/internal/passes/constprop"
	"deobf/internal/passes/dce"
	"deobf/internal/passes/opaque"
	"deobf/internal/smt"
)

func main() {
	engine := flag.String("engine", "stack", "bytecode engine the input file was produced by: stack or register")
	input := flag.String("input", "", "path to a bytecode module (stack-engine QJS-style or register-engine V8I-style)")
	configPath := flag.String("config", "", "optional YAML pipeline configuration file")
	runDevirt := flag.Bool("devirt", true, "sweep the pipeline's output for VM dispatch loops (§4.9) and devirtualize any found")
	flag.Parse()

	if *input == "" {
		fmt.Fprintln(os.Stderr, "usage: deobf-cli -engine stack|register -input <file> [-config <file.yaml>]")
		os.Exit(1)
	}

	config := pass.DefaultConfig()
	if *configPath != "" {
		loaded, err := pass.LoadConfig(*configPath)
		if err != nil {
			color.Red("failed to load config %s: %v", *configPath, err)
			os.Exit(1)
		}
		config = loaded
	}

	data, err := os.ReadFile(*input)
	if err != nil {
		color.Red("failed to read %s: %v", *input, err)
		os.Exit(1)
	}

	var state *pass.State
	var liftDiags []*errors.Diagnostic

	switch *engine {
	case "stack":
		state, liftDiags, err = stack.Lift(data)
		if err != nil {
			color.Red("stack lifter failed: %v", err)
			os.Exit(1)
		}
	case "register":
		state, liftDiags = register.Lift(data, config.RegisterLifter.ConfidenceThreshold)
	default:
		fmt.Fprintf(os.Stderr, "unknown -engine %q (want stack or register)\n", *engine)
		os.Exit(1)
	}

	state = state.WithDiagnostics(liftDiags)

	pipeline := pass.NewPipeline(
		constprop.New(),
		dce.New(),
		opaque.New(smt.NewMockSolver()),
	)

	final, err := pipeline.RunState(state, config)
	if err != nil {
		color.Red("pipeline error: %v", err)
		os.Exit(1)
	}

	reportDiagnostics(*input, final.Diagnostics)

	prog := &ir.Program{}
	for _, fs := range final.Functions {
		prog.Functions = append(prog.Functions, fs.Materialize())
	}

	if *runDevirt {
		prog.Functions = append(prog.Functions, devirtualizeSweep(pipeline, config, prog.Functions, *input)...)
	}

	fmt.Println(ir.Print(prog))

	color.Green("processed %s (%s engine), %d function(s) lifted", *input, *engine, len(prog.Functions))
}

// devirtualizeSweep runs §4.9's VM devirtualiser over every already-
// pipelined function, looking for a dispatch-loop shape the const-prop/DCE
// passes may have just cleaned up into something Devirtualize can
// recognize. A hit's "devirtualized_function" is lowered and re-run
// through the same pipeline (§2: "devirtualised subtrees re-enter the
// same pipeline") before being materialized alongside the rest of the
// output.
func devirtualizeSweep(pipeline *pass.Pipeline, config pass.Config, fns []*ir.FunctionDecl, filename string) []*ir.FunctionDecl {
	var out []*ir.FunctionDecl
	for _, fn := range fns {
		devProg, diags, ok := devirt.Devirtualize(fn, config)
		reportDiagnostics(filename, diags)
		if !ok {
			continue
		}
		devState, lowerDiags := pass.Lower(devProg)
		devState = devState.WithDiagnostics(lowerDiags)
		devFinal, err := pipeline.RunState(devState, config)
		if err != nil {
			color.Red("devirtualized pipeline error: %v", err)
			continue
		}
		reportDiagnostics(filename, devFinal.Diagnostics)
		for _, fs := range devFinal.Functions {
			out = append(out, fs.Materialize())
		}
	}
	return out
}

func reportDiagnostics(filename string, diags []*errors.Diagnostic) {
	if len(diags) == 0 {
		return
	}
	reporter := errors.NewReporter(filename, "")
	fmt.Fprint(os.Stderr, reporter.FormatAll(diags))
}
