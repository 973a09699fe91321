package main

import (
	"context"
	"flag"
	"io"
	"log"
	"os"

	"github.com/sourcegraph/jsonrpc2"

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
	"deobf/internal/source"
)

// stdioStream adapts the process's own stdin/stdout into the
// io.ReadWriteCloser jsonrpc2.NewBufferedStream wants, the same way an LSP
// server speaks JSON-RPC over its own process's stdio rather than a socket.
type stdioStream struct {
	in  io.ReadCloser
	out io.WriteCloser
}

func (s stdioStream) Read(p []byte) (int, error)  { return s.in.Read(p) }
func (s stdioStream) Write(p []byte) (int, error) { return s.out.Write(p) }
func (s stdioStream) Close() error {
	inErr := s.in.Close()
	outErr := s.out.Close()
	if inErr != nil {
		return inErr
	}
	return outErr
}

// noopHandler never fields a request: this service is a one-directional
// notification stream, it has no method for a client to call back into.
type noopHandler struct{}

func (noopHandler) Handle(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) {}

// rpcSink implements source.TraceSink by forwarding every pass event as a
// pipeline/passCompleted notification.
type rpcSink struct {
	conn *jsonrpc2.Conn
}

func (s *rpcSink) Record(ev source.TraceEvent) {
	if err := s.conn.Notify(context.Background(), "pipeline/passCompleted", ev); err != nil {
		log.Printf("failed to send pipeline/passCompleted: %v", err)
	}
}

// notifyWarning sends one pipeline/warning notification per semantic or
// budget diagnostic the run accumulated.
func (s *rpcSink) notifyWarning(d *errors.Diagnostic) {
	params := map[string]any{
		"code":    d.Code,
		"kind":    d.Kind.String(),
		"message": d.Message,
	}
	if err := s.conn.Notify(context.Background(), "pipeline/warning", params); err != nil {
		log.Printf("failed to send pipeline/warning: %v", err)
	}
}

func main() {
	engine := flag.String("engine", "stack", "bytecode engine the input file was produced by: stack or register")
	input := flag.String("input", "", "path to a bytecode module")
	configPath := flag.String("config", "", "optional YAML pipeline configuration file")
	flag.Parse()

	if *input == "" {
		log.Fatal("usage: deobf-introspect -engine stack|register -input <file> [-config <file.yaml>]")
	}

	config := pass.DefaultConfig()
	if *configPath != "" {
		loaded, err := pass.LoadConfig(*configPath)
		if err != nil {
			log.Fatalf("failed to load config %s: %v", *configPath, err)
		}
		config = loaded
	}

	data, err := os.ReadFile(*input)
	if err != nil {
		log.Fatalf("failed to read %s: %v", *input, err)
	}

	stream := jsonrpc2.NewBufferedStream(stdioStream{in: os.Stdin, out: os.Stdout}, jsonrpc2.VSCodeObjectCodec{})
	conn := jsonrpc2.NewConn(context.Background(), stream, noopHandler{})
	defer conn.Close()

	sink := &rpcSink{conn: conn}

	var state *pass.State
	var liftDiags []*errors.Diagnostic
	switch *engine {
	case "stack":
		state, liftDiags, err = stack.Lift(data)
		if err != nil {
			log.Fatalf("stack lifter failed: %v", err)
		}
	case "register":
		state, liftDiags = register.Lift(data, config.RegisterLifter.ConfidenceThreshold)
	default:
		log.Fatalf("unknown -engine %q (want stack or register)", *engine)
	}
	state = state.WithDiagnostics(liftDiags)

	pipeline := pass.NewPipeline(
		constprop.New(),
		dce.New(),
		opaque.New(smt.NewMockSolver()),
	).WithTraceSink(sink)

	final, err := pipeline.RunState(state, config)
	if err != nil {
		log.Fatalf("pipeline error: %v", err)
	}

	for _, d := range final.Diagnostics {
		if d.Kind == errors.KindSemanticWarning || d.Kind == errors.KindBudget {
			sink.notifyWarning(d)
		}
	}

	devirtualized := devirtualizeSweep(pipeline, config, final.Functions, sink)

	log.Printf("pipeline finished: %d function(s), %d diagnostic(s), %d devirtualized function(s)",
		len(final.Functions), len(final.Diagnostics), len(devirtualized))
}

// devirtualizeSweep mirrors deobf-cli's: it runs §4.9's detector over every
// pipelined function and, for each dispatch loop found, lowers and re-runs
// the result through the same pipeline (§2's "devirtualised subtrees
// re-enter the same pipeline"), surfacing its diagnostics over the same
// pipeline/warning notification channel as everything else.
func devirtualizeSweep(pipeline *pass.Pipeline, config pass.Config, fns []*pass.FunctionState, sink *rpcSink) []*ir.FunctionDecl {
	var out []*ir.FunctionDecl
	for _, fs := range fns {
		devProg, diags, ok := devirt.Devirtualize(fs.Materialize(), config)
		for _, d := range diags {
			sink.notifyWarning(d)
		}
		if !ok {
			continue
		}
		devState, lowerDiags := pass.Lower(devProg)
		devState = devState.WithDiagnostics(lowerDiags)
		devFinal, err := pipeline.RunState(devState, config)
		if err != nil {
			log.Printf("devirtualized pipeline error: %v", err)
			continue
		}
		for _, d := range devFinal.Diagnostics {
			if d.Kind == errors.KindSemanticWarning || d.Kind == errors.KindBudget {
				sink.notifyWarning(d)
			}
		}
		for _, dfs := range devFinal.Functions {
			out = append(out, dfs.Materialize())
		}
	}
	return out
}
