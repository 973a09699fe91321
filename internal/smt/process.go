package smt

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"time"

	pkgerrors "github.com/pkg/errors"
)

// ProcessSolver drives a real SMT-LIB2-speaking solver process (e.g. z3
// -in) over its stdin/stdout, translating Solver calls into SMT-LIB2
// commands and parsing replies with the participle grammar in
// response.go. A process that can't be started is reported as an error
// from NewProcessSolver; one that closes its stdout/stdin makes later
// calls return errors, which the opaque-predicate pass treats as "no
// verdict" and leaves the predicate unrewritten, not as a panic.
type ProcessSolver struct {
	cmd     *exec.Cmd
	stdin   io.WriteCloser
	stdout  *bufio.Reader
	timeout time.Duration
}

// NewProcessSolver starts an SMT-LIB2 solver binary (path, args...) in
// interactive mode and leaves it running until the caller is done.
func NewProcessSolver(ctx context.Context, path string, args ...string) (*ProcessSolver, error) {
	cmd := exec.CommandContext(ctx, path, args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, pkgerrors.Wrap(err, "smt: opening solver stdin")
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, pkgerrors.Wrap(err, "smt: opening solver stdout")
	}
	if err := cmd.Start(); err != nil {
		return nil, pkgerrors.Wrap(err, "smt: starting solver process")
	}
	return &ProcessSolver{
		cmd:     cmd,
		stdin:   stdin,
		stdout:  bufio.NewReader(stdout),
		timeout: 5 * time.Second,
	}, nil
}

func (p *ProcessSolver) send(line string) error {
	_, err := io.WriteString(p.stdin, line+"\n")
	return err
}

func (p *ProcessSolver) readLine(ctx context.Context) (string, error) {
	type result struct {
		line string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		line, err := p.stdout.ReadString('\n')
		done <- result{line, err}
	}()
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-done:
		return strings.TrimSpace(r.line), r.err
	}
}

func (p *ProcessSolver) Push(ctx context.Context) error {
	return p.send("(push 1)")
}

func (p *ProcessSolver) Pop(ctx context.Context) error {
	return p.send("(pop 1)")
}

func (p *ProcessSolver) Assert(ctx context.Context, e Expr) error {
	for _, decl := range declareConsts(e) {
		if err := p.send(decl); err != nil {
			return err
		}
	}
	return p.send(fmt.Sprintf("(assert %s)", e.String()))
}

func (p *ProcessSolver) SetTimeout(d time.Duration) { p.timeout = d }

func (p *ProcessSolver) Reset(ctx context.Context) error {
	return p.send("(reset)")
}

// Check sends check-sat and waits for a reply, bounded by both ctx and
// this solver's configured per-query timeout (§4.6): whichever fires
// first yields Timeout rather than blocking the pipeline indefinitely.
func (p *ProcessSolver) Check(ctx context.Context) (Verdict, error) {
	if err := p.send("(check-sat)"); err != nil {
		return Unknown, pkgerrors.Wrap(err, "smt: sending check-sat")
	}

	queryCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	line, err := p.readLine(queryCtx)
	if err != nil {
		if queryCtx.Err() != nil {
			return Timeout, nil
		}
		return Unknown, pkgerrors.Wrap(err, "smt: reading solver reply")
	}
	return parseResponse(line), nil
}

// Close terminates the solver process.
func (p *ProcessSolver) Close() error {
	p.stdin.Close()
	return p.cmd.Wait()
}
