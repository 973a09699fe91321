package cfg

import (
	"deobf/internal/errors"
	"deobf/internal/ir"
)

// loopContext records the blocks an unlabelled or labelled break/continue
// inside a loop or switch should target.
type loopContext struct {
	label        string
	continueDest *BasicBlock
	breakDest    *BasicBlock
}

type builder struct {
	blocks  []*BasicBlock
	nextID  int
	cur     *BasicBlock
	entry   *BasicBlock
	exit    *BasicBlock
	loops   []loopContext
	catches []*BasicBlock // current exception handler stack; nil entry means "function exit"
	warns   []*errors.Diagnostic
}

// Build partitions body into basic blocks following the leader rule of
// §4.2: the first statement, every (implicit) branch target, and every
// statement after a branch/return/throw start a new block. Structured
// control-flow statements (if/while/for/switch/try) are lowered directly
// into blocks and edges rather than via an intermediate goto form, since
// the source IR is tree-shaped rather than flat.
//
// Build never aborts the whole module: a malformed terminator (break with
// no enclosing loop) is reported as a structural error and the function
// that contains it is dropped by the caller; other functions continue
// (§4.2 failure model).
func Build(body []ir.Stmt) (*Graph, []*errors.Diagnostic, error) {
	b := &builder{}
	b.entry = b.newBlock("entry")
	b.exit = b.newBlock("exit")
	b.cur = b.entry

	if len(body) == 0 {
		b.cur.addSuccessor(b.exit, EdgeFallthrough)
		return b.graph(), b.warns, nil
	}

	if err := b.lowerList(body); err != nil {
		return nil, b.warns, err
	}
	if !terminated(b.cur) {
		b.cur.addSuccessor(b.exit, EdgeFallthrough)
	}
	return b.graph(), b.warns, nil
}

func (b *builder) graph() *Graph {
	return &Graph{Entry: b.entry, Exit: b.exit, Blocks: b.blocks}
}

func (b *builder) newBlock(label string) *BasicBlock {
	blk := &BasicBlock{ID: b.nextID, Label: label}
	b.nextID++
	b.blocks = append(b.blocks, blk)
	return blk
}

func terminated(b *BasicBlock) bool {
	return b.Terminator.Kind != TermNone
}

func (b *builder) currentHandler() *BasicBlock {
	if len(b.catches) == 0 {
		return nil
	}
	return b.catches[len(b.catches)-1]
}

// lowerList lowers a flat statement list into the current block, splitting
// into new blocks whenever a structured control-flow statement requires it.
func (b *builder) lowerList(stmts []ir.Stmt) error {
	for _, s := range stmts {
		if terminated(b.cur) {
			// Unreachable statements after an unconditional terminator:
			// still lowered into a fresh, disconnected block so later
			// passes can see (and DCE can remove) the dead code, but they
			// gain no predecessor from fallthrough.
			dead := b.newBlock("unreachable")
			b.cur = dead
		}
		if err := b.lowerStmt(s); err != nil {
			return err
		}
	}
	return nil
}

func (b *builder) lowerStmt(s ir.Stmt) error {
	switch n := s.(type) {
	case *ir.ExprStatement, *ir.VariableDecl, *ir.Empty:
		b.emitPossiblyThrowing(n)
		return nil

	case *ir.Block:
		return b.lowerList(n.Body)

	case *ir.Return:
		b.cur.Terminator = Terminator{Kind: TermReturn, ReturnValue: n.Value}
		b.cur.addSuccessor(b.exit, EdgeJump)
		return nil

	case *ir.Throw:
		handler := b.currentHandler()
		target := handler
		if target == nil {
			target = b.exit
		}
		b.cur.Terminator = Terminator{Kind: TermThrow, ThrowValue: n.Value, Handler: handler}
		b.cur.addSuccessor(target, EdgeException)
		return nil

	case *ir.If:
		return b.lowerIf(n)

	case *ir.While:
		return b.lowerWhile(n)

	case *ir.DoWhile:
		return b.lowerDoWhile(n)

	case *ir.For:
		return b.lowerFor(n)

	case *ir.Switch:
		return b.lowerSwitch(n)

	case *ir.Try:
		return b.lowerTry(n)

	case *ir.Break:
		return b.lowerBreak(n)

	case *ir.Continue:
		return b.lowerContinue(n)

	default:
		b.emitPossiblyThrowing(n)
		return nil
	}
}

// emitPossiblyThrowing appends a straight-line instruction to the current
// block. If an enclosing try/catch exists, a potentially-throwing statement
// also gets an exception edge to the handler (§9 "exceptions as control
// flow"); the statement is not split into its own block purely for this —
// the edge is conservative over the whole block, mirroring how real
// compilers model call sites that may throw anywhere in a block.
func (b *builder) emitPossiblyThrowing(s ir.Stmt) {
	b.cur.Instructions = append(b.cur.Instructions, s)
	if handler := b.currentHandler(); handler != nil && mayThrow(s) {
		hasEdge := false
		for _, e := range b.cur.Successors {
			if e.To == handler && e.Kind == EdgeException {
				hasEdge = true
				break
			}
		}
		if !hasEdge {
			b.cur.addSuccessor(handler, EdgeException)
		}
	}
}

// mayThrow is a conservative syntactic check: any statement containing a
// Call or Member access may throw. Passes that need a tighter approximation
// refine this later (e.g. once callees are classified as pure, §4.5).
func mayThrow(s ir.Stmt) bool {
	found := false
	var walkExpr func(ir.Expr)
	walkExpr = func(e ir.Expr) {
		if e == nil || found {
			return
		}
		switch n := e.(type) {
		case *ir.Call, *ir.Member:
			found = true
		case *ir.Binary:
			walkExpr(n.Left)
			walkExpr(n.Right)
		case *ir.Unary:
			walkExpr(n.Arg)
		case *ir.Logical:
			walkExpr(n.Left)
			walkExpr(n.Right)
		case *ir.Conditional:
			walkExpr(n.Test)
			walkExpr(n.Then)
			walkExpr(n.Else)
		case *ir.Assignment:
			walkExpr(n.Target)
			walkExpr(n.Value)
		case *ir.Array:
			for _, el := range n.Elements {
				walkExpr(el)
			}
		case *ir.Object:
			for _, p := range n.Properties {
				walkExpr(p.Value)
			}
		}
	}
	switch n := s.(type) {
	case *ir.ExprStatement:
		walkExpr(n.Expression)
	case *ir.VariableDecl:
		for _, d := range n.Declarators {
			walkExpr(d.Init)
		}
	}
	return found
}

func (b *builder) lowerIf(n *ir.If) error {
	thenBlock := b.newBlock("if.then")
	joinBlock := b.newBlock("if.end")
	var elseBlock *BasicBlock
	elseTarget := joinBlock
	if n.Else != nil {
		elseBlock = b.newBlock("if.else")
		elseTarget = elseBlock
	}

	b.cur.Terminator = Terminator{Kind: TermBranch, Condition: n.Test, TrueBlock: thenBlock, FalseBlock: elseTarget}
	b.cur.addSuccessor(thenBlock, EdgeTrue)
	b.cur.addSuccessor(elseTarget, EdgeFalse)

	b.cur = thenBlock
	if err := b.lowerStmt(n.Then); err != nil {
		return err
	}
	if !terminated(b.cur) {
		b.cur.addSuccessor(joinBlock, EdgeFallthrough)
	}

	if elseBlock != nil {
		b.cur = elseBlock
		if err := b.lowerStmt(n.Else); err != nil {
			return err
		}
		if !terminated(b.cur) {
			b.cur.addSuccessor(joinBlock, EdgeFallthrough)
		}
	}

	b.cur = joinBlock
	return nil
}

func (b *builder) lowerWhile(n *ir.While) error {
	header := b.newBlock("while.header")
	body := b.newBlock("while.body")
	exit := b.newBlock("while.end")

	b.cur.addSuccessor(header, EdgeFallthrough)
	header.Terminator = Terminator{Kind: TermBranch, Condition: n.Test, TrueBlock: body, FalseBlock: exit}
	header.addSuccessor(body, EdgeTrue)
	header.addSuccessor(exit, EdgeFalse)

	b.loops = append(b.loops, loopContext{label: n.Label, continueDest: header, breakDest: exit})
	b.cur = body
	if err := b.lowerStmt(n.Body); err != nil {
		return err
	}
	if !terminated(b.cur) {
		b.cur.addSuccessor(header, EdgeJump)
	}
	b.loops = b.loops[:len(b.loops)-1]

	b.cur = exit
	return nil
}

func (b *builder) lowerDoWhile(n *ir.DoWhile) error {
	body := b.newBlock("dowhile.body")
	header := b.newBlock("dowhile.header")
	exit := b.newBlock("dowhile.end")

	b.cur.addSuccessor(body, EdgeFallthrough)

	b.loops = append(b.loops, loopContext{label: n.Label, continueDest: header, breakDest: exit})
	b.cur = body
	if err := b.lowerStmt(n.Body); err != nil {
		return err
	}
	if !terminated(b.cur) {
		b.cur.addSuccessor(header, EdgeFallthrough)
	}
	b.loops = b.loops[:len(b.loops)-1]

	header.Terminator = Terminator{Kind: TermBranch, Condition: n.Test, TrueBlock: body, FalseBlock: exit}
	header.addSuccessor(body, EdgeTrue)
	header.addSuccessor(exit, EdgeFalse)

	b.cur = exit
	return nil
}

func (b *builder) lowerFor(n *ir.For) error {
	if n.Init != nil {
		if err := b.lowerStmt(n.Init); err != nil {
			return err
		}
	}
	header := b.newBlock("for.header")
	body := b.newBlock("for.body")
	update := b.newBlock("for.update")
	exit := b.newBlock("for.end")

	b.cur.addSuccessor(header, EdgeFallthrough)

	if n.Test != nil {
		header.Terminator = Terminator{Kind: TermBranch, Condition: n.Test, TrueBlock: body, FalseBlock: exit}
		header.addSuccessor(body, EdgeTrue)
		header.addSuccessor(exit, EdgeFalse)
	} else {
		header.addSuccessor(body, EdgeFallthrough)
	}

	b.loops = append(b.loops, loopContext{label: n.Label, continueDest: update, breakDest: exit})
	b.cur = body
	if err := b.lowerStmt(n.Body); err != nil {
		return err
	}
	if !terminated(b.cur) {
		b.cur.addSuccessor(update, EdgeFallthrough)
	}
	b.loops = b.loops[:len(b.loops)-1]

	if n.Update != nil {
		update.Instructions = append(update.Instructions, exprStmtOf(n.Update))
	}
	update.addSuccessor(header, EdgeJump)

	b.cur = exit
	return nil
}

func exprStmtOf(e ir.Expr) ir.Stmt {
	f := ir.NewFactory()
	return f.ExprStatement(e.Pos(), e)
}

func (b *builder) lowerSwitch(n *ir.Switch) error {
	exit := b.newBlock("switch.end")
	b.loops = append(b.loops, loopContext{label: n.Label, breakDest: exit})

	dispatch := b.cur
	var caseBlocks []*BasicBlock
	for range n.Cases {
		caseBlocks = append(caseBlocks, b.newBlock("switch.case"))
	}

	hasDefault := false
	for i, c := range n.Cases {
		if c.Test == nil {
			hasDefault = true
			dispatch.addSuccessor(caseBlocks[i], EdgeFallthrough)
		} else {
			dispatch.addSuccessor(caseBlocks[i], EdgeTrue)
		}
	}
	if !hasDefault {
		dispatch.addSuccessor(exit, EdgeFalse)
	}
	dispatch.Terminator = Terminator{Kind: TermBranch, Condition: n.Discriminant}

	for i, c := range n.Cases {
		b.cur = caseBlocks[i]
		if err := b.lowerList(c.Body); err != nil {
			return err
		}
		if !terminated(b.cur) {
			if i+1 < len(caseBlocks) {
				b.cur.addSuccessor(caseBlocks[i+1], EdgeFallthrough)
			} else {
				b.cur.addSuccessor(exit, EdgeFallthrough)
			}
		}
	}

	b.loops = b.loops[:len(b.loops)-1]
	b.cur = exit
	return nil
}

func (b *builder) lowerTry(n *ir.Try) error {
	var handlerEntry *BasicBlock
	if n.Catch != nil {
		handlerEntry = b.newBlock("catch")
	}
	join := b.newBlock("try.end")

	b.catches = append(b.catches, handlerEntry)
	if err := b.lowerStmt(n.Block); err != nil {
		b.catches = b.catches[:len(b.catches)-1]
		return err
	}
	b.catches = b.catches[:len(b.catches)-1]
	if !terminated(b.cur) {
		b.cur.addSuccessor(join, EdgeFallthrough)
	}

	if handlerEntry != nil {
		b.cur = handlerEntry
		if err := b.lowerStmt(n.Catch.Body); err != nil {
			return err
		}
		if !terminated(b.cur) {
			b.cur.addSuccessor(join, EdgeFallthrough)
		}
	}

	b.cur = join
	if n.Finally != nil {
		if err := b.lowerStmt(n.Finally); err != nil {
			return err
		}
	}
	return nil
}

func (b *builder) findLoop(label string) *loopContext {
	for i := len(b.loops) - 1; i >= 0; i-- {
		if label == "" || b.loops[i].label == label {
			return &b.loops[i]
		}
	}
	return nil
}

func (b *builder) lowerBreak(n *ir.Break) error {
	lc := b.findLoop(n.Label)
	if lc == nil {
		return errors.NewStructural(errors.CodeMalformedTerminator,
			"break with no enclosing loop or switch", n.Pos(), nil)
	}
	b.cur.Terminator = Terminator{Kind: TermJump, Target: lc.breakDest}
	b.cur.addSuccessor(lc.breakDest, EdgeJump)
	return nil
}

func (b *builder) lowerContinue(n *ir.Continue) error {
	lc := b.findLoop(n.Label)
	if lc == nil || lc.continueDest == nil {
		return errors.NewStructural(errors.CodeMalformedTerminator,
			"continue with no enclosing loop", n.Pos(), nil)
	}
	b.cur.Terminator = Terminator{Kind: TermJump, Target: lc.continueDest}
	b.cur.addSuccessor(lc.continueDest, EdgeJump)
	return nil
}
