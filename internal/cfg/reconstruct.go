package cfg

import "deobf/internal/ir"

// Reconstruct rebuilds a nested statement tree from g, the inverse of what
// Build does to a function body (§4.2). Every pass after Lower rewrites
// CFG/SSA, never FunctionDecl.Body (§4.4's "CFG is canonical" decision) —
// Reconstruct is what lets those edits become visible again wherever a
// FunctionDecl's body is read back out (printing, re-emission, a second
// lowering pass over bytecode-lifted IR that never had a body to begin
// with).
//
// It only recognises the shapes a reducible CFG naturally has: straight-line
// flow, if/else whose arms rejoin at a common (immediate-post-dominator)
// block, and single-header loops found via a back edge that the loop body
// dominates. Those are exactly the shapes Build itself produces and the
// shapes const-prop/DCE/opaque-predicate folding can remove blocks and
// edges from — none of them introduces a shape Build wouldn't otherwise
// make. Anything else (a switch dispatch block, a try/catch's exception
// edges, an irreducible CFG after a lossy bytecode lift) falls back to a
// flat dump, in depth-first control-flow order, of every reachable block's
// instructions: still every effect in the function, just without the
// nested if/while wrapper the shape doesn't safely support reconstructing.
func Reconstruct(g *Graph) []ir.Stmt {
	f := ir.NewFactory()
	if hasUnstructurableEdges(g) {
		return flatten(f, g)
	}
	visited := make(map[*BasicBlock]bool)
	stmts, _, ok := reconstruct(f, g, g.Entry, nil, nil, visited)
	if !ok {
		return flatten(f, g)
	}
	return stmts
}

// hasUnstructurableEdges reports whether g contains a shape this
// reconstructor never attempts to structure: an exception edge (try/catch
// has no Terminator-reachable path to its handler, only the overlay
// EdgeException successor) or a switch dispatch terminator (TermBranch
// with no single true/false target — lowerSwitch gives every case its own
// successor instead).
func hasUnstructurableEdges(g *Graph) bool {
	for _, b := range g.Blocks {
		for _, e := range b.Successors {
			if e.Kind == EdgeException {
				return true
			}
		}
		if b.Terminator.Kind == TermBranch && (b.Terminator.TrueBlock == nil || b.Terminator.FalseBlock == nil) {
			return true
		}
	}
	return false
}

// loopCtx is the innermost enclosing loop a reconstruct call is nested
// under, used to tell "control left the loop" (cur outside body) from
// "control looped back to the top" (cur == header) apart from an ordinary
// forward jump.
type loopCtx struct {
	header *BasicBlock
	body   map[*BasicBlock]bool
}

// reconstruct emits the region starting at cur until control reaches stop
// (exclusive), returns to ctx's loop header, or leaves ctx's loop body
// entirely (reported back as exit so the caller can keep going from
// there). ok is false the moment the walk hits a shape it doesn't
// recognise — a revisited block outside loop-reentry, or mismatched exits
// from an if's two arms — so Reconstruct can fall back cleanly instead of
// emitting a structurally wrong tree.
func reconstruct(f *ir.Factory, g *Graph, cur, stop *BasicBlock, ctx *loopCtx, visited map[*BasicBlock]bool) (stmts []ir.Stmt, exit *BasicBlock, ok bool) {
	for {
		if cur == nil || cur == g.Exit {
			return stmts, nil, true
		}
		if ctx != nil {
			if cur == ctx.header {
				return stmts, nil, true
			}
			if !ctx.body[cur] {
				// Leaving the enclosing while(true) needs an explicit break.
				stmts = append(stmts, f.Break(ir.Position{}, ""))
				return stmts, cur, true
			}
		}
		if cur == stop {
			return stmts, nil, true
		}
		if visited[cur] {
			return stmts, nil, false
		}
		if isLoopHeader(g, cur) {
			whileStmt, loopExit, lok := emitLoop(f, g, cur, visited)
			if !lok {
				return stmts, nil, false
			}
			stmts = append(stmts, whileStmt)
			cur = loopExit
			continue
		}

		visited[cur] = true
		stmts = append(stmts, cur.Instructions...)

		switch cur.Terminator.Kind {
		case TermReturn:
			stmts = append(stmts, f.Return(ir.Position{}, cur.Terminator.ReturnValue))
			return stmts, nil, true
		case TermThrow:
			stmts = append(stmts, f.Throw(ir.Position{}, cur.Terminator.ThrowValue))
			return stmts, nil, true
		case TermNone:
			next := fallthroughTarget(cur)
			if next == nil || next == g.Exit {
				return stmts, nil, true
			}
			cur = next
		case TermJump:
			cur = cur.Terminator.Target
		case TermBranch:
			ifStmt, branchExit, bok := reconstructBranch(f, g, cur, ctx, visited)
			if !bok {
				return stmts, nil, false
			}
			stmts = append(stmts, ifStmt)
			if branchExit != nil {
				return stmts, branchExit, true
			}
			cur = g.IPostDom[cur]
		}
	}
}

// reconstructBranch builds the if/else for a TermBranch block and reports
// where control goes after it: nil once both arms rejoin at the branch's
// immediate post-dominator, or the (single, agreeing) block either arm
// left ctx's loop for.
func reconstructBranch(f *ir.Factory, g *Graph, b *BasicBlock, ctx *loopCtx, visited map[*BasicBlock]bool) (ir.Stmt, *BasicBlock, bool) {
	merge := g.IPostDom[b]
	thenStmts, thenExit, ok1 := reconstruct(f, g, b.Terminator.TrueBlock, merge, ctx, visited)
	elseStmts, elseExit, ok2 := reconstruct(f, g, b.Terminator.FalseBlock, merge, ctx, visited)
	if !ok1 || !ok2 {
		return nil, nil, false
	}
	var elseStmt ir.Stmt
	if len(elseStmts) > 0 {
		elseStmt = f.Block(ir.Position{}, elseStmts)
	}
	ifStmt := f.If(ir.Position{}, b.Terminator.Condition, f.Block(ir.Position{}, thenStmts), elseStmt)

	switch {
	case thenExit != nil && elseExit != nil && thenExit != elseExit:
		return nil, nil, false
	case thenExit != nil:
		return ifStmt, thenExit, true
	case elseExit != nil:
		return ifStmt, elseExit, true
	default:
		return ifStmt, nil, true
	}
}

// fallthroughTarget returns the block a TermNone block falls into: the
// builder leaves a block with no Terminator whenever it wired the single
// successor edge itself instead (a while/for header's predecessor, a
// no-test for(;;) header) rather than nil meaning "end of function" — that
// case is only true when there's no non-exception successor at all, or it
// goes straight to Exit.
func fallthroughTarget(b *BasicBlock) *BasicBlock {
	for _, e := range b.Successors {
		if e.Kind != EdgeException {
			return e.To
		}
	}
	return nil
}

// isLoopHeader reports whether b has a back edge into it from a block it
// dominates — the standard natural-loop header test.
func isLoopHeader(g *Graph, b *BasicBlock) bool {
	for _, e := range b.Predecessors {
		if g.Dominates(b, e.From) {
			return true
		}
	}
	return false
}

// naturalLoopBody computes the set of blocks belonging to the loop headed
// by header: header itself plus every block that can reach a back edge
// into header without already having left through header.
func naturalLoopBody(g *Graph, header *BasicBlock) map[*BasicBlock]bool {
	body := map[*BasicBlock]bool{header: true}
	var worklist []*BasicBlock
	for _, e := range header.Predecessors {
		if g.Dominates(header, e.From) && !body[e.From] {
			body[e.From] = true
			worklist = append(worklist, e.From)
		}
	}
	for len(worklist) > 0 {
		n := len(worklist) - 1
		b := worklist[n]
		worklist = worklist[:n]
		for _, e := range b.Predecessors {
			if !body[e.From] {
				body[e.From] = true
				worklist = append(worklist, e.From)
			}
		}
	}
	return body
}

// emitLoop builds a while(true) statement for the loop headed by header,
// treating the header's own branch (if it has one) as a break-on-false
// guard inside the loop body rather than the loop's textual test, since
// by the time a CFG can have been rewritten by branch folding/DCE the two
// are indistinguishable anyway. Returns the block control reaches once it
// leaves the loop (nil if every path out of it returns/throws).
func emitLoop(f *ir.Factory, g *Graph, header *BasicBlock, visited map[*BasicBlock]bool) (ir.Stmt, *BasicBlock, bool) {
	if visited[header] {
		return nil, nil, false
	}
	visited[header] = true

	body := naturalLoopBody(g, header)
	ctx := &loopCtx{header: header, body: body}

	stmts := append([]ir.Stmt{}, header.Instructions...)

	switch header.Terminator.Kind {
	case TermReturn:
		stmts = append(stmts, f.Return(ir.Position{}, header.Terminator.ReturnValue))
		return loopStmt(f, stmts), nil, true
	case TermThrow:
		stmts = append(stmts, f.Throw(ir.Position{}, header.Terminator.ThrowValue))
		return loopStmt(f, stmts), nil, true
	case TermNone:
		// A for(;;) header with no test (lowerFor leaves it unterminated,
		// falling through to the body unconditionally) looks just like
		// TermJump here.
		next := fallthroughTarget(header)
		if next == nil {
			return loopStmt(f, stmts), nil, true
		}
		rest, exit, ok := reconstruct(f, g, next, nil, ctx, visited)
		if !ok {
			return nil, nil, false
		}
		stmts = append(stmts, rest...)
		return loopStmt(f, stmts), exit, true
	case TermJump:
		rest, exit, ok := reconstruct(f, g, header.Terminator.Target, nil, ctx, visited)
		if !ok {
			return nil, nil, false
		}
		stmts = append(stmts, rest...)
		return loopStmt(f, stmts), exit, true
	case TermBranch:
		if header.Terminator.TrueBlock == nil || header.Terminator.FalseBlock == nil {
			return nil, nil, false
		}
		ifStmt, branchExit, ok := reconstructBranch(f, g, header, ctx, visited)
		if !ok {
			return nil, nil, false
		}
		stmts = append(stmts, ifStmt)
		if branchExit != nil {
			return loopStmt(f, stmts), branchExit, true
		}
		merge := g.IPostDom[header]
		if merge == nil {
			return loopStmt(f, stmts), nil, true
		}
		if body[merge] {
			// merge re-converges inside the loop itself (an if/else that
			// rejoins before looping back) — keep structuring under the
			// same loop context rather than treating it as having left.
			rest, exit, ok := reconstruct(f, g, merge, nil, ctx, visited)
			if !ok {
				return nil, nil, false
			}
			stmts = append(stmts, rest...)
			return loopStmt(f, stmts), exit, true
		}
		// merge lies outside the loop body: that's exactly where control
		// goes once the loop is left, the same as an ordinary branchExit.
		return loopStmt(f, stmts), merge, true
	default:
		return nil, nil, false
	}
}

func loopStmt(f *ir.Factory, body []ir.Stmt) ir.Stmt {
	return f.While(ir.Position{}, f.Literal(ir.Position{}, ir.NewLiteralBool(true)), f.Block(ir.Position{}, body))
}

// flatten dumps every block reachable from Entry, in the order a
// depth-first walk over Successors encounters them, each as its own
// (brace-invisible, see Printer's *Block case) statement group. It never
// tries to recover if/while nesting; it only guarantees every reachable
// effect still appears somewhere in the result.
func flatten(f *ir.Factory, g *Graph) []ir.Stmt {
	var out []ir.Stmt
	visited := make(map[*BasicBlock]bool)
	var walk func(b *BasicBlock)
	walk = func(b *BasicBlock) {
		if b == nil || b == g.Exit || visited[b] {
			return
		}
		visited[b] = true

		body := append([]ir.Stmt{}, b.Instructions...)
		switch b.Terminator.Kind {
		case TermReturn:
			body = append(body, f.Return(ir.Position{}, b.Terminator.ReturnValue))
		case TermThrow:
			body = append(body, f.Throw(ir.Position{}, b.Terminator.ThrowValue))
		}
		if len(body) > 0 {
			blk := f.Block(ir.Position{}, body)
			blk.Label = b.Label
			out = append(out, blk)
		}
		for _, e := range b.Successors {
			walk(e.To)
		}
	}
	walk(g.Entry)
	return out
}
