package cfg

// ComputeDominance fills in g.IDom, g.DomFrontier and g.IPostDom using the
// classic iterative data-flow algorithm (§4.2: "any correct algorithm is
// acceptable; the specification requires only correctness and that
// dominance frontier is exposed"). Blocks unreachable from Entry are
// skipped — they have no dominator.
func ComputeDominance(g *Graph) {
	order := reversePostorder(g.Entry, successorsOf)
	g.IDom = computeIDom(g.Entry, order, predecessorsOf)
	g.DomFrontier = computeDomFrontier(order, g.IDom, predecessorsOf)

	postOrder := reversePostorder(g.Exit, predecessorsOf)
	g.IPostDom = computeIDom(g.Exit, postOrder, successorsOf)
}

func successorsOf(b *BasicBlock) []*BasicBlock {
	out := make([]*BasicBlock, 0, len(b.Successors))
	for _, e := range b.Successors {
		out = append(out, e.To)
	}
	return out
}

func predecessorsOf(b *BasicBlock) []*BasicBlock {
	out := make([]*BasicBlock, 0, len(b.Predecessors))
	for _, e := range b.Predecessors {
		out = append(out, e.From)
	}
	return out
}

// reversePostorder returns root plus every block reachable from it via
// next, ordered so every block appears after all of its predecessors in
// that traversal (standard DFS-based reverse postorder).
func reversePostorder(root *BasicBlock, next func(*BasicBlock) []*BasicBlock) []*BasicBlock {
	visited := make(map[*BasicBlock]bool)
	var postorder []*BasicBlock
	var visit func(*BasicBlock)
	visit = func(b *BasicBlock) {
		if visited[b] {
			return
		}
		visited[b] = true
		for _, s := range next(b) {
			visit(s)
		}
		postorder = append(postorder, b)
	}
	visit(root)

	// reverse in place
	for i, j := 0, len(postorder)-1; i < j; i, j = i+1, j-1 {
		postorder[i], postorder[j] = postorder[j], postorder[i]
	}
	return postorder
}

// computeIDom is the Cooper/Harvey/Kennedy "A Simple, Fast Dominance
// Algorithm": iterate until fixed point, intersecting each block's
// already-resolved predecessors' idoms.
func computeIDom(root *BasicBlock, rpo []*BasicBlock, preds func(*BasicBlock) []*BasicBlock) map[*BasicBlock]*BasicBlock {
	index := make(map[*BasicBlock]int, len(rpo))
	for i, b := range rpo {
		index[b] = i
	}

	idom := make(map[*BasicBlock]*BasicBlock)
	idom[root] = root

	changed := true
	for changed {
		changed = false
		for _, b := range rpo {
			if b == root {
				continue
			}
			var newIdom *BasicBlock
			for _, p := range preds(b) {
				if idom[p] == nil {
					continue
				}
				if newIdom == nil {
					newIdom = p
					continue
				}
				newIdom = intersect(newIdom, p, idom, index)
			}
			if newIdom != nil && idom[b] != newIdom {
				idom[b] = newIdom
				changed = true
			}
		}
	}
	delete(idom, root) // root has no strict dominator
	return idom
}

func intersect(a, b *BasicBlock, idom map[*BasicBlock]*BasicBlock, index map[*BasicBlock]int) *BasicBlock {
	for a != b {
		for index[a] > index[b] {
			a = idom[a]
		}
		for index[b] > index[a] {
			b = idom[b]
		}
	}
	return a
}

// computeDomFrontier derives each block's dominance frontier (§3 GLOSSARY):
// blocks whose immediate predecessors are dominated by B but which B does
// not itself dominate.
func computeDomFrontier(rpo []*BasicBlock, idom map[*BasicBlock]*BasicBlock, preds func(*BasicBlock) []*BasicBlock) map[*BasicBlock][]*BasicBlock {
	df := make(map[*BasicBlock][]*BasicBlock)
	seen := make(map[*BasicBlock]map[*BasicBlock]bool)

	for _, b := range rpo {
		ps := preds(b)
		if len(ps) < 2 {
			continue
		}
		for _, p := range ps {
			runner := p
			for runner != idom[b] && runner != nil {
				if seen[runner] == nil {
					seen[runner] = make(map[*BasicBlock]bool)
				}
				if !seen[runner][b] {
					seen[runner][b] = true
					df[runner] = append(df[runner], b)
				}
				runner = idom[runner]
			}
		}
	}
	return df
}

// Dominates reports whether a dominates b (reflexively: a dominates a).
func (g *Graph) Dominates(a, b *BasicBlock) bool {
	if a == b {
		return true
	}
	cur := b
	for {
		next, ok := g.IDom[cur]
		if !ok {
			return false
		}
		if next == a {
			return true
		}
		if next == cur {
			return false
		}
		cur = next
	}
}
