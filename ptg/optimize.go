package ptg

// OptStats reports what an Optimize pass did.
type OptStats struct {
	NodesMerged int // CAST / zero-offset GEP / single-value PHI collapsed into their source
	NodesPruned int // ALLOC-only-unknown-memory and zero-operand PHI nodes removed
}

// Optimize shrinks g before the fixpoint runs, folding away nodes
// whose presence cannot affect the solved result. The merge and prune
// passes run alternately until neither changes anything, since
// reducing unknowns can expose fresh all-operands-same PHIs for the
// next merge pass.
func Optimize(g *PointerGraph) OptStats {
	var stats OptStats
	for {
		merged := mergeEquivalentNodes(g)
		stats.NodesMerged += merged
		pruned := reduceUnknowns(g)
		stats.NodesPruned += pruned
		if merged == 0 && pruned == 0 {
			break
		}
	}
	return stats
}

// mergeEquivalentNodes collapses CAST nodes, zero-offset GEP nodes (a
// GEP with no field offset is a bare reinterpretation) and PHI nodes
// whose operands are all the same node into their single source
// operand -- these never change what a pointer can point to, so the
// solver gains nothing from tracking them separately.
func mergeEquivalentNodes(g *PointerGraph) int {
	merged := 0
	for _, n := range snapshot(g) {
		switch {
		case n.Kind == CAST:
			merge(g, n, n.Operands[0])
			merged++
		case n.Kind == GEP:
			if d, ok := n.Data.(GEPData); ok && d.FieldOffset == 0 {
				merge(g, n, n.Operands[0])
				merged++
			}
		case n.Kind == PHI && len(n.Operands) > 0 && allOperandsSame(n):
			merge(g, n, n.Operands[0])
			merged++
		}
	}
	return merged
}

func allOperandsSame(n *PSNode) bool {
	first := n.Operands[0]
	for _, op := range n.Operands[1:] {
		if op != first {
			return false
		}
	}
	return true
}

// reduceUnknowns prunes the loads and stores of ALLOC nodes whose
// only users are loads and stores-of-unknown-memory, with at least one
// such store (so every load from them must itself resolve to
// UnknownMemory), and zero-operand
// PHI nodes, redirecting their users straight to UnknownMemory. The
// allocation node itself is kept -- it may still be the target of a
// pointer stored elsewhere and must stay queryable.
func reduceUnknowns(g *PointerGraph) int {
	pruned := 0
	for _, n := range snapshot(g) {
		switch {
		case n.Kind == ALLOC && usersImplyUnknown(g, n):
			for _, uid := range append([]PSNodeID(nil), n.Users()...) {
				u := g.Node(uid)
				if u == nil {
					continue
				}
				if u.Kind == LOAD {
					redirectUsersTo(g, u, UnknownMemory)
				}
				isolateAndRemove(g, u)
				pruned++
			}
		case n.Kind == PHI && len(n.Operands) == 0:
			redirectUsersTo(g, n, UnknownMemory)
			isolateAndRemove(g, n)
			pruned++
		}
	}
	return pruned
}

// usersImplyUnknown reports whether every user of n is either a load
// from n or a store of UnknownMemory's value into n, and at least one
// such store exists -- i.e. nothing but unknown content ever flows out
// of n.
func usersImplyUnknown(g *PointerGraph, n *PSNode) bool {
	storesUnknown := false
	for _, uid := range n.Users() {
		u := g.Node(uid)
		if u == nil {
			continue
		}
		if u.Kind == LOAD {
			continue
		}
		if u.Kind == STORE && len(u.Operands) == 2 && u.Operands[1] == UnknownMemory && u.Operands[0] == n.ID {
			storesUnknown = true
			continue
		}
		return false
	}
	return storesUnknown
}

// snapshot copies the graph's live node pointers so merge/prune can
// delete as they iterate without perturbing the walk.
func snapshot(g *PointerGraph) []*PSNode {
	out := make([]*PSNode, 0, len(g.nodes))
	for _, n := range g.nodes {
		if n != nil && !n.removed {
			out = append(out, n)
		}
	}
	return out
}

// merge folds node into repl: every operand reference to node is
// rewritten to repl, node's CFG predecessors are rewired directly to
// its successors (node is a pure data-flow proxy, never a control
// structure), and node is then removed from the graph and its owning
// subgraph.
func merge(g *PointerGraph, node *PSNode, repl PSNodeID) {
	redirectUsersTo(g, node, repl)
	isolateAndRemove(g, node)
}

// redirectUsersTo rewrites every operand reference to from across its
// users into to, wiring to's users list accordingly (replaceAllUsesWith).
func redirectUsersTo(g *PointerGraph, from *PSNode, to PSNodeID) {
	toNode := g.Node(to)
	for _, uid := range append([]PSNodeID(nil), from.Users()...) {
		u := g.Node(uid)
		if u == nil {
			continue
		}
		changed := false
		for i, op := range u.Operands {
			if op == from.ID {
				u.Operands[i] = to
				changed = true
			}
		}
		if changed && toNode != nil && !containsID(toNode.users, uid) {
			toNode.users = append(toNode.users, uid)
		}
	}
	from.users = nil
}

// isolateAndRemove detaches node from the CFG (splicing its
// predecessors directly to its successors), its subgraph membership,
// and any remaining operand/user bookkeeping, then removes it from the
// arena via PointerGraph.Remove's isolated-node contract.
func isolateAndRemove(g *PointerGraph, node *PSNode) {
	for _, op := range node.Operands {
		if opn := g.Node(op); opn != nil {
			opn.users = removeID(opn.users, node.ID)
		}
	}
	node.Operands = nil

	for _, p := range node.Preds {
		if pn := g.Node(p); pn != nil {
			pn.Succs = removeID(pn.Succs, node.ID)
			for _, s := range node.Succs {
				if !containsID(pn.Succs, s) {
					pn.Succs = append(pn.Succs, s)
				}
			}
		}
	}
	for _, s := range node.Succs {
		if sn := g.Node(s); sn != nil {
			sn.Preds = removeID(sn.Preds, node.ID)
			for _, p := range node.Preds {
				if !containsID(sn.Preds, p) {
					sn.Preds = append(sn.Preds, p)
				}
			}
		}
	}
	node.Preds = nil
	node.Succs = nil

	if sg := g.SubgraphOf(node.ID); sg != nil {
		sg.members = removeID(sg.members, node.ID)
		sg.onLoop = nil
	}
	node.users = removeID(node.users, node.ID) // defensive: never self-reference

	g.Remove(node.ID)
}

func containsID(ids []PSNodeID, id PSNodeID) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}

func removeID(ids []PSNodeID, id PSNodeID) []PSNodeID {
	out := ids[:0]
	for _, x := range ids {
		if x != id {
			out = append(out, x)
		}
	}
	return out
}
