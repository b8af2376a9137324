// Package cda computes non-termination-sensitive control dependence
// over a rwg.ReadWriteGraph's block-level CFGs: for each block b, the
// blocks x such that some but not all of x's successors unavoidably
// lead to b. The red-paint propagation below is a "decrement
// out-degree, enqueue on zero" worklist, run once per candidate block.
package cda

import "github.com/mchalupa/dg-go/rwg"

// Analysis holds the solved control-dependence relation of one
// ReadWriteGraph: for each block, the blocks it is control-dependent
// on.
type Analysis struct {
	g    *rwg.ReadWriteGraph
	deps map[rwg.RWBlockID][]rwg.RWBlockID
}

// ControlDeps returns the blocks b is control-dependent on, in
// unspecified order.
func (a *Analysis) ControlDeps(b rwg.RWBlockID) []rwg.RWBlockID { return a.deps[b] }

// IsControlDependent reports whether b is control-dependent on x.
func (a *Analysis) IsControlDependent(b, x rwg.RWBlockID) bool {
	for _, d := range a.deps[b] {
		if d == x {
			return true
		}
	}
	return false
}

// Run computes control dependence for every procedure of g, plus the
// interprocedural call/return and fork/join extension.
func Run(g *rwg.ReadWriteGraph) *Analysis {
	a := &Analysis{g: g, deps: map[rwg.RWBlockID][]rwg.RWBlockID{}}
	for _, sg := range g.Subgraphs() {
		a.runProcedure(sg.Blocks)
	}
	a.interprocedural()
	return a
}

// runProcedure computes, for every block b in blocks, the per-block
// red-paint fixpoint.
func (a *Analysis) runProcedure(blocks []rwg.RWBlockID) {
	for _, b := range blocks {
		a.deps[b] = append(a.deps[b], controlDependentsOf(a.g, b, blocks)...)
	}
}

// controlDependentsOf runs the red-paint propagation seeded at b and
// returns the blocks x such that b depends on x.
func controlDependentsOf(g *rwg.ReadWriteGraph, b rwg.RWBlockID, blocks []rwg.RWBlockID) []rwg.RWBlockID {
	outDegree := make(map[rwg.RWBlockID]int, len(blocks))
	for _, id := range blocks {
		if blk := g.Block(id); blk != nil {
			outDegree[id] = len(blk.Succs)
		}
	}

	red := map[rwg.RWBlockID]bool{b: true}
	var queue []rwg.RWBlockID
	if blk := g.Block(b); blk != nil {
		queue = append(queue, blk.Preds...)
	}

	for len(queue) > 0 {
		x := queue[0]
		queue = queue[1:]
		outDegree[x]--
		if outDegree[x] > 0 || red[x] {
			continue
		}
		red[x] = true
		if blk := g.Block(x); blk != nil {
			queue = append(queue, blk.Preds...)
		}
	}

	var deps []rwg.RWBlockID
	for _, x := range blocks {
		blk := g.Block(x)
		if blk == nil || len(blk.Succs) == 0 {
			continue
		}
		hasRed, hasNonRed := false, false
		for _, s := range blk.Succs {
			if red[s] {
				hasRed = true
			} else {
				hasNonRed = true
			}
		}
		if hasRed && hasNonRed {
			deps = append(deps, x)
		}
	}
	return deps
}

// interprocedural wires the call/return and fork/join extension on
// top of the per-procedure results. For a call: the callee's exit
// blocks are control-dependent on the call-return block, and every
// block reachable from the call-return block within the caller
// inherits that same dependency, modeling "the rest of the caller only
// runs if the call returns". A call site with multiple resolved
// callees (function pointers) applies the rule to every callee alike.
// For a fork: the spawned thread's exit blocks are control-dependent
// on the forking block (the thread only runs if the fork executed).
// For a join: the joining block -- and every block reachable from it
// -- inherits a dependency on each matched thread's exit blocks,
// since execution past the join is only reached if every joined
// thread terminates.
func (a *Analysis) interprocedural() {
	for _, sg := range a.g.Subgraphs() {
		for _, bid := range sg.Blocks {
			blk := a.g.Block(bid)
			if blk == nil {
				continue
			}
			for _, nid := range blk.Nodes {
				n := a.g.Node(nid)
				if n == nil || len(n.Callees) == 0 {
					continue
				}
				switch n.Kind {
				case rwg.CALL:
					pair := a.g.Node(n.Pair)
					if pair == nil {
						continue
					}
					cr := pair.Block
					for _, callee := range n.Callees {
						a.addDep(callee.Exit, cr)
					}
					for _, reached := range reachableBlocks(a.g, cr) {
						a.addDep(reached, cr)
					}
				case rwg.FORK:
					for _, spawned := range n.Callees {
						a.addDep(spawned.Exit, bid)
					}
				case rwg.JOIN:
					for _, forked := range n.Callees {
						a.addDep(bid, forked.Exit)
						for _, reached := range reachableBlocks(a.g, bid) {
							a.addDep(reached, forked.Exit)
						}
					}
				}
			}
		}
	}
}

func (a *Analysis) addDep(b, x rwg.RWBlockID) bool {
	if a.IsControlDependent(b, x) {
		return false
	}
	a.deps[b] = append(a.deps[b], x)
	return true
}

// reachableBlocks returns every block forward-reachable from start
// within its own subgraph, excluding start itself.
func reachableBlocks(g *rwg.ReadWriteGraph, start rwg.RWBlockID) []rwg.RWBlockID {
	visited := map[rwg.RWBlockID]bool{start: true}
	queue := []rwg.RWBlockID{start}
	var out []rwg.RWBlockID
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		blk := g.Block(id)
		if blk == nil {
			continue
		}
		for _, s := range blk.Succs {
			if visited[s] {
				continue
			}
			visited[s] = true
			out = append(out, s)
			queue = append(queue, s)
		}
	}
	return out
}
