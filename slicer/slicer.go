// Package slicer implements a backward program slicer: a two-phase
// mark/sweep over an already-assembled sdg.SystemDependenceGraph.
// Mark tags everything the criterion transitively depends on; Slice
// sweeps the rest out of the graph and reports what it removed.
package slicer

import "github.com/mchalupa/dg-go/sdg"

// Criterion identifies the node(s) a slice is computed from.
type Criterion struct {
	Graph *sdg.DependenceGraph
	Nodes []sdg.DGNodeID
}

// SlicerStatistics reports the outcome of Slice.
type SlicerStatistics struct {
	NodesTotal    int
	NodesRemoved  int
	BlocksRemoved int
}

// Mark runs phase 1: BFS backward from crit along the
// control-dep, memory-dep and use-edges that point from a node to what
// it depends on (sdg.DGNode's *Fwd sets -- see sdg.AddUses et al.'s
// "a depends on b" convention), tagging every visited node, its block
// and its owning DependenceGraph with sliceID.
// Entering a procedure through one of its formal-parameter nodes also
// enqueues that procedure's entry node, so every call site of the
// procedure is conservatively retained too.
func Mark(sg *sdg.SystemDependenceGraph, crit Criterion, sliceID int) {
	type work struct {
		dg *sdg.DependenceGraph
		id sdg.DGNodeID
	}
	visited := map[*sdg.DependenceGraph]map[sdg.DGNodeID]bool{}
	var queue []work
	for _, id := range crit.Nodes {
		queue = append(queue, work{crit.Graph, id})
	}

	isFormal := func(dg *sdg.DependenceGraph, id sdg.DGNodeID) bool {
		for _, a := range dg.Formals.Args {
			if a.Input == id || a.Output == id {
				return true
			}
		}
		return dg.Formals.Return == id || dg.Formals.NoReturn == id
	}

	for len(queue) > 0 {
		w := queue[0]
		queue = queue[1:]

		seen := visited[w.dg]
		if seen == nil {
			seen = map[sdg.DGNodeID]bool{}
			visited[w.dg] = seen
		}
		if seen[w.id] {
			continue
		}
		seen[w.id] = true

		n := w.dg.Node(w.id)
		if n == nil {
			continue
		}
		markNode(n, w.dg, sliceID)

		for _, next := range append(append(append([]sdg.DGNodeID{}, n.CtrlFwd...), n.MemFwd...), n.UsesFwd...) {
			queue = append(queue, work{w.dg, next})
		}
		// Interprocedural edges carry their owning graph explicitly;
		// follow them into that graph's arena.
		for _, x := range append(append(append([]sdg.DGXRef{}, n.XCtrlFwd...), n.XMemFwd...), n.XUsesFwd...) {
			queue = append(queue, work{x.Graph, x.Node})
		}

		if isFormal(w.dg, w.id) && w.dg.EntryNode != 0 {
			queue = append(queue, work{w.dg, w.dg.EntryNode})
			// Call sites point at the entry through the call-to-entry
			// control edge, which the entry records in XCtrlRev.
			if e := w.dg.Node(w.dg.EntryNode); e != nil {
				for _, x := range e.XCtrlRev {
					if c := x.Graph.Node(x.Node); c != nil && c.Kind == sdg.Call {
						queue = append(queue, work{x.Graph, x.Node})
					}
				}
			}
		}
	}
}

// markNode tags n, its block, and its owning graph with sliceID, so
// the sweep phase keeps the containing block and procedure.
func markNode(n *sdg.DGNode, dg *sdg.DependenceGraph, sliceID int) {
	n.SliceID = sliceID
	dg.SliceID = sliceID
	if b := dg.Block(n.Block); b != nil {
		b.SliceID = sliceID
	}
}

// Slice runs phase 2 over every DependenceGraph the mark phase touched
// (transitively, via retained call nodes' callees), returning the
// mutated sdgraph's statistics. visited bounds each graph to a single
// sweep.
func Slice(sgraph *sdg.SystemDependenceGraph, sliceID int) SlicerStatistics {
	var stats SlicerStatistics
	visited := map[*sdg.DependenceGraph]bool{}
	for _, dg := range sgraph.Graphs() {
		if dg.SliceID == sliceID {
			sweep(dg, sliceID, &stats, visited)
		}
	}
	return stats
}

func sweep(dg *sdg.DependenceGraph, sliceID int, stats *SlicerStatistics, visited map[*sdg.DependenceGraph]bool) {
	if visited[dg] {
		return
	}
	visited[dg] = true

	// Step 1: isolate-then-delete every block not in the slice, along
	// with the nodes it owns -- a deleted block takes its nodes with it,
	// the same way dg.Isolate + dg.SeverAndRemove would if applied node
	// by node first.
	for _, bid := range dg.Blocks() {
		b := dg.Block(bid)
		if b == nil || b.SliceID == sliceID {
			continue
		}
		doomed := append([]sdg.DGNodeID(nil), b.Nodes...)
		dg.Isolate(bid)
		stats.BlocksRemoved++
		for _, id := range doomed {
			stats.NodesTotal++
			dg.SeverAndRemove(id)
			stats.NodesRemoved++
		}
	}

	// Step 2: remove every remaining node not in the slice -- individual
	// nodes marked out inside a block the slice otherwise keeps. A node
	// being swept out commonly still has live cross-references to kept
	// nodes (it was someone's operand, or used someone the slice
	// retains), so this goes through SeverAndRemove rather than the
	// graph's bare RemoveNode.
	var toRemove []sdg.DGNodeID
	for _, id := range allLiveNodes(dg) {
		stats.NodesTotal++
		if n := dg.Node(id); n != nil && n.SliceID != sliceID {
			toRemove = append(toRemove, id)
		}
	}
	for _, id := range toRemove {
		dg.SeverAndRemove(id)
		stats.NodesRemoved++
	}

	// Step 3: recurse into retained call nodes' callees.
	for _, other := range dg.CalleeGraphs() {
		if other.SliceID == sliceID {
			sweep(other, sliceID, stats, visited)
		}
	}
}

func allLiveNodes(dg *sdg.DependenceGraph) []sdg.DGNodeID {
	var out []sdg.DGNodeID
	for _, bid := range dg.Blocks() {
		b := dg.Block(bid)
		if b == nil {
			continue
		}
		out = append(out, b.Nodes...)
	}
	return out
}
