// Package rda implements reaching-definitions / memory-SSA analysis
// over a rwg.ReadWriteGraph: for every RWNode n and every byte range
// it reads, which RWNodes' writes may be visible there. The transfer
// is a monotone per-node function composed with a predecessor merge,
// driven to a fixpoint rather than a single dominance-ordered pass,
// since rwg's CFG may have loops.
package rda

import (
	"fmt"
	"io"

	"github.com/mchalupa/dg-go/internal/container"
	"github.com/mchalupa/dg-go/ivl"
	"github.com/mchalupa/dg-go/rwg"
)

// ExternalDef is the sentinel reaching-definition reported for any
// queried sub-interval the DefinitionsMap does not cover: "possibly
// external / initial value".
const ExternalDef rwg.RWNodeID = -1

// DefinitionsMap is the per-program-point mapping from memory target
// to "which RWNodes last wrote which byte ranges" -- the
// reaching-definitions analogue of pta's memState, reusing the same
// DisjunctiveIntervalMap ADT with rwg.RWNodeID as the value type.
type DefinitionsMap map[rwg.RWNodeID]*ivl.Map[rwg.RWNodeID]

func newDefinitionsMap() DefinitionsMap { return DefinitionsMap{} }

func (m DefinitionsMap) getOrCreate(target rwg.RWNodeID) *ivl.Map[rwg.RWNodeID] {
	dim, ok := m[target]
	if !ok {
		dim = ivl.New[rwg.RWNodeID]()
		m[target] = dim
	}
	return dim
}

// mergeFrom unions every entry of other into m, the pointwise set
// union a node's predecessor merge needs.
func (m DefinitionsMap) mergeFrom(other DefinitionsMap) bool {
	changed := false
	for target, dim := range other {
		out := m.getOrCreate(target)
		for _, e := range dim.Entries() {
			if out.AddSet(e.Interval, e.Values) {
				changed = true
			}
		}
	}
	return changed
}

func (m DefinitionsMap) clone() DefinitionsMap {
	out := make(DefinitionsMap, len(m))
	for target, dim := range m {
		nd := ivl.New[rwg.RWNodeID]()
		for _, e := range dim.Entries() {
			nd.AddSet(e.Interval, e.Values)
		}
		out[target] = nd
	}
	return out
}

// Analysis holds the solved per-node DefinitionsMaps of one
// ReadWriteGraph.
type Analysis struct {
	g   *rwg.ReadWriteGraph
	in  map[rwg.RWNodeID]DefinitionsMap
	out map[rwg.RWNodeID]DefinitionsMap
	Log io.Writer
}

func (a *Analysis) logf(format string, args ...interface{}) {
	if a.Log != nil {
		fmt.Fprintf(a.Log, format, args...)
	}
}

// Run solves reaching-definitions over g to a fixpoint and returns the
// Analysis. The worklist order does not affect the result:
// the transfer function is monotone on a finite lattice (set union
// bounded by the total node count), so any fair order converges.
func Run(g *rwg.ReadWriteGraph) *Analysis {
	a := &Analysis{g: g, in: map[rwg.RWNodeID]DefinitionsMap{}, out: map[rwg.RWNodeID]DefinitionsMap{}}

	flow := newFlowGraph(g)

	var allNodes []rwg.RWNodeID
	for _, sg := range g.Subgraphs() {
		for _, b := range sg.Blocks {
			allNodes = append(allNodes, g.Nodes(b)...)
		}
	}
	for _, id := range allNodes {
		a.in[id] = newDefinitionsMap()
		a.out[id] = newDefinitionsMap()
	}

	queue := append([]rwg.RWNodeID(nil), allNodes...)
	inQueue := container.NewSet(allNodes...)

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		inQueue.Remove(id)

		changedIn := false
		in := a.in[id]
		for _, p := range flow.preds(id) {
			if in.mergeFrom(a.out[p]) {
				changedIn = true
			}
		}

		n := g.Node(id)
		out := a.out[id]
		changedOut := out.mergeFrom(in)
		for _, d := range n.DefSites {
			dim := out.getOrCreate(d.Target)
			var ch bool
			if d.MustDef {
				ch = dim.Update(d.Interval(), id)
			} else {
				ch = dim.Add(d.Interval(), id)
			}
			changedOut = changedOut || ch
		}

		if !changedIn && !changedOut {
			continue
		}
		a.logf("rda: n%d in/out changed\n", id)
		for _, s := range flow.succs(id) {
			if !inQueue.Has(s) {
				inQueue.Add(s)
				queue = append(queue, s)
			}
		}
	}

	return a
}

// ReachingDefs returns the set of RWNodes whose writes may reach n,
// across every use-site of n.
func (a *Analysis) ReachingDefs(n rwg.RWNodeID) container.Set[rwg.RWNodeID] {
	node := a.g.Node(n)
	if node == nil {
		return container.Set[rwg.RWNodeID]{}
	}
	out := container.Set[rwg.RWNodeID]{}
	for _, u := range node.UseSites {
		for id := range a.ReachingDefsAt(n, u) {
			out.Add(id)
		}
	}
	return out
}

// ReachingDefsAt answers getReachingDefinitions(n, u): in(n).gather(u),
// widened with ExternalDef for any sub-interval of u that in(n) does
// not cover.
func (a *Analysis) ReachingDefsAt(n rwg.RWNodeID, u rwg.UseSite) container.Set[rwg.RWNodeID] {
	in, ok := a.in[n]
	if !ok {
		return container.NewSet(ExternalDef)
	}
	dim, ok := in[u.Target]
	iv := u.Interval()
	if !ok {
		return container.NewSet(ExternalDef)
	}
	result := dim.Gather(iv)
	if len(dim.Uncovered(iv)) > 0 {
		result.Add(ExternalDef)
	}
	return result
}

// flowGraph derives the node-level flow edges the fixpoint runs over
// from rwg's block structure, including the interprocedural links
// across call/return: a CALL steps into its resolved callees' entry
// nodes, a callee's
// entry node takes the CALL sites as predecessors, a callee's exit
// node continues at every caller's CALL_RETURN, and a CALL_RETURN
// takes its predecessors from the callees' exit nodes.
type flowGraph struct {
	g       *rwg.ReadWriteGraph
	callers map[*rwg.RWSubgraph][]rwg.RWNodeID // subgraph -> CALL sites resolved to it
	entryOf map[rwg.RWNodeID]*rwg.RWSubgraph   // first node of a subgraph's entry block
	exitOf  map[rwg.RWNodeID]*rwg.RWSubgraph   // last node of a subgraph's exit block
}

func newFlowGraph(g *rwg.ReadWriteGraph) *flowGraph {
	f := &flowGraph{
		g:       g,
		callers: map[*rwg.RWSubgraph][]rwg.RWNodeID{},
		entryOf: map[rwg.RWNodeID]*rwg.RWSubgraph{},
		exitOf:  map[rwg.RWNodeID]*rwg.RWSubgraph{},
	}
	for _, sg := range g.Subgraphs() {
		if blk := g.Block(sg.Entry); blk != nil && len(blk.Nodes) > 0 {
			f.entryOf[blk.Nodes[0]] = sg
		}
		if blk := g.Block(sg.Exit); blk != nil && len(blk.Nodes) > 0 {
			f.exitOf[blk.Nodes[len(blk.Nodes)-1]] = sg
		}
		for _, bid := range sg.Blocks {
			for _, nid := range g.Nodes(bid) {
				n := g.Node(nid)
				if n == nil || n.Kind != rwg.CALL {
					continue
				}
				for _, callee := range n.Callees {
					f.callers[callee] = append(f.callers[callee], nid)
				}
			}
		}
	}
	return f
}

func (f *flowGraph) preds(id rwg.RWNodeID) []rwg.RWNodeID {
	g := f.g
	n := g.Node(id)
	if n == nil {
		return nil
	}
	if n.Kind == rwg.CALL_RETURN && n.Pair != 0 {
		if call := g.Node(n.Pair); call != nil && len(call.Callees) > 0 {
			var preds []rwg.RWNodeID
			for _, callee := range call.Callees {
				exit := g.Block(callee.Exit)
				if exit != nil && len(exit.Nodes) > 0 {
					preds = append(preds, exit.Nodes[len(exit.Nodes)-1])
				}
			}
			return preds
		}
	}
	var preds []rwg.RWNodeID
	if sg, ok := f.entryOf[id]; ok {
		preds = append(preds, f.callers[sg]...)
	}
	blk := g.Block(n.Block)
	if blk == nil {
		return preds
	}
	idx := indexOf(blk.Nodes, id)
	if idx > 0 {
		return append(preds, blk.Nodes[idx-1])
	}
	for _, pb := range blk.Preds {
		pblk := g.Block(pb)
		if pblk != nil && len(pblk.Nodes) > 0 {
			preds = append(preds, pblk.Nodes[len(pblk.Nodes)-1])
		}
	}
	return preds
}

func (f *flowGraph) succs(id rwg.RWNodeID) []rwg.RWNodeID {
	g := f.g
	n := g.Node(id)
	if n == nil {
		return nil
	}
	if n.Kind == rwg.CALL && len(n.Callees) > 0 {
		var succs []rwg.RWNodeID
		for _, callee := range n.Callees {
			entry := g.Block(callee.Entry)
			if entry != nil && len(entry.Nodes) > 0 {
				succs = append(succs, entry.Nodes[0])
			}
		}
		return succs
	}
	var succs []rwg.RWNodeID
	if sg, ok := f.exitOf[id]; ok {
		for _, call := range f.callers[sg] {
			if cn := g.Node(call); cn != nil && cn.Pair != 0 {
				succs = append(succs, cn.Pair)
			}
		}
	}
	blk := g.Block(n.Block)
	if blk == nil {
		return succs
	}
	idx := indexOf(blk.Nodes, id)
	if idx >= 0 && idx+1 < len(blk.Nodes) {
		return append(succs, blk.Nodes[idx+1])
	}
	for _, sb := range blk.Succs {
		sblk := g.Block(sb)
		if sblk != nil && len(sblk.Nodes) > 0 {
			succs = append(succs, sblk.Nodes[0])
		}
	}
	return succs
}

func indexOf(nodes []rwg.RWNodeID, id rwg.RWNodeID) int {
	for i, n := range nodes {
		if n == id {
			return i
		}
	}
	return -1
}
