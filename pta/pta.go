// Package pta implements the pointer-analysis solver: an
// Andersen-style worklist fixpoint over a ptg.PointerGraph, in
// flow-insensitive (FI), flow-sensitive (FS) and
// flow-sensitive-with-invalidation (FS+Inv) variants.
package pta

import (
	"fmt"
	"io"

	"github.com/mchalupa/dg-go/internal/container"
	"github.com/mchalupa/dg-go/internal/domtree"
	"github.com/mchalupa/dg-go/ivl"
	"github.com/mchalupa/dg-go/ptg"
)

// Variant selects which pointer-analysis flavor to run.
type Variant int

const (
	// FI is the flow-insensitive variant: one memory map shared by the
	// whole program, STORE is always a weak update.
	FI Variant = iota
	// FS is the flow-sensitive variant: per-program-point memory maps,
	// strong update permitted for singleton known-instance stores.
	FS
	// FSInv is FS plus modeling of FREE/INVALIDATE_* as memory effects.
	FSInv
)

// Config configures a run of the solver. Queries lists extra nodes
// whose points-to sets the caller wants solved even if nothing in the
// graph demands them.
type Config struct {
	Variant  Variant
	Queries  []ptg.PSNodeID
	Log      io.Writer
	Optimize bool // run ptg.Optimize before seeding the worklist
}

// Result is the outcome of a completed analysis run.
type Result struct {
	g       *ptg.PointerGraph
	variant Variant
}

// PointsTo returns the solved points-to set of id.
func (r *Result) PointsTo(id ptg.PSNodeID) ptg.PointsToSet {
	if n := r.g.Node(id); n != nil {
		return n.PointsTo
	}
	return ptg.NewPointsToSet()
}

// memState is one snapshot of "for memory object target, what is
// stored at each byte range" -- the per-node memory map.
type memState map[ptg.PSNodeID]*ivl.Map[ptg.Pointer]

func (m memState) clone() memState {
	out := make(memState, len(m))
	for k, v := range m {
		nv := ivl.New[ptg.Pointer]()
		for _, e := range v.Entries() {
			nv.AddSet(e.Interval, e.Values)
		}
		out[k] = nv
	}
	return out
}

func (m memState) getOrCreate(target ptg.PSNodeID) *ivl.Map[ptg.Pointer] {
	mm, ok := m[target]
	if !ok {
		mm = ivl.New[ptg.Pointer]()
		m[target] = mm
	}
	return mm
}

// solver drives the worklist fixpoint.
type solver struct {
	g       *ptg.PointerGraph
	variant Variant
	log     io.Writer

	global memState                  // FI: one shared state
	perFS  map[ptg.PSNodeID]memState // FS/FSInv: owned-or-aliased state per node

	queue   []ptg.PSNodeID
	inQueue container.Set[ptg.PSNodeID]
}

// Run analyzes g under cfg and returns the solved Result. It mutates
// every PSNode's PointsTo field in place.
func Run(g *ptg.PointerGraph, cfg Config) *Result {
	s := &solver{
		g:       g,
		variant: cfg.Variant,
		log:     cfg.Log,
		global:  memState{},
		perFS:   map[ptg.PSNodeID]memState{},
		inQueue: container.Set[ptg.PSNodeID]{},
	}

	if cfg.Optimize {
		stats := ptg.Optimize(g)
		s.logf("pta: optimize merged=%d pruned=%d\n", stats.NodesMerged, stats.NodesPruned)
	}

	// Wire the global-init prologue into the entry subgraph, so ENTRY's
	// predecessor-merge picks up global state.
	if entry := g.Entry(); entry != nil {
		if inits := g.GlobalInits(); len(inits) > 0 {
			last := inits[len(inits)-1]
			alreadyWired := false
			if n := g.Node(entry.Entry); n != nil {
				for _, p := range n.Preds {
					if p == last {
						alreadyWired = true
					}
				}
			}
			if !alreadyWired {
				g.AddEdge(last, entry.Entry)
			}
		}
	}

	// The prologue STOREs are not members of any subgraph, so seed them
	// (after their operands) ahead of the subgraphs.
	for _, id := range g.GlobalInits() {
		if n := g.Node(id); n != nil {
			for _, op := range n.Operands {
				s.enqueue(op)
			}
		}
		s.enqueue(id)
	}
	for _, sg := range g.Subgraphs() {
		s.seed(sg)
	}
	for _, id := range cfg.Queries {
		s.enqueue(id)
	}

	for len(s.queue) > 0 {
		id := s.queue[0]
		s.queue = s.queue[1:]
		s.inQueue.Remove(id)
		s.process(id)
	}

	return &Result{g: g, variant: cfg.Variant}
}

func (s *solver) logf(format string, args ...interface{}) {
	if s.log != nil {
		fmt.Fprintf(s.log, format, args...)
	}
}

// subgraphDomGraph adapts a PointerSubgraph's member nodes to
// domtree.Graph, the same dense-index trick ptg's own subgraphCFG uses
// for Tarjan, so the worklist can be seeded in reverse-postorder
// instead of member-allocation order.
type subgraphDomGraph struct {
	g     *ptg.PointerGraph
	sg    *ptg.PointerSubgraph
	index map[ptg.PSNodeID]int
}

func (d *subgraphDomGraph) NumNodes() int { return len(d.sg.Members()) }

func (d *subgraphDomGraph) Succs(i int) []int {
	n := d.g.Node(d.sg.Members()[i])
	var out []int
	for _, s := range n.Succs {
		if j, ok := d.index[s]; ok {
			out = append(out, j)
		}
	}
	return out
}

func (d *subgraphDomGraph) Preds(i int) []int {
	n := d.g.Node(d.sg.Members()[i])
	var out []int
	for _, p := range n.Preds {
		if j, ok := d.index[p]; ok {
			out = append(out, j)
		}
	}
	return out
}

func (d *subgraphDomGraph) Entry() int { return d.index[d.sg.Entry] }

// seed enqueues sg's member nodes in reverse-postorder of its
// intraprocedural CFG, so the fixpoint converges in fewer passes than
// a member-allocation-order FIFO would. Nodes the dominance
// walk doesn't reach from the entry (e.g. unreachable blocks, or
// members wired only via cross-subgraph call edges) are appended
// afterwards in their original order so nothing is dropped.
func (s *solver) seed(sg *ptg.PointerSubgraph) {
	members := sg.Members()
	index := make(map[ptg.PSNodeID]int, len(members))
	for i, id := range members {
		index[id] = i
	}
	tr := domtree.Build(&subgraphDomGraph{g: s.g, sg: sg, index: index})

	seeded := make([]bool, len(members))
	for _, i := range tr.ReversePostorder() {
		if !tr.Reached(i) {
			continue
		}
		seeded[i] = true
		s.enqueue(members[i])
	}
	for i, id := range members {
		if !seeded[i] {
			s.enqueue(id)
		}
	}
}

func (s *solver) enqueue(id ptg.PSNodeID) {
	if id == 0 || s.inQueue.Has(id) {
		return
	}
	s.inQueue.Add(id)
	s.queue = append(s.queue, id)
}

func (s *solver) enqueueSuccessors(n *ptg.PSNode) {
	for _, succ := range n.Succs {
		s.enqueue(succ)
	}
	switch n.Kind {
	case ptg.ENTRY:
		// All call sites reaching this subgraph must re-see the updated
		// entry state.
		for _, p := range n.Preds {
			s.enqueue(p)
		}
	case ptg.RETURN:
		if n.Pair != 0 {
			s.enqueue(n.Pair)
		}
	}
}

// needsMerge reports whether a node must own its memory map: it has
// two or more predecessors (or none), is a CALL_RETURN, or can change
// the map itself.
func (s *solver) needsMerge(n *ptg.PSNode) bool {
	if len(n.Preds) >= 2 || len(n.Preds) == 0 {
		return true
	}
	if n.Kind == ptg.CALL_RETURN {
		return true
	}
	switch n.Kind {
	case ptg.STORE, ptg.MEMCPY, ptg.CALL_FUNCPTR:
		return true
	case ptg.FREE, ptg.INVALIDATE_LOCALS, ptg.INVALIDATE_OBJECT:
		return s.variant == FSInv
	}
	return false
}

// memOf returns the memory state node id should read/write this
// iteration, allocating and merging as needed: a merging node owns a
// fresh union of its predecessors' maps, a non-merging node aliases
// its single predecessor's map by reference.
func (s *solver) memOf(id ptg.PSNodeID) memState {
	if s.variant == FI {
		return s.global
	}
	n := s.g.Node(id)
	if m, ok := s.perFS[id]; ok && !s.needsMerge(n) {
		return m
	}
	if s.needsMerge(n) {
		merged := memState{}
		for _, p := range n.Preds {
			if pm, ok := s.perFS[p]; ok {
				for target, dim := range pm {
					out := merged.getOrCreate(target)
					for _, e := range dim.Entries() {
						out.AddSet(e.Interval, e.Values)
					}
				}
			}
		}
		s.perFS[id] = merged
		return merged
	}
	// Non-merging node with exactly one predecessor: alias it.
	if len(n.Preds) == 1 {
		if pm, ok := s.perFS[n.Preds[0]]; ok {
			s.perFS[id] = pm
			return pm
		}
	}
	m := memState{}
	s.perFS[id] = m
	return m
}
