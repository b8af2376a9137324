// Package sdg assembles the system dependence graph out of a
// ReadWriteGraph, its owning PointerGraph, reaching-definitions and
// control-dependence results: one DependenceGraph per procedure, with
// use/memory/control edge sets mirrored at both endpoints. A
// DependenceGraph is built once by Build and afterward mutated only
// by the slicer's sweep.
package sdg

import (
	"fmt"

	"github.com/mchalupa/dg-go/cda"
	"github.com/mchalupa/dg-go/internal/container"
	"github.com/mchalupa/dg-go/ptg"
	"github.com/mchalupa/dg-go/rda"
	"github.com/mchalupa/dg-go/rwg"
)

// NodeKind is the fixed set of DGNode kinds.
type NodeKind uint8

const (
	Instruction NodeKind = iota
	Argument
	Call
	Artificial
)

// DGNodeID identifies a DGNode within its owning DependenceGraph's
// arena; it is local to that graph, not global across the
// SystemDependenceGraph.
type DGNodeID int

// DGBlockID identifies a DGBBlock within its owning DependenceGraph.
type DGBlockID int

// DGXRef names a node owned by another DependenceGraph. A bare
// DGNodeID is only meaningful inside one graph's arena, so
// interprocedural edges carry their owning graph alongside the id.
type DGXRef struct {
	Graph *DependenceGraph
	Node  DGNodeID
}

// DGNode is one SDG element: six edge sets, forward and
// reverse, for use/memory/control dependence, always added in mirrored
// pairs so the forward and reverse sets stay endpoint-symmetric.
type DGNode struct {
	ID    DGNodeID
	Kind  NodeKind
	Name  string
	Block DGBlockID

	UsesFwd, UsesRev []DGNodeID
	MemFwd, MemRev   []DGNodeID
	CtrlFwd, CtrlRev []DGNodeID

	// Cross-graph counterparts of the use/memory/control sets, mirrored
	// the same way. Interprocedural parameter and call-to-entry edges
	// land in XUses/XCtrl; a memory dependence whose reaching definition
	// sits in another procedure lands in XMem. All intra-procedural
	// edges stay in the DGNodeID sets above.
	XUsesFwd, XUsesRev []DGXRef
	XMemFwd, XMemRev   []DGXRef
	XCtrlFwd, XCtrlRev []DGXRef

	// SliceID is set by the slicer's mark phase; zero means
	// unmarked.
	SliceID int

	// rw back-references the RWNode this DGNode was built from, or 0 for
	// purely artificial nodes (parameter pairs, return, noreturn).
	rw rwg.RWNodeID

	removed bool
}

// DGBBlock is an ordered sequence of DGNodes.
type DGBBlock struct {
	ID      DGBlockID
	Nodes   []DGNodeID
	Preds   []DGBlockID
	Succs   []DGBlockID
	SliceID int
}

// DGArgumentPair is one formal or actual parameter: an Artificial
// input node and an Artificial output node.
type DGArgumentPair struct {
	Input  DGNodeID
	Output DGNodeID
}

// DGParameters owns a procedure's (or call site's) argument pairs plus
// its distinguished return/noreturn/vararg nodes.
type DGParameters struct {
	Args     []DGArgumentPair
	Return   DGNodeID
	NoReturn DGNodeID
	Vararg   *DGArgumentPair
}

// DependenceGraph represents one procedure: it owns its BBlocks,
// nodes and formal DGParameters in a dense arena, the same id-indexed
// ownership as ptg and rwg.
type DependenceGraph struct {
	ID      int
	Formals DGParameters
	// EntryNode is the DGNode built from the procedure's RWG entry
	// block's first RWNode -- what call sites' control-dependence edges
	// point to, and what slicer's mark phase re-enqueues when it enters
	// a procedure through a formal-parameter node.
	EntryNode DGNodeID
	SliceID   int

	nodes   []*DGNode // index 0 unused
	blocks  []*DGBBlock
	actuals map[DGNodeID]DGParameters // call node -> its actual parameters

	rwToNode map[rwg.RWNodeID]DGNodeID
	callees  []*DependenceGraph // every graph reachable from a call site in this one
}

// CalleeGraphs returns every DependenceGraph this one calls into,
// deduplicated, in first-seen order; slicer.Slice uses it to recurse
// the sweep phase into retained call targets.
func (dg *DependenceGraph) CalleeGraphs() []*DependenceGraph { return dg.callees }

func newDependenceGraph(id int) *DependenceGraph {
	dg := &DependenceGraph{ID: id, actuals: map[DGNodeID]DGParameters{}, rwToNode: map[rwg.RWNodeID]DGNodeID{}}
	dg.nodes = append(dg.nodes, nil)
	dg.blocks = append(dg.blocks, nil)
	return dg
}

// Node returns the node with the given id, or nil if removed/invalid.
func (dg *DependenceGraph) Node(id DGNodeID) *DGNode {
	if int(id) <= 0 || int(id) >= len(dg.nodes) {
		return nil
	}
	n := dg.nodes[id]
	if n == nil || n.removed {
		return nil
	}
	return n
}

// Block returns the block with the given id, or nil if invalid.
func (dg *DependenceGraph) Block(id DGBlockID) *DGBBlock {
	if int(id) <= 0 || int(id) >= len(dg.blocks) {
		return nil
	}
	return dg.blocks[id]
}

// Blocks returns every block id owned by dg, in creation order.
func (dg *DependenceGraph) Blocks() []DGBlockID {
	out := make([]DGBlockID, 0, len(dg.blocks)-1)
	for i := 1; i < len(dg.blocks); i++ {
		if dg.blocks[i] != nil {
			out = append(out, DGBlockID(i))
		}
	}
	return out
}

// NodeFor returns the DGNode built from the given RWNode, if any --
// the SDG side of the builder's source-value correspondence.
func (dg *DependenceGraph) NodeFor(rw rwg.RWNodeID) (DGNodeID, bool) {
	id, ok := dg.rwToNode[rw]
	return id, ok
}

// Actuals returns the actual DGParameters materialized on a call node,
// if any.
func (dg *DependenceGraph) Actuals(call DGNodeID) (DGParameters, bool) {
	p, ok := dg.actuals[call]
	return p, ok
}

func (dg *DependenceGraph) newBlock() DGBlockID {
	id := DGBlockID(len(dg.blocks))
	dg.blocks = append(dg.blocks, &DGBBlock{ID: id})
	return id
}

func (dg *DependenceGraph) create(kind NodeKind, name string, block DGBlockID, rw rwg.RWNodeID) DGNodeID {
	id := DGNodeID(len(dg.nodes))
	dg.nodes = append(dg.nodes, &DGNode{ID: id, Kind: kind, Name: name, Block: block, rw: rw})
	if b := dg.Block(block); b != nil {
		b.Nodes = append(b.Nodes, id)
	}
	if rw != 0 {
		dg.rwToNode[rw] = id
	}
	return id
}

// AddUses records that a uses b's top-level value,
// mirroring both endpoints' forward/reverse sets.
func (dg *DependenceGraph) AddUses(a, b DGNodeID) {
	na, nb := dg.Node(a), dg.Node(b)
	if na == nil || nb == nil {
		return
	}
	na.UsesFwd = appendUnique(na.UsesFwd, b)
	nb.UsesRev = appendUnique(nb.UsesRev, a)
}

// AddMemoryDep records that a reads memory b writes.
func (dg *DependenceGraph) AddMemoryDep(a, b DGNodeID) {
	na, nb := dg.Node(a), dg.Node(b)
	if na == nil || nb == nil {
		return
	}
	na.MemFwd = appendUnique(na.MemFwd, b)
	nb.MemRev = appendUnique(nb.MemRev, a)
}

// AddControlDep records that a is control-dependent on b.
func (dg *DependenceGraph) AddControlDep(a, b DGNodeID) {
	na, nb := dg.Node(a), dg.Node(b)
	if na == nil || nb == nil {
		return
	}
	na.CtrlFwd = appendUnique(na.CtrlFwd, b)
	nb.CtrlRev = appendUnique(nb.CtrlRev, a)
}

func appendUnique(s []DGNodeID, v DGNodeID) []DGNodeID {
	for _, e := range s {
		if e == v {
			return s
		}
	}
	return append(s, v)
}

// RemoveNode deletes an isolated node (no remaining edges of any kind
// in either direction). Removing a node that still has operands or
// users is a precondition violation and panics.
func (dg *DependenceGraph) RemoveNode(id DGNodeID) {
	n := dg.Node(id)
	if n == nil {
		panic(fmt.Sprintf("sdg.RemoveNode: node %d does not exist", id))
	}
	if len(n.UsesFwd) > 0 || len(n.UsesRev) > 0 || len(n.MemFwd) > 0 || len(n.MemRev) > 0 ||
		len(n.CtrlFwd) > 0 || len(n.CtrlRev) > 0 ||
		len(n.XUsesFwd) > 0 || len(n.XUsesRev) > 0 || len(n.XMemFwd) > 0 || len(n.XMemRev) > 0 ||
		len(n.XCtrlFwd) > 0 || len(n.XCtrlRev) > 0 {
		panic(fmt.Sprintf("sdg.RemoveNode: node %d still has operands or users", id))
	}
	n.removed = true
	dg.nodes[id] = nil
	if b := dg.Block(n.Block); b != nil {
		for i, nid := range b.Nodes {
			if nid == id {
				b.Nodes = append(b.Nodes[:i], b.Nodes[i+1:]...)
				break
			}
		}
	}
}

// Sever strips id from every neighbor it shares an edge with, in both
// directions, then clears id's own edge sets. A caller that wants to
// delete a node that still has live operands or users -- slicer's
// sweep phase, removing everything outside a slice regardless of
// cross-references to kept nodes -- must call Sever before RemoveNode;
// RemoveNode's own precondition is intentionally strict so that
// forgetting this step fails loudly instead of leaving dangling edges.
func (dg *DependenceGraph) Sever(id DGNodeID) {
	n := dg.Node(id)
	if n == nil {
		return
	}
	for _, other := range n.UsesFwd {
		if o := dg.Node(other); o != nil {
			o.UsesRev = removeNode(o.UsesRev, id)
		}
	}
	for _, other := range n.UsesRev {
		if o := dg.Node(other); o != nil {
			o.UsesFwd = removeNode(o.UsesFwd, id)
		}
	}
	for _, other := range n.MemFwd {
		if o := dg.Node(other); o != nil {
			o.MemRev = removeNode(o.MemRev, id)
		}
	}
	for _, other := range n.MemRev {
		if o := dg.Node(other); o != nil {
			o.MemFwd = removeNode(o.MemFwd, id)
		}
	}
	for _, other := range n.CtrlFwd {
		if o := dg.Node(other); o != nil {
			o.CtrlRev = removeNode(o.CtrlRev, id)
		}
	}
	for _, other := range n.CtrlRev {
		if o := dg.Node(other); o != nil {
			o.CtrlFwd = removeNode(o.CtrlFwd, id)
		}
	}
	self := DGXRef{Graph: dg, Node: id}
	for _, x := range n.XUsesFwd {
		if o := x.Graph.Node(x.Node); o != nil {
			o.XUsesRev = removeXRef(o.XUsesRev, self)
		}
	}
	for _, x := range n.XUsesRev {
		if o := x.Graph.Node(x.Node); o != nil {
			o.XUsesFwd = removeXRef(o.XUsesFwd, self)
		}
	}
	for _, x := range n.XMemFwd {
		if o := x.Graph.Node(x.Node); o != nil {
			o.XMemRev = removeXRef(o.XMemRev, self)
		}
	}
	for _, x := range n.XMemRev {
		if o := x.Graph.Node(x.Node); o != nil {
			o.XMemFwd = removeXRef(o.XMemFwd, self)
		}
	}
	for _, x := range n.XCtrlFwd {
		if o := x.Graph.Node(x.Node); o != nil {
			o.XCtrlRev = removeXRef(o.XCtrlRev, self)
		}
	}
	for _, x := range n.XCtrlRev {
		if o := x.Graph.Node(x.Node); o != nil {
			o.XCtrlFwd = removeXRef(o.XCtrlFwd, self)
		}
	}
	n.UsesFwd, n.UsesRev = nil, nil
	n.MemFwd, n.MemRev = nil, nil
	n.CtrlFwd, n.CtrlRev = nil, nil
	n.XUsesFwd, n.XUsesRev = nil, nil
	n.XMemFwd, n.XMemRev = nil, nil
	n.XCtrlFwd, n.XCtrlRev = nil, nil
}

// SeverAndRemove severs id's edges and then removes it; this is what
// slicer's sweep phase calls, since a node swept out of a slice
// commonly still has cross-references to nodes the slice keeps.
func (dg *DependenceGraph) SeverAndRemove(id DGNodeID) {
	dg.Sever(id)
	dg.RemoveNode(id)
}

func removeNode(s []DGNodeID, v DGNodeID) []DGNodeID {
	out := s[:0]
	for _, e := range s {
		if e != v {
			out = append(out, e)
		}
	}
	return out
}

// Isolate reconnects block id's predecessors directly to its
// successors, then detaches it. Self-loop edges created by isolation
// are suppressed: a block that pointed to itself does not get
// re-wired into an artificial self-loop on its neighbors. The slicer
// relies on this.
func (dg *DependenceGraph) Isolate(id DGBlockID) {
	b := dg.Block(id)
	if b == nil {
		return
	}
	for _, p := range b.Preds {
		pb := dg.Block(p)
		if pb == nil {
			continue
		}
		pb.Succs = removeBlock(pb.Succs, id)
		for _, s := range b.Succs {
			if s == p { // would recreate a self-loop on p
				continue
			}
			pb.Succs = appendUniqueBlock(pb.Succs, s)
		}
	}
	for _, s := range b.Succs {
		sb := dg.Block(s)
		if sb == nil {
			continue
		}
		sb.Preds = removeBlock(sb.Preds, id)
		for _, p := range b.Preds {
			if p == s {
				continue
			}
			sb.Preds = appendUniqueBlock(sb.Preds, p)
		}
	}
	dg.blocks[id] = nil
}

func removeBlock(s []DGBlockID, v DGBlockID) []DGBlockID {
	out := s[:0]
	for _, e := range s {
		if e != v {
			out = append(out, e)
		}
	}
	return out
}

func appendUniqueBlock(s []DGBlockID, v DGBlockID) []DGBlockID {
	for _, e := range s {
		if e == v {
			return s
		}
	}
	return append(s, v)
}

func appendUniqueGraph(s []*DependenceGraph, v *DependenceGraph) []*DependenceGraph {
	for _, e := range s {
		if e == v {
			return s
		}
	}
	return append(s, v)
}

// SystemDependenceGraph owns every procedure's DependenceGraph.
type SystemDependenceGraph struct {
	graphs []*DependenceGraph
}

// Graphs returns every owned DependenceGraph, in creation order.
func (s *SystemDependenceGraph) Graphs() []*DependenceGraph { return s.graphs }

func (s *SystemDependenceGraph) newGraph() *DependenceGraph {
	dg := newDependenceGraph(len(s.graphs))
	s.graphs = append(s.graphs, dg)
	return dg
}

func dgNodeKind(k rwg.Kind) NodeKind {
	if k == rwg.CALL {
		return Call
	}
	return Instruction
}

func firstNode(g *rwg.ReadWriteGraph, sg *rwg.RWSubgraph) rwg.RWNodeID {
	entry := g.Block(sg.Entry)
	if entry == nil || len(entry.Nodes) == 0 {
		return 0
	}
	return entry.Nodes[0]
}

// Build assembles a SystemDependenceGraph from g and its owning
// PointerGraph pg, given corr -- the builder-maintained view between
// RWNodes and the PSNodes they were emitted alongside -- plus the
// already-solved reaching-definitions and control-dependence results.
//
// Parameter edges for globals a callee may read or write are not
// materialized: they require the transitive closure of a callee's
// DefSites/UseSites over the call graph, a whole-program summary this
// package has no representation for yet.
func Build(g *rwg.ReadWriteGraph, pg *ptg.PointerGraph, corr map[rwg.RWNodeID]ptg.PSNodeID, rd *rda.Analysis, cd *cda.Analysis) *SystemDependenceGraph {
	sdgraph := &SystemDependenceGraph{}

	reverseCorr := make(map[ptg.PSNodeID]rwg.RWNodeID, len(corr))
	for rwID, psID := range corr {
		reverseCorr[psID] = rwID
	}

	dgBySubgraph := map[*rwg.RWSubgraph]*DependenceGraph{}
	blockByRW := map[rwg.RWBlockID]DGBlockID{}
	dgByBlock := map[rwg.RWBlockID]*DependenceGraph{}

	// Step 1 & 2: one DependenceGraph per procedure, its formal
	// DGParameters, and a DGBBlock/DGNode per RWG block/node.
	for _, sg := range g.Subgraphs() {
		dg := sdgraph.newGraph()
		dgBySubgraph[sg] = dg
		dg.Formals = buildFormals(dg, sg)

		for _, bid := range sg.Blocks {
			dgb := dg.newBlock()
			blockByRW[bid] = dgb
			dgByBlock[bid] = dg
		}
		for _, bid := range sg.Blocks {
			dgb := blockByRW[bid]
			for _, nid := range g.Nodes(bid) {
				n := g.Node(nid)
				dg.create(dgNodeKind(n.Kind), n.Name, dgb, nid)
			}
		}
		dg.EntryNode = dg.rwToNode[firstNode(g, sg)]
		for _, bid := range sg.Blocks {
			rwb := g.Block(bid)
			dgb := dg.Block(blockByRW[bid])
			for _, p := range rwb.Preds {
				dgb.Preds = append(dgb.Preds, blockByRW[p])
			}
			for _, succ := range rwb.Succs {
				dgb.Succs = append(dgb.Succs, blockByRW[succ])
			}
		}
	}

	// Step 3: use-edges, derived from the corresponding PSNodes' operand
	// lists -- "u uses v" at the RWG/SDG level mirrors ptg.PSNode.Operands.
	for rwID, psID := range corr {
		rwNode := g.Node(rwID)
		if rwNode == nil {
			continue
		}
		dg, ok := dgByBlock[rwNode.Block]
		if !ok {
			continue
		}
		u, ok := dg.rwToNode[rwID]
		if !ok {
			continue
		}
		psNode := pg.Node(psID)
		if psNode == nil {
			continue
		}
		for _, opPS := range psNode.Operands {
			opRW, ok := reverseCorr[opPS]
			if !ok {
				continue
			}
			if v, ok := dg.rwToNode[opRW]; ok {
				dg.AddUses(u, v)
			}
		}
	}

	// Step 4: memory-edges, from the reaching-definitions query. The RDA
	// is interprocedural, so a reaching definition may live in another
	// procedure's graph; those become cross-graph edges.
	for _, sg := range g.Subgraphs() {
		dg := dgBySubgraph[sg]
		for _, bid := range sg.Blocks {
			for _, nid := range g.Nodes(bid) {
				n := g.Node(nid)
				u, ok := dg.rwToNode[nid]
				if !ok {
					continue
				}
				for _, use := range n.UseSites {
					for d := range rd.ReachingDefsAt(nid, use) {
						if d == rda.ExternalDef {
							continue
						}
						if v, ok := dg.rwToNode[d]; ok {
							dg.AddMemoryDep(u, v)
							continue
						}
						defNode := g.Node(d)
						if defNode == nil {
							continue
						}
						defDG, ok := dgByBlock[defNode.Block]
						if !ok {
							continue
						}
						if v, ok := defDG.rwToNode[d]; ok {
							crossAddMemoryDep(dg, u, defDG, v)
						}
					}
				}
			}
		}
	}

	// Step 5: control-edges -- first(b) depends on last(x) for every x
	// block's worth of control dependence. cda's interprocedural rule
	// makes callee exit blocks depend on the caller's call-return block,
	// so x may belong to another procedure; those become cross-graph
	// edges.
	for _, sg := range g.Subgraphs() {
		dg := dgBySubgraph[sg]
		for _, bid := range sg.Blocks {
			rwb := g.Block(bid)
			if len(rwb.Nodes) == 0 {
				continue
			}
			first, ok := dg.rwToNode[rwb.Nodes[0]]
			if !ok {
				continue
			}
			for _, x := range cd.ControlDeps(bid) {
				xb := g.Block(x)
				if xb == nil || len(xb.Nodes) == 0 {
					continue
				}
				lastRW := xb.Nodes[len(xb.Nodes)-1]
				if last, ok := dg.rwToNode[lastRW]; ok {
					dg.AddControlDep(first, last)
					continue
				}
				xDG, ok := dgByBlock[x]
				if !ok {
					continue
				}
				if last, ok := xDG.rwToNode[lastRW]; ok {
					crossAddControlDep(dg, first, xDG, last)
				}
			}
		}
	}

	// Step 6: interprocedural parameter edges and call-to-entry
	// control-dependence.
	for _, sg := range g.Subgraphs() {
		dg := dgBySubgraph[sg]
		for _, bid := range sg.Blocks {
			block := blockByRW[bid]
			for _, nid := range g.Nodes(bid) {
				n := g.Node(nid)
				if n.Kind != rwg.CALL || len(n.Callees) == 0 {
					continue
				}
				callNode, ok := dg.rwToNode[nid]
				if !ok {
					continue
				}
				actuals := buildActuals(dg, corr[nid], pg, block)
				dg.actuals[callNode] = actuals

				for _, calleeSG := range n.Callees {
					calleeDG, ok := dgBySubgraph[calleeSG]
					if !ok {
						continue
					}
					for i, fa := range calleeDG.Formals.Args {
						if i >= len(actuals.Args) {
							break
						}
						aa := actuals.Args[i]
						// actual_in_i -> formal_in_i(F): formal_in depends on (uses) actual_in.
						crossAddUses(calleeDG, fa.Input, dg, aa.Input)
						// formal_out_i(F) -> actual_out_i: actual_out depends on (uses) formal_out.
						crossAddUses(dg, aa.Output, calleeDG, fa.Output)
					}
					if calleeDG.EntryNode != 0 {
						crossAddControlDep(dg, callNode, calleeDG, calleeDG.EntryNode)
					}
					dg.callees = appendUniqueGraph(dg.callees, calleeDG)
				}
			}
		}
	}

	// Step 7: summary edges, memoized per callee by reachability from
	// each formal_in along the "value flows to" direction (the reverse
	// of the use/memory forward edges, since AddUses(u, v) stores that u
	// depends on v, i.e. data flows v -> u).
	summaryMemo := map[*DependenceGraph]map[DGNodeID]container.Set[DGNodeID]{}
	for _, dg := range sdgraph.graphs {
		for callNode, actuals := range dg.actuals {
			n := dg.Node(callNode)
			if n == nil || n.rw == 0 {
				continue
			}
			rwNode := g.Node(n.rw)
			if rwNode == nil {
				continue
			}
			for _, calleeSG := range rwNode.Callees {
				calleeDG, ok := dgBySubgraph[calleeSG]
				if !ok {
					continue
				}
				reach, ok := summaryMemo[calleeDG]
				if !ok {
					reach = map[DGNodeID]container.Set[DGNodeID]{}
					summaryMemo[calleeDG] = reach
				}
				for i, fIn := range calleeDG.Formals.Args {
					set, ok := reach[fIn.Input]
					if !ok {
						set = forwardInfluence(calleeDG, fIn.Input)
						reach[fIn.Input] = set
					}
					for j, fOut := range calleeDG.Formals.Args {
						if !set.Has(fOut.Output) {
							continue
						}
						if i < len(actuals.Args) && j < len(actuals.Args) {
							// actual_out_j depends on (uses) actual_in_i through the callee.
							dg.AddUses(actuals.Args[j].Output, actuals.Args[i].Input)
						}
					}
				}
			}
		}
	}

	return sdgraph
}

// crossAddUses adds a use-edge between nodes owned by two different
// DependenceGraphs, mirrored in both endpoints' XUses sets. A local
// DGNodeID cannot name a node in another arena, which is why these
// edges do not go through the single-graph AddUses.
func crossAddUses(fromDG *DependenceGraph, from DGNodeID, toDG *DependenceGraph, to DGNodeID) {
	fn, tn := fromDG.Node(from), toDG.Node(to)
	if fn == nil || tn == nil {
		return
	}
	fn.XUsesFwd = appendUniqueXRef(fn.XUsesFwd, DGXRef{Graph: toDG, Node: to})
	tn.XUsesRev = appendUniqueXRef(tn.XUsesRev, DGXRef{Graph: fromDG, Node: from})
}

// crossAddMemoryDep is crossAddUses's memory-dependence counterpart,
// for a use whose reaching definition lives in another procedure.
func crossAddMemoryDep(fromDG *DependenceGraph, from DGNodeID, toDG *DependenceGraph, to DGNodeID) {
	fn, tn := fromDG.Node(from), toDG.Node(to)
	if fn == nil || tn == nil {
		return
	}
	fn.XMemFwd = appendUniqueXRef(fn.XMemFwd, DGXRef{Graph: toDG, Node: to})
	tn.XMemRev = appendUniqueXRef(tn.XMemRev, DGXRef{Graph: fromDG, Node: from})
}

// crossAddControlDep is crossAddUses's control-dependence counterpart.
func crossAddControlDep(fromDG *DependenceGraph, from DGNodeID, toDG *DependenceGraph, to DGNodeID) {
	fn, tn := fromDG.Node(from), toDG.Node(to)
	if fn == nil || tn == nil {
		return
	}
	fn.XCtrlFwd = appendUniqueXRef(fn.XCtrlFwd, DGXRef{Graph: toDG, Node: to})
	tn.XCtrlRev = appendUniqueXRef(tn.XCtrlRev, DGXRef{Graph: fromDG, Node: from})
}

func appendUniqueXRef(s []DGXRef, v DGXRef) []DGXRef {
	for _, e := range s {
		if e == v {
			return s
		}
	}
	return append(s, v)
}

func removeXRef(s []DGXRef, v DGXRef) []DGXRef {
	out := s[:0]
	for _, e := range s {
		if e != v {
			out = append(out, e)
		}
	}
	return out
}

// forwardInfluence computes the set of nodes whose value may be
// influenced by start, by following UsesRev/MemRev/CtrlRev edges
// (every node that uses, reads memory written by, or is
// control-dependent on something that ultimately traces back to start).
func forwardInfluence(dg *DependenceGraph, start DGNodeID) container.Set[DGNodeID] {
	visited := container.NewSet(start)
	queue := []DGNodeID{start}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		n := dg.Node(id)
		if n == nil {
			continue
		}
		next := append(append(append([]DGNodeID{}, n.UsesRev...), n.MemRev...), n.CtrlRev...)
		for _, v := range next {
			if visited.Add(v) {
				queue = append(queue, v)
			}
		}
	}
	return visited
}

// buildFormals materializes a procedure's formal DGParameters: one
// DGArgumentPair per RWG formal, a return node and a
// noreturn node. Vararg collectors live on the PointerSubgraph rather
// than the RWSubgraph in this model, so a vararg DGArgumentPair is
// added by the caller once it resolves the corresponding PSNode, if
// any; Build does not do so here since not every RWSubgraph has one.
func buildFormals(dg *DependenceGraph, sg *rwg.RWSubgraph) DGParameters {
	paramsBlock := dg.newBlock()
	var params DGParameters
	for i, formal := range sg.Formals {
		in := dg.create(Artificial, fmt.Sprintf("arg%d_in", i), paramsBlock, 0)
		out := dg.create(Artificial, fmt.Sprintf("arg%d_out", i), paramsBlock, formal)
		params.Args = append(params.Args, DGArgumentPair{Input: in, Output: out})
	}
	params.Return = dg.create(Artificial, "return", paramsBlock, 0)
	params.NoReturn = dg.create(Artificial, "noreturn", paramsBlock, 0)
	return params
}

// buildActuals materializes the actual DGParameters of a call node, one
// argument pair per operand of the corresponding PSNode CALL
// instruction.
func buildActuals(dg *DependenceGraph, callPS ptg.PSNodeID, pg *ptg.PointerGraph, block DGBlockID) DGParameters {
	var params DGParameters
	psNode := pg.Node(callPS)
	if psNode == nil {
		return params
	}
	for i := range psNode.Operands {
		in := dg.create(Artificial, fmt.Sprintf("actual%d_in", i), block, 0)
		out := dg.create(Artificial, fmt.Sprintf("actual%d_out", i), block, 0)
		params.Args = append(params.Args, DGArgumentPair{Input: in, Output: out})
	}
	return params
}
