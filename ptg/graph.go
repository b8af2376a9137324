package ptg

import (
	"fmt"
	"io"

	"github.com/mchalupa/dg-go/callgraph"
	"github.com/mchalupa/dg-go/internal/container"
)

// PointerSubgraph is one procedure's slice of the pointer graph: a
// root ENTRY node, a set of RETURN nodes, an optional variadic-args
// collector, and an on-demand loop (SCC) cache.
type PointerSubgraph struct {
	Entry   PSNodeID
	Returns []PSNodeID
	Vararg  PSNodeID // 0 if none

	g       *PointerGraph
	members []PSNodeID
	sccs    []container.SCC
	onLoop  map[PSNodeID]bool
}

// subgraphCFG adapts a PointerSubgraph's member nodes to
// container.Graph so Tarjan can find its loops.
type subgraphCFG struct {
	sg    *PointerSubgraph
	index map[PSNodeID]int
}

func (c *subgraphCFG) NumNodes() int { return len(c.sg.members) }
func (c *subgraphCFG) Succs(i int) []int {
	n := c.sg.g.nodes[c.sg.members[i]]
	var out []int
	for _, s := range n.Succs {
		if j, ok := c.index[s]; ok {
			out = append(out, j)
		}
	}
	return out
}

// computeLoops lazily computes which of the subgraph's nodes sit on a
// non-trivial SCC of the intra-procedural CFG.
func (sg *PointerSubgraph) computeLoops() {
	if sg.onLoop != nil {
		return
	}
	idx := make(map[PSNodeID]int, len(sg.members))
	for i, id := range sg.members {
		idx[id] = i
	}
	cfg := &subgraphCFG{sg: sg, index: idx}
	sg.sccs = container.Tarjan(cfg)
	sg.onLoop = make(map[PSNodeID]bool, len(sg.members))
	for _, scc := range sg.sccs {
		if !scc.OnLoop {
			continue
		}
		for _, i := range scc.Nodes {
			sg.onLoop[sg.members[i]] = true
		}
	}
}

// Members returns the node ids belonging to sg, in the order they were
// added.
func (sg *PointerSubgraph) Members() []PSNodeID { return sg.members }

// OnLoop reports whether id's defining instruction sits on a loop of
// this subgraph's CFG, meaning its allocation instances are not
// singletons.
func (sg *PointerSubgraph) OnLoop(id PSNodeID) bool {
	sg.computeLoops()
	return sg.onLoop[id]
}

// PointerGraph owns every PSNode and PointerSubgraph in a dense arena
// and is the sole writer of node ids; builders only append.
type PointerGraph struct {
	nodes       []*PSNode // arena; index 0 unused
	subgraphs   []*PointerSubgraph
	globalInits []PSNodeID
	entry       *PointerSubgraph
	CallGraph   *callgraph.Graph[PSNodeID]
	Log         io.Writer
}

// New returns a PointerGraph pre-populated with the three distinguished
// singleton nodes.
func New() *PointerGraph {
	g := &PointerGraph{CallGraph: callgraph.New[PSNodeID]()}
	g.nodes = append(g.nodes, nil) // slot 0: invalid
	for _, id := range []PSNodeID{NullPtr, UnknownMemory, Invalidated} {
		n := &PSNode{ID: id, Kind: NOOP, Name: id.String(), PointsTo: NewPointsToSet(), subgraph: -1}
		g.nodes = append(g.nodes, n)
	}
	// Each singleton points to itself, so e.g. ptsTo(NULLPTR) = {(NULLPTR,0)}.
	for _, id := range []PSNodeID{NullPtr, UnknownMemory, Invalidated} {
		g.nodes[id].PointsTo.Add(Pointer{Target: id, Offset: 0})
	}
	return g
}

func (g *PointerGraph) logf(format string, args ...interface{}) {
	if g.Log != nil {
		fmt.Fprintf(g.Log, format, args...)
	}
}

// Node returns the node with the given id, or nil if it is out of
// range or has been removed.
func (g *PointerGraph) Node(id PSNodeID) *PSNode {
	if int(id) <= 0 || int(id) >= len(g.nodes) {
		return nil
	}
	n := g.nodes[id]
	if n == nil || n.removed {
		return nil
	}
	return n
}

// Create allocates a new PSNode of the given kind with the given
// operands, wiring reverse "users" edges, and returns its id. This is
// the builder's node-creation entry point.
func (g *PointerGraph) Create(kind Kind, data Data, operands ...PSNodeID) PSNodeID {
	id := PSNodeID(len(g.nodes))
	n := &PSNode{
		ID:       id,
		Kind:     kind,
		Operands: append([]PSNodeID(nil), operands...),
		PointsTo: NewPointsToSet(),
		Data:     data,
		subgraph: -1,
	}
	g.nodes = append(g.nodes, n)
	for _, op := range operands {
		if opn := g.Node(op); opn != nil {
			opn.users = append(opn.users, id)
		}
	}
	g.logf("ptg: create %s kind=%s operands=%v\n", id, kind, operands)
	return id
}

// AddEdge adds a CFG edge inside a subgraph from one instruction to
// the next.
func (g *PointerGraph) AddEdge(from, to PSNodeID) {
	fn, tn := g.Node(from), g.Node(to)
	if fn == nil || tn == nil {
		panic("ptg.AddEdge: edge to/from a deleted or invalid node")
	}
	fn.Succs = append(fn.Succs, to)
	tn.Preds = append(tn.Preds, from)
}

// CreateSubgraph wraps a procedure's ENTRY node (and optional vararg
// collector) into a new PointerSubgraph, appended (never re-indexed)
// to the graph's subgraph list.
func (g *PointerGraph) CreateSubgraph(root PSNodeID, vararg PSNodeID) *PointerSubgraph {
	sg := &PointerSubgraph{Entry: root, Vararg: vararg, g: g}
	g.subgraphs = append(g.subgraphs, sg)
	g.addMember(sg, root)
	if vararg != 0 {
		g.addMember(sg, vararg)
	}
	return sg
}

// AddMember registers an already-created node as belonging to sg
// (used by the builder as it emits each instruction of a procedure).
func (g *PointerGraph) AddMember(sg *PointerSubgraph, id PSNodeID) {
	g.addMember(sg, id)
}

func (g *PointerGraph) addMember(sg *PointerSubgraph, id PSNodeID) {
	if n := g.Node(id); n != nil {
		n.subgraph = g.subgraphIndex(sg)
	}
	sg.members = append(sg.members, id)
	sg.onLoop = nil // invalidate loop cache
	if n := g.Node(id); n != nil && n.Kind == RETURN {
		sg.Returns = append(sg.Returns, id)
	}
}

func (g *PointerGraph) subgraphIndex(sg *PointerSubgraph) int {
	for i, s := range g.subgraphs {
		if s == sg {
			return i
		}
	}
	return -1
}

// SetEntry designates sg as the program's entry subgraph.
func (g *PointerGraph) SetEntry(sg *PointerSubgraph) { g.entry = sg }

// Entry returns the program's entry subgraph, or nil if none was set.
func (g *PointerGraph) Entry() *PointerSubgraph { return g.entry }

// Subgraphs returns every subgraph the graph owns, in creation order.
func (g *PointerGraph) Subgraphs() []*PointerSubgraph { return g.subgraphs }

// SubgraphOf returns the subgraph id belongs to, or nil for the
// distinguished singletons or an invalid id.
func (g *PointerGraph) SubgraphOf(id PSNodeID) *PointerSubgraph {
	n := g.Node(id)
	if n == nil || n.subgraph < 0 {
		return nil
	}
	return g.subgraphs[n.subgraph]
}

// RegisterCall wires a CALL_FUNCPTR resolution to a concrete callee:
// records the call-graph edge, connects CALL -> entry(F) and
// return(F) -> CALL_RETURN, and pairs the call with its CALL_RETURN.
// It adds no operand edges for formal arguments or the return value.
// callNode is the CALL/CALL_FUNCPTR site; calleeEntry is F's
// PointerSubgraph; callReturn is the paired CALL_RETURN node.
func (g *PointerGraph) RegisterCall(callNode PSNodeID, calleeEntry *PointerSubgraph, callReturn PSNodeID) {
	g.CallGraph.AddCall(callNode, calleeEntry.Entry)
	g.AddEdge(callNode, calleeEntry.Entry)
	for _, ret := range calleeEntry.Returns {
		g.AddEdge(ret, callReturn)
	}
	if cn := g.Node(callNode); cn != nil {
		cn.Pair = callReturn
	}
	if crn := g.Node(callReturn); crn != nil {
		crn.Pair = callNode
	}
	g.logf("ptg: registered call n%d -> entry n%d (return n%d)\n", callNode, calleeEntry.Entry, callReturn)
}

// AddGlobalInit appends a STORE of value into global (a node the
// caller has already created) to the graph's
// global-initialization prologue: value's points-to set is stored into
// global before the entry subgraph runs, so global initializers need
// no special case in the solver.
func (g *PointerGraph) AddGlobalInit(global, value PSNodeID) {
	store := g.Create(STORE, nil, global, value)
	g.globalInits = append(g.globalInits, store)
	if len(g.globalInits) > 1 {
		g.AddEdge(g.globalInits[len(g.globalInits)-2], store)
	}
}

// GlobalInits returns the prologue STORE nodes, in the order they were
// added; the solver runs these before the entry subgraph.
func (g *PointerGraph) GlobalInits() []PSNodeID { return g.globalInits }

// Remove deletes an isolated node (no successors, predecessors,
// operands or users); this is O(1) since the arena never shifts ids.
// Removing a node that is not isolated is a builder precondition
// violation and panics.
func (g *PointerGraph) Remove(id PSNodeID) {
	n := g.Node(id)
	if n == nil {
		panic(fmt.Sprintf("ptg.Remove: n%d does not exist", id))
	}
	if len(n.Succs) > 0 || len(n.Preds) > 0 || len(n.Operands) > 0 || len(n.users) > 0 {
		panic(fmt.Sprintf("ptg.Remove: n%d is not isolated", id))
	}
	n.removed = true
	g.nodes[id] = nil
}
