// Package rwg implements the read-write graph: a per-procedure CFG of
// RWNodes, each tagged with the abstract def-sites and use-sites
// derived from the pointer analysis results, so that downstream
// dataflow works on memory effects instead of instructions.
package rwg

import "github.com/mchalupa/dg-go/ivl"

// Kind is the fixed set of RWNode kinds.
type Kind uint8

const (
	ALLOC Kind = iota
	LOAD
	STORE
	CALL
	CALL_RETURN
	PHI
	INTRINSIC
	NOOP
	FORK
	JOIN
)

// RWNodeID identifies an RWNode within the owning ReadWriteGraph's
// arena.
type RWNodeID int

// RWBlockID identifies an RWBBlock within its RWSubgraph.
type RWBlockID int

// DefSite is an abstract memory write: an unknown offset covers the
// whole object, an unknown length extends to the object's end. MustDef
// records
// whether the write is known to be a must-def (singleton, bounded,
// not on a loop) -- rda uses this to choose a strong vs. weak
// transfer.
type DefSite struct {
	Target  RWNodeID
	Offset  ivl.Offset
	Len     ivl.Offset
	MustDef bool
}

// Interval returns the normalized byte interval the def-site covers.
func (d DefSite) Interval() ivl.Interval { return ivl.NewInterval(d.Offset, d.Len) }

// UseSite is an abstract memory read, structurally identical to DefSite.
type UseSite struct {
	Target RWNodeID
	Offset ivl.Offset
	Len    ivl.Offset
}

// Interval returns the normalized byte interval the use-site covers.
func (u UseSite) Interval() ivl.Interval { return ivl.NewInterval(u.Offset, u.Len) }

// RWNode represents one IR instruction's memory effect.
type RWNode struct {
	ID       RWNodeID
	Kind     Kind
	Name     string
	DefSites []DefSite
	UseSites []UseSite
	Block    RWBlockID

	// Pair links a CALL to its CALL_RETURN, mirroring ptg's call/return
	// pairing; the CALL_RETURN stands for the memory state after the
	// call.
	Pair RWNodeID
	// Callees is set on CALL nodes once call-graph resolution determines
	// the target procedure(s); rda.Run uses it for interprocedural
	// joins. On a FORK node it lists the spawned thread functions'
	// subgraphs; on a JOIN node, the subgraphs of every thread function
	// the join may be waiting on (the builder fills both from the
	// pointer analysis's fork/join matching queries). cda.Run consumes
	// all three forms.
	Callees []*RWSubgraph
}

// RWBBlock is a basic block of RWNodes.
type RWBBlock struct {
	ID    RWBlockID
	Nodes []RWNodeID
	Preds []RWBlockID
	Succs []RWBlockID

	subgraph int
}

// RWSubgraph is a per-procedure CFG of RWBBlocks: callers
// and callees mirror the PTG, entries represent formal parameters, and
// call-return nodes represent post-call memory state.
type RWSubgraph struct {
	Entry   RWBlockID
	Exit    RWBlockID
	Formals []RWNodeID
	Blocks  []RWBlockID
}

// ReadWriteGraph exclusively owns every RWNode, RWBBlock and
// RWSubgraph.
type ReadWriteGraph struct {
	nodes     []*RWNode
	blocks    []*RWBBlock
	subgraphs []*RWSubgraph
}

// New returns an empty ReadWriteGraph.
func New() *ReadWriteGraph {
	g := &ReadWriteGraph{}
	g.nodes = append(g.nodes, nil) // id 0 invalid
	g.blocks = append(g.blocks, nil)
	return g
}

// Node returns the node with the given id, or nil if invalid.
func (g *ReadWriteGraph) Node(id RWNodeID) *RWNode {
	if int(id) <= 0 || int(id) >= len(g.nodes) {
		return nil
	}
	return g.nodes[id]
}

// Block returns the block with the given id, or nil if invalid.
func (g *ReadWriteGraph) Block(id RWBlockID) *RWBBlock {
	if int(id) <= 0 || int(id) >= len(g.blocks) {
		return nil
	}
	return g.blocks[id]
}

// NewBlock allocates an empty RWBBlock belonging to sg.
func (g *ReadWriteGraph) NewBlock(sg *RWSubgraph) RWBlockID {
	id := RWBlockID(len(g.blocks))
	idx := -1
	for i, s := range g.subgraphs {
		if s == sg {
			idx = i
		}
	}
	g.blocks = append(g.blocks, &RWBBlock{ID: id, subgraph: idx})
	if sg != nil {
		sg.Blocks = append(sg.Blocks, id)
	}
	return id
}

// AddBlockEdge adds a CFG edge between two blocks.
func (g *ReadWriteGraph) AddBlockEdge(from, to RWBlockID) {
	f, t := g.Block(from), g.Block(to)
	if f == nil || t == nil {
		panic("rwg.AddBlockEdge: edge to/from an invalid block")
	}
	f.Succs = append(f.Succs, to)
	t.Preds = append(t.Preds, from)
}

// Create allocates a new RWNode of the given kind, def-sites and
// use-sites, appends it to block, and returns its id.
func (g *ReadWriteGraph) Create(block RWBlockID, kind Kind, defs []DefSite, uses []UseSite) RWNodeID {
	id := RWNodeID(len(g.nodes))
	n := &RWNode{ID: id, Kind: kind, DefSites: defs, UseSites: uses, Block: block}
	g.nodes = append(g.nodes, n)
	if b := g.Block(block); b != nil {
		b.Nodes = append(b.Nodes, id)
	}
	return id
}

// CreateSubgraph starts a new procedure; the caller populates its
// entry block via NewBlock/Create.
func (g *ReadWriteGraph) CreateSubgraph() *RWSubgraph {
	sg := &RWSubgraph{}
	g.subgraphs = append(g.subgraphs, sg)
	return sg
}

// Subgraphs returns every owned subgraph, in creation order.
func (g *ReadWriteGraph) Subgraphs() []*RWSubgraph { return g.subgraphs }

// Nodes returns every node of a block in original order.
func (g *ReadWriteGraph) Nodes(b RWBlockID) []RWNodeID {
	blk := g.Block(b)
	if blk == nil {
		return nil
	}
	return blk.Nodes
}
