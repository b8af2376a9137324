package slicer

import (
	"testing"

	"github.com/mchalupa/dg-go/cda"
	"github.com/mchalupa/dg-go/ptg"
	"github.com/mchalupa/dg-go/rda"
	"github.com/mchalupa/dg-go/rwg"
	"github.com/mchalupa/dg-go/sdg"
)

// buildAllocStoreLoad returns a one-procedure SystemDependenceGraph for
// `alloc a; store a, a; load a`, plus the DGNodeIDs of each instruction
// (found via block order, since Build lays out a block's DGNodes in the
// same order as the RWG block's Nodes).
func buildAllocStoreLoad(t *testing.T) (*sdg.SystemDependenceGraph, *sdg.DependenceGraph, sdg.DGNodeID, sdg.DGNodeID, sdg.DGNodeID) {
	t.Helper()
	g := rwg.New()
	sg := g.CreateSubgraph()
	b := g.NewBlock(sg)
	sg.Entry = b

	alloc := g.Create(b, rwg.ALLOC, nil, nil)
	_ = g.Create(b, rwg.STORE, []rwg.DefSite{{Target: alloc, Offset: 0, Len: 4, MustDef: true}}, nil)
	_ = g.Create(b, rwg.LOAD, nil, []rwg.UseSite{{Target: alloc, Offset: 0, Len: 4}})

	rd := rda.Run(g)
	cd := cda.Run(g)
	pg := ptg.New()
	corr := map[rwg.RWNodeID]ptg.PSNodeID{}

	sysdg := sdg.Build(g, pg, corr, rd, cd)
	dg := sysdg.Graphs()[0]

	var blockWithNodes sdg.DGBlockID
	for _, bid := range dg.Blocks() {
		if len(dg.Block(bid).Nodes) == 3 {
			blockWithNodes = bid
		}
	}
	nodes := dg.Block(blockWithNodes).Nodes
	return sysdg, dg, nodes[0], nodes[1], nodes[2]
}

// buildCallFixture returns a two-procedure SystemDependenceGraph for
// `main: call f(x)` where f takes one formal parameter, plus both
// procedures' graphs and the call site's actual-parameter pairs.
func buildCallFixture(t *testing.T) (*sdg.SystemDependenceGraph, *sdg.DependenceGraph, *sdg.DependenceGraph, sdg.DGParameters) {
	t.Helper()
	g := rwg.New()

	callee := g.CreateSubgraph()
	cb := g.NewBlock(callee)
	callee.Entry = cb
	callee.Exit = cb
	formal := g.Create(cb, rwg.NOOP, nil, nil)
	callee.Formals = []rwg.RWNodeID{formal}

	caller := g.CreateSubgraph()
	mb := g.NewBlock(caller)
	caller.Entry = mb
	call := g.Create(mb, rwg.CALL, nil, nil)
	g.Node(call).Callees = []*rwg.RWSubgraph{callee}

	pg := ptg.New()
	arg := pg.Create(ptg.ALLOC, ptg.AllocData{Size: 4})
	callPS := pg.Create(ptg.CALL, nil, arg)
	corr := map[rwg.RWNodeID]ptg.PSNodeID{call: callPS}

	sysdg := sdg.Build(g, pg, corr, rda.Run(g), cda.Run(g))
	calleeDG, callerDG := sysdg.Graphs()[0], sysdg.Graphs()[1]

	callNode := findCallNode(callerDG)
	if callNode == 0 {
		t.Fatal("caller graph must contain a Call node")
	}
	actuals, ok := callerDG.Actuals(callNode)
	if !ok || len(actuals.Args) == 0 {
		t.Fatal("call node must carry actual-parameter pairs")
	}
	return sysdg, callerDG, calleeDG, actuals
}

func findCallNode(dg *sdg.DependenceGraph) sdg.DGNodeID {
	for _, bid := range dg.Blocks() {
		for _, id := range dg.Block(bid).Nodes {
			if n := dg.Node(id); n != nil && n.Kind == sdg.Call {
				return n.ID
			}
		}
	}
	return 0
}

// TestMarkCrossesIntoCallee: marking from the actual-out of a call
// site must walk the formal_out -> actual_out parameter edge backward
// into the callee's own graph, mark it, and (having entered through a
// formal parameter) mark the callee's entry node too.
func TestMarkCrossesIntoCallee(t *testing.T) {
	sysdg, callerDG, calleeDG, actuals := buildCallFixture(t)

	Mark(sysdg, Criterion{Graph: callerDG, Nodes: []sdg.DGNodeID{actuals.Args[0].Output}}, 7)

	if calleeDG.SliceID != 7 {
		t.Fatal("the callee graph must be marked through the parameter edge")
	}
	fOut := calleeDG.Formals.Args[0].Output
	if calleeDG.Node(fOut).SliceID != 7 {
		t.Fatal("the callee's formal-out node must be marked")
	}
	if calleeDG.Node(calleeDG.EntryNode).SliceID != 7 {
		t.Fatal("entering via a formal parameter must also mark the callee's entry node")
	}
}

// TestSlicePreservesAssertionThroughIndirectCall models the shape of
// `a = 2; b = 3; f(&a); assert(a == 2)` where f resolves to one of two
// functions that each write through their pointer argument. Slicing on
// the assertion must keep the assignment to a, both candidate callee
// bodies and the call; the assignment to b is unrelated and must be
// swept.
func TestSlicePreservesAssertionThroughIndirectCall(t *testing.T) {
	g := rwg.New()
	mk := func() (*rwg.RWSubgraph, rwg.RWBlockID) {
		sg := g.CreateSubgraph()
		b := g.NewBlock(sg)
		sg.Entry, sg.Exit = b, b
		return sg, b
	}

	set1, s1b := mk()
	set2, s2b := mk()
	main, mb := mk()
	mb2 := g.NewBlock(main)
	g.AddBlockEdge(mb, mb2)

	allocA := g.Create(mb, rwg.ALLOC, nil, nil)
	allocB := g.Create(mb, rwg.ALLOC, nil, nil)
	storeA := g.Create(mb, rwg.STORE, []rwg.DefSite{{Target: allocA, Offset: 0, Len: 4, MustDef: true}}, nil)
	storeB := g.Create(mb, rwg.STORE, []rwg.DefSite{{Target: allocB, Offset: 0, Len: 4, MustDef: true}}, nil)
	set1Store := g.Create(s1b, rwg.STORE, []rwg.DefSite{{Target: allocA, Offset: 0, Len: 4}}, nil)
	set2Store := g.Create(s2b, rwg.STORE, []rwg.DefSite{{Target: allocA, Offset: 0, Len: 4}}, nil)
	call := g.Create(mb, rwg.CALL, nil, nil)
	g.Node(call).Callees = []*rwg.RWSubgraph{set1, set2}
	callRet := g.Create(mb, rwg.CALL_RETURN, nil, nil)
	g.Node(call).Pair = callRet
	g.Node(callRet).Pair = call
	assert := g.Create(mb2, rwg.LOAD, nil, []rwg.UseSite{{Target: allocA, Offset: 0, Len: 4}})

	pg := ptg.New()
	callPS := pg.Create(ptg.CALL, nil)
	callRetPS := pg.Create(ptg.CALL_RETURN, nil, callPS)
	corr := map[rwg.RWNodeID]ptg.PSNodeID{call: callPS, callRet: callRetPS}

	sysdg := sdg.Build(g, pg, corr, rda.Run(g), cda.Run(g))
	set1DG, set2DG, mainDG := sysdg.Graphs()[0], sysdg.Graphs()[1], sysdg.Graphs()[2]

	mustNode := func(dg *sdg.DependenceGraph, rw rwg.RWNodeID) sdg.DGNodeID {
		t.Helper()
		id, ok := dg.NodeFor(rw)
		if !ok {
			t.Fatalf("no DGNode for rw node %d", rw)
		}
		return id
	}
	assertNode := mustNode(mainDG, assert)

	Mark(sysdg, Criterion{Graph: mainDG, Nodes: []sdg.DGNodeID{assertNode}}, 1)
	Slice(sysdg, 1)

	for _, keep := range []struct {
		dg *sdg.DependenceGraph
		rw rwg.RWNodeID
	}{
		{mainDG, storeA}, {mainDG, call}, {mainDG, callRet}, {mainDG, assert},
		{set1DG, set1Store}, {set2DG, set2Store},
	} {
		id, ok := keep.dg.NodeFor(keep.rw)
		if !ok || keep.dg.Node(id) == nil {
			t.Errorf("rw node %d must survive the slice", keep.rw)
		}
	}
	if id, ok := mainDG.NodeFor(storeB); ok && mainDG.Node(id) != nil {
		t.Error("the unrelated store to b must be swept")
	}
}

// TestMarkFollowsMemoryDependenceBackward: the slice of a use must
// retain the write it reads from.
func TestMarkFollowsMemoryDependenceBackward(t *testing.T) {
	sysdg, dg, _, store, load := buildAllocStoreLoad(t)

	Mark(sysdg, Criterion{Graph: dg, Nodes: []sdg.DGNodeID{load}}, 1)

	if dg.Node(load).SliceID != 1 {
		t.Fatal("the criterion itself must be marked")
	}
	if dg.Node(store).SliceID != 1 {
		t.Fatal("load's reaching definition (the store) must be marked by the backward walk")
	}
}

// TestSliceRemovesEverythingNotMarked: after Slice, only nodes
// reachable backward from the criterion survive.
func TestSliceRemovesEverythingNotMarked(t *testing.T) {
	sysdg, dg, alloc, store, load := buildAllocStoreLoad(t)

	Mark(sysdg, Criterion{Graph: dg, Nodes: []sdg.DGNodeID{load}}, 1)
	stats := Slice(sysdg, 1)

	if dg.Node(alloc) != nil {
		t.Fatal("alloc is not used by the slice and must be swept")
	}
	if dg.Node(store) == nil {
		t.Fatal("store feeds the criterion's reaching definition and must survive")
	}
	if dg.Node(load) == nil {
		t.Fatal("the criterion itself must survive")
	}
	if stats.NodesRemoved == 0 {
		t.Fatal("expected at least one node removed (alloc and the unmarked formal-parameter scaffolding)")
	}
}
