package sdg

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

// newTestGraph builds a two-node, one-block DependenceGraph for the
// edge-bookkeeping tests below, bypassing Build's full pipeline.
func newTestGraph() (*DependenceGraph, DGNodeID, DGNodeID) {
	dg, b := newTestBlock()
	a := dg.create(Instruction, "a", b, 0)
	c := dg.create(Instruction, "c", b, 0)
	return dg, a, c
}

func newTestBlock() (*DependenceGraph, DGBlockID) {
	dg := newDependenceGraph(0)
	return dg, dg.newBlock()
}

// TestEdgeMirroring: every forward edge has a matching reverse edge
// at the other endpoint.
func TestEdgeMirroring(t *testing.T) {
	dg, a, c := newTestGraph()
	dg.AddUses(a, c)
	dg.AddMemoryDep(a, c)
	dg.AddControlDep(a, c)

	na, nc := dg.Node(a), dg.Node(c)
	if len(na.UsesFwd) != 1 || na.UsesFwd[0] != c {
		t.Fatal("a.UsesFwd must contain c")
	}
	if len(nc.UsesRev) != 1 || nc.UsesRev[0] != a {
		t.Fatal("c.UsesRev must contain a")
	}
	if len(na.MemFwd) != 1 || len(nc.MemRev) != 1 {
		t.Fatal("memory-dep edge must be mirrored")
	}
	if len(na.CtrlFwd) != 1 || len(nc.CtrlRev) != 1 {
		t.Fatal("control-dep edge must be mirrored")
	}
}

func TestAddEdgeIsIdempotent(t *testing.T) {
	dg, a, c := newTestGraph()
	dg.AddUses(a, c)
	dg.AddUses(a, c)
	if len(dg.Node(a).UsesFwd) != 1 {
		t.Fatalf("adding the same use-edge twice must not duplicate it, got %v", dg.Node(a).UsesFwd)
	}
}

// TestUsesFwdIsOrderIndependentSet confirms a node's forward use-edges
// are correct as a set regardless of insertion order (several operands
// used in different orders must still end up pointing at the same
// dependents).
func TestUsesFwdIsOrderIndependentSet(t *testing.T) {
	dg, b := newTestBlock()
	a := dg.create(Instruction, "a", b, 0)
	c := dg.create(Instruction, "c", b, 0)
	d := dg.create(Instruction, "d", b, 0)
	dg.AddUses(a, d)
	dg.AddUses(a, c)

	want := []DGNodeID{c, d}
	got := dg.Node(a).UsesFwd
	if diff := cmp.Diff(want, got, cmpopts.SortSlices(func(x, y DGNodeID) bool { return x < y })); diff != "" {
		t.Fatalf("UsesFwd mismatch as a set (-want +got):\n%s", diff)
	}
}

// TestCrossGraphEdgeMirroring covers the interprocedural parameter
// edges of Build step 6: an edge between two graphs' nodes is mirrored
// as DGXRef pairs carrying the owning graph, and Sever strips both
// ends.
func TestCrossGraphEdgeMirroring(t *testing.T) {
	caller, a, _ := newTestGraph()
	callee, f, _ := newTestGraph()

	crossAddUses(callee, f, caller, a)

	fn, an := callee.Node(f), caller.Node(a)
	if len(fn.XUsesFwd) != 1 || fn.XUsesFwd[0] != (DGXRef{Graph: caller, Node: a}) {
		t.Fatalf("f.XUsesFwd must reference a in the caller's graph, got %v", fn.XUsesFwd)
	}
	if len(an.XUsesRev) != 1 || an.XUsesRev[0] != (DGXRef{Graph: callee, Node: f}) {
		t.Fatalf("a.XUsesRev must reference f in the callee's graph, got %v", an.XUsesRev)
	}

	caller.Sever(a)
	if len(fn.XUsesFwd) != 0 {
		t.Fatalf("severing a must strip f's mirrored cross-graph edge, got %v", fn.XUsesFwd)
	}
}

func TestRemoveNodePanicsWithLiveEdges(t *testing.T) {
	dg, a, c := newTestGraph()
	dg.AddUses(a, c)

	defer func() {
		if recover() == nil {
			t.Fatal("RemoveNode on a node with live edges must panic")
		}
	}()
	dg.RemoveNode(c)
}

func TestSeverAndRemoveClearsBothEndpoints(t *testing.T) {
	dg, a, c := newTestGraph()
	dg.AddUses(a, c)
	dg.AddMemoryDep(c, a)

	dg.SeverAndRemove(c)

	if dg.Node(c) != nil {
		t.Fatal("c must be gone after SeverAndRemove")
	}
	if len(dg.Node(a).UsesFwd) != 0 || len(dg.Node(a).MemRev) != 0 {
		t.Fatalf("severing c must strip a's mirrored edge references, got %+v", dg.Node(a))
	}
}

// TestIsolateReconnectsAroundBlock exercises the block-level Isolate
// used by the slicer when it sweeps a block with no surviving nodes.
func TestIsolateReconnectsAroundBlock(t *testing.T) {
	dg := newDependenceGraph(0)
	b0 := dg.newBlock()
	b1 := dg.newBlock()
	b2 := dg.newBlock()
	linkBlocks(dg, b0, b1)
	linkBlocks(dg, b1, b2)

	dg.Isolate(b1)

	if dg.Block(b1) != nil {
		t.Fatal("b1 must be detached after Isolate")
	}
	b0blk, b2blk := dg.Block(b0), dg.Block(b2)
	if len(b0blk.Succs) != 1 || b0blk.Succs[0] != b2 {
		t.Fatalf("b0 must now point directly to b2, got %v", b0blk.Succs)
	}
	if len(b2blk.Preds) != 1 || b2blk.Preds[0] != b0 {
		t.Fatalf("b2 must now be preceded directly by b0, got %v", b2blk.Preds)
	}
}

func TestIsolateSuppressesSelfLoop(t *testing.T) {
	dg := newDependenceGraph(0)
	b0 := dg.newBlock()
	b1 := dg.newBlock()
	linkBlocks(dg, b0, b1)
	linkBlocks(dg, b1, b0)

	dg.Isolate(b1)

	b0blk := dg.Block(b0)
	for _, s := range b0blk.Succs {
		if s == b0 {
			t.Fatalf("isolating b1 must not recreate a self-loop on b0, got succs %v", b0blk.Succs)
		}
	}
}

func linkBlocks(dg *DependenceGraph, from, to DGBlockID) {
	f, tt := dg.Block(from), dg.Block(to)
	f.Succs = append(f.Succs, to)
	tt.Preds = append(tt.Preds, from)
}
