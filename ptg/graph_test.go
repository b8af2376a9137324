package ptg

import "testing"

func TestNewHasDistinguishedSingletons(t *testing.T) {
	g := New()
	for _, id := range []PSNodeID{NullPtr, UnknownMemory, Invalidated} {
		n := g.Node(id)
		if n == nil {
			t.Fatalf("singleton %v must exist", id)
		}
		if !n.PointsTo.PointsTo(Pointer{Target: id, Offset: 0}) {
			t.Fatalf("singleton %v must point to itself", id)
		}
	}
}

func TestCreateWiresOperandsAndUsers(t *testing.T) {
	g := New()
	a := g.Create(ALLOC, AllocData{})
	b := g.Create(LOAD, LoadData{}, a)

	an := g.Node(a)
	if len(an.Users()) != 1 || an.Users()[0] != b {
		t.Fatalf("a's users should be [%v], got %v", b, an.Users())
	}
	bn := g.Node(b)
	if len(bn.Operands) != 1 || bn.Operands[0] != a {
		t.Fatalf("b's operands should be [%v], got %v", a, bn.Operands)
	}
}

func TestRemoveRequiresIsolation(t *testing.T) {
	g := New()
	a := g.Create(ALLOC, AllocData{})
	b := g.Create(LOAD, LoadData{}, a)
	_ = b

	defer func() {
		if recover() == nil {
			t.Fatal("Remove of a non-isolated node must panic")
		}
	}()
	g.Remove(a)
}

func TestRemoveIsolatedNodeSucceeds(t *testing.T) {
	g := New()
	a := g.Create(ALLOC, AllocData{})
	g.Remove(a)
	if g.Node(a) != nil {
		t.Fatal("removed node must no longer be visible via Node")
	}
}

func TestSubgraphMembersAndEntry(t *testing.T) {
	g := New()
	entry := g.Create(ENTRY, nil)
	a := g.Create(ALLOC, AllocData{})
	g.AddEdge(entry, a)
	sg := g.CreateSubgraph(entry, 0)
	g.AddMember(sg, a)
	g.SetEntry(sg)

	if g.Entry() != sg {
		t.Fatal("SetEntry/Entry round-trip failed")
	}
	members := sg.Members()
	if len(members) != 2 || members[0] != entry || members[1] != a {
		t.Fatalf("Members = %v, want [%v %v]", members, entry, a)
	}
	if g.SubgraphOf(a) != sg {
		t.Fatal("SubgraphOf(a) must return sg")
	}
}

func TestOnLoopDetectsBackEdge(t *testing.T) {
	g := New()
	entry := g.Create(ENTRY, nil)
	loopHead := g.Create(ALLOC, AllocData{})
	loopTail := g.Create(NOOP, nil)
	after := g.Create(NOOP, nil)

	g.AddEdge(entry, loopHead)
	g.AddEdge(loopHead, loopTail)
	g.AddEdge(loopTail, loopHead) // back-edge: loopHead/loopTail form a cycle
	g.AddEdge(loopTail, after)

	sg := g.CreateSubgraph(entry, 0)
	g.AddMember(sg, loopHead)
	g.AddMember(sg, loopTail)
	g.AddMember(sg, after)

	if !sg.OnLoop(loopHead) {
		t.Fatal("loopHead is part of a 2-node SCC, must be on-loop")
	}
	if !sg.OnLoop(loopTail) {
		t.Fatal("loopTail is part of a 2-node SCC, must be on-loop")
	}
	if sg.OnLoop(after) {
		t.Fatal("after is not part of any cycle, must not be on-loop")
	}
	if sg.OnLoop(entry) {
		t.Fatal("entry is not part of any cycle, must not be on-loop")
	}
}

func TestOnLoopSelfLoop(t *testing.T) {
	g := New()
	entry := g.Create(ENTRY, nil)
	self := g.Create(NOOP, nil)
	g.AddEdge(entry, self)
	g.AddEdge(self, self)

	sg := g.CreateSubgraph(entry, 0)
	g.AddMember(sg, self)

	if !sg.OnLoop(self) {
		t.Fatal("a node with a self-loop counts as on-loop")
	}
}

func TestGlobalInitsChain(t *testing.T) {
	g := New()
	g1 := g.Create(GLOBAL, GlobalData{})
	v1 := g.Create(CONSTANT, ConstantData{Target: NullPtr})
	g.AddGlobalInit(g1, v1)

	g2 := g.Create(GLOBAL, GlobalData{})
	v2 := g.Create(CONSTANT, ConstantData{Target: NullPtr})
	g.AddGlobalInit(g2, v2)

	inits := g.GlobalInits()
	if len(inits) != 2 {
		t.Fatalf("expected 2 global-init STORE nodes, got %d", len(inits))
	}
	second := g.Node(inits[1])
	if len(second.Preds) != 1 || second.Preds[0] != inits[0] {
		t.Fatal("global-init STOREs must be chained in order")
	}
}
