package pta

import (
	"testing"

	"github.com/mchalupa/dg-go/ptg"
)

// TestJoinMatchesAliasingFork builds a FORK that spawns a function
// through a handle object, and a JOIN whose handle operand may alias
// it (via a GEP-free copy of the same pointer), and confirms
// JoinedForks/JoinedFunctions recover the match purely from the solved
// points-to sets (ForkJoinAnalysis::matchJoin/joinFunctions).
func TestJoinMatchesAliasingFork(t *testing.T) {
	c := newChain()
	handleObj := c.add(ptg.ALLOC, ptg.AllocData{Size: 8})
	fn := c.add(ptg.FUNCTION, ptg.FunctionData{Name: "worker"})
	handlePtr := c.add(ptg.CONSTANT, ptg.ConstantData{Target: handleObj})
	fork := c.add(ptg.FORK, nil, handlePtr, fn)
	joinHandlePtr := c.add(ptg.CONSTANT, ptg.ConstantData{Target: handleObj})
	join := c.add(ptg.JOIN, nil, joinHandlePtr)

	res := Run(c.g, Config{Variant: FS})

	forks := res.JoinedForks(join)
	if len(forks) != 1 || forks[0] != fork {
		t.Fatalf("JoinedForks(join) = %v, want [%v]", forks, fork)
	}
	fns := res.JoinedFunctions(join)
	if len(fns) != 1 || fns[0] != fn {
		t.Fatalf("JoinedFunctions(join) = %v, want [%v]", fns, fn)
	}
}

// TestJoinDoesNotMatchUnrelatedFork confirms a JOIN whose handle can
// never alias a FORK's handle is not reported as a match.
func TestJoinDoesNotMatchUnrelatedFork(t *testing.T) {
	c := newChain()
	handleA := c.add(ptg.ALLOC, ptg.AllocData{Size: 8})
	handleB := c.add(ptg.ALLOC, ptg.AllocData{Size: 8})
	fn := c.add(ptg.FUNCTION, ptg.FunctionData{Name: "worker"})
	forkHandlePtr := c.add(ptg.CONSTANT, ptg.ConstantData{Target: handleA})
	_ = c.add(ptg.FORK, nil, forkHandlePtr, fn)
	joinHandlePtr := c.add(ptg.CONSTANT, ptg.ConstantData{Target: handleB})
	join := c.add(ptg.JOIN, nil, joinHandlePtr)

	res := Run(c.g, Config{Variant: FS})

	if forks := res.JoinedForks(join); len(forks) != 0 {
		t.Fatalf("JoinedForks(join) = %v, want none: handles never alias", forks)
	}
}
