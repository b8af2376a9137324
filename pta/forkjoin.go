package pta

import "github.com/mchalupa/dg-go/ptg"

// ForkedFunction returns the FUNCTION node a FORK site spawns (its
// second operand, by convention [handle, function] -- mirroring
// STORE's [ptr, value] ordering). Returns 0 if fork is not a FORK
// node.
//
// This, JoinedForks and JoinedFunctions are post-solve queries for
// thread-aware clients: a JOIN is matched to the FORKs it may be
// joining with purely by points-to overlap of their handle operands,
// so no IR-level knowledge of the threading API is needed here.
func (r *Result) ForkedFunction(fork ptg.PSNodeID) ptg.PSNodeID {
	n := r.g.Node(fork)
	if n == nil || n.Kind != ptg.FORK || len(n.Operands) < 2 {
		return 0
	}
	return n.Operands[1]
}

// JoinedForks returns every FORK node whose thread handle may alias
// join's handle operand, i.e. every FORK this JOIN could be joining
// with. A JOIN/FORK pair match when their handle operands' solved
// points-to sets overlap.
func (r *Result) JoinedForks(join ptg.PSNodeID) []ptg.PSNodeID {
	jn := r.g.Node(join)
	if jn == nil || jn.Kind != ptg.JOIN || len(jn.Operands) < 1 {
		return nil
	}
	handle := r.PointsTo(jn.Operands[0])

	var forks []ptg.PSNodeID
	for _, sg := range r.g.Subgraphs() {
		for _, id := range sg.Members() {
			n := r.g.Node(id)
			if n == nil || n.Kind != ptg.FORK || len(n.Operands) < 1 {
				continue
			}
			if pointsToOverlaps(handle, r.PointsTo(n.Operands[0])) {
				forks = append(forks, id)
			}
		}
	}
	return forks
}

// pointsToOverlaps reports whether a and b share any concrete pointer,
// the aliasing test a JOIN/FORK handle match needs.
func pointsToOverlaps(a, b ptg.PointsToSet) bool {
	small, big := a, b
	if small.Len() > big.Len() {
		small, big = big, small
	}
	for _, p := range small.Slice() {
		if big.PointsTo(p) {
			return true
		}
	}
	return false
}

// JoinedFunctions composes JoinedForks with ForkedFunction, returning
// every FUNCTION node join may be joining a thread running.
func (r *Result) JoinedFunctions(join ptg.PSNodeID) []ptg.PSNodeID {
	var fns []ptg.PSNodeID
	for _, fork := range r.JoinedForks(join) {
		if fn := r.ForkedFunction(fork); fn != 0 {
			fns = append(fns, fn)
		}
	}
	return fns
}
