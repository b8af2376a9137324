package pta

import (
	"github.com/mchalupa/dg-go/internal/container"
	"github.com/mchalupa/dg-go/ivl"
	"github.com/mchalupa/dg-go/ptg"
)

// isSingletonKnownInstance implements the strong-update eligibility
// test: ptsTo(x) must be a singleton
// (t,o) with concrete o, t not one of the three special targets, and t
// not allocated inside a loop.
func isSingletonKnownInstance(g *ptg.PointerGraph, pts ptg.PointsToSet) (ptg.Pointer, bool) {
	if !pts.IsSingleton() {
		return ptg.Pointer{}, false
	}
	p := pts.Slice()[0]
	if p.Offset.IsUnknown() {
		return ptg.Pointer{}, false
	}
	if p.Target == ptg.UnknownMemory || p.Target == ptg.NullPtr || p.Target == ptg.Invalidated {
		return ptg.Pointer{}, false
	}
	if sg := g.SubgraphOf(p.Target); sg != nil && sg.OnLoop(p.Target) {
		return ptg.Pointer{}, false
	}
	return p, true
}

func allocSize(n *ptg.PSNode) ivl.Offset {
	switch d := n.Data.(type) {
	case ptg.AllocData:
		return d.Size
	case ptg.GlobalData:
		return d.Size
	default:
		return ivl.Unknown
	}
}

// process runs id's kind-specific semantic effect, then enqueues
// successors if anything changed.
func (s *solver) process(id ptg.PSNodeID) {
	n := s.g.Node(id)
	if n == nil {
		return
	}
	mem := s.memOf(id)
	changed := false

	operand := func(i int) ptg.PointsToSet {
		if i >= len(n.Operands) {
			return ptg.NewPointsToSet()
		}
		opn := s.g.Node(n.Operands[i])
		if opn == nil {
			return ptg.NewPointsToSet()
		}
		return opn.PointsTo
	}

	switch n.Kind {
	case ptg.ALLOC, ptg.GLOBAL, ptg.FUNCTION:
		if n.PointsTo.Len() == 0 {
			changed = n.PointsTo.Add(ptg.Pointer{Target: id, Offset: 0})
		}

	case ptg.CONSTANT:
		d := n.Data.(ptg.ConstantData)
		changed = n.PointsTo.Add(ptg.Pointer{Target: d.Target, Offset: d.Offset})

	case ptg.CAST:
		changed = n.PointsTo.Union(operand(0).Clone())

	case ptg.PHI:
		for i := range n.Operands {
			if n.PointsTo.Union(operand(i).Clone()) {
				changed = true
			}
		}

	case ptg.GEP:
		d := n.Data.(ptg.GEPData)
		fresh := ptg.NewPointsToSet()
		for _, p := range operand(0).Slice() {
			off := d.FieldOffset
			if !p.Offset.IsUnknown() && !off.IsUnknown() {
				off = p.Offset + off
				if size := allocSize(s.g.Node(p.Target)); !size.IsUnknown() && off >= size {
					off = ivl.Unknown
				}
			} else {
				off = ivl.Unknown
			}
			fresh.Add(ptg.Pointer{Target: p.Target, Offset: off})
		}
		changed = n.PointsTo.Union(fresh)

	case ptg.LOAD:
		sz := ivl.Unknown
		if d, ok := n.Data.(ptg.LoadData); ok {
			sz = d.Size
		}
		fresh := ptg.NewPointsToSet()
		for _, p := range operand(0).Slice() {
			dim, ok := mem[p.Target]
			if !ok {
				fresh.Add(ptg.Pointer{Target: ptg.UnknownMemory, Offset: 0})
				continue
			}
			iv := ivl.NewInterval(p.Offset, sz)
			if !dim.OverlapsFull(iv) {
				fresh.Add(ptg.Pointer{Target: ptg.UnknownMemory, Offset: 0})
			}
			for v := range dim.Gather(iv) {
				fresh.Add(v)
			}
		}
		changed = n.PointsTo.Union(fresh)

	case ptg.STORE:
		sz := ivl.Unknown
		if d, ok := n.Data.(ptg.StoreData); ok {
			sz = d.Size
		}
		destPts, srcPts := operand(0), operand(1)
		srcSet := container.Set[ptg.Pointer]{}
		for _, p := range srcPts.Slice() {
			srcSet.Add(p)
		}
		// The FI variant shares one global memory map and never performs
		// a strong update, even at a singleton known-instance destination;
		// only FS and FSInv consult isSingletonKnownInstance.
		if strongTarget, ok := isSingletonKnownInstance(s.g, destPts); ok && s.variant != FI {
			dim := mem.getOrCreate(strongTarget.Target)
			iv := ivl.NewInterval(strongTarget.Offset, sz)
			if dim.UpdateSet(iv, srcSet) {
				changed = true
			}
		} else {
			for _, p := range destPts.Slice() {
				dim := mem.getOrCreate(p.Target)
				iv := ivl.NewInterval(p.Offset, sz)
				if dim.AddSet(iv, srcSet) {
					changed = true
				}
			}
		}

	case ptg.MEMCPY:
		d := n.Data.(ptg.MemcpyData)
		dstPts, srcPts := operand(0), operand(1)
		for _, dp := range dstPts.Slice() {
			ddim := mem.getOrCreate(dp.Target)
			for _, sp := range srcPts.Slice() {
				sdim, ok := mem[sp.Target]
				srcIv := ivl.NewInterval(sp.Offset, d.Len)
				shift := ivl.Unknown
				if !dp.Offset.IsUnknown() && !sp.Offset.IsUnknown() {
					shift = dp.Offset - sp.Offset
				}
				if !ok {
					// Zero-initialized source: uncovered bytes yield NULL.
					destIv := ivl.NewInterval(dp.Offset, d.Len)
					if ddim.AddSet(destIv, container.NewSet(ptg.Pointer{Target: ptg.NullPtr, Offset: 0})) {
						changed = true
					}
					continue
				}
				for _, e := range sdim.Entries() {
					clipped, ok := clip(e.Interval, srcIv)
					if !ok {
						continue
					}
					var destIv ivl.Interval
					if shift.IsUnknown() || clipped.Start.IsUnknown() {
						destIv = ivl.Whole
					} else {
						end := clipped.End
						if !end.IsUnknown() {
							end += shift
						}
						destIv = ivl.Interval{Start: clipped.Start + shift, End: end}
					}
					if ddim.AddSet(destIv, e.Values) {
						changed = true
					}
				}
				for _, gap := range sdim.Uncovered(srcIv) {
					destIv := ivl.Whole
					if !shift.IsUnknown() && !gap.Start.IsUnknown() {
						end := gap.End
						if !end.IsUnknown() {
							end += shift
						}
						destIv = ivl.Interval{Start: gap.Start + shift, End: end}
					}
					if ddim.AddSet(destIv, container.NewSet(ptg.Pointer{Target: ptg.NullPtr, Offset: 0})) {
						changed = true
					}
				}
			}
		}

	case ptg.FREE, ptg.INVALIDATE_OBJECT:
		// Invalidation is only modeled under the Inv variant; under plain
		// FI/FS a FREE node does not own its memory map, so a mutation
		// here would write through a map some other node only aliases.
		if s.variant != FSInv {
			break
		}
		freed := map[ptg.PSNodeID]bool{}
		for _, p := range operand(0).Slice() {
			if p.Target == ptg.NullPtr || p.Target == ptg.UnknownMemory || p.Target == ptg.Invalidated {
				continue
			}
			freed[p.Target] = true
		}
		if len(freed) == 0 {
			break
		}
		// Strong (replacing) invalidation only for a singleton
		// known-instance pointer to valid memory; otherwise INVALIDATED
		// is unioned in alongside the possibly-dangling pointer.
		strong := false
		if p, ok := isSingletonKnownInstance(s.g, operand(0)); ok && freed[p.Target] {
			strong = true
		}
		if invalidateTargets(mem, func(v ptg.Pointer) bool { return freed[v.Target] }, strong) {
			changed = true
		}

	case ptg.INVALIDATE_LOCALS:
		if s.variant != FSInv {
			break
		}
		sg := s.g.SubgraphOf(id)
		if sg == nil {
			break
		}
		locals := map[ptg.PSNodeID]bool{}
		for _, member := range sg.Members() {
			if mn := s.g.Node(member); mn != nil && mn.Kind == ptg.ALLOC {
				locals[member] = true
			}
		}
		if len(locals) == 0 {
			break
		}
		if invalidateTargets(mem, func(v ptg.Pointer) bool { return locals[v.Target] }, true) {
			changed = true
		}

	case ptg.CALL_FUNCPTR:
		for _, p := range operand(0).Slice() {
			fn := s.g.Node(p.Target)
			if fn == nil || fn.Kind != ptg.FUNCTION {
				continue
			}
			if s.g.CallGraph.AddCall(id, p.Target) {
				changed = true
			}
		}

	case ptg.CALL_RETURN:
		for _, callee := range s.g.CallGraph.Callees(n.Pair) {
			sg := s.g.SubgraphOf(callee)
			if sg == nil {
				continue
			}
			for _, ret := range sg.Returns {
				retNode := s.g.Node(ret)
				if retNode != nil && n.PointsTo.Union(retNode.PointsTo.Clone()) {
					changed = true
				}
			}
		}

	case ptg.RETURN:
		if n.PointsTo.Union(operand(0).Clone()) {
			changed = true
		}

	case ptg.ENTRY, ptg.NOOP, ptg.CALL, ptg.FORK, ptg.JOIN:
		// No points-to effect of their own. FORK/JOIN carry their
		// handle/function operands only for the post-solve matching
		// query in forkjoin.go -- the fixpoint itself treats them as
		// pure CFG shape, the same way a plain CALL is.
	}

	if changed {
		s.enqueueSuccessors(n)
		// FI keeps one memory map for the whole program, so a write here
		// is visible to every LOAD and MEMCPY regardless of CFG order.
		if s.variant == FI && (n.Kind == ptg.STORE || n.Kind == ptg.MEMCPY) {
			for _, sg := range s.g.Subgraphs() {
				for _, m := range sg.Members() {
					if mn := s.g.Node(m); mn != nil && (mn.Kind == ptg.LOAD || mn.Kind == ptg.MEMCPY) {
						s.enqueue(m)
					}
				}
			}
		}
	}
}

// invalidateTargets rewrites stored pointer values across the whole
// memory state: in every object's every byte range, a pointer whose
// target satisfies doomed is replaced by INVALIDATED (strong) or kept
// with INVALIDATED unioned in alongside it (weak). This is how a
// dangling pointer stored in some other object comes to point at
// INVALIDATED after the object it referenced is freed. Entries hands
// out the live value sets, so the rewrite mutates them in place.
func invalidateTargets(mem memState, doomed func(ptg.Pointer) bool, strong bool) bool {
	inv := ptg.Pointer{Target: ptg.Invalidated, Offset: 0}
	changed := false
	for _, dim := range mem {
		for _, e := range dim.Entries() {
			var stale []ptg.Pointer
			for v := range e.Values {
				if v != inv && doomed(v) {
					stale = append(stale, v)
				}
			}
			if len(stale) == 0 {
				continue
			}
			if strong {
				for _, v := range stale {
					e.Values.Remove(v)
				}
				changed = true
			}
			if e.Values.Add(inv) {
				changed = true
			}
		}
	}
	return changed
}

// clip intersects a and b, reporting false if they do not overlap.
func clip(a, b ivl.Interval) (ivl.Interval, bool) {
	if a.Disjoint(b) {
		return ivl.Interval{}, false
	}
	start := a.Start
	if b.Start > start {
		start = b.Start
	}
	end := a.End
	if !b.End.IsUnknown() && (a.End.IsUnknown() || b.End < a.End) {
		end = b.End
	}
	return ivl.Interval{Start: start, End: end}, true
}
