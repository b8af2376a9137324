package ptg

import (
	"fmt"

	"golang.org/x/tools/container/intsets"
)

// Pointer is a (target, offset) pair: an abstract memory object and a
// byte offset into it.
type Pointer struct {
	Target PSNodeID
	Offset Offset
}

func (p Pointer) String() string {
	if p.Offset.IsUnknown() {
		return fmt.Sprintf("n%d+?", p.Target)
	}
	return fmt.Sprintf("n%d+%d", p.Target, p.Offset)
}

// PointsToSet is the contract every set implementation must satisfy.
// Implementations may trade space for time; they must agree on
// observable behavior.
type PointsToSet interface {
	Add(p Pointer) bool
	Remove(p Pointer) bool
	RemoveAny(target PSNodeID) bool
	PointsTo(p Pointer) bool
	MayPointTo(p Pointer) bool
	PointsToTarget(target PSNodeID) bool
	IsSingleton() bool
	HasUnknown() bool
	HasNull() bool
	HasInvalidated() bool
	Len() int
	Slice() []Pointer
	Clone() PointsToSet
	// Union merges other into the receiver, reporting whether it changed.
	Union(other PointsToSet) bool
}

// alignWidth bounds the range of offsets packed densely into the
// bitvector; pointers with a larger or unknown offset fall back to the
// overflow set.
const alignWidth = 1 << 16

// bitsetPTS is the default PointsToSet: a sparse bitvector of packed
// (target, offset) ids plus an overflow set for offsets of alignWidth
// or more and for unknown offsets.
type bitsetPTS struct {
	bits     intsets.Sparse
	overflow map[Pointer]struct{}
}

// NewPointsToSet returns the default, empty PointsToSet implementation.
func NewPointsToSet() PointsToSet {
	return &bitsetPTS{}
}

func pack(p Pointer) (key int, ok bool) {
	if p.Offset.IsUnknown() || p.Offset < 0 || p.Offset >= alignWidth {
		return 0, false
	}
	return int(p.Target)*alignWidth + int(p.Offset), true
}

func (s *bitsetPTS) Add(p Pointer) bool {
	if key, ok := pack(p); ok {
		return s.bits.Insert(key)
	}
	if s.overflow == nil {
		s.overflow = make(map[Pointer]struct{})
	}
	if _, ok := s.overflow[p]; ok {
		return false
	}
	s.overflow[p] = struct{}{}
	return true
}

func (s *bitsetPTS) Remove(p Pointer) bool {
	if key, ok := pack(p); ok {
		return s.bits.Remove(key)
	}
	if _, ok := s.overflow[p]; ok {
		delete(s.overflow, p)
		return true
	}
	return false
}

func (s *bitsetPTS) RemoveAny(target PSNodeID) bool {
	changed := false
	for off := Offset(0); off < alignWidth; off++ {
		if s.Remove(Pointer{Target: target, Offset: off}) {
			changed = true
		}
	}
	for p := range s.overflow {
		if p.Target == target {
			delete(s.overflow, p)
			changed = true
		}
	}
	return changed
}

func (s *bitsetPTS) PointsTo(p Pointer) bool {
	if key, ok := pack(p); ok {
		return s.bits.Has(key)
	}
	_, ok := s.overflow[p]
	return ok
}

func (s *bitsetPTS) MayPointTo(p Pointer) bool {
	return s.PointsTo(p) || s.PointsTo(Pointer{Target: p.Target, Offset: Unknown})
}

func (s *bitsetPTS) PointsToTarget(target PSNodeID) bool {
	lo := int(target) * alignWidth
	hi := lo + alignWidth
	var it intsets.Sparse
	it.Copy(&s.bits)
	for x := it.LowerBound(lo); x < hi && x != intsets.MaxInt; x = it.LowerBound(x + 1) {
		return true
	}
	for p := range s.overflow {
		if p.Target == target {
			return true
		}
	}
	return false
}

func (s *bitsetPTS) IsSingleton() bool {
	return s.Len() == 1
}

func (s *bitsetPTS) HasUnknown() bool { return s.PointsToTarget(UnknownMemory) }
func (s *bitsetPTS) HasNull() bool    { return s.PointsToTarget(NullPtr) }
func (s *bitsetPTS) HasInvalidated() bool {
	return s.PointsToTarget(Invalidated)
}

func (s *bitsetPTS) Len() int {
	return s.bits.Len() + len(s.overflow)
}

func (s *bitsetPTS) Slice() []Pointer {
	out := make([]Pointer, 0, s.Len())
	var it intsets.Sparse
	it.Copy(&s.bits)
	for x := it.Min(); x != intsets.MaxInt; {
		out = append(out, Pointer{Target: PSNodeID(x / alignWidth), Offset: Offset(x % alignWidth)})
		next := it.LowerBound(x + 1)
		if next == x {
			break
		}
		x = next
	}
	for p := range s.overflow {
		out = append(out, p)
	}
	return out
}

func (s *bitsetPTS) Clone() PointsToSet {
	out := &bitsetPTS{}
	out.bits.Copy(&s.bits)
	if len(s.overflow) > 0 {
		out.overflow = make(map[Pointer]struct{}, len(s.overflow))
		for p := range s.overflow {
			out.overflow[p] = struct{}{}
		}
	}
	return out
}

func (s *bitsetPTS) Union(other PointsToSet) bool {
	o, ok := other.(*bitsetPTS)
	if !ok {
		changed := false
		for _, p := range other.Slice() {
			if s.Add(p) {
				changed = true
			}
		}
		return changed
	}
	changed := s.bits.UnionWith(&o.bits)
	for p := range o.overflow {
		if s.overflow == nil {
			s.overflow = make(map[Pointer]struct{})
		}
		if _, ok := s.overflow[p]; !ok {
			s.overflow[p] = struct{}{}
			changed = true
		}
	}
	return changed
}
