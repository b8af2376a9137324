package ivl

import (
	"golang.org/x/exp/slices"

	"github.com/mchalupa/dg-go/internal/container"
)

// entry is one key/value pair of a DisjunctiveIntervalMap.
type entry[V comparable] struct {
	iv     Interval
	values container.Set[V]
}

// Map is a disjunctive interval map: a mapping from
// pairwise-disjunctive, start-sorted intervals of Offset to sets of
// V. The zero value is an empty, ready-to-use map.
type Map[V comparable] struct {
	entries []entry[V]
}

// New returns an empty Map.
func New[V comparable]() *Map[V] {
	return &Map[V]{}
}

// debugCheckInvariant panics if the map's entries are not sorted and
// pairwise disjunctive. Nothing calls it; the tests carry their own
// copy of the same check.
func (m *Map[V]) debugCheckInvariant() {
	for i := 1; i < len(m.entries); i++ {
		a, b := m.entries[i-1].iv, m.entries[i].iv
		if endOrInf(a.End) >= int64(b.Start) {
			panic("DisjunctiveIntervalMap: adjacent entries overlap or are out of order")
		}
	}
}

// indexRange returns [lo, hi) indices into m.entries covering every
// entry that overlaps I.
func (m *Map[V]) indexRange(iv Interval) (lo, hi int) {
	lo, _ = slices.BinarySearchFunc(m.entries, int64(iv.Start), func(e entry[V], start int64) int {
		switch v := endOrInf(e.iv.End); {
		case v < start:
			return -1
		case v > start:
			return 1
		default:
			return 0
		}
	})
	hi = lo
	for hi < len(m.entries) && int64(m.entries[hi].iv.Start) <= endOrInf(iv.End) {
		hi++
	}
	return lo, hi
}

// apply performs the shared split-then-combine logic of add and
// update: it splits every entry overlapping iv at iv's boundaries,
// creates fresh entries for uncovered sub-ranges of iv, and unions vs
// into (or, when strong, replaces with vs) the value set of every
// resulting sub-interval fully inside iv.
// It reports whether anything changed.
func (m *Map[V]) apply(iv Interval, vs container.Set[V], strong bool) bool {
	if len(vs) == 0 && !strong {
		return false
	}
	lo, hi := m.indexRange(iv)
	changed := false

	var rebuilt []entry[V]
	rebuilt = append(rebuilt, m.entries[:lo]...)

	cursor := iv.Start // next uncovered byte within iv still to account for
	for i := lo; i < hi; i++ {
		e := m.entries[i]

		// Left remainder, outside iv: e.Start..iv.Start-1
		if e.iv.Start < iv.Start {
			left := Interval{Start: e.iv.Start, End: iv.Start - 1}
			rebuilt = append(rebuilt, entry[V]{iv: left, values: e.values.Clone()})
		}

		// Gap before this entry, inside iv, previously uncovered.
		if cursor < e.iv.Start {
			gap := Interval{Start: cursor, End: e.iv.Start - 1}
			rebuilt = append(rebuilt, entry[V]{iv: gap, values: vs.Clone()})
			changed = true
		}

		// Middle segment: overlap of e and iv.
		midStart := e.iv.Start
		if iv.Start > midStart {
			midStart = iv.Start
		}
		midEnd := e.iv.End
		if !iv.End.IsUnknown() && (e.iv.End.IsUnknown() || iv.End < e.iv.End) {
			midEnd = iv.End
		}
		mid := Interval{Start: midStart, End: midEnd}
		var newVals container.Set[V]
		if strong {
			newVals = vs.Clone()
			if !setsEqual(e.values, newVals) {
				changed = true
			}
		} else {
			newVals = e.values.Clone()
			if newVals.Union(vs) {
				changed = true
			}
		}
		rebuilt = append(rebuilt, entry[V]{iv: mid, values: newVals})

		// Right remainder, outside iv.
		if e.iv.End.IsUnknown() {
			if !iv.End.IsUnknown() {
				right := Interval{Start: iv.End + 1, End: Unknown}
				rebuilt = append(rebuilt, entry[V]{iv: right, values: e.values.Clone()})
			}
			cursor = Unknown // nothing more to fill; e extended to infinity
		} else {
			if !iv.End.IsUnknown() && e.iv.End > iv.End {
				right := Interval{Start: iv.End + 1, End: e.iv.End}
				rebuilt = append(rebuilt, entry[V]{iv: right, values: e.values.Clone()})
			}
			cursor = e.iv.End + 1
		}
		if cursor != Unknown && !iv.End.IsUnknown() && cursor > iv.End {
			cursor = Unknown
		}
	}

	// Trailing gap after the last overlapped entry, still inside iv.
	if cursor != Unknown && (iv.End.IsUnknown() || cursor <= iv.End) {
		gap := Interval{Start: cursor, End: iv.End}
		rebuilt = append(rebuilt, entry[V]{iv: gap, values: vs.Clone()})
		changed = true
	}

	rebuilt = append(rebuilt, m.entries[hi:]...)
	m.entries = rebuilt
	return changed
}

func setsEqual[V comparable](a, b container.Set[V]) bool {
	if len(a) != len(b) {
		return false
	}
	for v := range a {
		if !b.Has(v) {
			return false
		}
	}
	return true
}

// Add inserts v into every byte of iv, unioning with any existing
// value sets there and creating fresh entries for uncovered sub-ranges.
// Reports whether the map changed.
func (m *Map[V]) Add(iv Interval, v V) bool {
	return m.apply(iv, container.NewSet(v), false)
}

// AddSet is Add generalized to a whole set of values at once.
func (m *Map[V]) AddSet(iv Interval, vs container.Set[V]) bool {
	return m.apply(iv, vs, false)
}

// Update performs the same splitting as Add, but replaces (rather than
// unions) the value set of every overlapped sub-interval: a strong
// update.
func (m *Map[V]) Update(iv Interval, v V) bool {
	return m.apply(iv, container.NewSet(v), true)
}

// UpdateSet is Update generalized to a set of values.
func (m *Map[V]) UpdateSet(iv Interval, vs container.Set[V]) bool {
	return m.apply(iv, vs, true)
}

// AddAll unions v into every existing interval, without creating any
// new interval.
func (m *Map[V]) AddAll(v V) bool {
	changed := false
	for i := range m.entries {
		if m.entries[i].values.Add(v) {
			changed = true
		}
	}
	return changed
}

// Gather returns the union of the value sets of every interval
// overlapping iv.
func (m *Map[V]) Gather(iv Interval) container.Set[V] {
	out := container.Set[V]{}
	lo, hi := m.indexRange(iv)
	for i := lo; i < hi; i++ {
		out.Union(m.entries[i].values)
	}
	return out
}

// Uncovered returns the maximal sub-intervals of iv not covered by any
// key, in ascending order.
func (m *Map[V]) Uncovered(iv Interval) []Interval {
	lo, hi := m.indexRange(iv)
	var out []Interval
	cursor := iv.Start
	for i := lo; i < hi; i++ {
		e := m.entries[i]
		if cursor < e.iv.Start {
			end := e.iv.Start - 1
			if end >= cursor {
				out = append(out, Interval{Start: cursor, End: end})
			}
		}
		if e.iv.End.IsUnknown() {
			return out
		}
		if e.iv.End+1 > cursor {
			cursor = e.iv.End + 1
		}
	}
	if iv.End.IsUnknown() || cursor <= iv.End {
		out = append(out, Interval{Start: cursor, End: iv.End})
	}
	return out
}

// Overlaps reports whether any key intersects iv.
func (m *Map[V]) Overlaps(iv Interval) bool {
	lo, hi := m.indexRange(iv)
	return hi > lo
}

// OverlapsFull reports whether every byte of iv is covered by some
// key, equivalently that Uncovered(iv) is empty.
func (m *Map[V]) OverlapsFull(iv Interval) bool {
	return len(m.Uncovered(iv)) == 0
}

// Intersection returns a new Map holding, for every pair of overlapping
// intervals between m and other, the set-intersection of their values
// over the overlapping byte range.
func (m *Map[V]) Intersection(other *Map[V]) *Map[V] {
	out := New[V]()
	for _, a := range m.entries {
		lo, hi := other.indexRange(a.iv)
		for i := lo; i < hi; i++ {
			b := other.entries[i]
			start := a.iv.Start
			if b.iv.Start > start {
				start = b.iv.Start
			}
			end := a.iv.End
			if !b.iv.End.IsUnknown() && (a.iv.End.IsUnknown() || b.iv.End < a.iv.End) {
				end = b.iv.End
			}
			inter := container.Set[V]{}
			for v := range a.values {
				if b.values.Has(v) {
					inter.Add(v)
				}
			}
			if len(inter) > 0 {
				out.entries = append(out.entries, entry[V]{iv: Interval{Start: start, End: end}, values: inter})
			}
		}
	}
	slices.SortFunc(out.entries, func(a, b entry[V]) int {
		switch {
		case a.iv.Start < b.iv.Start:
			return -1
		case a.iv.Start > b.iv.Start:
			return 1
		default:
			return 0
		}
	})
	return out
}

// Entries returns the map's keys and value sets in ascending order, for
// iteration, debugging and tests.
func (m *Map[V]) Entries() []struct {
	Interval Interval
	Values   container.Set[V]
} {
	out := make([]struct {
		Interval Interval
		Values   container.Set[V]
	}, len(m.entries))
	for i, e := range m.entries {
		out[i].Interval = e.iv
		out[i].Values = e.values
	}
	return out
}
