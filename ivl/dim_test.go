package ivl

import (
	"testing"

	"github.com/mchalupa/dg-go/internal/container"
)

// checkInvariant is debugCheckInvariant exposed to the test file
// itself: adjacent keys never overlap or sit out of order.
func checkInvariant(t *testing.T, m *Map[string]) {
	t.Helper()
	entries := m.Entries()
	for i := 1; i < len(entries); i++ {
		a, b := entries[i-1].Interval, entries[i].Interval
		if endOrInf(a.End) >= int64(b.Start) {
			t.Fatalf("entries %d,%d not disjunctive: %v, %v", i-1, i, a, b)
		}
	}
}

func TestAddSplitsAndUnions(t *testing.T) {
	m := New[string]()
	if !m.Add(Interval{Start: 0, End: 9}, "a") {
		t.Fatal("expected change on first add")
	}
	if !m.Add(Interval{Start: 4, End: 14}, "b") {
		t.Fatal("expected change on overlapping add")
	}
	checkInvariant(t, m)

	got := m.Gather(Interval{Start: 0, End: 20})
	want := container.NewSet("a", "b")
	if len(got) != len(want) || !got.Has("a") || !got.Has("b") {
		t.Fatalf("Gather = %v, want %v", got, want)
	}

	// byte 3 only ever saw "a"
	only3 := m.Gather(Interval{Start: 3, End: 3})
	if len(only3) != 1 || !only3.Has("a") {
		t.Fatalf("Gather([3,3]) = %v, want {a}", only3)
	}
	// byte 12 only ever saw "b"
	only12 := m.Gather(Interval{Start: 12, End: 12})
	if len(only12) != 1 || !only12.Has("b") {
		t.Fatalf("Gather([12,12]) = %v, want {b}", only12)
	}
	// byte 6 saw both
	both6 := m.Gather(Interval{Start: 6, End: 6})
	if len(both6) != 2 {
		t.Fatalf("Gather([6,6]) = %v, want {a,b}", both6)
	}
}

func TestUpdateIsStrong(t *testing.T) {
	m := New[string]()
	m.Add(Interval{Start: 0, End: 7}, "a")
	if !m.Update(Interval{Start: 2, End: 5}, "b") {
		t.Fatal("expected change on update")
	}
	checkInvariant(t, m)

	// [2,5] must now hold only "b"; the remainders still hold "a".
	mid := m.Gather(Interval{Start: 2, End: 5})
	if len(mid) != 1 || !mid.Has("b") {
		t.Fatalf("Gather([2,5]) = %v, want {b}", mid)
	}
	left := m.Gather(Interval{Start: 0, End: 1})
	if len(left) != 1 || !left.Has("a") {
		t.Fatalf("Gather([0,1]) = %v, want {a}", left)
	}
	right := m.Gather(Interval{Start: 6, End: 7})
	if len(right) != 1 || !right.Has("a") {
		t.Fatalf("Gather([6,7]) = %v, want {a}", right)
	}
}

func TestAddAllUnionsExistingOnly(t *testing.T) {
	m := New[string]()
	m.Add(Interval{Start: 0, End: 3}, "a")
	m.AddAll("z")
	got := m.Gather(Interval{Start: 0, End: 3})
	if !got.Has("z") || !got.Has("a") {
		t.Fatalf("AddAll did not union into existing interval: %v", got)
	}
	// AddAll must not create a new interval for untouched ranges.
	none := m.Gather(Interval{Start: 10, End: 10})
	if len(none) != 0 {
		t.Fatalf("AddAll created a new interval: %v", none)
	}
}

func TestUncoveredOverlapsFullDuality(t *testing.T) {
	m := New[string]()
	m.Add(Interval{Start: 0, End: 3}, "a")
	m.Add(Interval{Start: 8, End: 11}, "b")

	cases := []Interval{
		{Start: 0, End: 3},
		{Start: 0, End: 11},
		{Start: 4, End: 7},
		{Start: 2, End: 9},
		{Start: 0, End: Unknown},
	}
	for _, iv := range cases {
		uncovered := m.Uncovered(iv)
		full := m.OverlapsFull(iv)
		if full != (len(uncovered) == 0) {
			t.Errorf("interval %v: OverlapsFull=%v but Uncovered=%v (duality violated)", iv, full, uncovered)
		}
	}
}

func TestUncoveredGaps(t *testing.T) {
	m := New[string]()
	m.Add(Interval{Start: 0, End: 3}, "a")
	m.Add(Interval{Start: 8, End: 11}, "b")

	got := m.Uncovered(Interval{Start: 0, End: 11})
	want := []Interval{{Start: 4, End: 7}}
	if len(got) != len(want) || got[0] != want[0] {
		t.Fatalf("Uncovered = %v, want %v", got, want)
	}
}

func TestUnknownLengthIsOpenEnded(t *testing.T) {
	iv := NewInterval(4, Unknown)
	if iv.Start != 4 || !iv.End.IsUnknown() {
		t.Fatalf("NewInterval(4, Unknown) = %v, want [4,?]", iv)
	}
	if !iv.Covers(Interval{Start: 1_000_000, End: 2_000_000}) {
		t.Fatal("an Unknown-length interval must cover any high offset (treated as [start, +inf))")
	}
}

func TestUnknownOffsetNormalizesToWhole(t *testing.T) {
	iv := NewInterval(Unknown, 4)
	if iv != Whole {
		t.Fatalf("NewInterval(Unknown, 4) = %v, want %v", iv, Whole)
	}
}

func TestOverlapAndDisjoint(t *testing.T) {
	a := Interval{Start: 0, End: 5}
	b := Interval{Start: 5, End: 10}
	c := Interval{Start: 6, End: 10}
	if !a.Overlaps(b) {
		t.Fatal("[0,5] and [5,10] share byte 5, must overlap")
	}
	if a.Overlaps(c) {
		t.Fatal("[0,5] and [6,10] share no byte, must not overlap")
	}
	if !a.Disjoint(c) {
		t.Fatal("Disjoint must be the negation of Overlaps")
	}
}

func TestIntersection(t *testing.T) {
	a := New[string]()
	a.Add(Interval{Start: 0, End: 9}, "x")
	b := New[string]()
	b.Add(Interval{Start: 5, End: 14}, "x")
	b.Add(Interval{Start: 5, End: 14}, "y")

	inter := a.Intersection(b)
	got := inter.Gather(Interval{Start: 0, End: 20})
	if len(got) != 1 || !got.Has("x") {
		t.Fatalf("Intersection = %v, want {x}", got)
	}
	// Only the overlapping byte range [5,9] should carry any value.
	outside := inter.Gather(Interval{Start: 10, End: 14})
	if len(outside) != 0 {
		t.Fatalf("Intersection leaked outside the overlap: %v", outside)
	}
}

func TestApplySequenceStaysDisjunctive(t *testing.T) {
	ops := []struct {
		iv     Interval
		v      int
		strong bool
	}{
		{Interval{0, 9}, 1, false},
		{Interval{3, 6}, 2, false},
		{Interval{5, 20}, 3, true},
		{Interval{0, 2}, 4, false},
		{Interval{Start: 15, End: Unknown}, 5, false},
	}
	mm := New[int]()
	for _, op := range ops {
		vs := container.NewSet(op.v)
		mm.apply(op.iv, vs, op.strong)
		checkInvariantInt(t, mm)
	}
}

func checkInvariantInt(t *testing.T, m *Map[int]) {
	t.Helper()
	entries := m.Entries()
	for i := 1; i < len(entries); i++ {
		a, b := entries[i-1].Interval, entries[i].Interval
		if endOrInf(a.End) >= int64(b.Start) {
			t.Fatalf("entries %d,%d not disjunctive: %v, %v", i-1, i, a, b)
		}
	}
}
