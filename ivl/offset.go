// Package ivl implements the byte-offset arithmetic and the
// DisjunctiveIntervalMap ADT that the pointer, read-write and
// reaching-definitions analyses all key their per-object state on.
package ivl

import "fmt"

// Offset is a non-negative byte offset, or the distinguished Unknown
// value standing for "some offset we could not determine statically".
type Offset int64

// Unknown is the distinguished "could not determine" offset.
const Unknown Offset = -1

// IsUnknown reports whether o is the Unknown sentinel.
func (o Offset) IsUnknown() bool { return o < 0 }

func (o Offset) String() string {
	if o.IsUnknown() {
		return "?"
	}
	return fmt.Sprintf("%d", int64(o))
}

// Interval is an inclusive, discrete range [Start, End] of offsets.
// An End of Unknown denotes the open-ended range [Start, +∞): an
// interval of unknown length extends to infinity.
type Interval struct {
	Start Offset
	End   Offset
}

// Whole is the interval covering every byte of an object of unknown
// extent: [0, +∞).
var Whole = Interval{Start: 0, End: Unknown}

// NewInterval builds the interval denoted by a concrete-or-unknown
// offset and a concrete-or-unknown length: an unknown offset
// normalizes to [0, Unknown]; a concrete offset with an unknown
// length normalizes to [offset, Unknown].
func NewInterval(offset, length Offset) Interval {
	if offset.IsUnknown() {
		return Interval{Start: 0, End: Unknown}
	}
	if length.IsUnknown() {
		return Interval{Start: offset, End: Unknown}
	}
	if length <= 0 {
		return Interval{Start: offset, End: offset}
	}
	return Interval{Start: offset, End: offset + length - 1}
}

// Len returns End-Start+1, or Unknown if the interval is open-ended.
func (iv Interval) Len() Offset {
	if iv.End.IsUnknown() {
		return Unknown
	}
	return iv.End - iv.Start + 1
}

// endOrInf returns End, treating Unknown as +∞ for comparisons.
func endOrInf(o Offset) int64 {
	if o.IsUnknown() {
		return int64(^uint64(0) >> 1) // max int64, stands for +∞
	}
	return int64(o)
}

// Overlaps reports whether iv and other share at least one byte.
func (iv Interval) Overlaps(other Interval) bool {
	return int64(iv.Start) <= endOrInf(other.End) && endOrInf(iv.End) >= int64(other.Start)
}

// Disjoint is the negation of Overlaps.
func (iv Interval) Disjoint(other Interval) bool {
	return !iv.Overlaps(other)
}

// Covers reports whether iv contains every byte of other.
func (iv Interval) Covers(other Interval) bool {
	return iv.Start <= other.Start && endOrInf(iv.End) >= endOrInf(other.End)
}

func (iv Interval) String() string {
	return fmt.Sprintf("[%s,%s]", iv.Start, iv.End)
}
