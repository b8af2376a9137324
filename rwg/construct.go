package rwg

import (
	"github.com/mchalupa/dg-go/ivl"
	"github.com/mchalupa/dg-go/ptg"
)

// pureIntrinsics is the fixed table of external functions known not to
// read or write any memory the analysis tracks.
var pureIntrinsics = map[string]bool{
	"strlen": true, "abs": true, "sqrt": true,
}

// IsPureIntrinsic reports whether name is in the fixed pure/memory-safe
// intrinsic table.
func IsPureIntrinsic(name string) bool { return pureIntrinsics[name] }

// BuildLoad computes the UseSites of a `load p` instruction: one
// UseSite per pointer in ptsTo(p), each of width size.
func BuildLoad(ptsToP ptg.PointsToSet, size ivl.Offset, toRW func(ptg.PSNodeID) RWNodeID) []UseSite {
	var uses []UseSite
	for _, p := range ptsToP.Slice() {
		uses = append(uses, UseSite{Target: toRW(p.Target), Offset: p.Offset, Len: size})
	}
	return uses
}

// BuildStore computes the DefSites of a `store v, p` instruction: one
// DefSite per pointer in ptsTo(p). strongTarget, if present (from the
// pointer analysis's strong-update discipline), marks that single
// def-site a must-def for rda's transfer function.
func BuildStore(ptsToP ptg.PointsToSet, size ivl.Offset, strongTarget *ptg.Pointer, toRW func(ptg.PSNodeID) RWNodeID) []DefSite {
	var defs []DefSite
	for _, p := range ptsToP.Slice() {
		must := strongTarget != nil && *strongTarget == p
		defs = append(defs, DefSite{Target: toRW(p.Target), Offset: p.Offset, Len: size, MustDef: must})
	}
	return defs
}

// BuildMemcpy computes the DefSites/UseSites of a `memcpy dst, src, n`
// instruction: a DefSite per dest pointer and a UseSite per src
// pointer over [offset, offset+n); an unknown n widens length to
// Unknown.
func BuildMemcpy(ptsToDst, ptsToSrc ptg.PointsToSet, n ivl.Offset, toRW func(ptg.PSNodeID) RWNodeID) ([]DefSite, []UseSite) {
	var defs []DefSite
	for _, p := range ptsToDst.Slice() {
		defs = append(defs, DefSite{Target: toRW(p.Target), Offset: p.Offset, Len: n})
	}
	var uses []UseSite
	for _, p := range ptsToSrc.Slice() {
		uses = append(uses, UseSite{Target: toRW(p.Target), Offset: p.Offset, Len: n})
	}
	return defs, uses
}

// BuildExternalCall computes the conservative def/use pair for a call
// to an external function with no summary: a single DefSite and
// UseSite on the UNKNOWN_MEMORY object, unless name is a known pure
// intrinsic.
func BuildExternalCall(name string, unknownMemory RWNodeID) ([]DefSite, []UseSite) {
	if IsPureIntrinsic(name) {
		return nil, nil
	}
	return []DefSite{{Target: unknownMemory, Offset: 0, Len: ivl.Unknown}},
		[]UseSite{{Target: unknownMemory, Offset: 0, Len: ivl.Unknown}}
}

// BuildFree computes the DefSites of a `free p` instruction: one
// DefSite per pointer in ptsTo(p), covering the whole object.
func BuildFree(ptsToP ptg.PointsToSet, toRW func(ptg.PSNodeID) RWNodeID) []DefSite {
	var defs []DefSite
	for _, p := range ptsToP.Slice() {
		defs = append(defs, DefSite{Target: toRW(p.Target), Offset: 0, Len: ivl.Unknown})
	}
	return defs
}
