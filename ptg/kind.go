// Package ptg implements the pointer-graph data model: PSNodes,
// PointerSubgraphs and the owning PointerGraph, plus the PointsToSet
// contract the solvers in package pta operate on.
package ptg

// Kind is the fixed set of PSNode kinds.
type Kind uint8

const (
	ALLOC Kind = iota
	GLOBAL
	LOAD
	STORE
	GEP
	PHI
	CAST
	CONSTANT
	FUNCTION
	CALL
	CALL_FUNCPTR
	CALL_RETURN
	RETURN
	ENTRY
	NOOP
	MEMCPY
	FREE
	INVALIDATE_LOCALS
	INVALIDATE_OBJECT
	FORK
	JOIN
)

var kindNames = [...]string{
	ALLOC: "ALLOC", GLOBAL: "GLOBAL", LOAD: "LOAD", STORE: "STORE",
	GEP: "GEP", PHI: "PHI", CAST: "CAST", CONSTANT: "CONSTANT",
	FUNCTION: "FUNCTION", CALL: "CALL", CALL_FUNCPTR: "CALL_FUNCPTR",
	CALL_RETURN: "CALL_RETURN", RETURN: "RETURN", ENTRY: "ENTRY",
	NOOP: "NOOP", MEMCPY: "MEMCPY", FREE: "FREE",
	INVALIDATE_LOCALS: "INVALIDATE_LOCALS", INVALIDATE_OBJECT: "INVALIDATE_OBJECT",
	FORK: "FORK", JOIN: "JOIN",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) && kindNames[k] != "" {
		return kindNames[k]
	}
	return "Kind(?)"
}

// mutatesMemory reports whether nodes of this kind can change the
// memory map and so must own (rather than alias) it during the
// flow-sensitive solve. It lists every such kind without regard to the
// variant; nothing calls it, and pta.needsMerge keeps its own table in
// which FREE and INVALIDATE_* count only under the Inv variant.
func (k Kind) mutatesMemory() bool {
	switch k {
	case STORE, MEMCPY, CALL_FUNCPTR, FREE, INVALIDATE_LOCALS, INVALIDATE_OBJECT:
		return true
	default:
		return false
	}
}
