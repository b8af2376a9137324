// Package callgraph implements a generic directed call graph over
// opaque values, populated incrementally as the pointer analysis
// resolves function-pointer targets, with SCC ids recomputed on
// demand as new edges close cycles.
package callgraph

import "github.com/mchalupa/dg-go/internal/container"

// Graph is a directed call graph over opaque, comparable values V. It
// has no edges implied by any other graph; callers populate it
// explicitly.
type Graph[V comparable] struct {
	index   map[V]int
	values  []V
	calls   map[int]container.Set[int] // caller index -> callee indices
	sccID   []int
	sccDone bool
}

// New returns an empty call graph.
func New[V comparable]() *Graph[V] {
	return &Graph[V]{index: make(map[V]int), calls: make(map[int]container.Set[int])}
}

func (g *Graph[V]) idOf(v V) int {
	if i, ok := g.index[v]; ok {
		return i
	}
	i := len(g.values)
	g.index[v] = i
	g.values = append(g.values, v)
	g.calls[i] = container.Set[int]{}
	g.sccDone = false
	return i
}

// Get registers v (if new) and returns its dense id, creating it if
// this is its first appearance in the graph.
func (g *Graph[V]) Get(v V) int {
	return g.idOf(v)
}

// AddCall records a call edge a -> b, registering both endpoints if
// new. Reports whether the edge is new.
func (g *Graph[V]) AddCall(a, b V) bool {
	ai, bi := g.idOf(a), g.idOf(b)
	if g.calls[ai].Has(bi) {
		return false
	}
	g.calls[ai].Add(bi)
	g.sccDone = false
	return true
}

// Callees returns the values v directly calls.
func (g *Graph[V]) Callees(v V) []V {
	ai, ok := g.index[v]
	if !ok {
		return nil
	}
	out := make([]V, 0, len(g.calls[ai]))
	for bi := range g.calls[ai] {
		out = append(out, g.values[bi])
	}
	return out
}

// NumNodes and Succs implement container.Graph for Tarjan SCC.
func (g *Graph[V]) NumNodes() int { return len(g.values) }
func (g *Graph[V]) Succs(id int) []int {
	return g.calls[id].Slice()
}

func (g *Graph[V]) recomputeSCCs() {
	if g.sccDone {
		return
	}
	sccs := container.Tarjan(g)
	g.sccID = make([]int, len(g.values))
	for sccIdx, scc := range sccs {
		for _, n := range scc.Nodes {
			g.sccID[n] = sccIdx
		}
	}
	g.sccDone = true
}

// SCCID returns the id of the strongly-connected component v belongs
// to, recomputing SCCs if the graph has changed since the last call.
func (g *Graph[V]) SCCID(v V) int {
	g.recomputeSCCs()
	return g.sccID[g.index[v]]
}

// OnLoop reports whether v's SCC has more than one member or a
// self-loop, i.e. whether calls through v may recur.
func (g *Graph[V]) OnLoop(v V) bool {
	g.recomputeSCCs()
	id := g.sccID[g.index[v]]
	count := 0
	for _, other := range g.sccID {
		if other == id {
			count++
			if count > 1 {
				return true
			}
		}
	}
	ai := g.index[v]
	return g.calls[ai].Has(ai)
}
