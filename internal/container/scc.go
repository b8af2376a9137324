package container

// Graph is the minimal adjacency view Tarjan needs. Nodes are
// identified by dense small integers, as every owning graph in this
// module (PTG, RWG, SDG, call graph) already allocates its elements
// that way.
type Graph interface {
	NumNodes() int
	Succs(id int) []int
}

// SCC is one strongly-connected component: the member node ids and
// whether the component is "on a loop" (size > 1, or size 1 with a
// self-loop).
type SCC struct {
	Nodes  []int
	OnLoop bool
}

// Tarjan computes the strongly-connected components of g in reverse
// topological order, iteratively with an explicit stack so deep
// graphs cannot overflow the goroutine stack.
func Tarjan(g Graph) []SCC {
	n := g.NumNodes()
	index := make([]int, n)
	lowlink := make([]int, n)
	onStack := make([]bool, n)
	for i := range index {
		index[i] = -1
	}
	var stack []int
	var sccs []SCC
	nextIndex := 0

	type frame struct {
		v       int
		succIdx int
	}

	var strongconnect func(v int)
	strongconnect = func(v int) {
		var work []frame
		work = append(work, frame{v: v})
		index[v] = nextIndex
		lowlink[v] = nextIndex
		nextIndex++
		stack = append(stack, v)
		onStack[v] = true

		for len(work) > 0 {
			top := &work[len(work)-1]
			succs := g.Succs(top.v)
			if top.succIdx < len(succs) {
				w := succs[top.succIdx]
				top.succIdx++
				if index[w] == -1 {
					index[w] = nextIndex
					lowlink[w] = nextIndex
					nextIndex++
					stack = append(stack, w)
					onStack[w] = true
					work = append(work, frame{v: w})
				} else if onStack[w] {
					if index[w] < lowlink[top.v] {
						lowlink[top.v] = index[w]
					}
				}
				continue
			}

			// Done exploring top.v's successors.
			v := top.v
			work = work[:len(work)-1]
			if len(work) > 0 {
				parent := &work[len(work)-1]
				if lowlink[v] < lowlink[parent.v] {
					lowlink[parent.v] = lowlink[v]
				}
			}
			if lowlink[v] == index[v] {
				var comp []int
				for {
					w := stack[len(stack)-1]
					stack = stack[:len(stack)-1]
					onStack[w] = false
					comp = append(comp, w)
					if w == v {
						break
					}
				}
				sccs = append(sccs, SCC{Nodes: comp, OnLoop: isOnLoop(g, comp)})
			}
		}
	}

	for v := 0; v < n; v++ {
		if index[v] == -1 {
			strongconnect(v)
		}
	}
	return sccs
}

func isOnLoop(g Graph, comp []int) bool {
	if len(comp) > 1 {
		return true
	}
	v := comp[0]
	for _, w := range g.Succs(v) {
		if w == v {
			return true
		}
	}
	return false
}
