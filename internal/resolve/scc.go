package resolve

// tarjan computes strongly connected components of a directed graph given
// as adjacency lists indexed 0..n-1. It returns each node's component id,
// with components numbered in reverse topological order (component 1 can
// depend on component 0, never the other way around), the order the
// resolver needs to bind mutually-recursive function groups outside-in.
func tarjan(adj [][]int) []int {
	n := len(adj)
	index := make([]int, n)
	low := make([]int, n)
	onStack := make([]bool, n)
	comp := make([]int, n)
	for i := range index {
		index[i] = -1
		comp[i] = -1
	}
	var stack []int
	next := 0
	nextComp := 0

	var strongconnect func(v int)
	strongconnect = func(v int) {
		index[v] = next
		low[v] = next
		next++
		stack = append(stack, v)
		onStack[v] = true

		for _, w := range adj[v] {
			if index[w] == -1 {
				strongconnect(w)
				if low[w] < low[v] {
					low[v] = low[w]
				}
			} else if onStack[w] {
				if index[w] < low[v] {
					low[v] = index[w]
				}
			}
		}

		if low[v] == index[v] {
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				comp[w] = nextComp
				if w == v {
					break
				}
			}
			nextComp++
		}
	}

	for v := 0; v < n; v++ {
		if index[v] == -1 {
			strongconnect(v)
		}
	}
	return comp
}

// componentDAG builds the condensation of adj: one edge comp[v]->comp[w]
// per distinct pair of different components. It keeps tarjan's numbering,
// under which higher ids depend on lower ones.
func componentDAG(adj [][]int, comp []int, numComp int) [][]int {
	edges := make(map[[2]int]bool)
	dag := make([][]int, numComp)
	for v, outs := range adj {
		for _, w := range outs {
			if comp[v] != comp[w] {
				key := [2]int{comp[v], comp[w]}
				if !edges[key] {
					edges[key] = true
					dag[comp[v]] = append(dag[comp[v]], comp[w])
				}
			}
		}
	}
	return dag
}
