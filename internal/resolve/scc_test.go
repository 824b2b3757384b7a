package resolve

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTarjan_SingleCycle(t *testing.T) {
	// 0 -> 1 -> 2 -> 0, all mutually recursive.
	adj := [][]int{
		{1},
		{2},
		{0},
	}
	comp := tarjan(adj)
	assert.Equal(t, comp[0], comp[1])
	assert.Equal(t, comp[1], comp[2])
}

func TestTarjan_NoSharedComponentAcrossDisjointChain(t *testing.T) {
	// 0 -> 1, 1 -> 2, no back edges: three singleton components.
	adj := [][]int{
		{1},
		{2},
		{},
	}
	comp := tarjan(adj)
	assert.NotEqual(t, comp[0], comp[1])
	assert.NotEqual(t, comp[1], comp[2])
}

func TestComponentDAG_CollapsesIntraComponentEdges(t *testing.T) {
	adj := [][]int{
		{1}, {0}, {0},
	}
	comp := []int{0, 0, 1}
	dag := componentDAG(adj, comp, 2)
	// node 2 (component 1) points to node 0 (component 0); the
	// intra-component edge 0<->1 must not appear in the DAG.
	assert.Equal(t, [][]int{nil, {0}}, dag)
}

func TestStratify_LongestPathLevels(t *testing.T) {
	// DAG: 0 -> 1 -> 2, and 0 -> 2 directly. Level(2) must exceed
	// Level(1) which must exceed Level(0), driven by the longest path.
	dag := [][]int{
		{1, 2},
		{2},
		{},
	}
	level := stratify(dag)
	assert.Less(t, level[0], level[1])
	assert.Less(t, level[1], level[2])
}
