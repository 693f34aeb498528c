package toposort_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/gitport/pkg/toposort"
)

// edge represents a directed edge from one node to another.
type edge struct {
	from int
	to   int
}

func buildGraph(edges []edge) *toposort.Graph {
	graph := toposort.NewGraph()
	for _, e := range edges {
		graph.AddEdge(e.from, e.to)
	}

	return graph
}

func indexOf(order []int, id int) int {
	for idx, v := range order {
		if v == id {
			return idx
		}
	}

	return -1
}

func TestDuplicatedNode(t *testing.T) {
	t.Parallel()

	graph := toposort.NewGraph()
	require.True(t, graph.AddNode(1))
	assert.False(t, graph.AddNode(1))
	assert.Equal(t, 1, graph.Len())
}

func TestSortRespectsEdges(t *testing.T) {
	t.Parallel()

	edges := []edge{
		{7, 8}, {7, 11}, {5, 11}, {3, 8}, {3, 10},
		{11, 2}, {11, 9}, {11, 10}, {8, 9},
	}
	graph := buildGraph(edges)

	order, ok := graph.Sort()
	require.True(t, ok)
	require.Len(t, order, 8)

	for _, e := range edges {
		assert.Less(t, indexOf(order, e.from), indexOf(order, e.to),
			"edge %d->%d out of order", e.from, e.to)
	}
}

func TestSortIsDeterministic(t *testing.T) {
	t.Parallel()

	edges := []edge{{1, 4}, {1, 3}, {2, 4}, {3, 5}, {2, 5}}

	first, ok := buildGraph(edges).Sort()
	require.True(t, ok)

	for range 10 {
		again, againOK := buildGraph(edges).Sort()
		require.True(t, againOK)
		assert.Equal(t, first, again)
	}
}

func TestSortDetectsCycle(t *testing.T) {
	t.Parallel()

	graph := buildGraph([]edge{{1, 2}, {2, 3}, {3, 1}})

	_, ok := graph.Sort()
	assert.False(t, ok)
}

func TestFindCycle(t *testing.T) {
	t.Parallel()

	graph := buildGraph([]edge{{0, 1}, {1, 2}, {2, 1}, {2, 3}})

	cycle := graph.FindCycle()
	assert.ElementsMatch(t, []int{1, 2}, cycle)
}

func TestFindCycleAcyclic(t *testing.T) {
	t.Parallel()

	graph := buildGraph([]edge{{1, 2}, {2, 3}})
	assert.Nil(t, graph.FindCycle())
}

func TestSerialize(t *testing.T) {
	t.Parallel()

	graph := buildGraph([]edge{{1, 2}})

	dot := graph.Serialize(nil)
	assert.Contains(t, dot, `"1" -> "2"`)
	assert.Contains(t, dot, "digraph Gitport")
}
