// Package toposort provides deterministic topological ordering and cycle
// detection for graphs keyed by integer node ids.
//
// Ordering uses Kahn's algorithm with a sorted frontier, so two graphs
// built from the same edges always sort into the same sequence. Cycle
// detection is a separate DFS so callers can report the offending nodes
// before attempting a sort.
package toposort

import (
	"bytes"
	"fmt"
	"sort"
)

// Graph is a directed graph over integer node ids.
type Graph struct {
	nodes    map[int]struct{}
	edges    map[int][]int
	inDegree map[int]int
}

// NewGraph initializes an empty Graph.
func NewGraph() *Graph {
	return &Graph{
		nodes:    make(map[int]struct{}),
		edges:    make(map[int][]int),
		inDegree: make(map[int]int),
	}
}

// AddNode inserts a node. Returns false if the node already exists.
func (g *Graph) AddNode(id int) bool {
	_, exists := g.nodes[id]
	if exists {
		return false
	}

	g.nodes[id] = struct{}{}

	return true
}

// HasNode reports whether the node exists in the graph.
func (g *Graph) HasNode(id int) bool {
	_, exists := g.nodes[id]

	return exists
}

// AddEdge inserts the link from -> to, adding missing nodes.
// Duplicate edges are ignored.
func (g *Graph) AddEdge(from, to int) {
	g.AddNode(from)
	g.AddNode(to)

	for _, v := range g.edges[from] {
		if v == to {
			return
		}
	}

	g.edges[from] = append(g.edges[from], to)
	g.inDegree[to]++
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.nodes)
}

// Sort returns the nodes in topological order using Kahn's algorithm.
// The frontier is kept sorted ascending, so the order is stable across
// runs for identical input. The second return value is false when the
// graph contains a cycle.
func (g *Graph) Sort() ([]int, bool) {
	inDegree := make(map[int]int, len(g.nodes))
	for id := range g.nodes {
		inDegree[id] = g.inDegree[id]
	}

	frontier := make([]int, 0, len(g.nodes))

	for id := range g.nodes {
		if inDegree[id] == 0 {
			frontier = append(frontier, id)
		}
	}

	sort.Ints(frontier)

	order := make([]int, 0, len(g.nodes))

	for len(frontier) > 0 {
		u := frontier[0]
		frontier = frontier[1:]
		order = append(order, u)

		released := make([]int, 0)

		for _, v := range g.edges[u] {
			inDegree[v]--
			if inDegree[v] == 0 {
				released = append(released, v)
			}
		}

		if len(released) > 0 {
			frontier = append(frontier, released...)
			sort.Ints(frontier)
		}
	}

	if len(order) != len(g.nodes) {
		return order, false
	}

	return order, true
}

// FindCycle returns one cycle in the graph as a node path, or nil when
// the graph is acyclic. The path lists each cycle member once.
func (g *Graph) FindCycle() []int {
	const (
		unvisited = 0
		inStack   = 1
		done      = 2
	)

	state := make(map[int]int, len(g.nodes))
	parent := make(map[int]int, len(g.nodes))

	roots := make([]int, 0, len(g.nodes))
	for id := range g.nodes {
		roots = append(roots, id)
	}

	sort.Ints(roots)

	var cycle []int

	var visit func(u int) bool

	visit = func(u int) bool {
		state[u] = inStack

		children := append([]int(nil), g.edges[u]...)
		sort.Ints(children)

		for _, v := range children {
			switch state[v] {
			case unvisited:
				parent[v] = u
				if visit(v) {
					return true
				}
			case inStack:
				// Walk parents back from u to v to materialize the cycle.
				cycle = []int{v}
				for w := u; w != v; w = parent[w] {
					cycle = append(cycle, w)
				}

				sort.Ints(cycle)

				return true
			}
		}

		state[u] = done

		return false
	}

	for _, id := range roots {
		if state[id] == unvisited && visit(id) {
			return cycle
		}
	}

	return nil
}

// Children returns the outgoing neighbors of a node, sorted ascending.
func (g *Graph) Children(id int) []int {
	children := append([]int(nil), g.edges[id]...)
	sort.Ints(children)

	return children
}

// Serialize outputs the graph in Graphviz format. The label function
// maps node ids to display names; nil falls back to the numeric id.
func (g *Graph) Serialize(label func(int) string) string {
	if label == nil {
		label = func(id int) string { return fmt.Sprintf("%d", id) }
	}

	ids := make([]int, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}

	sort.Ints(ids)

	var buffer bytes.Buffer

	buffer.WriteString("digraph Gitport {\n")

	for _, u := range ids {
		for _, v := range g.Children(u) {
			buffer.WriteString(fmt.Sprintf("  %q -> %q\n", label(u), label(v)))
		}
	}

	buffer.WriteString("}")

	return buffer.String()
}
