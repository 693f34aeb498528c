package plan

import (
	"fmt"

	"github.com/Sumatoshi-tech/gitport/pkg/toposort"
)

// buildGraph constructs the dependency graph, rejecting references to
// missing action ids.
func buildGraph(actions []Action) (*toposort.Graph, error) {
	known := make(map[int]bool, len(actions))
	for _, action := range actions {
		known[action.ID] = true
	}

	graph := toposort.NewGraph()

	for _, action := range actions {
		graph.AddNode(action.ID)

		for _, dep := range action.Dependencies {
			if !known[dep] {
				return nil, fmt.Errorf("action %d depends on unknown action %d", action.ID, dep)
			}

			graph.AddEdge(dep, action.ID)
		}
	}

	return graph, nil
}

// orderActions validates the DAG and returns the actions in stable
// topological order. Cycle detection runs before sorting so the error
// can name the offending ids.
func orderActions(actions []Action) ([]Action, error) {
	graph, err := buildGraph(actions)
	if err != nil {
		return nil, err
	}

	if cycle := graph.FindCycle(); cycle != nil {
		return nil, fmt.Errorf("dependency cycle detected among actions %v", cycle)
	}

	order, ok := graph.Sort()
	if !ok {
		return nil, fmt.Errorf("topological sort failed on %d actions", len(actions))
	}

	byID := make(map[int]Action, len(actions))
	for _, action := range actions {
		byID[action.ID] = action
	}

	ordered := make([]Action, 0, len(actions))
	for _, id := range order {
		ordered = append(ordered, byID[id])
	}

	return ordered, nil
}

// GraphExport is the dependency_graph.json payload.
type GraphExport struct {
	Nodes    int    `json:"nodes"`
	Edges    int    `json:"edges"`
	Graphviz string `json:"graphviz"`
}

func buildGraphExport(actions []Action) GraphExport {
	graph := toposort.NewGraph()
	labels := make(map[int]string, len(actions))
	edges := 0

	for _, action := range actions {
		graph.AddNode(action.ID)

		labels[action.ID] = fmt.Sprintf("%d:%s", action.ID, action.Type)

		for _, dep := range action.Dependencies {
			graph.AddEdge(dep, action.ID)
			edges++
		}
	}

	return GraphExport{
		Nodes:    graph.Len(),
		Edges:    edges,
		Graphviz: graph.Serialize(func(id int) string { return labels[id] }),
	}
}
