package graph

import (
	"sort"

	"github.com/loomery/loom/pkg/models"
)

// adjacency builds a deduplicated edge list over enabled nodes. Parallel
// connections between the same pair of nodes collapse into one edge.
func adjacency(enabled map[string]*models.WorkflowNode, connections []*models.Connection) map[string][]string {
	edges := make(map[string]map[string]bool, len(enabled))

	for id := range enabled {
		edges[id] = make(map[string]bool)
	}

	for _, conn := range connections {
		edges[conn.SourceNode()][conn.TargetNode()] = true
	}

	adj := make(map[string][]string, len(edges))

	for source, targets := range edges {
		for target := range targets {
			adj[source] = append(adj[source], target)
		}

		sort.Strings(adj[source])
	}

	return adj
}

// findCycleMembers returns every node that sits on a cycle, sorted by id.
// It runs Tarjan's strongly connected components algorithm and reports the
// members of any component of size two or more, plus self-loops.
func findCycleMembers(enabled map[string]*models.WorkflowNode, connections []*models.Connection) []string {
	adj := adjacency(enabled, connections)

	ids := make([]string, 0, len(enabled))
	for id := range enabled {
		ids = append(ids, id)
	}

	sort.Strings(ids)

	index := make(map[string]int, len(ids))
	lowlink := make(map[string]int, len(ids))
	onStack := make(map[string]bool, len(ids))

	var (
		stack   []string
		counter int
		members []string
	)

	var strongConnect func(id string)
	strongConnect = func(id string) {
		index[id] = counter
		lowlink[id] = counter
		counter++

		stack = append(stack, id)
		onStack[id] = true

		for _, target := range adj[id] {
			if _, visited := index[target]; !visited {
				strongConnect(target)

				if lowlink[target] < lowlink[id] {
					lowlink[id] = lowlink[target]
				}
			} else if onStack[target] && index[target] < lowlink[id] {
				lowlink[id] = index[target]
			}
		}

		if lowlink[id] != index[id] {
			return
		}

		component := make([]string, 0, 1)

		for {
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			onStack[top] = false

			component = append(component, top)

			if top == id {
				break
			}
		}

		if len(component) > 1 || hasSelfLoop(component[0], adj) {
			members = append(members, component...)
		}
	}

	for _, id := range ids {
		if _, visited := index[id]; !visited {
			strongConnect(id)
		}
	}

	sort.Strings(members)

	return members
}

func hasSelfLoop(id string, adj map[string][]string) bool {
	for _, target := range adj[id] {
		if target == id {
			return true
		}
	}

	return false
}

// topologicalOrder runs Kahn's algorithm over an acyclic graph. When several
// nodes are ready at once, the one declared earliest in the workflow document
// wins, which makes the order reproducible across runs.
func topologicalOrder(enabled map[string]*models.WorkflowNode, connections []*models.Connection, declarationIndex map[string]int) []string {
	adj := adjacency(enabled, connections)

	indegree := make(map[string]int, len(enabled))
	for id := range enabled {
		indegree[id] = 0
	}

	for _, targets := range adj {
		for _, target := range targets {
			indegree[target]++
		}
	}

	ready := make([]string, 0, len(enabled))

	for id, degree := range indegree {
		if degree == 0 {
			ready = append(ready, id)
		}
	}

	byDeclaration := func(candidates []string) {
		sort.Slice(candidates, func(i, j int) bool {
			return declarationIndex[candidates[i]] < declarationIndex[candidates[j]]
		})
	}

	byDeclaration(ready)

	order := make([]string, 0, len(enabled))

	for len(ready) > 0 {
		next := ready[0]
		ready = ready[1:]

		order = append(order, next)

		released := false

		for _, target := range adj[next] {
			indegree[target]--

			if indegree[target] == 0 {
				ready = append(ready, target)
				released = true
			}
		}

		if released {
			byDeclaration(ready)
		}
	}

	return order
}
