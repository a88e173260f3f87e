package usecase

import (
	"github.com/trebuchet-org/dvm/internal/domain"
)

// DependencyGraph orders named nodes so that every node comes after the nodes
// it depends on. Nodes keep their insertion order, which is used to break ties.
type DependencyGraph struct {
	order []string
	deps  map[string][]string // node -> nodes it depends on
	edges map[string][]string // adjacency list: node -> list of dependents
}

// NewDependencyGraph creates an empty graph
func NewDependencyGraph() *DependencyGraph {
	return &DependencyGraph{
		deps:  make(map[string][]string),
		edges: make(map[string][]string),
	}
}

// AddNode registers a node. Adding a node twice is a no-op.
func (g *DependencyGraph) AddNode(name string) {
	if _, exists := g.deps[name]; exists {
		return
	}
	g.order = append(g.order, name)
	g.deps[name] = nil
}

// AddEdge records that node depends on dep. Both must already be nodes.
func (g *DependencyGraph) AddEdge(node, dep string) {
	for _, d := range g.deps[node] {
		if d == dep {
			return
		}
	}
	g.deps[node] = append(g.deps[node], dep)
	g.edges[dep] = append(g.edges[dep], node)
}

// TopologicalSort performs Kahn's algorithm. Among the nodes that are ready at
// any point, the one added first is emitted first, so the result is stable
// across runs. A cycle yields a domain.CyclicDependencyError.
func (g *DependencyGraph) TopologicalSort() ([]string, error) {
	inDegree := make(map[string]int, len(g.order))
	for _, name := range g.order {
		inDegree[name] = len(g.deps[name])
	}

	emitted := make(map[string]bool, len(g.order))
	result := make([]string, 0, len(g.order))

	for len(result) < len(g.order) {
		next := ""
		for _, name := range g.order {
			if !emitted[name] && inDegree[name] == 0 {
				next = name
				break
			}
		}
		if next == "" {
			break
		}

		emitted[next] = true
		result = append(result, next)
		for _, dependent := range g.edges[next] {
			inDegree[dependent]--
		}
	}

	if len(result) != len(g.order) {
		var remaining []string
		for _, name := range g.order {
			if !emitted[name] {
				remaining = append(remaining, name)
			}
		}
		return nil, domain.CyclicDependencyError{
			Names: remaining,
			Path:  g.findCycle(remaining, emitted),
		}
	}

	return result, nil
}

// findCycle walks dependencies from the first unordered node. Every unordered
// node has at least one unordered dependency, so the walk must revisit a node.
func (g *DependencyGraph) findCycle(remaining []string, emitted map[string]bool) []string {
	if len(remaining) == 0 {
		return nil
	}

	var path []string
	seenAt := make(map[string]int)
	current := remaining[0]
	for {
		if idx, seen := seenAt[current]; seen {
			return append(path[idx:], current)
		}
		seenAt[current] = len(path)
		path = append(path, current)

		next := ""
		for _, dep := range g.deps[current] {
			if !emitted[dep] {
				next = dep
				break
			}
		}
		if next == "" {
			return nil
		}
		current = next
	}
}
