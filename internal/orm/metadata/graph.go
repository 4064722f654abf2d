package metadata

import (
	"fmt"
	"sort"
	"strings"
)

// RelationshipGraph is the dependency graph between entity types.
// An edge runs from a dependent to its principal; self references are skipped.
type RelationshipGraph struct {
	nodes []string
	edges map[string][]string // entity type -> principals
}

// NewRelationshipGraph builds the graph from every foreign key in the model
func NewRelationshipGraph(m *Model) *RelationshipGraph {
	return buildGraph(m, func(*ForeignKey) bool { return true })
}

// newRequiredGraph only follows required foreign keys
func newRequiredGraph(m *Model) *RelationshipGraph {
	return buildGraph(m, (*ForeignKey).IsRequired)
}

func buildGraph(m *Model, include func(*ForeignKey) bool) *RelationshipGraph {
	graph := &RelationshipGraph{
		edges: make(map[string][]string),
	}
	for _, et := range m.EntityTypes() {
		graph.nodes = append(graph.nodes, et.Name())
		for _, fk := range et.ForeignKeys() {
			if fk.IsSelfReferencing() || !include(fk) {
				continue
			}
			graph.addEdge(et.Name(), fk.PrincipalEntityType().Name())
		}
	}
	return graph
}

func (g *RelationshipGraph) addEdge(from, to string) {
	for _, existing := range g.edges[from] {
		if existing == to {
			return
		}
	}
	g.edges[from] = append(g.edges[from], to)
	sort.Strings(g.edges[from])
}

// DetectCycles returns the dependency cycles in the graph
func (g *RelationshipGraph) DetectCycles() [][]string {
	var cycles [][]string
	visited := make(map[string]bool)
	recursionStack := make(map[string]bool)

	var dfs func(node string, path []string)
	dfs = func(node string, path []string) {
		visited[node] = true
		recursionStack[node] = true
		path = append(path, node)

		for _, neighbor := range g.edges[node] {
			if !visited[neighbor] {
				dfs(neighbor, path)
			} else if recursionStack[neighbor] {
				for i, n := range path {
					if n == neighbor {
						cycle := make([]string, len(path)-i)
						copy(cycle, path[i:])
						cycles = append(cycles, cycle)
						break
					}
				}
			}
		}

		recursionStack[node] = false
	}

	for _, node := range g.nodes {
		if !visited[node] {
			dfs(node, nil)
		}
	}

	return cycles
}

// TopologicalSort returns entity type names with principals before their dependents.
// Ties are broken by name so the order is stable.
func (g *RelationshipGraph) TopologicalSort() ([]string, error) {
	outDegree := make(map[string]int, len(g.nodes))
	for _, node := range g.nodes {
		outDegree[node] = len(g.edges[node])
	}

	reverseEdges := make(map[string][]string)
	for _, from := range g.nodes {
		for _, to := range g.edges[from] {
			reverseEdges[to] = append(reverseEdges[to], from)
		}
	}

	var queue []string
	for _, node := range g.nodes {
		if outDegree[node] == 0 {
			queue = append(queue, node)
		}
	}

	result := make([]string, 0, len(g.nodes))
	for len(queue) > 0 {
		sort.Strings(queue)
		node := queue[0]
		queue = queue[1:]
		result = append(result, node)

		for _, dependent := range reverseEdges[node] {
			outDegree[dependent]--
			if outDegree[dependent] == 0 {
				queue = append(queue, dependent)
			}
		}
	}

	if len(result) != len(g.nodes) {
		if cycles := g.DetectCycles(); len(cycles) > 0 {
			return nil, fmt.Errorf("circular dependency detected: %s", formatCycles(cycles))
		}
		return nil, fmt.Errorf("circular dependency detected")
	}

	return result, nil
}

// GetDependencies returns the principals an entity type depends on
func (g *RelationshipGraph) GetDependencies(name string) []string {
	deps, exists := g.edges[name]
	if !exists {
		return []string{}
	}
	return append([]string(nil), deps...)
}

// GetDependents returns the entity types that depend on name
func (g *RelationshipGraph) GetDependents(name string) []string {
	dependents := []string{}
	for _, node := range g.nodes {
		for _, dep := range g.edges[node] {
			if dep == name {
				dependents = append(dependents, node)
				break
			}
		}
	}
	return dependents
}

// formatCycles formats cycle information for error messages
func formatCycles(cycles [][]string) string {
	var b strings.Builder
	for i, cycle := range cycles {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(fmt.Sprintf("  Cycle %d: %s -> %s",
			i+1,
			strings.Join(cycle, " -> "),
			cycle[0]))
	}
	return b.String()
}

// DependencyReport summarizes the dependency structure of a model
type DependencyReport struct {
	TotalEntityTypes int
	Dependencies     map[string][]string // entity type -> principals
	Dependents       map[string][]string // entity type -> dependents
	CircularDeps     [][]string
	HasCycles        bool
	TopologicalOrder []string
}

// AnalyzeDependencies builds a dependency report for the model
func AnalyzeDependencies(m *Model) *DependencyReport {
	graph := NewRelationshipGraph(m)
	report := &DependencyReport{
		TotalEntityTypes: len(graph.nodes),
		Dependencies:     make(map[string][]string),
		Dependents:       make(map[string][]string),
	}

	for _, name := range graph.nodes {
		report.Dependencies[name] = graph.GetDependencies(name)
		report.Dependents[name] = graph.GetDependents(name)
	}

	if cycles := graph.DetectCycles(); len(cycles) > 0 {
		report.CircularDeps = cycles
		report.HasCycles = true
	}

	if order, err := graph.TopologicalSort(); err == nil {
		report.TopologicalOrder = order
	}

	return report
}

// String formats the dependency report
func (r *DependencyReport) String() string {
	var b strings.Builder

	b.WriteString("Dependency Analysis Report\n")
	b.WriteString(fmt.Sprintf("Total Entity Types: %d\n\n", r.TotalEntityTypes))

	if r.HasCycles {
		b.WriteString("Circular dependencies detected:\n")
		b.WriteString(formatCycles(r.CircularDeps))
		b.WriteString("\n\n")
	}

	if len(r.TopologicalOrder) > 0 {
		b.WriteString("Dependency Order (safe creation order):\n")
		for i, name := range r.TopologicalOrder {
			deps := r.Dependencies[name]
			if len(deps) > 0 {
				b.WriteString(fmt.Sprintf("  %d. %s (depends on: %s)\n",
					i+1, name, strings.Join(deps, ", ")))
			} else {
				b.WriteString(fmt.Sprintf("  %d. %s (no dependencies)\n", i+1, name))
			}
		}
	}

	return b.String()
}
