// Package depgraph builds and queries the package dependency graph.
// Edges point from a dependency to its dependents: edge (A -> B) means
// B depends on A, so A must be built first.
package depgraph

import "sort"

// Graph is a directed acyclic graph over package names.
// It is built once per run and read-only thereafter.
type Graph struct {
	nodes      map[string]struct{}
	dependents map[string][]string // dep -> packages that depend on it
	dependsOn  map[string][]string // package -> its in-graph dependencies
}

// New constructs a Graph over the non-blacklisted packages.
// deps maps each considered package to its declared dependency names.
// Dependencies naming packages outside the considered set are treated as
// externally satisfied and ignored. A cyclic result is a fatal
// configuration error.
func New(packages []string, deps map[string][]string, blacklist map[string]bool) (*Graph, error) {
	g := &Graph{
		nodes:      make(map[string]struct{}),
		dependents: make(map[string][]string),
		dependsOn:  make(map[string][]string),
	}

	for _, name := range packages {
		if blacklist[name] {
			continue
		}
		g.nodes[name] = struct{}{}
	}

	for name := range g.nodes {
		for _, dep := range deps[name] {
			if _, ok := g.nodes[dep]; !ok {
				continue // externally satisfied
			}
			if dep == name {
				continue
			}
			g.dependents[dep] = append(g.dependents[dep], name)
			g.dependsOn[name] = append(g.dependsOn[name], dep)
		}
	}

	for n := range g.dependents {
		g.dependents[n] = dedupSorted(g.dependents[n])
	}
	for n := range g.dependsOn {
		g.dependsOn[n] = dedupSorted(g.dependsOn[n])
	}

	if _, err := g.TopoSort(g.Nodes()); err != nil {
		return nil, err
	}
	return g, nil
}

// Len returns the number of nodes
func (g *Graph) Len() int {
	return len(g.nodes)
}

// Has reports whether name is a node of the graph
func (g *Graph) Has(name string) bool {
	_, ok := g.nodes[name]
	return ok
}

// Nodes returns all node names in sorted order
func (g *Graph) Nodes() []string {
	names := make([]string, 0, len(g.nodes))
	for n := range g.nodes {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// DependsOn returns the in-graph dependencies of name, sorted
func (g *Graph) DependsOn(name string) []string {
	return g.dependsOn[name]
}

// Dependents returns the direct dependents of name, sorted
func (g *Graph) Dependents(name string) []string {
	return g.dependents[name]
}

// TransitiveDependents returns every package that directly or indirectly
// depends on name, in sorted order
func (g *Graph) TransitiveDependents(name string) []string {
	visited := make(map[string]bool)
	var walk func(n string)
	walk = func(n string) {
		for _, d := range g.dependents[n] {
			if visited[d] {
				continue
			}
			visited[d] = true
			walk(d)
		}
	}
	walk(name)

	result := make([]string, 0, len(visited))
	for n := range visited {
		result = append(result, n)
	}
	sort.Strings(result)
	return result
}

// Components returns the weakly connected components, each sorted by
// name, with the component list itself sorted by first member. Edge
// direction is ignored for grouping; it still matters for ordering.
func (g *Graph) Components() [][]string {
	visited := make(map[string]bool)
	var components [][]string

	for _, start := range g.Nodes() {
		if visited[start] {
			continue
		}
		var members []string
		stack := []string{start}
		visited[start] = true
		for len(stack) > 0 {
			n := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			members = append(members, n)
			for _, next := range append(append([]string{}, g.dependsOn[n]...), g.dependents[n]...) {
				if !visited[next] {
					visited[next] = true
					stack = append(stack, next)
				}
			}
		}
		sort.Strings(members)
		components = append(components, members)
	}

	sort.Slice(components, func(i, j int) bool {
		return components[i][0] < components[j][0]
	})
	return components
}

// TopoSort returns the given subset of nodes in topological order: every
// node appears after all of its in-subset dependencies. Ties are broken
// by name so the order is stable across runs. A cycle in the subgraph
// yields a CycleError.
func (g *Graph) TopoSort(subset []string) ([]string, error) {
	in := make(map[string]bool, len(subset))
	for _, n := range subset {
		if g.Has(n) {
			in[n] = true
		}
	}

	indegree := make(map[string]int, len(in))
	for n := range in {
		indegree[n] = 0
	}
	for n := range in {
		for _, dep := range g.dependsOn[n] {
			if in[dep] {
				indegree[n]++
			}
		}
	}

	var ready []string
	for n, deg := range indegree {
		if deg == 0 {
			ready = append(ready, n)
		}
	}
	sort.Strings(ready)

	order := make([]string, 0, len(in))
	for len(ready) > 0 {
		n := ready[0]
		ready = ready[1:]
		order = append(order, n)

		for _, dep := range g.dependents[n] {
			if !in[dep] {
				continue
			}
			indegree[dep]--
			if indegree[dep] == 0 {
				i := sort.SearchStrings(ready, dep)
				ready = append(ready, "")
				copy(ready[i+1:], ready[i:])
				ready[i] = dep
			}
		}
	}

	if len(order) != len(in) {
		var stuck []string
		for n, deg := range indegree {
			if deg > 0 {
				stuck = append(stuck, n)
			}
		}
		sort.Strings(stuck)
		return nil, &CycleError{Nodes: stuck}
	}
	return order, nil
}

func dedupSorted(names []string) []string {
	sort.Strings(names)
	out := names[:0]
	var prev string
	for i, n := range names {
		if i > 0 && n == prev {
			continue
		}
		out = append(out, n)
		prev = n
	}
	return out
}
