// Package graph tracks dependency edges between tokens. Nodes are opaque
// comparable values; the package is agnostic to what they identify.
package graph

import "sync"

// Graph is a directed dependency graph. An edge records that a dependent
// requires a dependency; both directions are indexed so invalidation can
// walk dependents while cycle detection walks dependencies.
type Graph struct {
	mu           sync.RWMutex
	dependencies map[any][]any // node -> nodes it depends on
	dependents   map[any][]any // node -> nodes that depend on it
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{
		dependencies: make(map[any][]any),
		dependents:   make(map[any][]any),
	}
}

// AddEdge records that dependent requires dependency. Duplicate edges are
// ignored.
func (g *Graph) AddEdge(dependent, dependency any) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, existing := range g.dependencies[dependent] {
		if existing == dependency {
			return
		}
	}

	g.dependencies[dependent] = append(g.dependencies[dependent], dependency)
	g.dependents[dependency] = append(g.dependents[dependency], dependent)
}

// Dependencies returns the direct dependencies of a node.
func (g *Graph) Dependencies(node any) []any {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return copyNodes(g.dependencies[node])
}

// Dependents returns the nodes that directly depend on the given node.
func (g *Graph) Dependents(node any) []any {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return copyNodes(g.dependents[node])
}

// TransitiveDependents returns every node that directly or indirectly
// depends on the given node.
func (g *Graph) TransitiveDependents(node any) []any {
	g.mu.RLock()
	defer g.mu.RUnlock()

	visited := make(map[any]bool)
	var result []any

	var collect func(current any)
	collect = func(current any) {
		for _, dep := range g.dependents[current] {
			if !visited[dep] {
				visited[dep] = true
				result = append(result, dep)
				collect(dep)
			}
		}
	}

	collect(node)
	return result
}

// Remove deletes a node and every edge touching it.
func (g *Graph) Remove(node any) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, dependency := range g.dependencies[node] {
		g.dependents[dependency] = without(g.dependents[dependency], node)
	}
	for _, dependent := range g.dependents[node] {
		g.dependencies[dependent] = without(g.dependencies[dependent], node)
	}

	delete(g.dependencies, node)
	delete(g.dependents, node)
}

// Clear removes all nodes and edges.
func (g *Graph) Clear() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.dependencies = make(map[any][]any)
	g.dependents = make(map[any][]any)
}

// Size returns the number of nodes with at least one edge.
func (g *Graph) Size() int {
	g.mu.RLock()
	defer g.mu.RUnlock()

	nodes := make(map[any]bool, len(g.dependencies))
	for n := range g.dependencies {
		nodes[n] = true
	}
	for n := range g.dependents {
		nodes[n] = true
	}
	return len(nodes)
}

// FindCycle returns a dependency cycle as a node path whose last element
// repeats the first, or nil if the graph is acyclic.
func (g *Graph) FindCycle() []any {
	g.mu.RLock()
	defer g.mu.RUnlock()

	visited := make(map[any]bool)
	onPath := make(map[any]bool)
	var path []any
	var cycle []any

	var visit func(node any) bool
	visit = func(node any) bool {
		if onPath[node] {
			start := 0
			for i, p := range path {
				if p == node {
					start = i
					break
				}
			}
			cycle = append(copyNodes(path[start:]), node)
			return true
		}
		if visited[node] {
			return false
		}

		visited[node] = true
		onPath[node] = true
		path = append(path, node)

		for _, dep := range g.dependencies[node] {
			if visit(dep) {
				return true
			}
		}

		path = path[:len(path)-1]
		onPath[node] = false
		return false
	}

	for node := range g.dependencies {
		if !visited[node] && visit(node) {
			return cycle
		}
	}

	return nil
}

// HasCycle reports whether the graph contains any dependency cycle.
func (g *Graph) HasCycle() bool {
	return g.FindCycle() != nil
}

func copyNodes(nodes []any) []any {
	if len(nodes) == 0 {
		return nil
	}
	out := make([]any, len(nodes))
	copy(out, nodes)
	return out
}

func without(nodes []any, node any) []any {
	filtered := nodes[:0]
	for _, n := range nodes {
		if n != node {
			filtered = append(filtered, n)
		}
	}
	return filtered
}
