// Package dag builds the directed dependency graph over templates and
// produces a deterministic execution order. It supports cycle detection,
// topological sorting, and transitive dependent lookup.
package dag

import (
	"fmt"
	"sort"
	"strings"

	"github.com/leapstack-labs/warepipe/internal/template"
)

// UnresolvedReferenceError reports a reference to a template that is not
// present in the store.
type UnresolvedReferenceError struct {
	Source string
	Target string
}

func (e *UnresolvedReferenceError) Error() string {
	return fmt.Sprintf("template %q references unknown template %q", e.Source, e.Target)
}

// CyclicDependencyError reports a reference cycle among templates.
type CyclicDependencyError struct {
	// Cycle is the node sequence, first node repeated at the end.
	Cycle []string
}

func (e *CyclicDependencyError) Error() string {
	return fmt.Sprintf("dependency cycle: %s", strings.Join(e.Cycle, " -> "))
}

// Graph is a directed acyclic graph over templates keyed by name.
// An edge A -> B means B references A (A must execute first).
type Graph struct {
	templates map[string]*template.Template
	children  map[string][]string // dependency -> dependents
	parents   map[string][]string // dependent -> dependencies
}

// Build constructs the graph from the full set of parsed templates,
// validating that every reference names a known template and that the
// graph is acyclic.
func Build(templates []*template.Template) (*Graph, error) {
	g := &Graph{
		templates: make(map[string]*template.Template, len(templates)),
		children:  make(map[string][]string, len(templates)),
		parents:   make(map[string][]string, len(templates)),
	}

	for _, t := range templates {
		g.templates[t.Name] = t
	}

	for _, t := range templates {
		for _, ref := range t.Refs {
			if _, ok := g.templates[ref.Target]; !ok {
				return nil, &UnresolvedReferenceError{Source: t.Name, Target: ref.Target}
			}
			g.addEdge(ref.Target, t.Name)
		}
	}

	if cycle := g.findCycle(); cycle != nil {
		return nil, &CyclicDependencyError{Cycle: cycle}
	}

	return g, nil
}

// addEdge records that child depends on parent, avoiding duplicates.
func (g *Graph) addEdge(parent, child string) {
	if !contains(g.children[parent], child) {
		g.children[parent] = append(g.children[parent], child)
	}
	if !contains(g.parents[child], parent) {
		g.parents[child] = append(g.parents[child], parent)
	}
}

// Template returns the template registered under name, or nil.
func (g *Graph) Template(name string) *template.Template {
	return g.templates[name]
}

// Parents returns the direct dependencies of a template, sorted by name.
func (g *Graph) Parents(name string) []string {
	out := append([]string(nil), g.parents[name]...)
	sort.Strings(out)
	return out
}

// Children returns the direct dependents of a template, sorted by name.
func (g *Graph) Children(name string) []string {
	out := append([]string(nil), g.children[name]...)
	sort.Strings(out)
	return out
}

// Len returns the number of templates in the graph.
func (g *Graph) Len() int { return len(g.templates) }

// EdgeCount returns the number of dependency edges.
func (g *Graph) EdgeCount() int {
	count := 0
	for _, deps := range g.children {
		count += len(deps)
	}
	return count
}

// findCycle performs a depth-first traversal tracking the recursion stack
// and returns the node sequence of the first cycle found, or nil. Node IDs
// are visited in sorted order so reports are stable across runs.
func (g *Graph) findCycle() []string {
	visited := make(map[string]bool)
	onStack := make(map[string]bool)
	path := make(map[string]string)

	var cycle []string

	var dfs func(id string) bool
	dfs = func(id string) bool {
		visited[id] = true
		onStack[id] = true

		for _, child := range g.sortedChildren(id) {
			if !visited[child] {
				path[child] = id
				if dfs(child) {
					return true
				}
			} else if onStack[child] {
				// Back-edge found, reconstruct the cycle path.
				cycle = []string{child}
				for curr := id; curr != child; curr = path[curr] {
					cycle = append([]string{curr}, cycle...)
				}
				cycle = append([]string{child}, cycle...)
				return true
			}
		}

		onStack[id] = false
		return false
	}

	for _, id := range g.sortedNames() {
		if !visited[id] {
			if dfs(id) {
				return cycle
			}
		}
	}

	return nil
}

// TopoOrder returns template names such that every template appears after
// all templates it references. Ties among independent templates break by
// name, so the order is identical across runs. Build guarantees the graph
// is acyclic, so this cannot fail.
func (g *Graph) TopoOrder() []string {
	visited := make(map[string]bool)
	order := make([]string, 0, len(g.templates))

	var visit func(id string)
	visit = func(id string) {
		if visited[id] {
			return
		}
		visited[id] = true
		for _, parent := range g.Parents(id) {
			visit(parent)
		}
		order = append(order, id)
	}

	for _, id := range g.sortedNames() {
		visit(id)
	}

	return order
}

// Levels groups template names by dependency depth. Templates at level N
// only depend on templates at levels below N, so each level may execute
// concurrently once the previous level completes.
func (g *Graph) Levels() [][]string {
	assigned := make(map[string]int)

	var level func(id string) int
	level = func(id string) int {
		if l, ok := assigned[id]; ok {
			return l
		}
		max := -1
		for _, parent := range g.parents[id] {
			if pl := level(parent); pl > max {
				max = pl
			}
		}
		assigned[id] = max + 1
		return max + 1
	}

	maxLevel := 0
	for id := range g.templates {
		if l := level(id); l > maxLevel {
			maxLevel = l
		}
	}

	levels := make([][]string, maxLevel+1)
	for id, l := range assigned {
		levels[l] = append(levels[l], id)
	}
	for i := range levels {
		sort.Strings(levels[i])
	}
	return levels
}

// Dependents returns every template that depends on name, directly or
// transitively, sorted. The template itself is not included.
func (g *Graph) Dependents(name string) []string {
	seen := make(map[string]bool)

	var mark func(id string)
	mark = func(id string) {
		for _, child := range g.children[id] {
			if !seen[child] {
				seen[child] = true
				mark(child)
			}
		}
	}
	mark(name)

	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (g *Graph) sortedNames() []string {
	names := make([]string, 0, len(g.templates))
	for name := range g.templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (g *Graph) sortedChildren(id string) []string {
	out := append([]string(nil), g.children[id]...)
	sort.Strings(out)
	return out
}

func contains(slice []string, s string) bool {
	for _, v := range slice {
		if v == s {
			return true
		}
	}
	return false
}
