package pipeline

import (
	"github.com/leapstack-labs/warepipe/internal/dag"
	"github.com/leapstack-labs/warepipe/internal/resolve"
	"github.com/leapstack-labs/warepipe/internal/template"
)

// Plan is the pure, pre-execution view of a run: the dependency graph, the
// execution order, and every template's resolved form. Because artifact
// names are pure functions of resolved text, a complete plan needs no
// warehouse access.
type Plan struct {
	Graph *dag.Graph
	// Order is the deterministic topological execution order.
	Order []string
	// Resolved holds the resolution result per template name.
	Resolved map[string]*resolve.Resolved
	// Errs holds resolution failures (missing parameters and their
	// downstream propagation). Templates present here never execute;
	// unrelated branches are unaffected.
	Errs map[string]error
}

// NewPlan builds the dependency graph and resolves every template in
// topological order. Structural errors (unresolved references, cycles)
// abort the whole plan; resolution errors are scoped to the affected
// template and its dependents.
func NewPlan(templates []*template.Template, params map[string]string, namer resolve.Namer) (*Plan, error) {
	graph, err := dag.Build(templates)
	if err != nil {
		return nil, err
	}

	plan := &Plan{
		Graph:    graph,
		Order:    graph.TopoOrder(),
		Resolved: make(map[string]*resolve.Resolved, len(templates)),
		Errs:     make(map[string]error),
	}

	for _, name := range plan.Order {
		refs := make(map[string]string)
		var upstream string
		for _, dep := range graph.Parents(name) {
			r, ok := plan.Resolved[dep]
			if !ok {
				upstream = dep
				break
			}
			refs[dep] = r.FullName
		}
		if upstream != "" {
			plan.Errs[name] = &UpstreamError{Template: name, Upstream: upstream}
			continue
		}

		r, err := namer.Resolve(graph.Template(name), params, refs)
		if err != nil {
			plan.Errs[name] = err
			continue
		}
		plan.Resolved[name] = r
	}

	return plan, nil
}
